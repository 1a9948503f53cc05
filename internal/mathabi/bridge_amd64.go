package mathabi

import "unsafe"

// mathBridge is implemented in bridge_amd64.s: it saves the Forth
// stack-cache registers, restores the goroutine pointer parked in
// savedG into R14, and calls the math routine whose entry address the
// emitted caller loaded into RAX. Arguments and result stay in
// XMM0/XMM1/XMM0 throughout, where both the emitted caller and the Go
// ABI already keep them.
func mathBridge()

// savedG holds the goroutine pointer of whatever goroutine last
// entered JIT'd code; the interpreter's dispatcher glue stores R14
// here (via GCellAddr) on every entry before repurposing the register
// as the TOS cache.
var savedG uint64

// GCellAddr returns the address of the goroutine-pointer cell for the
// dispatcher's entry store.
func GCellAddr() uintptr { return uintptr(unsafe.Pointer(&savedG)) }

// BridgeAddr returns mathBridge's entry address for CallAbs sites.
func BridgeAddr() uintptr { return funcAddr(mathBridge) }
