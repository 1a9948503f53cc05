package main

import "reflect"

// cabiXxx are implemented in adapters_amd64.s: each is a small
// hand-assembled entry point following the System-V argument registers
// (DI, then SI) codegen.go's Dot/Emit/DotQuote/Cr/Space/Page/Cls
// emitters already bind via CallAbs, re-marshalling onto the stack and
// calling the matching goXxx function above through the classic
// ABI0 stack-argument convention Go's assembler keeps available for
// hand-written callers.
func cabiEmitChar()
func cabiDot()
func cabiFDot()
func cabiCR()
func cabiSpace()
func cabiPage()
func cabiCls()
func cabiPrintString()

// addrOfAdapter resolves a cabiXxx trampoline's raw entry address for
// binding into a dictionary entry's codegen.Emitter via CallAbs, the
// same reflect.ValueOf(fn).Pointer() trick internal/mathabi uses for
// Go's own math functions.
func addrOfAdapter(fn func()) uintptr { return reflect.ValueOf(fn).Pointer() }
