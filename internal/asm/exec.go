package asm

import (
	"syscall"
	"unsafe"

	"github.com/albanforth/jitforth/internal/signalx"
)

// ForthFunc is the emitted function signature: no arguments, no
// return value — all state travels via the caching registers and the
// stack arenas, per the external interface contract.
type ForthFunc func()

// Logf is a printf-style sink CodeHolder uses for trace logging,
// satisfied directly by internal/logio.Logger.Leveledf.
type Logf func(mess string, args ...interface{})

// CodeHolder owns one Assembler plus the executable memory its
// Finalize call mmaps the assembled bytes into: PROT_READ|PROT_WRITE
// during emission, Mprotect'd to PROT_READ|PROT_EXEC once finalized.
type CodeHolder struct {
	*Assembler
	logf  Logf
	pages []execPage
}

type execPage struct {
	mem []byte
}

// NewCodeHolder returns a CodeHolder logging trace output through logf
// (nil is fine — it silences tracing).
func NewCodeHolder(logf Logf) *CodeHolder {
	return &CodeHolder{Assembler: NewAssembler(), logf: logf}
}

// Start begins a new function body, discarding any unfinalized one.
func (h *CodeHolder) Start() {
	if h.Assembler == nil {
		signalx.Raise(signalx.NullAssembler, "CodeHolder.Start called on nil assembler")
	}
	h.Assembler.Start()
	h.trace("asm: start")
}

// Finalize resolves internal jumps, mmaps an executable page sized to
// the assembled body, copies the body in, flips it executable, and
// returns a callable ForthFunc.
func (h *CodeHolder) Finalize() (ForthFunc, error) {
	fn, _, err := h.FinalizeAddr()
	return fn, err
}

// FinalizeAddr is Finalize plus the raw entry address, needed by the
// dictionary/compiler to wire one compiled word's CALL site directly
// to another's emitted body (internal/asm.CallAbs takes a uintptr, not
// a Go func value).
func (h *CodeHolder) FinalizeAddr() (ForthFunc, uintptr, error) {
	if h.Assembler == nil {
		signalx.Raise(signalx.NullAssembler, "CodeHolder.Finalize called on nil assembler")
	}
	h.Assembler.Ret()
	h.Assembler.resolve()
	if h.Assembler.unresolved() {
		signalx.Raise(signalx.FinalizeFailed, "unbound jump label in emitted function")
	}

	code := h.Assembler.Bytes()
	page, err := allocExecPage(len(code))
	if err != nil {
		signalx.Raise(signalx.CodeBufferInitFail, "mmap code buffer: %v", err)
	}
	copy(page.mem, code)
	if err := page.makeExecutable(); err != nil {
		munmap(page.mem)
		signalx.Raise(signalx.FinalizeFailed, "mprotect code buffer: %v", err)
	}
	h.pages = append(h.pages, *page)

	addr := uintptr(unsafe.Pointer(&page.mem[0]))
	fn := functionFromBytes(page.mem)
	h.trace("asm: finalized %d bytes at %p", len(code), unsafe.Pointer(&page.mem[0]))
	return fn, addr, nil
}

// Release unmaps every executable page this holder finalized. The
// interpreter itself never calls it: FORGET and process exit leave
// the pages mapped.
func (h *CodeHolder) Release() {
	for _, p := range h.pages {
		munmap(p.mem)
	}
	h.pages = nil
}

func (h *CodeHolder) trace(mess string, args ...interface{}) {
	if h.logf != nil {
		h.logf(mess, args...)
	}
}

func allocExecPage(size int) (*execPage, error) {
	page := syscall.Getpagesize()
	n := (size + page - 1) &^ (page - 1)
	if n == 0 {
		n = page
	}
	mem, err := syscall.Mmap(-1, 0, n, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_PRIVATE|syscall.MAP_ANON)
	if err != nil {
		return nil, err
	}
	return &execPage{mem: mem}, nil
}

func (p *execPage) makeExecutable() error {
	return syscall.Mprotect(p.mem, syscall.PROT_READ|syscall.PROT_EXEC)
}

func munmap(mem []byte) { _ = syscall.Munmap(mem) }

// functionFromBytes reinterprets the first byte of an executable
// mmap'd region as a Go func(): a fake closure whose code pointer is
// the region's base address.
func functionFromBytes(code []byte) ForthFunc {
	fptr := unsafe.Pointer(&struct{ fn uintptr }{uintptr(unsafe.Pointer(&code[0]))})
	return *(*func())(unsafe.Pointer(&fptr))
}
