// Package stackrt provides the data/return stack arenas and the
// register assignment of the stack-caching calling convention: the top
// two data-stack cells live in dedicated registers instead of memory,
// and the data/return stack pointers live in two more, freeing every
// emitted primitive from touching memory for the common case.
package stackrt

import (
	"unsafe"

	"github.com/albanforth/jitforth/internal/asm"
)

// Calling-convention register assignment. R12-R15 are dedicated to
// the Forth stack for the life of any emitted code; LET's register
// tracker works entirely in XMM registers and never touches them.
const (
	RegRSP asm.Reg = asm.R12 // return-stack pointer
	RegDSP asm.Reg = asm.R13 // data-stack pointer
	RegTOS asm.Reg = asm.R14 // top of data stack, cached
	RegTOS1 asm.Reg = asm.R15 // second-from-top of data stack, cached
)

const cellSize = 8

// GapCells is the guard gap between an arena's high end and its
// initial stack pointer. The register-caching push/pop sequences read
// and write one memory cell past the logical top (the TOS-1 shuffle),
// and a drained stack may be over-popped by a few cells before DEPTH's
// floor catches it; the gap keeps both inside the arena.
const GapCells = 4

// Arena is a fixed-size, growable-by-replacement stack region. It owns
// its backing memory directly (not through internal/asm's executable
// allocator — only code needs to be executable).
type Arena struct {
	mem  []byte
	base uintptr
	top  int // byte offset of the next free cell, growing upward
}

// NewArena allocates an arena big enough for depth cells.
func NewArena(depth int) *Arena {
	a := &Arena{mem: make([]byte, depth*cellSize)}
	if len(a.mem) > 0 {
		a.base = uintptr(0)
	}
	return a
}

// Depth reports how many cells are currently pushed.
func (a *Arena) Depth() int { return a.top / cellSize }

// Cap reports the arena's capacity in cells.
func (a *Arena) Cap() int { return len(a.mem) / cellSize }

// Addr returns the raw address of the arena's backing memory. Go's
// current allocator never moves a live heap object, so this address
// stays valid for the arena's lifetime.
func (a *Arena) Addr() uintptr {
	if len(a.mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&a.mem[0]))
}

// TopAddr returns the arena's initial (empty-stack) pointer value:
// the high end of the region minus the guard gap. DSP/RSP' start here
// and grow toward Addr.
func (a *Arena) TopAddr() uintptr {
	return a.Addr() + uintptr(len(a.mem)) - GapCells*cellSize
}

// errUnderflow / errOverflow are returned by Push/Pop when the arena's
// bound is violated — the caller (the interpreter, not emitted code)
// is expected to turn this into a signalx.Raise.
var (
	errUnderflow = arenaError("stack underflow")
	errOverflow  = arenaError("stack overflow")
)

type arenaError string

func (e arenaError) Error() string { return string(e) }

// Push appends v, growing top. Returns errOverflow if the arena is
// full.
func (a *Arena) Push(v int64) error {
	if a.top+cellSize > len(a.mem) {
		return errOverflow
	}
	putI64(a.mem[a.top:], v)
	a.top += cellSize
	return nil
}

// Pop removes and returns the top cell.
func (a *Arena) Pop() (int64, error) {
	if a.top < cellSize {
		return 0, errUnderflow
	}
	a.top -= cellSize
	return getI64(a.mem[a.top:]), nil
}

// Peek returns the n'th cell from the top (0 = topmost) without
// removing it.
func (a *Arena) Peek(n int) (int64, error) {
	off := a.top - (n+1)*cellSize
	if off < 0 {
		return 0, errUnderflow
	}
	return getI64(a.mem[off:]), nil
}

// The following macros emit the push/pop sequences every primitive
// codegen in internal/codegen is built from: TOS and TOS-1 are cached
// in RegTOS/RegTOS1, the rest of the data stack sits below [RegDSP],
// which grows toward lower addresses like a native call stack.

// PushReg emits code to push src as the new TOS, spilling the old
// TOS-1 to memory.
func PushReg(a *asm.Assembler, src asm.Reg) {
	a.SubRI(RegDSP, cellSize)
	a.StoreMem(RegDSP, 0, RegTOS1)
	a.MovRR(RegTOS1, RegTOS)
	if src != RegTOS {
		a.MovRR(RegTOS, src)
	}
}

// PushImm emits code to push an immediate as the new TOS.
func PushImm(a *asm.Assembler, v int64) {
	a.SubRI(RegDSP, cellSize)
	a.StoreMem(RegDSP, 0, RegTOS1)
	a.MovRR(RegTOS1, RegTOS)
	a.MovRegImm64(RegTOS, uint64(v))
}

// PopReg emits code to pop TOS into dst, reloading TOS/TOS-1 from the
// cache chain and memory.
func PopReg(a *asm.Assembler, dst asm.Reg) {
	if dst != RegTOS {
		a.MovRR(dst, RegTOS)
	}
	a.MovRR(RegTOS, RegTOS1)
	a.LoadMem(RegTOS1, RegDSP, 0)
	a.AddRI(RegDSP, cellSize)
}

// Drop emits code to discard TOS without reading it.
func Drop(a *asm.Assembler) {
	a.MovRR(RegTOS, RegTOS1)
	a.LoadMem(RegTOS1, RegDSP, 0)
	a.AddRI(RegDSP, cellSize)
}

func putI64(b []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}

func getI64(b []byte) int64 {
	var u uint64
	for i := 0; i < 8; i++ {
		u |= uint64(b[i]) << (8 * i)
	}
	return int64(u)
}
