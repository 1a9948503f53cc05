package main

import (
	"io"
	"unsafe"

	"github.com/albanforth/jitforth/internal/asm"
	"github.com/albanforth/jitforth/internal/control"
	"github.com/albanforth/jitforth/internal/dict"
	"github.com/albanforth/jitforth/internal/lexer"
	"github.com/albanforth/jitforth/internal/mathabi"
	"github.com/albanforth/jitforth/internal/signalx"
	"github.com/albanforth/jitforth/internal/stackrt"
	"github.com/albanforth/jitforth/internal/symtab"
	"github.com/albanforth/jitforth/internal/token"
	"github.com/albanforth/jitforth/internal/wordheap"
)

const (
	defaultDataDepth   = 1 << 19 // 4 MiB of cells
	defaultReturnDepth = 1 << 17 // 1 MiB of cells
)

// Interpreter owns every long-lived piece of state a running Forth
// image needs: the symbol table, the dictionary, the one code holder
// every compile targets, the word-heap backing CREATE/VARIABLE, the
// data/return stack arenas, and the register-bridge dispatcher that
// crosses from ordinary Go code into JIT'd machine code and back.
//
// There is exactly one Interpreter active per process at a time: its
// stack-caching registers (R12-R15) are a process-wide convention, not
// something saved/restored per Interpreter the way a normal Go value
// would be, so a second concurrently-running Interpreter would corrupt
// the first's stacks. See internal/stackrt's doc comment and DESIGN.md.
type Interpreter struct {
	syms *symtab.Table
	dict *dict.Dictionary
	code *asm.CodeHolder
	heap *wordheap.Heap

	data *stackrt.Arena
	ret  *stackrt.Arena

	logf   asm.Logf
	output io.Writer

	lex *lexer.Lexer

	gpCache  bool
	trackLRU bool
	optimize bool

	dataDepth   int
	returnDepth int

	// Compilation state for the definition in flight.
	ctl      *control.Stack
	defining bool
	pending  []token.Token
	letName  string
	letSrc   string
	strings  [][]byte // keepalive for ." bodies baked into emitted code

	// Register-bridge state: the dispatcher glue reads/writes these
	// four cells directly by address, since R12-R15 cannot be passed
	// or returned through a plain Go func() call boundary.
	savedRSP, savedDSP, savedTOS, savedTOS1 uint64
	dispatchTarget                          uintptr
	dispatch                                asm.ForthFunc
}

// New builds an Interpreter from opts, allocates its stack arenas,
// installs it as the active print-adapter target, builds the
// register-bridge dispatcher, and populates the dictionary via Bootstrap.
func New(opts ...InterpreterOption) *Interpreter {
	in := &Interpreter{
		dataDepth:   defaultDataDepth,
		returnDepth: defaultReturnDepth,
		optimize:    true,
		gpCache:     true,
		trackLRU:    true,
	}
	InterpreterOptions(opts...).apply(in)

	in.syms = symtab.NewTable()
	in.lex = lexer.New(in.syms)
	in.dict = dict.New(in.syms)
	in.code = asm.NewCodeHolder(in.logf)
	in.heap = &wordheap.Heap{}
	in.data = stackrt.NewArena(in.dataDepth)
	in.ret = stackrt.NewArena(in.returnDepth)

	in.savedDSP = uint64(in.data.TopAddr())
	in.savedRSP = uint64(in.ret.TopAddr())
	in.savedTOS = 0
	in.savedTOS1 = 0

	activeAdapters = in
	in.buildDispatcher()
	Bootstrap(in)
	return in
}

// push appends v to the live data stack from the Go side, mirroring
// the emitted push macro against the saved register cells: the shuffled
// TOS-1 goes to arena memory, the cached pair shifts, v becomes TOS.
func (in *Interpreter) push(v int64) {
	in.savedDSP -= 8
	*(*uint64)(unsafe.Pointer(uintptr(in.savedDSP))) = in.savedTOS1
	in.savedTOS1 = in.savedTOS
	in.savedTOS = uint64(v)
}

// pop removes and returns the live TOS, re-caching from arena memory.
func (in *Interpreter) pop() int64 {
	v := in.savedTOS
	in.savedTOS = in.savedTOS1
	in.savedTOS1 = *(*uint64)(unsafe.Pointer(uintptr(in.savedDSP)))
	in.savedDSP += 8
	return int64(v)
}

// depth reports the live data-stack depth, floored at zero.
func (in *Interpreter) depth() int {
	d := (int64(in.data.TopAddr()) - int64(in.savedDSP)) / 8
	if d < 0 {
		return 0
	}
	return int(d)
}

// buildDispatcher emits the one small piece of hand-assembled glue this
// interpreter needs beyond ordinary primitive codegen: a function that
// loads R12-R15 from the four saved-register cells, CALLs whatever
// address dispatchTarget currently names, then writes R12-R15 back out
// — the only way to cross from a plain Go func() call into code that
// expects arguments already resident in specific registers, since
// Go's ABI gives CallAbs/CallReg no way to pass them directly.
func (in *Interpreter) buildDispatcher() {
	h := in.code
	h.Start()

	const bridge0 = asm.RAX
	const bridge1 = asm.RBX

	// R12-R15 and RBX are callee-saved under the host ABI the caller
	// (ordinary Go code) compiled against; they must come back intact.
	// Five pushes plus the caller's return address leave RSP 16-byte
	// aligned at the inner call.
	h.PushR(bridge1)
	h.PushR(stackrt.RegRSP)
	h.PushR(stackrt.RegDSP)
	h.PushR(stackrt.RegTOS)
	h.PushR(stackrt.RegTOS1)

	// Park the goroutine pointer (R14 on entry) where the print
	// trampolines and the math bridge can restore it before calling
	// back into Go.
	h.MovRegImm64(bridge0, uint64(uintptr(unsafe.Pointer(&savedG))))
	h.StoreMem(bridge0, 0, stackrt.RegTOS)
	h.MovRegImm64(bridge0, uint64(mathabi.GCellAddr()))
	h.StoreMem(bridge0, 0, stackrt.RegTOS)

	load := func(cellAddr uintptr, dst asm.Reg) {
		h.MovRegImm64(bridge0, uint64(cellAddr))
		h.LoadMem(dst, bridge0, 0)
	}
	store := func(cellAddr uintptr, src asm.Reg) {
		h.MovRegImm64(bridge0, uint64(cellAddr))
		h.StoreMem(bridge0, 0, src)
	}

	load(uintptr(unsafe.Pointer(&in.savedRSP)), stackrt.RegRSP)
	load(uintptr(unsafe.Pointer(&in.savedDSP)), stackrt.RegDSP)
	load(uintptr(unsafe.Pointer(&in.savedTOS)), stackrt.RegTOS)
	load(uintptr(unsafe.Pointer(&in.savedTOS1)), stackrt.RegTOS1)

	h.MovRegImm64(bridge0, uint64(uintptr(unsafe.Pointer(&in.dispatchTarget))))
	h.LoadMem(bridge1, bridge0, 0)
	h.CallReg(bridge1)

	store(uintptr(unsafe.Pointer(&in.savedRSP)), stackrt.RegRSP)
	store(uintptr(unsafe.Pointer(&in.savedDSP)), stackrt.RegDSP)
	store(uintptr(unsafe.Pointer(&in.savedTOS)), stackrt.RegTOS)
	store(uintptr(unsafe.Pointer(&in.savedTOS1)), stackrt.RegTOS1)

	h.PopR(stackrt.RegTOS1)
	h.PopR(stackrt.RegTOS)
	h.PopR(stackrt.RegDSP)
	h.PopR(stackrt.RegRSP)
	h.PopR(bridge1)

	fn, err := h.Finalize()
	if err != nil {
		signalx.Raise(signalx.CodeBufferInitFail, "dispatcher glue: %v", err)
	}
	in.dispatch = fn
}

// invoke runs the standalone function at addr against the live stack
// registers, round-tripping the register-bridge cells.
func (in *Interpreter) invoke(addr uintptr) {
	in.dispatchTarget = addr
	in.dispatch()
}

// uintptrOf returns the address of b's first byte.
func uintptrOf(b []byte) uintptr { return uintptr(unsafe.Pointer(&b[0])) }

// Dict exposes the dictionary for bootstrap wiring and the compiler.
func (in *Interpreter) Dict() *dict.Dictionary { return in.dict }

// Syms exposes the symbol table.
func (in *Interpreter) Syms() *symtab.Table { return in.syms }

// Heap exposes the word-heap allocator.
func (in *Interpreter) Heap() *wordheap.Heap { return in.heap }

// Code exposes the one code holder every definition compiles into.
func (in *Interpreter) Code() *asm.CodeHolder { return in.code }
