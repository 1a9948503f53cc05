// Package codegen holds one emitter per Forth primitive, built from
// the stack-caching push/pop macros in internal/stackrt and the
// x86-64 encoder in internal/asm. Every emitter serves two roles:
// inlined at a call site (the common case for DUP/SWAP/+/...) and
// wrapped into a standalone callable via Standalone.
package codegen

import (
	"math"

	"github.com/albanforth/jitforth/internal/asm"
	"github.com/albanforth/jitforth/internal/mathabi"
	"github.com/albanforth/jitforth/internal/stackrt"
)

// Emitter emits one primitive's body inline into h.
type Emitter func(h *asm.CodeHolder)

// scratch registers available to emitters: none of RAX/RBX/RCX/RDX are
// part of the stack-caching convention, so they're free for temporaries.
const (
	scratch0 = asm.RAX
	scratch1 = asm.RBX
	scratch2 = asm.RCX
	scratch3 = asm.RDX
)

// Standalone wraps emit with the epilogue needed to make it callable
// as a standalone function pointer: since DSP/TOS/TOS1/RSP' are
// dedicated across the whole process (never callee-saved in the usual
// sense — every compiled word shares them), no prologue is needed
// beyond a trailing ret, which CodeHolder.Finalize appends
// automatically. Standalone exists so dictionary wiring reads the same
// way regardless of whether an entry is inlined or compiled.
func Standalone(emit Emitter) Emitter { return emit }

func binIntOp(combine func(a *asm.Assembler)) Emitter {
	return func(h *asm.CodeHolder) {
		combine(h.Assembler)
		h.MovRR(stackrt.RegTOS, stackrt.RegTOS1)
		h.LoadMem(stackrt.RegTOS1, stackrt.RegDSP, 0)
		h.AddRI(stackrt.RegDSP, 8)
	}
}

// Dup : ( a -- a a )
func Dup(h *asm.CodeHolder) {
	h.MovRR(scratch0, stackrt.RegTOS)
	stackrt.PushReg(h.Assembler, scratch0)
}

// Drop : ( a -- )
func Drop(h *asm.CodeHolder) { stackrt.Drop(h.Assembler) }

// Swap : ( a b -- b a )
func Swap(h *asm.CodeHolder) {
	h.MovRR(scratch0, stackrt.RegTOS)
	h.MovRR(stackrt.RegTOS, stackrt.RegTOS1)
	h.MovRR(stackrt.RegTOS1, scratch0)
}

// Over : ( a b -- a b a )
func Over(h *asm.CodeHolder) {
	h.MovRR(scratch0, stackrt.RegTOS1)
	stackrt.PushReg(h.Assembler, scratch0)
}

// Nip : ( a b -- b )
func Nip(h *asm.CodeHolder) {
	h.LoadMem(stackrt.RegTOS1, stackrt.RegDSP, 0)
	h.AddRI(stackrt.RegDSP, 8)
}

// Tuck : ( a b -- b a b )
func Tuck(h *asm.CodeHolder) {
	Swap(h)
	Over(h)
}

// Rot : ( a b c -- b c a )
func Rot(h *asm.CodeHolder) {
	h.MovRR(scratch0, stackrt.RegTOS)      // c
	h.MovRR(scratch1, stackrt.RegTOS1)     // b
	h.LoadMem(scratch2, stackrt.RegDSP, 0) // a
	h.MovRR(stackrt.RegTOS, scratch2)      // new TOS = a
	h.MovRR(stackrt.RegTOS1, scratch0)     // new TOS1 = c
	h.StoreMem(stackrt.RegDSP, 0, scratch1) // new mem top = b
}

// MinusRot : ( a b c -- c a b )
func MinusRot(h *asm.CodeHolder) {
	Rot(h)
	Rot(h)
}

// TwoDup : ( a b -- a b a b )
func TwoDup(h *asm.CodeHolder) {
	Over(h)
	Over(h)
}

// TwoDrop : ( a b -- )
func TwoDrop(h *asm.CodeHolder) {
	Drop(h)
	Drop(h)
}

// TwoOver : ( a b c d -- a b c d a b )
func TwoOver(h *asm.CodeHolder) {
	// c d sit in TOS1/TOS; a b are 2 and 3 cells deep in memory.
	h.LoadMem(scratch0, stackrt.RegDSP, 8) // a
	h.LoadMem(scratch1, stackrt.RegDSP, 0) // b
	stackrt.PushReg(h.Assembler, scratch1)
	stackrt.PushReg(h.Assembler, scratch0)
	Swap(h)
}

// Pick : ( xn ... x0 n -- xn ... x0 xn ), n is TOS. Cells 0 and 1
// live in the cache registers, not memory, so those depths branch to
// the DUP/OVER paths; from 2 on the cell sits at RegDSP + (n-2)*8.
func Pick(h *asm.CodeHolder) {
	h.MovRR(scratch0, stackrt.RegTOS) // n
	Drop(h)
	deep := h.Label()
	one := h.Label()
	done := h.Label()
	h.CmpRI(scratch0, 2)
	h.Jump(asm.CCGE, deep)
	h.CmpRI(scratch0, 1)
	h.Jump(asm.CCEqual, one)
	Dup(h) // 0 PICK
	h.Jump(asm.CCAlways, done)
	h.Bind(one)
	Over(h) // 1 PICK
	h.Jump(asm.CCAlways, done)
	h.Bind(deep)
	h.ShlImm(scratch0, 3)
	h.SubRI(scratch0, 16)
	h.AddRR(scratch0, stackrt.RegDSP)
	h.LoadMem(scratch1, scratch0, 0)
	stackrt.PushReg(h.Assembler, scratch1)
	h.Bind(done)
}

// Add : ( a b -- a+b )
func Add(h *asm.CodeHolder) { binIntOp(func(a *asm.Assembler) { a.AddRR(stackrt.RegTOS1, stackrt.RegTOS) })(h) }

// Sub : ( a b -- a-b )
func Sub(h *asm.CodeHolder) { binIntOp(func(a *asm.Assembler) { a.SubRR(stackrt.RegTOS1, stackrt.RegTOS) })(h) }

// Mul : ( a b -- a*b )
func Mul(h *asm.CodeHolder) { binIntOp(func(a *asm.Assembler) { a.ImulRR(stackrt.RegTOS1, stackrt.RegTOS) })(h) }

// Div : ( a b -- a/b ), signed 64-bit quotient.
func Div(h *asm.CodeHolder) {
	h.MovRR(scratch0, stackrt.RegTOS1)
	h.MovRR(scratch1, stackrt.RegTOS)
	h.MovRR(asm.RAX, scratch0)
	h.Cqo()
	h.IdivR(scratch1)
	h.MovRR(stackrt.RegTOS1, asm.RAX)
	binIntOp(func(*asm.Assembler) {})(h)
}

// Mod : ( a b -- a%b )
func Mod(h *asm.CodeHolder) {
	h.MovRR(scratch0, stackrt.RegTOS1)
	h.MovRR(scratch1, stackrt.RegTOS)
	h.MovRR(asm.RAX, scratch0)
	h.Cqo()
	h.IdivR(scratch1)
	h.MovRR(stackrt.RegTOS1, asm.RDX)
	binIntOp(func(*asm.Assembler) {})(h)
}

// DivMod : ( a b -- quot rem ), two inputs, two outputs, same depth.
func DivMod(h *asm.CodeHolder) {
	h.MovRR(scratch0, stackrt.RegTOS1)
	h.MovRR(scratch1, stackrt.RegTOS)
	h.MovRR(asm.RAX, scratch0)
	h.Cqo()
	h.IdivR(scratch1)
	h.MovRR(stackrt.RegTOS1, asm.RAX) // quot
	h.MovRR(stackrt.RegTOS, asm.RDX)  // rem
}

// StarSlash : ( a b c -- a*b/c ), the product held as a full 128-bit
// intermediate in rdx:rax so the quotient is exact even when a*b
// overflows 64 bits.
func StarSlash(h *asm.CodeHolder) {
	h.LoadMem(asm.RAX, stackrt.RegDSP, 0) // a
	h.ImulR(stackrt.RegTOS1)              // rdx:rax = a*b
	h.IdivR(stackrt.RegTOS)               // rax = a*b/c
	h.MovRR(stackrt.RegTOS, asm.RAX)
	h.LoadMem(stackrt.RegTOS1, stackrt.RegDSP, 8)
	h.AddRI(stackrt.RegDSP, 16)
}

// StarSlashMod : ( a b c -- rem quot ), same widened product as */.
func StarSlashMod(h *asm.CodeHolder) {
	h.LoadMem(asm.RAX, stackrt.RegDSP, 0)
	h.ImulR(stackrt.RegTOS1)
	h.IdivR(stackrt.RegTOS)
	h.MovRR(stackrt.RegTOS, asm.RAX)  // quot
	h.MovRR(stackrt.RegTOS1, asm.RDX) // rem
	h.AddRI(stackrt.RegDSP, 8)
}

// And : ( a b -- a&b )
func And(h *asm.CodeHolder) { binIntOp(func(a *asm.Assembler) { a.AndRR(stackrt.RegTOS1, stackrt.RegTOS) })(h) }

// Or : ( a b -- a|b )
func Or(h *asm.CodeHolder) { binIntOp(func(a *asm.Assembler) { a.OrRR(stackrt.RegTOS1, stackrt.RegTOS) })(h) }

// Xor : ( a b -- a^b )
func Xor(h *asm.CodeHolder) { binIntOp(func(a *asm.Assembler) { a.XorRR(stackrt.RegTOS1, stackrt.RegTOS) })(h) }

// Not : ( a -- flag ), logical NOT: -1 when a is 0, otherwise 0.
func Not(h *asm.CodeHolder) {
	h.CmpRI(stackrt.RegTOS, 0)
	h.Setcc(asm.CCEqual, scratch0)
	h.MovzxB(scratch0)
	h.NegR(scratch0)
	h.MovRR(stackrt.RegTOS, scratch0)
}

func compareOp(cc asm.CC) Emitter {
	return func(h *asm.CodeHolder) {
		h.CmpRR(stackrt.RegTOS1, stackrt.RegTOS)
		h.Setcc(cc, scratch0)
		h.MovzxB(scratch0)
		h.NegR(scratch0)
		h.MovRR(stackrt.RegTOS1, scratch0)
		h.MovRR(stackrt.RegTOS, stackrt.RegTOS1)
		h.LoadMem(stackrt.RegTOS1, stackrt.RegDSP, 0)
		h.AddRI(stackrt.RegDSP, 8)
	}
}

// Eq : ( a b -- flag ), flag is -1/0.
func Eq(h *asm.CodeHolder) { compareOp(asm.CCEqual)(h) }

// Ne : ( a b -- flag )
func Ne(h *asm.CodeHolder) { compareOp(asm.CCNotEq)(h) }

// Lt : ( a b -- flag )
func Lt(h *asm.CodeHolder) { compareOp(asm.CCLess)(h) }

// Gt : ( a b -- flag )
func Gt(h *asm.CodeHolder) { compareOp(asm.CCGreat)(h) }

// Le : ( a b -- flag )
func Le(h *asm.CodeHolder) { compareOp(asm.CCLE)(h) }

// Sqrt : ( n -- sqrt(n) ), integer result via a double round-trip.
func Sqrt(h *asm.CodeHolder) {
	h.Cvtsi2sdRR(asm.XMM0, stackrt.RegTOS)
	h.SqrtsdRR(asm.XMM0, asm.XMM0)
	h.Cvttsd2siRR(stackrt.RegTOS, asm.XMM0)
}

// ToR : ( a -- ) ( R: -- a )
func ToR(h *asm.CodeHolder) {
	h.SubRI(stackrt.RegRSP, 8)
	h.StoreMem(stackrt.RegRSP, 0, stackrt.RegTOS)
	Drop(h)
}

// RFrom : ( -- a ) ( R: a -- )
func RFrom(h *asm.CodeHolder) {
	h.LoadMem(scratch0, stackrt.RegRSP, 0)
	h.AddRI(stackrt.RegRSP, 8)
	stackrt.PushReg(h.Assembler, scratch0)
}

// RFetch : ( -- a ) ( R: a -- a )
func RFetch(h *asm.CodeHolder) {
	h.LoadMem(scratch0, stackrt.RegRSP, 0)
	stackrt.PushReg(h.Assembler, scratch0)
}

// RDrop discards the top return-stack cell.
func RDrop(h *asm.CodeHolder) { h.AddRI(stackrt.RegRSP, 8) }

// RSwap : ( R: a b -- b a ), swaps the top two return-stack cells
// without touching the data stack. Spelled R>R.
func RSwap(h *asm.CodeHolder) {
	h.LoadMem(scratch0, stackrt.RegRSP, 0)
	h.LoadMem(scratch1, stackrt.RegRSP, 8)
	h.StoreMem(stackrt.RegRSP, 0, scratch1)
	h.StoreMem(stackrt.RegRSP, 8, scratch0)
}

// Store : ( v addr -- ), memory store.
func Store(h *asm.CodeHolder) {
	h.MovRR(scratch0, stackrt.RegTOS)  // addr
	h.MovRR(scratch1, stackrt.RegTOS1) // v
	h.StoreMem(scratch0, 0, scratch1)
	Drop(h)
	Drop(h)
}

// CStore : ( c addr -- ), byte store.
func CStore(h *asm.CodeHolder) {
	h.MovRR(scratch0, stackrt.RegTOS)  // addr
	h.MovRR(scratch1, stackrt.RegTOS1) // c
	h.StoreMemByte(scratch0, 0, scratch1)
	Drop(h)
	Drop(h)
}

// Fetch : ( addr -- v )
func Fetch(h *asm.CodeHolder) {
	h.LoadMem(scratch0, stackrt.RegTOS, 0)
	h.MovRR(stackrt.RegTOS, scratch0)
}

// SPFetch : ( -- addr ), pushes the data-stack pointer.
func SPFetch(h *asm.CodeHolder) { stackrt.PushReg(h.Assembler, stackrt.RegDSP) }

// RPFetch : ( -- addr ), pushes the return-stack pointer.
func RPFetch(h *asm.CodeHolder) { stackrt.PushReg(h.Assembler, stackrt.RegRSP) }

// Emit : ( c -- ), routed through the external print adapter at the
// call boundary; the codegen side only needs to hand the character
// off in a fixed register and call out, which the calling convention
// models as a CallAbs to the adapter's C ABI entry point supplied at
// bind time (see internal/let for the same foreign-call shape).
func Emit(fn uintptr) Emitter {
	return func(h *asm.CodeHolder) {
		h.MovRR(asm.RDI, stackrt.RegTOS)
		Drop(h)
		h.CallAbs(scratch0, fn)
	}
}

// floatBin emits a binary double op: both operands are bit-punned
// out of the integer stack cache, combined in XMM, and the result
// punned back.
func floatBin(op func(a *asm.Assembler)) Emitter {
	return func(h *asm.CodeHolder) {
		h.MovqToXMM(asm.XMM0, stackrt.RegTOS1)
		h.MovqToXMM(asm.XMM1, stackrt.RegTOS)
		op(h.Assembler)
		h.MovqFromXMM(scratch0, asm.XMM0)
		h.MovRR(stackrt.RegTOS1, scratch0)
		h.MovRR(stackrt.RegTOS, stackrt.RegTOS1)
		h.LoadMem(stackrt.RegTOS1, stackrt.RegDSP, 0)
		h.AddRI(stackrt.RegDSP, 8)
	}
}

// FAdd, FSub, FMul, FDiv : double arithmetic.
func FAdd(h *asm.CodeHolder) { floatBin(func(a *asm.Assembler) { a.AddsdRR(asm.XMM0, asm.XMM1) })(h) }
func FSub(h *asm.CodeHolder) { floatBin(func(a *asm.Assembler) { a.SubsdRR(asm.XMM0, asm.XMM1) })(h) }
func FMul(h *asm.CodeHolder) { floatBin(func(a *asm.Assembler) { a.MulsdRR(asm.XMM0, asm.XMM1) })(h) }
func FDiv(h *asm.CodeHolder) { floatBin(func(a *asm.Assembler) { a.DivsdRR(asm.XMM0, asm.XMM1) })(h) }

// FSqrt : ( f -- sqrt(f) ), unary, inlined as SQRTSD on XMM0 in place.
func FSqrt(h *asm.CodeHolder) {
	h.MovqToXMM(asm.XMM0, stackrt.RegTOS)
	h.SqrtsdRR(asm.XMM0, asm.XMM0)
	h.MovqFromXMM(scratch0, asm.XMM0)
	h.MovRR(stackrt.RegTOS, scratch0)
}

// FAbs : ( f -- |f| ), clearing the sign bit through the integer ALU
// while the value sits bit-punned in its stack cell anyway.
func FAbs(h *asm.CodeHolder) {
	mask := int64(math.MaxInt64)
	h.MovRegImm64(scratch1, uint64(mask))
	h.AndRR(stackrt.RegTOS, scratch1)
}

// SToF : ( n -- f ), signed int to double.
func SToF(h *asm.CodeHolder) {
	h.Cvtsi2sdRR(asm.XMM0, stackrt.RegTOS)
	h.MovqFromXMM(scratch0, asm.XMM0)
	h.MovRR(stackrt.RegTOS, scratch0)
}

// FToS : ( f -- n ), double to signed int, truncating.
func FToS(h *asm.CodeHolder) {
	h.MovqToXMM(asm.XMM0, stackrt.RegTOS)
	h.Cvttsd2siRR(scratch0, asm.XMM0)
	h.MovRR(stackrt.RegTOS, scratch0)
}

// MathCall wraps a foreign math-ABI unary double routine (sin, cos,
// floor, ...) at target address fn, following the LET compiler's
// foreign-call protocol: the argument travels in xmm0, the target
// loads into rax, the call goes through mathabi's register-swapping
// bridge, and the result returns in xmm0.
func MathCall(fn uintptr) Emitter {
	return func(h *asm.CodeHolder) {
		h.MovqToXMM(asm.XMM0, stackrt.RegTOS)
		h.MovRegImm64(scratch0, uint64(fn))
		h.CallAbs(scratch1, mathabi.BridgeAddr())
		h.MovqFromXMM(scratch1, asm.XMM0)
		h.MovRR(stackrt.RegTOS, scratch1)
	}
}

// MathCall2 wraps a foreign math-ABI binary double routine (fmod,
// remainder, atan2, ...): the first input travels in xmm0, the second
// in xmm1, both popped from the cached TOS/TOS-1 pair.
func MathCall2(fn uintptr) Emitter {
	return func(h *asm.CodeHolder) {
		h.MovqToXMM(asm.XMM0, stackrt.RegTOS1)
		h.MovqToXMM(asm.XMM1, stackrt.RegTOS)
		h.MovRegImm64(scratch0, uint64(fn))
		h.CallAbs(scratch1, mathabi.BridgeAddr())
		h.MovqFromXMM(scratch1, asm.XMM0)
		h.MovRR(stackrt.RegTOS1, scratch1)
		h.MovRR(stackrt.RegTOS, stackrt.RegTOS1)
		h.LoadMem(stackrt.RegTOS1, stackrt.RegDSP, 0)
		h.AddRI(stackrt.RegDSP, 8)
	}
}

// FMod : ( a b -- fmod(a,b) ), foreign call.
func FMod(fn uintptr) Emitter { return MathCall2(fn) }

// FMin, FMax : ( a b -- min/max(a,b) ), inlined via MINSD/MAXSD.
func FMin(h *asm.CodeHolder) { floatBin(func(a *asm.Assembler) { a.MinsdRR(asm.XMM0, asm.XMM1) })(h) }
func FMax(h *asm.CodeHolder) { floatBin(func(a *asm.Assembler) { a.MaxsdRR(asm.XMM0, asm.XMM1) })(h) }

func floatCompareOp(cc asm.CC) Emitter {
	return func(h *asm.CodeHolder) {
		h.MovqToXMM(asm.XMM0, stackrt.RegTOS1)
		h.MovqToXMM(asm.XMM1, stackrt.RegTOS)
		h.UcomisdRR(asm.XMM0, asm.XMM1)
		h.Setcc(cc, scratch0)
		h.MovzxB(scratch0)
		h.NegR(scratch0)
		h.MovRR(stackrt.RegTOS1, scratch0)
		h.MovRR(stackrt.RegTOS, stackrt.RegTOS1)
		h.LoadMem(stackrt.RegTOS1, stackrt.RegDSP, 0)
		h.AddRI(stackrt.RegDSP, 8)
	}
}

// FLt, FGt, FEq : ( a b -- flag ), double comparisons via UCOMISD,
// which reports through CF/ZF, so the unsigned condition codes apply.
func FLt(h *asm.CodeHolder) { floatCompareOp(asm.CCBelow)(h) }
func FGt(h *asm.CodeHolder) { floatCompareOp(asm.CCAbove)(h) }
func FEq(h *asm.CodeHolder) { floatCompareOp(asm.CCEqual)(h) }

// FSin, FCos, FFloor, FRound, FTruncate : unary double ops with no
// direct SSE2 encoding, routed through the foreign math ABI.
func FSin(fn uintptr) Emitter      { return MathCall(fn) }
func FCos(fn uintptr) Emitter      { return MathCall(fn) }
func FFloor(fn uintptr) Emitter    { return MathCall(fn) }
func FRound(fn uintptr) Emitter    { return MathCall(fn) }
func FTruncate(fn uintptr) Emitter { return MathCall(fn) }

// Roll : ( xn ... x0 n -- ... x0 xn ), n is TOS; rotates the n'th cell
// to the top. Implemented as a small loop over memory since n is not
// known until runtime, unlike PICK's non-destructive read.
func Roll(h *asm.CodeHolder) {
	h.MovRR(scratch0, stackrt.RegTOS) // n
	Drop(h)
	// address of xn = RegDSP + (n-2)*8, valid for n >= 2.
	h.ShlImm(scratch0, 3)
	h.SubRI(scratch0, 16)
	h.AddRR(scratch0, stackrt.RegDSP)
	h.LoadMem(scratch1, scratch0, 0) // xn
	// shift every cell above xn down by one slot.
	shiftLoop := h.Label()
	doneLoop := h.Label()
	h.Bind(shiftLoop)
	h.CmpRR(scratch0, stackrt.RegDSP)
	h.Jump(asm.CCLE, doneLoop)
	h.LoadMem(scratch2, scratch0, -8)
	h.StoreMem(scratch0, 0, scratch2)
	h.SubRI(scratch0, 8)
	h.Jump(asm.CCAlways, shiftLoop)
	h.Bind(doneLoop)
	// the lowest memory slot now holds a stale copy of the cell that
	// moved up into xn's old place; release it before pushing xn.
	h.AddRI(stackrt.RegDSP, 8)
	stackrt.PushReg(h.Assembler, scratch1)
}

// SPStore : ( addr -- ), restores DSP from addr and re-caches
// TOS/TOS-1 from the new memory top.
func SPStore(h *asm.CodeHolder) {
	h.MovRR(scratch0, stackrt.RegTOS)
	h.MovRR(stackrt.RegDSP, scratch0)
	h.LoadMem(stackrt.RegTOS, stackrt.RegDSP, 0)
	h.LoadMem(stackrt.RegTOS1, stackrt.RegDSP, 8)
	h.AddRI(stackrt.RegDSP, 16)
}

// RPStore : ( addr -- ), restores RSP' from addr.
func RPStore(h *asm.CodeHolder) {
	h.MovRR(scratch0, stackrt.RegTOS)
	Drop(h)
	h.MovRR(stackrt.RegRSP, scratch0)
}

// TwoToR : ( a b -- ) ( R: -- a b ), transfers both cells to the
// return stack in Forth's conventional order (b on top of R, a
// below), the same SWAP >R >R sequence DO open-codes.
func TwoToR(h *asm.CodeHolder) {
	Swap(h)
	ToR(h)
	ToR(h)
}

// TwoRFrom : ( -- a b ) ( R: a b -- ), the inverse of 2>R.
func TwoRFrom(h *asm.CodeHolder) {
	RFrom(h)
	RFrom(h)
	Swap(h)
}

// TwoRDrop discards the top two return-stack cells.
func TwoRDrop(h *asm.CodeHolder) {
	RDrop(h)
	RDrop(h)
}

// Depth : ( -- n ), (stack_top - DSP)/cell, floored at zero. stackTop
// is the arena's initial DSP value, baked in as an immediate at bind
// time the same way Emit/MathCall bind a foreign address.
func Depth(stackTop uintptr) Emitter {
	return func(h *asm.CodeHolder) {
		h.MovRegImm64(scratch0, uint64(stackTop))
		h.SubRR(scratch0, stackrt.RegDSP)
		h.SarImm(scratch0, 3)
		clampNonNegative(h, scratch0)
		stackrt.PushReg(h.Assembler, scratch0)
	}
}

// clampNonNegative floors reg at zero: if reg < 0, Setcc+AND zeroes
// it, the non-negative floor DEPTH/RDEPTH promise.
func clampNonNegative(h *asm.CodeHolder, reg asm.Reg) {
	h.CmpRI(reg, 0)
	h.Setcc(asm.CCGE, scratch3)
	h.MovzxB(scratch3)
	h.NegR(scratch3)
	h.AndRR(reg, scratch3)
}

// RDepth : ( -- n ), return-stack depth relative to rsTop.
func RDepth(rsTop uintptr) Emitter {
	return func(h *asm.CodeHolder) {
		h.MovRegImm64(scratch0, uint64(rsTop))
		h.SubRR(scratch0, stackrt.RegRSP)
		h.SarImm(scratch0, 3)
		clampNonNegative(h, scratch0)
		stackrt.PushReg(h.Assembler, scratch0)
	}
}

// Dot : ( n -- ), prints n followed by a space through the external
// print adapter fn(int64), matching the REPL's "." convention.
func Dot(fn uintptr) Emitter {
	return func(h *asm.CodeHolder) {
		h.MovRR(asm.RDI, stackrt.RegTOS)
		Drop(h)
		h.CallAbs(scratch0, fn)
	}
}

// Cr, Space, Page, Cls : ( -- ), zero-argument calls into the external
// print adapter.
func Cr(fn uintptr) Emitter    { return nullaryCall(fn) }
func Space(fn uintptr) Emitter { return nullaryCall(fn) }
func Page(fn uintptr) Emitter  { return nullaryCall(fn) }
func Cls(fn uintptr) Emitter   { return nullaryCall(fn) }

func nullaryCall(fn uintptr) Emitter {
	return func(h *asm.CodeHolder) { h.CallAbs(scratch0, fn) }
}

// --- Peephole-fused emitters (internal/optimizer's OPTIMIZED opcodes) ---

// AddImm, SubImm, MulImm : ( a -- a OP n ), the "NUMBER OP" folds as
// single immediate-operand instructions.
func AddImm(n int64) Emitter {
	return func(h *asm.CodeHolder) { h.AddRI(stackrt.RegTOS, int32(n)) }
}
func SubImm(n int64) Emitter {
	return func(h *asm.CodeHolder) { h.SubRI(stackrt.RegTOS, int32(n)) }
}
func MulImm(n int64) Emitter {
	return func(h *asm.CodeHolder) {
		h.MovRegImm64(scratch0, uint64(n))
		h.ImulRR(stackrt.RegTOS, scratch0)
	}
}

// DivImm : ( a -- a/n ), n != 0 (the optimizer rejects ÷0 at compile
// time before ever synthesizing this opcode).
func DivImm(n int64) Emitter {
	return func(h *asm.CodeHolder) {
		h.MovRR(asm.RAX, stackrt.RegTOS)
		h.Cqo()
		h.MovRegImm64(scratch1, uint64(n))
		h.IdivR(scratch1)
		h.MovRR(stackrt.RegTOS, asm.RAX)
	}
}

// ShlImmOp, ShrImmOp : ( a -- a*2^k ) / ( a -- a/2^k ), the
// power-of-two fast paths carved out of MUL_IMM/DIV_IMM.
func ShlImmOp(k int64) Emitter {
	return func(h *asm.CodeHolder) { h.ShlImm(stackrt.RegTOS, byte(k)) }
}
func ShrImmOp(k int64) Emitter {
	return func(h *asm.CodeHolder) { h.SarImm(stackrt.RegTOS, byte(k)) }
}

func compareImmOp(cc asm.CC, n int64) Emitter {
	return func(h *asm.CodeHolder) {
		h.CmpRI(stackrt.RegTOS, int32(n))
		h.Setcc(cc, scratch0)
		h.MovzxB(scratch0)
		h.NegR(scratch0)
		h.MovRR(stackrt.RegTOS, scratch0)
	}
}

// CmpLtImm, CmpGtImm, CmpEqImm : ( a -- flag ), the "NUMBER CMP"
// folds.
func CmpLtImm(n int64) Emitter { return compareImmOp(asm.CCLess, n) }
func CmpGtImm(n int64) Emitter { return compareImmOp(asm.CCGreat, n) }
func CmpEqImm(n int64) Emitter { return compareImmOp(asm.CCEqual, n) }

// IncRFetch, DecRFetch : fuse "R> n + >R" / "R> n - >R" into a direct
// adjustment of the top return-stack cell, leaving the data stack
// untouched.
func IncRFetch(n int64) Emitter {
	return func(h *asm.CodeHolder) {
		h.LoadMem(scratch0, stackrt.RegRSP, 0)
		h.AddRI(scratch0, int32(n))
		h.StoreMem(stackrt.RegRSP, 0, scratch0)
	}
}
func DecRFetch(n int64) Emitter {
	return func(h *asm.CodeHolder) {
		h.LoadMem(scratch0, stackrt.RegRSP, 0)
		h.SubRI(scratch0, int32(n))
		h.StoreMem(stackrt.RegRSP, 0, scratch0)
	}
}

// RFetchStoreCell, RFetchStoreByte : fuse "R@ !" / "R@ C!" into a
// direct store to the address held on the return stack, consuming the
// value that was on TOS before the fusion — R@ never materializes an
// intermediate address on the data stack.
func RFetchStoreCell(h *asm.CodeHolder) {
	h.LoadMem(scratch0, stackrt.RegRSP, 0)
	h.StoreMem(scratch0, 0, stackrt.RegTOS)
	Drop(h)
}
func RFetchStoreByte(h *asm.CodeHolder) {
	h.LoadMem(scratch0, stackrt.RegRSP, 0)
	h.StoreMemByte(scratch0, 0, stackrt.RegTOS)
	Drop(h)
}

// VarAddr : ( -- addr ), the body a VARIABLE/CREATE word compiles to.
// The region's base address is loaded through the allocation's stable
// address cell rather than baked in directly, so code compiled before
// an ALLOT resize keeps addressing the relocated region.
func VarAddr(cell uintptr) Emitter {
	return func(h *asm.CodeHolder) {
		h.MovRegImm64(scratch0, uint64(cell))
		h.LoadMem(scratch1, scratch0, 0)
		stackrt.PushReg(h.Assembler, scratch1)
	}
}

// VarFetch, VarStore : fuse "VAR @" / "VAR !" into a load/store
// against the variable's region, skipping the intermediate address
// push. Same stable-cell indirection as VarAddr.
func VarFetch(cell uintptr) Emitter {
	return func(h *asm.CodeHolder) {
		h.MovRegImm64(scratch0, uint64(cell))
		h.LoadMem(scratch0, scratch0, 0)
		h.LoadMem(scratch1, scratch0, 0)
		stackrt.PushReg(h.Assembler, scratch1)
	}
}
func VarStore(cell uintptr) Emitter {
	return func(h *asm.CodeHolder) {
		h.MovRegImm64(scratch0, uint64(cell))
		h.LoadMem(scratch0, scratch0, 0)
		h.StoreMem(scratch0, 0, stackrt.RegTOS)
		Drop(h)
	}
}

// LeaTOS : fuse "DUP +" into TOS = TOS+TOS in place — net stack depth
// is unchanged since DUP's push is immediately consumed by the
// following +.
func LeaTOS(h *asm.CodeHolder) { h.AddRR(stackrt.RegTOS, stackrt.RegTOS) }

// MovTOS1 : fuse "SWAP DROP" into the NIP stack effect (a b -- b).
func MovTOS1(h *asm.CodeHolder) { Nip(h) }

// DotQuote : ( -- ), prints the literal string at addr/len through the
// external print adapter fn(addr, len); the string bytes themselves
// are interned by the (out-of-scope) tokenizer/string storage and
// handed to this emitter as a fixed address, mirroring Emit/Dot's
// "hand off to the C ABI adapter" shape.
func DotQuote(fn uintptr, addr uintptr, length int) Emitter {
	return func(h *asm.CodeHolder) {
		h.MovRegImm64(asm.RDI, uint64(addr))
		h.MovRegImm64(asm.RSI, uint64(length))
		h.CallAbs(scratch0, fn)
	}
}
