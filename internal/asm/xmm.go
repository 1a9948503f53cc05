package asm

// XMM identifies an XMM register by its 4-bit id (same numbering as a
// Reg, just a distinct type so the two operand spaces can't be
// confused at a call site).
type XMM int

// XMM registers.
const (
	XMM0 XMM = iota
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM8
	XMM9
	XMM10
	XMM11
	XMM12
	XMM13
	XMM14
	XMM15
)

// rexXR builds a REX prefix for an instruction whose ModR/M reg field
// is r and whose rm field is m, folding in REX.W when w is set — the
// same REX.R/REX.B placement the GPR encoder in regs.go uses for
// mod=11 operands.
func rexXR(w bool, r, m int) (rex byte, need bool) {
	rex = 0x40
	if w {
		rex |= 0x08
	}
	if r >= 8 {
		rex |= 0x04
	}
	if m >= 8 {
		rex |= 0x01
	}
	return rex, w || r >= 8 || m >= 8
}

func modrmXX(r, m int) byte { return 0xc0 | byte(r&7)<<3 | byte(m&7) }

func (a *Assembler) emitSSE2(prefix byte, w bool, opcodes []byte, r, m int) {
	if prefix != 0 {
		a.byte(prefix)
	}
	if rex, need := rexXR(w, r, m); need {
		a.byte(rex)
	}
	a.bytes(opcodes...)
	a.byte(modrmXX(r, m))
}

// MovsdRR emits `movsd dst, src` (scalar double move, register form).
func (a *Assembler) MovsdRR(dst, src XMM) { a.emitSSE2(0xf2, false, []byte{0x0f, 0x10}, int(dst), int(src)) }

// AddsdRR emits `addsd dst, src`.
func (a *Assembler) AddsdRR(dst, src XMM) { a.emitSSE2(0xf2, false, []byte{0x0f, 0x58}, int(dst), int(src)) }

// SubsdRR emits `subsd dst, src`.
func (a *Assembler) SubsdRR(dst, src XMM) { a.emitSSE2(0xf2, false, []byte{0x0f, 0x5c}, int(dst), int(src)) }

// MulsdRR emits `mulsd dst, src`.
func (a *Assembler) MulsdRR(dst, src XMM) { a.emitSSE2(0xf2, false, []byte{0x0f, 0x59}, int(dst), int(src)) }

// DivsdRR emits `divsd dst, src`.
func (a *Assembler) DivsdRR(dst, src XMM) { a.emitSSE2(0xf2, false, []byte{0x0f, 0x5e}, int(dst), int(src)) }

// SqrtsdRR emits `sqrtsd dst, src`.
func (a *Assembler) SqrtsdRR(dst, src XMM) {
	a.emitSSE2(0xf2, false, []byte{0x0f, 0x51}, int(dst), int(src))
}

// MinsdRR emits `minsd dst, src`.
func (a *Assembler) MinsdRR(dst, src XMM) { a.emitSSE2(0xf2, false, []byte{0x0f, 0x5d}, int(dst), int(src)) }

// MaxsdRR emits `maxsd dst, src`.
func (a *Assembler) MaxsdRR(dst, src XMM) { a.emitSSE2(0xf2, false, []byte{0x0f, 0x5f}, int(dst), int(src)) }

// UcomisdRR emits `ucomisd a, b`, setting flags for a subsequent Setcc.
func (a *Assembler) UcomisdRR(x, y XMM) { a.emitSSE2(0x66, false, []byte{0x0f, 0x2e}, int(x), int(y)) }

// PxorRR emits `pxor dst, src` — the idiomatic way to zero an XMM
// register without touching memory.
func (a *Assembler) PxorRR(dst, src XMM) { a.emitSSE2(0x66, false, []byte{0x0f, 0xef}, int(dst), int(src)) }

// Cvtsi2sdRR emits `cvtsi2sd dst, src` (64-bit GPR to double).
func (a *Assembler) Cvtsi2sdRR(dst XMM, src Reg) {
	a.emitSSE2(0xf2, true, []byte{0x0f, 0x2a}, int(dst), int(src))
}

// Cvttsd2siRR emits `cvttsd2si dst, src` (double to 64-bit GPR,
// truncating).
func (a *Assembler) Cvttsd2siRR(dst Reg, src XMM) {
	a.emitSSE2(0xf2, true, []byte{0x0f, 0x2c}, int(dst), int(src))
}

// MovqToXMM emits `movq xmm, r64` — a raw 64-bit bit-pattern move used
// to spill/reload an XMM register through a GPR when no memory operand
// is available.
func (a *Assembler) MovqToXMM(dst XMM, src Reg) {
	a.emitSSE2(0x66, true, []byte{0x0f, 0x6e}, int(dst), int(src))
}

// MovqFromXMM emits `movq r64, xmm`.
func (a *Assembler) MovqFromXMM(dst Reg, src XMM) {
	a.emitSSE2(0x66, true, []byte{0x0f, 0x7e}, int(src), int(dst))
}

// MovsdLoad emits `movsd dst, [base+off]`.
func (a *Assembler) MovsdLoad(dst XMM, base Reg, off int32) {
	a.byte(0xf2)
	if rex, need := rexXR(false, int(dst), int(base)); need || base >= 8 {
		a.byte(rex)
	}
	a.bytes(0x0f, 0x10)
	a.emitMemOperand(int(dst), base, off)
}

// MovsdStore emits `movsd [base+off], src`.
func (a *Assembler) MovsdStore(base Reg, off int32, src XMM) {
	a.byte(0xf2)
	if rex, need := rexXR(false, int(src), int(base)); need || base >= 8 {
		a.byte(rex)
	}
	a.bytes(0x0f, 0x11)
	a.emitMemOperand(int(src), base, off)
}

// emitMemOperand emits the ModR/M (+ SIB/disp) bytes for [base+off]
// with ModR/M.reg = regField, mirroring LoadMem/StoreMem's disp8/disp32
// selection in regs.go.
func (a *Assembler) emitMemOperand(regField int, base Reg, off int32) {
	if off == 0 && (base&7) != RBP {
		a.byte(byte(regField&7)<<3 | byte(base&7))
		if base&7 == RSP {
			a.byte(0x24)
		}
		return
	}
	if off >= -128 && off <= 127 {
		if base&7 == RSP {
			a.bytes(0x44|byte(regField&7)<<3, 0x24, byte(off))
		} else {
			a.bytes(0x40|byte(regField&7)<<3|byte(base&7), byte(off))
		}
		return
	}
	if base&7 == RSP {
		a.bytes(0x84|byte(regField&7)<<3, 0x24)
	} else {
		a.byte(0x80 | byte(regField&7)<<3 | byte(base&7))
	}
	a.u32(uint32(off))
}
