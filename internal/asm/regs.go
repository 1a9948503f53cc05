// Package asm hand-encodes x86-64 machine code and manages the
// executable buffer a compiled word's body is emitted into. The
// instruction surface is exactly what the primitive and LET emitters
// need — REX-prefixed GPR forms here, scalar-double SSE2 in xmm.go —
// not a general assembler.
package asm

// Reg names a general-purpose register by its 4-bit id as the REX.B/
// ModR/M fields encode it.
type Reg int

// General-purpose registers.
const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// CC is a condition code for Jcc/Setcc.
type CC byte

// Condition codes.
const (
	CCAlways CC = 0 // sentinel: Jump emits an unconditional jmp
	CCEqual  CC = 0x84
	CCNotEq  CC = 0x85
	CCLess   CC = 0x8C
	CCGE     CC = 0x8D
	CCLE     CC = 0x8E
	CCGreat  CC = 0x8F
	CCBelow  CC = 0x82 // unsigned/CF comparisons, as UCOMISD sets
	CCAbove  CC = 0x87
	CCAbvEq  CC = 0x83
	CCNotS   CC = 0x89
)

func rexRR(dst, src Reg) byte {
	rex := byte(0x48)
	if dst >= 8 {
		rex |= 0x04
	}
	if src >= 8 {
		rex |= 0x01
	}
	return rex
}

func modrmRR(dst, src Reg) byte {
	return byte(0xc0 | (byte(dst&7) << 3) | byte(src&7))
}

// MovRegImm64 emits `movabs reg, imm64`.
func (a *Assembler) MovRegImm64(reg Reg, val uint64) {
	rex := byte(0x48)
	if reg >= 8 {
		rex = 0x49
	}
	a.byte(rex)
	a.byte(0xb8 + byte(reg&7))
	a.u64(val)
}

// PushR emits `push reg`.
func (a *Assembler) PushR(reg Reg) {
	if reg >= 8 {
		a.bytes(0x41, 0x50+byte(reg&7))
	} else {
		a.byte(0x50 + byte(reg))
	}
}

// PopR emits `pop reg`.
func (a *Assembler) PopR(reg Reg) {
	if reg >= 8 {
		a.bytes(0x41, 0x58+byte(reg&7))
	} else {
		a.byte(0x58 + byte(reg))
	}
}

// MovRR emits `mov dst, src`.
func (a *Assembler) MovRR(dst, src Reg) { a.bytes(rexRR(src, dst), 0x89, modrmRR(src, dst)) }

// AddRR emits `add dst, src`.
func (a *Assembler) AddRR(dst, src Reg) { a.bytes(rexRR(src, dst), 0x01, modrmRR(src, dst)) }

// SubRR emits `sub dst, src`.
func (a *Assembler) SubRR(dst, src Reg) { a.bytes(rexRR(src, dst), 0x29, modrmRR(src, dst)) }

// AndRR emits `and dst, src`.
func (a *Assembler) AndRR(dst, src Reg) { a.bytes(rexRR(src, dst), 0x21, modrmRR(src, dst)) }

// OrRR emits `or dst, src`.
func (a *Assembler) OrRR(dst, src Reg) { a.bytes(rexRR(src, dst), 0x09, modrmRR(src, dst)) }

// XorRR emits `xor dst, src`.
func (a *Assembler) XorRR(dst, src Reg) { a.bytes(rexRR(src, dst), 0x31, modrmRR(src, dst)) }

// CmpRR emits `cmp a, b`.
func (a *Assembler) CmpRR(x, y Reg) { a.bytes(rexRR(y, x), 0x39, modrmRR(y, x)) }

// TestRR emits `test a, b`.
func (a *Assembler) TestRR(x, y Reg) { a.bytes(rexRR(y, x), 0x85, modrmRR(y, x)) }

// ImulRR emits `imul dst, src`.
func (a *Assembler) ImulRR(dst, src Reg) { a.bytes(rexRR(dst, src), 0x0f, 0xaf, modrmRR(dst, src)) }

// ImulR emits the one-operand `imul reg`, leaving the full 128-bit
// product of rax and reg in rdx:rax.
func (a *Assembler) ImulR(reg Reg) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	a.bytes(rex, 0xf7, 0xe8|byte(reg&7))
}

// NegR emits `neg reg`.
func (a *Assembler) NegR(reg Reg) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	a.bytes(rex, 0xf7, 0xd8|byte(reg&7))
}

// Cqo emits `cqo` (sign-extend rax into rdx:rax).
func (a *Assembler) Cqo() { a.bytes(0x48, 0x99) }

// IdivR emits `idiv reg`.
func (a *Assembler) IdivR(reg Reg) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	a.bytes(rex, 0xf7, 0xf8|byte(reg&7))
}

// ShlCl emits `shl reg, cl`.
func (a *Assembler) ShlCl(reg Reg) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	a.bytes(rex, 0xd3, 0xe0|byte(reg&7))
}

// ShlImm emits `shl reg, imm8`.
func (a *Assembler) ShlImm(reg Reg, n byte) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	a.bytes(rex, 0xc1, 0xe0|byte(reg&7), n)
}

// SarCl emits `sar reg, cl`.
func (a *Assembler) SarCl(reg Reg) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	a.bytes(rex, 0xd3, 0xf8|byte(reg&7))
}

// SarImm emits `sar reg, imm8` (arithmetic right shift).
func (a *Assembler) SarImm(reg Reg, n byte) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	a.bytes(rex, 0xc1, 0xf8|byte(reg&7), n)
}

// AddRI emits `add reg, imm`, auto-selecting imm8 or imm32 form.
func (a *Assembler) AddRI(reg Reg, val int32) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	if val >= -128 && val <= 127 {
		a.bytes(rex, 0x83, 0xc0|byte(reg&7), byte(val))
	} else if reg == RAX {
		a.bytes(rex, 0x05)
		a.u32(uint32(val))
	} else {
		a.bytes(rex, 0x81, 0xc0|byte(reg&7))
		a.u32(uint32(val))
	}
}

// SubRI emits `sub reg, imm`.
func (a *Assembler) SubRI(reg Reg, val int32) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	if val >= -128 && val <= 127 {
		a.bytes(rex, 0x83, 0xe8|byte(reg&7), byte(val))
	} else {
		a.bytes(rex, 0x81, 0xe8|byte(reg&7))
		a.u32(uint32(val))
	}
}

// CmpRI emits `cmp reg, imm`.
func (a *Assembler) CmpRI(reg Reg, val int32) {
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x01
	}
	if val >= -128 && val <= 127 {
		a.bytes(rex, 0x83, 0xf8|byte(reg&7), byte(val))
	} else {
		a.bytes(rex, 0x81, 0xf8|byte(reg&7))
		a.u32(uint32(val))
	}
}

// LoadMem emits `mov dst, [base+off]`.
func (a *Assembler) LoadMem(dst, base Reg, off int32) {
	rex := rexRR(dst, base)
	if off == 0 && (base&7) != RBP {
		a.bytes(rex, 0x8b, byte(dst&7)<<3|byte(base&7))
		if base&7 == RSP {
			a.byte(0x24)
		}
	} else if off >= -128 && off <= 127 {
		a.byte(rex)
		a.byte(0x8b)
		if base&7 == RSP {
			a.bytes(0x44|byte(dst&7)<<3, 0x24, byte(off))
		} else {
			a.bytes(0x40|byte(dst&7)<<3|byte(base&7), byte(off))
		}
	} else {
		a.byte(rex)
		a.byte(0x8b)
		if base&7 == RSP {
			a.bytes(0x84|byte(dst&7)<<3, 0x24)
		} else {
			a.byte(0x80 | byte(dst&7)<<3 | byte(base&7))
		}
		a.u32(uint32(off))
	}
}

// StoreMem emits `mov [base+off], src`.
func (a *Assembler) StoreMem(base Reg, off int32, src Reg) {
	rex := rexRR(src, base)
	if off == 0 && (base&7) != RBP {
		a.bytes(rex, 0x89, byte(src&7)<<3|byte(base&7))
		if base&7 == RSP {
			a.byte(0x24)
		}
	} else if off >= -128 && off <= 127 {
		a.byte(rex)
		a.byte(0x89)
		if base&7 == RSP {
			a.bytes(0x44|byte(src&7)<<3, 0x24, byte(off))
		} else {
			a.bytes(0x40|byte(src&7)<<3|byte(base&7), byte(off))
		}
	} else {
		a.byte(rex)
		a.byte(0x89)
		if base&7 == RSP {
			a.bytes(0x84|byte(src&7)<<3, 0x24)
		} else {
			a.byte(0x80 | byte(src&7)<<3 | byte(base&7))
		}
		a.u32(uint32(off))
	}
}

// StoreMemByte emits `mov byte [base+off], src_lo8`. REX is always
// emitted (even when not otherwise required) so SPL/BPL/SIL/DIL address
// their low byte instead of aliasing AH/CH/DH/BH, mirroring StoreMem's
// width-8 sibling.
func (a *Assembler) StoreMemByte(base Reg, off int32, src Reg) {
	rex := rexRR(src, base)
	a.byte(rex)
	if off == 0 && (base&7) != RBP {
		a.bytes(0x88, byte(src&7)<<3|byte(base&7))
		if base&7 == RSP {
			a.byte(0x24)
		}
	} else if off >= -128 && off <= 127 {
		a.byte(0x88)
		if base&7 == RSP {
			a.bytes(0x44|byte(src&7)<<3, 0x24, byte(off))
		} else {
			a.bytes(0x40|byte(src&7)<<3|byte(base&7), byte(off))
		}
	} else {
		a.byte(0x88)
		if base&7 == RSP {
			a.bytes(0x84|byte(src&7)<<3, 0x24)
		} else {
			a.byte(0x80 | byte(src&7)<<3 | byte(base&7))
		}
		a.u32(uint32(off))
	}
}

// Setcc emits `setCC reg_lo8`.
func (a *Assembler) Setcc(cc CC, reg Reg) {
	op := byte(0x90 | (byte(cc) & 0x0f))
	if reg >= 8 {
		a.bytes(0x41, 0x0f, op, 0xc0|byte(reg&7))
	} else {
		a.bytes(0x0f, op, 0xc0|byte(reg&7))
	}
}

// MovzxB emits `movzx reg, reg_lo8`.
func (a *Assembler) MovzxB(reg Reg) { a.bytes(rexRR(reg, reg), 0x0f, 0xb6, modrmRR(reg, reg)) }

// Ret emits `ret`.
func (a *Assembler) Ret() { a.byte(0xc3) }
