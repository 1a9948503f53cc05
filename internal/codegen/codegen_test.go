package codegen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/albanforth/jitforth/internal/asm"
	"github.com/albanforth/jitforth/internal/codegen"
)

// These tests check that every emitter produces non-empty, panic-free
// machine code. They do not execute the emitted code: the stack-caching
// convention dedicates R12-R15 across the whole process, registers the
// host Go runtime also relies on, so running a freshly emitted body
// safely requires the full interpreter's calling context, not a bare
// unit test.
func emits(t *testing.T, name string, emit codegen.Emitter) {
	t.Helper()
	h := asm.NewCodeHolder(nil)
	h.Start()
	assert.NotPanics(t, func() { emit(h) }, name)
	assert.NotEmpty(t, h.Bytes(), name)
}

func TestStackOpsEmit(t *testing.T) {
	emits(t, "dup", codegen.Dup)
	emits(t, "drop", codegen.Drop)
	emits(t, "swap", codegen.Swap)
	emits(t, "over", codegen.Over)
	emits(t, "nip", codegen.Nip)
	emits(t, "tuck", codegen.Tuck)
	emits(t, "rot", codegen.Rot)
	emits(t, "-rot", codegen.MinusRot)
	emits(t, "2dup", codegen.TwoDup)
	emits(t, "2drop", codegen.TwoDrop)
	emits(t, "2over", codegen.TwoOver)
	emits(t, "pick", codegen.Pick)
}

func TestArithOpsEmit(t *testing.T) {
	emits(t, "+", codegen.Add)
	emits(t, "-", codegen.Sub)
	emits(t, "*", codegen.Mul)
	emits(t, "/", codegen.Div)
	emits(t, "mod", codegen.Mod)
	emits(t, "/mod", codegen.DivMod)
	emits(t, "and", codegen.And)
	emits(t, "or", codegen.Or)
	emits(t, "xor", codegen.Xor)
	emits(t, "not", codegen.Not)
	emits(t, "sqrt", codegen.Sqrt)
}

func TestCompareOpsEmit(t *testing.T) {
	emits(t, "=", codegen.Eq)
	emits(t, "<>", codegen.Ne)
	emits(t, "<", codegen.Lt)
	emits(t, ">", codegen.Gt)
	emits(t, "<=", codegen.Le)
}

func TestReturnStackOpsEmit(t *testing.T) {
	emits(t, ">r", codegen.ToR)
	emits(t, "r>", codegen.RFrom)
	emits(t, "r@", codegen.RFetch)
	emits(t, "rdrop", codegen.RDrop)
}

func TestMemoryOpsEmit(t *testing.T) {
	emits(t, "!", codegen.Store)
	emits(t, "@", codegen.Fetch)
	emits(t, "sp@", codegen.SPFetch)
	emits(t, "rp@", codegen.RPFetch)
}

func TestFloatOpsEmit(t *testing.T) {
	emits(t, "f+", codegen.FAdd)
	emits(t, "f-", codegen.FSub)
	emits(t, "f*", codegen.FMul)
	emits(t, "f/", codegen.FDiv)
	emits(t, "fsqrt", codegen.FSqrt)
	emits(t, "fabs", codegen.FAbs)
	emits(t, "s>f", codegen.SToF)
	emits(t, "f>s", codegen.FToS)
}

func TestExtendedStackOpsEmit(t *testing.T) {
	emits(t, "roll", codegen.Roll)
	emits(t, "sp!", codegen.SPStore)
	emits(t, "rp!", codegen.RPStore)
	emits(t, "2>r", codegen.TwoToR)
	emits(t, "2r>", codegen.TwoRFrom)
	emits(t, "2rdrop", codegen.TwoRDrop)
	emits(t, "depth", codegen.Depth(0x7f0000000000))
	emits(t, "rdepth", codegen.RDepth(0x7f0000100000))
}

func TestExtendedFloatOpsEmit(t *testing.T) {
	emits(t, "fmin", codegen.FMin)
	emits(t, "fmax", codegen.FMax)
	emits(t, "f<", codegen.FLt)
	emits(t, "f>", codegen.FGt)
	emits(t, "f=", codegen.FEq)
	emits(t, "fmod", codegen.FMod(0x1000))
	emits(t, "sin", codegen.FSin(0x1000))
	emits(t, "floor", codegen.FFloor(0x1000))
}

func TestIOOpsEmit(t *testing.T) {
	emits(t, ".", codegen.Dot(0x1000))
	emits(t, "cr", codegen.Cr(0x1000))
	emits(t, "space", codegen.Space(0x1000))
	emits(t, "page", codegen.Page(0x1000))
	emits(t, "cls", codegen.Cls(0x1000))
	emits(t, ".\"", codegen.DotQuote(0x1000, 0x2000, 5))
}

func TestFusedOpsEmit(t *testing.T) {
	emits(t, "add_imm", codegen.AddImm(3))
	emits(t, "sub_imm", codegen.SubImm(3))
	emits(t, "mul_imm", codegen.MulImm(3))
	emits(t, "div_imm", codegen.DivImm(3))
	emits(t, "shl_imm", codegen.ShlImmOp(2))
	emits(t, "shr_imm", codegen.ShrImmOp(2))
	emits(t, "cmp_lt_imm", codegen.CmpLtImm(3))
	emits(t, "cmp_gt_imm", codegen.CmpGtImm(3))
	emits(t, "cmp_eq_imm", codegen.CmpEqImm(3))
	emits(t, "inc_r@", codegen.IncRFetch(1))
	emits(t, "dec_r@", codegen.DecRFetch(1))
	emits(t, "r@_!", codegen.RFetchStoreCell)
	emits(t, "r@_c!", codegen.RFetchStoreByte)
	emits(t, "var_@", codegen.VarFetch(0x4000))
	emits(t, "var_!", codegen.VarStore(0x4000))
	emits(t, "lea_tos", codegen.LeaTOS)
	emits(t, "mov_tos_1", codegen.MovTOS1)
}

func TestStandaloneWrapsEmitter(t *testing.T) {
	wrapped := codegen.Standalone(codegen.Dup)
	h := asm.NewCodeHolder(nil)
	h.Start()
	wrapped(h)
	fn, err := h.Finalize()
	assert.NoError(t, err)
	assert.NotNil(t, fn)
}
