package let

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/albanforth/jitforth/internal/asm"
)

// compiles checks that Compile produces non-empty, panic-free machine
// code for src. Like internal/codegen's own tests, it never invokes the
// result: a LET-compiled body pops/pushes through stackrt's R12-R15
// stack-caching registers, which alias the host Go runtime's own
// register usage and can only be safely run inside the full
// interpreter's calling context.
func compiles(t *testing.T, src string) *asm.CodeHolder {
	t.Helper()
	h := asm.NewCodeHolder(nil)
	h.Start()
	assert.NotPanics(t, func() { Compile(h, Parse(src)) }, src)
	assert.NotEmpty(t, h.Bytes(), src)
	return h
}

func TestCompileSimpleArithmetic(t *testing.T) {
	compiles(t, "LET (y) = FN (x) = x + 1;")
}

func TestCompileMultipleOutputs(t *testing.T) {
	compiles(t, "LET (a,b) = FN (x,y) = x+y, x-y;")
}

func TestCompileWhereBinding(t *testing.T) {
	compiles(t, "LET (y) = FN (x) = c*x WHERE c = 2.5;")
}

func TestCompileChainedWhereBindings(t *testing.T) {
	compiles(t, "LET (y) = FN (x) = a+b WHERE a = x*2, b = a+1;")
}

func TestCompileUnaryMinus(t *testing.T) {
	compiles(t, "LET (y) = FN (x) = -x;")
}

func TestCompilePowerOperator(t *testing.T) {
	compiles(t, "LET (y) = FN (x) = x^2;")
}

func TestCompileUnaryFunctionCall(t *testing.T) {
	compiles(t, "LET (y) = FN (x) = sqrt(x);")
}

func TestCompileBinaryFunctionCall(t *testing.T) {
	compiles(t, "LET (y) = FN (x,z) = atan2(x,z);")
}

func TestCompileRepeatedVariableUse(t *testing.T) {
	compiles(t, "LET (y) = FN (x) = x*x + x;")
}

func TestCompileRepeatedLiteralIsShared(t *testing.T) {
	compiles(t, "LET (y) = FN (x) = x*2 + 2;")
}

func TestCompileFullyConstantWhereBindingFolds(t *testing.T) {
	h := compiles(t, "LET (y) = FN (x) = x*k WHERE k = 2+3;")
	assert.NotEmpty(t, h.Bytes())
}

func TestCompileUnusedInputStillBalancesStack(t *testing.T) {
	compiles(t, "LET (y) = FN (x,u) = x+1;")
}

func TestCompileRegisterPressureManyTerms(t *testing.T) {
	compiles(t, "LET (y) = FN (a,b,c,d,e,f,g,h,i,j) = a+b+c+d+e+f+g+h+i+j;")
}

func TestCompileOutputMismatchPanics(t *testing.T) {
	h := asm.NewCodeHolder(nil)
	h.Start()
	assert.Panics(t, func() {
		Compile(h, &Statement{
			Outputs: []string{"a", "b"},
			Inputs:  []string{"x"},
			Results: []*Node{{Kind: NVariable, Name: "x"}},
		})
	})
}
