package main

import (
	"bytes"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albanforth/jitforth/internal/signalx"
)

type jitTestCases []jitTestCase

func (jts jitTestCases) run(t *testing.T) {
	for _, jt := range jts {
		if !t.Run(jt.name, jt.run) {
			return
		}
	}
}

func jitTest(name string) (jt jitTestCase) {
	jt.name = name
	return jt
}

// jitTestCase builds up one end-to-end scenario: source lines fed to a
// fresh Interpreter, then expectations over the output text, the
// drained data stack, raised signals, and dictionary contents.
type jitTestCase struct {
	name       string
	opts       []InterpreterOption
	lines      []string
	expect     []func(t *testing.T, res *jitResult)
	wantSignal bool
}

type jitResult struct {
	in    *Interpreter
	out   bytes.Buffer
	sigs  []*signalx.Signal
	stack []int64 // drained post-run, bottom to top
}

func (jt jitTestCase) apply(wraps ...func(jitTestCase) jitTestCase) jitTestCase {
	for _, wrap := range wraps {
		jt = wrap(jt)
	}
	return jt
}

func (jt jitTestCase) withOptions(opts ...InterpreterOption) jitTestCase {
	jt.opts = append(jt.opts, opts...)
	return jt
}

func (jt jitTestCase) withInput(lines ...string) jitTestCase {
	jt.lines = append(jt.lines, lines...)
	return jt
}

func (jt jitTestCase) expectOutput(s string) jitTestCase {
	jt.expect = append(jt.expect, func(t *testing.T, res *jitResult) {
		assert.Equal(t, s, res.out.String(), "output")
	})
	return jt
}

func (jt jitTestCase) expectStack(values ...int64) jitTestCase {
	jt.expect = append(jt.expect, func(t *testing.T, res *jitResult) {
		assert.Equal(t, values, res.stack, "stack (bottom to top)")
	})
	return jt
}

// expectFloatStack compares the drained stack cells as doubles within
// tol, bottom to top.
func (jt jitTestCase) expectFloatStack(tol float64, values ...float64) jitTestCase {
	jt.expect = append(jt.expect, func(t *testing.T, res *jitResult) {
		require.Len(t, res.stack, len(values), "float stack depth")
		for i, want := range values {
			got := math.Float64frombits(uint64(res.stack[i]))
			assert.InDelta(t, want, got, tol, "stack[%d]", i)
		}
	})
	return jt
}

func (jt jitTestCase) expectSignal(code signalx.Code) jitTestCase {
	jt.wantSignal = true
	jt.expect = append(jt.expect, func(t *testing.T, res *jitResult) {
		require.NotEmpty(t, res.sigs, "expected a signal")
		assert.Equal(t, code, res.sigs[0].Code, "signal code")
	})
	return jt
}

func (jt jitTestCase) expectWord(name string) jitTestCase {
	jt.expect = append(jt.expect, func(t *testing.T, res *jitResult) {
		assert.NotNil(t, res.in.Dict().Find(name), "expected %q defined", name)
	})
	return jt
}

func (jt jitTestCase) expectNoWord(name string) jitTestCase {
	jt.expect = append(jt.expect, func(t *testing.T, res *jitResult) {
		assert.Nil(t, res.in.Dict().Find(name), "expected %q gone", name)
	})
	return jt
}

func (jt jitTestCase) run(t *testing.T) {
	res := &jitResult{}
	res.in = New(append([]InterpreterOption{WithOutput(&res.out)}, jt.opts...)...)

	for _, line := range jt.lines {
		signalx.Trap(signalx.HandlerFunc(func(sig *signalx.Signal) {
			res.sigs = append(res.sigs, sig)
		}), func() { res.in.Feed(line) })
	}

	for res.in.depth() > 0 {
		res.stack = append([]int64{res.in.pop()}, res.stack...)
	}

	if !jt.wantSignal {
		require.Empty(t, res.sigs, "unexpected signal")
	}
	for _, expect := range jt.expect {
		expect(t, res)
	}
}

func TestScenarios(t *testing.T) {
	jitTestCases{
		jitTest("square").
			withInput(": SQ DUP * ;", "5 SQ .").
			expectOutput("25 "),

		jitTest("fib").
			withInput(": FIB 0 1 ROT 0 DO OVER + SWAP LOOP DROP ;", "10 FIB .").
			expectOutput("55 "),

		jitTest("while loop").
			withInput(": TW 1 BEGIN DUP 10 < WHILE DUP . 1 + REPEAT DROP ;", "TW").
			expectOutput("1 2 3 4 5 6 7 8 9 "),

		jitTest("let quadratic").
			withInput(": Q LET (y) = FN(x) = x*x + 2*x + 1 ;", "3 s>f Q f.").
			expectOutput("16 "),

		jitTest("let hypotenuse").
			withInput(": H LET (r) = FN(a,b) = sqrt(a^2 + b^2) ;", "3 s>f 4 s>f H f.").
			expectOutput("5 "),

		jitTest("variable store fetch forget").
			withInput("VARIABLE V", "42 V ! V @ .", "FORGET").
			expectOutput("42 ").
			expectNoWord("V"),
	}.run(t)
}

func TestStackPrimitives(t *testing.T) {
	jitTestCases{
		jitTest("dup").withInput("7 DUP").expectStack(7, 7),
		jitTest("drop").withInput("1 2 DROP").expectStack(1),
		jitTest("swap").withInput("1 2 SWAP").expectStack(2, 1),
		jitTest("over").withInput("1 2 OVER").expectStack(1, 2, 1),
		jitTest("nip").withInput("1 2 NIP").expectStack(2),
		jitTest("tuck").withInput("1 2 TUCK").expectStack(2, 1, 2),
		jitTest("rot").withInput("1 2 3 ROT").expectStack(2, 3, 1),
		jitTest("minus rot").withInput("1 2 3 -ROT").expectStack(3, 1, 2),
		jitTest("2dup").withInput("1 2 2DUP").expectStack(1, 2, 1, 2),
		jitTest("2drop").withInput("1 2 3 2DROP").expectStack(1),
		jitTest("2over").withInput("1 2 3 4 2OVER").expectStack(1, 2, 3, 4, 1, 2),
		jitTest("pick zero").withInput("10 20 0 PICK").expectStack(10, 20, 20),
		jitTest("pick one").withInput("10 20 1 PICK").expectStack(10, 20, 10),
		jitTest("pick").withInput("10 20 30 40 3 PICK").expectStack(10, 20, 30, 40, 10),
		jitTest("roll").withInput("10 20 30 40 3 ROLL").expectStack(20, 30, 40, 10),
	}.run(t)
}

func TestArithmetic(t *testing.T) {
	jitTestCases{
		jitTest("add").withInput("3 4 +").expectStack(7),
		jitTest("sub").withInput("10 4 -").expectStack(6),
		jitTest("mul").withInput("6 7 *").expectStack(42),
		jitTest("div").withInput("17 5 /").expectStack(3),
		jitTest("negative div").withInput("0 9 - 2 /").expectStack(-4),
		jitTest("mod").withInput("17 5 MOD").expectStack(2),
		jitTest("divmod").withInput("17 5 /MOD").expectStack(3, 2),
		jitTest("star slash").withInput("100 3 7 */").expectStack(42),
		// a*b overflows 64 bits; the 128-bit intermediate keeps the
		// quotient exact.
		jitTest("star slash wide").withInput("4611686018427387904 6 6 */").expectStack(4611686018427387904),
		jitTest("star slash mod").withInput("100 3 7 */MOD").expectStack(6, 42),
		jitTest("and or xor").withInput("12 10 AND 8 OR 1 XOR").expectStack(9),
		jitTest("not zero").withInput("0 NOT").expectStack(-1),
		jitTest("not nonzero").withInput("5 NOT").expectStack(0),
		jitTest("sqrt").withInput("144 SQRT").expectStack(12),
	}.run(t)
}

func TestComparisons(t *testing.T) {
	jitTestCases{
		jitTest("eq true").withInput("4 4 =").expectStack(-1),
		jitTest("eq false").withInput("4 5 =").expectStack(0),
		jitTest("ne").withInput("4 5 <>").expectStack(-1),
		jitTest("lt").withInput("3 5 <").expectStack(-1),
		jitTest("gt").withInput("3 5 >").expectStack(0),
		jitTest("le equal").withInput("5 5 <=").expectStack(-1),
		jitTest("lt negative").withInput("0 5 - 3 <").expectStack(-1),
	}.run(t)
}

func TestControlFlow(t *testing.T) {
	jitTestCases{
		jitTest("if true branch").
			withInput(": T IF 10 ELSE 20 THEN ;", "1 T").
			expectStack(10),
		jitTest("if false branch").
			withInput(": T IF 10 ELSE 20 THEN ;", "0 T").
			expectStack(20),
		jitTest("if without else").
			withInput(": T IF 10 THEN 99 ;", "0 T").
			expectStack(99),
		jitTest("begin until").
			withInput(": T 0 BEGIN 1 + DUP 5 = UNTIL ;", "T").
			expectStack(5),
		jitTest("do loop indices").
			withInput(": T 5 0 DO I LOOP ;", "T").
			expectStack(0, 1, 2, 3, 4),
		jitTest("plus loop").
			withInput(": T 10 0 DO I 3 +LOOP ;", "T").
			expectStack(0, 3, 6, 9),
		jitTest("nested do loops i j").
			withInput(": T 2 0 DO 2 0 DO J 10 * I + LOOP LOOP ;", "T").
			expectStack(0, 1, 10, 11),
		jitTest("leave exits innermost loop").
			withInput(": T 10 0 DO I I 3 = IF LEAVE THEN LOOP ;", "T").
			expectStack(0, 1, 2, 3),
		jitTest("leave in begin loop").
			withInput(": T 0 BEGIN 1 + DUP 3 = IF LEAVE THEN DUP 100 > UNTIL ;", "T").
			expectStack(3),
		jitTest("exit unwinds do indices").
			withInput(
				": T 7 3 0 DO 9 0 DO EXIT LOOP LOOP 100 ;",
				"T RDEPTH",
			).
			// EXIT drops both nested DO frames from the return stack;
			// RDEPTH afterwards sees an empty return stack again.
			expectStack(7, 0),
		jitTest("recurse").
			withInput(": FAC DUP 2 < IF DROP 1 EXIT THEN DUP 1 - RECURSE * ;", "5 FAC").
			expectStack(120),
	}.run(t)
}

func TestReturnStackWords(t *testing.T) {
	jitTestCases{
		jitTest("to r and back").
			withInput(": T >R 42 R> ;", "7 T").
			expectStack(42, 7),
		jitTest("r fetch").
			withInput(": T >R R@ R@ R> DROP ;", "5 T").
			expectStack(5, 5),
		jitTest("two to r").
			withInput(": T 2>R 2R> ;", "1 2 T").
			expectStack(1, 2),
		jitTest("r swap").
			withInput(": T >R >R R>R R> R> ;", "1 2 T").
			expectStack(2, 1),
		jitTest("rdrop").
			withInput(": T >R >R RDROP R> ;", "1 2 T").
			expectStack(1),
		jitTest("depth").
			withInput("7 8 9 DEPTH").
			expectStack(7, 8, 9, 3),
		jitTest("empty depth").
			withInput("DEPTH").
			expectStack(0),
	}.run(t)
}

// TestOptimizerPreservation compiles the same definitions with the
// peephole pass on and off and requires identical stacks and output,
// covering every rewrite rule.
func TestOptimizerPreservation(t *testing.T) {
	programs := [][]string{
		{": T 5 3 + 10 2 - 6 4 * 9 3 / ;", "T"},
		{": T 7 8 * 16 4 / 5 1 * 5 1 / ;", "T"},
		{": T 4 3 < 4 3 > 4 4 = ;", "T"},
		{": T 6 DUP + ;", "T"},
		{": T 1 2 SWAP DROP ;", "T"},
		{": T 1 2 DUP ROT ;", "T"},
		{": T 1 2 OVER DROP ;", "T"},
		{": T >R R> 5 + >R R> ;", "9 T"},
		{": T >R R> 2 - >R R> ;", "9 T"},
		{"VARIABLE W", "13 W !", ": T W @ 1 + W ! W @ ;", "T"},
	}
	for i, prog := range programs {
		t.Run(fmt.Sprintf("program %d", i), func(t *testing.T) {
			run := func(optimized bool) (string, []int64) {
				res := &jitResult{}
				res.in = New(WithOutput(&res.out), WithOptimizer(optimized))
				for _, line := range prog {
					res.in.Feed(line)
				}
				var stack []int64
				for res.in.depth() > 0 {
					stack = append([]int64{res.in.pop()}, stack...)
				}
				return res.out.String(), stack
			}
			refOut, refStack := run(false)
			optOut, optStack := run(true)
			assert.Equal(t, refOut, optOut, "output")
			assert.Equal(t, refStack, optStack, "stack")
		})
	}
}

func TestLetFormulas(t *testing.T) {
	jitTestCases{
		jitTest("constant formula").
			withInput(": T LET (y) = FN() = 1.5 + 2.25 ;", "T").
			expectFloatStack(0, 3.75),

		jitTest("where bindings").
			withInput(": T LET (y) = FN(x) = a*x + b WHERE a = 2.0, b = 1.5 ;", "4.0 T").
			expectFloatStack(0, 9.5),

		jitTest("chained where dag").
			withInput(": T LET (y) = FN(x) = b + x WHERE b = a * 2.0, a = 3.0 ;", "1.0 T").
			expectFloatStack(0, 7),

		jitTest("two outputs").
			withInput(": PAIR LET (s,p) = FN(x,y) = x+y, x*y ;", "3.0 4.0 PAIR").
			// s is the first output, pushed last, so it drains above p.
			expectFloatStack(0, 12, 7),

		jitTest("power fast path").
			withInput(": T LET (y) = FN(x) = x^2 ;", "9.0 T").
			expectFloatStack(0, 81),

		jitTest("power general").
			withInput(": T LET (y) = FN(x) = x^0.5 ;", "16.0 T").
			expectFloatStack(1e-12, 4),

		jitTest("unary minus").
			withInput(": T LET (y) = FN(x) = -x + 1.0 ;", "3.0 T").
			expectFloatStack(0, -2),

		jitTest("transcendentals").
			withInput(": T LET (y) = FN(x) = sin(x) + cos(x) ;", "0.5 T").
			expectFloatStack(1e-7, math.Sin(0.5)+math.Cos(0.5)),

		jitTest("two argument function").
			withInput(": T LET (y) = FN(a,b) = atan2(a,b) ;", "1.0 2.0 T").
			expectFloatStack(1e-7, math.Atan2(1, 2)),

		jitTest("deep expression spills").
			withInput(
				": T LET (y) = FN(x) = ((x+1.0)*(x+2.0)*(x+3.0)*(x+4.0)*(x+5.0)*(x+6.0)*(x+7.0)*(x+8.0)) / ((x+1.0)*(x+2.0)*(x+3.0)*(x+4.0)) ;",
				"1.0 T",
			).
			expectFloatStack(1e-7, 6*7*8*9),

		jitTest("float words roundtrip").
			withInput("2.5 3.5 f+ 10.0 f* f>s").
			expectStack(60),
	}.run(t)
}

func TestLetErrors(t *testing.T) {
	jitTestCases{
		jitTest("where cycle rejected").
			withInput(": T LET (y) = FN(x) = a WHERE a = b + 1.0, b = a ;").
			expectSignal(signalx.MalformedToken),
		jitTest("unknown identifier").
			withInput(": T LET (y) = FN(x) = bogus(x) ;").
			expectSignal(signalx.MalformedToken),
		jitTest("double decimal point").
			withInput(": T LET (y) = FN(x) = 1.2.3 ;").
			expectSignal(signalx.MalformedToken),
	}.run(t)
}

func TestVariables(t *testing.T) {
	jitTestCases{
		jitTest("store fetch in definition").
			withInput("VARIABLE V", ": T 7 V ! V @ ;", "T").
			expectStack(7),
		jitTest("create addr stable across words").
			withInput("CREATE BUF", "5 BUF !", "BUF @").
			expectStack(5),
		jitTest("byte store").
			withInput("VARIABLE B", "0 B !", "65 B C!", "B @").
			expectStack(65),
		jitTest("allot grows latest word").
			withInput("VARIABLE V", "64 ALLOT", "9 V !", "V @").
			expectStack(9),
		jitTest("allot named").
			withInput("VARIABLE V", "VARIABLE W", "64 ALLOT> V", "3 V !", "V @").
			expectStack(3),
		jitTest("redefinition shadows").
			withInput(": T 1 ;", ": T 2 ;", "T").
			expectStack(2),
		jitTest("forget restores shadowed").
			withInput(": T 1 ;", ": T 2 ;", "FORGET", "T").
			expectStack(1),
		jitTest("forget empty dictionary chain is safe").
			withInput("VARIABLE V", "FORGET").
			expectNoWord("V"),
	}.run(t)
}

func TestDeferIs(t *testing.T) {
	jitTestCases{
		jitTest("defer before is raises").
			withInput("DEFER D", "D").
			expectSignal(signalx.DeferNotSet),
		jitTest("is retargets").
			withInput("DEFER D", ": DOUBLE DUP + ;", "IS DOUBLE D", "21 D").
			expectStack(42),
		jitTest("is to unknown word").
			withInput("DEFER D", "IS NOPE D").
			expectSignal(signalx.NameNotResolvable),
	}.run(t)
}

func TestVocabularies(t *testing.T) {
	jitTestCases{
		jitTest("definitions go to activated vocabulary").
			withInput(
				"VOCABULARY APP",
				"APP DEFINITIONS",
				": HELLO 1 ;",
				"ONLY",
			).
			expectNoWord("HELLO"),
		jitTest("search order finds vocabulary words").
			withInput(
				"VOCABULARY APP",
				"APP DEFINITIONS",
				": HELLO 1 ;",
				"ONLY",
				"APP",
				"HELLO",
			).
			expectStack(1),
	}.run(t)
}

func TestOutputWords(t *testing.T) {
	jitTestCases{
		jitTest("dot quote").
			withInput(`: GREET ." hello, forth" CR ;`, "GREET").
			expectOutput("hello, forth\n"),
		jitTest("emit rune literal").
			withInput("'A' EMIT 'B' EMIT").
			expectOutput("AB"),
		jitTest("spacing words").
			withInput("1 . SPACE 2 .").
			expectOutput("1  2 "),
	}.run(t)
}

// TestComposedExpectations assembles cases from the generated
// composable wrappers (jit_expects_test.go), the pattern shared
// fixture sets build on.
func TestComposedExpectations(t *testing.T) {
	square := withJITInput(": SQ DUP * ;")
	jitTestCases{
		jitTest("square of 4").apply(square, withJITInput("4 SQ"), expectJITStack(16)),
		jitTest("square prints").apply(square, withJITInput("6 SQ ."), expectJITOutput("36 ")),
		jitTest("square defined").apply(square, expectJITWord("SQ")),
	}.run(t)
}

func TestSignals(t *testing.T) {
	jitTestCases{
		jitTest("unknown word").
			withInput("NO-SUCH-WORD").
			expectSignal(signalx.WordNotFound),
		jitTest("unknown word in definition").
			withInput(": T NO-SUCH-WORD ;").
			expectSignal(signalx.WordNotFound),
		jitTest("mismatched then").
			withInput(": T THEN ;").
			expectSignal(signalx.BadImmediateShape),
		jitTest("leave outside loop").
			withInput(": T LEAVE ;").
			expectSignal(signalx.BadImmediateShape),
		jitTest("literal divide by zero").
			withInput(": T 0 / ;").
			expectSignal(signalx.MalformedToken),
		jitTest("definition survives failed compile").
			withInput(": GOOD 1 ;", ": BAD NO-SUCH-WORD ;", "GOOD").
			expectSignal(signalx.WordNotFound).
			expectStack(1).
			expectNoWord("BAD"),
	}.run(t)
}
