// Package optimizer implements the one-pass peephole optimizer over a
// token stream: constant-operation folding, literal-comparison
// folding, and named multi-token peephole patterns (return-stack fused
// increments, VAR @/!, DUP +, SWAP DROP, DUP ROT, OVER DROP). The
// pass is forward-only, idempotent, and side-effect-free on its
// input; it always leaves a trailing END token.
package optimizer

import (
	"github.com/albanforth/jitforth/internal/signalx"
	"github.com/albanforth/jitforth/internal/symtab"
	"github.com/albanforth/jitforth/internal/token"
)

// Stats reports how many rewrites a pass applied.
type Stats struct {
	Count int
}

// Optimize runs the single forward pass over in, using syms to resolve
// WORD tokens' names, and returns the rewritten stream plus stats.
func Optimize(in []token.Token, syms *symtab.Table) ([]token.Token, Stats) {
	var out []token.Token
	var stats Stats

	name := func(i int) string {
		if i < 0 || i >= len(in) {
			return ""
		}
		t := in[i]
		if t.Kind == token.WORD || t.Kind == token.VARIABLE {
			return syms.String(t.Sym)
		}
		return ""
	}

	for i := 0; i < len(in); i++ {
		cur := in[i]

		if n, ok := peepholeCase(in, name, i); ok {
			out = append(out, n.tok)
			i += n.skip
			stats.Count++
			continue
		}

		if cur.Kind == token.NUMBER && i+1 < len(in) {
			if op := name(i + 1); isArith(op) {
				t, emit := constantOp(cur, op)
				if emit {
					out = append(out, t)
				}
				stats.Count++
				i++
				continue
			}
			if op := name(i + 1); isCompare(op) {
				out = append(out, literalCompare(cur, op))
				stats.Count++
				i++
				continue
			}
		}

		out = append(out, cur)
	}

	if len(out) == 0 || out[len(out)-1].Kind != token.END {
		out = append(out, token.End())
	}
	return out, stats
}

func isArith(op string) bool {
	return op == "+" || op == "-" || op == "*" || op == "/"
}

func isCompare(op string) bool {
	return op == "<" || op == ">" || op == "="
}

func isPowerOfTwo(v int64) bool { return v > 0 && v&(v-1) == 0 }

func ctz(v int64) int64 {
	var n int64
	for v != 0 && v&1 == 0 {
		v >>= 1
		n++
	}
	return n
}

// constantOp implements optimize_constant_operation: a NUMBER followed
// by an arithmetic operator folds into one OPTIMIZED token. emit is
// false when the pair is a no-op (multiply/divide by 1) and both
// tokens are elided outright. Division by a zero literal is rejected
// here, before any code is emitted for it.
func constantOp(number token.Token, op string) (t token.Token, emit bool) {
	t = token.Optimized("")
	t.IVal = number.IVal

	switch op {
	case "+":
		t.Op = "ADD_IMM"
	case "-":
		t.Op = "SUB_IMM"
	case "*":
		if number.IVal == 1 {
			return token.Token{}, false
		}
		if isPowerOfTwo(number.IVal) {
			t.Op = "SHL_IMM"
			t.IVal = ctz(number.IVal)
		} else {
			t.Op = "MUL_IMM"
		}
	case "/":
		if number.IVal == 0 {
			signalx.Raise(signalx.MalformedToken, "division by zero literal")
		}
		if number.IVal == 1 {
			return token.Token{}, false
		}
		if isPowerOfTwo(number.IVal) {
			t.Op = "SHR_IMM"
			t.IVal = ctz(number.IVal)
		} else {
			t.Op = "DIV_IMM"
		}
	}
	return t, true
}

// literalCompare implements optimize_literal_comparison.
func literalCompare(number token.Token, op string) token.Token {
	t := token.Optimized("")
	t.IVal = number.IVal
	switch op {
	case "<":
		t.Op = "CMP_LT_IMM"
	case ">":
		t.Op = "CMP_GT_IMM"
	case "=":
		t.Op = "CMP_EQ_IMM"
	}
	return t
}

type peepResult struct {
	tok  token.Token
	skip int // additional input tokens this rule consumed beyond `current`
}

// peepholeCase matches the multi-token pattern table, checked in
// declared priority order before the constant folds.
func peepholeCase(in []token.Token, name func(int) string, i int) (peepResult, bool) {
	cur := in[i]
	n1, n2, n3 := name(i+1), name(i+2), name(i+3)

	curName := name(i)

	// R> n + >R  /  R> n - >R  (fused return-stack index adjust)
	if curName == "R>" && i+1 < len(in) && in[i+1].Kind == token.NUMBER {
		if n2 == "+" && n3 == ">R" {
			t := token.Optimized("INC_R@")
			t.IVal = in[i+1].IVal
			return peepResult{t, 3}, true
		}
		if n2 == "-" && n3 == ">R" {
			t := token.Optimized("DEC_R@")
			t.IVal = in[i+1].IVal
			return peepResult{t, 3}, true
		}
	}

	if curName == "R@" && n1 == "C!" {
		return peepResult{token.Optimized("R@_C!"), 1}, true
	}
	if curName == "R@" && n1 == "!" {
		return peepResult{token.Optimized("R@_!"), 1}, true
	}

	if cur.Kind == token.VARIABLE && n1 == "@" {
		t := token.Optimized("VAR_@")
		t.Sym = cur.Sym
		return peepResult{t, 1}, true
	}
	if cur.Kind == token.VARIABLE && n1 == "!" {
		t := token.Optimized("VAR_!")
		t.Sym = cur.Sym
		return peepResult{t, 1}, true
	}

	if curName == "DUP" && n1 == "+" {
		return peepResult{token.Optimized("LEA_TOS"), 1}, true
	}
	if curName == "SWAP" && n1 == "DROP" {
		return peepResult{token.Optimized("MOV_TOS_1"), 1}, true
	}
	if curName == "DUP" && n1 == "ROT" {
		return peepResult{token.Optimized("TUCK"), 1}, true
	}
	if curName == "OVER" && n1 == "DROP" {
		return peepResult{token.Optimized("DUP"), 1}, true
	}

	return peepResult{}, false
}
