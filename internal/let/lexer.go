// Package let implements the LET sub-language: lexer, recursive-descent
// parser, AST, XMM register allocator with spill/reload, and the
// emitter that lowers a LET statement into native code operating on
// the Forth data stack via internal/stackrt's calling convention.
package let

import (
	"fmt"
	"strings"

	"github.com/albanforth/jitforth/internal/signalx"
)

// tokKind classifies a lexical token of the LET sub-language.
type tokKind int

const (
	tokNum tokKind = iota
	tokVar
	tokFunc
	tokLet
	tokFn
	tokWhere
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokSemicolon
	tokEOF
)

type tok struct {
	kind tokKind
	num  float64
	name string // var name, function name (lowercased), or keyword spelling
	op   byte   // '+', '-', '*', '/', '^', '='
}

// funcNames is the supported math-function vocabulary; anything else
// alphabetic longer than a single-letter variable is an error.
var funcNames = map[string]bool{
	"sqrt": true, "sin": true, "cos": true, "exp": true, "ln": true,
	"log": true, "log2": true, "log10": true, "tan": true, "sinh": true,
	"cosh": true, "tanh": true, "asin": true, "acos": true, "atan": true,
	"fabs": true, "atan2": true, "pow": true, "hypot": true, "fmod": true,
	"remainder": true, "fmin": true, "fmax": true,
}

// lex tokenizes src, raising signalx.MalformedToken on an UNKNOWN
// identifier or a numeral with more than one decimal point.
func lex(src string) []tok {
	var toks []tok
	r := []rune(src)
	i := 0
	for i < len(r) {
		c := r[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9':
			start := i
			dots := 0
			for i < len(r) && (r[i] >= '0' && r[i] <= '9' || r[i] == '.') {
				if r[i] == '.' {
					dots++
				}
				i++
			}
			if dots > 1 {
				signalx.Raise(signalx.MalformedToken, "LET: numeral %q has more than one decimal point", string(r[start:i]))
			}
			var v float64
			fmt.Sscanf(string(r[start:i]), "%g", &v)
			toks = append(toks, tok{kind: tokNum, num: v})
		case isAlpha(c):
			start := i
			for i < len(r) && isAlphaNum(r[i]) {
				i++
			}
			word := string(r[start:i])
			toks = append(toks, identTok(word))
		case c == '(':
			toks = append(toks, tok{kind: tokLParen})
			i++
		case c == ')':
			toks = append(toks, tok{kind: tokRParen})
			i++
		case c == ',':
			toks = append(toks, tok{kind: tokComma})
			i++
		case c == ';':
			toks = append(toks, tok{kind: tokSemicolon})
			i++
		case c == '+' || c == '-' || c == '*' || c == '/' || c == '^' || c == '=':
			toks = append(toks, tok{kind: tokOp, op: byte(c)})
			i++
		default:
			signalx.Raise(signalx.MalformedToken, "LET: unexpected character %q", string(c))
		}
	}
	toks = append(toks, tok{kind: tokEOF})
	return toks
}

func identTok(word string) tok {
	upper := strings.ToUpper(word)
	switch upper {
	case "LET":
		return tok{kind: tokLet}
	case "FN":
		return tok{kind: tokFn}
	case "WHERE":
		return tok{kind: tokWhere}
	}
	lower := strings.ToLower(word)
	if funcNames[lower] {
		return tok{kind: tokFunc, name: lower}
	}
	if len(word) == 1 && word[0] >= 'a' && word[0] <= 'z' {
		return tok{kind: tokVar, name: word}
	}
	signalx.Raise(signalx.MalformedToken, "LET: unknown identifier %q", word)
	panic("unreachable")
}

func isAlpha(c rune) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isAlphaNum(c rune) bool {
	return isAlpha(c) || c >= '0' && c <= '9'
}
