package let

import "testing"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

func TestLexNumberFloat(t *testing.T) {
	toks := lex("3.5")
	require.Len(t, toks, 2)
	assert.Equal(t, tokNum, toks[0].kind)
	assert.Equal(t, 3.5, toks[0].num)
	assert.Equal(t, tokEOF, toks[1].kind)
}

func TestLexKeywordsAndVars(t *testing.T) {
	toks := lex("LET (y) = FN (x) = x + 1 ;")
	kinds := make([]tokKind, 0, len(toks))
	for _, tk := range toks {
		kinds = append(kinds, tk.kind)
	}
	assert.Equal(t, []tokKind{
		tokLet, tokLParen, tokVar, tokRParen, tokOp,
		tokFn, tokLParen, tokVar, tokRParen, tokOp,
		tokVar, tokOp, tokNum, tokSemicolon, tokEOF,
	}, kinds)
}

func TestLexFunctionName(t *testing.T) {
	toks := lex("sqrt(x)")
	require.True(t, len(toks) >= 1)
	assert.Equal(t, tokFunc, toks[0].kind)
	assert.Equal(t, "sqrt", toks[0].name)
}

func TestLexUnknownIdentifierPanics(t *testing.T) {
	assert.Panics(t, func() { lex("frobnicate") })
}

func TestLexMultipleDecimalPointsPanics(t *testing.T) {
	assert.Panics(t, func() { lex("1.2.3") })
}

func TestLexUnexpectedCharacterPanics(t *testing.T) {
	assert.Panics(t, func() { lex("x & y") })
}
