package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/albanforth/jitforth/internal/lexer"
	"github.com/albanforth/jitforth/internal/symtab"
	"github.com/albanforth/jitforth/internal/token"
)

func TestTokenizeWords(t *testing.T) {
	syms := symtab.NewTable()
	l := lexer.New(syms)
	toks := l.Tokenize(": SQ DUP * ;")
	var kinds []token.Kind
	for _, tk := range toks {
		kinds = append(kinds, tk.Kind)
	}
	assert.Equal(t, []token.Kind{token.WORD, token.WORD, token.WORD, token.WORD, token.WORD}, kinds)
}

func TestTokenizeNumberAndFloat(t *testing.T) {
	syms := symtab.NewTable()
	l := lexer.New(syms)
	toks := l.Tokenize("5 3.5 -2")
	assert.Equal(t, token.Number(5), toks[0])
	assert.Equal(t, token.Float(3.5), toks[1])
	assert.Equal(t, token.Number(-2), toks[2])
}

func TestTokenizeSkipsComments(t *testing.T) {
	syms := symtab.NewTable()
	l := lexer.New(syms)
	toks := l.Tokenize("1 ( this is a comment ) 2")
	assert.Equal(t, token.Number(1), toks[0])
	assert.Equal(t, token.Number(2), toks[1])
	assert.Len(t, toks, 2)
}

func TestTokenizeStringLiteral(t *testing.T) {
	syms := symtab.NewTable()
	l := lexer.New(syms)
	toks := l.Tokenize(`." hello world"`)
	assert.Equal(t, token.WORD, toks[0].Kind)
	assert.Equal(t, token.STRING, toks[1].Kind)
	assert.Equal(t, "hello world", toks[1].Text)
}

func TestTokenizeInternsConsistently(t *testing.T) {
	syms := symtab.NewTable()
	l := lexer.New(syms)
	a := l.Tokenize("dup")
	b := l.Tokenize("DUP")
	assert.Equal(t, a[0].Sym, b[0].Sym)
}
