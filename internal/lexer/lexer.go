// Package lexer is the ambient, deliberately thin tokenizer collaborator
// named but left unspecified by the design: it scans one line of Forth
// source text into the internal/token contract the dictionary/compiler
// and peephole optimizer consume. It does not resolve words against the
// dictionary, decide interpret-vs-compile mode, or parse LET bodies
// (internal/let owns that grammar) — it only recognizes whitespace,
// `( ... )` comments, `." ... "` string literals, numeric literals, and
// rune literals ('A', ^[, <ESC>, read as NUMBER tokens), leaving
// everything else as an uninterpreted WORD token.
package lexer

import (
	"strconv"
	"strings"

	"github.com/albanforth/jitforth/internal/runeio"
	"github.com/albanforth/jitforth/internal/symtab"
	"github.com/albanforth/jitforth/internal/token"
)

// Lexer scans source text into tokens, interning WORD names through a
// shared symbol table so the dictionary and the lexer agree on ids.
type Lexer struct {
	syms *symtab.Table
}

// New returns a Lexer that interns words through syms.
func New(syms *symtab.Table) *Lexer { return &Lexer{syms: syms} }

// Tokenize scans one line of source into a token slice, NOT including
// the trailing END sentinel — callers compiling a multi-line
// definition accumulate tokens across lines and append token.End()
// once at the close of input (see root package Compiler).
func (l *Lexer) Tokenize(line string) []token.Token {
	var out []token.Token
	i, n := 0, len(line)
	for i < n {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '(':
			j := strings.IndexByte(line[i:], ')')
			if j < 0 {
				i = n
			} else {
				i += j + 1
			}
		default:
			j := i
			for j < n && line[j] != ' ' && line[j] != '\t' && line[j] != '\r' {
				j++
			}
			word := line[i:j]
			i = j
			if word == `."` {
				// Skip exactly one separating space, then take
				// everything up to the next '"' as the string body.
				if i < n && line[i] == ' ' {
					i++
				}
				k := strings.IndexByte(line[i:], '"')
				var body string
				if k < 0 {
					body = line[i:]
					i = n
				} else {
					body = line[i : i+k]
					i += k + 1
				}
				out = append(out, token.Token{Kind: token.WORD, Sym: l.syms.Intern(`."`)})
				out = append(out, token.Token{Kind: token.STRING, Text: body})
				continue
			}
			out = append(out, l.classify(word))
		}
	}
	return out
}

func (l *Lexer) classify(word string) token.Token {
	if iv, err := strconv.ParseInt(word, 10, 64); err == nil {
		return token.Number(iv)
	}
	if strings.ContainsRune(word, '.') && strings.Count(word, ".") == 1 {
		if fv, err := strconv.ParseFloat(word, 64); err == nil {
			return token.Float(fv)
		}
	}
	// Rune literals for EMIT: 'A', caret forms like ^[, and control
	// mnemonics like <ESC> all read as their codepoint value.
	if word[0] == '\'' || word[0] == '^' || word[0] == '<' {
		if r, err := runeio.UnquoteRune(word); err == nil {
			return token.Number(int64(r))
		}
	}
	return token.Word(l.syms.Intern(word))
}
