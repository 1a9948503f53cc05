package main

import (
	"math"
	"strings"

	"github.com/albanforth/jitforth/internal/asm"
	"github.com/albanforth/jitforth/internal/codegen"
	"github.com/albanforth/jitforth/internal/control"
	"github.com/albanforth/jitforth/internal/dict"
	"github.com/albanforth/jitforth/internal/let"
	"github.com/albanforth/jitforth/internal/optimizer"
	"github.com/albanforth/jitforth/internal/signalx"
	"github.com/albanforth/jitforth/internal/stackrt"
	"github.com/albanforth/jitforth/internal/token"
)

// tokenCursor walks a token stream on behalf of immediate words, which
// consume the tokens following their own (names for CREATE/VARIABLE/
// DEFER/IS, the string body for ."). It is the ctx value passed
// through dict's ImmediateInterpreter/ImmediateCompiler hooks.
type tokenCursor struct {
	toks []token.Token
	pos  int
}

func (c *tokenCursor) next() token.Token {
	if c.pos >= len(c.toks) {
		return token.End()
	}
	t := c.toks[c.pos]
	c.pos++
	return t
}

func (c *tokenCursor) peek() token.Token {
	if c.pos >= len(c.toks) {
		return token.End()
	}
	return c.toks[c.pos]
}

// nextName consumes and returns the next token's word name, raising
// code when the stream ends or the token carries no name.
func (in *Interpreter) nextName(c *tokenCursor, code signalx.Code, who string) string {
	t := c.next()
	if t.Kind != token.WORD && t.Kind != token.VARIABLE {
		signalx.Raise(code, "%s expects a name", who)
	}
	return in.syms.String(t.Sym)
}

// Feed scans one line of source, routing definitions (": name ... ;",
// including ": name LET ... ;") to the compiler and everything else to
// the interpreter. Definitions may span lines; Feed accumulates until
// the closing ";".
func (in *Interpreter) Feed(line string) {
	if in.letName != "" {
		in.feedLet(line)
		return
	}

	rest := line
	if !in.defining {
		// A LET definition keeps its raw text: parens are grouping in
		// the LET grammar, not comments, so the Forth lexer never sees
		// the body.
		fields := strings.Fields(line)
		if len(fields) >= 3 && fields[0] == ":" && strings.EqualFold(fields[2], "LET") {
			in.letName = fields[1]
			// The raw body starts at the LET keyword: skip past the
			// colon and the name tokens positionally, not by substring
			// search, since the name itself may contain "LET".
			rest := line
			off := 0
			for _, f := range fields[:2] {
				i := strings.Index(rest, f)
				off += i + len(f)
				rest = line[off:]
			}
			in.feedLet(strings.TrimLeft(rest, " \t"))
			return
		}
	}

	toks := in.lex.Tokenize(rest)
	in.markVariables(toks)

	var interp []token.Token
	flush := func() {
		if len(interp) > 0 {
			in.Interpret(append(interp, token.End()))
			interp = nil
		}
	}

	for _, t := range toks {
		name := ""
		if t.Kind == token.WORD {
			name = in.syms.String(t.Sym)
		}
		switch {
		case !in.defining && name == ":":
			flush()
			in.defining = true
			in.pending = append(in.pending[:0], token.Token{Kind: token.COMPILING})
		case in.defining && name == ";":
			in.defining = false
			in.Compile(append(in.pending, token.End()))
			in.pending = nil
		case in.defining:
			in.pending = append(in.pending, t)
		default:
			interp = append(interp, t)
		}
	}
	flush()
}

// feedLet accumulates raw LET source text until its terminating ";",
// then compiles the statement under the name captured from ": name".
func (in *Interpreter) feedLet(chunk string) {
	if i := strings.IndexByte(chunk, ';'); i >= 0 {
		in.letSrc += chunk[:i+1]
		name, src := in.letName, in.letSrc
		in.letName, in.letSrc = "", ""
		in.CompileLet(name, src)
		return
	}
	in.letSrc += chunk + "\n"
}

// markVariables rewrites WORD tokens naming VARIABLE/CREATE entries
// into VARIABLE-kind tokens, the shape the tokenizer contract promises
// the optimizer (its VAR @ / VAR ! fusion keys on the kind).
func (in *Interpreter) markVariables(toks []token.Token) {
	for i, t := range toks {
		if t.Kind != token.WORD {
			continue
		}
		if e := in.dict.FindByToken(t.Sym); e != nil && e.Type == dict.Variable {
			toks[i].Kind = token.VARIABLE
		}
	}
}

// Interpret executes a token stream immediately: numbers push, words
// invoke their compiled bodies against the live stacks, immediate
// interpreter words consume their argument tokens.
func (in *Interpreter) Interpret(toks []token.Token) {
	c := &tokenCursor{toks: toks}
	for {
		t := c.next()
		switch t.Kind {
		case token.END, token.INTERPRETING:
			return

		case token.NUMBER:
			in.push(t.IVal)

		case token.FLOAT:
			in.push(int64(math.Float64bits(t.FVal)))

		case token.WORD, token.VARIABLE:
			in.interpretWord(t, c)

		case token.COMPILING:
			signalx.Raise(signalx.ColonExpected, "definition token outside of a definition")

		default:
			signalx.Raise(signalx.MalformedToken, "cannot interpret %v token", t.Kind)
		}
	}
}

func (in *Interpreter) interpretWord(t token.Token, c *tokenCursor) {
	e := in.dict.FindByToken(t.Sym)
	if e == nil {
		signalx.Raise(signalx.WordNotFound, "word not found: %s", in.syms.String(t.Sym))
	}

	switch {
	case e.Behavior.ImmediateInterpreter() != nil:
		e.Behavior.ImmediateInterpreter()(c)
	case e.Type == dict.Variable:
		in.push(int64(e.Behavior.VariableData().BaseAddr()))
	case e.Type == dict.Vocabulary:
		in.dict.Activate(e.Name())
	case e.Behavior.Kind == dict.BehaviorDeferred && e.Behavior.Addr() == 0:
		signalx.Raise(signalx.DeferNotSet, "%s invoked before IS", e.Name())
	case e.Behavior.Addr() != 0:
		in.invoke(e.Behavior.Addr())
	default:
		signalx.Raise(signalx.MalformedToken, "%s is compile-only", e.Name())
	}
}

// Compile turns a ": name body ;" token stream into one native
// function and defines name in the current vocabulary. The stream is
// peephole-optimized first, then lowered token by token.
func (in *Interpreter) Compile(toks []token.Token) {
	c := &tokenCursor{toks: toks}
	if c.next().Kind != token.COMPILING {
		signalx.Raise(signalx.ColonExpected, "':' expected")
	}
	name := in.nextName(c, signalx.NewNameExpected, "':'")

	// Only the body is optimized: the definition's own name must not
	// pattern-match a peephole rule.
	body := toks[c.pos:]
	if in.optimize {
		body, _ = optimizer.Optimize(body, in.syms)
	}
	c = &tokenCursor{toks: body}

	h := in.code
	h.Start()
	in.ctl = &control.Stack{}
	control.StartFunction(h, in.ctl)

	for {
		t := c.peek()
		if t.Kind == token.END || t.Kind == token.INTERPRETING {
			break
		}
		c.next()
		in.compileToken(t, c)
	}

	control.Return(h, in.ctl)
	in.ctl = nil

	fn, addr, err := h.FinalizeAddr()
	if err != nil {
		signalx.Raise(signalx.FinalizeFailed, "compiling %s: %v", name, err)
	}
	in.dict.AddWord(name, "", dict.Executable, dict.Word, dict.Compiled(fn, addr))
}

func (in *Interpreter) compileToken(t token.Token, c *tokenCursor) {
	h := in.code
	switch t.Kind {
	case token.NUMBER:
		stackrt.PushImm(h.Assembler, t.IVal)

	case token.FLOAT:
		stackrt.PushImm(h.Assembler, int64(math.Float64bits(t.FVal)))

	case token.OPTIMIZED:
		in.compileOptimized(t)

	case token.VARIABLE:
		e := in.dict.FindByToken(t.Sym)
		if e == nil || e.Behavior.VariableData() == nil {
			signalx.Raise(signalx.WordNotFound, "variable not found: %s", in.syms.String(t.Sym))
		}
		codegen.VarAddr(e.Behavior.VariableData().CellAddr())(h)

	case token.WORD:
		e := in.dict.FindByToken(t.Sym)
		if e == nil {
			signalx.Raise(signalx.WordNotFound, "word not found: %s", in.syms.String(t.Sym))
		}
		switch {
		case e.Behavior.Generator() != nil:
			e.Behavior.Generator()(h)
		case e.Behavior.Kind == dict.BehaviorDeferred && e.Behavior.Addr() == 0:
			signalx.Raise(signalx.DeferNotSet, "%s referenced before IS", e.Name())
		case e.Behavior.Addr() != 0:
			h.CallAbs(asm.RAX, e.Behavior.Addr())
		case e.Behavior.ImmediateCompiler() != nil:
			e.Behavior.ImmediateCompiler()(c)
		default:
			signalx.Raise(signalx.BadImmediateShape, "%s cannot appear in a definition", e.Name())
		}

	default:
		signalx.Raise(signalx.WordNotFound, "unhandled token type %v", t.Kind)
	}
}

// compileOptimized lowers one optimizer-synthesized opcode to its fused
// emitter.
func (in *Interpreter) compileOptimized(t token.Token) {
	h := in.code
	switch t.Op {
	case "ADD_IMM":
		codegen.AddImm(t.IVal)(h)
	case "SUB_IMM":
		codegen.SubImm(t.IVal)(h)
	case "MUL_IMM":
		codegen.MulImm(t.IVal)(h)
	case "DIV_IMM":
		codegen.DivImm(t.IVal)(h)
	case "SHL_IMM":
		codegen.ShlImmOp(t.IVal)(h)
	case "SHR_IMM":
		codegen.ShrImmOp(t.IVal)(h)
	case "CMP_LT_IMM":
		codegen.CmpLtImm(t.IVal)(h)
	case "CMP_GT_IMM":
		codegen.CmpGtImm(t.IVal)(h)
	case "CMP_EQ_IMM":
		codegen.CmpEqImm(t.IVal)(h)
	case "INC_R@":
		codegen.IncRFetch(t.IVal)(h)
	case "DEC_R@":
		codegen.DecRFetch(t.IVal)(h)
	case "R@_!":
		codegen.RFetchStoreCell(h)
	case "R@_C!":
		codegen.RFetchStoreByte(h)
	case "VAR_@", "VAR_!":
		e := in.dict.FindByToken(t.Sym)
		if e == nil || e.Behavior.VariableData() == nil {
			signalx.Raise(signalx.WordNotFound, "variable not found: %s", in.syms.String(t.Sym))
		}
		cell := e.Behavior.VariableData().CellAddr()
		if t.Op == "VAR_@" {
			codegen.VarFetch(cell)(h)
		} else {
			codegen.VarStore(cell)(h)
		}
	case "LEA_TOS":
		codegen.LeaTOS(h)
	case "MOV_TOS_1":
		codegen.MovTOS1(h)
	case "TUCK":
		codegen.Tuck(h)
	case "DUP":
		codegen.Dup(h)
	default:
		signalx.Raise(signalx.WordNotFound, "unknown optimized opcode %q", t.Op)
	}
}

// CompileLet parses and lowers a "LET (out...) = FN(in...) = ...;"
// statement into one native function defined under name.
func (in *Interpreter) CompileLet(name, src string) {
	stmt := let.Parse(src)

	h := in.code
	h.Start()
	let.CompileWith(h, stmt, let.Policy{GPCache: in.gpCache, TrackLRU: in.trackLRU})

	fn, addr, err := h.FinalizeAddr()
	if err != nil {
		signalx.Raise(signalx.LetCodegenFailure, "compiling %s: %v", name, err)
	}
	in.dict.AddWord(name, "", dict.Executable, dict.Word, dict.Compiled(fn, addr))
}
