package main

import (
	"github.com/albanforth/jitforth/internal/asm"
	"github.com/albanforth/jitforth/internal/codegen"
	"github.com/albanforth/jitforth/internal/control"
	"github.com/albanforth/jitforth/internal/dict"
	"github.com/albanforth/jitforth/internal/mathabi"
	"github.com/albanforth/jitforth/internal/signalx"
	"github.com/albanforth/jitforth/internal/token"
)

// Bootstrap populates the dictionary: every primitive emitter from
// internal/codegen is registered under its Forth name in both of its
// roles (inline generator + standalone callable), the control-flow
// words are registered as compile-time immediates over
// internal/control, and the defining/heap words from vars.go round out
// the FORTH vocabulary.
func Bootstrap(in *Interpreter) {
	for _, p := range primitives(in) {
		fn, addr := buildStandalone(in, p.emit)
		in.dict.AddWord(p.name, "FORTH", dict.Executable, dict.Word,
			dict.PrimitiveCompiled(dict.Generator(p.emit), fn, addr))
	}

	for name, gen := range controlWords(in) {
		in.dict.AddWord(name, "FORTH", dict.Immediate, dict.Word, dict.ImmComp(gen))
	}

	in.dict.AddWord(`."`, "FORTH", dict.Immediate, dict.Word,
		dict.ImmediateBoth(in.interpDotQuote, in.compileDotQuote))

	addDefiningWords(in)
}

// buildStandalone finalizes one primitive's emitter into its own
// callable function, the role interpret-time invocation and compiled
// CALL sites share.
func buildStandalone(in *Interpreter, emit codegen.Emitter) (asm.ForthFunc, uintptr) {
	h := in.code
	h.Start()
	emit(h)
	fn, addr, err := h.FinalizeAddr()
	if err != nil {
		signalx.Raise(signalx.FinalizeFailed, "building primitive: %v", err)
	}
	return fn, addr
}

type prim struct {
	name string
	emit codegen.Emitter
}

func primitives(in *Interpreter) []prim {
	mathAddr := func(name string) uintptr {
		addr, ok := mathabi.AddressOf(name)
		if !ok {
			signalx.Raise(signalx.NameNotResolvable, "math routine %q", name)
		}
		return addr
	}

	return []prim{
		{"DUP", codegen.Dup},
		{"DROP", codegen.Drop},
		{"SWAP", codegen.Swap},
		{"OVER", codegen.Over},
		{"NIP", codegen.Nip},
		{"TUCK", codegen.Tuck},
		{"ROT", codegen.Rot},
		{"-ROT", codegen.MinusRot},
		{"2DUP", codegen.TwoDup},
		{"2DROP", codegen.TwoDrop},
		{"2OVER", codegen.TwoOver},
		{"PICK", codegen.Pick},
		{"ROLL", codegen.Roll},

		{"+", codegen.Add},
		{"-", codegen.Sub},
		{"*", codegen.Mul},
		{"/", codegen.Div},
		{"MOD", codegen.Mod},
		{"/MOD", codegen.DivMod},
		{"*/", codegen.StarSlash},
		{"*/MOD", codegen.StarSlashMod},
		{"AND", codegen.And},
		{"OR", codegen.Or},
		{"XOR", codegen.Xor},
		{"NOT", codegen.Not},
		{"SQRT", codegen.Sqrt},

		{"=", codegen.Eq},
		{"<>", codegen.Ne},
		{"<", codegen.Lt},
		{">", codegen.Gt},
		{"<=", codegen.Le},

		{">R", codegen.ToR},
		{"R>", codegen.RFrom},
		{"R@", codegen.RFetch},
		{"2>R", codegen.TwoToR},
		{"2R>", codegen.TwoRFrom},
		{"RDROP", codegen.RDrop},
		{"2RDROP", codegen.TwoRDrop},
		{"R>R", codegen.RSwap},
		{"RP@", codegen.RPFetch},
		{"RP!", codegen.RPStore},

		{"!", codegen.Store},
		{"C!", codegen.CStore},
		{"@", codegen.Fetch},
		{"SP@", codegen.SPFetch},
		{"SP!", codegen.SPStore},
		{"DEPTH", codegen.Depth(in.data.TopAddr())},
		{"RDEPTH", codegen.RDepth(in.ret.TopAddr())},

		{".", codegen.Dot(addrOfAdapter(cabiDot))},
		{"f.", codegen.Dot(addrOfAdapter(cabiFDot))},
		{"EMIT", codegen.Emit(addrOfAdapter(cabiEmitChar))},
		{"CR", codegen.Cr(addrOfAdapter(cabiCR))},
		{"SPACE", codegen.Space(addrOfAdapter(cabiSpace))},
		{"PAGE", codegen.Page(addrOfAdapter(cabiPage))},
		{"CLS", codegen.Cls(addrOfAdapter(cabiCls))},

		{"f+", codegen.FAdd},
		{"f-", codegen.FSub},
		{"f*", codegen.FMul},
		{"f/", codegen.FDiv},
		{"fmod", codegen.FMod(mathAddr("fmod"))},
		{"fmin", codegen.FMin},
		{"fmax", codegen.FMax},
		{"fabs", codegen.FAbs},
		{"f<", codegen.FLt},
		{"f>", codegen.FGt},
		{"f=", codegen.FEq},
		{"fsqrt", codegen.FSqrt},
		{"sin", codegen.FSin(mathAddr("sin"))},
		{"cos", codegen.FCos(mathAddr("cos"))},
		{"floor", codegen.FFloor(mathAddr("floor"))},
		{"fround", codegen.FRound(mathAddr("fround"))},
		{"ftruncate", codegen.FTruncate(mathAddr("ftruncate"))},
		{"s>f", codegen.SToF},
		{"f>s", codegen.FToS},
	}
}

// controlWords returns the compile-time immediate words driving
// internal/control against the definition in flight. Each closure runs
// only from compileToken, so in.ctl is always the live frame stack.
func controlWords(in *Interpreter) map[string]dict.ImmediateCompiler {
	h := func() *asm.CodeHolder { return in.code }
	return map[string]dict.ImmediateCompiler{
		"IF":   func(interface{}) { control.If(h(), in.ctl) },
		"ELSE": func(interface{}) { control.Else(h(), in.ctl) },
		"THEN": func(interface{}) { control.Then(h(), in.ctl) },

		"BEGIN":  func(interface{}) { control.Begin(h(), in.ctl) },
		"UNTIL":  func(interface{}) { control.Until(h(), in.ctl) },
		"AGAIN":  func(interface{}) { control.Again(h(), in.ctl) },
		"WHILE":  func(interface{}) { control.While(h(), in.ctl) },
		"REPEAT": func(interface{}) { control.Repeat(h(), in.ctl) },

		"DO":    func(interface{}) { control.Do(h(), in.ctl) },
		"LOOP":  func(interface{}) { control.Loop(h(), in.ctl) },
		"+LOOP": func(interface{}) { control.PlusLoop(h(), in.ctl) },
		"LEAVE": func(interface{}) { control.Leave(h(), in.ctl) },

		"EXIT":    func(interface{}) { control.Exit(h(), in.ctl) },
		"RECURSE": func(interface{}) { control.Recurse(h(), in.ctl) },
		"REDO":    func(interface{}) { control.Redo(h(), in.ctl) },

		"I": func(interface{}) { control.I(h()) },
		"J": func(interface{}) { control.J(h()) },
		"K": func(interface{}) { control.K(h()) },
	}
}

// interpDotQuote handles ." at interpret time: the following STRING
// token's body goes straight to the output adapter.
func (in *Interpreter) interpDotQuote(ctx interface{}) {
	c := ctx.(*tokenCursor)
	t := c.next()
	if t.Kind != token.STRING {
		signalx.Raise(signalx.BadImmediateShape, `." expects a string`)
	}
	in.emit([]byte(t.Text))
}

// compileDotQuote handles ." inside a definition: the string bytes are
// pinned for the lifetime of the emitted code and printed through the
// string adapter at run time.
func (in *Interpreter) compileDotQuote(ctx interface{}) {
	c := ctx.(*tokenCursor)
	t := c.next()
	if t.Kind != token.STRING {
		signalx.Raise(signalx.BadImmediateShape, `." expects a string`)
	}
	body := append([]byte(nil), t.Text...)
	in.strings = append(in.strings, body)
	var addr uintptr
	if len(body) > 0 {
		addr = uintptrOf(body)
	}
	codegen.DotQuote(addrOfAdapter(cabiPrintString), addr, len(body))(in.code)
}
