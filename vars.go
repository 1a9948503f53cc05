package main

import (
	"github.com/albanforth/jitforth/internal/dict"
	"github.com/albanforth/jitforth/internal/signalx"
	"github.com/albanforth/jitforth/internal/wordheap"
)

// variableCell is the default region size behind CREATE/VARIABLE: one
// cell plus padding to the heap's 16-byte alignment unit.
const variableCell = 16

// addDefiningWords registers the interpret-time immediate words that
// create, retarget, resize, and destroy dictionary entries.
func addDefiningWords(in *Interpreter) {
	imm := func(name string, fn dict.ImmediateInterpreter) {
		in.dict.AddWord(name, "FORTH", dict.Immediate, dict.Word, dict.ImmInterp(fn))
	}

	imm("CREATE", func(ctx interface{}) {
		in.defineVariable(ctx.(*tokenCursor), "CREATE", wordheap.Default)
	})
	imm("VARIABLE", func(ctx interface{}) {
		in.defineVariable(ctx.(*tokenCursor), "VARIABLE", wordheap.Int)
	})

	imm("DEFER", func(ctx interface{}) {
		name := in.nextName(ctx.(*tokenCursor), signalx.NewNameExpected, "DEFER")
		in.dict.AddWord(name, "", dict.Executable, dict.Word, dict.DeferredBehavior())
	})

	imm("IS", func(ctx interface{}) {
		c := ctx.(*tokenCursor)
		src := in.findNamed(c, "IS")
		target := in.findNamed(c, "IS")
		target.Retarget(src)
	})

	imm("ALLOT", func(interface{}) {
		n := in.pop()
		e := in.dict.Latest()
		in.resizeWordData(e, int(n))
	})

	imm("ALLOT>", func(ctx interface{}) {
		n := in.pop()
		e := in.findNamed(ctx.(*tokenCursor), "ALLOT>")
		in.resizeWordData(e, int(n))
	})

	imm("FORGET", func(interface{}) {
		e := in.dict.Latest()
		if err := in.dict.ForgetLastWord(); err != nil {
			signalx.Raise(signalx.WordNotFound, "FORGET: %v", err)
		}
		in.heap.Free(e.WordID)
	})

	imm("VOCABULARY", func(ctx interface{}) {
		name := in.nextName(ctx.(*tokenCursor), signalx.NewNameExpected, "VOCABULARY")
		in.dict.AddWord(name, "", dict.Executable, dict.Vocabulary, dict.VocabularyBehavior())
	})
	imm("DEFINITIONS", func(interface{}) { in.dict.Definitions() })
	imm("ONLY", func(interface{}) { in.dict.ResetSearchOrder() })

	imm("WORDS", func(interface{}) {
		history := in.dict.History()
		for i := len(history) - 1; i >= 0; i-- {
			in.emit([]byte(history[i].Name()))
			in.emit([]byte{' '})
		}
		in.emit([]byte{'\n'})
	})
}

// defineVariable implements CREATE and VARIABLE: a 16-byte aligned
// heap region plus an entry whose body pushes the region's address.
func (in *Interpreter) defineVariable(c *tokenCursor, who string, typ wordheap.DataType) {
	name := in.nextName(c, signalx.NewNameExpected, who)
	e := in.dict.AddWord(name, "", dict.Executable, dict.Variable, dict.Behavior{})
	in.heap.Allocate(e.WordID, variableCell, typ)
	alloc := in.heap.Lookup(e.WordID)
	if alloc == nil || alloc.BaseAddr() == 0 {
		signalx.Raise(signalx.InvalidVarAlloc, "%s %s: allocation failed", who, name)
	}
	e.Behavior = dict.VariableBehavior(alloc)
}

// resizeWordData backs ALLOT and ALLOT>: the entry's heap region grows
// or shrinks to n bytes, contents preserved up to the overlap.
func (in *Interpreter) resizeWordData(e *dict.Entry, n int) {
	if e == nil || e.Type != dict.Variable {
		signalx.Raise(signalx.InvalidVarAlloc, "ALLOT targets a CREATE/VARIABLE word")
	}
	alloc := e.Behavior.VariableData()
	if alloc == nil {
		signalx.Raise(signalx.InvalidVarAlloc, "ALLOT: %s has no data region", e.Name())
	}
	if n < 0 {
		signalx.Raise(signalx.InvalidVarAlloc, "ALLOT: negative size %d", n)
	}
	in.heap.Resize(e.WordID, n, alloc.Type)
}

// findNamed consumes a name token and resolves it in the dictionary,
// raising signal 14 when it does not resolve.
func (in *Interpreter) findNamed(c *tokenCursor, who string) *dict.Entry {
	name := in.nextName(c, signalx.NameNotResolvable, who)
	e := in.dict.Find(name)
	if e == nil {
		signalx.Raise(signalx.NameNotResolvable, "%s: %s not found", who, name)
	}
	return e
}
