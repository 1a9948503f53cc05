package main

import (
	"fmt"
	"io"

	"github.com/albanforth/jitforth/internal/dict"
)

// dictDumper writes a post-run snapshot of the interpreter's durable
// state: the dictionary in creation order with each entry's vocabulary
// and behavior, then the live stack depths and cached top cells.
type dictDumper struct {
	in  *Interpreter
	out io.Writer
}

func (dump dictDumper) dump() {
	fmt.Fprintf(dump.out, "# Dictionary Dump\n")

	history := dump.in.dict.History()
	fmt.Fprintf(dump.out, "  words: %v\n", len(history))
	for i, e := range history {
		fmt.Fprintf(dump.out, "  @%-4d %-16s %-10s %s\n",
			i, e.Name(), dump.in.syms.String(e.VocabID), behaviorName(e))
	}

	dump.dumpStacks()
}

func (dump dictDumper) dumpStacks() {
	in := dump.in
	fmt.Fprintf(dump.out, "# Stacks\n")
	fmt.Fprintf(dump.out, "  data: depth %v", in.depth())
	if in.depth() > 0 {
		fmt.Fprintf(dump.out, " tos %v", int64(in.savedTOS))
	}
	if in.depth() > 1 {
		fmt.Fprintf(dump.out, " tos-1 %v", int64(in.savedTOS1))
	}
	fmt.Fprintf(dump.out, "\n")
	rdepth := (int64(in.ret.TopAddr()) - int64(in.savedRSP)) / 8
	if rdepth < 0 {
		rdepth = 0
	}
	fmt.Fprintf(dump.out, "  return: depth %v\n", rdepth)
}

func behaviorName(e *dict.Entry) string {
	switch e.Behavior.Kind {
	case dict.BehaviorPrimitive:
		if e.Behavior.Addr() != 0 {
			return "primitive"
		}
		return "generator"
	case dict.BehaviorCompiled:
		return "compiled"
	case dict.BehaviorImmediateInterp, dict.BehaviorImmediateComp:
		return "immediate"
	case dict.BehaviorDeferred:
		return "deferred"
	case dict.BehaviorVariable:
		return "variable"
	case dict.BehaviorVocabulary:
		return "vocabulary"
	}
	return "?"
}
