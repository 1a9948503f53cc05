// Command jitforth is a JIT-compiling Forth for x86-64: definitions
// entered at the REPL are peephole-optimized at the token level and
// emitted as native machine code running against a pair of register-
// cached stacks, with an embedded LET sub-language compiling algebraic
// formulas over doubles via XMM register allocation.
package main

import (
	"flag"
	"io"
	"os"
	"strings"

	"github.com/albanforth/jitforth/internal/fileinput"
	"github.com/albanforth/jitforth/internal/flushio"
	"github.com/albanforth/jitforth/internal/logio"
	"github.com/albanforth/jitforth/internal/panicerr"
	"github.com/albanforth/jitforth/internal/signalx"
)

func main() {
	var (
		trace bool
		dump  bool
		noOpt bool
	)
	flag.BoolVar(&trace, "trace", false, "log every emitted instruction group")
	flag.BoolVar(&dump, "dump", false, "print a dictionary/stack dump after execution")
	flag.BoolVar(&noOpt, "no-optimize", false, "disable the token peephole optimizer")
	flag.Parse()

	log := logio.Logger{}
	log.SetOutput(os.Stderr)
	defer os.Exit(log.ExitCode())

	out := flushio.NewWriteFlusher(os.Stdout)
	if trace {
		// Tee program output into the trace stream so prints land in
		// sequence with the instruction log around them.
		lw := &logio.Writer{Logf: log.Leveledf("OUT")}
		defer lw.Close()
		out = flushio.WriteFlushers(out, flushio.NewWriteFlusher(lw))
	}

	opts := []InterpreterOption{
		WithOutput(out),
		WithOptimizer(!noOpt),
	}
	if trace {
		opts = append(opts, WithLogf(log.Leveledf("JIT")))
	}

	in := New(opts...)

	if dump {
		lw := &logio.Writer{Logf: log.Leveledf("DUMP")}
		defer lw.Close()
		defer func() { dictDumper{in: in, out: lw}.dump() }()
	}

	var input fileinput.Input
	if args := flag.Args(); len(args) > 0 {
		for _, name := range args {
			f, err := os.Open(name)
			if err != nil {
				log.Errorf("open %v: %v", name, err)
				return
			}
			defer f.Close()
			input.Queue = append(input.Queue, f)
		}
	} else {
		input.Queue = append(input.Queue, os.Stdin)
	}

	log.ErrorIf(panicerr.Recover("forth", func() error {
		return repl(in, &input, &log, out)
	}))
}

// repl feeds the interpreter one source line at a time, trapping
// raised signals into log lines carrying the input location, so a
// failed compile reports and the prompt loop continues.
func repl(in *Interpreter, input *fileinput.Input, log *logio.Logger, out flushio.WriteFlusher) error {
	var line strings.Builder
	feed := func() {
		text := line.String()
		line.Reset()
		if strings.TrimSpace(text) == "" {
			return
		}
		loc := input.Last.Location
		signalx.Trap(signalx.HandlerFunc(func(sig *signalx.Signal) {
			log.Printf("SIGNAL", "%v (at %v)", sig, loc)
		}), func() { in.Feed(text) })
		out.Flush()
	}

	for {
		r, _, err := input.ReadRune()
		if err == io.EOF {
			feed()
			return out.Flush()
		}
		if err != nil {
			return err
		}
		switch r {
		case 0:
		case '\n':
			feed()
		default:
			line.WriteRune(r)
		}
	}
}
