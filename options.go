package main

import (
	"io"

	"github.com/albanforth/jitforth/internal/asm"
)

// InterpreterOption configures a new Interpreter. Everything that
// could have been a package-level toggle — logging, the optimizer
// switch, stack sizing, register-allocator tuning — flows through one
// of these instead, so all state hangs off the owning Interpreter.
type InterpreterOption interface{ apply(in *Interpreter) }

// InterpreterOptions flattens a list of options into one applier.
func InterpreterOptions(opts ...InterpreterOption) InterpreterOption {
	var res options
	for _, opt := range opts {
		switch impl := opt.(type) {
		case nil, noption:
		case options:
			res = append(res, impl...)
		default:
			res = append(res, opt)
		}
	}
	if len(res) == 1 {
		return res[0]
	}
	return res
}

type noption struct{}

func (noption) apply(*Interpreter) {}

type options []InterpreterOption

func (opts options) apply(in *Interpreter) {
	for _, opt := range opts {
		if opt != nil {
			opt.apply(in)
		}
	}
}

type logfOption asm.Logf

func (o logfOption) apply(in *Interpreter) { in.logf = asm.Logf(o) }

// WithLogf attaches logf as the code holder's trace sink, which logs a
// line when each function's assembly starts and when it is finalized
// (individual instructions are not logged); wired on when -trace is set.
func WithLogf(logf func(mess string, args ...interface{})) InterpreterOption {
	return logfOption(logf)
}

type dataDepthOption int

func (o dataDepthOption) apply(in *Interpreter) { in.dataDepth = int(o) }

// WithDataStackDepth overrides the data arena's cell capacity (default
// 4 MiB worth of cells).
func WithDataStackDepth(cells int) InterpreterOption { return dataDepthOption(cells) }

type returnDepthOption int

func (o returnDepthOption) apply(in *Interpreter) { in.returnDepth = int(o) }

// WithReturnStackDepth overrides the return arena's cell capacity
// (default 1 MiB worth of cells).
func WithReturnStackDepth(cells int) InterpreterOption { return returnDepthOption(cells) }

type outputOption struct{ io.Writer }

func (o outputOption) apply(in *Interpreter) { in.output = o.Writer }

// WithOutput wires the print adapter's backing writer (., EMIT, CR,
// SPACE, ."...").
func WithOutput(w io.Writer) InterpreterOption { return outputOption{w} }

type optimizeOption bool

func (o optimizeOption) apply(in *Interpreter) { in.optimize = bool(o) }

// WithOptimizer toggles the peephole pass over definition token
// streams. On by default; off compiles every token literally, which
// the optimizer-preservation tests rely on for their reference runs.
func WithOptimizer(enabled bool) InterpreterOption { return optimizeOption(enabled) }

type gpCacheOption bool

func (o gpCacheOption) apply(in *Interpreter) { in.gpCache = bool(o) }

// WithGPCache toggles LET's spill heuristic: when enabled (the
// default), the register tracker prefers evicting the lowest-usage
// non-constant value instead of strictly the oldest; see
// internal/let.Tracker.
func WithGPCache(enabled bool) InterpreterOption { return gpCacheOption(enabled) }

type trackLRUOption bool

func (o trackLRUOption) apply(in *Interpreter) { in.trackLRU = bool(o) }

// WithTrackLRU toggles the bind-order accounting the non-GPCache
// eviction fallback consults.
func WithTrackLRU(enabled bool) InterpreterOption { return trackLRUOption(enabled) }
