package main

// @generated from jit_test.go

//go:generate go run scripts/gen_jit_expects.go -- jit_test.go jit_expects_test.go

import (
	"github.com/albanforth/jitforth/internal/signalx"
)

func withJITOptions(opts ...InterpreterOption) func(jitTestCase) jitTestCase {
	return func(jt jitTestCase) jitTestCase {
		return jt.withOptions(opts...)
	}
}

func withJITInput(lines ...string) func(jitTestCase) jitTestCase {
	return func(jt jitTestCase) jitTestCase {
		return jt.withInput(lines...)
	}
}

func expectJITOutput(s string) func(jitTestCase) jitTestCase {
	return func(jt jitTestCase) jitTestCase {
		return jt.expectOutput(s)
	}
}

func expectJITStack(values ...int64) func(jitTestCase) jitTestCase {
	return func(jt jitTestCase) jitTestCase {
		return jt.expectStack(values...)
	}
}

func expectJITFloatStack(tol float64, values ...float64) func(jitTestCase) jitTestCase {
	return func(jt jitTestCase) jitTestCase {
		return jt.expectFloatStack(tol, values...)
	}
}

func expectJITSignal(code signalx.Code) func(jitTestCase) jitTestCase {
	return func(jt jitTestCase) jitTestCase {
		return jt.expectSignal(code)
	}
}

func expectJITWord(name string) func(jitTestCase) jitTestCase {
	return func(jt jitTestCase) jitTestCase {
		return jt.expectWord(name)
	}
}

func expectJITNoWord(name string) func(jitTestCase) jitTestCase {
	return func(jt jitTestCase) jitTestCase {
		return jt.expectNoWord(name)
	}
}
