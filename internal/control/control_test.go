package control_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albanforth/jitforth/internal/asm"
	"github.com/albanforth/jitforth/internal/control"
)

func TestIfThenEmitsAndResolves(t *testing.T) {
	h := asm.NewCodeHolder(nil)
	h.Start()
	var s control.Stack

	control.StartFunction(h, &s)
	control.If(h, &s)
	h.NegR(asm.RAX)
	control.Then(h, &s)
	control.Return(h, &s)

	_, err := h.Finalize()
	require.NoError(t, err)
}

func TestIfElseThen(t *testing.T) {
	h := asm.NewCodeHolder(nil)
	h.Start()
	var s control.Stack

	control.StartFunction(h, &s)
	control.If(h, &s)
	h.NegR(asm.RAX)
	control.Else(h, &s)
	h.NegR(asm.RBX)
	control.Then(h, &s)
	control.Return(h, &s)

	_, err := h.Finalize()
	require.NoError(t, err)
}

func TestBeginUntil(t *testing.T) {
	h := asm.NewCodeHolder(nil)
	h.Start()
	var s control.Stack

	control.StartFunction(h, &s)
	control.Begin(h, &s)
	h.NegR(asm.RAX)
	control.Until(h, &s)
	control.Return(h, &s)

	_, err := h.Finalize()
	require.NoError(t, err)
}

func TestDoLoop(t *testing.T) {
	h := asm.NewCodeHolder(nil)
	h.Start()
	var s control.Stack

	control.StartFunction(h, &s)
	control.Do(h, &s)
	control.I(h)
	control.Loop(h, &s)
	control.Return(h, &s)

	_, err := h.Finalize()
	require.NoError(t, err)
}

func TestThenWithoutIfPanics(t *testing.T) {
	h := asm.NewCodeHolder(nil)
	h.Start()
	var s control.Stack
	assert.Panics(t, func() { control.Then(h, &s) })
}

func TestLeaveOutsideLoopPanics(t *testing.T) {
	h := asm.NewCodeHolder(nil)
	h.Start()
	var s control.Stack
	control.StartFunction(h, &s)
	assert.Panics(t, func() { control.Leave(h, &s) })
}

func TestExitOutsideFunctionPanics(t *testing.T) {
	h := asm.NewCodeHolder(nil)
	h.Start()
	var s control.Stack
	assert.Panics(t, func() { control.Exit(h, &s) })
}
