package asm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albanforth/jitforth/internal/asm"
)

func TestMovRegImm64Encoding(t *testing.T) {
	a := asm.NewAssembler()
	a.Start()
	a.MovRegImm64(asm.RAX, 0x0102030405060708)
	got := a.Bytes()
	assert.Equal(t, byte(0x48), got[0])
	assert.Equal(t, byte(0xb8), got[1])
}

func TestAddRRRoundTrips(t *testing.T) {
	a := asm.NewAssembler()
	a.Start()
	a.AddRR(asm.R14, asm.R15)
	assert.NotEmpty(t, a.Bytes())
}

func TestJumpResolvesForwardLabel(t *testing.T) {
	a := asm.NewAssembler()
	a.Start()
	l := a.Label()
	a.Jump(asm.CCAlways, l)
	a.NegR(asm.RAX)
	a.Bind(l)
	a.Ret()
	assert.False(t, hasUnresolvedLabel(a))
}

func hasUnresolvedLabel(a *asm.Assembler) bool {
	// indirect probe: Finalize would raise signal 12 on an unresolved
	// label; since the label above is bound, Finalize must not panic.
	h := asm.NewCodeHolder(nil)
	h.Assembler = a
	_, err := h.Finalize()
	return err != nil
}

func TestCodeHolderFinalizeRuns(t *testing.T) {
	h := asm.NewCodeHolder(nil)
	h.Start()
	h.XorRR(asm.RAX, asm.RAX)

	fn, err := h.Finalize()
	require.NoError(t, err)
	require.NotNil(t, fn)
	assert.NotPanics(t, func() { fn() })
	h.Release()
}

func TestFinalizeNullAssemblerRaisesSignal(t *testing.T) {
	h := &asm.CodeHolder{}
	assert.Panics(t, func() { _, _ = h.Finalize() })
}
