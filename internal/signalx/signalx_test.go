package signalx_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albanforth/jitforth/internal/signalx"
)

func TestTrapRecoversSignal(t *testing.T) {
	var got *signalx.Signal
	h := signalx.HandlerFunc(func(sig *signalx.Signal) { got = sig })

	recovered := signalx.Trap(h, func() {
		signalx.Raise(signalx.WordNotFound, "word %q", "FROB")
	})

	assert.True(t, recovered)
	require.NotNil(t, got)
	assert.Equal(t, signalx.WordNotFound, got.Code)
	assert.Contains(t, got.Error(), "FROB")
}

func TestTrapPropagatesOtherPanics(t *testing.T) {
	assert.Panics(t, func() {
		signalx.Trap(nil, func() {
			panic("host fault")
		})
	})
}

func TestTrapNoSignal(t *testing.T) {
	recovered := signalx.Trap(nil, func() {})
	assert.False(t, recovered)
}
