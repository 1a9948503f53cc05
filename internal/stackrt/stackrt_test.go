package stackrt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albanforth/jitforth/internal/stackrt"
)

func TestPushPop(t *testing.T) {
	a := stackrt.NewArena(4)
	require.NoError(t, a.Push(1))
	require.NoError(t, a.Push(2))
	assert.Equal(t, 2, a.Depth())

	v, err := a.Pop()
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
	assert.Equal(t, 1, a.Depth())
}

func TestOverflow(t *testing.T) {
	a := stackrt.NewArena(1)
	require.NoError(t, a.Push(1))
	assert.Error(t, a.Push(2))
}

func TestUnderflow(t *testing.T) {
	a := stackrt.NewArena(1)
	_, err := a.Pop()
	assert.Error(t, err)
}

func TestPeek(t *testing.T) {
	a := stackrt.NewArena(4)
	require.NoError(t, a.Push(10))
	require.NoError(t, a.Push(20))

	top, err := a.Peek(0)
	require.NoError(t, err)
	assert.EqualValues(t, 20, top)

	under, err := a.Peek(1)
	require.NoError(t, err)
	assert.EqualValues(t, 10, under)
}

func TestRegisterAssignmentDistinct(t *testing.T) {
	assert.NotEqual(t, stackrt.RegDSP, stackrt.RegTOS)
	assert.NotEqual(t, stackrt.RegTOS, stackrt.RegTOS1)
	assert.NotEqual(t, stackrt.RegRSP, stackrt.RegDSP)
}
