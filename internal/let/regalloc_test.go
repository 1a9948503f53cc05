package let

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albanforth/jitforth/internal/asm"
)

func newTestHolder() *asm.CodeHolder {
	h := asm.NewCodeHolder(nil)
	h.Start()
	return h
}

func TestTrackerBindUseUnpinRoundTrip(t *testing.T) {
	h := newTestHolder()
	tr := NewTracker(h)

	reg := tr.Bind("x", 2)
	assert.True(t, tr.Known("x"))

	got := tr.Use("x")
	assert.Equal(t, reg, got)
	tr.Unpin("x")
	assert.True(t, tr.Known("x")) // one use remains

	got2 := tr.Use("x")
	assert.Equal(t, reg, got2)
	tr.Unpin("x")
	assert.False(t, tr.Known("x")) // fully consumed, register released
}

// TestTrackerSpillsUnderPressure forces more live values than the
// register file holds and confirms every later reload sees the key it
// expects — the Tracker's own internal LIFO bookkeeping, not emitted
// machine code, so it is safe to exercise directly without invoking
// any JIT-compiled body.
func TestTrackerSpillsUnderPressure(t *testing.T) {
	h := newTestHolder()
	tr := NewTracker(h)

	const n = 20
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("v%d", i)
		keys[i] = key
		reg := tr.Bind(key, 1)
		h.MovRegImm64(asm.RAX, uint64(i))
		h.MovqToXMM(reg, asm.RAX)
		tr.Unpin(key)
	}

	assert.NotPanics(t, func() {
		for i := n - 1; i >= 0; i-- {
			tr.Use(keys[i])
			tr.Unpin(keys[i])
		}
	})

	for _, k := range keys {
		assert.False(t, tr.Known(k), k)
	}
	assert.NotEmpty(t, h.Bytes())
}

func TestTrackerSpillAllForCallRoundTrips(t *testing.T) {
	h := newTestHolder()
	tr := NewTracker(h)

	tr.Bind("a", 1)
	tr.Unpin("a")
	tr.Bind("b", 1)
	tr.Unpin("b")

	var saved []SavedReg
	assert.NotPanics(t, func() { saved = tr.SpillAllForCall() })
	require.Len(t, saved, 2)
	assert.NotPanics(t, func() { tr.ReloadAllForCall(saved) })

	assert.True(t, tr.Known("a"))
	assert.True(t, tr.Known("b"))
}

func TestTrackerReloadOutOfOrderRaises(t *testing.T) {
	h := newTestHolder()
	tr := NewTracker(h)

	const n = 16 // exceeds the 14-register pool, forcing at least one spill
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = fmt.Sprintf("w%d", i)
		tr.Bind(keys[i], 1)
		tr.Unpin(keys[i])
	}

	// Reloading in forward (non-LIFO) order must hit the spill-stack
	// ordering guard on whichever key was actually spilled first.
	assert.Panics(t, func() {
		for i := 0; i < n; i++ {
			tr.Use(keys[i])
		}
	})
}
