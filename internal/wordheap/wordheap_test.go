package wordheap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/albanforth/jitforth/internal/symtab"
	"github.com/albanforth/jitforth/internal/wordheap"
)

func TestAllocateAligns(t *testing.T) {
	var h wordheap.Heap
	tab := symtab.NewTable()
	w := tab.Intern("BUF")

	data := h.Allocate(w, 5, wordheap.Byte)
	assert.Len(t, data, 16)
}

func TestResizePreservesPrefix(t *testing.T) {
	var h wordheap.Heap
	tab := symtab.NewTable()
	w := tab.Intern("BUF")

	data := h.Allocate(w, 4, wordheap.Int)
	copy(data, []byte{1, 2, 3, 4})

	grown := h.Resize(w, 20, wordheap.Int)
	assert.Len(t, grown, 32)
	assert.Equal(t, []byte{1, 2, 3, 4}, grown[:4])
}

func TestFreeRemovesAllocation(t *testing.T) {
	var h wordheap.Heap
	tab := symtab.NewTable()
	w := tab.Intern("BUF")

	h.Allocate(w, 4, wordheap.Int)
	h.Free(w)
	assert.Nil(t, h.Lookup(w))
}
