// Package wordheap allocates and resizes the per-word data regions
// backing CREATE, VARIABLE, ALLOT and ALLOT>: a map from word id to a
// 16-byte-aligned, variable-sized allocation that preserves existing
// contents across a resize.
package wordheap

import (
	"unsafe"

	"github.com/albanforth/jitforth/internal/symtab"
)

// DataType records what a word's allocation is being used to hold, for
// diagnostics only — the heap itself always deals in raw bytes.
type DataType int

// Data type tags.
const (
	Default DataType = iota
	Byte
	Int
	Float
	FloatArray
	String
)

func (t DataType) String() string {
	switch t {
	case Byte:
		return "Byte"
	case Int:
		return "Integer"
	case Float:
		return "Float"
	case FloatArray:
		return "Float Array"
	case String:
		return "String"
	default:
		return "Raw Bytes"
	}
}

const alignment = 16

// Allocation is one word's heap-backed memory region. addr shadows
// Data's base address in a cell whose own address never changes for
// the Allocation's lifetime, so emitted code can reach the region
// through one extra load and keep working after a Resize relocates
// the backing bytes.
type Allocation struct {
	Data []byte
	Type DataType
	addr uintptr
}

// BaseAddr returns the current address of the region's first byte, or
// 0 for an empty region.
func (a *Allocation) BaseAddr() uintptr { return a.addr }

// CellAddr returns the stable address of the cell holding BaseAddr,
// the indirection target VARIABLE bodies and the fused VAR_@/VAR_!
// opcodes load through.
func (a *Allocation) CellAddr() uintptr { return uintptr(unsafe.Pointer(&a.addr)) }

func (a *Allocation) rebase() {
	if len(a.Data) > 0 {
		a.addr = uintptr(unsafe.Pointer(&a.Data[0]))
	} else {
		a.addr = 0
	}
}

// Heap owns the allocations for every word that has been CREATEd or
// VARIABLEd. The zero value is ready to use.
type Heap struct {
	allocs map[symtab.ID]*Allocation
}

// Allocate reserves a fresh, zeroed, 16-byte-aligned region of size
// bytes for word, tagged with typ. If word already has an allocation it
// is resized in place (see Resize) rather than replaced.
func (h *Heap) Allocate(word symtab.ID, size int, typ DataType) []byte {
	if h.allocs == nil {
		h.allocs = make(map[symtab.ID]*Allocation)
	}
	if a, ok := h.allocs[word]; ok {
		return h.Resize(word, size, a.Type)
	}
	a := &Allocation{Data: alignedBytes(alignUp(size)), Type: typ}
	a.rebase()
	h.allocs[word] = a
	return a.Data
}

// Resize grows or shrinks word's allocation to size bytes, preserving
// the overlapping prefix of the old contents. Go's allocator cannot
// fail the way a realloc can, so there is no restore-the-old-region
// failure path.
func (h *Heap) Resize(word symtab.ID, size int, typ DataType) []byte {
	if h.allocs == nil {
		h.allocs = make(map[symtab.ID]*Allocation)
	}
	a, ok := h.allocs[word]
	if !ok {
		return h.Allocate(word, size, typ)
	}
	next := alignedBytes(alignUp(size))
	copy(next, a.Data)
	a.Data = next
	a.Type = typ
	a.rebase()
	return a.Data
}

// Lookup returns word's allocation, or nil if it has none.
func (h *Heap) Lookup(word symtab.ID) *Allocation {
	if h.allocs == nil {
		return nil
	}
	return h.allocs[word]
}

// Free releases word's allocation, if any.
func (h *Heap) Free(word symtab.ID) {
	delete(h.allocs, word)
}

// Clear releases every allocation.
func (h *Heap) Clear() {
	h.allocs = nil
}

func alignUp(size int) int {
	if size < 0 {
		size = 0
	}
	return (size + alignment - 1) &^ (alignment - 1)
}

// alignedBytes returns a size-byte slice whose first byte sits on a
// 16-byte boundary. Go's allocator only promises 8-byte alignment for
// byte slices, so the region is over-allocated and re-sliced at the
// first aligned offset.
func alignedBytes(size int) []byte {
	if size == 0 {
		return nil
	}
	buf := make([]byte, size+alignment)
	off := int((alignment - uintptr(unsafe.Pointer(&buf[0]))%alignment) % alignment)
	return buf[off : off+size : off+size]
}
