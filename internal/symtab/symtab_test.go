package symtab_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/albanforth/jitforth/internal/symtab"
)

func TestInternCanonicalizes(t *testing.T) {
	tab := symtab.NewTable()

	dup := tab.Intern("dup")
	DUP := tab.Intern("DUP")
	assert.Equal(t, dup, DUP)
	assert.Equal(t, "DUP", tab.String(dup))
}

func TestInternStable(t *testing.T) {
	tab := symtab.NewTable()

	a := tab.Intern("swap")
	b := tab.Intern("Swap")
	c := tab.Intern("rot")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, 2, tab.Len())
}

func TestLookupMiss(t *testing.T) {
	tab := symtab.NewTable()
	_, ok := tab.Lookup("nope")
	assert.False(t, ok)
}
