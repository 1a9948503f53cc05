package dict_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albanforth/jitforth/internal/dict"
	"github.com/albanforth/jitforth/internal/symtab"
)

func newDict() *dict.Dictionary {
	return dict.New(symtab.NewTable())
}

func TestAddWordAndFind(t *testing.T) {
	d := newDict()
	d.AddWord("dup", "", dict.Executable, dict.Word, dict.Primitive(nil))

	e := d.Find("DUP")
	require.NotNil(t, e)
	assert.Equal(t, "DUP", e.Name())
}

func TestRedefineShadowsOld(t *testing.T) {
	d := newDict()
	first := d.AddWord("swap", "", dict.Executable, dict.Word, dict.Primitive(nil))
	second := d.AddWord("swap", "", dict.Executable, dict.Word, dict.Primitive(nil))

	found := d.Find("SWAP")
	assert.Same(t, second, found)
	assert.NotSame(t, first, found)
	assert.Same(t, first, second.Previous)
}

func TestSearchOrderFiltersVocab(t *testing.T) {
	d := newDict()
	d.SetVocabulary("EDITOR")
	d.AddWord("x", "", dict.Executable, dict.Word, dict.Primitive(nil))

	assert.Nil(t, d.Find("X"))

	d.AddSearchOrder("EDITOR")
	assert.NotNil(t, d.Find("X"))
}

func TestForgetLastWord(t *testing.T) {
	d := newDict()
	d.AddWord("a", "", dict.Executable, dict.Word, dict.Primitive(nil))
	d.AddWord("ab", "", dict.Executable, dict.Word, dict.Primitive(nil))

	require.NoError(t, d.ForgetLastWord())
	assert.Nil(t, d.Find("AB"))
	assert.NotNil(t, d.Find("A"))
}

func TestForgetEmptyErrors(t *testing.T) {
	d := dict.New(symtab.NewTable())
	for d.Latest() != nil {
		_ = d.ForgetLastWord()
	}
	assert.Error(t, d.ForgetLastWord())
}

func TestNameTooLongRejected(t *testing.T) {
	d := newDict()
	long := make([]byte, dict.MaxWordLength)
	for i := range long {
		long[i] = 'x'
	}
	assert.Panics(t, func() {
		d.AddWord(string(long), "", dict.Executable, dict.Word, dict.Primitive(nil))
	})
}
