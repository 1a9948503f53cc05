// Package symtab interns word names into small integer symbols.
//
// Every name is canonicalized to upper case before interning, so that
// intern(n) == intern(upper(n)) for all n: the dictionary and the
// assembler both key off of the symbol id rather than the raw string,
// and Forth source is conventionally case-insensitive.
package symtab

import "strings"

// ID identifies an interned name. The zero ID never names anything.
type ID uint64

// Table interns strings into IDs and back.
type Table struct {
	strings []string
	ids     map[string]ID
}

// NewTable returns an empty symbol table.
func NewTable() *Table {
	return &Table{ids: make(map[string]ID)}
}

// Intern canonicalizes s and returns its ID, assigning a fresh one if
// this is the first time s has been seen.
func (t *Table) Intern(s string) ID {
	s = canon(s)
	if id, ok := t.ids[s]; ok {
		return id
	}
	id := ID(len(t.strings)) + 1
	t.strings = append(t.strings, s)
	t.ids[s] = id
	return id
}

// Lookup returns the ID for s without interning it, and whether it
// was found.
func (t *Table) Lookup(s string) (ID, bool) {
	id, ok := t.ids[canon(s)]
	return id, ok
}

// String returns the canonical name for id, or "" if id is unknown.
func (t *Table) String(id ID) string {
	if i := int(id) - 1; i >= 0 && i < len(t.strings) {
		return t.strings[i]
	}
	return ""
}

// Len reports how many distinct symbols have been interned.
func (t *Table) Len() int { return len(t.strings) }

func canon(s string) string { return strings.ToUpper(s) }
