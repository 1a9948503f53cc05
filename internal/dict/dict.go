// Package dict implements the dictionary: 32 newest-first length
// chains of Entry, with a tagged-variant Behavior sum type in place of
// a bag of four nilable function-pointer fields.
package dict

import (
	"fmt"

	"github.com/albanforth/jitforth/internal/asm"
	"github.com/albanforth/jitforth/internal/signalx"
	"github.com/albanforth/jitforth/internal/symtab"
	"github.com/albanforth/jitforth/internal/wordheap"
)

// MaxWordLength bounds name length and sizes the dictionary's
// length-indexed chains.
const MaxWordLength = 32

// State classifies how an entry behaves when encountered.
type State int

// States.
const (
	Executable State = iota
	Immediate
	GeneratorState
)

// WordType classifies what kind of thing an entry names.
type WordType int

// Word types.
const (
	Word WordType = iota
	Variable
	Vocabulary
	Macro
)

// BehaviorKind tags which variant a Behavior holds.
type BehaviorKind int

// Behavior kinds.
const (
	BehaviorPrimitive BehaviorKind = iota
	BehaviorCompiled
	BehaviorImmediateInterp
	BehaviorImmediateComp
	BehaviorDeferred
	BehaviorVariable
	BehaviorVocabulary
)

// Generator emits inline code at the call site into the current
// function body being assembled.
type Generator func(h *asm.CodeHolder)

// ImmediateInterpreter consumes subsequent tokens at interpret time.
// The token stream type lives in internal/token but is passed here as
// an opaque interface{} to avoid a dependency cycle; callers type-assert.
type ImmediateInterpreter func(ctx interface{})

// ImmediateCompiler consumes subsequent tokens at compile time.
type ImmediateCompiler func(ctx interface{})

// Behavior is the tagged variant behind an entry's four optional
// function pointers. Exactly one arm is populated, matching Kind.
type Behavior struct {
	Kind BehaviorKind

	generator    Generator     // BehaviorPrimitive
	executable   asm.ForthFunc // BehaviorCompiled
	immInterp    ImmediateInterpreter
	immComp      ImmediateCompiler
	addr         uintptr // BehaviorCompiled: raw entry address for CallAbs
	deferTarget  *Entry  // BehaviorDeferred: forwarding target; Retarget copies fields instead and leaves this nil
	variableData *wordheap.Allocation
}

// Primitive builds a Behavior that emits gen inline at every call site.
func Primitive(gen Generator) Behavior { return Behavior{Kind: BehaviorPrimitive, generator: gen} }

// PrimitiveCompiled builds a Behavior carrying both an inline generator
// and a standalone callable built from it, the dual role the loader
// gives every plain primitive: gen inlines at compile sites, fn/addr
// serve interpret-time invocation and CALL-compiled references.
func PrimitiveCompiled(gen Generator, fn asm.ForthFunc, addr uintptr) Behavior {
	return Behavior{Kind: BehaviorPrimitive, generator: gen, executable: fn, addr: addr}
}

// Compiled builds a Behavior wrapping a standalone callable function
// at addr, the entry address a caller's CALL site targets.
func Compiled(fn asm.ForthFunc, addr uintptr) Behavior {
	return Behavior{Kind: BehaviorCompiled, executable: fn, addr: addr}
}

// ImmInterp builds a Behavior for a word that drives the token stream
// at interpret time.
func ImmInterp(fn ImmediateInterpreter) Behavior {
	return Behavior{Kind: BehaviorImmediateInterp, immInterp: fn}
}

// ImmComp builds a Behavior for a word that drives the token stream at
// compile time.
func ImmComp(fn ImmediateCompiler) Behavior {
	return Behavior{Kind: BehaviorImmediateComp, immComp: fn}
}

// ImmediateBoth builds a Behavior for a word immediate in both modes,
// with distinct interpret-time and compile-time token consumers.
func ImmediateBoth(interp ImmediateInterpreter, comp ImmediateCompiler) Behavior {
	return Behavior{Kind: BehaviorImmediateComp, immInterp: interp, immComp: comp}
}

// DeferredBehavior builds an unresolved DEFER behavior; IS retargets it.
func DeferredBehavior() Behavior { return Behavior{Kind: BehaviorDeferred} }

// VariableBehavior builds a Behavior for a CREATE/VARIABLE word backed
// by data.
func VariableBehavior(data *wordheap.Allocation) Behavior {
	return Behavior{Kind: BehaviorVariable, variableData: data}
}

// VocabularyBehavior builds a Behavior for a vocabulary-defining word.
func VocabularyBehavior() Behavior { return Behavior{Kind: BehaviorVocabulary} }

// Generator returns the entry's generator function, meaningful only
// when the entry carries one (primitives, and DEFER targets
// retargeted from one).
func (b Behavior) Generator() Generator { return b.generator }

// Executable returns the entry's standalone callable: set for compiled
// words, for primitives built with PrimitiveCompiled, and for a DEFER
// word once IS has copied its source's fields over (see Retarget).
func (b Behavior) Executable() asm.ForthFunc {
	if b.Kind == BehaviorDeferred && b.deferTarget != nil {
		return b.deferTarget.Behavior.Executable()
	}
	return b.executable
}

// Addr returns the entry's raw CALL-site address: set for compiled
// words, for primitives built with PrimitiveCompiled, and for a DEFER
// word once IS has copied its source's fields over (see Retarget).
func (b Behavior) Addr() uintptr {
	if b.Kind == BehaviorDeferred && b.deferTarget != nil {
		return b.deferTarget.Behavior.Addr()
	}
	return b.addr
}

// ImmediateInterpreter returns the entry's interpret-time token
// consumer, meaningful only when Kind == BehaviorImmediateInterp.
func (b Behavior) ImmediateInterpreter() ImmediateInterpreter { return b.immInterp }

// ImmediateCompiler returns the entry's compile-time token consumer,
// meaningful only when Kind == BehaviorImmediateComp.
func (b Behavior) ImmediateCompiler() ImmediateCompiler { return b.immComp }

// VariableData returns the backing allocation for a Variable behavior.
func (b Behavior) VariableData() *wordheap.Allocation { return b.variableData }

// Entry is one dictionary word.
type Entry struct {
	WordID   symtab.ID
	VocabID  symtab.ID
	State    State
	Type     WordType
	Behavior Behavior
	Previous *Entry // prior entry of the same name length
	name     string
}

// Name returns the entry's canonical (uppercased) name.
func (e *Entry) Name() string { return e.name }

// Dictionary holds the 32 length chains, the vocabulary map, the
// current compilation vocabulary, the search order, and the
// insertion-ordered history FORGET/WORDS walk.
type Dictionary struct {
	syms    *symtab.Table
	chains  [MaxWordLength]*Entry
	vocabs  map[symtab.ID]*Entry
	current symtab.ID // current compilation vocabulary
	order   []symtab.ID
	history []*Entry

	forthVocab     symtab.ID
	fragmentsVocab symtab.ID
	active         symtab.ID // most recently activated vocabulary, DEFINITIONS' target
}

// New returns a Dictionary with the FORTH and FRAGMENTS vocabularies
// registered and the search order reset to [FORTH].
func New(syms *symtab.Table) *Dictionary {
	d := &Dictionary{syms: syms, vocabs: make(map[symtab.ID]*Entry)}
	d.forthVocab = d.bootVocabulary("FORTH")
	d.fragmentsVocab = d.bootVocabulary("FRAGMENTS")
	d.current = d.forthVocab
	d.active = d.forthVocab
	d.ResetSearchOrder()
	return d
}

func (d *Dictionary) bootVocabulary(name string) symtab.ID {
	id := d.syms.Intern(name)
	e := &Entry{WordID: id, VocabID: id, State: Executable, Type: Vocabulary, Behavior: VocabularyBehavior(), name: name}
	d.vocabs[id] = e
	d.link(e)
	return id
}

func (d *Dictionary) link(e *Entry) {
	length := len(e.name)
	if length >= MaxWordLength {
		signalx.Raise(signalx.BadVocabulary, "word %q exceeds max length %d", e.name, MaxWordLength-1)
	}
	e.Previous = d.chains[length]
	d.chains[length] = e
	d.history = append(d.history, e)
}

// AddWord interns name/vocab (uppercasing both), links a new entry at
// the head of its length chain, and records it in creation order.
// vocab == "" uses the current compilation vocabulary.
func (d *Dictionary) AddWord(name, vocab string, state State, typ WordType, beh Behavior) *Entry {
	if len(name) >= MaxWordLength {
		signalx.Raise(signalx.BadVocabulary, "word %q exceeds max length %d", name, MaxWordLength-1)
	}
	wordID := d.syms.Intern(name)
	vocabID := d.current
	if vocab != "" {
		vocabID = d.syms.Intern(vocab)
	}
	e := &Entry{WordID: wordID, VocabID: vocabID, State: state, Type: typ, Behavior: beh, name: d.syms.String(wordID)}
	d.link(e)
	if typ == Vocabulary {
		d.vocabs[wordID] = e
	}
	return e
}

// Find walks name's length chain newest-first, returning the first
// entry whose vocabulary is in the current search order.
func (d *Dictionary) Find(name string) *Entry {
	id, ok := d.syms.Lookup(name)
	if !ok {
		return nil
	}
	return d.FindByToken(id)
}

// FindByToken is Find keyed by an already-interned word id.
func (d *Dictionary) FindByToken(wordID symtab.ID) *Entry {
	length := len(d.syms.String(wordID))
	if length < 0 || length >= MaxWordLength {
		return nil
	}
	for e := d.chains[length]; e != nil; e = e.Previous {
		if e.WordID != wordID {
			continue
		}
		if d.inSearchOrder(e.VocabID) {
			return e
		}
	}
	return nil
}

func (d *Dictionary) inSearchOrder(vocabID symtab.ID) bool {
	for _, v := range d.order {
		if v == vocabID {
			return true
		}
	}
	return false
}

// SetVocabulary sets the current compilation vocabulary, creating it
// if it does not already exist.
func (d *Dictionary) SetVocabulary(name string) {
	id := d.ensureVocabulary(name)
	d.current = id
}

// SetSearchOrder replaces the search order wholesale, creating any
// missing vocabularies.
func (d *Dictionary) SetSearchOrder(names ...string) {
	order := make([]symtab.ID, 0, len(names))
	for _, n := range names {
		order = append(order, d.ensureVocabulary(n))
	}
	d.order = order
}

// AddSearchOrder appends vocab to the search order, creating it if
// missing.
func (d *Dictionary) AddSearchOrder(name string) {
	d.order = append(d.order, d.ensureVocabulary(name))
}

// ResetSearchOrder restores the default search order: [FORTH].
func (d *Dictionary) ResetSearchOrder() {
	d.order = []symtab.ID{d.forthVocab}
	d.active = d.forthVocab
}

// Activate marks name's vocabulary as the most recently invoked one,
// appending it to the search order if absent. Executing a VOCABULARY
// word routes here; a following DEFINITIONS makes it the compilation
// vocabulary.
func (d *Dictionary) Activate(name string) {
	id := d.ensureVocabulary(name)
	if !d.inSearchOrder(id) {
		d.order = append(d.order, id)
	}
	d.active = id
}

// Definitions sets the compilation vocabulary to the most recently
// activated one.
func (d *Dictionary) Definitions() {
	d.current = d.active
}

// CurrentVocabulary returns the compilation vocabulary's symbol id.
func (d *Dictionary) CurrentVocabulary() symtab.ID { return d.current }

// History returns the insertion-ordered entries, oldest first, backing
// WORDS-style listings.
func (d *Dictionary) History() []*Entry { return d.history }

func (d *Dictionary) ensureVocabulary(name string) symtab.ID {
	id := d.syms.Intern(name)
	if _, ok := d.vocabs[id]; !ok {
		e := &Entry{WordID: id, VocabID: id, State: Executable, Type: Vocabulary, Behavior: VocabularyBehavior(), name: d.syms.String(id)}
		d.vocabs[id] = e
		d.link(e)
	}
	return id
}

// ForgetLastWord pops the most recently created entry, unlinks it from
// its length chain, and clears it from the vocabulary map if it named
// one. Returns an error if the dictionary is empty.
func (d *Dictionary) ForgetLastWord() error {
	if len(d.history) == 0 {
		return fmt.Errorf("dict: nothing to forget")
	}
	last := d.history[len(d.history)-1]
	d.history = d.history[:len(d.history)-1]

	length := len(last.name)
	if d.chains[length] == last {
		d.chains[length] = last.Previous
	} else {
		for e := d.chains[length]; e != nil; e = e.Previous {
			if e.Previous == last {
				e.Previous = last.Previous
				break
			}
		}
	}
	if last.Type == Vocabulary {
		delete(d.vocabs, last.WordID)
	}
	return nil
}

// Retarget copies src's generator/executable/immediate-interpreter
// fields onto e, the behavior IS needs to atomically redirect a DEFER
// word: e keeps its own identity (name, word id) but starts behaving
// exactly like src.
func (e *Entry) Retarget(src *Entry) {
	e.Behavior.generator = src.Behavior.generator
	e.Behavior.executable = src.Behavior.executable
	e.Behavior.addr = src.Behavior.addr
	e.Behavior.immInterp = src.Behavior.immInterp
	if e.Behavior.Kind == BehaviorDeferred {
		e.Behavior.Kind = src.Behavior.Kind
	}
}

// Latest returns the most recently created entry, or nil if empty.
func (d *Dictionary) Latest() *Entry {
	if len(d.history) == 0 {
		return nil
	}
	return d.history[len(d.history)-1]
}
