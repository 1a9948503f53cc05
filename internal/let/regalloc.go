package let

import (
	"sort"
	"strings"

	"github.com/albanforth/jitforth/internal/asm"
	"github.com/albanforth/jitforth/internal/signalx"
)

// Policy tunes the Tracker's eviction heuristics; the interpreter
// context carries one per compile instead of any global toggles.
type Policy struct {
	// GPCache picks the lowest-remaining-usage victim on spill; off
	// falls back to bind order (oldest value evicted first).
	GPCache bool
	// TrackLRU maintains the bind-order accounting the non-GPCache
	// fallback consults; with it off too, eviction degrades to
	// smallest register id.
	TrackLRU bool
}

// DefaultPolicy enables both heuristics.
var DefaultPolicy = Policy{GPCache: true, TrackLRU: true}

// firstAllocReg/lastAllocReg bound the XMM register pool the allocator
// draws from. xmm0/xmm1 are reserved outside the pool entirely,
// keeping them free for the argument/return convention of a foreign
// math call (see Tracker.SpillAllForCall) without any allocation bias
// bookkeeping.
const (
	firstAllocReg = asm.XMM2
	lastAllocReg  = asm.XMM15
)

// Tracker is a linear-scan XMM allocator over a single LET statement's
// live values, keyed by string: "var:<name>" for an input or WHERE
// binding, "lit:<hex bits>" for a cached literal, "#<node id>" for an
// intermediate expression result. Every key is bound exactly once via
// Bind, read one or more times via Use/Unpin pairs, and discarded for
// good the moment its use count reaches zero while unpinned.
//
// Spilling bounces a value through a scratch GPR (asm.RAX) onto the
// native machine stack via PushR/PopR, since internal/asm has no direct
// XMM push/pop; reloads are required to happen in the reverse order
// spills occurred, matching the natural LIFO lifetime of values in a
// tree-shaped expression evaluator. A reload that doesn't see its key
// on top of the spill stack is an allocator bug, not a user error, and
// raises signalx.LetCodegenFailure rather than silently corrupting
// another live value.
type Tracker struct {
	h      *asm.CodeHolder
	policy Policy

	free []asm.XMM // ascending; acquireReg always takes free[0]

	reg      map[string]asm.XMM // key -> resident register
	owner    map[asm.XMM]string // register -> resident key (inverse of reg)
	pinned   map[asm.XMM]bool   // true while actively held across a combine
	refsLeft map[string]int
	bindSeq  map[string]int // TrackLRU: monotonic bind/reload order
	seq      int

	spillStack []string // LIFO: keys currently bounced to the native stack
	spilled    map[string]bool
}

// NewTracker returns an allocator over h's assembler with a full pool
// of unreserved XMM registers free and the default policy.
func NewTracker(h *asm.CodeHolder) *Tracker {
	return NewTrackerWith(h, DefaultPolicy)
}

// NewTrackerWith is NewTracker under an explicit eviction policy.
func NewTrackerWith(h *asm.CodeHolder, policy Policy) *Tracker {
	free := make([]asm.XMM, 0, int(lastAllocReg-firstAllocReg)+1)
	for r := firstAllocReg; r <= lastAllocReg; r++ {
		free = append(free, r)
	}
	return &Tracker{
		h:        h,
		policy:   policy,
		free:     free,
		reg:      map[string]asm.XMM{},
		owner:    map[asm.XMM]string{},
		pinned:   map[asm.XMM]bool{},
		refsLeft: map[string]int{},
		bindSeq:  map[string]int{},
		spilled:  map[string]bool{},
	}
}

// Known reports whether key has already been Bind-ed, whether or not
// it is currently resident.
func (t *Tracker) Known(key string) bool {
	_, resident := t.reg[key]
	return resident || t.spilled[key]
}

// Bind reserves a fresh register for key, which must not already be
// known, recording that it will be read refs more times via Use. The
// caller is responsible for emitting the code that materializes key's
// value into the returned register.
func (t *Tracker) Bind(key string, refs int) asm.XMM {
	reg := t.acquireReg()
	t.reg[key] = reg
	t.owner[reg] = key
	t.pinned[reg] = true
	t.refsLeft[key] = refs
	t.touch(key)
	return reg
}

func (t *Tracker) touch(key string) {
	if t.policy.TrackLRU {
		t.seq++
		t.bindSeq[key] = t.seq
	}
}

// Use returns the register holding key's value, reloading it from the
// spill area first if necessary, and pins it so it cannot be chosen as
// a spill victim until the matching Unpin. Decrements key's remaining
// use count; once it reaches zero, the following Unpin discards key
// for good instead of leaving it resident.
func (t *Tracker) Use(key string) asm.XMM {
	reg, ok := t.reg[key]
	if !ok {
		if !t.spilled[key] {
			signalx.Raise(signalx.LetCodegenFailure, "LET: internal error, read of unbound value %q", key)
		}
		reg = t.reload(key)
	}
	t.pinned[reg] = true
	t.refsLeft[key]--
	return reg
}

// Unpin releases the pin Use placed on key's register. If key's use
// count has reached zero, the register is freed back to the pool;
// otherwise it remains resident and eligible for a future spill.
func (t *Tracker) Unpin(key string) {
	reg, ok := t.reg[key]
	if !ok {
		return // already spilled again by a nested call; nothing to do
	}
	t.pinned[reg] = false
	if t.refsLeft[key] <= 0 {
		delete(t.reg, key)
		delete(t.owner, reg)
		t.release(reg)
	}
}

// SavedReg records one value spilled across a foreign call, along
// with whether its register was pinned at the time, so the reload can
// restore the exact pin state instead of leaving everything pinned.
type SavedReg struct {
	Key    string
	Pinned bool
}

// SpillAllForCall bounces every resident register to the native stack
// ahead of a foreign call, since a called-out function's body is free
// to clobber any caller-saved register the Go/System-V ABI doesn't
// dedicate to a fixed purpose. It returns the saved set to hand back
// to ReloadAllForCall once the call returns.
func (t *Tracker) SpillAllForCall() []SavedReg {
	regs := make([]asm.XMM, 0, len(t.owner))
	for r := range t.owner {
		regs = append(regs, r)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i] < regs[j] })

	saved := make([]SavedReg, 0, len(regs))
	for _, r := range regs {
		saved = append(saved, SavedReg{Key: t.owner[r], Pinned: t.pinned[r]})
		t.spillReg(r)
	}
	return saved
}

// ReloadAllForCall restores every value SpillAllForCall saved, in
// reverse order, back into freshly acquired registers with their
// original pin state.
func (t *Tracker) ReloadAllForCall(saved []SavedReg) {
	for i := len(saved) - 1; i >= 0; i-- {
		s := saved[i]
		reg := t.reload(s.Key)
		t.pinned[reg] = s.Pinned
	}
}

func (t *Tracker) acquireReg() asm.XMM {
	if len(t.free) == 0 {
		t.spillVictim()
	}
	reg := t.free[0]
	t.free = t.free[1:]
	return reg
}

func (t *Tracker) release(reg asm.XMM) {
	t.free = insertSorted(t.free, reg)
}

// spillVictim picks an unpinned resident register to evict. Cached
// literals go first (they reload from an immediate as cheaply as from
// a slot); after that, GPCache picks the value with the fewest
// remaining uses, TrackLRU the oldest-bound value, and the last
// fallback the smallest register id. All ties break deterministically
// toward the smallest register id.
func (t *Tracker) spillVictim() {
	victim, found := t.pickVictim(func(key string) bool { return strings.HasPrefix(key, "lit:") })
	if !found {
		victim, found = t.pickVictim(func(string) bool { return true })
	}
	if !found {
		signalx.Raise(signalx.RegAllocExhausted, "LET: expression too complex, register allocator exhausted")
	}
	t.spillReg(victim)
	t.free = insertSorted(t.free, victim)
}

func (t *Tracker) pickVictim(eligible func(key string) bool) (asm.XMM, bool) {
	better := func(key string, r asm.XMM, bestKey string, best asm.XMM) bool {
		switch {
		case t.policy.GPCache:
			if t.refsLeft[key] != t.refsLeft[bestKey] {
				return t.refsLeft[key] < t.refsLeft[bestKey]
			}
		case t.policy.TrackLRU:
			if t.bindSeq[key] != t.bindSeq[bestKey] {
				return t.bindSeq[key] < t.bindSeq[bestKey]
			}
		}
		return r < best
	}

	var victim asm.XMM
	found := false
	for r, key := range t.owner {
		if t.pinned[r] || !eligible(key) {
			continue
		}
		if !found || better(key, r, t.owner[victim], victim) {
			victim = r
			found = true
		}
	}
	return victim, found
}

func (t *Tracker) spillReg(reg asm.XMM) {
	key := t.owner[reg]
	t.h.MovqFromXMM(asm.RAX, reg)
	t.h.PushR(asm.RAX)
	t.spillStack = append(t.spillStack, key)
	t.spilled[key] = true
	delete(t.reg, key)
	delete(t.owner, reg)
	delete(t.pinned, reg)
}

func (t *Tracker) reload(key string) asm.XMM {
	n := len(t.spillStack)
	if n == 0 || t.spillStack[n-1] != key {
		signalx.Raise(signalx.LetCodegenFailure, "LET: internal error, spill stack out of order for %q", key)
	}
	t.spillStack = t.spillStack[:n-1]
	delete(t.spilled, key)

	reg := t.acquireReg()
	t.h.PopR(asm.RAX)
	t.h.MovqToXMM(reg, asm.RAX)
	t.reg[key] = reg
	t.owner[reg] = key
	t.touch(key)
	return reg
}

// DiscardSpills drops any values still parked on the native stack at
// the end of a compile — a spilled value whose remaining uses never
// materialized (an unused WHERE binding's literals, say) would
// otherwise leave the machine stack unbalanced at the emitted ret.
func (t *Tracker) DiscardSpills() {
	if n := len(t.spillStack); n > 0 {
		t.h.AddRI(asm.RSP, int32(8*n))
		t.spillStack = nil
		t.spilled = map[string]bool{}
	}
}

func insertSorted(free []asm.XMM, reg asm.XMM) []asm.XMM {
	i := sort.Search(len(free), func(i int) bool { return free[i] >= reg })
	free = append(free, 0)
	copy(free[i+1:], free[i:])
	free[i] = reg
	return free
}
