package let

import (
	"fmt"
	"math"

	"github.com/albanforth/jitforth/internal/asm"
	"github.com/albanforth/jitforth/internal/mathabi"
	"github.com/albanforth/jitforth/internal/signalx"
	"github.com/albanforth/jitforth/internal/stackrt"
)

// CompileWith is Compile under an explicit register-eviction policy.
func CompileWith(h *asm.CodeHolder, stmt *Statement, policy Policy) {
	compileInto(h, stmt, NewTrackerWith(h, policy))
}

// Compile lowers a fully parsed LET statement into h: it pops
// stmt.Inputs off the Forth data stack last input first (rightmost
// input on top, matching the stack-caching push/pop convention
// internal/stackrt already uses for every other word), evaluates
// stmt.Where's bindings and stmt.Results in an XMM register file
// managed by a Tracker, and pushes stmt.Results back in reverse index
// order, so the first result ends up on top. Every value moves between the integer stack cache and the
// XMM file by bit-punning through a scratch GPR, the same trick
// internal/codegen's floatBin already uses for ordinary double words.
func Compile(h *asm.CodeHolder, stmt *Statement) {
	compileInto(h, stmt, NewTracker(h))
}

func compileInto(h *asm.CodeHolder, stmt *Statement, t *Tracker) {
	if len(stmt.Outputs) != len(stmt.Results) {
		signalx.Raise(signalx.LetCodegenFailure, "LET: %d outputs but %d result expressions", len(stmt.Outputs), len(stmt.Results))
	}

	foldConstants(stmt)
	refs := countRefs(stmt)
	c := &compiler{h: h, t: t, refs: refs}

	const bounce = asm.RAX

	for i := len(stmt.Inputs) - 1; i >= 0; i-- {
		key := "var:" + stmt.Inputs[i]
		stackrt.PopReg(h.Assembler, bounce)
		if refs[key] == 0 {
			continue // popped to preserve stack depth, then discarded
		}
		reg := t.Bind(key, refs[key])
		h.MovqToXMM(reg, bounce)
	}

	for _, b := range WhereTopoOrder(stmt.Where) {
		key := "var:" + b.Name
		if refs[key] == 0 {
			continue // no remaining reference; LET has no side effects to preserve
		}
		valKey := c.emit(b.Expr)
		src := t.Use(valKey)
		dst := t.Bind(key, refs[key])
		h.MovsdRR(dst, src)
		t.Unpin(valKey)
	}

	// Results push in reverse index order, leaving the first output on
	// top of the stack.
	for i := len(stmt.Results) - 1; i >= 0; i-- {
		valKey := c.emit(stmt.Results[i])
		reg := t.Use(valKey)
		h.MovqFromXMM(bounce, reg)
		stackrt.PushReg(h.Assembler, bounce)
		t.Unpin(valKey)
	}

	t.DiscardSpills()
}

type compiler struct {
	h    *asm.CodeHolder
	t    *Tracker
	refs map[string]int
}

func litKey(v float64) string { return fmt.Sprintf("lit:%x", math.Float64bits(v)) }

// emit lowers n, returning the Tracker key under which its value can
// be retrieved via Use. Leaves (NVariable/NLiteral) alias a
// previously-bound shared key; every other node kind computes into a
// freshly bound "#<node id>" key.
func (c *compiler) emit(n *Node) string {
	switch n.Kind {
	case NVariable:
		key := "var:" + n.Name
		if !c.t.Known(key) {
			signalx.Raise(signalx.LetCodegenFailure, "LET: internal error, variable %q not bound", n.Name)
		}
		return key

	case NLiteral:
		key := litKey(n.Lit)
		if !c.t.Known(key) {
			reg := c.t.Bind(key, c.refs[key])
			c.h.MovRegImm64(asm.RAX, math.Float64bits(n.Lit))
			c.h.MovqToXMM(reg, asm.RAX)
			c.t.Unpin(key)
		}
		return key

	case NUnary:
		argKey := c.emit(n.Args[0])
		src := c.t.Use(argKey)
		own := fmt.Sprintf("#%d", n.ID)
		dst := c.t.Bind(own, 1)
		c.negate(dst, src)
		c.t.Unpin(argKey)
		return own

	case NBinary:
		return c.emitBinary(n)

	case NFunction:
		return c.emitFunction(n)

	default:
		signalx.Raise(signalx.LetCodegenFailure, "LET: internal error, unhandled node kind %d", n.Kind)
		panic("unreachable")
	}
}

// negate flips dst's sign bit, computed by XORing against a mask built
// in a throwaway XMM register since PxorRR has no immediate-operand
// form.
func (c *compiler) negate(dst, src asm.XMM) {
	maskKey := fmt.Sprintf("#neg-mask-%d-%d", dst, src)
	mask := c.t.Bind(maskKey, 0) // consumed here; freed on the Unpin below
	c.h.MovRegImm64(asm.RAX, uint64(1)<<63)
	c.h.MovqToXMM(mask, asm.RAX)
	c.h.MovsdRR(dst, src)
	c.h.PxorRR(dst, mask)
	c.t.Unpin(maskKey)
}

func (c *compiler) emitBinary(n *Node) string {
	if n.Op == '^' {
		// x^2 squares in place instead of paying a pow call.
		if rhs := n.Args[1]; rhs.Kind == NLiteral && rhs.Lit == 2.0 {
			lk := c.emit(n.Args[0])
			l := c.t.Use(lk)
			own := fmt.Sprintf("#%d", n.ID)
			dst := c.t.Bind(own, 1)
			c.h.MovsdRR(dst, l)
			c.h.MulsdRR(dst, l)
			c.t.Unpin(lk)
			return own
		}
		return c.emitCall("pow", n.ID, n.Args[0], n.Args[1])
	}

	// Both operands are emitted before either is read: emitting the
	// RHS may involve a foreign call that spills and relocates the
	// LHS, so a register handle taken earlier would go stale.
	lk := c.emit(n.Args[0])
	rk := c.emit(n.Args[1])
	l := c.t.Use(lk)
	r := c.t.Use(rk)

	own := fmt.Sprintf("#%d", n.ID)
	dst := c.t.Bind(own, 1)
	c.h.MovsdRR(dst, l)
	switch n.Op {
	case '+':
		c.h.AddsdRR(dst, r)
	case '-':
		c.h.SubsdRR(dst, r)
	case '*':
		c.h.MulsdRR(dst, r)
	case '/':
		c.h.DivsdRR(dst, r)
	default:
		signalx.Raise(signalx.LetCodegenFailure, "LET: internal error, unknown binary op %q", string(n.Op))
	}

	c.t.Unpin(lk)
	c.t.Unpin(rk)
	return own
}

func (c *compiler) emitFunction(n *Node) string {
	// sqrt has a direct instruction; everything else is a call.
	if n.Name == "sqrt" && len(n.Args) == 1 {
		ak := c.emit(n.Args[0])
		src := c.t.Use(ak)
		own := fmt.Sprintf("#%d", n.ID)
		dst := c.t.Bind(own, 1)
		c.h.SqrtsdRR(dst, src)
		c.t.Unpin(ak)
		return own
	}

	switch len(n.Args) {
	case 1:
		return c.emitCall(n.Name, n.ID, n.Args[0], nil)
	case 2:
		return c.emitCall(n.Name, n.ID, n.Args[0], n.Args[1])
	default:
		signalx.Raise(signalx.LetCodegenFailure, "LET: function %q has %d arguments", n.Name, len(n.Args))
		panic("unreachable")
	}
}

// emitCall lowers a foreign math call: fnName's argument(s) move into
// xmm0 (and xmm1 for a binary function), every other live value is
// spilled across the call since the callee is free to clobber any
// register the allocator doesn't treat as fixed, and the result comes
// back in xmm0.
func (c *compiler) emitCall(fnName string, id int, a, b *Node) string {
	addr, ok := mathabi.AddressOf(fnName)
	if !ok {
		signalx.Raise(signalx.LetCodegenFailure, "LET: unknown function %q", fnName)
	}

	// Arguments emit fully before xmm0/xmm1 load: a nested call inside
	// b would clobber an already-loaded xmm0.
	ak := c.emit(a)
	var bk string
	if b != nil {
		bk = c.emit(b)
	}

	areg := c.t.Use(ak)
	c.h.MovsdRR(asm.XMM0, areg)
	c.t.Unpin(ak)
	if b != nil {
		breg := c.t.Use(bk)
		c.h.MovsdRR(asm.XMM1, breg)
		c.t.Unpin(bk)
	}

	saved := c.t.SpillAllForCall()
	c.h.MovRegImm64(asm.RAX, uint64(addr))
	c.h.CallAbs(asm.RCX, mathabi.BridgeAddr())
	c.t.ReloadAllForCall(saved)

	own := fmt.Sprintf("#%d", id)
	dst := c.t.Bind(own, 1)
	c.h.MovsdRR(dst, asm.XMM0)
	return own
}

// countRefs tallies how many times each variable/literal key is
// referenced across stmt's Results and (already topologically
// independent) Where expressions, driving Tracker.Bind's refs
// argument. Intermediate expression nodes need no entry: each is
// referenced exactly once, by its sole parent in the tree.
func countRefs(stmt *Statement) map[string]int {
	counts := map[string]int{}
	var walk func(n *Node)
	walk = func(n *Node) {
		switch n.Kind {
		case NVariable:
			counts["var:"+n.Name]++
		case NLiteral:
			counts[litKey(n.Lit)]++
		default:
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	for _, r := range stmt.Results {
		walk(r)
	}
	for _, b := range stmt.Where {
		walk(b.Expr)
	}
	return counts
}

// foldConstants evaluates every constant subtree of stmt in place,
// including propagating a WHERE binding that folds to a pure literal
// into every later reference to its name. WHERE bindings are processed
// in dependency order (checkWhereCycles has already ruled out a
// cycle), so a binding's own folding always sees its dependencies'
// final, possibly-folded form and can never re-enter itself.
func foldConstants(stmt *Statement) {
	env := map[string]*Node{}
	ordered := WhereTopoOrder(stmt.Where)
	kept := make([]WhereBinding, 0, len(ordered))
	for _, b := range ordered {
		folded := foldNode(b.Expr, env)
		if folded.Kind == NLiteral {
			env[b.Name] = folded
			continue
		}
		kept = append(kept, WhereBinding{Name: b.Name, Expr: folded})
	}
	stmt.Where = kept

	for i, r := range stmt.Results {
		stmt.Results[i] = foldNode(r, env)
	}
}

func foldNode(n *Node, env map[string]*Node) *Node {
	switch n.Kind {
	case NLiteral:
		return n

	case NVariable:
		if c, ok := env[n.Name]; ok {
			return c
		}
		return n

	case NUnary:
		a := foldNode(n.Args[0], env)
		if a.Kind == NLiteral {
			return &Node{Kind: NLiteral, ID: n.ID, Lit: -a.Lit}
		}
		return &Node{Kind: NUnary, ID: n.ID, Op: n.Op, Args: []*Node{a}}

	case NBinary:
		a := foldNode(n.Args[0], env)
		b := foldNode(n.Args[1], env)
		if a.Kind == NLiteral && b.Kind == NLiteral {
			if v, ok := evalBinary(n.Op, a.Lit, b.Lit); ok {
				return &Node{Kind: NLiteral, ID: n.ID, Lit: v}
			}
		}
		return &Node{Kind: NBinary, ID: n.ID, Op: n.Op, Args: []*Node{a, b}}

	case NFunction:
		args := make([]*Node, len(n.Args))
		allConst := true
		for i, a := range n.Args {
			args[i] = foldNode(a, env)
			if args[i].Kind != NLiteral {
				allConst = false
			}
		}
		if allConst {
			if v, ok := evalFunction(n.Name, args); ok {
				return &Node{Kind: NLiteral, ID: n.ID, Lit: v}
			}
		}
		return &Node{Kind: NFunction, ID: n.ID, Name: n.Name, Args: args}

	default:
		return n
	}
}

func evalBinary(op byte, a, b float64) (float64, bool) {
	switch op {
	case '+':
		return a + b, true
	case '-':
		return a - b, true
	case '*':
		return a * b, true
	case '/':
		return a / b, true // IEEE 754 division is well-defined even when b is 0
	case '^':
		return math.Pow(a, b), true
	}
	return 0, false
}

func evalFunction(name string, args []*Node) (float64, bool) {
	switch len(args) {
	case 1:
		return mathabi.Call1(name, args[0].Lit)
	case 2:
		return mathabi.Call2(name, args[0].Lit, args[1].Lit)
	}
	return 0, false
}
