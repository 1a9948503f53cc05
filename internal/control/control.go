// Package control implements the control-flow codegen: a stack of
// tagged frames driving IF/THEN/ELSE, BEGIN/UNTIL/AGAIN/WHILE/REPEAT,
// DO/LOOP/+LOOP, and LEAVE/RECURSE/EXIT/REDO.
package control

import (
	"github.com/albanforth/jitforth/internal/asm"
	"github.com/albanforth/jitforth/internal/codegen"
	"github.com/albanforth/jitforth/internal/signalx"
	"github.com/albanforth/jitforth/internal/stackrt"
)

// FrameKind tags which control-structure variant a Frame holds.
type FrameKind int

// Frame kinds.
const (
	FrameFunctionEntryExit FrameKind = iota
	FrameIfThenElse
	FrameBeginAgainRepeatUntil
	FrameDoLoop
)

// Frame is one entry of the compiler's loop/control stack.
type Frame struct {
	Kind FrameKind

	// FunctionEntryExit
	Entry, Exit int

	// IfThenElse
	IfLabel, ElseLabel, ThenLabel, LeaveLabel, ExitLabel int
	HasElse, HasLeave, HasExit                           bool

	// BeginAgainRepeatUntil
	Begin, Until, Again, While, Leave int

	// DoLoop
	DoLabel, LoopLabel, DoLeaveLabel int
	Depth                            int
}

// Stack is the compiler's control-flow frame stack, one per function
// being compiled.
type Stack struct {
	frames []*Frame
	doloop int // count of enclosing DO frames, for EXIT's RSP' adjustment
}

func (s *Stack) push(f *Frame) { s.frames = append(s.frames, f) }

func (s *Stack) top() *Frame {
	if len(s.frames) == 0 {
		signalx.Raise(signalx.BadImmediateShape, "control-flow word used without a matching opener")
	}
	return s.frames[len(s.frames)-1]
}

func (s *Stack) pop() *Frame {
	f := s.top()
	s.frames = s.frames[:len(s.frames)-1]
	return f
}

// popKind pops the top frame, raising signal 11 if its Kind doesn't
// match want (the "mismatched-opener" fatal compile error).
func (s *Stack) popKind(want FrameKind, who string) *Frame {
	f := s.top()
	if f.Kind != want {
		signalx.Raise(signalx.BadImmediateShape, "%s without matching opener", who)
	}
	return s.pop()
}

func (s *Stack) peekKind(want FrameKind, who string) *Frame {
	f := s.top()
	if f.Kind != want {
		signalx.Raise(signalx.BadImmediateShape, "%s without matching opener", who)
	}
	return f
}

// StartFunction pushes a FunctionEntryExit frame and binds its entry
// label.
func StartFunction(h *asm.CodeHolder, s *Stack) *Frame {
	f := &Frame{Kind: FrameFunctionEntryExit, Entry: h.Label(), Exit: h.Label()}
	h.Bind(f.Entry)
	s.push(f)
	return f
}

// Return binds the function's exit label and pops its frame.
func Return(h *asm.CodeHolder, s *Stack) {
	f := s.popKind(FrameFunctionEntryExit, "function exit")
	h.Bind(f.Exit)
}

// popFlagTest pops the boolean off the stack into rax and tests it.
// The pop's own pointer arithmetic runs before the test so the flags
// are still live at the following conditional jump.
func popFlagTest(h *asm.CodeHolder) {
	h.MovRR(asm.RAX, stackrt.RegTOS)
	codegen.Drop(h)
	h.TestRR(asm.RAX, asm.RAX)
}

// If pops a flag and jumps to if_label when zero.
func If(h *asm.CodeHolder, s *Stack) {
	popFlagTest(h)
	f := &Frame{Kind: FrameIfThenElse, IfLabel: h.Label(), ThenLabel: h.Label()}
	h.Jump(asm.CCEqual, f.IfLabel)
	s.push(f)
}

// Else emits a jump to the eventual THEN, binds if_label, and marks
// has_else.
func Else(h *asm.CodeHolder, s *Stack) {
	f := s.peekKind(FrameIfThenElse, "ELSE")
	f.ElseLabel = h.Label()
	h.Jump(asm.CCAlways, f.ElseLabel)
	h.Bind(f.IfLabel)
	f.HasElse = true
}

// Then binds either else_label (if ELSE ran) or if_label, and pops the
// frame.
func Then(h *asm.CodeHolder, s *Stack) {
	f := s.popKind(FrameIfThenElse, "THEN")
	if f.HasElse {
		h.Bind(f.ElseLabel)
	} else {
		h.Bind(f.IfLabel)
	}
}

// Begin binds a fresh begin label and pushes a
// BeginAgainRepeatUntil frame. Every forward label the frame may need
// is allocated here, so LEAVE can target the loop exit before any
// closer has bound it.
func Begin(h *asm.CodeHolder, s *Stack) *Frame {
	f := &Frame{
		Kind:  FrameBeginAgainRepeatUntil,
		Begin: h.Label(),
		Until: h.Label(),
		While: h.Label(),
		Leave: h.Label(),
	}
	h.Bind(f.Begin)
	s.push(f)
	return f
}

// Until pops a flag, jumps to begin when zero, then binds until/leave.
func Until(h *asm.CodeHolder, s *Stack) {
	f := s.popKind(FrameBeginAgainRepeatUntil, "UNTIL")
	popFlagTest(h)
	h.Jump(asm.CCEqual, f.Begin)
	h.Bind(f.Until)
	h.Bind(f.Leave)
}

// Again emits an unconditional jump to begin and binds the exit
// labels; the code after AGAIN is reachable only via LEAVE.
func Again(h *asm.CodeHolder, s *Stack) {
	f := s.popKind(FrameBeginAgainRepeatUntil, "AGAIN")
	h.Jump(asm.CCAlways, f.Begin)
	h.Bind(f.Leave)
}

// While pops a flag and jumps to the post-REPEAT label when zero.
func While(h *asm.CodeHolder, s *Stack) {
	f := s.peekKind(FrameBeginAgainRepeatUntil, "WHILE")
	popFlagTest(h)
	h.Jump(asm.CCEqual, f.While)
}

// Repeat jumps to begin, binds while/leave, and pops the frame.
func Repeat(h *asm.CodeHolder, s *Stack) {
	f := s.popKind(FrameBeginAgainRepeatUntil, "REPEAT")
	h.Jump(asm.CCAlways, f.Begin)
	h.Bind(f.While)
	h.Bind(f.Leave)
}

// Do transfers ( limit index -- ) to the return stack, increments loop
// depth, binds do.
func Do(h *asm.CodeHolder, s *Stack) *Frame {
	codegen.Swap(h) // ( limit index -- index limit )
	codegen.ToR(h)   // push limit: R offset 8
	codegen.ToR(h)   // push index: R offset 0, per I's contract
	f := &Frame{Kind: FrameDoLoop, DoLabel: h.Label(), LoopLabel: h.Label(), DoLeaveLabel: h.Label()}
	h.Bind(f.DoLabel)
	f.Depth = s.doloop + 1
	s.doloop++
	s.push(f)
	return f
}

func loopCommon(h *asm.CodeHolder, s *Stack, increment func(h *asm.CodeHolder)) {
	f := s.popKind(FrameDoLoop, "LOOP/+LOOP")
	s.doloop--

	scratchIndex := asm.RAX
	scratchLimit := asm.RBX
	h.LoadMem(scratchIndex, stackrt.RegRSP, 0)
	h.LoadMem(scratchLimit, stackrt.RegRSP, 8)
	increment(h)
	h.StoreMem(stackrt.RegRSP, 0, scratchIndex)
	h.CmpRR(scratchIndex, scratchLimit)
	h.Jump(asm.CCLess, f.DoLabel)
	h.Bind(f.LoopLabel)
	h.Bind(f.DoLeaveLabel)
	h.AddRI(stackrt.RegRSP, 16)
}

// Loop increments the loop index by 1.
func Loop(h *asm.CodeHolder, s *Stack) {
	loopCommon(h, s, func(h *asm.CodeHolder) { h.AddRI(asm.RAX, 1) })
}

// PlusLoop increments the loop index by TOS.
func PlusLoop(h *asm.CodeHolder, s *Stack) {
	step := asm.RCX
	h.MovRR(step, stackrt.RegTOS)
	codegen.Drop(h)
	loopCommon(h, s, func(h *asm.CodeHolder) { h.AddRR(asm.RAX, step) })
}

// Leave jumps to the innermost enclosing frame's leave label.
func Leave(h *asm.CodeHolder, s *Stack) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		f := s.frames[i]
		switch f.Kind {
		case FrameDoLoop:
			h.Jump(asm.CCAlways, f.DoLeaveLabel)
			return
		case FrameBeginAgainRepeatUntil:
			h.Jump(asm.CCAlways, f.Leave)
			return
		case FrameIfThenElse:
			f.HasLeave = true
		}
	}
	signalx.Raise(signalx.BadImmediateShape, "LEAVE outside of any loop")
}

// Exit adjusts RSP' to drop any pending DO indices, then jumps to the
// function's exit label.
func Exit(h *asm.CodeHolder, s *Stack) {
	var fn *Frame
	depth := 0
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Kind == FrameFunctionEntryExit {
			fn = s.frames[i]
			break
		}
		if s.frames[i].Kind == FrameDoLoop {
			depth++
		}
	}
	if fn == nil {
		signalx.Raise(signalx.BadImmediateShape, "EXIT outside of a function")
	}
	if depth > 0 {
		h.AddRI(stackrt.RegRSP, int32(depth*16))
	}
	fn.HasExit = true
	h.Jump(asm.CCAlways, fn.Exit)
}

// Recurse emits an aligned call to the function's own entry label, so
// execution returns to the instruction after the call once the
// recursive invocation hits its EXIT/Return.
func Recurse(h *asm.CodeHolder, s *Stack) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Kind == FrameFunctionEntryExit {
			h.CallRel(s.frames[i].Entry)
			return
		}
	}
	signalx.Raise(signalx.BadImmediateShape, "RECURSE outside of a function")
}

// Redo is an unconditional jump to the function's entry label: unlike
// RECURSE it never returns to the caller, restarting the word in place.
func Redo(h *asm.CodeHolder, s *Stack) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Kind == FrameFunctionEntryExit {
			h.Jump(asm.CCAlways, s.frames[i].Entry)
			return
		}
	}
	signalx.Raise(signalx.BadImmediateShape, "REDO outside of a function")
}

// I, J, K load return-stack entries at offsets 0, 2*cell, 4*cell
// without popping — the innermost, next, and next-next DO loop
// indices.
func I(h *asm.CodeHolder) { loopIndexAt(h, 0) }
func J(h *asm.CodeHolder) { loopIndexAt(h, 2) }
func K(h *asm.CodeHolder) { loopIndexAt(h, 4) }

func loopIndexAt(h *asm.CodeHolder, cells int) {
	tmp := asm.RAX
	h.LoadMem(tmp, stackrt.RegRSP, int32(cells*8))
	stackrt.PushReg(h.Assembler, tmp)
}
