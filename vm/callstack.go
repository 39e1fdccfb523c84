package vm

import "fmt"

// ---------------------------------------------------------------------------
// FrameKind
// ---------------------------------------------------------------------------

// FrameKind records why a frame was pushed, so that the matching return
// opcode can be checked.
type FrameKind uint8

const (
	FrameRoot FrameKind = iota
	FrameTunnel
	FrameFunction
)

func (k FrameKind) String() string {
	switch k {
	case FrameRoot:
		return "root"
	case FrameTunnel:
		return "tunnel"
	case FrameFunction:
		return "function"
	default:
		return fmt.Sprintf("FrameKind(%d)", k)
	}
}

// ---------------------------------------------------------------------------
// CallFrame: one level of tunnel or function nesting
// ---------------------------------------------------------------------------

// CallFrame is the execution state of one call-stack level.
type CallFrame struct {
	Kind                   FrameKind
	Pointer                Pointer
	InExpressionEvaluation bool
	Temps                  map[string]Value

	// Eval stack height and output length when the frame was pushed; used
	// to trim function output and to detect stray returns.
	EvalStackHeightWhenPushed int
	FunctionStartInOutput     int
}

func newFrame(kind FrameKind, ptr Pointer, inExpr bool) *CallFrame {
	return &CallFrame{
		Kind:                   kind,
		Pointer:                ptr,
		InExpressionEvaluation: inExpr,
		Temps:                  make(map[string]Value),
	}
}

func (f *CallFrame) copy() *CallFrame {
	c := *f
	c.Temps = make(map[string]Value, len(f.Temps))
	for k, v := range f.Temps {
		c.Temps[k] = v
	}
	return &c
}

// ---------------------------------------------------------------------------
// Thread: an independent stack of frames
// ---------------------------------------------------------------------------

// Thread is one branch of narrative control. Threads are forked when
// content is gathered from several places, and when a choice is generated.
type Thread struct {
	Frames          []*CallFrame
	Index           int
	PreviousPointer Pointer
}

// Copy deep-copies the thread.
func (t *Thread) Copy() *Thread {
	c := &Thread{
		Frames:          make([]*CallFrame, len(t.Frames)),
		Index:           t.Index,
		PreviousPointer: t.PreviousPointer,
	}
	for i, f := range t.Frames {
		c.Frames[i] = f.copy()
	}
	return c
}

// ---------------------------------------------------------------------------
// CallStack
// ---------------------------------------------------------------------------

// CallStack holds the threads of a session. The last thread is current.
type CallStack struct {
	threads       []*Thread
	threadCounter int
	start         Pointer
}

// NewCallStack creates a stack with one root frame at the start of root.
func NewCallStack(root *Container) *CallStack {
	cs := &CallStack{start: StartOf(root)}
	cs.Reset()
	return cs
}

// Reset discards every thread and starts over with a single root frame.
func (cs *CallStack) Reset() {
	t := &Thread{PreviousPointer: NullPointer}
	t.Frames = append(t.Frames, newFrame(FrameRoot, cs.start, false))
	cs.threads = []*Thread{t}
	cs.threadCounter = 0
}

// CurrentThread returns the active thread.
func (cs *CallStack) CurrentThread() *Thread {
	return cs.threads[len(cs.threads)-1]
}

// SetCurrentThread replaces the whole stack with a single thread.
func (cs *CallStack) SetCurrentThread(t *Thread) {
	cs.threads = []*Thread{t}
}

// Threads returns the thread list, oldest first.
func (cs *CallStack) Threads() []*Thread { return cs.threads }

// ThreadCount returns the number of threads.
func (cs *CallStack) ThreadCount() int { return len(cs.threads) }

// Frames returns the frames of the current thread.
func (cs *CallStack) Frames() []*CallFrame { return cs.CurrentThread().Frames }

// Depth returns the number of frames in the current thread.
func (cs *CallStack) Depth() int { return len(cs.CurrentThread().Frames) }

// Current returns the innermost frame.
func (cs *CallStack) Current() *CallFrame {
	fs := cs.CurrentThread().Frames
	return fs[len(fs)-1]
}

// CurrentIndex returns the 0-based index of the innermost frame.
func (cs *CallStack) CurrentIndex() int { return cs.Depth() - 1 }

// CanPop reports whether a non-root frame is on top.
func (cs *CallStack) CanPop() bool { return cs.Depth() > 1 }

// CanPopKind reports whether the top frame was pushed as kind.
func (cs *CallStack) CanPopKind(kind FrameKind) bool {
	return cs.CanPop() && cs.Current().Kind == kind
}

// Push adds a frame continuing from the current pointer.
func (cs *CallStack) Push(kind FrameKind, evalHeight, outputLen int) {
	cur := cs.Current()
	f := newFrame(kind, cur.Pointer, false)
	f.EvalStackHeightWhenPushed = evalHeight
	f.FunctionStartInOutput = outputLen
	t := cs.CurrentThread()
	t.Frames = append(t.Frames, f)
}

// Pop removes the top frame after checking that it was pushed as kind.
// On mismatch nothing is removed.
func (cs *CallStack) Pop(kind FrameKind) (*CallFrame, error) {
	if !cs.CanPop() {
		return nil, fmt.Errorf("%w: no %s frame to pop", ErrFrameMismatch, kind)
	}
	top := cs.Current()
	if top.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s frame, found %s", ErrFrameMismatch, kind, top.Kind)
	}
	t := cs.CurrentThread()
	t.Frames = t.Frames[:len(t.Frames)-1]
	return top, nil
}

// PushThread forks the current thread and makes the copy current.
func (cs *CallStack) PushThread() {
	t := cs.CurrentThread().Copy()
	cs.threadCounter++
	t.Index = cs.threadCounter
	cs.threads = append(cs.threads, t)
}

// ForkThread copies the current thread under a new index without making
// it current. Choices keep such a fork to resume from.
func (cs *CallStack) ForkThread() *Thread {
	t := cs.CurrentThread().Copy()
	cs.threadCounter++
	t.Index = cs.threadCounter
	return t
}

// CanPopThread reports whether more than one thread is live.
func (cs *CallStack) CanPopThread() bool {
	return len(cs.threads) > 1
}

// PopThread discards the current thread.
func (cs *CallStack) PopThread() error {
	if !cs.CanPopThread() {
		return fmt.Errorf("%w: cannot pop the main thread", ErrFrameMismatch)
	}
	cs.threads = cs.threads[:len(cs.threads)-1]
	return nil
}

// ---------------------------------------------------------------------------
// Temporaries
// ---------------------------------------------------------------------------

// contextFrame maps a variable context index to a frame. Context 0 is the
// global scope and has no frame; -1 means the current frame.
func (cs *CallStack) contextFrame(ctx int) *CallFrame {
	if ctx <= 0 {
		return cs.Current()
	}
	fs := cs.Frames()
	if ctx-1 >= len(fs) {
		return nil
	}
	return fs[ctx-1]
}

// Temp reads a temporary from the frame selected by ctx.
func (cs *CallStack) Temp(name string, ctx int) (Value, bool) {
	f := cs.contextFrame(ctx)
	if f == nil {
		return nil, false
	}
	v, ok := f.Temps[name]
	return v, ok
}

// SetTemp writes a temporary. Reassigning a temporary that was never
// declared in that frame is an error.
func (cs *CallStack) SetTemp(name string, v Value, declareNew bool, ctx int) error {
	f := cs.contextFrame(ctx)
	if f == nil {
		return fmt.Errorf("%w: no frame for context %d", ErrVariableNotFound, ctx)
	}
	if _, ok := f.Temps[name]; !ok && !declareNew {
		return fmt.Errorf("%w: temporary %q", ErrVariableNotFound, name)
	}
	if old, ok := f.Temps[name]; ok {
		v = retainListOrigins(old, v)
	}
	f.Temps[name] = v
	return nil
}

// ContextForVariable returns the context index under which name is found:
// the current frame (1-based) if it holds a temporary of that name, else 0.
func (cs *CallStack) ContextForVariable(name string) int {
	if _, ok := cs.Current().Temps[name]; ok {
		return cs.CurrentIndex() + 1
	}
	return 0
}
