package vm

// state is everything a session mutates while playing. The story graph is
// shared and never appears here except through pointers into it.
type state struct {
	callStack *CallStack

	globals        map[string]Value
	defaultGlobals map[string]Value

	evalStack []Node
	output    []Node
	choices   []*Choice

	visitCounts map[string]int
	turnIndices map[string]int
	turnIndex   int

	seed           int
	previousRandom int

	didSafeExit     bool
	ended           bool
	divertedPointer Pointer

	warnings []string
}

func newState(root *Container, seed int) *state {
	return &state{
		callStack:       NewCallStack(root),
		globals:         make(map[string]Value),
		defaultGlobals:  make(map[string]Value),
		visitCounts:     make(map[string]int),
		turnIndices:     make(map[string]int),
		turnIndex:       -1,
		seed:            seed,
		divertedPointer: NullPointer,
	}
}

// ---------------------------------------------------------------------------
// Pointers
// ---------------------------------------------------------------------------

func (st *state) currentPointer() Pointer { return st.callStack.Current().Pointer }

func (st *state) setCurrentPointer(p Pointer) { st.callStack.Current().Pointer = p }

func (st *state) previousPointer() Pointer { return st.callStack.CurrentThread().PreviousPointer }

func (st *state) setPreviousPointer(p Pointer) {
	st.callStack.CurrentThread().PreviousPointer = p
}

func (st *state) inExpressionEvaluation() bool {
	return st.callStack.Current().InExpressionEvaluation
}

func (st *state) setInExpressionEvaluation(v bool) {
	st.callStack.Current().InExpressionEvaluation = v
}

// ---------------------------------------------------------------------------
// Evaluation stack
// ---------------------------------------------------------------------------

func (st *state) pushEval(n Node) {
	st.evalStack = append(st.evalStack, n)
}

func (st *state) popEval() (Node, bool) {
	if len(st.evalStack) == 0 {
		return nil, false
	}
	n := st.evalStack[len(st.evalStack)-1]
	st.evalStack = st.evalStack[:len(st.evalStack)-1]
	return n, true
}

func (st *state) peekEval() (Node, bool) {
	if len(st.evalStack) == 0 {
		return nil, false
	}
	return st.evalStack[len(st.evalStack)-1], true
}

// ---------------------------------------------------------------------------
// Counting
// ---------------------------------------------------------------------------

func (st *state) visitCount(c *Container) int {
	return st.visitCounts[c.PathKey()]
}

func (st *state) incrementVisitCount(c *Container) {
	st.visitCounts[c.PathKey()]++
}

func (st *state) recordTurnIndex(c *Container) {
	st.turnIndices[c.PathKey()] = st.turnIndex
}

// turnsSince returns how many turns ago c was last visited, or -1.
func (st *state) turnsSince(c *Container) int {
	idx, ok := st.turnIndices[c.PathKey()]
	if !ok {
		return -1
	}
	return st.turnIndex - idx
}

func (st *state) warn(msg string) {
	st.warnings = append(st.warnings, msg)
}

// forceEnd stops all flow: a single empty root thread, no choices, no
// pointer.
func (st *state) forceEnd() {
	st.callStack.Reset()
	st.choices = nil
	st.setCurrentPointer(NullPointer)
	st.setPreviousPointer(NullPointer)
	st.didSafeExit = true
	st.ended = true
}
