package vm

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ---------------------------------------------------------------------------
// Stepping
// ---------------------------------------------------------------------------

// step executes the node under the instruction pointer and advances.
func (s *Session) step() error {
	s.steps++
	s.totalSteps++
	if s.opts.stepBudget > 0 && s.steps > s.opts.stepBudget {
		return s.execError("step", ErrStepBudgetExceeded, fmt.Sprintf("limit %d", s.opts.stepBudget))
	}

	st := s.st
	ptr := st.currentPointer()
	if ptr.IsNull() {
		return nil
	}

	// Containers are entered rather than executed; count each one on
	// the way down to the first leaf.
	for {
		c, ok := ptr.Resolve().(*Container)
		if !ok {
			break
		}
		s.visitContainer(c, true)
		if len(c.Content) == 0 {
			break
		}
		ptr = StartOf(c)
	}
	st.setCurrentPointer(ptr)

	current := ptr.Resolve()
	if s.opts.trace {
		s.log.Debugf("step %d %s %s", s.totalSteps, ptr, describe(current))
	}

	isFlow, err := s.performLogicAndFlowControl(current)
	if err != nil {
		return err
	}
	if st.currentPointer().IsNull() {
		return nil
	}

	shouldAdd := !isFlow
	if cp, ok := current.(*ChoicePoint); ok {
		choice, err := s.processChoice(cp)
		if err != nil {
			return err
		}
		if choice != nil {
			st.choices = append(st.choices, choice)
		}
		current = nil
		shouldAdd = false
	}
	if _, ok := current.(*Container); ok || current == nil {
		shouldAdd = false
	}

	if shouldAdd {
		if vp, ok := current.(VariablePointerValue); ok && vp.Context == -1 {
			current = VariablePointerValue{Name: vp.Name, Context: st.callStack.ContextForVariable(vp.Name)}
		}
		if st.inExpressionEvaluation() {
			st.pushEval(current)
		} else if err := s.emit(current); err != nil {
			return err
		}
	}

	if err := s.nextContent(); err != nil {
		return err
	}

	if cmd, ok := current.(ControlCommand); ok && cmd == CmdStartThread {
		st.callStack.PushThread()
	}
	return nil
}

// emit writes a content-mode node to the output stream.
func (s *Session) emit(n Node) error {
	switch v := n.(type) {
	case StringValue, Glue, *Tag:
		s.st.pushOutput(v)
	case Void:
	case Value:
		s.st.pushOutput(StringValue(v.String()))
	case Null:
		return s.execError(KindNull.String(), ErrInvalidValue, "null reached evaluation")
	default:
		return s.execError(n.Kind().String(), ErrInvalidValue, "cannot output node")
	}
	return nil
}

func describe(n Node) string {
	switch v := n.(type) {
	case nil:
		return "<end>"
	case ControlCommand:
		return v.Token()
	case StringValue:
		return fmt.Sprintf("%q", string(v))
	case Value:
		return v.Type().String() + " " + v.String()
	case *Divert:
		return "-> " + v.Target.String()
	case *NativeFunctionCall:
		return v.Name
	default:
		return n.Kind().String()
	}
}

// nextContent moves to the divert target if one is pending, otherwise to
// the next element, leaving containers and auto-returning from functions
// and threads as content runs out.
func (s *Session) nextContent() error {
	st := s.st
	st.setPreviousPointer(st.currentPointer())

	if !st.divertedPointer.IsNull() {
		st.setCurrentPointer(st.divertedPointer)
		st.divertedPointer = NullPointer
		s.visitChangedContainersDueToDivert()
		if !st.currentPointer().IsNull() {
			return nil
		}
	}

	if s.incrementContentPointer() {
		return nil
	}

	didPop := false
	switch {
	case st.callStack.CanPopKind(FrameFunction):
		st.trimFunctionEnd()
		if _, err := st.callStack.Pop(FrameFunction); err != nil {
			return s.execError("return", err, "")
		}
		if st.inExpressionEvaluation() {
			st.pushEval(Void{})
		}
		didPop = true
	case st.callStack.CanPopThread():
		if err := st.callStack.PopThread(); err != nil {
			return s.execError("thread", err, "")
		}
		didPop = true
	}

	if didPop && !st.currentPointer().IsNull() {
		return s.nextContent()
	}
	return nil
}

func (s *Session) incrementContentPointer() bool {
	st := s.st
	ptr := st.currentPointer()
	ptr.Index++

	ok := true
	for ptr.Index >= len(ptr.Container.Content) {
		ok = false
		parent := ptr.Container.Parent()
		if parent == nil {
			break
		}
		idx := ptr.Container.IndexInParent()
		if idx < 0 {
			break
		}
		ptr = Pointer{Container: parent, Index: idx + 1}
		ok = true
	}
	if !ok {
		ptr = NullPointer
	}
	st.setCurrentPointer(ptr)
	return ok
}

// ---------------------------------------------------------------------------
// Visit counting
// ---------------------------------------------------------------------------

func (s *Session) visitContainer(c *Container, atStart bool) {
	if c.CountingAtStartOnly && !atStart {
		return
	}
	if c.VisitsShouldBeCounted {
		s.st.incrementVisitCount(c)
	}
	if c.TurnIndexShouldBeCounted {
		s.st.recordTurnIndex(c)
	}
}

// visitChangedContainersDueToDivert counts the containers newly entered by
// a jump: every ancestor of the target that was not already open.
func (s *Session) visitChangedContainersDueToDivert() {
	st := s.st
	ptr := st.currentPointer()
	if ptr.IsNull() || ptr.Index == -1 {
		return
	}

	open := make(map[*Container]bool)
	if prev := st.previousPointer(); !prev.IsNull() {
		anc, ok := prev.Resolve().(*Container)
		if !ok {
			anc = prev.Container
		}
		for ; anc != nil; anc = anc.Parent() {
			open[anc] = true
		}
	}

	if ptr.Resolve() == nil {
		return
	}
	idx := ptr.Index
	anc := ptr.Container
	allAtStart := true
	for anc != nil && (!open[anc] || anc.CountingAtStartOnly) {
		atStart := idx == 0 && allAtStart
		if !atStart {
			allAtStart = false
		}
		s.visitContainer(anc, atStart)
		idx = anc.IndexInParent()
		anc = anc.Parent()
	}
}

// ---------------------------------------------------------------------------
// Logic and flow control
// ---------------------------------------------------------------------------

// performLogicAndFlowControl executes n if it is a flow or logic node and
// reports whether it was one.
func (s *Session) performLogicAndFlowControl(n Node) (bool, error) {
	st := s.st
	switch v := n.(type) {
	case nil:
		return false, nil

	case *Divert:
		return true, s.performDivert(v)

	case ControlCommand:
		return true, s.performCommand(v)

	case *VariableAssignment:
		val, err := s.popValue("VAR=")
		if err != nil {
			return true, err
		}
		if err := st.assign(v, val, s.story.Lists); err != nil {
			return true, s.execError("VAR=", err, v.Name)
		}
		return true, nil

	case *VariableReference:
		if v.IsCount {
			if v.countContainer == nil {
				st.warn(fmt.Sprintf("read count target %s not found", v.CountPath))
				st.pushEval(IntValue(0))
				return true, nil
			}
			st.pushEval(IntValue(s.readCount(v.countContainer)))
			return true, nil
		}
		val, ok := st.variable(v.Name, -1, s.story.Lists)
		if !ok {
			st.warn(fmt.Sprintf("variable not found: %q; using 0", v.Name))
			s.log.Warningf("variable not found: %q", v.Name)
			val = IntValue(0)
		}
		st.pushEval(val)
		return true, nil

	case *NativeFunctionCall:
		args := make([]Value, v.Arity())
		for i := v.Arity() - 1; i >= 0; i-- {
			a, err := s.popValue(v.Name)
			if err != nil {
				return true, err
			}
			args[i] = a
		}
		result, err := v.Call(s.story.Lists, args)
		if err != nil {
			return true, s.execError(v.Name, err, "")
		}
		st.pushEval(result)
		return true, nil
	}
	return false, nil
}

func (s *Session) performDivert(d *Divert) error {
	st := s.st
	op := "->"
	if d.IsExternal {
		op = "x()"
	}

	if d.IsConditional {
		cond, err := s.popValue(op)
		if err != nil {
			return err
		}
		truthy, err := IsTruthy(cond)
		if err != nil {
			return s.execError(op, err, "")
		}
		if !truthy {
			return nil
		}
	}

	var target Pointer
	switch {
	case d.HasVariableTarget():
		val, ok := st.variable(d.VariableTarget, -1, s.story.Lists)
		if !ok {
			return s.execError(op, ErrVariableNotFound, "divert variable "+d.VariableTarget)
		}
		dt, ok := val.(DivertTargetValue)
		if !ok {
			return s.execError(op, ErrTypeMismatch,
				fmt.Sprintf("variable %s holds %s, not a divert target", d.VariableTarget, val.Type()))
		}
		ptr, ok := s.story.PointerAt(dt.Target)
		if !ok {
			return s.execError(op, ErrDivertTargetNotFound, dt.Target.String())
		}
		target = ptr

	case d.IsExternal:
		return s.callExternal(d.ExternalName(), d.ExternalArgs)

	default:
		ptr, ok := d.TargetPointer()
		if !ok {
			return s.execError(op, ErrDivertTargetNotFound, d.Target.String())
		}
		target = ptr
	}

	if d.PushesToStack {
		st.callStack.Push(d.StackPushType, len(st.evalStack), len(st.output))
	}
	st.divertedPointer = target
	return nil
}

// ---------------------------------------------------------------------------
// Control commands
// ---------------------------------------------------------------------------

func (s *Session) performCommand(cmd ControlCommand) error {
	st := s.st
	op := cmd.Token()

	switch cmd {
	case CmdEvalStart:
		if st.inExpressionEvaluation() {
			return s.execError(op, ErrEvalModeViolation, "already evaluating")
		}
		st.setInExpressionEvaluation(true)

	case CmdEvalEnd:
		if !st.inExpressionEvaluation() {
			return s.execError(op, ErrEvalModeViolation, "not evaluating")
		}
		st.setInExpressionEvaluation(false)

	case CmdEvalOutput:
		n, ok := st.popEval()
		if !ok {
			return s.execError(op, ErrEvalStackUnderflow, "")
		}
		switch v := n.(type) {
		case Void:
		case Value:
			st.pushOutput(StringValue(v.String()))
		default:
			return s.execError(op, ErrTypeMismatch, "cannot output "+n.Kind().String())
		}

	case CmdNoOp, CmdStartThread:

	case CmdDuplicate:
		top, ok := st.peekEval()
		if !ok {
			return s.execError(op, ErrEvalStackUnderflow, "")
		}
		st.pushEval(top)

	case CmdPopEvaluatedValue:
		if _, ok := st.popEval(); !ok {
			return s.execError(op, ErrEvalStackUnderflow, "")
		}

	case CmdPopFunction:
		if !st.callStack.CanPopKind(FrameFunction) {
			return s.execError(op, s.frameMismatch(FrameFunction), "")
		}
		st.trimFunctionEnd()
		if _, err := st.callStack.Pop(FrameFunction); err != nil {
			return s.execError(op, err, "")
		}

	case CmdPopTunnel:
		if !st.callStack.CanPopKind(FrameTunnel) {
			return s.execError(op, s.frameMismatch(FrameTunnel), "")
		}
		n, ok := st.popEval()
		if !ok {
			return s.execError(op, ErrEvalStackUnderflow, "tunnel return target")
		}
		var override *DivertTargetValue
		switch v := n.(type) {
		case DivertTargetValue:
			override = &v
		case Void:
		default:
			return s.execError(op, ErrTypeMismatch, "tunnel return expects a divert target or void")
		}
		if _, err := st.callStack.Pop(FrameTunnel); err != nil {
			return s.execError(op, err, "")
		}
		if override != nil {
			ptr, ok := s.story.PointerAt(override.Target)
			if !ok {
				return s.execError(op, ErrDivertTargetNotFound, override.Target.String())
			}
			st.divertedPointer = ptr
		}

	case CmdBeginString:
		if !st.inExpressionEvaluation() {
			return s.execError(op, ErrEvalModeViolation, "string capture outside evaluation")
		}
		st.pushOutput(cmd)
		st.setInExpressionEvaluation(false)

	case CmdEndString:
		return s.endString(op)

	case CmdBeginTag:
		st.pushOutput(cmd)

	case CmdEndTag:
		return s.endTag(op)

	case CmdChoiceCount:
		st.pushEval(IntValue(len(st.choices)))

	case CmdTurnIndex:
		st.pushEval(IntValue(st.turnIndex + 1))

	case CmdTurns, CmdReadCount:
		n, ok := st.popEval()
		if !ok {
			return s.execError(op, ErrEvalStackUnderflow, "")
		}
		dt, ok := n.(DivertTargetValue)
		if !ok {
			return s.execError(op, ErrTypeMismatch, "expected a divert target")
		}
		var c *Container
		if found, ok := s.story.Resolve(dt.Target); ok {
			c, _ = found.(*Container)
		}
		if c == nil {
			st.warn(fmt.Sprintf("%s: no container at %s", op, dt.Target))
			if cmd == CmdTurns {
				st.pushEval(IntValue(-1))
			} else {
				st.pushEval(IntValue(0))
			}
			return nil
		}
		if cmd == CmdTurns {
			st.pushEval(IntValue(s.turnsSince(c)))
		} else {
			st.pushEval(IntValue(s.readCount(c)))
		}

	case CmdVisitIndex:
		st.pushEval(IntValue(s.readCount(st.currentPointer().Container) - 1))

	case CmdRandom:
		hi, err := s.popInt(op)
		if err != nil {
			return err
		}
		lo, err := s.popInt(op)
		if err != nil {
			return err
		}
		span := int64(hi) - int64(lo) + 1
		if span <= 0 || span > math.MaxInt32 {
			return s.execError(op, ErrInvalidValue, fmt.Sprintf("RANDOM(%d, %d): maximum must be larger than minimum", lo, hi))
		}
		next := nextRandom(st.seed + st.previousRandom)
		st.pushEval(IntValue(int(int64(next)%span) + lo))
		st.previousRandom = next

	case CmdSeedRandom:
		seed, err := s.popInt(op)
		if err != nil {
			return err
		}
		st.seed = seed
		st.previousRandom = 0
		st.pushEval(Void{})

	case CmdSequenceShuffleIndex:
		num, err := s.popInt(op)
		if err != nil {
			return err
		}
		count, err := s.popInt(op)
		if err != nil {
			return err
		}
		if num <= 0 {
			return s.execError(op, ErrInvalidValue, "shuffle over no elements")
		}
		st.pushEval(IntValue(shuffleIndex(st.currentPointer().Container.PathKey(), num, count, st.seed)))

	case CmdDone:
		if st.callStack.CanPopThread() {
			return st.callStack.PopThread()
		}
		st.didSafeExit = true
		st.setCurrentPointer(NullPointer)

	case CmdEnd:
		st.forceEnd()

	case CmdListFromInt:
		n, err := s.popInt(op)
		if err != nil {
			return err
		}
		v, err := s.popValue(op)
		if err != nil {
			return err
		}
		name, ok := v.(StringValue)
		if !ok {
			return s.execError(op, ErrTypeMismatch, "expected list name")
		}
		def, ok := s.story.Lists.Lookup(string(name))
		if !ok {
			return s.execError(op, ErrVariableNotFound, "list "+string(name))
		}
		if item, ok := def.ItemWithValue(n); ok {
			st.pushEval(ListValue{List: NewInkList(ListEntry{Item: item, Value: n})})
		} else {
			st.pushEval(ListValue{List: NewInkList().WithOrigins(def.Name())})
		}

	case CmdListRange:
		hi, err := s.popValue(op)
		if err != nil {
			return err
		}
		lo, err := s.popValue(op)
		if err != nil {
			return err
		}
		lv, err := s.popValue(op)
		if err != nil {
			return err
		}
		l, ok := lv.(ListValue)
		if !ok {
			return s.execError(op, ErrTypeMismatch, "LIST_RANGE expects a list")
		}
		lower, ok := rangeBound(lo, 0, true)
		if !ok {
			return s.execError(op, ErrTypeMismatch, "LIST_RANGE minimum must be an int or list")
		}
		upper, ok := rangeBound(hi, math.MaxInt, false)
		if !ok {
			return s.execError(op, ErrTypeMismatch, "LIST_RANGE maximum must be an int or list")
		}
		st.pushEval(ListValue{List: l.List.SubRange(lower, upper)})

	case CmdListRandom:
		v, err := s.popValue(op)
		if err != nil {
			return err
		}
		l, ok := v.(ListValue)
		if !ok {
			return s.execError(op, ErrTypeMismatch, "LIST_RANDOM expects a list")
		}
		if l.List.Len() == 0 {
			st.pushEval(ListValue{List: NewInkList()})
			return nil
		}
		next := nextRandom(st.seed + st.previousRandom)
		entries := l.List.Entries()
		pick := entries[next%len(entries)]
		st.pushEval(ListValue{List: NewInkList(pick).WithOrigins(pick.Item.Origin)})
		st.previousRandom = next

	default:
		return s.execError(op, ErrInvalidValue, "unknown control command")
	}
	return nil
}

// rangeBound reads a LIST_RANGE bound: an int, or the lowest (or highest)
// value of a non-empty list. Anything else leaves the default.
func rangeBound(v Value, def int, lower bool) (int, bool) {
	switch x := v.(type) {
	case IntValue:
		return int(x), true
	case ListValue:
		if x.List.Len() == 0 {
			return def, true
		}
		if lower {
			_, n, _ := x.List.Min()
			return n, true
		}
		_, n, _ := x.List.Max()
		return n, true
	}
	return 0, false
}

func (s *Session) frameMismatch(want FrameKind) error {
	cs := s.st.callStack
	if !cs.CanPop() {
		return fmt.Errorf("%w: found %s return at the end of flow", ErrFrameMismatch, want)
	}
	return fmt.Errorf("%w: found %s return inside a %s", ErrFrameMismatch, want, cs.Current().Kind)
}

// endString closes the innermost string capture. The marker is located
// before anything is removed, so a stray "/str" leaves the output intact.
func (s *Session) endString(op string) error {
	st := s.st
	start := -1
	for i := len(st.output) - 1; i >= 0; i-- {
		if cmd, ok := st.output[i].(ControlCommand); ok && cmd == CmdBeginString {
			start = i
			break
		}
	}
	if start < 0 {
		return s.execError(op, ErrUnbalancedStringCapture, "")
	}

	var sb strings.Builder
	var retained []Node
	for _, n := range st.output[start+1:] {
		switch v := n.(type) {
		case StringValue:
			sb.WriteString(string(v))
		case *Tag:
			retained = append(retained, v)
		}
	}
	st.output = st.output[:start]
	for _, t := range retained {
		st.pushOutput(t)
	}
	st.setInExpressionEvaluation(true)
	st.pushEval(StringValue(sb.String()))
	return nil
}

// endTag closes a dynamic tag. Inside a string capture the tag goes to the
// evaluation stack for the next choice; otherwise it replaces its own text
// in the output stream.
func (s *Session) endTag(op string) error {
	st := s.st
	start := -1
	for i := len(st.output) - 1; i >= 0; i-- {
		if cmd, ok := st.output[i].(ControlCommand); ok {
			if cmd == CmdBeginTag {
				start = i
			}
			break
		}
	}
	if start < 0 {
		return s.execError(op, ErrUnbalancedTag, "")
	}

	inString := st.inStringEvaluation()
	var sb strings.Builder
	for _, n := range st.output[start+1:] {
		if v, ok := n.(StringValue); ok {
			sb.WriteString(string(v))
		}
	}
	tag := &Tag{Text: strings.TrimSpace(CleanWhitespace(sb.String()))}
	st.output = st.output[:start]
	if inString {
		st.pushEval(tag)
	} else {
		st.output = append(st.output, tag)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Counting helpers
// ---------------------------------------------------------------------------

func (s *Session) readCount(c *Container) int {
	if !c.VisitsShouldBeCounted {
		s.st.warn(fmt.Sprintf("read count of %q is not tracked", c.PathKey()))
		return 0
	}
	return s.st.visitCount(c)
}

func (s *Session) turnsSince(c *Container) int {
	if !c.TurnIndexShouldBeCounted {
		s.st.warn(fmt.Sprintf("turns since %q is not tracked", c.PathKey()))
	}
	return s.st.turnsSince(c)
}

// ---------------------------------------------------------------------------
// Evaluation stack helpers
// ---------------------------------------------------------------------------

// popValue pops a value, rejecting void and tags.
func (s *Session) popValue(op string) (Value, error) {
	n, ok := s.st.popEval()
	if !ok {
		return nil, s.execError(op, ErrEvalStackUnderflow, "")
	}
	switch v := n.(type) {
	case Value:
		return v, nil
	case Void:
		return nil, s.execError(op, ErrInvalidValue, "void value; did a function forget to return one?")
	default:
		return nil, s.execError(op, ErrTypeMismatch, "expected a value, found "+n.Kind().String())
	}
}

func (s *Session) popInt(op string) (int, error) {
	v, err := s.popValue(op)
	if err != nil {
		return 0, err
	}
	n, ok := v.(IntValue)
	if !ok {
		return 0, s.execError(op, ErrTypeMismatch, "expected Int, found "+v.Type().String())
	}
	return int(n), nil
}

// execError wraps err with the current position. Errors that already carry
// a position or cross the host boundary are returned unchanged.
func (s *Session) execError(op string, err error, hint string) error {
	var ee *ExecError
	if errors.As(err, &ee) {
		return err
	}
	var he *HostError
	if errors.As(err, &he) {
		return err
	}
	return &ExecError{
		Op:    op,
		Path:  s.st.currentPointer().Path().String(),
		Frame: s.st.callStack.Current().Kind,
		Err:   err,
		Hint:  hint,
	}
}

// ---------------------------------------------------------------------------
// External functions
// ---------------------------------------------------------------------------

func (s *Session) callExternal(name string, argc int) error {
	st := s.st
	ext, ok := s.externals[name]
	if !ok {
		if s.opts.fallbacks {
			if fallback, ok := s.story.Root.ChildByName(name); ok {
				s.log.Debugf("external %s not bound; using story fallback", name)
				st.callStack.Push(FrameFunction, len(st.evalStack), len(st.output))
				st.divertedPointer = StartOf(fallback)
				return nil
			}
		}
		return &HostError{Name: name, Err: ErrExternalNotBound}
	}
	if ext.arity >= 0 && ext.arity != argc {
		return &HostError{Name: name, Err: ErrArityMismatch,
			Cause: fmt.Errorf("bound with %d arguments, called with %d", ext.arity, argc)}
	}

	args := make([]Value, argc)
	for i := argc - 1; i >= 0; i-- {
		v, err := s.popValue("x()")
		if err != nil {
			return err
		}
		args[i] = v
	}

	result, err := ext.fn(args)
	if err != nil {
		return &HostError{Name: name, Err: ErrExternalFunction, Cause: err}
	}
	if result == nil {
		st.pushEval(Void{})
	} else {
		st.pushEval(result)
	}
	return nil
}
