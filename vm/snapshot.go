package vm

import (
	"fmt"
	"maps"

	"github.com/chazu/quill/pkg/inkpath"
)

// ---------------------------------------------------------------------------
// Snapshot records
// ---------------------------------------------------------------------------

// Snapshot is the complete mutable state of a session in plain data. It
// refers to the story graph only through container path keys, so it can be
// restored against any graph decoded from the same document.
type Snapshot struct {
	Fingerprint string `cbor:"1,keyasint"`

	Threads       []ThreadRecord `cbor:"2,keyasint"`
	ThreadCounter int            `cbor:"3,keyasint"`

	Globals        map[string]ValueRecord `cbor:"4,keyasint"`
	DefaultGlobals map[string]ValueRecord `cbor:"5,keyasint"`

	EvalStack []NodeRecord   `cbor:"6,keyasint,omitempty"`
	Output    []NodeRecord   `cbor:"7,keyasint,omitempty"`
	Choices   []ChoiceRecord `cbor:"8,keyasint,omitempty"`

	VisitCounts map[string]int `cbor:"9,keyasint,omitempty"`
	TurnIndices map[string]int `cbor:"10,keyasint,omitempty"`
	TurnIndex   int            `cbor:"11,keyasint"`

	Seed           int `cbor:"12,keyasint"`
	PreviousRandom int `cbor:"13,keyasint"`

	DidSafeExit     bool          `cbor:"14,keyasint"`
	Ended           bool          `cbor:"15,keyasint"`
	DivertedPointer PointerRecord `cbor:"16,keyasint"`
	TotalSteps      int           `cbor:"17,keyasint"`
}

// PointerRecord is a pointer by container path key.
type PointerRecord struct {
	Null      bool   `cbor:"1,keyasint,omitempty"`
	Container string `cbor:"2,keyasint,omitempty"`
	Index     int    `cbor:"3,keyasint"`
}

// FrameRecord is one call frame.
type FrameRecord struct {
	Kind       FrameKind              `cbor:"1,keyasint"`
	Pointer    PointerRecord          `cbor:"2,keyasint"`
	InExpr     bool                   `cbor:"3,keyasint,omitempty"`
	Temps      map[string]ValueRecord `cbor:"4,keyasint,omitempty"`
	EvalHeight int                    `cbor:"5,keyasint,omitempty"`
	FuncStart  int                    `cbor:"6,keyasint,omitempty"`
}

// ThreadRecord is one thread with its frames.
type ThreadRecord struct {
	Index    int           `cbor:"1,keyasint"`
	Previous PointerRecord `cbor:"2,keyasint"`
	Frames   []FrameRecord `cbor:"3,keyasint"`
}

// ListItemRecord is one list member and its value.
type ListItemRecord struct {
	Origin string `cbor:"1,keyasint,omitempty"`
	Name   string `cbor:"2,keyasint"`
	Value  int    `cbor:"3,keyasint"`
}

// ValueRecord is a tagged runtime value. Only the fields for Type are set.
type ValueRecord struct {
	Type    ValueType        `cbor:"1,keyasint"`
	Int     int              `cbor:"2,keyasint,omitempty"`
	Float   float64          `cbor:"3,keyasint,omitempty"`
	Bool    bool             `cbor:"4,keyasint,omitempty"`
	String  string           `cbor:"5,keyasint,omitempty"`
	Items   []ListItemRecord `cbor:"6,keyasint,omitempty"`
	Origins []string         `cbor:"7,keyasint,omitempty"`
	Context int              `cbor:"8,keyasint,omitempty"`
}

// NodeRecord is an element of the evaluation or output stream: a value,
// a tag, glue, void, or a capture marker command.
type NodeRecord struct {
	Kind    NodeKind       `cbor:"1,keyasint"`
	Value   *ValueRecord   `cbor:"2,keyasint,omitempty"`
	Command ControlCommand `cbor:"3,keyasint,omitempty"`
	Text    string         `cbor:"4,keyasint,omitempty"`
}

// ChoiceRecord is a pending choice with its thread fork.
type ChoiceRecord struct {
	Text                string       `cbor:"1,keyasint"`
	Tags                []string     `cbor:"2,keyasint,omitempty"`
	TargetPath          string       `cbor:"3,keyasint"`
	SourcePath          string       `cbor:"4,keyasint,omitempty"`
	IsInvisibleDefault  bool         `cbor:"5,keyasint,omitempty"`
	Thread              ThreadRecord `cbor:"6,keyasint"`
	OriginalThreadIndex int          `cbor:"7,keyasint"`
}

// ---------------------------------------------------------------------------
// Export
// ---------------------------------------------------------------------------

// Snapshot exports the session state. The session is unaffected.
func (s *Session) Snapshot() (*Snapshot, error) {
	st := s.st
	snap := &Snapshot{
		Fingerprint:     s.story.Fingerprint(),
		ThreadCounter:   st.callStack.threadCounter,
		Globals:         make(map[string]ValueRecord, len(st.globals)),
		DefaultGlobals:  make(map[string]ValueRecord, len(st.defaultGlobals)),
		VisitCounts:     maps.Clone(st.visitCounts),
		TurnIndices:     maps.Clone(st.turnIndices),
		TurnIndex:       st.turnIndex,
		Seed:            st.seed,
		PreviousRandom:  st.previousRandom,
		DidSafeExit:     st.didSafeExit,
		Ended:           st.ended,
		DivertedPointer: pointerRecord(st.divertedPointer),
		TotalSteps:      s.totalSteps,
	}
	for _, t := range st.callStack.threads {
		snap.Threads = append(snap.Threads, threadRecord(t))
	}
	for k, v := range st.globals {
		snap.Globals[k] = valueRecord(v)
	}
	for k, v := range st.defaultGlobals {
		snap.DefaultGlobals[k] = valueRecord(v)
	}
	for _, n := range st.evalStack {
		r, err := nodeRecord(n)
		if err != nil {
			return nil, err
		}
		snap.EvalStack = append(snap.EvalStack, r)
	}
	for _, n := range st.output {
		r, err := nodeRecord(n)
		if err != nil {
			return nil, err
		}
		snap.Output = append(snap.Output, r)
	}
	for _, c := range st.choices {
		snap.Choices = append(snap.Choices, ChoiceRecord{
			Text:                c.Text,
			Tags:                append([]string(nil), c.Tags...),
			TargetPath:          c.TargetPath.String(),
			SourcePath:          c.SourcePath,
			IsInvisibleDefault:  c.IsInvisibleDefault,
			Thread:              threadRecord(c.thread),
			OriginalThreadIndex: c.originalThreadIndex,
		})
	}
	return snap, nil
}

func pointerRecord(p Pointer) PointerRecord {
	if p.IsNull() {
		return PointerRecord{Null: true, Index: -1}
	}
	return PointerRecord{Container: p.Container.PathKey(), Index: p.Index}
}

func threadRecord(t *Thread) ThreadRecord {
	r := ThreadRecord{Index: t.Index, Previous: pointerRecord(t.PreviousPointer)}
	for _, f := range t.Frames {
		fr := FrameRecord{
			Kind:       f.Kind,
			Pointer:    pointerRecord(f.Pointer),
			InExpr:     f.InExpressionEvaluation,
			EvalHeight: f.EvalStackHeightWhenPushed,
			FuncStart:  f.FunctionStartInOutput,
		}
		if len(f.Temps) > 0 {
			fr.Temps = make(map[string]ValueRecord, len(f.Temps))
			for k, v := range f.Temps {
				fr.Temps[k] = valueRecord(v)
			}
		}
		r.Frames = append(r.Frames, fr)
	}
	return r
}

func valueRecord(v Value) ValueRecord {
	r := ValueRecord{Type: v.Type()}
	switch x := v.(type) {
	case IntValue:
		r.Int = int(x)
	case FloatValue:
		r.Float = float64(x)
	case BoolValue:
		r.Bool = bool(x)
	case StringValue:
		r.String = string(x)
	case DivertTargetValue:
		r.String = x.Target.String()
	case VariablePointerValue:
		r.String = x.Name
		r.Context = x.Context
	case ListValue:
		for _, e := range x.List.Entries() {
			r.Items = append(r.Items, ListItemRecord{Origin: e.Item.Origin, Name: e.Item.Name, Value: e.Value})
		}
		r.Origins = append([]string(nil), x.List.origins...)
	}
	return r
}

func nodeRecord(n Node) (NodeRecord, error) {
	switch v := n.(type) {
	case Value:
		vr := valueRecord(v)
		return NodeRecord{Kind: KindValue, Value: &vr}, nil
	case *Tag:
		return NodeRecord{Kind: KindTag, Text: v.Text}, nil
	case Glue:
		return NodeRecord{Kind: KindGlue}, nil
	case Void:
		return NodeRecord{Kind: KindVoid}, nil
	case ControlCommand:
		return NodeRecord{Kind: KindControlCommand, Command: v}, nil
	}
	return NodeRecord{}, fmt.Errorf("%w: cannot snapshot %s on a stream", ErrInvalidValue, n.Kind())
}

// ---------------------------------------------------------------------------
// Import
// ---------------------------------------------------------------------------

// Restore replaces the session state with snap. Nothing changes if the
// snapshot was taken from a different story or refers to containers the
// graph does not have. A successful Restore clears any fault.
func (s *Session) Restore(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", ErrSnapshotMismatch)
	}
	if snap.Fingerprint != s.story.Fingerprint() {
		return fmt.Errorf("%w: story fingerprint %.12s, snapshot %.12s",
			ErrSnapshotMismatch, s.story.Fingerprint(), snap.Fingerprint)
	}
	if len(snap.Threads) == 0 {
		return fmt.Errorf("%w: no threads", ErrSnapshotMismatch)
	}

	r := restorer{story: s.story}
	st := newState(s.story.Root, snap.Seed)
	st.callStack.threads = nil
	for _, tr := range snap.Threads {
		st.callStack.threads = append(st.callStack.threads, r.thread(tr))
	}
	st.callStack.threadCounter = snap.ThreadCounter

	for k, v := range snap.Globals {
		st.globals[k] = r.value(v)
	}
	for k, v := range snap.DefaultGlobals {
		st.defaultGlobals[k] = r.value(v)
	}
	for _, n := range snap.EvalStack {
		st.evalStack = append(st.evalStack, r.node(n))
	}
	for _, n := range snap.Output {
		st.output = append(st.output, r.node(n))
	}
	for _, cr := range snap.Choices {
		target := r.path(cr.TargetPath)
		st.choices = append(st.choices, &Choice{
			Text:                cr.Text,
			Tags:                append([]string(nil), cr.Tags...),
			TargetPath:          target,
			SourcePath:          cr.SourcePath,
			IsInvisibleDefault:  cr.IsInvisibleDefault,
			thread:              r.thread(cr.Thread),
			originalThreadIndex: cr.OriginalThreadIndex,
		})
	}
	maps.Copy(st.visitCounts, snap.VisitCounts)
	maps.Copy(st.turnIndices, snap.TurnIndices)
	st.turnIndex = snap.TurnIndex
	st.previousRandom = snap.PreviousRandom
	st.didSafeExit = snap.DidSafeExit
	st.ended = snap.Ended
	st.divertedPointer = r.pointer(snap.DivertedPointer)

	if r.err != nil {
		return r.err
	}
	for _, t := range st.callStack.threads {
		if len(t.Frames) == 0 {
			return fmt.Errorf("%w: thread %d has no frames", ErrSnapshotMismatch, t.Index)
		}
	}

	s.st = st
	s.fault = nil
	s.steps = 0
	s.totalSteps = snap.TotalSteps
	s.log.Debugf("restored snapshot at turn %d", st.turnIndex)
	return nil
}

// restorer rebuilds runtime structures, keeping the first error.
type restorer struct {
	story *Story
	err   error
}

func (r *restorer) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s", ErrSnapshotMismatch, fmt.Sprintf(format, args...))
	}
}

func (r *restorer) pointer(pr PointerRecord) Pointer {
	if pr.Null {
		return NullPointer
	}
	c, ok := r.story.ContainerAt(pr.Container)
	if !ok {
		r.fail("no container %q", pr.Container)
		return NullPointer
	}
	if pr.Index < -1 || pr.Index > len(c.Content) {
		r.fail("index %d out of range in %q", pr.Index, pr.Container)
		return NullPointer
	}
	return Pointer{Container: c, Index: pr.Index}
}

func (r *restorer) path(s string) inkpath.Path {
	p, err := inkpath.Parse(s)
	if err != nil {
		r.fail("bad path %q: %v", s, err)
	}
	return p
}

func (r *restorer) thread(tr ThreadRecord) *Thread {
	t := &Thread{Index: tr.Index, PreviousPointer: r.pointer(tr.Previous)}
	for _, fr := range tr.Frames {
		f := newFrame(fr.Kind, r.pointer(fr.Pointer), fr.InExpr)
		f.EvalStackHeightWhenPushed = fr.EvalHeight
		f.FunctionStartInOutput = fr.FuncStart
		for k, v := range fr.Temps {
			f.Temps[k] = r.value(v)
		}
		t.Frames = append(t.Frames, f)
	}
	return t
}

func (r *restorer) value(vr ValueRecord) Value {
	switch vr.Type {
	case TypeInt:
		return IntValue(vr.Int)
	case TypeFloat:
		return FloatValue(vr.Float)
	case TypeBool:
		return BoolValue(vr.Bool)
	case TypeString:
		return StringValue(vr.String)
	case TypeDivertTarget:
		return DivertTargetValue{Target: r.path(vr.String)}
	case TypeVariablePointer:
		return VariablePointerValue{Name: vr.String, Context: vr.Context}
	case TypeList:
		entries := make([]ListEntry, len(vr.Items))
		for i, it := range vr.Items {
			entries[i] = ListEntry{Item: ListItem{Origin: it.Origin, Name: it.Name}, Value: it.Value}
		}
		return ListValue{List: NewInkList(entries...).WithOrigins(vr.Origins...)}
	}
	r.fail("unknown value type %d", vr.Type)
	return IntValue(0)
}

func (r *restorer) node(nr NodeRecord) Node {
	switch nr.Kind {
	case KindValue:
		if nr.Value == nil {
			r.fail("value node without value")
			return Void{}
		}
		return r.value(*nr.Value)
	case KindTag:
		return &Tag{Text: nr.Text}
	case KindGlue:
		return Glue{}
	case KindVoid:
		return Void{}
	case KindControlCommand:
		return nr.Command
	}
	r.fail("unexpected %s on a stream", nr.Kind)
	return Void{}
}
