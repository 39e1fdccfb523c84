package vm

import (
	"github.com/chazu/quill/pkg/inkpath"
)

// ---------------------------------------------------------------------------
// Divert
// ---------------------------------------------------------------------------

// Divert moves the instruction pointer. Depending on its qualifiers it may
// push a tunnel or function frame, call a host function, or read its
// target from a variable.
type Divert struct {
	Target         inkpath.Path // as written; absolute after linking
	VariableTarget string       // non-empty when the target is read from a variable
	PushesToStack  bool
	StackPushType  FrameKind
	IsExternal     bool
	ExternalArgs   int
	IsConditional  bool

	target   Pointer
	resolved bool
}

func (*Divert) node()          {}
func (*Divert) Kind() NodeKind { return KindDivert }

// HasVariableTarget reports whether the divert reads its target at runtime.
func (d *Divert) HasVariableTarget() bool { return d.VariableTarget != "" }

// TargetPointer returns the linked target, if the target resolved.
func (d *Divert) TargetPointer() (Pointer, bool) { return d.target, d.resolved }

// ExternalName returns the host function name of an external divert.
func (d *Divert) ExternalName() string { return d.Target.String() }

// ---------------------------------------------------------------------------
// ChoicePoint
// ---------------------------------------------------------------------------

// ChoiceFlags is the packed "flg" field of a choice point.
type ChoiceFlags uint8

const (
	ChoiceHasCondition         ChoiceFlags = 0x01
	ChoiceHasStartContent      ChoiceFlags = 0x02
	ChoiceHasChoiceOnlyContent ChoiceFlags = 0x04
	ChoiceIsInvisibleDefault   ChoiceFlags = 0x08
	ChoiceOnceOnly             ChoiceFlags = 0x10
)

// ChoicePoint generates a choice when reached. Its evaluated text and
// condition are already on the evaluation stack.
type ChoicePoint struct {
	PathOnChoice inkpath.Path // as written; absolute after linking
	Flags        ChoiceFlags

	target *Container
}

func (*ChoicePoint) node()          {}
func (*ChoicePoint) Kind() NodeKind { return KindChoicePoint }

func (c *ChoicePoint) HasCondition() bool         { return c.Flags&ChoiceHasCondition != 0 }
func (c *ChoicePoint) HasStartContent() bool      { return c.Flags&ChoiceHasStartContent != 0 }
func (c *ChoicePoint) HasChoiceOnlyContent() bool { return c.Flags&ChoiceHasChoiceOnlyContent != 0 }
func (c *ChoicePoint) IsInvisibleDefault() bool   { return c.Flags&ChoiceIsInvisibleDefault != 0 }
func (c *ChoicePoint) OnceOnly() bool             { return c.Flags&ChoiceOnceOnly != 0 }

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

// VariableReference pushes the value of a variable, or the visit count of
// a container when CountPath is set.
type VariableReference struct {
	Name      string
	CountPath inkpath.Path
	IsCount   bool

	countContainer *Container
}

func (*VariableReference) node()          {}
func (*VariableReference) Kind() NodeKind { return KindVariableReference }

// VariableAssignment pops a value and stores it.
type VariableAssignment struct {
	Name             string
	IsNewDeclaration bool
	IsGlobal         bool
}

func (*VariableAssignment) node()          {}
func (*VariableAssignment) Kind() NodeKind { return KindVariableAssignment }
