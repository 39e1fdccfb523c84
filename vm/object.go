package vm

import "fmt"

// ---------------------------------------------------------------------------
// Node: one element of the compiled content graph
// ---------------------------------------------------------------------------

// NodeKind enumerates the closed set of node variants.
type NodeKind uint8

const (
	KindContainer NodeKind = iota
	KindControlCommand
	KindDivert
	KindValue
	KindVariableReference
	KindVariableAssignment
	KindNativeFunctionCall
	KindChoicePoint
	KindGlue
	KindTag
	KindVoid
	KindNull
)

var nodeKindNames = [...]string{
	KindContainer:          "Container",
	KindControlCommand:     "ControlCommand",
	KindDivert:             "Divert",
	KindValue:              "Value",
	KindVariableReference:  "VariableReference",
	KindVariableAssignment: "VariableAssignment",
	KindNativeFunctionCall: "NativeFunctionCall",
	KindChoicePoint:        "ChoicePoint",
	KindGlue:               "Glue",
	KindTag:                "Tag",
	KindVoid:               "Void",
	KindNull:               "Null",
}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return fmt.Sprintf("NodeKind(%d)", k)
}

// Node is implemented only by the types in this package. Code that switches
// over nodes can rely on the variant list above being complete.
type Node interface {
	Kind() NodeKind
	node()
}

// ---------------------------------------------------------------------------
// Marker nodes
// ---------------------------------------------------------------------------

// Glue suppresses the line break between the content on either side of it.
type Glue struct{}

func (Glue) node()          {}
func (Glue) Kind() NodeKind { return KindGlue }

// Tag is a piece of metadata attached to the current line or choice.
type Tag struct {
	Text string
}

func (*Tag) node()          {}
func (*Tag) Kind() NodeKind { return KindTag }

// Void is pushed by operations that complete without producing a value,
// such as a function that returns nothing.
type Void struct{}

func (Void) node()          {}
func (Void) Kind() NodeKind { return KindVoid }

// Null is the wire-format placeholder for "no element". The decoder only
// accepts it as the terminal metadata slot of a container, so it never
// appears in evaluated content.
type Null struct{}

func (Null) node()          {}
func (Null) Kind() NodeKind { return KindNull }
