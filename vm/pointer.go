package vm

import (
	"fmt"

	"github.com/chazu/quill/pkg/inkpath"
)

// Pointer addresses a position inside a container. Index -1 means the
// container itself; Index == len(Content) is the position just past the
// last element.
type Pointer struct {
	Container *Container
	Index     int
}

// NullPointer addresses nothing.
var NullPointer = Pointer{Index: -1}

// StartOf returns a pointer to the first element of c.
func StartOf(c *Container) Pointer {
	return Pointer{Container: c, Index: 0}
}

// IsNull reports whether p addresses nothing.
func (p Pointer) IsNull() bool { return p.Container == nil }

// Resolve returns the node under the pointer, or nil when the pointer is
// null or past the end of its container.
func (p Pointer) Resolve() Node {
	if p.Container == nil {
		return nil
	}
	if p.Index < 0 {
		return p.Container
	}
	if p.Index >= len(p.Container.Content) {
		return nil
	}
	return p.Container.Content[p.Index]
}

// Path returns the absolute path of the position.
func (p Pointer) Path() inkpath.Path {
	if p.Container == nil {
		return inkpath.Path{}
	}
	if p.Index < 0 {
		return p.Container.Path()
	}
	return p.Container.Path().Append(inkpath.Index(p.Index))
}

func (p Pointer) String() string {
	if p.Container == nil {
		return "<null>"
	}
	return fmt.Sprintf("%s[%d]", p.Container.PathKey(), p.Index)
}
