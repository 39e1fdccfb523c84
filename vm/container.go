package vm

import (
	"github.com/chazu/quill/pkg/inkpath"
)

// ---------------------------------------------------------------------------
// Count flags
// ---------------------------------------------------------------------------

// CountFlags is the packed form of a container's counting flags, as carried
// in the "#f" metadata key.
type CountFlags uint8

const (
	CountVisits    CountFlags = 0x1 // record visit counts
	CountTurns     CountFlags = 0x2 // record the turn of the last visit
	CountStartOnly CountFlags = 0x4 // only count entries at the first element
)

// PackCountFlags combines the three counting booleans. Counting at start
// only has no effect on its own, so that combination packs to zero.
func PackCountFlags(visits, turns, startOnly bool) CountFlags {
	var f CountFlags
	if visits {
		f |= CountVisits
	}
	if turns {
		f |= CountTurns
	}
	if startOnly {
		f |= CountStartOnly
	}
	if f == CountStartOnly {
		f = 0
	}
	return f
}

// Unpack splits packed flags into booleans. A lone start-only bit unpacks
// to all false, matching PackCountFlags.
func (f CountFlags) Unpack() (visits, turns, startOnly bool) {
	if f == CountStartOnly {
		return false, false, false
	}
	return f&CountVisits != 0, f&CountTurns != 0, f&CountStartOnly != 0
}

// ---------------------------------------------------------------------------
// Container
// ---------------------------------------------------------------------------

// Container is an ordered list of content with optional name, counting
// flags and a table of named sub-elements.
//
// The parent link, index and path are filled in by the link pass when the
// container becomes part of a Story.
type Container struct {
	Name         string
	Content      []Node
	NamedContent map[string]*Container

	VisitsShouldBeCounted    bool
	TurnIndexShouldBeCounted bool
	CountingAtStartOnly      bool

	parent        *Container
	indexInParent int
	path          inkpath.Path
	pathKey       string
	linked        bool
}

// NewContainer creates an empty, unnamed container.
func NewContainer() *Container {
	return &Container{indexInParent: -1}
}

func (*Container) node()          {}
func (*Container) Kind() NodeKind { return KindContainer }

// AddContent appends nodes to the container.
func (c *Container) AddContent(nodes ...Node) {
	c.Content = append(c.Content, nodes...)
}

// AddNamed registers a named sub-element.
func (c *Container) AddNamed(name string, child *Container) {
	if c.NamedContent == nil {
		c.NamedContent = make(map[string]*Container)
	}
	if child.Name == "" {
		child.Name = name
	}
	c.NamedContent[name] = child
}

// CountFlags returns the packed counting flags.
func (c *Container) CountFlags() CountFlags {
	return PackCountFlags(c.VisitsShouldBeCounted, c.TurnIndexShouldBeCounted, c.CountingAtStartOnly)
}

// SetCountFlags sets the counting booleans from packed flags.
func (c *Container) SetCountFlags(f CountFlags) {
	c.VisitsShouldBeCounted, c.TurnIndexShouldBeCounted, c.CountingAtStartOnly = f.Unpack()
}

// Parent returns the enclosing container, or nil for the root.
func (c *Container) Parent() *Container { return c.parent }

// IndexInParent returns the container's position in its parent's content,
// or -1 if it is reachable only through the named table.
func (c *Container) IndexInParent() int { return c.indexInParent }

// Path returns the container's absolute path. The root has the zero path.
func (c *Container) Path() inkpath.Path { return c.path }

// PathKey returns the rendered path, used as the key for visit counts.
func (c *Container) PathKey() string { return c.pathKey }

// ChildByName finds a named child. Direct content is searched first,
// then the named sub-element table.
func (c *Container) ChildByName(name string) (*Container, bool) {
	for _, n := range c.Content {
		if child, ok := n.(*Container); ok && child.Name == name {
			return child, true
		}
	}
	if child, ok := c.NamedContent[name]; ok {
		return child, true
	}
	return nil, false
}

// Step follows one path fragment from this container.
func (c *Container) Step(f inkpath.Fragment) (Node, bool) {
	switch f.Kind() {
	case inkpath.IndexFragment:
		i := f.Index()
		if i < 0 || i >= len(c.Content) {
			return nil, false
		}
		return c.Content[i], true
	case inkpath.NameFragment:
		child, ok := c.ChildByName(f.Name())
		if !ok {
			return nil, false
		}
		return child, true
	case inkpath.ParentFragment:
		if c.parent == nil {
			return nil, false
		}
		return c.parent, true
	}
	return nil, false
}
