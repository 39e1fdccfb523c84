package vm

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/chazu/quill/pkg/inkpath"
)

// ---------------------------------------------------------------------------
// Story: the linked, immutable content graph
// ---------------------------------------------------------------------------

// Story is a linked content graph plus its list definitions. After
// NewStory returns, the graph is never mutated and can be shared by any
// number of sessions.
type Story struct {
	Version int
	Root    *Container
	Lists   *ListDefinitions

	containers  map[string]*Container
	unresolved  []string
	fingerprint string
}

// NewStory links root into a story: parents, indices and paths are
// assigned, then every relative target is rewritten to an absolute path
// and resolved to a pointer. Targets that do not resolve are kept as
// written and reported by Unresolved; diverting to one is an execution
// error.
func NewStory(root *Container, lists *ListDefinitions) *Story {
	if lists == nil {
		lists = NewListDefinitions()
	}
	s := &Story{
		Version:    MaxInkVersion,
		Root:       root,
		Lists:      lists,
		containers: make(map[string]*Container),
	}
	root.parent = nil
	root.indexInParent = -1
	root.path = inkpath.Path{}
	root.pathKey = ""
	s.linkStructure(root)
	s.linkTargets(root)
	return s
}

func fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Fingerprint identifies the story document the graph was decoded from.
// Stories built in memory have an empty fingerprint.
func (s *Story) Fingerprint() string { return s.fingerprint }

// Unresolved lists the targets that did not resolve during linking.
func (s *Story) Unresolved() []string {
	return append([]string(nil), s.unresolved...)
}

// ContainerCount returns the number of containers in the graph.
func (s *Story) ContainerCount() int { return len(s.containers) }

// ContainerAt looks a container up by its rendered path.
func (s *Story) ContainerAt(key string) (*Container, bool) {
	c, ok := s.containers[key]
	return c, ok
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// walk follows fragments from start. Only containers can be stepped
// through; a fragment that does not match fails the whole walk.
func walk(start *Container, frags []inkpath.Fragment) (Node, bool) {
	var cur Node = start
	for _, f := range frags {
		c, ok := cur.(*Container)
		if !ok {
			return nil, false
		}
		next, ok := c.Step(f)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Resolve finds the node at an absolute path. The final node may be of any
// kind. Resolution never guesses: any fragment that does not match yields
// no result.
func (s *Story) Resolve(p inkpath.Path) (Node, bool) {
	return walk(s.Root, p.Fragments())
}

// PointerAt converts an absolute path into a pointer. A trailing index
// addresses a position in the enclosing container and may equal its length;
// any other path must name a container, which is addressed with index -1.
func (s *Story) PointerAt(p inkpath.Path) (Pointer, bool) {
	frags := p.Fragments()
	if len(frags) == 0 {
		return Pointer{Container: s.Root, Index: -1}, true
	}
	last := frags[len(frags)-1]
	if last.IsIndex() {
		n, ok := walk(s.Root, frags[:len(frags)-1])
		c, isContainer := n.(*Container)
		if !ok || !isContainer || last.Index() > len(c.Content) {
			return NullPointer, false
		}
		return Pointer{Container: c, Index: last.Index()}, true
	}
	n, ok := walk(s.Root, frags)
	c, isContainer := n.(*Container)
	if !ok || !isContainer {
		return NullPointer, false
	}
	return Pointer{Container: c, Index: -1}, true
}

// ---------------------------------------------------------------------------
// Linking
// ---------------------------------------------------------------------------

func (s *Story) linkStructure(c *Container) {
	c.linked = true
	if _, dup := s.containers[c.pathKey]; !dup {
		s.containers[c.pathKey] = c
	}
	for i, n := range c.Content {
		child, ok := n.(*Container)
		if !ok || child.linked {
			continue
		}
		frag := inkpath.Index(i)
		if child.Name != "" {
			frag = inkpath.Name(child.Name)
		}
		s.adopt(c, child, i, frag)
	}
	for _, name := range sortedNames(c.NamedContent) {
		child := c.NamedContent[name]
		if child.linked {
			continue
		}
		s.adopt(c, child, -1, inkpath.Name(name))
	}
}

func (s *Story) adopt(parent, child *Container, index int, frag inkpath.Fragment) {
	child.parent = parent
	child.indexInParent = index
	child.path = parent.path.Append(frag)
	child.pathKey = child.path.String()
	s.linkStructure(child)
}

func sortedNames(m map[string]*Container) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// linkTargets rewrites relative targets below c. Each container is visited
// once, through the parent that adopted it.
func (s *Story) linkTargets(c *Container) {
	for i, n := range c.Content {
		switch x := n.(type) {
		case *Container:
			if x.parent == c {
				s.linkTargets(x)
			}
		case *Divert:
			if x.HasVariableTarget() || x.IsExternal {
				continue
			}
			abs, ok := s.absolutize(c, x.Target)
			if ok {
				x.Target = abs
				if ptr, ok := s.PointerAt(abs); ok {
					x.target, x.resolved = enterContainer(ptr), true
					continue
				}
			}
			s.unresolved = append(s.unresolved, x.Target.String())
		case *ChoicePoint:
			abs, ok := s.absolutize(c, x.PathOnChoice)
			if ok {
				x.PathOnChoice = abs
				if n, ok := s.Resolve(abs); ok {
					if target, ok := n.(*Container); ok {
						x.target = target
						continue
					}
				}
			}
			s.unresolved = append(s.unresolved, x.PathOnChoice.String())
		case DivertTargetValue:
			if abs, ok := s.absolutize(c, x.Target); ok {
				c.Content[i] = DivertTargetValue{Target: abs}
			} else {
				s.unresolved = append(s.unresolved, x.Target.String())
			}
		case *VariableReference:
			if !x.IsCount {
				continue
			}
			abs, ok := s.absolutize(c, x.CountPath)
			if ok {
				x.CountPath = abs
				if n, ok := s.Resolve(abs); ok {
					if target, ok := n.(*Container); ok {
						x.countContainer = target
						continue
					}
				}
			}
			s.unresolved = append(s.unresolved, x.CountPath.String())
		}
	}
	for _, name := range sortedNames(c.NamedContent) {
		if child := c.NamedContent[name]; child.parent == c {
			s.linkTargets(child)
		}
	}
}

// absolutize rewrites a path written on a node held by holder. A relative
// path on a content node starts with "^", which stands for holder itself.
// A trailing index is kept as is, so it may address the end of a container.
func (s *Story) absolutize(holder *Container, p inkpath.Path) (inkpath.Path, bool) {
	if !p.IsRelative() {
		return p, true
	}
	frags := p.Fragments()
	if len(frags) > 0 && frags[0].IsParent() {
		frags = frags[1:]
	}
	if len(frags) == 0 {
		return holder.Path(), true
	}
	last := frags[len(frags)-1]
	prefix := frags
	if last.IsIndex() {
		prefix = frags[:len(frags)-1]
	}
	n, ok := walk(holder, prefix)
	c, isContainer := n.(*Container)
	if !ok || !isContainer {
		return p, false
	}
	if last.IsIndex() {
		return c.Path().Append(last), true
	}
	return c.Path(), true
}

// enterContainer turns a pointer at a container into a pointer at its
// first element, which is where a divert lands.
func enterContainer(p Pointer) Pointer {
	if p.Container != nil && p.Index < 0 {
		return StartOf(p.Container)
	}
	return p
}
