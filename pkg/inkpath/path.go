// Package inkpath parses and renders the dotted addresses used by compiled
// ink stories to name positions in the content graph.
//
// A path is a sequence of fragments separated by ".". A fragment is a
// non-negative index ("3"), a name ("knot", "c-0", "$r1") or the parent
// marker ("^"). A leading "." marks the path as relative.
package inkpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrEmptyPath is returned by Parse for the empty string.
	ErrEmptyPath = errors.New("inkpath: empty path")

	// ErrEmptyFragment is returned when a path contains an empty
	// fragment, for example "a..b" or a lone ".".
	ErrEmptyFragment = errors.New("inkpath: empty fragment")
)

// parentToken is the textual form of the parent fragment.
const parentToken = "^"

// ---------------------------------------------------------------------------
// Fragment
// ---------------------------------------------------------------------------

// FragmentKind distinguishes the three fragment forms.
type FragmentKind uint8

const (
	IndexFragment FragmentKind = iota
	NameFragment
	ParentFragment
)

func (k FragmentKind) String() string {
	switch k {
	case IndexFragment:
		return "index"
	case NameFragment:
		return "name"
	case ParentFragment:
		return "parent"
	default:
		return fmt.Sprintf("FragmentKind(%d)", k)
	}
}

// Fragment is one step of a path.
type Fragment struct {
	kind  FragmentKind
	index int
	name  string
}

// Index returns an index fragment. It panics if i is negative; paths
// never address a position before the start of a container.
func Index(i int) Fragment {
	if i < 0 {
		panic(fmt.Sprintf("inkpath: negative index %d", i))
	}
	return Fragment{kind: IndexFragment, index: i}
}

// Name returns a name fragment.
func Name(name string) Fragment {
	return Fragment{kind: NameFragment, name: name}
}

// Parent is the "^" fragment.
var Parent = Fragment{kind: ParentFragment}

// Kind reports the fragment form.
func (f Fragment) Kind() FragmentKind { return f.kind }

// IsIndex reports whether f is an index fragment.
func (f Fragment) IsIndex() bool { return f.kind == IndexFragment }

// IsName reports whether f is a name fragment.
func (f Fragment) IsName() bool { return f.kind == NameFragment }

// IsParent reports whether f is the parent fragment.
func (f Fragment) IsParent() bool { return f.kind == ParentFragment }

// Index returns the index of an index fragment, or -1.
func (f Fragment) Index() int {
	if f.kind != IndexFragment {
		return -1
	}
	return f.index
}

// Name returns the name of a name fragment, or "".
func (f Fragment) Name() string {
	if f.kind != NameFragment {
		return ""
	}
	return f.name
}

// String renders the fragment as it appears in a path.
func (f Fragment) String() string {
	switch f.kind {
	case IndexFragment:
		return strconv.Itoa(f.index)
	case ParentFragment:
		return parentToken
	default:
		return f.name
	}
}

// Equal compares fragments by their rendered form.
func (f Fragment) Equal(other Fragment) bool {
	return f.String() == other.String()
}

func parseFragment(tok string) (Fragment, error) {
	switch {
	case tok == "":
		return Fragment{}, ErrEmptyFragment
	case tok == parentToken:
		return Parent, nil
	case isCanonicalIndex(tok):
		n, err := strconv.Atoi(tok)
		if err != nil {
			// Too large for int; keep it addressable as a name.
			return Name(tok), nil
		}
		return Index(n), nil
	default:
		return Name(tok), nil
	}
}

// isCanonicalIndex accepts decimal digits without a redundant leading zero,
// so that every index fragment renders back to the token it came from.
func isCanonicalIndex(tok string) bool {
	if tok == "" {
		return false
	}
	for i := 0; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return false
		}
	}
	return tok == "0" || tok[0] != '0'
}

// ---------------------------------------------------------------------------
// Path
// ---------------------------------------------------------------------------

// Path is an ordered sequence of fragments plus a relative flag.
//
// The zero Path has no fragments and addresses the story root. Parse never
// produces it.
type Path struct {
	fragments []Fragment
	relative  bool
}

// New builds a path from fragments.
func New(relative bool, fragments ...Fragment) Path {
	fs := make([]Fragment, len(fragments))
	copy(fs, fragments)
	return Path{fragments: fs, relative: relative}
}

// Parse reads the textual form of a path.
func Parse(s string) (Path, error) {
	if s == "" {
		return Path{}, ErrEmptyPath
	}
	body, relative := strings.CutPrefix(s, ".")
	toks := strings.Split(body, ".")
	fs := make([]Fragment, 0, len(toks))
	for _, tok := range toks {
		f, err := parseFragment(tok)
		if err != nil {
			return Path{}, fmt.Errorf("%w in %q", err, s)
		}
		fs = append(fs, f)
	}
	return Path{fragments: fs, relative: relative}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level tables.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// IsRelative reports whether the path is resolved against a starting node
// rather than the story root.
func (p Path) IsRelative() bool { return p.relative }

// IsRoot reports whether p is the zero path.
func (p Path) IsRoot() bool { return len(p.fragments) == 0 && !p.relative }

// Len returns the number of fragments.
func (p Path) Len() int { return len(p.fragments) }

// At returns the i-th fragment.
func (p Path) At(i int) Fragment { return p.fragments[i] }

// Fragments returns a copy of the fragment list.
func (p Path) Fragments() []Fragment {
	fs := make([]Fragment, len(p.fragments))
	copy(fs, p.fragments)
	return fs
}

// Head returns the first fragment, if any.
func (p Path) Head() (Fragment, bool) {
	if len(p.fragments) == 0 {
		return Fragment{}, false
	}
	return p.fragments[0], true
}

// Last returns the final fragment, if any.
func (p Path) Last() (Fragment, bool) {
	if len(p.fragments) == 0 {
		return Fragment{}, false
	}
	return p.fragments[len(p.fragments)-1], true
}

// Tail returns the path without its first fragment. The relative flag is
// dropped: a tail is always taken from an already-resolved node.
func (p Path) Tail() Path {
	if len(p.fragments) < 2 {
		return Path{}
	}
	return New(false, p.fragments[1:]...)
}

// Append returns a new path with f added to the end.
func (p Path) Append(f Fragment) Path {
	fs := make([]Fragment, len(p.fragments), len(p.fragments)+1)
	copy(fs, p.fragments)
	return Path{fragments: append(fs, f), relative: p.relative}
}

// String renders the path. Relative paths carry a leading ".".
func (p Path) String() string {
	var sb strings.Builder
	if p.relative {
		sb.WriteByte('.')
	}
	for i, f := range p.fragments {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(f.String())
	}
	return sb.String()
}

// Equal compares paths by their rendered form, which is also the form used
// as a map key throughout the runtime.
func (p Path) Equal(other Path) bool {
	return p.String() == other.String()
}
