package vm

import (
	"testing"

	"github.com/chazu/quill/pkg/inkpath"
)

const graphStory = `{"inkVersion":21,"root":[
	["^a",{"->":".^.b"},{"->":".^.0"},{"b":["^b","done",null]}],
	"done",
	{"knot":[["^k",null],{"stitch":["done",{"->":"knot.0"},{"#f":1}]}]}]}`

func TestResolve(t *testing.T) {
	s := mustStory(t, graphStory)

	tests := []struct {
		path string
		ok   bool
		want string // container path key, string value or divert target
	}{
		{"knot", true, "knot"},
		{"knot.stitch", true, "knot.stitch"},
		{"knot.0", true, "knot.0"},
		{"knot.0.0", true, "k"},
		{"knot.0.^", true, "knot"},
		{"0.b", true, "0.b"},
		{"knot.stitch.1", true, "knot.0"},
		{"knot.9", false, ""},
		{"knot.0.0.0", false, ""},
		{"nothing", false, ""},
	}
	for _, tt := range tests {
		n, ok := s.Resolve(inkpath.MustParse(tt.path))
		if ok != tt.ok {
			t.Errorf("Resolve(%s) ok = %v, want %v", tt.path, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		switch v := n.(type) {
		case *Container:
			if v.PathKey() != tt.want {
				t.Errorf("Resolve(%s) = container %q, want %q", tt.path, v.PathKey(), tt.want)
			}
		case StringValue:
			if string(v) != tt.want {
				t.Errorf("Resolve(%s) = %q, want %q", tt.path, v, tt.want)
			}
		case *Divert:
			if v.Target.String() != tt.want {
				t.Errorf("Resolve(%s) = divert to %s, want %s", tt.path, v.Target, tt.want)
			}
		default:
			t.Errorf("Resolve(%s) = %#v", tt.path, n)
		}
	}
}

func TestPointerAt(t *testing.T) {
	s := mustStory(t, graphStory)

	p, ok := s.PointerAt(inkpath.MustParse("knot"))
	if !ok || p.Index != -1 || p.Container.PathKey() != "knot" {
		t.Fatalf("PointerAt(knot) = %v, %v", p, ok)
	}
	p, ok = s.PointerAt(inkpath.MustParse("knot.0.1"))
	if !ok || p.Index != 1 || p.Resolve() != nil {
		t.Fatalf("PointerAt(knot.0.1) = %v, %v; want end of container", p, ok)
	}
	if _, ok := s.PointerAt(inkpath.MustParse("knot.0.2")); ok {
		t.Fatal("PointerAt(knot.0.2) should fail")
	}
	p, ok = s.PointerAt(inkpath.Path{})
	if !ok || p.Container != s.Root {
		t.Fatal("PointerAt(root) should address the root")
	}
}

func TestLinkRelativeTargets(t *testing.T) {
	s := mustStory(t, graphStory)
	c0 := s.Root.Content[0].(*Container)

	d := c0.Content[1].(*Divert)
	if d.Target.String() != "0.b" {
		t.Errorf("relative name target = %s, want 0.b", d.Target)
	}
	ptr, ok := d.TargetPointer()
	if !ok || ptr.Container.PathKey() != "0.b" || ptr.Index != 0 {
		t.Errorf("TargetPointer() = %v, %v; want start of 0.b", ptr, ok)
	}

	d = c0.Content[2].(*Divert)
	if d.Target.String() != "0.0" {
		t.Errorf("relative index target = %s, want 0.0", d.Target)
	}
}

func TestLinkAssignsPaths(t *testing.T) {
	s := mustStory(t, graphStory)
	for _, key := range []string{"", "0", "0.b", "knot", "knot.0", "knot.stitch"} {
		c, ok := s.ContainerAt(key)
		if !ok {
			t.Errorf("ContainerAt(%q) not found", key)
			continue
		}
		if c.PathKey() != key {
			t.Errorf("ContainerAt(%q).PathKey() = %q", key, c.PathKey())
		}
	}
	knot, _ := s.ContainerAt("knot")
	if knot.IndexInParent() != -1 || knot.Parent() != s.Root {
		t.Errorf("knot parent=%v index=%d", knot.Parent(), knot.IndexInParent())
	}
	stitch, _ := s.ContainerAt("knot.stitch")
	if !stitch.VisitsShouldBeCounted {
		t.Error("knot.stitch should count visits")
	}
	if knot.VisitsShouldBeCounted {
		t.Error("knot has no count flags")
	}
}
