package vm

import (
	"testing"

	"github.com/chazu/quill/pkg/inkpath"
)

func TestCountFlagsRoundTrip(t *testing.T) {
	for _, visits := range []bool{false, true} {
		for _, turns := range []bool{false, true} {
			for _, startOnly := range []bool{false, true} {
				f := PackCountFlags(visits, turns, startOnly)
				v, tu, so := f.Unpack()

				if !visits && !turns {
					// Start-only on its own means nothing and packs to zero.
					if f != 0 {
						t.Errorf("Pack(%v,%v,%v) = %#x, want 0", visits, turns, startOnly, f)
					}
					if v || tu || so {
						t.Errorf("Unpack(%#x) = %v,%v,%v, want all false", f, v, tu, so)
					}
					continue
				}
				if v != visits || tu != turns || so != startOnly {
					t.Errorf("Unpack(Pack(%v,%v,%v)) = %v,%v,%v", visits, turns, startOnly, v, tu, so)
				}
				if again := PackCountFlags(v, tu, so); again != f {
					t.Errorf("Pack(Unpack(%#x)) = %#x", f, again)
				}
			}
		}
	}
}

func TestCountFlagsLoneStartOnly(t *testing.T) {
	if v, tu, so := CountStartOnly.Unpack(); v || tu || so {
		t.Fatalf("Unpack(0x4) = %v,%v,%v, want all false", v, tu, so)
	}
	c := NewContainer()
	c.SetCountFlags(CountStartOnly)
	if c.CountFlags() != 0 {
		t.Fatalf("CountFlags() = %#x, want 0", c.CountFlags())
	}
}

func TestChildByNamePrefersContent(t *testing.T) {
	parent := NewContainer()
	inline := NewContainer()
	inline.Name = "k"
	parent.AddContent(inline)
	named := NewContainer()
	parent.AddNamed("k", named)
	other := NewContainer()
	parent.AddNamed("other", other)

	if got, _ := parent.ChildByName("k"); got != inline {
		t.Fatal("ChildByName(k) should find the content child first")
	}
	if got, _ := parent.ChildByName("other"); got != other {
		t.Fatal("ChildByName(other) should fall back to named content")
	}
	if _, ok := parent.ChildByName("none"); ok {
		t.Fatal("ChildByName(none) should fail")
	}
	if other.Name != "other" {
		t.Fatalf("AddNamed did not name the child: %q", other.Name)
	}
}

func TestContainerStep(t *testing.T) {
	root := NewContainer()
	child := NewContainer()
	root.AddContent(StringValue("a"), child)
	NewStory(root, nil)

	tests := []struct {
		frag inkpath.Fragment
		ok   bool
	}{
		{inkpath.Index(0), true},
		{inkpath.Index(1), true},
		{inkpath.Index(2), false},
		{inkpath.Name("x"), false},
		{inkpath.Parent, false},
	}
	for _, tt := range tests {
		_, ok := root.Step(tt.frag)
		if ok != tt.ok {
			t.Errorf("root.Step(%s) ok = %v, want %v", tt.frag, ok, tt.ok)
		}
	}
	if up, ok := child.Step(inkpath.Parent); !ok || up != root {
		t.Fatal("child.Step(^) should return root")
	}
}
