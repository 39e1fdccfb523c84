package vm

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeContainerErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
		path string
	}{
		{"empty", `[]`, ErrNoElements, ""},
		{"null before end", `["^a",null,null]`, ErrUnexpectedNull, "1"},
		{"metadata before end", `[{"#f":1},null]`, ErrUnexpectedMetadata, "0"},
		{"node at end", `["^a","^b"]`, ErrUnexpectedNode, "1"},
		{"node object at end", `["^a",{"->":"x"}]`, ErrUnexpectedNode, "1"},
		{"nested empty", `[[[],null],null]`, ErrNoElements, "0.0"},
		{"unknown token", `["bogus",null]`, ErrMalformedNode, "0"},
		{"bad named", `["^a",{"knot":5}]`, ErrMalformedNode, "knot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeContainer([]byte(tt.src))
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("error %T is not *FormatError", err)
			}
			if fe.Path != tt.path {
				t.Errorf("Path = %q, want %q", fe.Path, tt.path)
			}
		})
	}
}

func TestDecodeContainerMetadata(t *testing.T) {
	c, err := DecodeContainer([]byte(`["^a",{"#n":"knot","#f":3,"sub":["done",null]}]`))
	if err != nil {
		t.Fatal(err)
	}
	if c.Name != "knot" {
		t.Errorf("Name = %q, want knot", c.Name)
	}
	if !c.VisitsShouldBeCounted || !c.TurnIndexShouldBeCounted || c.CountingAtStartOnly {
		t.Errorf("flags = %v,%v,%v, want true,true,false",
			c.VisitsShouldBeCounted, c.TurnIndexShouldBeCounted, c.CountingAtStartOnly)
	}
	sub, ok := c.NamedContent["sub"]
	if !ok || sub.Name != "sub" || len(sub.Content) != 1 {
		t.Fatalf("named child = %+v", sub)
	}
	if len(c.Content) != 1 || c.Content[0] != StringValue("a") {
		t.Fatalf("Content = %v", c.Content)
	}
}

func TestDecodeNamedChildCalledLikeANode(t *testing.T) {
	c, err := DecodeContainer([]byte(`["^a",{"list":["^l","done",null],"VAR?":["done",null]}]`))
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"list", "VAR?"} {
		if _, ok := c.NamedContent[name]; !ok {
			t.Errorf("named child %q missing", name)
		}
	}
	if len(c.Content) != 1 {
		t.Fatalf("Content = %v", c.Content)
	}
}

func TestDecodeTokens(t *testing.T) {
	c, err := DecodeContainer([]byte(`["^hi","\n","<>","void","ev","/ev","+","L^",3,2.5,1.0,true,null]`))
	if err != nil {
		t.Fatal(err)
	}
	want := []Node{
		StringValue("hi"), StringValue("\n"), Glue{}, Void{}, CmdEvalStart, CmdEvalEnd,
	}
	for i, w := range want {
		if c.Content[i] != w {
			t.Errorf("Content[%d] = %#v, want %#v", i, c.Content[i], w)
		}
	}
	for i, name := range []string{"+", "L^"} {
		call, ok := c.Content[6+i].(*NativeFunctionCall)
		if !ok || call.Name != name {
			t.Errorf("Content[%d] = %#v, want native %s", 6+i, c.Content[6+i], name)
		}
	}
	if c.Content[8] != IntValue(3) {
		t.Errorf("Content[8] = %#v, want IntValue(3)", c.Content[8])
	}
	if c.Content[9] != FloatValue(2.5) {
		t.Errorf("Content[9] = %#v, want FloatValue(2.5)", c.Content[9])
	}
	if c.Content[10] != FloatValue(1) {
		t.Errorf("Content[10] = %#v, want FloatValue(1)", c.Content[10])
	}
	if c.Content[11] != BoolValue(true) {
		t.Errorf("Content[11] = %#v, want BoolValue(true)", c.Content[11])
	}
}

func TestDecodeObjects(t *testing.T) {
	c, err := DecodeContainer([]byte(`[
		{"^->":"knot.3"},
		{"^var":"x","ci":0},
		{"->":"knot","c":true},
		{"f()":"fn"},
		{"->t->":"tun"},
		{"x()":"ext","exArgs":2},
		{"->":"target","var":true},
		{"*":".^.c-0","flg":18},
		{"VAR?":"x"},
		{"CNT?":".^"},
		{"VAR=":"x","re":true},
		{"temp=":"y"},
		{"#":"tag"},
		{"list":{"Colors.red":1},"origins":["Colors"]},
		null]`))
	if err != nil {
		t.Fatal(err)
	}

	if dt := c.Content[0].(DivertTargetValue); dt.Target.String() != "knot.3" {
		t.Errorf("divert target = %s", dt.Target)
	}
	if vp := c.Content[1].(VariablePointerValue); vp.Name != "x" || vp.Context != 0 {
		t.Errorf("variable pointer = %+v", vp)
	}
	if d := c.Content[2].(*Divert); !d.IsConditional || d.PushesToStack {
		t.Errorf("conditional divert = %+v", d)
	}
	if d := c.Content[3].(*Divert); !d.PushesToStack || d.StackPushType != FrameFunction {
		t.Errorf("function divert = %+v", d)
	}
	if d := c.Content[4].(*Divert); !d.PushesToStack || d.StackPushType != FrameTunnel {
		t.Errorf("tunnel divert = %+v", d)
	}
	if d := c.Content[5].(*Divert); !d.IsExternal || d.ExternalArgs != 2 || d.ExternalName() != "ext" {
		t.Errorf("external divert = %+v", d)
	}
	if d := c.Content[6].(*Divert); d.VariableTarget != "target" {
		t.Errorf("variable divert = %+v", d)
	}
	cp := c.Content[7].(*ChoicePoint)
	if !cp.OnceOnly() || !cp.HasStartContent() || cp.HasCondition() || cp.PathOnChoice.String() != ".^.c-0" {
		t.Errorf("choice point = %+v", cp)
	}
	if r := c.Content[8].(*VariableReference); r.Name != "x" || r.IsCount {
		t.Errorf("variable reference = %+v", r)
	}
	if r := c.Content[9].(*VariableReference); !r.IsCount {
		t.Errorf("count reference = %+v", r)
	}
	if a := c.Content[10].(*VariableAssignment); !a.IsGlobal || a.IsNewDeclaration {
		t.Errorf("global reassignment = %+v", a)
	}
	if a := c.Content[11].(*VariableAssignment); a.IsGlobal || !a.IsNewDeclaration {
		t.Errorf("temp declaration = %+v", a)
	}
	if tag := c.Content[12].(*Tag); tag.Text != "tag" {
		t.Errorf("tag = %+v", tag)
	}
	lv := c.Content[13].(ListValue)
	if lv.List.Len() != 1 || lv.String() != "red" {
		t.Errorf("list = %v", lv)
	}
}

func TestParseStoryVersion(t *testing.T) {
	for _, v := range []string{"18", "22"} {
		_, err := ParseStory([]byte(`{"inkVersion":` + v + `,"root":[["done",null],null]}`))
		if !errors.Is(err, ErrUnsupportedVersion) {
			t.Errorf("inkVersion %s: error = %v, want ErrUnsupportedVersion", v, err)
		}
	}
	if _, err := ParseStory([]byte(`{"root":[null]}`)); !errors.Is(err, ErrMalformedNode) {
		t.Errorf("missing version: error = %v, want ErrMalformedNode", err)
	}
	if _, err := ParseStory([]byte(`not json`)); !errors.Is(err, ErrMalformedNode) {
		t.Errorf("bad json: error = %v, want ErrMalformedNode", err)
	}
}

func TestParseStoryListDefs(t *testing.T) {
	s, err := ParseStory([]byte(`{"inkVersion":21,"root":[["done",null],null],
		"listDefs":{"Colors":{"red":1,"green":2,"blue":3}}}`))
	if err != nil {
		t.Fatal(err)
	}
	d, ok := s.Lists.Lookup("Colors")
	if !ok {
		t.Fatal("Colors not defined")
	}
	if v, _ := d.ValueOf("green"); v != 2 {
		t.Errorf("green = %d, want 2", v)
	}
	if s.Fingerprint() == "" || len(s.Fingerprint()) != 64 {
		t.Errorf("Fingerprint() = %q", s.Fingerprint())
	}
}

func TestLoadStory(t *testing.T) {
	s, err := LoadStory(strings.NewReader(helloStory))
	if err != nil {
		t.Fatal(err)
	}
	if s.Version != 21 {
		t.Errorf("Version = %d, want 21", s.Version)
	}
	if s.ContainerCount() != 3 {
		t.Errorf("ContainerCount() = %d, want 3", s.ContainerCount())
	}
}
