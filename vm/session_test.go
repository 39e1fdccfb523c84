package vm

import (
	"errors"
	"strconv"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func mustStory(t *testing.T, src string) *Story {
	t.Helper()
	s, err := ParseStory([]byte(src))
	if err != nil {
		t.Fatalf("ParseStory: %v", err)
	}
	if u := s.Unresolved(); len(u) > 0 {
		t.Fatalf("unresolved targets: %v", u)
	}
	return s
}

func mustSession(t *testing.T, src string, opts ...Option) *Session {
	t.Helper()
	s, err := NewSession(mustStory(t, src), opts...)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func mustContinue(t *testing.T, s *Session) *Turn {
	t.Helper()
	turn, err := s.Continue()
	if err != nil {
		t.Fatalf("Continue: %v", err)
	}
	return turn
}

// ---------------------------------------------------------------------------
// Stories
// ---------------------------------------------------------------------------

const helloStory = `{"inkVersion":21,"root":[["^Hello, world.","\n",["done",{"#f":5,"#n":"g-0"}],null],"done",null],"listDefs":{}}`

const choiceStory = `{"inkVersion":21,"root":[
	["^Pick one.","\n",
	 "ev","str","^Red","/str","/ev",{"*":"0.c-0","flg":20},
	 "ev","str","^Blue","/str","/ev",{"*":"0.c-1","flg":20},
	 {"c-0":["\n","^You chose red.","\n","end",{"#f":5}],
	  "c-1":["\n","^You chose blue.","\n","end",{"#f":5}]}],
	"done",null]}`

const globalsStory = `{"inkVersion":21,"root":[
	["ev",{"VAR?":"x"},1,"+",{"VAR=":"x","re":true},"/ev","ev",{"VAR?":"x"},"out","/ev","\n","done",null],
	"done",
	{"global decl":["ev",5,{"VAR=":"x"},"/ev","end",null]}]}`

const functionStory = `{"inkVersion":21,"root":[
	["ev",2,{"f()":"double"},"out","/ev","\n","done",null],
	"done",
	{"double":[{"temp=":"n"},"ev",{"VAR?":"n"},2,"*","/ev","~ret",null]}]}`

const tunnelStory = `{"inkVersion":21,"root":[
	["^A","\n",{"->t->":"tun"},"^C","\n","done",null],
	"done",
	{"tun":["^B","\n","ev","void","/ev","->->",null]}]}`

// ---------------------------------------------------------------------------
// Turns
// ---------------------------------------------------------------------------

func TestContinueHello(t *testing.T) {
	s := mustSession(t, helloStory)
	turn := mustContinue(t, s)

	if got := turn.Text(); got != "Hello, world.\n" {
		t.Fatalf("Text() = %q, want %q", got, "Hello, world.\n")
	}
	if len(turn.Choices) != 0 {
		t.Fatalf("choices = %d, want 0", len(turn.Choices))
	}
	if turn.Ended {
		t.Fatal("turn should not report END after DONE")
	}
	if s.CanContinue() {
		t.Fatal("CanContinue() = true after DONE")
	}
	if _, err := s.Continue(); !errors.Is(err, ErrCannotContinue) {
		t.Fatalf("second Continue error = %v, want ErrCannotContinue", err)
	}
	if n, err := s.VisitCount("0.g-0"); err != nil || n != 1 {
		t.Fatalf("VisitCount(0.g-0) = %d, %v; want 1", n, err)
	}
}

func TestChoices(t *testing.T) {
	s := mustSession(t, choiceStory)
	turn := mustContinue(t, s)

	if got := turn.Text(); got != "Pick one.\n" {
		t.Fatalf("Text() = %q, want %q", got, "Pick one.\n")
	}
	if len(turn.Choices) != 2 {
		t.Fatalf("choices = %d, want 2", len(turn.Choices))
	}
	for i, want := range []string{"Red", "Blue"} {
		if turn.Choices[i].Text != want {
			t.Errorf("choice %d = %q, want %q", i, turn.Choices[i].Text, want)
		}
		if turn.Choices[i].Index != i {
			t.Errorf("choice %d index = %d", i, turn.Choices[i].Index)
		}
	}

	if err := s.Choose(5); !errors.Is(err, ErrChoiceOutOfRange) {
		t.Fatalf("Choose(5) error = %v, want ErrChoiceOutOfRange", err)
	}
	if err := s.Choose(1); err != nil {
		t.Fatalf("Choose(1): %v", err)
	}
	if s.TurnIndex() != 0 {
		t.Fatalf("TurnIndex() = %d, want 0", s.TurnIndex())
	}

	turn = mustContinue(t, s)
	if got := turn.Text(); got != "You chose blue.\n" {
		t.Fatalf("Text() = %q, want %q", got, "You chose blue.\n")
	}
	if !turn.Ended || !s.Ended() {
		t.Fatal("story should have ended")
	}
	if _, err := s.Continue(); !errors.Is(err, ErrStoryEnded) {
		t.Fatalf("Continue after END error = %v, want ErrStoryEnded", err)
	}
	if n, _ := s.VisitCount("0.c-1"); n != 1 {
		t.Fatalf("VisitCount(0.c-1) = %d, want 1", n)
	}
}

func TestChooseHandle(t *testing.T) {
	s := mustSession(t, choiceStory)
	turn := mustContinue(t, s)

	if err := s.ChooseHandle("nope"); !errors.Is(err, ErrUnknownChoice) {
		t.Fatalf("ChooseHandle(nope) error = %v, want ErrUnknownChoice", err)
	}
	if err := s.ChooseHandle(turn.Choices[0].Handle()); err != nil {
		t.Fatalf("ChooseHandle: %v", err)
	}
	turn = mustContinue(t, s)
	if got := turn.Text(); got != "You chose red.\n" {
		t.Fatalf("Text() = %q, want %q", got, "You chose red.\n")
	}
}

func TestGlobalDeclarations(t *testing.T) {
	s := mustSession(t, globalsStory)

	v, ok := s.Variable("x")
	if !ok || v != IntValue(5) {
		t.Fatalf("x before first turn = %v, %v; want 5", v, ok)
	}
	if s.Ended() {
		t.Fatal("global declarations must not end the session")
	}

	turn := mustContinue(t, s)
	if got := turn.Text(); got != "6\n" {
		t.Fatalf("Text() = %q, want %q", got, "6\n")
	}
	if v, _ := s.Variable("x"); v != IntValue(6) {
		t.Fatalf("x = %v, want 6", v)
	}
	if s.TurnIndex() != -1 {
		t.Fatalf("TurnIndex() = %d, want -1", s.TurnIndex())
	}
}

func TestSetVariable(t *testing.T) {
	s := mustSession(t, globalsStory)

	if err := s.SetVariable("missing", IntValue(1)); !errors.Is(err, ErrVariableUndeclared) {
		t.Fatalf("SetVariable(missing) error = %v, want ErrVariableUndeclared", err)
	}
	if err := s.SetVariable("x", IntValue(41)); err != nil {
		t.Fatalf("SetVariable: %v", err)
	}
	turn := mustContinue(t, s)
	if got := turn.Text(); got != "42\n" {
		t.Fatalf("Text() = %q, want %q", got, "42\n")
	}
	if names := s.GlobalNames(); len(names) != 1 || names[0] != "x" {
		t.Fatalf("GlobalNames() = %v, want [x]", names)
	}
}

func TestFunctionCall(t *testing.T) {
	s := mustSession(t, functionStory)
	turn := mustContinue(t, s)
	if got := turn.Text(); got != "4\n" {
		t.Fatalf("Text() = %q, want %q", got, "4\n")
	}
}

func TestTunnel(t *testing.T) {
	s := mustSession(t, tunnelStory)
	turn := mustContinue(t, s)

	lines := turn.Lines()
	want := []string{"A", "B", "C"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
	for i, l := range lines {
		if l.Text != want[i] {
			t.Errorf("line %d = %q, want %q", i, l.Text, want[i])
		}
	}
}

func TestRestart(t *testing.T) {
	s := mustSession(t, choiceStory)
	mustContinue(t, s)
	if err := s.Choose(0); err != nil {
		t.Fatal(err)
	}
	mustContinue(t, s)

	if err := s.Restart(); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if s.Ended() || s.TurnIndex() != -1 {
		t.Fatalf("after Restart: ended=%v turn=%d", s.Ended(), s.TurnIndex())
	}
	turn := mustContinue(t, s)
	if len(turn.Choices) != 2 {
		t.Fatalf("choices after Restart = %d, want 2", len(turn.Choices))
	}
}

func TestGoTo(t *testing.T) {
	s := mustSession(t, choiceStory)
	if err := s.GoTo("0.nowhere"); !errors.Is(err, ErrDivertTargetNotFound) {
		t.Fatalf("GoTo(0.nowhere) error = %v, want ErrDivertTargetNotFound", err)
	}
	if err := s.GoTo("0.c-1"); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	turn := mustContinue(t, s)
	if got := turn.Text(); got != "You chose blue.\n" {
		t.Fatalf("Text() = %q, want %q", got, "You chose blue.\n")
	}
}

// ---------------------------------------------------------------------------
// Threads
// ---------------------------------------------------------------------------

const threadStory = `{"inkVersion":21,"root":[
	["thread",{"->":"side"},"^Hello","\n",
	 "ev","str","^Main","/str","/ev",{"*":"0.c-0","flg":20},"done",
	 {"c-0":["\n","^Main chosen","\n","end",{"#f":5}]}],
	"done",
	{"side":["ev","str","^Side","/str","/ev",{"*":"side.c-0","flg":20},"done",
	  {"c-0":["\n","^Side chosen","\n","end",{"#f":5}]}]}]}`

func TestThreadGathersChoices(t *testing.T) {
	s := mustSession(t, threadStory)
	turn := mustContinue(t, s)
	if text := turn.Text(); text != "Hello\n" {
		t.Fatalf("Text() = %q, want %q", text, "Hello\n")
	}
	if len(turn.Choices) != 2 || turn.Choices[0].Text != "Side" || turn.Choices[1].Text != "Main" {
		t.Fatalf("choices = %+v, want Side, Main", turn.Choices)
	}
	if n := s.st.callStack.ThreadCount(); n != 1 {
		t.Fatalf("thread count after done = %d, want 1", n)
	}

	sideThread := turn.Choices[0].thread.Index
	if sideThread == turn.Choices[1].thread.Index {
		t.Fatal("choices from different threads share a fork")
	}
	if err := s.Choose(0); err != nil {
		t.Fatal(err)
	}
	if got := s.st.callStack.CurrentThread().Index; got != sideThread {
		t.Fatalf("resumed on thread %d, want %d", got, sideThread)
	}
	turn = mustContinue(t, s)
	if text := turn.Text(); text != "Side chosen\n" || !turn.Ended {
		t.Fatalf("after Side: text=%q ended=%v", text, turn.Ended)
	}
}

func TestEndInsideThread(t *testing.T) {
	s := mustSession(t, `{"inkVersion":21,"root":[
		["^Before","\n","thread",{"->":"side"},"^After","\n","done",null],
		"done",
		{"side":["ev","str","^Side","/str","/ev",{"*":"side.c-0","flg":20},"end",
		  {"c-0":["^unreachable","\n","end",{"#f":5}]}]}]}`)
	turn := mustContinue(t, s)
	if text := turn.Text(); text != "Before\n" {
		t.Fatalf("Text() = %q, want %q", text, "Before\n")
	}
	if !turn.Ended || len(turn.Choices) != 0 {
		t.Fatalf("ended=%v choices=%d, want ended with no choices", turn.Ended, len(turn.Choices))
	}
	if n := s.st.callStack.ThreadCount(); n != 1 {
		t.Fatalf("thread count after end = %d, want 1", n)
	}
	if d := s.st.callStack.Depth(); d != 1 {
		t.Fatalf("call stack depth after end = %d, want 1", d)
	}
	if _, err := s.Continue(); !errors.Is(err, ErrStoryEnded) {
		t.Fatalf("Continue after end error = %v, want ErrStoryEnded", err)
	}
}

// ---------------------------------------------------------------------------
// Faults
// ---------------------------------------------------------------------------

func TestTunnelReturnOutsideTunnel(t *testing.T) {
	s := mustSession(t, `{"inkVersion":21,"root":[["ev","void","/ev","->->",null],"done",null]}`)

	_, err := s.Continue()
	if !errors.Is(err, ErrFrameMismatch) {
		t.Fatalf("error = %v, want ErrFrameMismatch", err)
	}
	var ee *ExecError
	if !errors.As(err, &ee) {
		t.Fatalf("error %T is not *ExecError", err)
	}
	if ee.Op != "->->" || ee.Frame != FrameRoot {
		t.Fatalf("ExecError op=%q frame=%s, want ->-> in root frame", ee.Op, ee.Frame)
	}
	// The mismatch is detected before anything is popped.
	if len(s.st.evalStack) != 1 {
		t.Fatalf("eval stack height = %d, want 1", len(s.st.evalStack))
	}
	if s.st.callStack.Depth() != 1 {
		t.Fatalf("call stack depth = %d, want 1", s.st.callStack.Depth())
	}

	if _, err := s.Continue(); !errors.Is(err, ErrSessionFaulted) {
		t.Fatalf("Continue after fault error = %v, want ErrSessionFaulted", err)
	}
	if err := s.Choose(0); !errors.Is(err, ErrSessionFaulted) {
		t.Fatalf("Choose after fault error = %v, want ErrSessionFaulted", err)
	}
	if err := s.Restart(); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if s.Fault() != nil {
		t.Fatalf("Fault() = %v after Restart", s.Fault())
	}
}

func TestFunctionReturnOutsideFunction(t *testing.T) {
	s := mustSession(t, `{"inkVersion":21,"root":[["~ret",null],"done",null]}`)
	_, err := s.Continue()
	if !errors.Is(err, ErrFrameMismatch) {
		t.Fatalf("error = %v, want ErrFrameMismatch", err)
	}
}

func TestReturnKindMismatchInPushedFrame(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		op    string
		frame FrameKind
	}{
		{
			"function return in tunnel",
			`{"inkVersion":21,"root":[[{"->t->":"tun"},"done",null],"done",{"tun":["~ret",null]}]}`,
			"~ret", FrameTunnel,
		},
		{
			"tunnel return in function",
			`{"inkVersion":21,"root":[["ev",{"f()":"fn"},"/ev","done",null],"done",{"fn":["ev","void","/ev","->->",null]}]}`,
			"->->", FrameFunction,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustSession(t, tt.src)
			_, err := s.Continue()
			if !errors.Is(err, ErrFrameMismatch) {
				t.Fatalf("error = %v, want ErrFrameMismatch", err)
			}
			var ee *ExecError
			if !errors.As(err, &ee) {
				t.Fatalf("error %T is not *ExecError", err)
			}
			if ee.Op != tt.op || ee.Frame != tt.frame {
				t.Fatalf("ExecError op=%q frame=%s, want %s in %s frame", ee.Op, ee.Frame, tt.op, tt.frame)
			}
			if d := s.st.callStack.Depth(); d != 2 {
				t.Fatalf("call stack depth = %d, want 2", d)
			}
		})
	}
}

func TestOutputWithEmptyStack(t *testing.T) {
	s := mustSession(t, `{"inkVersion":21,"root":[["^a","ev","out","/ev","\n","done",null],"done",null]}`)
	_, err := s.Continue()
	if !errors.Is(err, ErrEvalStackUnderflow) {
		t.Fatalf("error = %v, want ErrEvalStackUnderflow", err)
	}
	var ee *ExecError
	if !errors.As(err, &ee) || ee.Op != "out" {
		t.Fatalf("error %v is not an ExecError for out", err)
	}
}

func TestUnbalancedStringCapture(t *testing.T) {
	s := mustSession(t, `{"inkVersion":21,"root":[["^keep","ev","/str",null],"done",null]}`)
	_, err := s.Continue()
	if !errors.Is(err, ErrUnbalancedStringCapture) {
		t.Fatalf("error = %v, want ErrUnbalancedStringCapture", err)
	}
	if len(s.st.output) != 1 || s.st.output[0] != StringValue("keep") {
		t.Fatalf("output = %v, want [keep]", s.st.output)
	}
}

func TestEvalModeViolation(t *testing.T) {
	s := mustSession(t, `{"inkVersion":21,"root":[["/ev",null],"done",null]}`)
	if _, err := s.Continue(); !errors.Is(err, ErrEvalModeViolation) {
		t.Fatalf("error = %v, want ErrEvalModeViolation", err)
	}
}

func TestRanOutOfContent(t *testing.T) {
	s := mustSession(t, `{"inkVersion":21,"root":[["^text",null],null]}`)
	if _, err := s.Continue(); !errors.Is(err, ErrRanOutOfContent) {
		t.Fatalf("error = %v, want ErrRanOutOfContent", err)
	}
}

func TestDivertToMissingTarget(t *testing.T) {
	story, err := ParseStory([]byte(`{"inkVersion":21,"root":[[{"->":"nowhere"},null],"done",null]}`))
	if err != nil {
		t.Fatal(err)
	}
	if u := story.Unresolved(); len(u) != 1 || u[0] != "nowhere" {
		t.Fatalf("Unresolved() = %v, want [nowhere]", u)
	}
	s, err := NewSession(story)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Continue(); !errors.Is(err, ErrDivertTargetNotFound) {
		t.Fatalf("error = %v, want ErrDivertTargetNotFound", err)
	}
}

func TestStepBudget(t *testing.T) {
	s := mustSession(t, `{"inkVersion":21,"root":[["^x",{"->":"0"},null],"done",null]}`, WithStepBudget(50))
	_, err := s.Continue()
	if !errors.Is(err, ErrStepBudgetExceeded) {
		t.Fatalf("error = %v, want ErrStepBudgetExceeded", err)
	}
	if s.Steps() != 51 {
		t.Fatalf("Steps() = %d, want 51", s.Steps())
	}
}

func TestDivideByZero(t *testing.T) {
	s := mustSession(t, `{"inkVersion":21,"root":[["ev",1,0,"/","out","/ev","done",null],"done",null]}`)
	if _, err := s.Continue(); !errors.Is(err, ErrDivideByZero) {
		t.Fatalf("error = %v, want ErrDivideByZero", err)
	}
}

// ---------------------------------------------------------------------------
// Strings, tags and randomness
// ---------------------------------------------------------------------------

func TestStringCapture(t *testing.T) {
	s := mustSession(t, `{"inkVersion":21,"root":[
		["ev","str","^Hi ","ev",3,"out","/ev","/str","out","/ev","\n","done",null],"done",null]}`)
	turn := mustContinue(t, s)
	if got := turn.Text(); got != "Hi 3\n" {
		t.Fatalf("Text() = %q, want %q", got, "Hi 3\n")
	}
}

func TestTags(t *testing.T) {
	s := mustSession(t, `{"inkVersion":21,"root":[
		[{"#":"static"},"^Line","#","^dyn ","ev",7,"out","/ev","/#","\n","done",null],"done",null]}`)
	turn := mustContinue(t, s)

	lines := turn.Lines()
	if len(lines) != 1 || lines[0].Text != "Line" {
		t.Fatalf("lines = %+v, want one line %q", lines, "Line")
	}
	tags := turn.Tags()
	if len(tags) != 2 || tags[0] != "static" || tags[1] != "dyn 7" {
		t.Fatalf("Tags() = %q, want [static dyn 7]", tags)
	}
}

func TestUnbalancedTag(t *testing.T) {
	s := mustSession(t, `{"inkVersion":21,"root":[["/#",null],"done",null]}`)
	if _, err := s.Continue(); !errors.Is(err, ErrUnbalancedTag) {
		t.Fatalf("error = %v, want ErrUnbalancedTag", err)
	}
}

const randomStory = `{"inkVersion":21,"root":[["ev",1,100,"rnd","out","/ev","\n","done",null],"done",null]}`

func TestRandomIsSeeded(t *testing.T) {
	a := mustContinue(t, mustSession(t, randomStory, WithSeed(7))).Text()
	b := mustContinue(t, mustSession(t, randomStory, WithSeed(7))).Text()
	if a != b {
		t.Fatalf("same seed gave %q and %q", a, b)
	}
	n, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		t.Fatalf("output %q is not a number", a)
	}
	if n < 1 || n > 100 {
		t.Fatalf("RANDOM(1, 100) = %d", n)
	}
}

func TestRandomRejectsEmptyRange(t *testing.T) {
	s := mustSession(t, `{"inkVersion":21,"root":[["ev",5,1,"rnd","/ev","done",null],"done",null]}`)
	if _, err := s.Continue(); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("error = %v, want ErrInvalidValue", err)
	}
}

func TestShuffleIndexIsPermutation(t *testing.T) {
	for loop := 0; loop < 3; loop++ {
		seen := make(map[int]bool)
		for i := 0; i < 5; i++ {
			idx := shuffleIndex("0.s-0", 5, loop*5+i, 3)
			if idx < 0 || idx >= 5 || seen[idx] {
				t.Fatalf("loop %d: index %d repeated or out of range", loop, idx)
			}
			seen[idx] = true
		}
	}
}

func TestCountingOpcodes(t *testing.T) {
	s := mustSession(t, `{"inkVersion":21,"root":[
		["ev","turn","out","/ev","^ ","ev","choiceCnt","out","/ev","^ ","ev",{"^->":"knot"},"readc","out","/ev","\n","done",null],
		"done",
		{"knot":["done",{"#f":1}]}]}`)
	turn := mustContinue(t, s)
	if got := turn.Text(); got != "0 0 0\n" {
		t.Fatalf("Text() = %q, want %q", got, "0 0 0\n")
	}
}

// ---------------------------------------------------------------------------
// External functions
// ---------------------------------------------------------------------------

const externalStory = `{"inkVersion":21,"root":[
	["ev",3,4,{"x()":"add","exArgs":2},"out","/ev","\n","done",null],
	"done",
	{"add":[{"temp=":"b"},{"temp=":"a"},"ev",{"VAR?":"a"},{"VAR?":"b"},"-","/ev","~ret",null]}]}`

func TestExternalFunction(t *testing.T) {
	s := mustSession(t, externalStory)
	var got []Value
	err := s.BindExternal("add", 2, func(args []Value) (Value, error) {
		got = args
		return IntValue(int(args[0].(IntValue)) + int(args[1].(IntValue))), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	turn := mustContinue(t, s)
	if text := turn.Text(); text != "7\n" {
		t.Fatalf("Text() = %q, want %q", text, "7\n")
	}
	if len(got) != 2 || got[0] != IntValue(3) || got[1] != IntValue(4) {
		t.Fatalf("args = %v, want [3 4]", got)
	}
}

func TestExternalFallback(t *testing.T) {
	s := mustSession(t, externalStory, WithExternalFallbacks(true))
	if err := s.BindExternal("add", 2, func(args []Value) (Value, error) { return IntValue(100), nil }); err != nil {
		t.Fatal(err)
	}
	s.UnbindExternal("add")
	turn := mustContinue(t, s)
	if text := turn.Text(); text != "-1\n" {
		t.Fatalf("Text() = %q, want %q", text, "-1\n")
	}
}

func TestExternalErrors(t *testing.T) {
	s := mustSession(t, externalStory)
	_, err := s.Continue()
	if !errors.Is(err, ErrExternalNotBound) {
		t.Fatalf("unbound error = %v, want ErrExternalNotBound", err)
	}

	s = mustSession(t, externalStory)
	s.BindExternal("add", 1, func(args []Value) (Value, error) { return nil, nil })
	if _, err := s.Continue(); !errors.Is(err, ErrArityMismatch) {
		t.Fatalf("arity error = %v, want ErrArityMismatch", err)
	}

	boom := errors.New("boom")
	s = mustSession(t, externalStory)
	s.BindExternal("add", 2, func(args []Value) (Value, error) { return nil, boom })
	_, err = s.Continue()
	if !errors.Is(err, ErrExternalFunction) || !errors.Is(err, boom) {
		t.Fatalf("host error = %v, want ErrExternalFunction wrapping boom", err)
	}
	var he *HostError
	if !errors.As(err, &he) || he.Name != "add" {
		t.Fatalf("error %v is not a HostError for add", err)
	}
}
