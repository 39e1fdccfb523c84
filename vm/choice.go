package vm

import (
	"fmt"
	"strings"

	"github.com/chazu/quill/pkg/inkpath"
)

// Choice is an option offered to the player. It keeps a fork of the thread
// it was generated on, so that choosing it resumes from that point.
type Choice struct {
	Index              int
	Text               string
	Tags               []string
	TargetPath         inkpath.Path
	SourcePath         string
	IsInvisibleDefault bool

	thread              *Thread
	originalThreadIndex int
}

// Handle returns an opaque string that identifies the choice within the
// turn that offered it.
func (c *Choice) Handle() string {
	return fmt.Sprintf("%d:%s", c.thread.Index, c.TargetPath.String())
}

// processChoice pops the operands of a choice point and builds the choice,
// or returns nil when the choice is suppressed.
func (s *Session) processChoice(cp *ChoicePoint) (*Choice, error) {
	st := s.st
	show := true

	if cp.HasCondition() {
		v, err := s.popValue(KindChoicePoint.String())
		if err != nil {
			return nil, err
		}
		truthy, err := IsTruthy(v)
		if err != nil {
			return nil, s.execError(KindChoicePoint.String(), err, "")
		}
		if !truthy {
			show = false
		}
	}

	var startText, choiceOnlyText string
	var tags []string
	if cp.HasChoiceOnlyContent() {
		text, t, err := s.popChoiceString()
		if err != nil {
			return nil, err
		}
		choiceOnlyText = text
		tags = append(tags, t...)
	}
	if cp.HasStartContent() {
		text, t, err := s.popChoiceString()
		if err != nil {
			return nil, err
		}
		startText = text
		tags = append(tags, t...)
	}

	if cp.OnceOnly() && cp.target != nil && st.visitCount(cp.target) > 0 {
		show = false
	}
	if !show {
		return nil, nil
	}
	if cp.target == nil {
		return nil, s.execError(KindChoicePoint.String(), ErrDivertTargetNotFound, cp.PathOnChoice.String())
	}

	thread := st.callStack.ForkThread()
	return &Choice{
		Text:                strings.Trim(startText+choiceOnlyText, " \t"),
		Tags:                reverseStrings(tags),
		TargetPath:          cp.PathOnChoice,
		SourcePath:          st.currentPointer().Path().String(),
		IsInvisibleDefault:  cp.IsInvisibleDefault(),
		thread:              thread,
		originalThreadIndex: st.callStack.CurrentThread().Index,
	}, nil
}

// popChoiceString pops a string and any tags evaluated beneath it.
func (s *Session) popChoiceString() (string, []string, error) {
	v, err := s.popValue(KindChoicePoint.String())
	if err != nil {
		return "", nil, err
	}
	str, ok := v.(StringValue)
	if !ok {
		return "", nil, s.execError(KindChoicePoint.String(), ErrTypeMismatch, "choice text is "+v.Type().String())
	}
	var tags []string
	for {
		top, ok := s.st.peekEval()
		if !ok {
			break
		}
		tag, isTag := top.(*Tag)
		if !isTag {
			break
		}
		s.st.popEval()
		tags = append(tags, tag.Text)
	}
	return string(str), tags, nil
}

func reverseStrings(ss []string) []string {
	for i, j := 0, len(ss)-1; i < j; i, j = i+1, j-1 {
		ss[i], ss[j] = ss[j], ss[i]
	}
	return ss
}

// visibleChoices returns the choices a player can pick, numbered from 0.
func (s *Session) visibleChoices() []*Choice {
	var out []*Choice
	for _, c := range s.st.choices {
		if c.IsInvisibleDefault {
			continue
		}
		c.Index = len(out)
		out = append(out, c)
	}
	return out
}

// Choices returns copies of the choices currently on offer.
func (s *Session) Choices() []Choice {
	vis := s.visibleChoices()
	out := make([]Choice, len(vis))
	for i, c := range vis {
		out[i] = *c
	}
	return out
}

// Choose picks a visible choice by index and prepares the session to
// continue from it.
func (s *Session) Choose(index int) error {
	if err := s.checkPlayable(); err != nil {
		return err
	}
	vis := s.visibleChoices()
	if index < 0 || index >= len(vis) {
		return fmt.Errorf("%w: %d of %d", ErrChoiceOutOfRange, index, len(vis))
	}
	return s.choose(vis[index])
}

// ChooseHandle picks a visible choice by the handle it was offered with.
func (s *Session) ChooseHandle(handle string) error {
	if err := s.checkPlayable(); err != nil {
		return err
	}
	for _, c := range s.visibleChoices() {
		if c.Handle() == handle {
			return s.choose(c)
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownChoice, handle)
}

func (s *Session) choose(c *Choice) error {
	s.log.Debugf("choose %q -> %s", c.Text, c.TargetPath)
	s.st.callStack.SetCurrentThread(c.thread.Copy())
	return s.choosePath(c.TargetPath, true)
}

// choosePath jumps to an absolute path, clearing pending choices.
func (s *Session) choosePath(p inkpath.Path, incrementTurn bool) error {
	st := s.st
	ptr, ok := s.story.PointerAt(p)
	if !ok {
		return s.execError("choose", ErrDivertTargetNotFound, p.String())
	}
	st.choices = nil
	if ptr.Index == -1 {
		ptr.Index = 0
	}
	st.setCurrentPointer(ptr)
	if incrementTurn {
		st.turnIndex++
	}
	s.visitChangedContainersDueToDivert()
	return nil
}

// tryFollowDefaultChoice follows an invisible default choice when it is the
// only kind of choice on offer. It reports whether it did.
func (s *Session) tryFollowDefaultChoice() (bool, error) {
	st := s.st
	if len(st.choices) == 0 {
		return false, nil
	}
	var defaults []*Choice
	for _, c := range st.choices {
		if !c.IsInvisibleDefault {
			return false, nil
		}
		defaults = append(defaults, c)
	}
	c := defaults[0]
	st.callStack.SetCurrentThread(c.thread.Copy())
	return true, s.choosePath(c.TargetPath, false)
}
