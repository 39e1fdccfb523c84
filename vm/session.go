package vm

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/quill/pkg/inkpath"
)

// globalDeclName is the root child holding variable declarations.
const globalDeclName = "global decl"

// ExternalFunc is a host function callable from a story. It receives the
// arguments in call order and may return nil for no value.
type ExternalFunc func(args []Value) (Value, error)

type external struct {
	arity int
	fn    ExternalFunc
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

type options struct {
	seed       int
	hasSeed    bool
	stepBudget int
	fallbacks  bool
	trace      bool
	logger     commonlog.Logger
}

// Option configures a Session.
type Option func(*options)

// WithSeed fixes the random seed, making RANDOM and shuffles repeatable.
func WithSeed(seed int) Option {
	return func(o *options) {
		o.seed = seed
		o.hasSeed = true
	}
}

// WithStepBudget limits the number of steps a single Continue may take.
// Zero means unlimited.
func WithStepBudget(n int) Option {
	return func(o *options) { o.stepBudget = n }
}

// WithExternalFallbacks lets unbound external functions run the story's
// own knot of the same name.
func WithExternalFallbacks(enabled bool) Option {
	return func(o *options) { o.fallbacks = enabled }
}

// WithLogger replaces the session logger.
func WithLogger(l commonlog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTrace logs every step at debug level.
func WithTrace(enabled bool) Option {
	return func(o *options) { o.trace = enabled }
}

// ---------------------------------------------------------------------------
// Session
// ---------------------------------------------------------------------------

// Session plays one story. The story graph may be shared between sessions;
// everything mutable lives in the session. A Session is not safe for
// concurrent use.
type Session struct {
	story     *Story
	st        *state
	externals map[string]external
	opts      options
	log       commonlog.Logger

	steps      int
	totalSteps int
	fault      error
}

// NewSession starts a session at the top of story, after running its
// global declarations.
func NewSession(story *Story, opts ...Option) (*Session, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if !o.hasSeed {
		o.seed = randomSeed()
	}
	s := &Session{
		story:     story,
		externals: make(map[string]external),
		opts:      o,
		log:       o.logger,
	}
	if s.log == nil {
		s.log = log
	}
	if err := s.reset(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) reset() error {
	s.st = newState(s.story.Root, s.opts.seed)
	s.fault = nil
	s.steps = 0
	return s.runGlobalDeclarations()
}

// runGlobalDeclarations evaluates the declaration block and records the
// initial globals. It does not count as a turn.
func (s *Session) runGlobalDeclarations() error {
	st := s.st
	if decl, ok := s.story.Root.NamedContent[globalDeclName]; ok {
		if err := s.choosePath(decl.Path(), false); err != nil {
			return err
		}
		if err := s.run(); err != nil {
			s.fault = err
			return fmt.Errorf("global declarations: %w", err)
		}
		st.callStack.Reset()
		st.output = nil
		st.choices = nil
		st.evalStack = nil
		st.didSafeExit = false
		st.ended = false
		st.divertedPointer = NullPointer
	}
	for k, v := range st.globals {
		st.defaultGlobals[k] = v
	}
	s.log.Debugf("session ready: %d globals, seed %d", len(st.globals), st.seed)
	return nil
}

// run steps until the flow stops, following invisible default choices.
func (s *Session) run() error {
	for s.canStep() {
		if err := s.step(); err != nil {
			return err
		}
		if !s.canStep() {
			if _, err := s.tryFollowDefaultChoice(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) canStep() bool {
	return !s.st.currentPointer().IsNull() && !s.st.ended
}

// Story returns the story being played.
func (s *Session) Story() *Story { return s.story }

// CanContinue reports whether Continue would make progress.
func (s *Session) CanContinue() bool {
	return s.fault == nil && s.canStep()
}

// Ended reports whether the story reached END.
func (s *Session) Ended() bool { return s.st.ended }

// Fault returns the error that stopped the session, if any.
func (s *Session) Fault() error { return s.fault }

// Steps returns the number of steps taken by the last Continue.
func (s *Session) Steps() int { return s.steps }

// TotalSteps returns the number of steps taken since the session started.
func (s *Session) TotalSteps() int { return s.totalSteps }

// TurnIndex returns the number of choices made so far, minus one.
func (s *Session) TurnIndex() int { return s.st.turnIndex }

// Seed returns the current random seed.
func (s *Session) Seed() int { return s.st.seed }

// Warnings returns the warnings raised during the last Continue.
func (s *Session) Warnings() []string { return s.st.warnings }

// VisitCount returns how many times the container at path was entered.
func (s *Session) VisitCount(path string) (int, error) {
	p, err := inkpath.Parse(path)
	if err != nil {
		return 0, err
	}
	n, ok := s.story.Resolve(p)
	c, isContainer := n.(*Container)
	if !ok || !isContainer {
		return 0, fmt.Errorf("%w: %s", ErrDivertTargetNotFound, path)
	}
	return s.st.visitCount(c), nil
}

func (s *Session) checkPlayable() error {
	if s.fault != nil {
		return fmt.Errorf("%w: %w", ErrSessionFaulted, s.fault)
	}
	if s.st.ended {
		return ErrStoryEnded
	}
	return nil
}

// Turn is the result of one Continue: the output produced until the story
// stopped for a choice or ended.
type Turn struct {
	Output   []OutputFragment
	Choices  []Choice
	Warnings []string
	Steps    int
	Ended    bool
}

// Lines renders the output as lines of text with their tags.
func (t *Turn) Lines() []Line { return RenderLines(t.Output) }

// Text renders the output as newline-terminated lines.
func (t *Turn) Text() string {
	var sb strings.Builder
	for _, l := range t.Lines() {
		if l.Text == "" {
			continue
		}
		sb.WriteString(l.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Tags returns every tag in the output, in order.
func (t *Turn) Tags() []string {
	var tags []string
	for _, f := range t.Output {
		if f.Kind == OutputTag {
			tags = append(tags, f.Text)
		}
	}
	return tags
}

// Continue runs the story until it offers a choice, finishes the flow or
// ends. A failed Continue faults the session; only Restart or Restore
// clear the fault.
func (s *Session) Continue() (*Turn, error) {
	if err := s.checkPlayable(); err != nil {
		return nil, err
	}
	if !s.canStep() {
		return nil, ErrCannotContinue
	}

	st := s.st
	st.didSafeExit = false
	st.output = nil
	st.warnings = nil
	s.steps = 0

	err := s.run()
	if err == nil {
		err = s.checkOutOfContent()
	}
	if err != nil {
		s.fault = err
		s.log.Errorf("continue failed after %d steps: %s", s.steps, err.Error())
		return nil, err
	}

	for _, w := range st.warnings {
		s.log.Warning(w)
	}
	return &Turn{
		Output:   fragmentsOf(st.output),
		Choices:  s.Choices(),
		Warnings: append([]string(nil), st.warnings...),
		Steps:    s.steps,
		Ended:    st.ended,
	}, nil
}

// checkOutOfContent reports a flow that stopped without a choice, DONE
// or END.
func (s *Session) checkOutOfContent() error {
	st := s.st
	if s.canStep() {
		return nil
	}
	if st.callStack.CanPopThread() {
		st.warn("threads left open at the end of the turn")
	}
	if len(st.choices) > 0 || st.didSafeExit {
		return nil
	}
	hint := "do you need a '-> DONE' or '-> END'?"
	switch {
	case st.callStack.CanPopKind(FrameTunnel):
		hint = "unexpected end of content inside a tunnel; missing '->->'?"
	case st.callStack.CanPopKind(FrameFunction):
		hint = "unexpected end of content inside a function; missing '~ return'?"
	}
	return s.execError("continue", ErrRanOutOfContent, hint)
}

// ContinueAll runs Continue until the story stops for a choice or can go
// no further, concatenating the output.
func (s *Session) ContinueAll() (*Turn, error) {
	all := &Turn{}
	for s.CanContinue() {
		t, err := s.Continue()
		if err != nil {
			return nil, err
		}
		all.Output = append(all.Output, t.Output...)
		all.Warnings = append(all.Warnings, t.Warnings...)
		all.Steps += t.Steps
		all.Choices = t.Choices
		all.Ended = t.Ended
	}
	return all, nil
}

// Restart returns the session to the top of the story with fresh state.
// External bindings and options are kept.
func (s *Session) Restart() error {
	s.log.Info("restarting session")
	return s.reset()
}

// GoTo abandons the current flow and jumps to path, counting as a turn.
func (s *Session) GoTo(path string) error {
	if err := s.checkPlayable(); err != nil {
		return err
	}
	p, err := inkpath.Parse(path)
	if err != nil {
		return err
	}
	if p.IsRelative() {
		return fmt.Errorf("%w: %s is relative", ErrDivertTargetNotFound, path)
	}
	if _, ok := s.story.PointerAt(p); !ok {
		return fmt.Errorf("%w: %s", ErrDivertTargetNotFound, path)
	}
	s.st.callStack.Reset()
	s.st.evalStack = nil
	return s.choosePath(p, true)
}

// BindExternal registers a host function. Arity -1 accepts any number of
// arguments. Binding a name again replaces the previous function.
func (s *Session) BindExternal(name string, arity int, fn ExternalFunc) error {
	if fn == nil {
		return &HostError{Name: name, Err: ErrExternalFunction, Cause: fmt.Errorf("nil function")}
	}
	s.externals[name] = external{arity: arity, fn: fn}
	return nil
}

// UnbindExternal removes a host function.
func (s *Session) UnbindExternal(name string) {
	delete(s.externals, name)
}
