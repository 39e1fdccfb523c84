package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Load errors
// ---------------------------------------------------------------------------

var (
	ErrNoElements         = errors.New("container array has no elements")
	ErrUnexpectedNull     = errors.New("null before the final container element")
	ErrUnexpectedMetadata = errors.New("metadata object before the final container element")
	ErrUnexpectedNode     = errors.New("final container element is not metadata")
	ErrMalformedNode      = errors.New("malformed node")
	ErrUnsupportedVersion = errors.New("unsupported ink version")
)

// FormatError reports a structural problem in story JSON. Path locates the
// offending array element as a dotted index trail from the root.
type FormatError struct {
	Path string
	Err  error
	Hint string
}

func (e *FormatError) Error() string {
	msg := e.Err.Error()
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	if e.Path == "" {
		return "format: " + msg
	}
	return fmt.Sprintf("format: %s at %s", msg, e.Path)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// Execution errors
// ---------------------------------------------------------------------------

var (
	ErrFrameMismatch           = errors.New("frame kind mismatch")
	ErrEvalStackUnderflow      = errors.New("evaluation stack underflow")
	ErrUnbalancedStringCapture = errors.New("string capture end without start")
	ErrUnbalancedTag           = errors.New("tag end without start")
	ErrEvalModeViolation       = errors.New("evaluation mode violation")
	ErrDivertTargetNotFound    = errors.New("divert target not found")
	ErrVariableNotFound        = errors.New("variable not found")
	ErrTypeMismatch            = errors.New("type mismatch")
	ErrDivideByZero            = errors.New("division by zero")
	ErrStepBudgetExceeded      = errors.New("step budget exceeded")
	ErrInvalidValue            = errors.New("invalid value")
	ErrRanOutOfContent         = errors.New("ran out of content")
)

// ExecError is raised while stepping a story. It carries the opcode (or
// node kind) being executed, the position of the instruction pointer and the
// kind of the innermost frame.
type ExecError struct {
	Op    string
	Path  string
	Frame FrameKind
	Err   error
	Hint  string
}

func (e *ExecError) Error() string {
	msg := e.Err.Error()
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return fmt.Sprintf("exec %s at %q (%s frame): %s", e.Op, e.Path, e.Frame, msg)
}

func (e *ExecError) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// Host errors
// ---------------------------------------------------------------------------

var (
	ErrExternalFunction = errors.New("external function failed")
	ErrExternalNotBound = errors.New("external function not bound")
	ErrArityMismatch    = errors.New("external function arity mismatch")
)

// HostError wraps a failure crossing the host boundary. Cause is the error
// returned by the host callback, if any.
type HostError struct {
	Name  string
	Err   error
	Cause error
}

func (e *HostError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("external %s: %v: %v", e.Name, e.Err, e.Cause)
	}
	return fmt.Sprintf("external %s: %v", e.Name, e.Err)
}

// Unwrap exposes both the sentinel and the host's own error.
func (e *HostError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// ---------------------------------------------------------------------------
// Session errors
// ---------------------------------------------------------------------------

var (
	ErrCannotContinue     = errors.New("story cannot continue")
	ErrStoryEnded         = errors.New("story has ended; restart to play again")
	ErrChoiceOutOfRange   = errors.New("choice index out of range")
	ErrUnknownChoice      = errors.New("unknown choice handle")
	ErrSessionFaulted     = errors.New("session faulted; restart or restore to resume")
	ErrSnapshotMismatch   = errors.New("snapshot does not match story")
	ErrVariableUndeclared = errors.New("variable not declared by story")
)
