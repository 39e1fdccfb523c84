package vm

import (
	"strings"
)

// ---------------------------------------------------------------------------
// Output stream
// ---------------------------------------------------------------------------

// The output stream holds StringValue, Glue and *Tag nodes, plus the
// CmdBeginString and CmdBeginTag markers while a capture is open. Text is
// normalised as it is pushed: glue eats trailing newlines, newlines are
// never doubled or leading, and whitespace at the edges of a function call
// is dropped.

// pushOutput appends a node, splitting off leading and trailing newlines
// of strings so that each newline is its own element.
func (st *state) pushOutput(n Node) {
	if s, ok := n.(StringValue); ok {
		if parts := splitHeadTailWhitespace(string(s)); parts != nil {
			for _, p := range parts {
				st.pushOutputIndividual(StringValue(p))
			}
			return
		}
	}
	st.pushOutputIndividual(n)
}

// splitHeadTailWhitespace breaks "  \n text \n  " into its leading run,
// a newline, the inner text, a newline and the trailing run. It returns nil
// when the string has no newline at either end.
func splitHeadTailWhitespace(s string) []string {
	headFirst, headLast := -1, -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\n' {
			if headFirst == -1 {
				headFirst = i
			}
			headLast = i
		} else if c == ' ' || c == '\t' {
			continue
		} else {
			break
		}
	}

	tailLast, tailFirst := -1, -1
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c == '\n' {
			if tailLast == -1 {
				tailLast = i
			}
			tailFirst = i
		} else if c == ' ' || c == '\t' {
			continue
		} else {
			break
		}
	}

	if headFirst == -1 && tailLast == -1 {
		return nil
	}

	var parts []string
	innerStart, innerEnd := 0, len(s)
	if headFirst != -1 {
		if headFirst > 0 {
			parts = append(parts, s[:headFirst])
		}
		parts = append(parts, "\n")
		innerStart = headLast + 1
	}
	if tailLast != -1 {
		innerEnd = tailFirst
	}
	if innerEnd > innerStart {
		parts = append(parts, s[innerStart:innerEnd])
	}
	if tailLast != -1 && tailFirst > headLast {
		parts = append(parts, "\n")
		if tailLast < len(s)-1 {
			parts = append(parts, s[tailLast+1:])
		}
	}
	return parts
}

func (st *state) pushOutputIndividual(n Node) {
	include := true

	switch v := n.(type) {
	case Glue:
		st.trimNewlinesFromOutput()

	case StringValue:
		functionTrim := -1
		cur := st.callStack.Current()
		if cur.Kind == FrameFunction {
			functionTrim = cur.FunctionStartInOutput
		}

		glueTrim := -1
		for i := len(st.output) - 1; i >= 0; i-- {
			if _, ok := st.output[i].(Glue); ok {
				glueTrim = i
				break
			}
			if cmd, ok := st.output[i].(ControlCommand); ok && cmd == CmdBeginString {
				if i >= functionTrim {
					functionTrim = -1
				}
				break
			}
		}

		trim := functionTrim
		if glueTrim != -1 && functionTrim != -1 {
			trim = min(glueTrim, functionTrim)
		} else if glueTrim != -1 {
			trim = glueTrim
		}

		if trim != -1 {
			if v.isNewline() {
				include = false
			} else if v.isNonWhitespace() {
				if glueTrim > -1 {
					st.removeExistingGlue()
				}
				if functionTrim > -1 {
					frames := st.callStack.Frames()
					for i := len(frames) - 1; i >= 0; i-- {
						if frames[i].Kind != FrameFunction {
							break
						}
						frames[i].FunctionStartInOutput = -1
					}
				}
			}
		} else if v.isNewline() {
			if st.outputEndsInNewline() || !st.outputContainsContent() {
				include = false
			}
		}
	}

	if include {
		st.output = append(st.output, n)
	}
}

// trimNewlinesFromOutput removes the trailing run of whitespace strings,
// starting from the first newline in it.
func (st *state) trimNewlinesFromOutput() {
	from := -1
	for i := len(st.output) - 1; i >= 0; i-- {
		n := st.output[i]
		if _, ok := n.(ControlCommand); ok {
			break
		}
		s, ok := n.(StringValue)
		if ok && s.isNonWhitespace() {
			break
		}
		if ok && s.isNewline() {
			from = i
		}
	}
	if from < 0 {
		return
	}
	kept := st.output[:from]
	for _, n := range st.output[from:] {
		if _, ok := n.(StringValue); !ok {
			kept = append(kept, n)
		}
	}
	st.output = kept
}

func (st *state) removeExistingGlue() {
	for i := len(st.output) - 1; i >= 0; i-- {
		switch st.output[i].(type) {
		case Glue:
			st.output = append(st.output[:i], st.output[i+1:]...)
		case ControlCommand:
			return
		}
	}
}

func (st *state) outputEndsInNewline() bool {
	for i := len(st.output) - 1; i >= 0; i-- {
		n := st.output[i]
		if _, ok := n.(ControlCommand); ok {
			return false
		}
		if s, ok := n.(StringValue); ok {
			if s.isNewline() {
				return true
			}
			if s.isNonWhitespace() {
				return false
			}
		}
	}
	return false
}

func (st *state) outputContainsContent() bool {
	for _, n := range st.output {
		if _, ok := n.(StringValue); ok {
			return true
		}
	}
	return false
}

// inStringEvaluation reports whether a string capture is open.
func (st *state) inStringEvaluation() bool {
	for i := len(st.output) - 1; i >= 0; i-- {
		if cmd, ok := st.output[i].(ControlCommand); ok && cmd == CmdBeginString {
			return true
		}
	}
	return false
}

// trimFunctionEnd drops whitespace produced at the end of the current
// function call. The caller has already checked the frame kind.
func (st *state) trimFunctionEnd() {
	start := st.callStack.Current().FunctionStartInOutput
	if start < 0 {
		start = 0
	}
	for i := len(st.output) - 1; i >= start && i < len(st.output); i-- {
		s, ok := st.output[i].(StringValue)
		if !ok {
			continue
		}
		if s.isNewline() || s.isInlineWhitespace() {
			st.output = append(st.output[:i], st.output[i+1:]...)
			continue
		}
		break
	}
}

// ---------------------------------------------------------------------------
// Fragments and lines
// ---------------------------------------------------------------------------

// OutputKind distinguishes output fragments.
type OutputKind uint8

const (
	OutputText OutputKind = iota
	OutputTag
	OutputGlue
)

func (k OutputKind) String() string {
	switch k {
	case OutputTag:
		return "tag"
	case OutputGlue:
		return "glue"
	default:
		return "text"
	}
}

// OutputFragment is one element of a turn's output.
type OutputFragment struct {
	Kind OutputKind
	Text string
}

func fragmentsOf(stream []Node) []OutputFragment {
	out := make([]OutputFragment, 0, len(stream))
	for _, n := range stream {
		switch v := n.(type) {
		case StringValue:
			out = append(out, OutputFragment{Kind: OutputText, Text: string(v)})
		case *Tag:
			out = append(out, OutputFragment{Kind: OutputTag, Text: v.Text})
		case Glue:
			out = append(out, OutputFragment{Kind: OutputGlue})
		}
	}
	return out
}

// Line is one rendered line of output with the tags attached to it.
type Line struct {
	Text string
	Tags []string
}

// RenderLines joins fragments into lines. Inline whitespace is collapsed
// and trimmed; tags belong to the line being built when they appear.
// Empty lines without tags are dropped.
func RenderLines(frags []OutputFragment) []Line {
	var lines []Line
	var buf strings.Builder
	var tags []string

	flush := func() {
		text := CleanWhitespace(buf.String())
		if text != "" || len(tags) > 0 {
			lines = append(lines, Line{Text: text, Tags: tags})
		}
		buf.Reset()
		tags = nil
	}

	for _, f := range frags {
		switch f.Kind {
		case OutputTag:
			tags = append(tags, f.Text)
		case OutputText:
			rest := f.Text
			for {
				i := strings.IndexByte(rest, '\n')
				if i < 0 {
					buf.WriteString(rest)
					break
				}
				buf.WriteString(rest[:i])
				flush()
				rest = rest[i+1:]
			}
		}
	}
	flush()
	return lines
}

// CleanWhitespace collapses runs of spaces and tabs to a single space and
// removes them entirely at the start and end of each line.
func CleanWhitespace(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	wsStart := -1
	lineStart := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		inline := c == ' ' || c == '\t'
		if inline && wsStart == -1 {
			wsStart = i
		}
		if !inline {
			if c != '\n' && wsStart > 0 && wsStart != lineStart {
				sb.WriteByte(' ')
			}
			wsStart = -1
		}
		if c == '\n' {
			lineStart = i + 1
		}
		if !inline {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
