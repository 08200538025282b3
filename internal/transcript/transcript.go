// Package transcript models recognized speech segments and the append-only transcript.
package transcript

import "strings"

// Segment is one recognized span. Interim segments may still be revised by the
// recognizer; final segments are committed.
type Segment struct {
	Text  string
	Final bool
}

// Finals concatenates the final segments at or after resumeIndex, in order and
// without separator normalization. Interim segments are dropped.
func Finals(resumeIndex int, segments []Segment) string {
	if resumeIndex < 0 {
		resumeIndex = 0
	}
	var b strings.Builder
	for i := resumeIndex; i < len(segments); i++ {
		if segments[i].Final {
			b.WriteString(segments[i].Text)
		}
	}
	return b.String()
}

// Buffer is the running transcript. It only grows, except through Reset.
type Buffer struct {
	text strings.Builder
}

// NewBuffer seeds a buffer with previously persisted text.
func NewBuffer(initial string) *Buffer {
	b := &Buffer{}
	b.text.WriteString(initial)
	return b
}

// Append adds fragment verbatim and reports whether the transcript changed.
func (b *Buffer) Append(fragment string) bool {
	if fragment == "" {
		return false
	}
	b.text.WriteString(fragment)
	return true
}

func (b *Buffer) String() string {
	return b.text.String()
}

func (b *Buffer) Len() int {
	return b.text.Len()
}

// Empty reports whether the transcript has no usable text.
func (b *Buffer) Empty() bool {
	return IsBlank(b.text.String())
}

func (b *Buffer) Reset() {
	b.text.Reset()
}

// IsBlank reports whether text contains nothing but whitespace.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
