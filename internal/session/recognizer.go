package session

import (
	"context"
	"errors"

	"github.com/rbright/scribe/internal/transcript"
)

var (
	// ErrCapabilityUnavailable indicates the host cannot provide continuous speech recognition.
	ErrCapabilityUnavailable = errors.New("continuous speech recognition is not available")
	// ErrAlreadyRecording indicates Start was called while a stream is active.
	ErrAlreadyRecording = errors.New("already recording")
)

// Options configures one recognition stream.
type Options struct {
	Continuous     bool
	InterimResults bool
	Language       string
}

// Event is one delivery from a recognition stream: either a batch of results,
// of which only those at or after ResumeIndex are new, or an engine error.
type Event struct {
	ResumeIndex int
	Results     []transcript.Segment
	Err         error
}

// Stream is an open recognition stream. Events is closed once the engine has
// delivered everything it will deliver. Stop is safe to call more than once.
type Stream interface {
	Events() <-chan Event
	Stop() error
}

// Capability reports whether continuous recognition can be started right now.
type Capability interface {
	Supported(context.Context) bool
}

// Recognizer opens recognition streams.
type Recognizer interface {
	Capability
	Open(context.Context, Options) (Stream, error)
}

// Store checkpoints the transcript. Load is called once at construction,
// Save after every change.
type Store interface {
	Load() (string, error)
	Save(string) error
}

// Indicator is the session-facing subset of user notifications.
type Indicator interface {
	ShowRecording(context.Context)
	ShowStopped(context.Context)
	ShowError(context.Context, string)
}

type noopIndicator struct{}

func (noopIndicator) ShowRecording(context.Context)     {}
func (noopIndicator) ShowStopped(context.Context)       {}
func (noopIndicator) ShowError(context.Context, string) {}

// StreamError wraps a non-fatal error reported by the recognition engine.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return "recognition stream error: " + e.Err.Error()
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
