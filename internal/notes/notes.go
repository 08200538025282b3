// Package notes turns a lecture transcript into formatted study notes through one chat completion.
package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/scribe/internal/fsm"
	"github.com/rbright/scribe/internal/transcript"
)

// FailurePlaceholder replaces the notes when a generation request fails.
const FailurePlaceholder = "There was an error generating the notes."

const (
	DefaultModel       = "gpt-4"
	DefaultMaxTokens   = 500
	DefaultTemperature = float32(0.7)
)

var (
	// ErrEmptyTranscript rejects generation while the transcript has no text.
	ErrEmptyTranscript = errors.New("transcript is empty")
	// ErrBusy rejects generation while another request is pending.
	ErrBusy = errors.New("notes generation already in progress")
	// ErrNoCompleter is the failure recorded when no completion client is configured.
	ErrNoCompleter = errors.New("no completion client configured")
)

type missingCompleter struct{}

func (missingCompleter) Complete(context.Context, Request) (string, error) {
	return "", ErrNoCompleter
}

// Role names a chat message author.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one chat message sent to the completion API.
type Message struct {
	Role    Role
	Content string
}

// Request is one chat completion request.
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

// Completer returns the content of the first completion choice.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Params fixes the decoding parameters for every request.
type Params struct {
	Model       string
	MaxTokens   int
	Temperature float32
}

// DefaultParams returns gpt-4 with 500 tokens at temperature 0.7.
func DefaultParams() Params {
	return Params{Model: DefaultModel, MaxTokens: DefaultMaxTokens, Temperature: DefaultTemperature}
}

// Result is the latest notes outcome.
type Result struct {
	State fsm.NotesState
	Text  string
}

// Generator issues notes requests one at a time and keeps the latest result.
type Generator struct {
	logger    *slog.Logger
	completer Completer
	params    Params

	mu       sync.Mutex
	current  Result
	onChange func(Result)
}

// New returns a Generator with an empty result. A nil completer makes every
// request settle as NotesFailed.
func New(logger *slog.Logger, completer Completer, params Params) *Generator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if completer == nil {
		completer = missingCompleter{}
	}
	defaults := DefaultParams()
	if params.Model == "" {
		params.Model = defaults.Model
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = defaults.MaxTokens
	}
	return &Generator{
		logger:    logger,
		completer: completer,
		params:    params,
		current:   Result{State: fsm.NotesEmpty},
	}
}

// OnChange registers fn to receive every result transition. fn runs outside
// the generator lock.
func (g *Generator) OnChange(fn func(Result)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = fn
}

// Current returns the latest result.
func (g *Generator) Current() Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Busy reports whether a request is pending.
func (g *Generator) Busy() bool {
	return g.Current().State == fsm.NotesPending
}

// Generate requests notes for text and blocks until the request settles.
//
// A blank transcript returns ErrEmptyTranscript and a call while another
// request is pending returns ErrBusy; neither changes the current result.
// Request failures are not returned: they settle as NotesFailed with
// FailurePlaceholder.
func (g *Generator) Generate(ctx context.Context, text string) (Result, error) {
	if transcript.IsBlank(text) {
		return g.Current(), ErrEmptyTranscript
	}

	g.mu.Lock()
	if g.current.State == fsm.NotesPending {
		current := g.current
		g.mu.Unlock()
		return current, ErrBusy
	}
	next, err := fsm.NotesTransition(g.current.State, fsm.NotesRequest)
	if err != nil {
		g.mu.Unlock()
		return g.Current(), err
	}
	g.current = Result{State: next}
	pending := g.current
	g.mu.Unlock()
	g.notify(pending)

	started := time.Now()
	content, err := g.completer.Complete(ctx, BuildRequest(g.params, text))
	latency := time.Since(started).Milliseconds()

	event := fsm.NotesSucceeded
	result := Result{Text: content}
	if err != nil {
		g.logger.Error("notes generation failed",
			"error", err.Error(),
			"latency_ms", latency,
			"transcript_length", len(text),
		)
		event = fsm.NotesErrored
		result.Text = FailurePlaceholder
	} else {
		g.logger.Info("notes generated",
			"latency_ms", latency,
			"transcript_length", len(text),
			"notes_length", len(content),
		)
	}

	g.mu.Lock()
	settled, err := fsm.NotesTransition(g.current.State, event)
	if err != nil {
		g.mu.Unlock()
		return Result{}, fmt.Errorf("settle notes: %w", err)
	}
	result.State = settled
	g.current = result
	g.mu.Unlock()
	g.notify(result)

	return result, nil
}

func (g *Generator) notify(result Result) {
	g.mu.Lock()
	fn := g.onChange
	g.mu.Unlock()
	if fn != nil {
		fn(result)
	}
}
