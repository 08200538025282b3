// Package control wires the transcription session and the note generator into
// one owner-facing surface shared by the IPC socket and the HTTP server.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/scribe/internal/fsm"
	"github.com/rbright/scribe/internal/ipc"
	"github.com/rbright/scribe/internal/notes"
	"github.com/rbright/scribe/internal/session"
	"github.com/rbright/scribe/internal/transcript"
)

// DefaultStopTimeout bounds how long Stop waits for the engine to flush.
const DefaultStopTimeout = 3 * time.Second

// Recorder is the session surface the controller drives.
type Recorder interface {
	Start(context.Context) error
	Stop(context.Context) error
	Reset() error
	State() fsm.State
	Transcript() string
	Subscribe() (<-chan session.Update, func())
}

// NoteTaker is the generator surface the controller drives.
type NoteTaker interface {
	Generate(context.Context, string) (notes.Result, error)
	Current() notes.Result
	OnChange(func(notes.Result))
}

// Notifier surfaces notes progress to the user.
type Notifier interface {
	ShowNotesPending(context.Context)
	ShowNotesReady(context.Context)
	ShowNotesFailed(context.Context)
}

// Clipboard receives ready notes.
type Clipboard interface {
	Copy(context.Context, string) error
}

// Snapshot is the combined view rendered by every surface.
type Snapshot struct {
	State       fsm.State      `json:"state"`
	Transcript  string         `json:"transcript"`
	NotesState  fsm.NotesState `json:"notes_state"`
	Notes       string         `json:"notes,omitempty"`
	CanGenerate bool           `json:"can_generate"`
}

// Controller owns the wiring between recorder, note taker, and side effects.
type Controller struct {
	logger      *slog.Logger
	recorder    Recorder
	notes       NoteTaker
	notifier    Notifier
	clipboard   Clipboard
	stopTimeout time.Duration
	notesErr    error

	unsubscribe func()
	relayDone   chan struct{}

	subMu       sync.Mutex
	subscribers map[int]chan Snapshot
	nextSubID   int
}

// Options carries optional controller collaborators.
type Options struct {
	Notifier    Notifier
	Clipboard   Clipboard
	StopTimeout time.Duration

	// NotesErr, when set, is returned by every GenerateNotes call.
	NotesErr error
}

// New constructs a controller and starts relaying recorder updates.
// Close releases the relay.
func New(logger *slog.Logger, recorder Recorder, noteTaker NoteTaker, opts Options) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}

	c := &Controller{
		logger:      logger,
		recorder:    recorder,
		notes:       noteTaker,
		notifier:    opts.Notifier,
		clipboard:   opts.Clipboard,
		stopTimeout: opts.StopTimeout,
		notesErr:    opts.NotesErr,
		relayDone:   make(chan struct{}),
		subscribers: map[int]chan Snapshot{},
	}

	updates, unsubscribe := recorder.Subscribe()
	c.unsubscribe = unsubscribe
	go c.relay(updates)

	noteTaker.OnChange(func(notes.Result) {
		c.broadcast(c.Snapshot())
	})
	return c
}

// Close stops relaying updates and closes every subscriber feed.
func (c *Controller) Close() {
	c.unsubscribe()
	<-c.relayDone

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for id, ch := range c.subscribers {
		delete(c.subscribers, id)
		close(ch)
	}
}

// Snapshot returns the current combined state.
func (c *Controller) Snapshot() Snapshot {
	return c.snapshot(c.recorder.State(), c.recorder.Transcript())
}

func (c *Controller) snapshot(state fsm.State, text string) Snapshot {
	result := c.notes.Current()
	return Snapshot{
		State:       state,
		Transcript:  text,
		NotesState:  result.State,
		Notes:       result.Text,
		CanGenerate: !transcript.IsBlank(text) && result.State != fsm.NotesPending,
	}
}

// Toggle starts recording when idle and stops it when recording.
func (c *Controller) Toggle(ctx context.Context) (fsm.State, error) {
	if c.recorder.State() == fsm.StateRecording {
		if err := c.Stop(ctx); err != nil {
			return c.recorder.State(), err
		}
		return c.recorder.State(), nil
	}
	if err := c.recorder.Start(ctx); err != nil {
		return c.recorder.State(), err
	}
	return c.recorder.State(), nil
}

// Stop ends recording, waiting up to the configured stop timeout for final results.
func (c *Controller) Stop(ctx context.Context) error {
	stopCtx, cancel := context.WithTimeout(ctx, c.stopTimeout)
	defer cancel()
	return c.recorder.Stop(stopCtx)
}

// Reset clears the transcript.
func (c *Controller) Reset() error {
	return c.recorder.Reset()
}

// GenerateNotes requests notes for the current transcript and applies the
// clipboard and notification side effects of the settled result.
func (c *Controller) GenerateNotes(ctx context.Context) (notes.Result, error) {
	if c.notesErr != nil {
		return c.notes.Current(), c.notesErr
	}
	text := c.recorder.Transcript()
	if transcript.IsBlank(text) {
		return c.notes.Current(), notes.ErrEmptyTranscript
	}
	if current := c.notes.Current(); current.State == fsm.NotesPending {
		return current, notes.ErrBusy
	}

	if c.notifier != nil {
		c.notifier.ShowNotesPending(ctx)
	}
	result, err := c.notes.Generate(ctx, text)
	if err != nil {
		return result, err
	}

	switch result.State {
	case fsm.NotesReady:
		if c.clipboard != nil {
			if copyErr := c.clipboard.Copy(ctx, result.Text); copyErr != nil {
				c.logger.Error("copy notes failed", "error", copyErr.Error())
			}
		}
		if c.notifier != nil {
			c.notifier.ShowNotesReady(ctx)
		}
	case fsm.NotesFailed:
		if c.notifier != nil {
			c.notifier.ShowNotesFailed(ctx)
		}
	}
	return result, nil
}

// Subscribe returns a feed of snapshots and its cancel func. Snapshots are
// dropped for subscribers that fall behind.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 16)

	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			if _, ok := c.subscribers[id]; !ok {
				return
			}
			delete(c.subscribers, id)
			close(ch)
		})
	}
}

// Handle implements ipc.Handler.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandToggle:
		state, err := c.Toggle(ctx)
		if err != nil {
			return failure(state, err)
		}
		return ipc.Response{OK: true, State: string(state), Message: toggleMessage(state)}
	case ipc.CommandStop:
		if err := c.Stop(ctx); err != nil {
			return failure(c.recorder.State(), err)
		}
		return ipc.Response{OK: true, State: string(c.recorder.State()), Message: "recording stopped"}
	case ipc.CommandStatus:
		return c.snapshotResponse(string(c.recorder.State()))
	case ipc.CommandTranscript:
		return c.snapshotResponse("")
	case ipc.CommandNotes:
		result, err := c.GenerateNotes(ctx)
		if err != nil {
			resp := failure(c.recorder.State(), err)
			resp.NotesState = string(result.State)
			return resp
		}
		resp := c.snapshotResponse("")
		resp.NotesState = string(result.State)
		resp.Notes = result.Text
		if result.State == fsm.NotesFailed {
			resp.OK = false
			resp.Error = result.Text
		}
		return resp
	case ipc.CommandReset:
		if err := c.Reset(); err != nil {
			return failure(c.recorder.State(), err)
		}
		return ipc.Response{OK: true, State: string(c.recorder.State()), Message: "transcript cleared"}
	default:
		return ipc.Response{OK: false, State: string(c.recorder.State()), Error: fmt.Sprintf("unknown command %q", req.Command)}
	}
}

func (c *Controller) snapshotResponse(message string) ipc.Response {
	snap := c.Snapshot()
	return ipc.Response{
		OK:         true,
		State:      string(snap.State),
		Message:    message,
		Transcript: snap.Transcript,
		NotesState: string(snap.NotesState),
		Notes:      snap.Notes,
	}
}

// relay converts recorder updates into snapshots until the recorder feed closes.
func (c *Controller) relay(updates <-chan session.Update) {
	defer close(c.relayDone)
	for update := range updates {
		c.broadcast(c.snapshot(update.State, update.Transcript))
	}
}

func (c *Controller) broadcast(snap Snapshot) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}

func failure(state fsm.State, err error) ipc.Response {
	return ipc.Response{OK: false, State: string(state), Error: err.Error()}
}

func toggleMessage(state fsm.State) string {
	if state == fsm.StateRecording {
		return "recording started"
	}
	return "recording stopped"
}

// IsUsageError reports caller-contract errors that leave all state unchanged.
func IsUsageError(err error) bool {
	return errors.Is(err, notes.ErrEmptyTranscript) ||
		errors.Is(err, notes.ErrBusy) ||
		errors.Is(err, session.ErrAlreadyRecording)
}
