// Package session bridges a continuous speech-recognition stream into the persisted transcript.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rbright/scribe/internal/fsm"
	"github.com/rbright/scribe/internal/transcript"
)

// Update is one transcript/state snapshot pushed to subscribers.
type Update struct {
	State      fsm.State
	Transcript string
}

// Session owns the recording state and the transcript.
type Session struct {
	logger     *slog.Logger
	recognizer Recognizer
	store      Store
	indicator  Indicator
	opts       Options

	mu           sync.Mutex
	state        fsm.State
	buffer       *transcript.Buffer
	stream       Stream
	cancelStream context.CancelFunc
	drained      chan struct{}

	subMu       sync.Mutex
	subscribers map[int]chan Update
	nextSubID   int
}

// New rehydrates the transcript from store and returns an idle session.
func New(logger *slog.Logger, recognizer Recognizer, store Store, indicator Indicator, opts Options) (*Session, error) {
	if recognizer == nil {
		return nil, fmt.Errorf("session requires a recognizer")
	}
	if store == nil {
		return nil, fmt.Errorf("session requires a store")
	}
	if indicator == nil {
		indicator = noopIndicator{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	saved, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	return &Session{
		logger:      logger,
		recognizer:  recognizer,
		store:       store,
		indicator:   indicator,
		opts:        opts,
		state:       fsm.StateIdle,
		buffer:      transcript.NewBuffer(saved),
		subscribers: map[int]chan Update{},
	}, nil
}

// State returns the current recording state.
func (s *Session) State() fsm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns the current transcript snapshot.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.String()
}

// Start opens a continuous recognition stream and begins appending final results.
//
// When the recognizer reports no capability the user is notified and
// ErrCapabilityUnavailable is returned without any state change. The stream
// outlives ctx; only Stop ends it.
func (s *Session) Start(ctx context.Context) error {
	if s.State() == fsm.StateRecording {
		return ErrAlreadyRecording
	}

	if !s.recognizer.Supported(ctx) {
		s.logger.Warn("speech recognition unavailable")
		s.indicator.ShowError(ctx, "Speech recognition is not available")
		return ErrCapabilityUnavailable
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := s.recognizer.Open(streamCtx, s.opts)
	if err != nil {
		cancel()
		s.indicator.ShowError(ctx, "Unable to start recording")
		return fmt.Errorf("open recognition stream: %w", err)
	}

	s.mu.Lock()
	next, err := fsm.Transition(s.state, fsm.EventStart)
	if err != nil {
		s.mu.Unlock()
		_ = stream.Stop()
		cancel()
		if next == fsm.StateRecording {
			return ErrAlreadyRecording
		}
		return err
	}
	drained := make(chan struct{})
	s.state = next
	s.stream = stream
	s.cancelStream = cancel
	s.drained = drained
	s.mu.Unlock()

	go s.consume(stream, drained)

	s.logger.Info("recording started", "language", s.opts.Language, "interim_results", s.opts.InterimResults)
	s.indicator.ShowRecording(ctx)
	s.publish()
	return nil
}

// Stop ends the active stream. The session is idle as soon as Stop is called;
// Stop then waits, bounded by ctx, for the engine to flush its last results.
// Stop on an idle session is a no-op.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != fsm.StateRecording {
		s.mu.Unlock()
		return nil
	}
	next, err := fsm.Transition(s.state, fsm.EventStop)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	stream := s.stream
	cancel := s.cancelStream
	drained := s.drained
	s.stream = nil
	s.cancelStream = nil
	s.drained = nil
	s.mu.Unlock()

	s.indicator.ShowStopped(ctx)
	s.publish()

	stopErr := stream.Stop()

	select {
	case <-drained:
	case <-ctx.Done():
		s.logger.Warn("recognition stream did not drain before stop deadline", "error", ctx.Err().Error())
	}
	cancel()

	s.logger.Info("recording stopped", "transcript_length", len(s.Transcript()))
	if stopErr != nil {
		return fmt.Errorf("stop recognition stream: %w", stopErr)
	}
	return nil
}

// Reset clears the transcript and persists the empty value.
func (s *Session) Reset() error {
	s.mu.Lock()
	s.buffer.Reset()
	err := s.store.Save("")
	s.mu.Unlock()

	s.publish()
	if err != nil {
		return fmt.Errorf("persist transcript: %w", err)
	}
	return nil
}

// Subscribe returns a feed of transcript/state snapshots and its cancel func.
// Snapshots are dropped for subscribers that fall behind.
func (s *Session) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 16)

	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

// consume drains one stream until the engine closes it.
func (s *Session) consume(stream Stream, drained chan struct{}) {
	defer close(drained)

	for ev := range stream.Events() {
		if ev.Err != nil {
			s.reportStreamError(&StreamError{Err: ev.Err})
			continue
		}
		s.appendFinal(transcript.Finals(ev.ResumeIndex, ev.Results))
	}
	s.logger.Debug("recognition stream closed")
}

// appendFinal appends committed text and checkpoints it under the same lock so
// saves land in delivery order.
func (s *Session) appendFinal(fragment string) {
	s.mu.Lock()
	if !s.buffer.Append(fragment) {
		s.mu.Unlock()
		return
	}
	text := s.buffer.String()
	err := s.store.Save(text)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("persist transcript failed", "error", err.Error(), "transcript_length", len(text))
	}
	s.publish()
}

// reportStreamError surfaces engine errors without touching recording state.
func (s *Session) reportStreamError(err *StreamError) {
	s.logger.Error("speech recognition error", "error", err.Error())
	s.indicator.ShowError(context.Background(), "Speech recognition error")
}

func (s *Session) publish() {
	s.mu.Lock()
	update := Update{State: s.state, Transcript: s.buffer.String()}
	s.mu.Unlock()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- update:
		default:
		}
	}
}
