// Package pipeline feeds PulseAudio capture into Riva streaming recognition.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rbright/scribe/internal/archive"
	"github.com/rbright/scribe/internal/audio"
	"github.com/rbright/scribe/internal/config"
	"github.com/rbright/scribe/internal/riva"
	"github.com/rbright/scribe/internal/session"
	"github.com/rbright/scribe/internal/transcript"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	dialTimeout  = 3 * time.Second
	probeTimeout = 2 * time.Second
)

type streamClient interface {
	Responses() <-chan riva.Response
	SendAudio([]byte) error
	CloseSend() error
	Wait(context.Context) error
	Close() error
}

type captureClient interface {
	Chunks() <-chan []byte
	Stop() error
	BytesCaptured() int64
	Duration() time.Duration
}

type archiveWriter interface {
	Write([]byte) (int, error)
	Close() error
	Path() string
}

// Recognizer implements session.Recognizer over Riva and PulseAudio.
// Riva finals arrive without a separator between utterances, so each final
// segment it emits ends in one space; interim segments pass through unchanged.
type Recognizer struct {
	cfg    config.Config
	logger *slog.Logger

	probe        func(context.Context, string, time.Duration) error
	selectDevice func(context.Context, string, string) (audio.Selection, error)
	dialStream   func(context.Context, riva.StreamConfig) (streamClient, error)
	startCapture func(context.Context, audio.Device) (captureClient, error)
	openArchive  func(dir string, startedAt time.Time) (archiveWriter, error)
}

// NewRecognizer constructs a recognizer from runtime config.
func NewRecognizer(cfg config.Config, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recognizer{
		cfg:          cfg,
		logger:       logger,
		probe:        riva.Probe,
		selectDevice: audio.SelectDevice,
		dialStream: func(ctx context.Context, cfg riva.StreamConfig) (streamClient, error) {
			return riva.DialStream(ctx, cfg)
		},
		startCapture: func(ctx context.Context, device audio.Device) (captureClient, error) {
			return audio.StartCapture(ctx, device)
		},
		openArchive: func(dir string, startedAt time.Time) (archiveWriter, error) {
			return archive.Create(dir, startedAt)
		},
	}
}

// Supported reports whether Riva is reachable and an input device is usable.
func (r *Recognizer) Supported(ctx context.Context) bool {
	if err := r.probe(ctx, r.cfg.RivaGRPC, probeTimeout); err != nil {
		r.logger.Warn("riva unavailable", "endpoint", r.cfg.RivaGRPC, "error", err.Error())
		return false
	}
	if _, err := r.selectDevice(ctx, r.cfg.Audio.Input, r.cfg.Audio.Fallback); err != nil {
		r.logger.Warn("audio input unavailable", "error", err.Error())
		return false
	}
	return true
}

// Open selects the input device, dials Riva, and starts streaming capture.
func (r *Recognizer) Open(ctx context.Context, opts session.Options) (session.Stream, error) {
	selection, err := r.selectDevice(ctx, r.cfg.Audio.Input, r.cfg.Audio.Fallback)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" {
		r.logger.Warn(selection.Warning)
	}

	language := strings.TrimSpace(opts.Language)
	if language == "" {
		language = r.cfg.ASR.LanguageCode
	}

	stream, err := r.dialStream(ctx, riva.StreamConfig{
		Endpoint:             r.cfg.RivaGRPC,
		LanguageCode:         language,
		Model:                r.cfg.ASR.Model,
		AutomaticPunctuation: r.cfg.ASR.AutomaticPunctuation,
		InterimResults:       opts.InterimResults,
		DialTimeout:          dialTimeout,
	})
	if err != nil {
		return nil, err
	}

	capture, err := r.startCapture(ctx, selection.Device)
	if err != nil {
		_ = stream.Close()
		return nil, err
	}

	s := &Stream{
		logger:     r.logger,
		device:     selection.Device,
		stream:     stream,
		capture:    capture,
		archive:    r.startArchive(),
		continuous: opts.Continuous,
		events:     make(chan session.Event, 32),
		sendDone:   make(chan struct{}),
	}
	go s.sendLoop()
	go s.forward()

	r.logger.Info("recognition stream opened",
		"audio_device", selection.Device.String(),
		"language", language,
		"continuous", opts.Continuous,
	)
	return s, nil
}

// startArchive opens the FLAC archive when audio.archive_dir is set. Archive
// failures never block recognition.
func (r *Recognizer) startArchive() archiveWriter {
	dir := strings.TrimSpace(r.cfg.Audio.ArchiveDir)
	if dir == "" {
		return nil
	}
	w, err := r.openArchive(dir, time.Now())
	if err != nil {
		r.logger.Warn("audio archive disabled", "error", err.Error())
		return nil
	}
	return w
}

// Stream is one capture -> Riva -> events pipeline.
type Stream struct {
	logger     *slog.Logger
	device     audio.Device
	stream     streamClient
	capture    captureClient
	archive    archiveWriter
	continuous bool

	events   chan session.Event
	sendDone chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	stopped bool
	sendErr error
}

// Events delivers result batches and engine errors until Riva ends the stream.
func (s *Stream) Events() <-chan session.Event {
	return s.events
}

// Stop ends capture. Riva then flushes its remaining finals and closes Events.
func (s *Stream) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		err = s.capture.Stop()
	})
	if err != nil {
		return fmt.Errorf("stop audio capture: %w", err)
	}
	return nil
}

// sendLoop forwards capture chunks to Riva and half-closes once capture ends.
func (s *Stream) sendLoop() {
	defer close(s.sendDone)
	defer s.closeArchive()

	for chunk := range s.capture.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		s.writeArchive(chunk)
		if err := s.stream.SendAudio(chunk); err != nil {
			s.mu.Lock()
			s.sendErr = err
			s.mu.Unlock()
			_ = s.capture.Stop()
			_ = s.stream.Close()
			return
		}
	}

	if err := s.stream.CloseSend(); err != nil {
		s.logger.Debug("close send failed", "error", err.Error())
	}
}

func (s *Stream) writeArchive(chunk []byte) {
	if s.archive == nil {
		return
	}
	if _, err := s.archive.Write(chunk); err != nil {
		s.logger.Warn("audio archive write failed", "path", s.archive.Path(), "error", err.Error())
		_ = s.archive.Close()
		s.archive = nil
	}
}

func (s *Stream) closeArchive() {
	if s.archive == nil {
		return
	}
	if err := s.archive.Close(); err != nil {
		s.logger.Warn("audio archive close failed", "path", s.archive.Path(), "error", err.Error())
		return
	}
	s.logger.Info("audio archived", "path", s.archive.Path())
}

// forward converts Riva responses into session events until the server ends the stream.
func (s *Stream) forward() {
	defer close(s.events)

	for resp := range s.stream.Responses() {
		segments := toSegments(resp)
		if len(segments) == 0 {
			continue
		}
		s.events <- session.Event{Results: segments}

		if !s.continuous && hasFinal(segments) {
			_ = s.Stop()
		}
	}

	recvErr := s.stream.Wait(context.Background())

	s.mu.Lock()
	sendErr := s.sendErr
	stopped := s.stopped
	s.mu.Unlock()

	switch {
	case sendErr != nil:
		s.events <- session.Event{Err: fmt.Errorf("send audio stream: %w", sendErr)}
	case recvErr != nil && !(stopped && isCanceled(recvErr)):
		s.events <- session.Event{Err: recvErr}
	}

	s.logger.Debug("recognition stream ended",
		"audio_device", s.device.String(),
		"bytes_captured", s.capture.BytesCaptured(),
		"audio_ms", s.capture.Duration().Milliseconds(),
	)
}

// toSegments maps one Riva response to ordered segments. Riva finals carry no
// separator between utterances, so one space is added where missing.
func toSegments(resp riva.Response) []transcript.Segment {
	segments := make([]transcript.Segment, 0, len(resp.Results))
	for _, result := range resp.Results {
		text := result.Transcript()
		if strings.TrimSpace(text) == "" {
			continue
		}
		if result.Final && !endsWithSpace(text) {
			text += " "
		}
		segments = append(segments, transcript.Segment{Text: text, Final: result.Final})
	}
	return segments
}

func hasFinal(segments []transcript.Segment) bool {
	for _, segment := range segments {
		if segment.Final {
			return true
		}
	}
	return false
}

func endsWithSpace(text string) bool {
	if text == "" {
		return false
	}
	last := rune(text[len(text)-1])
	return unicode.IsSpace(last)
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled
}
