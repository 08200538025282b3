// Package riva streams PCM audio to an NVIDIA Riva ASR server over gRPC.
package riva

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
)

const defaultDialTimeout = 3 * time.Second

var streamingRecognizeDesc = &grpc.StreamDesc{
	StreamName:    "StreamingRecognize",
	ServerStreams: true,
	ClientStreams: true,
}

// StreamConfig controls stream initialization and recognition behavior.
type StreamConfig struct {
	Endpoint             string
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
	InterimResults       bool
	DialTimeout          time.Duration
}

// Stream wraps one active Riva StreamingRecognize RPC lifecycle.
type Stream struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream

	responses chan Response
	recvDone  chan struct{}
	quit      chan struct{}
	quitOnce  sync.Once

	mu      sync.Mutex
	recvErr error

	sendMu     sync.Mutex
	closedSend bool
}

// DialStream establishes a stream, sends config, and starts the receive loop.
// The RPC lives as long as ctx.
func DialStream(ctx context.Context, cfg StreamConfig) (*Stream, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = "en-US"
	}

	conn, err := dial(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	readyCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("wait for riva grpc readiness: %w", err)
	}

	stream, err := openWithTimeout(ctx, cfg.DialTimeout, func() (grpc.ClientStream, error) {
		return conn.NewStream(ctx, streamingRecognizeDesc, streamingRecognizeMethod, grpc.ForceCodec(rawCodec{}))
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open streaming recognizer: %w", err)
	}

	config := encodeConfigRequest(RecognitionConfig{
		LanguageCode:         cfg.LanguageCode,
		Model:                cfg.Model,
		AutomaticPunctuation: cfg.AutomaticPunctuation,
		InterimResults:       cfg.InterimResults,
	})
	if err := runWithTimeout(ctx, cfg.DialTimeout, func() error { return stream.SendMsg(config) }); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send initial streaming config: %w", err)
	}

	s := &Stream{
		conn:      conn,
		stream:    stream,
		responses: make(chan Response, 32),
		recvDone:  make(chan struct{}),
		quit:      make(chan struct{}),
	}
	go s.recvLoop()
	return s, nil
}

// Responses delivers decoded responses in arrival order. It is closed when the
// server ends the stream or receiving fails; Err then reports the failure.
func (s *Stream) Responses() <-chan Response {
	return s.responses
}

// Err returns the receive failure, if any. It is only meaningful after
// Responses is closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recvErr
}

// recvLoop continuously receives recognition responses until stream close/error.
func (s *Stream) recvLoop() {
	defer close(s.recvDone)
	defer close(s.responses)

	for {
		var payload []byte
		err := s.stream.RecvMsg(&payload)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.setRecvErr(err)
			}
			return
		}

		resp, err := decodeResponse(payload)
		if err != nil {
			s.setRecvErr(err)
			return
		}

		select {
		case s.responses <- resp:
		case <-s.quit:
			return
		}
	}
}

func (s *Stream) setRecvErr(err error) {
	s.mu.Lock()
	s.recvErr = err
	s.mu.Unlock()
}

// SendAudio sends one chunk of PCM audio over the active stream.
func (s *Stream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	if err := s.Err(); err != nil {
		return fmt.Errorf("stream receive loop failed: %w", err)
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closedSend {
		return errors.New("stream already closed for sending")
	}

	return s.stream.SendMsg(encodeAudioRequest(chunk))
}

// CloseSend half-closes the stream so the server flushes its final results.
func (s *Stream) CloseSend() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closedSend {
		return nil
	}
	s.closedSend = true
	return s.stream.CloseSend()
}

// Wait blocks until the server ends the stream or ctx expires, then releases
// the connection.
func (s *Stream) Wait(ctx context.Context) error {
	select {
	case <-s.recvDone:
	case <-ctx.Done():
		_ = s.Close()
		return ctx.Err()
	}
	_ = s.Close()
	return s.Err()
}

// Close aborts stream processing and closes the underlying grpc connection.
func (s *Stream) Close() error {
	var err error
	s.quitOnce.Do(func() {
		close(s.quit)
		err = s.conn.Close()
	})
	return err
}
