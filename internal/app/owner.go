package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rbright/scribe/internal/completion"
	"github.com/rbright/scribe/internal/config"
	"github.com/rbright/scribe/internal/control"
	"github.com/rbright/scribe/internal/fsm"
	"github.com/rbright/scribe/internal/indicator"
	"github.com/rbright/scribe/internal/ipc"
	"github.com/rbright/scribe/internal/notes"
	"github.com/rbright/scribe/internal/output"
	"github.com/rbright/scribe/internal/pipeline"
	"github.com/rbright/scribe/internal/server"
	"github.com/rbright/scribe/internal/session"
	"github.com/rbright/scribe/internal/store"
)

// owner is the live session graph held by the process that owns the socket.
type owner struct {
	session    *session.Session
	controller *control.Controller
}

func buildOwner(cfg config.Config, logger *slog.Logger) (*owner, error) {
	slot, err := openTranscript(cfg)
	if err != nil {
		return nil, err
	}

	notifier := indicator.New(cfg.Indicator, logger)
	sess, err := session.New(
		logger,
		pipeline.NewRecognizer(cfg, logger),
		slot,
		notifier,
		session.Options{Continuous: true, InterimResults: true, Language: cfg.ASR.LanguageCode},
	)
	if err != nil {
		return nil, err
	}

	var completer notes.Completer
	client, notesErr := newCompletionClient(context.Background(), cfg.Notes)
	if notesErr != nil {
		logger.Warn("notes generation unavailable", "error", notesErr.Error())
	} else {
		completer = client
	}

	controller := control.New(logger, sess, notes.New(logger, completer, notesParams(cfg.Notes)), control.Options{
		Notifier:  notifier,
		Clipboard: output.NewCopier(cfg, logger),
		NotesErr:  notesErr,
	})
	return &owner{session: sess, controller: controller}, nil
}

func (o *owner) close() {
	o.controller.Close()
}

func openTranscript(cfg config.Config) (store.Slot, error) {
	path := strings.TrimSpace(cfg.Store.Path)
	if path == "" {
		defaultPath, err := store.DefaultPath()
		if err != nil {
			return store.Slot{}, err
		}
		path = defaultPath
	}
	kv, err := store.OpenFile(path)
	if err != nil {
		return store.Slot{}, err
	}
	return store.Key(kv, store.TranscriptKey), nil
}

func newCompletionClient(ctx context.Context, cfg config.NotesConfig) (notes.Completer, error) {
	creds, err := config.ResolveCredentials(cfg)
	if err != nil {
		return nil, err
	}
	return completion.Open(ctx, creds, time.Duration(cfg.TimeoutMS)*time.Millisecond)
}

func notesParams(cfg config.NotesConfig) notes.Params {
	params := notes.DefaultParams()
	if model := strings.TrimSpace(cfg.Model); model != "" {
		params.Model = model
	}
	if cfg.MaxTokens > 0 {
		params.MaxTokens = cfg.MaxTokens
	}
	params.Temperature = float32(cfg.Temperature)
	return params
}

func (r Runner) commandToggle(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if code, handled := r.forwardToggle(ctx, socketPath); handled {
		return code
	}

	listener, err := ipc.Acquire(ctx, socketPath, ipc.DefaultAcquireOptions)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			if code, handled := r.forwardToggle(ctx, socketPath); handled {
				return code
			}
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer releaseSocket(listener, socketPath)

	return r.runOwner(ctx, cfg, logger, listener, true)
}

func (r Runner) forwardToggle(ctx context.Context, socketPath string) (int, bool) {
	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandToggle, forwardTimeout)
	if !handled {
		return 0, false
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1, true
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0, true
}

func (r Runner) commandServe(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, ipc.DefaultAcquireOptions)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer releaseSocket(listener, socketPath)

	return r.runOwner(ctx, cfg, logger, listener, false)
}

func releaseSocket(listener net.Listener, socketPath string) {
	_ = listener.Close()
	_ = os.Remove(socketPath)
}

// runOwner serves IPC (and HTTP when enabled) until ctx ends. In record mode it
// starts recording first and returns once recording stops.
func (r Runner) runOwner(ctx context.Context, cfg config.Config, logger *slog.Logger, listener net.Listener, record bool) int {
	own, err := buildOwner(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("owner setup failed", "error", err.Error())
		return 1
	}
	defer own.close()

	startedAt := time.Now()
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	if record {
		feed, unsubscribe := own.controller.Subscribe()
		defer unsubscribe()

		if _, err := own.controller.Toggle(ctx); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			logger.Error("start recording failed", "error", err.Error())
			return 1
		}
		go func() {
			for snap := range feed {
				if snap.State == fsm.StateIdle {
					cancelRun()
					return
				}
			}
		}()
	}

	serverErrCh := make(chan error, 2)
	servers := 1
	go func() {
		serverErrCh <- ipc.Serve(runCtx, listener, own.controller)
	}()
	if cfg.Server.Enable {
		servers++
		httpServer := server.New(own.controller, logger)
		go func() {
			serverErrCh <- httpServer.Listen(runCtx, cfg.Server.Addr)
		}()
	}

	var serveErr error
	select {
	case <-runCtx.Done():
	case serveErr = <-serverErrCh:
		servers--
	}
	cancelRun()

	if own.session.State() == fsm.StateRecording {
		if err := own.controller.Stop(context.Background()); err != nil {
			logger.Error("stop recording failed", "error", err.Error())
		}
	}

	for ; servers > 0; servers-- {
		if err := <-serverErrCh; err != nil && serveErr == nil {
			serveErr = err
		}
	}

	snap := own.controller.Snapshot()
	logOwnerSummary(logger, startedAt, time.Now(), snap, serveErr)

	if serveErr != nil {
		fmt.Fprintf(r.Stderr, "error: server failed: %v\n", serveErr)
		return 1
	}
	if record && strings.TrimSpace(snap.Transcript) != "" {
		fmt.Fprintln(r.Stdout, strings.TrimSpace(snap.Transcript))
	}
	return 0
}

func logOwnerSummary(logger *slog.Logger, startedAt time.Time, finishedAt time.Time, snap control.Snapshot, err error) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", snap.State,
		"notes_state", snap.NotesState,
		"started_at", startedAt.Format(time.RFC3339Nano),
		"finished_at", finishedAt.Format(time.RFC3339Nano),
		"duration_ms", finishedAt.Sub(startedAt).Milliseconds(),
		"transcript_length", len(snap.Transcript),
	}

	if err != nil {
		logger.Error("owner failed", append(fields, "error", err.Error())...)
		return
	}
	logger.Info("owner finished", fields...)
}
