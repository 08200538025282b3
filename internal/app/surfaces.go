package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rbright/scribe/internal/config"
	"github.com/rbright/scribe/internal/fsm"
	"github.com/rbright/scribe/internal/ipc"
	"github.com/rbright/scribe/internal/mcpserver"
	"github.com/rbright/scribe/internal/tui"
	"github.com/rbright/scribe/internal/version"
	"golang.org/x/term"
)

const mcpForwardTimeout = 5 * time.Second

var errNotTerminal = errors.New("scribe tui needs an interactive terminal")

// commandTUI owns the session like serve, with the terminal view as the
// primary surface. Other invocations can still reach it over IPC.
func (r Runner) commandTUI(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	if !isTerminal(r.Stdout) {
		fmt.Fprintf(r.Stderr, "error: %v\n", errNotTerminal)
		return 1
	}

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

	own, err := buildOwner(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer own.close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ipcDone := make(chan error, 1)
	go func() {
		ipcDone <- ipc.Serve(runCtx, listener, own.controller)
	}()

	startedAt := time.Now()
	uiErr := tui.Run(runCtx, own.controller, r.Stdin, r.Stdout)
	cancel()

	if own.session.State() == fsm.StateRecording {
		if err := own.controller.Stop(context.Background()); err != nil {
			logger.Error("stop recording failed", "error", err.Error())
		}
	}
	serveErr := <-ipcDone
	if uiErr == nil {
		uiErr = serveErr
	}
	logOwnerSummary(logger, startedAt, time.Now(), own.controller.Snapshot(), uiErr)

	if uiErr != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", uiErr)
		return 1
	}
	return 0
}

// commandMCP serves MCP tools on stdin/stdout, relaying each call to the
// running owner. Stdout carries the protocol, so nothing else is printed there.
func (r Runner) commandMCP(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	notesTimeout := time.Duration(cfg.Notes.TimeoutMS)*time.Millisecond + notesForwardMargin
	s := mcpserver.New(mcpserver.Forwarder(socketPath, mcpForwardTimeout, notesTimeout), version.Version)

	stdin := r.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	logger.Info("mcp server start", "socket", socketPath, "tools", len(mcpserver.Tools))
	if err := mcpserver.ServeStdio(ctx, s, stdin, r.Stdout, logger); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("mcp server failed", "error", err.Error())
		return 1
	}
	return 0
}

// commandSchema prints the config JSON Schema, and writes it to outPath when set.
func (r Runner) commandSchema(outPath string) int {
	raw, err := config.Schema()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, string(raw))
	if outPath == "" {
		return 0
	}
	if err := os.WriteFile(outPath, append(raw, '\n'), 0o644); err != nil {
		fmt.Fprintf(r.Stderr, "error: write schema: %v\n", err)
		return 1
	}
	return 0
}

// isTerminal reports whether w is a character device such as a TTY.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
