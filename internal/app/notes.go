package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/scribe/internal/config"
	"github.com/rbright/scribe/internal/fsm"
	"github.com/rbright/scribe/internal/ipc"
)

const notesForwardMargin = 5 * time.Second

// commandNotes asks the live owner for notes, or generates them locally from
// the persisted transcript when no owner is running.
func (r Runner) commandNotes(ctx context.Context, cfg config.Config, outPath string, logger *slog.Logger) int {
	if socketPath, err := ipc.RuntimeSocketPath(); err == nil {
		timeout := time.Duration(cfg.Notes.TimeoutMS)*time.Millisecond + notesForwardMargin
		resp, handled, err := tryForward(ctx, socketPath, ipc.CommandNotes, timeout)
		if handled {
			if err != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", err)
				return 1
			}
			return r.emitNotes(resp.Notes, outPath)
		}
	}

	own, err := buildOwner(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer own.close()

	result, err := own.controller.GenerateNotes(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if result.State == fsm.NotesFailed {
		fmt.Fprintf(r.Stderr, "error: %s\n", result.Text)
		return 1
	}
	return r.emitNotes(result.Text, outPath)
}

func (r Runner) emitNotes(text string, outPath string) int {
	fmt.Fprintln(r.Stdout, text)
	if outPath == "" {
		return 0
	}
	if err := os.WriteFile(outPath, []byte(strings.TrimRight(text, "\n")+"\n"), 0o600); err != nil {
		fmt.Fprintf(r.Stderr, "error: write notes: %v\n", err)
		return 1
	}
	return 0
}

func (r Runner) commandTranscript(ctx context.Context, cfg config.Config) int {
	if socketPath, err := ipc.RuntimeSocketPath(); err == nil {
		resp, handled, err := tryForward(ctx, socketPath, ipc.CommandTranscript, forwardTimeout)
		if handled {
			if err != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", err)
				return 1
			}
			fmt.Fprintln(r.Stdout, resp.Transcript)
			return 0
		}
	}

	slot, err := openTranscript(cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	text, err := slot.Load()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, text)
	return 0
}

func (r Runner) commandReset(ctx context.Context, cfg config.Config) int {
	if socketPath, err := ipc.RuntimeSocketPath(); err == nil {
		resp, handled, err := tryForward(ctx, socketPath, ipc.CommandReset, forwardTimeout)
		if handled {
			if err != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", err)
				return 1
			}
			fmt.Fprintln(r.Stdout, resp.Message)
			return 0
		}
	}

	slot, err := openTranscript(cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if err := slot.Save(""); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, "transcript cleared")
	return 0
}
