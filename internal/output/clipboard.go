// Package output copies generated notes to the clipboard.
package output

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/rbright/scribe/internal/config"
)

const clipboardTimeout = 2 * time.Second

// Copier writes ready notes through the configured clipboard command, or the
// system clipboard library when no command is configured.
type Copier struct {
	argv     []string
	enabled  bool
	logger   *slog.Logger
	writeAll func(string) error
}

// NewCopier constructs a notes copier from runtime config.
func NewCopier(cfg config.Config, logger *slog.Logger) *Copier {
	return &Copier{
		argv:     cfg.Clipboard.Argv,
		enabled:  cfg.Output.CopyNotes,
		logger:   logger,
		writeAll: clipboard.WriteAll,
	}
}

// Enabled reports whether notes are copied after generation.
func (c *Copier) Enabled() bool {
	return c != nil && c.enabled
}

// Copy writes text to the clipboard. Blank text and a disabled copier are no-ops.
func (c *Copier) Copy(ctx context.Context, text string) error {
	if !c.Enabled() || strings.TrimSpace(text) == "" {
		return nil
	}

	via := "command"
	if len(c.argv) == 0 {
		via = "library"
		if clipboard.Unsupported {
			return fmt.Errorf("set clipboard: no clipboard utility available; set clipboard_cmd")
		}
		if err := c.writeAll(text); err != nil {
			return fmt.Errorf("set clipboard: %w", err)
		}
	} else {
		clipboardCtx, cancel := context.WithTimeout(ctx, clipboardTimeout)
		defer cancel()
		if err := runCommandWithInput(clipboardCtx, c.argv, text); err != nil {
			return fmt.Errorf("set clipboard: %w", err)
		}
	}
	if c.logger != nil {
		c.logger.Debug("notes copied to clipboard", "chars", len(text), "via", via)
	}
	return nil
}

// runCommandWithInput executes argv and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}
