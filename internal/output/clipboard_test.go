package output

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/atotto/clipboard"
	"github.com/rbright/scribe/internal/config"
	"github.com/stretchr/testify/require"
)

func TestRunCommandWithInputWritesStdin(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	outputPath := filepath.Join(t.TempDir(), "stdin.txt")

	err := runCommandWithInput(context.Background(), []string{scriptPath, outputPath}, "hello from scribe")
	require.NoError(t, err)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	require.Equal(t, "hello from scribe", string(data))
}

func TestRunCommandWithInputRejectsEmptyArgv(t *testing.T) {
	err := runCommandWithInput(context.Background(), nil, "payload")
	require.Error(t, err)
	require.Contains(t, err.Error(), "argv cannot be empty")
}

func TestCopierCopyWritesClipboard(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	clipboardPath := filepath.Join(t.TempDir(), "clipboard.txt")

	cfg := config.Default()
	cfg.Clipboard = config.CommandConfig{Argv: []string{scriptPath, clipboardPath}}

	copier := NewCopier(cfg, nil)
	require.True(t, copier.Enabled())
	require.NoError(t, copier.Copy(context.Background(), "# Lecture\n- point"))

	data, err := os.ReadFile(clipboardPath)
	require.NoError(t, err)
	require.Equal(t, "# Lecture\n- point", string(data))
}

func TestCopierSkipsBlankNotes(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	clipboardPath := filepath.Join(t.TempDir(), "clipboard.txt")

	cfg := config.Default()
	cfg.Clipboard = config.CommandConfig{Argv: []string{scriptPath, clipboardPath}}

	require.NoError(t, NewCopier(cfg, nil).Copy(context.Background(), "  \n"))

	_, statErr := os.Stat(clipboardPath)
	require.True(t, os.IsNotExist(statErr))
}

func TestCopierDisabledSkipsCommand(t *testing.T) {
	failScript := writeFailScript(t, "should not run")

	cfg := config.Default()
	cfg.Output.CopyNotes = false
	cfg.Clipboard = config.CommandConfig{Argv: []string{failScript}}

	copier := NewCopier(cfg, nil)
	require.False(t, copier.Enabled())
	require.NoError(t, copier.Copy(context.Background(), "notes"))

	var nilCopier *Copier
	require.False(t, nilCopier.Enabled())
	require.NoError(t, nilCopier.Copy(context.Background(), "notes"))
}

func TestCopierReturnsErrorWhenClipboardCommandFails(t *testing.T) {
	failScript := writeFailScript(t, "clipboard failed")

	cfg := config.Default()
	cfg.Clipboard = config.CommandConfig{Argv: []string{failScript}}

	err := NewCopier(cfg, nil).Copy(context.Background(), "notes")
	require.Error(t, err)
	require.Contains(t, err.Error(), "set clipboard")
}

func writeStdinCaptureScript(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "capture-stdin.sh")
	script := `#!/usr/bin/env bash
set -euo pipefail
cat > "$1"
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeFailScript(t *testing.T, message string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "fail.sh")
	script := "#!/usr/bin/env bash\nset -euo pipefail\necho " + "\"" + message + "\"" + " >&2\nexit 1\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestCopierFallsBackToClipboardLibrary(t *testing.T) {
	cfg := config.Default()
	cfg.Clipboard = config.CommandConfig{}

	var got string
	copier := NewCopier(cfg, nil)
	copier.writeAll = func(text string) error {
		got = text
		return nil
	}
	require.True(t, copier.Enabled())

	err := copier.Copy(context.Background(), "# Notes")
	if clipboard.Unsupported {
		require.Error(t, err)
		require.Contains(t, err.Error(), "clipboard_cmd")
		return
	}
	require.NoError(t, err)
	require.Equal(t, "# Notes", got)
}

func TestCopierLibraryErrorIsWrapped(t *testing.T) {
	if clipboard.Unsupported {
		t.Skip("no clipboard utility on this host")
	}
	cfg := config.Default()
	cfg.Clipboard = config.CommandConfig{}

	copier := NewCopier(cfg, nil)
	copier.writeAll = func(string) error { return errors.New("display unavailable") }

	err := copier.Copy(context.Background(), "notes")
	require.Error(t, err)
	require.Contains(t, err.Error(), "set clipboard: display unavailable")
}
