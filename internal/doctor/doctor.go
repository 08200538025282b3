// Package doctor runs runtime readiness diagnostics for config, tools, audio, Riva, and notes credentials.
package doctor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"
	"github.com/rbright/scribe/internal/audio"
	"github.com/rbright/scribe/internal/config"
	"github.com/rbright/scribe/internal/riva"
)

const rivaGRPCTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	nameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Styled renders the report with colored markers for a terminal.
func (r Report) Styled() string {
	lines := make([]string, 0, len(r.Checks))
	for _, check := range r.Checks {
		marker := passStyle.Render("✓")
		if !check.Pass {
			marker = failStyle.Render("✗")
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", marker, nameStyle.Render(check.Name), check.Message))
	}
	return strings.Join(lines, "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{}

	configMessage := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		configMessage = fmt.Sprintf("using defaults (%q not found)", cfg.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: configMessage})

	if cfg.Config.Output.CopyNotes {
		checks = append(checks, checkClipboard(cfg.Config.Clipboard.Argv, clipboard.Unsupported))
	}

	if cfg.Config.Indicator.Enable {
		if strings.EqualFold(strings.TrimSpace(cfg.Config.Indicator.Backend), "desktop") {
			checks = append(checks, checkBinary("busctl", "desktop notifications use busctl"))
		} else {
			checks = append(checks, checkEnv("HYPRLAND_INSTANCE_SIGNATURE", func(v string) bool {
				return strings.TrimSpace(v) != ""
			}, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty"))
			checks = append(checks, checkBinary("hyprctl", "hypr notifications use hyprctl"))
		}
	}

	checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	if dir := strings.TrimSpace(cfg.Config.Audio.ArchiveDir); dir != "" {
		checks = append(checks, checkArchiveDir(dir))
	}
	checks = append(checks, checkRivaReady(cfg.Config))
	checks = append(checks, checkRivaGRPC(ctx, cfg.Config))
	checks = append(checks, checkCredentials(cfg.Config))

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkClipboard checks the clipboard command, or the system clipboard
// library when no command is configured.
func checkClipboard(argv []string, libraryUnsupported bool) Check {
	if len(argv) > 0 {
		return checkCommand(argv, "clipboard_cmd")
	}
	if libraryUnsupported {
		return Check{Name: "clipboard", Pass: false, Message: "no clipboard utility found (wl-copy, xclip, xsel); set clipboard_cmd"}
	}
	return Check{Name: "clipboard", Pass: true, Message: "using system clipboard"}
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkArchiveDir creates dir if needed and confirms a file can be written in it.
func checkArchiveDir(dir string) Check {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Check{Name: "audio.archive_dir", Pass: false, Message: err.Error()}
	}
	probe, err := os.CreateTemp(dir, ".scribe-doctor-*")
	if err != nil {
		return Check{Name: "audio.archive_dir", Pass: false, Message: err.Error()}
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	return Check{Name: "audio.archive_dir", Pass: true, Message: fmt.Sprintf("writable %q", dir)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkRivaReady probes the configured Riva HTTP ready endpoint.
func checkRivaReady(cfg config.Config) Check {
	base := strings.TrimSpace(cfg.RivaHTTP)
	if base == "" {
		return Check{Name: "riva.ready", Pass: false, Message: "riva_http is empty"}
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	url := strings.TrimRight(base, "/") + cfg.RivaHealthPath
	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return Check{Name: "riva.ready", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Check{Name: "riva.ready", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	}

	bodyText := strings.ToLower(strings.TrimSpace(string(body)))
	if bodyText != "" && !strings.Contains(bodyText, "ready") {
		return Check{Name: "riva.ready", Pass: true, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	}

	return Check{Name: "riva.ready", Pass: true, Message: fmt.Sprintf("ready at %s", url)}
}

// checkRivaGRPC waits for the streaming endpoint to reach READY.
func checkRivaGRPC(ctx context.Context, cfg config.Config) Check {
	if err := riva.Probe(ctx, cfg.RivaGRPC, rivaGRPCTimeout); err != nil {
		return Check{Name: "riva.grpc", Pass: false, Message: err.Error()}
	}
	return Check{Name: "riva.grpc", Pass: true, Message: fmt.Sprintf("ready at %s", cfg.RivaGRPC)}
}

// checkCredentials resolves the completion API key and endpoint without printing the key.
func checkCredentials(cfg config.Config) Check {
	creds, err := config.ResolveCredentials(cfg.Notes)
	if err != nil {
		return Check{Name: "notes.credentials", Pass: false, Message: err.Error()}
	}
	msg := fmt.Sprintf("provider %s", creds.Provider)
	if keyEnv := cfg.Notes.KeyEnv(); keyEnv != "" {
		msg += fmt.Sprintf(", %s set", keyEnv)
	}
	if creds.APIURL != "" {
		msg += fmt.Sprintf(", endpoint %s", creds.APIURL)
	}
	return Check{Name: "notes.credentials", Pass: true, Message: msg}
}
