// Package tui renders a live lecture session in the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rbright/scribe/internal/control"
	"github.com/rbright/scribe/internal/fsm"
	"github.com/rbright/scribe/internal/notes"
)

// Controller is the owner surface the terminal UI drives.
type Controller interface {
	Snapshot() control.Snapshot
	Subscribe() (<-chan control.Snapshot, func())
	Toggle(context.Context) (fsm.State, error)
	Reset() error
	GenerateNotes(context.Context) (notes.Result, error)
}

type snapshotMsg control.Snapshot

type feedClosedMsg struct{}

type actionMsg struct {
	action string
	err    error
}

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	standbyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
)

type model struct {
	ctx  context.Context
	ctrl Controller
	feed <-chan control.Snapshot

	snap    control.Snapshot
	width   int
	height  int
	busy    string
	lastErr string
}

func newModel(ctx context.Context, ctrl Controller, feed <-chan control.Snapshot) model {
	return model{ctx: ctx, ctrl: ctrl, feed: feed, snap: ctrl.Snapshot()}
}

func (m model) Init() tea.Cmd {
	return waitForSnapshot(m.feed)
}

func waitForSnapshot(feed <-chan control.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-feed
		if !ok {
			return feedClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case snapshotMsg:
		m.snap = control.Snapshot(msg)
		return m, waitForSnapshot(m.feed)

	case feedClosedMsg:
		return m, tea.Quit

	case actionMsg:
		m.busy = ""
		m.lastErr = ""
		if msg.err != nil {
			m.lastErr = fmt.Sprintf("%s: %v", msg.action, msg.err)
		}
		m.snap = m.ctrl.Snapshot()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	}
	if m.busy != "" {
		return m, nil
	}

	switch msg.String() {
	case " ":
		m.busy = "toggle"
		return m, m.run("toggle", func(ctx context.Context) error {
			_, err := m.ctrl.Toggle(ctx)
			return err
		})
	case "n":
		if !m.snap.CanGenerate {
			m.lastErr = "notes: " + notes.ErrEmptyTranscript.Error()
			if m.snap.NotesState == fsm.NotesPending {
				m.lastErr = "notes: " + notes.ErrBusy.Error()
			}
			return m, nil
		}
		m.busy = "notes"
		return m, m.run("notes", func(ctx context.Context) error {
			_, err := m.ctrl.GenerateNotes(ctx)
			return err
		})
	case "c":
		m.busy = "reset"
		return m, m.run("reset", func(context.Context) error {
			return m.ctrl.Reset()
		})
	}
	return m, nil
}

func (m model) run(action string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionMsg{action: action, err: fn(ctx)}
	}
}

func (m model) View() string {
	var b strings.Builder

	if m.snap.State == fsm.StateRecording {
		b.WriteString(recStyle.Render("● REC"))
	} else {
		b.WriteString(standbyStyle.Render("○ STANDBY"))
	}
	b.WriteString(standbyStyle.Render("  notes: " + notesLabel(m.snap.NotesState)))
	if m.busy != "" {
		b.WriteString(standbyStyle.Render("  (" + m.busy + "…)"))
	}
	b.WriteString("\n\n")

	width := m.width
	if width <= 0 {
		width = 80
	}
	body := lipgloss.NewStyle().Width(width)

	b.WriteString(labelStyle.Render("Transcript"))
	b.WriteString("\n")
	text := strings.TrimSpace(m.snap.Transcript)
	if text == "" {
		text = standbyStyle.Render("Press space to start recording.")
	}
	b.WriteString(tail(body.Render(text), m.transcriptLines()))
	b.WriteString("\n")

	if strings.TrimSpace(m.snap.Notes) != "" {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("Notes"))
		b.WriteString("\n")
		b.WriteString(body.Render(strings.TrimSpace(m.snap.Notes)))
		b.WriteString("\n")
	}

	if m.lastErr != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.lastErr))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(keyStyle.Render("space") + helpStyle.Render(" record  "))
	b.WriteString(keyStyle.Render("n") + helpStyle.Render(" notes  "))
	b.WriteString(keyStyle.Render("c") + helpStyle.Render(" clear  "))
	b.WriteString(keyStyle.Render("q") + helpStyle.Render(" quit"))
	return b.String()
}

// transcriptLines is how many transcript lines fit above the notes and help.
func (m model) transcriptLines() int {
	if m.height <= 0 {
		return 0
	}
	return max(m.height/2, 3)
}

// tail keeps the last n lines of s; n <= 0 keeps everything.
func tail(s string, n int) string {
	if n <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

func notesLabel(state fsm.NotesState) string {
	if state == "" {
		return string(fsm.NotesEmpty)
	}
	return string(state)
}

// Run shows the UI on in/out until the user quits, ctx ends, or the
// controller closes. Nil streams mean the process stdin/stdout.
func Run(ctx context.Context, ctrl Controller, in io.Reader, out io.Writer) error {
	feed, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}
	_, err := tea.NewProgram(newModel(ctx, ctrl, feed), opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
