package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rbright/scribe/internal/control"
	"github.com/rbright/scribe/internal/fsm"
	"github.com/rbright/scribe/internal/notes"
	"github.com/stretchr/testify/require"
)

func TestSpaceTogglesRecording(t *testing.T) {
	ctrl := newFakeController()
	m := newModel(context.Background(), ctrl, ctrl.feed)

	next, cmd := m.Update(key(" "))
	require.NotNil(t, cmd)
	require.Equal(t, "toggle", next.(model).busy)

	msg := cmd()
	require.Equal(t, actionMsg{action: "toggle"}, msg)
	require.Equal(t, 1, ctrl.toggles)

	next, _ = next.Update(msg)
	got := next.(model)
	require.Empty(t, got.busy)
	require.Equal(t, fsm.StateRecording, got.snap.State)
	require.Contains(t, got.View(), "REC")
}

func TestKeysIgnoredWhileBusy(t *testing.T) {
	ctrl := newFakeController()
	m := newModel(context.Background(), ctrl, ctrl.feed)
	m.busy = "notes"

	_, cmd := m.Update(key("c"))
	require.Nil(t, cmd)
	require.Zero(t, ctrl.resets)
}

func TestNotesKeyRequiresTranscript(t *testing.T) {
	ctrl := newFakeController()
	m := newModel(context.Background(), ctrl, ctrl.feed)

	next, cmd := m.Update(key("n"))
	require.Nil(t, cmd)
	require.Contains(t, next.(model).lastErr, "transcript is empty")
	require.Zero(t, ctrl.generated)
}

func TestNotesKeyGeneratesAndRendersNotes(t *testing.T) {
	ctrl := newFakeController()
	ctrl.snap = control.Snapshot{State: fsm.StateIdle, Transcript: "Osmosis moves water.", NotesState: fsm.NotesEmpty, CanGenerate: true}
	m := newModel(context.Background(), ctrl, ctrl.feed)

	next, cmd := m.Update(key("n"))
	require.NotNil(t, cmd)
	next, _ = next.Update(cmd())

	got := next.(model)
	require.Equal(t, 1, ctrl.generated)
	view := got.View()
	require.Contains(t, view, "Osmosis moves water.")
	require.Contains(t, view, "# Osmosis")
	require.Contains(t, view, "notes: ready")
}

func TestActionErrorIsShown(t *testing.T) {
	ctrl := newFakeController()
	ctrl.resetErr = errors.New("store unavailable")
	m := newModel(context.Background(), ctrl, ctrl.feed)

	next, cmd := m.Update(key("c"))
	require.NotNil(t, cmd)
	next, _ = next.Update(cmd())
	require.Contains(t, next.(model).View(), "reset: store unavailable")
}

func TestQuitKeys(t *testing.T) {
	ctrl := newFakeController()
	m := newModel(context.Background(), ctrl, ctrl.feed)

	for _, k := range []tea.KeyMsg{key("q"), {Type: tea.KeyCtrlC}} {
		_, cmd := m.Update(k)
		require.NotNil(t, cmd)
		require.IsType(t, tea.QuitMsg{}, cmd())
	}
}

func TestSnapshotFeedUpdatesModel(t *testing.T) {
	ctrl := newFakeController()
	m := newModel(context.Background(), ctrl, ctrl.feed)

	ctrl.feed <- control.Snapshot{State: fsm.StateRecording, Transcript: "Live words"}
	msg := m.Init()()
	next, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	require.Equal(t, "Live words", next.(model).snap.Transcript)

	close(ctrl.feed)
	_, cmd = next.Update(cmd())
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestTailKeepsLastLines(t *testing.T) {
	require.Equal(t, "c\nd", tail("a\nb\nc\nd", 2))
	require.Equal(t, "a\nb", tail("a\nb", 5))
	require.Equal(t, "a\nb", tail("a\nb", 0))
}

func TestViewWrapsTranscriptToWidth(t *testing.T) {
	ctrl := newFakeController()
	ctrl.snap.Transcript = strings.TrimSpace(strings.Repeat("word ", 40))
	m := newModel(context.Background(), ctrl, ctrl.feed)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 30, Height: 40})

	wrapped := 0
	for _, line := range strings.Split(next.(model).View(), "\n") {
		if strings.Contains(line, "word") {
			wrapped++
		}
	}
	require.Greater(t, wrapped, 1)
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

type fakeController struct {
	mu        sync.Mutex
	snap      control.Snapshot
	feed      chan control.Snapshot
	toggles   int
	resets    int
	generated int
	resetErr  error
}

func newFakeController() *fakeController {
	return &fakeController{
		snap: control.Snapshot{State: fsm.StateIdle, NotesState: fsm.NotesEmpty},
		feed: make(chan control.Snapshot, 4),
	}
}

func (f *fakeController) Snapshot() control.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeController) Subscribe() (<-chan control.Snapshot, func()) {
	return f.feed, func() {}
}

func (f *fakeController) Toggle(context.Context) (fsm.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles++
	if f.snap.State == fsm.StateRecording {
		f.snap.State = fsm.StateIdle
	} else {
		f.snap.State = fsm.StateRecording
	}
	return f.snap.State, nil
}

func (f *fakeController) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	if f.resetErr != nil {
		return f.resetErr
	}
	f.snap.Transcript = ""
	return nil
}

func (f *fakeController) GenerateNotes(context.Context) (notes.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generated++
	f.snap.NotesState = fsm.NotesReady
	f.snap.Notes = "# Osmosis"
	return notes.Result{State: fsm.NotesReady, Text: f.snap.Notes}, nil
}
