// Package indicator surfaces recording and notes state as desktop notifications.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/scribe/internal/config"
	"github.com/rbright/scribe/internal/hypr"
)

const (
	colorRecording = "rgb(89b4fa)"
	colorStopped   = "rgb(a6adc8)"
	colorPending   = "rgb(cba6f7)"
	colorReady     = "rgb(a6e3a1)"
	colorError     = "rgb(f38ba8)"

	persistentTimeoutMS = 300000
	briefTimeoutMS      = 2500
)

// Notifier routes notifications via Hyprland or desktop DBus based on config backend.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	notify  func(ctx context.Context, icon int, timeoutMS int, color string, text string) error
	dismiss func(ctx context.Context) error

	mu                    sync.Mutex
	desktopNotificationID uint32
}

// New creates a notifier from config.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	n := &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Backend), "desktop") {
		n.notify = n.notifyDesktop
		n.dismiss = n.dismissDesktop
	} else {
		n.notify = hypr.Notify
		n.dismiss = hypr.DismissNotify
	}
	return n
}

// ShowRecording signals recording start.
func (n *Notifier) ShowRecording(ctx context.Context) {
	n.show(ctx, 1, persistentTimeoutMS, colorRecording, n.messages.recording)
}

// ShowStopped replaces the recording notification with a brief stopped notice.
func (n *Notifier) ShowStopped(ctx context.Context) {
	n.show(ctx, 1, briefTimeoutMS, colorStopped, n.messages.stopped)
}

// ShowError displays an error notification. Empty text uses the default message.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	if text == "" {
		text = n.messages.errorText
	}
	n.show(ctx, 3, n.errorTimeout(), colorError, text)
}

// ShowNotesPending signals an in-flight notes request.
func (n *Notifier) ShowNotesPending(ctx context.Context) {
	n.show(ctx, 1, persistentTimeoutMS, colorPending, n.messages.notesPending)
}

// ShowNotesReady signals generated notes.
func (n *Notifier) ShowNotesReady(ctx context.Context) {
	n.show(ctx, 5, briefTimeoutMS, colorReady, n.messages.notesReady)
}

// ShowNotesFailed signals a failed notes request.
func (n *Notifier) ShowNotesFailed(ctx context.Context) {
	n.show(ctx, 3, n.errorTimeout(), colorError, n.messages.notesFailed)
}

// Hide dismisses the active notification.
func (n *Notifier) Hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, n.dismiss)
}

func (n *Notifier) show(ctx context.Context, icon int, timeoutMS int, color string, text string) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, icon, timeoutMS, color, text)
	})
}

func (n *Notifier) errorTimeout() int {
	if n.cfg.ErrorTimeoutMS <= 0 {
		return 1200
	}
	return n.cfg.ErrorTimeoutMS
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (n *Notifier) notifyDesktop(ctx context.Context, icon int, timeoutMS int, _ string, text string) error {
	n.mu.Lock()
	replaceID := n.desktopNotificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "scribe"
	}

	id, err := desktopNotify(ctx, desktopNote{
		AppName:   appName,
		ReplaceID: replaceID,
		Summary:   text,
		Urgency:   urgencyForIcon(icon),
		TimeoutMS: timeoutMS,
	})
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopNotificationID = id
	n.mu.Unlock()
	return nil
}

// dismissDesktop closes the current desktop notification ID when present.
func (n *Notifier) dismissDesktop(ctx context.Context) error {
	n.mu.Lock()
	id := n.desktopNotificationID
	n.desktopNotificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes a notification with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("indicator dispatch failed", err)
	}
}

// log emits debug-only indicator failures to the runtime logger.
func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
