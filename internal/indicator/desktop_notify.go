package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	notifyDest  = "org.freedesktop.Notifications"
	notifyPath  = "/org/freedesktop/Notifications"
	notifyIface = "org.freedesktop.Notifications"
)

// Freedesktop urgency levels carried in the "urgency" hint.
const (
	urgencyLow      byte = 0
	urgencyNormal   byte = 1
	urgencyCritical byte = 2
)

type desktopNote struct {
	AppName   string
	ReplaceID uint32
	Summary   string
	Body      string
	Urgency   byte
	TimeoutMS int
}

// busctlOutput runs busctl against the user bus and returns its stdout.
var busctlOutput = func(ctx context.Context, args ...string) ([]byte, error) {
	full := append([]string{"--user", "call", notifyDest, notifyPath, notifyIface}, args...)
	out, err := exec.CommandContext(ctx, "busctl", full...).CombinedOutput()
	if err != nil {
		if detail := strings.TrimSpace(string(out)); detail != "" {
			return nil, fmt.Errorf("busctl %s: %w (%s)", args[0], err, detail)
		}
		return nil, fmt.Errorf("busctl %s: %w", args[0], err)
	}
	return out, nil
}

// notifyArgs encodes a Notify call: app, replace id, icon, summary, body,
// empty actions, one urgency hint, timeout.
func notifyArgs(note desktopNote) []string {
	return []string{
		"Notify",
		"susssasa{sv}i",
		note.AppName,
		strconv.FormatUint(uint64(note.ReplaceID), 10),
		"",
		note.Summary,
		note.Body,
		"0",
		"1", "urgency", "y", strconv.Itoa(int(note.Urgency)),
		strconv.Itoa(note.TimeoutMS),
	}
}

// desktopNotify posts or replaces a notification and returns the server-assigned ID.
func desktopNotify(ctx context.Context, note desktopNote) (uint32, error) {
	out, err := busctlOutput(ctx, notifyArgs(note)...)
	if err != nil {
		return 0, err
	}
	return parseNotifyReply(string(out))
}

// parseNotifyReply reads busctl's "u <id>" reply.
func parseNotifyReply(raw string) (uint32, error) {
	kind, value, ok := strings.Cut(strings.TrimSpace(raw), " ")
	if !ok || kind != "u" {
		return 0, fmt.Errorf("unexpected Notify reply %q", strings.TrimSpace(raw))
	}
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse notification id %q: %w", value, err)
	}
	return uint32(id), nil
}

func desktopDismiss(ctx context.Context, id uint32) error {
	_, err := busctlOutput(ctx, "CloseNotification", "u", strconv.FormatUint(uint64(id), 10))
	return err
}

// urgencyForIcon maps Hyprland icon codes onto freedesktop urgency.
func urgencyForIcon(icon int) byte {
	switch icon {
	case 3:
		return urgencyCritical
	case 5:
		return urgencyLow
	default:
		return urgencyNormal
	}
}
