// Package audio lists PulseAudio input sources and captures 16 kHz mono PCM from one of them.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// ErrNoInputDevices is returned when Pulse reports no capture sources.
var ErrNoInputDevices = errors.New("no audio input devices found")

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// String formats a device for logs and CLI output.
func (d Device) String() string {
	id := strings.TrimSpace(d.ID)
	description := strings.TrimSpace(d.Description)
	switch {
	case description == "":
		return id
	case id == "":
		return description
	default:
		return description + " (" + id + ")"
	}
}

// usable returns why a device cannot record, or "" when it can.
func (d Device) usable() string {
	switch {
	case d.Muted:
		return "muted"
	case !d.Available:
		return "unavailable"
	default:
		return ""
	}
}

// Selection is the resolved capture source. Warning is set when the preferred
// source was skipped.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

// ListDevices returns Pulse input sources with default and availability flags.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := connect()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	def, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var reply pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &reply); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(reply))
	for _, info := range reply {
		if info == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          info.SourceName,
			Description: info.Device,
			State:       sourceStateString(info.State),
			Available:   sourceAvailable(info),
			Muted:       info.Mute,
			Default:     info.SourceName == def.ID(),
		})
	}
	return devices, nil
}

// SelectDevice resolves the audio.input and audio.fallback preferences against live devices.
func SelectDevice(ctx context.Context, input string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, fallback)
}

// preference is a normalized audio.input or audio.fallback value. The zero
// value and "default" both mean the Pulse default source.
type preference string

func newPreference(raw string) preference {
	p := strings.ToLower(strings.TrimSpace(raw))
	if p == "default" {
		p = ""
	}
	return preference(p)
}

func (p preference) isDefault() bool { return p == "" }

// resolve finds the device the preference names.
func (p preference) resolve(devices []Device) (*Device, error) {
	if p.isDefault() {
		for i := range devices {
			if devices[i].Default {
				return &devices[i], nil
			}
		}
		return nil, errors.New("default audio source is unavailable")
	}
	for i := range devices {
		if deviceMatches(devices[i], string(p)) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("%q did not match any device", string(p))
}

func selectDeviceFromList(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, ErrNoInputDevices
	}

	primary, err := newPreference(input).resolve(devices)
	if err != nil {
		return Selection{}, fmt.Errorf("audio.input %w", err)
	}
	reason := primary.usable()
	if reason == "" {
		return Selection{Device: *primary}, nil
	}

	alt, err := newPreference(fallback).resolve(devices)
	if err != nil {
		return Selection{}, fmt.Errorf("primary input %q is %s and audio.fallback %w", primary.ID, reason, err)
	}
	if altReason := alt.usable(); altReason != "" {
		return Selection{}, fmt.Errorf("audio fallback device %q is %s", alt.ID, altReason)
	}

	return Selection{
		Device:   *alt,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, reason, alt.ID),
		Fallback: alt.ID != primary.ID,
	}, nil
}

// deviceMatches reports whether term is a substring of the device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}

func connect() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("scribe"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

var sourceStates = map[uint32]string{0: "running", 1: "idle", 2: "suspended"}

func sourceStateString(state uint32) string {
	if name, ok := sourceStates[state]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", state)
}

// Pulse port availability values.
const (
	portAvailableUnknown = 0
	portAvailableNo      = 1
)

// sourceAvailable reports whether the active port can record. Sources without
// ports are always available.
func sourceAvailable(info *pulseproto.GetSourceInfoReply) bool {
	if info == nil {
		return false
	}
	for _, port := range info.Ports {
		if port.Name == info.ActivePortName {
			return port.Available != portAvailableNo
		}
	}
	return true
}
