package audio

import (
	"context"
	"reflect"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

func lectureDevices() []Device {
	return []Device{
		{ID: "alsa_input.usb-yeti", Description: "Blue Yeti Stereo", Available: true, Default: true},
		{ID: "alsa_input.headset", Description: "Lecture Hall Headset", Available: true},
	}
}

func TestSelectDeviceFromList(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func([]Device)
		input    string
		fallback string
		wantID   string
		wantWarn string
		wantErr  string
	}{
		{name: "default input", input: "default", fallback: "default", wantID: "alsa_input.usb-yeti"},
		{name: "empty input is default", wantID: "alsa_input.usb-yeti"},
		{name: "match by description", input: "Headset", wantID: "alsa_input.headset"},
		{
			name:     "muted primary uses fallback",
			mutate:   func(d []Device) { d[0].Muted = true },
			input:    "yeti",
			fallback: "headset",
			wantID:   "alsa_input.headset",
			wantWarn: "muted",
		},
		{
			name:     "unavailable primary falls back to default",
			mutate:   func(d []Device) { d[1].Available = false },
			input:    "headset",
			wantID:   "alsa_input.usb-yeti",
			wantWarn: "unavailable",
		},
		{
			name:    "muted default with default fallback",
			mutate:  func(d []Device) { d[0].Muted = true },
			wantErr: "is muted",
		},
		{name: "unknown input", input: "missing", wantErr: "did not match"},
		{
			name:     "unknown fallback",
			mutate:   func(d []Device) { d[0].Muted = true },
			fallback: "missing",
			wantErr:  "audio.fallback",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			devices := lectureDevices()
			if tc.mutate != nil {
				tc.mutate(devices)
			}

			got, err := selectDeviceFromList(devices, tc.input, tc.fallback)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantID, got.Device.ID)
			if tc.wantWarn == "" {
				require.Empty(t, got.Warning)
				require.False(t, got.Fallback)
			} else {
				require.Contains(t, got.Warning, tc.wantWarn)
				require.True(t, got.Fallback)
			}
		})
	}
}

func TestSelectDeviceFromListEmpty(t *testing.T) {
	_, err := selectDeviceFromList(nil, "default", "default")
	require.ErrorIs(t, err, ErrNoInputDevices)
}

func TestDeviceMatchesByIDAndDescription(t *testing.T) {
	dev := Device{ID: "alsa_input.usb-blue", Description: "Blue Yeti Stereo"}
	require.True(t, deviceMatches(dev, "blue"))
	require.True(t, deviceMatches(dev, "yeti stereo"))
	require.False(t, deviceMatches(dev, "missing"))
	require.False(t, deviceMatches(dev, ""))
}

func TestDeviceString(t *testing.T) {
	require.Equal(t, "Blue Yeti (alsa_input.usb-blue)", Device{Description: "Blue Yeti", ID: "alsa_input.usb-blue"}.String())
	require.Equal(t, "Blue Yeti", Device{Description: "Blue Yeti"}.String())
	require.Equal(t, "alsa_input.usb-blue", Device{ID: " alsa_input.usb-blue "}.String())
}

func TestListDevicesFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := ListDevices(context.Background())
	require.Error(t, err)

	_, err = SelectDevice(context.Background(), "default", "default")
	require.Error(t, err)
}

func TestSourceStateString(t *testing.T) {
	require.Equal(t, "running", sourceStateString(0))
	require.Equal(t, "idle", sourceStateString(1))
	require.Equal(t, "suspended", sourceStateString(2))
	require.Equal(t, "unknown(99)", sourceStateString(99))
}

func TestSourceAvailable(t *testing.T) {
	require.False(t, sourceAvailable(nil))
	require.True(t, sourceAvailable(&pulseproto.GetSourceInfoReply{}))

	yes := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, yes, []sourcePort{{name: "mic", available: 2}})
	require.True(t, sourceAvailable(yes))

	unknown := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, unknown, []sourcePort{{name: "mic", available: portAvailableUnknown}})
	require.True(t, sourceAvailable(unknown))

	no := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, no, []sourcePort{{name: "line", available: 2}, {name: "mic", available: portAvailableNo}})
	require.False(t, sourceAvailable(no))
}

type sourcePort struct {
	name      string
	available uint32
}

// setSourcePorts fills the reply's unexported-type port slice by reflection.
func setSourcePorts(t *testing.T, reply *pulseproto.GetSourceInfoReply, ports []sourcePort) {
	t.Helper()

	slice := reflect.MakeSlice(reflect.TypeOf(reply.Ports), len(ports), len(ports))
	for i, port := range ports {
		item := slice.Index(i)
		item.FieldByName("Name").SetString(port.name)
		item.FieldByName("Available").SetUint(uint64(port.available))
	}
	reflect.ValueOf(reply).Elem().FieldByName("Ports").Set(slice)
}
