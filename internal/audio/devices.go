// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"io"
	"strings"

	"visualizer/internal/config"

	"github.com/gordonklaus/portaudio"
)

// PortAudio entry points, replaceable in tests.
var (
	paLibInitialize             = portaudio.Initialize
	paLibTerminate              = portaudio.Terminate
	paLibDevicesFunc            = portaudio.Devices
	paLibDefaultInputDeviceFunc = portaudio.DefaultInputDevice
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := paLibInitialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := paLibTerminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// Name fragments that identify system output captured as input.
var loopbackTokens = []string{"monitor", "loopback", "stereo mix", "what u hear"}

// IsLoopback reports whether a device name looks like a system loopback
// source rather than a microphone.
func IsLoopback(name string) bool {
	lower := strings.ToLower(name)
	for _, tok := range loopbackTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// Device is an input-capable audio device. ID is its position among input
// devices and is the value persisted as device_id.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	Loopback          bool

	info *portaudio.DeviceInfo
}

// Kind returns "SYS" for loopback devices and "MIC" otherwise.
func (d Device) Kind() string {
	if d.Loopback {
		return "SYS"
	}
	return "MIC"
}

func (d Device) String() string {
	return fmt.Sprintf("[%d] [%s] %s", d.ID, d.Kind(), d.Name)
}

// InputDevices returns every device with at least one input channel.
func InputDevices() ([]Device, error) {
	all, err := paDevices()
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(all))
	for _, info := range all {
		if info == nil || info.MaxInputChannels <= 0 {
			continue
		}
		devices = append(devices, Device{
			ID:                len(devices),
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			Loopback:          IsLoopback(info.Name),
			info:              info,
		})
	}
	return devices, nil
}

// InputDevice retrieves the input device for the given id.
// If id is MinDeviceID (-1), returns the system default input device.
// An id outside the input device list yields ErrDeviceNotFound.
func InputDevice(id int) (Device, error) {
	devices, err := InputDevices()
	if err != nil {
		return Device{}, err
	}

	if id == config.MinDeviceID {
		def, err := paLibDefaultInputDeviceFunc()
		if err != nil {
			return Device{}, fmt.Errorf("default input device: %w", err)
		}
		if def == nil {
			return Device{}, fmt.Errorf("no default input: %w", ErrDeviceNotFound)
		}
		for _, d := range devices {
			if d.info == def || d.Name == def.Name {
				return d, nil
			}
		}
		return Device{}, fmt.Errorf("default input %q: %w", def.Name, ErrDeviceNotFound)
	}

	if id < 0 || id >= len(devices) {
		return Device{}, fmt.Errorf("invalid device ID %d (%d inputs): %w", id, len(devices), ErrDeviceNotFound)
	}
	return devices[id], nil
}

// ListDevices writes one line per input device in the selection format.
func ListDevices(w io.Writer) error {
	devices, err := InputDevices()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Input Devices\n\n")
	if len(devices) == 0 {
		fmt.Fprintln(w, "(none)")
		return nil
	}
	for _, d := range devices {
		fmt.Fprintf(w, "%s\n", d)
		fmt.Fprintf(w, "    Input channels: %d, Default sample rate: %.0f Hz\n",
			d.MaxInputChannels, d.DefaultSampleRate)
		if d.info != nil {
			fmt.Fprintf(w, "    Latency: Low=%.2fms, High=%.2fms\n",
				d.info.DefaultLowInputLatency.Seconds()*1000,
				d.info.DefaultHighInputLatency.Seconds()*1000)
		}
	}
	fmt.Fprintln(w)
	return nil
}

// paDevices returns all available PortAudio devices, never nil.
func paDevices() ([]*portaudio.DeviceInfo, error) {
	devices, err := paLibDevicesFunc()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	if devices == nil {
		devices = []*portaudio.DeviceInfo{}
	}
	return devices, nil
}
