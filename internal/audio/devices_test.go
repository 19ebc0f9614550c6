// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

func fakeDevices(t *testing.T, infos []*portaudio.DeviceInfo, def *portaudio.DeviceInfo) {
	t.Helper()
	origDevices, origDefault := paLibDevicesFunc, paLibDefaultInputDeviceFunc
	t.Cleanup(func() {
		paLibDevicesFunc = origDevices
		paLibDefaultInputDeviceFunc = origDefault
	})
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return infos, nil }
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		if def == nil {
			return nil, fmt.Errorf("no default device")
		}
		return def, nil
	}
}

func testInfos() []*portaudio.DeviceInfo {
	return []*portaudio.DeviceInfo{
		{Name: "HDMI Output", MaxOutputChannels: 8, DefaultSampleRate: 48000},
		{Name: "Built-in Microphone", MaxInputChannels: 1, DefaultSampleRate: 44100,
			DefaultLowInputLatency: 5 * time.Millisecond, DefaultHighInputLatency: 20 * time.Millisecond},
		{Name: "Monitor of Built-in Audio", MaxInputChannels: 2, DefaultSampleRate: 44100},
		{Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 44100},
		{Name: "Stereo Mix (Realtek)", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 48000},
	}
}

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Monitor of Built-in Audio Analog Stereo", true},
		{"alsa_output.pci.MONITOR", true},
		{"BlackHole Loopback 2ch", true},
		{"Stereo Mix (Realtek High Definition Audio)", true},
		{"What U Hear (Sound Blaster)", true},
		{"Built-in Microphone", false},
		{"USB Audio CODEC", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLoopback(tt.name); got != tt.want {
				t.Errorf("IsLoopback(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestInputDevicesFiltersAndClassifies(t *testing.T) {
	fakeDevices(t, testInfos(), nil)

	devices, err := InputDevices()
	if err != nil {
		t.Fatalf("InputDevices error: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("expected 3 input devices, got %d", len(devices))
	}

	want := []struct {
		name string
		kind string
	}{
		{"Built-in Microphone", "MIC"},
		{"Monitor of Built-in Audio", "SYS"},
		{"Stereo Mix (Realtek)", "SYS"},
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
		if d.Name != want[i].name || d.Kind() != want[i].kind {
			t.Errorf("device %d = %s/%s, want %s/%s", i, d.Name, d.Kind(), want[i].name, want[i].kind)
		}
	}
	if got := devices[1].String(); got != "[1] [SYS] Monitor of Built-in Audio" {
		t.Errorf("String() = %q", got)
	}
}

func TestInputDevice(t *testing.T) {
	infos := testInfos()
	fakeDevices(t, infos, infos[2])

	t.Run("Default input device", func(t *testing.T) {
		dev, err := InputDevice(-1)
		if err != nil {
			t.Fatalf("InputDevice(-1) error: %v", err)
		}
		if dev.ID != 1 || !dev.Loopback {
			t.Errorf("default resolved to %+v", dev)
		}
	})

	t.Run("Valid input device", func(t *testing.T) {
		dev, err := InputDevice(2)
		if err != nil {
			t.Fatalf("InputDevice(2) error: %v", err)
		}
		if dev.Name != "Stereo Mix (Realtek)" {
			t.Errorf("got %q", dev.Name)
		}
	})

	for _, id := range []int{-2, 3, 100} {
		t.Run(fmt.Sprintf("Invalid ID %d", id), func(t *testing.T) {
			_, err := InputDevice(id)
			if !errors.Is(err, ErrDeviceNotFound) {
				t.Errorf("InputDevice(%d) error = %v, want ErrDeviceNotFound", id, err)
			}
		})
	}
}

func TestInputDevice_paDefaultInputDeviceError(t *testing.T) {
	fakeDevices(t, testInfos(), nil)

	_, err := InputDevice(-1)
	if err == nil || !strings.Contains(err.Error(), "no default device") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputDevice_paDevicesError(t *testing.T) {
	orig := paLibDevicesFunc
	defer func() { paLibDevicesFunc = orig }()
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	_, err := InputDevice(0)
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestErrorInitialize(t *testing.T) {
	orig := paLibInitialize
	defer func() { paLibInitialize = orig }()

	paLibInitialize = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibInitialize = func() error { return fmt.Errorf("mock init error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
}

func TestErrorTerminate(t *testing.T) {
	orig := paLibTerminate
	defer func() { paLibTerminate = orig }()

	paLibTerminate = func() error { return nil }
	if err := Terminate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestNilDevices(t *testing.T) {
	fakeDevices(t, nil, nil)

	devices, err := paDevices()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil {
		t.Errorf("expected empty slice, got nil")
	}
	if len(devices) != 0 {
		t.Errorf("expected length 0, got %d", len(devices))
	}
}

func TestListDevices(t *testing.T) {
	fakeDevices(t, testInfos(), nil)

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatalf("ListDevices error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"[0] [MIC] Built-in Microphone",
		"[1] [SYS] Monitor of Built-in Audio",
		"Latency: Low=5.00ms, High=20.00ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "HDMI Output") {
		t.Error("output-only device should not be listed")
	}
}

func TestOpenStreamWithoutDeviceInfo(t *testing.T) {
	_, err := OpenStream(Device{ID: 4}, testEngine())
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}
