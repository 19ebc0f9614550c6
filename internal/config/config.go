// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the spectrum engine.
const (
	DefaultSampleRate = 44100 // CD-quality audio
	DefaultChannels   = 2     // Stereo, reduced to mono for the FFT
	DefaultNumBars    = 64    // Bars pushed to the front end per frame
	DefaultMicBoost   = 3.0   // Gain applied to microphone inputs
	DefaultProfile    = ProfileStandard
	DefaultSource     = SourceDevice
	DefaultListenAddr = ":8080"
	DefaultSettings   = "config.json"

	DefaultWarmup       = 1 * time.Second
	DefaultRetryBackoff = 10 * time.Millisecond
	DefaultFetchTimeout = 1 * time.Second

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 means "not chosen yet"
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MinBufferFrames = 256    // Minimum frames per block
	MaxBufferFrames = 8192   // Maximum frames per block (power of 2)
	MaxBars         = 512
	MaxWarmup       = 5 * time.Second
)

// Capture sources.
const (
	SourceDevice = "device"
	SourceFile   = "file"
)

// Latency profile names.
const (
	ProfileStandard   = "standard"
	ProfileLowLatency = "low-latency"
)

// Profile bundles the settings that differ between latency profiles.
type Profile struct {
	Name              string
	BlockSize         int
	MinFreq           float64
	MaxFreq           float64
	EmitInterval      time.Duration // Sleep after each emitted frame, 0 disables
	MediaPollInterval time.Duration
	LowLatency        bool // Request the device's low input latency
}

var profiles = map[string]Profile{
	ProfileStandard: {
		Name:              ProfileStandard,
		BlockSize:         2048,
		MinFreq:           30,
		MaxFreq:           15000,
		EmitInterval:      10 * time.Millisecond,
		MediaPollInterval: 2 * time.Second,
	},
	ProfileLowLatency: {
		Name:              ProfileLowLatency,
		BlockSize:         1024,
		MinFreq:           20,
		MaxFreq:           16000,
		EmitInterval:      0,
		MediaPollInterval: 500 * time.Millisecond,
		LowLatency:        true,
	},
}

// LookupProfile returns the named profile.
func LookupProfile(name string) (Profile, bool) {
	p, ok := profiles[name]
	return p, ok
}

// Engine is the resolved, immutable configuration for one run of the
// spectrum pipeline. Build it with Config.Engine.
type Engine struct {
	Profile           string
	SampleRate        float64
	BlockSize         int
	Channels          int
	NumBars           int
	MinFreq           float64
	MaxFreq           float64
	GainBoost         bool    // Apply MicBoost to non-loopback inputs
	MicBoost          float64 // Multiplier for microphone inputs
	Sensitivity       float64 // Persisted user setting, forwarded to the UI only
	EmitInterval      time.Duration
	Warmup            time.Duration
	RetryBackoff      time.Duration
	LowLatency        bool
	MediaPollInterval time.Duration
}

// BoostFor returns the gain multiplier for a device of the given class.
func (e Engine) BoostFor(loopback bool) float64 {
	if !e.GainBoost || loopback {
		return 1.0
	}
	return e.MicBoost
}
