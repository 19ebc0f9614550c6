// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"visualizer/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug logging.
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Capture and analysis settings.
	Media     MediaConfig     `yaml:"media"`     // Now-playing polling settings.
	Transport TransportConfig `yaml:"transport"` // Presentation boundary settings.
	Settings  SettingsConfig  `yaml:"settings"`  // Persisted user settings file.
}

// AudioConfig holds settings related to audio capture and spectrum analysis.
// Zero values for BlockSize, MinFreq and MaxFreq fall back to the profile.
type AudioConfig struct {
	Source        string        `yaml:"source"`         // "device" or "file".
	File          string        `yaml:"file"`           // WAV file used when source is "file".
	InputDevice   int           `yaml:"input_device"`   // Input device index (-1 uses the persisted choice or prompts).
	Profile       string        `yaml:"profile"`        // "standard" or "low-latency".
	SampleRate    float64       `yaml:"sample_rate"`    // Sample rate in Hz.
	BlockSize     int           `yaml:"block_size"`     // Frames per analyzed block.
	InputChannels int           `yaml:"input_channels"` // Channels to capture (1 or 2).
	NumBars       int           `yaml:"num_bars"`       // Bars per spectrum frame.
	MinFreq       float64       `yaml:"min_freq"`       // Lower edge of the first bar (Hz).
	MaxFreq       float64       `yaml:"max_freq"`       // Upper edge of the last bar (Hz).
	GainBoost     bool          `yaml:"gain_boost"`     // Boost microphone inputs.
	MicBoost      float64       `yaml:"mic_boost"`      // Microphone gain multiplier.
	Warmup        time.Duration `yaml:"warmup"`         // Delay before the first block, lets the UI attach.
	RetryBackoff  time.Duration `yaml:"retry_backoff"`  // Wait after a transient read failure.
}

// MediaConfig holds settings for the now-playing poller.
type MediaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval"` // 0 uses the profile interval.
	FetchTimeout time.Duration `yaml:"fetch_timeout"` // Timeout for cover art downloads.
}

// TransportConfig holds settings related to the presentation boundary and mirrors.
type TransportConfig struct {
	ListenAddr       string        `yaml:"listen_addr"`        // HTTP/WebSocket listen address.
	WebDir           string        `yaml:"web_dir"`            // Static front end directory served at "/".
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Mirror frames over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address for UDP packets (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
}

// SettingsConfig locates the persisted user settings.
type SettingsConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			Source:        DefaultSource,
			InputDevice:   MinDeviceID,
			Profile:       DefaultProfile,
			SampleRate:    DefaultSampleRate,
			InputChannels: DefaultChannels,
			NumBars:       DefaultNumBars,
			GainBoost:     true,
			MicBoost:      DefaultMicBoost,
			Warmup:        DefaultWarmup,
			RetryBackoff:  DefaultRetryBackoff,
		},
		Media: MediaConfig{
			Enabled:      true,
			FetchTimeout: DefaultFetchTimeout,
		},
		Transport: TransportConfig{
			ListenAddr:       DefaultListenAddr,
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  33 * time.Millisecond, // ~30Hz.
		},
		Settings: SettingsConfig{
			Path: DefaultSettings,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it looks for "config.yaml" in the working directory and falls back to built-in
// defaults when none exists. Environment overrides are applied after the file, then
// the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Engine resolves the profile and returns the immutable pipeline configuration.
// Sensitivity comes from the persisted user settings.
func (c *Config) Engine(sensitivity float64) (Engine, error) {
	p, ok := LookupProfile(c.Audio.Profile)
	if !ok {
		return Engine{}, fmt.Errorf("unknown profile %q", c.Audio.Profile)
	}

	e := Engine{
		Profile:           p.Name,
		SampleRate:        c.Audio.SampleRate,
		BlockSize:         p.BlockSize,
		Channels:          c.Audio.InputChannels,
		NumBars:           c.Audio.NumBars,
		MinFreq:           p.MinFreq,
		MaxFreq:           p.MaxFreq,
		GainBoost:         c.Audio.GainBoost,
		MicBoost:          c.Audio.MicBoost,
		Sensitivity:       sensitivity,
		EmitInterval:      p.EmitInterval,
		Warmup:            c.Audio.Warmup,
		RetryBackoff:      c.Audio.RetryBackoff,
		LowLatency:        p.LowLatency,
		MediaPollInterval: p.MediaPollInterval,
	}
	if c.Audio.BlockSize > 0 {
		e.BlockSize = c.Audio.BlockSize
	}
	if c.Audio.MinFreq > 0 {
		e.MinFreq = c.Audio.MinFreq
	}
	if c.Audio.MaxFreq > 0 {
		e.MaxFreq = c.Audio.MaxFreq
	}
	if c.Media.PollInterval > 0 {
		e.MediaPollInterval = c.Media.PollInterval
	}
	return e, e.Validate()
}

// Validate checks the file-level settings that do not depend on the profile.
func (c *Config) Validate() error {
	if _, ok := LookupProfile(c.Audio.Profile); !ok {
		return fmt.Errorf("audio.profile %q is not one of %q, %q", c.Audio.Profile, ProfileStandard, ProfileLowLatency)
	}
	switch c.Audio.Source {
	case SourceDevice:
	case SourceFile:
		if c.Audio.File == "" {
			return errors.New("audio.file must be set when audio.source is \"file\"")
		}
	default:
		return fmt.Errorf("audio.source %q is not one of %q, %q", c.Audio.Source, SourceDevice, SourceFile)
	}
	if c.Audio.InputDevice < MinDeviceID {
		return fmt.Errorf("audio.input_device must be >= %d, got %d", MinDeviceID, c.Audio.InputDevice)
	}
	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			return errors.New("transport.udp_target_address must be set when UDP is enabled")
		}
		if c.Transport.UDPSendInterval <= 0 {
			return errors.New("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if c.Settings.Path == "" {
		return errors.New("settings.path must not be empty")
	}
	return nil
}

// Validate checks the resolved engine limits.
func (e Engine) Validate() error {
	if e.SampleRate < MinSampleRate || e.SampleRate > MaxSampleRate {
		return fmt.Errorf("sample rate must be in [%d, %d], got %.0f", MinSampleRate, MaxSampleRate, e.SampleRate)
	}
	if !bitint.IsPowerOfTwo(e.BlockSize) {
		return fmt.Errorf("block size must be a power of 2, got %d (try %d)", e.BlockSize, bitint.NextPowerOfTwo(e.BlockSize))
	}
	if e.BlockSize < MinBufferFrames || e.BlockSize > MaxBufferFrames {
		return fmt.Errorf("block size must be in [%d, %d], got %d", MinBufferFrames, MaxBufferFrames, e.BlockSize)
	}
	if e.Channels < 1 || e.Channels > 2 {
		return fmt.Errorf("input channels must be 1 or 2, got %d", e.Channels)
	}
	if e.NumBars < 1 || e.NumBars > MaxBars {
		return fmt.Errorf("bar count must be in [1, %d], got %d", MaxBars, e.NumBars)
	}
	if e.MinFreq <= 0 || e.MinFreq >= e.MaxFreq || e.MaxFreq > e.SampleRate/2 {
		return fmt.Errorf("frequency range must satisfy 0 < min < max <= %.0f, got %.1f..%.1f", e.SampleRate/2, e.MinFreq, e.MaxFreq)
	}
	if e.MicBoost <= 0 {
		return fmt.Errorf("mic boost must be positive, got %.2f", e.MicBoost)
	}
	if e.Warmup < 0 || e.Warmup > MaxWarmup {
		return fmt.Errorf("warmup must be in [0, %s], got %s", MaxWarmup, e.Warmup)
	}
	if e.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff must not be negative, got %s", e.RetryBackoff)
	}
	return nil
}

// applyEnvOverrides applies ENV_* variables on top of the file values.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
		}
	}
	// ENV_PROFILE
	if val, ok := os.LookupEnv("ENV_PROFILE"); ok && val != "" {
		c.Audio.Profile = val
	}
	// ENV_LISTEN_ADDR
	if val, ok := os.LookupEnv("ENV_LISTEN_ADDR"); ok && val != "" {
		c.Transport.ListenAddr = val
	}

	// ENV_UDP_{...}
	// These are specific to the UDP mirror.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
		}
	}
}
