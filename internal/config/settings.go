// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// ErrConfigCorrupt is returned alongside defaults when the settings file
// exists but cannot be decoded.
var ErrConfigCorrupt = errors.New("settings file is corrupt")

// ErrInvalidSetting is returned by Save when a value cannot be coerced to
// the type of its key. Nothing is written in that case.
var ErrInvalidSetting = errors.New("invalid settings value")

// Settings are the user-facing values persisted between runs and pushed to
// the front end in the init payload.
type Settings struct {
	DeviceID          int     `mapstructure:"device_id" json:"device_id"`
	Style             string  `mapstructure:"style" json:"style"`
	Sensitivity       float64 `mapstructure:"sensitivity" json:"sensitivity"`
	MediaPosition     string  `mapstructure:"media_position" json:"media_position"`
	BassRange         int     `mapstructure:"bass_range" json:"bass_range"`
	BassOffset        int     `mapstructure:"bass_offset" json:"bass_offset"`
	BassSens          float64 `mapstructure:"bass_sens" json:"bass_sens"`
	ParticleEnabled   bool    `mapstructure:"particle_enabled" json:"particle_enabled"`
	ParticleThreshold int     `mapstructure:"particle_threshold" json:"particle_threshold"`
	ParticleIntensity int     `mapstructure:"particle_intensity" json:"particle_intensity"`
}

// InitPayload is the subset of Settings sent to the UI once the device is
// acquired. The device id stays on the engine side.
type InitPayload struct {
	Style             string  `json:"style"`
	Sensitivity       float64 `json:"sensitivity"`
	MediaPosition     string  `json:"media_position"`
	BassRange         int     `json:"bass_range"`
	BassOffset        int     `json:"bass_offset"`
	BassSens          float64 `json:"bass_sens"`
	ParticleEnabled   bool    `json:"particle_enabled"`
	ParticleThreshold int     `json:"particle_threshold"`
	ParticleIntensity int     `json:"particle_intensity"`
}

// DefaultUserSettings returns the values used when nothing has been persisted.
func DefaultUserSettings() Settings {
	return Settings{
		DeviceID:          MinDeviceID,
		Style:             "neon",
		Sensitivity:       1.0,
		MediaPosition:     "top-left",
		BassRange:         5,
		BassOffset:        0,
		BassSens:          1.2,
		ParticleEnabled:   true,
		ParticleThreshold: 50,
		ParticleIntensity: 50,
	}
}

// Init returns the init payload for these settings.
func (s Settings) Init() InitPayload {
	return InitPayload{
		Style:             s.Style,
		Sensitivity:       s.Sensitivity,
		MediaPosition:     s.MediaPosition,
		BassRange:         s.BassRange,
		BassOffset:        s.BassOffset,
		BassSens:          s.BassSens,
		ParticleEnabled:   s.ParticleEnabled,
		ParticleThreshold: s.ParticleThreshold,
		ParticleIntensity: s.ParticleIntensity,
	}
}

func (s Settings) toMap() map[string]any {
	return map[string]any{
		"device_id":          s.DeviceID,
		"style":              s.Style,
		"sensitivity":        s.Sensitivity,
		"media_position":     s.MediaPosition,
		"bass_range":         s.BassRange,
		"bass_offset":        s.BassOffset,
		"bass_sens":          s.BassSens,
		"particle_enabled":   s.ParticleEnabled,
		"particle_threshold": s.ParticleThreshold,
		"particle_intensity": s.ParticleIntensity,
	}
}

// SettingsKeys lists the keys accepted by Save, sorted.
func SettingsKeys() []string {
	m := DefaultUserSettings().toMap()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SettingsStore reads and writes the flat JSON settings file. Every call
// works on a fresh viper instance so the file on disk is the only state.
type SettingsStore struct {
	path string
	mu   sync.Mutex
}

func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path}
}

// Path returns the settings file location.
func (s *SettingsStore) Path() string {
	return s.path
}

func (s *SettingsStore) newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("json")
	return v
}

// read loads the file into v. It reports whether the file was missing.
func (s *SettingsStore) read(v *viper.Viper) (missing bool, err error) {
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, fmt.Errorf("%w: %s: %v", ErrConfigCorrupt, s.path, err)
	}
	return false, nil
}

// Load returns the persisted settings merged over the defaults. A missing
// file yields the defaults and no error; a corrupt file yields the defaults
// and an error wrapping ErrConfigCorrupt.
func (s *SettingsStore) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defaults := DefaultUserSettings()
	v := s.newViper()
	for k, val := range defaults.toMap() {
		v.SetDefault(k, val)
	}

	if _, err := s.read(v); err != nil {
		return defaults, err
	}

	out := defaults
	if err := v.Unmarshal(&out); err != nil {
		return defaults, fmt.Errorf("%w: %s: %v", ErrConfigCorrupt, s.path, err)
	}
	return out, nil
}

// Save merges partial into the persisted file. Keys not present in partial
// keep their stored values; if the file is missing or corrupt the defaults
// are used as the base. Values are coerced to the type of their key
// ("1.5" for a float, 7.0 for an int, "true" for a bool) so the file always
// decodes on the next Load.
func (s *SettingsStore) Save(partial map[string]any) error {
	known := DefaultUserSettings().toMap()
	for k := range partial {
		if _, ok := known[k]; !ok {
			return fmt.Errorf("unknown settings key %q", k)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	typed := DefaultUserSettings()
	v := s.newViper()
	missing, err := s.read(v)
	if err == nil && !missing {
		err = v.Unmarshal(&typed)
	}
	if missing || err != nil {
		typed = DefaultUserSettings()
		v = s.newViper()
		if err := v.MergeConfigMap(known); err != nil {
			return fmt.Errorf("seed settings defaults: %w", err)
		}
	}

	if err := decodeSettings(partial, &typed); err != nil {
		return err
	}
	values := typed.toMap()
	for k := range partial {
		v.Set(k, values[k])
	}

	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write settings %s: %w", s.path, err)
	}
	return nil
}

// decodeSettings overlays partial on out with weak typing.
func decodeSettings(partial map[string]any, out *Settings) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("settings decoder: %w", err)
	}
	if err := dec.Decode(partial); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSetting, err)
	}
	return nil
}

// SaveDevice persists the chosen device id.
func (s *SettingsStore) SaveDevice(id int) error {
	return s.Save(map[string]any{"device_id": id})
}
