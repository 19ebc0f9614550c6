// SPDX-License-Identifier: MIT
//
// Package build exposes the name, version, commit and build time stamped
// into the binary with -ldflags, for example:
//
//	go build -ldflags "-X visualizer/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds fall back to the module's embedded VCS information.
package build

import (
	"errors"
	"runtime/debug"
)

// DefaultName is used when no name was stamped.
const DefaultName = "visualizer"

// ErrUnstamped is returned by Initialize when one or more ldflags are
// missing. The fallback values are still applied.
var ErrUnstamped = errors.New("build information not stamped")

// Info is the resolved build information.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

var (
	readBuildInfo = debug.ReadBuildInfo
	info          = Info{
		Name:        DefaultName,
		Description: "Real-time audio spectrum visualizer",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize resolves build information. It must be called once at
// startup before GetBuildFlags.
func Initialize() error {
	stamped := buildName != "" && buildTime != "" && buildCommit != "" && buildVersion != ""

	if bi, ok := readBuildInfo(); ok {
		if v := bi.Main.Version; v != "" && v != "(devel)" {
			info.Version = v
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				info.Commit = s.Value
			case "vcs.time":
				info.Time = s.Value
			}
		}
	}

	if buildName != "" {
		info.Name = buildName
	}
	if buildTime != "" {
		info.Time = buildTime
	}
	if buildCommit != "" {
		info.Commit = buildCommit
	}
	if buildVersion != "" {
		info.Version = buildVersion
	}

	if !stamped {
		return ErrUnstamped
	}
	return nil
}

// GetBuildFlags returns the resolved build information.
func GetBuildFlags() Info {
	return info
}
