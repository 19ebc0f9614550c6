// SPDX-License-Identifier: MIT

// Package media reads now-playing metadata from the OS media session and
// forwards changes to the UI.
package media

import (
	"context"
	"errors"
)

var (
	// ErrNoPlayer means no media session currently reports a track.
	ErrNoPlayer = errors.New("no active media player")

	// ErrUnsupported means this platform has no media session source.
	ErrUnsupported = errors.New("media session not supported on this platform")

	// ErrFetch wraps cover art download failures.
	ErrFetch = errors.New("cover fetch failed")
)

// Info is the track currently reported by the media session.
type Info struct {
	Title  string
	Artist string
	ArtURL string
}

// Source reads the current track.
type Source interface {
	Current(ctx context.Context) (Info, error)
	Close() error
}

// Payload is the update_media event body. Cover is a data URI or "".
type Payload struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Cover  string `json:"cover"`
}
