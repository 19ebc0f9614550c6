// SPDX-License-Identifier: MIT
package media

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	mprisPrefix   = "org.mpris.MediaPlayer2."
	mprisPath     = "/org/mpris/MediaPlayer2"
	mprisPlayer   = "org.mpris.MediaPlayer2.Player"
	propertiesGet = "org.freedesktop.DBus.Properties.Get"
	busListNames  = "org.freedesktop.DBus.ListNames"
	metaTitle     = "xesam:title"
	metaArtist    = "xesam:artist"
	metaArtURL    = "mpris:artUrl"
)

// busConn is the subset of *dbus.Conn used by MPRISSource.
type busConn interface {
	BusObject() dbus.BusObject
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	Close() error
}

// MPRISSource reads MPRIS2 players on the D-Bus session bus.
type MPRISSource struct {
	conn busConn
}

// NewMPRISSource connects to the session bus.
func NewMPRISSource() (*MPRISSource, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &MPRISSource{conn: conn}, nil
}

// Current returns the first player, in bus-name order, that reports a
// non-empty title.
func (s *MPRISSource) Current(ctx context.Context) (Info, error) {
	var names []string
	if err := s.conn.BusObject().CallWithContext(ctx, busListNames, 0).Store(&names); err != nil {
		return Info{}, fmt.Errorf("list bus names: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		var v dbus.Variant
		err := s.conn.Object(name, mprisPath).
			CallWithContext(ctx, propertiesGet, 0, mprisPlayer, "Metadata").
			Store(&v)
		if err != nil {
			continue
		}
		meta, ok := v.Value().(map[string]dbus.Variant)
		if !ok {
			continue
		}
		if info := parseMetadata(meta); info.Title != "" {
			return info, nil
		}
	}
	return Info{}, ErrNoPlayer
}

func (s *MPRISSource) Close() error {
	return s.conn.Close()
}

// parseMetadata extracts the fields we show from an MPRIS Metadata map.
// xesam:artist is a list; only the first entry is used.
func parseMetadata(meta map[string]dbus.Variant) Info {
	var info Info
	if v, ok := meta[metaTitle]; ok {
		info.Title, _ = v.Value().(string)
	}
	if v, ok := meta[metaArtist]; ok {
		switch a := v.Value().(type) {
		case []string:
			if len(a) > 0 {
				info.Artist = a[0]
			}
		case string:
			info.Artist = a
		}
	}
	if v, ok := meta[metaArtURL]; ok {
		info.ArtURL, _ = v.Value().(string)
	}
	return info
}
