// SPDX-License-Identifier: MIT

// Package transport carries engine events to the presentation layer and
// user actions back from it.
package transport

import (
	"encoding/json"
	"errors"
)

// ErrUnavailable is returned by Send once the transport has been closed.
var ErrUnavailable = errors.New("presentation unavailable")

// Outbound events.
const (
	EventUpdateData  = "update_data"  // analysis.Frame
	EventUpdateMedia = "update_media" // media payload
	EventApplyConfig = "apply_config" // init payload
	EventAddLog      = "add_log"      // LogPayload
	EventSetStatus   = "set_status"   // string
)

// Inbound events.
const (
	EventSaveSettings = "save_settings"
)

// Message is the envelope written to the presentation layer. Sticky
// messages are remembered per event and replayed to clients that attach
// later.
type Message struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
	Sticky  bool   `json:"-"`
}

// LogPayload is the add_log payload.
type LogPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Inbound is an event received from the presentation layer.
type Inbound struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Handler processes the payload of one inbound event.
type Handler func(payload json.RawMessage) error

// Transport defines the presentation boundary. Implementations must be safe
// for use from any goroutine and must not block the caller.
type Transport interface {
	Send(msg Message) error
	Available() bool
	Close() error
}
