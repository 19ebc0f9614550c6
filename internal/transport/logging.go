// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"sync/atomic"

	"visualizer/internal/log"
)

// LoggingTransport implements Transport by logging envelopes at Debug level.
// It backs headless runs where no UI is attached.
type LoggingTransport struct {
	closed atomic.Bool
	sent   atomic.Uint64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	log.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs msg. Log entries themselves are not echoed to avoid feeding the
// UI log sink back into itself.
func (lt *LoggingTransport) Send(msg Message) error {
	if lt.closed.Load() {
		return ErrUnavailable
	}
	lt.sent.Add(1)
	if msg.Event == EventAddLog {
		return nil
	}
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		log.Debugf("LOG_TRANSPORT: %s (%T): %+v (JSON marshal error: %v)", msg.Event, msg.Payload, msg.Payload, err)
		return nil
	}
	log.Debugf("LOG_TRANSPORT: %s %s", msg.Event, data)
	return nil
}

// Sent returns how many messages were accepted.
func (lt *LoggingTransport) Sent() uint64 {
	return lt.sent.Load()
}

func (lt *LoggingTransport) Available() bool {
	return !lt.closed.Load()
}

// Close marks the transport unavailable.
func (lt *LoggingTransport) Close() error {
	lt.closed.Store(true)
	log.Debugf("LOG_TRANSPORT: Close called.")
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
