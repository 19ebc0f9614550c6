// SPDX-License-Identifier: MIT

// Package shutdown provides the process-wide termination flag shared by the
// pipeline driver, the media poller and the presentation boundary. The flag
// only ever transitions from false to true.
package shutdown

import (
	"sync"
	"sync/atomic"
	"time"
)

// Flag is a write-once shutdown signal. The zero value is not usable; use New.
type Flag struct {
	set  atomic.Bool
	once sync.Once
	done chan struct{}
}

func New() *Flag {
	return &Flag{done: make(chan struct{})}
}

// Request sets the flag. Safe to call from any goroutine, any number of times.
func (f *Flag) Request() {
	f.once.Do(func() {
		f.set.Store(true)
		close(f.done)
	})
}

// Requested reports whether shutdown has been requested.
func (f *Flag) Requested() bool {
	return f.set.Load()
}

// Done returns a channel that is closed once shutdown is requested.
func (f *Flag) Done() <-chan struct{} {
	return f.done
}

// Sleep waits for d or until shutdown is requested, whichever comes first.
// It returns false if shutdown interrupted the wait.
func (f *Flag) Sleep(d time.Duration) bool {
	if d <= 0 {
		return !f.Requested()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-f.done:
		return false
	}
}
