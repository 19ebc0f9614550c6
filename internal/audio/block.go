// SPDX-License-Identifier: MIT

// Package audio provides block-oriented audio capture from PortAudio input
// devices and WAV files.
package audio

import "errors"

var (
	// ErrDeviceNotFound is returned when a device id does not name an
	// input-capable device.
	ErrDeviceNotFound = errors.New("audio device not found")

	// ErrTransientRead marks a read failure the caller may retry.
	ErrTransientRead = errors.New("transient audio read failure")
)

// Block is one captured chunk of interleaved float32 samples.
// Data may be reused by the next ReadBlock call.
type Block struct {
	Channels int
	Data     []float32
}

// Frames returns the number of sample frames in the block.
func (b Block) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Data) / b.Channels
}

// Capture yields fixed-size blocks from an audio source. It is owned by a
// single goroutine.
type Capture interface {
	ReadBlock() (Block, error)
	Close() error
}
