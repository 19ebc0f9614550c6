// SPDX-License-Identifier: MIT
package analysis

import "sync/atomic"

// Frame is the result of analyzing one block. Bars are in [0, ~120],
// volumes are clamped to [0, 100]. A Frame is not modified after Analyze
// returns it.
type Frame struct {
	Bars []float64 `json:"bars"`
	VolL float64   `json:"volL"`
	VolR float64   `json:"volR"`
}

// FrameStore holds the most recently emitted frame for readers that sample
// at their own rate, such as the UDP mirror.
type FrameStore struct {
	latest atomic.Pointer[Frame]
	seq    atomic.Uint64
}

// Store publishes f as the latest frame.
func (s *FrameStore) Store(f *Frame) {
	s.latest.Store(f)
	s.seq.Add(1)
}

// Latest returns the latest frame and the number of frames stored so far.
// It returns nil before the first Store.
func (s *FrameStore) Latest() (*Frame, uint64) {
	return s.latest.Load(), s.seq.Load()
}
