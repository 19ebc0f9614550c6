// SPDX-License-Identifier: MIT

// Package utils holds signal generators and fakes shared by tests.
package utils

import (
	"math"
	"sync"

	"visualizer/internal/transport"
)

// MockTransport implements transport.Transport for testing. It records every
// message instead of transmitting it.
type MockTransport struct {
	mu       sync.Mutex
	messages []transport.Message
	closed   bool

	// Err, when set, is returned by Send after recording the message.
	Err error
}

var _ transport.Transport = (*MockTransport)(nil)

// Send records msg for later inspection.
func (m *MockTransport) Send(msg transport.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return transport.ErrUnavailable
	}
	m.messages = append(m.messages, msg)
	return m.Err
}

// Available reports false once Close has been called.
func (m *MockTransport) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Messages returns a copy of the recorded messages, optionally filtered to
// one event.
func (m *MockTransport) Messages(event string) []transport.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]transport.Message, 0, len(m.messages))
	for _, msg := range m.messages {
		if event == "" || msg.Event == event {
			out = append(out, msg)
		}
	}
	return out
}

// GenerateComplexWave returns a 440Hz fundamental plus two harmonics.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2 // 440Hz fundamental + harmonics
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// GenerateSineWave returns size samples of a sine at frequency with the
// given peak amplitude.
func GenerateSineWave(frequency, sampleRate float64, size int, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*t) * amplitude)
	}
	return buffer
}

// Interleave builds a stereo buffer from two equal-length channels. The
// shorter length wins.
func Interleave(left, right []float32) []float32 {
	n := min(len(left), len(right))
	out := make([]float32, n*2)
	for i := range n {
		out[2*i] = left[i]
		out[2*i+1] = right[i]
	}
	return out
}

// FindPeakBin returns the index of the largest magnitude in [startBin, endBin].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
