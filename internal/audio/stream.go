// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"time"

	"visualizer/internal/config"
	"visualizer/internal/log"

	"github.com/gordonklaus/portaudio"
)

// StreamCapture reads blocks from a PortAudio input stream in blocking mode.
type StreamCapture struct {
	device   Device
	stream   *portaudio.Stream
	buf      []float32
	channels int
	latency  time.Duration
}

// OpenStream opens and starts a blocking input stream on dev. The channel
// count is capped by what the device offers.
func OpenStream(dev Device, cfg config.Engine) (*StreamCapture, error) {
	if dev.info == nil {
		return nil, fmt.Errorf("device %d: %w", dev.ID, ErrDeviceNotFound)
	}

	channels := min(cfg.Channels, dev.MaxInputChannels)
	latency := dev.info.DefaultHighInputLatency
	if cfg.LowLatency {
		latency = dev.info.DefaultLowInputLatency
	}

	s := &StreamCapture{
		device:   dev,
		buf:      make([]float32, cfg.BlockSize*channels),
		channels: channels,
		latency:  latency,
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev.info,
			Channels: channels,
			Latency:  latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
		},
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: cfg.BlockSize,
	}

	stream, err := portaudio.OpenStream(params, s.buf)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream on %q: %w", dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start input stream on %q: %w", dev.Name, err)
	}
	s.stream = stream

	log.Debugf("Input stream open: %q, %d ch, %.0f Hz, %d frames, latency %s",
		dev.Name, channels, cfg.SampleRate, cfg.BlockSize, latency)
	return s, nil
}

// Device returns the device this stream captures from.
func (s *StreamCapture) Device() Device {
	return s.device
}

// ReadBlock blocks until one full block is available. An input overflow
// still delivers the block; other failures wrap ErrTransientRead.
func (s *StreamCapture) ReadBlock() (Block, error) {
	if err := s.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return Block{}, fmt.Errorf("%w: %v", ErrTransientRead, err)
		}
		log.Debugf("Input overflow on %q", s.device.Name)
	}
	return Block{Channels: s.channels, Data: s.buf}, nil
}

// Close stops and releases the stream.
func (s *StreamCapture) Close() error {
	var err error
	if s.stream != nil {
		if stopErr := s.stream.Stop(); stopErr != nil {
			err = stopErr
		}
		if closeErr := s.stream.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		s.stream = nil
	}
	return err
}
