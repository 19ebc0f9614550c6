// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"time"

	"visualizer/internal/config"
	"visualizer/internal/log"

	"github.com/go-audio/wav"
)

// FileCapture serves a decoded WAV file block by block at real-time pace,
// looping at the end. The last block of each pass may be short.
type FileCapture struct {
	path      string
	samples   []float32 // interleaved, normalized to [-1, 1]
	channels  int
	blockSize int
	pos       int // sample offset into samples
	rate      float64

	next  time.Time
	now   func() time.Time
	sleep func(time.Duration)
}

// OpenFile decodes the WAV file at path. Files with more than two channels
// keep the first two. The file rate must match cfg.SampleRate.
func OpenFile(path string, cfg config.Engine) (*FileCapture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("%s: missing format chunk", path)
	}
	if float64(buf.Format.SampleRate) != cfg.SampleRate {
		return nil, fmt.Errorf("%s: sample rate %d Hz does not match engine rate %.0f Hz",
			path, buf.Format.SampleRate, cfg.SampleRate)
	}

	srcCh := buf.Format.NumChannels
	channels := min(srcCh, 2)
	frames := len(buf.Data) / srcCh
	if frames == 0 {
		return nil, fmt.Errorf("%s: no audio frames", path)
	}

	samples := make([]float32, frames*channels)
	for i := range frames {
		for c := range channels {
			samples[i*channels+c] = normalize(buf.Data[i*srcCh+c], buf.SourceBitDepth)
		}
	}

	log.Infof("Loaded %s: %d frames, %d ch, %d-bit", path, frames, srcCh, buf.SourceBitDepth)

	return &FileCapture{
		path:      path,
		samples:   samples,
		channels:  channels,
		blockSize: cfg.BlockSize,
		rate:      cfg.SampleRate,
		now:       time.Now,
		sleep:     time.Sleep,
	}, nil
}

// normalize maps a PCM integer of the given depth onto [-1, 1]. 8-bit WAV
// is unsigned.
func normalize(v, bitDepth int) float32 {
	switch bitDepth {
	case 8:
		return float32(v-128) / 128
	case 16, 24, 32:
		return float32(v) / float32(int64(1)<<(bitDepth-1))
	default:
		return 0
	}
}

// Channels returns the number of channels in each block.
func (c *FileCapture) Channels() int {
	return c.channels
}

// ReadBlock returns the next block, waiting until it is due.
func (c *FileCapture) ReadBlock() (Block, error) {
	if c.samples == nil {
		return Block{}, errors.New("file capture is closed")
	}

	if c.pos >= len(c.samples) {
		c.pos = 0
	}
	end := min(c.pos+c.blockSize*c.channels, len(c.samples))
	data := c.samples[c.pos:end]
	c.pos = end

	c.pace(len(data) / c.channels)
	return Block{Channels: c.channels, Data: data}, nil
}

// pace holds each block back until the wall clock catches up with the
// audio it represents. A caller that falls behind is not made to sleep.
func (c *FileCapture) pace(frames int) {
	now := c.now()
	if c.next.IsZero() || now.Sub(c.next) > time.Second {
		c.next = now
	}
	if wait := c.next.Sub(now); wait > 0 {
		c.sleep(wait)
	}
	c.next = c.next.Add(time.Duration(float64(frames) / c.rate * float64(time.Second)))
}

// Close releases the decoded samples.
func (c *FileCapture) Close() error {
	c.samples = nil
	return nil
}
