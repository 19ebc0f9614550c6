// SPDX-License-Identifier: MIT
package audio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"visualizer/internal/config"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func testEngine() config.Engine {
	e, err := config.Default().Engine(1.0)
	if err != nil {
		panic(err)
	}
	e.BlockSize = 256
	return e
}

// writeWAV writes interleaved 16-bit samples to a temp WAV file.
func writeWAV(t *testing.T, rate, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func noPacing(c *FileCapture) {
	c.sleep = func(time.Duration) {}
}

func TestOpenFileNormalizesAndLoops(t *testing.T) {
	cfg := testEngine()

	// 300 stereo frames: left = +half scale, right = -half scale.
	data := make([]int, 300*2)
	for i := 0; i < len(data); i += 2 {
		data[i] = 16384
		data[i+1] = -16384
	}
	c, err := OpenFile(writeWAV(t, 44100, 2, data), cfg)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer c.Close()
	noPacing(c)

	if c.Channels() != 2 {
		t.Fatalf("channels = %d, want 2", c.Channels())
	}

	b, err := c.ReadBlock()
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if b.Frames() != 256 {
		t.Fatalf("first block frames = %d, want 256", b.Frames())
	}
	if b.Data[0] != 0.5 || b.Data[1] != -0.5 {
		t.Errorf("normalized samples = %v, %v", b.Data[0], b.Data[1])
	}

	b, err = c.ReadBlock()
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if b.Frames() != 44 {
		t.Errorf("trailing block frames = %d, want 44", b.Frames())
	}

	b, err = c.ReadBlock()
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if b.Frames() != 256 {
		t.Errorf("looped block frames = %d, want 256", b.Frames())
	}
}

func TestOpenFileRateMismatch(t *testing.T) {
	path := writeWAV(t, 22050, 1, make([]int, 512))
	if _, err := OpenFile(path, testEngine()); err == nil {
		t.Error("expected sample rate mismatch error")
	}
}

func TestOpenFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(path, []byte("definitely not RIFF"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFile(path, testEngine()); err == nil {
		t.Error("expected error for invalid WAV")
	}
	if _, err := OpenFile(filepath.Join(t.TempDir(), "missing.wav"), testEngine()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFileCapturePacing(t *testing.T) {
	cfg := testEngine()
	c, err := OpenFile(writeWAV(t, 44100, 1, make([]int, 4096)), cfg)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer c.Close()

	clock := time.Unix(0, 0)
	var slept time.Duration
	c.now = func() time.Time { return clock }
	c.sleep = func(d time.Duration) {
		slept += d
		clock = clock.Add(d)
	}

	for range 4 {
		if _, err := c.ReadBlock(); err != nil {
			t.Fatalf("ReadBlock: %v", err)
		}
	}

	// The first block is served immediately, the next three wait one block each.
	want := 3 * time.Duration(float64(cfg.BlockSize)/cfg.SampleRate*float64(time.Second))
	if diff := slept - want; diff < -time.Microsecond || diff > time.Microsecond {
		t.Errorf("slept %s, want %s", slept, want)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		v, depth int
		want     float32
	}{
		{128, 8, 0},
		{0, 8, -1},
		{-32768, 16, -1},
		{16384, 16, 0.5},
		{4194304, 24, 0.5},
		{1, 12, 0},
	}
	for _, tt := range tests {
		if got := normalize(tt.v, tt.depth); got != tt.want {
			t.Errorf("normalize(%d, %d) = %v, want %v", tt.v, tt.depth, got, tt.want)
		}
	}
}

func TestFileCaptureClosed(t *testing.T) {
	c, err := OpenFile(writeWAV(t, 44100, 1, make([]int, 256)), testEngine())
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	noPacing(c)
	c.Close()
	if _, err := c.ReadBlock(); err == nil {
		t.Error("expected error after Close")
	}
}
