// SPDX-License-Identifier: MIT

// Package analysis turns captured audio blocks into spectrum frames: a fixed
// number of log-spaced bar magnitudes plus left and right RMS volume.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"visualizer/internal/audio"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

const (
	barBase      = 50.0 // Weight of the first bar
	barSlope     = 3.0  // Extra weight per bar index
	compressKnee = 100.0
	compressRate = 0.2
	volumeScale  = 400.0
	volumeMax    = 100.0
)

// Config holds the immutable parameters of an Analyzer.
type Config struct {
	SampleRate float64
	NumBars    int
	MinFreq    float64
	MaxFreq    float64
	GainBoost  float64 // 1.0 for loopback sources, higher for microphones
	// BlockSize is the expected frames per block. When set, its plan is
	// built up front; otherwise the longest block seen takes that slot.
	BlockSize int
}

func (c Config) validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %f", c.SampleRate)
	case c.NumBars <= 0:
		return fmt.Errorf("bar count must be positive, got %d", c.NumBars)
	case c.MinFreq <= 0 || c.MaxFreq <= c.MinFreq:
		return fmt.Errorf("invalid frequency range %.1f..%.1f", c.MinFreq, c.MaxFreq)
	case c.GainBoost <= 0:
		return errors.New("gain boost must be positive")
	case c.BlockSize < 0:
		return fmt.Errorf("block size must not be negative, got %d", c.BlockSize)
	}
	return nil
}

// band is the half-open bin range [start, end) averaged into one bar.
type band struct {
	start, end int
}

// plan holds everything that depends only on the block length.
type plan struct {
	n      int
	fft    *fourier.FFT
	window []float64
	input  []float64    // windowed mono signal
	coeffs []complex128 // n/2+1 FFT coefficients
	mags   []float64    // |coeffs|
	freqs  []float64    // bin k -> k*sampleRate/n
	bands  []band
}

// Analyzer converts audio blocks into Frames. It is deterministic and owned
// by a single goroutine. A short read gets its own window and bin layout
// instead of a padded one; only the full-size plan and the latest short plan
// are kept.
type Analyzer struct {
	cfg   Config
	full  *plan
	short *plan
	mono  []float64
	left  []float64
	right []float64
}

// NewAnalyzer returns an analyzer for cfg.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	a := &Analyzer{cfg: cfg}
	if cfg.BlockSize > 0 {
		a.full = a.newPlan(cfg.BlockSize)
	}
	return a, nil
}

// Config returns the analyzer parameters.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// Analyze returns a new Frame for b. A block with no frames yields an
// all-zero frame.
func (a *Analyzer) Analyze(b audio.Block) *Frame {
	f := &Frame{Bars: make([]float64, a.cfg.NumBars)}
	a.AnalyzeInto(b, f)
	return f
}

// AnalyzeInto writes the analysis of b into f, reusing f.Bars when it has
// the right length. It does not allocate once a plan for the block length
// exists.
func (a *Analyzer) AnalyzeInto(b audio.Block, f *Frame) {
	if len(f.Bars) != a.cfg.NumBars {
		f.Bars = make([]float64, a.cfg.NumBars)
	}

	n := b.Frames()
	if n == 0 {
		clear(f.Bars)
		f.VolL, f.VolR = 0, 0
		return
	}

	a.split(b, n)
	p := a.planFor(n)

	for i, v := range a.mono {
		p.input[i] = v * p.window[i]
	}
	p.fft.Coefficients(p.coeffs, p.input)
	for i, c := range p.coeffs {
		p.mags[i] = cmplx.Abs(c)
	}

	boost := a.cfg.GainBoost
	for i, bd := range p.bands {
		f.Bars[i] = compress(bandMean(p.mags, bd) * (barBase + float64(i)*barSlope) * boost)
	}

	f.VolL = volume(rms(a.left) * boost)
	f.VolR = volume(rms(a.right) * boost)
}

// split de-interleaves b into left, right and their mono mix. Mono input
// is duplicated into both channels.
func (a *Analyzer) split(b audio.Block, n int) {
	if cap(a.mono) < n {
		a.mono = make([]float64, n)
		a.left = make([]float64, n)
		a.right = make([]float64, n)
	}
	a.mono, a.left, a.right = a.mono[:n], a.left[:n], a.right[:n]

	ch := b.Channels
	if ch == 1 {
		for i := range n {
			v := float64(b.Data[i])
			a.mono[i], a.left[i], a.right[i] = v, v, v
		}
		return
	}
	for i := range n {
		l := float64(b.Data[i*ch])
		r := float64(b.Data[i*ch+1])
		a.left[i], a.right[i] = l, r
		a.mono[i] = (l + r) / 2
	}
}

func (a *Analyzer) planFor(n int) *plan {
	switch {
	case a.full != nil && a.full.n == n:
		return a.full
	case a.short != nil && a.short.n == n:
		return a.short
	}

	p := a.newPlan(n)
	switch {
	case a.full == nil:
		a.full = p
	case a.cfg.BlockSize == 0 && n > a.full.n:
		a.full = p
		a.short = nil
	default:
		a.short = p
	}
	return p
}

func (a *Analyzer) newPlan(n int) *plan {
	bins := n/2 + 1
	p := &plan{
		n:      n,
		fft:    fourier.NewFFT(n),
		window: make([]float64, n),
		input:  make([]float64, n),
		coeffs: make([]complex128, bins),
		mags:   make([]float64, bins),
		freqs:  make([]float64, bins),
		bands:  make([]band, a.cfg.NumBars),
	}

	for i := range p.window {
		p.window[i] = 1
	}
	// A one-point symmetric Hann window is [1].
	if n > 1 {
		window.Hann(p.window)
	}

	for k := range p.freqs {
		p.freqs[k] = float64(k) * a.cfg.SampleRate / float64(n)
	}

	ratio := a.cfg.MaxFreq / a.cfg.MinFreq
	bars := float64(a.cfg.NumBars)
	for i := range p.bands {
		fStart := a.cfg.MinFreq * math.Pow(ratio, float64(i)/bars)
		fEnd := a.cfg.MinFreq * math.Pow(ratio, float64(i+1)/bars)
		start := sort.SearchFloat64s(p.freqs, fStart)
		end := sort.SearchFloat64s(p.freqs, fEnd)
		if end <= start {
			end = start + 1
		}
		p.bands[i] = band{start: start, end: end}
	}
	return p
}

// bandMean averages mags over bd, clipped to the array. An empty range is 0.
func bandMean(mags []float64, bd band) float64 {
	end := min(bd.end, len(mags))
	if bd.start >= end {
		return 0
	}
	sum := 0.0
	for _, m := range mags[bd.start:end] {
		sum += m
	}
	return sum / float64(end-bd.start)
}

// compress softens values above the knee to a fifth of their excess.
func compress(v float64) float64 {
	if v > compressKnee {
		return compressKnee + (v-compressKnee)*compressRate
	}
	return v
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func volume(r float64) float64 {
	return min(max(r*volumeScale, 0), volumeMax)
}
