// SPDX-License-Identifier: MIT

// Package pipeline runs the capture, analyze, emit loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"visualizer/internal/analysis"
	"visualizer/internal/audio"
	"visualizer/internal/config"
	"visualizer/internal/log"
	"visualizer/internal/observe"
	"visualizer/internal/shutdown"
	"visualizer/internal/transport"
)

// State is the driver lifecycle position. It only moves forward.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Source is an opened capture plus what is known about the device.
type Source struct {
	Capture  audio.Capture
	Name     string
	Loopback bool
}

// Opener acquires the capture for a device id.
type Opener func(deviceID int) (Source, error)

// Options configures a Driver.
type Options struct {
	Engine    config.Engine
	DeviceID  int
	Open      Opener
	Presenter transport.Transport
	Frames    *analysis.FrameStore // optional
	Flag      *shutdown.Flag
	Metrics   *observe.Metrics // optional

	// OnAcquired runs once after the device is open, before the warm-up.
	OnAcquired func(Source)
}

// Driver owns the device for one run.
type Driver struct {
	opts    Options
	metrics *observe.Metrics
	state   atomic.Int32
}

func New(opts Options) *Driver {
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	if opts.Flag == nil {
		opts.Flag = shutdown.New()
	}
	return &Driver{opts: opts, metrics: opts.Metrics}
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	return State(d.state.Load())
}

// Ready returns nil while the driver is Running.
func (d *Driver) Ready(context.Context) error {
	if s := d.State(); s != StateRunning {
		return fmt.Errorf("pipeline is %s", s)
	}
	return nil
}

func (d *Driver) setState(s State) {
	d.state.Store(int32(s))
	log.Debugf("Pipeline: %s", s)
}

// Run acquires the device, waits out the warm-up and loops until shutdown
// is requested, ctx is done or the presenter goes away. It only returns an
// error when no device could be acquired.
func (d *Driver) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	d.setState(StateStarting)
	src, err := d.acquire()
	if err != nil {
		d.setState(StateStopped)
		return err
	}
	defer func() {
		if err := src.Capture.Close(); err != nil {
			log.Warnf("Pipeline: closing capture: %v", err)
		}
		d.setState(StateStopped)
	}()

	cfg := d.opts.Engine
	analyzer, err := analysis.NewAnalyzer(analysis.Config{
		SampleRate: cfg.SampleRate,
		NumBars:    cfg.NumBars,
		MinFreq:    cfg.MinFreq,
		MaxFreq:    cfg.MaxFreq,
		GainBoost:  cfg.BoostFor(src.Loopback),
		BlockSize:  cfg.BlockSize,
	})
	if err != nil {
		return fmt.Errorf("analyzer: %w", err)
	}

	kind := "MIC"
	if src.Loopback {
		kind = "SYS"
	}
	log.Infof("Pipeline: capturing from [%s] %s (gain %.1fx, %d-frame blocks)",
		kind, src.Name, analyzer.Config().GainBoost, cfg.BlockSize)

	if d.opts.OnAcquired != nil {
		d.opts.OnAcquired(src)
	}

	if !d.opts.Flag.Sleep(cfg.Warmup) {
		d.setState(StateStopping)
		return nil
	}

	d.setState(StateRunning)
	d.loop(ctx, src.Capture, analyzer)
	d.setState(StateStopping)
	return nil
}

// acquire opens the configured device, falling back to device 0 when the id
// no longer exists.
func (d *Driver) acquire() (Source, error) {
	src, err := d.opts.Open(d.opts.DeviceID)
	if err == nil {
		return src, nil
	}
	if !errors.Is(err, audio.ErrDeviceNotFound) || d.opts.DeviceID == 0 {
		return Source{}, fmt.Errorf("open device %d: %w", d.opts.DeviceID, err)
	}

	log.Warnf("Pipeline: device %d not found, falling back to device 0", d.opts.DeviceID)
	src, err = d.opts.Open(0)
	if err != nil {
		return Source{}, fmt.Errorf("open fallback device 0: %w", err)
	}
	return src, nil
}

func (d *Driver) loop(ctx context.Context, capture audio.Capture, analyzer *analysis.Analyzer) {
	cfg := d.opts.Engine
	flag := d.opts.Flag
	presenter := d.opts.Presenter
	emitter := NewEmitter(presenter, d.opts.Frames, d.metrics)

	failures := 0
	for !flag.Requested() && ctx.Err() == nil {
		if !presenter.Available() {
			log.Infof("Pipeline: presentation unavailable, stopping")
			return
		}

		block, err := capture.ReadBlock()
		if err != nil {
			failures++
			d.metrics.ReadFailures.Add(ctx, 1)
			if failures == 1 {
				log.Warnf("Pipeline: read failed, retrying: %v", err)
			} else {
				log.Debugf("Pipeline: read failed (%d in a row): %v", failures, err)
			}
			flag.Sleep(cfg.RetryBackoff)
			continue
		}
		if failures > 0 {
			log.Infof("Pipeline: capture recovered after %d failed reads", failures)
			failures = 0
		}

		start := time.Now()
		frame := analyzer.Analyze(block)
		d.metrics.RecordAnalysis(ctx, time.Since(start))

		emitter.Emit(ctx, frame)

		if cfg.EmitInterval > 0 {
			flag.Sleep(cfg.EmitInterval)
		}
	}
}
