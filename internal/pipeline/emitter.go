// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"

	"visualizer/internal/analysis"
	"visualizer/internal/log"
	"visualizer/internal/observe"
	"visualizer/internal/transport"
)

// Emitter pushes frames to the presentation boundary. It never blocks and
// swallows delivery failures.
type Emitter struct {
	presenter transport.Transport
	frames    *analysis.FrameStore
	metrics   *observe.Metrics
}

// NewEmitter returns an emitter for presenter. frames may be nil.
func NewEmitter(presenter transport.Transport, frames *analysis.FrameStore, metrics *observe.Metrics) *Emitter {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Emitter{presenter: presenter, frames: frames, metrics: metrics}
}

// Emit publishes f as an update_data event and as the latest frame.
func (e *Emitter) Emit(ctx context.Context, f *analysis.Frame) {
	if e.frames != nil {
		e.frames.Store(f)
	}
	if err := e.presenter.Send(transport.Message{Event: transport.EventUpdateData, Payload: f}); err != nil {
		log.Debugf("Emitter: frame not delivered: %v", err)
		return
	}
	e.metrics.FramesEmitted.Add(ctx, 1)
}
