// SPDX-License-Identifier: MIT

// Package observe provides the OpenTelemetry metric instruments for the
// visualizer and the provider that exposes them to Prometheus.
//
// Components take a *Metrics; tests should use NewMetrics with their own
// MeterProvider to avoid cross-test pollution. DefaultMetrics binds to the
// global provider, which is a no-op until InitProvider runs.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "visualizer"

// Metrics holds all metric instruments. All fields are safe for concurrent
// use.
type Metrics struct {
	// FramesEmitted counts spectrum frames handed to the presentation boundary.
	FramesEmitted metric.Int64Counter

	// FramesDropped counts messages dropped because a queue was full. Use
	// with attribute.String("event", ...).
	FramesDropped metric.Int64Counter

	// ReadFailures counts transient capture read failures.
	ReadFailures metric.Int64Counter

	// AnalysisDuration tracks the time to analyze one block.
	AnalysisDuration metric.Float64Histogram

	// WSClients tracks connected WebSocket clients.
	WSClients metric.Int64UpDownCounter

	// MediaUpdates counts now-playing changes pushed to the UI.
	MediaUpdates metric.Int64Counter
}

// analysisBuckets are in seconds; a 2048-frame block lasts ~46ms at 44.1kHz.
var analysisBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesEmitted, err = m.Int64Counter("visualizer.frames.emitted",
		metric.WithDescription("Spectrum frames emitted to the presentation boundary."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("visualizer.frames.dropped",
		metric.WithDescription("Messages dropped on a full queue, by event."),
	); err != nil {
		return nil, err
	}
	if met.ReadFailures, err = m.Int64Counter("visualizer.capture.read_failures",
		metric.WithDescription("Transient audio read failures."),
	); err != nil {
		return nil, err
	}
	if met.AnalysisDuration, err = m.Float64Histogram("visualizer.analysis.duration",
		metric.WithDescription("Time to analyze one audio block."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(analysisBuckets...),
	); err != nil {
		return nil, err
	}
	if met.WSClients, err = m.Int64UpDownCounter("visualizer.ws.clients",
		metric.WithDescription("Connected WebSocket clients."),
	); err != nil {
		return nil, err
	}
	if met.MediaUpdates, err = m.Int64Counter("visualizer.media.updates",
		metric.WithDescription("Now-playing updates pushed to the UI."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level Metrics bound to the global
// MeterProvider. Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordDrop counts one dropped message for event.
func (m *Metrics) RecordDrop(ctx context.Context, event string) {
	m.FramesDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

// RecordAnalysis observes one analysis duration.
func (m *Metrics) RecordAnalysis(ctx context.Context, d time.Duration) {
	m.AnalysisDuration.Record(ctx, d.Seconds())
}
