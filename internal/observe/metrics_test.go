// SPDX-License-Identifier: MIT
package observe

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is %T", m.Name, m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestCountersAndGauges(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FramesEmitted.Add(ctx, 3)
	m.ReadFailures.Add(ctx, 1)
	m.MediaUpdates.Add(ctx, 2)
	m.WSClients.Add(ctx, 2)
	m.WSClients.Add(ctx, -1)
	m.RecordDrop(ctx, "update_data")
	m.RecordDrop(ctx, "update_data")

	rm := collect(t, reader)
	assert.Equal(t, int64(3), sumValue(t, findMetric(rm, "visualizer.frames.emitted")))
	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "visualizer.capture.read_failures")))
	assert.Equal(t, int64(2), sumValue(t, findMetric(rm, "visualizer.media.updates")))
	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "visualizer.ws.clients")))
	assert.Equal(t, int64(2), sumValue(t, findMetric(rm, "visualizer.frames.dropped")))
}

func TestAnalysisHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAnalysis(ctx, 300*time.Microsecond)
	m.RecordAnalysis(ctx, 2*time.Millisecond)

	rm := collect(t, reader)
	got := findMetric(rm, "visualizer.analysis.duration")
	require.NotNil(t, got)
	hist, ok := got.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.Equal(t, "s", got.Unit)
}

func TestDefaultMetricsIsSingleton(t *testing.T) {
	assert.Same(t, DefaultMetrics(), DefaultMetrics())
}

func TestProviderServesPrometheus(t *testing.T) {
	p, err := InitProvider(ProviderConfig{ServiceVersion: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	p.Metrics.FramesEmitted.Add(context.Background(), 5)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(string(body), "visualizer_frames_emitted"), string(body))
}
