package xgate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/omeyang/xvoice/pkg/voice/xgate"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumWhere(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.Emit() == value {
			total += dp.Value
		}
	}
	return total
}

func gaugeValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	g, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok, "metric %s is not an int64 gauge", m.Name)
	require.Len(t, g.DataPoints, 1)
	return g.DataPoints[0].Value
}

func TestMetrics_RecordsAcquireAndRelease(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	g := newGate(t, xgate.WithMeterProvider(mp))
	ctx := context.Background()

	h := acquire(t, g, xgate.Request{ResourceID: "v1", ScopeID: "s1"})
	_, err := g.Acquire(ctx, xgate.Request{ResourceID: "v1", ScopeID: "s1", Timeout: 10 * time.Millisecond})
	require.ErrorIs(t, err, xgate.ErrAdmissionTimeout)

	held := acquire(t, g, xgate.Request{ResourceID: "v2"})

	ms := collect(t, reader)
	assert.Equal(t, int64(2), sumWhere(t, ms["xgate.acquire.total"], "outcome", "acquired"))
	assert.Equal(t, int64(1), sumWhere(t, ms["xgate.acquire.total"], "outcome", "timeout"))
	assert.Equal(t, int64(2), gaugeValue(t, ms["xgate.locks.active"]))
	assert.Equal(t, int64(2), gaugeValue(t, ms["xgate.locks.total"]))
	assert.Equal(t, int64(1), gaugeValue(t, ms["xgate.sessions.active"]))

	g.CleanupSession(ctx, "s1")
	require.NoError(t, held.Release())
	assert.ErrorIs(t, h.Release(), xgate.ErrSessionClosed)

	ms = collect(t, reader)
	assert.Equal(t, int64(1), sumWhere(t, ms["xgate.release.total"], "forced", "true"))
	assert.Equal(t, int64(1), sumWhere(t, ms["xgate.release.total"], "forced", "false"))
	assert.Equal(t, int64(0), gaugeValue(t, ms["xgate.locks.active"]))
	assert.Equal(t, int64(0), gaugeValue(t, ms["xgate.sessions.active"]))

	hist, ok := ms["xgate.acquire.wait"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestMetrics_CancelledOutcome(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	g := newGate(t, xgate.WithMeterProvider(mp))
	h := acquire(t, g, xgate.Request{ResourceID: "v1"})
	defer func() { require.NoError(t, h.Release()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := g.Acquire(ctx, xgate.Request{ResourceID: "v1", Timeout: time.Second})
	require.Error(t, err)

	ms := collect(t, reader)
	assert.Equal(t, int64(1), sumWhere(t, ms["xgate.acquire.total"], "outcome", "cancelled"))
	assert.Equal(t, int64(0), sumWhere(t, ms["xgate.acquire.total"], "outcome", "timeout"))
}

func TestMetrics_NilSafe(t *testing.T) {
	m, err := xgate.NewMetrics(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	m.RecordAcquire(context.Background(), xgate.OutcomeAcquired, time.Millisecond)
	m.RecordRelease(context.Background(), time.Millisecond, false)
	assert.NoError(t, m.Close())
}

func TestMetrics_UnregisteredOnClose(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	g, err := xgate.New(xgate.WithMeterProvider(mp))
	require.NoError(t, err)
	require.NoError(t, g.Close())

	ms := collect(t, reader)
	_, ok := ms["xgate.locks.active"]
	assert.False(t, ok)
}
