package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/esmlink/pkg/observability"
)

func setupTestMeter(t *testing.T) (*observability.CompileMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	cm, err := observability.NewCompileMetrics(mp.Meter("test"))
	require.NoError(t, err)

	return cm, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumOf(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}

	return total
}

func TestCompileMetrics_Units(t *testing.T) {
	t.Parallel()

	cm, reader := setupTestMeter(t)
	ctx := context.Background()

	cm.RecordUnits(ctx, observability.OutcomeCompiled, 5)
	cm.RecordUnits(ctx, observability.OutcomeFailed, 2)

	m := findMetric(collectMetrics(t, reader), "esmlink.units.total")
	assert.Equal(t, int64(7), sumOf(t, m))

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, sum.DataPoints, 2)
}

func TestCompileMetrics_DiagnosticsAndCache(t *testing.T) {
	t.Parallel()

	cm, reader := setupTestMeter(t)
	ctx := context.Background()

	cm.RecordDiagnostic(ctx, "error", "unresolved specifier")
	cm.RecordDiagnostic(ctx, "warning", "shadowed name")
	cm.RecordCache(ctx, 3, 1)
	cm.RecordOutput(ctx, 1024)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(2), sumOf(t, findMetric(rm, "esmlink.diagnostics.total")))
	assert.Equal(t, int64(4), sumOf(t, findMetric(rm, "esmlink.parse_cache.lookups.total")))
	assert.Equal(t, int64(1024), sumOf(t, findMetric(rm, "esmlink.output.bytes.total")))
}

func TestCompileMetrics_Phase(t *testing.T) {
	t.Parallel()

	cm, reader := setupTestMeter(t)

	cm.RecordPhase(context.Background(), "discover", 150*time.Millisecond)

	m := findMetric(collectMetrics(t, reader), "esmlink.phase.duration.seconds")
	require.NotNil(t, m)

	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 0.15, hist.DataPoints[0].Sum, 0.001)
}
