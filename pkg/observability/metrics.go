package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricUnitsTotal       = "esmlink.units.total"
	metricDiagnosticsTotal = "esmlink.diagnostics.total"
	metricPhaseDuration    = "esmlink.phase.duration.seconds"
	metricCacheLookups     = "esmlink.parse_cache.lookups.total"
	metricOutputBytes      = "esmlink.output.bytes.total"

	attrOutcome  = "outcome"
	attrSeverity = "severity"
	attrKind     = "kind"
	attrResult   = "result"

	// OutcomeCompiled marks units that produced an artifact.
	OutcomeCompiled = "compiled"
	// OutcomeFailed marks units dropped because of a diagnostic error.
	OutcomeFailed = "failed"
)

// phaseBucketBoundaries covers 1ms to 60s: single small packages up to large
// action trees.
var phaseBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// CompileMetrics holds the OTel instruments recorded by one compilation.
type CompileMetrics struct {
	unitsTotal       metric.Int64Counter
	diagnosticsTotal metric.Int64Counter
	phaseDuration    metric.Float64Histogram
	cacheLookups     metric.Int64Counter
	outputBytes      metric.Int64Counter
}

// NewCompileMetrics creates the compile instruments from the given meter.
func NewCompileMetrics(mt metric.Meter) (*CompileMetrics, error) {
	units, err := mt.Int64Counter(metricUnitsTotal,
		metric.WithDescription("Modules processed, by outcome"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricUnitsTotal, err)
	}

	diags, err := mt.Int64Counter(metricDiagnosticsTotal,
		metric.WithDescription("Diagnostics reported, by severity and kind"),
		metric.WithUnit("{diagnostic}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricDiagnosticsTotal, err)
	}

	phase, err := mt.Float64Histogram(metricPhaseDuration,
		metric.WithDescription("Compile phase duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(phaseBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPhaseDuration, err)
	}

	lookups, err := mt.Int64Counter(metricCacheLookups,
		metric.WithDescription("Parse cache lookups, by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheLookups, err)
	}

	out, err := mt.Int64Counter(metricOutputBytes,
		metric.WithDescription("Bytes of generated code"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricOutputBytes, err)
	}

	return &CompileMetrics{
		unitsTotal:       units,
		diagnosticsTotal: diags,
		phaseDuration:    phase,
		cacheLookups:     lookups,
		outputBytes:      out,
	}, nil
}

// RecordUnits counts n units with the given outcome.
func (cm *CompileMetrics) RecordUnits(ctx context.Context, outcome string, n int) {
	cm.unitsTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String(attrOutcome, outcome)))
}

// RecordDiagnostic counts one diagnostic.
func (cm *CompileMetrics) RecordDiagnostic(ctx context.Context, severity, kind string) {
	cm.diagnosticsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrSeverity, severity),
		attribute.String(attrKind, kind),
	))
}

// RecordPhase records the duration of one compile phase.
func (cm *CompileMetrics) RecordPhase(ctx context.Context, phase string, duration time.Duration) {
	cm.phaseDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(attrPhase, phase)))
}

// RecordCache records parse cache hits and misses.
func (cm *CompileMetrics) RecordCache(ctx context.Context, hits, misses int64) {
	cm.cacheLookups.Add(ctx, hits, metric.WithAttributes(attribute.String(attrResult, "hit")))
	cm.cacheLookups.Add(ctx, misses, metric.WithAttributes(attribute.String(attrResult, "miss")))
}

// RecordOutput counts generated bytes.
func (cm *CompileMetrics) RecordOutput(ctx context.Context, n int) {
	cm.outputBytes.Add(ctx, int64(n))
}
