// Package observability wires the apply engine's metrics and logging:
// OTel instruments exported through a Prometheus registry, and slog
// handler construction from config.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	metricDiffsApplied    = "diffstack.diffs.applied.total"
	metricCandidatesTried = "diffstack.candidates.tried.total"
	metricPatchMismatches = "diffstack.patch.mismatches.total"
	metricApplyDuration   = "diffstack.apply.duration.seconds"

	attrStatus = "status"

	// Statuses recorded per diff.
	StatusApplied = "applied"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// applyDurationBoundaries covers a single fast-path candidate hit up to a
// deep ancestor walk over a large repository.
var applyDurationBoundaries = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// ApplyMetrics holds the instruments recorded by the apply pipeline.
type ApplyMetrics struct {
	diffsApplied    metric.Int64Counter
	candidatesTried metric.Int64Counter
	patchMismatches metric.Int64Counter
	applyDuration   metric.Float64Histogram
}

// NewApplyMetrics creates the apply instruments from the given meter.
func NewApplyMetrics(mt metric.Meter) (*ApplyMetrics, error) {
	b := newMetricBuilder(mt)

	am := &ApplyMetrics{
		diffsApplied:    b.counter(metricDiffsApplied, "Diffs processed, by outcome", "{diff}"),
		candidatesTried: b.counter(metricCandidatesTried, "Candidate base commits attempted", "{commit}"),
		patchMismatches: b.counter(metricPatchMismatches, "Candidate attempts rejected by patch mismatch", "{attempt}"),
		applyDuration:   b.histogram(metricApplyDuration, "Time to apply one diff", "s", applyDurationBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return am, nil
}

// NoopApplyMetrics returns instruments that record nothing, for callers
// that run without a metrics endpoint.
func NoopApplyMetrics() *ApplyMetrics {
	am, _ := NewApplyMetrics(noop.NewMeterProvider().Meter("diffstack"))

	return am
}

// RecordDiff records one finished diff with its outcome and duration.
func (am *ApplyMetrics) RecordDiff(ctx context.Context, status string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(attrStatus, status))

	am.diffsApplied.Add(ctx, 1, attrs)
	am.applyDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordCandidate records one candidate attempt.
func (am *ApplyMetrics) RecordCandidate(ctx context.Context) {
	am.candidatesTried.Add(ctx, 1)
}

// RecordMismatch records a candidate rejected by a patch failure.
func (am *ApplyMetrics) RecordMismatch(ctx context.Context) {
	am.patchMismatches.Add(ctx, 1)
}
