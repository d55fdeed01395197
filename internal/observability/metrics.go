package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRowsTotal    = "ccr.rows.total"
	metricRowDuration  = "ccr.row.duration.seconds"
	metricErrorsTotal  = "ccr.errors.total"
	metricInflightRows = "ccr.inflight.rows"

	attrOp     = "op"
	attrStatus = "status"

	// StatusOK and StatusError are the status attribute values.
	StatusOK    = "ok"
	StatusError = "error"
)

// durationBucketBoundaries covers 5ms to 60s: a cached row diff finishes in
// milliseconds, a cold row with a network fetch can take tens of seconds.
var durationBucketBoundaries = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// REDMetrics holds the OTel instruments for Rate, Error, Duration metrics
// over pipeline row processing.
type REDMetrics struct {
	rowsTotal    metric.Int64Counter
	rowDuration  metric.Float64Histogram
	errorsTotal  metric.Int64Counter
	inflightRows metric.Int64UpDownCounter
}

// NewREDMetrics creates RED metric instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	rowsTotal, err := mt.Int64Counter(metricRowsTotal,
		metric.WithDescription("Total number of processed rows"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRowsTotal, err)
	}

	rowDuration, err := mt.Float64Histogram(metricRowDuration,
		metric.WithDescription("Row processing duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRowDuration, err)
	}

	errorsTotal, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Total number of row processing errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricInflightRows,
		metric.WithDescription("Number of rows currently being processed"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInflightRows, err)
	}

	return &REDMetrics{
		rowsTotal:    rowsTotal,
		rowDuration:  rowDuration,
		errorsTotal:  errorsTotal,
		inflightRows: inflight,
	}, nil
}

// RecordRow records a completed row with its operation, status, and
// duration.
func (rm *REDMetrics) RecordRow(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.rowsTotal.Add(ctx, 1, attrs)
	rm.rowDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrOp, op),
		))
	}
}

// TrackInflight increments the in-flight gauge and returns a function to
// decrement it.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRows.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRows.Add(ctx, -1, attrs)
	}
}
