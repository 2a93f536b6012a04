package daemon

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DaemonMetrics holds loop-level metrics. Per-volume counters live in the
// telemetry provider.
type DaemonMetrics struct {
	runs        metric.Int64Counter
	runDuration metric.Float64Histogram
	processed   metric.Int64Counter
}

// NewDaemonMetrics creates daemon metrics on the global meter provider.
func NewDaemonMetrics() (*DaemonMetrics, error) {
	return newDaemonMetrics(otel.Meter("ebsreaper.daemon"))
}

func newDaemonMetrics(meter metric.Meter) (*DaemonMetrics, error) {
	runs, err := meter.Int64Counter(
		"ebsreaper_daemon_runs_total",
		metric.WithDescription("Number of scheduled cleanup runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"ebsreaper_daemon_run_duration_seconds",
		metric.WithDescription("Wall time of scheduled cleanup runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	processed, err := meter.Int64Counter(
		"ebsreaper_daemon_volumes_processed_total",
		metric.WithDescription("Volumes reported by scheduled runs"),
		metric.WithUnit("{volume}"),
	)
	if err != nil {
		return nil, err
	}

	return &DaemonMetrics{
		runs:        runs,
		runDuration: runDuration,
		processed:   processed,
	}, nil
}

// RecordRun records a run with its status
func (m *DaemonMetrics) RecordRun(ctx context.Context, status string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.runs.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordProcessed records how many volumes a run reported
func (m *DaemonMetrics) RecordProcessed(ctx context.Context, count int, dryRun bool) {
	m.processed.Add(ctx, int64(count),
		metric.WithAttributes(
			attribute.String("dry_run", strconv.FormatBool(dryRun)),
		),
	)
}
