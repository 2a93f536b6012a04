// Package telemetry provides OpenTelemetry instrumentation for ebsreaper.
package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/ebsreaper/internal/config"
)

const instrumentationName = "ebsreaper"

// Provider wraps OTEL tracer and meter providers.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	// Metrics
	runDuration    metric.Float64Histogram
	candidates     metric.Int64Counter
	volumesDeleted metric.Int64Counter
	deleteFailures metric.Int64Counter
	notifyFailures metric.Int64Counter
}

// Option configures a Provider.
type Option func(*options)

type options struct {
	readers      []sdkmetric.Reader
	spanExporter sdktrace.SpanExporter
}

// WithMetricReader adds a metric reader, e.g. a Prometheus exporter.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) {
		o.readers = append(o.readers, r)
	}
}

// WithSpanExporter exports spans synchronously to exp. Used in tests.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) {
		o.spanExporter = exp
	}
}

// NewProvider creates a new telemetry provider. Without an endpoint nothing
// is exported over OTLP, but spans and metrics still work locally.
func NewProvider(ctx context.Context, cfg config.OTELConfig, opts ...Option) (*Provider, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	p := &Provider{}

	if err := p.setupTracing(ctx, cfg, res, o); err != nil {
		return nil, err
	}

	if err := p.setupMetrics(ctx, cfg, res, o); err != nil {
		_ = p.tracerProvider.Shutdown(ctx)
		return nil, err
	}

	if err := p.initMetrics(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Provider) setupTracing(ctx context.Context, cfg config.OTELConfig, res *resource.Resource, o *options) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}

	if cfg.Endpoint != "" {
		exp, err := createTraceExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	if o.spanExporter != nil {
		opts = append(opts, sdktrace.WithSyncer(o.spanExporter))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(p.tracerProvider)
	p.tracer = p.tracerProvider.Tracer(instrumentationName)

	return nil
}

func (p *Provider) setupMetrics(ctx context.Context, cfg config.OTELConfig, res *resource.Resource, o *options) error {
	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}

	if cfg.Endpoint != "" {
		exp, err := createMetricExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}
	for _, r := range o.readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(p.meterProvider)
	p.meter = p.meterProvider.Meter(instrumentationName)

	return nil
}

func createTraceExporter(ctx context.Context, cfg config.OTELConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func createMetricExporter(ctx context.Context, cfg config.OTELConfig) (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

func (p *Provider) initMetrics() error {
	var err error

	p.runDuration, err = p.meter.Float64Histogram(
		"ebsreaper_run_duration_seconds",
		metric.WithDescription("Duration of cleanup runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create run_duration: %w", err)
	}

	p.candidates, err = p.meter.Int64Counter(
		"ebsreaper_candidates_total",
		metric.WithDescription("Volumes selected for cleanup"),
	)
	if err != nil {
		return fmt.Errorf("create candidates: %w", err)
	}

	p.volumesDeleted, err = p.meter.Int64Counter(
		"ebsreaper_volumes_deleted_total",
		metric.WithDescription("Volumes deleted or simulated"),
	)
	if err != nil {
		return fmt.Errorf("create volumes_deleted: %w", err)
	}

	p.deleteFailures, err = p.meter.Int64Counter(
		"ebsreaper_delete_failures_total",
		metric.WithDescription("Volume deletions that failed"),
	)
	if err != nil {
		return fmt.Errorf("create delete_failures: %w", err)
	}

	p.notifyFailures, err = p.meter.Int64Counter(
		"ebsreaper_notify_failures_total",
		metric.WithDescription("Report notifications that failed"),
	)
	if err != nil {
		return fmt.Errorf("create notify_failures: %w", err)
	}

	return nil
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Meter returns the meter.
func (p *Provider) Meter() metric.Meter {
	return p.meter
}

// StartSpan starts a new span.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name)
}

// RecordRun records how long a run took and how it ended.
func (p *Provider) RecordRun(ctx context.Context, d time.Duration, status string) {
	p.runDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("status", status),
	))
}

// RecordCandidates records the number of candidates a scan produced.
func (p *Provider) RecordCandidates(ctx context.Context, count int) {
	p.candidates.Add(ctx, int64(count))
}

// RecordDeleted records one handled volume.
func (p *Provider) RecordDeleted(ctx context.Context, dryRun bool) {
	p.volumesDeleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dry_run", strconv.FormatBool(dryRun)),
	))
}

// RecordDeleteFailure records a failed deletion.
func (p *Provider) RecordDeleteFailure(ctx context.Context, code string) {
	p.deleteFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error_code", code),
	))
}

// RecordNotifyFailure records a failed notification.
func (p *Provider) RecordNotifyFailure(ctx context.Context) {
	p.notifyFailures.Add(ctx, 1)
}

// ForceFlush exports pending spans and metrics without shutting down.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if err := p.tracerProvider.ForceFlush(ctx); err != nil {
		return fmt.Errorf("flush tracer: %w", err)
	}
	if err := p.meterProvider.ForceFlush(ctx); err != nil {
		return fmt.Errorf("flush meter: %w", err)
	}
	return nil
}

// Shutdown flushes and shuts down the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracer: %w", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown meter: %w", err)
		}
	}
	return nil
}
