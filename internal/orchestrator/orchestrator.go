// Package orchestrator runs one cleanup pass: scan, delete, report.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/ebsreaper/internal/notifier"
	"github.com/yairfalse/ebsreaper/internal/plugin/aws"
	"github.com/yairfalse/ebsreaper/internal/report"
	"github.com/yairfalse/ebsreaper/pkg/resource"
)

// Scanner finds cleanup candidates.
type Scanner interface {
	FindCandidates(ctx context.Context, ageDays int) ([]resource.Volume, error)
}

// Deleter applies the delete decision for one volume.
type Deleter interface {
	Delete(ctx context.Context, volumeID string) (resource.Outcome, error)
}

// Recorder receives run metrics. telemetry.Provider implements it.
type Recorder interface {
	RecordRun(ctx context.Context, d time.Duration, status string)
	RecordCandidates(ctx context.Context, count int)
	RecordDeleted(ctx context.Context, dryRun bool)
	RecordDeleteFailure(ctx context.Context, code string)
	RecordNotifyFailure(ctx context.Context)
}

// Config holds the per-run settings.
type Config struct {
	AgeDays int
	DryRun  bool
}

// Orchestrator coordinates scan → delete → notify.
type Orchestrator struct {
	cfg      Config
	scanner  Scanner
	deleter  Deleter
	notifier notifier.Notifier
	recorder Recorder
	tracer   trace.Tracer
	newID    func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithTracer sets the tracer used for the run span.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

// New creates an orchestrator.
func New(cfg Config, scanner Scanner, deleter Deleter, n notifier.Notifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		scanner:  scanner,
		deleter:  deleter,
		notifier: n,
		recorder: nopRecorder{},
		tracer:   otel.Tracer("ebsreaper/orchestrator"),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one cleanup pass. A failure to list volumes or a cancelled
// context is returned; deletion and notification failures are logged and
// absorbed. Cancellation stops before the next candidate and skips the report.
func (o *Orchestrator) Run(ctx context.Context) (*resource.RunResult, error) {
	start := time.Now()
	runID := o.newID()

	ctx, span := o.tracer.Start(ctx, "orchestrator.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Bool("cleanup.dry_run", o.cfg.DryRun),
		attribute.Int("cleanup.age_days", o.cfg.AgeDays),
	))
	defer span.End()

	logger := log.With().Ctx(ctx).Str("run_id", runID).Logger()
	logger.Info().
		Bool("dry_run", o.cfg.DryRun).
		Int("age_days", o.cfg.AgeDays).
		Msg("starting cleanup run")

	candidates, err := o.scanner.FindCandidates(ctx, o.cfg.AgeDays)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		o.recorder.RecordRun(ctx, time.Since(start), "error")
		logger.Error().Err(err).Msg("cleanup run aborted")
		return nil, fmt.Errorf("find candidates: %w", err)
	}

	o.recorder.RecordCandidates(ctx, len(candidates))
	span.SetAttributes(attribute.Int("cleanup.candidates", len(candidates)))
	logger.Info().Int("candidates", len(candidates)).Msg("candidates found")

	summary := resource.NewSummary(o.cfg.DryRun)
	failures := 0
	for i, vol := range candidates {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "run cancelled")
			o.recorder.RecordRun(ctx, time.Since(start), "cancelled")
			logger.Error().
				Err(err).
				Int("remaining", len(candidates)-i).
				Strs("processed", outcomeIDs(summary.Deleted)).
				Msg("cleanup run cancelled, report not sent")
			return nil, fmt.Errorf("cleanup run cancelled: %w", err)
		}

		outcome, err := o.deleter.Delete(ctx, vol.ID)
		if err != nil {
			failures++
			code := aws.ErrorCode(err)
			o.recorder.RecordDeleteFailure(ctx, code)
			logger.Warn().
				Err(err).
				Str("volume_id", vol.ID).
				Str("error_code", code).
				Msg("failed to delete volume, skipping")
			continue
		}
		o.recorder.RecordDeleted(ctx, outcome.DryRun)
		summary.Deleted = append(summary.Deleted, outcome)
	}
	span.SetAttributes(attribute.Int("cleanup.failures", failures))

	msg, err := report.Render(summary)
	if err != nil {
		// Summary holds only strings and bools; this does not happen in practice.
		logger.Error().Err(err).Msg("failed to render report")
	} else {
		res := o.notifier.Publish(ctx, report.Subject, msg)
		if res.Failed() {
			o.recorder.RecordNotifyFailure(ctx)
			span.AddEvent("notification failed")
		}
	}

	o.recorder.RecordRun(ctx, time.Since(start), resource.StatusOK)
	logger.Info().
		Int("processed", len(summary.Deleted)).
		Int("failures", failures).
		Dur("duration", time.Since(start)).
		Msg("cleanup run finished")

	return &resource.RunResult{Status: resource.StatusOK, Summary: summary}, nil
}

func outcomeIDs(outcomes []resource.Outcome) []string {
	ids := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		ids = append(ids, o.VolumeID)
	}
	return ids
}

type nopRecorder struct{}

func (nopRecorder) RecordRun(context.Context, time.Duration, string) {}
func (nopRecorder) RecordCandidates(context.Context, int)            {}
func (nopRecorder) RecordDeleted(context.Context, bool)              {}
func (nopRecorder) RecordDeleteFailure(context.Context, string)      {}
func (nopRecorder) RecordNotifyFailure(context.Context)              {}
