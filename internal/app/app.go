// Package app wires configuration into a ready-to-run cleanup pipeline.
// Both the Lambda handler and the CLI build through here.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/ebsreaper/internal/config"
	"github.com/yairfalse/ebsreaper/internal/executor"
	"github.com/yairfalse/ebsreaper/internal/filter"
	"github.com/yairfalse/ebsreaper/internal/notifier"
	"github.com/yairfalse/ebsreaper/internal/orchestrator"
	"github.com/yairfalse/ebsreaper/internal/plugin/aws"
	"github.com/yairfalse/ebsreaper/internal/scanner"
	"github.com/yairfalse/ebsreaper/internal/telemetry"
	"github.com/yairfalse/ebsreaper/pkg/resource"
)

// App holds the assembled pipeline and the resources it owns.
type App struct {
	cfg          config.Config
	plugin       *aws.Plugin
	telemetry    *telemetry.Provider
	orchestrator *orchestrator.Orchestrator
}

// New connects to AWS, starts telemetry and assembles the pipeline.
func New(ctx context.Context, cfg config.Config, opts ...telemetry.Option) (*App, error) {
	p, err := aws.New(ctx, aws.Config{Region: cfg.AWS.Region, Profile: cfg.AWS.Profile})
	if err != nil {
		return nil, fmt.Errorf("create aws plugin: %w", err)
	}

	tp, err := telemetry.NewProvider(ctx, cfg.OTEL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telemetry: %w", err)
	}

	return Assemble(cfg, p, tp), nil
}

// Assemble builds the pipeline from an existing plugin and telemetry provider.
func Assemble(cfg config.Config, p *aws.Plugin, tp *telemetry.Provider) *App {
	wl := filter.New(cfg.Cleanup.WhitelistTags)
	sc := scanner.New(p, wl)
	ex := executor.New(p, cfg.Cleanup.DryRun)

	topic := cfg.Cleanup.SNSTopicARN
	if topic != "" && !strings.HasPrefix(topic, "arn:") {
		log.Warn().Str("topic", topic).Msg("notification topic does not look like an ARN, publishing will likely fail")
	}
	n := notifier.New(p, topic)

	orch := orchestrator.New(
		orchestrator.Config{AgeDays: cfg.Cleanup.AgeDays, DryRun: ex.DryRun()},
		sc, ex, n,
		orchestrator.WithRecorder(tp),
		orchestrator.WithTracer(tp.Tracer()),
	)

	log.Debug().
		Str("provider", p.Name()).
		Str("region", p.Region()).
		Strs("whitelist", wl.Keys()).
		Bool("dry_run", ex.DryRun()).
		Int("age_days", cfg.Cleanup.AgeDays).
		Bool("notifications", cfg.Cleanup.NotificationsEnabled()).
		Msg("pipeline assembled")

	return &App{cfg: cfg, plugin: p, telemetry: tp, orchestrator: orch}
}

// Run executes one cleanup pass.
func (a *App) Run(ctx context.Context) (*resource.RunResult, error) {
	return a.orchestrator.Run(ctx)
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Flush exports pending telemetry. Lambda calls it after every invocation.
func (a *App) Flush(ctx context.Context) error {
	return a.telemetry.ForceFlush(ctx)
}

// Shutdown flushes telemetry and releases exporters.
func (a *App) Shutdown(ctx context.Context) error {
	return a.telemetry.Shutdown(ctx)
}

// ConfigureLogging replaces the global logger according to cfg.
func ConfigureLogging(cfg config.Config, w io.Writer) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = telemetry.NewLogger(cfg.Log, cfg.OTEL.ServiceName, w)
	zerolog.SetGlobalLevel(log.Logger.GetLevel())
}
