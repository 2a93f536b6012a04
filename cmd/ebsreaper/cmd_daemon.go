package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/prometheus"

	"github.com/yairfalse/ebsreaper/internal/app"
	"github.com/yairfalse/ebsreaper/internal/daemon"
	"github.com/yairfalse/ebsreaper/internal/telemetry"
)

var (
	daemonInterval    time.Duration
	daemonMetricsAddr string
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run cleanup passes on an interval",
	Long: `Run ebsreaper as a long-lived process instead of a scheduled Lambda.

A pass runs at startup and then once per interval. Prometheus metrics
are served on /metrics, liveness on /healthz and readiness (after the
first successful pass) on /readyz. SIGTERM/SIGINT stop the loop.`,
	Example: `  ebsreaper daemon                               # Daily, metrics on :9090
  ebsreaper daemon --interval 6h                 # Every six hours
  ebsreaper daemon --metrics-addr 127.0.0.1:2112 # Custom listen address`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().DurationVar(&daemonInterval, "interval", 24*time.Hour, "Time between cleanup passes")
	daemonCmd.Flags().StringVar(&daemonMetricsAddr, "metrics-addr", ":9090", "Metrics and health HTTP address (empty to disable)")
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	promExporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("create prometheus exporter: %w", err)
	}

	a, err := app.New(ctx, cfg, telemetry.WithMetricReader(promExporter))
	if err != nil {
		return err
	}
	defer func() { _ = a.Shutdown(cmd.Context()) }()

	d, err := daemon.NewDaemon(daemon.Config{
		Interval:    daemonInterval,
		MetricsAddr: daemonMetricsAddr,
	}, a)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	log.Info().
		Dur("interval", daemonInterval).
		Str("metrics_addr", daemonMetricsAddr).
		Bool("dry_run", cfg.Cleanup.DryRun).
		Msg("ebsreaper daemon starting")

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}

	log.Info().Msg("daemon stopped")
	return nil
}
