// Package daemon runs cleanup passes on an interval and serves metrics and
// health endpoints alongside.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/ebsreaper/pkg/resource"
)

const shutdownTimeout = 5 * time.Second

// Runner executes one cleanup pass.
type Runner interface {
	Run(ctx context.Context) (*resource.RunResult, error)
}

// Config holds daemon configuration
type Config struct {
	Interval    time.Duration
	MetricsAddr string
}

// Daemon manages the periodic cleanup loop
type Daemon struct {
	interval    time.Duration
	metricsAddr string
	runner      Runner
	metrics     *DaemonMetrics
	handler     http.Handler
	startTime   time.Time
	runCount    atomic.Int64
	lastSuccess atomic.Int64
	listenAddr  atomic.Value
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithMetricsHandler serves h on /metrics instead of the default Prometheus registry.
func WithMetricsHandler(h http.Handler) Option {
	return func(d *Daemon) {
		d.handler = h
	}
}

// WithMetrics sets the daemon metrics.
func WithMetrics(m *DaemonMetrics) Option {
	return func(d *Daemon) {
		d.metrics = m
	}
}

// NewDaemon creates a new daemon instance
func NewDaemon(cfg Config, runner Runner, opts ...Option) (*Daemon, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if runner == nil {
		return nil, errors.New("runner is required")
	}

	d := &Daemon{
		interval:    cfg.Interval,
		metricsAddr: cfg.MetricsAddr,
		runner:      runner,
		handler:     promhttp.Handler(),
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.metrics == nil {
		m, err := NewDaemonMetrics()
		if err != nil {
			return nil, fmt.Errorf("create daemon metrics: %w", err)
		}
		d.metrics = m
	}

	return d, nil
}

// Start runs a pass immediately, then one per interval, until ctx is done.
// When a metrics address is set the HTTP server runs in the same group and
// a server failure stops the loop.
func (d *Daemon) Start(ctx context.Context) error {
	var g run.Group

	{
		loopCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return d.loop(loopCtx)
		}, func(error) {
			cancel()
		})
	}

	if d.metricsAddr != "" {
		ln, err := net.Listen("tcp", d.metricsAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", d.metricsAddr, err)
		}
		d.listenAddr.Store(ln.Addr().String())
		srv := &http.Server{
			Handler:           d.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Add(func() error {
			log.Info().Str("addr", ln.Addr().String()).Msg("starting metrics server")
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}

	return g.Run()
}

func (d *Daemon) loop(ctx context.Context) error {
	d.runOnce(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return nil
		case <-ticker.C:
			d.runOnce(ctx)
		}
	}
}

func (d *Daemon) runOnce(ctx context.Context) {
	d.runCount.Add(1)
	start := time.Now()

	res, err := d.runner.Run(ctx)
	if err != nil {
		d.metrics.RecordRun(ctx, "error", time.Since(start))
		log.Error().Err(err).Msg("cleanup run failed")
		return
	}

	d.lastSuccess.Store(time.Now().Unix())
	d.metrics.RecordRun(ctx, res.Status, time.Since(start))
	d.metrics.RecordProcessed(ctx, len(res.Summary.Deleted), res.Summary.DryRun)
}

// Handler returns the HTTP handler serving /metrics, /healthz and /readyz.
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.handler)
	mux.HandleFunc("/healthz", d.handleHealthz)
	mux.HandleFunc("/readyz", d.handleReadyz)
	return mux
}

// handleHealthz reports liveness with uptime and run count as JSON
func (d *Daemon) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(d.Health())
}

// handleReadyz returns OK once a run has completed successfully
func (d *Daemon) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if d.lastSuccess.Load() == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no successful run yet"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Health returns daemon health status
func (d *Daemon) Health() HealthStatus {
	return HealthStatus{
		Status: "healthy",
		Uptime: int64(time.Since(d.startTime).Seconds()),
		Runs:   d.runCount.Load(),
	}
}

// HealthStatus represents daemon health
type HealthStatus struct {
	Status string `json:"status"`
	Uptime int64  `json:"uptime_seconds"`
	Runs   int64  `json:"runs"`
}

// MetricsAddr returns the address the HTTP server listens on, or "" before
// Start has bound it.
func (d *Daemon) MetricsAddr() string {
	addr, _ := d.listenAddr.Load().(string)
	return addr
}

// RunCount returns total cleanup runs started
func (d *Daemon) RunCount() int64 {
	return d.runCount.Load()
}
