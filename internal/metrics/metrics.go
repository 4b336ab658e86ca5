// Package metrics exposes Prometheus counters for compiled pipelines.
//
// A nil *Collector is valid and records nothing, so callers that do not
// scrape metrics pass nil instead of a stub.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Collector holds the pipeline metrics registered on one registry.
type Collector struct {
	stageRecords *prometheus.CounterVec
	compiles     *prometheus.CounterVec
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
}

// New registers the pipeline metrics on reg. Registering twice on the same
// registry panics, as with promauto.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		stageRecords: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamql_stage_records_total",
				Help: "Total number of records leaving each pipeline stage",
			},
			[]string{"stage"},
		),
		compiles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamql_compile_total",
				Help: "Total number of statement compilations",
			},
			[]string{"status"},
		),
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamql_runs_total",
				Help: "Total number of finished pipeline runs",
			},
			[]string{"status"},
		),
		runDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "streamql_run_duration_seconds",
				Help:    "Wall time of finished pipeline runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// StageRecord counts one record leaving stage.
func (c *Collector) StageRecord(stage string) {
	if c == nil {
		return
	}
	c.stageRecords.WithLabelValues(stage).Inc()
}

// Compiled counts a compilation that finished with err.
func (c *Collector) Compiled(err error) {
	if c == nil {
		return
	}
	c.compiles.WithLabelValues(status(err)).Inc()
}

// RunFinished counts a run that finished with err after d. A run stopped by
// its consumer (context.Canceled) counts as ok.
func (c *Collector) RunFinished(err error, d time.Duration) {
	if c == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	c.runs.WithLabelValues(status(err)).Inc()
	c.runDuration.Observe(d.Seconds())
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// Handler returns the /metrics handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes g on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
