// Package metrics exposes the keeper's operational metrics through a
// prometheus registry and an optional /metrics HTTP listener.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the keeper emits. All fields are safe for
// concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	PollCycles     prometheus.Counter
	PollFailures   prometheus.Counter
	PollLatency    prometheus.Histogram
	BlockHeight    prometheus.Gauge
	OpenOrders     prometheus.Gauge
	InFlight       prometheus.Gauge
	OrdersSkipped  *prometheus.CounterVec // reason: not_open, expired, price_unavailable, in_flight, lock_held
	Dispatches     prometheus.Counter
	Executions     *prometheus.CounterVec // status: confirmed, failed, timed_out
	ExecLatency    prometheus.Histogram
	FeeEscalations prometheus.Counter
}

// New registers all keeper collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		PollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keeper_poll_cycles_total",
			Help: "Completed poll cycles.",
		}),
		PollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keeper_poll_failures_total",
			Help: "Poll cycles that failed outright (e.g. connection lost).",
		}),
		PollLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "keeper_poll_latency_seconds",
			Help:    "Duration of one poll cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		BlockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "keeper_block_height",
			Help: "Last observed block or slot height.",
		}),
		OpenOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "keeper_open_orders",
			Help: "Open orders seen in the last poll cycle.",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "keeper_inflight_coordinators",
			Help: "Execution coordinators currently active.",
		}),
		OrdersSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keeper_orders_skipped_total",
			Help: "Orders skipped during evaluation, by reason.",
		}, []string{"reason"}),
		Dispatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keeper_dispatches_total",
			Help: "Coordinators dispatched.",
		}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keeper_executions_total",
			Help: "Terminal coordinator outcomes, by status.",
		}, []string{"status"}),
		ExecLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "keeper_execution_latency_seconds",
			Help:    "Dispatch-to-terminal-state duration.",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		FeeEscalations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keeper_fee_escalations_total",
			Help: "Fee-bumped resubmissions.",
		}),
	}

	reg.MustRegister(
		m.PollCycles, m.PollFailures, m.PollLatency,
		m.BlockHeight, m.OpenOrders, m.InFlight,
		m.OrdersSkipped, m.Dispatches, m.Executions,
		m.ExecLatency, m.FeeEscalations,
	)
	return m
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs a /metrics listener on addr until ctx is cancelled. It returns
// nil on graceful shutdown.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
