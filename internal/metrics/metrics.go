package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	helperStarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "launchr",
			Subsystem: "helper",
			Name:      "starts_total",
			Help:      "Number of helper scripts started.",
		},
	)
	helperStartFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "launchr",
			Subsystem: "helper",
			Name:      "start_failures_total",
			Help:      "Number of helper scripts that failed to start.",
		},
	)
	helperKills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launchr",
			Subsystem: "helper",
			Name:      "kills_total",
			Help:      "Helper termination attempts by result (ended, not_found, error).",
		}, []string{"result"},
	)
	mainRuntime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "launchr",
			Subsystem: "main",
			Name:      "runtime_seconds",
			Help:      "Wall time between starting the main process and observing its exit.",
			Buckets:   []float64{60, 300, 900, 1800, 3600, 7200, 14400, 28800},
		},
	)
	mainCPU = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "launchr",
			Subsystem: "main",
			Name:      "cpu_percent",
			Help:      "Last sampled CPU usage of the main process.",
		},
	)
	mainRSS = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "launchr",
			Subsystem: "main",
			Name:      "memory_rss_bytes",
			Help:      "Last sampled resident memory of the main process.",
		},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launchr",
			Subsystem: "run",
			Name:      "state_transitions_total",
			Help:      "Number of orchestration state transitions.",
		}, []string{"from", "to"},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "launchr",
			Subsystem: "run",
			Name:      "current_state",
			Help:      "Current orchestration state (1 = active state, 0 = inactive).",
		}, []string{"state"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{helperStarts, helperStartFailures, helperKills, mainRuntime, mainCPU, mainRSS, stateTransitions, currentState}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Serve exposes /metrics on addr from a background goroutine until ctx is
// done. The listener is bound before returning so address errors surface here.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = srv.Serve(ln) }()
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	return ln.Addr(), nil
}

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncHelperStart() {
	if regOK.Load() {
		helperStarts.Inc()
	}
}

func IncHelperStartFailure() {
	if regOK.Load() {
		helperStartFailures.Inc()
	}
}

// IncHelperKill records one termination attempt; result is ended, not_found or error.
func IncHelperKill(result string) {
	if regOK.Load() {
		helperKills.WithLabelValues(result).Inc()
	}
}

func ObserveMainRuntime(d time.Duration) {
	if regOK.Load() {
		mainRuntime.Observe(d.Seconds())
	}
}

func SetMainUsage(cpuPercent float64, rssBytes uint64) {
	if regOK.Load() {
		mainCPU.Set(cpuPercent)
		mainRSS.Set(float64(rssBytes))
	}
}

func RecordStateTransition(from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(from, to).Inc()
		currentState.WithLabelValues(from).Set(0)
		currentState.WithLabelValues(to).Set(1)
	}
}
