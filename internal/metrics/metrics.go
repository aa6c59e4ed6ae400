// Package metrics exports switchgear's Prometheus gauges/counters,
// following the teacher's prometheus.go: package-level collectors,
// registered once, updated from the core loops as they run.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HealthyBackends tracks the current size of the healthy backend set.
	HealthyBackends = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "switchgear",
		Name:      "healthy_backends",
		Help:      "Number of backends currently considered healthy.",
	})

	// KnownBackends tracks the size of the discovered (enabled,
	// partitioned) backend set, independent of health.
	KnownBackends = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "switchgear",
		Name:      "known_backends",
		Help:      "Number of backends currently known to the discovery source.",
	})

	// InvoiceRequestsTotal counts get_invoice calls by outcome.
	InvoiceRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "switchgear",
		Name:      "invoice_requests_total",
		Help:      "Total get_invoice calls, labeled by outcome.",
	}, []string{"outcome"})

	// InvoiceRequestAttempts observes the number of backend attempts a
	// single get_invoice call needed before it returned.
	InvoiceRequestAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "switchgear",
		Name:      "invoice_request_attempts",
		Help:      "Number of backend selection attempts per get_invoice call.",
		Buckets:   prometheus.LinearBuckets(1, 1, 8),
	})

	// HealthProbeFailuresTotal counts failed health probes across all
	// backends; it carries no per-backend label.
	HealthProbeFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "switchgear",
		Name:      "health_probe_failures_total",
		Help:      "Total health probe failures across all backends.",
	})
)

// Register adds every collector to the default registry. Call once at
// startup; a second call would panic on AlreadyRegisteredError, matching
// prometheus.MustRegister's own contract.
func Register() {
	prometheus.MustRegister(
		HealthyBackends,
		KnownBackends,
		InvoiceRequestsTotal,
		InvoiceRequestAttempts,
		HealthProbeFailuresTotal,
	)
}

// Config controls whether and where metrics are exported, mirroring the
// teacher's PrometheusConfig.
type Config struct {
	Enabled    bool   `long:"enabled" yaml:"enabled" description:"if true prometheus metrics will be exported"`
	ListenAddr string `long:"listenaddr" yaml:"listenAddr" description:"the interface to listen on for prometheus"`
}

// Serve registers the collectors and starts the "/metrics" HTTP server in a
// new goroutine. It returns immediately; shutdown happens with the rest of
// the process.
func Serve(cfg Config) {
	if !cfg.Enabled {
		return
	}

	Register()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		_ = http.ListenAndServe(cfg.ListenAddr, mux)
	}()
}
