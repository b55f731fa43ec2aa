// Package metrics holds the gateway's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tokengate/pkg/platform/circuit"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	registry *prometheus.Registry

	SignIns            *prometheus.CounterVec
	Refreshes          *prometheus.CounterVec
	ReplaysDetected    prometheus.Counter
	Revocations        prometheus.Counter
	CircuitTransitions *prometheus.CounterVec
	CircuitRejections  *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
}

// New creates all metrics on a fresh registry so tests can run in parallel
// without duplicate registration panics.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		SignIns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tokengate_sign_ins_total",
			Help: "Sign-in attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
		Refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tokengate_token_refreshes_total",
			Help: "Refresh attempts by outcome",
		}, []string{"outcome"}),
		ReplaysDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "tokengate_refresh_replays_detected_total",
			Help: "Refresh tokens presented again after rotation",
		}),
		Revocations: factory.NewCounter(prometheus.CounterOpts{
			Name: "tokengate_sessions_revoked_total",
			Help: "Sessions revoked by client request",
		}),
		CircuitTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tokengate_circuit_transitions_total",
			Help: "Circuit breaker state transitions by breaker and new state",
		}, []string{"breaker", "state"}),
		CircuitRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tokengate_circuit_rejections_total",
			Help: "Calls rejected by an open circuit breaker",
		}, []string{"breaker"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tokengate_http_request_duration_seconds",
			Help:    "HTTP request latency by route, method, and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "method", "status"}),
	}
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for test assertions.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// CircuitListener adapts breaker transitions into counter increments.
func (m *Metrics) CircuitListener() circuit.Listener {
	return func(name string, change circuit.StateChange) {
		switch {
		case change.Opened:
			m.CircuitTransitions.WithLabelValues(name, "open").Inc()
		case change.HalfOpened:
			m.CircuitTransitions.WithLabelValues(name, "half_open").Inc()
		case change.Closed:
			m.CircuitTransitions.WithLabelValues(name, "closed").Inc()
		}
	}
}

// RejectionListener adapts breaker rejections into counter increments.
func (m *Metrics) RejectionListener() func(name string) {
	return func(name string) {
		m.CircuitRejections.WithLabelValues(name).Inc()
	}
}

// Outcome labels used by the sign-in and refresh counters.
const (
	OutcomeSuccess     = "success"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)
