// Package metrics provides Prometheus metrics for the SiteForge backend.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *Metrics
)

// Metrics holds all Prometheus metric collectors.
type Metrics struct {
	// HTTP
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Generation pipeline
	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	ActiveSessions     prometheus.Gauge
	AgentStepsTotal    *prometheus.CounterVec

	// Token ledger
	TokensDebitedTotal   prometheus.Counter
	TokensCreditedTotal  prometheus.Counter
	DebitFailuresTotal   prometheus.Counter
	AuthorizationsDenied prometheus.Counter

	// WebSocket
	WebSocketConnections   prometheus.Gauge
	WebSocketMessagesTotal *prometheus.CounterVec
}

// Get returns the singleton Metrics instance.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	m := &Metrics{}

	m.HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siteforge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by endpoint, method, and status code",
		},
		[]string{"endpoint", "method", "status"},
	)

	m.HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "siteforge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "method"},
	)

	m.HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "siteforge",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)

	m.GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siteforge",
			Subsystem: "generation",
			Name:      "runs_total",
			Help:      "Total website generation runs by final status",
		},
		[]string{"status"},
	)

	m.GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "siteforge",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "End-to-end generation pipeline duration in seconds",
			Buckets:   []float64{1, 2.5, 5, 10, 15, 30, 60, 120},
		},
	)

	m.ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "siteforge",
			Subsystem: "generation",
			Name:      "active_sessions",
			Help:      "Number of generation sessions currently running",
		},
	)

	m.AgentStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siteforge",
			Subsystem: "generation",
			Name:      "agent_steps_total",
			Help:      "Total agent steps executed by agent type and outcome",
		},
		[]string{"agent", "outcome"},
	)

	m.TokensDebitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "siteforge",
			Subsystem: "tokens",
			Name:      "debited_total",
			Help:      "Total tokens debited from user balances",
		},
	)

	m.TokensCreditedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "siteforge",
			Subsystem: "tokens",
			Name:      "credited_total",
			Help:      "Total tokens credited to user balances",
		},
	)

	m.DebitFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "siteforge",
			Subsystem: "tokens",
			Name:      "debit_failures_total",
			Help:      "Debits that failed after a successful generation",
		},
	)

	m.AuthorizationsDenied = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "siteforge",
			Subsystem: "tokens",
			Name:      "authorizations_denied_total",
			Help:      "Generation requests rejected for insufficient tokens",
		},
	)

	m.WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "siteforge",
			Subsystem: "websocket",
			Name:      "connections",
			Help:      "Current number of WebSocket connections",
		},
	)

	m.WebSocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siteforge",
			Subsystem: "websocket",
			Name:      "messages_total",
			Help:      "Total WebSocket messages by direction",
		},
		[]string{"direction"},
	)

	return m
}
