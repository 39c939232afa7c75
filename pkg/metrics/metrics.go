// Package metrics exposes Prometheus instrumentation for the tool
// server: session lifecycle counters and per-tool call metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one server instance
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsClosed  prometheus.Counter
	ToolCalls       *prometheus.CounterVec
	ToolDuration    *prometheus.HistogramVec
}

// New creates a Metrics instance backed by its own registry, so tests
// can run multiple servers in-process without collector collisions.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sitesmith_sessions_active",
			Help: "Number of live sessions in the session table",
		}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitesmith_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitesmith_sessions_closed_total",
			Help: "Total number of sessions closed",
		}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitesmith_tool_calls_total",
			Help: "Total number of tool invocations by tool and status",
		}, []string{"tool", "status"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sitesmith_tool_duration_seconds",
			Help:    "Tool handler execution time in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
	}

	m.registry.MustRegister(
		m.SessionsActive,
		m.SessionsCreated,
		m.SessionsClosed,
		m.ToolCalls,
		m.ToolDuration,
	)
	return m
}

// ObserveCall records one tool invocation
func (m *Metrics) ObserveCall(tool string, seconds float64, failed bool) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.ToolCalls.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(seconds)
}

// SessionOpened records a session table insert
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
	m.SessionsActive.Inc()
}

// SessionClosed records a session table removal
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsClosed.Inc()
	m.SessionsActive.Dec()
}

// Handler returns the scrape endpoint handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gather exposes the underlying registry for tests
func (m *Metrics) Gather() prometheus.Gatherer {
	return m.registry
}
