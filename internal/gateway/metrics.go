package gateway

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SolanceLab/garmin-mcp/internal/tools"
)

// Metrics tracks tool invocation counters. Lock-free atomics back the JSON
// snapshots; a dedicated Prometheus registry backs GET /metrics.
type Metrics struct {
	registry    *prometheus.Registry
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec

	total        atomic.Int64
	failures     atomic.Int64
	totalLatency atomic.Int64 // nanoseconds
}

var _ tools.Observer = (*Metrics)(nil)

// NewMetrics builds the metrics sink with its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garmin_mcp_tool_invocations_total",
			Help: "Completed tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "garmin_mcp_tool_duration_seconds",
			Help:    "Tool invocation wall time in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
	}
	m.registry.MustRegister(m.invocations, m.duration, collectors.NewGoCollector())
	return m
}

// ObserveInvocation implements tools.Observer.
func (m *Metrics) ObserveInvocation(inv tools.Invocation) {
	m.total.Add(1)
	if inv.Outcome != "success" {
		m.failures.Add(1)
	}
	m.totalLatency.Add(int64(inv.Duration))

	m.invocations.WithLabelValues(inv.Tool, inv.Outcome).Inc()
	m.duration.WithLabelValues(inv.Tool).Observe(inv.Duration.Seconds())
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Snapshot returns a consistent point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	total := m.total.Load()
	snap := MetricsSnapshot{
		Total:    total,
		Failures: m.failures.Load(),
	}
	if total > 0 {
		snap.AvgLatency = time.Duration(m.totalLatency.Load() / total)
	}
	return snap
}

// MetricsSnapshot is a serializable point-in-time metrics view.
type MetricsSnapshot struct {
	Total      int64         `json:"total"`
	Failures   int64         `json:"failures"`
	AvgLatency time.Duration `json:"avg_latency_ns"`
}
