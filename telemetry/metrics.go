// Package telemetry exposes Prometheus metrics for the tool surface and
// the session pool.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telegram_mcp_tool_calls_total",
		Help: "Tool invocations by tool name and outcome.",
	}, []string{"tool", "status"})

	toolDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "telegram_mcp_tool_duration_seconds",
		Help:    "Tool handler latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})

	sessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "telegram_mcp_sessions",
		Help: "Platform sessions currently held by the session manager.",
	})
)

func init() {
	registry.MustRegister(toolCalls, toolDuration, sessions)
}

// ObserveToolCall records one tool invocation.
func ObserveToolCall(tool, status string, elapsed time.Duration) {
	toolCalls.WithLabelValues(tool, status).Inc()
	toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// SetSessions updates the session-pool gauge.
func SetSessions(n int) {
	sessions.Set(float64(n))
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
