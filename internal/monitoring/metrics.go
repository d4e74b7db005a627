package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session metrics
	SessionsTotal    prometheus.Counter
	SessionsActive   prometheus.Gauge
	SessionFallbacks prometheus.Counter

	// I/O metrics
	BytesWritten prometheus.Counter
	BytesRead    prometheus.Counter

	// Tool metrics
	ToolCalls *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
}

// NewMetrics creates a metrics collector on its own registry, so tests can
// construct collectors repeatedly without duplicate-registration panics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "termd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		SessionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termd_sessions_total",
				Help: "Total number of sessions created",
			},
		),
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termd_sessions_active",
				Help: "Number of tracked sessions",
			},
		),
		SessionFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termd_session_headless_fallbacks_total",
				Help: "Sessions that fell back from PTY to headless",
			},
		),

		BytesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termd_terminal_bytes_written_total",
				Help: "Bytes written to terminal sessions",
			},
		),
		BytesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "termd_terminal_bytes_read_total",
				Help: "Bytes read from terminal sessions",
			},
		),

		ToolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "termd_tool_calls_total",
				Help: "Tool invocations by name and outcome",
			},
			[]string{"tool", "status"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "termd_ws_connections",
				Help: "Open WebSocket control connections",
			},
		),
	}
}

// Handler returns an http.Handler serving this collector's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveToolCall records one tool invocation.
func (m *Metrics) ObserveToolCall(tool string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ToolCalls.WithLabelValues(tool, status).Inc()
}
