package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon's Prometheus collectors. Each Metrics owns its
// registry, so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// ToolExecutions counts tool invocations.
	// Labels: tool, status (ok|error)
	ToolExecutions *prometheus.CounterVec

	// ToolDuration measures tool execution time in seconds.
	// Labels: tool
	ToolDuration *prometheus.HistogramVec

	// StreamSessions is the number of chat streams in progress.
	StreamSessions prometheus.Gauge

	// StreamFrames counts frames written to chat clients.
	// Labels: type (text|toolcall|error|done|ping)
	StreamFrames *prometheus.CounterVec

	// HTTPRequests counts API requests.
	// Labels: method, route, status_code
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on a fresh registry,
// together with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ToolExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "levelset_tool_executions_total",
				Help: "Total number of tool executions by tool and status",
			},
			[]string{"tool", "status"},
		),

		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "levelset_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"tool"},
		),

		StreamSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "levelset_stream_sessions_active",
				Help: "Current number of chat streams",
			},
		),

		StreamFrames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "levelset_stream_frames_total",
				Help: "Total number of frames sent to chat clients by type",
			},
			[]string{"type"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "levelset_http_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "route", "status_code"},
		),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveTool records one tool invocation.
func (m *Metrics) ObserveTool(name, status string, elapsed time.Duration) {
	m.ToolExecutions.WithLabelValues(name, status).Inc()
	m.ToolDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// StreamStarted increments the active stream gauge.
func (m *Metrics) StreamStarted() {
	m.StreamSessions.Inc()
}

// StreamEnded decrements the active stream gauge.
func (m *Metrics) StreamEnded() {
	m.StreamSessions.Dec()
}

// FrameSent counts one frame written to a client.
func (m *Metrics) FrameSent(frameType string) {
	m.StreamFrames.WithLabelValues(frameType).Inc()
}

// HTTPRequest counts one API request.
func (m *Metrics) HTTPRequest(method, route string, status int) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
