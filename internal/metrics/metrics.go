// Package metrics holds the Prometheus instruments for the chat stream.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signmaker"

// Stream outcomes.
const (
	OutcomeCompleted     = "completed"
	OutcomeCancelled     = "cancelled"
	OutcomeInvalid       = "invalid"
	OutcomeRateLimited   = "rate_limited"
	OutcomeQuota         = "quota_exhausted"
	OutcomeUpstreamError = "upstream_error"
	OutcomeRelayError    = "relay_error"
)

// StreamMetrics records chat stream activity.
type StreamMetrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	active         prometheus.Gauge
	bytesRelayed   prometheus.Counter
	contextRecords *prometheus.CounterVec
	firstByte      prometheus.Histogram
}

// NewStreamMetrics registers the stream instruments on a fresh registry,
// together with the Go runtime and process collectors.
func NewStreamMetrics() *StreamMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &StreamMetrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Chat requests by outcome",
		}, []string{"outcome"}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "active_streams",
			Help:      "Streams currently being relayed",
		}),
		bytesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "relayed_bytes_total",
			Help:      "Provider bytes relayed to clients",
		}),
		contextRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "context",
			Name:      "records_total",
			Help:      "Memory records announced in metadata events",
		}, []string{"scope"}),
		firstByte: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "first_byte_seconds",
			Help:      "Time from request start to the first provider byte",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 20},
		}),
	}
}

// Request counts a finished request.
func (m *StreamMetrics) Request(outcome string) {
	m.requests.WithLabelValues(outcome).Inc()
}

// StreamStarted marks a stream as active and returns the function that
// marks it finished.
func (m *StreamMetrics) StreamStarted() func() {
	m.active.Inc()
	return m.active.Dec
}

// Relayed adds relayed provider bytes.
func (m *StreamMetrics) Relayed(n int64) {
	if n > 0 {
		m.bytesRelayed.Add(float64(n))
	}
}

// ContextRecords adds announced records for a scope.
func (m *StreamMetrics) ContextRecords(scope string, n int) {
	if n > 0 {
		m.contextRecords.WithLabelValues(scope).Add(float64(n))
	}
}

// FirstByte observes the time to first provider byte.
func (m *StreamMetrics) FirstByte(d time.Duration) {
	m.firstByte.Observe(d.Seconds())
}

// Registry exposes the underlying registry.
func (m *StreamMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *StreamMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
