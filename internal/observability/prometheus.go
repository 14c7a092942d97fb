// Package observability exports client metrics in the Prometheus format.
package observability

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lexichat/internal/core"
	"lexichat/internal/llmclient"
	"lexichat/internal/sse"
)

const namespace = "lexichat"

// Metrics holds the client collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	gatherer  prometheus.Gatherer
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	frames    *prometheus.CounterVec
	fragments prometheus.Counter
}

// NewPrometheusHooks registers the collectors on reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewPrometheusHooks(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		gatherer: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Completion endpoint requests by operation and outcome.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time until response headers arrived.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_frames_total",
			Help:      "Stream lines by parse outcome.",
		}, []string{"kind"}),
		fragments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_fragments_total",
			Help:      "Text fragments delivered to callers.",
		}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.duration, m.frames, m.fragments} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns request lifecycle hooks feeding the request metrics.
func (m *Metrics) Hooks() llmclient.Hooks {
	if m == nil {
		return llmclient.Hooks{}
	}
	return llmclient.Hooks{
		OnRequestEnd: func(_ context.Context, info llmclient.ResponseInfo) {
			m.requests.WithLabelValues(info.Operation, statusLabel(info)).Inc()
			m.duration.WithLabelValues(info.Operation).Observe(info.Duration.Seconds())
		},
	}
}

// ObserveFrame counts one parsed stream line. Delta frames also count as
// delivered fragments.
func (m *Metrics) ObserveFrame(kind sse.Kind) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(kind.String()).Inc()
	if kind == sse.KindDelta {
		m.fragments.Inc()
	}
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// statusLabel is the HTTP status, or "error" when no response arrived.
func statusLabel(info llmclient.ResponseInfo) string {
	if info.StatusCode > 0 {
		return strconv.Itoa(info.StatusCode)
	}
	var clientErr *core.ClientError
	if errors.As(info.Err, &clientErr) && clientErr.Type == core.ErrorTypeTransport {
		return "transport_error"
	}
	return "error"
}
