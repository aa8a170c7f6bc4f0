package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
)

type httpCollectors struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

func newHTTPCollectors(f promauto.Factory, cfg Config) *httpCollectors {
	return &httpCollectors{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   cfg.HTTPDurationBuckets,
		}, []string{"method", "route"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Requests currently being served.",
		}),
	}
}

// RecordHTTPRequest records a served request.
func (m *Manager) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.RecordHTTPRequestContext(context.Background(), method, route, status, duration)
}

// RecordHTTPRequestContext records a served request. When ctx carries a
// sampled span its ids become an exemplar on the latency histogram.
func (m *Manager) RecordHTTPRequestContext(ctx context.Context, method, route, status string, duration time.Duration) {
	if m.http == nil {
		return
	}
	m.http.requests.WithLabelValues(method, route, status).Inc()

	obs := m.http.latency.WithLabelValues(method, route)
	eo, ok := obs.(prometheus.ExemplarObserver)
	if exemplar := spanExemplar(ctx); ok && exemplar != nil {
		eo.ObserveWithExemplar(seconds(duration), exemplar)
		return
	}
	obs.Observe(seconds(duration))
}

// IncActiveConnections marks a request as started.
func (m *Manager) IncActiveConnections() {
	if m.http != nil {
		m.http.inFlight.Inc()
	}
}

// DecActiveConnections marks a request as finished.
func (m *Manager) DecActiveConnections() {
	if m.http != nil {
		m.http.inFlight.Dec()
	}
}

func spanExemplar(ctx context.Context) prometheus.Labels {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() || !sc.IsSampled() {
		return nil
	}
	return prometheus.Labels{"trace_id": sc.TraceID().String(), "span_id": sc.SpanID().String()}
}
