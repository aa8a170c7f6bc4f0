package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type busCollectors struct {
	publish  *prometheus.CounterVec
	retries  prometheus.Counter
	degraded prometheus.Gauge
	changes  *prometheus.CounterVec
}

func newBusCollectors(f promauto.Factory) *busCollectors {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: namespace, Subsystem: "eventbus", Name: name, Help: help}
	}
	return &busCollectors{
		publish: f.NewCounterVec(prometheus.CounterOpts(opts(
			"publish_total", "Publish attempts by final status.")), []string{"status"}),
		retries: f.NewCounter(prometheus.CounterOpts(opts(
			"publish_retries_total", "Publish retries after a transport failure."))),
		degraded: f.NewGauge(prometheus.GaugeOpts(opts(
			"degraded", "1 while the publisher cannot reach its transport."))),
		changes: f.NewCounterVec(prometheus.CounterOpts(opts(
			"mode_changes_total", "Entries into and exits from degraded mode.")), []string{"direction"}),
	}
}

// RecordPublish records the final status of one publish.
func (m *Manager) RecordPublish(status string) {
	if m.bus == nil {
		return
	}
	m.bus.publish.WithLabelValues(status).Inc()
}

// RecordRetry records a publish retry.
func (m *Manager) RecordRetry() {
	if m.bus == nil {
		return
	}
	m.bus.retries.Inc()
}

// SetDegradedMode sets the degraded gauge.
func (m *Manager) SetDegradedMode(active bool) {
	if m.bus == nil {
		return
	}
	v := 0.0
	if active {
		v = 1
	}
	m.bus.degraded.Set(v)
}

// RecordOutage records an entry into degraded mode.
func (m *Manager) RecordOutage() {
	if m.bus == nil {
		return
	}
	m.bus.changes.WithLabelValues("outage").Inc()
}

// RecordRecovery records an exit from degraded mode.
func (m *Manager) RecordRecovery() {
	if m.bus == nil {
		return
	}
	m.bus.changes.WithLabelValues("recovery").Inc()
}
