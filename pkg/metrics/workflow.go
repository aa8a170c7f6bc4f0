package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type workflowCollectors struct {
	attempts *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	changes  *prometheus.CounterVec
}

func newWorkflowCollectors(f promauto.Factory, cfg Config) *workflowCollectors {
	return &workflowCollectors{
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "transition_attempts_total",
			Help:      "Transition attempts by workflow and outcome.",
		}, []string{"workflow", "outcome"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "transition_duration_seconds",
			Help:      "Time spent evaluating one transition attempt.",
			Buckets:   cfg.TransitionDurationBuckets,
		}, []string{"outcome"}),
		changes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "definition_changes_total",
			Help:      "Workflow and rule definition mutations.",
		}, []string{"kind", "operation"}),
	}
}

// RecordTransitionAttempt records the outcome of one transition attempt.
func (m *Manager) RecordTransitionAttempt(workflowID, outcome string, duration time.Duration) {
	if m.workflow == nil {
		return
	}
	m.workflow.attempts.WithLabelValues(workflowID, outcome).Inc()
	m.workflow.latency.WithLabelValues(outcome).Observe(seconds(duration))
}

// RecordDefinitionChange records a create, update or delete of a definition.
func (m *Manager) RecordDefinitionChange(kind, operation string) {
	if m.workflow == nil {
		return
	}
	m.workflow.changes.WithLabelValues(kind, operation).Inc()
}
