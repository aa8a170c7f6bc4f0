package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type validationCollectors struct {
	runs     prometheus.Histogram
	results  *prometheus.CounterVec
	score    prometheus.Histogram
	autoFix  *prometheus.CounterVec
	dispatch *prometheus.CounterVec
}

func newValidationCollectors(f promauto.Factory, cfg Config) *validationCollectors {
	return &validationCollectors{
		runs: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "run_duration_seconds",
			Help:      "Time spent evaluating a rule set against one entity.",
			Buckets:   cfg.ValidationDurationBuckets,
		}),
		results: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "results_total",
			Help:      "Rule results by status and severity.",
		}, []string{"status", "severity"}),
		score: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "quality_score",
			Help:      "Distribution of overall quality scores.",
			Buckets:   cfg.QualityScoreBuckets,
		}),
		autoFix: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "autofix_total",
			Help:      "Auto-fix attempts by outcome.",
		}, []string{"outcome"}),
		dispatch: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "action",
			Name:      "dispatched_total",
			Help:      "Actions handed to the dispatcher by type and outcome.",
		}, []string{"type", "outcome"}),
	}
}

// RecordValidationRun records one validation pass. The histogram count
// doubles as the run counter.
func (m *Manager) RecordValidationRun(duration time.Duration) {
	if m.validation == nil {
		return
	}
	m.validation.runs.Observe(seconds(duration))
}

// RecordValidationResult records one rule result.
func (m *Manager) RecordValidationResult(status, severity string) {
	if m.validation == nil {
		return
	}
	m.validation.results.WithLabelValues(status, severity).Inc()
}

// RecordQualityScore records an overall quality score.
func (m *Manager) RecordQualityScore(score int) {
	if m.validation == nil {
		return
	}
	m.validation.score.Observe(float64(score))
}

// RecordAutoFix records an auto-fix attempt.
func (m *Manager) RecordAutoFix(outcome string) {
	if m.validation == nil {
		return
	}
	m.validation.autoFix.WithLabelValues(outcome).Inc()
}

// RecordActionDispatch records an action handed to the dispatcher.
func (m *Manager) RecordActionDispatch(actionType, outcome string) {
	if m.validation == nil {
		return
	}
	m.validation.dispatch.WithLabelValues(actionType, outcome).Inc()
}
