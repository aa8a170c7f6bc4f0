package validation

import (
	"time"

	"github.com/goclaw/taskflow/pkg/condition"
	"github.com/goclaw/taskflow/pkg/eventbus"
	"github.com/goclaw/taskflow/pkg/logger"
)

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.logger = log
		}
	}
}

// WithMetrics sets the metrics recorder for the engine.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(e *Engine) {
		if metrics != nil {
			e.metrics = metrics
		}
	}
}

// WithEvents sets the emitter for validation events. It must not block.
func WithEvents(emitter eventbus.Emitter) Option {
	return func(e *Engine) {
		if emitter != nil {
			e.events = emitter
		}
	}
}

// WithEvaluator replaces the condition evaluator. Register custom rule
// evaluators on it; custom conditions without one always fail.
func WithEvaluator(ev *condition.Evaluator) Option {
	return func(e *Engine) {
		if ev != nil {
			e.evaluator = ev
		}
	}
}

// WithAutoFix enables applying auto_fix actions. It is off by default.
func WithAutoFix(enabled bool) Option {
	return func(e *Engine) {
		e.autoFix.Store(enabled)
	}
}

// WithClock overrides the time source used for rule timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
