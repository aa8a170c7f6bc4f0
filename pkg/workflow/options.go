package workflow

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

// WithEvents sets the emitter for transition and definition events. Emit
// runs on the caller's goroutine, so emitter must not block; wrap a
// Publisher in an eventbus.AsyncEmitter.
func WithEvents(emitter eventbus.Emitter) Option {
	return func(e *Engine) {
		if emitter != nil {
			e.events = emitter
		}
	}
}

// WithStatusField sets the entity path holding the current status.
func WithStatusField(path string) Option {
	return func(e *Engine) {
		if path != "" {
			e.statusField = path
		}
	}
}

// WithEvaluator replaces the condition evaluator, typically to share custom
// evaluators with the validation engine.
func WithEvaluator(ev *condition.Evaluator) Option {
	return func(e *Engine) {
		if ev != nil {
			e.evaluator = ev
		}
	}
}

// WithClock overrides the time source used for definition timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
