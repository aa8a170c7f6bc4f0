package workflow

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "taskflow.workflow"

const (
	spanAttempt   = "workflow.transition.attempt"
	spanAvailable = "workflow.transition.available"
	spanAuto      = "workflow.transition.auto"
	spanMutate    = "workflow.definition.mutate"
)

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
