package validation

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "taskflow.validation"

const (
	spanRun     = "validation.run"
	spanAutoFix = "validation.autofix"
)

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
