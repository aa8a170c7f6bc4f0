// Package tracing installs the process-wide OpenTelemetry tracer provider
// used by the workflow and validation engines and the HTTP middleware.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/goclaw/taskflow/config"
	"github.com/goclaw/taskflow/pkg/logger"
)

// ShutdownFunc flushes pending spans and releases the provider.
type ShutdownFunc func(ctx context.Context) error

// Option customizes Init.
type Option func(*settings)

type settings struct {
	log      logger.Logger
	exporter sdktrace.SpanExporter
}

// WithLogger reports exporter failures to log.
func WithLogger(log logger.Logger) Option {
	return func(s *settings) { s.log = log }
}

// WithExporter uses exp instead of dialing the configured OTLP endpoint.
func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(s *settings) { s.exporter = exp }
}

// Init installs the global propagator and tracer provider. When tracing is
// disabled a no-op provider is installed but W3C trace context is still
// propagated, so upstream traces pass through.
func Init(ctx context.Context, cfg config.TracingConfig, app config.AppConfig, opts ...Option) (ShutdownFunc, error) {
	s := settings{log: logger.Nop()}
	for _, opt := range opts {
		opt(&s)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	endpoint := normalizeEndpoint(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("tracing endpoint cannot be empty")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("tracing timeout must be > 0")
	}

	exp := s.exporter
	if exp == nil {
		var err error
		if exp, err = dialOTLP(ctx, endpoint, cfg); err != nil {
			return nil, fmt.Errorf("create tracing exporter: %w", err)
		}
	}
	exp = &tolerantExporter{next: exp, endpoint: endpoint, log: s.log}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(app.Name),
		semconv.ServiceVersion(app.Version),
		attribute.String("deployment.environment.name", app.Environment),
	))
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("create tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg)),
	)
	otel.SetTracerProvider(tp)
	s.log.Info("Tracing enabled", "endpoint", endpoint, "sampler", cfg.Sampler, "sample_rate", cfg.SampleRate)

	return func(ctx context.Context) error {
		var errs []error
		if err := tp.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush spans: %w", err))
		}
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
		return errors.Join(errs...)
	}, nil
}

func dialOTLP(ctx context.Context, endpoint string, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithTimeout(cfg.Timeout),
		otlptracegrpc.WithInsecure(),
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}

// tolerantExporter logs failed exports and reports success to the batcher,
// so a collector outage never reaches request handling.
type tolerantExporter struct {
	next     sdktrace.SpanExporter
	endpoint string
	log      logger.Logger
	dropped  atomic.Int64
}

func (e *tolerantExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if err := e.next.ExportSpans(ctx, spans); err != nil {
		total := e.dropped.Add(int64(len(spans)))
		e.log.Warn("Span export failed",
			"error", err,
			"endpoint", e.endpoint,
			"spans", len(spans),
			"dropped_total", total,
		)
	}
	return nil
}

func (e *tolerantExporter) Shutdown(ctx context.Context) error {
	return e.next.Shutdown(ctx)
}

// sampler maps the configured name to a sampler. Unknown names fall back to
// parent based ratio sampling.
func sampler(cfg config.TracingConfig) sdktrace.Sampler {
	rate := min(max(cfg.SampleRate, 0), 1)
	switch strings.ToLower(strings.TrimSpace(cfg.Sampler)) {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(rate)
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// normalizeEndpoint reduces a collector URL to the host:port the gRPC
// exporter dials.
func normalizeEndpoint(endpoint string) string {
	raw := strings.TrimSpace(endpoint)
	if !strings.Contains(raw, "://") {
		return raw
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return raw
}
