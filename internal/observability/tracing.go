// Package observability wires OpenTelemetry tracing for the backend.
//
// Traces are exported over OTLP HTTP to a local collector or agent. An
// empty endpoint disables the exporter entirely; the rest of the code then
// traces against a no-op provider at negligible cost.
package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config for the trace exporter.
type Config struct {
	// Endpoint is the OTLP HTTP host:port. Empty disables tracing.
	Endpoint string
	// ServiceName labels the spans in the backend's APM view.
	ServiceName string
	// Environment tags spans with the deployment environment.
	Environment string
}

// Setup builds the tracer provider and registers it globally. The returned
// shutdown function flushes pending spans; it is safe to call even when
// tracing is disabled.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (trace.TracerProvider, func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		logger.Debug("tracing disabled, no otlp endpoint configured")
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		// Keep serving without traces rather than failing startup.
		logger.Warn("creating otlp exporter failed, tracing disabled", "error", err)
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	attrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(
			semconv.DeploymentEnvironmentName(cfg.Environment),
		))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	logger.Info("tracing enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return provider, provider.Shutdown, nil
}
