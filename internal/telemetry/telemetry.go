// Package telemetry wires the OpenTelemetry trace pipeline. Tracing stays
// off unless an OTLP endpoint is configured; callers always get a usable
// shutdown func.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const shutdownTimeout = 5 * time.Second

// Config holds trace exporter configuration.
type Config struct {
	// OTLPEndpoint is the host:port of an OTLP/HTTP collector. Empty
	// disables tracing.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	// Insecure switches the exporter to plain HTTP.
	Insecure bool `yaml:"insecure"`
}

// Enabled reports whether an exporter endpoint is configured.
func (c Config) Enabled() bool { return c.OTLPEndpoint != "" }

// Setup installs the global tracer provider and returns its shutdown func.
// With no endpoint configured it installs nothing and the shutdown func is
// a no-op.
func Setup(ctx context.Context, cfg Config, serviceVersion string, logger *slog.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled() {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "garmin-mcp"),
			attribute.String("service.version", serviceVersion),
		)),
	)
	otel.SetTracerProvider(tp)
	logger.Info("trace exporter configured", "endpoint", cfg.OTLPEndpoint)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}
