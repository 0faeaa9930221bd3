// Package telemetry installs the OpenTelemetry tracer and meter providers.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gitlab.com/yelinaung/split-ledger/internal/config"
	"gitlab.com/yelinaung/split-ledger/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Shutdown flushes and stops the installed providers.
type Shutdown func(ctx context.Context) error

// Setup installs global providers exporting to the backend chosen in cfg.
// With the none exporter it installs nothing and the global no-op providers stay.
func Setup(ctx context.Context, cfg *config.Config) (Shutdown, error) {
	return setup(ctx, cfg, os.Stdout)
}

func setup(ctx context.Context, cfg *config.Config, stdout io.Writer) (Shutdown, error) {
	if cfg.OTelExporter == config.ExporterNone {
		return func(context.Context) error { return nil }, nil
	}

	spanExporter, metricExporter, err := newExporters(ctx, cfg, stdout)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Log.Info().
		Str("exporter", cfg.OTelExporter).
		Str("service", cfg.ServiceName).
		Msg("Telemetry enabled")

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func newExporters(ctx context.Context, cfg *config.Config, stdout io.Writer) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	switch cfg.OTelExporter {
	case config.ExporterStdout:
		spans, err := stdouttrace.New(stdouttrace.WithWriter(stdout))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		metrics, err := stdoutmetric.New(stdoutmetric.WithWriter(stdout))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
		}
		return spans, metrics, nil

	case config.ExporterOTLP:
		if cfg.OTelOTLPProtocol == "grpc" {
			spans, err := otlptracegrpc.New(ctx,
				otlptracegrpc.WithEndpoint(cfg.OTelEndpoint),
				otlptracegrpc.WithInsecure())
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create otlp grpc trace exporter: %w", err)
			}
			metrics, err := otlpmetricgrpc.New(ctx,
				otlpmetricgrpc.WithEndpoint(cfg.OTelEndpoint),
				otlpmetricgrpc.WithInsecure())
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create otlp grpc metric exporter: %w", err)
			}
			return spans, metrics, nil
		}

		spans, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.OTelEndpoint),
			otlptracehttp.WithInsecure())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create otlp http trace exporter: %w", err)
		}
		metrics, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(cfg.OTelEndpoint),
			otlpmetrichttp.WithInsecure())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create otlp http metric exporter: %w", err)
		}
		return spans, metrics, nil
	}
	return nil, nil, fmt.Errorf("unknown telemetry exporter %q", cfg.OTelExporter)
}
