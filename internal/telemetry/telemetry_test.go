package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/yelinaung/split-ledger/internal/config"
	"go.opentelemetry.io/otel"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	mp := otel.GetMeterProvider()
	prop := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		if otel.GetTracerProvider() != tp {
			otel.SetTracerProvider(tp)
		}
		if otel.GetMeterProvider() != mp {
			otel.SetMeterProvider(mp)
		}
		if otel.GetTextMapPropagator() != prop {
			otel.SetTextMapPropagator(prop)
		}
	})
}

func TestSetup(t *testing.T) {
	ctx := context.Background()

	t.Run("none leaves the global providers alone", func(t *testing.T) {
		restoreGlobals(t)
		before := otel.GetTracerProvider()

		shutdown, err := Setup(ctx, &config.Config{OTelExporter: config.ExporterNone})
		require.NoError(t, err)
		require.Equal(t, before, otel.GetTracerProvider())
		require.NoError(t, shutdown(ctx))
	})

	t.Run("stdout exports spans on shutdown", func(t *testing.T) {
		restoreGlobals(t)
		var out bytes.Buffer

		shutdown, err := setup(ctx, &config.Config{
			OTelExporter: config.ExporterStdout,
			ServiceName:  "split-ledger-test",
		}, &out)
		require.NoError(t, err)

		_, span := otel.Tracer("telemetry-test").Start(ctx, "ledger.TestSpan")
		span.End()
		counter, err := otel.Meter("telemetry-test").Int64Counter("test.counter")
		require.NoError(t, err)
		counter.Add(ctx, 3)

		require.NoError(t, shutdown(ctx))
		require.Contains(t, out.String(), "ledger.TestSpan")
		require.Contains(t, out.String(), "split-ledger-test")
		require.Contains(t, out.String(), "test.counter")
	})

	t.Run("unknown exporter", func(t *testing.T) {
		restoreGlobals(t)
		_, err := setup(ctx, &config.Config{OTelExporter: "zipkin"}, &bytes.Buffer{})
		require.Error(t, err)
	})
}

func TestNewExporters_OTLP(t *testing.T) {
	ctx := context.Background()

	for _, proto := range []string{"http", "grpc"} {
		t.Run(proto, func(t *testing.T) {
			spans, metrics, err := newExporters(ctx, &config.Config{
				OTelExporter:     config.ExporterOTLP,
				OTelEndpoint:     "localhost:4318",
				OTelOTLPProtocol: proto,
			}, &bytes.Buffer{})
			require.NoError(t, err)
			require.NotNil(t, spans)
			require.NotNil(t, metrics)

			_ = spans.Shutdown(ctx)
			_ = metrics.Shutdown(ctx)
		})
	}
}
