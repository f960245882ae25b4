package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/keysound/internal/config"
)

func TestInit_DisabledInstallsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TracingConfig{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, span := Tracer("test").Start(context.Background(), "noop")
	require.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestInit_StdoutToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "spans.json")
	shutdown, err := Init(context.Background(), config.TracingConfig{
		Enabled:  true,
		Exporter: ExporterStdout,
		FilePath: path,
	})
	require.NoError(t, err)
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	_, span := Tracer("test").Start(context.Background(), "keypress")
	require.True(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "keypress")
	require.Contains(t, string(data), ServiceName)
}

func TestInit_UnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), config.TracingConfig{Enabled: true, Exporter: "zipkin"})
	require.ErrorContains(t, err, "zipkin")
}

func TestNewProvider_AttachesServiceName(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := NewProvider(sdktrace.WithSpanProcessor(sr))
	_, span := tp.Tracer("test").Start(context.Background(), "resolve")
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "resolve", spans[0].Name())
	v, ok := spans[0].Resource().Set().Value("service.name")
	require.True(t, ok)
	require.Equal(t, ServiceName, v.AsString())
}
