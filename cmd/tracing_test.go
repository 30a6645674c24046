package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestNewTracerProviderExportsSpans(t *testing.T) {
	var buf bytes.Buffer

	tp, err := newTracerProvider(&buf)
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "pipeline.ApplyChangeSet")
	span.End()

	require.NoError(t, tp.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name":"pipeline.ApplyChangeSet"`)
	assert.Contains(t, buf.String(), serviceName)
}

func TestConfigureTracingWritesTraceFile(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		closers = nil
	})

	closers = nil
	path := filepath.Join(t.TempDir(), "logs", "traces.jsonl")

	require.NoError(t, configureTracing(path))
	require.Len(t, closers, 2)

	_, span := otel.Tracer("test").Start(context.Background(), "pipeline.ProcessRequest")
	span.End()

	require.NoError(t, teardown())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "pipeline.ProcessRequest")
}

func TestConfigureTracingDisabled(t *testing.T) {
	closers = nil
	t.Cleanup(func() { closers = nil })

	require.NoError(t, configureTracing(""))
	assert.Empty(t, closers)
}
