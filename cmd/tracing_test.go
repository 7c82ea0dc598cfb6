package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracerProvider_NoneDisablesTracing(t *testing.T) {
	tp, err := newTracerProvider(context.Background(), TracingConfig{Exporter: TraceNone}, nil)
	require.NoError(t, err)
	assert.Nil(t, tp)
}

func TestNewTracerProvider_UnknownExporter(t *testing.T) {
	_, err := newTracerProvider(context.Background(), TracingConfig{Exporter: "zipkin"}, nil)
	assert.Error(t, err)
}

func TestNewTracerProvider_StdoutExportsSpansOnShutdown(t *testing.T) {
	var out bytes.Buffer
	tp, err := newTracerProvider(context.Background(), TracingConfig{Exporter: TraceStdout}, &out)
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := tp.Tracer("schedbridge/oracle").Start(context.Background(), "OllamaClient.Generate")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	assert.Contains(t, out.String(), "OllamaClient.Generate")
	assert.Contains(t, out.String(), "schedbridge")
}

func TestStartTracing_NoneIsNoop(t *testing.T) {
	log, hook := test.NewNullLogger()
	flush, err := startTracing(TracingConfig{Exporter: TraceNone}, nil, log)
	require.NoError(t, err)
	flush()
	assert.Empty(t, hook.AllEntries())
}
