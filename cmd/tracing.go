package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Trace exporters accepted by --trace.
const (
	TraceNone   = "none"
	TraceStdout = "stdout"
	TraceOTLP   = "otlp"
)

var validTraceExporters = map[string]bool{TraceNone: true, TraceStdout: true, TraceOTLP: true}

// newTracerProvider builds a provider exporting oracle spans as cfg selects.
// It returns nil for TraceNone. Stdout spans are written to w.
func newTracerProvider(ctx context.Context, cfg TracingConfig, w io.Writer) (*sdktrace.TracerProvider, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch cfg.Exporter {
	case TraceNone, "":
		return nil, nil
	case TraceStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w))
	case TraceOTLP:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown trace exporter %q (valid: none, stdout, otlp)", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s trace exporter: %w", cfg.Exporter, err)
	}

	res := resource.NewWithAttributes("",
		attribute.String("service.name", "schedbridge"),
	)
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

// startTracing installs the global tracer provider for cfg. The returned func
// flushes pending spans and must run before exit.
func startTracing(cfg TracingConfig, w io.Writer, log logrus.FieldLogger) (func(), error) {
	tp, err := newTracerProvider(context.Background(), cfg, w)
	if err != nil || tp == nil {
		return func() {}, err
	}
	otel.SetTracerProvider(tp)
	log.WithFields(logrus.Fields{"exporter": cfg.Exporter, "endpoint": cfg.Endpoint}).Info("tracing enabled")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("flushing traces failed")
		}
	}, nil
}
