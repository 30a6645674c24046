package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "jarvis"

// newTracerProvider exports pipeline spans as JSON lines to w.
func newTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	), nil
}

// configureTracing installs the global tracer provider writing to the
// rotated trace file at path. An empty path leaves tracing disabled.
func configureTracing(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	traceWriter := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	tp, err := newTracerProvider(traceWriter)
	if err != nil {
		slog.Error("Failed to configure tracing", "path", path, "error", err)
		return err
	}

	otel.SetTracerProvider(tp)

	closers = append(closers,
		func() error { return tp.Shutdown(context.Background()) },
		traceWriter.Close,
	)

	return nil
}
