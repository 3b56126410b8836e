package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/quay/scancore"
	"github.com/quay/scancore/toolkit/log"
)

// SetupTelemetry installs the default slog handler and, if an OTLP endpoint
// is configured in the environment, trace, metric and log exporters. The
// returned function flushes and shuts everything down.
//
// The exporters read their own settings (OTEL_EXPORTER_OTLP_ENDPOINT and
// friends); OTEL_EXPORTER_OTLP_PROTOCOL picks "grpc" or "http/protobuf".
func setupTelemetry(ctx context.Context, verbose bool) (func(context.Context) error, error) {
	lvl := slog.LevelInfo
	if verbose {
		lvl = slog.LevelDebug
	}
	text := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		slog.SetDefault(slog.New(log.WrapHandler(text)))
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", "scanctl"),
		attribute.String("service.version", scancore.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	grpc := os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL") == "grpc"

	var texp sdktrace.SpanExporter
	var mexp sdkmetric.Exporter
	var lexp sdklog.Exporter
	if grpc {
		texp, err = otlptracegrpc.New(ctx)
		if err == nil {
			mexp, err = otlpmetricgrpc.New(ctx)
		}
		if err == nil {
			lexp, err = otlploggrpc.New(ctx)
		}
	} else {
		texp, err = otlptracehttp.New(ctx)
		if err == nil {
			mexp, err = otlpmetrichttp.New(ctx)
		}
		if err == nil {
			lexp, err = otlploghttp.New(ctx)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("telemetry: exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(texp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(mexp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(lexp)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)

	slog.SetDefault(slog.New(log.WrapHandler(log.Fanout(
		text,
		otelslog.NewHandler("github.com/quay/scancore/cmd/scanctl", otelslog.WithLoggerProvider(lp)),
	))))
	slog.DebugContext(ctx, "telemetry exporters configured", "grpc", grpc)

	return func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
			lp.Shutdown(ctx),
		)
	}, nil
}
