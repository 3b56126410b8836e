package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Main runs a package's tests. Spans emitted while they run are written as
// OTel JSON to the file named by the "-scan-trace" flag or the
// SCANCORE_TEST_TRACE environment variable.
//
// Use it from TestMain:
//
//	func TestMain(m *testing.M) {
//		test.Main(m)
//	}
//
// Main panics if the trace output can't be set up.
func Main(m *testing.M, opts ...Option) {
	var h harness
	code := 0
	defer func() {
		if err := h.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "test teardown: %v\n", err)
			code++
		}
		if code != 0 {
			os.Exit(code)
		}
	}()

	if p := os.Getenv("SCANCORE_TEST_TRACE"); p != "" {
		opts = append([]Option{TraceTo(p)}, opts...)
	}
	flag.Func("scan-trace", "append spans to this file as OTel JSON", func(p string) error {
		opts = append(opts, TraceTo(p))
		return nil
	})
	flag.Parse()
	for _, o := range opts {
		if err := o(&h); err != nil {
			panic(err)
		}
	}
	if err := h.start(); err != nil {
		panic(err)
	}
	code = m.Run()
}

// Harness is the per-binary state Main sets up and tears down.
type harness struct {
	out      *os.File
	provider *sdktrace.TracerProvider
}

// Option configures [Main].
type Option func(*harness) error

// TraceTo arranges for spans to be appended to the file at "path". A later
// TraceTo replaces an earlier one; an empty path turns tracing off.
func TraceTo(path string) Option {
	return func(h *harness) error {
		var err error
		if h.out != nil {
			err = h.out.Close()
			h.out = nil
		}
		if path == "" {
			return err
		}
		f, openErr := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
		h.out = f
		return errors.Join(err, openErr)
	}
}

func (h *harness) start() error {
	if h.out == nil {
		return nil
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(h.out))
	if err != nil {
		return fmt.Errorf("trace exporter: %w", err)
	}
	r, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(attribute.String("test.start", time.Now().Format(time.RFC3339))))
	if err != nil {
		return fmt.Errorf("trace resource: %w", err)
	}
	h.provider = sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(r),
		sdktrace.WithBatcher(exp),
	)
	otel.SetTracerProvider(h.provider)
	return nil
}

// Close flushes any buffered spans and closes the trace file.
func (h *harness) Close() error {
	if h.out == nil {
		return nil
	}
	var errs []error
	if h.provider != nil {
		ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
		errs = append(errs, h.provider.Shutdown(ctx))
		done()
	}
	errs = append(errs, h.out.Close())
	return errors.Join(errs...)
}
