package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// instrumentationName identifies this service's records in OpenTelemetry backends.
const instrumentationName = "github.com/florianilch/gemini-proxy"

// Options configures the logging pipeline.
type Options struct {
	Level  slog.Level
	Format string // text | json

	// Exporter optionally forwards records to OpenTelemetry, see Exporter* constants.
	Exporter string
	Endpoint string
	Insecure bool
}

// Instrument installs the default slog logger and the global W3C propagator.
// The returned function flushes and stops any OpenTelemetry exporter; it is always non-nil.
func Instrument(ctx context.Context, opts Options) (func(context.Context) error, error) {
	return instrument(ctx, opts, os.Stdout)
}

func instrument(ctx context.Context, opts Options, stdout io.Writer) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	stdoutHandler, err := newStdoutHandler(opts.Level, opts.Format, stdout)
	if err != nil {
		return noop, err
	}

	var handler slog.Handler = newContextHandler(stdoutHandler)
	shutdown := noop

	if opts.Exporter != ExporterNone {
		provider, err := newLoggerProvider(ctx, opts, stdout)
		if err != nil {
			return noop, err
		}
		// otelslog reads trace context from ctx itself, only the stdout side needs enrichment
		handler = newFanoutHandler(handler, otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider)))
		shutdown = provider.Shutdown
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	slog.SetDefault(slog.New(handler))

	return shutdown, nil
}

// newStdoutHandler creates a handler for human-readable logs.
func newStdoutHandler(level slog.Level, logFormat string, w io.Writer) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	switch strings.ToLower(logFormat) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q (expected: json, text)", logFormat)
	}

	return handler, nil
}
