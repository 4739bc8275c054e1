package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Supported OpenTelemetry log exporters.
const (
	ExporterNone     = ""
	ExporterStdout   = "stdout"
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
)

// newLoggerProvider builds an SDK logger provider that drops records below level
// before they reach the exporter.
func newLoggerProvider(ctx context.Context, opts Options, stdout io.Writer) (*sdklog.LoggerProvider, error) {
	var processor sdklog.Processor
	switch opts.Exporter {
	case ExporterStdout:
		exporter, err := stdoutlog.New(stdoutlog.WithWriter(stdout))
		if err != nil {
			return nil, fmt.Errorf("creating stdout log exporter: %w", err)
		}
		processor = sdklog.NewSimpleProcessor(exporter)
	case ExporterOTLPGRPC:
		var grpcOpts []otlploggrpc.Option
		if opts.Endpoint != "" {
			grpcOpts = append(grpcOpts, otlploggrpc.WithEndpoint(opts.Endpoint))
		}
		if opts.Insecure {
			grpcOpts = append(grpcOpts, otlploggrpc.WithInsecure())
		}
		exporter, err := otlploggrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP gRPC log exporter: %w", err)
		}
		processor = sdklog.NewBatchProcessor(exporter)
	case ExporterOTLPHTTP:
		var httpOpts []otlploghttp.Option
		if opts.Endpoint != "" {
			httpOpts = append(httpOpts, otlploghttp.WithEndpoint(opts.Endpoint))
		}
		if opts.Insecure {
			httpOpts = append(httpOpts, otlploghttp.WithInsecure())
		}
		exporter, err := otlploghttp.New(ctx, httpOpts...)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP HTTP log exporter: %w", err)
		}
		processor = sdklog.NewBatchProcessor(exporter)
	default:
		return nil, fmt.Errorf("unsupported log exporter %q (expected: %s, %s, %s)",
			opts.Exporter, ExporterStdout, ExporterOTLPGRPC, ExporterOTLPHTTP)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(minsev.NewLogProcessor(processor, minSeverity(opts.Level))),
	)
	return provider, nil
}

// minSeverity adapts a slog level to the minsev.Severitier interface.
type minSeverity slog.Level

// Severity maps the slog level to the OpenTelemetry severity the otelslog bridge
// assigns to records of that level.
func (s minSeverity) Severity() log.Severity {
	switch level := slog.Level(s); {
	case level >= slog.LevelError:
		return log.SeverityError
	case level >= slog.LevelWarn:
		return log.SeverityWarn
	case level >= slog.LevelInfo:
		return log.SeverityInfo
	default:
		return log.SeverityDebug
	}
}
