// Package observability configures process-wide logging.
//
// Logs always go to stderr through a slog text or JSON handler. When an
// exporter is selected, records are additionally emitted as OpenTelemetry log
// records through the otelslog bridge.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const instrumentationName = "github.com/florianilch/cardboard"

// Exporter names accepted by Instrument.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// ShutdownFunc flushes and releases telemetry resources.
type ShutdownFunc func(context.Context) error

// Instrument installs the default slog logger. format is "text" or "json";
// exporter is one of the Exporter constants. The returned ShutdownFunc must be
// called before exit to flush exported records.
func Instrument(ctx context.Context, level slog.Level, format, exporter string) (ShutdownFunc, error) {
	return instrument(ctx, os.Stderr, level, format, exporter)
}

func instrument(ctx context.Context, w io.Writer, level slog.Level, format, exporter string) (ShutdownFunc, error) {
	console, err := consoleHandler(w, level, format)
	if err != nil {
		return nil, err
	}

	if exporter == "" || exporter == ExporterNone {
		slog.SetDefault(slog.New(console))
		return func(context.Context) error { return nil }, nil
	}

	logExporter, err := newExporter(ctx, exporter)
	if err != nil {
		return nil, err
	}

	var processor sdklog.Processor
	if exporter == ExporterStdout {
		processor = sdklog.NewSimpleProcessor(logExporter)
	} else {
		processor = sdklog.NewBatchProcessor(logExporter)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(minsev.NewLogProcessor(processor, severity(level))),
	)
	global.SetLoggerProvider(provider)

	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		// Route SDK errors to the console only; the exporter may be the one failing.
		_ = console.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelWarn, "opentelemetry error: "+err.Error(), 0))
	}))

	bridge := otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider))
	slog.SetDefault(slog.New(fanout{console, bridge}))

	return func(ctx context.Context) error {
		return errors.Join(provider.ForceFlush(ctx), provider.Shutdown(ctx))
	}, nil
}

func consoleHandler(w io.Writer, level slog.Level, format string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

func newExporter(ctx context.Context, exporter string) (sdklog.Exporter, error) {
	switch exporter {
	case ExporterStdout:
		return stdoutlog.New(stdoutlog.WithWriter(os.Stdout))
	case ExporterOTLPHTTP:
		return otlploghttp.New(ctx)
	case ExporterOTLPGRPC:
		return otlploggrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported telemetry exporter: %s", exporter)
	}
}

// severity maps a slog level to the minimum OpenTelemetry severity.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
