package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"

	"github.com/tonanhngo/voice-ehr/internal/config"
)

// Telemetry owns the global tracer and meter providers for a process.
type Telemetry struct {
	tracer  *sdktrace.TracerProvider
	meter   *sdkmetric.MeterProvider
	metrics http.Handler
	closers []io.Closer
}

// Setup installs OpenTelemetry providers as the globals. Traces go to OTLP
// when an endpoint is configured, otherwise to trace_file if set.
func Setup(ctx context.Context, cfg config.TelemetryConfig, service, version string, logger *slog.Logger) (*Telemetry, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(service),
			semconv.ServiceVersion(version),
			attribute.String("host.name", hostname()),
		),
	)
	if err != nil {
		return nil, err
	}

	t := &Telemetry{}
	if err := t.initTracer(ctx, cfg, res, logger); err != nil {
		return nil, err
	}
	otel.SetTracerProvider(t.tracer)

	t.initMetrics(cfg, res, logger)
	otel.SetMeterProvider(t.meter)
	return t, nil
}

func (t *Telemetry) initTracer(ctx context.Context, cfg config.TelemetryConfig, res *resource.Resource, logger *slog.Logger) error {
	if endpoint := strings.TrimSpace(cfg.OTLPEndpoint); endpoint != "" {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("create otlp exporter: %w", err)
		}
		t.tracer = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		logger.Info("telemetry initialized", slog.String("exporter", "otlp"), slog.String("endpoint", endpoint))
		return nil
	}

	if path := strings.TrimSpace(cfg.TraceFile); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create trace file: %w", err)
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(f), stdouttrace.WithPrettyPrint())
		if err != nil {
			f.Close()
			return fmt.Errorf("create stdout exporter: %w", err)
		}
		t.closers = append(t.closers, f)
		t.tracer = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		logger.Info("telemetry initialized", slog.String("exporter", "stdout"), slog.String("file", path))
		return nil
	}

	t.tracer = sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	return nil
}

func (t *Telemetry) initMetrics(cfg config.TelemetryConfig, res *resource.Resource, logger *slog.Logger) {
	if strings.TrimSpace(cfg.PrometheusBind) == "" {
		t.meter = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
		return
	}
	registry := promclient.NewRegistry()
	promExporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		logger.Warn("failed to initialize prometheus exporter", slog.String("error", err.Error()))
		t.meter = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
		return
	}
	t.meter = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
		sdkmetric.WithResource(res),
	)
	t.metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// MetricsHandler serves the Prometheus exposition, or nil when metrics are
// not exported.
func (t *Telemetry) MetricsHandler() http.Handler {
	return t.metrics
}

// Shutdown flushes pending spans and metrics.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if err := t.meter.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := t.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	for _, c := range t.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ParseLevel maps a log_level setting to a slog level; unknown values yield
// info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}
