package instrumentation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the meter and tracer providers for one listunsub process.
// A Provider built from a disabled Config holds neither and hands out a
// no-op Metrics recorder.
type Provider struct {
	meters     *metric.MeterProvider
	tracers    *sdktrace.TracerProvider
	metrics    *Metrics
	prometheus bool
}

// NewProvider builds the providers described by cfg and installs them as
// the OpenTelemetry globals.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{metrics: &Metrics{}}, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	reader, prom, err := newMetricReader(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize meter provider: %w", err)
	}
	spans, err := newSpanExporter(ctx, cfg)
	if err != nil {
		_ = reader.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize tracer provider: %w", err)
	}

	p := &Provider{
		meters:     metric.NewMeterProvider(metric.WithResource(res), metric.WithReader(reader)),
		tracers:    newTracerProvider(res, spans, cfg.TraceSamplingRate),
		prometheus: prom,
	}

	p.metrics, err = NewMetrics(p.meters.Meter(cfg.ServiceName))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create metrics recorder: %w", err), p.Shutdown(ctx))
	}

	otel.SetMeterProvider(p.meters)
	otel.SetTracerProvider(p.tracers)
	return p, nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	opts := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	}
	if host, err := os.Hostname(); err == nil {
		opts = append(opts, resource.WithAttributes(semconv.ServiceInstanceID(host)))
	}

	res, err := resource.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// newMetricReader returns the reader for cfg.MetricsExporter and whether it
// publishes through the default Prometheus registry.
func newMetricReader(ctx context.Context, cfg Config) (metric.Reader, bool, error) {
	switch cfg.MetricsExporter {
	case ExporterPrometheus, "":
		exp, err := prometheus.New()
		if err != nil {
			return nil, false, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		return exp, true, nil

	case ExporterOTLP:
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, false, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		return metric.NewPeriodicReader(exp, metric.WithInterval(DefaultMetricInterval)), false, nil

	case ExporterStdout:
		slog.Warn("stdout metrics exporter enabled, output is for debugging only",
			slog.String("component", "instrumentation"))
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, false, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
		return metric.NewPeriodicReader(exp, metric.WithInterval(DefaultMetricInterval)), false, nil
	}
	return nil, false, fmt.Errorf("unsupported metrics exporter: %s", cfg.MetricsExporter)
}

// newSpanExporter returns nil when tracing export is off.
func newSpanExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.TracingExporter {
	case ExporterNone, "":
		return nil, nil

	case ExporterOTLP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			slog.Warn("OTLP insecure transport enabled, use only for development",
				slog.String("component", "instrumentation"),
				slog.String("endpoint", cfg.OTLPEndpoint))
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		return exp, nil

	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		return exp, nil
	}
	return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.TracingExporter)
}

// newTracerProvider still hands out valid span contexts without an
// exporter, so trace IDs can be logged for correlation.
func newTracerProvider(res *resource.Resource, exp sdktrace.SpanExporter, rate float64) *sdktrace.TracerProvider {
	if exp == nil {
		return sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.NeverSample()),
		)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
	)
}

// Metrics returns the metrics recorder.
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// Tracer returns a tracer from this provider, or from the global provider
// when instrumentation is disabled.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p.tracers == nil {
		return otel.GetTracerProvider().Tracer(name)
	}
	return p.tracers.Tracer(name)
}

// ServesPrometheus reports whether metrics are exported through the
// default Prometheus registry.
func (p *Provider) ServesPrometheus() bool {
	return p.Enabled() && p.prometheus
}

// Enabled reports whether metrics and traces are being recorded.
func (p *Provider) Enabled() bool {
	return p.meters != nil
}

// Shutdown flushes pending telemetry and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.meters != nil {
		if err := p.meters.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}
	if p.tracers != nil {
		if err := p.tracers.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
