package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"
)

// Option overrides parts of provider construction.
type Option func(*options)

type options struct {
	spanExporter   trace.SpanExporter
	metricExporter metric.Exporter
}

// WithTraceExporter replaces the OTLP span exporter.
func WithTraceExporter(exp trace.SpanExporter) Option {
	return func(o *options) { o.spanExporter = exp }
}

// WithMetricExporter replaces the OTLP metric exporter.
func WithMetricExporter(exp metric.Exporter) Option {
	return func(o *options) { o.metricExporter = exp }
}

func newResource(cfg *Config) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)
}

func tlsConfig() *tls.Config {
	return &tls.Config{MinVersion: tls.VersionTLS12}
}

func newSpanExporter(ctx context.Context, cfg *Config) (trace.SpanExporter, error) {
	if cfg.Protocol == ProtocolHTTP {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(stripScheme(cfg.Endpoint))}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		} else {
			opts = append(opts, otlptracehttp.WithTLSClientConfig(tlsConfig()))
		}
		return otlptracehttp.New(ctx, opts...)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig())))
	}
	return otlptracegrpc.New(ctx, opts...)
}

// cumulative keeps Prometheus-compatible backends happy regardless of
// OTEL_EXPORTER_OTLP_METRICS_TEMPORALITY_PREFERENCE.
func cumulative(metric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

func newMetricExporter(ctx context.Context, cfg *Config) (metric.Exporter, error) {
	if cfg.Protocol == ProtocolHTTP {
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(stripScheme(cfg.Endpoint)),
			otlpmetrichttp.WithTemporalitySelector(cumulative),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		} else {
			opts = append(opts, otlpmetrichttp.WithTLSClientConfig(tlsConfig()))
		}
		return otlpmetrichttp.New(ctx, opts...)
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithTemporalitySelector(cumulative),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	} else {
		opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig())))
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

func sampler(rate float64) trace.Sampler {
	var s trace.Sampler
	switch {
	case rate >= 1:
		s = trace.AlwaysSample()
	case rate <= 0:
		s = trace.NeverSample()
	default:
		s = trace.TraceIDRatioBased(rate)
	}
	return trace.ParentBased(s)
}

func newTracerProvider(ctx context.Context, cfg *Config, res *resource.Resource, o options) (*trace.TracerProvider, error) {
	exp := o.spanExporter
	if exp == nil {
		var err error
		if exp, err = newSpanExporter(ctx, cfg); err != nil {
			return nil, fmt.Errorf("creating trace exporter: %w", err)
		}
	}
	return trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
		trace.WithSampler(sampler(cfg.SamplingRate)),
	), nil
}

func newMeterProvider(ctx context.Context, cfg *Config, res *resource.Resource, o options) (*metric.MeterProvider, error) {
	if !cfg.MetricsEnabled {
		return nil, nil
	}
	exp := o.metricExporter
	if exp == nil {
		var err error
		if exp, err = newMetricExporter(ctx, cfg); err != nil {
			return nil, fmt.Errorf("creating metric exporter: %w", err)
		}
	}
	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exp, metric.WithInterval(cfg.ExportInterval))),
	), nil
}
