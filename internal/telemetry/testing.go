package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry records spans and metrics in memory.
type TestTelemetry struct {
	*Telemetry

	SpanRecorder *tracetest.SpanRecorder
	MetricReader *sdkmetric.ManualReader
}

// NewTestTelemetry creates an enabled Telemetry with in-memory exporters.
// Nothing is installed globally.
func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	recorder := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()

	tel := &Telemetry{
		config:         cfg,
		tracerProvider: trace.NewTracerProvider(trace.WithSpanProcessor(recorder)),
		meterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
	tel.healthy.Store(true)

	return &TestTelemetry{
		Telemetry:    tel,
		SpanRecorder: recorder,
		MetricReader: reader,
	}
}

// Spans returns all ended spans.
func (t *TestTelemetry) Spans() []trace.ReadOnlySpan {
	return t.SpanRecorder.Ended()
}

// SpansByName returns every ended span called name.
func (t *TestTelemetry) SpansByName(name string) []trace.ReadOnlySpan {
	var out []trace.ReadOnlySpan
	for _, s := range t.Spans() {
		if s.Name() == name {
			out = append(out, s)
		}
	}
	return out
}

// SpanByName returns the first ended span called name, or nil.
func (t *TestTelemetry) SpanByName(name string) trace.ReadOnlySpan {
	if spans := t.SpansByName(name); len(spans) > 0 {
		return spans[0]
	}
	return nil
}

// AssertSpanExists fails tb unless a span called name ended.
func (t *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	if t.SpanByName(name) == nil {
		tb.Errorf("expected span %q not found, got: %v", name, t.spanNames())
	}
}

// AssertSpanAttribute fails tb unless span spanName carries key=expected.
// Integers compare as int64.
func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, spanName, key string, expected interface{}) {
	tb.Helper()
	span := t.SpanByName(spanName)
	if span == nil {
		tb.Fatalf("span %q not found", spanName)
	}
	if n, ok := expected.(int); ok {
		expected = int64(n)
	}
	for _, kv := range span.Attributes() {
		if string(kv.Key) != key {
			continue
		}
		if got := attrValue(kv.Value); got != expected {
			tb.Errorf("span %q attribute %q: got %v (%T), want %v (%T)", spanName, key, got, got, expected, expected)
		}
		return
	}
	tb.Errorf("span %q missing attribute %q", spanName, key)
}

// Collect reads the current metric state.
func (t *TestTelemetry) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := t.MetricReader.Collect(ctx, &rm)
	return rm, err
}

func (t *TestTelemetry) spanNames() []string {
	spans := t.Spans()
	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.Name()
	}
	return names
}

func attrValue(v attribute.Value) interface{} {
	switch v.Type() {
	case attribute.STRING:
		return v.AsString()
	case attribute.INT64:
		return v.AsInt64()
	case attribute.FLOAT64:
		return v.AsFloat64()
	case attribute.BOOL:
		return v.AsBool()
	default:
		return v.AsInterface()
	}
}
