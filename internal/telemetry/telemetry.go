package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Telemetry owns the tracer and meter providers for one process. Exporter
// failures mark it degraded instead of failing startup.
type Telemetry struct {
	config *Config

	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	healthy  atomic.Bool
	degraded atomic.Bool

	mu     sync.Mutex
	reason string
}

// New validates cfg and starts the providers. A disabled config yields an
// instance whose Tracer and Meter come from the global (no-op) providers.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	t := &Telemetry{config: cfg}
	t.healthy.Store(true)
	if !cfg.Enabled {
		return t, nil
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	res := newResource(cfg)

	tp, err := newTracerProvider(ctx, cfg, res, o)
	if err != nil {
		t.setDegraded("tracer provider: %v", err)
	} else {
		t.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	mp, err := newMeterProvider(ctx, cfg, res, o)
	if err != nil {
		t.setDegraded("meter provider: %v", err)
	} else if mp != nil {
		t.meterProvider = mp
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return t, nil
}

// Tracer returns a tracer for the given instrumentation scope.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	if t == nil || t.tracerProvider == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return t.tracerProvider.Tracer(name, opts...)
}

// Meter returns a meter for the given instrumentation scope.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t == nil || t.meterProvider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return t.meterProvider.Meter(name, opts...)
}

// Shutdown flushes and stops the providers. Without a deadline on ctx the
// configured shutdown timeout applies.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && t.config != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.ShutdownTimeout)
		defer cancel()
	}

	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	t.healthy.Store(false)
	return errors.Join(errs...)
}

// ForceFlush exports all pending telemetry now.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace flush: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter flush: %w", err))
		}
	}
	return errors.Join(errs...)
}

// HealthStatus is the telemetry part of the daemon health report.
type HealthStatus struct {
	Healthy  bool   `json:"healthy"`
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

// Health returns the current telemetry health status.
func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{Degraded: true, Reason: "telemetry not initialized"}
	}
	t.mu.Lock()
	reason := t.reason
	t.mu.Unlock()
	return HealthStatus{
		Healthy:  t.healthy.Load(),
		Degraded: t.degraded.Load(),
		Reason:   reason,
	}
}

// IsEnabled returns true if telemetry is enabled and not shut down.
func (t *Telemetry) IsEnabled() bool {
	if t == nil || t.config == nil {
		return false
	}
	return t.config.Enabled && t.healthy.Load()
}

func (t *Telemetry) setDegraded(format string, args ...interface{}) {
	t.degraded.Store(true)
	t.mu.Lock()
	t.reason = fmt.Sprintf(format, args...)
	t.mu.Unlock()
}
