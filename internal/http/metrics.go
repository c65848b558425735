package http

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/syllabusd/internal/logging"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/syllabusd/internal/http"

// HTTPMetrics holds all HTTP-related metrics.
type HTTPMetrics struct {
	meter          metric.Meter
	logger         *logging.Logger
	requestsTotal  metric.Int64Counter
	requestDur     metric.Float64Histogram
	requestSize    metric.Int64Histogram
	activeRequests metric.Int64UpDownCounter
}

// NewHTTPMetrics creates HTTPMetrics on the global meter provider.
func NewHTTPMetrics(logger *logging.Logger) *HTTPMetrics {
	return newHTTPMetrics(otel.Meter(httpInstrumentationName), logger)
}

func newHTTPMetrics(meter metric.Meter, logger *logging.Logger) *HTTPMetrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &HTTPMetrics{
		meter:  meter,
		logger: logger,
	}
	m.init()
	return m
}

func (m *HTTPMetrics) init() {
	var err error
	ctx := context.Background()

	m.requestsTotal, err = m.meter.Int64Counter(
		"syllabusd.http.requests_total",
		metric.WithDescription("Total HTTP requests labeled by method, endpoint and status code."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create requests counter", zap.Error(err))
	}

	// Extraction requests fan out to the oracle, so the buckets reach minutes.
	m.requestDur, err = m.meter.Float64Histogram(
		"syllabusd.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds, labeled by method, endpoint and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create duration histogram", zap.Error(err))
	}

	m.requestSize, err = m.meter.Int64Histogram(
		"syllabusd.http.request_size_bytes",
		metric.WithDescription("HTTP request body size in bytes. Tracks syllabus document sizes."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(1000, 5000, 20000, 50000, 100000, 250000, 500000, 1000000),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create request size histogram", zap.Error(err))
	}

	m.activeRequests, err = m.meter.Int64UpDownCounter(
		"syllabusd.http.active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn(ctx, "failed to create active requests gauge", zap.Error(err))
	}
}

// MetricsMiddleware returns an Echo middleware that records HTTP metrics.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx := req.Context()

			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, 1)
			}

			err := next(c)

			attrs := metric.WithAttributes(
				attribute.String("method", req.Method),
				attribute.String("endpoint", normalizePath(c.Path())),
				attribute.Int("status", c.Response().Status),
			)

			if m.requestsTotal != nil {
				m.requestsTotal.Add(ctx, 1, attrs)
			}
			if m.requestDur != nil {
				m.requestDur.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.requestSize != nil && req.ContentLength >= 0 {
				m.requestSize.Record(ctx, req.ContentLength, attrs)
			}
			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, -1)
			}

			return err
		}
	}
}

// normalizePath keeps endpoint labels bounded. Only fixed routes are
// registered, so unmatched requests are the only source of new values.
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
