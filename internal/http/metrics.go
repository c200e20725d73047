package http

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/docledger/internal/documents"
	"github.com/fyrsmithlabs/docledger/internal/ledger"
	"github.com/fyrsmithlabs/docledger/internal/sanitize"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/docledger/internal/http"

// failureKey is the echo context key under which handlers and the logging
// middleware leave the domain error behind a non-2xx response.
const failureKey = "docledger.failure"

// HTTPMetrics records request counts, latency and failure reasons per route.
type HTTPMetrics struct {
	logger     *zap.Logger
	requests   metric.Int64Counter
	duration   metric.Float64Histogram
	failures   metric.Int64Counter
	moveFaults metric.Int64Counter
}

// NewHTTPMetrics builds the instruments from mp, or from the global
// provider when mp is nil.
func NewHTTPMetrics(logger *zap.Logger, mp metric.MeterProvider) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(httpInstrumentationName)
	m := &HTTPMetrics{logger: logger}

	var err error
	m.requests, err = meter.Int64Counter(
		"docledger.http.requests_total",
		metric.WithDescription("HTTP requests by method, route pattern and status code."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create requests counter", zap.Error(err))
	}

	m.duration, err = meter.Float64Histogram(
		"docledger.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration by method, route pattern and status code."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.failures, err = meter.Int64Counter(
		"docledger.http.failures_total",
		metric.WithDescription("Failed HTTP requests by route pattern and reason (validation_error, containment_error, collision, not_found, relocation_error, ...)."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create failures counter", zap.Error(err))
	}

	m.moveFaults, err = meter.Int64Counter(
		"docledger.http.move_faults_total",
		metric.WithDescription("Individual move entries reported as failed in a move response, by reason."),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		logger.Warn("failed to create move faults counter", zap.Error(err))
	}
	return m
}

// Middleware records one request. It must sit outside the middleware that
// renders errors so the final status is known.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			ctx := c.Request().Context()
			route := routeOf(c.Path())
			status := c.Response().Status
			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("endpoint", route),
				attribute.Int("status", status),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			}

			if status >= 400 || err != nil {
				cause := err
				if stored, ok := c.Get(failureKey).(error); ok {
					cause = stored
				}
				m.recordFailure(ctx, route, cause)
			}
			return err
		}
	}
}

func (m *HTTPMetrics) recordFailure(ctx context.Context, route string, err error) {
	if m.failures == nil {
		return
	}
	m.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", route),
		attribute.String("reason", failureReason(err)),
	))
}

// RecordMoveFaults counts the failed entries of a move batch by reason.
func (m *HTTPMetrics) RecordMoveFaults(ctx context.Context, faults []documents.MoveFailure) {
	if m == nil || m.moveFaults == nil {
		return
	}
	for _, f := range faults {
		m.moveFaults.Add(ctx, 1, metric.WithAttributes(
			attribute.String("reason", failureReason(f.Err)),
		))
	}
}

// failureReason maps an error to a low-cardinality label.
func failureReason(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Internal != nil {
		err = he.Internal
	}
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, documents.ErrPathTraversal):
		return "containment_error"
	case errors.Is(err, documents.ErrInvalidInput),
		errors.Is(err, sanitize.ErrInvalidActorID),
		errors.Is(err, sanitize.ErrEmptyPath),
		errors.Is(err, ledger.ErrMissingID):
		return "validation_error"
	case errors.Is(err, documents.ErrCollision), errors.Is(err, ledger.ErrWorkspaceExists):
		return "collision"
	case errors.Is(err, documents.ErrNotFound), errors.Is(err, ledger.ErrWorkspaceNotFound):
		return "not_found"
	case errors.Is(err, documents.ErrRelocationFailed):
		return "relocation_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case he != nil && he.Code < 500:
		return "bad_request"
	default:
		return "internal_error"
	}
}

// routeOf maps an unmatched request to "/". Matched routes are already
// parameter patterns such as /api/v1/documents/:id.
func routeOf(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
