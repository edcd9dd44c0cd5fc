package telemetry

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/jsamuelsen/quote-keeper/internal/platform/telemetry"

	// HeaderTraceID carries the trace ID back to the caller.
	HeaderTraceID = "X-Trace-ID"
)

// serverMetrics holds the HTTP server instruments.
type serverMetrics struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
	active   metric.Int64UpDownCounter
}

func newServerMetrics() (*serverMetrics, error) {
	meter := otel.Meter(instrumentationName)

	duration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	total, err := meter.Int64Counter(
		"http.server.request.total",
		metric.WithDescription("HTTP requests served"),
	)
	if err != nil {
		return nil, err
	}

	active, err := meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("HTTP requests in progress"),
	)
	if err != nil {
		return nil, err
	}

	return &serverMetrics{duration: duration, total: total, active: active}, nil
}

// Middleware returns the server instrumentation: otelgin spans followed by
// request metrics and the X-Trace-ID response header.
func Middleware(serviceName string) []gin.HandlerFunc {
	metrics, err := newServerMetrics()
	if err != nil {
		otel.Handle(err)
	}

	return []gin.HandlerFunc{
		otelgin.Middleware(serviceName),
		func(c *gin.Context) {
			ctx := c.Request.Context()

			if sc := trace.SpanFromContext(ctx).SpanContext(); sc.HasTraceID() {
				c.Header(HeaderTraceID, sc.TraceID().String())
			}

			if metrics == nil {
				c.Next()
				return
			}

			route := attribute.String("http.route", c.FullPath())
			method := attribute.String("http.method", c.Request.Method)

			metrics.active.Add(ctx, 1, metric.WithAttributes(method, route))
			defer metrics.active.Add(ctx, -1, metric.WithAttributes(method, route))

			start := time.Now()

			c.Next()

			attrs := metric.WithAttributes(method, route, attribute.Int("http.status_code", c.Writer.Status()))
			metrics.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			metrics.total.Add(ctx, 1, attrs)
		},
	}
}
