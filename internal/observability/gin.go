package observability

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const RequestIDHeader = "X-Request-ID"

type httpMetrics struct {
	count    metric.Int64Counter
	duration metric.Float64Histogram
}

var (
	httpMetricsOnce sync.Once
	httpInstruments httpMetrics
)

func ensureHTTPMetrics() httpMetrics {
	httpMetricsOnce.Do(func() {
		meter := Meter("http")
		httpInstruments = httpMetrics{
			count:    Int64Counter(meter, "http.server.request.count", "Number of HTTP requests"),
			duration: Float64Histogram(meter, "http.server.request.duration", "HTTP request duration in milliseconds", "ms"),
		}
	})
	return httpInstruments
}

// RequestLogger tags each request with an ID, logs it when it finishes and
// records request metrics by route template.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	instruments := ensureHTTPMetrics()
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		attrs := metric.WithAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)
		instruments.count.Add(c.Request.Context(), 1, attrs)
		instruments.duration.Record(c.Request.Context(), float64(elapsed.Milliseconds()), attrs)

		evt := logger.Info()
		switch {
		case status >= http.StatusInternalServerError:
			evt = logger.Error()
		case status >= http.StatusBadRequest:
			evt = logger.Warn()
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}
		evt.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", elapsed).
			Str("remote_ip", c.ClientIP()).
			Msg("request")
	}
}

// Recovery logs panics with their stack and answers 500.
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				var stack [4096]byte
				n := runtime.Stack(stack[:], false)
				logger.Error().
					Str("request_id", c.GetString("request_id")).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(stack[:n])).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
			}
		}()
		c.Next()
	}
}
