package aianalysis

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"momcare/apps/backend/internal/observability"
)

type aiMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
	fallbacks       metric.Int64Counter
}

var metricsFor = sync.OnceValue(func() *aiMetrics {
	return newAIMetrics(observability.Meter("aianalysis"))
})

func newAIMetrics(meter metric.Meter) *aiMetrics {
	return &aiMetrics{
		requestCount:    observability.Int64Counter(meter, "ai.request.count", "Number of AI completion requests"),
		requestDuration: observability.Float64Histogram(meter, "ai.request.duration", "AI completion request duration in milliseconds", "ms"),
		requestErrors:   observability.Int64Counter(meter, "ai.request.errors", "Number of failed AI completion requests"),
		fallbacks:       observability.Int64Counter(meter, "ai.resolver.fallbacks", "Number of AI payloads replaced by the rule-based fallback"),
	}
}

func recordRequest(ctx context.Context, op, model string, statusCode int, duration time.Duration, err error) {
	metricsFor().request(ctx, op, model, statusCode, duration, err)
}

func recordFallback(kind string) {
	metricsFor().fallback(context.Background(), kind)
}

func (m *aiMetrics) request(ctx context.Context, op, model string, statusCode int, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("ai.operation", op),
		attribute.String("ai.model", model),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}
	set := metric.WithAttributes(attrs...)
	m.requestCount.Add(ctx, 1, set)
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), set)
	if err != nil {
		m.requestErrors.Add(ctx, 1, set)
	}
}

func (m *aiMetrics) fallback(ctx context.Context, kind string) {
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("ai.payload", kind)))
}
