package aianalysis

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					sums[m.Name] += int64(dp.Count)
				}
			}
		}
	}
	return sums
}

func TestAIMetricsRecordRequestsAndFallbacks(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m := newAIMetrics(provider.Meter("aianalysis-test"))
	ctx := context.Background()
	m.request(ctx, "analyze", "gpt-test", http.StatusOK, 120*time.Millisecond, nil)
	m.request(ctx, "recommend", "gpt-test", http.StatusBadGateway, 80*time.Millisecond, errors.New("bad gateway"))
	m.fallback(ctx, "analysis")

	sums := collectSums(t, reader)
	assert.Equal(t, int64(2), sums["ai.request.count"])
	assert.Equal(t, int64(2), sums["ai.request.duration"])
	assert.Equal(t, int64(1), sums["ai.request.errors"])
	assert.Equal(t, int64(1), sums["ai.resolver.fallbacks"])
}
