package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterPrefix = "momcare/apps/backend/"

// Meter returns the global meter for a component. Without an SDK provider
// installed every instrument it creates is a no-op.
func Meter(component string) metric.Meter {
	return otel.Meter(meterPrefix + component)
}

// Int64Counter never fails; an instrument that cannot be registered is
// replaced by a no-op counter.
func Int64Counter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return noop.Int64Counter{}
	}
	return counter
}

func Float64Histogram(meter metric.Meter, name, description, unit string) metric.Float64Histogram {
	histogram, err := meter.Float64Histogram(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return noop.Float64Histogram{}
	}
	return histogram
}
