package middleware

import (
	"context"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hyp3rd/pagetemp/internal/telemetry/attrs"
	"github.com/hyp3rd/pagetemp/pkg/eviction"
	"github.com/hyp3rd/pagetemp/pkg/page"
)

// OTelMetricsMiddleware emits OpenTelemetry metrics for policy methods.
type OTelMetricsMiddleware struct {
	next eviction.Policy

	// instruments
	calls     metric.Int64Counter
	durations metric.Float64Histogram
	faults    metric.Int64Counter

	policy attribute.KeyValue
}

// NewOTelMetricsMiddleware constructs a metrics middleware using the provided meter.
func NewOTelMetricsMiddleware(next eviction.Policy, meter metric.Meter) (eviction.Policy, error) {
	calls, err := meter.Int64Counter("pagetemp.calls")
	if err != nil {
		return nil, ewrap.Wrap(err, "create counter")
	}

	durations, err := meter.Float64Histogram("pagetemp.duration.ms")
	if err != nil {
		return nil, ewrap.Wrap(err, "create histogram")
	}

	faults, err := meter.Int64Counter("pagetemp.faults")
	if err != nil {
		return nil, ewrap.Wrap(err, "create fault counter")
	}

	return &OTelMetricsMiddleware{
		next:      next,
		calls:     calls,
		durations: durations,
		faults:    faults,
		policy:    attribute.String(attrs.AttrPolicy, next.Name()),
	}, nil
}

// Consume implements Policy.Consume with metrics.
func (mw *OTelMetricsMiddleware) Consume(pg page.Page) {
	start := time.Now()
	mw.next.Consume(pg)
	mw.rec("Consume", start, attribute.Int(attrs.AttrResidents, mw.next.Len()))
}

// IsPageFault implements Policy.IsPageFault with metrics, counting faults.
func (mw *OTelMetricsMiddleware) IsPageFault(pg page.Page) bool {
	start := time.Now()
	fault := mw.next.IsPageFault(pg)
	mw.rec("IsPageFault", start, attribute.Bool(attrs.AttrFault, fault))

	if fault {
		mw.faults.Add(context.Background(), 1, metric.WithAttributes(mw.policy))
	}

	return fault
}

// TemperatureOrder implements Policy.TemperatureOrder with metrics.
func (mw *OTelMetricsMiddleware) TemperatureOrder() []page.Page {
	start := time.Now()
	order := mw.next.TemperatureOrder()
	mw.rec("TemperatureOrder", start)

	return order
}

// Name returns the policy name.
func (mw *OTelMetricsMiddleware) Name() string { return mw.next.Name() }

// Len returns the resident count.
func (mw *OTelMetricsMiddleware) Len() int { return mw.next.Len() }

// Capacity returns the policy capacity.
func (mw *OTelMetricsMiddleware) Capacity() int { return mw.next.Capacity() }

// rec records call count and duration with attributes.
func (mw *OTelMetricsMiddleware) rec(method string, start time.Time, extra ...attribute.KeyValue) {
	base := []attribute.KeyValue{mw.policy, attribute.String(attrs.AttrMethod, method)}
	if len(extra) > 0 {
		base = append(base, extra...)
	}

	ctx := context.Background()
	mw.calls.Add(ctx, 1, metric.WithAttributes(base...))
	mw.durations.Record(ctx, float64(time.Since(start).Microseconds())/1000, metric.WithAttributes(base...))
}
