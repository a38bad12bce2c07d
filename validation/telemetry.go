package validation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/bronystylecrazy/tokenbus/validation"

var statusKey = attribute.Key("tokenbus.status")

// telemetry holds the instruments. Instruments from the global providers
// forward to the SDK once the otel module installs it.
type telemetry struct {
	tracer   trace.Tracer
	requests metric.Int64Counter
	duration metric.Float64Histogram
	pending  metric.Int64UpDownCounter
	handled  metric.Int64Counter
}

func newTelemetry(mp metric.MeterProvider, tp trace.TracerProvider) *telemetry {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	meter := mp.Meter(scopeName)
	t := &telemetry{tracer: tp.Tracer(scopeName)}
	// On error the SDK still hands back a usable instrument.
	t.requests, _ = meter.Int64Counter("tokenbus.validation.requests",
		metric.WithDescription("Validate calls by outcome status"))
	t.duration, _ = meter.Float64Histogram("tokenbus.validation.duration",
		metric.WithDescription("Validate latency"), metric.WithUnit("s"))
	t.pending, _ = meter.Int64UpDownCounter("tokenbus.validation.pending",
		metric.WithDescription("Validate calls waiting for a response"))
	t.handled, _ = meter.Int64Counter("tokenbus.responder.handled",
		metric.WithDescription("Requests answered by the responder, by status"))
	return t
}

func (t *telemetry) recordValidate(ctx context.Context, started time.Time, o Outcome) {
	attrs := metric.WithAttributes(statusKey.String(o.Status))
	t.requests.Add(ctx, 1, attrs)
	t.duration.Record(ctx, time.Since(started).Seconds(), attrs)
}
