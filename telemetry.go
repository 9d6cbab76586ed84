package projector

import (
	"context"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName is the name reported to OpenTelemetry for meters and
// tracers created by this package.
const instrumentationName = "github.com/dogmatiq/projector"

// telemetry records metrics and traces for a single projector.
type telemetry struct {
	tracer    trace.Tracer
	attrs     []attribute.KeyValue
	measure   metric.MeasurementOption
	applied   metric.Int64Counter
	discarded metric.Int64Counter
	watermark metric.Int64Gauge
}

func newTelemetry(o *options, name string) *telemetry {
	meter := o.MeterProvider.Meter(instrumentationName)

	attrs := []attribute.KeyValue{
		attribute.String("projection", name),
	}

	t := &telemetry{
		tracer:  o.TracerProvider.Tracer(instrumentationName),
		attrs:   attrs,
		measure: metric.WithAttributes(attrs...),
	}

	var err error

	t.applied, err = meter.Int64Counter(
		"projector.events.applied",
		metric.WithDescription("The number of events applied to the projection."),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		t.applied = noop.Int64Counter{}
	}

	t.discarded, err = meter.Int64Counter(
		"projector.events.discarded",
		metric.WithDescription("The number of duplicate events that were discarded."),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		t.discarded = noop.Int64Counter{}
	}

	t.watermark, err = meter.Int64Gauge(
		"projector.watermark",
		metric.WithDescription("The sequence number of the most recently applied event."),
	)
	if err != nil {
		t.watermark = noop.Int64Gauge{}
	}

	return t
}

// startRun starts the span that covers a call to Run().
func (t *telemetry) startRun(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(
		ctx,
		"projector.run",
		trace.WithAttributes(t.attrs...),
	)
}

// eventApplied records that the event with the given sequence number was
// applied.
//
// The watermark gauge is signed, so sequence numbers above math.MaxInt64 are
// recorded as math.MaxInt64.
func (t *telemetry) eventApplied(ctx context.Context, seq uint64) {
	t.applied.Add(ctx, 1, t.measure)
	t.watermark.Record(ctx, int64(min(seq, math.MaxInt64)), t.measure)
}

// eventDiscarded records that a duplicate event was discarded.
func (t *telemetry) eventDiscarded(ctx context.Context) {
	t.discarded.Add(ctx, 1, t.measure)
}
