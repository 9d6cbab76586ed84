package projector

import (
	"github.com/dogmatiq/dodeca/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultLogger is the default target for log messages produced by
// projectors.
//
// It is overridden by the WithLogger() option.
var DefaultLogger = logging.DefaultLogger

// Option configures the behavior of a projector.
//
// Options passed to NewBuilder() apply to every projector it builds. Options
// passed to Build() apply to that projector only, and take precedence.
type Option func(*options)

// WithLogger returns an option that sets the target for log messages produced
// by the projector.
//
// If this option is omitted or l is nil, DefaultLogger is used.
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		o.Logger = l
	}
}

// WithMeterProvider returns an option that sets the OpenTelemetry meter
// provider used to record projector metrics.
//
// If this option is omitted or mp is nil, the global meter provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.MeterProvider = mp
	}
}

// WithTracerProvider returns an option that sets the OpenTelemetry tracer
// provider used to trace projector runs.
//
// If this option is omitted or tp is nil, the global tracer provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.TracerProvider = tp
	}
}

// options is the resolved configuration of a projector.
type options struct {
	Logger         logging.Logger
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// resolveOptions applies each option in order and fills in defaults.
func resolveOptions(sets ...[]Option) *options {
	o := &options{}

	for _, opts := range sets {
		for _, opt := range opts {
			opt(o)
		}
	}

	if o.Logger == nil {
		o.Logger = DefaultLogger
	}

	if o.MeterProvider == nil {
		o.MeterProvider = otel.GetMeterProvider()
	}

	if o.TracerProvider == nil {
		o.TracerProvider = otel.GetTracerProvider()
	}

	return o
}
