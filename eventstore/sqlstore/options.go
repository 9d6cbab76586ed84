package sqlstore

import "github.com/dogmatiq/dodeca/logging"

// DefaultPageSize is the default number of events a cursor loads per query.
const DefaultPageSize = 256

// Option configures the behavior of a Store.
type Option func(*options)

// WithLogger returns an option that sets the logger used by the store.
//
// By default logging.DefaultLogger is used.
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		o.Logger = l
	}
}

// WithPageSize returns an option that sets the number of events a cursor loads
// per query.
//
// If n is not positive, DefaultPageSize is used.
func WithPageSize(n int) Option {
	return func(o *options) {
		o.PageSize = n
	}
}

type options struct {
	Logger   logging.Logger
	PageSize int
}

func resolveOptions(opts []Option) options {
	o := options{
		Logger: logging.DefaultLogger,
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}

	return o
}
