package boltstore

import (
	"os"

	"github.com/dogmatiq/dodeca/logging"
	"go.etcd.io/bbolt"
)

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

// WithFileMode returns an option that sets the permissions used when Open()
// creates the database file.
func WithFileMode(m os.FileMode) Option {
	return func(o *options) {
		o.FileMode = m
	}
}

// WithBoltOptions returns an option that sets the options passed to bbolt when
// Open() opens the database.
func WithBoltOptions(bo *bbolt.Options) Option {
	return func(o *options) {
		o.BoltOptions = bo
	}
}

type options struct {
	Logger      logging.Logger
	FileMode    os.FileMode
	BoltOptions *bbolt.Options
}

func resolveOptions(opts []Option) options {
	o := options{
		Logger: logging.DefaultLogger,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}
