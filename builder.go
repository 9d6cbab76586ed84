package projector

import (
	"fmt"

	"github.com/dogmatiq/projector/eventstore"
	"github.com/dogmatiq/projector/internal/x/loggingx"
	"github.com/dogmatiq/projector/internal/x/syncx"
)

// Projection is a constraint for types that can be built from events.
//
// P is the projection type itself. ID and T are the source ID and event types
// of the events it consumes. The zero-value of P is the initial state of the
// projection.
type Projection[P any, ID comparable, T any] interface {
	// Project returns the state that results from applying ev to the
	// receiver.
	//
	// It must not modify any state reachable from the receiver.
	Project(ev eventstore.Persisted[ID, T]) P

	// Clone returns a deep copy of the receiver.
	Clone() P
}

// Builder builds projectors that share an event store and subscriber.
type Builder[ID comparable, T any] struct {
	store eventstore.Store[ID, T]
	sub   eventstore.Subscriber[ID, T]
	opts  []Option
}

// NewBuilder returns a builder that builds projectors that read historical
// events from store and live events from sub.
//
// The builder does not take ownership of store or sub, they are never closed
// by the builder or the projectors it builds.
func NewBuilder[ID comparable, T any](
	store eventstore.Store[ID, T],
	sub eventstore.Subscriber[ID, T],
	opts ...Option,
) *Builder[ID, T] {
	if store == nil {
		panic("store must not be nil")
	}

	if sub == nil {
		panic("subscriber must not be nil")
	}

	return &Builder[ID, T]{
		store: store,
		sub:   sub,
		opts:  opts,
	}
}

// Build returns a new projector for projections of type P.
//
// The projector begins in the Idle state with the zero-value of P as its
// state. Build() performs no I/O and may be called any number of times.
func Build[P Projection[P, ID, T], ID comparable, T any](
	b *Builder[ID, T],
	opts ...Option,
) *Projector[P, ID, T] {
	o := resolveOptions(b.opts, opts)

	var initial P
	name := fmt.Sprintf("%T", initial)

	return &Projector[P, ID, T]{
		name:       name,
		store:      b.store,
		subscriber: b.sub,
		logger:     loggingx.WithPrefix(o.Logger, "projector[%s] | ", name),
		telemetry:  newTelemetry(o, name),
		watch:      syncx.NewWatch(initial, func(p P) P { return p.Clone() }),
	}
}
