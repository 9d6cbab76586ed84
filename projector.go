package projector

import (
	"context"
	"sync/atomic"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/projector/eventstore"
	"github.com/dogmatiq/projector/internal/x/syncx"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/multierr"
)

// Projector maintains a projection of type P by applying events from an
// event store and subscriber.
type Projector[P Projection[P, ID, T], ID comparable, T any] struct {
	name       string
	store      eventstore.Store[ID, T]
	subscriber eventstore.Subscriber[ID, T]
	logger     logging.Logger
	telemetry  *telemetry

	state atomic.Int32

	// watermark points to the sequence number of the most recently applied
	// event. It is nil if no events have been applied.
	watermark atomic.Pointer[uint64]

	// current is the projection state. It is only accessed by Run().
	current P

	// watch holds the most recent snapshot of the projection state. It never
	// becomes unusable, so publishing a new snapshot can not fail.
	watch *syncx.Watch[P]
}

// Run applies events to the projection until the event streams end or an
// error occurs.
//
// It first subscribes to live events, then reads every historical event,
// then continues with the live events. Events that are delivered by both
// streams are applied only once.
//
// It returns nil if the live subscription ends without error. Otherwise it
// returns an *Error describing the failure. Canceling ctx causes Run() to
// return an error of kind StreamItem.
//
// Run() may only be called once. Subsequent calls return ErrAlreadyStarted.
// State that has already been applied remains available to watchers after
// Run() returns. If the projection panics the projector is marked as Failed
// and the panic is propagated to the caller.
func (p *Projector[P, ID, T]) Run(ctx context.Context) (err error) {
	if !p.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return ErrAlreadyStarted
	}

	ctx, span := p.telemetry.startRun(ctx)

	returned := false
	defer func() {
		switch {
		case !returned:
			p.state.Store(int32(Failed))
			span.SetStatus(codes.Error, "panic")
			logging.Log(p.logger, "run failed: panic while consuming events")
		case err != nil:
			p.state.Store(int32(Failed))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logging.Log(p.logger, "run failed: %s", err)
		default:
			p.state.Store(int32(Completed))
			span.SetStatus(codes.Ok, "")
			logging.Log(p.logger, "run completed, the live subscription has ended")
		}

		span.End()
	}()

	err = p.run(ctx)
	returned = true

	return err
}

// run consumes the live subscription and catch-up stream until they end.
func (p *Projector[P, ID, T]) run(ctx context.Context) (err error) {
	// The live subscription is opened before the catch-up stream so that no
	// event can be recorded between the end of one and the start of the
	// other without being seen.
	live, err := p.subscriber.SubscribeAll(ctx)
	if err != nil {
		return &Error{SubscriptionOpen, err}
	}
	defer func() {
		err = multierr.Append(err, live.Close())
	}()

	catchUp, err := p.store.StreamAll(ctx, eventstore.SelectAll)
	if err != nil {
		return &Error{CatchUpOpen, err}
	}
	defer func() {
		err = multierr.Append(err, catchUp.Close())
	}()

	logging.Debug(p.logger, "subscribed to live events, catching up on historical events")

	if err := p.consume(ctx, catchUp); err != nil {
		return err
	}

	if seq, ok := p.Watermark(); ok {
		logging.Log(p.logger, "caught up to sequence number %d, consuming live events", seq)
	} else {
		logging.Log(p.logger, "caught up with no historical events, consuming live events")
	}

	return p.consume(ctx, live)
}

// consume applies every event read from cur.
func (p *Projector[P, ID, T]) consume(
	ctx context.Context,
	cur eventstore.Cursor[ID, T],
) error {
	for {
		ev, ok, err := cur.Next(ctx)
		if err != nil {
			return &Error{StreamItem, err}
		}

		if !ok {
			return nil
		}

		p.apply(ctx, ev)
	}
}

// apply applies ev to the projection, unless it has already been applied.
func (p *Projector[P, ID, T]) apply(
	ctx context.Context,
	ev eventstore.Persisted[ID, T],
) {
	seq := ev.SequenceNumber()
	prev := p.watermark.Load()

	if prev != nil && seq <= *prev {
		logging.Debug(
			p.logger,
			"discarded event %d, events up to %d have already been applied",
			seq,
			*prev,
		)
		p.telemetry.eventDiscarded(ctx)
		return
	}

	p.current = p.current.Project(ev)

	if !p.watermark.CompareAndSwap(prev, &seq) {
		panic("watermark was modified by another writer")
	}

	p.watch.Publish(p.current.Clone())
	p.telemetry.eventApplied(ctx, seq)

	logging.Debug(p.logger, "applied event %d from '%v'", seq, ev.SourceID)
}

// Watch returns a watcher that observes changes to the projection state.
func (p *Projector[P, ID, T]) Watch() *Watcher[P] {
	return &Watcher[P]{watch: p.watch}
}

// Watermark returns the sequence number of the most recently applied event.
//
// ok is false if no events have been applied.
func (p *Projector[P, ID, T]) Watermark() (seq uint64, ok bool) {
	if wm := p.watermark.Load(); wm != nil {
		return *wm, true
	}

	return 0, false
}

// State returns the current lifecycle state of the projector.
func (p *Projector[P, ID, T]) State() State {
	return State(p.state.Load())
}
