package fixtures

import (
	"context"
	"sync"

	"github.com/dogmatiq/projector/eventstore"
)

// StoreStub is a test implementation of the eventstore.Store interface.
type StoreStub struct {
	eventstore.Store[AccountID, Transaction]

	StreamFunc    func(context.Context, AccountID, eventstore.Select) (eventstore.Cursor[AccountID, Transaction], error)
	StreamAllFunc func(context.Context, eventstore.Select) (eventstore.Cursor[AccountID, Transaction], error)
}

// Stream returns a cursor over the events produced by a single source.
func (s *StoreStub) Stream(
	ctx context.Context,
	id AccountID,
	sel eventstore.Select,
) (eventstore.Cursor[AccountID, Transaction], error) {
	if s.StreamFunc != nil {
		return s.StreamFunc(ctx, id, sel)
	}

	if s.Store != nil {
		return s.Store.Stream(ctx, id, sel)
	}

	return NewCursor(nil, nil), nil
}

// StreamAll returns a cursor over the events produced by all sources.
func (s *StoreStub) StreamAll(
	ctx context.Context,
	sel eventstore.Select,
) (eventstore.Cursor[AccountID, Transaction], error) {
	if s.StreamAllFunc != nil {
		return s.StreamAllFunc(ctx, sel)
	}

	if s.Store != nil {
		return s.Store.StreamAll(ctx, sel)
	}

	return NewCursor(nil, nil), nil
}

// SubscriberStub is a test implementation of the eventstore.Subscriber
// interface.
type SubscriberStub struct {
	eventstore.Subscriber[AccountID, Transaction]

	SubscribeAllFunc func(context.Context) (eventstore.Cursor[AccountID, Transaction], error)
}

// SubscribeAll returns a cursor over events recorded after the call returns.
func (s *SubscriberStub) SubscribeAll(
	ctx context.Context,
) (eventstore.Cursor[AccountID, Transaction], error) {
	if s.SubscribeAllFunc != nil {
		return s.SubscribeAllFunc(ctx)
	}

	if s.Subscriber != nil {
		return s.Subscriber.SubscribeAll(ctx)
	}

	return NewCursor(nil, nil), nil
}

// CursorStub is a scripted eventstore.Cursor.
//
// It returns each of Events in order. Once they are exhausted it returns Err,
// or reports the end of the stream if Err is nil.
type CursorStub struct {
	Events []Event
	Err    error

	// CloseErr is returned by the first call to Close().
	CloseErr error

	m      sync.Mutex
	reads  int
	closed bool
}

// NewCursor returns a cursor that returns events, followed by err.
func NewCursor(events []Event, err error) *CursorStub {
	return &CursorStub{
		Events: events,
		Err:    err,
	}
}

// Next returns the next scripted event.
func (c *CursorStub) Next(ctx context.Context) (Event, bool, error) {
	c.m.Lock()
	defer c.m.Unlock()

	if c.closed {
		return Event{}, false, eventstore.ErrCursorClosed
	}

	if ctx.Err() != nil {
		return Event{}, false, ctx.Err()
	}

	c.reads++

	if len(c.Events) > 0 {
		ev := c.Events[0]
		c.Events = c.Events[1:]
		return ev, true, nil
	}

	return Event{}, false, c.Err
}

// Reads returns the number of calls to Next() made before the cursor was
// closed.
func (c *CursorStub) Reads() int {
	c.m.Lock()
	defer c.m.Unlock()

	return c.reads
}

// IsClosed returns true if Close() has been called.
func (c *CursorStub) IsClosed() bool {
	c.m.Lock()
	defer c.m.Unlock()

	return c.closed
}

// Close stops the cursor.
func (c *CursorStub) Close() error {
	c.m.Lock()
	defer c.m.Unlock()

	if c.closed {
		return eventstore.ErrCursorClosed
	}

	c.closed = true

	return c.CloseErr
}
