package memorystore

import (
	"context"
	"sync"

	"github.com/dogmatiq/projector/eventstore"
)

// cursor is an eventstore.Cursor over a fixed set of events.
type cursor[ID comparable, T any] struct {
	events []eventstore.Persisted[ID, T]

	once   sync.Once
	closed chan struct{}
}

func newCursor[ID comparable, T any](events []eventstore.Persisted[ID, T]) *cursor[ID, T] {
	return &cursor[ID, T]{
		events: events,
		closed: make(chan struct{}),
	}
}

// Next returns the next event in the result.
func (c *cursor[ID, T]) Next(ctx context.Context) (eventstore.Persisted[ID, T], bool, error) {
	var zero eventstore.Persisted[ID, T]

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case <-c.closed:
		return zero, false, eventstore.ErrCursorClosed
	default:
	}

	if len(c.events) == 0 {
		return zero, false, nil
	}

	ev := c.events[0]
	c.events = c.events[1:]

	return ev, true, nil
}

// Close discards the cursor.
func (c *cursor[ID, T]) Close() error {
	err := eventstore.ErrCursorClosed

	c.once.Do(func() {
		err = nil
		close(c.closed)
	})

	return err
}
