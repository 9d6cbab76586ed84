package feed

import (
	"context"
	"sync"

	"github.com/dogmatiq/projector/eventstore"
)

// cursor is an eventstore.Cursor that reads events from a Feed.
type cursor[ID comparable, T any] struct {
	node  *node[ID, T]
	index int

	once   sync.Once
	closed chan struct{}
}

// Next returns the next event on the feed.
//
// If the end of the feed is reached it blocks until an event is published, the
// feed is sealed or ctx is canceled.
func (c *cursor[ID, T]) Next(ctx context.Context) (eventstore.Persisted[ID, T], bool, error) {
	var zero eventstore.Persisted[ID, T]

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case <-c.closed:
		return zero, false, eventstore.ErrCursorClosed
	default:
	}

	for c.index >= len(c.node.events) {
		next, err := c.node.advance(ctx, c.closed)
		if err != nil {
			return zero, false, err
		}

		if next == nil {
			return zero, false, nil
		}

		c.node = next
		c.index = 0
	}

	ev := c.node.events[c.index]
	c.index++

	return ev, true, nil
}

// Close discards the cursor.
//
// It returns ErrCursorClosed if the cursor is already closed.
func (c *cursor[ID, T]) Close() error {
	err := eventstore.ErrCursorClosed

	c.once.Do(func() {
		err = nil
		close(c.closed)
	})

	return err
}
