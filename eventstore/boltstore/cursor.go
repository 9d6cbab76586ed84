package boltstore

import (
	"context"
	"sync"

	"github.com/dogmatiq/projector/eventstore"
	"github.com/dogmatiq/projector/eventstore/internal/codec"
	"github.com/dogmatiq/projector/internal/x/bboltx"
	"go.etcd.io/bbolt"
)

// cursor is an eventstore.Cursor that reads events from a BoltDB database.
//
// Each call to Next() uses its own read transaction, so an open cursor never
// prevents the database from being written.
type cursor[ID comparable, T any] struct {
	db    *bbolt.DB
	next  uint64
	end   uint64
	match func(eventstore.Persisted[ID, T]) bool

	once   sync.Once
	closed chan struct{}
}

// Next returns the next relevant event.
func (c *cursor[ID, T]) Next(ctx context.Context) (eventstore.Persisted[ID, T], bool, error) {
	var ev eventstore.Persisted[ID, T]

	select {
	case <-ctx.Done():
		return ev, false, ctx.Err()
	case <-c.closed:
		return ev, false, eventstore.ErrCursorClosed
	default:
	}

	if c.next >= c.end {
		return ev, false, nil
	}

	found := false

	err := bboltx.View(c.db, func(tx *bbolt.Tx) {
		cur := bboltx.Bucket(tx, eventsKey).Cursor()

		for k, v := cur.Seek(marshalSequence(c.next)); k != nil; k, v = cur.Next() {
			seq := unmarshalSequence(k)
			if seq >= c.end {
				break
			}

			c.next = seq + 1

			var err error
			ev, err = codec.UnmarshalEvent[ID, T](v)
			bboltx.Must(err)

			if c.match == nil || c.match(ev) {
				found = true
				return
			}
		}

		c.next = c.end
	})

	if err != nil || !found {
		return eventstore.Persisted[ID, T]{}, false, err
	}

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
