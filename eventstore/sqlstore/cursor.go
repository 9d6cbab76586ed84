package sqlstore

import (
	"context"
	"database/sql"
	"sync"

	"github.com/dogmatiq/projector/eventstore"
	"github.com/dogmatiq/projector/eventstore/internal/codec"
	"github.com/dogmatiq/projector/internal/x/sqlx"
)

// cursor is an eventstore.Cursor that reads events from an SQL database one
// page at a time.
//
// No query remains open between calls to Next().
type cursor[ID comparable, T any] struct {
	db       *sql.DB
	query    string
	args     []any
	next     uint64
	end      uint64
	pageSize int
	page     []eventstore.Persisted[ID, T]

	once   sync.Once
	closed chan struct{}
}

// Next returns the next relevant event.
func (c *cursor[ID, T]) Next(ctx context.Context) (_ eventstore.Persisted[ID, T], _ bool, err error) {
	var zero eventstore.Persisted[ID, T]

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case <-c.closed:
		return zero, false, eventstore.ErrCursorClosed
	default:
	}

	if len(c.page) == 0 {
		if c.next >= c.end {
			return zero, false, nil
		}

		if err := c.load(ctx); err != nil {
			return zero, false, err
		}

		if len(c.page) == 0 {
			return zero, false, nil
		}
	}

	ev := c.page[0]
	c.page = c.page[1:]

	return ev, true, nil
}

// load reads the next page of events.
func (c *cursor[ID, T]) load(ctx context.Context) (err error) {
	defer sqlx.Recover(&err)

	args := append(
		[]any{c.next, c.end, c.pageSize},
		c.args...,
	)

	rows := sqlx.Query(ctx, c.db, c.query, args...)
	defer rows.Close()

	n := 0

	for rows.Next() {
		n++

		var (
			ev   eventstore.Persisted[ID, T]
			id   []byte
			data []byte
		)

		sqlx.Must(rows.Scan(&ev.Sequence, &id, &ev.Version, &data))
		sqlx.Must(codec.Unmarshal(id, &ev.SourceID))
		sqlx.Must(codec.Unmarshal(data, &ev.Event))

		c.page = append(c.page, ev)
		c.next = ev.Sequence + 1
	}

	sqlx.Must(rows.Err())

	if n < c.pageSize {
		// A short page means there are no more matching rows before c.end.
		c.next = c.end
	}

	return nil
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
