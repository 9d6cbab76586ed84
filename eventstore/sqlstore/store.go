// Package sqlstore is an implementation of the eventstore interfaces that
// persists events in an SQLite database.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/projector/eventstore"
	"github.com/dogmatiq/projector/eventstore/internal/codec"
	"github.com/dogmatiq/projector/eventstore/internal/feed"
	"github.com/dogmatiq/projector/internal/x/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// DriverName is the name of the database/sql driver used by Open().
const DriverName = "sqlite"

// Store is an event store that persists events in an SQLite database.
//
// It implements eventstore.Store, eventstore.Subscriber and
// eventstore.Appender.
type Store[ID comparable, T any] struct {
	db       *sql.DB
	ownsDB   bool
	logger   logging.Logger
	pageSize int

	m      sync.RWMutex
	closed bool
	feed   feed.Feed[ID, T]
}

var (
	_ eventstore.Store[string, any]      = (*Store[string, any])(nil)
	_ eventstore.Subscriber[string, any] = (*Store[string, any])(nil)
	_ eventstore.Appender[string, any]   = (*Store[string, any])(nil)
)

// Open opens the SQLite database described by dsn, creates the schema if
// necessary and returns a store that uses it.
//
// The database is closed when the store is closed.
func Open[ID comparable, T any](
	ctx context.Context,
	dsn string,
	opts ...Option,
) (*Store[ID, T], error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to connect to %s: %w", dsn, err)
	}

	if err := CreateSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to create schema: %w", err)
	}

	s := New[ID, T](db, opts...)
	s.ownsDB = true

	return s, nil
}

// New returns a store that uses an existing database.
//
// The schema must already exist, see CreateSchema(). The database is not
// closed when the store is closed. Only one store may use a given database at
// any one time.
func New[ID comparable, T any](
	db *sql.DB,
	opts ...Option,
) *Store[ID, T] {
	o := resolveOptions(opts)

	return &Store[ID, T]{
		db:       db,
		logger:   o.Logger,
		pageSize: o.PageSize,
	}
}

// Append records events produced by the source identified by id.
func (s *Store[ID, T]) Append(
	ctx context.Context,
	id ID,
	v eventstore.Expected,
	events ...T,
) (uint32, error) {
	key, err := codec.Marshal(id)
	if err != nil {
		return 0, fmt.Errorf("unable to marshal source ID: %w", err)
	}

	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return 0, eventstore.ErrStoreClosed
	}

	version, recorded, err := s.insert(ctx, id, key, v, events)
	if err != nil {
		return 0, err
	}

	if len(recorded) != 0 {
		// Publishing while s.m is still held guarantees that every event is
		// either visible to StreamAll() or delivered to subscriptions opened
		// before it.
		if err := s.feed.Publish(recorded...); err != nil {
			return 0, err
		}

		logging.Debug(
			s.logger,
			"recorded %d event(s) from '%v', now at version %d",
			len(recorded),
			id,
			version,
		)
	}

	return version, nil
}

// insert records events within a single transaction.
func (s *Store[ID, T]) insert(
	ctx context.Context,
	id ID,
	key []byte,
	v eventstore.Expected,
	events []T,
) (version uint32, recorded []eventstore.Persisted[ID, T], err error) {
	err = sqlx.Update(ctx, s.db, func(tx *sql.Tx) {
		version = sqlx.QueryScalar[uint32](
			ctx,
			tx,
			`SELECT COALESCE(MAX(version), 0)
			FROM events
			WHERE source_id = ?1`,
			key,
		)

		sqlx.Must(v.Check(version))

		if len(events) == 0 {
			return
		}

		seq := sqlx.QueryScalar[uint64](
			ctx,
			tx,
			`SELECT COALESCE(MAX(sequence) + 1, 0)
			FROM events`,
		)

		for _, ev := range events {
			version++

			data, err := codec.Marshal(ev)
			sqlx.Must(err)

			sqlx.Exec(
				ctx,
				tx,
				`INSERT INTO events (
					sequence,
					source_id,
					version,
					data
				) VALUES (
					?1, ?2, ?3, ?4
				)`,
				seq,
				key,
				version,
				data,
			)

			recorded = append(
				recorded,
				eventstore.Persisted[ID, T]{
					SourceID: id,
					Version:  version,
					Sequence: seq,
					Event:    ev,
				},
			)

			seq++
		}
	})

	if err != nil {
		return 0, nil, err
	}

	return version, recorded, nil
}

// Stream returns a cursor over the events produced by a single source.
func (s *Store[ID, T]) Stream(
	ctx context.Context,
	id ID,
	sel eventstore.Select,
) (eventstore.Cursor[ID, T], error) {
	key, err := codec.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal source ID: %w", err)
	}

	return s.open(
		ctx,
		`SELECT sequence, source_id, version, data
		FROM events
		WHERE sequence >= ?1
		AND sequence < ?2
		AND source_id = ?4
		AND version >= ?5
		ORDER BY sequence
		LIMIT ?3`,
		0,
		key,
		sel.From,
	)
}

// StreamAll returns a cursor over the events produced by all sources.
func (s *Store[ID, T]) StreamAll(
	ctx context.Context,
	sel eventstore.Select,
) (eventstore.Cursor[ID, T], error) {
	return s.open(
		ctx,
		`SELECT sequence, source_id, version, data
		FROM events
		WHERE sequence >= ?1
		AND sequence < ?2
		ORDER BY sequence
		LIMIT ?3`,
		sel.From,
	)
}

// SubscribeAll returns a cursor over every event recorded after the call
// returns.
func (s *Store[ID, T]) SubscribeAll(
	ctx context.Context,
) (eventstore.Cursor[ID, T], error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.m.RLock()
	defer s.m.RUnlock()

	return s.feed.Subscribe(), nil
}

// Close closes the store.
//
// Open subscriptions end once they have returned every event recorded before
// the store was closed. If the store was created by Open() the database is
// closed too.
func (s *Store[ID, T]) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return eventstore.ErrStoreClosed
	}

	s.closed = true
	s.feed.Seal()

	if s.ownsDB {
		return s.db.Close()
	}

	return nil
}

// open returns a cursor over the events recorded before the call.
//
// query must accept the lower-bound sequence number, the upper-bound sequence
// number and the page size as ?1, ?2 and ?3, followed by args.
func (s *Store[ID, T]) open(
	ctx context.Context,
	query string,
	from uint64,
	args ...any,
) (_ eventstore.Cursor[ID, T], err error) {
	defer sqlx.Recover(&err)

	s.m.RLock()
	defer s.m.RUnlock()

	if s.closed {
		return nil, eventstore.ErrStoreClosed
	}

	end := sqlx.QueryScalar[uint64](
		ctx,
		s.db,
		`SELECT COALESCE(MAX(sequence) + 1, 0)
		FROM events`,
	)

	return &cursor[ID, T]{
		db:       s.db,
		query:    query,
		args:     args,
		next:     from,
		end:      end,
		pageSize: s.pageSize,
		closed:   make(chan struct{}),
	}, nil
}
