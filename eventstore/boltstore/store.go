// Package boltstore is an implementation of the eventstore interfaces that
// persists events in a BoltDB database.
package boltstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/projector/eventstore"
	"github.com/dogmatiq/projector/eventstore/internal/codec"
	"github.com/dogmatiq/projector/eventstore/internal/feed"
	"github.com/dogmatiq/projector/internal/x/bboltx"
	"go.etcd.io/bbolt"
)

var (
	// eventsKey is the name of the bucket that maps sequence numbers to
	// events. The bucket's own sequence number is the number of events it
	// contains.
	eventsKey = []byte("events")

	// versionsKey is the name of the bucket that maps source IDs to the
	// version of the most recent event produced by that source.
	versionsKey = []byte("versions")
)

// Store is an event store that persists events in a BoltDB database.
//
// It implements eventstore.Store, eventstore.Subscriber and
// eventstore.Appender.
type Store[ID comparable, T any] struct {
	db     *bbolt.DB
	ownsDB bool
	logger logging.Logger

	m      sync.RWMutex
	closed bool
	feed   feed.Feed[ID, T]
}

var (
	_ eventstore.Store[string, any]      = (*Store[string, any])(nil)
	_ eventstore.Subscriber[string, any] = (*Store[string, any])(nil)
	_ eventstore.Appender[string, any]   = (*Store[string, any])(nil)
)

// Open opens the database at the given path, creating it if necessary, and
// returns a store that uses it.
//
// The database is closed when the store is closed.
func Open[ID comparable, T any](
	ctx context.Context,
	path string,
	opts ...Option,
) (*Store[ID, T], error) {
	o := resolveOptions(opts)

	db, err := bboltx.Open(ctx, path, o.FileMode, o.BoltOptions)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s: %w", path, err)
	}

	s, err := New[ID, T](db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}

	s.ownsDB = true

	return s, nil
}

// New returns a store that uses an existing database.
//
// The database is not closed when the store is closed. Only one store may use
// a given database at any one time.
func New[ID comparable, T any](
	db *bbolt.DB,
	opts ...Option,
) (*Store[ID, T], error) {
	o := resolveOptions(opts)

	if err := bboltx.Update(db, func(tx *bbolt.Tx) {
		bboltx.CreateBucketIfNotExists(tx, eventsKey)
		bboltx.CreateBucketIfNotExists(tx, versionsKey)
	}); err != nil {
		return nil, fmt.Errorf("unable to create buckets: %w", err)
	}

	return &Store[ID, T]{
		db:     db,
		logger: o.Logger,
	}, nil
}

// Append records events produced by the source identified by id.
func (s *Store[ID, T]) Append(
	ctx context.Context,
	id ID,
	v eventstore.Expected,
	events ...T,
) (uint32, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	key, err := codec.Marshal(id)
	if err != nil {
		return 0, fmt.Errorf("unable to marshal source ID: %w", err)
	}

	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return 0, eventstore.ErrStoreClosed
	}

	var (
		version  uint32
		recorded []eventstore.Persisted[ID, T]
	)

	err = bboltx.Update(s.db, func(tx *bbolt.Tx) {
		versions := bboltx.Bucket(tx, versionsKey)
		version = unmarshalVersion(versions.Get(key))

		bboltx.Must(v.Check(version))

		if len(events) == 0 {
			return
		}

		b := bboltx.Bucket(tx, eventsKey)
		seq := b.Sequence()

		for _, ev := range events {
			version++

			p := eventstore.Persisted[ID, T]{
				SourceID: id,
				Version:  version,
				Sequence: seq,
				Event:    ev,
			}

			data, err := codec.MarshalEvent(p)
			bboltx.Must(err)
			bboltx.Put(b, marshalSequence(seq), data)

			recorded = append(recorded, p)
			seq++
		}

		bboltx.SetSequence(b, seq)
		bboltx.Put(versions, key, marshalVersion(version))
	})
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

// Stream returns a cursor over the events produced by a single source.
func (s *Store[ID, T]) Stream(
	ctx context.Context,
	id ID,
	sel eventstore.Select,
) (eventstore.Cursor[ID, T], error) {
	return s.open(
		ctx,
		0,
		func(ev eventstore.Persisted[ID, T]) bool {
			return ev.SourceID == id && uint64(ev.Version) >= sel.From
		},
	)
}

// StreamAll returns a cursor over the events produced by all sources.
func (s *Store[ID, T]) StreamAll(
	ctx context.Context,
	sel eventstore.Select,
) (eventstore.Cursor[ID, T], error) {
	return s.open(ctx, sel.From, nil)
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

// open returns a cursor over the events recorded before the call, beginning
// at the given sequence number.
func (s *Store[ID, T]) open(
	ctx context.Context,
	from uint64,
	match func(eventstore.Persisted[ID, T]) bool,
) (eventstore.Cursor[ID, T], error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.m.RLock()
	defer s.m.RUnlock()

	if s.closed {
		return nil, eventstore.ErrStoreClosed
	}

	var end uint64
	if err := bboltx.View(s.db, func(tx *bbolt.Tx) {
		end = bboltx.Bucket(tx, eventsKey).Sequence()
	}); err != nil {
		return nil, err
	}

	return &cursor[ID, T]{
		db:     s.db,
		next:   from,
		end:    end,
		match:  match,
		closed: make(chan struct{}),
	}, nil
}

// marshalSequence returns the bucket key for the event with the given
// sequence number.
func marshalSequence(seq uint64) []byte {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, seq)
	return data
}

// unmarshalSequence returns the sequence number encoded in a bucket key.
func unmarshalSequence(data []byte) uint64 {
	if len(data) != 8 {
		bboltx.Must(fmt.Errorf("sequence number is corrupt, expected 8 bytes, got %d", len(data)))
	}

	return binary.BigEndian.Uint64(data)
}

// marshalVersion returns the binary representation of a source version.
func marshalVersion(v uint32) []byte {
	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, v)
	return data
}

// unmarshalVersion returns the version encoded by data. Missing data means the
// source has not produced any events.
func unmarshalVersion(data []byte) uint32 {
	switch len(data) {
	case 0:
		return 0
	case 4:
		return binary.BigEndian.Uint32(data)
	default:
		bboltx.Must(fmt.Errorf("version is corrupt, expected 4 bytes, got %d", len(data)))
		return 0
	}
}
