// Package memorystore is an in-memory implementation of the eventstore
// interfaces.
package memorystore

import (
	"context"
	"sync"

	"github.com/dogmatiq/projector/eventstore"
	"github.com/dogmatiq/projector/eventstore/internal/feed"
)

// Store is an in-memory event store.
//
// It implements eventstore.Store, eventstore.Subscriber and
// eventstore.Appender. The zero-value is ready to use.
type Store[ID comparable, T any] struct {
	m        sync.RWMutex
	closed   bool
	events   []eventstore.Persisted[ID, T]
	versions map[ID]uint32
	feed     feed.Feed[ID, T]
}

var (
	_ eventstore.Store[string, any]      = (*Store[string, any])(nil)
	_ eventstore.Subscriber[string, any] = (*Store[string, any])(nil)
	_ eventstore.Appender[string, any]   = (*Store[string, any])(nil)
)

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

	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return 0, eventstore.ErrStoreClosed
	}

	version := s.versions[id]

	if err := v.Check(version); err != nil {
		return 0, err
	}

	if len(events) == 0 {
		return version, nil
	}

	begin := len(s.events)

	for _, ev := range events {
		version++
		s.events = append(
			s.events,
			eventstore.Persisted[ID, T]{
				SourceID: id,
				Version:  version,
				Sequence: uint64(len(s.events)),
				Event:    ev,
			},
		)
	}

	if s.versions == nil {
		s.versions = map[ID]uint32{}
	}
	s.versions[id] = version

	// Publishing while s.m is still held guarantees that every event is either
	// visible to StreamAll() or delivered to subscriptions opened before it.
	if err := s.feed.Publish(s.events[begin:]...); err != nil {
		return 0, err
	}

	return version, nil
}

// Stream returns a cursor over the events produced by a single source.
func (s *Store[ID, T]) Stream(
	ctx context.Context,
	id ID,
	sel eventstore.Select,
) (eventstore.Cursor[ID, T], error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.m.RLock()
	defer s.m.RUnlock()

	var events []eventstore.Persisted[ID, T]
	for _, ev := range s.events {
		if ev.SourceID == id && uint64(ev.Version) >= sel.From {
			events = append(events, ev)
		}
	}

	return newCursor(events), nil
}

// StreamAll returns a cursor over the events produced by all sources.
func (s *Store[ID, T]) StreamAll(
	ctx context.Context,
	sel eventstore.Select,
) (eventstore.Cursor[ID, T], error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.m.RLock()
	defer s.m.RUnlock()

	var events []eventstore.Persisted[ID, T]
	if sel.From < uint64(len(s.events)) {
		// The slice is append-only, so a sub-slice of it is a stable snapshot
		// even as more events are recorded.
		events = s.events[sel.From:len(s.events):len(s.events)]
	}

	return newCursor(events), nil
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
// the store was closed.
func (s *Store[ID, T]) Close() error {
	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		return eventstore.ErrStoreClosed
	}

	s.closed = true
	s.feed.Seal()

	return nil
}
