// Package feed provides the in-memory live stream that event stores use to
// implement eventstore.Subscriber.
package feed

import (
	"sync"

	"github.com/dogmatiq/projector/eventstore"
)

// Feed is an in-memory, append-only stream of recently recorded events.
//
// Events are only reachable from cursors that were opened before the events
// were published. Nodes that are no longer referenced by any cursor are
// garbage collected.
//
// The zero-value is ready to use.
type Feed[ID comparable, T any] struct {
	m      sync.Mutex
	tail   *node[ID, T]
	sealed bool
}

// Publish makes events available to all open cursors.
//
// It returns eventstore.ErrStoreClosed if the feed has been sealed.
func (f *Feed[ID, T]) Publish(events ...eventstore.Persisted[ID, T]) error {
	if len(events) == 0 {
		return nil
	}

	f.m.Lock()
	defer f.m.Unlock()

	if f.sealed {
		return eventstore.ErrStoreClosed
	}

	f.init()

	n := newNode(
		append([]eventstore.Persisted[ID, T](nil), events...),
	)

	f.tail.link(n)
	f.tail = n

	return nil
}

// Subscribe returns a cursor that reads every event published after the call
// returns.
//
// If the feed is sealed the cursor ends without returning any events.
func (f *Feed[ID, T]) Subscribe() eventstore.Cursor[ID, T] {
	f.m.Lock()
	defer f.m.Unlock()

	f.init()

	return &cursor[ID, T]{
		node:   f.tail,
		index:  len(f.tail.events),
		closed: make(chan struct{}),
	}
}

// Seal ends the feed.
//
// Open cursors return any events they have not yet read, and then report the
// end of the stream.
func (f *Feed[ID, T]) Seal() {
	f.m.Lock()
	defer f.m.Unlock()

	if f.sealed {
		return
	}

	f.init()
	f.sealed = true
	f.tail.link(nil)
}

// IsSealed returns true if Seal() has been called.
func (f *Feed[ID, T]) IsSealed() bool {
	f.m.Lock()
	defer f.m.Unlock()

	return f.sealed
}

// init creates the initial empty node.
// It assumes f.m is already locked.
func (f *Feed[ID, T]) init() {
	if f.tail == nil {
		f.tail = newNode[ID, T](nil)
	}
}
