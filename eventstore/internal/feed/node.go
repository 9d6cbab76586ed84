package feed

import (
	"context"

	"github.com/dogmatiq/projector/eventstore"
)

// node is a member of a singly-linked list of contiguous "batches" of events.
type node[ID comparable, T any] struct {
	events []eventstore.Persisted[ID, T]
	next   *node[ID, T]

	// done is closed when next is linked, or when the feed is sealed, in which
	// case next is nil.
	done chan struct{}
}

func newNode[ID comparable, T any](events []eventstore.Persisted[ID, T]) *node[ID, T] {
	return &node[ID, T]{
		events: events,
		done:   make(chan struct{}),
	}
}

// advance returns the next node in the list, or nil if the feed has been
// sealed.
//
// It blocks until the next node is linked, ctx is canceled or closed is
// closed.
func (n *node[ID, T]) advance(
	ctx context.Context,
	closed <-chan struct{},
) (*node[ID, T], error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-closed:
		return nil, eventstore.ErrCursorClosed
	case <-n.done:
		return n.next, nil
	}
}

// link sets n.next and wakes any blocked calls to advance().
func (n *node[ID, T]) link(next *node[ID, T]) {
	n.next = next
	close(n.done)
}
