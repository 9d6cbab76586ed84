package networkstore

import (
	"context"
	"sync"

	"github.com/dogmatiq/projector/eventstore"
	"github.com/dogmatiq/projector/eventstore/internal/codec"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// item is a value produced by a cursor's receive loop.
type item[ID comparable, T any] struct {
	event eventstore.Persisted[ID, T]
	err   error
}

// cursor is an eventstore.Cursor that reads events from a server-streaming
// gRPC call.
type cursor[ID comparable, T any] struct {
	cancel context.CancelFunc
	items  chan item[ID, T]

	once   sync.Once
	closed chan struct{}
}

// Next returns the next event in the stream.
func (c *cursor[ID, T]) Next(ctx context.Context) (eventstore.Persisted[ID, T], bool, error) {
	var zero eventstore.Persisted[ID, T]

	select {
	case <-c.closed:
		return zero, false, eventstore.ErrCursorClosed
	default:
	}

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case <-c.closed:
		return zero, false, eventstore.ErrCursorClosed
	case it, ok := <-c.items:
		if !ok {
			return zero, false, nil
		}
		return it.event, it.err == nil, it.err
	}
}

// Close discards the cursor, canceling the underlying call.
func (c *cursor[ID, T]) Close() error {
	err := eventstore.ErrCursorClosed

	c.once.Do(func() {
		err = nil
		c.cancel()
		close(c.closed)
	})

	return err
}

// recv reads messages from cs until the call ends.
//
// It sends nil to ready once the server has opened its cursor, or the error
// that prevented it from doing so.
func (c *cursor[ID, T]) recv(
	ctx context.Context,
	cs grpc.ClientStream,
	ready chan<- error,
) {
	defer close(c.items)

	md, err := cs.Header()
	if err != nil {
		ready <- fromStatus(err)
		return
	}

	if md == nil {
		// The call ended without the server sending headers, so the server
		// failed to open its cursor. The status is only available from
		// RecvMsg().
		err := cs.RecvMsg(&wrapperspb.BytesValue{})
		if isEndOfStream(err) {
			ready <- nil
		} else {
			ready <- fromStatus(err)
		}
		return
	}

	ready <- nil

	for {
		m := &wrapperspb.BytesValue{}

		if err := cs.RecvMsg(m); err != nil {
			if !isEndOfStream(err) {
				c.deliver(ctx, item[ID, T]{err: fromStatus(err)})
			}
			return
		}

		ev, err := codec.UnmarshalEvent[ID, T](m.GetValue())
		if !c.deliver(ctx, item[ID, T]{ev, err}) || err != nil {
			return
		}
	}
}

// deliver sends it to the reader. It returns false if the call is canceled
// first.
func (c *cursor[ID, T]) deliver(ctx context.Context, it item[ID, T]) bool {
	select {
	case c.items <- it:
		return true
	case <-ctx.Done():
		return false
	}
}
