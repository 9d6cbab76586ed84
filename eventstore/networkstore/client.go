package networkstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dogmatiq/projector/eventstore"
	"github.com/dogmatiq/projector/eventstore/internal/codec"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is an event store that reads events from a remote server.
//
// It implements eventstore.Store and eventstore.Subscriber.
type Client[ID comparable, T any] struct {
	conn grpc.ClientConnInterface
}

var (
	_ eventstore.Store[string, any]      = (*Client[string, any])(nil)
	_ eventstore.Subscriber[string, any] = (*Client[string, any])(nil)
)

// NewClient returns a client that calls the server on the other end of conn.
func NewClient[ID comparable, T any](conn grpc.ClientConnInterface) *Client[ID, T] {
	return &Client[ID, T]{conn}
}

// Stream returns a cursor over the events produced by a single source.
func (c *Client[ID, T]) Stream(
	ctx context.Context,
	id ID,
	sel eventstore.Select,
) (eventstore.Cursor[ID, T], error) {
	key, err := codec.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal source ID: %w", err)
	}

	data, err := codec.Marshal(streamRequest{key, sel.From})
	if err != nil {
		return nil, err
	}

	return c.open(ctx, streamMethod, wrapperspb.Bytes(data))
}

// StreamAll returns a cursor over the events produced by all sources.
func (c *Client[ID, T]) StreamAll(
	ctx context.Context,
	sel eventstore.Select,
) (eventstore.Cursor[ID, T], error) {
	data, err := codec.Marshal(streamAllRequest{sel.From})
	if err != nil {
		return nil, err
	}

	return c.open(ctx, streamAllMethod, wrapperspb.Bytes(data))
}

// SubscribeAll returns a cursor over every event recorded after the call
// returns.
func (c *Client[ID, T]) SubscribeAll(
	ctx context.Context,
) (eventstore.Cursor[ID, T], error) {
	return c.open(ctx, subscribeAllMethod, &emptypb.Empty{})
}

// open starts a server-streaming call and waits until the server reports that
// its cursor is open.
//
// The call outlives ctx. It is canceled when the returned cursor is closed.
func (c *Client[ID, T]) open(
	ctx context.Context,
	method string,
	req proto.Message,
) (eventstore.Cursor[ID, T], error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	cs, err := c.conn.NewStream(callCtx, streamDescs[method], method)
	if err != nil {
		cancel()
		return nil, fromStatus(err)
	}

	if err := cs.SendMsg(req); err != nil {
		cancel()
		return nil, fromStatus(err)
	}

	if err := cs.CloseSend(); err != nil {
		cancel()
		return nil, fromStatus(err)
	}

	cur := &cursor[ID, T]{
		cancel: cancel,
		items:  make(chan item[ID, T]),
		closed: make(chan struct{}),
	}

	ready := make(chan error, 1)
	go cur.recv(callCtx, cs, ready)

	select {
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	case err := <-ready:
		if err != nil {
			cancel()
			return nil, err
		}
	}

	return cur, nil
}

// fromStatus converts a gRPC status error into the equivalent store error.
func fromStatus(err error) error {
	s, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch s.Code() {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	case codes.Unavailable:
		if s.Message() == eventstore.ErrStoreClosed.Error() {
			return eventstore.ErrStoreClosed
		}
	}

	return err
}

// isEndOfStream returns true if err indicates that the server finished the
// call without error.
func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF)
}
