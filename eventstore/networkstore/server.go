package networkstore

import (
	"context"
	"errors"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/projector/eventstore"
	"github.com/dogmatiq/projector/eventstore/internal/codec"
	"github.com/dogmatiq/projector/internal/x/grpcx"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServerOption configures the behavior of a server registered by
// RegisterServer().
type ServerOption func(*serverOptions)

type serverOptions struct {
	Logger logging.Logger
}

// WithLogger returns a server option that sets the logger used by the server.
//
// By default logging.DefaultLogger is used.
func WithLogger(l logging.Logger) ServerOption {
	return func(o *serverOptions) {
		o.Logger = l
	}
}

// RegisterServer registers a gRPC service that exposes store and sub to
// remote clients.
func RegisterServer[ID comparable, T any](
	r grpc.ServiceRegistrar,
	store eventstore.Store[ID, T],
	sub eventstore.Subscriber[ID, T],
	opts ...ServerOption,
) {
	o := serverOptions{
		Logger: logging.DefaultLogger,
	}

	for _, opt := range opts {
		opt(&o)
	}

	r.RegisterService(
		&serviceDesc,
		&server[ID, T]{
			store:  store,
			sub:    sub,
			logger: o.Logger,
		},
	)
}

// server is the implementation of the gRPC service.
type server[ID comparable, T any] struct {
	store  eventstore.Store[ID, T]
	sub    eventstore.Subscriber[ID, T]
	logger logging.Logger
}

func (s *server[ID, T]) stream(req *wrapperspb.BytesValue, ss grpc.ServerStream) error {
	var r streamRequest
	if err := codec.Unmarshal(req.GetValue(), &r); err != nil {
		return invalidArgument("value", err)
	}

	var id ID
	if err := codec.Unmarshal(r.SourceID, &id); err != nil {
		return invalidArgument("value.source_id", err)
	}

	cur, err := s.store.Stream(ss.Context(), id, eventstore.SelectFrom(r.From))
	if err != nil {
		return toStatus(err)
	}

	logging.Debug(s.logger, "streaming events from '%v', beginning at version %d", id, r.From)

	return s.send(ss, cur)
}

func (s *server[ID, T]) streamAll(req *wrapperspb.BytesValue, ss grpc.ServerStream) error {
	var r streamAllRequest
	if err := codec.Unmarshal(req.GetValue(), &r); err != nil {
		return invalidArgument("value", err)
	}

	cur, err := s.store.StreamAll(ss.Context(), eventstore.SelectFrom(r.From))
	if err != nil {
		return toStatus(err)
	}

	logging.Debug(s.logger, "streaming all events, beginning at sequence number %d", r.From)

	return s.send(ss, cur)
}

func (s *server[ID, T]) subscribeAll(_ *emptypb.Empty, ss grpc.ServerStream) error {
	cur, err := s.sub.SubscribeAll(ss.Context())
	if err != nil {
		return toStatus(err)
	}

	logging.Debug(s.logger, "subscription opened")
	defer logging.Debug(s.logger, "subscription closed")

	return s.send(ss, cur)
}

// send sends response headers, which tells the client that cur is open, then
// sends each event read from cur.
func (s *server[ID, T]) send(ss grpc.ServerStream, cur eventstore.Cursor[ID, T]) error {
	defer cur.Close()

	if err := ss.SendHeader(metadata.MD{}); err != nil {
		return err
	}

	ctx := ss.Context()

	for {
		ev, ok, err := cur.Next(ctx)
		if err != nil {
			return toStatus(err)
		}

		if !ok {
			return nil
		}

		data, err := codec.MarshalEvent(ev)
		if err != nil {
			return toStatus(err)
		}

		if err := ss.SendMsg(wrapperspb.Bytes(data)); err != nil {
			return err
		}
	}
}

// invalidArgument returns an error indicating that a request field could not
// be decoded.
func invalidArgument(field string, err error) error {
	return grpcx.Errorf(
		codes.InvalidArgument,
		[]proto.Message{
			&errdetails.BadRequest{
				FieldViolations: []*errdetails.BadRequest_FieldViolation{
					{
						Field:       field,
						Description: err.Error(),
					},
				},
			},
		},
		"invalid request: %s",
		err,
	)
}

// toStatus converts an error produced by a store into a gRPC status error.
func toStatus(err error) error {
	if errors.Is(err, eventstore.ErrStoreClosed) {
		return status.Error(codes.Unavailable, eventstore.ErrStoreClosed.Error())
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}

	return status.Error(codes.Internal, err.Error())
}
