// Package networkstore exposes event stores over gRPC.
//
// Server makes an eventstore.Store and eventstore.Subscriber available to
// remote clients. Client implements those same interfaces by calling a remote
// server.
package networkstore

import (
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified name of the gRPC service.
const ServiceName = "projector.eventstore.v1.EventStore"

const (
	streamMethod       = "/" + ServiceName + "/Stream"
	streamAllMethod    = "/" + ServiceName + "/StreamAll"
	subscribeAllMethod = "/" + ServiceName + "/SubscribeAll"
)

// handler is the interface that a gRPC service implementation must satisfy to
// be registered using serviceDesc.
type handler interface {
	stream(*wrapperspb.BytesValue, grpc.ServerStream) error
	streamAll(*wrapperspb.BytesValue, grpc.ServerStream) error
	subscribeAll(*emptypb.Empty, grpc.ServerStream) error
}

// streamRequest is the CBOR-encoded payload of a Stream request.
type streamRequest struct {
	SourceID []byte `cbor:"1,keyasint"`
	From     uint64 `cbor:"2,keyasint"`
}

// streamAllRequest is the CBOR-encoded payload of a StreamAll request.
type streamAllRequest struct {
	From uint64 `cbor:"1,keyasint"`
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*handler)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			ServerStreams: true,
			Handler: func(srv any, ss grpc.ServerStream) error {
				req := &wrapperspb.BytesValue{}
				if err := ss.RecvMsg(req); err != nil {
					return err
				}
				return srv.(handler).stream(req, ss)
			},
		},
		{
			StreamName:    "StreamAll",
			ServerStreams: true,
			Handler: func(srv any, ss grpc.ServerStream) error {
				req := &wrapperspb.BytesValue{}
				if err := ss.RecvMsg(req); err != nil {
					return err
				}
				return srv.(handler).streamAll(req, ss)
			},
		},
		{
			StreamName:    "SubscribeAll",
			ServerStreams: true,
			Handler: func(srv any, ss grpc.ServerStream) error {
				req := &emptypb.Empty{}
				if err := ss.RecvMsg(req); err != nil {
					return err
				}
				return srv.(handler).subscribeAll(req, ss)
			},
		},
	},
}

// streamDescs maps method names to the descriptors used by the client.
var streamDescs = map[string]*grpc.StreamDesc{
	streamMethod:       &serviceDesc.Streams[0],
	streamAllMethod:    &serviceDesc.Streams[1],
	subscribeAllMethod: &serviceDesc.Streams[2],
}
