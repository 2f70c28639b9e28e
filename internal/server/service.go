package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "ketama.v1.Ring"

// Full method names.
const (
	GetNodeMethod     = "/" + serviceName + "/GetNode"
	GetNodesMethod    = "/" + serviceName + "/GetNodes"
	AddNodesMethod    = "/" + serviceName + "/AddNodes"
	RemoveNodesMethod = "/" + serviceName + "/RemoveNodes"
	ListNodesMethod   = "/" + serviceName + "/ListNodes"
)

// RingServer is the server API of the ring service.
type RingServer interface {
	// GetNode resolves a key to its node.
	GetNode(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	// GetNodes returns the preference list for {"key": string, "count": number}.
	GetNodes(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	// AddNodes registers the nodes of an {id: weight} struct.
	AddNodes(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	// RemoveNodes drops a list of node ids.
	RemoveNodes(context.Context, *structpb.ListValue) (*emptypb.Empty, error)
	// ListNodes returns the {id: weight} membership.
	ListNodes(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterRingServer registers srv on s.
func RegisterRingServer(s grpc.ServiceRegistrar, srv RingServer) {
	s.RegisterService(&ringServiceDesc, srv)
}

var ringServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RingServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetNode",
			Handler:    unaryHandler(GetNodeMethod, RingServer.GetNode),
		},
		{
			MethodName: "GetNodes",
			Handler:    unaryHandler(GetNodesMethod, RingServer.GetNodes),
		},
		{
			MethodName: "AddNodes",
			Handler:    unaryHandler(AddNodesMethod, RingServer.AddNodes),
		},
		{
			MethodName: "RemoveNodes",
			Handler:    unaryHandler(RemoveNodesMethod, RingServer.RemoveNodes),
		},
		{
			MethodName: "ListNodes",
			Handler:    unaryHandler(ListNodesMethod, RingServer.ListNodes),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ketama/v1/ring.proto",
}

// unaryHandler adapts a RingServer method to a grpc.MethodHandler.
func unaryHandler[Req, Resp any](fullMethod string, call func(RingServer, context.Context, *Req) (Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RingServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
