package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "moviehub.admin.v1.Admin"

// AdminServer is the admin surface. Responses are loosely typed structs shaped like
// the HTTP API's JSON bodies.
type AdminServer interface {
	TriggerCycle(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	LastCycle(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	ListGenres(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "TriggerCycle", Handler: unary("TriggerCycle", AdminServer.TriggerCycle)},
		{MethodName: "LastCycle", Handler: unary("LastCycle", AdminServer.LastCycle)},
		{MethodName: "ListGenres", Handler: unary("ListGenres", AdminServer.ListGenres)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "moviehub/admin/v1/admin.proto",
}

func RegisterAdminServer(s grpc.ServiceRegistrar, srv AdminServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type adminMethod func(AdminServer, context.Context, *emptypb.Empty) (*structpb.Struct, error)

func unary(name string, call adminMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + ServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AdminServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AdminServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client calls the admin service over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) TriggerCycle(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "TriggerCycle", opts...)
}

func (c *Client) LastCycle(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "LastCycle", opts...)
}

func (c *Client) ListGenres(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListGenres", opts...)
}

func (c *Client) invoke(ctx context.Context, method string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
