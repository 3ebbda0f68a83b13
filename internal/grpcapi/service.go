package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "codesnip.v1.Complexity"

const (
	estimateMethod = "/" + ServiceName + "/Estimate"
	classesMethod  = "/" + ServiceName + "/Classes"
)

// ComplexityServer is the server API for the Complexity service. Messages are
// protobuf well-known types, so no generated code is needed.
type ComplexityServer interface {
	Estimate(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Classes(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
}

// ComplexityServiceDesc describes the Complexity service for grpc.Server.
var ComplexityServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ComplexityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Estimate", Handler: estimateHandler},
		{MethodName: "Classes", Handler: classesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "codesnip/v1/complexity.proto",
}

func estimateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ComplexityServer).Estimate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: estimateMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ComplexityServer).Estimate(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func classesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ComplexityServer).Classes(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: classesMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ComplexityServer).Classes(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls the Complexity service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Estimate estimates the complexity of code.
func (c *Client) Estimate(ctx context.Context, code string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, estimateMethod, wrapperspb.String(code), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Classes lists the complexity classes.
func (c *Client) Classes(ctx context.Context, opts ...grpc.CallOption) ([]string, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, classesMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	classes := make([]string, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		classes = append(classes, v.GetStringValue())
	}
	return classes, nil
}
