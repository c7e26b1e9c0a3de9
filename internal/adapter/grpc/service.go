package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the settlement gRPC service.
// Messages are google.protobuf.Struct, so no generated stubs are needed.
const ServiceName = "settlement.v1.SettlementService"

const (
	createMethod = "CreateRequest"
	cancelMethod = "CancelRequest"
	finishMethod = "FinishRequest"
	refundMethod = "RefundRequest"
)

// SettlementServer is the server API for the settlement service
type SettlementServer interface {
	CreateRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	CancelRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	FinishRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	RefundRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// RegisterSettlementServer registers srv on s
func RegisterSettlementServer(s grpc.ServiceRegistrar, srv SettlementServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SettlementServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: createMethod, Handler: unaryHandler(createMethod, SettlementServer.CreateRequest)},
		{MethodName: cancelMethod, Handler: unaryHandler(cancelMethod, SettlementServer.CancelRequest)},
		{MethodName: finishMethod, Handler: unaryHandler(finishMethod, SettlementServer.FinishRequest)},
		{MethodName: refundMethod, Handler: unaryHandler(refundMethod, SettlementServer.RefundRequest)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "settlement/v1/settlement.proto",
}

type unaryMethod func(SettlementServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SettlementServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(name),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SettlementServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// Client calls the settlement service over a client connection
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a Client on cc
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) CreateRequest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, createMethod, in, opts...)
}

func (c *Client) CancelRequest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, cancelMethod, in, opts...)
}

func (c *Client) FinishRequest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, finishMethod, in, opts...)
}

func (c *Client) RefundRequest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, refundMethod, in, opts...)
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
