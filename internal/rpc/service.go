package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

const serviceName = "cardity.v1.ProtocolService"

// ProtocolServiceServer is the server-side interface for ProtocolService.
type ProtocolServiceServer interface {
	Compile(context.Context, *CompileRequest) (*CompileResponse, error)
	DeriveABI(context.Context, *DeriveABIRequest) (*DeriveABIResponse, error)
	Deploy(context.Context, *DeployRequest) (*DeployResponse, error)
	Invoke(context.Context, *InvokeRequest) (*InvokeResponse, error)
}

// RegisterProtocolServiceServer registers srv on a gRPC server.
func RegisterProtocolServiceServer(s *grpc.Server, srv ProtocolServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

func handlerCompile(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(CompileRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(ProtocolServiceServer).Compile(ctx, req)
}

func handlerDeriveABI(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(DeriveABIRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(ProtocolServiceServer).DeriveABI(ctx, req)
}

func handlerDeploy(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(DeployRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(ProtocolServiceServer).Deploy(ctx, req)
}

func handlerInvoke(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(InvokeRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(ProtocolServiceServer).Invoke(ctx, req)
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

// serviceDesc is the manual gRPC service descriptor for ProtocolService.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ProtocolServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Compile", Handler: handlerCompile},
		{MethodName: "DeriveABI", Handler: handlerDeriveABI},
		{MethodName: "Deploy", Handler: handlerDeploy},
		{MethodName: "Invoke", Handler: handlerInvoke},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cardity/v1/protocol.cram",
}
