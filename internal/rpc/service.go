// Package rpc exposes source resolution over gRPC.
//
// Messages are google.protobuf.Struct values carrying the JSON form of manifest.Document
// (request) and report.Report (response), so the service needs no generated stubs.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "sourcemap.v1.SourceResolver"

	resolveFullMethod = "/" + ServiceName + "/Resolve"
)

// SourceResolverServer is the server API of the SourceResolver service.
type SourceResolverServer interface {
	Resolve(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterSourceResolverServer registers srv on s.
func RegisterSourceResolverServer(s grpc.ServiceRegistrar, srv SourceResolverServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func resolveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SourceResolverServer).Resolve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: resolveFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SourceResolverServer).Resolve(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes the SourceResolver service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SourceResolverServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Resolve",
			Handler:    resolveHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sourcemap/v1/source_resolver.proto",
}
