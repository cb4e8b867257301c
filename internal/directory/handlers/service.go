package handlers

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "dexapp.directory.v1.DirectoryService"

// FullMethod returns the gRPC method path of a DirectoryService method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// DirectoryServiceServer is the server API of the directory service. Every
// request and response is a JSON-shaped structpb.Struct.
type DirectoryServiceServer interface {
	ListCompanies(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCompany(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateCompany(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateCompany(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AppendDeed(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteCompany(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

// ServiceDesc describes DirectoryService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DirectoryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListCompanies", Handler: unaryHandler("ListCompanies", DirectoryServiceServer.ListCompanies)},
		{MethodName: "GetCompany", Handler: unaryHandler("GetCompany", DirectoryServiceServer.GetCompany)},
		{MethodName: "CreateCompany", Handler: unaryHandler("CreateCompany", DirectoryServiceServer.CreateCompany)},
		{MethodName: "UpdateCompany", Handler: unaryHandler("UpdateCompany", DirectoryServiceServer.UpdateCompany)},
		{MethodName: "AppendDeed", Handler: unaryHandler("AppendDeed", DirectoryServiceServer.AppendDeed)},
		{MethodName: "DeleteCompany", Handler: unaryHandler("DeleteCompany", DirectoryServiceServer.DeleteCompany)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dexapp/directory/v1/directory.proto",
}

func unaryHandler[Resp proto.Message](
	method string,
	call func(DirectoryServiceServer, context.Context, *structpb.Struct) (Resp, error),
) grpc.MethodHandler {
	fullMethod := FullMethod(method)
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DirectoryServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(DirectoryServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// DirectoryClient is a thin client for DirectoryService.
type DirectoryClient struct {
	cc grpc.ClientConnInterface
}

func NewDirectoryClient(cc grpc.ClientConnInterface) *DirectoryClient {
	return &DirectoryClient{cc: cc}
}

func (c *DirectoryClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DirectoryClient) ListCompanies(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListCompanies", in, opts...)
}

func (c *DirectoryClient) GetCompany(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetCompany", in, opts...)
}

func (c *DirectoryClient) CreateCompany(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CreateCompany", in, opts...)
}

func (c *DirectoryClient) UpdateCompany(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "UpdateCompany", in, opts...)
}

func (c *DirectoryClient) AppendDeed(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "AppendDeed", in, opts...)
}

func (c *DirectoryClient) DeleteCompany(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, FullMethod("DeleteCompany"), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
