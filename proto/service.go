package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "davlock.v1.DavLock"

// Full method names.
const (
	DavLock_Lock_FullMethodName             = "/" + ServiceName + "/Lock"
	DavLock_Refresh_FullMethodName          = "/" + ServiceName + "/Refresh"
	DavLock_Unlock_FullMethodName           = "/" + ServiceName + "/Unlock"
	DavLock_GetLockInfo_FullMethodName      = "/" + ServiceName + "/GetLockInfo"
	DavLock_GetLocks_FullMethodName         = "/" + ServiceName + "/GetLocks"
	DavLock_Stat_FullMethodName             = "/" + ServiceName + "/Stat"
	DavLock_List_FullMethodName             = "/" + ServiceName + "/List"
	DavLock_CreateDocument_FullMethodName   = "/" + ServiceName + "/CreateDocument"
	DavLock_CreateCollection_FullMethodName = "/" + ServiceName + "/CreateCollection"
	DavLock_Delete_FullMethodName           = "/" + ServiceName + "/Delete"
)

// DavLockServer is the server API for the davlock.v1.DavLock service.
// Implementations must embed UnimplementedDavLockServer.
type DavLockServer interface {
	Lock(context.Context, *LockRequest) (*LockResponse, error)
	Refresh(context.Context, *RefreshRequest) (*RefreshResponse, error)
	Unlock(context.Context, *UnlockRequest) (*UnlockResponse, error)
	GetLockInfo(context.Context, *GetLockInfoRequest) (*GetLockInfoResponse, error)
	GetLocks(context.Context, *GetLocksRequest) (*GetLocksResponse, error)
	Stat(context.Context, *StatRequest) (*StatResponse, error)
	List(context.Context, *ListRequest) (*ListResponse, error)
	CreateDocument(context.Context, *CreateDocumentRequest) (*CreateDocumentResponse, error)
	CreateCollection(context.Context, *CreateCollectionRequest) (*CreateCollectionResponse, error)
	Delete(context.Context, *DeleteRequest) (*DeleteResponse, error)
	mustEmbedUnimplementedDavLockServer()
}

// UnimplementedDavLockServer answers every method with codes.Unimplemented.
type UnimplementedDavLockServer struct{}

func (UnimplementedDavLockServer) Lock(context.Context, *LockRequest) (*LockResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Lock not implemented")
}
func (UnimplementedDavLockServer) Refresh(context.Context, *RefreshRequest) (*RefreshResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Refresh not implemented")
}
func (UnimplementedDavLockServer) Unlock(context.Context, *UnlockRequest) (*UnlockResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Unlock not implemented")
}
func (UnimplementedDavLockServer) GetLockInfo(context.Context, *GetLockInfoRequest) (*GetLockInfoResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetLockInfo not implemented")
}
func (UnimplementedDavLockServer) GetLocks(context.Context, *GetLocksRequest) (*GetLocksResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetLocks not implemented")
}
func (UnimplementedDavLockServer) Stat(context.Context, *StatRequest) (*StatResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Stat not implemented")
}
func (UnimplementedDavLockServer) List(context.Context, *ListRequest) (*ListResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method List not implemented")
}
func (UnimplementedDavLockServer) CreateDocument(context.Context, *CreateDocumentRequest) (*CreateDocumentResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateDocument not implemented")
}
func (UnimplementedDavLockServer) CreateCollection(context.Context, *CreateCollectionRequest) (*CreateCollectionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateCollection not implemented")
}
func (UnimplementedDavLockServer) Delete(context.Context, *DeleteRequest) (*DeleteResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Delete not implemented")
}
func (UnimplementedDavLockServer) mustEmbedUnimplementedDavLockServer() {}

// RegisterDavLockServer registers srv on s.
func RegisterDavLockServer(s grpc.ServiceRegistrar, srv DavLockServer) {
	s.RegisterService(&DavLock_ServiceDesc, srv)
}

// unaryHandler adapts a typed server method to grpc.MethodHandler.
func unaryHandler[Req any](fullMethod string, call func(DavLockServer, context.Context, *Req) (any, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DavLockServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DavLockServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// DavLock_ServiceDesc is the grpc.ServiceDesc for the davlock.v1.DavLock service.
var DavLock_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DavLockServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Lock",
			Handler: unaryHandler(DavLock_Lock_FullMethodName, func(s DavLockServer, ctx context.Context, r *LockRequest) (any, error) {
				return s.Lock(ctx, r)
			}),
		},
		{
			MethodName: "Refresh",
			Handler: unaryHandler(DavLock_Refresh_FullMethodName, func(s DavLockServer, ctx context.Context, r *RefreshRequest) (any, error) {
				return s.Refresh(ctx, r)
			}),
		},
		{
			MethodName: "Unlock",
			Handler: unaryHandler(DavLock_Unlock_FullMethodName, func(s DavLockServer, ctx context.Context, r *UnlockRequest) (any, error) {
				return s.Unlock(ctx, r)
			}),
		},
		{
			MethodName: "GetLockInfo",
			Handler: unaryHandler(DavLock_GetLockInfo_FullMethodName, func(s DavLockServer, ctx context.Context, r *GetLockInfoRequest) (any, error) {
				return s.GetLockInfo(ctx, r)
			}),
		},
		{
			MethodName: "GetLocks",
			Handler: unaryHandler(DavLock_GetLocks_FullMethodName, func(s DavLockServer, ctx context.Context, r *GetLocksRequest) (any, error) {
				return s.GetLocks(ctx, r)
			}),
		},
		{
			MethodName: "Stat",
			Handler: unaryHandler(DavLock_Stat_FullMethodName, func(s DavLockServer, ctx context.Context, r *StatRequest) (any, error) {
				return s.Stat(ctx, r)
			}),
		},
		{
			MethodName: "List",
			Handler: unaryHandler(DavLock_List_FullMethodName, func(s DavLockServer, ctx context.Context, r *ListRequest) (any, error) {
				return s.List(ctx, r)
			}),
		},
		{
			MethodName: "CreateDocument",
			Handler: unaryHandler(DavLock_CreateDocument_FullMethodName, func(s DavLockServer, ctx context.Context, r *CreateDocumentRequest) (any, error) {
				return s.CreateDocument(ctx, r)
			}),
		},
		{
			MethodName: "CreateCollection",
			Handler: unaryHandler(DavLock_CreateCollection_FullMethodName, func(s DavLockServer, ctx context.Context, r *CreateCollectionRequest) (any, error) {
				return s.CreateCollection(ctx, r)
			}),
		},
		{
			MethodName: "Delete",
			Handler: unaryHandler(DavLock_Delete_FullMethodName, func(s DavLockServer, ctx context.Context, r *DeleteRequest) (any, error) {
				return s.Delete(ctx, r)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "davlock/v1/davlock.proto",
}

// DavLockClient is the client API for the davlock.v1.DavLock service.
type DavLockClient interface {
	Lock(ctx context.Context, in *LockRequest, opts ...grpc.CallOption) (*LockResponse, error)
	Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*RefreshResponse, error)
	Unlock(ctx context.Context, in *UnlockRequest, opts ...grpc.CallOption) (*UnlockResponse, error)
	GetLockInfo(ctx context.Context, in *GetLockInfoRequest, opts ...grpc.CallOption) (*GetLockInfoResponse, error)
	GetLocks(ctx context.Context, in *GetLocksRequest, opts ...grpc.CallOption) (*GetLocksResponse, error)
	Stat(ctx context.Context, in *StatRequest, opts ...grpc.CallOption) (*StatResponse, error)
	List(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListResponse, error)
	CreateDocument(ctx context.Context, in *CreateDocumentRequest, opts ...grpc.CallOption) (*CreateDocumentResponse, error)
	CreateCollection(ctx context.Context, in *CreateCollectionRequest, opts ...grpc.CallOption) (*CreateCollectionResponse, error)
	Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error)
}

type davLockClient struct {
	cc grpc.ClientConnInterface
}

// NewDavLockClient returns a client stub over cc. Every call uses the JSON codec.
func NewDavLockClient(cc grpc.ClientConnInterface) DavLockClient {
	return &davLockClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *davLockClient) Lock(ctx context.Context, in *LockRequest, opts ...grpc.CallOption) (*LockResponse, error) {
	return invoke[LockResponse](ctx, c.cc, DavLock_Lock_FullMethodName, in, opts)
}

func (c *davLockClient) Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*RefreshResponse, error) {
	return invoke[RefreshResponse](ctx, c.cc, DavLock_Refresh_FullMethodName, in, opts)
}

func (c *davLockClient) Unlock(ctx context.Context, in *UnlockRequest, opts ...grpc.CallOption) (*UnlockResponse, error) {
	return invoke[UnlockResponse](ctx, c.cc, DavLock_Unlock_FullMethodName, in, opts)
}

func (c *davLockClient) GetLockInfo(ctx context.Context, in *GetLockInfoRequest, opts ...grpc.CallOption) (*GetLockInfoResponse, error) {
	return invoke[GetLockInfoResponse](ctx, c.cc, DavLock_GetLockInfo_FullMethodName, in, opts)
}

func (c *davLockClient) GetLocks(ctx context.Context, in *GetLocksRequest, opts ...grpc.CallOption) (*GetLocksResponse, error) {
	return invoke[GetLocksResponse](ctx, c.cc, DavLock_GetLocks_FullMethodName, in, opts)
}

func (c *davLockClient) Stat(ctx context.Context, in *StatRequest, opts ...grpc.CallOption) (*StatResponse, error) {
	return invoke[StatResponse](ctx, c.cc, DavLock_Stat_FullMethodName, in, opts)
}

func (c *davLockClient) List(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListResponse, error) {
	return invoke[ListResponse](ctx, c.cc, DavLock_List_FullMethodName, in, opts)
}

func (c *davLockClient) CreateDocument(ctx context.Context, in *CreateDocumentRequest, opts ...grpc.CallOption) (*CreateDocumentResponse, error) {
	return invoke[CreateDocumentResponse](ctx, c.cc, DavLock_CreateDocument_FullMethodName, in, opts)
}

func (c *davLockClient) CreateCollection(ctx context.Context, in *CreateCollectionRequest, opts ...grpc.CallOption) (*CreateCollectionResponse, error) {
	return invoke[CreateCollectionResponse](ctx, c.cc, DavLock_CreateCollection_FullMethodName, in, opts)
}

func (c *davLockClient) Delete(ctx context.Context, in *DeleteRequest, opts ...grpc.CallOption) (*DeleteResponse, error) {
	return invoke[DeleteResponse](ctx, c.cc, DavLock_Delete_FullMethodName, in, opts)
}
