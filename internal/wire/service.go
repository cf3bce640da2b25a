package wire

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "qfs.MetaServer"

// Method names.
const (
	MethodHandshake  = "Handshake"
	MethodStat       = "Stat"
	MethodStatInode  = "StatInode"
	MethodCreate     = "Create"
	MethodMkdir      = "Mkdir"
	MethodRmdir      = "Rmdir"
	MethodRemove     = "Remove"
	MethodRename     = "Rename"
	MethodChmod      = "Chmod"
	MethodChmodInode = "ChmodInode"
	MethodList       = "List"
	MethodRead       = "Read"
	MethodWrite      = "Write"
)

// FullMethod returns the gRPC method path for name.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// MetaServerServer is the server API of the metaserver service.
type MetaServerServer interface {
	Handshake(context.Context, *Request) (*Reply, error)
	Stat(context.Context, *Request) (*Reply, error)
	StatInode(context.Context, *Request) (*Reply, error)
	Create(context.Context, *Request) (*Reply, error)
	Mkdir(context.Context, *Request) (*Reply, error)
	Rmdir(context.Context, *Request) (*Reply, error)
	Remove(context.Context, *Request) (*Reply, error)
	Rename(context.Context, *Request) (*Reply, error)
	Chmod(context.Context, *Request) (*Reply, error)
	ChmodInode(context.Context, *Request) (*Reply, error)
	List(context.Context, *Request) (*Reply, error)
	Read(context.Context, *Request) (*Reply, error)
	Write(context.Context, *Request) (*Reply, error)
}

type serverMethod func(MetaServerServer, context.Context, *Request) (*Reply, error)

func unaryHandler(name string, call serverMethod) grpc.MethodDesc {
	fullMethod := FullMethod(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Request)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MetaServerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MetaServerServer), ctx, req.(*Request))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the metaserver service to grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MetaServerServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(MethodHandshake, MetaServerServer.Handshake),
		unaryHandler(MethodStat, MetaServerServer.Stat),
		unaryHandler(MethodStatInode, MetaServerServer.StatInode),
		unaryHandler(MethodCreate, MetaServerServer.Create),
		unaryHandler(MethodMkdir, MetaServerServer.Mkdir),
		unaryHandler(MethodRmdir, MetaServerServer.Rmdir),
		unaryHandler(MethodRemove, MetaServerServer.Remove),
		unaryHandler(MethodRename, MetaServerServer.Rename),
		unaryHandler(MethodChmod, MetaServerServer.Chmod),
		unaryHandler(MethodChmodInode, MetaServerServer.ChmodInode),
		unaryHandler(MethodList, MetaServerServer.List),
		unaryHandler(MethodRead, MetaServerServer.Read),
		unaryHandler(MethodWrite, MetaServerServer.Write),
	},
	Metadata: "qfs/metaserver",
}

// RegisterMetaServerServer registers srv with s.
func RegisterMetaServerServer(s grpc.ServiceRegistrar, srv MetaServerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// MetaServerClient calls the metaserver service.
type MetaServerClient struct {
	cc grpc.ClientConnInterface
}

func NewMetaServerClient(cc grpc.ClientConnInterface) *MetaServerClient {
	return &MetaServerClient{cc: cc}
}

// Call invokes method with the wire codec.
func (c *MetaServerClient) Call(ctx context.Context, method string, in *Request, opts ...grpc.CallOption) (*Reply, error) {
	out := new(Reply)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(Name)}, opts...)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
