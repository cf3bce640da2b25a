package native

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"eddisonso.com/go-qfs/internal/metaserver"
	"eddisonso.com/go-qfs/internal/wire"
	"eddisonso.com/go-qfs/pkg/kfs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RemoteConfig configures sessions with a metaserver over gRPC.
type RemoteConfig struct {
	// DialOptions replace the default insecure transport when set.
	DialOptions []grpc.DialOption
	CallTimeout time.Duration
	PageSize    int
	Logger      *slog.Logger
}

// RemoteDialer opens sessions with the metaserver at host:port.
func RemoteDialer(cfg RemoteConfig) kfs.Dialer {
	return kfs.DialerFunc(func(ctx context.Context, host string, port int) (kfs.Client, error) {
		svc, err := dialRemote(ctx, host, port, cfg)
		if err != nil {
			return nil, err
		}
		return NewSession(svc, SessionOptions{
			CallTimeout: cfg.CallTimeout,
			PageSize:    cfg.PageSize,
			Logger:      cfg.Logger,
		}), nil
	})
}

type remoteService struct {
	conn   *grpc.ClientConn
	client *wire.MetaServerClient
	token  string
}

func dialRemote(ctx context.Context, host string, port int, cfg RemoteConfig) (*remoteService, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	opts := cfg.DialOptions
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	conn, err := grpc.NewClient("passthrough:///"+addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", addr, err)
	}
	client := wire.NewMetaServerClient(conn)

	if _, ok := ctx.Deadline(); !ok && cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.CallTimeout)
		defer cancel()
	}
	reply, err := client.Call(ctx, wire.MethodHandshake, &wire.Request{Host: host, Port: int64(port)})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake with %s failed: %w", addr, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("connected to metaserver", "addr", addr, "buildId", reply.BuildID, "chunkSize", reply.ChunkSize)

	return &remoteService{
		conn:   conn,
		client: client,
		token:  reply.Token,
	}, nil
}

// transportError maps a gRPC failure onto a native error number.
func transportError(err error) error {
	var errno kfs.Errno
	switch status.Code(err) {
	case codes.Unavailable:
		errno = kfs.ECONNREFUSED
	case codes.DeadlineExceeded:
		errno = kfs.ETIMEDOUT
	case codes.Unauthenticated, codes.PermissionDenied:
		errno = kfs.EACCES
	default:
		errno = kfs.EIO
	}
	return fmt.Errorf("%w: %v", errno, err)
}

func (r *remoteService) call(ctx context.Context, method string, req *wire.Request) (*wire.Reply, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, metaserver.AuthorizationKey, "Bearer "+r.token)
	reply, err := r.client.Call(ctx, method, req)
	if err != nil {
		return nil, transportError(err)
	}
	if reply.Code < 0 {
		return reply, kfs.FromCode(int(reply.Code))
	}
	return reply, nil
}

func (r *remoteService) attr(ctx context.Context, method string, req *wire.Request) (kfs.Attr, error) {
	reply, err := r.call(ctx, method, req)
	if err != nil {
		return kfs.Attr{}, err
	}
	if reply.Attr == nil {
		return kfs.Attr{}, fmt.Errorf("%w: %s reply without attributes", kfs.EIO, method)
	}
	return *reply.Attr, nil
}

func (r *remoteService) Stat(ctx context.Context, p string) (kfs.Attr, error) {
	return r.attr(ctx, wire.MethodStat, &wire.Request{Path: p})
}

func (r *remoteService) StatInode(ctx context.Context, id int64) (kfs.Attr, error) {
	return r.attr(ctx, wire.MethodStatInode, &wire.Request{Inode: id})
}

func (r *remoteService) Create(ctx context.Context, p string, flags int, mode uint32, params string) (kfs.Attr, error) {
	return r.attr(ctx, wire.MethodCreate, &wire.Request{Path: p, Flags: int64(flags), Mode: mode, Params: params})
}

func (r *remoteService) Mkdir(ctx context.Context, p string, mode uint32, parents bool) error {
	_, err := r.call(ctx, wire.MethodMkdir, &wire.Request{Path: p, Mode: mode, Recursive: parents})
	return err
}

func (r *remoteService) Rmdir(ctx context.Context, p string, recursive bool) error {
	_, err := r.call(ctx, wire.MethodRmdir, &wire.Request{Path: p, Recursive: recursive})
	return err
}

func (r *remoteService) Remove(ctx context.Context, p string) error {
	_, err := r.call(ctx, wire.MethodRemove, &wire.Request{Path: p})
	return err
}

func (r *remoteService) Rename(ctx context.Context, oldPath, newPath string) error {
	_, err := r.call(ctx, wire.MethodRename, &wire.Request{Path: oldPath, NewPath: newPath})
	return err
}

func (r *remoteService) Chmod(ctx context.Context, p string, mode uint32, recursive bool) error {
	_, err := r.call(ctx, wire.MethodChmod, &wire.Request{Path: p, Mode: mode, Recursive: recursive})
	return err
}

func (r *remoteService) ChmodInode(ctx context.Context, id int64, mode uint32) error {
	_, err := r.call(ctx, wire.MethodChmodInode, &wire.Request{Inode: id, Mode: mode})
	return err
}

func (r *remoteService) List(ctx context.Context, p string, after string, limit int) ([]kfs.Attr, error) {
	reply, err := r.call(ctx, wire.MethodList, &wire.Request{Path: p, After: after, Limit: int64(limit)})
	if err != nil {
		return nil, err
	}
	return reply.Attrs, nil
}

// ReadAt splits large reads into transfers the server accepts.
func (r *remoteService) ReadAt(ctx context.Context, id int64, off int64, n int) ([]byte, error) {
	out := make([]byte, 0, min(n, metaserver.MaxTransfer))
	for len(out) < n {
		want := min(n-len(out), metaserver.MaxTransfer)
		reply, err := r.call(ctx, wire.MethodRead, &wire.Request{Inode: id, Offset: off + int64(len(out)), Length: int64(want)})
		if err != nil {
			if len(out) > 0 {
				return out, nil
			}
			return nil, err
		}
		out = append(out, reply.Data...)
		if len(reply.Data) < want {
			break
		}
	}
	return out, nil
}

func (r *remoteService) WriteAt(ctx context.Context, id int64, off int64, data []byte) (int, error) {
	written := 0
	for written < len(data) {
		piece := data[written:min(len(data), written+metaserver.MaxTransfer)]
		reply, err := r.call(ctx, wire.MethodWrite, &wire.Request{Inode: id, Offset: off + int64(written), Data: piece})
		if reply != nil {
			written += int(reply.Count)
		}
		if err != nil {
			return written, err
		}
		if int(reply.Count) < len(piece) {
			break
		}
	}
	return written, nil
}

func (r *remoteService) Close() error {
	return r.conn.Close()
}
