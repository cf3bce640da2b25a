package metaserver

import (
	"context"
	"errors"
	"log/slog"

	"eddisonso.com/go-qfs/internal/buildinfo"
	"eddisonso.com/go-qfs/internal/wire"
	"eddisonso.com/go-qfs/pkg/kfs"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	maxListLimit = 1000
	// MaxTransfer bounds the data carried by one Read or Write call.
	MaxTransfer = 1 << 20
)

// GRPCServer implements the metaserver gRPC service. Filesystem failures are
// returned in-band as native result codes, never as gRPC errors.
type GRPCServer struct {
	ns       *Namespace
	sessions *Sessions
}

// NewGRPCServer creates a new gRPC server for the namespace
func NewGRPCServer(ns *Namespace, sessions *Sessions) *GRPCServer {
	return &GRPCServer{ns: ns, sessions: sessions}
}

var _ wire.MetaServerServer = (*GRPCServer)(nil)

func result(op string, req *wire.Request, err error) *wire.Reply {
	if err != nil {
		code := kfs.Code(err)
		if errors.Is(err, kfs.ENOENT) || errors.Is(err, kfs.EEXIST) {
			slog.Debug("request failed", "op", op, "path", req.Path, "code", code)
		} else {
			slog.Warn("request failed", "op", op, "path", req.Path, "inode", req.Inode, "error", err)
		}
		return &wire.Reply{Code: int64(code)}
	}
	return &wire.Reply{}
}

// Handshake opens a session and returns its token
func (s *GRPCServer) Handshake(ctx context.Context, req *wire.Request) (*wire.Reply, error) {
	token, id, err := s.sessions.Issue(req.Host)
	if err != nil {
		slog.Error("failed to issue session", "error", err)
		return nil, status.Error(codes.Internal, "failed to issue session")
	}
	slog.Info("client session opened", "session", id, "host", req.Host, "port", req.Port)
	return &wire.Reply{
		Token:     token,
		BuildID:   buildinfo.BuildID,
		ChunkSize: s.ns.ChunkSize(),
	}, nil
}

func (s *GRPCServer) Stat(ctx context.Context, req *wire.Request) (*wire.Reply, error) {
	a, err := s.ns.Stat(ctx, req.Path)
	if err != nil {
		return result("stat", req, err), nil
	}
	return &wire.Reply{Attr: &a}, nil
}

func (s *GRPCServer) StatInode(ctx context.Context, req *wire.Request) (*wire.Reply, error) {
	a, err := s.ns.StatInode(ctx, req.Inode)
	if err != nil {
		return result("stat inode", req, err), nil
	}
	return &wire.Reply{Attr: &a}, nil
}

func (s *GRPCServer) Create(ctx context.Context, req *wire.Request) (*wire.Reply, error) {
	a, err := s.ns.Create(ctx, req.Path, int(req.Flags), req.Mode, req.Params)
	if err != nil {
		return result("create", req, err), nil
	}
	return &wire.Reply{Attr: &a}, nil
}

func (s *GRPCServer) Mkdir(ctx context.Context, req *wire.Request) (*wire.Reply, error) {
	return result("mkdir", req, s.ns.Mkdir(ctx, req.Path, req.Mode, req.Recursive)), nil
}

func (s *GRPCServer) Rmdir(ctx context.Context, req *wire.Request) (*wire.Reply, error) {
	return result("rmdir", req, s.ns.Rmdir(ctx, req.Path, req.Recursive)), nil
}

func (s *GRPCServer) Remove(ctx context.Context, req *wire.Request) (*wire.Reply, error) {
	return result("remove", req, s.ns.Remove(ctx, req.Path)), nil
}

func (s *GRPCServer) Rename(ctx context.Context, req *wire.Request) (*wire.Reply, error) {
	return result("rename", req, s.ns.Rename(ctx, req.Path, req.NewPath)), nil
}

func (s *GRPCServer) Chmod(ctx context.Context, req *wire.Request) (*wire.Reply, error) {
	return result("chmod", req, s.ns.Chmod(ctx, req.Path, req.Mode, req.Recursive)), nil
}

func (s *GRPCServer) ChmodInode(ctx context.Context, req *wire.Request) (*wire.Reply, error) {
	return result("chmod inode", req, s.ns.ChmodInode(ctx, req.Inode, req.Mode)), nil
}

func (s *GRPCServer) List(ctx context.Context, req *wire.Request) (*wire.Reply, error) {
	limit := int(req.Limit)
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	attrs, err := s.ns.List(ctx, req.Path, req.After, limit)
	if err != nil {
		return result("list", req, err), nil
	}
	return &wire.Reply{Attrs: attrs, Count: int64(len(attrs))}, nil
}

func (s *GRPCServer) Read(ctx context.Context, req *wire.Request) (*wire.Reply, error) {
	length := min(req.Length, MaxTransfer)
	data, err := s.ns.ReadAt(ctx, req.Inode, req.Offset, int(length))
	if err != nil {
		return result("read", req, err), nil
	}
	return &wire.Reply{Data: data, Count: int64(len(data))}, nil
}

func (s *GRPCServer) Write(ctx context.Context, req *wire.Request) (*wire.Reply, error) {
	if len(req.Data) > MaxTransfer {
		return result("write", req, kfs.EFBIG), nil
	}
	n, err := s.ns.WriteAt(ctx, req.Inode, req.Offset, req.Data)
	reply := result("write", req, err)
	reply.Count = int64(n)
	return reply, nil
}
