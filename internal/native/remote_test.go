package native

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"eddisonso.com/go-qfs/internal/metaserver"
	"eddisonso.com/go-qfs/internal/wire"
	"eddisonso.com/go-qfs/pkg/kfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func startMetaServer(t *testing.T) *bufconn.Listener {
	t.Helper()
	ns, err := metaserver.NewNamespace(metaserver.Config{ChunkSize: 1 << 20}, nil)
	require.NoError(t, err)
	sessions := metaserver.NewSessions(metaserver.StaticSecret([]byte("test")), time.Hour)

	srv := grpc.NewServer(grpc.UnaryInterceptor(sessions.UnaryInterceptor()))
	wire.RegisterMetaServerServer(srv, metaserver.NewGRPCServer(ns, sessions))

	lis := bufconn.Listen(1 << 20)
	go srv.Serve(lis)
	t.Cleanup(func() {
		srv.Stop()
		ns.Close()
	})
	return lis
}

func bufDialOptions(lis *bufconn.Listener) []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
}

func TestRemoteSession(t *testing.T) {
	lis := startMetaServer(t)
	dialer := RemoteDialer(RemoteConfig{DialOptions: bufDialOptions(lis), CallTimeout: 10 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, err := dialer.Connect(ctx, "meta", 20000)
	require.NoError(t, err)
	defer c.Release()

	require.Equal(t, 0, c.Mkdirs("/data", 0755))
	fd := c.Open("/data/blob", kfs.O_RDWR|kfs.O_CREAT|kfs.O_TRUNC, 0644, "1,6,3,65536")
	require.GreaterOrEqual(t, fd, 0)

	payload := bytes.Repeat([]byte("0123456789abcdef"), 3*metaserver.MaxTransfer/16+7)
	require.Equal(t, int64(len(payload)), c.Write(fd, payload))
	require.Equal(t, int64(0), c.Seek(fd, 0, kfs.SeekSet))

	buf := make([]byte, len(payload)+10)
	n := c.Read(fd, buf)
	require.Equal(t, int64(len(payload)), n)
	assert.True(t, bytes.Equal(payload, buf[:n]))

	var attr kfs.Attr
	require.Equal(t, 0, c.StatFD(fd, &attr))
	assert.Equal(t, int64(len(payload)), attr.Size)
	assert.Equal(t, kfs.StriperRS, attr.StriperType)
	assert.Equal(t, int32(6), attr.Stripes)
	require.Equal(t, 0, c.Close(fd))

	var cur kfs.Cursor
	require.Equal(t, 1, c.Readdir("/data", &cur, &attr))
	assert.Equal(t, "blob", attr.Filename)
	assert.Equal(t, 0, c.Readdir("/data", &cur, &attr))
	c.FreeCursor(&cur)

	assert.Equal(t, -int(kfs.ENOENT), c.Stat("/data/none", &attr))
	assert.Equal(t, -int(kfs.EEXIST), c.Mkdir("/data", 0755))
	assert.Equal(t, -int(kfs.EINVAL), c.Open("/data/x", kfs.O_CREAT|kfs.O_WRONLY, 0644, "bogus"))
}

func TestRemoteHandshakeLogsServer(t *testing.T) {
	lis := startMetaServer(t)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	dialer := RemoteDialer(RemoteConfig{DialOptions: bufDialOptions(lis), CallTimeout: 10 * time.Second, Logger: logger})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, err := dialer.Connect(ctx, "meta", 20000)
	require.NoError(t, err)
	c.Release()

	out := logs.String()
	assert.Contains(t, out, "connected to metaserver")
	assert.Contains(t, out, "buildId=unknown")
	assert.Contains(t, out, "chunkSize=1048576")
}

func TestRemoteRejectsCallsWithoutSession(t *testing.T) {
	lis := startMetaServer(t)
	conn, err := grpc.NewClient("passthrough:///bufnet", bufDialOptions(lis)...)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = wire.NewMetaServerClient(conn).Call(ctx, wire.MethodStat, &wire.Request{Path: "/"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestRemoteConnectFailure(t *testing.T) {
	dialer := RemoteDialer(RemoteConfig{DialOptions: []grpc.DialOption{
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return nil, errors.New("connection refused")
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := dialer.Connect(ctx, "nowhere", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handshake with nowhere:1 failed")
}

func TestTransportError(t *testing.T) {
	assert.ErrorIs(t, transportError(status.Error(codes.Unavailable, "down")), kfs.ECONNREFUSED)
	assert.ErrorIs(t, transportError(status.Error(codes.DeadlineExceeded, "slow")), kfs.ETIMEDOUT)
	assert.ErrorIs(t, transportError(status.Error(codes.Unauthenticated, "who")), kfs.EACCES)
	assert.ErrorIs(t, transportError(errors.New("other")), kfs.EIO)
}
