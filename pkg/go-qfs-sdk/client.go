package qfs

import (
	"context"
	"log/slog"
	"net"
	"runtime"
	"strconv"
	"sync"
	"time"

	"eddisonso.com/go-qfs/internal/native"
	"eddisonso.com/go-qfs/pkg/kfs"
	"eddisonso.com/go-qfs/pkg/qfslog"
	"google.golang.org/grpc"
)

// DefaultPort is the port metaservers listen on unless configured otherwise.
const DefaultPort = 20000

// Option configures the SDK client.
type Option func(*clientConfig)

type clientConfig struct {
	dialer      kfs.Dialer
	logger      *slog.Logger
	trace       bool
	dialOptions []grpc.DialOption
	callTimeout time.Duration
	pageSize    int
}

func newConfig(opts []Option) clientConfig {
	cfg := clientConfig{
		trace:       qfslog.TraceFromEnv(),
		callTimeout: native.DefaultCallTimeout,
		pageSize:    native.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.logger == nil {
		cfg.logger = slog.Default()
		if cfg.trace {
			if l, err := qfslog.NewLogger(qfslog.Config{Source: "qfs", MinLevel: qfslog.LevelTrace}); err == nil {
				cfg.logger = l.Logger
			}
		}
	}
	if cfg.dialer == nil {
		cfg.dialer = native.RemoteDialer(native.RemoteConfig{
			DialOptions: cfg.dialOptions,
			CallTimeout: cfg.callTimeout,
			PageSize:    cfg.pageSize,
			Logger:      cfg.logger,
		})
	}
	return cfg
}

// WithDialer replaces the gRPC transport with another native backend.
// WithDialOptions, WithCallTimeout and WithPageSize are ignored when set.
func WithDialer(d kfs.Dialer) Option {
	return func(cfg *clientConfig) {
		cfg.dialer = d
	}
}

// WithLogger sets the logger used for warnings and trace records.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) {
		cfg.logger = l
	}
}

// WithTrace overrides the QFS_TRACE environment toggle.
func WithTrace(on bool) Option {
	return func(cfg *clientConfig) {
		cfg.trace = on
	}
}

// WithDialOptions overrides the gRPC dial options used to reach the metaserver.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(cfg *clientConfig) {
		cfg.dialOptions = opts
	}
}

// WithCallTimeout bounds every metaserver call.
func WithCallTimeout(timeout time.Duration) Option {
	return func(cfg *clientConfig) {
		cfg.callTimeout = timeout
	}
}

// WithPageSize sets how many directory entries are fetched per round trip.
func WithPageSize(n int) Option {
	return func(cfg *clientConfig) {
		cfg.pageSize = n
	}
}

type tracer struct {
	logger *slog.Logger
	on     bool
}

// call logs the entry of op and returns a func logging its exit.
func (t tracer) call(op string, args ...any) func() {
	if !t.on {
		return func() {}
	}
	t.logger.Log(context.Background(), qfslog.LevelTrace, op+" enter", args...)
	return func() {
		t.logger.Log(context.Background(), qfslog.LevelTrace, op+" exit", args...)
	}
}

// Client is a session with a metaserver. It is not safe for concurrent use
// beyond what the native session guarantees.
type Client struct {
	host   string
	port   int
	logger *slog.Logger
	tracer tracer

	mu      sync.Mutex
	session kfs.Client
}

// Connect performs the handshake with the metaserver at host:port.
func Connect(ctx context.Context, host string, port int, opts ...Option) (*Client, error) {
	cfg := newConfig(opts)
	t := tracer{logger: cfg.logger, on: cfg.trace}
	defer t.call("connect", "host", host, "port", port)()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	session, err := cfg.dialer.Connect(ctx, host, port)
	if err != nil {
		return nil, &Error{Op: "connect", Path: addr, Kind: ErrConnectionFailed, Err: err}
	}
	if session == nil {
		return nil, layerError("connect", addr, ErrConnectionFailed)
	}

	c := &Client{
		host:    host,
		port:    port,
		logger:  cfg.logger,
		tracer:  t,
		session: session,
	}
	runtime.SetFinalizer(c, (*Client).Release)
	return c, nil
}

// WithClient connects, runs fn and releases the client however fn returns.
func WithClient(ctx context.Context, host string, port int, fn func(*Client) error, opts ...Option) error {
	c, err := Connect(ctx, host, port, opts...)
	if err != nil {
		return err
	}
	defer c.Release()
	return fn(c)
}

// Release ends the session. It is safe to call more than once; calls after the
// first do nothing.
func (c *Client) Release() {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()
	if s == nil {
		return
	}

	defer c.tracer.call("release", "host", c.host, "port", c.port)()
	s.Release()
	runtime.SetFinalizer(c, nil)
}

// Released reports whether Release has been called.
func (c *Client) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session == nil
}

// Host returns the metaserver host.
func (c *Client) Host() string { return c.host }

// Port returns the metaserver port.
func (c *Client) Port() int { return c.port }

// native returns the live session or ErrClientClosed.
func (c *Client) native(op, path string) (kfs.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, layerError(op, path, ErrClientClosed)
	}
	return c.session, nil
}
