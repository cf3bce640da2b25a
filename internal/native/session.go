// Package native implements kfs.Client sessions on top of the metaserver
// API, either in-process or over gRPC.
package native

import (
	"context"
	"log/slog"
	"path"
	"sync"
	"time"

	"eddisonso.com/go-qfs/pkg/kfs"
)

const (
	DefaultPageSize    = 256
	DefaultCallTimeout = 30 * time.Second
)

// Service is the metaserver API a session is built on. Failures are
// kfs.Errno values, possibly wrapped.
type Service interface {
	Stat(ctx context.Context, p string) (kfs.Attr, error)
	StatInode(ctx context.Context, id int64) (kfs.Attr, error)
	Create(ctx context.Context, p string, flags int, mode uint32, params string) (kfs.Attr, error)
	Mkdir(ctx context.Context, p string, mode uint32, parents bool) error
	Rmdir(ctx context.Context, p string, recursive bool) error
	Remove(ctx context.Context, p string) error
	Rename(ctx context.Context, oldPath, newPath string) error
	Chmod(ctx context.Context, p string, mode uint32, recursive bool) error
	ChmodInode(ctx context.Context, id int64, mode uint32) error
	List(ctx context.Context, p string, after string, limit int) ([]kfs.Attr, error)
	ReadAt(ctx context.Context, id int64, off int64, n int) ([]byte, error)
	WriteAt(ctx context.Context, id int64, off int64, data []byte) (int, error)
	// Close releases the connection to the service.
	Close() error
}

// SessionOptions tunes a Session.
type SessionOptions struct {
	CallTimeout time.Duration
	PageSize    int
	Logger      *slog.Logger
}

type openFile struct {
	id    int64
	path  string
	flags int
	pos   int64
	dirty bool
}

type dirCursor struct {
	path  string
	after string
	page  []kfs.Attr
	pos   int
	done  bool
}

// Session is a kfs.Client. It owns the descriptor table, the working
// directory and the attribute cache of one client.
type Session struct {
	mu       sync.Mutex
	svc      Service
	timeout  time.Duration
	pageSize int
	log      *slog.Logger

	cwd      string
	files    map[int]*openFile
	nextFD   int
	cache    *kfs.AttrCache
	released bool
}

var _ kfs.Client = (*Session)(nil)

func NewSession(svc Service, opts SessionOptions) *Session {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Session{
		svc:      svc,
		timeout:  opts.CallTimeout,
		pageSize: opts.PageSize,
		log:      opts.Logger,
		cwd:      "/",
		files:    make(map[int]*openFile),
		cache:    kfs.NewAttrCache(kfs.DefaultRevalidateTime),
	}
}

func (s *Session) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *Session) resolve(p string) string {
	return kfs.Resolve(s.cwd, p)
}

func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	if len(s.files) > 0 {
		s.log.Debug("releasing session with open files", "count", len(s.files))
	}
	clear(s.files)
	if err := s.svc.Close(); err != nil {
		s.log.Warn("failed to close metaserver connection", "error", err)
	}
}

// lock takes the session lock, reporting false once released.
func (s *Session) lock() bool {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return false
	}
	return true
}

const errReleased = -int(kfs.EBADF)

func (s *Session) Open(p string, flags int, mode uint32, params string) int {
	if !s.lock() {
		return errReleased
	}
	defer s.mu.Unlock()

	p = s.resolve(p)
	ctx, cancel := s.callCtx()
	defer cancel()
	attr, err := s.svc.Create(ctx, p, flags, mode, params)
	if err != nil {
		return kfs.Code(err)
	}
	if flags&(kfs.O_CREAT|kfs.O_TRUNC) != 0 {
		s.cache.Invalidate(p)
	}
	s.cache.Put(p, attr)

	fd := s.nextFD
	s.nextFD++
	s.files[fd] = &openFile{id: attr.ID, path: p, flags: flags}
	return fd
}

func (s *Session) file(fd int) (*openFile, int) {
	f, ok := s.files[fd]
	if !ok {
		return nil, -int(kfs.EBADF)
	}
	return f, 0
}

func (s *Session) Read(fd int, buf []byte) int64 {
	if !s.lock() {
		return int64(errReleased)
	}
	defer s.mu.Unlock()

	f, code := s.file(fd)
	if f == nil {
		return int64(code)
	}
	if f.flags&kfs.O_ACCMODE == kfs.O_WRONLY {
		return -int64(kfs.EBADF)
	}
	ctx, cancel := s.callCtx()
	defer cancel()
	data, err := s.svc.ReadAt(ctx, f.id, f.pos, len(buf))
	if err != nil {
		return int64(kfs.Code(err))
	}
	n := copy(buf, data)
	f.pos += int64(n)
	return int64(n)
}

// Write stores buf at the file position, or at the end of file for O_APPEND
// descriptors. A failure after some bytes were stored returns the short
// count instead of an error code.
func (s *Session) Write(fd int, buf []byte) int64 {
	if !s.lock() {
		return int64(errReleased)
	}
	defer s.mu.Unlock()

	f, code := s.file(fd)
	if f == nil {
		return int64(code)
	}
	if f.flags&kfs.O_ACCMODE == kfs.O_RDONLY {
		return -int64(kfs.EBADF)
	}
	ctx, cancel := s.callCtx()
	defer cancel()

	off := f.pos
	if f.flags&kfs.O_APPEND != 0 {
		attr, err := s.svc.StatInode(ctx, f.id)
		if err != nil {
			return int64(kfs.Code(err))
		}
		off = attr.Size
	}
	n, err := s.svc.WriteAt(ctx, f.id, off, buf)
	if n > 0 {
		f.pos = off + int64(n)
		f.dirty = true
		s.cache.Invalidate(f.path)
	}
	if err != nil {
		if n > 0 {
			s.log.Debug("write stored fewer bytes than requested", "fd", fd, "written", n, "requested", len(buf), "error", err)
			return int64(n)
		}
		return int64(kfs.Code(err))
	}
	return int64(n)
}

func (s *Session) Seek(fd int, offset int64, whence int) int64 {
	if !s.lock() {
		return int64(errReleased)
	}
	defer s.mu.Unlock()

	f, code := s.file(fd)
	if f == nil {
		return int64(code)
	}
	var base int64
	switch whence {
	case kfs.SeekSet:
	case kfs.SeekCur:
		base = f.pos
	case kfs.SeekEnd:
		ctx, cancel := s.callCtx()
		defer cancel()
		attr, err := s.svc.StatInode(ctx, f.id)
		if err != nil {
			return int64(kfs.Code(err))
		}
		base = attr.Size
	default:
		return -int64(kfs.EINVAL)
	}
	pos := base + offset
	if pos < 0 {
		return -int64(kfs.EINVAL)
	}
	f.pos = pos
	return pos
}

func (s *Session) Tell(fd int) int64 {
	if !s.lock() {
		return int64(errReleased)
	}
	defer s.mu.Unlock()

	f, code := s.file(fd)
	if f == nil {
		return int64(code)
	}
	return f.pos
}

func (s *Session) Close(fd int) int {
	if !s.lock() {
		return errReleased
	}
	defer s.mu.Unlock()

	f, code := s.file(fd)
	if f == nil {
		return code
	}
	delete(s.files, fd)
	if f.dirty {
		s.cache.Invalidate(f.path)
	}
	return 0
}

func (s *Session) StatFD(fd int, attr *kfs.Attr) int {
	if !s.lock() {
		return errReleased
	}
	defer s.mu.Unlock()

	f, code := s.file(fd)
	if f == nil {
		return code
	}
	ctx, cancel := s.callCtx()
	defer cancel()
	a, err := s.svc.StatInode(ctx, f.id)
	if err != nil {
		return kfs.Code(err)
	}
	*attr = a
	return 0
}

func (s *Session) ChmodFD(fd int, mode uint32) int {
	if !s.lock() {
		return errReleased
	}
	defer s.mu.Unlock()

	f, code := s.file(fd)
	if f == nil {
		return code
	}
	ctx, cancel := s.callCtx()
	defer cancel()
	return kfs.Code(s.svc.ChmodInode(ctx, f.id, mode))
}

func (s *Session) Readdir(p string, cur *kfs.Cursor, attr *kfs.Attr) int {
	if !s.lock() {
		return errReleased
	}
	defer s.mu.Unlock()

	dc, _ := cur.State.(*dirCursor)
	if dc == nil {
		dc = &dirCursor{path: s.resolve(p)}
		cur.State = dc
	}
	if dc.pos >= len(dc.page) {
		if dc.done {
			return 0
		}
		ctx, cancel := s.callCtx()
		defer cancel()
		page, err := s.svc.List(ctx, dc.path, dc.after, s.pageSize)
		if err != nil {
			return kfs.Code(err)
		}
		dc.page, dc.pos = page, 0
		dc.done = len(page) < s.pageSize
		if len(page) == 0 {
			return 0
		}
		dc.after = page[len(page)-1].Filename
	}

	*attr = dc.page[dc.pos]
	dc.pos++
	s.cache.Put(path.Join(dc.path, attr.Filename), *attr)
	return 1
}

func (s *Session) FreeCursor(cur *kfs.Cursor) {
	cur.State = nil
}

// stat consults the attribute cache first. Caller holds s.mu.
func (s *Session) stat(p string) (kfs.Attr, int) {
	if a, ok := s.cache.Get(p); ok {
		return a, 0
	}
	ctx, cancel := s.callCtx()
	defer cancel()
	a, err := s.svc.Stat(ctx, p)
	if err != nil {
		return kfs.Attr{}, kfs.Code(err)
	}
	s.cache.Put(p, a)
	return a, 0
}

func (s *Session) Stat(p string, attr *kfs.Attr) int {
	if !s.lock() {
		return errReleased
	}
	defer s.mu.Unlock()

	a, code := s.stat(s.resolve(p))
	if code < 0 {
		return code
	}
	*attr = a
	return 0
}

func (s *Session) Exists(p string) bool {
	var a kfs.Attr
	return s.Stat(p, &a) == 0
}

func (s *Session) IsFile(p string) bool {
	var a kfs.Attr
	return s.Stat(p, &a) == 0 && !a.Directory
}

func (s *Session) IsDirectory(p string) bool {
	var a kfs.Attr
	return s.Stat(p, &a) == 0 && a.Directory
}

// mutate runs fn against the resolved path and drops the cached attributes
// of every path in invalidate.
func (s *Session) mutate(fn func(ctx context.Context) error, invalidate ...string) int {
	if !s.lock() {
		return errReleased
	}
	defer s.mu.Unlock()

	ctx, cancel := s.callCtx()
	defer cancel()
	err := fn(ctx)
	for _, p := range invalidate {
		s.cache.Invalidate(p)
	}
	return kfs.Code(err)
}

func (s *Session) Remove(p string) int {
	p = s.resolvePath(p)
	return s.mutate(func(ctx context.Context) error { return s.svc.Remove(ctx, p) }, p)
}

func (s *Session) Mkdir(p string, mode uint32) int {
	p = s.resolvePath(p)
	return s.mutate(func(ctx context.Context) error { return s.svc.Mkdir(ctx, p, mode, false) }, p)
}

func (s *Session) Mkdirs(p string, mode uint32) int {
	p = s.resolvePath(p)
	return s.mutate(func(ctx context.Context) error { return s.svc.Mkdir(ctx, p, mode, true) }, p)
}

func (s *Session) Rmdir(p string) int {
	p = s.resolvePath(p)
	return s.mutate(func(ctx context.Context) error { return s.svc.Rmdir(ctx, p, false) }, p)
}

func (s *Session) Rmdirs(p string) int {
	p = s.resolvePath(p)
	return s.mutate(func(ctx context.Context) error { return s.svc.Rmdir(ctx, p, true) }, p)
}

func (s *Session) Rename(oldPath, newPath string) int {
	oldPath, newPath = s.resolvePath(oldPath), s.resolvePath(newPath)
	return s.mutate(func(ctx context.Context) error { return s.svc.Rename(ctx, oldPath, newPath) }, oldPath, newPath)
}

// Chmod leaves cached attributes alone; they report the old mode until the
// revalidate time passes.
func (s *Session) Chmod(p string, mode uint32) int {
	p = s.resolvePath(p)
	return s.mutate(func(ctx context.Context) error { return s.svc.Chmod(ctx, p, mode, false) })
}

func (s *Session) ChmodR(p string, mode uint32) int {
	p = s.resolvePath(p)
	return s.mutate(func(ctx context.Context) error { return s.svc.Chmod(ctx, p, mode, true) })
}

// resolvePath resolves p against the working directory under the lock.
func (s *Session) resolvePath(p string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolve(p)
}

func (s *Session) Cd(p string) int {
	if !s.lock() {
		return errReleased
	}
	defer s.mu.Unlock()

	p = s.resolve(p)
	a, code := s.stat(p)
	if code < 0 {
		return code
	}
	if !a.Directory {
		return -int(kfs.ENOTDIR)
	}
	s.cwd = p
	return 0
}

func (s *Session) Setwd(p string) int {
	if !s.lock() {
		return errReleased
	}
	defer s.mu.Unlock()

	s.cwd = s.resolve(p)
	return 0
}

func (s *Session) Getwd(buf []byte) int {
	if !s.lock() {
		return errReleased
	}
	defer s.mu.Unlock()

	copy(buf, s.cwd)
	return len(s.cwd)
}

func (s *Session) SetFileAttributeRevalidateTime(seconds int) {
	s.cache.SetTTL(time.Duration(seconds) * time.Second)
}

func (s *Session) Strerror(code int) string {
	return kfs.Strerror(code)
}
