package qfs

import (
	"fmt"
	"io/fs"

	"eddisonso.com/go-qfs/pkg/kfs"
)

// Flags for OpenFile. They may be or'ed together.
const (
	O_RDONLY = kfs.O_RDONLY
	O_WRONLY = kfs.O_WRONLY
	O_RDWR   = kfs.O_RDWR
	O_CREATE = kfs.O_CREAT
	O_EXCL   = kfs.O_EXCL
	O_TRUNC  = kfs.O_TRUNC
	O_APPEND = kfs.O_APPEND
)

var openModes = map[string]int{
	"r":  O_RDONLY,
	"r+": O_RDWR,
	"w":  O_WRONLY | O_TRUNC | O_CREATE,
	"w+": O_RDWR | O_CREATE,
	"a":  O_WRONLY | O_APPEND | O_CREATE,
	"a+": O_RDWR | O_APPEND | O_CREATE,
}

// ParseOpenMode converts an fopen style mode string to open flags.
//
//	r   read only
//	r+  read and write
//	w   write only, truncating or creating the file
//	w+  read and write, creating the file
//	a   write only, appending, creating the file
//	a+  read and write, appending, creating the file
func ParseOpenMode(mode string) (int, error) {
	flags, ok := openModes[mode]
	if !ok {
		return 0, fmt.Errorf("%q is not a valid mode string", mode)
	}
	return flags, nil
}

// File is an open file on the metaserver.
type File struct {
	name   string
	client *Client
	fd     int

	partialWrites int
}

// Open opens path for reading.
func (c *Client) Open(path string) (*File, error) {
	return c.OpenFile(path, O_RDONLY, 0666, "")
}

// Create creates or truncates path and opens it for reading and writing.
func (c *Client) Create(path string) (*File, error) {
	return c.OpenFile(path, O_RDWR|O_CREATE|O_TRUNC, 0666, "")
}

// OpenMode opens path with an fopen style mode, see ParseOpenMode.
func (c *Client) OpenMode(path, mode string) (*File, error) {
	flags, err := ParseOpenMode(mode)
	if err != nil {
		return nil, &Error{Op: "open", Path: path, Code: -int(kfs.EINVAL), Kind: ErrIO, Err: err}
	}
	return c.OpenFile(path, flags, 0666, "")
}

// OpenFile opens path with flag and, when the file is created, perm. params
// selects the layout of new files and is passed to the metaserver as is:
// "" for the server default, "S" for 6+3 Reed-Solomon, or
// "replicas,stripes,recoveryStripes,stripeSize,striperType,minTier,maxTier".
func (c *Client) OpenFile(path string, flag int, perm fs.FileMode, params string) (*File, error) {
	s, err := c.native("open", path)
	if err != nil {
		return nil, err
	}
	fd := s.Open(path, flag, uint32(perm.Perm()), params)
	if fd < 0 {
		return nil, translate(s, "open", path, int64(fd))
	}
	return &File{name: path, client: c, fd: fd}, nil
}

// WithFile opens path, runs fn and closes the file however fn returns. An
// error from fn takes precedence over one from Close.
func (c *Client) WithFile(path string, flag int, fn func(*File) error) (err error) {
	f, err := c.OpenFile(path, flag, 0666, "")
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(f)
}

// Name returns the path the file was opened with.
func (f *File) Name() string { return f.name }

// Fd returns the native descriptor, or -1 once closed.
func (f *File) Fd() int { return f.fd }

// PartialWrites returns how many writes stored fewer bytes than requested.
func (f *File) PartialWrites() int { return f.partialWrites }

func (f *File) native(op string) (kfs.Client, error) {
	if f.client == nil {
		return nil, layerError(op, f.name, ErrHandleClosed)
	}
	return f.client.native(op, f.name)
}

// Read reads up to n bytes with a single call and returns what was read. A
// short result is not retried. At end of file the slice is empty.
func (f *File) Read(n int) ([]byte, error) {
	s, err := f.native("read")
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, &Error{Op: "read", Path: f.name, Code: -int(kfs.EINVAL), Kind: ErrIO, Msg: "negative read length"}
	}
	buf := make([]byte, n)
	rc := s.Read(f.fd, buf)
	if rc < 0 {
		return nil, translate(s, "read", f.name, rc)
	}
	return buf[:rc], nil
}

// Write writes p with a single call. When fewer than len(p) bytes are stored
// the count is returned with a nil error and the partial write is logged, so
// callers must check n.
func (f *File) Write(p []byte) (int, error) {
	s, err := f.native("write")
	if err != nil {
		return 0, err
	}
	rc := s.Write(f.fd, p)
	if rc < 0 {
		return 0, translate(s, "write", f.name, rc)
	}
	if int(rc) < len(p) {
		f.partialWrites++
		f.client.logger.Warn("partial write", "path", f.name, "written", rc, "requested", len(p))
	}
	return int(rc), nil
}

// Seek sets the offset for the next Read or Write. whence is io.SeekStart,
// io.SeekCurrent or io.SeekEnd.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	s, err := f.native("seek")
	if err != nil {
		return 0, err
	}
	rc := s.Seek(f.fd, offset, whence)
	if rc < 0 {
		return 0, translate(s, "seek", f.name, rc)
	}
	return rc, nil
}

// Tell returns the current offset.
func (f *File) Tell() (int64, error) {
	s, err := f.native("tell")
	if err != nil {
		return 0, err
	}
	rc := s.Tell(f.fd)
	if rc < 0 {
		return 0, translate(s, "tell", f.name, rc)
	}
	return rc, nil
}

// Stat returns the attributes of the open file.
func (f *File) Stat() (Attr, error) {
	s, err := f.native("stat")
	if err != nil {
		return Attr{}, err
	}
	var a kfs.Attr
	if rc := s.StatFD(f.fd, &a); rc < 0 {
		return Attr{}, translate(s, "stat", f.name, int64(rc))
	}
	return newAttr(a), nil
}

// Chmod changes the permission bits of the open file.
func (f *File) Chmod(perm fs.FileMode) error {
	s, err := f.native("chmod")
	if err != nil {
		return err
	}
	return translate(s, "chmod", f.name, int64(s.ChmodFD(f.fd, uint32(perm.Perm()))))
}

// Close closes the file. The handle is inert afterwards even if the
// metaserver reports an error, and closing it again does nothing. If the
// client was released first the descriptor died with the session and Close
// only drops the handle's state.
func (f *File) Close() error {
	if f.client == nil {
		return nil
	}
	c, fd := f.client, f.fd
	f.client = nil
	f.fd = kfs.NilFD

	defer c.tracer.call("close", "path", f.name, "fd", fd)()
	s, err := c.native("close", f.name)
	if err != nil {
		return nil
	}
	return translate(s, "close", f.name, int64(s.Close(fd)))
}
