// Package kfs defines the native client contract the qfs SDK is layered on.
//
// A kfs.Client is one session with a metaserver. Every call is synchronous and
// reports failure the way the native library does: an int result that is
// non-negative on success and a negated errno on failure. Callers render the
// code with Strerror. The higher level translation into Go errors happens in
// the SDK, not here.
package kfs

import (
	"context"
	"time"
)

// Open flags. Values follow Linux so both ends of a connection agree on them.
const (
	O_RDONLY = 0x0
	O_WRONLY = 0x1
	O_RDWR   = 0x2
	O_CREAT  = 0x40
	O_EXCL   = 0x80
	O_TRUNC  = 0x200
	O_APPEND = 0x400

	O_ACCMODE = 0x3
)

// Seek origins.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

// NilFD is the descriptor value of a closed or never opened file.
const NilFD = -1

// Striper types.
const (
	StriperNone int32 = 1
	StriperRS   int32 = 2
)

// Attr is the attribute record filled in by Stat, StatFD and Readdir.
type Attr struct {
	Filename        string
	ID              int64
	Mode            uint32
	UID             uint32
	GID             uint32
	Mtime           time.Time
	Ctime           time.Time
	Directory       bool
	Size            int64
	Chunks          int64 // chunks of a file, files of a directory
	Directories     int64
	Replicas        int32
	Stripes         int32
	RecoveryStripes int32
	StriperType     int32
	StripeSize      int32
	MinSTier        uint8
	MaxSTier        uint8
}

// Cursor is the position of an in-progress Readdir. The zero value starts a
// new listing; FreeCursor releases whatever the implementation attached.
type Cursor struct {
	State any
}

// Dialer opens sessions.
type Dialer interface {
	Connect(ctx context.Context, host string, port int) (Client, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, host string, port int) (Client, error)

// Connect calls f.
func (f DialerFunc) Connect(ctx context.Context, host string, port int) (Client, error) {
	return f(ctx, host, port)
}

// Client is a single native session.
type Client interface {
	// Release ends the session. No method may be called afterwards.
	Release()

	Open(path string, flags int, mode uint32, params string) int
	Read(fd int, buf []byte) int64
	Write(fd int, buf []byte) int64
	Seek(fd int, offset int64, whence int) int64
	Tell(fd int) int64
	Close(fd int) int
	StatFD(fd int, attr *Attr) int
	ChmodFD(fd int, mode uint32) int

	// Readdir fills attr with the next entry of path. It returns a positive
	// value when an entry was produced, 0 when the listing is done and a
	// negative code on failure.
	Readdir(path string, cur *Cursor, attr *Attr) int
	FreeCursor(cur *Cursor)

	Stat(path string, attr *Attr) int
	Exists(path string) bool
	IsFile(path string) bool
	IsDirectory(path string) bool

	Remove(path string) int
	Mkdir(path string, mode uint32) int
	Mkdirs(path string, mode uint32) int
	Rmdir(path string) int
	Rmdirs(path string) int
	Rename(oldPath, newPath string) int
	Chmod(path string, mode uint32) int
	ChmodR(path string, mode uint32) int

	// Cd changes the working directory after checking the target is a
	// directory. Setwd sets it without any check.
	Cd(path string) int
	Setwd(path string) int
	// Getwd copies at most len(buf) bytes of the working directory into buf
	// and returns its full length.
	Getwd(buf []byte) int

	SetFileAttributeRevalidateTime(seconds int)
	Strerror(code int) string
}
