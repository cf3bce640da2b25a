package qfs

import (
	"errors"
	"strings"

	"eddisonso.com/go-qfs/pkg/kfs"
)

var (
	// ErrNotFound indicates the path does not exist.
	ErrNotFound = errors.New("no such file or directory")
	// ErrConnectionFailed indicates the handshake with the metaserver failed.
	ErrConnectionFailed = errors.New("failed to connect to metaserver")
	// ErrClientClosed indicates the client has been released.
	ErrClientClosed = errors.New("client has been released")
	// ErrHandleClosed indicates the file or directory handle is closed.
	ErrHandleClosed = errors.New("handle is closed")
	// ErrAlreadyExists indicates the path already exists.
	ErrAlreadyExists = errors.New("path already exists")
	// ErrNotRegularFile indicates the path exists but is not a regular file.
	ErrNotRegularFile = errors.New("not a regular file")
	// ErrBufferTooSmall indicates the working directory is longer than the
	// requested maximum length.
	ErrBufferTooSmall = errors.New("path exceeded the requested max length")
	// ErrIO is any other failure reported by the metaserver.
	ErrIO = errors.New("i/o error")
)

// Error records a failed operation.
type Error struct {
	Op   string
	Path string
	// Code is the native result code, zero for failures detected by the SDK.
	Code int
	// Kind is one of the Err* sentinels.
	Kind error
	// Msg is the metaserver's description of Code.
	Msg string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("qfs: ")
	b.WriteString(e.Op)
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else {
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// translate turns a native result into an error. Non-negative codes succeed.
// The message is rendered by the session that produced the code, at the point
// of failure.
func translate(s kfs.Client, op, path string, code int64) error {
	if code >= 0 {
		return nil
	}
	kind := ErrIO
	switch kfs.Errno(-code) {
	case kfs.ENOENT:
		kind = ErrNotFound
	case kfs.EEXIST:
		kind = ErrAlreadyExists
	}
	return &Error{Op: op, Path: path, Code: int(code), Kind: kind, Msg: s.Strerror(int(code))}
}

func layerError(op, path string, kind error) error {
	return &Error{Op: op, Path: path, Kind: kind}
}
