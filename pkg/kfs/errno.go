package kfs

import (
	"errors"
	"fmt"
)

// Errno is a native error number. Negated, it is the result code of a failed
// Client call.
type Errno int

const (
	EPERM        Errno = 1
	ENOENT       Errno = 2
	EIO          Errno = 5
	EBADF        Errno = 9
	EACCES       Errno = 13
	EBUSY        Errno = 16
	EEXIST       Errno = 17
	EXDEV        Errno = 18
	ENOTDIR      Errno = 20
	EISDIR       Errno = 21
	EINVAL       Errno = 22
	EFBIG        Errno = 27
	ENOSPC       Errno = 28
	ERANGE       Errno = 34
	ENAMETOOLONG Errno = 36
	ENOTEMPTY    Errno = 39
	ETIMEDOUT    Errno = 110
	ECONNREFUSED Errno = 111
	EHOSTUNREACH Errno = 113
)

var errnoText = map[Errno]string{
	EPERM:        "Operation not permitted",
	ENOENT:       "No such file or directory",
	EIO:          "Input/output error",
	EBADF:        "Bad file descriptor",
	EACCES:       "Permission denied",
	EBUSY:        "Device or resource busy",
	EEXIST:       "File exists",
	EXDEV:        "Invalid cross-device link",
	ENOTDIR:      "Not a directory",
	EISDIR:       "Is a directory",
	EINVAL:       "Invalid argument",
	EFBIG:        "File too large",
	ENOSPC:       "No space left on device",
	ERANGE:       "Numerical result out of range",
	ENAMETOOLONG: "File name too long",
	ENOTEMPTY:    "Directory not empty",
	ETIMEDOUT:    "Connection timed out",
	ECONNREFUSED: "Connection refused",
	EHOSTUNREACH: "No route to host",
}

func (e Errno) Error() string {
	if s, ok := errnoText[e]; ok {
		return s
	}
	return fmt.Sprintf("unknown error %d", int(e))
}

// Code returns the result code for err: 0 for nil, the negated errno when err
// wraps an Errno and -EIO for anything else.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var e Errno
	if errors.As(err, &e) {
		return -int(e)
	}
	return -int(EIO)
}

// FromCode is the inverse of Code. Non-negative codes give nil.
func FromCode(code int) error {
	if code >= 0 {
		return nil
	}
	return Errno(-code)
}

// Strerror renders a result code as text.
func Strerror(code int) string {
	if code >= 0 {
		return "Success"
	}
	return Errno(-code).Error()
}
