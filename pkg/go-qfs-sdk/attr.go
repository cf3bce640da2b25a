package qfs

import (
	"io/fs"
	"time"

	"eddisonso.com/go-qfs/pkg/kfs"
)

// Attr is a point-in-time copy of one entry's attributes. It implements
// fs.FileInfo.
type Attr struct {
	raw kfs.Attr
}

var _ fs.FileInfo = Attr{}

func newAttr(a kfs.Attr) Attr {
	return Attr{raw: a}
}

// Name returns the entry's base name.
func (a Attr) Name() string { return a.raw.Filename }

// Size returns the file length in bytes.
func (a Attr) Size() int64 { return a.raw.Size }

// Mode returns the permission bits, with fs.ModeDir set for directories.
func (a Attr) Mode() fs.FileMode {
	m := fs.FileMode(a.raw.Mode).Perm()
	if a.raw.Directory {
		m |= fs.ModeDir
	}
	return m
}

// ModTime returns the modification time.
func (a Attr) ModTime() time.Time { return a.raw.Mtime }

// IsDir reports whether the entry is a directory.
func (a Attr) IsDir() bool { return a.raw.Directory }

// Sys returns the kfs.Attr the snapshot was copied from.
func (a Attr) Sys() any { return a.raw }

// Accessors for the remaining native fields.
func (a Attr) ID() int64 { return a.raw.ID }
func (a Attr) UID() uint32 { return a.raw.UID }
func (a Attr) GID() uint32 { return a.raw.GID }
func (a Attr) Ctime() time.Time { return a.raw.Ctime }
func (a Attr) Chunks() int64 { return a.raw.Chunks }
func (a Attr) Directories() int64 { return a.raw.Directories }
func (a Attr) Replicas() int32 { return a.raw.Replicas }
func (a Attr) Stripes() int32 { return a.raw.Stripes }
func (a Attr) RecoveryStripes() int32 { return a.raw.RecoveryStripes }
func (a Attr) StriperType() int32 { return a.raw.StriperType }
func (a Attr) StripeSize() int32 { return a.raw.StripeSize }
func (a Attr) MinSTier() uint8 { return a.raw.MinSTier }
func (a Attr) MaxSTier() uint8 { return a.raw.MaxSTier }
func (a Attr) NativeMode() uint32 { return a.raw.Mode }

// String renders the entry like a line of ls -l: "drwxr-xr-x name".
func (a Attr) String() string {
	const rwx = "rwxrwxrwx"
	buf := make([]byte, 0, 11+len(a.raw.Filename))
	if a.raw.Directory {
		buf = append(buf, 'd')
	} else {
		buf = append(buf, '-')
	}
	for i := 0; i < 9; i++ {
		if a.raw.Mode&(1<<uint(8-i)) != 0 {
			buf = append(buf, rwx[i])
		} else {
			buf = append(buf, '-')
		}
	}
	buf = append(buf, ' ')
	buf = append(buf, a.raw.Filename...)
	return string(buf)
}
