package qfs

import (
	"errors"
	"io/fs"

	"eddisonso.com/go-qfs/pkg/kfs"
)

// DefaultMaxPathLen is a Getwd limit large enough for any path the
// metaserver accepts.
const DefaultMaxPathLen = 4096

// Stat returns the attributes of path. The metaserver session may answer from
// its attribute cache, so a snapshot can predate a recent Chmod.
func (c *Client) Stat(path string) (Attr, error) {
	s, err := c.native("stat", path)
	if err != nil {
		return Attr{}, err
	}
	var a kfs.Attr
	if rc := s.Stat(path, &a); rc < 0 {
		return Attr{}, translate(s, "stat", path, int64(rc))
	}
	return newAttr(a), nil
}

// Exists reports whether path exists. A missing path is not an error.
func (c *Client) Exists(path string) (bool, error) {
	s, err := c.native("exists", path)
	if err != nil {
		return false, err
	}
	return s.Exists(path), nil
}

// IsFile reports whether path is a regular file.
func (c *Client) IsFile(path string) (bool, error) {
	s, err := c.native("isfile", path)
	if err != nil {
		return false, err
	}
	return s.IsFile(path), nil
}

// IsDirectory reports whether path is a directory.
func (c *Client) IsDirectory(path string) (bool, error) {
	s, err := c.native("isdirectory", path)
	if err != nil {
		return false, err
	}
	return s.IsDirectory(path), nil
}

// Remove deletes the regular file at path. Directories are refused with
// ErrNotRegularFile before anything is removed. The check and the removal
// are separate calls, so another client can change path in between.
func (c *Client) Remove(path string) error {
	s, err := c.native("remove", path)
	if err != nil {
		return err
	}
	if !s.IsFile(path) && s.Exists(path) {
		return layerError("remove", path, ErrNotRegularFile)
	}
	return translate(s, "remove", path, int64(s.Remove(path)))
}

// RemoveIfExists is Remove without ErrNotFound.
func (c *Client) RemoveIfExists(path string) error {
	return ignoreNotFound(c.Remove(path))
}

// Mkdir creates the directory path. It fails with ErrAlreadyExists when
// anything already exists at path.
func (c *Client) Mkdir(path string, perm fs.FileMode) error {
	return c.mkdir("mkdir", path, perm, kfs.Client.Mkdir)
}

// MkdirAll creates path along with any missing parents. Unlike os.MkdirAll it
// fails with ErrAlreadyExists when path itself exists.
func (c *Client) MkdirAll(path string, perm fs.FileMode) error {
	return c.mkdir("mkdirall", path, perm, kfs.Client.Mkdirs)
}

func (c *Client) mkdir(op, path string, perm fs.FileMode, create func(kfs.Client, string, uint32) int) error {
	s, err := c.native(op, path)
	if err != nil {
		return err
	}
	if s.Exists(path) {
		return layerError(op, path, ErrAlreadyExists)
	}
	return translate(s, op, path, int64(create(s, path, uint32(perm.Perm()))))
}

// Rmdir removes the empty directory path.
func (c *Client) Rmdir(path string) error {
	s, err := c.native("rmdir", path)
	if err != nil {
		return err
	}
	return translate(s, "rmdir", path, int64(s.Rmdir(path)))
}

// RmdirAll removes the directory path and everything below it.
func (c *Client) RmdirAll(path string) error {
	s, err := c.native("rmdirall", path)
	if err != nil {
		return err
	}
	return translate(s, "rmdirall", path, int64(s.Rmdirs(path)))
}

// RmdirIfExists is Rmdir without ErrNotFound.
func (c *Client) RmdirIfExists(path string) error {
	return ignoreNotFound(c.Rmdir(path))
}

// Rename moves oldPath to newPath.
func (c *Client) Rename(oldPath, newPath string) error {
	s, err := c.native("rename", oldPath)
	if err != nil {
		return err
	}
	return translate(s, "rename", oldPath, int64(s.Rename(oldPath, newPath)))
}

// Chmod changes the permission bits of path. Cached attributes are not
// invalidated.
func (c *Client) Chmod(path string, perm fs.FileMode) error {
	s, err := c.native("chmod", path)
	if err != nil {
		return err
	}
	return translate(s, "chmod", path, int64(s.Chmod(path, uint32(perm.Perm()))))
}

// ChmodAll changes the permission bits of path and everything below it.
func (c *Client) ChmodAll(path string, perm fs.FileMode) error {
	s, err := c.native("chmodall", path)
	if err != nil {
		return err
	}
	return translate(s, "chmodall", path, int64(s.ChmodR(path, uint32(perm.Perm()))))
}

// SetAttributeRevalidateTime sets how many seconds the session may answer
// Stat from its cache. Zero disables the cache.
func (c *Client) SetAttributeRevalidateTime(seconds int) error {
	s, err := c.native("setattributerevalidatetime", "")
	if err != nil {
		return err
	}
	s.SetFileAttributeRevalidateTime(seconds)
	return nil
}

// Cd changes the working directory to path, which must be a directory.
func (c *Client) Cd(path string) error {
	s, err := c.native("cd", path)
	if err != nil {
		return err
	}
	return translate(s, "cd", path, int64(s.Cd(path)))
}

// Setwd sets the working directory without checking that path exists.
func (c *Client) Setwd(path string) error {
	s, err := c.native("setwd", path)
	if err != nil {
		return err
	}
	return translate(s, "setwd", path, int64(s.Setwd(path)))
}

// Getwd returns the working directory. It fails with ErrBufferTooSmall rather
// than truncate when the directory is longer than maxLen bytes.
func (c *Client) Getwd(maxLen int) (string, error) {
	s, err := c.native("getwd", "")
	if err != nil {
		return "", err
	}
	buf := make([]byte, max(maxLen, 0))
	n := s.Getwd(buf)
	if n < 0 {
		return "", translate(s, "getwd", "", int64(n))
	}
	if n > len(buf) {
		return "", layerError("getwd", "", ErrBufferTooSmall)
	}
	return string(buf[:n]), nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
