package qfs

import (
	"context"
	"errors"

	"eddisonso.com/go-qfs/pkg/kfs"
)

// fakeSession is a scripted kfs.Client recording the calls the SDK makes.
type fakeSession struct {
	files map[string]bool // path -> is directory
	cwd   string

	entries       []kfs.Attr
	readdirFailAt int // fail with readdirCode once this many entries were produced; -1 never
	readdirCode   int

	writeLimit int // bytes accepted per write; 0 accepts everything
	closeCode  int
	openCode   int

	released        int
	freeCursorCalls int
	removeCalls     int
	mkdirCalls      int
	closeCalls      int
	strerrorCalls   int
	revalidate      int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		files:         map[string]bool{"/": true},
		cwd:           "/",
		readdirFailAt: -1,
	}
}

func (f *fakeSession) dialer() kfs.Dialer {
	return kfs.DialerFunc(func(context.Context, string, int) (kfs.Client, error) {
		return f, nil
	})
}

func failingDialer(err error) kfs.Dialer {
	return kfs.DialerFunc(func(context.Context, string, int) (kfs.Client, error) {
		return nil, err
	})
}

var errDial = errors.New("connection refused")

func (f *fakeSession) Release() { f.released++ }

func (f *fakeSession) Open(path string, flags int, mode uint32, params string) int {
	if f.openCode < 0 {
		return f.openCode
	}
	if _, ok := f.files[path]; !ok {
		if flags&kfs.O_CREAT == 0 {
			return -int(kfs.ENOENT)
		}
		f.files[path] = false
	}
	return 3
}

func (f *fakeSession) Read(fd int, buf []byte) int64 {
	return int64(copy(buf, "abc"))
}

func (f *fakeSession) Write(fd int, buf []byte) int64 {
	if f.writeLimit > 0 && len(buf) > f.writeLimit {
		return int64(f.writeLimit)
	}
	return int64(len(buf))
}

func (f *fakeSession) Seek(fd int, offset int64, whence int) int64 {
	if offset < 0 {
		return -int64(kfs.EINVAL)
	}
	return offset
}

func (f *fakeSession) Tell(fd int) int64 { return 7 }

func (f *fakeSession) Close(fd int) int {
	f.closeCalls++
	return f.closeCode
}

func (f *fakeSession) StatFD(fd int, attr *kfs.Attr) int {
	*attr = kfs.Attr{Filename: "fd", Size: 3}
	return 0
}

func (f *fakeSession) ChmodFD(fd int, mode uint32) int { return 0 }

func (f *fakeSession) Readdir(path string, cur *kfs.Cursor, attr *kfs.Attr) int {
	pos, _ := cur.State.(int)
	if pos == f.readdirFailAt {
		return f.readdirCode
	}
	if pos >= len(f.entries) {
		return 0
	}
	*attr = f.entries[pos]
	cur.State = pos + 1
	return 1
}

func (f *fakeSession) FreeCursor(cur *kfs.Cursor) {
	f.freeCursorCalls++
	cur.State = nil
}

func (f *fakeSession) Stat(path string, attr *kfs.Attr) int {
	dir, ok := f.files[path]
	if !ok {
		return -int(kfs.ENOENT)
	}
	*attr = kfs.Attr{Filename: path, Directory: dir}
	return 0
}

func (f *fakeSession) Exists(path string) bool {
	_, ok := f.files[path]
	return ok
}

func (f *fakeSession) IsFile(path string) bool {
	dir, ok := f.files[path]
	return ok && !dir
}

func (f *fakeSession) IsDirectory(path string) bool {
	return f.files[path]
}

func (f *fakeSession) Remove(path string) int {
	f.removeCalls++
	if _, ok := f.files[path]; !ok {
		return -int(kfs.ENOENT)
	}
	delete(f.files, path)
	return 0
}

func (f *fakeSession) Mkdir(path string, mode uint32) int {
	f.mkdirCalls++
	f.files[path] = true
	return 0
}

func (f *fakeSession) Mkdirs(path string, mode uint32) int {
	return f.Mkdir(path, mode)
}

func (f *fakeSession) Rmdir(path string) int {
	if !f.files[path] {
		if _, ok := f.files[path]; ok {
			return -int(kfs.ENOTDIR)
		}
		return -int(kfs.ENOENT)
	}
	delete(f.files, path)
	return 0
}

func (f *fakeSession) Rmdirs(path string) int { return f.Rmdir(path) }

func (f *fakeSession) Rename(oldPath, newPath string) int {
	dir, ok := f.files[oldPath]
	if !ok {
		return -int(kfs.ENOENT)
	}
	delete(f.files, oldPath)
	f.files[newPath] = dir
	return 0
}

func (f *fakeSession) Chmod(path string, mode uint32) int  { return 0 }
func (f *fakeSession) ChmodR(path string, mode uint32) int { return 0 }

func (f *fakeSession) Cd(path string) int {
	if !f.files[path] {
		return -int(kfs.ENOTDIR)
	}
	f.cwd = path
	return 0
}

func (f *fakeSession) Setwd(path string) int {
	f.cwd = path
	return 0
}

func (f *fakeSession) Getwd(buf []byte) int {
	copy(buf, f.cwd)
	return len(f.cwd)
}

func (f *fakeSession) SetFileAttributeRevalidateTime(seconds int) { f.revalidate = seconds }

func (f *fakeSession) Strerror(code int) string {
	f.strerrorCalls++
	return kfs.Strerror(code)
}
