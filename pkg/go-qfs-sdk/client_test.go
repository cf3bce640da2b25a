package qfs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"eddisonso.com/go-qfs/pkg/kfs"
	"eddisonso.com/go-qfs/pkg/qfslog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectFake(t *testing.T, fake *fakeSession, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithDialer(fake.dialer()), WithTrace(false)}, opts...)
	c, err := Connect(context.Background(), "metaserver", DefaultPort, opts...)
	require.NoError(t, err)
	return c
}

func TestConnectFailure(t *testing.T) {
	_, err := Connect(context.Background(), "metaserver", DefaultPort, WithDialer(failingDialer(errDial)))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.ErrorIs(t, err, errDial)
	assert.Contains(t, err.Error(), "metaserver:20000")

	_, err = Connect(context.Background(), "metaserver", DefaultPort, WithDialer(failingDialer(nil)))
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestReleaseIsIdempotent(t *testing.T) {
	fake := newFakeSession()
	c := connectFake(t, fake)

	assert.False(t, c.Released())
	c.Release()
	c.Release()
	assert.True(t, c.Released())
	assert.Equal(t, 1, fake.released)

	_, err := c.Stat("/")
	assert.ErrorIs(t, err, ErrClientClosed)
	_, err = c.Exists("/")
	assert.ErrorIs(t, err, ErrClientClosed)
	_, err = c.OpenDir("/")
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.ErrorIs(t, c.SetAttributeRevalidateTime(5), ErrClientClosed)
}

func TestWithClientReleasesOnError(t *testing.T) {
	fake := newFakeSession()
	boom := errors.New("boom")
	err := WithClient(context.Background(), "metaserver", DefaultPort, func(c *Client) error {
		return boom
	}, WithDialer(fake.dialer()))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, fake.released)
}

func TestMissingPath(t *testing.T) {
	c := connectFake(t, newFakeSession())
	defer c.Release()

	ok, err := c.Exists("/nope")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = c.IsFile("/nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.Stat("/nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, c.Remove("/nope"), ErrNotFound)
	assert.ErrorIs(t, c.Rmdir("/nope"), ErrNotFound)
	assert.NoError(t, c.RemoveIfExists("/nope"))
	assert.NoError(t, c.RmdirIfExists("/nope"))

	var qerr *Error
	_, err = c.Stat("/nope")
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, -int(kfs.ENOENT), qerr.Code)
	assert.Equal(t, "qfs: stat /nope: No such file or directory", err.Error())
}

func TestRemoveRefusesDirectory(t *testing.T) {
	fake := newFakeSession()
	fake.files["/dir"] = true
	c := connectFake(t, fake)
	defer c.Release()

	assert.ErrorIs(t, c.Remove("/dir"), ErrNotRegularFile)
	assert.Equal(t, 0, fake.removeCalls, "native remove must not run")

	fake.files["/file"] = false
	require.NoError(t, c.Remove("/file"))
	assert.Equal(t, 1, fake.removeCalls)
}

func TestMkdirExisting(t *testing.T) {
	fake := newFakeSession()
	fake.files["/existing-dir"] = true
	c := connectFake(t, fake)
	defer c.Release()

	assert.ErrorIs(t, c.Mkdir("/existing-dir", 0755), ErrAlreadyExists)
	assert.ErrorIs(t, c.MkdirAll("/existing-dir", 0755), ErrAlreadyExists)
	assert.Equal(t, 0, fake.mkdirCalls, "native mkdir must not run")

	require.NoError(t, c.Mkdir("/new", 0755))
	assert.Equal(t, 1, fake.mkdirCalls)
}

func TestGenericErrorsCarryNativeText(t *testing.T) {
	fake := newFakeSession()
	fake.files["/file"] = false
	c := connectFake(t, fake)
	defer c.Release()

	err := c.Rmdir("/file")
	assert.ErrorIs(t, err, ErrIO)
	assert.Contains(t, err.Error(), "Not a directory")
	assert.Equal(t, 1, fake.strerrorCalls)

	err = c.Cd("/file")
	assert.ErrorIs(t, err, ErrIO)
}

func TestGetwd(t *testing.T) {
	fake := newFakeSession()
	c := connectFake(t, fake)
	defer c.Release()

	require.NoError(t, c.Setwd("/abcdefghi"))
	_, err := c.Getwd(4)
	assert.ErrorIs(t, err, ErrBufferTooSmall)

	wd, err := c.Getwd(10)
	require.NoError(t, err)
	assert.Equal(t, "/abcdefghi", wd)

	wd, err = c.Getwd(DefaultMaxPathLen)
	require.NoError(t, err)
	assert.Equal(t, "/abcdefghi", wd)
}

func TestSetAttributeRevalidateTime(t *testing.T) {
	fake := newFakeSession()
	c := connectFake(t, fake)
	defer c.Release()

	require.NoError(t, c.SetAttributeRevalidateTime(12))
	assert.Equal(t, 12, fake.revalidate)
}

func TestFileAfterClose(t *testing.T) {
	fake := newFakeSession()
	c := connectFake(t, fake)
	defer c.Release()

	f, err := c.OpenFile("/x", O_WRONLY|O_CREATE, 0644, "")
	require.NoError(t, err)
	assert.Equal(t, 3, f.Fd())

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.Equal(t, 1, fake.closeCalls)
	assert.Equal(t, kfs.NilFD, f.Fd())

	_, err = f.Read(1)
	assert.ErrorIs(t, err, ErrHandleClosed)
	_, err = f.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrHandleClosed)
	_, err = f.Seek(0, io.SeekStart)
	assert.ErrorIs(t, err, ErrHandleClosed)
	_, err = f.Tell()
	assert.ErrorIs(t, err, ErrHandleClosed)
	_, err = f.Stat()
	assert.ErrorIs(t, err, ErrHandleClosed)
	assert.ErrorIs(t, f.Chmod(0600), ErrHandleClosed)
}

func TestFileAfterRelease(t *testing.T) {
	fake := newFakeSession()
	c := connectFake(t, fake)

	f, err := c.OpenFile("/x", O_WRONLY|O_CREATE, 0644, "")
	require.NoError(t, err)
	c.Release()

	_, err = f.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.NoError(t, f.Close())
	assert.Equal(t, 0, fake.closeCalls, "descriptor is abandoned")

	_, err = f.Read(1)
	assert.ErrorIs(t, err, ErrHandleClosed)
}

func TestFileCloseErrorStillClears(t *testing.T) {
	fake := newFakeSession()
	fake.closeCode = -int(kfs.EIO)
	c := connectFake(t, fake)
	defer c.Release()

	f, err := c.OpenFile("/x", O_WRONLY|O_CREATE, 0644, "")
	require.NoError(t, err)
	assert.ErrorIs(t, f.Close(), ErrIO)
	assert.NoError(t, f.Close())
	assert.Equal(t, 1, fake.closeCalls)
}

func TestPartialWrite(t *testing.T) {
	fake := newFakeSession()
	fake.writeLimit = 2
	var logs bytes.Buffer
	c := connectFake(t, fake, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	defer c.Release()

	f, err := c.Create("/x")
	require.NoError(t, err)
	defer f.Close()

	n, err := f.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, f.PartialWrites())
	assert.Contains(t, logs.String(), "partial write")

	n, err = f.Write([]byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, f.PartialWrites())
}

func TestFileOps(t *testing.T) {
	c := connectFake(t, newFakeSession())
	defer c.Release()

	f, err := c.Create("/x")
	require.NoError(t, err)
	defer f.Close()

	data, err := f.Read(10)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data, "short reads are not padded")

	_, err = f.Read(-1)
	assert.ErrorIs(t, err, ErrIO)

	pos, err := f.Seek(4, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(4), pos)
	_, err = f.Seek(-1, io.SeekStart)
	assert.ErrorIs(t, err, ErrIO)

	pos, err = f.Tell()
	require.NoError(t, err)
	assert.Equal(t, int64(7), pos)

	attr, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(3), attr.Size())
	assert.Equal(t, "/x", f.Name())
}

func TestOpenMode(t *testing.T) {
	tests := []struct {
		mode  string
		flags int
	}{
		{"r", O_RDONLY},
		{"r+", O_RDWR},
		{"w", O_WRONLY | O_TRUNC | O_CREATE},
		{"w+", O_RDWR | O_CREATE},
		{"a", O_WRONLY | O_APPEND | O_CREATE},
		{"a+", O_RDWR | O_APPEND | O_CREATE},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			flags, err := ParseOpenMode(tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.flags, flags)
		})
	}

	_, err := ParseOpenMode("rw")
	assert.Error(t, err)

	c := connectFake(t, newFakeSession())
	defer c.Release()
	_, err = c.OpenMode("/x", "x")
	assert.ErrorIs(t, err, ErrIO)
	_, err = c.OpenMode("/missing", "r")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithFileClosesOnError(t *testing.T) {
	fake := newFakeSession()
	c := connectFake(t, fake)
	defer c.Release()

	boom := errors.New("boom")
	var kept *File
	err := c.WithFile("/x", O_WRONLY|O_CREATE, func(f *File) error {
		kept = f
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, fake.closeCalls)
	assert.Equal(t, kfs.NilFD, kept.Fd())
}

func TestTraceRecords(t *testing.T) {
	fake := newFakeSession()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: qfslog.LevelTrace}))
	c, err := Connect(context.Background(), "metaserver", DefaultPort,
		WithDialer(fake.dialer()), WithLogger(logger), WithTrace(true))
	require.NoError(t, err)

	f, err := c.Create("/x")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	c.Release()

	out := logs.String()
	for _, msg := range []string{"connect enter", "connect exit", "close enter", "close exit", "release enter", "release exit"} {
		assert.Contains(t, out, msg)
	}
}

func TestTraceOff(t *testing.T) {
	fake := newFakeSession()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: qfslog.LevelTrace}))
	c := connectFake(t, fake, WithLogger(logger))
	c.Release()
	assert.Empty(t, logs.String())
}
