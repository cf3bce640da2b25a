package clientcli

import (
	"bytes"
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"eddisonso.com/go-qfs/internal/metaserver"
	"eddisonso.com/go-qfs/internal/native"
	qfs "eddisonso.com/go-qfs/pkg/go-qfs-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	ns, err := metaserver.NewNamespace(metaserver.Config{ChunkSize: 4096}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ns.Close() })

	c, err := qfs.Connect(context.Background(), "localhost", qfs.DefaultPort,
		qfs.WithDialer(native.LocalDialer(ns, native.SessionOptions{})), qfs.WithTrace(false))
	require.NoError(t, err)
	t.Cleanup(c.Release)

	var out bytes.Buffer
	return NewApp(c, &out), &out
}

func run(t *testing.T, app *App, out *bytes.Buffer, line string) (string, error) {
	t.Helper()
	out.Reset()
	err := app.Exec(parseArgs(line))
	return out.String(), err
}

func TestShellFiles(t *testing.T) {
	app, out := newTestApp(t)

	_, err := run(t, app, out, "mkdir -p /a/b")
	require.NoError(t, err)
	_, err = run(t, app, out, "mkdir /a")
	assert.ErrorIs(t, err, qfs.ErrAlreadyExists)

	got, err := run(t, app, out, `write /a/b/f "hello world"`)
	require.NoError(t, err)
	assert.Equal(t, "Wrote 11 bytes to /a/b/f\n", got)

	got, err = run(t, app, out, "cat /a/b/f")
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", got)

	got, err = run(t, app, out, "ls /a/b")
	require.NoError(t, err)
	assert.Contains(t, got, "MODE")
	assert.Contains(t, got, "-rw-rw-rw-")
	assert.Contains(t, got, " f\n")

	got, err = run(t, app, out, "stat /a/b/f")
	require.NoError(t, err)
	assert.Contains(t, got, "Size:       11 bytes")
	assert.Contains(t, got, "Type:       file")

	got, err = run(t, app, out, "mv /a/b/f /a/g")
	require.NoError(t, err)
	assert.Equal(t, "Renamed /a/b/f -> /a/g\n", got)

	_, err = run(t, app, out, "rm /a/b")
	assert.ErrorIs(t, err, qfs.ErrNotRegularFile)
	_, err = run(t, app, out, "rm /a/g")
	require.NoError(t, err)
	_, err = run(t, app, out, "rm /a/g")
	assert.ErrorIs(t, err, qfs.ErrNotFound)
	_, err = run(t, app, out, "rm -f /a/g")
	assert.NoError(t, err)

	got, err = run(t, app, out, "ls /a/b")
	require.NoError(t, err)
	assert.Equal(t, "No files found\n", got)
}

func TestShellDirectories(t *testing.T) {
	app, out := newTestApp(t)

	_, err := run(t, app, out, "mkdir -p /a/b/c")
	require.NoError(t, err)
	_, err = run(t, app, out, "cd /a")
	require.NoError(t, err)
	got, err := run(t, app, out, "pwd")
	require.NoError(t, err)
	assert.Equal(t, "/a\n", got)
	assert.Equal(t, "qfs:/a> ", app.prompt())

	_, err = run(t, app, out, "write f data")
	require.NoError(t, err)
	_, err = run(t, app, out, "cd f")
	assert.ErrorIs(t, err, qfs.ErrIO)

	_, err = run(t, app, out, "chmod -R 700 /a")
	require.NoError(t, err)
	_, err = run(t, app, out, "chmod 8 /a")
	assert.Error(t, err)

	// cd cached /a before f existed.
	require.NoError(t, app.client.SetAttributeRevalidateTime(0))
	got, err = run(t, app, out, "stat /a")
	require.NoError(t, err)
	assert.Contains(t, got, "Type:       directory")
	assert.Contains(t, got, "Files:      1")
	assert.Contains(t, got, "Subdirs:    1")

	_, err = run(t, app, out, "rmdir /a")
	assert.ErrorIs(t, err, qfs.ErrIO)
	_, err = run(t, app, out, "rmdir -r /a")
	require.NoError(t, err)

	_, err = run(t, app, out, "cd")
	require.NoError(t, err)
	got, err = run(t, app, out, "ls")
	require.NoError(t, err)
	assert.Equal(t, "No files found\n", got)
}

func TestShellPutGet(t *testing.T) {
	app, out := newTestApp(t)
	dir := t.TempDir()

	payload := make([]byte, 100_000)
	_, err := rand.Read(payload)
	require.NoError(t, err)
	local := filepath.Join(dir, "in.bin")
	require.NoError(t, os.WriteFile(local, payload, 0644))

	got, err := run(t, app, out, "put "+local+" /blob")
	require.NoError(t, err)
	assert.Equal(t, "Wrote 100000 bytes to /blob\n", got)

	back := filepath.Join(dir, "out.bin")
	got, err = run(t, app, out, "get /blob "+back)
	require.NoError(t, err)
	assert.Equal(t, "Wrote 100000 bytes to "+back+"\n", got)

	data, err := os.ReadFile(back)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, data))

	_, err = run(t, app, out, "get /missing "+back)
	assert.ErrorIs(t, err, qfs.ErrNotFound)
	_, err = run(t, app, out, "put "+filepath.Join(dir, "nope")+" /x")
	assert.Error(t, err)
}

func TestShellCompletion(t *testing.T) {
	app, out := newTestApp(t)
	_, err := run(t, app, out, "mkdir -p /dir/sub")
	require.NoError(t, err)
	_, err = run(t, app, out, "write /dir/file x")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"/dir/file", "/dir/sub/"}, app.completeRemotePath("cat /dir/"))
	assert.ElementsMatch(t, []string{"dir/"}, app.completeRemotePath("ls "))
}

func TestShellMisc(t *testing.T) {
	app, out := newTestApp(t)

	_, err := run(t, app, out, "frobnicate")
	assert.EqualError(t, err, "unknown command: frobnicate")
	assert.ErrorIs(t, app.Exec([]string{"exit"}), errExit)

	got, err := run(t, app, out, "help")
	require.NoError(t, err)
	assert.Contains(t, got, "rmdir [-r] <path>")

	for _, line := range []string{"cat", "get /a", "put /a", "write /a", "rm", "mkdir", "rmdir", "mv a", "chmod 755", "stat"} {
		_, err := run(t, app, out, line)
		assert.ErrorContains(t, err, "usage:", line)
	}
}
