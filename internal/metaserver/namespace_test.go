package metaserver

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"eddisonso.com/go-qfs/internal/chunkstore"
	"eddisonso.com/go-qfs/pkg/kfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNamespace(t *testing.T, cfg Config, store chunkstore.Store) *Namespace {
	t.Helper()
	ns, err := NewNamespace(cfg, store)
	require.NoError(t, err)
	return ns
}

func chunkCount(t *testing.T, store *chunkstore.MemoryStore) int {
	t.Helper()
	handles, err := store.Handles()
	require.NoError(t, err)
	return len(handles)
}

// flakyStore fails every Put once puts reaches zero.
type flakyStore struct {
	chunkstore.Store
	puts int
}

func (s *flakyStore) Put(ctx context.Context, handle string, data []byte) error {
	if s.puts == 0 {
		return errors.New("disk full")
	}
	s.puts--
	return s.Store.Put(ctx, handle, data)
}

func TestNamespaceTree(t *testing.T) {
	ctx := context.Background()
	ns := newTestNamespace(t, Config{}, nil)
	defer ns.Close()

	require.NoError(t, ns.Mkdir(ctx, "/a", 0755, false))
	assert.ErrorIs(t, ns.Mkdir(ctx, "/a", 0755, false), kfs.EEXIST)
	assert.ErrorIs(t, ns.Mkdir(ctx, "/x/y", 0755, false), kfs.ENOENT)
	require.NoError(t, ns.Mkdir(ctx, "/a/b/c", 0700, true))
	require.NoError(t, ns.Mkdir(ctx, "/a/b/c", 0700, true), "existing directory is fine with parents")

	attr, err := ns.Create(ctx, "/a/f", kfs.O_WRONLY|kfs.O_CREAT, 0644, "")
	require.NoError(t, err)
	assert.Equal(t, "f", attr.Filename)
	assert.Equal(t, uint32(0644), attr.Mode)
	assert.Equal(t, int32(kfs.DefaultReplicas), attr.Replicas)

	_, err = ns.Create(ctx, "/a/f", kfs.O_WRONLY|kfs.O_CREAT|kfs.O_EXCL, 0644, "")
	assert.ErrorIs(t, err, kfs.EEXIST)
	_, err = ns.Create(ctx, "/a/missing", kfs.O_RDONLY, 0, "")
	assert.ErrorIs(t, err, kfs.ENOENT)
	_, err = ns.Create(ctx, "/a/b", kfs.O_RDONLY, 0, "")
	assert.ErrorIs(t, err, kfs.EISDIR)
	_, err = ns.Create(ctx, "/a/f/g", kfs.O_CREAT|kfs.O_WRONLY, 0644, "")
	assert.ErrorIs(t, err, kfs.ENOTDIR)
	_, err = ns.Create(ctx, "/a/bad", kfs.O_CREAT|kfs.O_WRONLY, 0644, "0")
	assert.ErrorIs(t, err, kfs.EINVAL)
	assert.ErrorIs(t, ns.Mkdir(ctx, "/a/f/sub", 0755, true), kfs.ENOTDIR)

	dir, err := ns.Stat(ctx, "/a")
	require.NoError(t, err)
	assert.True(t, dir.Directory)
	assert.Equal(t, int64(1), dir.Chunks, "files in directory")
	assert.Equal(t, int64(1), dir.Directories)

	entries, err := ns.List(ctx, "/a", "", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Filename)
	assert.Equal(t, "f", entries[1].Filename)

	entries, err = ns.List(ctx, "/a", "b", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "f", entries[0].Filename)

	_, err = ns.List(ctx, "/a/f", "", 0)
	assert.ErrorIs(t, err, kfs.ENOTDIR)

	assert.ErrorIs(t, ns.Remove(ctx, "/a/b"), kfs.EISDIR)
	assert.ErrorIs(t, ns.Rmdir(ctx, "/a/f", false), kfs.ENOTDIR)
	assert.ErrorIs(t, ns.Rmdir(ctx, "/a", false), kfs.ENOTEMPTY)
	assert.ErrorIs(t, ns.Rmdir(ctx, "/", true), kfs.EPERM)
	require.NoError(t, ns.Remove(ctx, "/a/f"))
	assert.ErrorIs(t, ns.Remove(ctx, "/a/f"), kfs.ENOENT)
	require.NoError(t, ns.Rmdir(ctx, "/a", true))
	_, err = ns.Stat(ctx, "/a/b/c")
	assert.ErrorIs(t, err, kfs.ENOENT)
}

func TestNamespaceRenameAndChmod(t *testing.T) {
	ctx := context.Background()
	ns := newTestNamespace(t, Config{}, nil)
	defer ns.Close()

	require.NoError(t, ns.Mkdir(ctx, "/d/e", 0755, true))
	_, err := ns.Create(ctx, "/d/one", kfs.O_CREAT|kfs.O_RDWR, 0644, "")
	require.NoError(t, err)
	_, err = ns.Create(ctx, "/d/two", kfs.O_CREAT|kfs.O_RDWR, 0644, "")
	require.NoError(t, err)

	assert.ErrorIs(t, ns.Rename(ctx, "/d", "/d/e/inside"), kfs.EINVAL)
	assert.ErrorIs(t, ns.Rename(ctx, "/d/one", "/d/e"), kfs.EISDIR)
	assert.ErrorIs(t, ns.Rename(ctx, "/nope", "/x"), kfs.ENOENT)

	require.NoError(t, ns.Rename(ctx, "/d/one", "/d/two"))
	entries, err := ns.List(ctx, "/d", "", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e", entries[0].Filename)
	assert.Equal(t, "two", entries[1].Filename)

	require.NoError(t, ns.Rename(ctx, "/d/e", "/moved"))
	moved, err := ns.Stat(ctx, "/moved")
	require.NoError(t, err)
	assert.True(t, moved.Directory)

	require.NoError(t, ns.Chmod(ctx, "/d", 0700, true))
	two, err := ns.Stat(ctx, "/d/two")
	require.NoError(t, err)
	assert.Equal(t, uint32(0700), two.Mode)

	require.NoError(t, ns.ChmodInode(ctx, two.ID, 0600))
	two, err = ns.StatInode(ctx, two.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(0600), two.Mode)
}

func TestNamespaceData(t *testing.T) {
	ctx := context.Background()
	store := chunkstore.NewMemoryStore()
	ns := newTestNamespace(t, Config{ChunkSize: 4}, store)
	defer ns.Close()

	attr, err := ns.Create(ctx, "/f", kfs.O_CREAT|kfs.O_RDWR, 0644, "")
	require.NoError(t, err)

	n, err := ns.WriteAt(ctx, attr.ID, 0, []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, 3, chunkCount(t, store))

	got, err := ns.ReadAt(ctx, attr.ID, 3, 5)
	require.NoError(t, err)
	assert.Equal(t, "lo wo", string(got))

	got, err = ns.ReadAt(ctx, attr.ID, 8, 100)
	require.NoError(t, err)
	assert.Equal(t, "rld", string(got))

	got, err = ns.ReadAt(ctx, attr.ID, 11, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	// Sparse write leaves a hole that reads as zeros.
	_, err = ns.WriteAt(ctx, attr.ID, 20, []byte("z"))
	require.NoError(t, err)
	got, err = ns.ReadAt(ctx, attr.ID, 10, 11)
	require.NoError(t, err)
	assert.Equal(t, append([]byte("d"), append(bytes.Repeat([]byte{0}, 9), 'z')...), got)

	st, err := ns.StatInode(ctx, attr.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(21), st.Size)
	assert.Equal(t, int64(4), st.Chunks)

	_, err = ns.Create(ctx, "/f", kfs.O_RDWR|kfs.O_TRUNC, 0, "")
	require.NoError(t, err)
	st, err = ns.StatInode(ctx, attr.ID)
	require.NoError(t, err)
	assert.Zero(t, st.Size)
	assert.Equal(t, 0, chunkCount(t, store), "truncate frees chunks")

	_, err = ns.WriteAt(ctx, attr.ID, 0, []byte("abc"))
	require.NoError(t, err)
	require.NoError(t, ns.Remove(ctx, "/f"))
	assert.Equal(t, 0, chunkCount(t, store), "remove frees chunks")

	_, err = ns.ReadAt(ctx, RootID, 0, 1)
	assert.ErrorIs(t, err, kfs.EISDIR)
}

func TestNamespaceReplay(t *testing.T) {
	ctx := context.Background()
	walPath := filepath.Join(t.TempDir(), "meta", "wal.log")
	store := chunkstore.NewMemoryStore()

	ns := newTestNamespace(t, Config{WALPath: walPath, ChunkSize: 8}, store)
	require.NoError(t, ns.Mkdir(ctx, "/data/logs", 0750, true))
	attr, err := ns.Create(ctx, "/data/logs/app.log", kfs.O_CREAT|kfs.O_WRONLY, 0640, "2")
	require.NoError(t, err)
	_, err = ns.WriteAt(ctx, attr.ID, 0, []byte("first line\n"))
	require.NoError(t, err)
	require.NoError(t, ns.Rename(ctx, "/data/logs/app.log", "/data/app.log"))
	require.NoError(t, ns.Chmod(ctx, "/data/app.log", 0600, false))
	require.NoError(t, ns.Rmdir(ctx, "/data/logs", false))
	require.NoError(t, ns.wal.Close())

	replayed := newTestNamespace(t, Config{WALPath: walPath, ChunkSize: 8}, store)
	defer replayed.Close()

	st, err := replayed.Stat(ctx, "/data/app.log")
	require.NoError(t, err)
	assert.Equal(t, attr.ID, st.ID)
	assert.Equal(t, uint32(0600), st.Mode)
	assert.Equal(t, int64(11), st.Size)
	assert.Equal(t, int32(2), st.Replicas)

	data, err := replayed.ReadAt(ctx, st.ID, 0, 64)
	require.NoError(t, err)
	assert.Equal(t, "first line\n", string(data))

	_, err = replayed.Stat(ctx, "/data/logs")
	assert.ErrorIs(t, err, kfs.ENOENT)

	// New inodes do not collide with replayed ones.
	next, err := replayed.Create(ctx, "/data/new", kfs.O_CREAT|kfs.O_WRONLY, 0644, "")
	require.NoError(t, err)
	assert.Greater(t, next.ID, st.ID)
}

func TestNamespaceSweepsOrphanedChunks(t *testing.T) {
	ctx := context.Background()
	walPath := filepath.Join(t.TempDir(), "wal.log")
	store := chunkstore.NewMemoryStore()

	ns := newTestNamespace(t, Config{WALPath: walPath, ChunkSize: 8}, store)
	attr, err := ns.Create(ctx, "/f", kfs.O_CREAT|kfs.O_WRONLY, 0644, "")
	require.NoError(t, err)
	_, err = ns.WriteAt(ctx, attr.ID, 0, []byte("kept"))
	require.NoError(t, err)
	require.NoError(t, ns.wal.Close())

	require.NoError(t, store.Put(ctx, "orphan", []byte("lost")))
	require.Equal(t, 2, chunkCount(t, store))

	replayed := newTestNamespace(t, Config{WALPath: walPath, ChunkSize: 8}, store)
	defer replayed.Close()

	assert.Equal(t, 1, chunkCount(t, store))
	_, err = store.Get(ctx, "orphan")
	assert.ErrorIs(t, err, chunkstore.ErrChunkNotFound)
	data, err := replayed.ReadAt(ctx, attr.ID, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, "kept", string(data))
}

func TestNamespacePartialWriteSize(t *testing.T) {
	ctx := context.Background()
	walPath := filepath.Join(t.TempDir(), "wal.log")
	store := &flakyStore{Store: chunkstore.NewMemoryStore(), puts: 1}

	ns := newTestNamespace(t, Config{WALPath: walPath, ChunkSize: 8}, store)
	attr, err := ns.Create(ctx, "/f", kfs.O_CREAT|kfs.O_WRONLY, 0644, "")
	require.NoError(t, err)

	n, err := ns.WriteAt(ctx, attr.ID, 0, []byte("0123456789ab"))
	assert.Equal(t, 8, n)
	assert.ErrorIs(t, err, kfs.EIO)
	st, err := ns.StatInode(ctx, attr.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), st.Size)
	require.NoError(t, ns.wal.Close())

	replayed := newTestNamespace(t, Config{WALPath: walPath, ChunkSize: 8}, store.Store)
	st, err = replayed.StatInode(ctx, attr.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), st.Size, "the recorded size survives replay")

	defer replayed.Close()
}

func TestNamespacePartialWriteUnloggedSize(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: chunkstore.NewMemoryStore(), puts: 2}

	ns := newTestNamespace(t, Config{WALPath: filepath.Join(t.TempDir(), "wal.log"), ChunkSize: 8}, store)
	attr, err := ns.Create(ctx, "/f", kfs.O_CREAT|kfs.O_WRONLY, 0644, "")
	require.NoError(t, err)
	_, err = ns.WriteAt(ctx, attr.ID, 0, []byte("0123456789abcdef"))
	require.NoError(t, err)

	store.puts = 1
	require.NoError(t, ns.wal.Close())
	n, err := ns.WriteAt(ctx, attr.ID, 0, []byte("ABCDEFGHIJ"))
	assert.Equal(t, 8, n)
	require.Error(t, err)
	assert.ErrorIs(t, err, kfs.EIO)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "file already closed")
}
