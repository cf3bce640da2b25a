package metaserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"eddisonso.com/go-qfs/internal/chunkstore"
	"eddisonso.com/go-qfs/internal/metaserver/wal"
	"eddisonso.com/go-qfs/pkg/kfs"
	"github.com/google/uuid"
)

const (
	// RootID is the inode number of "/".
	RootID           = 2
	DefaultChunkSize = 64 << 20
	maxNameLen       = 255
)

// Config holds namespace settings.
type Config struct {
	// WALPath enables persistence when set.
	WALPath   string
	ChunkSize int64
	UID       uint32
	GID       uint32
}

type inode struct {
	id       int64
	name     string
	parent   *inode
	dir      bool
	mode     uint32
	mtime    time.Time
	ctime    time.Time
	children map[string]*inode

	size   int64
	chunks []string // "" marks a hole
	layout kfs.Layout
}

// Namespace is the metaserver's file tree. Methods report native failures as
// kfs.Errno values, possibly wrapped.
type Namespace struct {
	mu        sync.RWMutex
	root      *inode
	inodes    map[int64]*inode
	nextID    int64
	chunkSize int64
	uid, gid  uint32

	store chunkstore.Store
	wal   *wal.WAL
	now   func() time.Time
}

// NewNamespace creates a namespace, replaying cfg.WALPath if it exists and
// then deleting stored chunks no file refers to. A nil store keeps chunk data
// in memory.
func NewNamespace(cfg Config, store chunkstore.Store) (*Namespace, error) {
	if store == nil {
		store = chunkstore.NewMemoryStore()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}

	now := time.Now()
	root := &inode{
		id:       RootID,
		name:     "/",
		dir:      true,
		mode:     0755,
		mtime:    now,
		ctime:    now,
		children: make(map[string]*inode),
	}
	ns := &Namespace{
		root:      root,
		inodes:    map[int64]*inode{RootID: root},
		nextID:    RootID + 1,
		chunkSize: cfg.ChunkSize,
		uid:       cfg.UID,
		gid:       cfg.GID,
		store:     store,
		now:       time.Now,
	}

	if cfg.WALPath != "" {
		if err := ns.replay(cfg.WALPath); err != nil {
			return nil, err
		}
		if err := ns.sweepOrphans(context.Background()); err != nil {
			return nil, err
		}
		w, err := wal.New(cfg.WALPath)
		if err != nil {
			return nil, err
		}
		ns.wal = w
	}
	return ns, nil
}

// Close closes the WAL and the chunk store.
func (ns *Namespace) Close() error {
	var errs []error
	if ns.wal != nil {
		errs = append(errs, ns.wal.Close())
	}
	errs = append(errs, ns.store.Close())
	return errors.Join(errs...)
}

// ChunkSize returns the size of a full chunk.
func (ns *Namespace) ChunkSize() int64 {
	return ns.chunkSize
}

func (ns *Namespace) replay(walPath string) error {
	r, err := wal.NewReader(walPath)
	if err != nil {
		return err
	}
	defer r.Close()

	entries, err := r.ReadAll()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := ns.applyEntry(e); err != nil {
			slog.Warn("skipping WAL entry", "op", e.Op, "error", err)
		}
	}
	if len(entries) > 0 {
		slog.Info("replayed WAL", "entries", len(entries), "inodes", len(ns.inodes))
	}
	return nil
}

// sweepOrphans deletes chunks that no inode refers to. writeChunk stores a
// chunk before logging ADD_CHUNK, so a crash in between leaves one behind.
func (ns *Namespace) sweepOrphans(ctx context.Context) error {
	lister, ok := ns.store.(chunkstore.Lister)
	if !ok {
		return nil
	}
	handles, err := lister.Handles()
	if err != nil {
		return fmt.Errorf("failed to list chunks: %w", err)
	}

	used := make(map[string]struct{})
	for _, n := range ns.inodes {
		for _, h := range n.chunks {
			if h != "" {
				used[h] = struct{}{}
			}
		}
	}
	var orphans []string
	for _, h := range handles {
		if _, ok := used[h]; !ok {
			orphans = append(orphans, h)
		}
	}
	if len(orphans) > 0 {
		slog.Info("removing orphaned chunks", "count", len(orphans))
		ns.freeChunks(ctx, orphans)
	}
	return nil
}

func decode[T any](raw json.RawMessage, apply func(T) error) error {
	var d T
	if err := json.Unmarshal(raw, &d); err != nil {
		return err
	}
	return apply(d)
}

func (ns *Namespace) applyEntry(e wal.Entry) error {
	switch e.Op {
	case wal.OpCreateFile:
		return decode(e.Data, ns.applyCreateFile)
	case wal.OpMkdir:
		return decode(e.Data, ns.applyMkdir)
	case wal.OpRemove:
		return decode(e.Data, func(d wal.RemoveData) error {
			_, err := ns.applyRemove(d)
			return err
		})
	case wal.OpRename:
		return decode(e.Data, func(d wal.RenameData) error {
			_, err := ns.applyRename(d)
			return err
		})
	case wal.OpChmod:
		return decode(e.Data, ns.applyChmod)
	case wal.OpTruncate:
		return decode(e.Data, func(d wal.TruncateData) error {
			_, err := ns.applyTruncate(d)
			return err
		})
	case wal.OpAddChunk:
		return decode(e.Data, ns.applyAddChunk)
	case wal.OpSetSize:
		return decode(e.Data, ns.applySetSize)
	default:
		return fmt.Errorf("unknown WAL op %q", e.Op)
	}
}

// logged writes one WAL record. Failures surface as EIO.
func (ns *Namespace) logged(fn func(w *wal.WAL) error) error {
	if ns.wal == nil {
		return nil
	}
	if err := fn(ns.wal); err != nil {
		slog.Error("failed to write WAL", "error", err)
		return fmt.Errorf("%w: %v", kfs.EIO, err)
	}
	return nil
}

// lookup walks an absolute path. Caller holds ns.mu.
func (ns *Namespace) lookup(p string) (*inode, error) {
	if !path.IsAbs(p) {
		return nil, kfs.EINVAL
	}
	n := ns.root
	for _, name := range strings.Split(path.Clean(p), "/") {
		if name == "" {
			continue
		}
		if !n.dir {
			return nil, kfs.ENOTDIR
		}
		child, ok := n.children[name]
		if !ok {
			return nil, kfs.ENOENT
		}
		n = child
	}
	return n, nil
}

// parentOf resolves the directory that holds p and p's final name.
func (ns *Namespace) parentOf(p string) (*inode, string, error) {
	dir, name := kfs.Split(p)
	if name == "" {
		return nil, "", kfs.EPERM
	}
	if len(name) > maxNameLen {
		return nil, "", kfs.ENAMETOOLONG
	}
	parent, err := ns.lookup(dir)
	if err != nil {
		return nil, "", err
	}
	if !parent.dir {
		return nil, "", kfs.ENOTDIR
	}
	return parent, name, nil
}

func (n *inode) path() string {
	if n.parent == nil {
		return "/"
	}
	var parts []string
	for c := n; c.parent != nil; c = c.parent {
		parts = append(parts, c.name)
	}
	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(parts[i])
	}
	return b.String()
}

// walk visits n and everything below it, parents first.
func (n *inode) walk(fn func(*inode)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}

func (ns *Namespace) attrOf(n *inode) kfs.Attr {
	a := kfs.Attr{
		Filename:  n.name,
		ID:        n.id,
		Mode:      n.mode,
		UID:       ns.uid,
		GID:       ns.gid,
		Mtime:     n.mtime,
		Ctime:     n.ctime,
		Directory: n.dir,
	}
	if n.dir {
		for _, c := range n.children {
			if c.dir {
				a.Directories++
			} else {
				a.Chunks++
			}
		}
		return a
	}
	a.Size = n.size
	for _, h := range n.chunks {
		if h != "" {
			a.Chunks++
		}
	}
	a.Replicas = n.layout.Replicas
	a.Stripes = n.layout.Stripes
	a.RecoveryStripes = n.layout.RecoveryStripes
	a.StriperType = n.layout.StriperType
	a.StripeSize = n.layout.StripeSize
	a.MinSTier = n.layout.MinSTier
	a.MaxSTier = n.layout.MaxSTier
	return a
}

// Stat returns the attributes of p.
func (ns *Namespace) Stat(_ context.Context, p string) (kfs.Attr, error) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	n, err := ns.lookup(p)
	if err != nil {
		return kfs.Attr{}, err
	}
	return ns.attrOf(n), nil
}

// StatInode returns the attributes of inode id.
func (ns *Namespace) StatInode(_ context.Context, id int64) (kfs.Attr, error) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	n, ok := ns.inodes[id]
	if !ok {
		return kfs.Attr{}, kfs.ENOENT
	}
	return ns.attrOf(n), nil
}

// Create opens p for the given flags, creating or truncating it as the flags
// ask, and returns its attributes.
func (ns *Namespace) Create(ctx context.Context, p string, flags int, mode uint32, params string) (kfs.Attr, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	n, err := ns.lookup(p)
	switch {
	case err == nil:
		if flags&kfs.O_CREAT != 0 && flags&kfs.O_EXCL != 0 {
			return kfs.Attr{}, kfs.EEXIST
		}
		if n.dir {
			return kfs.Attr{}, kfs.EISDIR
		}
		if flags&kfs.O_TRUNC != 0 && flags&kfs.O_ACCMODE != kfs.O_RDONLY && (n.size > 0 || len(n.chunks) > 0) {
			d := wal.TruncateData{ID: n.id, Time: ns.now()}
			if err := ns.logged(func(w *wal.WAL) error { return w.LogTruncate(d) }); err != nil {
				return kfs.Attr{}, err
			}
			freed, err := ns.applyTruncate(d)
			if err != nil {
				return kfs.Attr{}, err
			}
			ns.freeChunks(ctx, freed)
		}
		return ns.attrOf(n), nil

	case errors.Is(err, kfs.ENOENT) && flags&kfs.O_CREAT != 0:
		if _, _, err := ns.parentOf(p); err != nil {
			return kfs.Attr{}, err
		}
		layout, err := kfs.ParseCreateParams(params)
		if err != nil {
			return kfs.Attr{}, err
		}
		d := wal.CreateFileData{
			Path:   path.Clean(p),
			ID:     ns.nextID,
			Mode:   mode & 07777,
			Layout: layout,
			Time:   ns.now(),
		}
		if err := ns.logged(func(w *wal.WAL) error { return w.LogCreateFile(d) }); err != nil {
			return kfs.Attr{}, err
		}
		if err := ns.applyCreateFile(d); err != nil {
			return kfs.Attr{}, err
		}
		slog.Debug("created file", "path", d.Path, "id", d.ID)
		return ns.attrOf(ns.inodes[d.ID]), nil

	default:
		return kfs.Attr{}, err
	}
}

func (ns *Namespace) applyCreateFile(d wal.CreateFileData) error {
	parent, name, err := ns.parentOf(d.Path)
	if err != nil {
		return err
	}
	if _, ok := parent.children[name]; ok {
		return kfs.EEXIST
	}
	n := &inode{
		id:     d.ID,
		name:   name,
		parent: parent,
		mode:   d.Mode,
		mtime:  d.Time,
		ctime:  d.Time,
		layout: d.Layout,
	}
	ns.attach(parent, n, d.Time)
	return nil
}

func (ns *Namespace) attach(parent, n *inode, t time.Time) {
	n.parent = parent
	parent.children[n.name] = n
	parent.mtime = t
	ns.inodes[n.id] = n
	if n.id >= ns.nextID {
		ns.nextID = n.id + 1
	}
}

// Mkdir creates directory p. With parents set, missing ancestors are created
// and an existing directory is not an error.
func (ns *Namespace) Mkdir(_ context.Context, p string, mode uint32, parents bool) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	p = path.Clean(p)
	if !parents {
		if _, err := ns.lookup(p); err == nil {
			return kfs.EEXIST
		}
		if _, _, err := ns.parentOf(p); err != nil {
			return err
		}
		return ns.mkdirOne(p, mode)
	}

	if !path.IsAbs(p) {
		return kfs.EINVAL
	}
	cur := "/"
	for _, name := range strings.Split(p, "/") {
		if name == "" {
			continue
		}
		cur = path.Join(cur, name)
		n, err := ns.lookup(cur)
		switch {
		case err == nil && n.dir:
			continue
		case err == nil:
			return kfs.ENOTDIR
		case !errors.Is(err, kfs.ENOENT):
			return err
		}
		if len(name) > maxNameLen {
			return kfs.ENAMETOOLONG
		}
		if err := ns.mkdirOne(cur, mode); err != nil {
			return err
		}
	}
	return nil
}

func (ns *Namespace) mkdirOne(p string, mode uint32) error {
	d := wal.MkdirData{Path: p, ID: ns.nextID, Mode: mode & 07777, Time: ns.now()}
	if err := ns.logged(func(w *wal.WAL) error { return w.LogMkdir(d) }); err != nil {
		return err
	}
	if err := ns.applyMkdir(d); err != nil {
		return err
	}
	slog.Debug("created directory", "path", p, "id", d.ID)
	return nil
}

func (ns *Namespace) applyMkdir(d wal.MkdirData) error {
	parent, name, err := ns.parentOf(d.Path)
	if err != nil {
		return err
	}
	if _, ok := parent.children[name]; ok {
		return kfs.EEXIST
	}
	ns.attach(parent, &inode{
		id:       d.ID,
		name:     name,
		dir:      true,
		mode:     d.Mode,
		mtime:    d.Time,
		ctime:    d.Time,
		children: make(map[string]*inode),
	}, d.Time)
	return nil
}

// Rmdir removes directory p. Without recursive it must be empty.
func (ns *Namespace) Rmdir(ctx context.Context, p string, recursive bool) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	n, err := ns.lookup(p)
	if err != nil {
		return err
	}
	if !n.dir {
		return kfs.ENOTDIR
	}
	if n == ns.root {
		return kfs.EPERM
	}
	if !recursive && len(n.children) > 0 {
		return kfs.ENOTEMPTY
	}
	return ns.removeLogged(ctx, n)
}

// Remove deletes the regular file p.
func (ns *Namespace) Remove(ctx context.Context, p string) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	n, err := ns.lookup(p)
	if err != nil {
		return err
	}
	if n.dir {
		return kfs.EISDIR
	}
	return ns.removeLogged(ctx, n)
}

func (ns *Namespace) removeLogged(ctx context.Context, n *inode) error {
	d := wal.RemoveData{Path: n.path(), Time: ns.now()}
	if err := ns.logged(func(w *wal.WAL) error { return w.LogRemove(d) }); err != nil {
		return err
	}
	freed, err := ns.applyRemove(d)
	if err != nil {
		return err
	}
	ns.freeChunks(ctx, freed)
	slog.Debug("removed", "path", d.Path, "chunks", len(freed))
	return nil
}

func (ns *Namespace) applyRemove(d wal.RemoveData) ([]string, error) {
	n, err := ns.lookup(d.Path)
	if err != nil {
		return nil, err
	}
	if n == ns.root {
		return nil, kfs.EPERM
	}
	return ns.detach(n, d.Time), nil
}

// detach unlinks n from its parent and forgets its subtree, returning the
// chunk handles that are no longer referenced.
func (ns *Namespace) detach(n *inode, t time.Time) []string {
	delete(n.parent.children, n.name)
	n.parent.mtime = t
	var freed []string
	n.walk(func(c *inode) {
		delete(ns.inodes, c.id)
		for _, h := range c.chunks {
			if h != "" {
				freed = append(freed, h)
			}
		}
	})
	return freed
}

func (ns *Namespace) freeChunks(ctx context.Context, handles []string) {
	for _, h := range handles {
		if err := ns.store.Delete(ctx, h); err != nil {
			slog.Warn("failed to delete chunk", "handle", h, "error", err)
		}
	}
}

// Rename moves oldPath to newPath, replacing a file or empty directory there.
func (ns *Namespace) Rename(ctx context.Context, oldPath, newPath string) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	oldPath, newPath = path.Clean(oldPath), path.Clean(newPath)
	n, err := ns.lookup(oldPath)
	if err != nil {
		return err
	}
	if n == ns.root {
		return kfs.EPERM
	}
	if oldPath == newPath {
		return nil
	}
	if n.dir && strings.HasPrefix(newPath, oldPath+"/") {
		return kfs.EINVAL
	}
	if _, _, err := ns.parentOf(newPath); err != nil {
		return err
	}
	if target, err := ns.lookup(newPath); err == nil {
		switch {
		case target.dir && !n.dir:
			return kfs.EISDIR
		case !target.dir && n.dir:
			return kfs.ENOTDIR
		case target.dir && len(target.children) > 0:
			return kfs.ENOTEMPTY
		}
	}

	d := wal.RenameData{OldPath: oldPath, NewPath: newPath, Time: ns.now()}
	if err := ns.logged(func(w *wal.WAL) error { return w.LogRename(d) }); err != nil {
		return err
	}
	freed, err := ns.applyRename(d)
	if err != nil {
		return err
	}
	ns.freeChunks(ctx, freed)
	slog.Debug("renamed", "old", oldPath, "new", newPath)
	return nil
}

func (ns *Namespace) applyRename(d wal.RenameData) ([]string, error) {
	n, err := ns.lookup(d.OldPath)
	if err != nil {
		return nil, err
	}
	parent, name, err := ns.parentOf(d.NewPath)
	if err != nil {
		return nil, err
	}
	var freed []string
	if target, ok := parent.children[name]; ok {
		freed = ns.detach(target, d.Time)
	}
	delete(n.parent.children, n.name)
	n.parent.mtime = d.Time
	n.name = name
	n.ctime = d.Time
	n.parent = parent
	parent.children[name] = n
	parent.mtime = d.Time
	return freed, nil
}

// Chmod sets the mode of p, and of everything below it when recursive.
func (ns *Namespace) Chmod(_ context.Context, p string, mode uint32, recursive bool) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	n, err := ns.lookup(p)
	if err != nil {
		return err
	}
	targets := []*inode{n}
	if recursive {
		targets = targets[:0]
		n.walk(func(c *inode) { targets = append(targets, c) })
	}
	for _, t := range targets {
		if err := ns.chmodOne(t, mode); err != nil {
			return err
		}
	}
	return nil
}

// ChmodInode sets the mode of inode id.
func (ns *Namespace) ChmodInode(_ context.Context, id int64, mode uint32) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	n, ok := ns.inodes[id]
	if !ok {
		return kfs.ENOENT
	}
	return ns.chmodOne(n, mode)
}

func (ns *Namespace) chmodOne(n *inode, mode uint32) error {
	d := wal.ChmodData{ID: n.id, Mode: mode & 07777, Time: ns.now()}
	if err := ns.logged(func(w *wal.WAL) error { return w.LogChmod(d) }); err != nil {
		return err
	}
	return ns.applyChmod(d)
}

func (ns *Namespace) applyChmod(d wal.ChmodData) error {
	n, ok := ns.inodes[d.ID]
	if !ok {
		return kfs.ENOENT
	}
	n.mode = d.Mode
	n.ctime = d.Time
	return nil
}

func (ns *Namespace) applyTruncate(d wal.TruncateData) ([]string, error) {
	n, ok := ns.inodes[d.ID]
	if !ok {
		return nil, kfs.ENOENT
	}
	var freed []string
	for _, h := range n.chunks {
		if h != "" {
			freed = append(freed, h)
		}
	}
	n.chunks = nil
	n.size = 0
	n.mtime = d.Time
	return freed, nil
}

func (ns *Namespace) applyAddChunk(d wal.AddChunkData) error {
	n, ok := ns.inodes[d.ID]
	if !ok {
		return kfs.ENOENT
	}
	if d.Index < 0 {
		return kfs.EINVAL
	}
	for len(n.chunks) <= d.Index {
		n.chunks = append(n.chunks, "")
	}
	n.chunks[d.Index] = d.ChunkHandle
	return nil
}

func (ns *Namespace) applySetSize(d wal.SetSizeData) error {
	n, ok := ns.inodes[d.ID]
	if !ok {
		return kfs.ENOENT
	}
	n.size = d.Size
	n.mtime = d.Time
	return nil
}

// List returns the entries of directory p sorted by name, starting after the
// given name. A limit of zero or less returns everything.
func (ns *Namespace) List(_ context.Context, p string, after string, limit int) ([]kfs.Attr, error) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	n, err := ns.lookup(p)
	if err != nil {
		return nil, err
	}
	if !n.dir {
		return nil, kfs.ENOTDIR
	}

	names := make([]string, 0, len(n.children))
	for name := range n.children {
		if name > after {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	attrs := make([]kfs.Attr, len(names))
	for i, name := range names {
		attrs[i] = ns.attrOf(n.children[name])
	}
	return attrs, nil
}

func (ns *Namespace) file(id int64) (*inode, error) {
	n, ok := ns.inodes[id]
	if !ok {
		return nil, kfs.ENOENT
	}
	if n.dir {
		return nil, kfs.EISDIR
	}
	return n, nil
}

// ReadAt reads up to n bytes of inode id starting at off. Holes read as
// zeros; reading at or past the end returns no data.
func (ns *Namespace) ReadAt(ctx context.Context, id int64, off int64, n int) ([]byte, error) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	f, err := ns.file(id)
	if err != nil {
		return nil, err
	}
	if off < 0 || n < 0 {
		return nil, kfs.EINVAL
	}
	if off >= f.size || n == 0 {
		return []byte{}, nil
	}
	end := min(off+int64(n), f.size)
	out := make([]byte, end-off)

	for pos := off; pos < end; {
		idx := pos / ns.chunkSize
		chunkStart := idx * ns.chunkSize
		chunkEnd := min(chunkStart+ns.chunkSize, end)

		if idx < int64(len(f.chunks)) && f.chunks[idx] != "" {
			data, err := ns.store.Get(ctx, f.chunks[idx])
			if err != nil && !errors.Is(err, chunkstore.ErrChunkNotFound) {
				slog.Error("failed to read chunk", "handle", f.chunks[idx], "error", err)
				return nil, fmt.Errorf("%w: %v", kfs.EIO, err)
			}
			lo := pos - chunkStart
			if lo < int64(len(data)) {
				copy(out[pos-off:chunkEnd-off], data[lo:])
			}
		}
		pos = chunkEnd
	}
	return out, nil
}

// WriteAt writes data to inode id at off, allocating chunks as needed. It
// returns how many bytes were stored, which is short only alongside an error.
func (ns *Namespace) WriteAt(ctx context.Context, id int64, off int64, data []byte) (int, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	f, err := ns.file(id)
	if err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, kfs.EINVAL
	}

	written := 0
	end := off + int64(len(data))
	for pos := off; pos < end; {
		idx := pos / ns.chunkSize
		chunkStart := idx * ns.chunkSize
		chunkEnd := min(chunkStart+ns.chunkSize, end)
		piece := data[pos-off : chunkEnd-off]

		if err := ns.writeChunk(ctx, f, int(idx), pos-chunkStart, piece); err != nil {
			if written > 0 {
				if gerr := ns.growTo(f, off+int64(written)); gerr != nil {
					slog.Error("failed to record partial write size", "id", f.id, "written", written, "error", gerr)
					err = errors.Join(err, gerr)
				}
			}
			return written, err
		}
		written += len(piece)
		pos = chunkEnd
	}

	if err := ns.growTo(f, end); err != nil {
		return written, err
	}
	return written, nil
}

func (ns *Namespace) writeChunk(ctx context.Context, f *inode, idx int, lo int64, piece []byte) error {
	var handle string
	if idx < len(f.chunks) {
		handle = f.chunks[idx]
	}

	var buf []byte
	if handle != "" {
		existing, err := ns.store.Get(ctx, handle)
		if err != nil && !errors.Is(err, chunkstore.ErrChunkNotFound) {
			return fmt.Errorf("%w: %v", kfs.EIO, err)
		}
		buf = existing
	}
	if need := int(lo) + len(piece); len(buf) < need {
		buf = append(buf, make([]byte, need-len(buf))...)
	}
	copy(buf[lo:], piece)

	newChunk := handle == ""
	if newChunk {
		handle = uuid.NewString()
	}
	if err := ns.store.Put(ctx, handle, buf); err != nil {
		slog.Error("failed to store chunk", "handle", handle, "error", err)
		return fmt.Errorf("%w: %v", kfs.EIO, err)
	}
	if newChunk {
		d := wal.AddChunkData{ID: f.id, Index: idx, ChunkHandle: handle}
		if err := ns.logged(func(w *wal.WAL) error { return w.LogAddChunk(d) }); err != nil {
			return err
		}
		return ns.applyAddChunk(d)
	}
	return nil
}

func (ns *Namespace) growTo(f *inode, size int64) error {
	d := wal.SetSizeData{ID: f.id, Size: max(f.size, size), Time: ns.now()}
	if err := ns.logged(func(w *wal.WAL) error { return w.LogSetSize(d) }); err != nil {
		return err
	}
	return ns.applySetSize(d)
}
