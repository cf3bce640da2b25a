package qfs

import (
	"io"
	"iter"

	"eddisonso.com/go-qfs/pkg/kfs"
)

type dirState int

const (
	dirUnstarted dirState = iota
	dirIterating
	dirExhausted
	dirFailed
	dirClosed
)

// DirIterator walks one directory listing. The native cursor behind it is
// freed exactly once: at the end of the listing, on the first error, or by
// Close when the caller stops early.
type DirIterator struct {
	client *Client
	path   string
	cur    kfs.Cursor
	state  dirState
	count  int
	err    error
}

// OpenDir starts a listing of path. Nothing is fetched until Next.
func (c *Client) OpenDir(path string) (*DirIterator, error) {
	if _, err := c.native("readdir", path); err != nil {
		return nil, err
	}
	return &DirIterator{client: c, path: path}, nil
}

// Next returns the next entry, or io.EOF once the listing is exhausted. After
// a failure Next keeps returning the same error.
func (d *DirIterator) Next() (Attr, error) {
	switch d.state {
	case dirExhausted:
		return Attr{}, io.EOF
	case dirFailed:
		return Attr{}, d.err
	case dirClosed:
		return Attr{}, layerError("readdir", d.path, ErrHandleClosed)
	}

	s, err := d.client.native("readdir", d.path)
	if err != nil {
		// The cursor went away with the session.
		d.cur = kfs.Cursor{}
		d.state, d.err = dirFailed, err
		return Attr{}, err
	}

	d.state = dirIterating
	var a kfs.Attr
	rc := s.Readdir(d.path, &d.cur, &a)
	switch {
	case rc > 0:
		d.count++
		return newAttr(a), nil
	case rc == 0:
		d.free(s)
		d.state = dirExhausted
		return Attr{}, io.EOF
	default:
		err := translate(s, "readdir", d.path, int64(rc))
		d.free(s)
		d.state, d.err = dirFailed, err
		return Attr{}, err
	}
}

func (d *DirIterator) free(s kfs.Client) {
	s.FreeCursor(&d.cur)
	d.cur = kfs.Cursor{}
}

// Count returns how many entries Next has produced.
func (d *DirIterator) Count() int { return d.count }

// Path returns the directory being listed.
func (d *DirIterator) Path() string { return d.path }

// Close abandons the listing, freeing the cursor if it is still held. It is
// safe to call after the listing ended and more than once.
func (d *DirIterator) Close() error {
	switch d.state {
	case dirIterating:
		if s, err := d.client.native("readdir", d.path); err == nil {
			d.free(s)
		}
		d.state = dirClosed
	case dirUnstarted:
		d.state = dirClosed
	}
	return nil
}

// Readdir calls visit for every entry of path in the order the metaserver
// returns them and reports how many were visited.
func (c *Client) Readdir(path string, visit func(Attr)) (int, error) {
	it, err := c.OpenDir(path)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	for {
		a, err := it.Next()
		if err == io.EOF {
			return it.Count(), nil
		}
		if err != nil {
			return it.Count(), err
		}
		visit(a)
	}
}

// Entries returns the entries of path as a sequence. The listing stops at the
// first error, which is yielded with a zero Attr. Breaking out of the loop
// frees the cursor.
func (c *Client) Entries(path string) iter.Seq2[Attr, error] {
	return func(yield func(Attr, error) bool) {
		it, err := c.OpenDir(path)
		if err != nil {
			yield(Attr{}, err)
			return
		}
		defer it.Close()

		for {
			a, err := it.Next()
			if err == io.EOF {
				return
			}
			if !yield(a, err) || err != nil {
				return
			}
		}
	}
}
