package wire

import (
	"time"

	"eddisonso.com/go-qfs/pkg/kfs"
)

// Request is the argument of every metaserver method. Each method reads only
// the fields it needs.
type Request struct {
	Path      string
	NewPath   string
	Inode     int64
	Flags     int64
	Mode      uint32
	Params    string
	Offset    int64
	Length    int64
	Data      []byte
	Recursive bool
	After     string
	Limit     int64
	Host      string
	Port      int64
}

// Reply is the result of every metaserver method. Code is the native result
// code: zero or positive on success, a negated errno on failure.
type Reply struct {
	Code      int64
	Attr      *kfs.Attr
	Attrs     []kfs.Attr
	Data      []byte
	Count     int64
	Token     string
	BuildID   string
	ChunkSize int64
}

func (r *Request) marshal(b []byte) []byte {
	b = appendString(b, 1, r.Path)
	b = appendString(b, 2, r.NewPath)
	b = appendSint(b, 3, r.Inode)
	b = appendSint(b, 4, r.Flags)
	b = appendUvarint(b, 5, uint64(r.Mode))
	b = appendString(b, 6, r.Params)
	b = appendSint(b, 7, r.Offset)
	b = appendSint(b, 8, r.Length)
	b = appendBytes(b, 9, r.Data)
	b = appendBool(b, 10, r.Recursive)
	b = appendString(b, 11, r.After)
	b = appendSint(b, 12, r.Limit)
	b = appendString(b, 13, r.Host)
	b = appendSint(b, 14, r.Port)
	return b
}

func (r *Request) unmarshal(b []byte) error {
	*r = Request{}
	d := &decoder{b: b}
	for {
		num, typ, ok := d.next()
		if !ok {
			break
		}
		switch num {
		case 1:
			r.Path = d.string(typ)
		case 2:
			r.NewPath = d.string(typ)
		case 3:
			r.Inode = d.sint(typ)
		case 4:
			r.Flags = d.sint(typ)
		case 5:
			r.Mode = uint32(d.uvarint(typ))
		case 6:
			r.Params = d.string(typ)
		case 7:
			r.Offset = d.sint(typ)
		case 8:
			r.Length = d.sint(typ)
		case 9:
			r.Data = d.copyBytes(typ)
		case 10:
			r.Recursive = d.bool(typ)
		case 11:
			r.After = d.string(typ)
		case 12:
			r.Limit = d.sint(typ)
		case 13:
			r.Host = d.string(typ)
		case 14:
			r.Port = d.sint(typ)
		default:
			d.skip(num, typ)
		}
	}
	return d.err
}

func (r *Reply) marshal(b []byte) []byte {
	b = appendSint(b, 1, r.Code)
	if r.Attr != nil {
		b = appendMessage(b, 2, marshalAttr(nil, r.Attr))
	}
	for i := range r.Attrs {
		b = appendMessage(b, 3, marshalAttr(nil, &r.Attrs[i]))
	}
	b = appendBytes(b, 4, r.Data)
	b = appendSint(b, 5, r.Count)
	b = appendString(b, 6, r.Token)
	b = appendString(b, 7, r.BuildID)
	b = appendSint(b, 8, r.ChunkSize)
	return b
}

func (r *Reply) unmarshal(b []byte) error {
	*r = Reply{}
	d := &decoder{b: b}
	for {
		num, typ, ok := d.next()
		if !ok {
			break
		}
		switch num {
		case 1:
			r.Code = d.sint(typ)
		case 2:
			a, err := unmarshalAttr(d.bytes(typ))
			if err != nil {
				return err
			}
			r.Attr = &a
		case 3:
			a, err := unmarshalAttr(d.bytes(typ))
			if err != nil {
				return err
			}
			r.Attrs = append(r.Attrs, a)
		case 4:
			r.Data = d.copyBytes(typ)
		case 5:
			r.Count = d.sint(typ)
		case 6:
			r.Token = d.string(typ)
		case 7:
			r.BuildID = d.string(typ)
		case 8:
			r.ChunkSize = d.sint(typ)
		default:
			d.skip(num, typ)
		}
	}
	return d.err
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func marshalAttr(b []byte, a *kfs.Attr) []byte {
	b = appendString(b, 1, a.Filename)
	b = appendSint(b, 2, a.ID)
	b = appendUvarint(b, 3, uint64(a.Mode))
	b = appendUvarint(b, 4, uint64(a.UID))
	b = appendUvarint(b, 5, uint64(a.GID))
	b = appendSint(b, 6, unixNano(a.Mtime))
	b = appendSint(b, 7, unixNano(a.Ctime))
	b = appendBool(b, 8, a.Directory)
	b = appendSint(b, 9, a.Size)
	b = appendSint(b, 10, a.Chunks)
	b = appendSint(b, 11, a.Directories)
	b = appendSint(b, 12, int64(a.Replicas))
	b = appendSint(b, 13, int64(a.Stripes))
	b = appendSint(b, 14, int64(a.RecoveryStripes))
	b = appendSint(b, 15, int64(a.StriperType))
	b = appendSint(b, 16, int64(a.StripeSize))
	b = appendUvarint(b, 17, uint64(a.MinSTier))
	b = appendUvarint(b, 18, uint64(a.MaxSTier))
	return b
}

func unmarshalAttr(b []byte) (kfs.Attr, error) {
	var a kfs.Attr
	d := &decoder{b: b}
	for {
		num, typ, ok := d.next()
		if !ok {
			break
		}
		switch num {
		case 1:
			a.Filename = d.string(typ)
		case 2:
			a.ID = d.sint(typ)
		case 3:
			a.Mode = uint32(d.uvarint(typ))
		case 4:
			a.UID = uint32(d.uvarint(typ))
		case 5:
			a.GID = uint32(d.uvarint(typ))
		case 6:
			a.Mtime = fromUnixNano(d.sint(typ))
		case 7:
			a.Ctime = fromUnixNano(d.sint(typ))
		case 8:
			a.Directory = d.bool(typ)
		case 9:
			a.Size = d.sint(typ)
		case 10:
			a.Chunks = d.sint(typ)
		case 11:
			a.Directories = d.sint(typ)
		case 12:
			a.Replicas = int32(d.sint(typ))
		case 13:
			a.Stripes = int32(d.sint(typ))
		case 14:
			a.RecoveryStripes = int32(d.sint(typ))
		case 15:
			a.StriperType = int32(d.sint(typ))
		case 16:
			a.StripeSize = int32(d.sint(typ))
		case 17:
			a.MinSTier = uint8(d.uvarint(typ))
		case 18:
			a.MaxSTier = uint8(d.uvarint(typ))
		default:
			d.skip(num, typ)
		}
	}
	return a, d.err
}
