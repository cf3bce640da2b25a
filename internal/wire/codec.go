// Package wire carries metaserver RPCs over gRPC. Messages are encoded in the
// protobuf wire format directly, without generated code, and travel under
// their own content-subtype.
package wire

import (
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/mem"
	"google.golang.org/protobuf/encoding/protowire"
)

// Name is the gRPC content-subtype of the codec.
const Name = "qfs"

func init() {
	encoding.RegisterCodecV2(Codec{})
}

type message interface {
	marshal(b []byte) []byte
	unmarshal(b []byte) error
}

// Codec is the gRPC codec for Request and Reply.
type Codec struct{}

var _ encoding.CodecV2 = Codec{}

func (Codec) Name() string { return Name }

func (Codec) Marshal(v any) (mem.BufferSlice, error) {
	m, ok := v.(message)
	if !ok {
		return nil, fmt.Errorf("wire: cannot marshal %T", v)
	}
	return mem.BufferSlice{mem.SliceBuffer(m.marshal(nil))}, nil
}

func (Codec) Unmarshal(data mem.BufferSlice, v any) error {
	m, ok := v.(message)
	if !ok {
		return fmt.Errorf("wire: cannot unmarshal into %T", v)
	}
	return m.unmarshal(data.Materialize())
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendUvarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendSint(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

// appendMessage writes an embedded message, even an empty one.
func appendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

// decoder walks the fields of one message. The first error sticks.
type decoder struct {
	b   []byte
	err error
}

func (d *decoder) next() (protowire.Number, protowire.Type, bool) {
	if d.err != nil || len(d.b) == 0 {
		return 0, 0, false
	}
	num, typ, n := protowire.ConsumeTag(d.b)
	if n < 0 {
		d.err = protowire.ParseError(n)
		return 0, 0, false
	}
	d.b = d.b[n:]
	return num, typ, true
}

func (d *decoder) expect(got, want protowire.Type) bool {
	if got != want {
		d.err = fmt.Errorf("wire: field has wire type %d, want %d", got, want)
		return false
	}
	return true
}

func (d *decoder) bytes(typ protowire.Type) []byte {
	if !d.expect(typ, protowire.BytesType) {
		return nil
	}
	v, n := protowire.ConsumeBytes(d.b)
	if n < 0 {
		d.err = protowire.ParseError(n)
		return nil
	}
	d.b = d.b[n:]
	return v
}

func (d *decoder) copyBytes(typ protowire.Type) []byte {
	return append([]byte(nil), d.bytes(typ)...)
}

func (d *decoder) string(typ protowire.Type) string {
	return string(d.bytes(typ))
}

func (d *decoder) uvarint(typ protowire.Type) uint64 {
	if !d.expect(typ, protowire.VarintType) {
		return 0
	}
	v, n := protowire.ConsumeVarint(d.b)
	if n < 0 {
		d.err = protowire.ParseError(n)
		return 0
	}
	d.b = d.b[n:]
	return v
}

func (d *decoder) sint(typ protowire.Type) int64 {
	return protowire.DecodeZigZag(d.uvarint(typ))
}

func (d *decoder) bool(typ protowire.Type) bool {
	return d.uvarint(typ) != 0
}

func (d *decoder) skip(num protowire.Number, typ protowire.Type) {
	n := protowire.ConsumeFieldValue(num, typ, d.b)
	if n < 0 {
		d.err = protowire.ParseError(n)
		return
	}
	d.b = d.b[n:]
}
