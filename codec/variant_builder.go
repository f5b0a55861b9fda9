package codec

import (
	"bytes"
	"encoding/binary"

	"github.com/google/uuid"

	"agent-rpc/rpcerror"
)

// Tag bytes of the variant wire format. Every node is one tag byte followed
// by its payload; lengths and counts are big-endian (network byte order).
const (
	tagNull       byte = 0
	tagBool       byte = 1
	tagInt64      byte = 2
	tagUint64     byte = 3
	tagBytes      byte = 4
	tagString     byte = 5
	tagUUID       byte = 6
	tagArray      byte = 7
	tagDictionary byte = 8
)

// VariantBuilder assembles a Value tree and serializes it to the tagged
// binary form. Raw splicing has no binary analog: AddRawValue is a
// NotSupported fault on this backend.
type VariantBuilder struct {
	treeBuilder
}

// NewVariantBuilder creates a builder for the binary backend.
func NewVariantBuilder() *VariantBuilder {
	return &VariantBuilder{}
}

func (b *VariantBuilder) BeginDictionary() ObjectBuilder {
	b.beginDictionary()
	return b
}

func (b *VariantBuilder) SetMemberName(name string) ObjectBuilder {
	b.setMemberName(name)
	return b
}

func (b *VariantBuilder) EndDictionary() ObjectBuilder {
	b.end(KindDictionary)
	return b
}

func (b *VariantBuilder) BeginArray() ObjectBuilder {
	b.beginArray()
	return b
}

func (b *VariantBuilder) EndArray() ObjectBuilder {
	b.end(KindArray)
	return b
}

func (b *VariantBuilder) AddNullValue() ObjectBuilder       { b.add(Null()); return b }
func (b *VariantBuilder) AddBoolValue(v bool) ObjectBuilder { b.add(Bool(v)); return b }
func (b *VariantBuilder) AddInt64Value(v int64) ObjectBuilder {
	b.add(Int64(v))
	return b
}
func (b *VariantBuilder) AddUint64Value(v uint64) ObjectBuilder {
	b.add(Uint64(v))
	return b
}
func (b *VariantBuilder) AddBytesValue(v []byte) ObjectBuilder {
	b.add(Bytes(v))
	return b
}
func (b *VariantBuilder) AddStringValue(v string) ObjectBuilder {
	b.add(String(v))
	return b
}
func (b *VariantBuilder) AddUUIDValue(v string) ObjectBuilder {
	b.addUUID(v)
	return b
}

func (b *VariantBuilder) AddRawValue(fragment []byte) ObjectBuilder {
	b.fail(rpcerror.New(rpcerror.NotSupported, "raw values cannot be spliced into the variant encoding"))
	return b
}

// Build serializes the finished tree.
func (b *VariantBuilder) Build() ([]byte, error) {
	root, err := b.finish()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encodeVariant(&buf, root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeVariant(buf *bytes.Buffer, v *Value) error {
	switch v.kind {
	case KindNull:
		buf.WriteByte(tagNull)
	case KindBool:
		buf.WriteByte(tagBool)
		if v.boolVal {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case KindInt64:
		buf.WriteByte(tagInt64)
		var scratch [8]byte
		binary.BigEndian.PutUint64(scratch[:], uint64(v.intVal))
		buf.Write(scratch[:])
	case KindUint64:
		buf.WriteByte(tagUint64)
		var scratch [8]byte
		binary.BigEndian.PutUint64(scratch[:], v.uintVal)
		buf.Write(scratch[:])
	case KindBytes:
		buf.WriteByte(tagBytes)
		writeLengthPrefixed(buf, v.bytes)
	case KindString:
		buf.WriteByte(tagString)
		writeLengthPrefixed(buf, []byte(v.str))
	case KindUUID:
		id, err := uuid.Parse(v.str)
		if err != nil {
			return rpcerror.Newf(rpcerror.InvalidArgument, "invalid uuid %q", v.str)
		}
		buf.WriteByte(tagUUID)
		buf.Write(id[:])
	case KindArray:
		buf.WriteByte(tagArray)
		var scratch [4]byte
		binary.BigEndian.PutUint32(scratch[:], uint32(len(v.elems)))
		buf.Write(scratch[:])
		for _, e := range v.elems {
			if err := encodeVariant(buf, e); err != nil {
				return err
			}
		}
	case KindDictionary:
		buf.WriteByte(tagDictionary)
		var scratch [4]byte
		binary.BigEndian.PutUint32(scratch[:], uint32(len(v.keys)))
		buf.Write(scratch[:])
		for _, name := range v.keys {
			var keyLen [2]byte
			binary.BigEndian.PutUint16(keyLen[:], uint16(len(name)))
			buf.Write(keyLen[:])
			buf.WriteString(name)
			if err := encodeVariant(buf, v.members[name]); err != nil {
				return err
			}
		}
	default:
		return rpcerror.Newf(rpcerror.Protocol, "cannot encode %s node", v.kind)
	}
	return nil
}

func writeLengthPrefixed(buf *bytes.Buffer, data []byte) {
	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], uint32(len(data)))
	buf.Write(scratch[:])
	buf.Write(data)
}
