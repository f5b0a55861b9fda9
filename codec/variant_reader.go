package codec

import (
	"encoding/binary"

	"github.com/google/uuid"

	"agent-rpc/rpcerror"
)

// VariantReader decodes the tagged binary form and navigates the resulting
// tree. Dictionary members are looked up through the tree's key-indexed
// view rather than a linear scan; whether a node is an array is decided
// structurally by its tag, never inferred from element types.
type VariantReader struct {
	treeReader
}

// NewVariantReader decodes data and positions the cursor at the root.
// Malformed input — an unknown tag, a truncated payload, trailing garbage —
// is a Protocol error.
func NewVariantReader(data []byte) (*VariantReader, error) {
	root, rest, err := decodeVariant(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, rpcerror.Newf(rpcerror.Protocol, "%d trailing bytes after value", len(rest))
	}
	return &VariantReader{treeReader{root: root}}, nil
}

// decodeVariant reads one node from the front of data and returns the
// remainder.
func decodeVariant(data []byte) (*Value, []byte, error) {
	if len(data) == 0 {
		return nil, nil, rpcerror.New(rpcerror.Protocol, "truncated value: missing tag")
	}
	tag, data := data[0], data[1:]
	switch tag {
	case tagNull:
		return Null(), data, nil
	case tagBool:
		if len(data) < 1 {
			return nil, nil, rpcerror.New(rpcerror.Protocol, "truncated bool")
		}
		return Bool(data[0] != 0), data[1:], nil
	case tagInt64:
		if len(data) < 8 {
			return nil, nil, rpcerror.New(rpcerror.Protocol, "truncated int64")
		}
		return Int64(int64(binary.BigEndian.Uint64(data[:8]))), data[8:], nil
	case tagUint64:
		if len(data) < 8 {
			return nil, nil, rpcerror.New(rpcerror.Protocol, "truncated uint64")
		}
		return Uint64(binary.BigEndian.Uint64(data[:8])), data[8:], nil
	case tagBytes:
		blob, rest, err := readLengthPrefixed(data)
		if err != nil {
			return nil, nil, err
		}
		return Bytes(blob), rest, nil
	case tagString:
		blob, rest, err := readLengthPrefixed(data)
		if err != nil {
			return nil, nil, err
		}
		return String(string(blob)), rest, nil
	case tagUUID:
		if len(data) < 16 {
			return nil, nil, rpcerror.New(rpcerror.Protocol, "truncated uuid")
		}
		id, err := uuid.FromBytes(data[:16])
		if err != nil {
			return nil, nil, rpcerror.Wrap(rpcerror.Protocol, err, "invalid uuid")
		}
		return UUID(id.String()), data[16:], nil
	case tagArray:
		if len(data) < 4 {
			return nil, nil, rpcerror.New(rpcerror.Protocol, "truncated array count")
		}
		count := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		arr := Array()
		for i := uint32(0); i < count; i++ {
			var elem *Value
			var err error
			elem, data, err = decodeVariant(data)
			if err != nil {
				return nil, nil, err
			}
			arr.Append(elem)
		}
		return arr, data, nil
	case tagDictionary:
		if len(data) < 4 {
			return nil, nil, rpcerror.New(rpcerror.Protocol, "truncated dictionary count")
		}
		count := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		dict := Dictionary()
		for i := uint32(0); i < count; i++ {
			if len(data) < 2 {
				return nil, nil, rpcerror.New(rpcerror.Protocol, "truncated member key length")
			}
			keyLen := int(binary.BigEndian.Uint16(data[:2]))
			data = data[2:]
			if len(data) < keyLen {
				return nil, nil, rpcerror.New(rpcerror.Protocol, "truncated member key")
			}
			key := string(data[:keyLen])
			data = data[keyLen:]
			var member *Value
			var err error
			member, data, err = decodeVariant(data)
			if err != nil {
				return nil, nil, err
			}
			dict.Set(key, member)
		}
		return dict, data, nil
	}
	return nil, nil, rpcerror.Newf(rpcerror.Protocol, "unknown value tag 0x%02x", tag)
}

func readLengthPrefixed(data []byte) ([]byte, []byte, error) {
	if len(data) < 4 {
		return nil, nil, rpcerror.New(rpcerror.Protocol, "truncated length prefix")
	}
	length := int(binary.BigEndian.Uint32(data[:4]))
	data = data[4:]
	if len(data) < length {
		return nil, nil, rpcerror.Newf(rpcerror.Protocol, "truncated payload: want %d bytes, have %d", length, len(data))
	}
	return data[:length], data[length:], nil
}
