package codec

import (
	"encoding/base64"

	"agent-rpc/rpcerror"
)

// readerFrame is one entry of the reader's scope stack. Whether the node was
// entered through ReadMember or ReadElement is remembered so the matching
// End* call can be enforced.
type readerFrame struct {
	node     *Value
	isMember bool
}

// treeReader is the backend-independent half of both readers: cursor
// navigation over a decoded Value tree with an explicit scope stack. The
// backends differ only in how the tree was parsed and in bytes handling
// (the text form carries blobs as base64 strings).
type treeReader struct {
	root        *Value
	stack       []readerFrame
	bytesAsText bool
}

func (r *treeReader) current() *Value {
	if len(r.stack) == 0 {
		return r.root
	}
	return r.stack[len(r.stack)-1].node
}

// RootObject returns the decoded root, for diagnostics.
func (r *treeReader) RootObject() *Value { return r.root }

// CurrentObject returns the node the cursor points at, for diagnostics.
func (r *treeReader) CurrentObject() *Value { return r.current() }

func (r *treeReader) HasMember(name string) (bool, error) {
	cur := r.current()
	if cur.kind != KindDictionary {
		return false, rpcerror.Newf(rpcerror.Protocol, "expected a dictionary, got %s", cur)
	}
	_, ok := cur.Member(name)
	return ok, nil
}

func (r *treeReader) ReadMember(name string) error {
	cur := r.current()
	if cur.kind != KindDictionary {
		return rpcerror.Newf(rpcerror.Protocol, "expected a dictionary, got %s", cur)
	}
	member, ok := cur.Member(name)
	if !ok {
		return rpcerror.Newf(rpcerror.Protocol, "dictionary has no member %q: %s", name, cur)
	}
	r.stack = append(r.stack, readerFrame{node: member, isMember: true})
	return nil
}

func (r *treeReader) EndMember() error {
	return r.pop(true)
}

func (r *treeReader) CountElements() (int, error) {
	cur := r.current()
	if cur.kind != KindArray {
		return 0, rpcerror.Newf(rpcerror.Protocol, "expected an array, got %s", cur)
	}
	return len(cur.elems), nil
}

func (r *treeReader) ReadElement(index int) error {
	cur := r.current()
	if cur.kind != KindArray {
		return rpcerror.Newf(rpcerror.Protocol, "expected an array, got %s", cur)
	}
	if index < 0 || index >= len(cur.elems) {
		return rpcerror.Newf(rpcerror.Protocol, "element %d out of range: %s", index, cur)
	}
	r.stack = append(r.stack, readerFrame{node: cur.elems[index], isMember: false})
	return nil
}

func (r *treeReader) EndElement() error {
	return r.pop(false)
}

func (r *treeReader) pop(member bool) error {
	if len(r.stack) == 0 {
		return rpcerror.New(rpcerror.Protocol, "unbalanced nesting: nothing to end")
	}
	frame := r.stack[len(r.stack)-1]
	if frame.isMember != member {
		if member {
			return rpcerror.New(rpcerror.Protocol, "end_member paired with read_element")
		}
		return rpcerror.New(rpcerror.Protocol, "end_element paired with read_member")
	}
	r.stack = r.stack[:len(r.stack)-1]
	return nil
}

func (r *treeReader) GetBoolValue() (bool, error) {
	cur := r.current()
	if cur.kind != KindBool {
		return false, rpcerror.Newf(rpcerror.Protocol, "expected a bool, got %s", cur)
	}
	return cur.boolVal, nil
}

func (r *treeReader) GetUint8Value() (uint8, error) {
	v, err := r.unsignedInRange(1 << 8)
	return uint8(v), err
}

func (r *treeReader) GetUint16Value() (uint16, error) {
	v, err := r.unsignedInRange(1 << 16)
	return uint16(v), err
}

// unsignedInRange reads an integer node and checks it fits below limit.
func (r *treeReader) unsignedInRange(limit uint64) (uint64, error) {
	v, err := r.GetUint64Value()
	if err != nil {
		return 0, err
	}
	if v >= limit {
		return 0, rpcerror.Newf(rpcerror.Protocol, "integer out of range: %s", r.current())
	}
	return v, nil
}

func (r *treeReader) GetInt64Value() (int64, error) {
	cur := r.current()
	switch cur.kind {
	case KindInt64:
		return cur.intVal, nil
	case KindUint64:
		if cur.uintVal > 1<<63-1 {
			return 0, rpcerror.Newf(rpcerror.Protocol, "integer out of range: %s", cur)
		}
		return int64(cur.uintVal), nil
	}
	return 0, rpcerror.Newf(rpcerror.Protocol, "expected an integer, got %s", cur)
}

func (r *treeReader) GetUint64Value() (uint64, error) {
	cur := r.current()
	switch cur.kind {
	case KindUint64:
		return cur.uintVal, nil
	case KindInt64:
		if cur.intVal < 0 {
			return 0, rpcerror.Newf(rpcerror.Protocol, "integer out of range: %s", cur)
		}
		return uint64(cur.intVal), nil
	}
	return 0, rpcerror.Newf(rpcerror.Protocol, "expected an integer, got %s", cur)
}

func (r *treeReader) GetBytesValue() ([]byte, error) {
	cur := r.current()
	if cur.kind == KindBytes {
		return cur.bytes, nil
	}
	if r.bytesAsText && cur.kind == KindString {
		data, err := base64.StdEncoding.DecodeString(cur.str)
		if err != nil {
			return nil, rpcerror.Newf(rpcerror.Protocol, "expected base64 bytes, got %s", cur)
		}
		return data, nil
	}
	return nil, rpcerror.Newf(rpcerror.Protocol, "expected bytes, got %s", cur)
}

func (r *treeReader) GetStringValue() (string, error) {
	cur := r.current()
	if cur.kind != KindString {
		return "", rpcerror.Newf(rpcerror.Protocol, "expected a string, got %s", cur)
	}
	return cur.str, nil
}

// GetUUIDValue returns the UUID's canonical text. A plain string node is
// accepted as well: on the wire a UUID is indistinguishable from its string
// rendering, so a field decoded as a string here is a known limitation, not
// an error.
func (r *treeReader) GetUUIDValue() (string, error) {
	cur := r.current()
	if cur.kind != KindUUID && cur.kind != KindString {
		return "", rpcerror.Newf(rpcerror.Protocol, "expected a uuid, got %s", cur)
	}
	return cur.str, nil
}
