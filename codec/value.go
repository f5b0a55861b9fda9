package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Kind identifies the type of a Value node.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindUint64
	KindBytes
	KindString
	KindUUID
	KindArray
	KindDictionary
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindUint64:
		return "uint64"
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindUUID:
		return "uuid"
	case KindArray:
		return "array"
	case KindDictionary:
		return "dictionary"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is one node of a structured-value tree. Trees are created fresh per
// encode/decode and owned exclusively by the call that built them.
type Value struct {
	kind    Kind
	boolVal bool
	intVal  int64
	uintVal uint64
	bytes   []byte
	str     string // string and uuid kinds
	elems   []*Value
	members map[string]*Value // key-indexed view for dictionary lookup
	keys    []string          // insertion order, for deterministic encoding
}

// Null returns the null node.
func Null() *Value { return &Value{kind: KindNull} }

// Bool wraps a boolean scalar.
func Bool(v bool) *Value { return &Value{kind: KindBool, boolVal: v} }

// Int64 wraps a signed integer scalar.
func Int64(v int64) *Value { return &Value{kind: KindInt64, intVal: v} }

// Uint64 wraps an unsigned integer scalar.
func Uint64(v uint64) *Value { return &Value{kind: KindUint64, uintVal: v} }

// Bytes wraps a binary blob.
func Bytes(v []byte) *Value { return &Value{kind: KindBytes, bytes: v} }

// String wraps a text scalar.
func String(v string) *Value { return &Value{kind: KindString, str: v} }

// UUID wraps a UUID scalar given in its canonical textual form.
func UUID(v string) *Value { return &Value{kind: KindUUID, str: v} }

// Array creates an array node from the given elements.
func Array(elems ...*Value) *Value {
	return &Value{kind: KindArray, elems: elems}
}

// Dictionary creates an empty dictionary node.
func Dictionary() *Value {
	return &Value{kind: KindDictionary, members: make(map[string]*Value)}
}

// Kind returns the node's type.
func (v *Value) Kind() Kind { return v.kind }

// Append adds an element to an array node.
func (v *Value) Append(elem *Value) {
	v.elems = append(v.elems, elem)
}

// Set adds or replaces a dictionary member. Keys are unique; insertion order
// is remembered only to keep encoding deterministic.
func (v *Value) Set(name string, member *Value) {
	if _, exists := v.members[name]; !exists {
		v.keys = append(v.keys, name)
	}
	v.members[name] = member
}

// Member looks a dictionary member up through the key-indexed view.
func (v *Value) Member(name string) (*Value, bool) {
	m, ok := v.members[name]
	return m, ok
}

// Len returns the element count of an array node or the member count of a
// dictionary node.
func (v *Value) Len() int {
	if v.kind == KindDictionary {
		return len(v.members)
	}
	return len(v.elems)
}

// Element returns the i-th element of an array node.
func (v *Value) Element(i int) *Value { return v.elems[i] }

// Equal reports deep equality of two trees. Dictionary key order is
// irrelevant.
func (v *Value) Equal(other *Value) bool {
	if v == nil || other == nil {
		return v == other
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.boolVal == other.boolVal
	case KindInt64:
		return v.intVal == other.intVal
	case KindUint64:
		return v.uintVal == other.uintVal
	case KindBytes:
		return string(v.bytes) == string(other.bytes)
	case KindString, KindUUID:
		return v.str == other.str
	case KindArray:
		if len(v.elems) != len(other.elems) {
			return false
		}
		for i, e := range v.elems {
			if !e.Equal(other.elems[i]) {
				return false
			}
		}
		return true
	case KindDictionary:
		if len(v.members) != len(other.members) {
			return false
		}
		for name, m := range v.members {
			om, ok := other.members[name]
			if !ok || !m.Equal(om) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the node for diagnostics: a JSON-like notation with the
// node's kind visible where JSON alone would be ambiguous.
func (v *Value) String() string {
	if v == nil {
		return "<nil>"
	}
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.boolVal)
	case KindInt64:
		return fmt.Sprintf("%d", v.intVal)
	case KindUint64:
		return fmt.Sprintf("%d", v.uintVal)
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.bytes))
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindUUID:
		return fmt.Sprintf("uuid(%s)", v.str)
	case KindArray:
		parts := make([]string, len(v.elems))
		for i, e := range v.elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindDictionary:
		names := make([]string, 0, len(v.members))
		for name := range v.members {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf("%q: %s", name, v.members[name])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "<invalid>"
}

// MarshalJSON encodes the node for the text backend. Bytes travel as base64
// strings and UUIDs as their canonical text, the conventions the remote end
// uses for the same payloads.
func (v *Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.boolVal)
	case KindInt64:
		return json.Marshal(v.intVal)
	case KindUint64:
		return json.Marshal(v.uintVal)
	case KindBytes:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.bytes))
	case KindString, KindUUID:
		return json.Marshal(v.str)
	case KindArray:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, e := range v.elems {
			if i > 0 {
				sb.WriteByte(',')
			}
			data, err := e.MarshalJSON()
			if err != nil {
				return nil, err
			}
			sb.Write(data)
		}
		sb.WriteByte(']')
		return []byte(sb.String()), nil
	case KindDictionary:
		var sb strings.Builder
		sb.WriteByte('{')
		for i, name := range v.keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			key, err := json.Marshal(name)
			if err != nil {
				return nil, err
			}
			sb.Write(key)
			sb.WriteByte(':')
			data, err := v.members[name].MarshalJSON()
			if err != nil {
				return nil, err
			}
			sb.Write(data)
		}
		sb.WriteByte('}')
		return []byte(sb.String()), nil
	}
	return nil, fmt.Errorf("cannot marshal %s node", v.kind)
}
