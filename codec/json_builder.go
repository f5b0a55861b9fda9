package codec

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"

	"agent-rpc/rpcerror"
)

// JSONBuilder assembles a Value tree and serializes it as JSON text.
//
// Raw splicing: AddRawValue inserts a freshly generated UUID token as a
// string literal and records the fragment against it; Build substitutes
// every quoted token with the fragment's literal bytes after serialization.
// Substitution is a blind text replace keyed only on the quoted token, so
// the tokens must be collision-resistant against any string the caller
// could legitimately add — which random UUIDs are.
type JSONBuilder struct {
	treeBuilder
	raw map[string][]byte // placeholder token → verbatim fragment
}

// NewJSONBuilder creates a builder for the text backend.
func NewJSONBuilder() *JSONBuilder {
	return &JSONBuilder{raw: make(map[string][]byte)}
}

func (b *JSONBuilder) BeginDictionary() ObjectBuilder {
	b.beginDictionary()
	return b
}

func (b *JSONBuilder) SetMemberName(name string) ObjectBuilder {
	b.setMemberName(name)
	return b
}

func (b *JSONBuilder) EndDictionary() ObjectBuilder {
	b.end(KindDictionary)
	return b
}

func (b *JSONBuilder) BeginArray() ObjectBuilder {
	b.beginArray()
	return b
}

func (b *JSONBuilder) EndArray() ObjectBuilder {
	b.end(KindArray)
	return b
}

func (b *JSONBuilder) AddNullValue() ObjectBuilder       { b.add(Null()); return b }
func (b *JSONBuilder) AddBoolValue(v bool) ObjectBuilder { b.add(Bool(v)); return b }
func (b *JSONBuilder) AddInt64Value(v int64) ObjectBuilder {
	b.add(Int64(v))
	return b
}
func (b *JSONBuilder) AddUint64Value(v uint64) ObjectBuilder {
	b.add(Uint64(v))
	return b
}
func (b *JSONBuilder) AddBytesValue(v []byte) ObjectBuilder {
	b.add(Bytes(v))
	return b
}
func (b *JSONBuilder) AddStringValue(v string) ObjectBuilder {
	b.add(String(v))
	return b
}
func (b *JSONBuilder) AddUUIDValue(v string) ObjectBuilder {
	b.addUUID(v)
	return b
}

func (b *JSONBuilder) AddRawValue(fragment []byte) ObjectBuilder {
	if b.err != nil {
		return b
	}
	token := uuid.NewString()
	b.add(String(token))
	if b.err == nil {
		b.raw[token] = append([]byte(nil), fragment...)
	}
	return b
}

// Build serializes the finished tree and substitutes raw fragments.
func (b *JSONBuilder) Build() ([]byte, error) {
	root, err := b.finish()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(root)
	if err != nil {
		return nil, rpcerror.Wrap(rpcerror.Protocol, err, "serializing document")
	}
	for token, fragment := range b.raw {
		data = bytes.Replace(data, []byte(`"`+token+`"`), fragment, 1)
	}
	return data, nil
}
