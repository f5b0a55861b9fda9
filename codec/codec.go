// Package codec implements the dual-backend structured-value codec.
//
// A message payload is a tree of scalars, arrays, and dictionaries (Value).
// The tree is produced through an ObjectBuilder and consumed through an
// ObjectReader — cursor objects whose begin/end (and read/end) calls maintain
// an explicit scope stack. The same logical tree can travel as either a
// compact tagged-variant binary form or as JSON text; callers written against
// the interfaces cannot tell the backends apart except where a capability is
// missing by construction (raw splicing on the binary backend).
package codec

// Backend selects the wire representation of a builder or reader.
type Backend byte

const (
	BackendJSON    Backend = 0
	BackendVariant Backend = 1
)

// ObjectBuilder is a sequential, write-only cursor that assembles a Value
// tree. Every Begin* call must be balanced by the matching End* call; inside
// a dictionary every value must be preceded by SetMemberName. Methods return
// the builder so calls can be chained. Faults (unbalanced nesting, a missing
// member name, an unsupported capability) are sticky: the first one is
// recorded and reported by Build, and all later calls become no-ops.
type ObjectBuilder interface {
	BeginDictionary() ObjectBuilder
	SetMemberName(name string) ObjectBuilder
	EndDictionary() ObjectBuilder

	BeginArray() ObjectBuilder
	EndArray() ObjectBuilder

	AddNullValue() ObjectBuilder
	AddBoolValue(v bool) ObjectBuilder
	AddInt64Value(v int64) ObjectBuilder
	AddUint64Value(v uint64) ObjectBuilder
	AddBytesValue(v []byte) ObjectBuilder
	AddStringValue(v string) ObjectBuilder
	AddUUIDValue(v string) ObjectBuilder

	// AddRawValue splices an already-encoded fragment verbatim at the
	// current position. Only the JSON backend can represent this; on the
	// variant backend it is a NotSupported fault.
	AddRawValue(fragment []byte) ObjectBuilder

	Build() ([]byte, error)
}

// ObjectReader is a cursor over an already-decoded Value tree, mirroring the
// builder's nesting: each ReadMember/ReadElement pushes a scope and requires
// the balancing EndMember/EndElement. Typed getters validate the current
// node's kind and fault with a Protocol error naming the offending node.
type ObjectReader interface {
	HasMember(name string) (bool, error)
	ReadMember(name string) error
	EndMember() error

	CountElements() (int, error)
	ReadElement(index int) error
	EndElement() error

	GetBoolValue() (bool, error)
	GetUint8Value() (uint8, error)
	GetUint16Value() (uint16, error)
	GetInt64Value() (int64, error)
	GetUint64Value() (uint64, error)
	GetBytesValue() ([]byte, error)
	GetStringValue() (string, error)
	GetUUIDValue() (string, error)

	// RootObject and CurrentObject expose the underlying nodes for
	// diagnostics only.
	RootObject() *Value
	CurrentObject() *Value
}

// GetBuilder returns a fresh builder for the given backend.
func GetBuilder(backend Backend) ObjectBuilder {
	if backend == BackendJSON {
		return NewJSONBuilder()
	}
	return NewVariantBuilder()
}

// GetReader decodes data with the given backend and positions the cursor at
// the root.
func GetReader(backend Backend, data []byte) (ObjectReader, error) {
	if backend == BackendJSON {
		return NewJSONReader(data)
	}
	return NewVariantReader(data)
}
