package codec

import (
	"github.com/google/uuid"

	"agent-rpc/rpcerror"
)

// builderScope is one frame of the builder's scope stack: an open dictionary
// or array that values are currently being added to.
type builderScope struct {
	container   *Value
	pendingName string
	hasName     bool
}

// treeBuilder is the backend-independent half of both builders: it enforces
// the begin/end pairing contract and assembles the Value tree; the concrete
// backends only differ in Build serialization and raw-splice support.
type treeBuilder struct {
	root  *Value
	stack []*builderScope
	err   error
}

// fail records the first fault; all later builder calls become no-ops and
// Build reports the fault.
func (b *treeBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// add places v at the cursor position: as the root, the named member of the
// open dictionary, or the next element of the open array.
func (b *treeBuilder) add(v *Value) {
	if b.err != nil {
		return
	}
	if len(b.stack) == 0 {
		if b.root != nil {
			b.fail(rpcerror.New(rpcerror.Protocol, "only one root value is allowed"))
			return
		}
		b.root = v
		return
	}
	scope := b.stack[len(b.stack)-1]
	switch scope.container.kind {
	case KindDictionary:
		if !scope.hasName {
			b.fail(rpcerror.New(rpcerror.Protocol, "value added to dictionary without a member name"))
			return
		}
		scope.container.Set(scope.pendingName, v)
		scope.hasName = false
	case KindArray:
		scope.container.Append(v)
	}
}

func (b *treeBuilder) beginDictionary() {
	if b.err != nil {
		return
	}
	d := Dictionary()
	b.add(d)
	if b.err != nil {
		return
	}
	b.stack = append(b.stack, &builderScope{container: d})
}

func (b *treeBuilder) beginArray() {
	if b.err != nil {
		return
	}
	a := Array()
	b.add(a)
	if b.err != nil {
		return
	}
	b.stack = append(b.stack, &builderScope{container: a})
}

func (b *treeBuilder) setMemberName(name string) {
	if b.err != nil {
		return
	}
	if len(b.stack) == 0 || b.stack[len(b.stack)-1].container.kind != KindDictionary {
		b.fail(rpcerror.New(rpcerror.Protocol, "set_member_name outside a dictionary"))
		return
	}
	scope := b.stack[len(b.stack)-1]
	if scope.hasName {
		b.fail(rpcerror.Newf(rpcerror.Protocol, "member %q has no value yet", scope.pendingName))
		return
	}
	scope.pendingName = name
	scope.hasName = true
}

func (b *treeBuilder) end(kind Kind) {
	if b.err != nil {
		return
	}
	if len(b.stack) == 0 {
		b.fail(rpcerror.Newf(rpcerror.Protocol, "end of %s without matching begin", kind))
		return
	}
	scope := b.stack[len(b.stack)-1]
	if scope.container.kind != kind {
		b.fail(rpcerror.Newf(rpcerror.Protocol, "end of %s while a %s is open", kind, scope.container.kind))
		return
	}
	if scope.hasName {
		b.fail(rpcerror.Newf(rpcerror.Protocol, "member %q has no value", scope.pendingName))
		return
	}
	b.stack = b.stack[:len(b.stack)-1]
}

func (b *treeBuilder) addUUID(v string) {
	if b.err != nil {
		return
	}
	if _, err := uuid.Parse(v); err != nil {
		b.fail(rpcerror.Newf(rpcerror.InvalidArgument, "invalid uuid %q", v))
		return
	}
	b.add(UUID(v))
}

// AppendValue replays an existing tree through a builder at its current
// cursor position, so decoded values can be re-encoded on any backend.
func AppendValue(b ObjectBuilder, v *Value) {
	switch v.kind {
	case KindNull:
		b.AddNullValue()
	case KindBool:
		b.AddBoolValue(v.boolVal)
	case KindInt64:
		b.AddInt64Value(v.intVal)
	case KindUint64:
		b.AddUint64Value(v.uintVal)
	case KindBytes:
		b.AddBytesValue(v.bytes)
	case KindString:
		b.AddStringValue(v.str)
	case KindUUID:
		b.AddUUIDValue(v.str)
	case KindArray:
		b.BeginArray()
		for _, e := range v.elems {
			AppendValue(b, e)
		}
		b.EndArray()
	case KindDictionary:
		b.BeginDictionary()
		for _, name := range v.keys {
			b.SetMemberName(name)
			AppendValue(b, v.members[name])
		}
		b.EndDictionary()
	}
}

// finish validates the tree is complete and returns its root.
func (b *treeBuilder) finish() (*Value, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.stack) > 0 {
		return nil, rpcerror.Newf(rpcerror.Protocol, "unbalanced nesting: %s left open",
			b.stack[len(b.stack)-1].container.kind)
	}
	if b.root == nil {
		return nil, rpcerror.New(rpcerror.Protocol, "no value was added")
	}
	return b.root, nil
}
