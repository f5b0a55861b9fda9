// Package message defines the wire envelope carrying a call or reply.
//
// The envelope is a 4-ary tagged array. Requests are
//
//	["frida:rpc", <request_id>, "call", <methodon>, [<arg>, ...]]
//
// and replies are
//
//	["frida:rpc", <request_id>, "ok"|"error", <result-or-message>]
//
// On the wire a reply array travels as the "payload" member of an outer
// transport message whose "type" is "send"; the outer message's remaining
// fields belong to the transport and are opaque here. The sentinel element
// doubles as a cheap pre-filter: text without it is never an RPC envelope.
package message

import (
	"agent-rpc/codec"
	"agent-rpc/rpcerror"
)

const (
	// Sentinel tags every envelope and distinguishes RPC traffic from other
	// messages sharing the channel.
	Sentinel = "frida:rpc"

	// KindCall is the request discriminator (element 2 of a request).
	KindCall = "call"

	// StatusOK is the success discriminator (element 2 of a reply).
	// Any other status carries an application error message in element 3.
	StatusOK = "ok"
)

// EncodeRequest builds the request envelope for one call on the given
// backend.
func EncodeRequest(backend codec.Backend, requestID, method string, args []*codec.Value) ([]byte, error) {
	b := codec.GetBuilder(backend)
	b.BeginArray().
		AddStringValue(Sentinel).
		AddStringValue(requestID).
		AddStringValue(KindCall).
		AddStringValue(method).
		BeginArray()
	for _, arg := range args {
		codec.AppendValue(b, arg)
	}
	b.EndArray().EndArray()
	return b.Build()
}

// ParseReplyID inspects the array the reader is positioned at and extracts
// the request id of a reply envelope. Returns false when the array is not a
// reply at all — too short, wrong sentinel, or a non-string id — which the
// caller treats as none-of-its-business rather than an error.
func ParseReplyID(r codec.ObjectReader) (string, bool) {
	count, err := r.CountElements()
	if err != nil || count < 4 {
		return "", false
	}
	sentinel, ok := stringElement(r, 0)
	if !ok || sentinel != Sentinel {
		return "", false
	}
	id, ok := stringElement(r, 1)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// DecodeReplyOutcome interprets the status and result elements of a matched
// reply. It returns the decoded result value for an OK reply, the remote
// application error for any other status, or a Protocol error when the
// envelope is malformed past the id (the id already claimed a pending call,
// so malformation must complete that call, not be ignored).
func DecodeReplyOutcome(r codec.ObjectReader) (*codec.Value, error) {
	status, ok := stringElement(r, 2)
	if !ok {
		return nil, rpcerror.Newf(rpcerror.Protocol, "reply status is not a string: %s", r.CurrentObject())
	}
	if status != StatusOK {
		text, ok := stringElement(r, 3)
		if !ok {
			return nil, rpcerror.Newf(rpcerror.Protocol, "reply error message is not a string: %s", r.CurrentObject())
		}
		return nil, rpcerror.New(rpcerror.NotSupported, text)
	}
	if err := r.ReadElement(3); err != nil {
		return nil, err
	}
	result := r.CurrentObject()
	if err := r.EndElement(); err != nil {
		return nil, err
	}
	return result, nil
}

// stringElement reads element i as a string, leaving the cursor balanced.
func stringElement(r codec.ObjectReader, i int) (string, bool) {
	if err := r.ReadElement(i); err != nil {
		return "", false
	}
	s, err := r.GetStringValue()
	if endErr := r.EndElement(); endErr != nil {
		return "", false
	}
	return s, err == nil
}
