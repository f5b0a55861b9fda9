package codec

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	"agent-rpc/rpcerror"
)

// JSONReader parses JSON text into a Value tree and navigates it through
// the same cursor as the binary backend, so callers written against
// ObjectReader cannot distinguish the backends from error shape alone.
// Binary blobs arrive as base64 strings in this form; GetBytesValue decodes
// them transparently.
type JSONReader struct {
	treeReader
}

// NewJSONReader parses data and positions the cursor at the root.
// Malformed text is an InvalidArgument error.
func NewJSONReader(data []byte) (*JSONReader, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	root, err := parseJSON(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, rpcerror.New(rpcerror.InvalidArgument, "trailing data after document")
	}
	return &JSONReader{treeReader{root: root, bytesAsText: true}}, nil
}

// parseJSON reads one JSON value off the token stream. Member order is
// preserved so a reparsed document re-serializes identically.
func parseJSON(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, rpcerror.Wrap(rpcerror.InvalidArgument, err, "malformed document")
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		// The value model has no float kind; numbers must be exact
		// integers. Signed wins when the value fits both.
		if i, err := t.Int64(); err == nil {
			return Int64(i), nil
		}
		if u, err := strconv.ParseUint(t.String(), 10, 64); err == nil {
			return Uint64(u), nil
		}
		return nil, rpcerror.Newf(rpcerror.Protocol, "unsupported number %s", t)
	case json.Delim:
		switch t {
		case '[':
			arr := Array()
			for dec.More() {
				elem, err := parseJSON(dec)
				if err != nil {
					return nil, err
				}
				arr.Append(elem)
			}
			if _, err := dec.Token(); err != nil {
				return nil, rpcerror.Wrap(rpcerror.InvalidArgument, err, "malformed array")
			}
			return arr, nil
		case '{':
			dict := Dictionary()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, rpcerror.Wrap(rpcerror.InvalidArgument, err, "malformed dictionary")
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, rpcerror.Newf(rpcerror.InvalidArgument, "non-string member name %v", keyTok)
				}
				member, err := parseJSON(dec)
				if err != nil {
					return nil, err
				}
				dict.Set(key, member)
			}
			if _, err := dec.Token(); err != nil {
				return nil, rpcerror.Wrap(rpcerror.InvalidArgument, err, "malformed dictionary")
			}
			return dict, nil
		}
	}
	return nil, rpcerror.Newf(rpcerror.InvalidArgument, "unexpected token %v", tok)
}
