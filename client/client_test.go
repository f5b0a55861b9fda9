package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"agent-rpc/codec"
	"agent-rpc/middleware"
	"agent-rpc/rpcerror"
)

// fakePeer records posted requests and can fail sends or deliver replies
// synchronously from inside PostRpcMessage.
type fakePeer struct {
	mu      sync.Mutex
	texts   []string
	data    [][]byte
	sendErr error
	onPost  func(text string)
}

func (p *fakePeer) PostRpcMessage(ctx context.Context, text string, data []byte) error {
	p.mu.Lock()
	p.texts = append(p.texts, text)
	p.data = append(p.data, data)
	onPost := p.onPost
	sendErr := p.sendErr
	p.mu.Unlock()
	if sendErr != nil {
		return sendErr
	}
	if onPost != nil {
		onPost(text)
	}
	return nil
}

// lastRequestID waits for the n-th request to be posted and extracts its id
// from the envelope.
func (p *fakePeer) lastRequestID(t *testing.T, n int) string {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		p.mu.Lock()
		count := len(p.texts)
		p.mu.Unlock()
		if count >= n {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("request %d never posted", n)
		}
		time.Sleep(time.Millisecond)
	}
	p.mu.Lock()
	text := p.texts[n-1]
	p.mu.Unlock()
	return requestIDOf(t, text)
}

func requestIDOf(t *testing.T, text string) string {
	t.Helper()
	r, err := codec.NewJSONReader([]byte(text))
	if err != nil {
		t.Fatalf("posted request is not valid JSON: %v", err)
	}
	if err := r.ReadElement(1); err != nil {
		t.Fatalf("posted request has no id element: %v", err)
	}
	id, err := r.GetStringValue()
	if err != nil {
		t.Fatalf("posted request id is not a string: %v", err)
	}
	return id
}

func okReply(id, result string) string {
	return `{"type":"send","payload":["frida:rpc","` + id + `","ok","` + result + `"]}`
}

type callResult struct {
	value *codec.Value
	err   error
}

func startCall(ctx context.Context, c *Client, method string, args ...*codec.Value) chan callResult {
	ch := make(chan callResult, 1)
	go func() {
		v, err := c.Call(ctx, method, args, nil)
		ch <- callResult{v, err}
	}()
	return ch
}

func TestCallEcho(t *testing.T) {
	peer := &fakePeer{}
	c := New(peer)

	res := startCall(context.Background(), c, "echo", codec.String("hi"))
	id := peer.lastRequestID(t, 1)

	// A reply with a foreign id is none of our business and must leave the
	// call pending.
	if c.TryHandleMessage(okReply("some-other-id", "nope")) {
		t.Error("foreign id must not be handled")
	}
	select {
	case r := <-res:
		t.Fatalf("call completed prematurely: %+v", r)
	case <-time.After(20 * time.Millisecond):
	}

	if !c.TryHandleMessage(okReply(id, "hi")) {
		t.Fatal("matching reply was not handled")
	}
	select {
	case r := <-res:
		if r.err != nil {
			t.Fatalf("call failed: %v", r.err)
		}
		if !r.value.Equal(codec.String("hi")) {
			t.Errorf("expect \"hi\", got %s", r.value)
		}
	case <-time.After(time.Second):
		t.Fatal("call never completed")
	}
}

func TestCallApplicationError(t *testing.T) {
	peer := &fakePeer{}
	c := New(peer)

	res := startCall(context.Background(), c, "explode")
	id := peer.lastRequestID(t, 1)

	if !c.TryHandleMessage(`{"type":"send","payload":["frida:rpc","` + id + `","error","boom"]}`) {
		t.Fatal("error reply was not handled")
	}
	r := <-res
	if !rpcerror.IsKind(r.err, rpcerror.NotSupported) {
		t.Fatalf("expect application error, got %v", r.err)
	}
	if r.err.Error() != "boom" {
		t.Errorf("expect remote message text, got %q", r.err.Error())
	}
}

func TestTryHandleMessageIgnoresForeignTraffic(t *testing.T) {
	c := New(&fakePeer{})

	cases := []string{
		"plain console output",                         // no sentinel
		`{"type":"log","payload":"hello"}`,             // no sentinel either
		`{"type":"log","payload":["frida:rpc","x","ok","y"]}`, // wrong outer type
		`{"payload":["frida:rpc","x","ok","y"]}`,       // no type member
		`{"type":"send","payload":{"frida:rpc":true}}`, // payload not an array
		`{"type":"send","payload":["frida:rpc","x"]}`,  // array too short
		`frida:rpc but not json at all`,                // sentinel present, unparseable
	}
	for _, text := range cases {
		if c.TryHandleMessage(text) {
			t.Errorf("%s must not be handled", text)
		}
	}
}

func TestSendFailureCleansUpEntry(t *testing.T) {
	peer := &fakePeer{sendErr: errors.New("use of closed network connection")}
	c := New(peer)

	_, err := c.Call(context.Background(), "echo", nil, nil)
	if !rpcerror.IsKind(err, rpcerror.Transport) {
		t.Fatalf("expect transport error, got %v", err)
	}

	// The entry was removed: the matching reply is now a stranger.
	id := peer.lastRequestID(t, 1)
	if c.TryHandleMessage(okReply(id, "late")) {
		t.Error("reply for a failed send must not match")
	}
}

func TestSendRefusedMapsToServerNotRunning(t *testing.T) {
	peer := &fakePeer{sendErr: errors.New("dial tcp 127.0.0.1:27042: connection refused")}
	c := New(peer)

	_, err := c.Call(context.Background(), "echo", nil, nil)
	if !rpcerror.IsKind(err, rpcerror.ServerNotRunning) {
		t.Fatalf("expect server-not-running error, got %v", err)
	}
}

func TestCancelRemovesEntryExactlyOnce(t *testing.T) {
	peer := &fakePeer{}
	c := New(peer)

	ctx, cancel := context.WithCancel(context.Background())
	res := startCall(ctx, c, "slow")
	id := peer.lastRequestID(t, 1)

	cancel()
	r := <-res
	if !rpcerror.IsKind(r.err, rpcerror.Cancelled) {
		t.Fatalf("expect cancelled error, got %v", r.err)
	}

	// Cancellation claimed the entry; the late reply is a no-op.
	if c.TryHandleMessage(okReply(id, "late")) {
		t.Error("reply after cancellation must not match")
	}
}

func TestReplyDeliveredDuringSend(t *testing.T) {
	// The reply arrives synchronously before PostRpcMessage returns; the
	// call must pick it up without suspending.
	peer := &fakePeer{}
	c := New(peer)
	peer.onPost = func(text string) {
		id := ""
		if r, err := codec.NewJSONReader([]byte(text)); err == nil {
			if r.ReadElement(1) == nil {
				id, _ = r.GetStringValue()
			}
		}
		if !c.TryHandleMessage(okReply(id, "instant")) {
			t.Error("synchronous reply was not handled")
		}
	}

	v, err := c.Call(context.Background(), "echo", []*codec.Value{codec.String("x")}, nil)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if !v.Equal(codec.String("instant")) {
		t.Errorf("expect \"instant\", got %s", v)
	}
}

func TestConcurrentCallsResolveIndependently(t *testing.T) {
	peer := &fakePeer{}
	c := New(peer)

	res1 := startCall(context.Background(), c, "first")
	id1 := peer.lastRequestID(t, 1)
	res2 := startCall(context.Background(), c, "second")
	id2 := peer.lastRequestID(t, 2)

	// Replies arrive out of order.
	if !c.TryHandleMessage(okReply(id2, "two")) {
		t.Fatal("reply for second call was not handled")
	}
	if !c.TryHandleMessage(okReply(id1, "one")) {
		t.Fatal("reply for first call was not handled")
	}

	if r := <-res1; r.err != nil || !r.value.Equal(codec.String("one")) {
		t.Errorf("first call: got %s (%v)", r.value, r.err)
	}
	if r := <-res2; r.err != nil || !r.value.Equal(codec.String("two")) {
		t.Errorf("second call: got %s (%v)", r.value, r.err)
	}
}

func TestCloseFailsPendingCalls(t *testing.T) {
	peer := &fakePeer{}
	c := New(peer)

	res := startCall(context.Background(), c, "hang")
	peer.lastRequestID(t, 1)

	c.Close()
	r := <-res
	if !rpcerror.IsKind(r.err, rpcerror.Transport) {
		t.Fatalf("expect transport error after close, got %v", r.err)
	}

	// New calls fail immediately.
	if _, err := c.Call(context.Background(), "echo", nil, nil); !rpcerror.IsKind(err, rpcerror.Transport) {
		t.Fatalf("expect transport error on closed client, got %v", err)
	}
}

func TestNilPeerIsTransportFailure(t *testing.T) {
	c := New(nil)
	_, err := c.Call(context.Background(), "echo", nil, nil)
	if !rpcerror.IsKind(err, rpcerror.Transport) {
		t.Fatalf("expect transport error for vanished peer, got %v", err)
	}
}

func TestSidePayloadReachesPeer(t *testing.T) {
	peer := &fakePeer{}
	c := New(peer)
	payload := []byte{0xde, 0xad, 0xbe, 0xef}

	res := startCall2(c, payload)
	id := peer.lastRequestID(t, 1)
	c.TryHandleMessage(okReply(id, "done"))
	if r := <-res; r.err != nil {
		t.Fatalf("call failed: %v", r.err)
	}

	peer.mu.Lock()
	defer peer.mu.Unlock()
	if string(peer.data[0]) != string(payload) {
		t.Errorf("side payload mismatch: %x", peer.data[0])
	}
}

func startCall2(c *Client, data []byte) chan callResult {
	ch := make(chan callResult, 1)
	go func() {
		v, err := c.Call(context.Background(), "write", nil, data)
		ch <- callResult{v, err}
	}()
	return ch
}

func TestCallThroughMiddlewareChain(t *testing.T) {
	peer := &fakePeer{}
	c := New(peer,
		middleware.Logging(),
		middleware.RateLimit(1000, 10),
	)

	res := startCall(context.Background(), c, "echo", codec.String("mw"))
	id := peer.lastRequestID(t, 1)
	if !c.TryHandleMessage(okReply(id, "mw")) {
		t.Fatal("reply was not handled")
	}
	if r := <-res; r.err != nil || !r.value.Equal(codec.String("mw")) {
		t.Errorf("expect \"mw\", got %s (%v)", r.value, r.err)
	}
}
