// Package client implements the request/response correlation layer that
// turns fire-and-forget message delivery into call/await semantics.
//
// Every call is tagged with a fresh random request id and parked in a
// correlation table before the request is handed to the peer. Inbound text
// is offered to TryHandleMessage, which matches replies back to their
// pending call by id:
//
//	goroutine-1 ──Call(id=a)──┐
//	goroutine-2 ──Call(id=b)──┼──→ Peer.PostRpcMessage ──→ agent
//	goroutine-3 ──Call(id=c)──┘
//
//	TryHandleMessage: reply(id=b) → pending[b] promise ← resolve → goroutine-2 wakes up
//
// Every code path that can leave a call pending is paired with a resolution
// path — matched reply, send failure, cancellation, or Close — so a caller
// never hangs silently.
package client

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"agent-rpc/codec"
	"agent-rpc/message"
	"agent-rpc/middleware"
	"agent-rpc/promise"
	"agent-rpc/rpcerror"
)

// Peer is the consumed transport interface: deliver one encoded request plus
// an optional binary side payload, asynchronously, honoring ctx.
//
// The client's reference to its peer is non-owning — the peer's lifetime is
// governed by whoever created it, and the client must tolerate the peer
// disappearing mid-call. Delivery of inbound replies back to
// TryHandleMessage is wired by the peer's owner.
type Peer interface {
	PostRpcMessage(ctx context.Context, text string, data []byte) error
}

// pendingResponse is one in-flight call: its id and the promise whose future
// the caller is suspended on. completed ⇔ the promise is settled.
type pendingResponse struct {
	requestID string
	promise   *promise.Promise[*codec.Value]
}

// Client correlates calls with asynchronously arriving replies.
type Client struct {
	mu      sync.Mutex
	peer    Peer
	pending map[string]*pendingResponse // request id → in-flight call
	closed  bool
	handler middleware.CallFunc
	log     *logrus.Entry
}

// New creates a client that sends through peer. Middlewares wrap the call
// path in the order given, outermost first.
func New(peer Peer, middlewares ...middleware.Middleware) *Client {
	c := &Client{
		peer:    peer,
		pending: make(map[string]*pendingResponse),
		log:     logrus.WithField("component", "rpc-client"),
	}
	// Build the chain once at construction, not per call.
	// Chain(A, B)(core) runs A.before → B.before → core.
	c.handler = middleware.Chain(middlewares...)(c.call)
	return c
}

// Call issues method with the given arguments and optional binary side
// payload, and blocks until the correlated reply, a send failure, or ctx
// cancellation resolves it. The error is classified per the rpcerror
// taxonomy: Transport, ServerNotRunning, NotSupported (including remote
// application errors), Protocol, InvalidArgument, or Cancelled.
func (c *Client) Call(ctx context.Context, method string, args []*codec.Value, data []byte) (*codec.Value, error) {
	return c.handler(ctx, method, args, data)
}

// call is the correlation core beneath the middleware chain.
func (c *Client) call(ctx context.Context, method string, args []*codec.Value, data []byte) (*codec.Value, error) {
	requestID := uuid.NewString()
	raw, err := message.EncodeRequest(codec.BackendJSON, requestID, method, args)
	if err != nil {
		return nil, err
	}

	p, f := promise.New[*codec.Value]()
	entry := &pendingResponse{requestID: requestID, promise: p}

	// Register before sending: a reply can legitimately arrive before
	// PostRpcMessage returns.
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, rpcerror.New(rpcerror.Transport, "client is closed")
	}
	peer := c.peer
	c.pending[requestID] = entry
	c.mu.Unlock()

	// If the cancellation path below wins the claim race, nobody settles the
	// promise; Drop rejects it so it still reaches a terminal state.
	defer p.Drop()

	if peer == nil {
		c.remove(requestID)
		return nil, rpcerror.New(rpcerror.Transport, "peer is gone")
	}
	if err := peer.PostRpcMessage(ctx, string(raw), data); err != nil {
		c.remove(requestID)
		return nil, translateSendError(err)
	}

	result, err := f.Wait(ctx)
	if err != nil && rpcerror.IsKind(err, rpcerror.Cancelled) {
		if c.remove(requestID) == nil {
			// The reply claimed the entry first and is authoritative; its
			// settlement is imminent, so take it instead of the
			// cancellation.
			return f.Wait(context.Background())
		}
	}
	return result, err
}

// TryHandleMessage offers inbound raw text to the client. It returns true
// when the text was a reply to a pending call (which is then resolved), and
// false for everything else — non-RPC traffic, foreign message types, and
// stale or unknown request ids are legitimately none of our business.
func (c *Client) TryHandleMessage(raw string) bool {
	// Cheap pre-filter: the channel is shared with non-RPC traffic, and
	// most of it should not pay for a parse.
	if !strings.Contains(raw, message.Sentinel) {
		return false
	}
	r, err := codec.NewJSONReader([]byte(raw))
	if err != nil {
		return false
	}
	if r.ReadMember("type") != nil {
		return false
	}
	msgType, err := r.GetStringValue()
	if err != nil || msgType != "send" {
		return false
	}
	if r.EndMember() != nil || r.ReadMember("payload") != nil {
		return false
	}
	requestID, ok := message.ParseReplyID(r)
	if !ok {
		return false
	}
	entry := c.remove(requestID)
	if entry == nil {
		c.log.WithField("request_id", requestID).Debug("reply does not match any pending call")
		return false
	}
	// The id matched and the entry is claimed: from here on even a
	// malformed remainder must complete the call (as a Protocol error)
	// rather than leave it pending.
	result, err := message.DecodeReplyOutcome(r)
	if err != nil {
		entry.promise.Reject(err)
	} else {
		entry.promise.Resolve(result)
	}
	return true
}

// Close fails every pending call with a transport error and makes future
// calls fail immediately. It does not touch the peer, which the client does
// not own.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.peer = nil
	pending := c.pending
	c.pending = make(map[string]*pendingResponse)
	c.mu.Unlock()

	for _, entry := range pending {
		entry.promise.Reject(rpcerror.New(rpcerror.Transport, "connection closed"))
	}
}

// remove claims the table entry for id. At most one claimant gets the entry;
// whichever of {reply, cancellation, send failure, Close} removes it first
// is authoritative.
func (c *Client) remove(requestID string) *pendingResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.pending[requestID]
	delete(c.pending, requestID)
	return entry
}

// translateSendError maps a peer failure into the caller's error taxonomy.
func translateSendError(err error) error {
	var classified *rpcerror.Error
	if stderrors.As(err, &classified) {
		return err
	}
	switch {
	case stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded):
		return rpcerror.Wrap(rpcerror.Cancelled, err, "send cancelled")
	case strings.Contains(err.Error(), "connection refused"):
		return rpcerror.Wrap(rpcerror.ServerNotRunning, err, "server not running")
	default:
		return rpcerror.Wrap(rpcerror.Transport, err, "posting rpc message")
	}
}
