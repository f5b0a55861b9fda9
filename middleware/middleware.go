// Package middleware provides the interceptor chain wrapped around the
// client's call path, so cross-cutting behavior (logging, timeouts, retry,
// rate limiting) stays out of the correlation core.
package middleware

import (
	"context"

	"agent-rpc/codec"
)

// CallFunc is the signature of one RPC call: method, structured arguments,
// and an optional binary side payload.
type CallFunc func(ctx context.Context, method string, args []*codec.Value, data []byte) (*codec.Value, error)

// Middleware wraps a CallFunc with additional behavior.
type Middleware func(next CallFunc) CallFunc

// Chain combines middlewares into one, applied in the order given:
// Chain(A, B, C)(call) → A(B(C(call))).
func Chain(middlewares ...Middleware) Middleware {
	return func(next CallFunc) CallFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
