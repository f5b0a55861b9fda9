package middleware

import (
	"context"
	"time"

	"agent-rpc/codec"
)

// Timeout bounds each call by composing a deadline into its context. The
// core has no native timeout: expiry fires the call's cancellation path and
// surfaces as a Cancelled error.
func Timeout(timeout time.Duration) Middleware {
	return func(next CallFunc) CallFunc {
		return func(ctx context.Context, method string, args []*codec.Value, data []byte) (*codec.Value, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, method, args, data)
		}
	}
}
