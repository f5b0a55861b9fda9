package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"agent-rpc/codec"
	"agent-rpc/rpcerror"
)

// RateLimit applies a token-bucket limit to outgoing calls. Wait (rather
// than Allow) keeps the limiter cooperative: a call blocks for its token and
// honors cancellation while doing so.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next CallFunc) CallFunc {
		return func(ctx context.Context, method string, args []*codec.Value, data []byte) (*codec.Value, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, rpcerror.Wrap(rpcerror.Cancelled, err, "rate limit wait cancelled")
			}
			return next(ctx, method, args, data)
		}
	}
}
