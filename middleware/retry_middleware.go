package middleware

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"agent-rpc/codec"
	"agent-rpc/rpcerror"
)

// Retry retries calls that failed to reach the agent, with exponential
// backoff. Only Transport and ServerNotRunning failures are retried: remote
// application errors, protocol faults, and cancellations are authoritative
// answers, and replaying them could execute a method twice.
func Retry(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next CallFunc) CallFunc {
		return func(ctx context.Context, method string, args []*codec.Value, data []byte) (*codec.Value, error) {
			result, err := next(ctx, method, args, data)
			for attempt := 0; attempt < maxRetries; attempt++ {
				if err == nil || !retryable(err) {
					return result, err
				}
				logrus.WithFields(logrus.Fields{
					"method":  method,
					"attempt": attempt + 1,
				}).WithError(err).Info("retrying call")
				select {
				case <-time.After(baseDelay * time.Duration(1<<attempt)): // exponential backoff
				case <-ctx.Done():
					return nil, rpcerror.Wrap(rpcerror.Cancelled, ctx.Err(), "retry cancelled")
				}
				result, err = next(ctx, method, args, data)
			}
			if err != nil {
				err = errors.Wrapf(err, "giving up after %d attempts", maxRetries+1)
			}
			return result, err
		}
	}
}

func retryable(err error) bool {
	switch rpcerror.KindOf(err) {
	case rpcerror.Transport, rpcerror.ServerNotRunning:
		return true
	default:
		return false
	}
}
