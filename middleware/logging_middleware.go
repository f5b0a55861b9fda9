package middleware

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"agent-rpc/codec"
	"agent-rpc/rpcerror"
)

// Logging logs every call with its duration and, on failure, the error kind.
func Logging() Middleware {
	log := logrus.WithField("component", "rpc-client")
	return func(next CallFunc) CallFunc {
		return func(ctx context.Context, method string, args []*codec.Value, data []byte) (*codec.Value, error) {
			start := time.Now()
			result, err := next(ctx, method, args, data)
			fields := logrus.Fields{
				"method":   method,
				"duration": time.Since(start),
			}
			if err != nil {
				log.WithFields(fields).WithField("kind", rpcerror.KindOf(err)).
					WithError(err).Warn("call failed")
			} else {
				log.WithFields(fields).Debug("call completed")
			}
			return result, err
		}
	}
}
