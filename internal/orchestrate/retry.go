package orchestrate

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"demogen/internal/crm"
)

// retryPolicy bounds how often a retryable CRM call is repeated.
type retryPolicy struct {
	maxRetries int
	initial    time.Duration
}

func (p retryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.initial > 0 {
		b.InitialInterval = p.initial
	}
	return b
}

// withRetry runs op and repeats it with exponential backoff while it fails
// with an error crm.IsRetryable accepts, at most p.maxRetries extra times.
// The last error is returned unwrapped.
func withRetry[T any](ctx context.Context, p retryPolicy, logger *slog.Logger, op string, fn func() (T, error)) (T, error) {
	tries := max(p.maxRetries, 0) + 1
	return backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil && !crm.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(tries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("retrying CRM call", "op", op, "error", err, "backoff", next)
		}),
	)
}
