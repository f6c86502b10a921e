package db

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry runs op with bounded exponential backoff. It is meant for store
// calls that may hit transient unavailability: after maxRetries attempts
// the last error surfaces to the caller instead of being dropped.
func Retry(ctx context.Context, maxRetries uint64, op func(ctx context.Context) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 2 * time.Second

	wrapped := backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx)
	return backoff.Retry(func() error {
		return op(ctx)
	}, wrapped)
}
