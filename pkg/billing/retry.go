package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// retryPolicy bounds provider calls: a per-attempt timeout and a fixed
// number of retries for transient failures only. Validation errors (4xx)
// surface immediately.
type retryPolicy struct {
	maxAttempts int
	timeout     time.Duration
	backoff     time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxAttempts: 3,
		timeout:     15 * time.Second,
		backoff:     500 * time.Millisecond,
	}
}

// do runs fn under the policy. Each attempt gets its own deadline; backoff
// grows linearly between attempts and respects context cancellation.
func (p retryPolicy) do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := range p.maxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * p.backoff):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		if !IsTransient(err) {
			return err
		}
	}
	return lastErr
}

// newIdempotencyKey generates the key sent with every mutating provider
// call. The same key is reused across retry attempts of one logical
// operation so the provider deduplicates instead of double-applying.
func newIdempotencyKey() string {
	return uuid.New().String()
}
