package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() retryPolicy {
	return retryPolicy{maxAttempts: 3, timeout: time.Second, backoff: time.Millisecond}
}

func TestRetryRecoversFromTransientFailures(t *testing.T) {
	t.Parallel()

	var attempts int
	err := testPolicy().do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return &BillingError{Code: "http_503", Message: "upstream unavailable", Transient: true}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	t.Parallel()

	var attempts int
	err := testPolicy().do(context.Background(), func(context.Context) error {
		attempts++
		return &BillingError{Code: "network_error", Transient: true}
	})

	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 3, attempts)
}

func TestRetryNeverRetriesValidationErrors(t *testing.T) {
	t.Parallel()

	var attempts int
	err := testPolicy().do(context.Background(), func(context.Context) error {
		attempts++
		return &BillingError{Code: "http_400", Message: "price id is malformed"}
	})

	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Equal(t, 1, attempts, "4xx must surface immediately")
}

func TestRetryRespectsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var attempts int
	err := testPolicy().do(ctx, func(context.Context) error {
		attempts++
		cancel()
		return &BillingError{Code: "http_502", Transient: true}
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
