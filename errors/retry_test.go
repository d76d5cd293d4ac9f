package errors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(codes ...ErrorCode) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		Multiplier:      2.0,
		RetryableErrors: codes,
	}
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	attempts := 0
	err := RetryWithConfig(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return New(ErrCodeDatabase, "store", "locked", nil)
		}
		return nil
	}, fastRetryConfig(ErrCodeDatabase))
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsOnNonRetryableCode(t *testing.T) {
	attempts := 0
	err := RetryWithConfig(context.Background(), func() error {
		attempts++
		return New(ErrCodeValidation, "vote", "bad input", nil)
	}, fastRetryConfig(ErrCodeDatabase))
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "validation errors fail immediately")
}

func TestRetryNeverResubmitsLedgerOperations(t *testing.T) {
	attempts := 0
	err := RetryWithConfig(context.Background(), func() error {
		attempts++
		return New(ErrCodeLedgerSubmit, "queue", "broadcast failed", nil)
	}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "ledger submissions are retried only by caller decision")
	assert.True(t, IsCode(err, ErrCodeLedgerSubmit))
}

func TestRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := RetryWithConfig(context.Background(), func() error {
		attempts++
		return New(ErrCodeDatabase, "store", "locked", nil)
	}, fastRetryConfig(ErrCodeDatabase))
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.True(t, IsCode(err, ErrCodeDatabase), "original cause stays visible")
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithConfig(ctx, func() error {
		return New(ErrCodeDatabase, "store", "locked", nil)
	}, fastRetryConfig(ErrCodeDatabase))
	assert.ErrorIs(t, err, context.Canceled)
}
