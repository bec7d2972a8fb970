package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errCollision = errors.New("collision")

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errCollision
		}
		return nil
	}, &RetryConfig{MaxAttempts: 3, BackoffStrategy: &ConstantBackoff{}})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		return errCollision
	}, &RetryConfig{MaxAttempts: 3, BackoffStrategy: &ConstantBackoff{}, RetryableErrors: []error{errCollision}})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.ErrorIs(t, err, errCollision)
}

func TestRetryGivesUpOnNonRetryable(t *testing.T) {
	other := errors.New("bad input")
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		return other
	}, &RetryConfig{MaxAttempts: 5, BackoffStrategy: &ConstantBackoff{}, RetryableErrors: []error{errCollision}})

	assert.Equal(t, other, err)
	assert.Equal(t, 1, calls)
}

func TestRetryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, func() error { return nil }, &RetryConfig{MaxAttempts: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithDiscardCallsDiscard(t *testing.T) {
	discarded := false
	err := RetryWithDiscard(context.Background(), func() error { return errCollision },
		&RetryConfig{MaxAttempts: 2, BackoffStrategy: &ConstantBackoff{Interval: time.Millisecond}},
		func(err error) error {
			discarded = true
			return err
		})

	assert.Error(t, err)
	assert.True(t, discarded)
}

func TestExponentialBackoffCapsAtMax(t *testing.T) {
	b := &ExponentialBackoff{InitialInterval: time.Second, MaxInterval: 5 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Second, b.NextBackoff(1))
	assert.Equal(t, 4*time.Second, b.NextBackoff(3))
	assert.Equal(t, 5*time.Second, b.NextBackoff(10))
}
