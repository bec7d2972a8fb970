package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestBreaker(clock *fakeClock) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "notifications",
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		HalfOpenMaxCalls: 1,
		Now:              clock.Now,
	})
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := newTestBreaker(clock)
	boom := errors.New("broker unreachable")

	assert.Equal(t, boom, cb.Execute(func() error { return boom }))
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, boom, cb.Execute(func() error { return boom }))
	assert.Equal(t, StateOpen, cb.GetState())

	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrOpen)
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := newTestBreaker(clock)
	cb.Failure()
	cb.Failure()

	clock.t = clock.t.Add(2 * time.Minute)

	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.GetState())
	assert.False(t, cb.Allow())

	cb.Success()
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := newTestBreaker(clock)
	cb.Failure()
	cb.Failure()
	clock.t = clock.t.Add(2 * time.Minute)

	assert.True(t, cb.Allow())
	cb.Failure()
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestBreakerReset(t *testing.T) {
	cb := newTestBreaker(&fakeClock{t: time.Now()})
	cb.Failure()
	cb.Failure()

	cb.Reset()

	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, "closed", cb.GetMetrics()["state"])
}
