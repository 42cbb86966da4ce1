package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBreakerOpensAndRecovers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 3
	cfg.SuccessThreshold = 2
	cfg.MaxRequests = 5
	cfg.Timeout = 50 * time.Millisecond
	cfg.Interval = 200 * time.Millisecond

	cb := NewCircuitBreaker("test", cfg, zaptest.NewLogger(t))
	ctx := context.Background()

	require.Equal(t, StateClosed, cb.State())

	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	}
	assert.Equal(t, StateClosed, cb.State(), "successes never move a closed breaker")

	for i := 0; i < 3; i++ {
		require.Error(t, cb.Execute(ctx, func() error { return errors.New("downstream down") }))
	}
	require.Equal(t, StateOpen, cb.State())

	err := cb.Execute(ctx, func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen, "open breaker rejects without calling")

	// after the timeout the breaker admits trial requests again
	time.Sleep(80 * time.Millisecond)
	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State(), "enough trial successes close the breaker")
}

func TestBreakerHalfOpenBoundsTrialRequests(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	cfg.MaxRequests = 2
	cfg.Timeout = 20 * time.Millisecond
	cfg.SuccessThreshold = 5 // stays half-open throughout

	cb := NewCircuitBreaker("test", cfg, zaptest.NewLogger(t))
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, func() error { return errors.New("boom") }))
	require.Equal(t, StateOpen, cb.State())
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 2; i++ {
		require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	}
	require.Equal(t, StateHalfOpen, cb.State())

	err := cb.Execute(ctx, func() error { return nil })
	assert.ErrorIs(t, err, ErrTooManyRequests)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	cfg.Timeout = 20 * time.Millisecond

	cb := NewCircuitBreaker("test", cfg, zaptest.NewLogger(t))
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, func() error { return errors.New("boom") }))
	time.Sleep(50 * time.Millisecond)

	require.Error(t, cb.Execute(ctx, func() error { return errors.New("still down") }))
	assert.Equal(t, StateOpen, cb.State(), "a single trial failure re-opens")
}

func TestBreakerCounts(t *testing.T) {
	cb := NewCircuitBreaker("test", DefaultConfig(), zaptest.NewLogger(t))
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return nil })
	_ = cb.Execute(ctx, func() error { return errors.New("boom") })
	_ = cb.Execute(ctx, func() error { return nil })

	counts := cb.Counts()
	assert.Equal(t, uint32(3), counts.Requests)
	assert.Equal(t, uint32(2), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.TotalFailures)
}

func TestBreakerStateChangeCallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 2

	var from, to State
	called := false
	cfg.OnStateChange = func(_ string, f State, s State) {
		called = true
		from, to = f, s
	}

	cb := NewCircuitBreaker("test", cfg, zaptest.NewLogger(t))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errors.New("boom") })
	}

	require.True(t, called)
	assert.Equal(t, StateClosed, from)
	assert.Equal(t, StateOpen, to)
}
