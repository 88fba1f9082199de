package xbreaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/itemcache/pkg/resilience/xbreaker"
)

var (
	errBackend  = errors.New("clickhouse: connection reset")
	errNotFound = errors.New("item not found")
)

func TestBreaker_Do_TripsAfterConsecutiveFailures(t *testing.T) {
	// Given
	var transitions []xbreaker.State
	b := xbreaker.NewBreaker("repo",
		xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(2)),
		xbreaker.WithOnStateChange(func(_ string, _, to xbreaker.State) { transitions = append(transitions, to) }),
	)
	ctx := context.Background()

	// When
	for range 2 {
		assert.ErrorIs(t, b.Do(ctx, func() error { return errBackend }), errBackend)
	}
	calls := 0
	err := b.Do(ctx, func() error { calls++; return nil })

	// Then
	require.Error(t, err)
	assert.True(t, xbreaker.IsOpen(err))
	assert.True(t, xbreaker.IsBreakerError(err))
	assert.Zero(t, calls, "open breaker must not call through")
	assert.Equal(t, xbreaker.StateOpen, b.State())
	assert.Equal(t, []xbreaker.State{xbreaker.StateOpen}, transitions)

	var be *xbreaker.BreakerError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "repo", be.Name)
	assert.Contains(t, be.Error(), "breaker=repo")
}

func TestBreaker_Do_HalfOpenAfterTimeout(t *testing.T) {
	b := xbreaker.NewBreaker("repo",
		xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(1)),
		xbreaker.WithTimeout(20*time.Millisecond),
		xbreaker.WithMaxRequests(1),
	)
	ctx := context.Background()
	_ = b.Do(ctx, func() error { return errBackend })
	require.Equal(t, xbreaker.StateOpen, b.State())

	assert.Eventually(t, func() bool { return b.State() == xbreaker.StateHalfOpen }, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Do(ctx, func() error { return nil }))
	assert.Equal(t, xbreaker.StateClosed, b.State())
}

func TestBreaker_IgnoreErrors_NotFoundDoesNotTrip(t *testing.T) {
	// Given
	b := xbreaker.NewBreaker("repo",
		xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(1)),
		xbreaker.WithSuccessPolicy(xbreaker.IgnoreErrors(errNotFound)),
	)

	// When
	for range 3 {
		_, err := xbreaker.Execute(context.Background(), b, func() (int, error) {
			return 0, errors.Join(errNotFound, errors.New("id 7"))
		})
		require.ErrorIs(t, err, errNotFound)
	}

	// Then
	assert.Equal(t, xbreaker.StateClosed, b.State())
	assert.Equal(t, uint32(3), b.Counts().TotalSuccesses)
}

func TestExecute_ReturnsValue(t *testing.T) {
	b := xbreaker.NewBreaker("repo")

	v, err := xbreaker.Execute(context.Background(), b, func() (string, error) { return "item-1", nil })

	require.NoError(t, err)
	assert.Equal(t, "item-1", v)
	assert.Equal(t, "repo", b.Name())
}

func TestExecute_CanceledContext(t *testing.T) {
	b := xbreaker.NewBreaker("repo")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := xbreaker.Execute(ctx, b, func() (int, error) { called = true; return 1, nil })

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.ErrorIs(t, b.Do(ctx, func() error { return nil }), context.Canceled)
}

func TestFailureRatioPolicy_ReadyToTrip(t *testing.T) {
	p := xbreaker.NewFailureRatio(0.5, 4)

	assert.False(t, p.ReadyToTrip(xbreaker.Counts{Requests: 3, TotalFailures: 3}))
	assert.False(t, p.ReadyToTrip(xbreaker.Counts{Requests: 4, TotalFailures: 1}))
	assert.True(t, p.ReadyToTrip(xbreaker.Counts{Requests: 4, TotalFailures: 2}))

	clamped := xbreaker.NewFailureRatio(3, 0)
	assert.True(t, clamped.ReadyToTrip(xbreaker.Counts{Requests: 1, TotalFailures: 1}))
	assert.False(t, clamped.ReadyToTrip(xbreaker.Counts{Requests: 2, TotalFailures: 1}))
}

func TestConsecutiveFailures_MinimumThreshold(t *testing.T) {
	p := xbreaker.NewConsecutiveFailures(0)
	assert.True(t, p.ReadyToTrip(xbreaker.Counts{ConsecutiveFailures: 1}))
	assert.False(t, p.ReadyToTrip(xbreaker.Counts{}))
}

func TestIgnoreErrors_IsSuccessful(t *testing.T) {
	p := xbreaker.IgnoreErrors(errNotFound)
	assert.True(t, p.IsSuccessful(nil))
	assert.True(t, p.IsSuccessful(errNotFound))
	assert.False(t, p.IsSuccessful(errBackend))
	assert.False(t, xbreaker.IsTooManyRequests(errBackend))
}
