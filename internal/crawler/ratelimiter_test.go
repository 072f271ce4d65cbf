package crawler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when the limiter sleeps
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(minInterval time.Duration, perMinute int) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewRateLimiter(minInterval, perMinute)
	l.now = clock.Now
	l.sleep = clock.Sleep
	return l, clock
}

func TestRateLimiterSpacing(t *testing.T) {
	l, clock := newTestLimiter(500*time.Millisecond, 0)
	ctx := context.Background()

	start := clock.Now()
	var grants []time.Time
	for i := 0; i < 4; i++ {
		require.NoError(t, l.Acquire(ctx))
		grants = append(grants, clock.Now())
	}

	assert.Equal(t, start, grants[0], "first request is immediate")
	for i := 1; i < len(grants); i++ {
		assert.GreaterOrEqual(t, grants[i].Sub(grants[i-1]), 500*time.Millisecond)
	}
}

func TestRateLimiterNoWaitAfterIdle(t *testing.T) {
	l, clock := newTestLimiter(time.Second, 0)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	clock.Advance(2 * time.Second)
	require.NoError(t, l.Acquire(ctx))
	assert.Empty(t, clock.sleeps)
}

func TestRateLimiterWindowCap(t *testing.T) {
	l, clock := newTestLimiter(0, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
	assert.Equal(t, 3, l.RequestCount())
	assert.Empty(t, clock.sleeps)

	start := clock.Now()
	require.NoError(t, l.Acquire(ctx))
	assert.Equal(t, time.Minute, clock.Now().Sub(start), "fourth request waits for the window to roll")
}

func TestRateLimiterWindowNeverExceeded(t *testing.T) {
	l, clock := newTestLimiter(100*time.Millisecond, 5)
	ctx := context.Background()

	var grants []time.Time
	for i := 0; i < 20; i++ {
		require.NoError(t, l.Acquire(ctx))
		grants = append(grants, clock.Now())
	}

	for i := range grants {
		inWindow := 0
		for j := range grants {
			d := grants[i].Sub(grants[j])
			if d >= 0 && d < time.Minute {
				inWindow++
			}
		}
		assert.LessOrEqual(t, inWindow, 5)
	}
}

func TestRateLimiterCancelled(t *testing.T) {
	l, _ := newTestLimiter(time.Second, 0)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, l.Acquire(ctx))
	cancel()
	assert.ErrorIs(t, l.Acquire(ctx), context.Canceled)
}

func TestRateLimiterRealSleepHonoursContext(t *testing.T) {
	l := NewRateLimiter(time.Hour, 0)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Acquire(ctx), context.DeadlineExceeded)
}
