package crawler

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces requests at least minInterval apart and caps them to
// maxPerMinute within any trailing 60 second window. It is shared by all
// fetch workers of a crawl.
type RateLimiter struct {
	mu           sync.Mutex
	spacing      *rate.Limiter // nil when no minimum interval applies
	maxPerMinute int           // 0 disables the window cap
	window       []time.Time   // grant times inside the trailing minute, oldest first

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a limiter. Non-positive values disable the
// corresponding constraint.
func NewRateLimiter(minInterval time.Duration, maxPerMinute int) *RateLimiter {
	l := &RateLimiter{
		now:   time.Now,
		sleep: sleepContext,
	}
	if minInterval > 0 {
		l.spacing = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	if maxPerMinute > 0 {
		l.maxPerMinute = maxPerMinute
	}
	return l
}

// Acquire blocks until a request may be issued, or ctx is done
func (l *RateLimiter) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		wait := l.reserve()
		if wait == 0 {
			return nil
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// RequestCount returns the number of grants in the trailing minute
func (l *RateLimiter) RequestCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.window)
}

// reserve grants a slot and returns 0, or returns how long to wait
func (l *RateLimiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	if l.maxPerMinute > 0 && len(l.window) >= l.maxPerMinute {
		return positive(l.window[0].Add(time.Minute).Sub(now))
	}

	if l.spacing != nil {
		tokens := l.spacing.TokensAt(now)
		if tokens < 1 {
			secs := (1 - tokens) / float64(l.spacing.Limit())
			return positive(time.Duration(math.Ceil(secs * float64(time.Second))))
		}
		if !l.spacing.AllowN(now, 1) {
			return time.Millisecond
		}
	}

	l.window = append(l.window, now)
	return 0
}

// prune drops grants at or before now-60s
func (l *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(l.window) && !l.window[i].After(cutoff) {
		i++
	}
	l.window = l.window[i:]
}

func positive(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Nanosecond
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
