// Package ratelimit throttles LLM calls per agent with a sliding
// one-minute window. Unlike token-bucket limiters, the window tracks the
// actual timestamp of every call, so a burst that exhausts the budget
// frees up capacity exactly sixty seconds after each call, not at a
// fixed refill tick.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// window is the sliding interval calls are counted over.
const window = time.Minute

// SlidingWindowLimiter admits at most rpm calls per rolling minute.
// Acquire blocks until a slot frees up. An rpm of zero or less disables
// limiting entirely.
type SlidingWindowLimiter struct {
	mu    sync.Mutex
	rpm   int
	calls []time.Time

	// overridable in tests
	interval time.Duration
	now      func() time.Time
}

// NewSlidingWindowLimiter creates a limiter admitting rpm calls per minute.
func NewSlidingWindowLimiter(rpm int) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		rpm:      rpm,
		interval: window,
		now:      time.Now,
	}
}

// RPM returns the configured per-minute budget.
func (l *SlidingWindowLimiter) RPM() int {
	return l.rpm
}

// Acquire blocks until a call slot is available and records the call.
// It returns how long it waited.
func (l *SlidingWindowLimiter) Acquire() time.Duration {
	waited, _ := l.AcquireContext(context.Background())
	return waited
}

// AcquireContext blocks until a call slot is available or ctx is canceled.
// On cancellation no call is recorded and the context error is returned
// along with the time spent waiting.
func (l *SlidingWindowLimiter) AcquireContext(ctx context.Context) (time.Duration, error) {
	if l.rpm <= 0 {
		return 0, nil
	}

	var waited time.Duration
	for {
		l.mu.Lock()
		now := l.now()
		l.purge(now)
		if len(l.calls) < l.rpm {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return waited, nil
		}
		wait := l.calls[0].Add(l.interval).Sub(now)
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return waited, ctx.Err()
		case <-timer.C:
			waited += wait
		}
	}
}

// WaitTime reports how long a caller would block right now, without
// recording a call. Zero means a slot is free.
func (l *SlidingWindowLimiter) WaitTime() time.Duration {
	if l.rpm <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.purge(now)
	if len(l.calls) < l.rpm {
		return 0
	}
	wait := l.calls[0].Add(l.interval).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// CurrentCount returns the number of calls inside the current window.
func (l *SlidingWindowLimiter) CurrentCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.purge(l.now())
	return len(l.calls)
}

// Reset forgets all recorded calls.
func (l *SlidingWindowLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls = l.calls[:0]
}

// purge drops calls that have aged out of the window. Callers hold l.mu.
func (l *SlidingWindowLimiter) purge(now time.Time) {
	cutoff := now.Add(-l.interval)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}
