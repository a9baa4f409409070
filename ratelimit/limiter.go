// Package ratelimit implements the token bucket that gates every outbound
// call to the Gradient agent API. One bucket per process: the upstream quota
// is shared across all chats, so all in-flight messages acquire from the same
// limiter. On top of the steady-state bucket it enforces a cooldown window
// extended by server-supplied Retry-After hints after a 429.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrInvalidRate  = errors.New("ratelimit: rate must be positive")
	ErrInvalidBurst = errors.New("ratelimit: burst must be at least 1")
)

// minWait bounds retry sleeps so waiters never busy-spin on sub-millisecond
// refill intervals.
const minWait = 10 * time.Millisecond

// Limiter is a token bucket with an overload cooldown gate. Both gates are
// independent: an expired cooldown grants no token, and an overload report
// drains no tokens. Safe for concurrent use.
type Limiter struct {
	mu              sync.Mutex
	capacity        float64
	rate            float64 // tokens per second
	tokens          float64
	lastRefill      time.Time
	cooldownUntil   time.Time
	defaultCooldown time.Duration

	now func() time.Time // swapped out in tests
}

// New creates a limiter allowing bursts of up to burst calls and a sustained
// rate of rate calls per second. defaultCooldown is the pause applied when an
// overload is reported without a server hint; zero disables the cooldown gate
// for hintless reports. The bucket starts full.
func New(rate float64, burst int, defaultCooldown time.Duration) (*Limiter, error) {
	if rate <= 0 {
		return nil, ErrInvalidRate
	}
	if burst < 1 {
		return nil, ErrInvalidBurst
	}
	l := &Limiter{
		capacity:        float64(burst),
		rate:            rate,
		tokens:          float64(burst),
		defaultCooldown: defaultCooldown,
		now:             time.Now,
	}
	l.lastRefill = l.now()
	return l, nil
}

// Acquire blocks until a token has been consumed or ctx ends. It never fails
// due to rate limiting alone; the only error it returns is ctx.Err().
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		wait := l.take()
		if wait == 0 {
			return nil
		}
		if wait < minWait {
			wait = minWait
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire consumes a token without blocking. It fails when no token is
// available or a cooldown is active.
func (l *Limiter) TryAcquire() bool {
	return l.take() == 0
}

// take refills the bucket and attempts to consume one token. It returns 0 on
// success, otherwise the estimated wait before the next attempt can succeed.
func (l *Limiter) take() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.refill(now)

	if until := l.cooldownUntil; now.Before(until) {
		return until.Sub(now)
	}
	if l.tokens >= 1 {
		l.tokens--
		return 0
	}
	needed := 1 - l.tokens
	return time.Duration(needed / l.rate * float64(time.Second))
}

// refill credits tokens for the time elapsed since the last refill, capped at
// capacity. A backward clock jump clamps elapsed to zero: tokens are never
// subtracted, and lastRefill snaps to now so the next refill measures from a
// sane point.
func (l *Limiter) refill(now time.Time) {
	elapsed := now.Sub(l.lastRefill)
	if elapsed > 0 {
		l.tokens += elapsed.Seconds() * l.rate
		if l.tokens > l.capacity {
			l.tokens = l.capacity
		}
	}
	l.lastRefill = now
}

// ReportOverload registers an upstream overload response (HTTP 429 or
// equivalent). retryAfter is the server-supplied hint; pass zero or negative
// when the server gave none, in which case the configured default cooldown
// applies. Concurrent reports only ever extend the cooldown.
func (l *Limiter) ReportOverload(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = l.defaultCooldown
	}
	if retryAfter <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	until := l.now().Add(retryAfter)
	if until.After(l.cooldownUntil) {
		l.cooldownUntil = until
	}
}

// CooldownRemaining reports how long the active cooldown still has to run.
// Zero means no cooldown is in effect.
func (l *Limiter) CooldownRemaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rem := l.cooldownUntil.Sub(l.now()); rem > 0 {
		return rem
	}
	return 0
}

// Remaining returns the number of whole tokens currently available. Snapshot
// only; concurrent acquires may change it immediately.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill(l.now())
	return int(l.tokens)
}
