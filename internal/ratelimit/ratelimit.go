package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

// SimpleRateLimiter spaces consecutive actions by a random delay between
// minDelay and maxDelay. The first call never blocks.
type SimpleRateLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
	jitter     bool
}

func NewSimpleRateLimiter(minDelay, maxDelay time.Duration) *SimpleRateLimiter {
	return &SimpleRateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		jitter:   true,
	}
}

func (r *SimpleRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lastAction.IsZero() {
		elapsed := time.Since(r.lastAction)
		delay := r.calculateDelay()

		if elapsed < delay {
			if err := Sleep(ctx, delay-elapsed); err != nil {
				return err
			}
		}
	}

	r.lastAction = time.Now()
	return nil
}

func (r *SimpleRateLimiter) SetDelay(min, max time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.minDelay = min
	r.maxDelay = max
}

func (r *SimpleRateLimiter) calculateDelay() time.Duration {
	if !r.jitter || r.maxDelay <= r.minDelay {
		return r.minDelay
	}

	delta := r.maxDelay - r.minDelay
	jitter := time.Duration(rand.Int63n(int64(delta)))
	return r.minDelay + jitter
}

// NopRateLimiter never waits.
type NopRateLimiter struct{}

func (NopRateLimiter) Wait(ctx context.Context) error  { return ctx.Err() }
func (NopRateLimiter) SetDelay(min, max time.Duration) {}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
