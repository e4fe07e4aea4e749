package server

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jathurchan/davlock/clock"
	"github.com/jathurchan/davlock/logger"
)

// RateLimiter defines the interface for request rate limiting.
// Each key (typically the client's remote address) has its own budget.
type RateLimiter interface {
	Allow(key string) bool
	Wait(ctx context.Context, key string) error
}

// TokenBucketRateLimiter keeps one token bucket per key and forgets buckets
// that have been idle for longer than idleTTL.
type TokenBucketRateLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	clock   clock.Clock
	logger  logger.Logger

	mu        sync.Mutex
	limiters  map[string]*keyedLimiter
	lastSweep time.Time
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTokenBucketRateLimiter allows maxRequests per window with the given
// burst for every key.
func NewTokenBucketRateLimiter(maxRequests, burst int, window time.Duration, clk clock.Clock, log logger.Logger) *TokenBucketRateLimiter {
	if clk == nil {
		clk = clock.NewStandardClock()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	var limit rate.Limit
	if window.Seconds() > 0 {
		limit = rate.Limit(float64(maxRequests) / window.Seconds())
	} else {
		limit = rate.Inf
		log.Warnw("Rate limit window is zero or negative, disabling rate limiter.", "window", window)
	}
	if burst <= 0 {
		burst = 1
		if limit != rate.Inf {
			log.Warnw("Rate limit burst is zero or negative, setting to 1.", "burst", burst)
		}
	}

	return &TokenBucketRateLimiter{
		limit:     limit,
		burst:     burst,
		idleTTL:   DefaultRateLimiterIdleTTL,
		clock:     clk,
		logger:    log,
		limiters:  make(map[string]*keyedLimiter),
		lastSweep: clk.Now(),
	}
}

// Allow reports whether a request for key can proceed immediately.
func (rl *TokenBucketRateLimiter) Allow(key string) bool {
	now := rl.clock.Now()
	return rl.get(key, now).AllowN(now, 1)
}

// Wait blocks until a request for key can proceed or ctx is done.
func (rl *TokenBucketRateLimiter) Wait(ctx context.Context, key string) error {
	return rl.get(key, rl.clock.Now()).Wait(ctx)
}

// Len returns the number of tracked keys.
func (rl *TokenBucketRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *TokenBucketRateLimiter) get(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.idleTTL {
		for k, l := range rl.limiters {
			if now.Sub(l.lastSeen) >= rl.idleTTL {
				delete(rl.limiters, k)
			}
		}
		rl.lastSweep = now
	}

	l, ok := rl.limiters[key]
	if !ok {
		l = &keyedLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = l
	}
	l.lastSeen = now
	return l.limiter
}
