// file: service/rate_limiter.go

package service

import (
	"context"
	"go-websecurity-api/logger"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter is a per-key token bucket throttle. Each bucket holds up to
// capacity tokens and refills continuously at capacity per window.
type RateLimiter struct {
	capacity int
	window   time.Duration
	idleTTL  time.Duration
	buckets  sync.Map // key -> *bucket
	now      func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// NewRateLimiter builds a limiter. idleTTL is raised to window when smaller
// so that an evicted bucket would always have been full again.
func NewRateLimiter(capacity int, window, idleTTL time.Duration) *RateLimiter {
	if capacity <= 0 {
		capacity = 20
	}
	if window <= 0 {
		window = time.Minute
	}
	if idleTTL < window {
		idleTTL = window
	}
	return &RateLimiter{
		capacity: capacity,
		window:   window,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// Allow debits one token from key's bucket and reports whether it was
// available.
func (l *RateLimiter) Allow(key string) bool {
	return l.AllowAt(key, l.now())
}

// AllowAt is Allow evaluated at the given instant.
func (l *RateLimiter) AllowAt(key string, now time.Time) bool {
	b := l.bucketFor(key)
	b.lastSeen.Store(now.UnixNano())
	if !b.limiter.AllowN(now, 1) {
		rateLimited.Inc()
		return false
	}
	return true
}

func (l *RateLimiter) bucketFor(key string) *bucket {
	if v, ok := l.buckets.Load(key); ok {
		return v.(*bucket)
	}
	fresh := &bucket{
		limiter: rate.NewLimiter(rate.Limit(float64(l.capacity)/l.window.Seconds()), l.capacity),
	}
	v, loaded := l.buckets.LoadOrStore(key, fresh)
	if !loaded {
		rateLimitBuckets.Inc()
	}
	return v.(*bucket)
}

// Sweep drops buckets not seen for idleTTL and returns how many were
// removed.
func (l *RateLimiter) Sweep(now time.Time) int {
	removed := 0
	l.buckets.Range(func(k, v any) bool {
		b := v.(*bucket)
		if now.Sub(time.Unix(0, b.lastSeen.Load())) >= l.idleTTL {
			if l.buckets.CompareAndDelete(k, v) {
				removed++
				rateLimitBuckets.Dec()
			}
		}
		return true
	})
	return removed
}

// Len returns the number of tracked buckets.
func (l *RateLimiter) Len() int {
	n := 0
	l.buckets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// StartSweeper evicts idle buckets every interval until ctx is done.
func (l *RateLimiter) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = l.window
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.Sweep(l.now()); n > 0 {
					logger.Log.WithFields(logrus.Fields{
						"evicted":   n,
						"remaining": l.Len(),
					}).Debug("Evicted idle rate limit buckets")
				}
			}
		}
	}()
}
