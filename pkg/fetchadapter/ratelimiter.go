package fetchadapter

import (
	"sync"
	"time"
)

// rateLimiter is the single-slot global throttle of spec.md §4.1: it
// guarantees an inter-request gap of at least Interval across all
// concurrent callers and fails open (returns immediately, without
// waiting) once five consecutive calls have been marked as errors —
// the remote is assumed to be down and further throttling would only
// compound the outage. Grounded in the original Python fetcher.py's
// module-level `_rate_limit()` globals.
type rateLimiter struct {
	mu                sync.Mutex
	interval          time.Duration
	lastCall          time.Time
	consecutiveErrors int
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{interval: interval}
}

// Wait blocks until the next slot is free, unless the limiter has
// failed open.
func (r *rateLimiter) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.consecutiveErrors >= 5 {
		return
	}
	elapsed := time.Since(r.lastCall)
	if elapsed < r.interval {
		time.Sleep(r.interval - elapsed)
	}
	r.lastCall = time.Now()
}

func (r *rateLimiter) RecordSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consecutiveErrors = 0
}

func (r *rateLimiter) RecordError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consecutiveErrors++
}
