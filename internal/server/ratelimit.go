package server

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// rateLimiter enforces a minimum interval between uploads per client.
type rateLimiter struct {
	mu          sync.Mutex
	clock       clockwork.Clock
	minInterval time.Duration
	lastSeen    map[string]time.Time
}

func newRateLimiter(minInterval time.Duration, clock clockwork.Clock) *rateLimiter {
	return &rateLimiter{
		clock:       clock,
		minInterval: minInterval,
		lastSeen:    make(map[string]time.Time),
	}
}

func (r *rateLimiter) allow(key string) (bool, time.Duration) {
	if r.minInterval <= 0 {
		return true, 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	last, ok := r.lastSeen[key]
	if !ok {
		r.lastSeen[key] = now
		return true, 0
	}
	elapsed := now.Sub(last)
	if elapsed < r.minInterval {
		return false, r.minInterval - elapsed
	}
	r.lastSeen[key] = now
	return true, 0
}
