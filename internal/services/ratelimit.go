package services

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// sweepThreshold is the number of tracked keys above which expired windows
// are dropped on the next call.
const sweepThreshold = 1024

// RateLimiter admits at most limit requests per key in each fixed window.
type RateLimiter struct {
	clock  clockwork.Clock
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*rateWindow
}

type rateWindow struct {
	start time.Time
	count int
}

// NewRateLimiter creates a fixed-window limiter.
func NewRateLimiter(clock clockwork.Clock, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		clock:   clock,
		limit:   limit,
		window:  window,
		windows: make(map[string]*rateWindow),
	}
}

// Allow counts a request for key. When the key is over its limit it returns
// false and the time left until its window resets.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if len(l.windows) > sweepThreshold {
		for k, w := range l.windows {
			if !now.Before(w.start.Add(l.window)) {
				delete(l.windows, k)
			}
		}
	}

	w, ok := l.windows[key]
	if !ok || !now.Before(w.start.Add(l.window)) {
		w = &rateWindow{start: now}
		l.windows[key] = w
	}
	if w.count >= l.limit {
		return false, w.start.Add(l.window).Sub(now)
	}
	w.count++
	return true, 0
}
