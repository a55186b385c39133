// Package ratelimit implements the sliding-window counters that gate
// connections, events and join attempts. One algorithm, independently
// parameterized per guard: keep the recent event timestamps per key,
// drop the ones older than the window, reject once the rest reach the
// ceiling.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a keyed sliding-window counter. Keys are caller-defined
// (an IP address, a connection id, a session id).
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time

	// now is swapped out by tests.
	now func() time.Time
}

func NewLimiter(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		panic("ratelimit: limit must be positive")
	}
	if window <= 0 {
		panic("ratelimit: window must be positive")
	}
	return &Limiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow checks the window for key and, when under the ceiling, records
// the event. Check and record are one atomic step.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.prune(key)
	if len(ts) >= l.limit {
		return false
	}
	l.hits[key] = append(ts, l.now())
	return true
}

// Allowed reports whether key is under the ceiling without recording
// anything. Used by the failed-join guard, which only counts failures.
func (l *Limiter) Allowed(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prune(key)) < l.limit
}

// Record counts an event against key unconditionally.
func (l *Limiter) Record(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hits[key] = append(l.prune(key), l.now())
}

// Forget drops all state for key, e.g. when the owning session expires.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hits, key)
}

// Sweep removes keys whose windows have fully expired and returns how
// many were dropped. Run periodically to bound memory.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	dropped := 0
	for key, ts := range l.hits {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(l.hits, key)
			dropped++
		}
	}
	return dropped
}

// prune drops expired timestamps for key and returns the survivors.
// Caller must hold l.mu.
func (l *Limiter) prune(key string) []time.Time {
	cutoff := l.now().Add(-l.window)
	ts := l.hits[key]
	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		ts = ts[i:]
		if len(ts) == 0 {
			delete(l.hits, key)
		} else {
			l.hits[key] = ts
		}
	}
	return ts
}
