package ratelimit

import (
	"sync"
	"time"
)

// Throttle suppresses repeats of an event within a window. It backs the
// operator alert path so a sustained outage produces one alert per window.
type Throttle struct {
	mu     sync.Mutex
	last   time.Time
	sent   bool
	window time.Duration
	now    func() time.Time
}

// NewThrottle creates a throttle with the given suppression window.
func NewThrottle(window time.Duration, now func() time.Time) *Throttle {
	if now == nil {
		now = time.Now
	}
	return &Throttle{window: window, now: now}
}

// Allow reports whether the event may fire now, and if so records it.
func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.sent && now.Sub(t.last) <= t.window {
		return false
	}
	t.last = now
	t.sent = true
	return true
}
