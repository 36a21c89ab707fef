// Package ratelimit provides cooldown gates for rate-limited action channels.
package ratelimit

import (
	"sync"
	"time"
)

// Cooldown permits one action per cooldown period. The zero state (no prior
// action) always permits.
type Cooldown struct {
	mu       sync.Mutex
	last     time.Time
	hasLast  bool
	cooldown time.Duration
	now      func() time.Time
}

// Option configures a Cooldown.
type Option func(*Cooldown)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Cooldown) {
		c.now = now
	}
}

// NewCooldown creates a gate with the given cooldown.
func NewCooldown(cooldown time.Duration, opts ...Option) *Cooldown {
	c := &Cooldown{cooldown: cooldown, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckAndUpdate records now as the last action and returns ok when the
// cooldown has elapsed. Otherwise it returns the whole seconds remaining and
// leaves the state untouched. Check and update happen under one lock.
func (c *Cooldown) CheckAndUpdate() (remainingSeconds int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.hasLast {
		elapsed := now.Sub(c.last)
		if elapsed < c.cooldown {
			remaining := int(c.cooldown/time.Second) - int(elapsed/time.Second)
			if remaining < 1 {
				remaining = 1
			}
			return remaining, false
		}
	}

	c.last = now
	c.hasLast = true
	return 0, true
}

// Cooldown returns the configured cooldown.
func (c *Cooldown) Cooldown() time.Duration {
	return c.cooldown
}

// LastAction returns the last permitted action time, if any.
func (c *Cooldown) LastAction() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.hasLast
}
