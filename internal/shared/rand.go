package shared

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Rand is the random source used for every randomized decision. *rand.Rand
// satisfies it; tests supply seeded or scripted implementations.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// LockedRand makes a *rand.Rand safe for concurrent use.
type LockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewLockedRand wraps src. A nil src is seeded from the clock.
func NewLockedRand(src rand.Source) *LockedRand {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>32|1)
	}
	return &LockedRand{r: rand.New(src)}
}

// Float64 returns a value in [0.0, 1.0).
func (l *LockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// IntN returns a value in [0, n). It panics if n <= 0.
func (l *LockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// Pick returns a uniformly chosen element of items. ok is false for an
// empty slice.
func Pick[T any](r Rand, items []T) (v T, ok bool) {
	if len(items) == 0 {
		return v, false
	}
	return items[r.IntN(len(items))], true
}
