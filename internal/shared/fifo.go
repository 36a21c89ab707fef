package shared

import "sync"

// FIFO is a fixed-capacity ring of values. When full, pushing a new value
// overwrites the oldest one.
type FIFO[T any] struct {
	buf  []T
	head int // next write position
	len  int
	mu   sync.RWMutex
}

// NewFIFO creates a FIFO holding at most capacity values.
func NewFIFO[T any](capacity int) *FIFO[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &FIFO[T]{buf: make([]T, capacity)}
}

// Push appends v. It returns the evicted value and true when the ring was full.
func (f *FIFO[T]) Push(v T) (evicted T, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.push(v)
}

func (f *FIFO[T]) push(v T) (evicted T, ok bool) {
	if f.len == len(f.buf) {
		evicted, ok = f.buf[f.head], true
	} else {
		f.len++
	}
	f.buf[f.head] = v
	f.head = (f.head + 1) % len(f.buf)
	return evicted, ok
}

// PushIf appends v unless any stored value satisfies exists. The check and
// the insert happen under one lock.
func (f *FIFO[T]) PushIf(v T, exists func(T) bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := 0; i < f.len; i++ {
		if exists(f.at(i)) {
			return false
		}
	}
	f.push(v)
	return true
}

// at returns the i-th oldest value. Caller holds the lock.
func (f *FIFO[T]) at(i int) T {
	start := (f.head - f.len + len(f.buf)) % len(f.buf)
	return f.buf[(start+i)%len(f.buf)]
}

// Items returns the values oldest first.
func (f *FIFO[T]) Items() []T {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]T, f.len)
	for i := range out {
		out[i] = f.at(i)
	}
	return out
}

// Last returns up to n of the newest values, oldest first.
func (f *FIFO[T]) Last(n int) []T {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if n > f.len {
		n = f.len
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	for i := range out {
		out[i] = f.at(f.len - n + i)
	}
	return out
}

// Len returns the number of stored values.
func (f *FIFO[T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.len
}

// Capacity returns the maximum number of stored values.
func (f *FIFO[T]) Capacity() int {
	return len(f.buf)
}

// Reset clears the ring.
func (f *FIFO[T]) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	var zero T
	for i := range f.buf {
		f.buf[i] = zero
	}
	f.head = 0
	f.len = 0
}
