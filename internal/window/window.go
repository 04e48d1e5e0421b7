// Package window provides a fixed-capacity FIFO buffer of the most recent values.
package window

import "sync"

// Window keeps at most Cap values; appending beyond that evicts the oldest.
// It is safe for concurrent use.
type Window[T any] struct {
	mu       sync.RWMutex
	capacity int
	items    []T
}

// New returns an empty window holding at most capacity values.
func New[T any](capacity int) *Window[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Window[T]{capacity: capacity}
}

// Append adds values in order, evicting the oldest ones beyond capacity.
func (w *Window[T]) Append(values ...T) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.items = append(w.items, values...)
	if len(w.items) > w.capacity {
		trimmed := make([]T, w.capacity)
		copy(trimmed, w.items[len(w.items)-w.capacity:])
		w.items = trimmed
	}
}

// Replace discards the current contents and keeps the most recent values.
func (w *Window[T]) Replace(values []T) {
	w.mu.Lock()
	w.items = nil
	w.mu.Unlock()
	w.Append(values...)
}

// Reset empties the window.
func (w *Window[T]) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.items = nil
}

// SetCap changes the capacity, evicting the oldest values if needed.
func (w *Window[T]) SetCap(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	w.mu.Lock()
	w.capacity = capacity
	w.mu.Unlock()
	w.Append()
}

// Len returns the number of values held.
func (w *Window[T]) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.items)
}

// Cap returns the capacity.
func (w *Window[T]) Cap() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.capacity
}

// Last returns the newest value.
func (w *Window[T]) Last() (T, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var zero T
	if len(w.items) == 0 {
		return zero, false
	}
	return w.items[len(w.items)-1], true
}

// Snapshot returns a copy of the values, oldest first.
func (w *Window[T]) Snapshot() []T {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]T, len(w.items))
	copy(out, w.items)
	return out
}
