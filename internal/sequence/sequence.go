// internal/sequence/sequence.go

// Package sequence hands out monotonically increasing entity IDs.
package sequence

import "sync"

// ID is the set of integer types used as entity identifiers.
type ID interface {
	~int | ~int64
}

// Allocator assigns IDs from a single sequence. It never reuses a value and
// can be advanced past IDs restored from persisted state.
type Allocator[T ID] struct {
	mu   sync.Mutex
	next T
}

// New returns an Allocator whose first ID is seed.
func New[T ID](seed T) *Allocator[T] {
	return &Allocator[T]{next: seed}
}

// Next returns the next free ID and advances the sequence.
func (a *Allocator[T]) Next() T {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	return id
}

// Observe records an externally assigned ID so that it is never handed out.
func (a *Allocator[T]) Observe(id T) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next = max(a.next, id+1)
}

// Peek returns the ID the next call to Next would return.
func (a *Allocator[T]) Peek() T {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}
