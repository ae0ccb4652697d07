// Package mailbox provides the single-slot, latest-value-wins channels used
// between the control loop and its sibling processes. A write overwrites any
// unread value, a read never blocks, and at most one value is ever pending.
package mailbox

import "sync"

// Box is a single-slot mailbox. The zero value is empty and ready to use.
type Box[T any] struct {
	mu   sync.Mutex
	val  T
	full bool
}

// Put stores v, overwriting any unread value.
func (b *Box[T]) Put(v T) {
	b.mu.Lock()
	b.val = v
	b.full = true
	b.mu.Unlock()
}

// Take removes and returns the pending value, if any. It never blocks.
func (b *Box[T]) Take() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.full {
		var zero T
		return zero, false
	}
	b.full = false
	return b.val, true
}

// Pending reports whether an unread value is waiting.
func (b *Box[T]) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.full
}
