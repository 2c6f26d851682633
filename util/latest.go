package util

import (
	"sync"
)

// Latest is a single-slot delivery cell: writers overwrite the slot,
// readers only ever see the most recent value. Older unconsumed values
// are discarded, never queued.
type Latest[T any] struct {
	mu     sync.Mutex    // Protects value, seq and taken
	value  T             // The most recent value
	seq    uint64        // Incremented on every Set
	taken  uint64        // seq at the time of the last successful Take
	notify chan struct{} // Buffered channel of size 1 for notification
}

// NewLatest creates a new Latest instance.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{
		notify: make(chan struct{}, 1), // Buffered channel with capacity 1
	}
}

// Set stores v as the newest value. It is non-blocking: if a
// notification is already pending, the slot content is simply replaced.
func (l *Latest[T]) Set(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.value = v // Always overwrite with the latest value
	l.seq++

	select {
	case l.notify <- struct{}{}:
		// Notification sent successfully.
	default:
		// Channel was already full, notification is already pending.
	}
}

// Take consumes the newest value. The second return is false when
// nothing new arrived since the last Take. It works whether or not
// the notification token has already been received from Channel.
func (l *Latest[T]) Take() (T, bool) {
	// Drain a pending notification if there is one.
	select {
	case <-l.notify:
	default:
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seq == l.taken {
		var zero T
		return zero, false
	}
	l.taken = l.seq
	return l.value, true
}

// Peek returns the current value without consuming it.
func (l *Latest[T]) Peek() T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// Channel returns the notification channel for use in select statements.
// After it fires, call Take to fetch the value.
func (l *Latest[T]) Channel() <-chan struct{} {
	return l.notify
}

// Pending checks if an unconsumed value is waiting.
// This is a non-destructive check.
func (l *Latest[T]) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq != l.taken
}
