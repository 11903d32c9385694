package session

import "errors"

// ErrNotConfigured is returned by Store.Get before the first Set.
var ErrNotConfigured = errors.New("not configured")

// Store holds one value with replace-whole semantics. It performs no locking;
// Session serialises access to its stores.
type Store[T any] struct {
	value T
	set   bool
}

// Set replaces the held value.
func (s *Store[T]) Set(v T) {
	s.value = v
	s.set = true
}

// Get returns the held value or ErrNotConfigured.
func (s *Store[T]) Get() (T, error) {
	if !s.set {
		var zero T
		return zero, ErrNotConfigured
	}
	return s.value, nil
}

// Clear drops the held value.
func (s *Store[T]) Clear() {
	var zero T
	s.value = zero
	s.set = false
}

// IsSet reports whether a value is held.
func (s *Store[T]) IsSet() bool { return s.set }
