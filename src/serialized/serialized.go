package serialized

import "sync"

// Value holds a T behind a critical section. The only way in is Access, so a
// reader can never observe a partially updated composite value.
type Value[T any] struct {
	mu sync.Mutex
	v  T
}

func New[T any]() *Value[T] {
	return &Value[T]{}
}

// Access runs fn with exclusive access to the wrapped value. fn must not
// retain pointers into the value past its return.
func (s *Value[T]) Access(fn func(*T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.v)
}

// Reset replaces the wrapped value with its zero value.
func (s *Value[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.v = zero
}
