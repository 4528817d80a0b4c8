package recorder

import "sync/atomic"

// Cell is an optional value that can be set at most once.
// The zero value is an empty cell. A Cell is safe for concurrent use.
type Cell[T any] struct {
	p atomic.Pointer[T]
}

// SetIfEmpty stores v if the cell holds no value and reports whether it did.
// Once a value is stored, later calls leave it untouched.
func (c *Cell[T]) SetIfEmpty(v T) bool {
	return c.p.CompareAndSwap(nil, &v)
}

// Get returns the stored value and whether one was set.
func (c *Cell[T]) Get() (T, bool) {
	if p := c.p.Load(); p != nil {
		return *p, true
	}
	var zero T
	return zero, false
}

// Loaded reports whether a value has been stored.
func (c *Cell[T]) Loaded() bool {
	return c.p.Load() != nil
}
