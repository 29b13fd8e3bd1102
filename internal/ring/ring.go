// Package ring implements a fixed capacity buffer addressed by an ever
// increasing sample time.
package ring

// Buffer retains the latest Cap() values pushed into it. Values are addressed
// by the time they were pushed at: the first value has time Start(), every
// next value has time incremented by one.
type Buffer[T any] struct {
	values []T
	low    uint64 // oldest retained time
	high   uint64 // next time to be pushed
}

// New returns a buffer that retains capacity values and starts at time
// start. Capacity less than one is treated as one.
func New[T any](capacity int, start uint64) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{
		values: make([]T, capacity),
		low:    start,
		high:   start,
	}
}

// Push appends the value at time High() and evicts the oldest value if
// the buffer is full. It returns the time assigned to the value.
func (b *Buffer[T]) Push(v T) uint64 {
	if b.high-b.low == uint64(len(b.values)) {
		b.low++
	}
	b.values[b.high%uint64(len(b.values))] = v
	b.high++
	return b.high - 1
}

// Get returns the value for time t. Second value is false if t is not
// retained: either already evicted or not pushed yet.
func (b *Buffer[T]) Get(t uint64) (T, bool) {
	if t < b.low || t >= b.high {
		var zero T
		return zero, false
	}
	return b.values[t%uint64(len(b.values))], true
}

// Low returns the oldest retained time.
func (b *Buffer[T]) Low() uint64 {
	return b.low
}

// High returns the time the next pushed value will get.
func (b *Buffer[T]) High() uint64 {
	return b.high
}

// Cap returns the capacity of the buffer.
func (b *Buffer[T]) Cap() int {
	return len(b.values)
}
