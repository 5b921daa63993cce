// Package window provides bounded sliding-window primitives with O(1)
// amortized running aggregates (sum, max, min) over recent market data.
//
// All operations are total: popping an empty queue returns a zero value,
// pushing a full queue evicts the oldest element. Nothing here panics on
// the hot path.
package window

// Queue is a fixed-capacity FIFO window backed by a ring buffer. Once
// at capacity, every Push evicts exactly the oldest element. The
// capacity is set at construction and never changes; Push and Shift
// are O(1), no element is ever moved.
type Queue[T any] struct {
	capacity int
	buf      []T
	head     int // index of the oldest element
	length   int
}

// NewQueue creates a bounded queue. A capacity below 1 is clamped to a
// queue that holds nothing and treats every operation as a no-op.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue[T]{
		capacity: capacity,
		buf:      make([]T, capacity),
	}
}

// Push appends item, evicting the oldest element first if the queue is
// at capacity. It returns the evicted element and whether an eviction
// happened.
func (q *Queue[T]) Push(item T) (T, bool) {
	var evicted T
	if q.capacity == 0 {
		return evicted, false
	}
	var ok bool
	if q.length == q.capacity {
		evicted, ok = q.Shift()
	}
	q.buf[(q.head+q.length)%q.capacity] = item
	q.length++
	return evicted, ok
}

// Shift removes and returns the oldest element. On an empty queue it
// returns the zero value and false.
func (q *Queue[T]) Shift() (T, bool) {
	var zero T
	if q.length == 0 {
		return zero, false
	}
	head := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % q.capacity
	q.length--
	return head, true
}

// Items returns the most recent min(limit, Len) elements in
// chronological order without mutating the window.
func (q *Queue[T]) Items(limit int) []T {
	if limit < 0 {
		limit = 0
	}
	if limit > q.length {
		limit = q.length
	}
	out := make([]T, limit)
	start := q.length - limit
	for i := 0; i < limit; i++ {
		out[i] = q.buf[(q.head+start+i)%q.capacity]
	}
	return out
}

// Last returns the most recent element, or the zero value if empty.
func (q *Queue[T]) Last() (T, bool) {
	var zero T
	if q.length == 0 {
		return zero, false
	}
	return q.buf[(q.head+q.length-1)%q.capacity], true
}

// ReplaceLast overwrites the most recent element in place. Used when a
// venue revises the forming bar (same id): the window supersedes the
// last element instead of appending. No-op on an empty queue.
func (q *Queue[T]) ReplaceLast(item T) bool {
	if q.length == 0 {
		return false
	}
	q.buf[(q.head+q.length-1)%q.capacity] = item
	return true
}

// Len returns the number of elements currently held.
func (q *Queue[T]) Len() int { return q.length }

// Cap returns the fixed capacity.
func (q *Queue[T]) Cap() int { return q.capacity }
