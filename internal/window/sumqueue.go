package window

import "github.com/shopspring/decimal"

// SumQueue is a bounded decimal window with an incrementally maintained
// running sum: the sum is adjusted by addition/subtraction in the same
// operation as the queue mutation, never recomputed from scratch, so it
// stays exact across any push/evict sequence.
type SumQueue struct {
	q   *Queue[decimal.Decimal]
	sum decimal.Decimal
}

// NewSumQueue creates a SumQueue with the given fixed capacity.
func NewSumQueue(capacity int) *SumQueue {
	return &SumQueue{q: NewQueue[decimal.Decimal](capacity)}
}

// Push appends x, evicting and subtracting the oldest element first if
// at capacity. Returns the evicted value and whether one was evicted.
func (s *SumQueue) Push(x decimal.Decimal) (decimal.Decimal, bool) {
	evicted, ok := s.q.Push(x)
	if s.q.Cap() == 0 {
		return evicted, false
	}
	s.sum = s.sum.Add(x)
	if ok {
		s.sum = s.sum.Sub(evicted)
	}
	return evicted, ok
}

// Shift removes and returns the oldest element, subtracting it from the
// running sum. Returns zero and false on an empty window.
func (s *SumQueue) Shift() (decimal.Decimal, bool) {
	head, ok := s.q.Shift()
	if ok {
		s.sum = s.sum.Sub(head)
	}
	return head, ok
}

// Sum returns the exact running total of the current contents.
func (s *SumQueue) Sum() decimal.Decimal { return s.sum }

// Last returns the most recent element, or zero if empty.
func (s *SumQueue) Last() decimal.Decimal {
	last, ok := s.q.Last()
	if !ok {
		return decimal.Zero
	}
	return last
}

// Mean returns Sum/Len, or zero on an empty window.
func (s *SumQueue) Mean() decimal.Decimal {
	if s.q.Len() == 0 {
		return decimal.Zero
	}
	return s.sum.Div(decimal.NewFromInt(int64(s.q.Len())))
}

// Items returns the most recent min(limit, Len) elements in order.
func (s *SumQueue) Items(limit int) []decimal.Decimal { return s.q.Items(limit) }

// Len returns the number of elements currently held.
func (s *SumQueue) Len() int { return s.q.Len() }

// Cap returns the fixed capacity.
func (s *SumQueue) Cap() int { return s.q.Cap() }
