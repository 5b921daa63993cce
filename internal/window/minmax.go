package window

import "github.com/shopspring/decimal"

// MinMaxQueue is a bounded decimal window that answers max/min queries
// in O(1) amortized time using two monotonic deques: a non-increasing
// deque of max candidates and a non-decreasing deque of min candidates.
//
// Dominated candidates are evicted on push with a strict comparison so
// duplicate values each keep their own deque entry; the value-equality
// pop on eviction then removes exactly one entry, and the previous
// extremum is restored once the current one leaves the window.
type MinMaxQueue struct {
	q    *Queue[decimal.Decimal]
	maxd []decimal.Decimal // front = current max
	mind []decimal.Decimal // front = current min
}

// NewMinMaxQueue creates a MinMaxQueue with the given fixed capacity.
func NewMinMaxQueue(capacity int) *MinMaxQueue {
	return &MinMaxQueue{q: NewQueue[decimal.Decimal](capacity)}
}

// Push appends x, evicting the oldest element first if at capacity and
// maintaining both candidate deques.
func (m *MinMaxQueue) Push(x decimal.Decimal) {
	if m.q.Cap() == 0 {
		return
	}
	evicted, ok := m.q.Push(x)
	if ok {
		m.dropEvicted(evicted)
	}
	for len(m.maxd) > 0 && m.maxd[len(m.maxd)-1].LessThan(x) {
		m.maxd = m.maxd[:len(m.maxd)-1]
	}
	m.maxd = append(m.maxd, x)
	for len(m.mind) > 0 && m.mind[len(m.mind)-1].GreaterThan(x) {
		m.mind = m.mind[:len(m.mind)-1]
	}
	m.mind = append(m.mind, x)
}

// Shift removes and returns the oldest element, popping a candidate
// deque front when the evicted value was the current extremum.
func (m *MinMaxQueue) Shift() (decimal.Decimal, bool) {
	head, ok := m.q.Shift()
	if ok {
		m.dropEvicted(head)
	}
	return head, ok
}

func (m *MinMaxQueue) dropEvicted(v decimal.Decimal) {
	if len(m.maxd) > 0 && m.maxd[0].Equal(v) {
		m.maxd = m.maxd[1:]
	}
	if len(m.mind) > 0 && m.mind[0].Equal(v) {
		m.mind = m.mind[1:]
	}
}

// MaxValue returns the current window maximum, or zero if empty.
func (m *MinMaxQueue) MaxValue() decimal.Decimal {
	if len(m.maxd) == 0 {
		return decimal.Zero
	}
	return m.maxd[0]
}

// MinValue returns the current window minimum, or zero if empty.
func (m *MinMaxQueue) MinValue() decimal.Decimal {
	if len(m.mind) == 0 {
		return decimal.Zero
	}
	return m.mind[0]
}

// Items returns the most recent min(limit, Len) elements in order.
func (m *MinMaxQueue) Items(limit int) []decimal.Decimal { return m.q.Items(limit) }

// Len returns the number of elements currently held.
func (m *MinMaxQueue) Len() int { return m.q.Len() }
