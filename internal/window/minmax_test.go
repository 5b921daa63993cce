package window

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func naiveMinMax(items []decimal.Decimal) (min, max decimal.Decimal) {
	if len(items) == 0 {
		return decimal.Zero, decimal.Zero
	}
	min, max = items[0], items[0]
	for _, v := range items[1:] {
		if v.LessThan(min) {
			min = v
		}
		if v.GreaterThan(max) {
			max = v
		}
	}
	return min, max
}

func TestMinMaxQueue_Concrete(t *testing.T) {
	m := NewMinMaxQueue(5)
	for _, v := range []int64{199, 22, 3, 4, 5, 65, 77} {
		m.Push(decimal.NewFromInt(v))
	}

	if !m.MaxValue().Equal(decimal.NewFromInt(77)) {
		t.Fatalf("expected max=77, got %s", m.MaxValue())
	}
	if !m.MinValue().Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected min=3, got %s", m.MinValue())
	}
}

func TestMinMaxQueue_RestoresExtremumAfterEviction(t *testing.T) {
	m := NewMinMaxQueue(3)
	m.Push(decimal.NewFromInt(50)) // current max
	m.Push(decimal.NewFromInt(10))
	m.Push(decimal.NewFromInt(30))
	m.Push(decimal.NewFromInt(20)) // evicts 50

	if !m.MaxValue().Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected max restored to 30, got %s", m.MaxValue())
	}
	if !m.MinValue().Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected min=10, got %s", m.MinValue())
	}
}

func TestMinMaxQueue_ToleratesDuplicates(t *testing.T) {
	m := NewMinMaxQueue(3)
	m.Push(decimal.NewFromInt(5))
	m.Push(decimal.NewFromInt(5))
	m.Push(decimal.NewFromInt(1))
	m.Push(decimal.NewFromInt(2)) // evicts the first 5

	if !m.MaxValue().Equal(decimal.NewFromInt(5)) {
		t.Fatalf("duplicate max must survive one eviction, got %s", m.MaxValue())
	}

	m.Push(decimal.NewFromInt(3)) // evicts the second 5
	if !m.MaxValue().Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected max=3 after both duplicates evicted, got %s", m.MaxValue())
	}
}

func TestMinMaxQueue_EmptyReadsZero(t *testing.T) {
	m := NewMinMaxQueue(4)
	if !m.MaxValue().Equal(decimal.Zero) || !m.MinValue().Equal(decimal.Zero) {
		t.Fatalf("empty window should read zero, got max=%s min=%s", m.MaxValue(), m.MinValue())
	}
	if _, ok := m.Shift(); ok {
		t.Fatal("shift on empty window should report no element")
	}
}

func TestMinMaxQueue_MatchesNaiveScan(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m := NewMinMaxQueue(12)

	for op := 0; op < 5000; op++ {
		if rng.Intn(4) == 0 {
			m.Shift()
		} else {
			// Small value range forces frequent duplicates.
			m.Push(decimal.NewFromInt(int64(rng.Intn(20))))
		}

		wantMin, wantMax := naiveMinMax(m.Items(m.Len()))
		if !m.MinValue().Equal(wantMin) {
			t.Fatalf("op %d: min: got %s, want %s (window %v)", op, m.MinValue(), wantMin, m.Items(m.Len()))
		}
		if !m.MaxValue().Equal(wantMax) {
			t.Fatalf("op %d: max: got %s, want %s (window %v)", op, m.MaxValue(), wantMax, m.Items(m.Len()))
		}
	}
}
