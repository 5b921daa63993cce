package ledger

import (
	"math/rand"
	"testing"

	"quantenginev1/internal/model"

	"github.com/shopspring/decimal"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestOrderLedger_AvgPrice(t *testing.T) {
	o := NewOrderLedger(4)
	o.Open(d(10), d(1))
	o.Open(d(20), d(1))
	if !o.AvgPrice().Equal(d(15)) {
		t.Fatalf("expected avg 15, got %s", o.AvgPrice())
	}

	// Weighted: (10*1 + 20*3)/4 = 17.5
	o.Clear()
	o.Open(d(10), d(1))
	o.Open(d(20), d(3))
	want := decimal.NewFromFloat(17.5)
	if !o.AvgPrice().Equal(want) {
		t.Fatalf("expected avg 17.5, got %s", o.AvgPrice())
	}
}

func TestOrderLedger_EmptyAvgIsZero(t *testing.T) {
	o := NewOrderLedger(2)
	o.Open(d(10), d(1))
	o.Clear()
	if !o.AvgPrice().Equal(decimal.Zero) {
		t.Fatalf("avg on empty ledger must be 0, got %s", o.AvgPrice())
	}
}

func TestOrderLedger_CapIsSilentNoOp(t *testing.T) {
	o := NewOrderLedger(2)
	if !o.Open(d(10), d(1)) || !o.Open(d(20), d(1)) {
		t.Fatal("fills below cap must be accepted")
	}
	if o.Open(d(99), d(1)) {
		t.Fatal("fill at cap must be dropped")
	}
	if o.Len() != 2 {
		t.Fatalf("expected 2 fills, got %d", o.Len())
	}
	if !o.AvgPrice().Equal(d(15)) {
		t.Fatalf("dropped fill must not affect avg, got %s", o.AvgPrice())
	}
}

func TestPositionLedger_LongClose(t *testing.T) {
	l := NewPositionLedger("btcusdt", Long, 4, 10)
	l.Open(d(10), d(1))
	l.Open(d(20), d(1))

	res, ok := l.CloseAt(d(25))
	if !ok {
		t.Fatal("close on open position must realize")
	}
	if !res.LastDelta.Equal(d(10)) { // 25 - 15
		t.Fatalf("expected delta 10, got %s", res.LastDelta)
	}
	if !res.Sum.Equal(d(10)) {
		t.Fatalf("expected sum 10, got %s", res.Sum)
	}
	if l.OpenFills() != 0 {
		t.Fatal("close must clear the ledger")
	}
}

func TestPositionLedger_ShortSignFlip(t *testing.T) {
	l := NewPositionLedger("btcusdt", Short, 4, 10)
	l.Open(d(100), d(1))

	// Exit below entry is profit for a short.
	res, ok := l.CloseAt(d(90))
	if !ok {
		t.Fatal("close on open position must realize")
	}
	if !res.LastDelta.Equal(d(10)) {
		t.Fatalf("expected short delta 10, got %s", res.LastDelta)
	}
}

func TestPositionLedger_CloseEmptyIsNoOp(t *testing.T) {
	l := NewPositionLedger("btcusdt", Long, 4, 10)
	if _, ok := l.CloseAt(d(100)); ok {
		t.Fatal("close on empty ledger must be a no-op")
	}
	if !l.AvgPrice().Equal(decimal.Zero) {
		t.Fatalf("avg on empty ledger must be 0, got %s", l.AvgPrice())
	}
}

func TestPositionLedger_PnLWindowSlides(t *testing.T) {
	l := NewPositionLedger("btcusdt", Long, 1, 2)

	deltas := []int64{5, -3, 10}
	for _, dv := range deltas {
		l.Open(d(100), d(1))
		l.CloseAt(d(100 + dv))
	}
	// Window of 2: 5 evicted, sum = -3 + 10.
	if !l.RealizedSum().Equal(d(7)) {
		t.Fatalf("expected windowed sum 7, got %s", l.RealizedSum())
	}
}

func TestPositionLedger_SumMatchesNaive(t *testing.T) {
	// Random open/close sequences: the incremental window sum must
	// always equal a naive recomputation over the realized deltas.
	rng := rand.New(rand.NewSource(11))
	l := NewPositionLedger("ethusdt", Long, 3, 8)
	var realized []decimal.Decimal

	for i := 0; i < 2000; i++ {
		if rng.Intn(3) != 0 {
			l.Open(d(int64(rng.Intn(1000)+1)), d(int64(rng.Intn(5)+1)))
			continue
		}
		avg := l.AvgPrice()
		price := d(int64(rng.Intn(1000) + 1))
		if _, ok := l.CloseAt(price); ok {
			realized = append(realized, price.Sub(avg))
		}

		naive := decimal.Zero
		start := len(realized) - 8
		if start < 0 {
			start = 0
		}
		for _, dv := range realized[start:] {
			naive = naive.Add(dv)
		}
		if !l.RealizedSum().Equal(naive) {
			t.Fatalf("step %d: windowed sum %s != naive %s", i, l.RealizedSum(), naive)
		}
	}
}

func TestBook_RoutesSignals(t *testing.T) {
	b := NewBook("btcusdt", 4, 10)
	qty := d(1)

	if _, ok := b.Apply(model.Signal{Kind: model.OpenLong, Price: d(100)}, qty); ok {
		t.Fatal("open must not realize P&L")
	}
	res, ok := b.Apply(model.Signal{Kind: model.CloseLong, Price: d(110)}, qty)
	if !ok || !res.LastDelta.Equal(d(10)) {
		t.Fatalf("expected long close delta 10, got ok=%v res=%+v", ok, res)
	}

	b.Apply(model.Signal{Kind: model.OpenShort, Price: d(100)}, qty)
	res, ok = b.Apply(model.Signal{Kind: model.CloseShort, Price: d(95)}, qty)
	if !ok || !res.LastDelta.Equal(d(5)) {
		t.Fatalf("expected short close delta 5, got ok=%v res=%+v", ok, res)
	}

	if !b.RealizedSum().Equal(d(15)) {
		t.Fatalf("expected combined realized 15, got %s", b.RealizedSum())
	}
}
