package indicator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSMA_StableAfterPeriod(t *testing.T) {
	s := NewSMA(3)

	s.Update(decimal.NewFromInt(10))
	s.Update(decimal.NewFromInt(20))
	if s.Stable() {
		t.Fatal("SMA must not be stable before period values")
	}
	if !s.Result().Equal(decimal.Zero) {
		t.Fatalf("unstable SMA must read zero, got %s", s.Result())
	}

	s.Update(decimal.NewFromInt(30))
	if !s.Stable() {
		t.Fatal("SMA must be stable after period values")
	}
	if !s.Result().Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected SMA=20, got %s", s.Result())
	}

	// Window slides: (20+30+40)/3 = 30
	s.Update(decimal.NewFromInt(40))
	if !s.Result().Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected SMA=30 after slide, got %s", s.Result())
	}
}

func TestMACD_StabilizesAndTracksTrend(t *testing.T) {
	m := NewMACD(3, 6, 3)

	// Rising series: histogram should end positive once stable.
	price := decimal.NewFromInt(100)
	step := decimal.NewFromInt(2)
	for i := 0; i < 40; i++ {
		m.Update(price)
		price = price.Add(step)
	}

	if !m.Stable() {
		t.Fatal("MACD must be stable after 40 updates")
	}
	if m.Result().Sign() <= 0 {
		t.Fatalf("expected positive histogram on an uptrend, got %s", m.Result())
	}

	// Sharp reversal drives the histogram negative.
	step = decimal.NewFromInt(-5)
	for i := 0; i < 40; i++ {
		price = price.Add(step)
		m.Update(price)
	}
	if m.Result().Sign() >= 0 {
		t.Fatalf("expected negative histogram on a downtrend, got %s", m.Result())
	}
}

func TestMACD_UnstableReadsZero(t *testing.T) {
	m := NewMACD(12, 26, 9)
	m.Update(decimal.NewFromInt(100))
	if m.Stable() {
		t.Fatal("MACD must not be stable after one update")
	}
	if !m.Result().Equal(decimal.Zero) {
		t.Fatalf("unstable MACD must read zero, got %s", m.Result())
	}
}
