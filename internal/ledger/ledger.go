// Package ledger converts trade signals carrying fill prices into
// realized P&L. An OrderLedger tracks the open fills of one side of
// one symbol; a PositionLedger pairs it with a bounded P&L window.
package ledger

import (
	"log"

	"quantenginev1/internal/model"
	"quantenginev1/internal/window"

	"github.com/shopspring/decimal"
)

// Side distinguishes the sign convention applied when a position exits.
type Side int

const (
	Long Side = iota
	Short
)

func (s Side) String() string {
	if s == Short {
		return "short"
	}
	return "long"
}

// Fill is one recorded execution.
type Fill struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderLedger holds up to maxOpen concurrent fills. Opening past the
// cap is a silent no-op, matching the at-most-N capacity semantics.
type OrderLedger struct {
	maxOpen int
	fills   []Fill
}

// NewOrderLedger creates a ledger with the given fill capacity.
// maxOpen < 1 is clamped to 1.
func NewOrderLedger(maxOpen int) *OrderLedger {
	if maxOpen < 1 {
		maxOpen = 1
	}
	return &OrderLedger{
		maxOpen: maxOpen,
		fills:   make([]Fill, 0, maxOpen),
	}
}

// Open records a fill. Returns false when the ledger is already at
// capacity and the fill was dropped.
func (o *OrderLedger) Open(price, quantity decimal.Decimal) bool {
	if len(o.fills) >= o.maxOpen {
		return false
	}
	o.fills = append(o.fills, Fill{Price: price, Quantity: quantity})
	return true
}

// AvgPrice returns the quantity-weighted average entry price, zero for
// an empty ledger.
func (o *OrderLedger) AvgPrice() decimal.Decimal {
	if len(o.fills) == 0 {
		return decimal.Zero
	}
	notional := decimal.Zero
	quantity := decimal.Zero
	for _, f := range o.fills {
		notional = notional.Add(f.Price.Mul(f.Quantity))
		quantity = quantity.Add(f.Quantity)
	}
	if quantity.IsZero() {
		return decimal.Zero
	}
	return notional.Div(quantity)
}

// Quantity returns the total open quantity.
func (o *OrderLedger) Quantity() decimal.Decimal {
	quantity := decimal.Zero
	for _, f := range o.fills {
		quantity = quantity.Add(f.Quantity)
	}
	return quantity
}

// Len returns the number of open fills.
func (o *OrderLedger) Len() int { return len(o.fills) }

// Clear atomically empties the ledger.
func (o *OrderLedger) Clear() { o.fills = o.fills[:0] }

// Result is the outcome of closing a position.
type Result struct {
	// Sum is the total realized P&L currently inside the window.
	Sum decimal.Decimal
	// LastDelta is the delta realized by this close.
	LastDelta decimal.Decimal
}

// PositionLedger tracks one side of one symbol: open fills plus a
// bounded window of realized close deltas.
type PositionLedger struct {
	symbol string
	side   Side
	orders *OrderLedger
	pnl    *window.SumQueue
}

// NewPositionLedger creates a per-side ledger. pnlWindow bounds how
// many realized deltas contribute to Sum.
func NewPositionLedger(symbol string, side Side, maxOpen, pnlWindow int) *PositionLedger {
	return &PositionLedger{
		symbol: symbol,
		side:   side,
		orders: NewOrderLedger(maxOpen),
		pnl:    window.NewSumQueue(pnlWindow),
	}
}

// Open records a fill, silently ignoring it when at capacity.
func (l *PositionLedger) Open(price, quantity decimal.Decimal) {
	if !l.orders.Open(price, quantity) {
		log.Printf("[ledger] %s %s at max open fills, ignoring fill at %s", l.symbol, l.side, price)
	}
}

// CloseAt realizes the position at the given price. For shorts the
// delta sign flips: profit when the exit is below the average entry.
// Returns false with no P&L event when nothing is open.
func (l *PositionLedger) CloseAt(price decimal.Decimal) (Result, bool) {
	if l.orders.Len() == 0 {
		return Result{}, false
	}
	avg := l.orders.AvgPrice()
	delta := price.Sub(avg)
	if l.side == Short {
		delta = avg.Sub(price)
	}
	l.orders.Clear()
	l.pnl.Push(delta)
	return Result{Sum: l.pnl.Sum(), LastDelta: delta}, true
}

// AvgPrice returns the current weighted average entry price.
func (l *PositionLedger) AvgPrice() decimal.Decimal { return l.orders.AvgPrice() }

// OpenFills returns the number of open fills.
func (l *PositionLedger) OpenFills() int { return l.orders.Len() }

// RealizedSum returns the windowed realized P&L total.
func (l *PositionLedger) RealizedSum() decimal.Decimal { return l.pnl.Sum() }

// Book routes signals for one symbol to its long and short ledgers.
type Book struct {
	long  *PositionLedger
	short *PositionLedger
}

// NewBook creates both per-side ledgers for a symbol.
func NewBook(symbol string, maxOpen, pnlWindow int) *Book {
	return &Book{
		long:  NewPositionLedger(symbol, Long, maxOpen, pnlWindow),
		short: NewPositionLedger(symbol, Short, maxOpen, pnlWindow),
	}
}

// Long returns the long-side ledger.
func (b *Book) Long() *PositionLedger { return b.long }

// Short returns the short-side ledger.
func (b *Book) Short() *PositionLedger { return b.short }

// Apply records a signal fill with the given quantity and returns the
// close result when the signal realized P&L.
func (b *Book) Apply(sig model.Signal, quantity decimal.Decimal) (Result, bool) {
	switch sig.Kind {
	case model.OpenLong:
		b.long.Open(sig.Price, quantity)
	case model.OpenShort:
		b.short.Open(sig.Price, quantity)
	case model.CloseLong:
		return b.long.CloseAt(sig.Price)
	case model.CloseShort:
		return b.short.CloseAt(sig.Price)
	}
	return Result{}, false
}

// RealizedSum returns the combined realized P&L of both sides.
func (b *Book) RealizedSum() decimal.Decimal {
	return b.long.RealizedSum().Add(b.short.RealizedSum())
}
