// Package engine converts a bar stream plus a streaming indicator into
// discrete trade signals through a per-direction hysteresis state
// machine. Each symbol owns exactly one engine instance; nothing in
// here is shared across symbols.
package engine

import (
	"quantenginev1/internal/model"
	"quantenginev1/internal/window"

	"github.com/shopspring/decimal"
)

// Trend is the per-direction hysteresis flag. A direction only toggles
// once the oscillator has crossed the opposite threshold since its last
// transition, preventing rapid flip-flopping.
type Trend string

const (
	TrendNone Trend = ""
	TrendUp   Trend = "UP"
	TrendDown Trend = "DOWN"
)

// directionState tracks one side (buy or sell) of a symbol's position.
// open transitions strictly alternate (open, close, open): no
// double-open, no close-without-open.
type directionState struct {
	open  bool
	entry model.Bar
	trend Trend
}

// ProfitLock is a pass-through filter over raw signals: when the
// rolling mean of realized deltas turns negative, OPEN_* transitions
// are suppressed until the mean recovers to non-negative. It vetoes
// emission only; it is not a second state machine.
type ProfitLock struct {
	win *window.SumQueue
}

// NewProfitLock creates a lock over the given number of recent deltas.
// size <= 0 disables the filter (nil receiver behaves the same).
func NewProfitLock(size int) *ProfitLock {
	if size <= 0 {
		return nil
	}
	return &ProfitLock{win: window.NewSumQueue(size)}
}

// Allows reports whether opens may go through.
func (p *ProfitLock) Allows() bool {
	return !p.Locked()
}

// Locked reports whether the rolling realized mean is negative.
func (p *ProfitLock) Locked() bool {
	if p == nil || p.win.Len() == 0 {
		return false
	}
	return p.win.Mean().Sign() < 0
}

// Record feeds a realized close delta into the rolling window.
func (p *ProfitLock) Record(delta decimal.Decimal) {
	if p == nil {
		return
	}
	p.win.Push(delta)
}
