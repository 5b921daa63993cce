package indicator

import (
	"quantenginev1/internal/window"

	"github.com/shopspring/decimal"
)

// SMA calculates a Simple Moving Average over a bounded window.
// O(1) per update: the window sum is maintained incrementally.
type SMA struct {
	period int
	win    *window.SumQueue
}

// NewSMA creates an SMA indicator with the given period.
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{
		period: period,
		win:    window.NewSumQueue(period),
	}
}

func (s *SMA) Update(v decimal.Decimal) {
	s.win.Push(v)
}

func (s *SMA) Stable() bool {
	return s.win.Len() >= s.period
}

func (s *SMA) Result() decimal.Decimal {
	if !s.Stable() {
		return decimal.Zero
	}
	return s.win.Mean()
}
