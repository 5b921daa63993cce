package indicator

import "github.com/shopspring/decimal"

// ema is an exponential moving average seeded with an SMA of the first
// period values, Wilder-free classic smoothing. O(1) per update.
type ema struct {
	period     int
	multiplier decimal.Decimal
	inverse    decimal.Decimal
	current    decimal.Decimal
	count      int
	sum        decimal.Decimal
}

func newEMA(period int) *ema {
	two := decimal.NewFromInt(2)
	den := decimal.NewFromInt(int64(period + 1))
	m := two.Div(den)
	return &ema{
		period:     period,
		multiplier: m,
		inverse:    decimal.NewFromInt(1).Sub(m),
	}
}

func (e *ema) update(v decimal.Decimal) {
	e.count++
	if e.count <= e.period {
		// Accumulate for the initial SMA seed.
		e.sum = e.sum.Add(v)
		if e.count == e.period {
			e.current = e.sum.Div(decimal.NewFromInt(int64(e.period)))
		}
		return
	}
	e.current = v.Mul(e.multiplier).Add(e.current.Mul(e.inverse))
}

func (e *ema) stable() bool { return e.count >= e.period }

// MACD calculates the Moving Average Convergence Divergence histogram:
// hist = DIF - DEA where DIF = EMA(fast) - EMA(slow) and DEA is the
// signal EMA of DIF. Result returns the histogram value, the oscillator
// the position state machine thresholds against.
type MACD struct {
	fast   *ema
	slow   *ema
	signal *ema
	hist   decimal.Decimal
}

// NewMACD creates a MACD with the given periods (typically 12, 26, 9).
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	return &MACD{
		fast:   newEMA(fastPeriod),
		slow:   newEMA(slowPeriod),
		signal: newEMA(signalPeriod),
	}
}

func (m *MACD) Update(v decimal.Decimal) {
	m.fast.update(v)
	m.slow.update(v)
	if !m.slow.stable() || !m.fast.stable() {
		return
	}
	dif := m.fast.current.Sub(m.slow.current)
	m.signal.update(dif)
	if m.signal.stable() {
		m.hist = dif.Sub(m.signal.current)
	}
}

func (m *MACD) Stable() bool {
	return m.fast.stable() && m.slow.stable() && m.signal.stable()
}

func (m *MACD) Result() decimal.Decimal {
	if !m.Stable() {
		return decimal.Zero
	}
	return m.hist
}
