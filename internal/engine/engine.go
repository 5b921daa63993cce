package engine

import (
	"context"
	"log"
	"sync"

	"quantenginev1/internal/indicator"
	"quantenginev1/internal/model"

	"github.com/shopspring/decimal"
)

// Config parameterizes one engine instance. Upper and Lower are the
// oscillator thresholds: histogram > Upper arms the buy side and
// disarms the sell side, histogram < Lower does the opposite.
type Config struct {
	Symbol string
	Upper  decimal.Decimal
	Lower  decimal.Decimal

	// LockWindow is the size of the rolling realized-delta window for
	// the profit lock. 0 disables the lock.
	LockWindow int
}

// Engine runs the per-direction hysteresis state machine for one
// symbol. Bars go in through Run or OnBar, signals come out through
// Signals. OnBar is not safe for concurrent use; Run serializes it.
type Engine struct {
	cfg  Config
	ind  indicator.Indicator
	lock *ProfitLock

	buy  directionState
	sell directionState

	signalCh    chan model.Signal
	unsubscribe func()
	closeOnce   sync.Once
}

// New creates an engine over the given indicator. unsubscribe is
// invoked exactly once on Close and should detach the upstream bar
// feed; pass nil when the caller owns the feed lifecycle.
func New(cfg Config, ind indicator.Indicator, unsubscribe func()) *Engine {
	return &Engine{
		cfg:         cfg,
		ind:         ind,
		lock:        NewProfitLock(cfg.LockWindow),
		signalCh:    make(chan model.Signal, 64),
		unsubscribe: unsubscribe,
	}
}

// Signals returns the output channel. It is closed when Run exits.
func (e *Engine) Signals() <-chan model.Signal {
	return e.signalCh
}

// Lock exposes the profit lock, mainly for ledger wiring and tests.
func (e *Engine) Lock() *ProfitLock {
	return e.lock
}

// Warmup feeds historical bars into the indicator without evaluating
// transitions, so the engine is armed before the first live bar.
func (e *Engine) Warmup(bars []model.Bar) {
	for i := range bars {
		e.ind.Update(bars[i].Close)
	}
}

// Run consumes closed bars until the channel closes or the context is
// cancelled, forwarding emitted signals. The signal channel is closed
// on exit.
func (e *Engine) Run(ctx context.Context, bars <-chan model.Bar) {
	defer close(e.signalCh)
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-bars:
			if !ok {
				return
			}
			for _, sig := range e.OnBar(bar) {
				select {
				case e.signalCh <- sig:
				default:
					log.Printf("[engine] %s signal channel full, dropping %s", e.cfg.Symbol, sig.Kind)
				}
			}
		}
	}
}

// OnBar advances both direction state machines with one closed bar and
// returns the emitted signals, at most one per direction.
func (e *Engine) OnBar(bar model.Bar) []model.Signal {
	e.ind.Update(bar.Close)
	if !e.ind.Stable() {
		return nil
	}
	h := e.ind.Result()

	var out []model.Signal
	if sig, ok := e.stepBuy(bar, h); ok {
		out = append(out, sig)
	}
	if sig, ok := e.stepSell(bar, h); ok {
		out = append(out, sig)
	}
	return out
}

// stepBuy handles the long side. Opens above Upper, closes below
// Lower, and only re-opens after the histogram has visited the close
// region since the last open.
func (e *Engine) stepBuy(bar model.Bar, h decimal.Decimal) (model.Signal, bool) {
	s := &e.buy
	switch {
	case h.GreaterThan(e.cfg.Upper) && !s.open && s.trend != TrendUp:
		if !e.lock.Allows() {
			log.Printf("[engine] %s profit lock active, skipping OPEN_LONG at bar %d", e.cfg.Symbol, bar.ID)
			return model.Signal{}, false
		}
		s.open = true
		s.entry = bar
		s.trend = TrendUp
		return model.Signal{
			Symbol: e.cfg.Symbol,
			Kind:   model.OpenLong,
			BarID:  bar.ID,
			Price:  bar.Close,
			Reason: "hist above upper threshold",
		}, true

	case h.LessThan(e.cfg.Lower) && s.open && s.trend != TrendDown:
		delta := bar.Close.Sub(s.entry.Close)
		s.open = false
		s.trend = TrendDown
		e.lock.Record(delta)
		return model.Signal{
			Symbol: e.cfg.Symbol,
			Kind:   model.CloseLong,
			BarID:  bar.ID,
			Price:  bar.Close,
			Delta:  delta,
			Reason: "hist below lower threshold",
		}, true
	}
	return model.Signal{}, false
}

// stepSell handles the short side with mirrored comparators.
func (e *Engine) stepSell(bar model.Bar, h decimal.Decimal) (model.Signal, bool) {
	s := &e.sell
	switch {
	case h.LessThan(e.cfg.Lower) && !s.open && s.trend != TrendDown:
		if !e.lock.Allows() {
			log.Printf("[engine] %s profit lock active, skipping OPEN_SHORT at bar %d", e.cfg.Symbol, bar.ID)
			return model.Signal{}, false
		}
		s.open = true
		s.entry = bar
		s.trend = TrendDown
		return model.Signal{
			Symbol: e.cfg.Symbol,
			Kind:   model.OpenShort,
			BarID:  bar.ID,
			Price:  bar.Close,
			Reason: "hist below lower threshold",
		}, true

	case h.GreaterThan(e.cfg.Upper) && s.open && s.trend != TrendUp:
		delta := s.entry.Close.Sub(bar.Close)
		s.open = false
		s.trend = TrendUp
		e.lock.Record(delta)
		return model.Signal{
			Symbol: e.cfg.Symbol,
			Kind:   model.CloseShort,
			BarID:  bar.ID,
			Price:  bar.Close,
			Delta:  delta,
			Reason: "hist above upper threshold",
		}, true
	}
	return model.Signal{}, false
}

// Close detaches the engine from its upstream feed. Safe to call more
// than once. The signal channel closes once Run drains the remaining
// bars from the detached feed.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		if e.unsubscribe != nil {
			e.unsubscribe()
		}
		log.Printf("[engine] %s closed", e.cfg.Symbol)
	})
}
