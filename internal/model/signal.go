package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// SignalKind is the four-state trade signal vocabulary emitted by the
// signal engine. Per direction the engine guarantees strict open/close
// alternation: no two consecutive opens without an intervening close.
type SignalKind string

const (
	OpenLong   SignalKind = "OPEN_LONG"
	CloseLong  SignalKind = "CLOSE_LONG"
	OpenShort  SignalKind = "OPEN_SHORT"
	CloseShort SignalKind = "CLOSE_SHORT"
)

// IsOpen reports whether the signal opens a position.
func (k SignalKind) IsOpen() bool {
	return k == OpenLong || k == OpenShort
}

// Signal is a discrete trade decision produced from a bar plus an
// indicator value. Delta is the realized close-minus-entry difference
// and is only set on CLOSE_* signals.
type Signal struct {
	Symbol string          `json:"symbol"`
	Kind   SignalKind      `json:"kind"`
	BarID  int64           `json:"bar_id"`
	Price  decimal.Decimal `json:"price"`
	Delta  decimal.Decimal `json:"delta"`
	Reason string          `json:"reason"`
}

// JSON returns the JSON-encoded signal (ignoring errors for hot-path usage).
func (s *Signal) JSON() []byte {
	out, _ := json.Marshal(s)
	return out
}
