// Package model defines the market data and signal value types shared
// across the engine. All prices and quantities use decimal.Decimal to
// avoid binary floating-point drift in P&L arithmetic.
package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Bar represents one OHLCV sample for an instrument at a venue-native
// time bucket. ID is the venue epoch timestamp of the bucket start.
// Bars are immutable once constructed; a venue revision of the forming
// bar arrives as a new Bar carrying the same ID and supersedes it.
type Bar struct {
	Symbol string          `json:"symbol"`
	ID     int64           `json:"id"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"vol"`
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// DepthLevel is one price level of an order book side.
type DepthLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// Depth is an order book snapshot for an instrument.
type Depth struct {
	Symbol string       `json:"symbol"`
	TS     int64        `json:"ts"`
	Bids   []DepthLevel `json:"bids"`
	Asks   []DepthLevel `json:"asks"`
}
