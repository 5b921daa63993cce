// Package indicator provides streaming technical indicators over bar
// close prices.
//
// All indicators implement the Indicator interface and are fed one
// value per closed bar. The signal engine is generic over this
// interface and treats the computed values as a black box.
package indicator

import "github.com/shopspring/decimal"

// Indicator is the fixed contract consumed by the signal engine.
type Indicator interface {
	// Update feeds the next value and recalculates.
	Update(v decimal.Decimal)

	// Stable returns true once enough data has accumulated for
	// Result to be meaningful.
	Stable() bool

	// Result returns the current value. Returns zero until Stable.
	Result() decimal.Decimal
}
