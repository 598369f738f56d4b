package generic

import (
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Integer minor units (cents)
// =============================================================================

// Cents is a monetary amount in minor currency units. Every persisted
// monetary field is Cents; floating-point values never leave the engine.
type Cents int64

var (
	half         = decimal.New(5, -1)
	centsEpsilon = decimal.New(1, -9)
)

// ToCents rounds a currency value half-up to whole cents. The float is first
// read through its shortest decimal representation, which absorbs binary
// representation error (10.005 stays 10.005, not 10.00499999...), then
// nudged by a small epsilon before the half-up step. NaN and infinities
// round to zero.
func ToCents(value float64) Cents {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	shifted := decimal.NewFromFloat(value).Shift(2).Add(centsEpsilon)
	return Cents(shifted.Add(half).Floor().IntPart())
}

// FromCents converts minor units back to a currency value for display and
// for feeding stored salaries into the engine.
func FromCents(c Cents) float64 {
	return decimal.New(int64(c), -2).InexactFloat64()
}

// Decimal is the exact decimal value of c in major units.
func (c Cents) Decimal() decimal.Decimal { return decimal.New(int64(c), -2) }

// String renders c with two decimal places, e.g. "1700.00".
func (c Cents) String() string { return c.Decimal().StringFixed(2) }

// MaxCents returns the larger of a and b.
func MaxCents(a, b Cents) Cents {
	if a > b {
		return a
	}
	return b
}
