package domain

import "github.com/shopspring/decimal"

// Decimal is the plain fixed-point type used for dimensionless ratios
// (percentages, multipliers) that are not currency-bearing Money and not
// bound to the non-negativity constraints of Price/Quantity.
type Decimal = decimal.Decimal

// Margin is a percentage (unrealized PnL, or a configured threshold),
// signed, expressed in percent units (5 means 5%, -12.3 means -12.3%).
type Margin struct {
	pct decimal.Decimal
}

// ZeroMargin is 0%.
var ZeroMargin = Margin{pct: decimal.Zero}

// NewMargin constructs a Margin from a percentage value. No range
// validation: margins are legitimately unbounded in either direction.
func NewMargin(pct decimal.Decimal) Margin { return Margin{pct: pct} }

// Percent returns the underlying percentage value.
func (m Margin) Percent() decimal.Decimal { return m.pct }

// Cmp compares two margins.
func (m Margin) Cmp(o Margin) int { return m.pct.Cmp(o.pct) }

// LessThanOrEqual reports m <= o.
func (m Margin) LessThanOrEqual(o Margin) bool { return m.pct.Cmp(o.pct) <= 0 }

// GreaterThanOrEqual reports m >= o.
func (m Margin) GreaterThanOrEqual(o Margin) bool { return m.pct.Cmp(o.pct) >= 0 }

// Sub returns m-o.
func (m Margin) Sub(o Margin) Margin { return Margin{pct: m.pct.Sub(o.pct)} }

func (m Margin) String() string { return m.pct.StringFixed(4) + "%" }

var hundred = decimal.NewFromInt(100)

// MarginFromRatio converts a value/cost ratio already in [0,1]-ish terms
// into a Margin percentage: ratio * 100.
func MarginFromRatio(ratio decimal.Decimal) Margin {
	return Margin{pct: ratio.Mul(hundred)}
}
