package domain

import (
	"github.com/shopspring/decimal"
)

// Price is a strictly non-negative quote in a pair's quote currency.
type Price struct {
	value decimal.Decimal
}

// ZeroPrice is the zero price, used as a sentinel when no price could be
// computed (e.g. average price of an empty position).
var ZeroPrice = Price{value: decimal.Zero}

// NewPrice validates that value >= 0.
func NewPrice(value decimal.Decimal) (Price, error) {
	if value.IsNegative() {
		return Price{}, &ValidationError{Op: "NewPrice", Reason: "price must be >= 0"}
	}
	return Price{value: value}, nil
}

// MustPrice panics on invalid construction.
func MustPrice(value decimal.Decimal) Price {
	p, err := NewPrice(value)
	if err != nil {
		panic(err)
	}
	return p
}

// Value returns the underlying decimal.
func (p Price) Value() decimal.Decimal { return p.value }

// IsZero reports whether the price is exactly zero.
func (p Price) IsZero() bool { return p.value.IsZero() }

// IsPositive reports whether the price is strictly greater than zero.
func (p Price) IsPositive() bool { return p.value.IsPositive() }

// Mul multiplies a price by a quantity to produce a Money cost in the given
// currency.
func (p Price) Mul(q Quantity, currency string) Money {
	return MustMoney(p.value.Mul(q.Value()), currency)
}

// Cmp compares two prices.
func (p Price) Cmp(o Price) int { return p.value.Cmp(o.value) }
