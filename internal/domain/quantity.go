package domain

import "github.com/shopspring/decimal"

// Quantity is a strictly non-negative amount of a base asset.
type Quantity struct {
	value decimal.Decimal
}

// ZeroQuantity is the zero quantity.
var ZeroQuantity = Quantity{value: decimal.Zero}

// NewQuantity validates that value >= 0.
func NewQuantity(value decimal.Decimal) (Quantity, error) {
	if value.IsNegative() {
		return Quantity{}, &ValidationError{Op: "NewQuantity", Reason: "quantity must be >= 0"}
	}
	return Quantity{value: value}, nil
}

// MustQuantity panics on invalid construction.
func MustQuantity(value decimal.Decimal) Quantity {
	q, err := NewQuantity(value)
	if err != nil {
		panic(err)
	}
	return q
}

// Value returns the underlying decimal.
func (q Quantity) Value() decimal.Decimal { return q.value }

// IsZero reports whether the quantity is exactly zero.
func (q Quantity) IsZero() bool { return q.value.IsZero() }

// IsPositive reports whether the quantity is strictly greater than zero.
func (q Quantity) IsPositive() bool { return q.value.IsPositive() }

// Add returns q+o.
func (q Quantity) Add(o Quantity) Quantity {
	return Quantity{value: q.value.Add(o.value)}
}
