package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an immutable amount of a single currency. All arithmetic uses
// fixed-point decimal, never binary float, to avoid rounding drift across
// thousands of trades.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// ZeroMoney returns a zero amount in the given currency.
func ZeroMoney(currency string) Money {
	return Money{amount: decimal.Zero, currency: normalizeCurrency(currency)}
}

// NewMoney validates currency and constructs a Money value. Negative amounts
// are allowed (PnL deltas can be negative); callers that require
// non-negative amounts must check explicitly.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	currency = normalizeCurrency(currency)
	if currency == "" {
		return Money{}, &ValidationError{Op: "NewMoney", Reason: "currency must not be empty"}
	}
	return Money{amount: amount, currency: currency}, nil
}

// MustMoney is NewMoney but panics on error. Reserved for literal
// construction in tests and config defaults where the currency is a
// compile-time constant.
func MustMoney(amount decimal.Decimal, currency string) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

func normalizeCurrency(c string) string {
	out := make([]byte, 0, len(c))
	for i := 0; i < len(c); i++ {
		b := c[i]
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		if b == ' ' || b == '\t' {
			continue
		}
		out = append(out, b)
	}
	return string(out)
}

// Amount returns the underlying decimal value.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the upper-cased currency code.
func (m Money) Currency() string { return m.currency }

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

// Sign returns -1, 0 or 1.
func (m Money) Sign() int { return m.amount.Sign() }

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(8), m.currency)
}

// sameCurrency checks currency equality, defaulting an uninitialized Money
// (zero value, empty currency) to match any currency so zero-value
// aggregation fields don't spuriously fail arithmetic.
func (m Money) sameCurrency(o Money) bool {
	if m.currency == "" || o.currency == "" {
		return true
	}
	return m.currency == o.currency
}

// Add returns m+o. Fails with ValidationError if currencies differ.
func (m Money) Add(o Money) (Money, error) {
	if !m.sameCurrency(o) {
		return Money{}, currencyMismatch("Money.Add", m.currency, o.currency)
	}
	cur := m.currency
	if cur == "" {
		cur = o.currency
	}
	return Money{amount: m.amount.Add(o.amount), currency: cur}, nil
}

// MustAdd panics on currency mismatch. Use only when currencies are known
// equal by construction (e.g. both derived from the same portfolio market).
func (m Money) MustAdd(o Money) Money {
	r, err := m.Add(o)
	if err != nil {
		panic(err)
	}
	return r
}

// Sub returns m-o. Fails with ValidationError if currencies differ.
func (m Money) Sub(o Money) (Money, error) {
	if !m.sameCurrency(o) {
		return Money{}, currencyMismatch("Money.Sub", m.currency, o.currency)
	}
	cur := m.currency
	if cur == "" {
		cur = o.currency
	}
	return Money{amount: m.amount.Sub(o.amount), currency: cur}, nil
}

// MustSub panics on currency mismatch.
func (m Money) MustSub(o Money) Money {
	r, err := m.Sub(o)
	if err != nil {
		panic(err)
	}
	return r
}

// Mul scales the amount by a plain decimal factor (e.g. a fee percentage),
// keeping the same currency.
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor), currency: m.currency}
}

// Div divides the amount by a plain decimal divisor, keeping the same
// currency. Returns zero if the divisor is zero.
func (m Money) Div(divisor decimal.Decimal) Money {
	if divisor.IsZero() {
		return Money{amount: decimal.Zero, currency: m.currency}
	}
	return Money{amount: m.amount.Div(divisor), currency: m.currency}
}

// Cmp compares amounts of the same currency; differing currencies compare
// as incomparable and always return 0 — callers needing a real comparison
// must check currency first.
func (m Money) Cmp(o Money) int {
	if !m.sameCurrency(o) {
		return 0
	}
	return m.amount.Cmp(o.amount)
}

// GreaterThanOrEqual reports m >= o for same-currency Money.
func (m Money) GreaterThanOrEqual(o Money) bool { return m.Cmp(o) >= 0 }

// LessThan reports m < o for same-currency Money.
func (m Money) LessThan(o Money) bool { return m.Cmp(o) < 0 }

func currencyMismatch(op, a, b string) error {
	return &ValidationError{Op: op, Reason: fmt.Sprintf("currency mismatch: %s vs %s", a, b)}
}
