package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyAddRejectsCurrencyMismatch(t *testing.T) {
	a := MustMoney(d("10"), "USDT")
	b := MustMoney(d("5"), "BUSD")
	_, err := a.Add(b)
	assert.Error(t, err)
}

func TestMoneyZeroValueMatchesAnyCurrency(t *testing.T) {
	var zero Money // uninitialized, empty currency
	b := MustMoney(d("5"), "USDT")
	sum, err := zero.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "USDT", sum.Currency())
}

func TestMoneyNormalizesCurrencyCase(t *testing.T) {
	a := MustMoney(d("1"), "usdt")
	assert.Equal(t, "USDT", a.Currency())
}

func TestMoneyDivByZeroReturnsZero(t *testing.T) {
	a := MustMoney(d("10"), "USDT")
	zero := a.Div(d("0"))
	assert.True(t, zero.IsZero())
}

func TestPriceRejectsNegative(t *testing.T) {
	_, err := NewPrice(d("-1"))
	assert.Error(t, err)
}

func TestPriceMulProducesMoney(t *testing.T) {
	p := MustPrice(d("100"))
	q := MustQuantity(d("2"))
	m := p.Mul(q, "USDT")
	assert.Equal(t, 0, m.Amount().Cmp(d("200")))
}

func TestQuantityRejectsNegative(t *testing.T) {
	_, err := NewQuantity(d("-0.01"))
	assert.Error(t, err)
}

func TestMarginFromRatio(t *testing.T) {
	m := MarginFromRatio(d("0.05"))
	assert.Equal(t, 0, m.Percent().Cmp(d("5")))
}

func TestMarginOrdering(t *testing.T) {
	low := NewMargin(d("-2"))
	high := NewMargin(d("3"))
	assert.True(t, low.LessThanOrEqual(high))
	assert.True(t, high.GreaterThanOrEqual(low))
	assert.False(t, high.LessThanOrEqual(low))
}
