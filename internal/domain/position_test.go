package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestOpenPositionRejectsZeroPriceOrQty(t *testing.T) {
	pair := MustTradingPair("BTC", "USDT")
	_, err := OpenPosition(pair, NewOrderId(), ZeroPrice, MustQuantity(d("1")), ZeroMoney("USDT"), "", time.Now())
	assert.Error(t, err)

	_, err = OpenPosition(pair, NewOrderId(), MustPrice(d("100")), ZeroQuantity, ZeroMoney("USDT"), "", time.Now())
	assert.Error(t, err)
}

func TestOpenPositionEmitsPositionOpened(t *testing.T) {
	pair := MustTradingPair("BTC", "USDT")
	now := time.Now()
	pos, err := OpenPosition(pair, NewOrderId(), MustPrice(d("100")), MustQuantity(d("2")), MustMoney(d("0.2"), "USDT"), "rule-1", now)
	require.NoError(t, err)

	events := pos.DrainEvents()
	require.Len(t, events, 1)
	opened, ok := events[0].(PositionOpened)
	require.True(t, ok)
	assert.Equal(t, pos.ID(), opened.PositionId)
	assert.Empty(t, pos.DrainEvents(), "events are cleared after draining")
}

func TestAddDCAEntryFailsOnClosedPosition(t *testing.T) {
	pair := MustTradingPair("BTC", "USDT")
	now := time.Now()
	pos, err := OpenPosition(pair, NewOrderId(), MustPrice(d("100")), MustQuantity(d("1")), ZeroMoney("USDT"), "", now)
	require.NoError(t, err)
	require.NoError(t, pos.Close(NewOrderId(), MustPrice(d("110")), ZeroMoney("USDT"), now.Add(time.Hour)))

	err = pos.AddDCAEntry(NewOrderId(), MustPrice(d("90")), MustQuantity(d("1")), ZeroMoney("USDT"), now)
	assert.Error(t, err)
}

func TestAddDCAEntryRejectsMismatchedFeeCurrency(t *testing.T) {
	pair := MustTradingPair("BTC", "USDT")
	now := time.Now()
	pos, err := OpenPosition(pair, NewOrderId(), MustPrice(d("100")), MustQuantity(d("1")), ZeroMoney("USDT"), "", now)
	require.NoError(t, err)

	err = pos.AddDCAEntry(NewOrderId(), MustPrice(d("90")), MustQuantity(d("1")), MustMoney(d("0.1"), "BUSD"), now)
	assert.Error(t, err)
}

func TestAddDCAEntryRecomputesAverageAndEmitsDCAExecuted(t *testing.T) {
	pair := MustTradingPair("BTC", "USDT")
	now := time.Now()
	pos, err := OpenPosition(pair, NewOrderId(), MustPrice(d("100")), MustQuantity(d("1")), ZeroMoney("USDT"), "", now)
	require.NoError(t, err)
	pos.DrainEvents()

	later := now.Add(time.Hour)
	require.NoError(t, pos.AddDCAEntry(NewOrderId(), MustPrice(d("80")), MustQuantity(d("1")), ZeroMoney("USDT"), later))

	assert.Equal(t, 1, pos.DCALevel())
	assert.Equal(t, later, pos.LastBuyAt())
	// average of (100*1 + 80*1) / 2 = 90
	assert.Equal(t, 0, pos.AveragePrice().Cmp(MustPrice(d("90"))))

	events := pos.DrainEvents()
	require.Len(t, events, 1)
	dca, ok := events[0].(DCAExecuted)
	require.True(t, ok)
	assert.Equal(t, 1, dca.DCALevel)
}

func TestCloseFailsWhenAlreadyClosedOrZeroPrice(t *testing.T) {
	pair := MustTradingPair("BTC", "USDT")
	now := time.Now()
	pos, _ := OpenPosition(pair, NewOrderId(), MustPrice(d("100")), MustQuantity(d("1")), ZeroMoney("USDT"), "", now)

	err := pos.Close(NewOrderId(), ZeroPrice, ZeroMoney("USDT"), now)
	assert.Error(t, err)

	require.NoError(t, pos.Close(NewOrderId(), MustPrice(d("110")), ZeroMoney("USDT"), now))
	err = pos.Close(NewOrderId(), MustPrice(d("120")), ZeroMoney("USDT"), now)
	assert.Error(t, err)
}

func TestCalculateMarginFeeAware(t *testing.T) {
	pair := MustTradingPair("BTC", "USDT")
	now := time.Now()
	// cost 100, buy fee 1 -> fullCost 101. Sell at 110 with explicit sell fee 1 -> value 109.
	// margin = (109-101)/101*100 ~= 7.92%
	pos, _ := OpenPosition(pair, NewOrderId(), MustPrice(d("100")), MustQuantity(d("1")), MustMoney(d("1"), "USDT"), "", now)
	sellFees := MustMoney(d("1"), "USDT")
	margin := pos.CalculateMargin(MustPrice(d("110")), decimal.Zero, &sellFees)
	expected := d("109").Sub(d("101")).Div(d("101")).Mul(d("100"))
	assert.Equal(t, 0, margin.Percent().Round(6).Cmp(expected.Round(6)))
}

func TestCanDCAByPriceDrop(t *testing.T) {
	pair := MustTradingPair("BTC", "USDT")
	now := time.Now()
	pos, _ := OpenPosition(pair, NewOrderId(), MustPrice(d("100")), MustQuantity(d("1")), ZeroMoney("USDT"), "", now)

	assert.False(t, pos.CanDCAByPriceDrop(MustPrice(d("96")), d("5")))
	assert.True(t, pos.CanDCAByPriceDrop(MustPrice(d("94")), d("5")))
}

func TestCanDCAByPriceDropFalseWhenClosed(t *testing.T) {
	pair := MustTradingPair("BTC", "USDT")
	now := time.Now()
	pos, _ := OpenPosition(pair, NewOrderId(), MustPrice(d("100")), MustQuantity(d("1")), ZeroMoney("USDT"), "", now)
	require.NoError(t, pos.Close(NewOrderId(), MustPrice(d("110")), ZeroMoney("USDT"), now))

	assert.False(t, pos.CanDCAByPriceDrop(MustPrice(d("50")), d("5")))
}
