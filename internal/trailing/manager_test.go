package trailing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
)

func mustPair(t *testing.T) domain.TradingPair {
	t.Helper()
	p, err := domain.NewTradingPair("BTC", "USDT")
	require.NoError(t, err)
	return p
}

func margin(v string) domain.Margin {
	return domain.NewMargin(decimal.RequireFromString(v))
}

func TestSellTrailingStopExecutesOnStopMargin(t *testing.T) {
	m := NewManager()
	pair := mustPair(t)
	cfg := domain.TrailingConfig{
		TrailingPercentage: decimal.RequireFromString("2"),
		StopMargin:         margin("-5"),
		StopAction:         domain.StopActionExecute,
	}
	m.InitiateSellTrailing(pair, domain.NewPositionId(), cfg, domain.MustPrice(decimal.RequireFromString("100")), margin("3"), "rule-a", time.Unix(0, 0))

	result, ok := m.UpdateSell(pair, margin("-6"), false)
	require.True(t, ok)
	assert.Equal(t, domain.TrailingTrigger, result.Outcome)

	_, stillActive := m.Active(pair)
	assert.False(t, stillActive)
}

func TestSellTrailingStopCancelsWhenStopActionIsCancel(t *testing.T) {
	m := NewManager()
	pair := mustPair(t)
	cfg := domain.TrailingConfig{
		TrailingPercentage: decimal.RequireFromString("2"),
		StopMargin:         margin("-5"),
		StopAction:         domain.StopActionCancel,
	}
	m.InitiateSellTrailing(pair, domain.NewPositionId(), cfg, domain.MustPrice(decimal.RequireFromString("100")), margin("3"), "rule-a", time.Unix(0, 0))

	result, ok := m.UpdateSell(pair, margin("-6"), false)
	require.True(t, ok)
	assert.Equal(t, domain.TrailingCancel, result.Outcome)
}

func TestSellTrailingPullbackTriggersWhenStillPositive(t *testing.T) {
	m := NewManager()
	pair := mustPair(t)
	cfg := domain.TrailingConfig{
		TrailingPercentage: decimal.RequireFromString("2"),
		StopMargin:         margin("-50"),
		StopAction:         domain.StopActionExecute,
	}
	m.InitiateSellTrailing(pair, domain.NewPositionId(), cfg, domain.MustPrice(decimal.RequireFromString("100")), margin("5"), "rule-a", time.Unix(0, 0))

	// Best climbs to 8, then pulls back below best-trailingPct (=6).
	_, _ = m.UpdateSell(pair, margin("8"), false)
	result, ok := m.UpdateSell(pair, margin("5.5"), false)
	require.True(t, ok)
	assert.Equal(t, domain.TrailingTrigger, result.Outcome, "pullback while still positive triggers the sell")
}

func TestSellTrailingPullbackCancelsWhenWouldLockInLoss(t *testing.T) {
	m := NewManager()
	pair := mustPair(t)
	cfg := domain.TrailingConfig{
		TrailingPercentage: decimal.RequireFromString("2"),
		StopMargin:         margin("-50"),
		StopAction:         domain.StopActionExecute,
	}
	// targetMargin (initial) is positive, so a pullback into negative
	// territory without target<0 must cancel, not trigger.
	m.InitiateSellTrailing(pair, domain.NewPositionId(), cfg, domain.MustPrice(decimal.RequireFromString("100")), margin("1"), "rule-a", time.Unix(0, 0))

	result, ok := m.UpdateSell(pair, margin("-1.5"), false)
	require.True(t, ok)
	assert.Equal(t, domain.TrailingCancel, result.Outcome)
}

func TestSellTrailingContinuesAndTracksBest(t *testing.T) {
	m := NewManager()
	pair := mustPair(t)
	cfg := domain.TrailingConfig{
		TrailingPercentage: decimal.RequireFromString("5"),
		StopMargin:         margin("-50"),
		StopAction:         domain.StopActionExecute,
	}
	m.InitiateSellTrailing(pair, domain.NewPositionId(), cfg, domain.MustPrice(decimal.RequireFromString("100")), margin("3"), "rule-a", time.Unix(0, 0))

	result, ok := m.UpdateSell(pair, margin("4"), false)
	require.True(t, ok)
	assert.Equal(t, domain.TrailingContinue, result.Outcome)

	state, active := m.Active(pair)
	require.True(t, active)
	assert.Equal(t, 0, state.BestMargin.Cmp(margin("4")))
}

func TestBuyTrailingTriggersOnReboundPastBand(t *testing.T) {
	m := NewManager()
	pair := mustPair(t)
	cfg := domain.TrailingConfig{
		TrailingPercentage: decimal.RequireFromString("1"),
		StopMargin:         margin("10"),
		StopAction:         domain.StopActionExecute,
	}
	initial := domain.MustPrice(decimal.RequireFromString("100"))
	m.InitiateBuyTrailing(pair, domain.MustMoney(decimal.RequireFromString("500"), "USDT"), cfg, initial, "rule-b", time.Unix(0, 0))

	// Price drops to 95 (margin -5%), improving best.
	_, _ = m.UpdateBuy(pair, domain.MustPrice(decimal.RequireFromString("95")), false)
	// Price rebounds to 97 (margin -3%), > best(-5) + trailing(1) = -4 -> trigger.
	result, ok := m.UpdateBuy(pair, domain.MustPrice(decimal.RequireFromString("97")), false)
	require.True(t, ok)
	assert.Equal(t, domain.TrailingTrigger, result.Outcome)
}

func TestBuyTrailingStopExecutesWhenPriceRunsAway(t *testing.T) {
	m := NewManager()
	pair := mustPair(t)
	cfg := domain.TrailingConfig{
		TrailingPercentage: decimal.RequireFromString("1"),
		StopMargin:         margin("5"),
		StopAction:         domain.StopActionExecute,
	}
	initial := domain.MustPrice(decimal.RequireFromString("100"))
	m.InitiateBuyTrailing(pair, domain.MustMoney(decimal.RequireFromString("500"), "USDT"), cfg, initial, "rule-b", time.Unix(0, 0))

	result, ok := m.UpdateBuy(pair, domain.MustPrice(decimal.RequireFromString("106")), false)
	require.True(t, ok)
	assert.Equal(t, domain.TrailingTrigger, result.Outcome)
}

func TestDisabledPairRemovesState(t *testing.T) {
	m := NewManager()
	pair := mustPair(t)
	cfg := domain.TrailingConfig{TrailingPercentage: decimal.RequireFromString("1"), StopMargin: margin("5")}
	m.InitiateSellTrailing(pair, domain.NewPositionId(), cfg, domain.MustPrice(decimal.RequireFromString("100")), margin("1"), "r", time.Unix(0, 0))

	result, ok := m.UpdateSell(pair, margin("1"), true)
	require.True(t, ok)
	assert.Equal(t, domain.TrailingDisabled, result.Outcome)

	_, active := m.Active(pair)
	assert.False(t, active)
}

func TestInitiatingOppositeDirectionReplacesState(t *testing.T) {
	m := NewManager()
	pair := mustPair(t)
	cfg := domain.TrailingConfig{TrailingPercentage: decimal.RequireFromString("1"), StopMargin: margin("5")}
	m.InitiateBuyTrailing(pair, domain.MustMoney(decimal.RequireFromString("100"), "USDT"), cfg, domain.MustPrice(decimal.RequireFromString("100")), "r", time.Unix(0, 0))
	m.InitiateSellTrailing(pair, domain.NewPositionId(), cfg, domain.MustPrice(decimal.RequireFromString("100")), margin("1"), "r", time.Unix(0, 0))

	state, ok := m.Active(pair)
	require.True(t, ok)
	assert.Equal(t, domain.TrailingSell, state.Direction)
}
