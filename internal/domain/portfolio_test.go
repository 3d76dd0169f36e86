package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPortfolio(t *testing.T) *Portfolio {
	t.Helper()
	pf, err := NewPortfolio("main", "USDT", MustMoney(d("1000"), "USDT"), 3, MustMoney(d("10"), "USDT"))
	require.NoError(t, err)
	return pf
}

func TestNewPortfolioRejectsBadInputs(t *testing.T) {
	_, err := NewPortfolio("main", "", MustMoney(d("1000"), "USDT"), 3, ZeroMoney("USDT"))
	assert.Error(t, err)

	_, err = NewPortfolio("main", "USDT", MustMoney(d("1000"), "USDT"), 0, ZeroMoney("USDT"))
	assert.Error(t, err)
}

func TestCanOpenPositionEnforcesP2Uniqueness(t *testing.T) {
	pf := newTestPortfolio(t)
	pair := MustTradingPair("BTC", "USDT")
	cost := MustMoney(d("100"), "USDT")

	require.NoError(t, pf.RecordPositionOpened(NewPositionId(), pair, cost))
	err := pf.CanOpenPosition(pair, cost)
	assert.Error(t, err, "P2: a pair may have at most one open position")
}

func TestCanOpenPositionEnforcesP3MaxPositions(t *testing.T) {
	pf := newTestPortfolio(t)
	cost := MustMoney(d("10"), "USDT")

	require.NoError(t, pf.RecordPositionOpened(NewPositionId(), MustTradingPair("BTC", "USDT"), cost))
	require.NoError(t, pf.RecordPositionOpened(NewPositionId(), MustTradingPair("ETH", "USDT"), cost))
	require.NoError(t, pf.RecordPositionOpened(NewPositionId(), MustTradingPair("SOL", "USDT"), cost))

	err := pf.CanOpenPosition(MustTradingPair("ADA", "USDT"), cost)
	assert.Error(t, err)
}

func TestCanOpenPositionEnforcesMinCostAndAffordability(t *testing.T) {
	pf := newTestPortfolio(t)
	pair := MustTradingPair("BTC", "USDT")

	err := pf.CanOpenPosition(pair, MustMoney(d("1"), "USDT"))
	assert.Error(t, err, "below minPositionCost")

	err = pf.CanOpenPosition(pair, MustMoney(d("100000"), "USDT"))
	assert.Error(t, err, "exceeds available balance")
}

func TestRecordPositionOpenedMovesAvailableToReserved(t *testing.T) {
	pf := newTestPortfolio(t)
	pair := MustTradingPair("BTC", "USDT")
	cost := MustMoney(d("100"), "USDT")

	require.NoError(t, pf.RecordPositionOpened(NewPositionId(), pair, cost))

	bal := pf.Balance()
	assert.Equal(t, 0, bal.Available.Amount().Cmp(d("900")))
	assert.Equal(t, 0, bal.Reserved.Amount().Cmp(d("100")))
	assert.Equal(t, 0, bal.Total.Amount().Cmp(d("1000")))
}

func TestRecordPositionClosedCreditsProfitToAvailableAndTotal(t *testing.T) {
	pf := newTestPortfolio(t)
	pair := MustTradingPair("BTC", "USDT")
	id := NewPositionId()
	cost := MustMoney(d("100"), "USDT")
	require.NoError(t, pf.RecordPositionOpened(id, pair, cost))

	proceeds := MustMoney(d("120"), "USDT")
	require.NoError(t, pf.RecordPositionClosed(id, pair, proceeds))

	bal := pf.Balance()
	assert.Equal(t, 0, bal.Available.Amount().Cmp(d("1020")))
	assert.Equal(t, 0, bal.Reserved.Amount().Cmp(d("0")))
	assert.Equal(t, 0, bal.Total.Amount().Cmp(d("1020")))
	assert.False(t, pf.HasPosition(pair))
}

func TestRecordPositionClosedTotalLossLeavesAvailableAtZero(t *testing.T) {
	// A portfolio whose whole balance is reserved by one position, so a
	// total loss on close brings available down to exactly zero.
	pf, err := NewPortfolio("tight", "USDT", MustMoney(d("100"), "USDT"), 1, ZeroMoney("USDT"))
	require.NoError(t, err)
	pair := MustTradingPair("BTC", "USDT")
	id := NewPositionId()
	require.NoError(t, pf.RecordPositionOpened(id, pair, MustMoney(d("100"), "USDT")))
	// available is now 0; closing with proceeds 0 means pnl = -100, so
	// available = 0 + 100 released - 100 lost = 0 and total drops to 0.
	require.NoError(t, pf.RecordPositionClosed(id, pair, ZeroMoney("USDT")))

	bal := pf.Balance()
	assert.True(t, bal.Available.IsZero())
	assert.Equal(t, 0, bal.Total.Amount().Cmp(d("0")))

	events := pf.DrainEvents()
	assert.Empty(t, events, "a total loss on close does not raise a balance warning event")
}

func TestSyncBalanceClampsWhenExchangeTotalBelowReserved(t *testing.T) {
	pf := newTestPortfolio(t)
	pair := MustTradingPair("BTC", "USDT")
	require.NoError(t, pf.RecordPositionOpened(NewPositionId(), pair, MustMoney(d("500"), "USDT")))

	pf.SyncBalance(MustMoney(d("300"), "USDT"))

	bal := pf.Balance()
	assert.Equal(t, 0, bal.Reserved.Amount().Cmp(d("300")))
	assert.True(t, bal.Available.IsZero())

	events := pf.DrainEvents()
	require.Len(t, events, 1)
	_, ok := events[0].(PortfolioBalanceWarning)
	assert.True(t, ok)
}

func TestCheckInvariantsDetectsBrokenP1(t *testing.T) {
	pf := newTestPortfolio(t)
	require.NoError(t, pf.CheckInvariants())

	pf.balance.Total = MustMoney(d("999"), "USDT")
	assert.Error(t, pf.CheckInvariants(), "available 1000 + reserved 0 != total 999")
}
