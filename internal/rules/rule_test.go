package rules

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
)

func dptr(v string) *domain.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func pair(t *testing.T, sym string) domain.TradingPair {
	t.Helper()
	p, err := domain.ParseSymbol(sym, "USDT")
	require.NoError(t, err)
	return p
}

func TestConditionMissingSignalIsFalse(t *testing.T) {
	c := Condition{Signals: []SignalCondition{
		{Name: "rsi", Rating: Bound{Min: dptr("0.5")}},
	}}
	preds := c.Compile()
	require.Len(t, preds, 1)

	ctx := domain.RuleEvaluationContext{Signals: map[string]domain.SignalSnapshot{}}
	assert.False(t, preds[0](ctx), "predicate referencing an absent signal must evaluate false")
}

func TestConditionEmptyBoundsTriviallyTrue(t *testing.T) {
	c := Condition{}
	assert.Empty(t, c.Compile())
}

func TestConditionAndComposition(t *testing.T) {
	c := Condition{
		Signals: []SignalCondition{
			{Name: "rsi", Rating: Bound{Min: dptr("0.3")}},
		},
		GlobalRating: Bound{Min: dptr("0")},
	}
	ctx := domain.RuleEvaluationContext{
		Signals:      map[string]domain.SignalSnapshot{"rsi": {Rating: dptr("0.5")}},
		GlobalRating: dptr("-0.1"),
	}
	rule := &Rule{Enabled: true, Condition: c, Action: ActionBuy}
	assert.False(t, rule.Matches(ctx), "global rating below the min bound must fail the whole conjunction")

	ctx.GlobalRating = dptr("0.2")
	assert.True(t, rule.Matches(ctx))
}

func TestRuleSetFirstMatch(t *testing.T) {
	rs := RuleSet{
		Mode: ModeFirstMatch,
		Rules: []*Rule{
			{Name: "a", Enabled: true, Action: ActionBuy},
			{Name: "b", Enabled: true, Action: ActionSell},
		},
	}
	got := rs.Evaluate(domain.RuleEvaluationContext{})
	require.NotNil(t, got)
	assert.Equal(t, "a", got.Name)
}

func TestRuleSetDisabledRulesAreSkipped(t *testing.T) {
	rs := RuleSet{
		Mode: ModeFirstMatch,
		Rules: []*Rule{
			{Name: "a", Enabled: false, Action: ActionBuy},
			{Name: "b", Enabled: true, Action: ActionSell},
		},
	}
	got := rs.Evaluate(domain.RuleEvaluationContext{})
	require.NotNil(t, got)
	assert.Equal(t, "b", got.Name)
}

func TestRuleSetHighestPriorityPicksLowestNumber(t *testing.T) {
	rs := RuleSet{
		Mode: ModeHighestPriority,
		Rules: []*Rule{
			{Name: "low-priority-number", Enabled: true, Priority: 1, Action: ActionBuy},
			{Name: "high-priority-number", Enabled: true, Priority: 5, Action: ActionSell},
		},
	}
	got := rs.Evaluate(domain.RuleEvaluationContext{})
	require.NotNil(t, got)
	assert.Equal(t, "low-priority-number", got.Name, "lowest numeric priority wins")
}

func TestRuleSetAllMatchesLastWins(t *testing.T) {
	rs := RuleSet{
		Mode: ModeAllMatches,
		Rules: []*Rule{
			{Name: "first", Enabled: true, Action: ActionBuy},
			{Name: "second", Enabled: true, Action: ActionSell},
			{Name: "third", Enabled: true, Action: ActionDCA},
		},
	}
	got := rs.Evaluate(domain.RuleEvaluationContext{})
	require.NotNil(t, got)
	assert.Equal(t, "third", got.Name)
}

func TestRuleSetNoMatchReturnsNil(t *testing.T) {
	rs := RuleSet{
		Mode: ModeFirstMatch,
		Rules: []*Rule{
			{Name: "a", Enabled: true, Condition: Condition{GlobalRating: Bound{Min: dptr("0.9")}}, Action: ActionBuy},
		},
	}
	got := rs.Evaluate(domain.RuleEvaluationContext{GlobalRating: dptr("0.1")})
	assert.Nil(t, got)
}

func TestAgePredicateScaledBySpeedMultiplier(t *testing.T) {
	minAge := 100.0
	c := Condition{MinAge: &minAge}
	rule := &Rule{Enabled: true, Condition: c, Action: ActionSell}

	pos := &domain.PositionSnapshot{CurrentAge: domain.Duration(150)}
	ctx := domain.RuleEvaluationContext{Position: pos, SpeedMultiplier: 1}
	assert.True(t, rule.Matches(ctx))

	// At 10x replay speed the same wall-clock age corresponds to 10x the
	// simulated duration, so it still clears a 100s bound.
	ctx.SpeedMultiplier = 10
	pos.CurrentAge = domain.Duration(1500)
	assert.True(t, rule.Matches(ctx))

	pos.CurrentAge = domain.Duration(50)
	assert.False(t, rule.Matches(ctx))
}

func TestMarginChangeRequiresLastBuyMargin(t *testing.T) {
	minChange := decimal.RequireFromString("1")
	c := Condition{MarginChange: Bound{Min: &minChange}}
	rule := &Rule{Enabled: true, Condition: c, Action: ActionDCA}

	pos := &domain.PositionSnapshot{CurrentMargin: domain.NewMargin(decimal.RequireFromString("5"))}
	ctx := domain.RuleEvaluationContext{Position: pos}
	assert.False(t, rule.Matches(ctx), "missing lastBuyMargin must fail the predicate")

	last := domain.NewMargin(decimal.RequireFromString("2"))
	pos.LastBuyMargin = &last
	assert.True(t, rule.Matches(ctx))
}

func TestTradingProcessorStopLossTakesPriorityOverRules(t *testing.T) {
	rs := RuleSet{Mode: ModeFirstMatch, Rules: []*Rule{
		{Name: "always-sell", Enabled: true, Action: ActionSell},
	}}
	tp := NewTradingProcessor(rs, StopLossConfig{
		Enabled:       true,
		Margin:        domain.NewMargin(decimal.RequireFromString("-10")),
		MinAgeSeconds: 60,
	}, domain.NewMargin(decimal.RequireFromString("20")))

	ctx := domain.RuleEvaluationContext{Pair: pair(t, "BTCUSDT")}
	margin := domain.NewMargin(decimal.RequireFromString("-15"))
	d := tp.Evaluate(domain.NewPositionId(), ctx, margin, 120, DCAGate{Enabled: true, MaxLevels: 5})
	assert.Equal(t, ActionStopLoss, d.Action)
}

func TestTradingProcessorTakeProfitBeatsRules(t *testing.T) {
	rs := RuleSet{Mode: ModeFirstMatch, Rules: []*Rule{
		{Name: "always-dca", Enabled: true, Action: ActionDCA},
	}}
	tp := NewTradingProcessor(rs, StopLossConfig{}, domain.NewMargin(decimal.RequireFromString("10")))

	ctx := domain.RuleEvaluationContext{Pair: pair(t, "ETHUSDT")}
	margin := domain.NewMargin(decimal.RequireFromString("12"))
	d := tp.Evaluate(domain.NewPositionId(), ctx, margin, 10, DCAGate{})
	assert.Equal(t, ActionTakeProfit, d.Action)
}

func TestTradingProcessorDCASuppressedAtMaxLevel(t *testing.T) {
	rs := RuleSet{Mode: ModeFirstMatch, Rules: []*Rule{
		{Name: "dca-rule", Enabled: true, Action: ActionDCA},
	}}
	tp := NewTradingProcessor(rs, StopLossConfig{}, domain.NewMargin(decimal.RequireFromString("100")))

	ctx := domain.RuleEvaluationContext{Pair: pair(t, "ETHUSDT")}
	margin := domain.NewMargin(decimal.RequireFromString("-1"))
	d := tp.Evaluate(domain.NewPositionId(), ctx, margin, 10, DCAGate{Enabled: true, Level: 3, MaxLevels: 3})
	assert.Empty(t, d.Action)
	assert.Contains(t, d.Reason, "DCA-not-allowed")
}

func TestSignalProcessorExcludesHeldPairsUnlessSwap(t *testing.T) {
	rs := RuleSet{Mode: ModeFirstMatch, Rules: []*Rule{
		{Name: "buy-anything", Enabled: true, Action: ActionBuy},
	}}
	sp := NewSignalProcessor(rs)

	btc := pair(t, "BTCUSDT")
	eth := pair(t, "ETHUSDT")
	prices := map[string]domain.Price{
		btc.Symbol(): domain.MustPrice(decimal.RequireFromString("50000")),
		eth.Symbol(): domain.MustPrice(decimal.RequireFromString("3000")),
	}
	held := map[string]struct{}{btc.Symbol(): {}}

	got := sp.Process([]domain.TradingPair{btc, eth}, nil, prices, held, nil)
	require.Len(t, got, 1)
	assert.Equal(t, eth.Symbol(), got[0].Pair.Symbol())
}

func TestSignalProcessorSwapIncludesHeldPairs(t *testing.T) {
	rs := RuleSet{Mode: ModeFirstMatch, Rules: []*Rule{
		{Name: "swap-rule", Enabled: true, Action: ActionSwap},
	}}
	sp := NewSignalProcessor(rs)

	btc := pair(t, "BTCUSDT")
	prices := map[string]domain.Price{btc.Symbol(): domain.MustPrice(decimal.RequireFromString("50000"))}
	held := map[string]struct{}{btc.Symbol(): {}}

	got := sp.Process([]domain.TradingPair{btc}, nil, prices, held, nil)
	require.Len(t, got, 1)
	assert.Equal(t, ActionSwap, got[0].Rule.Action)
}

func TestSignalProcessorSkipsPairsWithoutPrice(t *testing.T) {
	rs := RuleSet{Mode: ModeFirstMatch, Rules: []*Rule{
		{Name: "buy-anything", Enabled: true, Action: ActionBuy},
	}}
	sp := NewSignalProcessor(rs)

	btc := pair(t, "BTCUSDT")
	got := sp.Process([]domain.TradingPair{btc}, nil, map[string]domain.Price{}, nil, nil)
	assert.Empty(t, got)
}
