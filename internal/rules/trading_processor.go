package rules

import "github.com/alejandrodnm/cryptoengine/internal/domain"

// Decision is what the trading rule processor decided for one open
// position.
type Decision struct {
	PositionId domain.PositionId
	Pair       domain.TradingPair
	Action     Action
	Rule       *Rule   // nil for Stop-loss/Take-profit, which bypass the rule set
	Reason     string  // set when Action is empty (no decision) or DCA was suppressed
}

// StopLossConfig configures the always-checked stop-loss gate.
type StopLossConfig struct {
	Enabled       bool
	Margin        domain.Margin
	MinAgeSeconds float64
}

// DCAGate configures whether a matched DCA action is actually allowed
// through, independent of the rule's own conditions.
type DCAGate struct {
	Enabled       bool
	Level         int
	MaxLevels     int
}

// Allow reports whether a DCA action should proceed, and if not, why.
func (g DCAGate) Allow() (bool, string) {
	if !g.Enabled {
		return false, "DCA-not-allowed: dca disabled"
	}
	if g.Level >= g.MaxLevels {
		return false, "DCA-not-allowed: max DCA levels reached"
	}
	return true, ""
}

// TradingProcessor evaluates, for each open position, the stop-loss and
// take-profit gates and then the configured trading RuleSet (C8).
type TradingProcessor struct {
	RuleSet          RuleSet
	StopLoss         StopLossConfig
	TakeProfitMargin domain.Margin
}

// NewTradingProcessor wraps the configured rule set and gates.
func NewTradingProcessor(ruleSet RuleSet, stopLoss StopLossConfig, takeProfitMargin domain.Margin) *TradingProcessor {
	return &TradingProcessor{RuleSet: ruleSet, StopLoss: stopLoss, TakeProfitMargin: takeProfitMargin}
}

// Evaluate decides the action for one position given its context and
// current margin/age. dca gates whether a matched DCA rule is honored.
func (p *TradingProcessor) Evaluate(
	positionId domain.PositionId,
	ctx domain.RuleEvaluationContext,
	currentMargin domain.Margin,
	ageSeconds float64,
	dca DCAGate,
) Decision {
	d := Decision{PositionId: positionId, Pair: ctx.Pair}

	if p.StopLoss.Enabled && currentMargin.LessThanOrEqual(p.StopLoss.Margin) && ageSeconds >= p.StopLoss.MinAgeSeconds {
		d.Action = ActionStopLoss
		return d
	}

	if currentMargin.GreaterThanOrEqual(p.TakeProfitMargin) {
		d.Action = ActionTakeProfit
		return d
	}

	rule := p.RuleSet.Evaluate(ctx)
	if rule == nil {
		d.Reason = "no rule matched"
		return d
	}

	if rule.Action == ActionDCA {
		if allowed, reason := dca.Allow(); !allowed {
			d.Reason = reason
			return d
		}
	}

	d.Action = rule.Action
	d.Rule = rule
	return d
}
