package domain

// SignalSnapshot is a point-in-time projection of one provider's signal for
// one pair. Every field is optional: a missing field evaluates any rule
// predicate referencing it as false, never true and never "skip".
type SignalSnapshot struct {
	Volume         *Decimal
	VolumeChange   *Decimal
	Price          *Decimal
	PriceChange    *Decimal
	Rating         *Decimal // in [-1, 1]
	RatingChange   *Decimal
	Volatility     *Decimal
}

// PositionSnapshot is a projection of an open position used as rule
// evaluation context.
type PositionSnapshot struct {
	Pair           TradingPair
	CurrentAge     Duration
	LastBuyAge     Duration
	CurrentMargin  Margin
	LastBuyMargin  *Margin
	TotalAmount    Quantity
	CurrentCost    Money
	DCALevel       int
	SignalRule     string
}

// Duration wraps a plain float64 number of seconds so rule predicates can
// express age bounds without importing time.Duration semantics into the
// rule engine (ages are compared after dividing by speedMultiplier, which
// is a pure scalar operation).
type Duration float64

// Seconds returns the duration as a float64 number of seconds.
func (d Duration) Seconds() float64 { return float64(d) }

// RuleEvaluationContext bundles everything a rule's predicates may
// reference: the pair under consideration, per-signal-name snapshots, an
// optional market-wide rating, an optional position snapshot (empty for
// signal-side/buy-candidate evaluation), and the speed multiplier used to
// scale age-based predicates during replay.
type RuleEvaluationContext struct {
	Pair             TradingPair
	Signals          map[string]SignalSnapshot
	GlobalRating     *Decimal
	Position         *PositionSnapshot
	SpeedMultiplier  float64
}

// EffectiveSpeedMultiplier returns 1.0 when unset, per spec: age scaling is
// off in live mode and only active during replay.
func (c RuleEvaluationContext) EffectiveSpeedMultiplier() float64 {
	if c.SpeedMultiplier <= 0 {
		return 1.0
	}
	return c.SpeedMultiplier
}
