// Package rules implements the predicate engine that evaluates a rule's
// constraints against a RuleEvaluationContext: conditions AND-compose
// within a rule, and an ordered rule list composes per one of the modes in
// Mode.
package rules

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
)

// Bound is an optional inclusive min/max pair over a decimal-valued field.
// A zero-value Bound (both nil) is trivially satisfied.
type Bound struct {
	Min *domain.Decimal
	Max *domain.Decimal
}

func (b Bound) check(actual *domain.Decimal) bool {
	if b.Min == nil && b.Max == nil {
		return true
	}
	if actual == nil {
		return false
	}
	if b.Min != nil && actual.LessThan(*b.Min) {
		return false
	}
	if b.Max != nil && actual.GreaterThan(*b.Max) {
		return false
	}
	return true
}

// isSet reports whether either bound is configured.
func (b Bound) isSet() bool { return b.Min != nil || b.Max != nil }

// SignalCondition bounds one named signal's fields.
type SignalCondition struct {
	Name          string
	Volume        Bound
	VolumeChange  Bound
	Price         Bound
	PriceChange   Bound
	Rating        Bound
	RatingChange  Bound
	Volatility    Bound
}

// Condition is one AND-composed set of optional bounds. A Rule's
// conditions all AND together (§4.1: "AND-compose within a rule").
type Condition struct {
	Signals []SignalCondition

	GlobalRating Bound
	AllowedPairs []string // case-insensitive; empty means unconstrained

	MinAge         *float64
	MaxAge         *float64
	MinLastBuyAge  *float64
	MaxLastBuyAge  *float64
	Margin         Bound
	MarginChange   Bound
	Amount         Bound
	Cost           Bound
	DCALevel       Bound
	SignalRuleIn   []string // position.SignalRule must be one of these
}

// predicate is a single atomic check compiled from a Condition.
type predicate func(domain.RuleEvaluationContext) bool

// Compile turns one Condition into the conjunction of its atomic
// predicates, per §4.1.
func (c Condition) Compile() []predicate {
	var preds []predicate

	for _, sc := range c.Signals {
		sc := sc
		if sc.Volume.isSet() {
			preds = append(preds, signalFieldPredicate(sc.Name, sc.Volume, func(s domain.SignalSnapshot) *domain.Decimal { return s.Volume }))
		}
		if sc.VolumeChange.isSet() {
			preds = append(preds, signalFieldPredicate(sc.Name, sc.VolumeChange, func(s domain.SignalSnapshot) *domain.Decimal { return s.VolumeChange }))
		}
		if sc.Price.isSet() {
			preds = append(preds, signalFieldPredicate(sc.Name, sc.Price, func(s domain.SignalSnapshot) *domain.Decimal { return s.Price }))
		}
		if sc.PriceChange.isSet() {
			preds = append(preds, signalFieldPredicate(sc.Name, sc.PriceChange, func(s domain.SignalSnapshot) *domain.Decimal { return s.PriceChange }))
		}
		if sc.Rating.isSet() {
			preds = append(preds, signalFieldPredicate(sc.Name, sc.Rating, func(s domain.SignalSnapshot) *domain.Decimal { return s.Rating }))
		}
		if sc.RatingChange.isSet() {
			preds = append(preds, signalFieldPredicate(sc.Name, sc.RatingChange, func(s domain.SignalSnapshot) *domain.Decimal { return s.RatingChange }))
		}
		if sc.Volatility.isSet() {
			preds = append(preds, signalFieldPredicate(sc.Name, sc.Volatility, func(s domain.SignalSnapshot) *domain.Decimal { return s.Volatility }))
		}
	}

	if c.GlobalRating.isSet() {
		b := c.GlobalRating
		preds = append(preds, func(ctx domain.RuleEvaluationContext) bool {
			return b.check(ctx.GlobalRating)
		})
	}

	if len(c.AllowedPairs) > 0 {
		allowed := make(map[string]struct{}, len(c.AllowedPairs))
		for _, p := range c.AllowedPairs {
			allowed[strings.ToUpper(strings.TrimSpace(p))] = struct{}{}
		}
		preds = append(preds, func(ctx domain.RuleEvaluationContext) bool {
			_, ok := allowed[ctx.Pair.Symbol()]
			return ok
		})
	}

	if c.MinAge != nil || c.MaxAge != nil {
		minAge, maxAge := c.MinAge, c.MaxAge
		preds = append(preds, func(ctx domain.RuleEvaluationContext) bool {
			if ctx.Position == nil {
				return false
			}
			age := ctx.Position.CurrentAge.Seconds() / ctx.EffectiveSpeedMultiplier()
			if minAge != nil && age < *minAge {
				return false
			}
			if maxAge != nil && age > *maxAge {
				return false
			}
			return true
		})
	}

	if c.MinLastBuyAge != nil || c.MaxLastBuyAge != nil {
		minAge, maxAge := c.MinLastBuyAge, c.MaxLastBuyAge
		preds = append(preds, func(ctx domain.RuleEvaluationContext) bool {
			if ctx.Position == nil {
				return false
			}
			age := ctx.Position.LastBuyAge.Seconds() / ctx.EffectiveSpeedMultiplier()
			if minAge != nil && age < *minAge {
				return false
			}
			if maxAge != nil && age > *maxAge {
				return false
			}
			return true
		})
	}

	if c.Margin.isSet() {
		b := c.Margin
		preds = append(preds, func(ctx domain.RuleEvaluationContext) bool {
			if ctx.Position == nil {
				return false
			}
			v := ctx.Position.CurrentMargin.Percent()
			return b.check(&v)
		})
	}

	if c.MarginChange.isSet() {
		b := c.MarginChange
		preds = append(preds, func(ctx domain.RuleEvaluationContext) bool {
			if ctx.Position == nil || ctx.Position.LastBuyMargin == nil {
				return false
			}
			change := ctx.Position.CurrentMargin.Sub(*ctx.Position.LastBuyMargin).Percent()
			return b.check(&change)
		})
	}

	if c.Amount.isSet() {
		b := c.Amount
		preds = append(preds, func(ctx domain.RuleEvaluationContext) bool {
			if ctx.Position == nil {
				return false
			}
			v := ctx.Position.TotalAmount.Value()
			return b.check(&v)
		})
	}

	if c.Cost.isSet() {
		b := c.Cost
		preds = append(preds, func(ctx domain.RuleEvaluationContext) bool {
			if ctx.Position == nil {
				return false
			}
			v := ctx.Position.CurrentCost.Amount()
			return b.check(&v)
		})
	}

	if c.DCALevel.isSet() {
		b := c.DCALevel
		preds = append(preds, func(ctx domain.RuleEvaluationContext) bool {
			if ctx.Position == nil {
				return false
			}
			v := decimalFromInt(ctx.Position.DCALevel)
			return b.check(&v)
		})
	}

	if len(c.SignalRuleIn) > 0 {
		set := make(map[string]struct{}, len(c.SignalRuleIn))
		for _, s := range c.SignalRuleIn {
			set[s] = struct{}{}
		}
		preds = append(preds, func(ctx domain.RuleEvaluationContext) bool {
			if ctx.Position == nil {
				return false
			}
			_, ok := set[ctx.Position.SignalRule]
			return ok
		})
	}

	return preds
}

func signalFieldPredicate(name string, b Bound, field func(domain.SignalSnapshot) *domain.Decimal) predicate {
	return func(ctx domain.RuleEvaluationContext) bool {
		snap, ok := ctx.Signals[name]
		if !ok {
			return false
		}
		return b.check(field(snap))
	}
}

func decimalFromInt(v int) domain.Decimal {
	return decimal.NewFromInt(int64(v))
}
