package rules

import "github.com/alejandrodnm/cryptoengine/internal/domain"

// Action is the trading or signal action a matched rule produces.
type Action string

const (
	ActionBuy       Action = "BUY"
	ActionSell      Action = "SELL"
	ActionDCA       Action = "DCA"
	ActionSwap      Action = "SWAP"
	ActionStopLoss  Action = "STOP_LOSS"
	ActionTakeProfit Action = "TAKE_PROFIT"
	ActionAlert     Action = "ALERT"
)

// Rule names a condition, the action to take when it matches, the
// priority used in HighestPriority mode, and whether it participates in
// evaluation at all.
type Rule struct {
	Name      string
	Enabled   bool
	Condition Condition
	Action    Action
	Priority  int    // lower wins in HighestPriority mode
	Trailing  *domain.TrailingConfig

	compiled []predicate
}

// compile lazily compiles the rule's condition into predicates.
func (r *Rule) compile() []predicate {
	if r.compiled == nil {
		r.compiled = r.Condition.Compile()
	}
	return r.compiled
}

// Matches reports whether every predicate in the rule's condition holds
// for ctx. A rule with zero predicates matches unconditionally.
func (r *Rule) Matches(ctx domain.RuleEvaluationContext) bool {
	for _, p := range r.compile() {
		if !p(ctx) {
			return false
		}
	}
	return true
}

// Mode selects how a RuleSet resolves multiple candidate rules into a
// single winner, per §4.1.
type Mode string

const (
	// ModeFirstMatch returns the first rule (in list order) that matches.
	// This is the default mode.
	ModeFirstMatch Mode = "FIRST_MATCH"
	// ModeHighestPriority returns, among all matching rules, the one with
	// the lowest numeric Priority; ties break by list order.
	ModeHighestPriority Mode = "HIGHEST_PRIORITY"
	// ModeAllMatches walks every rule in order; the last one that matches
	// wins, overwriting earlier matches.
	ModeAllMatches Mode = "ALL_MATCHES"
)

// RuleSet is an ordered list of rules evaluated under one Mode. Disabled
// rules never participate.
type RuleSet struct {
	Mode  Mode
	Rules []*Rule
}

// enabled returns the rule list filtered to Enabled rules, preserving
// order, per "Enabled=false rules are filtered before sorting".
func (rs RuleSet) enabled() []*Rule {
	out := make([]*Rule, 0, len(rs.Rules))
	for _, r := range rs.Rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// Evaluate resolves ctx against the rule set and returns the single
// winning rule, or nil if none matched — which callers treat as no
// action.
func (rs RuleSet) Evaluate(ctx domain.RuleEvaluationContext) *Rule {
	rules := rs.enabled()

	switch rs.Mode {
	case ModeHighestPriority:
		var best *Rule
		for _, r := range rules {
			if !r.Matches(ctx) {
				continue
			}
			if best == nil || r.Priority < best.Priority {
				best = r
			}
		}
		return best

	case ModeAllMatches:
		var last *Rule
		for _, r := range rules {
			if r.Matches(ctx) {
				last = r
			}
		}
		return last

	case ModeFirstMatch:
		fallthrough
	default:
		for _, r := range rules {
			if r.Matches(ctx) {
				return r
			}
		}
		return nil
	}
}
