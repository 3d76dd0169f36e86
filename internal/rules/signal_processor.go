package rules

import "github.com/alejandrodnm/cryptoengine/internal/domain"

// SignalCandidate is one pair that matched a signal rule, ready for the
// executor to turn into a buy or swap intent.
type SignalCandidate struct {
	Pair         domain.TradingPair
	Rule         *Rule
	Signals      map[string]domain.SignalSnapshot
	CurrentPrice domain.Price
}

// SignalProcessor evaluates the configured signal RuleSet against a
// market's pair universe to find buy/swap candidates (C7).
type SignalProcessor struct {
	RuleSet RuleSet
}

// NewSignalProcessor wraps ruleSet for signal-side evaluation.
func NewSignalProcessor(ruleSet RuleSet) *SignalProcessor {
	return &SignalProcessor{RuleSet: ruleSet}
}

// Process evaluates every pair in universe that is not already excluded
// (open position, unless the matching rule's action is Swap) and returns
// the ordered list of candidates whose signal rules matched.
//
// signals maps pair symbol -> signal name -> snapshot; prices maps pair
// symbol -> current price; held is the set of pair symbols the portfolio
// already has an open position in.
func (p *SignalProcessor) Process(
	universe []domain.TradingPair,
	signals map[string]map[string]domain.SignalSnapshot,
	prices map[string]domain.Price,
	held map[string]struct{},
	globalRating *domain.Decimal,
) []SignalCandidate {
	var out []SignalCandidate

	for _, pair := range universe {
		sym := pair.Symbol()
		price, hasPrice := prices[sym]
		if !hasPrice {
			continue
		}

		ctx := domain.RuleEvaluationContext{
			Pair:         pair,
			Signals:      signals[sym],
			GlobalRating: globalRating,
			Position:     nil,
		}

		rule := p.RuleSet.Evaluate(ctx)
		if rule == nil {
			continue
		}

		if _, isHeld := held[sym]; isHeld && rule.Action != ActionSwap {
			continue
		}

		out = append(out, SignalCandidate{
			Pair:         pair,
			Rule:         rule,
			Signals:      signals[sym],
			CurrentPrice: price,
		})
	}

	return out
}
