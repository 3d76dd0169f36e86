package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
	"github.com/alejandrodnm/cryptoengine/internal/rules"
)

func toBound(b BoundConfig) (rules.Bound, error) {
	var out rules.Bound
	if b.Min != nil {
		v := decimal.NewFromFloat(*b.Min)
		out.Min = &v
	}
	if b.Max != nil {
		v := decimal.NewFromFloat(*b.Max)
		out.Max = &v
	}
	return out, nil
}

func toCondition(c ConditionConfig) (rules.Condition, error) {
	var out rules.Condition

	for _, sc := range c.Signals {
		volume, err := toBound(sc.Volume)
		if err != nil {
			return out, err
		}
		volumeChange, err := toBound(sc.VolumeChange)
		if err != nil {
			return out, err
		}
		price, err := toBound(sc.Price)
		if err != nil {
			return out, err
		}
		priceChange, err := toBound(sc.PriceChange)
		if err != nil {
			return out, err
		}
		rating, err := toBound(sc.Rating)
		if err != nil {
			return out, err
		}
		ratingChange, err := toBound(sc.RatingChange)
		if err != nil {
			return out, err
		}
		volatility, err := toBound(sc.Volatility)
		if err != nil {
			return out, err
		}
		out.Signals = append(out.Signals, rules.SignalCondition{
			Name:         sc.Name,
			Volume:       volume,
			VolumeChange: volumeChange,
			Price:        price,
			PriceChange:  priceChange,
			Rating:       rating,
			RatingChange: ratingChange,
			Volatility:   volatility,
		})
	}

	var err error
	if out.GlobalRating, err = toBound(c.GlobalRating); err != nil {
		return out, err
	}
	out.AllowedPairs = c.AllowedPairs
	out.MinAge = c.MinAge
	out.MaxAge = c.MaxAge
	out.MinLastBuyAge = c.MinLastBuyAge
	out.MaxLastBuyAge = c.MaxLastBuyAge
	if out.Margin, err = toBound(c.Margin); err != nil {
		return out, err
	}
	if out.MarginChange, err = toBound(c.MarginChange); err != nil {
		return out, err
	}
	if out.Amount, err = toBound(c.Amount); err != nil {
		return out, err
	}
	if out.Cost, err = toBound(c.Cost); err != nil {
		return out, err
	}
	if out.DCALevel, err = toBound(c.DCALevel); err != nil {
		return out, err
	}
	out.SignalRuleIn = c.SignalRuleIn

	return out, nil
}

func toAction(s string) (rules.Action, error) {
	switch s {
	case "Buy":
		return rules.ActionBuy, nil
	case "Sell":
		return rules.ActionSell, nil
	case "DCA":
		return rules.ActionDCA, nil
	case "Swap":
		return rules.ActionSwap, nil
	case "StopLoss":
		return rules.ActionStopLoss, nil
	case "TakeProfit":
		return rules.ActionTakeProfit, nil
	case "Alert":
		return rules.ActionAlert, nil
	default:
		return "", &domain.ConfigurationError{Op: "config.toAction", Reason: fmt.Sprintf("unknown rule action %q", s)}
	}
}

func toStopAction(s string) (domain.StopAction, error) {
	switch s {
	case "", "Execute":
		return domain.StopActionExecute, nil
	case "Cancel":
		return domain.StopActionCancel, nil
	default:
		return "", &domain.ConfigurationError{Op: "config.toStopAction", Reason: fmt.Sprintf("unknown stop action %q", s)}
	}
}

func toTrailing(t *TrailingConfigYAML) (*domain.TrailingConfig, error) {
	if t == nil {
		return nil, nil
	}
	stopAction, err := toStopAction(t.StopAction)
	if err != nil {
		return nil, err
	}
	return &domain.TrailingConfig{
		TrailingPercentage: decimal.NewFromFloat(t.Percentage),
		StopMargin:         domain.NewMargin(decimal.NewFromFloat(t.StopMargin)),
		StopAction:         stopAction,
	}, nil
}

func toMode(s string) rules.Mode {
	switch s {
	case "highest_priority":
		return rules.ModeHighestPriority
	case "all_matches":
		return rules.ModeAllMatches
	default:
		return rules.ModeFirstMatch
	}
}

// BuildRuleSet translates a YAML rule list plus processing mode into a
// compiled rules.RuleSet.
func BuildRuleSet(configured []RuleConfig, mode string) (rules.RuleSet, error) {
	out := rules.RuleSet{Mode: toMode(mode)}

	for _, rc := range configured {
		cond, err := toCondition(rc.Condition)
		if err != nil {
			return out, err
		}
		action, err := toAction(rc.Action)
		if err != nil {
			return out, err
		}
		trailing, err := toTrailing(rc.Trailing)
		if err != nil {
			return out, err
		}
		out.Rules = append(out.Rules, &rules.Rule{
			Name:      rc.Name,
			Enabled:   rc.Enabled,
			Condition: cond,
			Action:    action,
			Priority:  rc.Priority,
			Trailing:  trailing,
		})
	}

	return out, nil
}
