package config

import (
	"fmt"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
)

// Validate checks invariants Load and every hot reload must satisfy
// before the config is accepted. On hot reload, a failing Validate means
// the previous config is retained (spec §7 ConfigurationError).
func Validate(cfg *Config) error {
	if cfg.Trading.Market == "" {
		return &domain.ConfigurationError{Op: "config.Validate", Reason: "trading.market must not be empty"}
	}
	if cfg.Trading.MaxPositions <= 0 {
		return &domain.ConfigurationError{Op: "config.Validate", Reason: "trading.max_positions must be > 0"}
	}
	if cfg.Trading.Virtual && cfg.Trading.InitialBalance <= 0 {
		return &domain.ConfigurationError{Op: "config.Validate", Reason: "trading.initial_balance must be > 0 in virtual mode"}
	}
	switch cfg.Trading.BuyType {
	case "market", "limit":
	default:
		return &domain.ConfigurationError{Op: "config.Validate", Reason: fmt.Sprintf("trading.buy_type invalid: %q", cfg.Trading.BuyType)}
	}
	switch cfg.Trading.SellType {
	case "market", "limit":
	default:
		return &domain.ConfigurationError{Op: "config.Validate", Reason: fmt.Sprintf("trading.sell_type invalid: %q", cfg.Trading.SellType)}
	}

	for _, s := range cfg.Signals {
		if s.Name == "" {
			return &domain.ConfigurationError{Op: "config.Validate", Reason: "signals entry missing name"}
		}
		if s.PollingIntervalS <= 0 {
			return &domain.ConfigurationError{Op: "config.Validate", Reason: fmt.Sprintf("signals[%s].polling_interval_s must be > 0", s.Name)}
		}
	}

	switch cfg.Rules.ProcessingMode {
	case "first_match", "highest_priority", "all_matches":
	default:
		return &domain.ConfigurationError{Op: "config.Validate", Reason: fmt.Sprintf("rules.processing_mode invalid: %q", cfg.Rules.ProcessingMode)}
	}

	if _, err := BuildRuleSet(cfg.Rules.SignalRules, cfg.Rules.ProcessingMode); err != nil {
		return err
	}
	if _, err := BuildRuleSet(cfg.Rules.TradingRules, cfg.Rules.ProcessingMode); err != nil {
		return err
	}

	return nil
}
