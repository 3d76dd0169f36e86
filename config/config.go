// Package config loads the engine's YAML configuration, applies .env
// overrides for secrets, and fills in defaults. Config is immutable once
// loaded; a hot reload (internal/confwatch) builds a new *Config and
// atomically swaps it in rather than mutating one in place.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
	"github.com/alejandrodnm/cryptoengine/internal/rules"
)

// Config is the complete configuration surface (§6).
type Config struct {
	Core         CoreConfig         `yaml:"core"`
	Trading      TradingConfig      `yaml:"trading"`
	Signals      []SignalConfig     `yaml:"signals"`
	Rules        RulesConfig        `yaml:"rules"`
	Notification NotificationConfig `yaml:"notification"`
	Storage      StorageConfig      `yaml:"storage"`
	Log          LogConfig          `yaml:"log"`
}

// CoreConfig controls instance-wide, non-trading behavior.
type CoreConfig struct {
	InstanceName         string `yaml:"instance_name"`
	HealthCheckIntervalS int    `yaml:"health_check_interval_s"`
	PasswordProtected    bool   `yaml:"password_protected"`
	TimezoneOffsetHours  int    `yaml:"timezone_offset_hours"`
	SpeedMultiplier      float64 `yaml:"speed_multiplier"`
}

// HealthCheckInterval as a time.Duration.
func (c CoreConfig) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheckIntervalS) * time.Second
}

// DCALevelConfig is one rung of the DCA ladder.
type DCALevelConfig struct {
	Multiplier float64 `yaml:"multiplier"`
	Margin     float64 `yaml:"margin"`
}

// TradingConfig controls the market this instance trades and its risk
// limits.
type TradingConfig struct {
	Market          string           `yaml:"market"`
	Exchange        string           `yaml:"exchange"`
	Virtual         bool             `yaml:"virtual"`
	BuyType         string           `yaml:"buy_type"` // market | limit
	SellType        string           `yaml:"sell_type"`
	BuyMaxCost      float64          `yaml:"buy_max_cost"`
	MaxPositions    int              `yaml:"max_positions"`
	MinPositionCost float64          `yaml:"min_position_cost"`
	ExcludedPairs   []string         `yaml:"excluded_pairs"`
	AllowedPairs    []string         `yaml:"allowed_pairs"`
	BlockedPairs    []string         `yaml:"blocked_pairs"`
	InitialBalance  float64          `yaml:"initial_balance"` // virtual mode only
	DCALevels       []DCALevelConfig `yaml:"dca_levels"`
	FeePercent      float64          `yaml:"fee_percent"`
}

// SignalConfig configures one signal provider instance.
type SignalConfig struct {
	Name             string                 `yaml:"name"`
	Type             string                 `yaml:"type"`
	PollingIntervalS int                    `yaml:"polling_interval_s"`
	SignalPeriod     string                 `yaml:"signal_period"`
	Params           map[string]interface{} `yaml:"params"`
}

// BoundConfig is the YAML shape of rules.Bound.
type BoundConfig struct {
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`
}

// SignalConditionConfig is the YAML shape of rules.SignalCondition.
type SignalConditionConfig struct {
	Name         string      `yaml:"name"`
	Volume       BoundConfig `yaml:"volume"`
	VolumeChange BoundConfig `yaml:"volume_change"`
	Price        BoundConfig `yaml:"price"`
	PriceChange  BoundConfig `yaml:"price_change"`
	Rating       BoundConfig `yaml:"rating"`
	RatingChange BoundConfig `yaml:"rating_change"`
	Volatility   BoundConfig `yaml:"volatility"`
}

// ConditionConfig is the YAML shape of rules.Condition.
type ConditionConfig struct {
	Signals       []SignalConditionConfig `yaml:"signals"`
	GlobalRating  BoundConfig             `yaml:"global_rating"`
	AllowedPairs  []string                `yaml:"allowed_pairs"`
	MinAge        *float64                `yaml:"min_age"`
	MaxAge        *float64                `yaml:"max_age"`
	MinLastBuyAge *float64                `yaml:"min_last_buy_age"`
	MaxLastBuyAge *float64                `yaml:"max_last_buy_age"`
	Margin        BoundConfig             `yaml:"margin"`
	MarginChange  BoundConfig             `yaml:"margin_change"`
	Amount        BoundConfig             `yaml:"amount"`
	Cost          BoundConfig             `yaml:"cost"`
	DCALevel      BoundConfig             `yaml:"dca_level"`
	SignalRuleIn  []string                `yaml:"signal_rule_in"`
}

// TrailingConfigYAML is the YAML shape of a rule's optional trailing block.
type TrailingConfigYAML struct {
	Percentage float64 `yaml:"pct"`
	StopMargin float64 `yaml:"stop_margin"`
	StopAction string  `yaml:"stop_action"` // Execute | Cancel
}

// RuleConfig is the YAML shape of rules.Rule.
type RuleConfig struct {
	Name      string          `yaml:"name"`
	Enabled   bool            `yaml:"enabled"`
	Priority  int             `yaml:"priority"`
	Action    string          `yaml:"action"`
	Trailing  *TrailingConfigYAML `yaml:"trailing"`
	Condition ConditionConfig `yaml:"conditions"`
}

// DCAPolicyConfig configures the DCA gate checked by the trading
// processor, independent of any individual rule's own conditions.
type DCAPolicyConfig struct {
	Enabled           bool    `yaml:"enabled"`
	MaxLevels         int     `yaml:"max_levels"`
	MinPriceDropPct   float64 `yaml:"min_price_drop_pct"`
	MinTimeBetweenS   int     `yaml:"min_time_between_s"`
	MaxTotalCost      float64 `yaml:"max_total_cost"`
}

// StopLossConfigYAML configures the always-checked stop-loss gate.
type StopLossConfigYAML struct {
	Enabled    bool    `yaml:"enabled"`
	Margin     float64 `yaml:"margin"`
	MinAgeSecs float64 `yaml:"min_age_sec"`
}

// RulesConfig is the full rule-engine configuration surface.
type RulesConfig struct {
	SignalRules      []RuleConfig        `yaml:"signal_rules"`
	TradingRules     []RuleConfig        `yaml:"trading_rules"`
	ProcessingMode   string              `yaml:"processing_mode"` // first_match | highest_priority | all_matches
	StopLoss         StopLossConfigYAML  `yaml:"stop_loss"`
	TakeProfitMargin float64             `yaml:"take_profit_margin"`
	DCA              DCAPolicyConfig     `yaml:"dca"`
}

// NotificationChannel is one opaque outbound destination.
type NotificationChannel struct {
	ID    string `yaml:"id"`
	Token string `yaml:"token"`
}

// NotificationConfig controls the notify(level, text) sink.
type NotificationConfig struct {
	Enabled  bool                   `yaml:"enabled"`
	Channels []NotificationChannel  `yaml:"channels"`
}

// StorageConfig controls where persisted state lives.
type StorageConfig struct {
	DataDir    string `yaml:"data_dir"`
	LogDir     string `yaml:"log_dir"`
	SnapshotDir string `yaml:"snapshot_dir"`
	SQLiteDSN  string `yaml:"sqlite_dsn"`
}

// LogConfig controls slog's level and handler format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads path as YAML, overlays .env-provided secrets, validates,
// and fills defaults. Returns a ConfigurationError on any failure.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigurationError{Op: "config.Load", Reason: fmt.Sprintf("read %q: %v", path, err)}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &domain.ConfigurationError{Op: "config.Load", Reason: fmt.Sprintf("parse YAML: %v", err)}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("EXCHANGE_API_KEY"); v != "" {
		// Exchange credentials never live in YAML; adapters read these
		// directly from the environment via os.Getenv at construction
		// time. Recorded here only as documentation of the override name.
		_ = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Core.HealthCheckIntervalS <= 0 {
		cfg.Core.HealthCheckIntervalS = 30
	}
	if cfg.Core.SpeedMultiplier <= 0 {
		cfg.Core.SpeedMultiplier = 1.0
	}
	if cfg.Trading.BuyType == "" {
		cfg.Trading.BuyType = "market"
	}
	if cfg.Trading.SellType == "" {
		cfg.Trading.SellType = "market"
	}
	if cfg.Trading.MaxPositions <= 0 {
		cfg.Trading.MaxPositions = 5
	}
	if cfg.Rules.ProcessingMode == "" {
		cfg.Rules.ProcessingMode = string(rules.ModeFirstMatch)
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.LogDir == "" {
		cfg.Storage.LogDir = "log"
	}
	if cfg.Storage.SnapshotDir == "" {
		cfg.Storage.SnapshotDir = "snapshots"
	}
	if cfg.Storage.SQLiteDSN == "" {
		cfg.Storage.SQLiteDSN = cfg.Storage.DataDir + "/audit.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
