package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
core:
  instance_name: test
trading:
  market: USDT
  virtual: true
  initial_balance: 1000
  max_positions: 3
rules:
  processing_mode: first_match
  signal_rules:
    - name: buy-dip
      enabled: true
      action: Buy
      conditions:
        global_rating:
          min: 0.2
  trading_rules:
    - name: sell-rally
      enabled: true
      action: Sell
      conditions:
        margin:
          min: 5
signals:
  - name: rsi
    type: technical
    polling_interval_s: 30
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesDefaultsAndValidates(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "market", cfg.Trading.BuyType)
	assert.Equal(t, 30, cfg.Core.HealthCheckIntervalS)
	assert.Equal(t, 1.0, cfg.Core.SpeedMultiplier)
	assert.Equal(t, "data", cfg.Storage.DataDir)
}

func TestLoadRejectsMissingMarket(t *testing.T) {
	path := writeTempConfig(t, `
trading:
  virtual: true
  initial_balance: 100
  max_positions: 1
rules:
  processing_mode: first_match
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsVirtualWithoutInitialBalance(t *testing.T) {
	path := writeTempConfig(t, `
trading:
  market: USDT
  virtual: true
  max_positions: 1
rules:
  processing_mode: first_match
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestBuildRuleSetTranslatesConditions(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	rs, err := BuildRuleSet(cfg.Rules.SignalRules, cfg.Rules.ProcessingMode)
	require.NoError(t, err)
	require.Len(t, rs.Rules, 1)
	assert.Equal(t, "buy-dip", rs.Rules[0].Name)
}

func TestLoadRejectsUnknownRuleAction(t *testing.T) {
	path := writeTempConfig(t, `
trading:
  market: USDT
  virtual: true
  initial_balance: 100
  max_positions: 1
rules:
  processing_mode: first_match
  signal_rules:
    - name: bogus
      enabled: true
      action: Frobnicate
`)
	_, err := Load(path)
	assert.Error(t, err)
}
