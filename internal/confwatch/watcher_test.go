package confwatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/cryptoengine/config"
)

const baseYAML = `
trading:
  market: USDT
  virtual: true
  initial_balance: 1000
  max_positions: 3
rules:
  processing_mode: first_match
`

func writeConfig(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

func TestReloadSwapsCurrentOnSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, baseYAML)

	initial, err := config.Load(path)
	require.NoError(t, err)
	w := New(path, initial, nil)

	writeConfig(t, path, `
trading:
  market: USDT
  virtual: true
  initial_balance: 1000
  max_positions: 7
rules:
  processing_mode: first_match
`)
	require.NoError(t, w.Reload(context.Background()))
	assert.Equal(t, 7, w.Current().Trading.MaxPositions)
}

func TestReloadRetainsOldConfigOnInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, baseYAML)

	initial, err := config.Load(path)
	require.NoError(t, err)
	w := New(path, initial, nil)

	writeConfig(t, path, `trading: {max_positions: 0}`)
	err = w.Reload(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 3, w.Current().Trading.MaxPositions, "old config retained on invalid reload")
}

func TestSubscribersFireOnReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, baseYAML)

	initial, err := config.Load(path)
	require.NoError(t, err)
	w := New(path, initial, nil)

	var seen int
	w.Subscribe(func(cfg *config.Config) { seen = cfg.Trading.MaxPositions })

	writeConfig(t, path, `
trading:
  market: USDT
  virtual: true
  initial_balance: 1000
  max_positions: 9
rules:
  processing_mode: first_match
`)
	require.NoError(t, w.Reload(context.Background()))
	assert.Equal(t, 9, seen)
}
