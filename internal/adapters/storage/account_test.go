package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/cryptoengine/internal/adapters/storage"
	"github.com/alejandrodnm/cryptoengine/internal/ports"
)

func TestJSONAccountStoreLoadMissingFileReturnsEmptySnapshot(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewJSONAccountStore(filepath.Join(dir, "account.json"))
	require.NoError(t, err)

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snap.TradingPairs)
	assert.Empty(t, snap.TradingPairs)
}

func TestJSONAccountStoreRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewJSONAccountStore(filepath.Join(dir, "account.json"))
	require.NoError(t, err)

	snap := ports.AccountSnapshot{
		Balance: decimal.NewFromInt(10_000),
		TradingPairs: map[string]ports.PersistedPosition{
			"BTCUSDT": {
				Pair:             "BTCUSDT",
				OrderIds:         []string{"o1"},
				TotalAmount:      decimal.NewFromInt(1),
				AveragePricePaid: decimal.NewFromInt(100),
			},
		},
	}
	require.NoError(t, store.Save(context.Background(), snap))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, loaded.Balance.Equal(decimal.NewFromInt(10_000)))
	require.Contains(t, loaded.TradingPairs, "BTCUSDT")
	assert.True(t, loaded.TradingPairs["BTCUSDT"].AveragePricePaid.Equal(decimal.NewFromInt(100)))
}
