package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
	"github.com/alejandrodnm/cryptoengine/internal/health"
)

func TestRunnerWatchUntilExhausted(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	pair := domain.MustTradingPair("BTC", "USDT")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, w.RecordTickers(context.Background(), base, map[string]domain.Price{pair.Symbol(): domain.MustPrice(decimal.NewFromInt(1))}))

	replayer, err := NewTickerReplayer(dir)
	require.NoError(t, err)

	checker := health.NewChecker()
	checker.Tick("tickers", time.Now(), 10*time.Millisecond)
	checker.Tick("tickers", time.Now(), 30*time.Millisecond)

	runner := NewRunner(replayer, checker, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Consume the only frame so the runner observes exhaustion.
	_, _ = replayer.Advance()

	summary := runner.WatchUntilExhausted(ctx, cancel)

	assert.Equal(t, int64(2), summary.Ticks["tickers"])
	assert.Equal(t, 20*time.Millisecond, summary.AvgLag["tickers"])
	assert.True(t, summary.Finished.After(summary.Started) || summary.Finished.Equal(summary.Started))
}
