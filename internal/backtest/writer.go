package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
)

const (
	entityTickers = "tickers"
	entitySignals = "signals"
)

// Writer implements orchestrator.Recorder, serializing every tickers and
// signals tick it is handed to snapshots/{entity}/YYYY-MM-DD/HH/
// mm-ss-fff.bin under baseDir (spec.md §4.9 record mode).
type Writer struct {
	baseDir string
}

// NewWriter creates a Writer rooted at baseDir (typically
// config.StorageConfig.SnapshotDir).
func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// RecordTickers persists one tickers tick.
func (w *Writer) RecordTickers(ctx context.Context, at time.Time, prices map[string]domain.Price) error {
	f := tickersFrame(at, prices)
	path := framePath(w.baseDir, entityTickers, at)
	if err := writeFrameAtomic(path, f); err != nil {
		return fmt.Errorf("backtest.Writer.RecordTickers: %w", err)
	}
	return nil
}

// RecordSignals persists one pair's signals tick, bucketed under its own
// symbol subdirectory so concurrent pairs recorded in the same
// millisecond never collide on a filename.
func (w *Writer) RecordSignals(ctx context.Context, at time.Time, pair domain.TradingPair, snapshots map[string]domain.SignalSnapshot) error {
	f := signalsFrame(at, pair, snapshots)
	entity := fmt.Sprintf("%s/%s", entitySignals, pair.Symbol())
	path := framePath(w.baseDir, entity, at)
	if err := writeFrameAtomic(path, f); err != nil {
		return fmt.Errorf("backtest.Writer.RecordSignals: %w", err)
	}
	return nil
}
