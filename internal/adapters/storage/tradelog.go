package storage

// tradelog.go implements ports.TradeLog as an append-only JSON-lines
// file, one file per UTC day (log/YYYY-MM-DD-trades.txt), matching the
// plain-text trade ledgers common across the example pack's paper
// trading engines.

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/alejandrodnm/cryptoengine/internal/ports"
)

// FileTradeLog appends one JSON object per line to a daily log file
// under dir.
type FileTradeLog struct {
	dir string
	mu  sync.Mutex
}

// NewFileTradeLog targets dir (e.g. "log"), created if missing.
func NewFileTradeLog(dir string) (*FileTradeLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage.NewFileTradeLog: mkdir: %w", err)
	}
	return &FileTradeLog{dir: dir}, nil
}

// Append writes rec as one JSON line to today's log file.
func (l *FileTradeLog) Append(ctx context.Context, rec ports.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	name := rec.Timestamp.UTC().Format("2006-01-02") + "-trades.txt"
	path := filepath.Join(l.dir, name)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("storage.FileTradeLog.Append: open: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("storage.FileTradeLog.Append: marshal: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("storage.FileTradeLog.Append: write: %w", err)
	}
	return nil
}

var _ ports.TradeLog = (*FileTradeLog)(nil)
