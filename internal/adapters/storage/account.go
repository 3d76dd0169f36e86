package storage

// account.go persists ports.AccountStore to data/{exchange,virtual}-account.json
// with write-temp-then-rename atomicity, grounded on the trader.saveState
// pattern in the example pack (tmp file + os.Rename).

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/alejandrodnm/cryptoengine/internal/ports"
)

// JSONAccountStore implements ports.AccountStore against a single JSON
// file on disk.
type JSONAccountStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONAccountStore targets path (e.g. data/virtual-account.json). The
// parent directory is created if missing.
func NewJSONAccountStore(path string) (*JSONAccountStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage.NewJSONAccountStore: mkdir: %w", err)
	}
	return &JSONAccountStore{path: path}, nil
}

// Load reads the snapshot from disk. A missing file is not an error: it
// returns the zero-value snapshot, matching first-run behavior.
func (s *JSONAccountStore) Load(ctx context.Context) (ports.AccountSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ports.AccountSnapshot{TradingPairs: map[string]ports.PersistedPosition{}}, nil
		}
		return ports.AccountSnapshot{}, fmt.Errorf("storage.JSONAccountStore.Load: %w", err)
	}

	var snap ports.AccountSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return ports.AccountSnapshot{}, fmt.Errorf("storage.JSONAccountStore.Load: unmarshal: %w", err)
	}
	if snap.TradingPairs == nil {
		snap.TradingPairs = map[string]ports.PersistedPosition{}
	}
	return snap, nil
}

// Save writes snap atomically: marshal, write to a .tmp sibling, rename
// over the target so a crash mid-write never leaves a truncated file.
func (s *JSONAccountStore) Save(ctx context.Context, snap ports.AccountSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("storage.JSONAccountStore.Save: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("storage.JSONAccountStore.Save: write tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("storage.JSONAccountStore.Save: rename: %w", err)
	}
	return nil
}

var _ ports.AccountStore = (*JSONAccountStore)(nil)
