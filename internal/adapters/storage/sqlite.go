package storage

// sqlite.go implements ports.AuditStore: an append-only index of every
// order the executor places and of every position it closes, queryable
// independently of the in-memory Portfolio/PositionBook.
//
// Strategy:
//   - `orders`: one row per fill, never updated — a ledger, not a cache.
//   - `closed_positions`: one row per closed position, keyed by position id.
//   - Retention: orders older than retentionOrders are pruned at startup,
//     matching the teacher's prune-on-open pattern; closed_positions are
//     kept indefinitely since they are the durable PnL history.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
	"github.com/alejandrodnm/cryptoengine/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    recorded_at   DATETIME NOT NULL,
    pair          TEXT    NOT NULL,
    side          TEXT    NOT NULL,
    order_id      TEXT    NOT NULL,
    status        TEXT    NOT NULL,
    price         TEXT    NOT NULL,
    quantity      TEXT    NOT NULL,
    cost          TEXT    NOT NULL,
    fees          TEXT    NOT NULL,
    fees_currency TEXT    NOT NULL,
    signal_rule   TEXT    NOT NULL DEFAULT '',
    margin        TEXT
);

CREATE TABLE IF NOT EXISTS closed_positions (
    position_id TEXT PRIMARY KEY,
    pair        TEXT     NOT NULL,
    opened_at   DATETIME NOT NULL,
    closed_at   DATETIME NOT NULL,
    total_cost  TEXT     NOT NULL,
    proceeds    TEXT     NOT NULL,
    margin      TEXT     NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_recorded ON orders(recorded_at DESC);
CREATE INDEX IF NOT EXISTS idx_orders_pair     ON orders(pair);
CREATE INDEX IF NOT EXISTS idx_closed_pair     ON closed_positions(pair);
CREATE INDEX IF NOT EXISTS idx_closed_closed   ON closed_positions(closed_at DESC);
`

const retentionOrders = 90 * 24 * time.Hour

// SQLiteAuditStore implements ports.AuditStore with a pure-Go SQLite
// driver (no CGo), single-writer per the driver's own concurrency model.
type SQLiteAuditStore struct {
	db *sql.DB
}

// NewSQLiteAuditStore opens (or creates) the database at path, applies
// the schema, and prunes orders older than retentionOrders.
func NewSQLiteAuditStore(path string) (*SQLiteAuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteAuditStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteAuditStore: apply schema: %w", err)
	}

	s := &SQLiteAuditStore{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// RecordOrder inserts one fill row. Never updates or deduplicates: the
// ledger is append-only by design.
func (s *SQLiteAuditStore) RecordOrder(ctx context.Context, rec ports.TradeRecord, status domain.OrderStatus) error {
	var marginStr *string
	if rec.Margin != nil {
		v := rec.Margin.String()
		marginStr = &v
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders
			(recorded_at, pair, side, order_id, status, price, quantity, cost, fees, fees_currency, signal_rule, margin)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Timestamp.UTC(), rec.Pair, string(rec.Side), rec.OrderId, string(status),
		rec.Price.String(), rec.Quantity.String(), rec.Cost.String(), rec.Fees.String(),
		rec.FeesCurrency, rec.SignalRule, marginStr,
	)
	if err != nil {
		return fmt.Errorf("storage.RecordOrder: insert: %w", err)
	}
	return nil
}

// RecordClosedPosition upserts the closed-position summary, keyed by
// position id so a reconciliation retry is idempotent.
func (s *SQLiteAuditStore) RecordClosedPosition(ctx context.Context, pair string, positionId domain.PositionId, openedAt, closedAt time.Time, totalCost, proceeds, margin decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO closed_positions (position_id, pair, opened_at, closed_at, total_cost, proceeds, margin)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(position_id) DO UPDATE SET
			closed_at  = excluded.closed_at,
			total_cost = excluded.total_cost,
			proceeds   = excluded.proceeds,
			margin     = excluded.margin
	`, positionId.String(), pair, openedAt.UTC(), closedAt.UTC(), totalCost.String(), proceeds.String(), margin.String())
	if err != nil {
		return fmt.Errorf("storage.RecordClosedPosition: upsert: %w", err)
	}
	return nil
}

// ClosedPositionSummary is one row of history returned by RecentClosed.
type ClosedPositionSummary struct {
	PositionId string
	Pair       string
	OpenedAt   time.Time
	ClosedAt   time.Time
	TotalCost  decimal.Decimal
	Proceeds   decimal.Decimal
	Margin     decimal.Decimal
}

// RecentClosed returns the most recently closed positions, newest
// first, for the "--status" CLI surface and periodic summaries.
func (s *SQLiteAuditStore) RecentClosed(ctx context.Context, limit int) ([]ClosedPositionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position_id, pair, opened_at, closed_at, total_cost, proceeds, margin
		FROM closed_positions
		ORDER BY closed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentClosed: query: %w", err)
	}
	defer rows.Close()

	var out []ClosedPositionSummary
	for rows.Next() {
		var row ClosedPositionSummary
		var totalCost, proceeds, margin string
		if err := rows.Scan(&row.PositionId, &row.Pair, &row.OpenedAt, &row.ClosedAt, &totalCost, &proceeds, &margin); err != nil {
			return nil, fmt.Errorf("storage.RecentClosed: scan: %w", err)
		}
		row.TotalCost, _ = decimal.NewFromString(totalCost)
		row.Proceeds, _ = decimal.NewFromString(proceeds)
		row.Margin, _ = decimal.NewFromString(margin)
		out = append(out, row)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (s *SQLiteAuditStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteAuditStore) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionOrders)
	s.db.ExecContext(ctx, `DELETE FROM orders WHERE recorded_at < ?`, cutoff)
}

var _ ports.AuditStore = (*SQLiteAuditStore)(nil)
