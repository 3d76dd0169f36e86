package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
)

// AccountSnapshot is the legacy-compatible persisted shape of one
// account's balance and open positions (§6 persistence layout).
type AccountSnapshot struct {
	Balance      domain.Decimal
	TradingPairs map[string]PersistedPosition
}

// PersistedPosition is one entry of AccountSnapshot.TradingPairs, keyed
// by pair symbol.
type PersistedPosition struct {
	Pair               string
	OrderIds           []string
	OrderDates         []time.Time
	TotalAmount        domain.Decimal
	AveragePricePaid   domain.Decimal
	FeesPairCurrency   domain.Decimal
	FeesMarketCurrency domain.Decimal
	CurrentPrice       domain.Decimal
	Metadata           PersistedPositionMetadata
}

// PersistedPositionMetadata carries the optional legacy fields that
// don't map onto core Position state directly.
type PersistedPositionMetadata struct {
	SignalRule          string
	AdditionalDCALevels int
	AdditionalCosts     domain.Decimal
	SwapPair            string
	LastBuyMargin       *domain.Decimal
}

// AccountStore persists and loads one account's snapshot atomically
// (write-temp + rename), matching data/{exchange,virtual}-account.json.
type AccountStore interface {
	Load(ctx context.Context) (AccountSnapshot, error)
	Save(ctx context.Context, snap AccountSnapshot) error
}

// TradeRecord is one line of the append-only trade log.
type TradeRecord struct {
	Timestamp    time.Time
	Pair         string
	Side         domain.OrderSide
	OrderId      string
	Price        domain.Decimal
	Quantity     domain.Decimal
	Cost         domain.Decimal
	Fees         domain.Decimal
	FeesCurrency string
	SignalRule   string
	Margin       *domain.Decimal
}

// TradeLog appends JSON-line trade records to the daily log file.
type TradeLog interface {
	Append(ctx context.Context, rec TradeRecord) error
}

// AuditStore indexes closed positions and order history for ad-hoc
// querying, beyond what the core needs to operate (new surface per
// SPEC_FULL §6, backed by SQLite).
type AuditStore interface {
	RecordOrder(ctx context.Context, rec TradeRecord, status domain.OrderStatus) error
	RecordClosedPosition(ctx context.Context, pair string, positionId domain.PositionId, openedAt, closedAt time.Time, totalCost, proceeds domain.Decimal, margin domain.Decimal) error
	Close() error
}
