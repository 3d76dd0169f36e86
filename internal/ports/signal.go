package ports

import (
	"context"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
)

// AggregatedSignal summarizes one pair's signal votes across providers.
type AggregatedSignal struct {
	OverallRating domain.Decimal
	BuyCount      int
	SellCount     int
	NeutralCount  int
}

// SignalProvider is the port the signal aggregator polls. A concrete
// adapter wraps one external data source (e.g. a technical-indicator
// feed or an on-chain volume tracker) and reports snapshots under a
// provider name.
type SignalProvider interface {
	Name() string
	GetAllSignals(ctx context.Context, pair domain.TradingPair) (domain.SignalSnapshot, error)
	GetSignalsForPairs(ctx context.Context, pairs []domain.TradingPair) (map[string]domain.SignalSnapshot, error)
	GetAggregated(ctx context.Context, pair domain.TradingPair) (AggregatedSignal, error)

	// Subscribe returns a channel of push updates for pair. The channel is
	// closed when ctx is done. Polling-only providers may implement this
	// by starting an internal ticker goroutine.
	Subscribe(ctx context.Context, pair domain.TradingPair) (<-chan domain.SignalSnapshot, error)
}
