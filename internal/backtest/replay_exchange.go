package backtest

import (
	"context"

	"github.com/alejandrodnm/cryptoengine/internal/adapters/exchange"
	"github.com/alejandrodnm/cryptoengine/internal/domain"
	"github.com/alejandrodnm/cryptoengine/internal/ports"
)

// ReplayExchange decorates a *exchange.VirtualExchange so the
// orchestrator's tickers pipeline drives the replay cursor forward (via
// GetPrices) while order fills and single-pair lookups keep answering
// from whatever frame is currently loaded. Everything else (Place,
// GetBalances, GetOrder, CancelOrder, GetTradingRules, TestConnectivity)
// is the ordinary virtual-exchange behavior, unchanged.
type ReplayExchange struct {
	*exchange.VirtualExchange
	replayer *TickerReplayer
}

// NewReplayExchange wires replayer as the price feed for a fresh
// VirtualExchange charging feePercent, with GetPrices overridden to
// advance the replay cursor.
func NewReplayExchange(replayer *TickerReplayer, feePercent domain.Decimal) *ReplayExchange {
	return &ReplayExchange{
		VirtualExchange: exchange.NewVirtualExchange(replayer, feePercent),
		replayer:        replayer,
	}
}

// GetPrices advances the replay cursor to the next recorded tickers
// frame, the one place per tick that should do so.
func (r *ReplayExchange) GetPrices(ctx context.Context, pairs []domain.TradingPair) (map[string]domain.Price, error) {
	return r.replayer.GetPrices(ctx, pairs)
}

var _ ports.Exchange = (*ReplayExchange)(nil)
