// Package ports declares the interfaces the engine core depends on:
// Exchange, SignalProvider, Notifier, and the persistence stores. Adapters
// under internal/adapters implement these against a concrete exchange,
// signal provider, or storage backend.
package ports

import (
	"context"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
)

// TradingRules describes one pair's exchange-imposed order constraints.
type TradingRules struct {
	MinOrderValue domain.Money
	MinQty        domain.Quantity
	MaxQty        domain.Quantity
	StepSize      domain.Decimal
	PricePrecision int
	QtyPrecision   int
}

// Balances reports the exchange's view of available funds per currency.
type Balances map[string]domain.Money

// Exchange is the port the executor places and monitors orders through.
// Every method may return a TransientIOError (retryable) or a permanent
// domain error; Place may additionally return AmbiguousPlacement when the
// call times out mid-request.
type Exchange interface {
	// Place submits order, tagged with an idempotency key derived by the
	// caller from position-id + action + a monotonic counter.
	Place(ctx context.Context, order domain.Order, idempotencyKey string) (domain.ExecutionResult, error)
	GetPrice(ctx context.Context, pair domain.TradingPair) (domain.Price, error)
	GetPrices(ctx context.Context, pairs []domain.TradingPair) (map[string]domain.Price, error)
	GetBalances(ctx context.Context) (Balances, error)
	GetOrder(ctx context.Context, pair domain.TradingPair, orderId domain.OrderId) (domain.ExecutionResult, error)
	CancelOrder(ctx context.Context, pair domain.TradingPair, orderId domain.OrderId) error
	GetTradingRules(ctx context.Context, pair domain.TradingPair) (TradingRules, error)
	TestConnectivity(ctx context.Context) error
}
