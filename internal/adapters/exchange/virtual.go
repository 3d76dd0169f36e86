package exchange

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
	"github.com/alejandrodnm/cryptoengine/internal/ports"
)

// PriceSource supplies the latest ticker price a VirtualExchange fills
// market orders against (the orchestrator's ticker pipeline, or a
// backtest replayer).
type PriceSource interface {
	GetPrice(ctx context.Context, pair domain.TradingPair) (domain.Price, error)
}

// VirtualExchange is an in-process ports.Exchange that fills market
// orders immediately at the latest ticker price, charging a configured
// fee percentage, per spec.md §4.7 step 2 ("In virtual mode the exchange
// is an in-process simulator").
type VirtualExchange struct {
	prices     PriceSource
	feePercent decimal.Decimal

	mu     sync.Mutex
	orders map[string]domain.ExecutionResult // orderId.String() -> result
}

// NewVirtualExchange creates a simulator quoting off prices and charging
// feePercent (e.g. 0.1 for 0.1%) on every fill.
func NewVirtualExchange(prices PriceSource, feePercent decimal.Decimal) *VirtualExchange {
	return &VirtualExchange{prices: prices, feePercent: feePercent, orders: make(map[string]domain.ExecutionResult)}
}

func (v *VirtualExchange) Place(ctx context.Context, order domain.Order, idempotencyKey string) (domain.ExecutionResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if existing, ok := v.orders[idempotencyKey]; ok {
		return existing, nil
	}

	fillPrice := order.Price
	if order.Type == domain.OrderTypeMarket {
		p, err := v.prices.GetPrice(ctx, order.Pair)
		if err != nil {
			return domain.ExecutionResult{}, err
		}
		fillPrice = p
	}

	cost := fillPrice.Mul(order.Quantity, order.Pair.Quote())
	fees := cost.Mul(v.feePercent.Div(decimal.NewFromInt(100)))

	result := domain.ExecutionResult{
		OrderId:      domain.NewOrderId(),
		RequestedQty: order.Quantity,
		FilledQty:    order.Quantity,
		AveragePrice: fillPrice,
		Cost:         cost,
		Fees:         fees,
		FeesCurrency: order.Pair.Quote(),
		Status:       domain.StatusFilled,
	}
	v.orders[idempotencyKey] = result
	v.orders[result.OrderId.String()] = result
	return result, nil
}

func (v *VirtualExchange) GetPrice(ctx context.Context, pair domain.TradingPair) (domain.Price, error) {
	return v.prices.GetPrice(ctx, pair)
}

func (v *VirtualExchange) GetPrices(ctx context.Context, pairs []domain.TradingPair) (map[string]domain.Price, error) {
	out := make(map[string]domain.Price, len(pairs))
	for _, p := range pairs {
		price, err := v.prices.GetPrice(ctx, p)
		if err != nil {
			return out, err
		}
		out[p.Symbol()] = price
	}
	return out, nil
}

func (v *VirtualExchange) GetBalances(ctx context.Context) (ports.Balances, error) {
	return ports.Balances{}, nil
}

func (v *VirtualExchange) GetOrder(ctx context.Context, pair domain.TradingPair, orderId domain.OrderId) (domain.ExecutionResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	result, ok := v.orders[orderId.String()]
	if !ok {
		return domain.ExecutionResult{}, &domain.ValidationError{Op: "VirtualExchange.GetOrder", Reason: "unknown order id"}
	}
	return result, nil
}

func (v *VirtualExchange) CancelOrder(ctx context.Context, pair domain.TradingPair, orderId domain.OrderId) error {
	// Market orders fill synchronously in Place; there is nothing left to
	// cancel by the time a caller could reach this.
	return nil
}

func (v *VirtualExchange) GetTradingRules(ctx context.Context, pair domain.TradingPair) (ports.TradingRules, error) {
	return ports.TradingRules{
		MinOrderValue: domain.ZeroMoney(pair.Quote()),
		MinQty:        domain.ZeroQuantity,
		MaxQty:        domain.MustQuantity(decimal.NewFromInt(1_000_000)),
		StepSize:      decimal.NewFromFloat(0.00000001),
	}, nil
}

func (v *VirtualExchange) TestConnectivity(ctx context.Context) error { return nil }

var _ ports.Exchange = (*VirtualExchange)(nil)
