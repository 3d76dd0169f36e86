package exchange

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
	"github.com/alejandrodnm/cryptoengine/internal/ports"
)

type placeRequestDTO struct {
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`
	Type           string `json:"type"`
	Quantity       string `json:"quantity"`
	Price          string `json:"price,omitempty"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type orderResultDTO struct {
	OrderId      string `json:"orderId"`
	RequestedQty string `json:"requestedQty"`
	FilledQty    string `json:"filledQty"`
	AvgPrice     string `json:"avgPrice"`
	Cost         string `json:"cost"`
	Fees         string `json:"fees"`
	FeesCurrency string `json:"feesCurrency"`
	Status       string `json:"status"`
}

func (o orderResultDTO) toDomain() (domain.ExecutionResult, error) {
	orderId, err := parseOrderId(o.OrderId)
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	requestedQty, err := parseDecimal(o.RequestedQty)
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	filledQty, err := parseDecimal(o.FilledQty)
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	avgPrice, err := parseDecimal(o.AvgPrice)
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	cost, err := parseDecimal(o.Cost)
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	fees, err := parseDecimal(o.Fees)
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	return domain.ExecutionResult{
		OrderId:      orderId,
		RequestedQty: domain.MustQuantity(requestedQty),
		FilledQty:    domain.MustQuantity(filledQty),
		AveragePrice: domain.MustPrice(avgPrice),
		Cost:         domain.MustMoney(cost, o.FeesCurrency),
		Fees:         domain.MustMoney(fees, o.FeesCurrency),
		FeesCurrency: o.FeesCurrency,
		Status:       domain.OrderStatus(o.Status),
	}, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseOrderId(s string) (domain.OrderId, error) {
	if s == "" {
		return domain.NewOrderId(), nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return domain.OrderId{}, fmt.Errorf("exchange: parse orderId %q: %w", s, err)
	}
	return domain.OrderId(u), nil
}

// Place submits order with the given idempotency key.
func (c *Client) Place(ctx context.Context, order domain.Order, idempotencyKey string) (domain.ExecutionResult, error) {
	req := placeRequestDTO{
		Symbol:         order.Pair.Symbol(),
		Side:           string(order.Side),
		Type:           string(order.Type),
		Quantity:       order.Quantity.Value().String(),
		IdempotencyKey: idempotencyKey,
	}
	if order.Type == domain.OrderTypeLimit {
		req.Price = order.Price.Value().String()
	}

	var resp orderResultDTO
	if err := c.post(ctx, "/api/v1/orders", req, &resp); err != nil {
		return domain.ExecutionResult{}, err
	}
	return resp.toDomain()
}

type priceDTO struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// GetPrice fetches the latest ticker price for pair.
func (c *Client) GetPrice(ctx context.Context, pair domain.TradingPair) (domain.Price, error) {
	var resp priceDTO
	if err := c.get(ctx, "/api/v1/ticker?symbol="+pair.Symbol(), &resp); err != nil {
		return domain.ZeroPrice, err
	}
	value, err := parseDecimal(resp.Price)
	if err != nil {
		return domain.ZeroPrice, fmt.Errorf("exchange.Client.GetPrice: %w", err)
	}
	return domain.MustPrice(value), nil
}

// GetPrices fetches ticker prices for every pair, one request at a time.
// Batch-ticker endpoints vary too much across exchanges to standardize
// here (spec.md §1 excludes individual wire formats); this keeps the
// contract correct at the cost of N requests instead of 1.
func (c *Client) GetPrices(ctx context.Context, pairs []domain.TradingPair) (map[string]domain.Price, error) {
	out := make(map[string]domain.Price, len(pairs))
	for _, p := range pairs {
		price, err := c.GetPrice(ctx, p)
		if err != nil {
			return out, err
		}
		out[p.Symbol()] = price
	}
	return out, nil
}

type balanceDTO struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

// GetBalances fetches the exchange's current per-currency balances.
func (c *Client) GetBalances(ctx context.Context) (ports.Balances, error) {
	var resp []balanceDTO
	if err := c.get(ctx, "/api/v1/balances", &resp); err != nil {
		return nil, err
	}
	out := make(ports.Balances, len(resp))
	for _, b := range resp {
		amount, err := parseDecimal(b.Amount)
		if err != nil {
			return nil, fmt.Errorf("exchange.Client.GetBalances: %w", err)
		}
		out[b.Currency] = domain.MustMoney(amount, b.Currency)
	}
	return out, nil
}

// GetOrder fetches the current state of a previously placed order.
func (c *Client) GetOrder(ctx context.Context, pair domain.TradingPair, orderId domain.OrderId) (domain.ExecutionResult, error) {
	var resp orderResultDTO
	path := fmt.Sprintf("/api/v1/orders/%s?symbol=%s", orderId.String(), pair.Symbol())
	if err := c.get(ctx, path, &resp); err != nil {
		return domain.ExecutionResult{}, err
	}
	return resp.toDomain()
}

// CancelOrder cancels a resting order.
func (c *Client) CancelOrder(ctx context.Context, pair domain.TradingPair, orderId domain.OrderId) error {
	path := fmt.Sprintf("/api/v1/orders/%s?symbol=%s", orderId.String(), pair.Symbol())
	return c.post(ctx, path+"&action=cancel", struct{}{}, nil)
}

type tradingRulesDTO struct {
	MinOrderValue  string `json:"minOrderValue"`
	MinQty         string `json:"minQty"`
	MaxQty         string `json:"maxQty"`
	StepSize       string `json:"stepSize"`
	PricePrecision int    `json:"pricePrecision"`
	QtyPrecision   int    `json:"qtyPrecision"`
}

// GetTradingRules fetches the exchange's order constraints for pair.
func (c *Client) GetTradingRules(ctx context.Context, pair domain.TradingPair) (ports.TradingRules, error) {
	var resp tradingRulesDTO
	if err := c.get(ctx, "/api/v1/exchangeInfo?symbol="+pair.Symbol(), &resp); err != nil {
		return ports.TradingRules{}, err
	}

	minOrderValue, err := parseDecimal(resp.MinOrderValue)
	if err != nil {
		return ports.TradingRules{}, err
	}
	minQty, err := parseDecimal(resp.MinQty)
	if err != nil {
		return ports.TradingRules{}, err
	}
	maxQty, err := parseDecimal(resp.MaxQty)
	if err != nil {
		return ports.TradingRules{}, err
	}
	step, err := parseDecimal(resp.StepSize)
	if err != nil {
		return ports.TradingRules{}, err
	}

	return ports.TradingRules{
		MinOrderValue:  domain.MustMoney(minOrderValue, pair.Quote()),
		MinQty:         domain.MustQuantity(minQty),
		MaxQty:         domain.MustQuantity(maxQty),
		StepSize:       step,
		PricePrecision: resp.PricePrecision,
		QtyPrecision:   resp.QtyPrecision,
	}, nil
}

// TestConnectivity pings the exchange's health endpoint.
func (c *Client) TestConnectivity(ctx context.Context) error {
	return c.get(ctx, "/api/v1/ping", nil)
}
