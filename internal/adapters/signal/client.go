// Package signal implements the ports.SignalProvider port against a
// generic REST technical-indicator API, reusing the same rate-limited
// HTTP shell as internal/adapters/exchange (grounded on the teacher's
// polymarket.Client.doWithRetry pattern).
package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
	"github.com/alejandrodnm/cryptoengine/internal/ports"
)

// Client polls one named signal source over HTTP.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	name    string
	limiter *rate.Limiter
}

// NewClient creates a Client for the provider named name, pacing
// requests to requestsPerSec.
func NewClient(name, baseURL, apiKey string, requestsPerSec float64) *Client {
	if requestsPerSec <= 0 {
		requestsPerSec = 1
	}
	return &Client{
		http:    &http.Client{Timeout: 15 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), 1),
	}
}

// Name returns the provider's configured name, which rule conditions
// reference to pick out a signal by source (§4.1 "signals[name]").
func (c *Client) Name() string { return c.name }

type signalDTO struct {
	Volume       *string `json:"volume"`
	VolumeChange *string `json:"volumeChange"`
	Price        *string `json:"price"`
	PriceChange  *string `json:"priceChange"`
	Rating       *string `json:"rating"`
	RatingChange *string `json:"ratingChange"`
	Volatility   *string `json:"volatility"`
}

func (d signalDTO) toDomain() (domain.SignalSnapshot, error) {
	var snap domain.SignalSnapshot
	var err error
	if snap.Volume, err = parseOptional(d.Volume); err != nil {
		return snap, err
	}
	if snap.VolumeChange, err = parseOptional(d.VolumeChange); err != nil {
		return snap, err
	}
	if snap.Price, err = parseOptional(d.Price); err != nil {
		return snap, err
	}
	if snap.PriceChange, err = parseOptional(d.PriceChange); err != nil {
		return snap, err
	}
	if snap.Rating, err = parseOptional(d.Rating); err != nil {
		return snap, err
	}
	if snap.RatingChange, err = parseOptional(d.RatingChange); err != nil {
		return snap, err
	}
	if snap.Volatility, err = parseOptional(d.Volatility); err != nil {
		return snap, err
	}
	return snap, nil
}

func parseOptional(s *string) (*domain.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	v, err := parseDecimal(*s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetAllSignals fetches the current snapshot for one pair. A field
// absent from the response stays nil, which rule predicates treat as
// false, never true (§2 missing-data policy).
func (c *Client) GetAllSignals(ctx context.Context, pair domain.TradingPair) (domain.SignalSnapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.SignalSnapshot{}, fmt.Errorf("signal.Client.GetAllSignals: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/signal?symbol="+pair.Symbol(), nil)
	if err != nil {
		return domain.SignalSnapshot{}, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.SignalSnapshot{}, &domain.TransientIOError{Op: "signal.Client.GetAllSignals", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return domain.SignalSnapshot{}, &domain.TransientIOError{Op: "signal.Client.GetAllSignals", Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return domain.SignalSnapshot{}, &domain.ValidationError{Op: "signal.Client.GetAllSignals", Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	var dto signalDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return domain.SignalSnapshot{}, fmt.Errorf("signal.Client.GetAllSignals: decode: %w", err)
	}
	return dto.toDomain()
}

// GetSignalsForPairs fetches each pair's snapshot sequentially, paced by
// the same limiter as GetAllSignals.
func (c *Client) GetSignalsForPairs(ctx context.Context, pairs []domain.TradingPair) (map[string]domain.SignalSnapshot, error) {
	out := make(map[string]domain.SignalSnapshot, len(pairs))
	for _, p := range pairs {
		snap, err := c.GetAllSignals(ctx, p)
		if err != nil {
			return out, err
		}
		out[p.Symbol()] = snap
	}
	return out, nil
}

// GetAggregated fetches the provider's own pre-aggregated rating and
// vote counts, where the upstream source exposes that directly rather
// than requiring client-side aggregation.
func (c *Client) GetAggregated(ctx context.Context, pair domain.TradingPair) (ports.AggregatedSignal, error) {
	snap, err := c.GetAllSignals(ctx, pair)
	if err != nil {
		return ports.AggregatedSignal{}, err
	}
	agg := ports.AggregatedSignal{}
	if snap.Rating != nil {
		agg.OverallRating = *snap.Rating
		switch {
		case snap.Rating.IsPositive():
			agg.BuyCount = 1
		case snap.Rating.IsNegative():
			agg.SellCount = 1
		default:
			agg.NeutralCount = 1
		}
	}
	return agg, nil
}

// Subscribe polls GetAllSignals on a fixed interval and pushes each
// result to the returned channel, closing it when ctx is done. This is
// the polling-only fallback Subscribe implementation the port docs
// describe for sources with no native push feed.
func (c *Client) Subscribe(ctx context.Context, pair domain.TradingPair) (<-chan domain.SignalSnapshot, error) {
	ch := make(chan domain.SignalSnapshot)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(time.Duration(1/c.limiter.Limit()) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap, err := c.GetAllSignals(ctx, pair)
				if err != nil {
					continue
				}
				select {
				case ch <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

var _ ports.SignalProvider = (*Client)(nil)
