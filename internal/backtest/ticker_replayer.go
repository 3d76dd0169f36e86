package backtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
)

// TickerReplayer feeds recorded tickers frames back in timestamp order.
// It implements exchange.PriceSource: every call to Advance consumes the
// next frame, and GetPrice always answers from the most recently
// advanced frame, matching the live ticker pipeline's "read the last
// published price" contract.
type TickerReplayer struct {
	mu        sync.Mutex
	frames    []*Frame
	cursor    int
	current   map[string]domain.Price
	exhausted bool
}

// NewTickerReplayer loads every recorded tickers frame under baseDir.
func NewTickerReplayer(baseDir string) (*TickerReplayer, error) {
	frames, err := loadFrames(baseDir, entityTickers)
	if err != nil {
		return nil, fmt.Errorf("backtest.NewTickerReplayer: %w", err)
	}
	return &TickerReplayer{frames: frames}, nil
}

// Advance consumes the next recorded frame and returns it, or reports
// exhaustion once every frame has been consumed.
func (r *TickerReplayer) Advance() (map[string]domain.Price, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cursor >= len(r.frames) {
		r.exhausted = true
		return r.current, false
	}
	r.current = decodeTickers(r.frames[r.cursor])
	r.cursor++
	r.exhausted = r.cursor >= len(r.frames)
	return r.current, true
}

// Exhausted reports whether every recorded frame has been consumed.
func (r *TickerReplayer) Exhausted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exhausted
}

// GetPrice answers from the most recently advanced frame, implementing
// exchange.PriceSource for a VirtualExchange wired to this replayer.
func (r *TickerReplayer) GetPrice(ctx context.Context, pair domain.TradingPair) (domain.Price, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	price, ok := r.current[pair.Symbol()]
	if !ok {
		return domain.Price{}, &domain.ValidationError{Op: "TickerReplayer.GetPrice", Reason: fmt.Sprintf("no recorded price for %s at current frame", pair)}
	}
	return price, nil
}

// GetPrices advances to the next recorded frame and returns it restricted
// to pairs, matching the live exchange's one-call-per-tick contract.
func (r *TickerReplayer) GetPrices(ctx context.Context, pairs []domain.TradingPair) (map[string]domain.Price, error) {
	frame, ok := r.Advance()
	if !ok {
		return nil, fmt.Errorf("backtest.TickerReplayer.GetPrices: snapshot stream exhausted")
	}
	out := make(map[string]domain.Price, len(pairs))
	for _, p := range pairs {
		if price, ok := frame[p.Symbol()]; ok {
			out[p.Symbol()] = price
		}
	}
	return out, nil
}
