package orchestrator

import (
	"sync"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
)

// priceCache is the shared, RWMutex-guarded view of the latest ticker
// price per pair. The tickers pipeline is its sole writer; the
// signalRules and tradingRules pipelines read it concurrently, per §5's "read-only views use the same lock in shared
// mode (or a short critical section reading a consistent snapshot)".
type priceCache struct {
	mu     sync.RWMutex
	prices map[string]domain.Price
}

func newPriceCache() *priceCache {
	return &priceCache{prices: make(map[string]domain.Price)}
}

func (c *priceCache) setAll(prices map[string]domain.Price) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for sym, p := range prices {
		c.prices[sym] = p
	}
}

func (c *priceCache) get(symbol string) (domain.Price, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[symbol]
	return p, ok
}

func (c *priceCache) snapshot() map[string]domain.Price {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]domain.Price, len(c.prices))
	for sym, p := range c.prices {
		out[sym] = p
	}
	return out
}
