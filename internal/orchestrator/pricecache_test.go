package orchestrator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
)

func TestPriceCacheGetMissing(t *testing.T) {
	c := newPriceCache()
	_, ok := c.get("BTCUSDT")
	assert.False(t, ok)
}

func TestPriceCacheSetAllAndSnapshot(t *testing.T) {
	c := newPriceCache()
	c.setAll(map[string]domain.Price{
		"BTCUSDT": domain.MustPrice(decimal.NewFromInt(50000)),
	})

	p, ok := c.get("BTCUSDT")
	assert.True(t, ok)
	assert.True(t, p.Value().Equal(decimal.NewFromInt(50000)))

	snap := c.snapshot()
	assert.Len(t, snap, 1)

	c.setAll(map[string]domain.Price{
		"BTCUSDT": domain.MustPrice(decimal.NewFromInt(51000)),
	})
	// snapshot taken earlier is unaffected by later writes.
	assert.True(t, snap["BTCUSDT"].Value().Equal(decimal.NewFromInt(50000)))
}
