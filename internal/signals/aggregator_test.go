package signals

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
	"github.com/alejandrodnm/cryptoengine/internal/ports"
)

type fakeProvider struct {
	name string
	by   map[string]domain.SignalSnapshot
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) GetAllSignals(ctx context.Context, pair domain.TradingPair) (domain.SignalSnapshot, error) {
	return f.by[pair.Symbol()], nil
}
func (f *fakeProvider) GetSignalsForPairs(ctx context.Context, pairs []domain.TradingPair) (map[string]domain.SignalSnapshot, error) {
	out := make(map[string]domain.SignalSnapshot)
	for _, p := range pairs {
		if s, ok := f.by[p.Symbol()]; ok {
			out[p.Symbol()] = s
		}
	}
	return out, nil
}
func (f *fakeProvider) GetAggregated(ctx context.Context, pair domain.TradingPair) (ports.AggregatedSignal, error) {
	return ports.AggregatedSignal{}, nil
}
func (f *fakeProvider) Subscribe(ctx context.Context, pair domain.TradingPair) (<-chan domain.SignalSnapshot, error) {
	ch := make(chan domain.SignalSnapshot)
	close(ch)
	return ch, nil
}

func ratingPtr(s string) *domain.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestRefreshMergesSnapshotsByProviderName(t *testing.T) {
	pair := domain.MustTradingPair("BTC", "USDT")
	p1 := &fakeProvider{name: "rsi", by: map[string]domain.SignalSnapshot{pair.Symbol(): {Rating: ratingPtr("0.5")}}}
	p2 := &fakeProvider{name: "volume", by: map[string]domain.SignalSnapshot{pair.Symbol(): {Volume: ratingPtr("1000")}}}

	agg := New([]ports.SignalProvider{p1, p2})
	require.NoError(t, agg.Refresh(context.Background(), []domain.TradingPair{pair}))

	snaps := agg.SnapshotsFor(pair)
	require.Len(t, snaps, 2)
	assert.Equal(t, 0, snaps["rsi"].Rating.Cmp(decimal.RequireFromString("0.5")))
	assert.Equal(t, 0, snaps["volume"].Volume.Cmp(decimal.RequireFromString("1000")))
}

func TestGlobalRatingAveragesAcrossProviders(t *testing.T) {
	pair := domain.MustTradingPair("BTC", "USDT")
	p1 := &fakeProvider{name: "a", by: map[string]domain.SignalSnapshot{pair.Symbol(): {Rating: ratingPtr("0.6")}}}
	p2 := &fakeProvider{name: "b", by: map[string]domain.SignalSnapshot{pair.Symbol(): {Rating: ratingPtr("0.2")}}}

	agg := New([]ports.SignalProvider{p1, p2})
	require.NoError(t, agg.Refresh(context.Background(), []domain.TradingPair{pair}))

	rating := agg.GlobalRating(pair)
	require.NotNil(t, rating)
	assert.Equal(t, 0, rating.Cmp(decimal.RequireFromString("0.4")))
}

func TestGlobalRatingNilWhenNoProviderReportsRating(t *testing.T) {
	pair := domain.MustTradingPair("BTC", "USDT")
	p1 := &fakeProvider{name: "volume-only", by: map[string]domain.SignalSnapshot{pair.Symbol(): {Volume: ratingPtr("10")}}}

	agg := New([]ports.SignalProvider{p1})
	require.NoError(t, agg.Refresh(context.Background(), []domain.TradingPair{pair}))

	assert.Nil(t, agg.GlobalRating(pair))
}

func TestAggregatedCountsVotes(t *testing.T) {
	pair := domain.MustTradingPair("BTC", "USDT")
	p1 := &fakeProvider{name: "a", by: map[string]domain.SignalSnapshot{pair.Symbol(): {Rating: ratingPtr("0.6")}}}
	p2 := &fakeProvider{name: "b", by: map[string]domain.SignalSnapshot{pair.Symbol(): {Rating: ratingPtr("-0.1")}}}
	p3 := &fakeProvider{name: "c", by: map[string]domain.SignalSnapshot{}}

	agg := New([]ports.SignalProvider{p1, p2, p3})
	require.NoError(t, agg.Refresh(context.Background(), []domain.TradingPair{pair}))

	summary := agg.Aggregated(pair)
	assert.Equal(t, 1, summary.BuyCount)
	assert.Equal(t, 1, summary.SellCount)
	assert.Equal(t, 1, summary.NeutralCount)
}
