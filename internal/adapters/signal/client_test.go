package signal_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/cryptoengine/internal/adapters/signal"
	"github.com/alejandrodnm/cryptoengine/internal/domain"
)

func TestGetAllSignalsParsesPresentFieldsAndLeavesMissingNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rating":"0.42","price":"65000.50"}`))
	}))
	defer srv.Close()

	c := signal.NewClient("taapi", srv.URL, "", 50)
	snap, err := c.GetAllSignals(context.Background(), domain.MustTradingPair("BTC", "USDT"))
	require.NoError(t, err)

	require.NotNil(t, snap.Rating)
	assert.True(t, snap.Rating.Equal(decimal.NewFromFloat(0.42)))
	require.NotNil(t, snap.Price)
	assert.Nil(t, snap.Volume)
	assert.Nil(t, snap.Volatility)
}

func TestGetAllSignals5xxIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := signal.NewClient("taapi", srv.URL, "", 50)
	_, err := c.GetAllSignals(context.Background(), domain.MustTradingPair("BTC", "USDT"))
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
}

func TestGetAggregatedCountsBuyFromPositiveRating(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rating":"0.7"}`))
	}))
	defer srv.Close()

	c := signal.NewClient("taapi", srv.URL, "", 50)
	agg, err := c.GetAggregated(context.Background(), domain.MustTradingPair("BTC", "USDT"))
	require.NoError(t, err)
	assert.Equal(t, 1, agg.BuyCount)
	assert.Equal(t, 0, agg.SellCount)
}
