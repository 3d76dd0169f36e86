package backtest

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameEncodeDecodeRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 890_000_000, time.UTC)
	f := &Frame{At: at}
	f.set("BTCUSDT", "50000.12")
	f.set("ETHUSDT", "2500.5")

	decoded, err := decodeFrame(bytes.NewReader(f.encode()))
	require.NoError(t, err)

	assert.True(t, decoded.At.Equal(at))
	assert.Len(t, decoded.Fields, 2)
	v, ok := decoded.get("BTCUSDT")
	assert.True(t, ok)
	assert.Equal(t, "50000.12", v)
}

func TestFramePathLayout(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 890_000_000, time.UTC)
	path := framePath("snapshots", "tickers", at)
	assert.Equal(t, "snapshots/tickers/2026-03-04/05/06-07-890.bin", path)
}
