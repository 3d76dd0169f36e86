package backtest

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
)

const pairFieldKey = "__pair__"

// tickersFrame builds a tickers entity frame: one field per symbol,
// value is the price's decimal string.
func tickersFrame(at time.Time, prices map[string]domain.Price) *Frame {
	f := &Frame{At: at}
	for symbol, price := range prices {
		f.set(symbol, price.Value().String())
	}
	return f
}

func decodeTickers(f *Frame) map[string]domain.Price {
	out := make(map[string]domain.Price, len(f.Fields))
	for _, fl := range f.Fields {
		v, err := decimal.NewFromString(fl.value)
		if err != nil {
			continue
		}
		out[fl.key] = domain.MustPrice(v)
	}
	return out
}

// signalsFrame builds a signals entity frame for one pair: a __pair__
// marker field plus one field per provider name, value is the
// snapshot's seven optional decimals joined with "|", empty slot for a
// nil field.
func signalsFrame(at time.Time, pair domain.TradingPair, snapshots map[string]domain.SignalSnapshot) *Frame {
	f := &Frame{At: at}
	f.set(pairFieldKey, pair.Symbol())
	for provider, snap := range snapshots {
		f.set(provider, encodeSnapshot(snap))
	}
	return f
}

func encodeSnapshot(s domain.SignalSnapshot) string {
	parts := []string{
		decimalOrEmpty(s.Volume),
		decimalOrEmpty(s.VolumeChange),
		decimalOrEmpty(s.Price),
		decimalOrEmpty(s.PriceChange),
		decimalOrEmpty(s.Rating),
		decimalOrEmpty(s.RatingChange),
		decimalOrEmpty(s.Volatility),
	}
	return strings.Join(parts, "|")
}

func decimalOrEmpty(d *domain.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func decodeSnapshot(encoded string) (domain.SignalSnapshot, error) {
	parts := strings.Split(encoded, "|")
	if len(parts) != 7 {
		return domain.SignalSnapshot{}, fmt.Errorf("backtest.decodeSnapshot: expected 7 fields, got %d", len(parts))
	}
	slots := make([]*domain.Decimal, 7)
	for i, p := range parts {
		if p == "" {
			continue
		}
		v, err := decimal.NewFromString(p)
		if err != nil {
			return domain.SignalSnapshot{}, fmt.Errorf("backtest.decodeSnapshot: field %d: %w", i, err)
		}
		slots[i] = &v
	}
	return domain.SignalSnapshot{
		Volume:       slots[0],
		VolumeChange: slots[1],
		Price:        slots[2],
		PriceChange:  slots[3],
		Rating:       slots[4],
		RatingChange: slots[5],
		Volatility:   slots[6],
	}, nil
}

// decodeSignals returns the pair the frame was captured for and its
// per-provider snapshot map.
func decodeSignals(f *Frame) (string, map[string]domain.SignalSnapshot, error) {
	pair, _ := f.get(pairFieldKey)
	out := make(map[string]domain.SignalSnapshot, len(f.Fields))
	for _, fl := range f.Fields {
		if fl.key == pairFieldKey {
			continue
		}
		snap, err := decodeSnapshot(fl.value)
		if err != nil {
			return pair, nil, fmt.Errorf("backtest.decodeSignals: provider %s: %w", fl.key, err)
		}
		out[fl.key] = snap
	}
	return pair, out, nil
}
