package backtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
	"github.com/alejandrodnm/cryptoengine/internal/ports"
)

// SignalReplayer implements ports.SignalProvider over recorded signals
// frames for one pair universe, replacing every live SignalProvider
// during replay (spec.md §4.9).
type SignalReplayer struct {
	name   string
	baseDir string

	mu        sync.Mutex
	framesBy  map[string][]*Frame // pair symbol -> ordered frames
	cursorBy  map[string]int
	currentBy map[string]map[string]domain.SignalSnapshot // pair symbol -> provider -> snapshot
	exhausted bool
}

// NewSignalReplayer loads every recorded signals frame for pairs under
// baseDir.
func NewSignalReplayer(baseDir string, pairs []domain.TradingPair) (*SignalReplayer, error) {
	r := &SignalReplayer{
		name:      "replay",
		baseDir:   baseDir,
		framesBy:  make(map[string][]*Frame),
		cursorBy:  make(map[string]int),
		currentBy: make(map[string]map[string]domain.SignalSnapshot),
	}
	for _, p := range pairs {
		entity := fmt.Sprintf("%s/%s", entitySignals, p.Symbol())
		frames, err := loadFrames(baseDir, entity)
		if err != nil {
			return nil, fmt.Errorf("backtest.NewSignalReplayer: %w", err)
		}
		r.framesBy[p.Symbol()] = frames
	}
	return r, nil
}

func (r *SignalReplayer) Name() string { return r.name }

// advance consumes the next recorded frame for symbol, if any remain.
func (r *SignalReplayer) advance(symbol string) {
	frames := r.framesBy[symbol]
	cursor := r.cursorBy[symbol]
	if cursor >= len(frames) {
		r.exhausted = true
		return
	}
	_, snapshots, err := decodeSignals(frames[cursor])
	if err == nil {
		r.currentBy[symbol] = snapshots
	}
	r.cursorBy[symbol] = cursor + 1
}

// Exhausted reports whether a GetSignalsForPairs call has found a
// requested pair with no recorded frame left; it turns true as soon as
// any one pair runs dry, not only once every pair has.
func (r *SignalReplayer) Exhausted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exhausted
}

// GetSignalsForPairs advances each requested pair's cursor by one frame
// and returns a single snapshot per pair, merged across every provider
// recorded in that frame. When several recorded providers set the same
// field, which provider's value is kept is not defined. The aggregator
// then files the merged snapshot under this replayer's own provider
// name, so rules see one "replay" signal per pair.
func (r *SignalReplayer) GetSignalsForPairs(ctx context.Context, pairs []domain.TradingPair) (map[string]domain.SignalSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]domain.SignalSnapshot, len(pairs))
	for _, p := range pairs {
		r.advance(p.Symbol())
		providers, ok := r.currentBy[p.Symbol()]
		if !ok {
			continue
		}
		out[p.Symbol()] = mergeSnapshots(providers)
	}
	return out, nil
}

func mergeSnapshots(byProvider map[string]domain.SignalSnapshot) domain.SignalSnapshot {
	var merged domain.SignalSnapshot
	for _, snap := range byProvider {
		if snap.Volume != nil {
			merged.Volume = snap.Volume
		}
		if snap.VolumeChange != nil {
			merged.VolumeChange = snap.VolumeChange
		}
		if snap.Price != nil {
			merged.Price = snap.Price
		}
		if snap.PriceChange != nil {
			merged.PriceChange = snap.PriceChange
		}
		if snap.Rating != nil {
			merged.Rating = snap.Rating
		}
		if snap.RatingChange != nil {
			merged.RatingChange = snap.RatingChange
		}
		if snap.Volatility != nil {
			merged.Volatility = snap.Volatility
		}
	}
	return merged
}

// GetAllSignals returns the current merged snapshot for pair without
// advancing its cursor (a pure read, matching a live provider's
// point-in-time query semantics).
func (r *SignalReplayer) GetAllSignals(ctx context.Context, pair domain.TradingPair) (domain.SignalSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	providers, ok := r.currentBy[pair.Symbol()]
	if !ok {
		return domain.SignalSnapshot{}, nil
	}
	return mergeSnapshots(providers), nil
}

// GetAggregated reduces the current snapshot for pair into a vote count,
// matching signals.Aggregator.Aggregated's sign-of-Rating convention.
func (r *SignalReplayer) GetAggregated(ctx context.Context, pair domain.TradingPair) (ports.AggregatedSignal, error) {
	snap, _ := r.GetAllSignals(ctx, pair)
	var out ports.AggregatedSignal
	if snap.Rating == nil {
		out.NeutralCount = 1
		return out, nil
	}
	switch snap.Rating.Sign() {
	case 1:
		out.BuyCount = 1
	case -1:
		out.SellCount = 1
	default:
		out.NeutralCount = 1
	}
	out.OverallRating = *snap.Rating
	return out, nil
}

// Subscribe polls the current snapshot for pair at a fixed interval and
// forwards it, closing the channel when ctx is done — a push-style
// adapter over what is otherwise a pull-only replay source.
func (r *SignalReplayer) Subscribe(ctx context.Context, pair domain.TradingPair) (<-chan domain.SignalSnapshot, error) {
	ch := make(chan domain.SignalSnapshot, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap, err := r.GetAllSignals(ctx, pair)
				if err != nil {
					continue
				}
				select {
				case ch <- snap:
				default:
				}
			}
		}
	}()
	return ch, nil
}

var _ ports.SignalProvider = (*SignalReplayer)(nil)
