// Package signals implements the signal aggregator (C6): it polls a set
// of SignalProvider ports, merges their per-pair snapshots by provider
// name, and computes a market-wide global rating from each pair's
// aggregated vote.
package signals

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
	"github.com/alejandrodnm/cryptoengine/internal/ports"
)

// providerState is the last snapshot seen from one provider for one pair.
type providerState struct {
	snapshots map[string]domain.SignalSnapshot // pair symbol -> snapshot
}

// Aggregator merges signal snapshots from multiple named providers and
// exposes them for rule evaluation. Safe for concurrent use: Refresh is
// normally called from a single pipeline goroutine, while SnapshotsFor/
// GlobalRating are read concurrently from the rule processors.
type Aggregator struct {
	providers []ports.SignalProvider

	mu        sync.RWMutex
	byProvider map[string]providerState
}

// New creates an aggregator over the given providers.
func New(providers []ports.SignalProvider) *Aggregator {
	return &Aggregator{
		providers:  providers,
		byProvider: make(map[string]providerState, len(providers)),
	}
}

// Refresh polls every provider for pairs and updates the aggregator's
// view. A provider error is logged by the caller (the orchestrator's
// signals pipeline); Refresh itself returns the first error encountered
// but still applies the results that did succeed.
func (a *Aggregator) Refresh(ctx context.Context, pairs []domain.TradingPair) error {
	var firstErr error

	for _, p := range a.providers {
		snaps, err := p.GetSignalsForPairs(ctx, pairs)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("signals.Aggregator.Refresh: provider %s: %w", p.Name(), err)
			}
			continue
		}

		a.mu.Lock()
		a.byProvider[p.Name()] = providerState{snapshots: snaps}
		a.mu.Unlock()
	}

	return firstErr
}

// SnapshotsFor returns the per-provider-name snapshot map for pair,
// suitable for a RuleEvaluationContext.Signals value.
func (a *Aggregator) SnapshotsFor(pair domain.TradingPair) map[string]domain.SignalSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]domain.SignalSnapshot, len(a.byProvider))
	for name, state := range a.byProvider {
		if snap, ok := state.snapshots[pair.Symbol()]; ok {
			out[name] = snap
		}
	}
	return out
}

// GlobalRating returns the market-wide rating for pair: the mean of
// every provider's Rating field that is present, or nil if none report
// one.
func (a *Aggregator) GlobalRating(pair domain.TradingPair) *domain.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var sum decimal.Decimal
	var count int
	for _, state := range a.byProvider {
		snap, ok := state.snapshots[pair.Symbol()]
		if !ok || snap.Rating == nil {
			continue
		}
		sum = sum.Add(*snap.Rating)
		count++
	}
	if count == 0 {
		return nil
	}
	avg := sum.Div(decimal.NewFromInt(int64(count)))
	return &avg
}

// Aggregated computes the vote-count summary a SignalProvider would
// report for its own getAggregated call, but across every wired
// provider: positive Rating counts as buy, negative as sell, zero or
// missing as neutral.
func (a *Aggregator) Aggregated(pair domain.TradingPair) ports.AggregatedSignal {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out ports.AggregatedSignal
	var sum decimal.Decimal
	var count int
	for _, state := range a.byProvider {
		snap, ok := state.snapshots[pair.Symbol()]
		if !ok || snap.Rating == nil {
			out.NeutralCount++
			continue
		}
		switch snap.Rating.Sign() {
		case 1:
			out.BuyCount++
		case -1:
			out.SellCount++
		default:
			out.NeutralCount++
		}
		sum = sum.Add(*snap.Rating)
		count++
	}
	if count > 0 {
		out.OverallRating = sum.Div(decimal.NewFromInt(int64(count)))
	}
	return out
}
