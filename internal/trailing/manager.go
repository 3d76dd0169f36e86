// Package trailing implements the per-pair trailing-stop state machines
// (C5): buy-side trailing catches a dip before entering, sell-side
// trailing rides a rally before exiting.
package trailing

import (
	"sync"
	"time"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
)

// Manager holds at most one trailing state per pair and applies the
// per-tick update rules from §4.4. All mutating operations serialize
// through mu; reads of the active set also take the lock since the map
// is mutated in place.
type Manager struct {
	mu     sync.Mutex
	states map[string]*domain.TrailingState // pair symbol -> state
}

// NewManager creates an empty trailing manager.
func NewManager() *Manager {
	return &Manager{states: make(map[string]*domain.TrailingState)}
}

// InitiateSellTrailing starts a sell-side trailing stop for pair,
// removing any buy trailing already active on it (only one direction per
// pair at a time).
func (m *Manager) InitiateSellTrailing(pair domain.TradingPair, positionId domain.PositionId, cfg domain.TrailingConfig, initialPrice domain.Price, currentMargin domain.Margin, signalRule string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[pair.Symbol()] = &domain.TrailingState{
		Pair:          pair,
		Direction:     domain.TrailingSell,
		PositionId:    positionId,
		Config:        cfg,
		TargetMargin:  currentMargin,
		InitialPrice:  initialPrice,
		InitialMargin: currentMargin,
		BestMargin:    currentMargin,
		LastMargin:    currentMargin,
		SignalRule:    signalRule,
		StartedAt:     now,
	}
}

// InitiateBuyTrailing starts a buy-side trailing stop for pair, removing
// any sell trailing already active on it. Margin is tracked relative to
// initialPrice and starts at zero.
func (m *Manager) InitiateBuyTrailing(pair domain.TradingPair, cost domain.Money, cfg domain.TrailingConfig, initialPrice domain.Price, signalRule string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[pair.Symbol()] = &domain.TrailingState{
		Pair:          pair,
		Direction:     domain.TrailingBuy,
		Config:        cfg,
		Cost:          cost,
		InitialPrice:  initialPrice,
		InitialMargin: domain.ZeroMargin,
		BestMargin:    domain.ZeroMargin,
		LastMargin:    domain.ZeroMargin,
		SignalRule:    signalRule,
		StartedAt:     now,
	}
}

// Cancel removes any trailing state for pair without producing a result.
func (m *Manager) Cancel(pair domain.TradingPair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, pair.Symbol())
}

// Active reports whether pair currently has a trailing state, and which.
func (m *Manager) Active(pair domain.TradingPair) (domain.TrailingState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[pair.Symbol()]
	if !ok {
		return domain.TrailingState{}, false
	}
	return *s, true
}

// Pairs returns the symbols of every pair with an active trailing state.
func (m *Manager) Pairs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.states))
	for sym := range m.states {
		out = append(out, sym)
	}
	return out
}

// UpdateSell applies one tick of the sell-side state machine (§4.4) given
// the current margin. If pairDisabled is true, the state is removed with
// a Disabled outcome regardless of margin.
func (m *Manager) UpdateSell(pair domain.TradingPair, currentMargin domain.Margin, pairDisabled bool) (domain.TrailingResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.states[pair.Symbol()]
	if !ok || s.Direction != domain.TrailingSell {
		return domain.TrailingResult{}, false
	}

	if pairDisabled {
		snapshot := *s
		delete(m.states, pair.Symbol())
		return domain.TrailingResult{Outcome: domain.TrailingDisabled, State: snapshot, Reason: "pair disabled"}, true
	}

	if currentMargin.LessThanOrEqual(s.Config.StopMargin) {
		snapshot := *s
		delete(m.states, pair.Symbol())
		if s.Config.StopAction == domain.StopActionExecute {
			return domain.TrailingResult{Outcome: domain.TrailingTrigger, State: snapshot, Reason: "stop margin breached"}, true
		}
		return domain.TrailingResult{Outcome: domain.TrailingCancel, State: snapshot, Reason: "stop margin breached, stopAction=cancel"}, true
	}

	trailBehind := domain.NewMargin(s.BestMargin.Percent().Sub(s.Config.TrailingPercentage))
	if currentMargin.Cmp(trailBehind) < 0 {
		snapshot := *s
		delete(m.states, pair.Symbol())
		positiveMargin := currentMargin.Percent().Sign() > 0
		targetNegative := s.TargetMargin.Percent().Sign() < 0
		if positiveMargin || targetNegative {
			return domain.TrailingResult{Outcome: domain.TrailingTrigger, State: snapshot, Reason: "trailing pullback from best margin"}, true
		}
		return domain.TrailingResult{Outcome: domain.TrailingCancel, State: snapshot, Reason: "refused to lock in a negative exit"}, true
	}

	s.LastMargin = currentMargin
	if currentMargin.Cmp(s.BestMargin) > 0 {
		s.BestMargin = currentMargin
	}
	return domain.TrailingResult{Outcome: domain.TrailingContinue, State: *s}, true
}

// UpdateBuy applies one tick of the buy-side state machine (§4.4) given
// the current price. Margin is derived as (currentPrice -
// initialPrice)/initialPrice * 100.
func (m *Manager) UpdateBuy(pair domain.TradingPair, currentPrice domain.Price, pairDisabled bool) (domain.TrailingResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.states[pair.Symbol()]
	if !ok || s.Direction != domain.TrailingBuy {
		return domain.TrailingResult{}, false
	}

	if pairDisabled {
		snapshot := *s
		delete(m.states, pair.Symbol())
		return domain.TrailingResult{Outcome: domain.TrailingDisabled, State: snapshot, Reason: "pair disabled"}, true
	}

	currentMargin := buyMargin(s.InitialPrice, currentPrice)

	if currentMargin.GreaterThanOrEqual(s.Config.StopMargin) {
		snapshot := *s
		delete(m.states, pair.Symbol())
		if s.Config.StopAction == domain.StopActionExecute {
			return domain.TrailingResult{Outcome: domain.TrailingTrigger, State: snapshot, Reason: "stop margin breached"}, true
		}
		return domain.TrailingResult{Outcome: domain.TrailingCancel, State: snapshot, Reason: "stop margin breached, stopAction=cancel"}, true
	}

	trailAhead := domain.NewMargin(s.BestMargin.Percent().Add(s.Config.TrailingPercentage))
	if currentMargin.Cmp(trailAhead) > 0 {
		snapshot := *s
		delete(m.states, pair.Symbol())
		return domain.TrailingResult{Outcome: domain.TrailingTrigger, State: snapshot, Reason: "price rebounded past trailing band"}, true
	}

	s.LastMargin = currentMargin
	if currentMargin.Cmp(s.BestMargin) < 0 {
		s.BestMargin = currentMargin
	}
	return domain.TrailingResult{Outcome: domain.TrailingContinue, State: *s}, true
}

// buyMargin computes (current-initial)/initial * 100; a negative result
// means price dropped, which is favorable for a buy trail.
func buyMargin(initial, current domain.Price) domain.Margin {
	if initial.IsZero() {
		return domain.ZeroMargin
	}
	ratio := current.Value().Sub(initial.Value()).Div(initial.Value())
	return domain.MarginFromRatio(ratio)
}
