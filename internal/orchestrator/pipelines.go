package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
	"github.com/alejandrodnm/cryptoengine/internal/executor"
	"github.com/alejandrodnm/cryptoengine/internal/health"
	"github.com/alejandrodnm/cryptoengine/internal/ports"
	"github.com/alejandrodnm/cryptoengine/internal/rules"
)

// tickTickers refreshes the shared price cache from the exchange. It is
// the only pipeline that writes prices; every other pipeline reads the
// cache it publishes.
func (o *Orchestrator) tickTickers(ctx context.Context) error {
	prices, err := o.exchange.GetPrices(ctx, o.cfg.Pairs)
	if err != nil {
		return fmt.Errorf("tickTickers: %w", err)
	}
	o.prices.setAll(prices)

	if o.recorder != nil {
		if err := o.recorder.RecordTickers(ctx, time.Now(), prices); err != nil {
			o.log.Warn("persistence degraded: record tickers failed", "err", err)
		}
	}
	return nil
}

// tickSignals refreshes the signal aggregator from every wired provider.
func (o *Orchestrator) tickSignals(ctx context.Context) error {
	if err := o.aggregator.Refresh(ctx, o.cfg.Pairs); err != nil {
		return fmt.Errorf("tickSignals: %w", err)
	}

	if o.recorder != nil {
		for _, pair := range o.cfg.Pairs {
			snap := o.aggregator.SnapshotsFor(pair)
			if err := o.recorder.RecordSignals(ctx, time.Now(), pair, snap); err != nil {
				o.log.Warn("persistence degraded: record signals failed", "pair", pair, "err", err)
			}
		}
	}
	return nil
}

// tickSignalRules resolves buy-side trailing updates and evaluates the
// signal RuleSet over every configured pair, enqueuing Open intents for
// whatever matches (C7); held pairs can only yield Swap candidates.
func (o *Orchestrator) tickSignalRules(ctx context.Context) error {
	now := time.Now()
	prices := o.prices.snapshot()
	bySymbol := o.pairsBySymbol()

	for _, sym := range o.trail.Pairs() {
		pair, known := bySymbol[sym]
		if !known {
			continue
		}
		state, ok := o.trail.Active(pair)
		if !ok || state.Direction != domain.TrailingBuy {
			continue
		}
		price, ok := prices[sym]
		if !ok {
			continue
		}
		result, ok := o.trail.UpdateBuy(state.Pair, price, false)
		if !ok {
			continue
		}
		switch result.Outcome {
		case domain.TrailingTrigger:
			o.enqueueOpen(state.Pair, result.State.Cost, price, result.State.SignalRule)
		case domain.TrailingCancel, domain.TrailingDisabled:
			o.notifier.Notify(ports.LevelInfo, fmt.Sprintf("buy trailing on %s ended: %s", state.Pair, result.Reason))
		}
	}

	if o.tradingSuspended.Load() {
		return nil
	}

	held := o.heldPairs()
	sigMap := make(map[string]map[string]domain.SignalSnapshot, len(o.cfg.Pairs))
	for _, pair := range o.cfg.Pairs {
		sigMap[pair.Symbol()] = o.aggregator.SnapshotsFor(pair)
	}

	// Every pair is passed through, held ones included: SignalProcessor
	// itself excludes held pairs unless the matched rule's action is
	// Swap, so filtering held pairs out here would make Swap candidates
	// on currently-owned pairs unreachable.
	for _, pair := range o.cfg.Pairs {
		rating := o.aggregator.GlobalRating(pair)
		candidates := o.signalProc.Load().Process([]domain.TradingPair{pair}, sigMap, prices, held, rating)
		for _, c := range candidates {
			if c.Rule.Action == rules.ActionSwap {
				o.enqueueSwap(c, now)
				continue
			}
			if c.Rule.Trailing != nil {
				o.trail.InitiateBuyTrailing(c.Pair, o.cfg.BuyMaxCost, *c.Rule.Trailing, c.CurrentPrice, c.Rule.Name, now)
				continue
			}
			o.enqueueOpen(c.Pair, o.cfg.BuyMaxCost, c.CurrentPrice, c.Rule.Name)
		}
	}
	return nil
}

// enqueueSwap implements the close-then-open swap sequence of spec.md
// §4.5: the worst-margin owned pair clear of the swap cooldown is closed
// and the matched candidate is opened in its place.
func (o *Orchestrator) enqueueSwap(c rules.SignalCandidate, now time.Time) {
	worst, margin, ok := o.worstSwapSource(c.Pair, now)
	if !ok {
		o.notifier.Notify(ports.LevelInfo, fmt.Sprintf("swap rule %s matched for %s but no eligible owned pair to swap out", c.Rule.Name, c.Pair))
		return
	}
	o.enqueueClose(worst.ID(), worst.Pair(), margin, false)
	o.enqueueOpen(c.Pair, o.cfg.BuyMaxCost, c.CurrentPrice, c.Rule.Name)
	o.recordSwap(worst.Pair(), now)
}

// worstSwapSource picks the open position with the lowest current margin
// among pairs other than candidate that are past their swap cooldown.
func (o *Orchestrator) worstSwapSource(candidate domain.TradingPair, now time.Time) (*domain.Position, domain.Margin, bool) {
	var worst *domain.Position
	var worstMargin domain.Margin

	for _, pos := range o.book.Open() {
		pair := pos.Pair()
		if pair.EqualFold(candidate) {
			continue
		}
		price, ok := o.prices.get(pair.Symbol())
		if !ok {
			continue
		}
		if o.swapCooldownActive(pair, now) {
			continue
		}
		margin := pos.CalculateMargin(price, o.cfg.SellFeePercent, nil)
		if worst == nil || margin.Cmp(worstMargin) < 0 {
			worst, worstMargin = pos, margin
		}
	}
	return worst, worstMargin, worst != nil
}

func (o *Orchestrator) swapCooldownActive(pair domain.TradingPair, now time.Time) bool {
	o.lastSwapAtMu.Lock()
	defer o.lastSwapAtMu.Unlock()
	at, ok := o.lastSwapAt[pair.Symbol()]
	if !ok {
		return false
	}
	return now.Sub(at) < o.scaled(o.cfg.SwapCooldown)
}

func (o *Orchestrator) recordSwap(pair domain.TradingPair, at time.Time) {
	o.lastSwapAtMu.Lock()
	defer o.lastSwapAtMu.Unlock()
	o.lastSwapAt[pair.Symbol()] = at
}

func (o *Orchestrator) enqueueOpen(pair domain.TradingPair, cost domain.Money, price domain.Price, signalRule string) {
	if o.tradingSuspended.Load() {
		return
	}
	qi := queuedIntent{intent: executor.Intent{
		Kind:       executor.IntentOpen,
		Pair:       pair,
		Cost:       cost,
		Price:      price,
		SignalRule: signalRule,
	}}
	if !o.queue.push(qi) {
		o.notifier.Notify(ports.LevelWarning, fmt.Sprintf("intent queue full, dropped open for %s", pair))
	}
}

// tickTradingRules resolves sell-side trailing updates and evaluates the
// trading RuleSet over every open position without an active trailing
// state (C8).
func (o *Orchestrator) tickTradingRules(ctx context.Context) error {
	now := time.Now()

	if err := o.portfolio.CheckInvariants(); err != nil {
		o.tradingSuspended.Store(true)
		o.checker.RaiseMarker(invariantMarker, health.StatusCritical)
		balance := o.portfolio.Balance()
		o.log.Error("portfolio invariant violated, suspending new positions",
			"err", err,
			"total", balance.Total,
			"available", balance.Available,
			"reserved", balance.Reserved,
			"active_positions", o.portfolio.ActivePositionCount(),
		)
		o.notifier.Notify(ports.LevelCritical, fmt.Sprintf("portfolio invariant violated, new positions suspended: %v", err))
	}

	for _, pos := range o.book.Open() {
		pair := pos.Pair()
		price, ok := o.prices.get(pair.Symbol())
		if !ok {
			continue
		}
		margin := pos.CalculateMargin(price, o.cfg.SellFeePercent, nil)

		if state, active := o.trail.Active(pair); active && state.Direction == domain.TrailingSell {
			result, ok := o.trail.UpdateSell(pair, margin, false)
			if !ok {
				continue
			}
			switch result.Outcome {
			case domain.TrailingTrigger:
				o.enqueueClose(pos.ID(), pair, margin, false)
			case domain.TrailingCancel, domain.TrailingDisabled:
				o.notifier.Notify(ports.LevelInfo, fmt.Sprintf("sell trailing on %s ended: %s", pair, result.Reason))
			}
			continue
		}

		// The snapshot carries raw ages: the rule predicates divide by
		// SpeedMultiplier themselves. Only the stop-loss gate takes the
		// scaled age.
		rawAgeSeconds := now.Sub(pos.OpenedAt()).Seconds()
		ageSeconds := rawAgeSeconds / o.cfg.SpeedMultiplier

		evalCtx := domain.RuleEvaluationContext{
			Pair:    pair,
			Signals: o.aggregator.SnapshotsFor(pair),
			Position: &domain.PositionSnapshot{
				Pair:          pair,
				CurrentAge:    domain.Duration(rawAgeSeconds),
				LastBuyAge:    domain.Duration(now.Sub(pos.LastBuyAt()).Seconds()),
				CurrentMargin: margin,
				TotalAmount:   pos.TotalQuantity(),
				CurrentCost:   pos.TotalCost(),
				DCALevel:      pos.DCALevel(),
				SignalRule:    pos.SignalRule(),
			},
			SpeedMultiplier: o.cfg.SpeedMultiplier,
		}

		dca := rules.DCAGate{Enabled: o.cfg.DCAEnabled, Level: pos.DCALevel(), MaxLevels: o.cfg.MaxDCALevels}
		decision := o.tradingProc.Load().Evaluate(pos.ID(), evalCtx, margin, ageSeconds, dca)

		switch decision.Action {
		case rules.ActionStopLoss, rules.ActionTakeProfit:
			o.enqueueClose(pos.ID(), pair, margin, true)
		case rules.ActionSell:
			if decision.Rule != nil && decision.Rule.Trailing != nil {
				o.trail.InitiateSellTrailing(pair, pos.ID(), *decision.Rule.Trailing, price, margin, pos.SignalRule(), now)
			} else {
				o.enqueueClose(pos.ID(), pair, margin, false)
			}
		case rules.ActionDCA:
			o.enqueueDCA(pos.ID(), pair, price, margin)
		case rules.ActionAlert:
			o.notifier.Notify(ports.LevelInfo, fmt.Sprintf("alert rule matched for %s: %s", pair, decision.Rule.Name))
		case rules.ActionSwap:
			o.enqueueSwapOut(pos, margin, now)
		}
	}
	return nil
}

// enqueueSwapOut is the trading-side half of the swap sequence: a held
// position's own trading rules called for a swap, so it is closed and
// the highest globally-rated pair not already held is opened in its
// place.
func (o *Orchestrator) enqueueSwapOut(pos *domain.Position, margin domain.Margin, now time.Time) {
	if o.tradingSuspended.Load() {
		return
	}
	held := o.heldPairs()
	target, price, ok := o.bestSwapTarget(held)
	if !ok {
		o.notifier.Notify(ports.LevelInfo, fmt.Sprintf("swap rule matched for %s but no eligible target pair to swap into", pos.Pair()))
		return
	}
	o.enqueueClose(pos.ID(), pos.Pair(), margin, false)
	o.enqueueOpen(target, o.cfg.BuyMaxCost, price, "swap")
	o.recordSwap(pos.Pair(), now)
}

// bestSwapTarget picks the not-yet-held pair with the highest global
// signal rating, breaking ties by o.cfg.Pairs order.
func (o *Orchestrator) bestSwapTarget(held map[string]struct{}) (domain.TradingPair, domain.Price, bool) {
	var best domain.TradingPair
	var bestPrice domain.Price
	var bestRating domain.Decimal
	found := false

	for _, pair := range o.cfg.Pairs {
		if _, isHeld := held[pair.Symbol()]; isHeld {
			continue
		}
		price, ok := o.prices.get(pair.Symbol())
		if !ok {
			continue
		}
		rating := o.aggregator.GlobalRating(pair)
		if rating == nil {
			continue
		}
		if !found || rating.Cmp(bestRating) > 0 {
			best, bestPrice, bestRating, found = pair, price, *rating, true
		}
	}
	return best, bestPrice, found
}

func (o *Orchestrator) enqueueClose(positionId domain.PositionId, pair domain.TradingPair, margin domain.Margin, strict bool) {
	qi := queuedIntent{
		intent: executor.Intent{
			Kind:       executor.IntentClose,
			Pair:       pair,
			PositionId: positionId,
		},
		currentMargin: margin,
		strictClose:   strict,
	}
	if !o.queue.push(qi) {
		o.notifier.Notify(ports.LevelWarning, fmt.Sprintf("intent queue full, dropped close for %s", pair))
	}
}

func (o *Orchestrator) enqueueDCA(positionId domain.PositionId, pair domain.TradingPair, price domain.Price, margin domain.Margin) {
	level := 0
	if pos, ok := o.book.Get(positionId); ok {
		level = pos.DCALevel()
	}
	qi := queuedIntent{
		intent: executor.Intent{
			Kind:       executor.IntentDCA,
			Pair:       pair,
			PositionId: positionId,
			Cost:       o.dcaCostFor(level),
			Price:      price,
		},
		currentPrice:  price,
		currentMargin: margin,
		maxDCALevels:  o.cfg.MaxDCALevels,
	}
	if !o.queue.push(qi) {
		o.notifier.Notify(ports.LevelWarning, fmt.Sprintf("intent queue full, dropped DCA for %s", pair))
	}
}

// tickOrderExecution drains the intent queue and dispatches each intent
// to the executor on its own goroutine, decoupling rule-evaluation
// cadence from exchange round-trip latency (§4.8).
func (o *Orchestrator) tickOrderExecution(ctx context.Context) error {
	now := time.Now()
	universe := o.universe()

	for _, qi := range o.queue.drain() {
		qi := qi
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.dispatch(ctx, qi, universe, now)
		}()
	}
	return nil
}

func (o *Orchestrator) dispatch(ctx context.Context, qi queuedIntent, universe executor.Universe, now time.Time) {
	var err error
	switch qi.intent.Kind {
	case executor.IntentOpen:
		err = o.exec.Open(ctx, universe, qi.intent, o.getLastSell(qi.intent.Pair), now, o.cfg.SpeedMultiplier)
	case executor.IntentDCA:
		err = o.exec.DCA(ctx, qi.intent, qi.currentPrice, qi.currentMargin, qi.maxDCALevels, now, o.cfg.SpeedMultiplier)
	case executor.IntentClose:
		err = o.exec.Close(ctx, qi.intent, qi.currentMargin, qi.strictClose, now)
		if err == nil {
			o.recordLastSell(qi.intent.Pair, now)
			o.trail.Cancel(qi.intent.Pair)
		}
	}
	if err != nil {
		if domain.IsRetryable(err) {
			if !o.queue.push(qi) {
				o.notifier.Notify(ports.LevelWarning, fmt.Sprintf("retry queue full, dropping %s intent for %s", qi.intent.Kind, qi.intent.Pair))
			}
			return
		}
		o.log.Warn("order intent failed", "kind", qi.intent.Kind, "pair", qi.intent.Pair, "err", err)
	}
}

// pairsBySymbol indexes the configured universe by symbol, since
// trailing.Manager.Pairs() returns bare symbols rather than TradingPair
// values.
func (o *Orchestrator) pairsBySymbol() map[string]domain.TradingPair {
	out := make(map[string]domain.TradingPair, len(o.cfg.Pairs))
	for _, p := range o.cfg.Pairs {
		out[p.Symbol()] = p
	}
	return out
}
