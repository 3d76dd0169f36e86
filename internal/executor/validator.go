package executor

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
)

// IntentKind discriminates the three shapes of order intent the
// constraint validator checks before anything touches the exchange.
type IntentKind string

const (
	IntentOpen  IntentKind = "OPEN"
	IntentDCA   IntentKind = "DCA"
	IntentClose IntentKind = "CLOSE"
)

// Intent is what the orchestrator hands to the executor after rule
// evaluation: an action against a pair (Open, or against an existing
// position (DCA/Close).
type Intent struct {
	Kind           IntentKind
	Pair           domain.TradingPair
	PositionId     domain.PositionId // zero for Open
	Cost           domain.Money      // intended spend, Open/DCA only
	Price          domain.Price      // reference price used to size the order
	SignalRule     string
	MinProfit      *domain.Margin // Close only, optional gate
	MinHoldingSecs float64        // Close only, optional gate
}

// Universe restricts which pairs an Open intent may target and which are
// temporarily blocked (e.g. reconcile-pending after an ambiguous
// placement).
type Universe struct {
	Allowed map[string]struct{}
	Blocked map[string]struct{}
}

func (u Universe) isAllowed(pair domain.TradingPair) bool {
	if len(u.Allowed) == 0 {
		return true
	}
	_, ok := u.Allowed[pair.Symbol()]
	return ok
}

func (u Universe) isBlocked(pair domain.TradingPair) bool {
	_, ok := u.Blocked[pair.Symbol()]
	return ok
}

// TradingConstraintValidator applies the Open/DCA/Close gates of §4.7
// ahead of any exchange call, so a rejected intent never reaches the
// exchange or mutates domain state.
type TradingConstraintValidator struct {
	MinBuySellInterval time.Duration
	DCACooldown        time.Duration
	MaxCumulativeCost  domain.Money // zero currency means "no cap"
	MinDCAPriceDropPct decimal.Decimal
	MinDCAMarginDrop   domain.Margin
}

// ValidateOpen checks the Open gates against portfolio/universe state,
// and MIN_BUY_SELL_INTERVAL against lastSellAt for the pair (a sell that
// just closed a position on this pair blocks a same-pair open for the
// configured interval, scaled by speedMultiplier during replay).
func (v TradingConstraintValidator) ValidateOpen(pf *domain.Portfolio, universe Universe, pair domain.TradingPair, cost domain.Money, lastActivityAt time.Time, now time.Time, speedMultiplier float64) error {
	if !universe.isAllowed(pair) {
		return &domain.ValidationError{Op: "ValidateOpen", Reason: "pair not in allowed universe"}
	}
	if universe.isBlocked(pair) {
		return &domain.ValidationError{Op: "ValidateOpen", Reason: "pair is reconcile-pending"}
	}
	if err := pf.CanOpenPosition(pair, cost); err != nil {
		return err
	}
	if cost.Currency() != pf.Market() {
		return &domain.ValidationError{Op: "ValidateOpen", Reason: "cost currency does not match portfolio market"}
	}
	if !lastActivityAt.IsZero() {
		interval := scaledInterval(v.MinBuySellInterval, speedMultiplier)
		if now.Sub(lastActivityAt) < interval {
			return &domain.ValidationError{Op: "ValidateOpen", Reason: "MIN_BUY_SELL_INTERVAL has not elapsed"}
		}
	}
	return nil
}

// ValidateDCA checks the DCA gates: existence and open state are the
// caller's responsibility (it holds the *domain.Position already);
// here we check level, price/margin drop thresholds, cooldown, funds,
// and a cumulative-cost cap.
func (v TradingConstraintValidator) ValidateDCA(pf *domain.Portfolio, pos *domain.Position, currentPrice domain.Price, currentMargin domain.Margin, delta domain.Money, maxLevels int, now time.Time, speedMultiplier float64) error {
	if pos.IsClosed() {
		return &domain.ValidationError{Op: "ValidateDCA", Reason: "position is closed"}
	}
	if pos.DCALevel() >= maxLevels {
		return &domain.ValidationError{Op: "ValidateDCA", Reason: "max DCA levels reached"}
	}
	if !pos.CanDCAByPriceDrop(currentPrice, v.MinDCAPriceDropPct) {
		return &domain.ValidationError{Op: "ValidateDCA", Reason: "price has not dropped enough for DCA"}
	}
	if currentMargin.GreaterThanOrEqual(v.MinDCAMarginDrop) {
		return &domain.ValidationError{Op: "ValidateDCA", Reason: "margin has not dropped enough for DCA"}
	}
	cooldown := scaledInterval(v.DCACooldown, speedMultiplier)
	if now.Sub(pos.LastBuyAt()) < cooldown {
		return &domain.ValidationError{Op: "ValidateDCA", Reason: "DCA cooldown has not elapsed"}
	}
	if !pf.CanAfford(delta) {
		return &domain.ValidationError{Op: "ValidateDCA", Reason: "insufficient available balance"}
	}
	if v.MaxCumulativeCost.Currency() != "" {
		projected := pos.TotalCost().MustAdd(delta)
		if projected.Cmp(v.MaxCumulativeCost) > 0 {
			return &domain.ValidationError{Op: "ValidateDCA", Reason: "cumulative cost cap exceeded"}
		}
	}
	return nil
}

// ValidateClose checks the optional min-profit/min-holding-period
// gates. Both are "gate or warn only": a nil threshold never blocks,
// and the caller decides whether a violated threshold blocks the close
// outright (strict) or only logs a warning before proceeding.
type CloseCheck struct {
	Blocked bool
	Warning string
}

// ValidateClose evaluates the optional gates against the position and
// returns whether to block the close, plus a warning message for
// notification when the gate is non-blocking but still worth flagging.
func (v TradingConstraintValidator) ValidateClose(pos *domain.Position, intent Intent, currentMargin domain.Margin, now time.Time, strict bool) CloseCheck {
	if pos.IsClosed() {
		return CloseCheck{Blocked: true, Warning: "position is already closed"}
	}
	if intent.MinProfit != nil && currentMargin.LessThanOrEqual(*intent.MinProfit) {
		msg := "closing below configured min-profit threshold"
		return CloseCheck{Blocked: strict, Warning: msg}
	}
	if intent.MinHoldingSecs > 0 {
		held := now.Sub(pos.OpenedAt()).Seconds()
		if held < intent.MinHoldingSecs {
			msg := "closing before configured min-holding-period"
			return CloseCheck{Blocked: strict, Warning: msg}
		}
	}
	return CloseCheck{}
}

func scaledInterval(base time.Duration, speedMultiplier float64) time.Duration {
	if speedMultiplier <= 0 {
		speedMultiplier = 1.0
	}
	return time.Duration(float64(base) / speedMultiplier)
}
