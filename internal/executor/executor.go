// Package executor implements the validate → place → reconcile → record
// order pipeline (C9): the only component allowed to mutate a Portfolio
// and its Positions, always under a single exclusive lock held for the
// whole sequence except while the exchange call itself is in flight.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
	"github.com/alejandrodnm/cryptoengine/internal/ports"
)

// Executor sequences one order intent at a time against the portfolio
// lock. Multiple intents may be in flight concurrently (each gets its
// own goroutine from the orchestrator); the lock serializes their
// validate/reconcile sections but lets their exchange calls overlap.
type Executor struct {
	Portfolio *domain.Portfolio
	Book      *domain.PositionBook
	Exchange  ports.Exchange
	Notifier  ports.Notifier
	Audit     ports.AuditStore
	TradeLog  ports.TradeLog
	Validator TradingConstraintValidator
	History   *OrderHistory
	Log       *slog.Logger

	mu      sync.Mutex
	idemSeq uint64
}

// New wires an Executor. history may be nil to fall back to the default
// 10 000-entry ring (§4.7 point 4).
func New(pf *domain.Portfolio, book *domain.PositionBook, exchange ports.Exchange, notifier ports.Notifier, audit ports.AuditStore, tradeLog ports.TradeLog, validator TradingConstraintValidator, history *OrderHistory, log *slog.Logger) *Executor {
	if history == nil {
		history = NewOrderHistory(10_000)
	}
	return &Executor{
		Portfolio: pf,
		Book:      book,
		Exchange:  exchange,
		Notifier:  notifier,
		Audit:     audit,
		TradeLog:  tradeLog,
		Validator: validator,
		History:   history,
		Log:       log,
	}
}

// idempotencyKey derives a client-side key from position-id + action +
// a monotonic counter, per §5 "Idempotency".
func (e *Executor) idempotencyKey(positionId domain.PositionId, action string) string {
	seq := atomic.AddUint64(&e.idemSeq, 1)
	id := positionId.String()
	if positionId.IsZero() {
		id = "new"
	}
	return fmt.Sprintf("%s:%s:%d", id, action, seq)
}

// Open executes an Open intent: validate under lock, place with the
// lock released, reconcile and record under lock again.
func (e *Executor) Open(ctx context.Context, universe Universe, intent Intent, lastSellAt time.Time, now time.Time, speedMultiplier float64) error {
	e.mu.Lock()
	if err := e.Validator.ValidateOpen(e.Portfolio, universe, intent.Pair, intent.Cost, lastSellAt, now, speedMultiplier); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	if !intent.Price.IsPositive() {
		return &domain.ValidationError{Op: "Executor.Open", Reason: "reference price must be > 0"}
	}
	qty := domain.MustQuantity(intent.Cost.Amount().Div(intent.Price.Value()))
	key := e.idempotencyKey(domain.PositionId{}, "open")

	result, err := e.place(ctx, domain.Order{Pair: intent.Pair, Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: qty}, key)
	if err != nil {
		return err
	}
	if !result.Status.IsTerminal() || result.Status != domain.StatusFilled {
		return e.rejectedOrUnchanged(result, intent.Pair, "Executor.Open")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos, err := domain.OpenPosition(intent.Pair, result.OrderId, result.AveragePrice, result.FilledQty, result.Fees, intent.SignalRule, now)
	if err != nil {
		return err
	}
	if err := e.Portfolio.RecordPositionOpened(pos.ID(), intent.Pair, result.Cost.MustAdd(result.Fees)); err != nil {
		return err
	}
	e.Book.Put(pos)

	e.record(ctx, pos.ID(), intent.Pair, domain.SideBuy, result, intent.SignalRule, nil, now)
	e.Notifier.Notify(ports.LevelInfo, fmt.Sprintf("opened %s at %s, qty %s", intent.Pair, result.AveragePrice, result.FilledQty.Value()))
	return nil
}

// DCA executes a DCA intent against an already-open position.
func (e *Executor) DCA(ctx context.Context, intent Intent, currentPrice domain.Price, currentMargin domain.Margin, maxLevels int, now time.Time, speedMultiplier float64) error {
	e.mu.Lock()
	pos, ok := e.Book.Get(intent.PositionId)
	if !ok {
		e.mu.Unlock()
		return &domain.ValidationError{Op: "Executor.DCA", Reason: "unknown position"}
	}
	if err := e.Validator.ValidateDCA(e.Portfolio, pos, currentPrice, currentMargin, intent.Cost, maxLevels, now, speedMultiplier); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	qty := domain.MustQuantity(intent.Cost.Amount().Div(currentPrice.Value()))
	key := e.idempotencyKey(intent.PositionId, "dca")

	result, err := e.place(ctx, domain.Order{Pair: intent.Pair, Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: qty}, key)
	if err != nil {
		return err
	}
	if !result.Status.IsTerminal() || result.Status != domain.StatusFilled {
		return e.rejectedOrUnchanged(result, intent.Pair, "Executor.DCA")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok = e.Book.Get(intent.PositionId)
	if !ok {
		return &domain.ValidationError{Op: "Executor.DCA", Reason: "position vanished during placement"}
	}
	if err := pos.AddDCAEntry(result.OrderId, result.AveragePrice, result.FilledQty, result.Fees, now); err != nil {
		return err
	}
	if err := e.Portfolio.RecordPositionCostIncreased(pos.ID(), intent.Pair, result.Cost.MustAdd(result.Fees)); err != nil {
		return err
	}

	e.record(ctx, pos.ID(), intent.Pair, domain.SideBuy, result, intent.SignalRule, nil, now)
	e.Notifier.Notify(ports.LevelInfo, fmt.Sprintf("DCA %s level %d at %s", intent.Pair, pos.DCALevel(), result.AveragePrice))
	return nil
}

// Close executes a Close intent (StopLoss/TakeProfit/Sell/Swap-out).
// strict controls whether MinProfit/MinHoldingPeriod gates block the
// close outright or merely warn.
func (e *Executor) Close(ctx context.Context, intent Intent, currentMargin domain.Margin, strict bool, now time.Time) error {
	e.mu.Lock()
	pos, ok := e.Book.Get(intent.PositionId)
	if !ok {
		e.mu.Unlock()
		return &domain.ValidationError{Op: "Executor.Close", Reason: "unknown position"}
	}
	check := e.Validator.ValidateClose(pos, intent, currentMargin, now, strict)
	if check.Warning != "" {
		e.Notifier.Notify(ports.LevelWarning, fmt.Sprintf("%s: %s", intent.Pair, check.Warning))
	}
	if check.Blocked {
		e.mu.Unlock()
		return &domain.ValidationError{Op: "Executor.Close", Reason: check.Warning}
	}
	qty := pos.TotalQuantity()
	e.mu.Unlock()

	key := e.idempotencyKey(intent.PositionId, "close")
	result, err := e.place(ctx, domain.Order{Pair: intent.Pair, Side: domain.SideSell, Type: domain.OrderTypeMarket, Quantity: qty}, key)
	if err != nil {
		return err
	}
	if !result.Status.IsTerminal() || result.Status != domain.StatusFilled {
		return e.rejectedOrUnchanged(result, intent.Pair, "Executor.Close")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok = e.Book.Get(intent.PositionId)
	if !ok {
		return &domain.ValidationError{Op: "Executor.Close", Reason: "position vanished during placement"}
	}
	proceeds := pos.Proceeds(result.AveragePrice, result.Fees)
	if err := pos.Close(result.OrderId, result.AveragePrice, result.Fees, now); err != nil {
		return err
	}
	if err := e.Portfolio.RecordPositionClosed(pos.ID(), intent.Pair, proceeds); err != nil {
		return err
	}

	finalMargin := pos.CalculateMargin(result.AveragePrice, decimal.Zero, &result.Fees)
	if e.Audit != nil {
		if err := e.Audit.RecordClosedPosition(ctx, intent.Pair.Symbol(), pos.ID(), pos.OpenedAt(), now, pos.TotalCost().Amount(), proceeds.Amount(), finalMargin.Percent()); err != nil && e.Log != nil {
			e.Log.Warn("persistence degraded: record closed position failed", "pair", intent.Pair, "err", err)
		}
	}

	e.record(ctx, pos.ID(), intent.Pair, domain.SideSell, result, intent.SignalRule, &finalMargin, now)
	e.Notifier.Notify(ports.LevelInfo, fmt.Sprintf("closed %s at %s, margin %s", intent.Pair, result.AveragePrice, finalMargin))
	return nil
}

// place submits order and classifies the outcome. A network/timeout
// error is re-wrapped as AmbiguousPlacement, since a write call whose
// outcome is unknown can't be assumed to have failed (§7).
func (e *Executor) place(ctx context.Context, order domain.Order, key string) (domain.ExecutionResult, error) {
	result, err := e.Exchange.Place(ctx, order, key)
	if err == nil {
		return result, nil
	}
	switch err.(type) {
	case *domain.ValidationError, *domain.ExchangeRejected:
		return domain.ExecutionResult{}, err
	default:
		return domain.ExecutionResult{}, &domain.AmbiguousPlacement{Op: "Executor.place", IdempotencyKey: key, Cause: err}
	}
}

func (e *Executor) rejectedOrUnchanged(result domain.ExecutionResult, pair domain.TradingPair, op string) error {
	if result.Status == domain.StatusRejected || result.Status == domain.StatusExpired {
		e.Notifier.Notify(ports.LevelWarning, fmt.Sprintf("%s: order %s for %s", op, result.Status, pair))
		return &domain.ExchangeRejected{Op: op, Status: result.Status, Reason: "exchange reported terminal non-fill status"}
	}
	return &domain.ValidationError{Op: op, Reason: fmt.Sprintf("unexpected non-terminal status %s", result.Status)}
}

// record pushes the fill to the in-memory history ring, the on-disk
// trade log, and the audit store (§4.7 point 4). Recording failures are
// logged, not propagated: the fill already committed to domain state,
// which remains the source of truth alongside the append-only trade log.
func (e *Executor) record(ctx context.Context, positionId domain.PositionId, pair domain.TradingPair, side domain.OrderSide, result domain.ExecutionResult, signalRule string, margin *domain.Margin, now time.Time) {
	e.History.Push(HistoryEntry{
		At:         now,
		Pair:       pair.Symbol(),
		Side:       side,
		OrderId:    result.OrderId,
		PositionId: positionId,
		Quantity:   result.FilledQty,
		Price:      result.AveragePrice,
		SignalRule: signalRule,
	})

	var marginPtr *decimal.Decimal
	if margin != nil {
		v := margin.Percent()
		marginPtr = &v
	}
	rec := ports.TradeRecord{
		Timestamp:    now,
		Pair:         pair.Symbol(),
		Side:         side,
		OrderId:      result.OrderId.String(),
		Price:        result.AveragePrice.Value(),
		Quantity:     result.FilledQty.Value(),
		Cost:         result.Cost.Amount(),
		Fees:         result.Fees.Amount(),
		FeesCurrency: result.FeesCurrency,
		SignalRule:   signalRule,
		Margin:       marginPtr,
	}

	if e.TradeLog != nil {
		if err := e.TradeLog.Append(ctx, rec); err != nil && e.Log != nil {
			e.Log.Warn("persistence degraded: trade log append failed", "pair", pair, "err", err)
		}
	}
	if e.Audit != nil {
		if err := e.Audit.RecordOrder(ctx, rec, result.Status); err != nil && e.Log != nil {
			e.Log.Warn("persistence degraded: audit record order failed", "pair", pair, "err", err)
		}
	}
}
