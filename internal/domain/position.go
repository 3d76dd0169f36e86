package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionEntry is one immutable buy fill that contributed to a position
// (the initial open, or a later DCA entry).
type PositionEntry struct {
	OrderId     OrderId
	Price       Price
	Quantity    Quantity
	Fees        Money // in the position's quote currency
	Timestamp   time.Time
	IsMigrated  bool
}

// Cost is price * quantity for this entry. The result carries no
// currency code, so it adds to Money of any currency.
func (e PositionEntry) Cost() Money {
	return Money{amount: e.Price.Value().Mul(e.Quantity.Value())}
}

// Position is the aggregate tracking one open trade against a pair,
// possibly extended by DCA entries. A closed position is frozen: no
// further mutation is accepted (invariant I1).
type Position struct {
	id         PositionId
	pair       TradingPair
	quote      string
	signalRule string
	entries    []PositionEntry
	openedAt   time.Time
	lastBuyAt  time.Time
	isClosed   bool
	closedAt   time.Time

	events []Event
}

// OpenPosition creates a new position with its first entry. Fails when
// price or quantity is zero.
func OpenPosition(pair TradingPair, orderId OrderId, price Price, qty Quantity, fees Money, signalRule string, now time.Time) (*Position, error) {
	if !price.IsPositive() {
		return nil, &ValidationError{Op: "OpenPosition", Reason: "price must be > 0"}
	}
	if !qty.IsPositive() {
		return nil, &ValidationError{Op: "OpenPosition", Reason: "quantity must be > 0"}
	}
	quote := pair.Quote()
	if fees.Currency() != "" && fees.Currency() != quote {
		return nil, &ValidationError{Op: "OpenPosition", Reason: "fee currency must equal position quote currency"}
	}

	p := &Position{
		id:        NewPositionId(),
		pair:      pair,
		quote:     quote,
		signalRule: signalRule,
		openedAt:  now,
		lastBuyAt: now,
	}
	entry := PositionEntry{OrderId: orderId, Price: price, Quantity: qty, Fees: fees, Timestamp: now}
	p.entries = append(p.entries, entry)
	p.events = append(p.events, PositionOpened{
		baseEvent:  NewBaseEvent(now),
		PositionId: p.id,
		Pair:       pair,
		Price:      price,
		Quantity:   qty,
		Fees:       fees,
		SignalRule: signalRule,
	})
	return p, nil
}

// ID returns the position's identity.
func (p *Position) ID() PositionId { return p.id }

// Pair returns the traded pair.
func (p *Position) Pair() TradingPair { return p.pair }

// QuoteCurrency returns the quote currency of the position.
func (p *Position) QuoteCurrency() string { return p.quote }

// SignalRule returns the name of the signal rule that opened this
// position, if any.
func (p *Position) SignalRule() string { return p.signalRule }

// OpenedAt returns the timestamp of the initial entry.
func (p *Position) OpenedAt() time.Time { return p.openedAt }

// LastBuyAt returns the timestamp of the most recent buy (open or DCA).
func (p *Position) LastBuyAt() time.Time { return p.lastBuyAt }

// IsClosed reports whether the position has been closed.
func (p *Position) IsClosed() bool { return p.isClosed }

// ClosedAt returns the close timestamp; zero if still open.
func (p *Position) ClosedAt() time.Time { return p.closedAt }

// Entries returns the ordered, immutable list of entries.
func (p *Position) Entries() []PositionEntry {
	out := make([]PositionEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

// DCALevel returns max(0, len(entries)-1).
func (p *Position) DCALevel() int {
	if len(p.entries) == 0 {
		return 0
	}
	return len(p.entries) - 1
}

// TotalQuantity sums quantity across all entries.
func (p *Position) TotalQuantity() Quantity {
	total := decimal.Zero
	for _, e := range p.entries {
		total = total.Add(e.Quantity.Value())
	}
	return MustQuantity(total)
}

// TotalCost sums price*quantity across all entries.
func (p *Position) TotalCost() Money {
	total := decimal.Zero
	for _, e := range p.entries {
		total = total.Add(e.Cost().Amount())
	}
	return MustMoney(total, p.quote)
}

// TotalFees sums fees across all entries.
func (p *Position) TotalFees() Money {
	total := decimal.Zero
	for _, e := range p.entries {
		total = total.Add(e.Fees.Amount())
	}
	return MustMoney(total, p.quote)
}

// AveragePrice returns totalCost/totalQty, or ZeroPrice if quantity is
// zero (never the case for an open position, but kept total for safety).
func (p *Position) AveragePrice() Price {
	qty := p.TotalQuantity()
	if qty.IsZero() {
		return ZeroPrice
	}
	return MustPrice(p.TotalCost().Amount().Div(qty.Value()))
}

// AddDCAEntry appends another buy entry to an open position, moving
// lastBuyAt forward. Fails when the position is closed, or when the fee
// currency does not match the position's quote currency.
func (p *Position) AddDCAEntry(orderId OrderId, price Price, qty Quantity, fees Money, now time.Time) error {
	if p.isClosed {
		return &ValidationError{Op: "Position.AddDCAEntry", Reason: "position is closed"}
	}
	if !price.IsPositive() {
		return &ValidationError{Op: "Position.AddDCAEntry", Reason: "price must be > 0"}
	}
	if !qty.IsPositive() {
		return &ValidationError{Op: "Position.AddDCAEntry", Reason: "quantity must be > 0"}
	}
	if fees.Currency() != "" && fees.Currency() != p.quote {
		return &ValidationError{Op: "Position.AddDCAEntry", Reason: "fee currency must equal position quote currency"}
	}

	p.entries = append(p.entries, PositionEntry{OrderId: orderId, Price: price, Quantity: qty, Fees: fees, Timestamp: now})
	p.lastBuyAt = now

	p.events = append(p.events, DCAExecuted{
		baseEvent:       NewBaseEvent(now),
		PositionId:      p.id,
		Pair:            p.pair,
		Price:           price,
		Quantity:        qty,
		Fees:            fees,
		NewAveragePrice: p.AveragePrice(),
		NewTotalCost:    p.TotalCost(),
		NewTotalQty:     p.TotalQuantity(),
		DCALevel:        p.DCALevel(),
	})
	return nil
}

// Close closes the position against a sell fill. Fails when already
// closed, or when sellPrice is zero. Emits a PositionClosed event carrying
// the final fee-aware margin.
func (p *Position) Close(sellOrderId OrderId, sellPrice Price, sellFees Money, now time.Time) error {
	if p.isClosed {
		return &ValidationError{Op: "Position.Close", Reason: "position already closed"}
	}
	if !sellPrice.IsPositive() {
		return &ValidationError{Op: "Position.Close", Reason: "sell price must be > 0"}
	}
	_ = sellOrderId // recorded by the caller's order log; not part of aggregate state

	proceeds := sellPrice.Mul(p.TotalQuantity(), p.quote).MustSub(sellFees)
	margin := p.CalculateMargin(sellPrice, decimal.Zero, &sellFees)

	p.isClosed = true
	p.closedAt = now

	p.events = append(p.events, PositionClosed{
		baseEvent:   NewBaseEvent(now),
		PositionId:  p.id,
		Pair:        p.pair,
		SellPrice:   sellPrice,
		Proceeds:    proceeds,
		FinalMargin: margin,
		Duration:    now.Sub(p.openedAt),
	})
	return nil
}

// Proceeds computes sellPrice*totalQty - sellFees without mutating state;
// used by the executor to validate a close before committing it.
func (p *Position) Proceeds(sellPrice Price, sellFees Money) Money {
	return sellPrice.Mul(p.TotalQuantity(), p.quote).MustSub(sellFees)
}

// CalculateMargin returns the unrealized/realized PnL percentage at
// currentPrice: ((currentValue - fullCost) / fullCost) * 100, where
// fullCost includes buy fees and an optional estimated-sell-fees
// percentage (applied to currentValue) or an explicit sell fee Money.
func (p *Position) CalculateMargin(currentPrice Price, estimatedSellFeePct decimal.Decimal, explicitSellFees *Money) Margin {
	qty := p.TotalQuantity()
	if qty.IsZero() {
		return ZeroMargin
	}
	fullCost := p.TotalCost().MustAdd(p.TotalFees()).Amount()
	currentValue := currentPrice.Value().Mul(qty.Value())
	if explicitSellFees != nil {
		currentValue = currentValue.Sub(explicitSellFees.Amount())
	} else if estimatedSellFeePct.IsPositive() {
		currentValue = currentValue.Mul(decimal.NewFromInt(1).Sub(estimatedSellFeePct.Div(hundred)))
	}
	if fullCost.IsZero() {
		return ZeroMargin
	}
	ratio := currentValue.Sub(fullCost).Div(fullCost)
	return MarginFromRatio(ratio)
}

// CanDCAByPriceDrop reports whether currentPrice has dropped at least
// minDropPct below the average entry price, and the position is still
// open.
func (p *Position) CanDCAByPriceDrop(currentPrice Price, minDropPct decimal.Decimal) bool {
	if p.isClosed {
		return false
	}
	avg := p.AveragePrice()
	if avg.IsZero() {
		return false
	}
	dropPct := avg.Value().Sub(currentPrice.Value()).Div(avg.Value()).Mul(hundred)
	return dropPct.GreaterThanOrEqual(minDropPct)
}

// DrainEvents returns and clears the buffered domain events. Callers (the
// executor, under the portfolio lock) push these onto the event channel
// after a successful mutation commits.
func (p *Position) DrainEvents() []Event {
	out := p.events
	p.events = nil
	return out
}

// BreakEvenPrice returns the price at which selling the full quantity,
// paying feePct on the sell, exactly recovers totalCost+buyFees.
func (p *Position) BreakEvenPrice(feePct decimal.Decimal) Price {
	qty := p.TotalQuantity()
	if qty.IsZero() {
		return ZeroPrice
	}
	fullCost := p.TotalCost().MustAdd(p.TotalFees()).Amount()
	feeMultiplier := decimal.NewFromInt(1).Sub(feePct.Div(hundred))
	if feeMultiplier.IsZero() {
		return ZeroPrice
	}
	return MustPrice(fullCost.Div(qty.Value().Mul(feeMultiplier)))
}

// TargetSellPrice returns the price at which selling at margin m% (fee
// aware) would be realized.
func (p *Position) TargetSellPrice(marginPct decimal.Decimal, feePct decimal.Decimal) Price {
	qty := p.TotalQuantity()
	if qty.IsZero() {
		return ZeroPrice
	}
	fullCost := p.TotalCost().MustAdd(p.TotalFees()).Amount()
	targetValue := fullCost.Mul(decimal.NewFromInt(1).Add(marginPct.Div(hundred)))
	feeMultiplier := decimal.NewFromInt(1).Sub(feePct.Div(hundred))
	if feeMultiplier.IsZero() {
		return ZeroPrice
	}
	return MustPrice(targetValue.Div(qty.Value().Mul(feeMultiplier)))
}
