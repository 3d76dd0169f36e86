package domain

import "time"

// Event is the closed sum type of domain events emitted by aggregate
// mutations. Aggregates append events to an in-memory buffer; a dedicated
// worker drains it and fans out to notification/persistence/health sinks.
// Mutations never invoke handlers synchronously.
type Event interface {
	eventMarker()
	OccurredAt() time.Time
}

type baseEvent struct {
	At time.Time
}

func (baseEvent) eventMarker()          {}
func (e baseEvent) OccurredAt() time.Time { return e.At }

// PositionOpened is emitted when a new position is created.
type PositionOpened struct {
	baseEvent
	PositionId PositionId
	Pair       TradingPair
	Price      Price
	Quantity   Quantity
	Fees       Money
	SignalRule string
}

// DCAExecuted is emitted when a DCA entry is appended to an open position.
type DCAExecuted struct {
	baseEvent
	PositionId     PositionId
	Pair           TradingPair
	Price          Price
	Quantity       Quantity
	Fees           Money
	NewAveragePrice Price
	NewTotalCost    Money
	NewTotalQty     Quantity
	DCALevel        int
}

// PositionClosed is emitted when a position is closed by a sell.
type PositionClosed struct {
	baseEvent
	PositionId  PositionId
	Pair        TradingPair
	SellPrice   Price
	Proceeds    Money
	FinalMargin Margin
	Duration    time.Duration
}

// PortfolioBalanceWarning is emitted when syncBalance must clamp reserved
// below what was tracked, indicating drift between the engine's bookkeeping
// and the exchange's reported balance.
type PortfolioBalanceWarning struct {
	baseEvent
	PortfolioId PortfolioId
	OldReserved Money
	NewReserved Money
	OldTotal    Money
	NewTotal    Money
}

// TrailingTriggered is emitted when a trailing-stop state machine fires.
type TrailingTriggered struct {
	baseEvent
	Pair        TradingPair
	Direction   TrailingDirection
	BestMargin  Margin
	FinalMargin Margin
}

// TrailingCancelled is emitted when a trailing-stop state machine is
// cancelled without triggering a trade.
type TrailingCancelled struct {
	baseEvent
	Pair      TradingPair
	Direction TrailingDirection
	Reason    string
}

// NewBaseEvent is a helper for constructing the embedded baseEvent with the
// current time; replay code may instead construct baseEvent directly with a
// recorded timestamp.
func NewBaseEvent(at time.Time) baseEvent { return baseEvent{At: at} }
