package domain

import "time"

// TrailingDirection distinguishes a buy-side trailing stop (catching a dip)
// from a sell-side trailing stop (riding a rally).
type TrailingDirection string

const (
	TrailingBuy  TrailingDirection = "BUY"
	TrailingSell TrailingDirection = "SELL"
)

// StopAction decides what happens when a trailing stop's hard stopMargin is
// breached.
type StopAction string

const (
	StopActionExecute StopAction = "EXECUTE"
	StopActionCancel  StopAction = "CANCEL"
)

// TrailingConfig parameterizes one trailing-stop state machine.
type TrailingConfig struct {
	TrailingPercentage Decimal
	StopMargin         Margin
	StopAction         StopAction
}

// TrailingState is the mutable state of one active trailing stop for a
// pair. Only one state may exist per pair at a time (buy XOR sell); the
// Direction field discriminates which semantics apply, mirroring the
// Buy/Sell variants from the data model: for TrailingBuy, PositionId and
// InitialMargin are unused (zero value) until the buy fires and opens a
// position; for TrailingSell, PositionId and TargetMargin are always set.
type TrailingState struct {
	Pair          TradingPair
	Direction     TrailingDirection
	PositionId    PositionId // sell-side only
	Config        TrailingConfig
	Cost          Money // buy-side only: intended spend
	TargetMargin  Margin // sell-side only: the margin initiating the sell intent
	InitialPrice  Price
	InitialMargin Margin
	BestMargin    Margin
	LastMargin    Margin
	SignalRule    string
	StartedAt     time.Time
}

// TrailingOutcome is the result of one trailing-manager tick on a pair.
type TrailingOutcome string

const (
	TrailingContinue TrailingOutcome = "CONTINUE"
	TrailingTrigger  TrailingOutcome = "TRIGGER"
	TrailingCancel   TrailingOutcome = "CANCEL"
	TrailingDisabled TrailingOutcome = "DISABLED"
)

// TrailingResult reports the outcome of evaluating one tick against a
// TrailingState, and (on Trigger) the state as it stood right before
// removal, for logging/notification purposes.
type TrailingResult struct {
	Outcome TrailingOutcome
	State   TrailingState
	Reason  string
}
