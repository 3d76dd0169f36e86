package domain


// Balance tracks total/available/reserved funds, always satisfying
// total = available + reserved (invariant P1).
type Balance struct {
	Total     Money
	Available Money
	Reserved  Money
}

// Portfolio is the aggregate tracking available vs. reserved balance
// across concurrently open positions for a single quote currency (market).
type Portfolio struct {
	id             PortfolioId
	name           string
	market         string
	balance        Balance
	maxPositions   int
	minPositionCost Money
	activePositions map[string]PositionId // pair symbol -> position id
	positionCosts   map[PositionId]Money  // reserved cost at open/DCA time

	events []Event
}

// NewPortfolio creates a portfolio with the given initial balance, all
// available.
func NewPortfolio(name, market string, initial Money, maxPositions int, minPositionCost Money) (*Portfolio, error) {
	market = normalizeCurrency(market)
	if market == "" {
		return nil, &ValidationError{Op: "NewPortfolio", Reason: "market currency must not be empty"}
	}
	if initial.Currency() != "" && initial.Currency() != market {
		return nil, &ValidationError{Op: "NewPortfolio", Reason: "initial balance currency must equal market"}
	}
	if maxPositions <= 0 {
		return nil, &ValidationError{Op: "NewPortfolio", Reason: "maxPositions must be > 0"}
	}
	return &Portfolio{
		id:   NewPortfolioId(),
		name: name,
		market: market,
		balance: Balance{
			Total:     MustMoney(initial.Amount(), market),
			Available: MustMoney(initial.Amount(), market),
			Reserved:  ZeroMoney(market),
		},
		maxPositions:    maxPositions,
		minPositionCost: MustMoney(minPositionCost.Amount(), market),
		activePositions: make(map[string]PositionId),
		positionCosts:   make(map[PositionId]Money),
	}, nil
}

// ID returns the portfolio's identity.
func (pf *Portfolio) ID() PortfolioId { return pf.id }

// Name returns the configured portfolio name.
func (pf *Portfolio) Name() string { return pf.name }

// Market returns the quote currency this portfolio is denominated in.
func (pf *Portfolio) Market() string { return pf.market }

// Balance returns a copy of the current balance.
func (pf *Portfolio) Balance() Balance { return pf.balance }

// MaxPositions returns the configured cap on concurrently open positions.
func (pf *Portfolio) MaxPositions() int { return pf.maxPositions }

// MinPositionCost returns the configured minimum cost to open a position.
func (pf *Portfolio) MinPositionCost() Money { return pf.minPositionCost }

// ActivePositionCount returns the number of currently open positions.
func (pf *Portfolio) ActivePositionCount() int { return len(pf.activePositions) }

// HasPosition reports whether pair already has an open position
// (invariant P2: a pair appears at most once).
func (pf *Portfolio) HasPosition(pair TradingPair) bool {
	_, ok := pf.activePositions[pair.Symbol()]
	return ok
}

// PositionFor returns the open position id for pair, if any.
func (pf *Portfolio) PositionFor(pair TradingPair) (PositionId, bool) {
	id, ok := pf.activePositions[pair.Symbol()]
	return id, ok
}

// CanAfford reports whether available balance covers cost.
func (pf *Portfolio) CanAfford(cost Money) bool {
	return pf.balance.Available.GreaterThanOrEqual(cost)
}

// CanOpenPosition checks invariants P2/P3 plus affordability/min-cost,
// without mutating state. Used by the validator ahead of
// RecordPositionOpened so a rejected intent never touches the aggregate.
func (pf *Portfolio) CanOpenPosition(pair TradingPair, cost Money) error {
	if pf.HasPosition(pair) {
		return &ValidationError{Op: "Portfolio.CanOpenPosition", Reason: "pair already has an open position"}
	}
	if len(pf.activePositions) >= pf.maxPositions {
		return &ValidationError{Op: "Portfolio.CanOpenPosition", Reason: "max positions reached"}
	}
	if cost.LessThan(pf.minPositionCost) {
		return &ValidationError{Op: "Portfolio.CanOpenPosition", Reason: "cost below minimum position cost"}
	}
	if !pf.CanAfford(cost) {
		return &ValidationError{Op: "Portfolio.CanOpenPosition", Reason: "insufficient available balance"}
	}
	return nil
}

// RecordPositionOpened moves cost from available to reserved and inserts
// the pair into the active-positions index.
func (pf *Portfolio) RecordPositionOpened(id PositionId, pair TradingPair, cost Money) error {
	if err := pf.CanOpenPosition(pair, cost); err != nil {
		return err
	}
	pf.balance.Available = pf.balance.Available.MustSub(cost)
	pf.balance.Reserved = pf.balance.Reserved.MustAdd(cost)
	pf.activePositions[pair.Symbol()] = id
	pf.positionCosts[id] = cost
	return nil
}

// RecordPositionCostIncreased moves an additional delta cost from
// available to reserved for a DCA fill on an already-open position.
func (pf *Portfolio) RecordPositionCostIncreased(id PositionId, pair TradingPair, delta Money) error {
	if _, ok := pf.activePositions[pair.Symbol()]; !ok {
		return &ValidationError{Op: "Portfolio.RecordPositionCostIncreased", Reason: "pair has no open position"}
	}
	if !pf.CanAfford(delta) {
		return &ValidationError{Op: "Portfolio.RecordPositionCostIncreased", Reason: "insufficient available balance"}
	}
	pf.balance.Available = pf.balance.Available.MustSub(delta)
	pf.balance.Reserved = pf.balance.Reserved.MustAdd(delta)
	pf.positionCosts[id] = pf.positionCosts[id].MustAdd(delta)
	return nil
}

// RecordPositionClosed releases the originally reserved cost back to
// available, then records PnL = proceeds - reservedCost (which may be
// negative). If the PnL adjustment would push available below zero, it is
// clamped to zero and the delta is instead recorded against total
// (invariant P5).
func (pf *Portfolio) RecordPositionClosed(id PositionId, pair TradingPair, proceeds Money) error {
	reserved, ok := pf.positionCosts[id]
	if !ok {
		return &ValidationError{Op: "Portfolio.RecordPositionClosed", Reason: "unknown position cost"}
	}
	pf.balance.Reserved = pf.balance.Reserved.MustSub(reserved)
	pnl := proceeds.MustSub(reserved)

	newAvailable := pf.balance.Available.MustAdd(reserved).MustAdd(pnl)
	if newAvailable.IsNegative() {
		// Clamp available to zero; total takes the PnL less the
		// shortfall the clamp absorbed, so P1 still holds, per P5.
		shortfall := ZeroMoney(pf.market).MustSub(newAvailable)
		pf.balance.Available = ZeroMoney(pf.market)
		pf.balance.Total = pf.balance.Total.MustAdd(pnl).MustAdd(shortfall)
	} else {
		pf.balance.Available = newAvailable
		pf.balance.Total = pf.balance.Total.MustAdd(pnl)
	}

	delete(pf.activePositions, pair.Symbol())
	delete(pf.positionCosts, id)
	return nil
}

// SyncBalance reconciles total with the exchange-reported total. If the
// new total is less than currently reserved, reserved is clamped to the
// new total and available to zero, and a warning-level event is emitted.
func (pf *Portfolio) SyncBalance(exchangeTotal Money) {
	oldReserved := pf.balance.Reserved
	oldTotal := pf.balance.Total

	if exchangeTotal.LessThan(pf.balance.Reserved) {
		pf.balance.Reserved = MustMoney(exchangeTotal.Amount(), pf.market)
		pf.balance.Available = ZeroMoney(pf.market)
		pf.balance.Total = MustMoney(exchangeTotal.Amount(), pf.market)
		pf.events = append(pf.events, PortfolioBalanceWarning{
			PortfolioId: pf.id,
			OldReserved: oldReserved,
			NewReserved: pf.balance.Reserved,
			OldTotal:    oldTotal,
			NewTotal:    pf.balance.Total,
		})
		return
	}

	pf.balance.Total = MustMoney(exchangeTotal.Amount(), pf.market)
	pf.balance.Available = pf.balance.Total.MustSub(pf.balance.Reserved)
}

// DrainEvents returns and clears the buffered domain events.
func (pf *Portfolio) DrainEvents() []Event {
	out := pf.events
	pf.events = nil
	return out
}

// CheckInvariants asserts P1 holds; used by tests and by a periodic
// self-check in the orchestrator. Returns an InvariantViolation if broken.
func (pf *Portfolio) CheckInvariants() error {
	sum := pf.balance.Available.MustAdd(pf.balance.Reserved)
	if sum.Cmp(pf.balance.Total) != 0 {
		return &InvariantViolation{Op: "Portfolio.CheckInvariants", Details: "available+reserved != total"}
	}
	if len(pf.activePositions) > pf.maxPositions {
		return &InvariantViolation{Op: "Portfolio.CheckInvariants", Details: "active positions exceed maxPositions"}
	}
	return nil
}
