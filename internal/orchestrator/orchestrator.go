// Package orchestrator implements the periodic orchestrator (C10): five
// independently cadenced pipelines — tickers, signals, signalRules,
// tradingRules, orderExecution — driven by a monotonic-clock scheduler,
// wiring the rule engine (internal/rules), the trailing-stop manager
// (internal/trailing), the signal aggregator (internal/signals) and the
// order executor (internal/executor) into one running engine.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
	"github.com/alejandrodnm/cryptoengine/internal/executor"
	"github.com/alejandrodnm/cryptoengine/internal/health"
	"github.com/alejandrodnm/cryptoengine/internal/ports"
	"github.com/alejandrodnm/cryptoengine/internal/rules"
	"github.com/alejandrodnm/cryptoengine/internal/signals"
	"github.com/alejandrodnm/cryptoengine/internal/trailing"
)

// Base cadences per §4.8, before replaySpeed scaling.
const (
	tickersInterval    = 1 * time.Second
	signalsInterval    = 7 * time.Second
	signalRulesInterval = 3 * time.Second
	tradingRulesInterval = 3 * time.Second
	orderExecInterval  = 1 * time.Second

	defaultStagger     = 150 * time.Millisecond
	defaultStopTimeout = 20 * time.Second

	// defaultSwapCooldown is the swap-timeout of spec.md §4.5: how long a
	// pair must wait after being swapped out before it can be a swap
	// source again.
	defaultSwapCooldown = 1 * time.Hour

	invariantMarker = "portfolio-invariants"
)

// DCALevel mirrors config.DCALevelConfig without importing the config
// package (orchestrator stays below config in the dependency graph).
type DCALevel struct {
	Multiplier decimal.Decimal
	Margin     domain.Margin
}

// Recorder is the optional record-mode hook (§4.9): when set, every
// tickers/signals tick is serialized before the pipeline returns.
// internal/backtest.Writer implements this; live runs leave it nil.
type Recorder interface {
	RecordTickers(ctx context.Context, at time.Time, prices map[string]domain.Price) error
	RecordSignals(ctx context.Context, at time.Time, pair domain.TradingPair, snapshots map[string]domain.SignalSnapshot) error
}

// Config parameterizes one orchestrator run. The stop-loss/take-profit
// gate configuration lives on the injected *rules.TradingProcessor
// instead of here, since it owns evaluating those gates.
type Config struct {
	Pairs           []domain.TradingPair
	SpeedMultiplier float64
	BuyMaxCost      domain.Money
	DCALevels       []DCALevel
	MaxDCALevels    int
	SellFeePercent  decimal.Decimal
	DCAEnabled      bool
	SwapCooldown    time.Duration

	Stagger     time.Duration
	StopTimeout time.Duration
}

// Orchestrator drives the five pipelines against one portfolio/exchange
// pairing.
type Orchestrator struct {
	cfg Config

	exchange   ports.Exchange
	aggregator *signals.Aggregator
	signalProc atomic.Pointer[rules.SignalProcessor]
	tradingProc atomic.Pointer[rules.TradingProcessor]
	trail      *trailing.Manager
	exec       *executor.Executor
	book       *domain.PositionBook
	portfolio  *domain.Portfolio

	checker  *health.Checker
	notifier ports.Notifier
	log      *slog.Logger
	recorder Recorder

	prices  *priceCache
	queue   *intentQueue
	wg      sync.WaitGroup

	lastSellAtMu sync.Mutex
	lastSellAt   map[string]time.Time

	lastSwapAtMu sync.Mutex
	lastSwapAt   map[string]time.Time

	// tradingSuspended is set once CheckInvariants observes a broken
	// portfolio invariant (§7): new opens/swaps stop being enqueued for
	// the rest of the process's life, closes keep running so existing
	// risk can still be worked off.
	tradingSuspended atomic.Bool
}

// New wires an Orchestrator. checker and recorder may both reasonably be
// nil-ish (checker must not be nil; recorder nil disables record mode).
func New(
	cfg Config,
	exchange ports.Exchange,
	aggregator *signals.Aggregator,
	signalProc *rules.SignalProcessor,
	tradingProc *rules.TradingProcessor,
	trail *trailing.Manager,
	exec *executor.Executor,
	book *domain.PositionBook,
	portfolio *domain.Portfolio,
	checker *health.Checker,
	notifier ports.Notifier,
	log *slog.Logger,
	recorder Recorder,
) *Orchestrator {
	if cfg.Stagger <= 0 {
		cfg.Stagger = defaultStagger
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	if cfg.SpeedMultiplier <= 0 {
		cfg.SpeedMultiplier = 1.0
	}
	if cfg.SwapCooldown <= 0 {
		cfg.SwapCooldown = defaultSwapCooldown
	}
	o := &Orchestrator{
		cfg:        cfg,
		exchange:   exchange,
		aggregator: aggregator,
		trail:      trail,
		exec:       exec,
		book:       book,
		portfolio:  portfolio,
		checker:    checker,
		notifier:   notifier,
		log:        log,
		recorder:   recorder,
		prices:     newPriceCache(),
		queue:      newIntentQueue(256),
		lastSellAt: make(map[string]time.Time),
		lastSwapAt: make(map[string]time.Time),
	}
	o.signalProc.Store(signalProc)
	o.tradingProc.Store(tradingProc)
	return o
}

// UpdateRules swaps in a freshly built signal/trading rule set, the
// orchestrator's half of confwatch's copy-on-write reload contract: the
// next tick of signalRules/tradingRules observes the new rules, in-flight
// ticks finish against whichever pointer they already loaded.
func (o *Orchestrator) UpdateRules(signalProc *rules.SignalProcessor, tradingProc *rules.TradingProcessor) {
	o.signalProc.Store(signalProc)
	o.tradingProc.Store(tradingProc)
}

func (o *Orchestrator) scaled(base time.Duration) time.Duration {
	return time.Duration(float64(base) / o.cfg.SpeedMultiplier)
}

// Run starts all five pipelines, staggered at startup, and blocks until
// ctx is canceled. On cancellation it waits up to cfg.StopTimeout for
// every pipeline and in-flight execution goroutine to finish before
// returning (§4.8 "cooperative stop... waits up to 20s... before forced
// shutdown" — Run itself does not force-kill goroutines since Go offers
// no such primitive; it simply stops waiting and returns).
func (o *Orchestrator) Run(ctx context.Context) {
	pipelines := []pipeline{
		{name: "tickers", interval: o.scaled(tickersInterval), run: o.tickTickers},
		{name: "signals", interval: o.scaled(signalsInterval), run: o.tickSignals},
		{name: "signalRules", interval: o.scaled(signalRulesInterval), run: o.tickSignalRules},
		{name: "tradingRules", interval: o.scaled(tradingRulesInterval), run: o.tickTradingRules},
		{name: "orderExecution", interval: o.scaled(orderExecInterval), run: o.tickOrderExecution},
	}

	var pipelineWg sync.WaitGroup
	for i, p := range pipelines {
		pipelineWg.Add(1)
		go func(p pipeline, delay time.Duration) {
			defer pipelineWg.Done()
			runLoop(ctx, p, delay, o.checker, o.notifier, o.log)
		}(p, time.Duration(i)*o.cfg.Stagger)
	}

	<-ctx.Done()

	done := make(chan struct{})
	go func() {
		pipelineWg.Wait()
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.log.Info("orchestrator stopped cleanly")
	case <-time.After(o.cfg.StopTimeout):
		o.log.Warn("orchestrator stop timed out, forcing shutdown", "timeout", o.cfg.StopTimeout)
	}
}

func (o *Orchestrator) recordLastSell(pair domain.TradingPair, at time.Time) {
	o.lastSellAtMu.Lock()
	defer o.lastSellAtMu.Unlock()
	o.lastSellAt[pair.Symbol()] = at
}

func (o *Orchestrator) getLastSell(pair domain.TradingPair) time.Time {
	o.lastSellAtMu.Lock()
	defer o.lastSellAtMu.Unlock()
	return o.lastSellAt[pair.Symbol()]
}

func (o *Orchestrator) heldPairs() map[string]struct{} {
	held := make(map[string]struct{})
	for _, p := range o.book.Open() {
		held[p.Pair().Symbol()] = struct{}{}
	}
	return held
}

func (o *Orchestrator) dcaCostFor(level int) domain.Money {
	multiplier := decimal.NewFromInt(1)
	if level >= 0 && level < len(o.cfg.DCALevels) {
		multiplier = o.cfg.DCALevels[level].Multiplier
	}
	return o.cfg.BuyMaxCost.Mul(multiplier)
}

func (o *Orchestrator) universe() executor.Universe {
	allowed := make(map[string]struct{}, len(o.cfg.Pairs))
	for _, p := range o.cfg.Pairs {
		allowed[p.Symbol()] = struct{}{}
	}
	return executor.Universe{Allowed: allowed}
}
