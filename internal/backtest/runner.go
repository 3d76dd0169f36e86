package backtest

import (
	"context"
	"time"

	"github.com/alejandrodnm/cryptoengine/internal/health"
)

// Summary is the BacktestingCompleted report spec.md §4.9 emits once the
// snapshot stream runs dry: run counts and per-pipeline average lag
// ("wait time" the pipeline accumulated behind schedule).
type Summary struct {
	Started  time.Time
	Finished time.Time
	Ticks    map[string]int64
	AvgLag   map[string]time.Duration
}

// Runner drives an orchestrator against replayed snapshots until the
// ticker stream is exhausted, then cancels it and builds a Summary from
// the shared health.Checker.
type Runner struct {
	tickers *TickerReplayer
	checker *health.Checker
	poll    time.Duration
}

// NewRunner watches tickers for exhaustion, polling at the given
// interval (typically a small fraction of the orchestrator's scaled
// tickers cadence).
func NewRunner(tickers *TickerReplayer, checker *health.Checker, poll time.Duration) *Runner {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	return &Runner{tickers: tickers, checker: checker, poll: poll}
}

// WatchUntilExhausted blocks until the ticker replayer runs out of
// recorded frames or ctx is canceled, then cancels cancel to stop the
// orchestrator it is paired with.
func (r *Runner) WatchUntilExhausted(ctx context.Context, cancel context.CancelFunc) Summary {
	started := time.Now()
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return r.summarize(started)
		case <-ticker.C:
			if r.tickers.Exhausted() {
				cancel()
				return r.summarize(started)
			}
		}
	}
}

func (r *Runner) summarize(started time.Time) Summary {
	snap := r.checker.Snapshot()
	s := Summary{
		Started:  started,
		Finished: time.Now(),
		Ticks:    make(map[string]int64, len(snap.Heartbeats)),
		AvgLag:   make(map[string]time.Duration, len(snap.Heartbeats)),
	}
	for _, hb := range snap.Heartbeats {
		s.Ticks[hb.Pipeline] = hb.TickCount
		if hb.TickCount > 0 {
			s.AvgLag[hb.Pipeline] = hb.OverrunSum / time.Duration(hb.TickCount)
		}
	}
	return s
}
