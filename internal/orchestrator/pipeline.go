package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/cryptoengine/internal/health"
	"github.com/alejandrodnm/cryptoengine/internal/ports"
)

// pipeline is one of the five cadenced workers described in §4.8: a
// name, a base interval (scaled by speedMultiplier), and a unit of work
// run to completion once per tick.
type pipeline struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

// runLoop drives one pipeline on a monotonic-clock schedule: next = start
// + n*interval, per the design notes' replacement for a thread-pool +
// Sleep-slippage scheduler. If a tick's work overruns the interval, the
// next tick is not dropped — it starts immediately and the overrun is
// accumulated for the health snapshot.
func runLoop(ctx context.Context, p pipeline, startDelay time.Duration, checker *health.Checker, notifier ports.Notifier, log *slog.Logger) {
	timer := time.NewTimer(startDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return
	}

	start := time.Now()
	var n int64

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		next := start.Add(time.Duration(n) * p.interval)
		n++
		var overrun time.Duration
		if wait := time.Until(next); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return
			}
		} else {
			overrun = -wait
		}

		if err := p.run(ctx); err != nil {
			checker.Fault(p.name, time.Now(), err)
			notifier.Notify(ports.LevelWarning, fmt.Sprintf("pipeline %s fault: %v", p.name, err))
			log.Error("pipeline fault", "pipeline", p.name, "err", err)
			continue
		}
		checker.Tick(p.name, time.Now(), overrun)
	}
}
