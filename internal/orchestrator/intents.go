package orchestrator

import (
	"github.com/alejandrodnm/cryptoengine/internal/domain"
	"github.com/alejandrodnm/cryptoengine/internal/executor"
)

// queuedIntent is a candidate produced by the signalRules or
// tradingRules pipeline, awaiting execution on the orderExecution
// pipeline's own cadence (§4.8: pipelines run independently, so rule
// evaluation never blocks on an exchange round trip, and vice versa).
type queuedIntent struct {
	intent        executor.Intent
	currentPrice  domain.Price
	currentMargin domain.Margin
	strictClose   bool
	maxDCALevels  int
}

// intentQueue is a small bounded, non-blocking mailbox between the
// rule-evaluation pipelines and the orderExecution pipeline. A full
// queue drops the newest intent and logs it — the same "never block a
// pipeline" posture as the notifier (§5).
type intentQueue struct {
	ch chan queuedIntent
}

func newIntentQueue(capacity int) *intentQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &intentQueue{ch: make(chan queuedIntent, capacity)}
}

func (q *intentQueue) push(qi queuedIntent) bool {
	select {
	case q.ch <- qi:
		return true
	default:
		return false
	}
}

// drain returns every intent currently buffered without blocking.
func (q *intentQueue) drain() []queuedIntent {
	var out []queuedIntent
	for {
		select {
		case qi := <-q.ch:
			out = append(out, qi)
		default:
			return out
		}
	}
}
