// Package notify implements ports.Notifier as a non-blocking console
// sink, grounded on the teacher's notify.Console table-mode output
// (internal/adapters/notify/console.go) but replacing the
// opportunity-table domain with trade/position notifications and
// adding the drop-oldest buffering the port's "never block a pipeline"
// contract requires.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/cryptoengine/internal/ports"
)

// entry is one buffered notification awaiting delivery.
type entry struct {
	level ports.Level
	text  string
	at    time.Time
}

// Console is a best-effort ports.Notifier: Notify enqueues onto a
// bounded channel and returns immediately. When the buffer is full the
// oldest queued entry is dropped to make room, and the drop is logged —
// the alternative (blocking the caller) would stall a trading pipeline
// on a slow or stuck notification channel, which the engine must never
// do (§5 concurrency model: no pipeline step may block on I/O it
// doesn't own).
type Console struct {
	out   io.Writer
	log   *slog.Logger
	queue chan entry
	done  chan struct{}
}

// NewConsole starts a Console writing to stdout with a buffer of
// capacity entries.
func NewConsole(log *slog.Logger, capacity int) *Console {
	return newConsole(os.Stdout, log, capacity)
}

// NewConsoleForTest starts a Console writing to w, for tests that need
// to inspect delivered output.
func NewConsoleForTest(w io.Writer, log *slog.Logger, capacity int) *Console {
	return newConsole(w, log, capacity)
}

func newConsole(w io.Writer, log *slog.Logger, capacity int) *Console {
	if capacity <= 0 {
		capacity = 256
	}
	c := &Console{
		out:   w,
		log:   log,
		queue: make(chan entry, capacity),
		done:  make(chan struct{}),
	}
	go c.drain()
	return c
}

// Notify enqueues text for delivery, dropping the oldest buffered entry
// first if the queue is full. Never blocks.
func (c *Console) Notify(level ports.Level, text string) {
	e := entry{level: level, text: text, at: time.Now()}
	select {
	case c.queue <- e:
		return
	default:
	}

	select {
	case old := <-c.queue:
		c.log.Warn("notification queue full, dropping oldest", "dropped", old.text)
	default:
	}
	select {
	case c.queue <- e:
	default:
		c.log.Warn("notification queue full, dropping newest", "dropped", text)
	}
}

// Close stops the delivery goroutine, draining any buffered entries
// first.
func (c *Console) Close() {
	close(c.queue)
	<-c.done
}

func (c *Console) drain() {
	defer close(c.done)
	for e := range c.queue {
		fmt.Fprintf(c.out, "[%s] %-8s %s\n", e.at.Format("15:04:05"), e.level, e.text)
	}
}

// PortfolioLine is one row of the open-positions table that
// PrintPortfolioSummary renders.
type PortfolioLine struct {
	Pair         string
	Cost         string
	CurrentValue string
	Margin       string
	DCALevel     int
	HeldSince    time.Duration
}

// PrintPortfolioSummary renders a table of currently open positions
// directly to w, bypassing the queue: this is a synchronous
// status view (CLI --status), not a pipeline notification.
func PrintPortfolioSummary(w io.Writer, totalValue, freeCapital string, lines []PortfolioLine) {
	fmt.Fprintf(w, "\nPortfolio — total value %s, free capital %s\n", totalValue, freeCapital)
	if len(lines) == 0 {
		fmt.Fprintln(w, "  (no open positions)")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Pair", "Cost", "Value", "Margin", "DCA", "Held")
	for _, l := range lines {
		table.Append(
			l.Pair,
			l.Cost,
			l.CurrentValue,
			l.Margin,
			fmt.Sprintf("%d", l.DCALevel),
			l.HeldSince.Truncate(time.Second).String(),
		)
	}
	table.Render()
}

var _ ports.Notifier = (*Console)(nil)
