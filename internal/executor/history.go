package executor

import (
	"sync"
	"time"

	"github.com/alejandrodnm/cryptoengine/internal/domain"
)

// HistoryEntry is one recorded fill, kept for diagnostics and the
// "--status" CLI surface.
type HistoryEntry struct {
	At         time.Time
	Pair       string
	Side       domain.OrderSide
	OrderId    domain.OrderId
	PositionId domain.PositionId
	Quantity   domain.Quantity
	Price      domain.Price
	SignalRule string
}

// OrderHistory is a fixed-capacity ring of the most recent fills. Pushes
// are mutex-guarded rather than lock-free: the corpus carries no
// lock-free ring/stack library, and a short critical section around a
// slice append is simpler than hand-rolling one (documented in
// DESIGN.md as a deliberate stdlib exception).
type OrderHistory struct {
	mu       sync.Mutex
	capacity int
	entries  []HistoryEntry
	next     int
	full     bool
}

// NewOrderHistory creates a ring with room for capacity entries.
func NewOrderHistory(capacity int) *OrderHistory {
	if capacity <= 0 {
		capacity = 10_000
	}
	return &OrderHistory{capacity: capacity, entries: make([]HistoryEntry, capacity)}
}

// Push records e, overwriting the oldest entry once at capacity.
func (h *OrderHistory) Push(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.next] = e
	h.next = (h.next + 1) % h.capacity
	if h.next == 0 {
		h.full = true
	}
}

// Snapshot returns the recorded entries, oldest first.
func (h *OrderHistory) Snapshot() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.full {
		out := make([]HistoryEntry, h.next)
		copy(out, h.entries[:h.next])
		return out
	}

	out := make([]HistoryEntry, h.capacity)
	copy(out, h.entries[h.next:])
	copy(out[h.capacity-h.next:], h.entries[:h.next])
	return out
}

// Len reports how many entries are currently held.
func (h *OrderHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.full {
		return h.capacity
	}
	return h.next
}
