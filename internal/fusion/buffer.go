package fusion

import (
	"sync"
	"time"

	"github.com/celikh/agentflux/internal/domain"
)

// SignalBuffer holds the signals accumulated for one symbol. Per spec,
// buffer mutation and decision evaluation never interleave for the same
// symbol; Buffers below gives each symbol its own mutex so one symbol's
// decision never blocks another's admission.
type SignalBuffer struct {
	mu           sync.Mutex
	signals      []domain.TradingSignal
	lastDecision time.Time
	pendingCount int
}

// Admit appends an incoming signal and increments the pending count. No
// decision is taken on arrival.
func (b *SignalBuffer) Admit(sig domain.TradingSignal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signals = append(b.signals, sig)
	b.pendingCount++
}

// snapshot returns a defensive copy of the buffer's signals and pending
// count under lock, for use by the decision loop without holding the lock
// across policy evaluation.
func (b *SignalBuffer) snapshot() ([]domain.TradingSignal, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.TradingSignal, len(b.signals))
	copy(out, b.signals)
	return out, b.pendingCount
}

// resetPending zeroes the pending count after a decision attempt, whether
// or not it produced an intent.
func (b *SignalBuffer) resetPending() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingCount = 0
}

func (b *SignalBuffer) markDecision(at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastDecision = at
}

// prune drops signals older than maxAge, returning the number removed and
// whether the buffer is now empty.
func (b *SignalBuffer) prune(maxAge time.Duration, now time.Time) (removed int, empty bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.signals[:0]
	for _, sig := range b.signals {
		if now.Sub(sig.Timestamp) <= maxAge {
			kept = append(kept, sig)
		} else {
			removed++
		}
	}
	b.signals = kept
	return removed, len(b.signals) == 0
}

// Buffers owns the per-symbol SignalBuffer map. Map access is protected
// separately from per-buffer content access so concurrent symbols never
// contend on each other.
type Buffers struct {
	mu      sync.RWMutex
	bySym   map[string]*SignalBuffer
}

// NewBuffers constructs an empty buffer set.
func NewBuffers() *Buffers {
	return &Buffers{bySym: make(map[string]*SignalBuffer)}
}

func (bs *Buffers) get(symbol string) *SignalBuffer {
	bs.mu.RLock()
	b, ok := bs.bySym[symbol]
	bs.mu.RUnlock()
	if ok {
		return b
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()
	if b, ok = bs.bySym[symbol]; ok {
		return b
	}
	b = &SignalBuffer{}
	bs.bySym[symbol] = b
	return b
}

// Admit routes an incoming signal to its symbol's buffer.
func (bs *Buffers) Admit(sig domain.TradingSignal) {
	bs.get(sig.Symbol).Admit(sig)
}

// Symbols returns the set of symbols with a live buffer.
func (bs *Buffers) Symbols() []string {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	out := make([]string, 0, len(bs.bySym))
	for sym := range bs.bySym {
		out = append(out, sym)
	}
	return out
}

// evictEmpty removes the buffer for symbol if it is untracked or empty.
func (bs *Buffers) evictEmpty(symbol string) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if b, ok := bs.bySym[symbol]; ok {
		b.mu.Lock()
		empty := len(b.signals) == 0
		b.mu.Unlock()
		if empty {
			delete(bs.bySym, symbol)
		}
	}
}
