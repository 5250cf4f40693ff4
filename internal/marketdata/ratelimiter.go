package marketdata

import (
	"context"
	"sync"
	"time"
)

// CallGate enforces a minimum spacing between outbound provider calls,
// process-wide. Yahoo throttles bursts aggressively, so every request path
// (quotes, history, health probes) must pass through the same gate.
type CallGate struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
}

func NewCallGate(interval time.Duration) *CallGate {
	return &CallGate{interval: interval}
}

// Wait blocks until at least the configured interval has elapsed since the
// previous call, then records the current time as the new last-call mark.
// Concurrent callers are serialized so outbound calls stay spaced even when
// many requests are in flight.
func (g *CallGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.last.IsZero() {
		elapsed := time.Since(g.last)
		if elapsed < g.interval {
			select {
			case <-time.After(g.interval - elapsed):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	g.last = time.Now()
	return nil
}

// LastCallAge returns the time since the last outbound call, and false if no
// call has been made yet.
func (g *CallGate) LastCallAge() (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.last.IsZero() {
		return 0, false
	}
	return time.Since(g.last), true
}

// Interval returns the configured minimum spacing.
func (g *CallGate) Interval() time.Duration {
	return g.interval
}

// Reset clears the last-call mark so the next call proceeds immediately.
func (g *CallGate) Reset() {
	g.mu.Lock()
	g.last = time.Time{}
	g.mu.Unlock()
}
