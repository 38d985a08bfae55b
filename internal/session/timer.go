package session

import (
	"sync"
	"time"
)

// BreakTimer is the cooperative single-shot countdown used for the
// scheduled breaks. The callback runs once when the duration elapses;
// the operator's "continue" cancels it. Cancelling an already-fired
// or already-cancelled timer is a no-op.
type BreakTimer struct {
	mu    sync.Mutex
	timer *time.Timer
	done  bool
}

// StartBreak schedules fn after d.
func StartBreak(d time.Duration, fn func()) *BreakTimer {
	b := &BreakTimer{}
	b.timer = time.AfterFunc(d, func() {
		b.mu.Lock()
		if b.done {
			b.mu.Unlock()
			return
		}
		b.done = true
		b.mu.Unlock()
		fn()
	})
	return b
}

// Cancel stops the countdown. Idempotent.
func (b *BreakTimer) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	b.done = true
	b.timer.Stop()
}
