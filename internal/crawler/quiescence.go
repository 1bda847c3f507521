package crawler

import (
	"context"
	"time"
)

// Detector decides when a run has run out of work. It waits for the first
// liveness signal, then polls Idle; a positive poll must be confirmed by
// ConfirmChecks further idle readings spaced ConfirmInterval apart.
type Detector struct {
	PollInterval    time.Duration
	ConfirmInterval time.Duration
	ConfirmChecks   int
	Idle            func() bool
}

// Wait blocks until quiescence is confirmed (true) or ctx ends (false).
func (d Detector) Wait(ctx context.Context, live <-chan struct{}) bool {
	select {
	case <-live:
	case <-ctx.Done():
		return false
	}

	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()
	for {
		if d.Idle() {
			confirmed, ok := d.confirm(ctx)
			if !ok {
				return false
			}
			if confirmed {
				return true
			}
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// confirm reports whether every follow-up check saw an idle pipeline; ok is
// false when ctx ended first.
func (d Detector) confirm(ctx context.Context) (confirmed, ok bool) {
	timer := time.NewTimer(d.ConfirmInterval)
	defer timer.Stop()
	for i := 0; i < d.ConfirmChecks; i++ {
		if i > 0 {
			timer.Reset(d.ConfirmInterval)
		}
		select {
		case <-ctx.Done():
			return false, false
		case <-timer.C:
		}
		if !d.Idle() {
			return false, true
		}
	}
	return true, true
}
