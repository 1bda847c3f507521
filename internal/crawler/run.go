package crawler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zx197009220/findApi/pkg/types"
)

// Run is one crawl cycle. Its queues, visited set, and counters are created
// by Engine.Start and discarded when the run ends.
type Run struct {
	ID string

	engine *Engine
	cancel context.CancelFunc
	logger *slog.Logger

	requests *Queue[*types.URLTask]
	pages    *Queue[*types.Page]
	visited  *Visited

	outcomes   chan types.Outcome
	exclusions chan types.Excluded

	live     chan struct{}
	liveOnce sync.Once

	done     chan struct{}
	err      error
	stopOnce sync.Once

	stats Stats
}

// Stats counts what a run emitted.
type Stats struct {
	Successes  atomic.Int64
	Failures   atomic.Int64
	Exclusions atomic.Int64
}

// Outcomes streams exactly one event per completed fetch task. It is closed
// when every worker has exited. Consumers must keep draining it.
func (r *Run) Outcomes() <-chan types.Outcome { return r.outcomes }

// Exclusions streams one event per excluded link and reason, closed like Outcomes.
func (r *Run) Exclusions() <-chan types.Excluded { return r.exclusions }

// Done is closed when the run has ended.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run ends. It returns nil when the run finished on
// quiescence and the context error when it was cancelled or stopped.
func (r *Run) Wait() error {
	<-r.done
	return r.err
}

// Stop cancels the run. It is safe to call more than once.
func (r *Run) Stop() {
	r.stopOnce.Do(r.cancel)
}

// Stats exposes the run's counters.
func (r *Run) Stats() *Stats { return &r.stats }

// Visited returns how many distinct URLs the run claimed for fetching.
func (r *Run) Visited() int { return r.visited.Len() }

func (r *Run) supervise(ctx context.Context, g *errgroup.Group) {
	start := time.Now()
	finished := make(chan error, 1)
	go func() { finished <- g.Wait() }()

	var (
		err     error
		stopped bool
	)
	select {
	case err = <-finished:
		stopped = true
	case <-ctx.Done():
		dropped := r.requests.Close() + r.pages.Close()
		if closer, ok := r.engine.fetcher.(interface{ CloseIdleConnections() }); ok {
			closer.CloseIdleConnections()
		}
		r.logger.Warn("crawl cancelled", "dropped_tasks", dropped)

		timeout := r.engine.cfg.ShutdownTimeout.Duration
		timer := time.NewTimer(timeout)
		select {
		case err = <-finished:
			stopped = true
		case <-timer.C:
			r.logger.Warn("workers did not stop within shutdown timeout", "timeout", timeout)
		}
		timer.Stop()
		if err == nil {
			err = ctx.Err()
		}
	}
	r.cancel()

	// A worker that outlived the shutdown timeout may still send, so the
	// streams stay open in that case.
	if stopped {
		close(r.outcomes)
		close(r.exclusions)
	}
	r.err = err

	r.logger.Info("crawl finished",
		"successes", r.stats.Successes.Load(),
		"failures", r.stats.Failures.Load(),
		"exclusions", r.stats.Exclusions.Load(),
		"visited", r.visited.Len(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	close(r.done)
}

// idle reports whether both queues are drained and settled. Work moving
// from one queue to the other between the two Idle reads always shows up
// as a new Put, so an unchanged Put count makes the reading consistent.
func (r *Run) idle() bool {
	reqPuts, pagePuts := r.requests.Puts(), r.pages.Puts()
	if !r.requests.Idle() || !r.pages.Idle() {
		return false
	}
	return r.requests.Puts() == reqPuts && r.pages.Puts() == pagePuts
}

func (r *Run) signalLive() {
	r.liveOnce.Do(func() { close(r.live) })
}

func (r *Run) emitOutcome(ctx context.Context, o types.Outcome) {
	select {
	case r.outcomes <- o:
	case <-ctx.Done():
	}
}

func (r *Run) emitExclusion(ctx context.Context, ev types.Excluded) {
	r.stats.Exclusions.Add(1)
	select {
	case r.exclusions <- ev:
	case <-ctx.Done():
	}
}
