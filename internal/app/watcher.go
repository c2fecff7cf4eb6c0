package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Adda-Baaj/cine-khobor/internal/logger"
	"github.com/Adda-Baaj/cine-khobor/internal/metrics"
	"github.com/Adda-Baaj/cine-khobor/internal/pipeline"
)

// State is the watcher loop state.
type State int32

const (
	StatePolling State = iota
	StateBackoff
)

func (s State) String() string {
	if s == StateBackoff {
		return "backoff"
	}
	return "polling"
}

// CycleRunner runs one poll cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (pipeline.CycleStats, error)
}

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	PollInterval    time.Duration
	BackoffInterval time.Duration
	Log             logger.Logger
	// AfterCycle is called after every cycle, successful or not.
	AfterCycle func(pipeline.CycleStats)
}

// Watcher drives the poll loop. A successful cycle is followed by the poll
// interval; a failed one moves the loop to Backoff for the backoff interval,
// after which it returns to Polling. Only context cancellation ends the loop.
type Watcher struct {
	runner     CycleRunner
	poll       time.Duration
	backoff    time.Duration
	log        logger.Logger
	afterCycle func(pipeline.CycleStats)
	state      atomic.Int32
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewWatcher creates a watcher around runner, starting in Polling.
func NewWatcher(runner CycleRunner, opts WatcherOptions) *Watcher {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 30 * time.Minute
	}
	backoff := opts.BackoffInterval
	if backoff <= 0 {
		backoff = time.Minute
	}
	w := &Watcher{
		runner:     runner,
		poll:       poll,
		backoff:    backoff,
		log:        logger.Ensure(opts.Log),
		afterCycle: opts.AfterCycle,
		sleep:      sleepCtx,
	}
	metrics.WatcherState.Set(float64(StatePolling))
	return w
}

// State returns the current loop state.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// Run loops until ctx is cancelled. The first cycle starts immediately.
func (w *Watcher) Run(ctx context.Context) error {
	if w == nil || w.runner == nil {
		return fmt.Errorf("watcher is not initialized")
	}

	w.log.InfoObj("watcher loop starting", "watcher_state", map[string]any{
		"state":            w.State().String(),
		"poll_interval":    w.poll.String(),
		"backoff_interval": w.backoff.String(),
	})

	for {
		if ctx.Err() != nil {
			w.log.InfoObj("watcher loop exiting", "reason", ctx.Err().Error())
			return nil
		}

		wait := w.poll
		if err := w.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				w.log.InfoObj("watcher loop exiting", "reason", ctx.Err().Error())
				return nil
			}
			w.setState(StateBackoff)
			wait = w.backoff
			w.log.ErrorObj("cycle failed; backing off", "cycle_error", map[string]any{
				"error":   err.Error(),
				"backoff": w.backoff.String(),
			})
		}

		if err := w.sleep(ctx, wait); err != nil {
			w.log.InfoObj("watcher loop exiting", "reason", err.Error())
			return nil
		}
		w.setState(StatePolling)
	}
}

// Serve implements suture.Service.
func (w *Watcher) Serve(ctx context.Context) error {
	if err := w.Run(ctx); err != nil {
		return err
	}
	return ctx.Err()
}

func (w *Watcher) String() string {
	return "watcher"
}

// runOnce performs one cycle and records its outcome.
func (w *Watcher) runOnce(ctx context.Context) error {
	start := time.Now()
	stats, err := w.runner.RunCycle(ctx)
	elapsed := time.Since(start)

	metrics.CycleDuration.Observe(elapsed.Seconds())
	outcome := "ok"
	switch {
	case err != nil && ctx.Err() != nil:
		outcome = "cancelled"
	case err != nil:
		outcome = "error"
	}
	metrics.CyclesTotal.WithLabelValues(outcome).Inc()

	if w.afterCycle != nil {
		w.afterCycle(stats)
	}

	w.log.InfoObj("cycle completed", "cycle_meta", map[string]any{
		"cycle_id":          stats.CycleID,
		"outcome":           outcome,
		"fetched":           stats.Fetched,
		"seen":              stats.Seen,
		"unmatched":         stats.Unmatched,
		"rejected":          stats.Rejected,
		"notified":          stats.Notified,
		"delivery_failures": stats.DeliveryFailures,
		"fetch_failed":      stats.FetchFailed,
		"elapsed_ms":        elapsed.Milliseconds(),
	})
	return err
}

func (w *Watcher) setState(s State) {
	prev := State(w.state.Swap(int32(s)))
	if prev == s {
		return
	}
	metrics.WatcherState.Set(float64(s))
	w.log.InfoObj("watcher state changed", "watcher_state", map[string]any{
		"from": prev.String(),
		"to":   s.String(),
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
