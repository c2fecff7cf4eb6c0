package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Adda-Baaj/cine-khobor/internal/pipeline"
)

// scriptedRunner fails the listed cycles and cancels ctx after the last one.
type scriptedRunner struct {
	mu       sync.Mutex
	failures map[int]bool
	calls    int
	stopAt   int
	cancel   context.CancelFunc
	states   []State
	watcher  *Watcher
}

func (r *scriptedRunner) RunCycle(context.Context) (pipeline.CycleStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.states = append(r.states, r.watcher.State())
	if r.calls >= r.stopAt {
		r.cancel()
	}
	if r.failures[r.calls] {
		return pipeline.CycleStats{}, errors.New("store unhealthy")
	}
	return pipeline.CycleStats{CycleID: "c"}, nil
}

func TestWatcherBacksOffThenReturnsToPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &scriptedRunner{failures: map[int]bool{2: true}, stopAt: 4, cancel: cancel}
	w := NewWatcher(runner, WatcherOptions{PollInterval: time.Hour, BackoffInterval: time.Minute})
	runner.watcher = w

	var waits []time.Duration
	var statesWhileSleeping []State
	w.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		statesWhileSleeping = append(statesWhileSleeping, w.State())
		return ctx.Err()
	}

	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if runner.calls != 4 {
		t.Fatalf("expected 4 cycles, got %d", runner.calls)
	}
	wantWaits := []time.Duration{time.Hour, time.Minute, time.Hour, time.Hour}
	if len(waits) != len(wantWaits) {
		t.Fatalf("waits = %v, want %v", waits, wantWaits)
	}
	for i := range wantWaits {
		if waits[i] != wantWaits[i] {
			t.Fatalf("wait %d = %v, want %v", i, waits[i], wantWaits[i])
		}
	}
	wantSleepStates := []State{StatePolling, StateBackoff, StatePolling, StatePolling}
	for i, s := range wantSleepStates {
		if statesWhileSleeping[i] != s {
			t.Fatalf("state during sleep %d = %v, want %v", i, statesWhileSleeping[i], s)
		}
	}
	for i, s := range runner.states {
		if s != StatePolling {
			t.Fatalf("cycle %d started in %v, want polling", i+1, s)
		}
	}
}

func TestWatcherSurvivesRepeatedFailuresWithRealSleep(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runner := &scriptedRunner{failures: map[int]bool{1: true, 2: true, 3: true}, stopAt: 5, cancel: cancel}
	w := NewWatcher(runner, WatcherOptions{PollInterval: time.Millisecond, BackoffInterval: time.Millisecond})
	runner.watcher = w

	var cycles []pipeline.CycleStats
	w.afterCycle = func(s pipeline.CycleStats) { cycles = append(cycles, s) }

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("watcher did not stop")
	}

	if runner.calls != 5 {
		t.Fatalf("expected 5 cycles after 3 failures, got %d", runner.calls)
	}
	if len(cycles) != 5 {
		t.Fatalf("AfterCycle called %d times, want 5", len(cycles))
	}
}

func TestWatcherStopsWhenCancelledBeforeFirstCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &scriptedRunner{stopAt: 1, cancel: cancel}
	w := NewWatcher(runner, WatcherOptions{})
	runner.watcher = w

	if err := w.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Serve should report cancellation, got %v", err)
	}
	if runner.calls != 0 {
		t.Fatalf("no cycle expected, got %d", runner.calls)
	}
}

func TestWatcherRejectsNilRunner(t *testing.T) {
	w := NewWatcher(nil, WatcherOptions{})
	if err := w.Run(context.Background()); err == nil {
		t.Fatalf("expected error for missing runner")
	}
}

func TestStateString(t *testing.T) {
	if StatePolling.String() != "polling" || StateBackoff.String() != "backoff" {
		t.Fatalf("unexpected state names %q %q", StatePolling, StateBackoff)
	}
}

// cancellingRunner simulates a shutdown signal arriving mid-cycle.
type cancellingRunner struct {
	cancel context.CancelFunc
	calls  int
}

func (r *cancellingRunner) RunCycle(ctx context.Context) (pipeline.CycleStats, error) {
	r.calls++
	r.cancel()
	return pipeline.CycleStats{}, ctx.Err()
}

func TestWatcherShutdownDuringCycleIsNotAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &cancellingRunner{cancel: cancel}
	w := NewWatcher(runner, WatcherOptions{PollInterval: time.Hour, BackoffInterval: time.Minute})
	slept := false
	w.sleep = func(context.Context, time.Duration) error {
		slept = true
		return nil
	}

	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if runner.calls != 1 {
		t.Fatalf("expected one cycle, got %d", runner.calls)
	}
	if w.State() != StatePolling {
		t.Fatalf("cancelled cycle must not enter backoff, state=%v", w.State())
	}
	if slept {
		t.Fatalf("watcher should exit without sleeping")
	}
}
