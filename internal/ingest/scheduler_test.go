package ingest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/DeividasMat/deal-website-sub000/internal/dedup"
)

type countingRunner struct {
	runs   atomic.Int32
	sweeps atomic.Int32
	busy   bool
}

func (r *countingRunner) Run(_ context.Context, _ time.Time) (RunSummary, error) {
	r.runs.Add(1)
	if r.busy {
		return RunSummary{}, ErrBusy
	}
	return RunSummary{RunUUID: "run"}, nil
}

func (r *countingRunner) Sweep(_ context.Context) (dedup.SweepResult, error) {
	r.sweeps.Add(1)
	return dedup.SweepResult{}, nil
}

func TestSchedulerRunOnStartThenStops(t *testing.T) {
	t.Parallel()

	runner := &countingRunner{busy: true}
	s := NewScheduler(runner, zerolog.Nop(), SchedulerOptions{IngestEvery: time.Hour, RunOnStart: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for runner.runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := runner.runs.Load(); got != 1 {
		t.Fatalf("expected exactly one start-up run, got %d", got)
	}
	if got := runner.sweeps.Load(); got != 0 {
		t.Fatalf("disabled sweep schedule fired %d times", got)
	}
}

func TestSchedulerTicksSweeps(t *testing.T) {
	t.Parallel()

	runner := &countingRunner{}
	s := NewScheduler(runner, zerolog.Nop(), SchedulerOptions{SweepEvery: 10 * time.Millisecond, RunOnStart: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for runner.sweeps.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if runner.sweeps.Load() < 2 {
		t.Fatalf("expected repeated sweeps, got %d", runner.sweeps.Load())
	}
	if runner.runs.Load() != 0 {
		t.Fatalf("run-on-start must not fire when ingestion is disabled")
	}
}
