package poller_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mangawatch/internal/chapter"
	"mangawatch/internal/poller"
	"mangawatch/internal/reconcile"
	"mangawatch/internal/services"
)

type stubRunner struct {
	calls   atomic.Int32
	block   chan struct{}
	entered chan struct{}
	err     error
	cycleID chan string
}

func (r *stubRunner) Run(ctx context.Context) (reconcile.Report, error) {
	r.calls.Add(1)
	if r.cycleID != nil {
		id, _ := services.CycleIDFromContext(ctx)
		select {
		case r.cycleID <- id:
		default:
		}
	}
	if r.entered != nil {
		select {
		case r.entered <- struct{}{}:
		default:
		}
	}
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return reconcile.Report{Checked: 0}, ctx.Err()
		}
	}
	now := time.Now()
	return reconcile.Report{
		StartedAt:  now,
		FinishedAt: now,
		Checked:    1,
		Updates: []reconcile.Update{{
			SeriesID:      "m1",
			ChapterNumber: chapter.MustParse("2"),
			Source:        reconcile.SourceCatalog,
		}},
	}, r.err
}

type recordingSink struct {
	mu     sync.Mutex
	cycles []poller.Cycle
}

func (s *recordingSink) HandleCycle(_ context.Context, c poller.Cycle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles = append(s.cycles, c)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cycles)
}

func TestRunOnceDeliversCycleToSink(t *testing.T) {
	runner := &stubRunner{cycleID: make(chan string, 1)}
	sink := &recordingSink{}
	m := poller.NewManager(runner, time.Minute, poller.WithSink(sink))

	cycle, err := m.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if cycle.ID == "" || cycle.Trigger != poller.TriggerOnce {
		t.Fatalf("unexpected cycle %+v", cycle)
	}
	if got := <-runner.cycleID; got != cycle.ID {
		t.Fatalf("runner saw cycle id %q, want %q", got, cycle.ID)
	}
	if sink.count() != 1 || len(sink.cycles[0].Report.Updates) != 1 {
		t.Fatalf("sink did not receive the cycle: %+v", sink.cycles)
	}

	status := m.Status()
	if status.CyclesRun != 1 || status.LastCycle == nil || status.LastCycle.Updates != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Running {
		t.Fatal("RunOnce must not start the loop")
	}
}

func TestRunOnceIsSingleFlight(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	m := poller.NewManager(runner, time.Minute)

	done := make(chan error, 1)
	go func() {
		_, err := m.RunOnce(context.Background())
		done <- err
	}()
	<-runner.entered

	if !m.Status().CycleInFlight {
		t.Fatal("status should report the in-flight cycle")
	}
	if _, err := m.RunOnce(context.Background()); !errors.Is(err, poller.ErrCycleInProgress) {
		t.Fatalf("expected ErrCycleInProgress, got %v", err)
	}

	close(runner.block)
	if err := <-done; err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}
	if runner.calls.Load() != 1 {
		t.Fatalf("runner called %d times, want 1", runner.calls.Load())
	}
}

func TestRecheckIsThrottled(t *testing.T) {
	runner := &stubRunner{}
	m := poller.NewManager(runner, time.Minute, poller.WithRecheckCooldown(time.Hour))

	cycle, err := m.Recheck(context.Background())
	if err != nil {
		t.Fatalf("first Recheck: %v", err)
	}
	if cycle.Trigger != poller.TriggerManual {
		t.Fatalf("expected manual trigger, got %s", cycle.Trigger)
	}
	if _, err := m.Recheck(context.Background()); !errors.Is(err, poller.ErrRecheckThrottled) {
		t.Fatalf("expected ErrRecheckThrottled, got %v", err)
	}
	if runner.calls.Load() != 1 {
		t.Fatalf("throttled recheck still ran: %d calls", runner.calls.Load())
	}
}

func TestRecheckRefusedDuringCycleKeepsCooldown(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	m := poller.NewManager(runner, time.Minute, poller.WithRecheckCooldown(time.Hour))

	done := make(chan error, 1)
	go func() {
		_, err := m.RunOnce(context.Background())
		done <- err
	}()
	<-runner.entered

	if _, err := m.Recheck(context.Background()); !errors.Is(err, poller.ErrCycleInProgress) {
		t.Fatalf("expected ErrCycleInProgress, got %v", err)
	}
	close(runner.block)
	if err := <-done; err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	cycle, err := m.Recheck(context.Background())
	if err != nil {
		t.Fatalf("recheck after busy refusal: %v", err)
	}
	if cycle.Trigger != poller.TriggerManual {
		t.Fatalf("expected manual trigger, got %s", cycle.Trigger)
	}
	if _, err := m.Recheck(context.Background()); !errors.Is(err, poller.ErrRecheckThrottled) {
		t.Fatalf("expected ErrRecheckThrottled, got %v", err)
	}
	if runner.calls.Load() != 2 {
		t.Fatalf("runner called %d times, want 2", runner.calls.Load())
	}
}

func TestRecheckWithoutCooldown(t *testing.T) {
	runner := &stubRunner{}
	m := poller.NewManager(runner, time.Minute, poller.WithRecheckCooldown(0))
	for i := 0; i < 3; i++ {
		if _, err := m.Recheck(context.Background()); err != nil {
			t.Fatalf("Recheck %d: %v", i, err)
		}
	}
}

func TestStartRunsImmediatelyAndStopWaits(t *testing.T) {
	runner := &stubRunner{entered: make(chan struct{}, 1)}
	sink := &recordingSink{}
	m := poller.NewManager(runner, time.Hour, poller.WithSink(sink))

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}

	select {
	case <-runner.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first cycle did not run on start")
	}
	m.Stop()

	if m.Status().Running {
		t.Fatal("status still running after Stop")
	}
	if sink.count() != 1 {
		t.Fatalf("expected one cycle delivered, got %d", sink.count())
	}
	m.Stop()
}

func TestStopCancelsInFlightCycle(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	sink := &recordingSink{}
	m := poller.NewManager(runner, time.Hour, poller.WithSink(sink))

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-runner.entered

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	if sink.count() != 1 || !errors.Is(sink.cycles[0].Err, context.Canceled) {
		t.Fatalf("expected cancelled cycle to reach sink, got %+v", sink.cycles)
	}
}

func TestTicksSkipWhileCycleRuns(t *testing.T) {
	runner := &stubRunner{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	m := poller.NewManager(runner, 10*time.Millisecond)

	// Hold the cycle slot with a manual run so the loop's ticks collide.
	go func() { _, _ = m.RunOnce(context.Background()) }()
	<-runner.entered

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for m.Status().SkippedTicks < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("ticks were not skipped: %+v", m.Status())
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(runner.block)
	m.Stop()

	if calls := runner.calls.Load(); calls < 1 {
		t.Fatalf("unexpected runner calls %d", calls)
	}
}

func TestStartRejectsNonPositiveInterval(t *testing.T) {
	m := poller.NewManager(&stubRunner{}, 0)
	if err := m.Start(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunnerErrorIsReported(t *testing.T) {
	runner := &stubRunner{err: errors.New("boom")}
	m := poller.NewManager(runner, time.Minute)
	cycle, err := m.RunOnce(context.Background())
	if err == nil || cycle.Err == nil {
		t.Fatal("expected runner error to propagate")
	}
	if m.Status().LastCycle.Error != "boom" {
		t.Fatalf("status missing error: %+v", m.Status().LastCycle)
	}
}
