package poller

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"mangawatch/internal/logging"
	"mangawatch/internal/services"
)

// Start launches the background loop. The first cycle runs immediately.
func (m *Manager) Start(ctx context.Context) error {
	if m.interval <= 0 {
		return services.Wrap(services.ErrConfiguration, "poller", "start", "poll interval must be positive", nil)
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("poller already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.running = true
	m.mu.Unlock()

	go m.loop(runCtx, done)

	m.logger.Info("poll loop started",
		logging.String(logging.FieldEventType, "poller_started"),
		logging.Duration("interval", m.interval))
	return nil
}

// Stop cancels the loop and waits for any in-flight cycle to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.cancel = nil
	m.nextRun = time.Time{}
	m.mu.Unlock()

	cancel()
	<-done
	m.logger.Info("poll loop stopped", logging.String(logging.FieldEventType, "poller_stopped"))
}

// RunOnce runs a single cycle now. It returns ErrCycleInProgress instead of
// waiting when another cycle holds the loop.
func (m *Manager) RunOnce(ctx context.Context) (Cycle, error) {
	return m.runCycle(ctx, TriggerOnce)
}

// Recheck runs a manual cycle, subject to the recheck cooldown. A recheck
// refused because a cycle is already running does not start the cooldown.
func (m *Manager) Recheck(ctx context.Context) (Cycle, error) {
	if !m.cycleMu.TryLock() {
		return Cycle{}, ErrCycleInProgress
	}
	defer m.cycleMu.Unlock()
	if !m.limiter.Allow() {
		return Cycle{}, ErrRecheckThrottled
	}
	return m.runLocked(ctx, TriggerManual)
}

func (m *Manager) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		m.setNextRun(m.now().Add(m.interval))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Manager) tick(ctx context.Context) {
	_, err := m.runCycle(ctx, TriggerTimer)
	if errors.Is(err, ErrCycleInProgress) {
		m.mu.Lock()
		m.skippedTicks++
		m.mu.Unlock()
		m.logger.Info("tick skipped; previous cycle still running",
			logging.String(logging.FieldEventType, "tick_skipped"))
	}
}

func (m *Manager) runCycle(ctx context.Context, trigger Trigger) (Cycle, error) {
	if !m.cycleMu.TryLock() {
		return Cycle{}, ErrCycleInProgress
	}
	defer m.cycleMu.Unlock()
	return m.runLocked(ctx, trigger)
}

// runLocked runs one cycle. The caller holds cycleMu.
func (m *Manager) runLocked(ctx context.Context, trigger Trigger) (Cycle, error) {
	cycle := Cycle{ID: uuid.NewString(), Trigger: trigger}
	ctx = services.WithCycleID(ctx, cycle.ID)
	logger := logging.WithContext(ctx, m.logger)

	m.setInFlight(true)
	defer m.setInFlight(false)

	logger.Debug("reconciliation cycle starting", logging.String("trigger", string(trigger)))
	report, err := m.runner.Run(ctx)
	cycle.Report = report
	cycle.Err = err

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		logger.Info("reconciliation cycle interrupted",
			logging.String(logging.FieldEventType, "cycle_interrupted"),
			logging.Int("checked", report.Checked))
	default:
		logging.ErrorWithContext(logger, "reconciliation cycle failed", "cycle_failed",
			logging.Error(err),
			logging.String("trigger", string(trigger)),
			logging.String(logging.FieldErrorHint, "the next cycle retries automatically"))
	}

	m.mu.Lock()
	m.cyclesRun++
	last := cycle
	m.lastCycle = &last
	m.mu.Unlock()

	if m.sink != nil {
		// The sink runs even when ctx ended so partial cycles are still
		// recorded and announced.
		m.sink.HandleCycle(context.WithoutCancel(ctx), cycle)
	}
	return cycle, err
}

func (m *Manager) setInFlight(v bool) {
	m.mu.Lock()
	m.inFlight = v
	m.mu.Unlock()
}

func (m *Manager) setNextRun(t time.Time) {
	m.mu.Lock()
	if m.running {
		m.nextRun = t
	}
	m.mu.Unlock()
}
