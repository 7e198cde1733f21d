package poller

import "time"

// Status is a point-in-time view of the poll loop.
type Status struct {
	Running       bool          `json:"running"`
	CycleInFlight bool          `json:"cycle_in_flight"`
	Interval      time.Duration `json:"interval"`
	CyclesRun     int           `json:"cycles_run"`
	SkippedTicks  int           `json:"skipped_ticks"`
	NextRun       time.Time     `json:"next_run,omitzero"`
	LastCycle     *CycleSummary `json:"last_cycle,omitempty"`
}

// CycleSummary condenses a Cycle for status output.
type CycleSummary struct {
	ID         string    `json:"id"`
	Trigger    Trigger   `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Checked    int       `json:"checked"`
	Updates    int       `json:"updates"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

// Summarize condenses c.
func (c Cycle) Summarize() CycleSummary {
	s := CycleSummary{
		ID:         c.ID,
		Trigger:    c.Trigger,
		StartedAt:  c.Report.StartedAt,
		FinishedAt: c.Report.FinishedAt,
		Checked:    c.Report.Checked,
		Updates:    len(c.Report.Updates),
		Skipped:    len(c.Report.Skipped),
		Failed:     len(c.Report.Failed),
	}
	if c.Err != nil {
		s.Error = c.Err.Error()
	}
	return s
}

// Status returns the latest loop information.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := Status{
		Running:       m.running,
		CycleInFlight: m.inFlight,
		Interval:      m.interval,
		CyclesRun:     m.cyclesRun,
		SkippedTicks:  m.skippedTicks,
		NextRun:       m.nextRun,
	}
	if m.lastCycle != nil {
		summary := m.lastCycle.Summarize()
		status.LastCycle = &summary
	}
	return status
}
