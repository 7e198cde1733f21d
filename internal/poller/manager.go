package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mangawatch/internal/logging"
	"mangawatch/internal/reconcile"
)

var (
	// ErrCycleInProgress is returned when a cycle is requested while another
	// is still running.
	ErrCycleInProgress = errors.New("reconciliation cycle already in progress")
	// ErrRecheckThrottled is returned when manual rechecks arrive faster than
	// the configured cooldown.
	ErrRecheckThrottled = errors.New("recheck requested too soon; try again shortly")
)

// Trigger names what started a cycle.
type Trigger string

const (
	TriggerTimer  Trigger = "timer"
	TriggerManual Trigger = "manual"
	TriggerOnce   Trigger = "once"
)

// Runner performs one reconciliation pass.
type Runner interface {
	Run(ctx context.Context) (reconcile.Report, error)
}

// Sink receives every finished cycle, including failed ones.
type Sink interface {
	HandleCycle(ctx context.Context, cycle Cycle)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, cycle Cycle)

// HandleCycle calls f.
func (f SinkFunc) HandleCycle(ctx context.Context, cycle Cycle) { f(ctx, cycle) }

// Cycle is the outcome of one reconciliation pass.
type Cycle struct {
	ID      string           `json:"id"`
	Trigger Trigger          `json:"trigger"`
	Report  reconcile.Report `json:"report"`
	Err     error            `json:"-"`
}

// Manager coordinates the poll loop.
type Manager struct {
	runner   Runner
	sink     Sink
	interval time.Duration
	limiter  *rate.Limiter
	logger   *slog.Logger
	now      func() time.Time

	cycleMu sync.Mutex

	mu           sync.RWMutex
	running      bool
	inFlight     bool
	cancel       context.CancelFunc
	done         chan struct{}
	cyclesRun    int
	skippedTicks int
	lastCycle    *Cycle
	nextRun      time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logging.NewComponentLogger(logger, "poller")
	}
}

// WithSink sets the cycle receiver.
func WithSink(sink Sink) Option {
	return func(m *Manager) { m.sink = sink }
}

// WithRecheckCooldown sets the minimum spacing between manual rechecks. Zero
// disables throttling.
func WithRecheckCooldown(cooldown time.Duration) Option {
	return func(m *Manager) {
		if cooldown <= 0 {
			m.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		m.limiter = rate.NewLimiter(rate.Every(cooldown), 1)
	}
}

// WithClock overrides the time source for status reporting.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager builds a poll loop around runner.
func NewManager(runner Runner, interval time.Duration, opts ...Option) *Manager {
	m := &Manager{
		runner:   runner,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		logger:   logging.NewComponentLogger(nil, "poller"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
