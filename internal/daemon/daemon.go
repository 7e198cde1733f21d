package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"mangawatch/internal/config"
	"mangawatch/internal/history"
	"mangawatch/internal/logging"
	"mangawatch/internal/mangadex"
	"mangawatch/internal/notifications"
	"mangawatch/internal/poller"
	"mangawatch/internal/preflight"
	"mangawatch/internal/reconcile"
	"mangawatch/internal/scraper"
	"mangawatch/internal/services"
	"mangawatch/internal/tracking"
	"mangawatch/internal/watchlist"
)

// ErrHistoryDisabled is returned by history queries when the history log is
// turned off in configuration.
var ErrHistoryDisabled = errors.New("history log disabled in configuration")

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *watchlist.Store
	tracking *tracking.Workflow
	poller   *poller.Manager
	notifier notifications.Service
	history  *history.Store
	logPath  string

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time

	mu        sync.RWMutex
	preflight []preflight.Result
}

// Status represents daemon runtime information.
type Status struct {
	Running           bool               `json:"running"`
	PID               int                `json:"pid"`
	StartedAt         time.Time          `json:"started_at,omitzero"`
	SeriesTracked     int                `json:"series_tracked"`
	PendingSelections int                `json:"pending_selections"`
	PendingRemovals   int                `json:"pending_removals"`
	Poller            poller.Status      `json:"poller"`
	LastRecorded      *history.Cycle     `json:"last_recorded_cycle,omitempty"`
	WatchlistPath     string             `json:"watchlist_path"`
	HistoryPath       string             `json:"history_path,omitempty"`
	LockFilePath      string             `json:"lock_file_path"`
	LogPath           string             `json:"log_path"`
	Preflight         []preflight.Result `json:"preflight,omitempty"`
}

type options struct {
	notifier   notifications.Service
	httpClient *http.Client
}

// Option customizes daemon construction.
type Option func(*options)

// WithNotifier replaces the configured notification service.
func WithNotifier(n notifications.Service) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithHTTPClient shares one HTTP client between the MangaDex client and the
// scraper.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	store, err := watchlist.Open(cfg.Paths.WatchlistFile, logger)
	if err != nil {
		return nil, fmt.Errorf("open watch list: %w", err)
	}

	catalogOpts := []mangadex.Option{
		mangadex.WithTimeout(cfg.CatalogTimeout()),
		mangadex.WithCoverBaseURL(cfg.MangaDex.CoverBaseURL),
		mangadex.WithReadBaseURL(cfg.MangaDex.ReadBaseURL),
		mangadex.WithLanguage(cfg.MangaDex.Language),
	}
	if o.httpClient != nil {
		catalogOpts = append(catalogOpts, mangadex.WithHTTPClient(o.httpClient))
	}
	catalog, err := mangadex.New(cfg.MangaDex.BaseURL, catalogOpts...)
	if err != nil {
		return nil, fmt.Errorf("mangadex client: %w", err)
	}

	// Left as a nil interface when disabled so the reconciler skips scraper
	// configuration entirely.
	var scr reconcile.Scraper
	if cfg.Scraper.Enabled {
		scraperOpts := []scraper.Option{
			scraper.WithTimeout(cfg.ScraperTimeout()),
			scraper.WithHeaders(cfg.Scraper.UserAgent, cfg.Scraper.AcceptLanguage),
		}
		if o.httpClient != nil {
			scraperOpts = append(scraperOpts, scraper.WithHTTPClient(o.httpClient))
		}
		scr = scraper.New(scraperOpts...)
	}

	reconciler := reconcile.New(store, catalog, scr,
		reconcile.WithLogger(logger),
		reconcile.WithTimeouts(cfg.CatalogTimeout(), cfg.ScraperTimeout()),
	)

	workflow := tracking.New(store, catalog,
		tracking.WithLogger(logger),
		tracking.WithSearchLimit(cfg.MangaDex.SearchLimit),
		tracking.WithSessionTTL(cfg.SessionTTL()),
	)

	var hist *history.Store
	if cfg.History.Enabled {
		hist, err = history.Open(cfg.Paths.HistoryDB)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
	}

	notifier := o.notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		tracking: workflow,
		notifier: notifier,
		history:  hist,
		logPath:  filepath.Join(cfg.Paths.LogDir, "mangawatch.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.poller = poller.NewManager(reconciler, cfg.PollInterval(),
		poller.WithLogger(logger),
		poller.WithSink(d),
		poller.WithRecheckCooldown(cfg.RecheckCooldown()),
	)
	return d, nil
}

// Start acquires the daemon lock, runs preflight checks, and launches the poll loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mangawatch daemon instance is already running")
	}

	d.runPreflight(ctx)
	d.pruneHistory(ctx)

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.poller.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start poller: %w", err)
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("mangawatch daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Int("series", d.store.Len()),
		logging.Duration("interval", d.cfg.PollInterval()),
		logging.Bool("scraper_enabled", d.cfg.Scraper.Enabled),
		logging.Bool("history_enabled", d.history != nil),
	)
	return nil
}

// Stop stops the poll loop and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.poller.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next daemon start may report a stale lock"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("mangawatch daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// Tracking exposes the interactive command workflow.
func (d *Daemon) Tracking() *tracking.Workflow {
	return d.tracking
}

// Recheck runs a manual reconciliation cycle subject to the recheck cooldown.
func (d *Daemon) Recheck(ctx context.Context) (poller.Cycle, error) {
	return d.poller.Recheck(ctx)
}

// RunOnce runs a single reconciliation cycle without the poll loop. Outside a
// started daemon it holds the instance lock for the cycle so a one-shot run
// never races a background daemon over the watch list file.
func (d *Daemon) RunOnce(ctx context.Context) (poller.Cycle, error) {
	if !d.running.Load() {
		ok, err := d.lock.TryLock()
		if err != nil {
			return poller.Cycle{}, fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return poller.Cycle{}, errors.New("another mangawatch daemon instance is already running")
		}
		defer func() {
			_ = d.lock.Unlock()
		}()
	}
	return d.poller.RunOnce(ctx)
}

// History returns recorded deliveries, newest first. A non-empty title limits
// the result to the first tracked series matching it.
func (d *Daemon) History(ctx context.Context, title string, limit int) ([]history.Delivery, error) {
	if d.history == nil {
		return nil, ErrHistoryDisabled
	}
	seriesID := ""
	if title = strings.TrimSpace(title); title != "" {
		matches := d.store.MatchTitle(title)
		if len(matches) == 0 {
			return nil, services.Wrap(services.ErrNotFound, "daemon", "history", fmt.Sprintf("no tracked series matching %q", title), nil)
		}
		seriesID = matches[0].ID
	}
	return d.history.Deliveries(ctx, seriesID, limit)
}

// Cycles returns recorded reconciliation cycles, newest first.
func (d *Daemon) Cycles(ctx context.Context, limit int) ([]history.Cycle, error) {
	if d.history == nil {
		return nil, ErrHistoryDisabled
	}
	return d.history.Cycles(ctx, limit)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	selections, removals := d.tracking.PendingSessions()
	status := Status{
		Running:           d.running.Load(),
		PID:               os.Getpid(),
		StartedAt:         d.startedAt,
		SeriesTracked:     d.store.Len(),
		PendingSelections: selections,
		PendingRemovals:   removals,
		Poller:            d.poller.Status(),
		WatchlistPath:     d.store.Path(),
		LockFilePath:      d.lockPath,
		LogPath:           d.logPath,
	}
	if d.history != nil {
		status.HistoryPath = d.history.Path()
		if last, ok, err := d.history.LastCycle(ctx); err == nil && ok {
			status.LastRecorded = &last
		}
	}
	d.mu.RLock()
	status.Preflight = append([]preflight.Result(nil), d.preflight...)
	d.mu.RUnlock()
	return status
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTestNotification, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// HandleCycle announces every update of a finished cycle and records it in
// the history log.
func (d *Daemon) HandleCycle(ctx context.Context, cycle poller.Cycle) {
	logger := logging.WithContext(ctx, d.logger)
	for _, update := range cycle.Report.Updates {
		deliveryErr := d.notifier.Publish(ctx, notifications.EventChapterReleased, notifications.UpdatePayload(update))
		if deliveryErr != nil {
			logging.WarnWithContext(logger, "chapter notification failed", "notification_failed",
				logging.String(logging.FieldSeriesID, update.SeriesID),
				logging.String(logging.FieldSeriesTitle, update.SeriesTitle),
				logging.String(logging.FieldChapter, update.ChapterNumber.String()),
				logging.String(logging.FieldErrorKind, services.Kind(deliveryErr)),
				logging.Error(deliveryErr),
				logging.String(logging.FieldImpact, "chapter recorded but not announced"),
				logging.String(logging.FieldErrorHint, "check ntfy topic and network access"),
			)
		}
		if d.history != nil {
			if _, err := d.history.RecordDelivery(ctx, cycle.ID, update, deliveryErr); err != nil {
				logging.WarnWithContext(logger, "failed to record delivery", "history_write_failed",
					logging.String(logging.FieldSeriesID, update.SeriesID),
					logging.Error(err),
					logging.String(logging.FieldImpact, "delivery missing from history"),
				)
			}
		}
	}

	if d.history != nil {
		if err := d.history.RecordCycle(ctx, cycle.ID, string(cycle.Trigger), cycle.Report, cycle.Err); err != nil {
			logging.WarnWithContext(logger, "failed to record cycle", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "cycle missing from history"),
			)
		}
	}

	if reason := failureReason(cycle); reason != "" {
		if err := d.notifier.Publish(ctx, notifications.EventCycleFailed, notifications.Payload{"reason": reason}); err != nil {
			logging.WarnWithContext(logger, "cycle failure notification failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "operator not alerted about failed check"),
			)
		}
	}
}

// failureReason describes a cycle worth alerting about. Cancellation at
// shutdown is not a failure.
func failureReason(cycle poller.Cycle) string {
	if cycle.Err != nil && !errors.Is(cycle.Err, context.Canceled) {
		return cycle.Err.Error()
	}
	failed := cycle.Report.Failed
	if len(failed) == 0 {
		return ""
	}
	titles := make([]string, 0, len(failed))
	for _, f := range failed {
		titles = append(titles, f.Title)
	}
	return fmt.Sprintf("%d series could not be saved (%s)", len(failed), strings.Join(titles, ", "))
}

func (d *Daemon) runPreflight(ctx context.Context) {
	results := preflight.RunAll(ctx, d.cfg)
	d.mu.Lock()
	d.preflight = results
	d.mu.Unlock()
	for _, r := range preflight.Failed(results) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldImpact, "related features may not work until fixed"),
		)
	}
}

func (d *Daemon) pruneHistory(ctx context.Context) {
	retention := d.cfg.HistoryRetention()
	if d.history == nil || retention <= 0 {
		return
	}
	removed, err := d.history.Prune(ctx, time.Now().Add(-retention))
	if err != nil {
		logging.WarnWithContext(d.logger, "history prune failed", "history_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "history database keeps growing"),
		)
		return
	}
	if removed > 0 {
		d.logger.Info("history pruned",
			logging.String(logging.FieldEventType, "history_pruned"),
			logging.Int64("removed", removed),
			logging.Duration("retention", retention),
		)
	}
}
