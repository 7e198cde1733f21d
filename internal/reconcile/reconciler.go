package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"mangawatch/internal/logging"
	"mangawatch/internal/mangadex"
	"mangawatch/internal/scraper"
	"mangawatch/internal/services"
	"mangawatch/internal/watchlist"
)

// Catalog is the subset of the MangaDex client the reconciler uses.
type Catalog interface {
	LatestChapter(ctx context.Context, seriesID string) (mangadex.Chapter, error)
	ChapterURL(chapterID string) string
}

// Scraper reads a series' secondary page.
type Scraper interface {
	Latest(ctx context.Context, cfg watchlist.ScraperConfig) (scraper.Result, error)
}

// Store is the watch list surface the reconciler reads and mutates.
type Store interface {
	Snapshot() map[string]watchlist.Series
	Update(id string, fn func(*watchlist.Series) (bool, error)) (watchlist.Series, bool, error)
}

// Reconciler runs reconciliation cycles.
type Reconciler struct {
	store          Store
	catalog        Catalog
	scraper        Scraper
	logger         *slog.Logger
	catalogTimeout time.Duration
	scraperTimeout time.Duration
	now            func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logging.NewComponentLogger(logger, "reconcile")
	}
}

// WithTimeouts bounds each catalog and scraper fetch. Zero leaves the
// client's own timeout in charge.
func WithTimeouts(catalog, scraper time.Duration) Option {
	return func(r *Reconciler) {
		r.catalogTimeout = catalog
		r.scraperTimeout = scraper
	}
}

// WithClock overrides the time source used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// New builds a Reconciler. scr may be nil to ignore scraper configuration.
func New(store Store, catalog Catalog, scr Scraper, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:   store,
		catalog: catalog,
		scraper: scr,
		logger:  logging.NewComponentLogger(nil, "reconcile"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one cycle over every tracked series in ID order. Per-series
// failures are reported, never returned. The error is non-nil only when ctx
// ends mid-cycle; the partial report is still returned.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	report := Report{StartedAt: r.now(), Updates: []Update{}, Skipped: []Skip{}, Failed: []Skip{}}
	snapshot := r.store.Snapshot()
	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = r.now()
			return report, err
		}
		series := snapshot[id]
		seriesCtx := services.WithSeriesID(ctx, id)
		report.Checked++

		update, outcome := r.check(seriesCtx, id, series)
		switch outcome.kind {
		case outcomeUpdated:
			report.Updates = append(report.Updates, update)
		case outcomeSkipped:
			report.Skipped = append(report.Skipped, Skip{SeriesID: id, Title: series.Title, Reason: outcome.reason})
		case outcomeFailed:
			report.Failed = append(report.Failed, Skip{SeriesID: id, Title: series.Title, Reason: outcome.reason})
		}
	}

	report.FinishedAt = r.now()
	logging.WithContext(ctx, r.logger).Info("reconciliation cycle finished",
		logging.String(logging.FieldEventType, "cycle_finished"),
		logging.Int("checked", report.Checked),
		logging.Int("updates", len(report.Updates)),
		logging.Int("skipped", len(report.Skipped)),
		logging.Int("failed", len(report.Failed)),
		logging.Duration("duration", report.Duration()))
	return report, nil
}

type outcomeKind int

const (
	outcomeUnchanged outcomeKind = iota
	outcomeUpdated
	outcomeSkipped
	outcomeFailed
)

type outcome struct {
	kind   outcomeKind
	reason string
}

func (r *Reconciler) check(ctx context.Context, id string, series watchlist.Series) (Update, outcome) {
	logger := logging.WithContext(ctx, r.logger)

	catalog, err := r.fetchCatalog(ctx, id)
	if err != nil {
		logging.WarnWithContext(logger, "catalog unavailable, skipping series this cycle", "catalog_unavailable",
			logging.Error(err),
			logging.String(logging.FieldSeriesTitle, series.Title),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldImpact, "stored chapter left unchanged until the next cycle"),
			logging.String(logging.FieldErrorHint, "check MangaDex availability and network access"))
		return Update{}, outcome{kind: outcomeSkipped, reason: err.Error()}
	}

	scraped := r.fetchScraper(ctx, logger, series)

	winner, ok := decide(series.LastChapterNumber, catalog, scraped)
	if !ok {
		logger.Debug("no newer chapter",
			logging.String(logging.FieldChapter, series.LastChapterNumber.String()))
		return Update{}, outcome{kind: outcomeUnchanged}
	}

	var previous = series.LastChapterNumber
	stored, changed, err := r.store.Update(id, func(s *watchlist.Series) (bool, error) {
		// Re-checked under the write lock so a concurrent writer cannot be
		// rolled backwards.
		if !winner.number.After(s.LastChapterNumber) {
			return false, nil
		}
		previous = s.LastChapterNumber
		s.LastChapterNumber = winner.number.Canonical()
		s.LastChapterID = winner.id
		s.LastChapterTitle = winner.title
		if winner.source == SourceScraper {
			s.LastChapterURL = winner.readURL
		} else {
			s.LastChapterURL = ""
		}
		return true, nil
	})
	switch {
	case errors.Is(err, watchlist.ErrNotTracked):
		logger.Debug("series removed during cycle")
		return Update{}, outcome{kind: outcomeUnchanged}
	case err != nil:
		logging.ErrorWithContext(logger, "failed to record new chapter", "chapter_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldSeriesTitle, series.Title),
			logging.String(logging.FieldChapter, winner.number.String()),
			logging.String(logging.FieldErrorHint, "the update will be retried next cycle once the state file is writable"))
		return Update{}, outcome{kind: outcomeFailed, reason: err.Error()}
	case !changed:
		return Update{}, outcome{kind: outcomeUnchanged}
	}

	update := Update{
		SeriesID:      id,
		SeriesTitle:   stored.Title,
		ChapterID:     stored.LastChapterID,
		ChapterNumber: stored.LastChapterNumber,
		Previous:      previous,
		ChapterTitle:  stored.ChapterTitle(),
		ReadURL:       winner.readURL,
		CoverURL:      stored.CoverURL,
		Source:        winner.source,
	}
	logger.Info("new chapter recorded",
		logging.String(logging.FieldEventType, "chapter_update"),
		logging.String(logging.FieldSeriesTitle, update.SeriesTitle),
		logging.String(logging.FieldChapter, update.ChapterNumber.String()),
		logging.String("previous_chapter", previous.String()),
		logging.String(logging.FieldSource, string(update.Source)))
	return update, outcome{kind: outcomeUpdated}
}

// fetchCatalog returns nil with no error when the catalog has no chapter.
func (r *Reconciler) fetchCatalog(ctx context.Context, id string) (*candidate, error) {
	fetchCtx, cancel := withTimeout(ctx, r.catalogTimeout)
	defer cancel()

	ch, err := r.catalog.LatestChapter(fetchCtx, id)
	if errors.Is(err, services.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	title := ch.Title
	if title == "" {
		title = watchlist.PlaceholderChapterTitle
	}
	return &candidate{
		source:  SourceCatalog,
		number:  ch.Number,
		id:      ch.ID,
		title:   title,
		readURL: r.catalog.ChapterURL(ch.ID),
	}, nil
}

func (r *Reconciler) fetchScraper(ctx context.Context, logger *slog.Logger, series watchlist.Series) *candidate {
	if r.scraper == nil || series.Scraper == nil {
		return nil
	}
	fetchCtx, cancel := withTimeout(ctx, r.scraperTimeout)
	defer cancel()

	res, err := r.scraper.Latest(fetchCtx, *series.Scraper)
	if err != nil {
		logging.WarnWithContext(logger, "scraper fetch failed", "scraper_unavailable",
			logging.Error(err),
			logging.String(logging.FieldSeriesTitle, series.Title),
			logging.String("check_url", series.Scraper.CheckURL),
			logging.String(logging.FieldImpact, "only the catalog is considered for this series this cycle"),
			logging.String(logging.FieldErrorHint, "verify check_url and check_selector still match the page"))
		return nil
	}
	return &candidate{
		source:  SourceScraper,
		number:  res.Number,
		title:   watchlist.PlaceholderChapterTitle,
		readURL: res.ReadURL,
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
