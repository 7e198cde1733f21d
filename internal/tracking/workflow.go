package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"mangawatch/internal/logging"
	"mangawatch/internal/mangadex"
	"mangawatch/internal/services"
	"mangawatch/internal/textutil"
	"mangawatch/internal/watchlist"
)

const (
	defaultSearchLimit = 10
	defaultSessionTTL  = 15 * time.Minute
)

// Catalog is the subset of the MangaDex client the workflow uses.
type Catalog interface {
	Search(ctx context.Context, query string, limit int) ([]mangadex.SearchResult, error)
	LatestChapter(ctx context.Context, seriesID string) (mangadex.Chapter, error)
	CoverURL(ctx context.Context, seriesID string) (string, error)
	Info(ctx context.Context, seriesID string) (mangadex.Info, error)
	ChapterURL(chapterID string) string
}

// Store is the watch list surface the workflow reads and mutates.
type Store interface {
	Get(id string) (watchlist.Series, bool)
	Contains(id string) bool
	Add(id string, series watchlist.Series) error
	Remove(id string) (watchlist.Series, error)
	Update(id string, fn func(*watchlist.Series) (bool, error)) (watchlist.Series, bool, error)
	Entries() []watchlist.Entry
	MatchTitle(query string) []watchlist.Entry
}

// Result is the reply to one user command.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	// Kind classifies failures (user_input, not_found, source_unavailable).
	Kind       string            `json:"kind,omitempty"`
	Choices    []Choice          `json:"choices,omitempty"`
	Candidates []Candidate       `json:"candidates,omitempty"`
	Entries    []watchlist.Entry `json:"entries,omitempty"`
	SeriesID   string            `json:"series_id,omitempty"`
}

func ok(msg string) Result { return Result{OK: true, Message: msg} }

func failed(kind error, msg string) Result {
	return Result{Message: msg, Kind: services.Kind(kind)}
}

// Workflow owns the per-user pending searches and removals.
type Workflow struct {
	store       Store
	catalog     Catalog
	logger      *slog.Logger
	searchLimit int
	now         func() time.Time

	mu         sync.Mutex
	selections *sessionTable[Choice]
	removals   *sessionTable[Candidate]
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = logging.NewComponentLogger(logger, "tracking")
	}
}

// WithSearchLimit caps the number of search results offered.
func WithSearchLimit(limit int) Option {
	return func(w *Workflow) {
		if limit > 0 {
			w.searchLimit = limit
		}
	}
}

// WithSessionTTL sets how long a pending search or removal stays usable.
// Zero disables expiry.
func WithSessionTTL(ttl time.Duration) Option {
	return func(w *Workflow) {
		w.selections.ttl = ttl
		w.removals.ttl = ttl
	}
}

// WithClock overrides the session clock.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		if now != nil {
			w.now = now
		}
	}
}

// New builds a Workflow.
func New(store Store, catalog Catalog, opts ...Option) *Workflow {
	w := &Workflow{
		store:       store,
		catalog:     catalog,
		logger:      logging.NewComponentLogger(nil, "tracking"),
		searchLimit: defaultSearchLimit,
		now:         time.Now,
		selections:  newSessionTable[Choice](defaultSessionTTL),
		removals:    newSessionTable[Candidate](defaultSessionTTL),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Track searches the catalog and stores the numbered choices for user,
// replacing any earlier pending search.
func (w *Workflow) Track(ctx context.Context, user, title string) (Result, error) {
	ctx = services.WithUserID(ctx, user)
	logger := logging.WithContext(ctx, w.logger)
	title = textutil.NormalizeSpace(title)
	if title == "" {
		return failed(services.ErrUserInput, msgEmptyTitle), nil
	}

	results, err := w.catalog.Search(ctx, title, w.searchLimit)
	if err != nil {
		logging.WarnWithContext(logger, "catalog search failed", "search_failed",
			logging.Error(err),
			logging.String("query", title),
			logging.String(logging.FieldImpact, "no pending selection was stored"),
			logging.String(logging.FieldErrorHint, "retry once MangaDex is reachable"))
		return failed(err, sourceFailure("contacting MangaDex", "", err)), nil
	}
	if len(results) == 0 {
		w.mu.Lock()
		w.selections.evict(user)
		w.mu.Unlock()
		return failed(services.ErrNotFound, noMatches(title)), nil
	}

	choices := make([]Choice, 0, len(results))
	for _, r := range results {
		choices = append(choices, Choice{DisplayName: r.DisplayName, SeriesID: r.SeriesID, Raw: r.Raw})
	}
	w.mu.Lock()
	w.selections.put(user, choices, w.now())
	w.mu.Unlock()

	logger.Debug("search pending selection",
		logging.String("query", title),
		logging.Int("choices", len(choices)))
	res := ok(renderSearchChoices(title, choices))
	res.Choices = choices
	return res, nil
}

// Select consumes the user's pending search at the 1-based index and tracks
// the chosen series. An out-of-range index leaves the pending search intact.
func (w *Workflow) Select(ctx context.Context, user string, index int) (Result, error) {
	ctx = services.WithUserID(ctx, user)

	w.mu.Lock()
	choices, pending := w.selections.get(user, w.now())
	if !pending {
		w.mu.Unlock()
		return failed(services.ErrUserInput, msgNoActiveSearch), nil
	}
	if index < 1 || index > len(choices) {
		w.mu.Unlock()
		return failed(services.ErrUserInput, invalidSelection(len(choices))), nil
	}
	choice := choices[index-1]
	w.selections.evict(user)
	w.mu.Unlock()

	return w.Finalize(ctx, choice)
}

// Finalize adds the chosen series with its latest chapter as the baseline.
// A series with no chapter in the configured language is not added.
func (w *Workflow) Finalize(ctx context.Context, choice Choice) (Result, error) {
	ctx = services.WithSeriesID(ctx, choice.SeriesID)
	logger := logging.WithContext(ctx, w.logger)
	title := textutil.FirstNonEmpty(choice.DisplayName, mangadex.UnknownTitle)

	if w.store.Contains(choice.SeriesID) {
		return failed(services.ErrUserInput, alreadyTracked(title)), nil
	}

	latest, err := w.catalog.LatestChapter(ctx, choice.SeriesID)
	switch {
	case errors.Is(err, services.ErrNotFound):
		return failed(services.ErrNotFound, noEnglishChapter(title)), nil
	case err != nil:
		logging.WarnWithContext(logger, "latest chapter lookup failed", "finalize_failed",
			logging.Error(err),
			logging.String(logging.FieldSeriesTitle, title),
			logging.String(logging.FieldImpact, "series was not added"),
			logging.String(logging.FieldErrorHint, "retry the search once MangaDex is reachable"))
		return failed(err, sourceFailure("fetching chapter data", choice.SeriesID, err)), nil
	}

	cover, err := w.catalog.CoverURL(ctx, choice.SeriesID)
	if err != nil {
		logging.WarnWithContext(logger, "cover lookup failed", "cover_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "series tracked without cover art"),
			logging.String(logging.FieldErrorHint, "cover art is optional; no action needed"))
		cover = ""
	}

	chapterTitle := textutil.FirstNonEmpty(latest.Title, watchlist.PlaceholderChapterTitle)
	series := watchlist.Series{
		Title:             title,
		LastChapterID:     latest.ID,
		LastChapterNumber: latest.Number.Canonical(),
		LastChapterTitle:  chapterTitle,
		CoverURL:          cover,
		ReadChapters:      []string{},
	}
	if err := w.store.Add(choice.SeriesID, series); err != nil {
		if errors.Is(err, watchlist.ErrAlreadyTracked) {
			return failed(services.ErrUserInput, alreadyTracked(title)), nil
		}
		return Result{}, err
	}

	logger.Info("series tracked",
		logging.String(logging.FieldEventType, "series_tracked"),
		logging.String(logging.FieldSeriesTitle, title),
		logging.String(logging.FieldChapter, series.LastChapterNumber.String()))
	res := ok(renderAdded(title, series.LastChapterNumber.Display(chapterPlaceholder), chapterTitle, w.catalog.ChapterURL(latest.ID)))
	res.SeriesID = choice.SeriesID
	return res, nil
}

// Untrack removes the single tracked series whose title contains title. When
// several match, the candidates are stored for ConfirmRemove. Every untrack
// request replaces the user's pending removal, so a miss or a direct removal
// clears it.
func (w *Workflow) Untrack(ctx context.Context, user, title string) (Result, error) {
	ctx = services.WithUserID(ctx, user)
	title = textutil.NormalizeSpace(title)
	if title == "" {
		return failed(services.ErrUserInput, msgEmptyTitle), nil
	}

	matches := w.store.MatchTitle(title)
	if len(matches) < 2 {
		w.mu.Lock()
		w.removals.evict(user)
		w.mu.Unlock()
	}
	switch len(matches) {
	case 0:
		return failed(services.ErrUserInput, noTrackedMatch(title)), nil
	case 1:
		return w.remove(ctx, matches[0].ID, matches[0].Series.Title)
	}

	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, Candidate{SeriesID: m.ID, Title: m.Series.Title})
	}
	w.mu.Lock()
	w.removals.put(user, candidates, w.now())
	w.mu.Unlock()

	res := ok(renderRemovalCandidates(candidates))
	res.Candidates = candidates
	return res, nil
}

// ConfirmRemove consumes the user's pending removal at the 1-based index.
func (w *Workflow) ConfirmRemove(ctx context.Context, user string, index int) (Result, error) {
	ctx = services.WithUserID(ctx, user)

	w.mu.Lock()
	candidates, pending := w.removals.get(user, w.now())
	if !pending {
		w.mu.Unlock()
		return failed(services.ErrUserInput, msgNoPendingRemoval), nil
	}
	if index < 1 || index > len(candidates) {
		w.mu.Unlock()
		return failed(services.ErrUserInput, invalidSelection(len(candidates))), nil
	}
	target := candidates[index-1]
	w.removals.evict(user)
	w.mu.Unlock()

	return w.remove(ctx, target.SeriesID, target.Title)
}

func (w *Workflow) remove(ctx context.Context, id, title string) (Result, error) {
	ctx = services.WithSeriesID(ctx, id)
	if _, err := w.store.Remove(id); err != nil {
		if errors.Is(err, watchlist.ErrNotTracked) {
			return failed(services.ErrNotFound, fmt.Sprintf("❌ '%s' is no longer tracked.", title)), nil
		}
		return Result{}, err
	}
	logging.WithContext(ctx, w.logger).Info("series untracked",
		logging.String(logging.FieldEventType, "series_untracked"),
		logging.String(logging.FieldSeriesTitle, title))
	res := ok(removed(title))
	res.SeriesID = id
	return res, nil
}

// List renders every tracked series in title order.
func (w *Workflow) List() Result {
	entries := w.store.Entries()
	res := ok(renderList(entries))
	res.Entries = entries
	return res
}

// Latest renders the stored latest chapter of the first tracked series whose
// title contains title.
func (w *Workflow) Latest(title string) Result {
	entry, found := w.firstMatch(title)
	if !found {
		return failed(services.ErrUserInput, noTrackedFound(title))
	}
	link := entry.Series.LastChapterURL
	if entry.Series.LastChapterID != "" {
		link = w.catalog.ChapterURL(entry.Series.LastChapterID)
	}
	res := ok(renderLatest(entry.Series, link))
	res.SeriesID = entry.ID
	res.Entries = []watchlist.Entry{entry}
	return res
}

// SearchOnly lists catalog matches without starting a selection.
func (w *Workflow) SearchOnly(ctx context.Context, title string) Result {
	title = textutil.NormalizeSpace(title)
	if title == "" {
		return failed(services.ErrUserInput, msgEmptyTitle)
	}
	results, err := w.catalog.Search(ctx, title, w.searchLimit)
	if err != nil {
		return failed(err, sourceFailure("contacting MangaDex", "", err))
	}
	if len(results) == 0 {
		return failed(services.ErrNotFound, noMatches(title))
	}
	return ok(renderSearchOnly(results))
}

// Info fetches catalog metadata for the first tracked series matching title.
func (w *Workflow) Info(ctx context.Context, title string) Result {
	entry, found := w.firstMatch(title)
	if !found {
		return failed(services.ErrUserInput, noTrackedMatch(title))
	}
	ctx = services.WithSeriesID(ctx, entry.ID)
	info, err := w.catalog.Info(ctx, entry.ID)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, w.logger), "info lookup failed", "info_failed",
			logging.Error(err),
			logging.String(logging.FieldSeriesTitle, entry.Series.Title),
			logging.String(logging.FieldImpact, "info request answered with an error message"),
			logging.String(logging.FieldErrorHint, "retry once MangaDex is reachable"))
		return failed(err, msgInfoUnavailable+" "+err.Error())
	}
	res := ok(renderInfo(entry.Series.Title, info))
	res.SeriesID = entry.ID
	return res
}

// MarkRead records the latest stored chapter of the first matching series as
// read. Marking an already-read chapter succeeds without a write.
func (w *Workflow) MarkRead(ctx context.Context, title string) (Result, error) {
	entry, found := w.firstMatch(title)
	if !found {
		return failed(services.ErrUserInput, noTrackedMatch(title)), nil
	}
	key := entry.Series.CurrentChapterKey()
	number := entry.Series.LastChapterNumber.Display(chapterPlaceholder)
	if key == "" {
		return failed(services.ErrNotFound, fmt.Sprintf("⚠️ '%s' has no recorded chapter yet.", entry.Series.Title)), nil
	}
	_, changed, err := w.store.Update(entry.ID, func(s *watchlist.Series) (bool, error) {
		if s.HasRead(key) {
			return false, nil
		}
		s.ReadChapters = append(s.ReadChapters, key)
		return true, nil
	})
	if err != nil {
		if errors.Is(err, watchlist.ErrNotTracked) {
			return failed(services.ErrNotFound, noTrackedMatch(entry.Series.Title)), nil
		}
		return Result{}, err
	}
	res := ok(renderMarkedRead(entry.Series.Title, number))
	if !changed {
		res.Message = renderAlreadyRead(entry.Series.Title, number)
	} else {
		logging.WithContext(services.WithSeriesID(ctx, entry.ID), w.logger).Info("chapter marked read",
			logging.String(logging.FieldEventType, "chapter_marked_read"),
			logging.String(logging.FieldChapter, key))
	}
	res.SeriesID = entry.ID
	return res, nil
}

// SetScraper attaches or replaces the secondary page configuration of the
// first matching series.
func (w *Workflow) SetScraper(ctx context.Context, title string, cfg watchlist.ScraperConfig) (Result, error) {
	entry, found := w.firstMatch(title)
	if !found {
		return failed(services.ErrUserInput, noTrackedMatch(title)), nil
	}
	cfg.CheckURL = strings.TrimSpace(cfg.CheckURL)
	cfg.CheckSelector = strings.TrimSpace(cfg.CheckSelector)
	cfg.ReadURLTemplate = strings.TrimSpace(cfg.ReadURLTemplate)
	if err := cfg.Validate(); err != nil {
		return failed(services.ErrUserInput, "❌ Invalid scraper configuration: "+err.Error()), nil
	}
	if _, _, err := w.store.Update(entry.ID, func(s *watchlist.Series) (bool, error) {
		s.Scraper = &cfg
		return true, nil
	}); err != nil {
		if errors.Is(err, watchlist.ErrNotTracked) {
			return failed(services.ErrNotFound, noTrackedMatch(entry.Series.Title)), nil
		}
		return Result{}, err
	}
	logging.WithContext(services.WithSeriesID(ctx, entry.ID), w.logger).Info("scraper configured",
		logging.String(logging.FieldEventType, "scraper_configured"),
		logging.String("check_url", cfg.CheckURL))
	res := ok(fmt.Sprintf("✅ Secondary source set for '%s': %s", entry.Series.Title, cfg.CheckURL))
	res.SeriesID = entry.ID
	return res, nil
}

// ClearScraper removes the secondary page configuration of the first
// matching series.
func (w *Workflow) ClearScraper(ctx context.Context, title string) (Result, error) {
	entry, found := w.firstMatch(title)
	if !found {
		return failed(services.ErrUserInput, noTrackedMatch(title)), nil
	}
	_, changed, err := w.store.Update(entry.ID, func(s *watchlist.Series) (bool, error) {
		if s.Scraper == nil {
			return false, nil
		}
		s.Scraper = nil
		return true, nil
	})
	if err != nil {
		if errors.Is(err, watchlist.ErrNotTracked) {
			return failed(services.ErrNotFound, noTrackedMatch(entry.Series.Title)), nil
		}
		return Result{}, err
	}
	if !changed {
		return ok(fmt.Sprintf("ℹ️ '%s' has no secondary source configured.", entry.Series.Title)), nil
	}
	logging.WithContext(services.WithSeriesID(ctx, entry.ID), w.logger).Info("scraper cleared",
		logging.String(logging.FieldEventType, "scraper_cleared"))
	res := ok(fmt.Sprintf("✅ Secondary source removed for '%s'.", entry.Series.Title))
	res.SeriesID = entry.ID
	return res, nil
}

// PendingSessions reports how many users have an unexpired pending search or
// removal. Expired entries are pruned as a side effect.
func (w *Workflow) PendingSessions() (selections, removals int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.selections.prune(now)
	w.removals.prune(now)
	return w.selections.size(), w.removals.size()
}

func (w *Workflow) firstMatch(title string) (watchlist.Entry, bool) {
	matches := w.store.MatchTitle(title)
	if len(matches) == 0 {
		return watchlist.Entry{}, false
	}
	return matches[0], true
}

// ParseIndex converts a user-typed selection number.
func ParseIndex(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, services.Wrap(services.ErrUserInput, "tracking", "parse index",
			fmt.Sprintf("%q is not a number", raw), nil)
	}
	return n, nil
}
