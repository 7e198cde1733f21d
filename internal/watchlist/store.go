package watchlist

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"mangawatch/internal/fileutil"
	"mangawatch/internal/logging"
	"mangawatch/internal/services"
	"mangawatch/internal/textutil"
)

var (
	// ErrAlreadyTracked is returned by Add for an identifier already present.
	ErrAlreadyTracked = fmt.Errorf("%w: series already tracked", services.ErrUserInput)
	// ErrNotTracked is returned when a mutation targets an unknown identifier.
	ErrNotTracked = fmt.Errorf("%w: series not tracked", services.ErrNotFound)
)

// Load reads the watch list at path. A missing or empty file yields an empty
// map; unreadable or malformed content is wrapped in services.ErrStorage.
func Load(path string) (map[string]Series, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]Series{}, nil
		}
		return nil, services.Wrap(services.ErrStorage, "watchlist", "load", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]Series{}, nil
	}

	entries := map[string]Series{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, services.Wrap(services.ErrStorage, "watchlist", "parse", path, err)
	}
	for id, series := range entries {
		if strings.TrimSpace(id) == "" {
			return nil, services.Wrap(services.ErrStorage, "watchlist", "parse", "blank series id in "+path, nil)
		}
		if series.ReadChapters == nil {
			series.ReadChapters = []string{}
			entries[id] = series
		}
	}
	return entries, nil
}

// Save overwrites path with entries. The write is atomic: on failure the
// previous file is left untouched.
func Save(path string, entries map[string]Series) error {
	if entries == nil {
		entries = map[string]Series{}
	}
	normalized := make(map[string]Series, len(entries))
	for id, series := range entries {
		if series.ReadChapters == nil {
			series.ReadChapters = []string{}
		}
		normalized[id] = series
	}
	data, err := json.MarshalIndent(normalized, "", "    ")
	if err != nil {
		return services.Wrap(services.ErrStorage, "watchlist", "marshal", path, err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrStorage, "watchlist", "save", path, err)
	}
	return nil
}

// Store provides serialized, durable access to the watch list.
type Store struct {
	path    string
	logger  *slog.Logger
	mu      sync.RWMutex
	entries map[string]Series
}

// Open loads the watch list at path. A malformed file is an error so the
// caller never silently replaces it with an empty list.
func Open(path string, logger *slog.Logger) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "watchlist", "open", "path is required", nil)
	}
	logger = logging.NewComponentLogger(logger, "watchlist")

	entries, err := Load(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded watch list",
		logging.Int("series_count", len(entries)),
		logging.String("path", path))

	return &Store{path: path, logger: logger, entries: entries}, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Get returns a copy of the series for id.
func (s *Store) Get(id string) (Series, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series, ok := s.entries[id]
	if !ok {
		return Series{}, false
	}
	return series.clone(), true
}

// Contains reports whether id is tracked.
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// Len returns the number of tracked series.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns a deep copy of the watch list.
func (s *Store) Snapshot() map[string]Series {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Series, len(s.entries))
	for id, series := range s.entries {
		out[id] = series.clone()
	}
	return out
}

// Entries returns every series ordered by title (case-folded), then ID.
func (s *Store) Entries() []Entry {
	snapshot := s.Snapshot()
	entries := make([]Entry, 0, len(snapshot))
	for id, series := range snapshot {
		entries = append(entries, Entry{ID: id, Series: series})
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(textutil.Fold(a.Series.Title), textutil.Fold(b.Series.Title)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return entries
}

// MatchTitle returns entries whose title contains query, ignoring case, in
// Entries order.
func (s *Store) MatchTitle(query string) []Entry {
	var matches []Entry
	for _, entry := range s.Entries() {
		if textutil.ContainsFold(entry.Series.Title, query) {
			matches = append(matches, entry)
		}
	}
	return matches
}

// Add inserts a new series and persists the change.
func (s *Store) Add(id string, series Series) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return services.Wrap(services.ErrUserInput, "watchlist", "add", "series id cannot be empty", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; exists {
		return ErrAlreadyTracked
	}
	series = series.clone()
	s.entries[id] = series
	if err := s.save(); err != nil {
		delete(s.entries, id)
		return err
	}

	s.logger.Info("series added",
		logging.String(logging.FieldEventType, "series_added"),
		logging.String(logging.FieldSeriesID, id),
		logging.String(logging.FieldSeriesTitle, series.Title),
		logging.String(logging.FieldChapter, series.LastChapterNumber.String()))
	return nil
}

// Remove deletes id and persists the change, returning the removed series.
func (s *Store) Remove(id string) (Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	series, exists := s.entries[id]
	if !exists {
		return Series{}, ErrNotTracked
	}
	delete(s.entries, id)
	if err := s.save(); err != nil {
		s.entries[id] = series
		return Series{}, err
	}

	s.logger.Info("series removed",
		logging.String(logging.FieldEventType, "series_removed"),
		logging.String(logging.FieldSeriesID, id),
		logging.String(logging.FieldSeriesTitle, series.Title))
	return series, nil
}

// Update applies fn to a copy of the series under the write lock. When fn
// reports a change the copy replaces the stored record and is persisted; a
// failed save restores the previous record. fn runs with the lock held and
// must not call back into the store.
func (s *Store) Update(id string, fn func(*Series) (bool, error)) (Series, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.entries[id]
	if !exists {
		return Series{}, false, ErrNotTracked
	}
	next := current.clone()
	changed, err := fn(&next)
	if err != nil {
		return current.clone(), false, err
	}
	if !changed {
		return current.clone(), false, nil
	}
	s.entries[id] = next
	if err := s.save(); err != nil {
		s.entries[id] = current
		return current.clone(), false, err
	}
	return next.clone(), true, nil
}

func (s *Store) save() error {
	if err := Save(s.path, s.entries); err != nil {
		logging.ErrorWithContext(s.logger, "failed to persist watch list", "watchlist_save_failed",
			logging.Error(err),
			logging.String("path", s.path),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the state directory"))
		return err
	}
	return nil
}
