package testsupport

import (
	"testing"

	"mangawatch/internal/chapter"
	"mangawatch/internal/config"
	"mangawatch/internal/logging"
	"mangawatch/internal/watchlist"
)

// SeedWatchlist writes entries to the configured watch list file before a
// store or daemon opens it.
func SeedWatchlist(t testing.TB, cfg *config.Config, entries map[string]watchlist.Series) {
	t.Helper()

	if err := watchlist.Save(cfg.Paths.WatchlistFile, entries); err != nil {
		t.Fatalf("watchlist.Save: %v", err)
	}
}

// MustOpenWatchlist opens the configured watch list for tests.
func MustOpenWatchlist(t testing.TB, cfg *config.Config) *watchlist.Store {
	t.Helper()

	store, err := watchlist.Open(cfg.Paths.WatchlistFile, logging.NewNop())
	if err != nil {
		t.Fatalf("watchlist.Open: %v", err)
	}
	return store
}

// Series builds a tracked series at the given chapter number.
func Series(title, number string) watchlist.Series {
	return watchlist.Series{
		Title:             title,
		LastChapterID:     "c-" + number,
		LastChapterNumber: chapter.MustParse(number),
		LastChapterTitle:  "Chapter " + number,
	}
}
