package reconcile_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"mangawatch/internal/chapter"
	"mangawatch/internal/mangadex"
	"mangawatch/internal/reconcile"
	"mangawatch/internal/scraper"
	"mangawatch/internal/services"
	"mangawatch/internal/watchlist"
)

type fakeCatalog struct {
	mu       sync.Mutex
	chapters map[string]mangadex.Chapter
	errs     map[string]error
	calls    []string
}

func (f *fakeCatalog) LatestChapter(_ context.Context, id string) (mangadex.Chapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if err, ok := f.errs[id]; ok {
		return mangadex.Chapter{}, err
	}
	ch, ok := f.chapters[id]
	if !ok {
		return mangadex.Chapter{}, services.Wrap(services.ErrNotFound, "mangadex", "latest chapter", "no chapters", nil)
	}
	return ch, nil
}

func (f *fakeCatalog) ChapterURL(id string) string {
	return "https://mangadex.org/chapter/" + id
}

type fakeScraper struct {
	results map[string]scraper.Result
	err     error
}

func (f *fakeScraper) Latest(_ context.Context, cfg watchlist.ScraperConfig) (scraper.Result, error) {
	if f.err != nil {
		return scraper.Result{}, f.err
	}
	res, ok := f.results[cfg.CheckURL]
	if !ok {
		return scraper.Result{}, fmt.Errorf("no page for %s", cfg.CheckURL)
	}
	return res, nil
}

func openStore(t *testing.T, seed map[string]watchlist.Series) *watchlist.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "observed_series.json")
	if err := watchlist.Save(path, seed); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	store, err := watchlist.Open(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func series(title, number string) watchlist.Series {
	return watchlist.Series{
		Title:             title,
		LastChapterID:     "c-" + number,
		LastChapterNumber: chapter.MustParse(number),
		LastChapterTitle:  "Old",
		CoverURL:          "https://uploads.mangadex.org/covers/x/cover.jpg",
		ReadChapters:      []string{},
	}
}

func withScraper(s watchlist.Series, checkURL string) watchlist.Series {
	s.Scraper = &watchlist.ScraperConfig{
		CheckURL:        checkURL,
		CheckSelector:   ".latest",
		ReadURLTemplate: "https://scans.example/read/{}",
	}
	return s
}

func TestRunRecordsNewCatalogChapter(t *testing.T) {
	store := openStore(t, map[string]watchlist.Series{"m1": series("Solo Leveling", "10")})
	catalog := &fakeCatalog{chapters: map[string]mangadex.Chapter{
		"m1": {ID: "c-11", Number: chapter.MustParse("11"), Title: "The Return"},
	}}
	r := reconcile.New(store, catalog, nil)

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(report.Updates))
	}
	u := report.Updates[0]
	if u.SeriesTitle != "Solo Leveling" || u.ChapterNumber.String() != "11" || u.ChapterTitle != "The Return" {
		t.Fatalf("unexpected update %+v", u)
	}
	if u.Previous.String() != "10" {
		t.Fatalf("expected previous 10, got %s", u.Previous)
	}
	if u.Source != reconcile.SourceCatalog || u.ReadURL != "https://mangadex.org/chapter/c-11" {
		t.Fatalf("unexpected source/link %+v", u)
	}
	stored, _ := store.Get("m1")
	if stored.LastChapterID != "c-11" || stored.LastChapterNumber.String() != "11" || stored.LastChapterTitle != "The Return" {
		t.Fatalf("store not updated: %+v", stored)
	}

	reloaded, err := watchlist.Load(store.Path())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded["m1"].LastChapterNumber.String(); got != "11" {
		t.Fatalf("persisted chapter = %s, want 11", got)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	store := openStore(t, map[string]watchlist.Series{"m1": series("Solo Leveling", "10")})
	catalog := &fakeCatalog{chapters: map[string]mangadex.Chapter{
		"m1": {ID: "c-11", Number: chapter.MustParse("11"), Title: "The Return"},
	}}
	r := reconcile.New(store, catalog, nil)

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(report.Updates) != 0 {
		t.Fatalf("second run produced updates: %+v", report.Updates)
	}
	if report.Checked != 1 {
		t.Fatalf("expected 1 checked, got %d", report.Checked)
	}
}

func TestRunNeverMovesBackwards(t *testing.T) {
	store := openStore(t, map[string]watchlist.Series{"m1": series("Berserk", "375")})
	catalog := &fakeCatalog{chapters: map[string]mangadex.Chapter{
		"m1": {ID: "c-370", Number: chapter.MustParse("370"), Title: "Older"},
	}}
	report, err := reconcile.New(store, catalog, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Updates) != 0 {
		t.Fatalf("unexpected updates %+v", report.Updates)
	}
	stored, _ := store.Get("m1")
	if stored.LastChapterNumber.String() != "375" {
		t.Fatalf("chapter regressed to %s", stored.LastChapterNumber)
	}
}

func TestRunComparesNumerically(t *testing.T) {
	store := openStore(t, map[string]watchlist.Series{"m1": series("One Piece", "9")})
	catalog := &fakeCatalog{chapters: map[string]mangadex.Chapter{
		"m1": {ID: "c-10", Number: chapter.MustParse("10"), Title: "Ten"},
	}}
	report, err := reconcile.New(store, catalog, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Updates) != 1 || report.Updates[0].ChapterNumber.String() != "10" {
		t.Fatalf("expected 9 -> 10 update, got %+v", report.Updates)
	}
}

func TestRunEmitsOneUpdateWhenBothSourcesAdvance(t *testing.T) {
	store := openStore(t, map[string]watchlist.Series{
		"m1": withScraper(series("Kagurabachi", "10"), "https://scans.example/kagura"),
	})
	catalog := &fakeCatalog{chapters: map[string]mangadex.Chapter{
		"m1": {ID: "c-11", Number: chapter.MustParse("11"), Title: "Eleven"},
	}}
	scr := &fakeScraper{results: map[string]scraper.Result{
		"https://scans.example/kagura": {Number: chapter.MustParse("12"), ReadURL: "https://scans.example/read/12"},
	}}

	report, err := reconcile.New(store, catalog, scr).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Updates) != 1 {
		t.Fatalf("expected exactly one update, got %d", len(report.Updates))
	}
	u := report.Updates[0]
	if u.Source != reconcile.SourceScraper || u.ChapterNumber.String() != "12" {
		t.Fatalf("expected scraper chapter 12, got %+v", u)
	}
	if u.ReadURL != "https://scans.example/read/12" || u.ChapterTitle != watchlist.PlaceholderChapterTitle {
		t.Fatalf("unexpected scraper update %+v", u)
	}
	stored, _ := store.Get("m1")
	if stored.LastChapterID != "" || stored.LastChapterURL != "https://scans.example/read/12" {
		t.Fatalf("scraper win not recorded: %+v", stored)
	}
}

func TestRunCatalogWinsTie(t *testing.T) {
	store := openStore(t, map[string]watchlist.Series{
		"m1": withScraper(series("Dandadan", "10"), "https://scans.example/dan"),
	})
	catalog := &fakeCatalog{chapters: map[string]mangadex.Chapter{
		"m1": {ID: "c-11", Number: chapter.MustParse("11"), Title: "Eleven"},
	}}
	scr := &fakeScraper{results: map[string]scraper.Result{
		"https://scans.example/dan": {Number: chapter.MustParse("11.0"), ReadURL: "https://scans.example/read/11"},
	}}

	report, err := reconcile.New(store, catalog, scr).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Updates) != 1 || report.Updates[0].Source != reconcile.SourceCatalog {
		t.Fatalf("expected single catalog update, got %+v", report.Updates)
	}
	stored, _ := store.Get("m1")
	if stored.LastChapterID != "c-11" || stored.LastChapterURL != "" {
		t.Fatalf("catalog win not recorded: %+v", stored)
	}
}

func TestRunSkipsSeriesWhenCatalogUnavailable(t *testing.T) {
	store := openStore(t, map[string]watchlist.Series{
		"down": withScraper(series("Down", "5"), "https://scans.example/down"),
		"up":   series("Up", "1"),
	})
	catalog := &fakeCatalog{
		chapters: map[string]mangadex.Chapter{"up": {ID: "c-2", Number: chapter.MustParse("2")}},
		errs: map[string]error{
			"down": services.Wrap(services.ErrSourceUnavailable, "mangadex", "latest chapter", "status 503", nil),
		},
	}
	scr := &fakeScraper{results: map[string]scraper.Result{
		"https://scans.example/down": {Number: chapter.MustParse("9"), ReadURL: "https://scans.example/read/9"},
	}}

	report, err := reconcile.New(store, catalog, scr).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].SeriesID != "down" {
		t.Fatalf("expected down to be skipped, got %+v", report.Skipped)
	}
	if len(report.Updates) != 1 || report.Updates[0].SeriesID != "up" {
		t.Fatalf("expected up to advance, got %+v", report.Updates)
	}
	if report.Updates[0].ChapterTitle != watchlist.PlaceholderChapterTitle {
		t.Fatalf("empty chapter title should use placeholder, got %q", report.Updates[0].ChapterTitle)
	}
	stored, _ := store.Get("down")
	if stored.LastChapterNumber.String() != "5" {
		t.Fatalf("skipped series changed: %+v", stored)
	}
}

func TestRunIgnoresScraperFailure(t *testing.T) {
	store := openStore(t, map[string]watchlist.Series{
		"m1": withScraper(series("Chainsaw Man", "150"), "https://scans.example/csm"),
	})
	catalog := &fakeCatalog{chapters: map[string]mangadex.Chapter{
		"m1": {ID: "c-151", Number: chapter.MustParse("151"), Title: "Next"},
	}}
	scr := &fakeScraper{err: errors.New("boom")}

	report, err := reconcile.New(store, catalog, scr).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Updates) != 1 || report.Updates[0].Source != reconcile.SourceCatalog {
		t.Fatalf("expected catalog update despite scraper failure, got %+v", report.Updates)
	}
}

func TestRunUsesScraperWhenCatalogHasNoChapters(t *testing.T) {
	store := openStore(t, map[string]watchlist.Series{
		"m1": withScraper(series("Indie", "3"), "https://scans.example/indie"),
	})
	scr := &fakeScraper{results: map[string]scraper.Result{
		"https://scans.example/indie": {Number: chapter.MustParse("4"), ReadURL: "https://scans.example/read/4"},
	}}

	report, err := reconcile.New(store, &fakeCatalog{}, scr).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Updates) != 1 || report.Updates[0].Source != reconcile.SourceScraper {
		t.Fatalf("expected scraper update, got %+v", report.Updates)
	}
}

func TestRunAbsentNumberNeverWins(t *testing.T) {
	store := openStore(t, map[string]watchlist.Series{"m1": series("Oneshot", "1")})
	catalog := &fakeCatalog{chapters: map[string]mangadex.Chapter{
		"m1": {ID: "c-x", Number: chapter.None(), Title: "Extra"},
	}}
	report, err := reconcile.New(store, catalog, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Updates) != 0 {
		t.Fatalf("absent number produced update %+v", report.Updates)
	}
}

func TestRunIgnoresScraperWhenDisabled(t *testing.T) {
	store := openStore(t, map[string]watchlist.Series{
		"m1": withScraper(series("Indie", "3"), "https://scans.example/indie"),
	})
	report, err := reconcile.New(store, &fakeCatalog{}, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Updates) != 0 {
		t.Fatalf("disabled scraper produced update %+v", report.Updates)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	store := openStore(t, map[string]watchlist.Series{
		"a": series("A", "1"),
		"b": series("B", "1"),
	})
	catalog := &fakeCatalog{chapters: map[string]mangadex.Chapter{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := reconcile.New(store, catalog, nil).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.Checked != 0 || len(catalog.calls) != 0 {
		t.Fatalf("cancelled run still checked series: %+v", report)
	}
}

func TestRunVisitsSeriesInIDOrder(t *testing.T) {
	store := openStore(t, map[string]watchlist.Series{
		"c": series("C", "1"),
		"a": series("A", "1"),
		"b": series("B", "1"),
	})
	catalog := &fakeCatalog{chapters: map[string]mangadex.Chapter{}}
	if _, err := reconcile.New(store, catalog, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if catalog.calls[i] != id {
			t.Fatalf("calls = %v, want %v", catalog.calls, want)
		}
	}
}
