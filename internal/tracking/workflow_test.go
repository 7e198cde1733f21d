package tracking_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mangawatch/internal/chapter"
	"mangawatch/internal/mangadex"
	"mangawatch/internal/reconcile"
	"mangawatch/internal/services"
	"mangawatch/internal/tracking"
	"mangawatch/internal/watchlist"
)

type fakeCatalog struct {
	results   map[string][]mangadex.SearchResult
	chapters  map[string]mangadex.Chapter
	covers    map[string]string
	info      map[string]mangadex.Info
	searchErr error
	latestErr error
}

func (f *fakeCatalog) Search(_ context.Context, query string, _ int) ([]mangadex.SearchResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results[strings.ToLower(query)], nil
}

func (f *fakeCatalog) LatestChapter(_ context.Context, id string) (mangadex.Chapter, error) {
	if f.latestErr != nil {
		return mangadex.Chapter{}, f.latestErr
	}
	ch, ok := f.chapters[id]
	if !ok {
		return mangadex.Chapter{}, services.Wrap(services.ErrNotFound, "mangadex", "latest chapter", "no en chapters for series "+id, nil)
	}
	return ch, nil
}

func (f *fakeCatalog) CoverURL(_ context.Context, id string) (string, error) {
	return f.covers[id], nil
}

func (f *fakeCatalog) Info(_ context.Context, id string) (mangadex.Info, error) {
	info, ok := f.info[id]
	if !ok {
		return mangadex.Info{}, services.Wrap(services.ErrSourceUnavailable, "mangadex", "info", "/manga/"+id+" returned status 503", nil)
	}
	return info, nil
}

func (f *fakeCatalog) ChapterURL(id string) string {
	if id == "" {
		return ""
	}
	return "https://mangadex.org/chapter/" + id
}

func narutoCatalog() *fakeCatalog {
	return &fakeCatalog{
		results: map[string][]mangadex.SearchResult{
			"naruto": {
				{DisplayName: "Naruto", SeriesID: "n1"},
				{DisplayName: "Boruto: Naruto Next Generations", SeriesID: "n2"},
				{DisplayName: "Naruto: The Seventh Hokage", SeriesID: "n3"},
			},
		},
		chapters: map[string]mangadex.Chapter{
			"n1": {ID: "c700", Number: chapter.MustParse("700"), Title: "Uzumaki Naruto"},
			"n2": {ID: "c80", Number: chapter.MustParse("80"), Title: ""},
		},
		covers: map[string]string{"n1": "https://uploads.mangadex.org/covers/n1/cover.jpg"},
	}
}

func newStore(t *testing.T) *watchlist.Store {
	t.Helper()
	store, err := watchlist.Open(filepath.Join(t.TempDir(), "observed_series.json"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func TestTrackThenSelectAddsSeriesWithBaseline(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	wf := tracking.New(store, narutoCatalog())

	res, err := wf.Track(ctx, "alice", "Naruto")
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if !res.OK || len(res.Choices) != 3 {
		t.Fatalf("expected 3 choices, got %+v", res)
	}
	if !strings.Contains(res.Message, "[2] Boruto: Naruto Next Generations | ID: `n2`") {
		t.Fatalf("listing missing numbered entry:\n%s", res.Message)
	}

	res, err = wf.Select(ctx, "alice", 1)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !res.OK {
		t.Fatalf("select failed: %+v", res)
	}
	want := "✅ **Naruto** added and initial chapter recorded:\n📖 Chapter 700: Uzumaki Naruto\n🔗 https://mangadex.org/chapter/c700"
	if res.Message != want {
		t.Fatalf("message = %q, want %q", res.Message, want)
	}
	series, ok := store.Get("n1")
	if !ok {
		t.Fatal("series not stored")
	}
	if series.LastChapterNumber.String() != "700" || series.LastChapterID != "c700" {
		t.Fatalf("baseline not seeded: %+v", series)
	}
	if series.CoverURL != "https://uploads.mangadex.org/covers/n1/cover.jpg" {
		t.Fatalf("cover not stored: %q", series.CoverURL)
	}
	if series.ReadChapters == nil {
		t.Fatal("read_chapters should be an empty list")
	}

	res, _ = wf.Select(ctx, "alice", 1)
	if res.OK || res.Message != "⚠️ No active search found. Use /track first." {
		t.Fatalf("selection should be consumed, got %+v", res)
	}
}

func TestSelectOutOfRangeKeepsPendingSelection(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	wf := tracking.New(store, narutoCatalog())

	if _, err := wf.Track(ctx, "alice", "naruto"); err != nil {
		t.Fatalf("Track: %v", err)
	}
	res, err := wf.Select(ctx, "alice", 5)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if res.OK || res.Kind != "user_input" {
		t.Fatalf("expected user input failure, got %+v", res)
	}
	if res.Message != "❌ Invalid selection. Use a number from 1 to 3." {
		t.Fatalf("unexpected message %q", res.Message)
	}
	if store.Len() != 0 {
		t.Fatal("store mutated by invalid selection")
	}

	res, err = wf.Select(ctx, "alice", 2)
	if err != nil || !res.OK {
		t.Fatalf("valid select after invalid one failed: %+v %v", res, err)
	}
	if !store.Contains("n2") {
		t.Fatal("second choice not tracked")
	}
	stored, _ := store.Get("n2")
	if stored.LastChapterTitle != watchlist.PlaceholderChapterTitle {
		t.Fatalf("empty chapter title should use placeholder, got %q", stored.LastChapterTitle)
	}
}

func TestFinalizeWithoutChaptersDoesNotAdd(t *testing.T) {
	store := newStore(t)
	wf := tracking.New(store, narutoCatalog())

	res, err := wf.Finalize(context.Background(), tracking.Choice{DisplayName: "Naruto: The Seventh Hokage", SeriesID: "n3"})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if res.OK || res.Message != "⚠️ No English chapter found for 'Naruto: The Seventh Hokage'. Series not added." {
		t.Fatalf("unexpected result %+v", res)
	}
	if store.Len() != 0 {
		t.Fatal("series added without chapters")
	}
}

func TestFinalizeWithoutChapterNumberKeepsItAbsent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	cat := narutoCatalog()
	cat.chapters["p1"] = mangadex.Chapter{ID: "c-oneshot", Number: chapter.None(), Title: "Oneshot"}
	wf := tracking.New(store, cat)

	res, err := wf.Finalize(ctx, tracking.Choice{DisplayName: "Prologue Tales", SeriesID: "p1"})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !res.OK || !strings.Contains(res.Message, "📖 Chapter N/A: Oneshot") {
		t.Fatalf("unexpected result %+v", res)
	}
	stored, _ := store.Get("p1")
	if stored.LastChapterNumber.Valid() {
		t.Fatalf("absent number stored as %q", stored.LastChapterNumber.String())
	}

	cat.chapters["p1"] = mangadex.Chapter{ID: "c-zero", Number: chapter.MustParse("0"), Title: "Prologue"}
	report, err := reconcile.New(store, cat, nil).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Updates) != 1 || report.Updates[0].ChapterNumber.String() != "0" {
		t.Fatalf("chapter 0 after an absent baseline should notify, got %+v", report.Updates)
	}
}

func TestFinalizeRejectsAlreadyTracked(t *testing.T) {
	store := newStore(t)
	if err := store.Add("n1", watchlist.Series{Title: "Naruto", LastChapterNumber: chapter.MustParse("699")}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	wf := tracking.New(store, narutoCatalog())

	res, err := wf.Finalize(context.Background(), tracking.Choice{DisplayName: "Naruto", SeriesID: "n1"})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if res.OK || res.Message != "⚠️ 'Naruto' is already being tracked." {
		t.Fatalf("unexpected result %+v", res)
	}
	stored, _ := store.Get("n1")
	if stored.LastChapterNumber.String() != "699" {
		t.Fatal("existing record changed")
	}
}

func TestFinalizeSourceFailureNamesSeries(t *testing.T) {
	cat := narutoCatalog()
	cat.latestErr = services.Wrap(services.ErrSourceUnavailable, "mangadex", "latest chapter", "/chapter returned status 502", nil)
	wf := tracking.New(newStore(t), cat)

	res, err := wf.Finalize(context.Background(), tracking.Choice{DisplayName: "Naruto", SeriesID: "n1"})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if res.OK || res.Kind != "source_unavailable" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.Contains(res.Message, "n1") || !strings.Contains(res.Message, "502") {
		t.Fatalf("message should name series and status: %q", res.Message)
	}
}

func TestTrackNoMatchesStaysIdle(t *testing.T) {
	ctx := context.Background()
	wf := tracking.New(newStore(t), narutoCatalog())

	res, err := wf.Track(ctx, "bob", "nothing here")
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if res.OK || res.Message != "❌ No matches found for 'nothing here'." {
		t.Fatalf("unexpected result %+v", res)
	}
	res, _ = wf.Select(ctx, "bob", 1)
	if res.Message != "⚠️ No active search found. Use /track first." {
		t.Fatalf("no-match search must not leave a session: %+v", res)
	}
}

func TestNewSearchReplacesPendingSelection(t *testing.T) {
	ctx := context.Background()
	cat := narutoCatalog()
	cat.results["one piece"] = []mangadex.SearchResult{{DisplayName: "One Piece", SeriesID: "op"}}
	cat.chapters["op"] = mangadex.Chapter{ID: "c1100", Number: chapter.MustParse("1100"), Title: "Freedom"}
	store := newStore(t)
	wf := tracking.New(store, cat)

	if _, err := wf.Track(ctx, "alice", "naruto"); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if _, err := wf.Track(ctx, "alice", "one piece"); err != nil {
		t.Fatalf("Track: %v", err)
	}
	res, _ := wf.Select(ctx, "alice", 2)
	if res.Message != "❌ Invalid selection. Use a number from 1 to 1." {
		t.Fatalf("pending selection was merged rather than replaced: %+v", res)
	}
	res, err := wf.Select(ctx, "alice", 1)
	if err != nil || !res.OK || !store.Contains("op") {
		t.Fatalf("replacement selection not usable: %+v %v", res, err)
	}
}

func TestSessionsAreIsolatedPerUser(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	wf := tracking.New(store, narutoCatalog())

	if _, err := wf.Track(ctx, "alice", "naruto"); err != nil {
		t.Fatalf("Track: %v", err)
	}
	res, _ := wf.Select(ctx, "bob", 1)
	if res.OK {
		t.Fatal("bob consumed alice's selection")
	}
	res, _ = wf.Select(ctx, "alice", 1)
	if !res.OK {
		t.Fatalf("alice's selection lost: %+v", res)
	}
}

func TestPendingSelectionExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	wf := tracking.New(newStore(t), narutoCatalog(),
		tracking.WithSessionTTL(10*time.Minute),
		tracking.WithClock(func() time.Time { return now }))

	if _, err := wf.Track(ctx, "alice", "naruto"); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if sel, _ := wf.PendingSessions(); sel != 1 {
		t.Fatalf("expected 1 pending selection, got %d", sel)
	}
	now = now.Add(11 * time.Minute)
	res, _ := wf.Select(ctx, "alice", 1)
	if res.Message != "⚠️ No active search found. Use /track first." {
		t.Fatalf("expired selection still usable: %+v", res)
	}
	if sel, _ := wf.PendingSessions(); sel != 0 {
		t.Fatalf("expected expired selection pruned, got %d", sel)
	}
}

func seedNaruto(t *testing.T, store *watchlist.Store) {
	t.Helper()
	seeds := map[string]string{"n1": "Naruto", "n2": "Boruto: Naruto Next Generations", "b1": "Bleach"}
	for id, title := range seeds {
		if err := store.Add(id, watchlist.Series{
			Title:             title,
			LastChapterID:     "c-" + id,
			LastChapterNumber: chapter.MustParse("10"),
			LastChapterTitle:  "Ten",
			ReadChapters:      []string{},
		}); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
}

func TestUntrackMultipleMatchesNeedsConfirmation(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedNaruto(t, store)
	wf := tracking.New(store, narutoCatalog())

	res, err := wf.Untrack(ctx, "alice", "Naruto")
	if err != nil {
		t.Fatalf("Untrack: %v", err)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %+v", res)
	}
	if store.Len() != 3 {
		t.Fatal("ambiguous untrack removed something")
	}
	first := res.Candidates[0]

	res, err = wf.ConfirmRemove(ctx, "alice", 1)
	if err != nil {
		t.Fatalf("ConfirmRemove: %v", err)
	}
	if !res.OK || res.Message != fmt.Sprintf("✅ '%s' has been removed.", first.Title) {
		t.Fatalf("unexpected result %+v", res)
	}
	if store.Contains(first.SeriesID) {
		t.Fatal("first candidate still tracked")
	}
	if store.Len() != 2 {
		t.Fatalf("expected only one removal, have %d series", store.Len())
	}

	res, _ = wf.ConfirmRemove(ctx, "alice", 1)
	if res.Message != "⚠️ No pending removal selection. Use /untrack first." {
		t.Fatalf("removal session not consumed: %+v", res)
	}
}

func TestUntrackSingleMatchRemovesImmediately(t *testing.T) {
	store := newStore(t)
	seedNaruto(t, store)
	wf := tracking.New(store, narutoCatalog())

	res, err := wf.Untrack(context.Background(), "alice", "bleach")
	if err != nil {
		t.Fatalf("Untrack: %v", err)
	}
	if !res.OK || res.Message != "✅ 'Bleach' has been removed." {
		t.Fatalf("unexpected result %+v", res)
	}
	if store.Contains("b1") {
		t.Fatal("series still tracked")
	}
}

func TestUntrackNoMatchAndBadConfirmIndex(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedNaruto(t, store)
	wf := tracking.New(store, narutoCatalog())

	res, _ := wf.Untrack(ctx, "alice", "one piece")
	if res.OK || res.Message != "❌ No tracked series match 'one piece'." {
		t.Fatalf("unexpected result %+v", res)
	}

	if _, err := wf.Untrack(ctx, "alice", "naruto"); err != nil {
		t.Fatalf("Untrack: %v", err)
	}
	res, _ = wf.ConfirmRemove(ctx, "alice", 0)
	if res.OK || res.Message != "❌ Invalid selection. Use a number from 1 to 2." {
		t.Fatalf("unexpected result %+v", res)
	}
	res, _ = wf.ConfirmRemove(ctx, "alice", 2)
	if !res.OK || store.Len() != 2 {
		t.Fatalf("valid confirm after bad index failed: %+v", res)
	}
}

func TestUntrackMissClearsPendingRemoval(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedNaruto(t, store)
	wf := tracking.New(store, narutoCatalog())

	res, _ := wf.Untrack(ctx, "alice", "naruto")
	if len(res.Candidates) != 2 {
		t.Fatalf("expected two candidates, got %+v", res)
	}
	res, _ = wf.Untrack(ctx, "alice", "one piece")
	if res.OK {
		t.Fatalf("unexpected result %+v", res)
	}
	res, _ = wf.ConfirmRemove(ctx, "alice", 1)
	if res.OK || res.Message != "⚠️ No pending removal selection. Use /untrack first." {
		t.Fatalf("missed untrack should clear the pending removal: %+v", res)
	}
	if store.Len() != 3 {
		t.Fatalf("store changed: %d series", store.Len())
	}
}

func TestMarkReadAndInfoNameQueryOnMiss(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedNaruto(t, store)
	wf := tracking.New(store, narutoCatalog())

	res, _ := wf.MarkRead(ctx, "vagabond")
	if res.OK || !strings.Contains(res.Message, "'vagabond'") {
		t.Fatalf("mark-read miss should name the query: %+v", res)
	}
	if res = wf.Info(ctx, "berserk"); res.OK || !strings.Contains(res.Message, "'berserk'") {
		t.Fatalf("info miss should name the query: %+v", res)
	}
	if res = wf.SearchOnly(ctx, "nothing here"); res.OK || !strings.Contains(res.Message, "'nothing here'") {
		t.Fatalf("search miss should name the query: %+v", res)
	}
}

func TestListAndLatest(t *testing.T) {
	store := newStore(t)
	wf := tracking.New(store, narutoCatalog())

	if res := wf.List(); res.Message != "📭 No series are being tracked." {
		t.Fatalf("unexpected empty list %q", res.Message)
	}
	seedNaruto(t, store)

	res := wf.List()
	if len(res.Entries) != 3 || !strings.HasPrefix(res.Message, "**📘 Currently Tracked Series:**\n• **Bleach** – Chapter 10: Ten") {
		t.Fatalf("unexpected list %+v", res)
	}

	res = wf.Latest("bleach")
	want := "📖 **Bleach**\n• Chapter 10: Ten\n🔗 https://mangadex.org/chapter/c-b1"
	if res.Message != want {
		t.Fatalf("latest = %q, want %q", res.Message, want)
	}
	if res = wf.Latest("dragon"); res.Message != "❌ No tracked series found matching 'dragon'." {
		t.Fatalf("unexpected miss %q", res.Message)
	}
}

func TestLatestLinksScraperChapter(t *testing.T) {
	store := newStore(t)
	if err := store.Add("s1", watchlist.Series{
		Title:             "Scanned",
		LastChapterNumber: chapter.MustParse("12"),
		LastChapterURL:    "https://scans.example/read/12",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	res := tracking.New(store, narutoCatalog()).Latest("scan")
	if !strings.HasSuffix(res.Message, "🔗 https://scans.example/read/12") {
		t.Fatalf("expected scraper link, got %q", res.Message)
	}
}

func TestSearchOnlyAndInfo(t *testing.T) {
	ctx := context.Background()
	cat := narutoCatalog()
	cat.info = map[string]mangadex.Info{
		"n2": {Status: "ongoing", Tags: []string{"Action", "Ninja"}, Description: "Next generation."},
	}
	store := newStore(t)
	seedNaruto(t, store)
	wf := tracking.New(store, cat)

	res := wf.SearchOnly(ctx, "naruto")
	if !strings.HasPrefix(res.Message, "🔎 **MangaDex Search Results:**\n[1] Naruto\n[2]") {
		t.Fatalf("unexpected search output %q", res.Message)
	}
	if sel, _ := wf.PendingSessions(); sel != 0 {
		t.Fatal("search-only must not create a selection")
	}

	// Boruto sorts before Naruto, so it is the first title match.
	res = wf.Info(ctx, "Naruto")
	want := "📘 **Boruto: Naruto Next Generations**\n• Status: ongoing\n• Genres: Action, Ninja\n• Description: Next generation...."
	if !res.OK || res.Message != want || res.SeriesID != "n2" {
		t.Fatalf("info = %+v", res)
	}
}

func TestInfoTruncatesDescription(t *testing.T) {
	cat := narutoCatalog()
	cat.info = map[string]mangadex.Info{
		"b1": {Status: "ongoing", Tags: []string{"Action"}, Description: strings.Repeat("y", 500)},
	}
	store := newStore(t)
	seedNaruto(t, store)

	res := tracking.New(store, cat).Info(context.Background(), "bleach")
	want := "📘 **Bleach**\n• Status: ongoing\n• Genres: Action\n• Description: " + strings.Repeat("y", 400) + "..."
	if res.Message != want {
		t.Fatalf("info = %q", res.Message)
	}
}

func TestInfoFailureIsReported(t *testing.T) {
	store := newStore(t)
	seedNaruto(t, store)
	res := tracking.New(store, narutoCatalog()).Info(context.Background(), "bleach")
	if res.OK || !strings.HasPrefix(res.Message, "❌ Could not fetch detailed info.") || res.Kind != "source_unavailable" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedNaruto(t, store)
	wf := tracking.New(store, narutoCatalog())

	res, err := wf.MarkRead(ctx, "bleach")
	if err != nil || !res.OK {
		t.Fatalf("MarkRead: %+v %v", res, err)
	}
	res, err = wf.MarkRead(ctx, "bleach")
	if err != nil || !res.OK || !strings.Contains(res.Message, "already marked") {
		t.Fatalf("second MarkRead: %+v %v", res, err)
	}
	stored, _ := store.Get("b1")
	if len(stored.ReadChapters) != 1 || stored.ReadChapters[0] != "c-b1" {
		t.Fatalf("unexpected read chapters %v", stored.ReadChapters)
	}
}

func TestSetAndClearScraper(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedNaruto(t, store)
	wf := tracking.New(store, narutoCatalog())

	res, err := wf.SetScraper(ctx, "bleach", watchlist.ScraperConfig{CheckURL: "ftp://nope", CheckSelector: "a", ReadURLTemplate: "x/{}"})
	if err != nil || res.OK || res.Kind != "user_input" {
		t.Fatalf("invalid config accepted: %+v %v", res, err)
	}

	cfg := watchlist.ScraperConfig{
		CheckURL:        "https://scans.example/bleach",
		CheckSelector:   ".chapter-list a",
		ReadURLTemplate: "https://scans.example/bleach/{}",
	}
	res, err = wf.SetScraper(ctx, "bleach", cfg)
	if err != nil || !res.OK {
		t.Fatalf("SetScraper: %+v %v", res, err)
	}
	stored, _ := store.Get("b1")
	if stored.Scraper == nil || *stored.Scraper != cfg {
		t.Fatalf("scraper not stored: %+v", stored.Scraper)
	}

	res, err = wf.ClearScraper(ctx, "bleach")
	if err != nil || !res.OK {
		t.Fatalf("ClearScraper: %+v %v", res, err)
	}
	stored, _ = store.Get("b1")
	if stored.Scraper != nil {
		t.Fatal("scraper not cleared")
	}
	res, _ = wf.ClearScraper(ctx, "bleach")
	if !strings.Contains(res.Message, "no secondary source") {
		t.Fatalf("unexpected message %q", res.Message)
	}
}

func TestTrackSourceFailureIsReported(t *testing.T) {
	cat := narutoCatalog()
	cat.searchErr = services.Wrap(services.ErrSourceUnavailable, "mangadex", "search", "/manga returned status 500", nil)
	res, err := tracking.New(newStore(t), cat).Track(context.Background(), "alice", "naruto")
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if res.OK || !strings.Contains(res.Message, "500") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestParseIndex(t *testing.T) {
	if n, err := tracking.ParseIndex(" 3 "); err != nil || n != 3 {
		t.Fatalf("ParseIndex = %d, %v", n, err)
	}
	if _, err := tracking.ParseIndex("three"); err == nil {
		t.Fatal("expected error")
	}
}
