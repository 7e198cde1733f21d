package testsupport

import (
	"encoding/json"
	"maps"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// FakeMangaDex serves the subset of the MangaDex API the client calls.
type FakeMangaDex struct {
	server   *httptest.Server
	mu       sync.Mutex
	series   map[string]string
	chapters map[string]fakeChapter
	failing  atomic.Bool
	requests atomic.Int64
}

type fakeChapter struct {
	id     string
	number string
	title  string
}

// NewFakeMangaDex starts a fake catalog server closed at test cleanup.
func NewFakeMangaDex(t testing.TB) *FakeMangaDex {
	t.Helper()

	f := &FakeMangaDex{
		series:   map[string]string{},
		chapters: map[string]fakeChapter{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
	mux.HandleFunc("GET /manga", f.handleSearch)
	mux.HandleFunc("GET /manga/{id}", f.handleManga)
	mux.HandleFunc("GET /chapter", f.handleChapter)
	f.server = httptest.NewServer(f.wrap(mux))
	t.Cleanup(f.server.Close)
	return f
}

// URL returns the base URL to configure the client with.
func (f *FakeMangaDex) URL() string { return f.server.URL }

// Requests reports how many catalog requests were served, excluding pings.
func (f *FakeMangaDex) Requests() int64 { return f.requests.Load() }

// AddSeries registers a series by id and English title.
func (f *FakeMangaDex) AddSeries(id, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.series[id] = title
}

// SetChapter sets the latest English chapter of a series.
func (f *FakeMangaDex) SetChapter(seriesID, chapterID, number, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chapters[seriesID] = fakeChapter{id: chapterID, number: number, title: title}
}

// SetFailing makes every non-ping request answer 503.
func (f *FakeMangaDex) SetFailing(failing bool) {
	f.failing.Store(failing)
}

func (f *FakeMangaDex) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping" {
			f.requests.Add(1)
			if f.failing.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"result":"error","errors":[{"status":503,"title":"unavailable","detail":"maintenance"}]}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeMangaDex) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(r.URL.Query().Get("title"))
	f.mu.Lock()
	data := []any{}
	for _, id := range slices.Sorted(maps.Keys(f.series)) {
		if title := f.series[id]; strings.Contains(strings.ToLower(title), query) {
			data = append(data, mangaJSON(id, title))
		}
	}
	f.mu.Unlock()
	writeJSON(w, map[string]any{"result": "ok", "data": data})
}

func (f *FakeMangaDex) handleManga(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.mu.Lock()
	title, ok := f.series[id]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]any{"result": "error", "errors": []any{map[string]any{"status": 404, "title": "not_found", "detail": "manga not found"}}})
		return
	}
	writeJSON(w, map[string]any{"result": "ok", "data": mangaJSON(id, title)})
}

func (f *FakeMangaDex) handleChapter(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	ch, ok := f.chapters[r.URL.Query().Get("manga")]
	f.mu.Unlock()
	data := []any{}
	if ok {
		data = append(data, map[string]any{
			"id": ch.id,
			"attributes": map[string]any{
				"chapter":            ch.number,
				"title":              ch.title,
				"publishAt":          "2024-05-01T00:00:00+00:00",
				"readableAt":         "2024-05-01T00:00:00+00:00",
				"translatedLanguage": "en",
			},
		})
	}
	writeJSON(w, map[string]any{"result": "ok", "data": data})
}

func mangaJSON(id, title string) map[string]any {
	return map[string]any{
		"id": id,
		"attributes": map[string]any{
			"title":       map[string]string{"en": title},
			"altTitles":   []any{},
			"description": map[string]string{"en": title + " description"},
			"status":      "ongoing",
			"tags":        []any{},
		},
		"relationships": []any{
			map[string]any{"id": "cover-" + id, "type": "cover_art", "attributes": map[string]string{"fileName": "cover.jpg"}},
		},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
