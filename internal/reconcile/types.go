package reconcile

import (
	"time"

	"mangawatch/internal/chapter"
)

// Source names where a winning chapter came from.
type Source string

const (
	SourceCatalog Source = "catalog"
	SourceScraper Source = "scraper"
)

// Update is the notification payload for one advanced series. It carries
// everything needed to render a message without another lookup.
type Update struct {
	SeriesID      string         `json:"series_id"`
	SeriesTitle   string         `json:"series_title"`
	ChapterID     string         `json:"chapter_id,omitempty"`
	ChapterNumber chapter.Number `json:"chapter_number"`
	Previous      chapter.Number `json:"previous_number"`
	ChapterTitle  string         `json:"chapter_title"`
	ReadURL       string         `json:"read_url,omitempty"`
	CoverURL      string         `json:"cover_url,omitempty"`
	Source        Source         `json:"source"`
}

// Skip records a series that was not evaluated or not committed this cycle.
type Skip struct {
	SeriesID string `json:"series_id"`
	Title    string `json:"title"`
	Reason   string `json:"reason"`
}

// Report summarizes one reconciliation cycle.
type Report struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Checked    int       `json:"checked"`
	Updates    []Update  `json:"updates"`
	// Skipped lists series left untouched because the catalog was unavailable.
	Skipped []Skip `json:"skipped"`
	// Failed lists series whose update could not be persisted.
	Failed []Skip `json:"failed"`
}

// Duration returns how long the cycle ran.
func (r Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
