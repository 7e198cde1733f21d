package watchlist

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"mangawatch/internal/chapter"
)

// PlaceholderChapterTitle is recorded when upstream supplies no chapter title.
const PlaceholderChapterTitle = "No title"

// Series is one tracked work.
type Series struct {
	Title             string         `json:"title"`
	LastChapterID     string         `json:"last_chapter_id"`
	LastChapterNumber chapter.Number `json:"last_chapter_number"`
	LastChapterTitle  string         `json:"last_chapter_title"`
	// LastChapterURL is set when a scraper supplied the latest chapter and no
	// catalog chapter ID exists to link to.
	LastChapterURL string         `json:"last_chapter_url,omitempty"`
	CoverURL       string         `json:"cover_url"`
	ReadChapters   []string       `json:"read_chapters"`
	Scraper        *ScraperConfig `json:"optional_scraper,omitempty"`
}

// ScraperConfig describes a secondary page that exposes the latest chapter.
type ScraperConfig struct {
	CheckURL      string `json:"check_url"`
	CheckSelector string `json:"check_selector"`
	// ReadURLTemplate contains a "{}" placeholder replaced by the chapter number.
	ReadURLTemplate string `json:"read_url_template"`
}

// Validate checks that the configuration can be fetched and rendered.
func (c ScraperConfig) Validate() error {
	parsed, err := url.Parse(strings.TrimSpace(c.CheckURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("check_url must be an absolute http(s) URL, got %q", c.CheckURL)
	}
	if strings.TrimSpace(c.CheckSelector) == "" {
		return errors.New("check_selector is required")
	}
	if !strings.Contains(c.ReadURLTemplate, "{}") {
		return fmt.Errorf("read_url_template must contain {}, got %q", c.ReadURLTemplate)
	}
	return nil
}

// ReadURL renders the reading link for the given chapter number.
func (c ScraperConfig) ReadURL(n chapter.Number) string {
	if c.ReadURLTemplate == "" || !n.Valid() {
		return ""
	}
	return strings.ReplaceAll(c.ReadURLTemplate, "{}", n.Display(""))
}

// HasRead reports whether the chapter key was marked read.
func (s Series) HasRead(key string) bool {
	return slices.Contains(s.ReadChapters, key)
}

// CurrentChapterKey identifies the latest recorded chapter for read tracking:
// the catalog chapter ID when known, otherwise the chapter number.
func (s Series) CurrentChapterKey() string {
	if s.LastChapterID != "" {
		return s.LastChapterID
	}
	return s.LastChapterNumber.Display("")
}

// Unread reports whether the latest recorded chapter has not been marked read.
func (s Series) Unread() bool {
	key := s.CurrentChapterKey()
	return key != "" && !s.HasRead(key)
}

// ChapterTitle returns the stored chapter title or the placeholder.
func (s Series) ChapterTitle() string {
	if t := strings.TrimSpace(s.LastChapterTitle); t != "" {
		return t
	}
	return PlaceholderChapterTitle
}

func (s Series) clone() Series {
	out := s
	out.ReadChapters = append([]string{}, s.ReadChapters...)
	if s.Scraper != nil {
		cfg := *s.Scraper
		out.Scraper = &cfg
	}
	return out
}

// Entry pairs a series with its catalog identifier.
type Entry struct {
	ID     string `json:"id"`
	Series Series `json:"series"`
}
