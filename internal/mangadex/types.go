package mangadex

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"mangawatch/internal/chapter"
	"mangawatch/internal/textutil"
)

// UnknownTitle is shown for entries that carry no usable title.
const UnknownTitle = "Unknown Title"

// SearchResult is one catalog match for a title search.
type SearchResult struct {
	DisplayName string          `json:"display_name"`
	SeriesID    string          `json:"series_id"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// Chapter is the latest translated chapter of a series.
type Chapter struct {
	ID          string         `json:"id"`
	Number      chapter.Number `json:"number"`
	Title       string         `json:"title"`
	PublishedAt time.Time      `json:"published_at"`
}

// Info holds descriptive series metadata.
type Info struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

type localized map[string]string

// pick returns the value for lang, then English, then the first non-empty
// value in key order.
func (l localized) pick(lang string) string {
	if v := strings.TrimSpace(l[lang]); v != "" {
		return v
	}
	if v := strings.TrimSpace(l["en"]); v != "" {
		return v
	}
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if v := strings.TrimSpace(l[k]); v != "" {
			return v
		}
	}
	return ""
}

type relationship struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes *struct {
		FileName string `json:"fileName"`
	} `json:"attributes,omitempty"`
}

type mangaEntry struct {
	ID         string `json:"id"`
	Attributes struct {
		Title       localized   `json:"title"`
		AltTitles   []localized `json:"altTitles"`
		Description localized   `json:"description"`
		Status      string      `json:"status"`
		Tags        []struct {
			Attributes struct {
				Name localized `json:"name"`
			} `json:"attributes"`
		} `json:"tags"`
	} `json:"attributes"`
	Relationships []relationship `json:"relationships"`
}

func (m mangaEntry) displayName(lang string) string {
	candidates := []string{m.Attributes.Title.pick(lang)}
	for _, alt := range m.Attributes.AltTitles {
		candidates = append(candidates, alt[lang])
	}
	if name := textutil.FirstNonEmpty(candidates...); name != "" {
		return name
	}
	return UnknownTitle
}

func (m mangaEntry) coverFileName() string {
	for _, rel := range m.Relationships {
		if rel.Type == "cover_art" && rel.Attributes != nil {
			if name := strings.TrimSpace(rel.Attributes.FileName); name != "" {
				return name
			}
		}
	}
	return ""
}

func (m mangaEntry) toInfo(lang string) Info {
	tags := make([]string, 0, len(m.Attributes.Tags))
	for _, tag := range m.Attributes.Tags {
		if name := tag.Attributes.Name.pick(lang); name != "" {
			tags = append(tags, name)
		}
	}
	return Info{
		ID:          m.ID,
		Title:       m.displayName(lang),
		Status:      m.Attributes.Status,
		Tags:        tags,
		Description: m.Attributes.Description.pick(lang),
	}
}

type chapterEntry struct {
	ID         string `json:"id"`
	Attributes struct {
		Chapter     *string `json:"chapter"`
		Title       *string `json:"title"`
		PublishAt   string  `json:"publishAt"`
		ReadableAt  string  `json:"readableAt"`
		Language    string  `json:"translatedLanguage"`
		ExternalURL *string `json:"externalUrl"`
	} `json:"attributes"`
}

func (c chapterEntry) toChapter() Chapter {
	out := Chapter{ID: c.ID}
	if c.Attributes.Chapter != nil {
		out.Number, _ = chapter.Parse(*c.Attributes.Chapter)
	}
	if c.Attributes.Title != nil {
		out.Title = strings.TrimSpace(*c.Attributes.Title)
	}
	for _, raw := range []string{c.Attributes.PublishAt, c.Attributes.ReadableAt} {
		if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(raw)); err == nil {
			out.PublishedAt = ts.UTC()
			break
		}
	}
	return out
}

type apiError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

type envelope struct {
	Result string     `json:"result"`
	Errors []apiError `json:"errors"`
}

func (e envelope) errorDetail() string {
	parts := make([]string, 0, len(e.Errors))
	for _, apiErr := range e.Errors {
		if msg := textutil.FirstNonEmpty(apiErr.Detail, apiErr.Title); msg != "" {
			parts = append(parts, msg)
		}
	}
	return strings.Join(parts, "; ")
}
