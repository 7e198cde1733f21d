package mangadex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mangawatch/internal/services"
)

const userAgent = "mangawatch/0.1 (+https://github.com/mangawatch/mangawatch)"

// Client provides access to the MangaDex API.
type Client struct {
	baseURL      string
	coverBaseURL string
	readBaseURL  string
	language     string
	httpClient   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithCoverBaseURL overrides the cover image host.
func WithCoverBaseURL(base string) Option {
	return func(c *Client) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			c.coverBaseURL = base
		}
	}
}

// WithReadBaseURL overrides the chapter reader host used by ChapterURL.
func WithReadBaseURL(base string) Option {
	return func(c *Client) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			c.readBaseURL = base
		}
	}
}

// WithLanguage selects the translated language filter (default "en").
func WithLanguage(lang string) Option {
	return func(c *Client) {
		if lang = strings.ToLower(strings.TrimSpace(lang)); lang != "" {
			c.language = lang
		}
	}
}

// New creates a MangaDex client.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("mangadex base url required")
	}
	client := &Client{
		baseURL:      baseURL,
		coverBaseURL: "https://uploads.mangadex.org/covers",
		readBaseURL:  "https://mangadex.org/chapter",
		language:     "en",
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ChapterURL returns the reader link for a catalog chapter ID.
func (c *Client) ChapterURL(chapterID string) string {
	chapterID = strings.TrimSpace(chapterID)
	if chapterID == "" {
		return ""
	}
	return c.readBaseURL + "/" + url.PathEscape(chapterID)
}

// Search finds series whose title matches query and that have chapters in the
// configured language. Zero matches is an empty slice, not an error.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrUserInput, "mangadex", "search", "query must not be empty", nil)
	}
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{}
	params.Set("title", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("availableTranslatedLanguage[]", c.language)

	var payload struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := c.get(ctx, "search", "/manga", params, &payload); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(payload.Data))
	for _, raw := range payload.Data {
		var entry mangaEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, services.Wrap(services.ErrSourceUnavailable, "mangadex", "search", "decode entry", err)
		}
		if strings.TrimSpace(entry.ID) == "" {
			continue
		}
		results = append(results, SearchResult{
			DisplayName: entry.displayName(c.language),
			SeriesID:    entry.ID,
			Raw:         raw,
		})
	}
	return results, nil
}

// LatestChapter returns the most recently created chapter of the series in the
// configured language. A successful response with no chapters yields
// services.ErrNotFound.
func (c *Client) LatestChapter(ctx context.Context, seriesID string) (Chapter, error) {
	seriesID = strings.TrimSpace(seriesID)
	if seriesID == "" {
		return Chapter{}, services.Wrap(services.ErrUserInput, "mangadex", "latest chapter", "series id must not be empty", nil)
	}
	params := url.Values{}
	params.Set("manga", seriesID)
	params.Set("limit", "1")
	params.Set("order[createdAt]", "desc")
	params.Set("translatedLanguage[]", c.language)

	var payload struct {
		Data []chapterEntry `json:"data"`
	}
	if err := c.get(ctx, "latest chapter", "/chapter", params, &payload); err != nil {
		return Chapter{}, err
	}
	if len(payload.Data) == 0 {
		return Chapter{}, services.Wrap(services.ErrNotFound, "mangadex", "latest chapter",
			fmt.Sprintf("no %s chapters for series %s", c.language, seriesID), nil)
	}
	return payload.Data[0].toChapter(), nil
}

// CoverURL returns the cover image URL of a series, or "" when the series has
// no cover art.
func (c *Client) CoverURL(ctx context.Context, seriesID string) (string, error) {
	entry, err := c.manga(ctx, "cover", seriesID, true)
	if err != nil {
		return "", err
	}
	fileName := entry.coverFileName()
	if fileName == "" {
		return "", nil
	}
	return fmt.Sprintf("%s/%s/%s", c.coverBaseURL, url.PathEscape(seriesID), url.PathEscape(fileName)), nil
}

// Info returns descriptive metadata for a series.
func (c *Client) Info(ctx context.Context, seriesID string) (Info, error) {
	entry, err := c.manga(ctx, "info", seriesID, false)
	if err != nil {
		return Info{}, err
	}
	return entry.toInfo(c.language), nil
}

func (c *Client) manga(ctx context.Context, operation, seriesID string, withCover bool) (mangaEntry, error) {
	seriesID = strings.TrimSpace(seriesID)
	if seriesID == "" {
		return mangaEntry{}, services.Wrap(services.ErrUserInput, "mangadex", operation, "series id must not be empty", nil)
	}
	var params url.Values
	if withCover {
		params = url.Values{}
		params.Set("includes[]", "cover_art")
	}
	var payload struct {
		Data mangaEntry `json:"data"`
	}
	if err := c.get(ctx, operation, "/manga/"+url.PathEscape(seriesID), params, &payload); err != nil {
		return mangaEntry{}, err
	}
	return payload.Data, nil
}

func (c *Client) get(ctx context.Context, operation, path string, params url.Values, v any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return services.Wrap(services.ErrSourceUnavailable, "mangadex", operation, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrSourceUnavailable, "mangadex", operation, "request "+path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return services.Wrap(services.ErrSourceUnavailable, "mangadex", operation, "read body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env envelope
		_ = json.Unmarshal(body, &env)
		message := fmt.Sprintf("%s returned status %d", path, resp.StatusCode)
		if detail := env.errorDetail(); detail != "" {
			message += ": " + detail
		}
		return services.Wrap(services.ErrSourceUnavailable, "mangadex", operation, message, nil)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return services.Wrap(services.ErrSourceUnavailable, "mangadex", operation, "decode "+path, err)
	}
	return nil
}
