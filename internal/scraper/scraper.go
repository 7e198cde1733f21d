package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"mangawatch/internal/chapter"
	"mangawatch/internal/services"
	"mangawatch/internal/textutil"
	"mangawatch/internal/watchlist"
)

const maxPageBytes = 4 << 20

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Result is the chapter a scraper page currently advertises.
type Result struct {
	Number  chapter.Number
	ReadURL string
}

// HTTPStatusError reports a non-2xx response from the configured page.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// Client fetches scraper pages.
type Client struct {
	httpClient     *http.Client
	userAgent      string
	acceptLanguage string
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

// WithHeaders sets the browser-like request headers sent to every page.
func WithHeaders(userAgent, acceptLanguage string) Option {
	return func(c *Client) {
		if ua := strings.TrimSpace(userAgent); ua != "" {
			c.userAgent = ua
		}
		if lang := strings.TrimSpace(acceptLanguage); lang != "" {
			c.acceptLanguage = lang
		}
	}
}

// New creates a scraper client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		userAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		acceptLanguage: "en-US,en;q=0.9",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Latest fetches the configured page and returns the advertised chapter.
func (c *Client) Latest(ctx context.Context, cfg watchlist.ScraperConfig) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, services.Wrap(services.ErrSourceUnavailable, "scraper", "config", "invalid scraper config", err)
	}
	page, err := c.Fetch(ctx, cfg.CheckURL)
	if err != nil {
		return Result{}, services.Wrap(services.ErrSourceUnavailable, "scraper", "fetch", cfg.CheckURL, err)
	}
	number, err := Parse(page, cfg.CheckSelector)
	if err != nil {
		return Result{}, services.Wrap(services.ErrSourceUnavailable, "scraper", "parse", cfg.CheckURL, err)
	}
	return Result{Number: number, ReadURL: cfg.ReadURL(number)}, nil
}

// Fetch downloads pageURL.
func (c *Client) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", c.acceptLanguage)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &HTTPStatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
}

// Parse selects the first element matching selector and extracts the first
// decimal number from its text.
func Parse(page []byte, selector string) (chapter.Number, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return chapter.None(), fmt.Errorf("parse html: %w", err)
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return chapter.None(), fmt.Errorf("no element found for selector %q", selector)
	}
	text := textutil.NormalizeSpace(sel.Text())
	match := numberPattern.FindString(text)
	if match == "" {
		return chapter.None(), fmt.Errorf("could not extract chapter number from %q", text)
	}
	number, ok := chapter.Parse(match)
	if !ok {
		return chapter.None(), fmt.Errorf("invalid chapter number %q", match)
	}
	return number.Canonical(), nil
}
