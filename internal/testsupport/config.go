package testsupport

import (
	"path/filepath"
	"testing"

	"mangawatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options. Notifications
// stay disabled and the MangaDex base URL points at an unroutable address
// until a test overrides it.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.WatchlistFile = filepath.Join(base, "state", "observed_series.json")
	cfgVal.Paths.HistoryDB = filepath.Join(base, "state", "history.db")
	cfgVal.MangaDex.BaseURL = "http://127.0.0.1:1"
	cfgVal.MangaDex.RequestTimeout = 2
	cfgVal.Scraper.RequestTimeout = 2
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMangaDex points the catalog client at baseURL, typically a FakeMangaDex.
func WithMangaDex(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.MangaDex.BaseURL = baseURL
	}
}

// WithNtfyTopic enables notifications against topic.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithoutHistory disables the SQLite history log.
func WithoutHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = false
	}
}

// WithoutScraper disables secondary-source checks.
func WithoutScraper() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scraper.Enabled = false
	}
}

// WithPollInterval overrides the poll cadence in seconds.
func WithPollInterval(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Poll.IntervalSeconds = seconds
	}
}

// WithRecheckCooldown overrides the manual recheck cooldown in seconds.
func WithRecheckCooldown(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Poll.RecheckCooldownSeconds = seconds
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
