package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains state and log locations.
type Paths struct {
	StateDir      string `toml:"state_dir"`
	LogDir        string `toml:"log_dir"`
	WatchlistFile string `toml:"watchlist_file"`
	HistoryDB     string `toml:"history_db"`
}

// MangaDex contains configuration for the catalog API.
type MangaDex struct {
	BaseURL        string `toml:"base_url"`
	CoverBaseURL   string `toml:"cover_base_url"`
	ReadBaseURL    string `toml:"read_base_url"`
	Language       string `toml:"language"`
	SearchLimit    int    `toml:"search_limit"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Scraper contains configuration for per-series secondary sources.
type Scraper struct {
	Enabled        bool   `toml:"enabled"`
	UserAgent      string `toml:"user_agent"`
	AcceptLanguage string `toml:"accept_language"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Poll contains configuration for the reconciliation loop.
type Poll struct {
	IntervalSeconds        int `toml:"interval_seconds"`
	RecheckCooldownSeconds int `toml:"recheck_cooldown_seconds"`
}

// Tracking contains configuration for interactive add/remove sessions.
type Tracking struct {
	SessionTTLMinutes int `toml:"session_ttl_minutes"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Priority       string `toml:"priority"`
	AttachCover    bool   `toml:"attach_cover"`
}

// History contains configuration for the delivered-update log.
type History struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mangawatch.
//
// Configuration sections by subsystem:
//   - Paths: state, log, watch list, and history locations
//   - MangaDex: catalog endpoints, language, and timeouts
//   - Scraper: secondary per-series page fetches
//   - Poll: reconciliation cadence and manual recheck cooldown
//   - Tracking: lifetime of pending search/removal selections
//   - Notifications: ntfy push notification settings
//   - History: sqlite log of delivered updates
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	MangaDex      MangaDex      `toml:"mangadex"`
	Scraper       Scraper       `toml:"scraper"`
	Poll          Poll          `toml:"poll"`
	Tracking      Tracking      `toml:"tracking"`
	Notifications Notifications `toml:"notifications"`
	History       History       `toml:"history"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mangawatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.Paths.LogDir, filepath.Dir(c.Paths.WatchlistFile)}
	if c.History.Enabled {
		dirs = append(dirs, filepath.Dir(c.Paths.HistoryDB))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the unix socket the daemon listens on.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "mangawatch.sock")
}

// LockPath returns the single-instance lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "mangawatch.lock")
}

// EnvFilePath returns the optional dotenv file loaded before the daemon starts.
func (c *Config) EnvFilePath() string {
	return filepath.Join(c.Paths.StateDir, ".env")
}

// PollInterval returns the reconciliation cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSeconds) * time.Second
}

// RecheckCooldown returns the minimum spacing between manual rechecks.
func (c *Config) RecheckCooldown() time.Duration {
	return time.Duration(c.Poll.RecheckCooldownSeconds) * time.Second
}

// SessionTTL returns how long a pending selection stays consumable.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Tracking.SessionTTLMinutes) * time.Minute
}

// CatalogTimeout returns the per-request timeout for MangaDex calls.
func (c *Config) CatalogTimeout() time.Duration {
	return secondsOr(c.MangaDex.RequestTimeout, defaultMangaDexTimeout)
}

// ScraperTimeout returns the per-request timeout for scraper fetches.
func (c *Config) ScraperTimeout() time.Duration {
	return secondsOr(c.Scraper.RequestTimeout, defaultScraperTimeout)
}

// HistoryRetention returns how long history rows are kept. Zero keeps them
// forever.
func (c *Config) HistoryRetention() time.Duration {
	if c.History.RetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}

// NotificationTimeout returns the per-request timeout for ntfy posts.
func (c *Config) NotificationTimeout() time.Duration {
	return secondsOr(c.Notifications.RequestTimeout, defaultNotifyTimeout)
}

func secondsOr(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
