package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMangaDex()
	c.normalizeScraper()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WatchlistFile) == "" {
		c.Paths.WatchlistFile = filepath.Join(c.Paths.StateDir, defaultWatchlistName)
	}
	if c.Paths.WatchlistFile, err = expandPath(c.Paths.WatchlistFile); err != nil {
		return fmt.Errorf("paths.watchlist_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.HistoryDB) == "" {
		c.Paths.HistoryDB = filepath.Join(c.Paths.StateDir, defaultHistoryName)
	}
	if c.Paths.HistoryDB, err = expandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeMangaDex() {
	if value, ok := os.LookupEnv("MANGADEX_BASE_URL"); ok && strings.TrimSpace(value) != "" {
		c.MangaDex.BaseURL = value
	}
	c.MangaDex.BaseURL = strings.TrimRight(strings.TrimSpace(c.MangaDex.BaseURL), "/")
	if c.MangaDex.BaseURL == "" {
		c.MangaDex.BaseURL = defaultMangaDexBaseURL
	}
	c.MangaDex.CoverBaseURL = strings.TrimRight(strings.TrimSpace(c.MangaDex.CoverBaseURL), "/")
	if c.MangaDex.CoverBaseURL == "" {
		c.MangaDex.CoverBaseURL = defaultMangaDexCoverURL
	}
	c.MangaDex.ReadBaseURL = strings.TrimRight(strings.TrimSpace(c.MangaDex.ReadBaseURL), "/")
	if c.MangaDex.ReadBaseURL == "" {
		c.MangaDex.ReadBaseURL = defaultMangaDexReadURL
	}
	c.MangaDex.Language = strings.ToLower(strings.TrimSpace(c.MangaDex.Language))
	if c.MangaDex.Language == "" {
		c.MangaDex.Language = defaultMangaDexLanguage
	}
	if c.MangaDex.SearchLimit <= 0 {
		c.MangaDex.SearchLimit = defaultSearchLimit
	}
}

func (c *Config) normalizeScraper() {
	c.Scraper.UserAgent = strings.TrimSpace(c.Scraper.UserAgent)
	if c.Scraper.UserAgent == "" {
		c.Scraper.UserAgent = defaultScraperUserAgent
	}
	c.Scraper.AcceptLanguage = strings.TrimSpace(c.Scraper.AcceptLanguage)
	if c.Scraper.AcceptLanguage == "" {
		c.Scraper.AcceptLanguage = defaultScraperAcceptLang
	}
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("MANGAWATCH_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.Priority = strings.ToLower(strings.TrimSpace(c.Notifications.Priority))
	if c.Notifications.Priority == "" {
		c.Notifications.Priority = defaultNotifyPriority
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
