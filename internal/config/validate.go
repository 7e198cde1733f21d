package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMangaDex(); err != nil {
		return err
	}
	if err := c.validatePoll(); err != nil {
		return err
	}
	if err := c.validateTracking(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMangaDex() error {
	for _, field := range []struct {
		key   string
		value string
	}{
		{"mangadex.base_url", c.MangaDex.BaseURL},
		{"mangadex.cover_base_url", c.MangaDex.CoverBaseURL},
		{"mangadex.read_base_url", c.MangaDex.ReadBaseURL},
	} {
		if err := validateHTTPURL(field.key, field.value); err != nil {
			return err
		}
	}
	if c.MangaDex.SearchLimit > maxMangaDexSearchLimit {
		return fmt.Errorf("mangadex.search_limit must be between 1 and %d", maxMangaDexSearchLimit)
	}
	if c.MangaDex.RequestTimeout < 0 {
		return errors.New("mangadex.request_timeout must be positive")
	}
	if c.Scraper.RequestTimeout < 0 {
		return errors.New("scraper.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validatePoll() error {
	if c.Poll.IntervalSeconds < minPollInterval {
		return fmt.Errorf("poll.interval_seconds must be at least %d", minPollInterval)
	}
	if c.Poll.RecheckCooldownSeconds < 0 {
		return errors.New("poll.recheck_cooldown_seconds must be zero or positive")
	}
	if c.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be zero or positive")
	}
	return nil
}

func (c *Config) validateTracking() error {
	if c.Tracking.SessionTTLMinutes <= 0 {
		return errors.New("tracking.session_ttl_minutes must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic != "" {
		if err := validateHTTPURL("notifications.ntfy_topic", c.Notifications.NtfyTopic); err != nil {
			return err
		}
	}
	switch c.Notifications.Priority {
	case "min", "low", "default", "high", "max", "urgent":
	default:
		return fmt.Errorf("notifications.priority: unsupported value %q", c.Notifications.Priority)
	}
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func validateHTTPURL(key, value string) error {
	parsed, err := url.Parse(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", key, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s is missing a host", key)
	}
	return nil
}
