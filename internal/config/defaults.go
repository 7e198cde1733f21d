package config

const (
	defaultConfigPath         = "~/.config/mangawatch/config.toml"
	defaultStateDir           = "~/.local/share/mangawatch"
	defaultLogDir             = "~/.local/share/mangawatch/logs"
	defaultWatchlistName      = "observed_series.json"
	defaultHistoryName        = "history.db"
	defaultMangaDexBaseURL    = "https://api.mangadex.org"
	defaultMangaDexCoverURL   = "https://uploads.mangadex.org/covers"
	defaultMangaDexReadURL    = "https://mangadex.org/chapter"
	defaultMangaDexLanguage   = "en"
	defaultSearchLimit        = 10
	defaultMangaDexTimeout    = 15
	defaultScraperTimeout     = 10
	defaultScraperUserAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultScraperAcceptLang  = "en-US,en;q=0.9"
	defaultPollInterval       = 300
	minPollInterval           = 10
	defaultRecheckCooldown    = 30
	defaultSessionTTLMinutes  = 15
	defaultNotifyTimeout      = 10
	defaultNotifyPriority     = "default"
	defaultHistoryRetention   = 90
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	maxMangaDexSearchLimit    = 100
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		MangaDex: MangaDex{
			BaseURL:        defaultMangaDexBaseURL,
			CoverBaseURL:   defaultMangaDexCoverURL,
			ReadBaseURL:    defaultMangaDexReadURL,
			Language:       defaultMangaDexLanguage,
			SearchLimit:    defaultSearchLimit,
			RequestTimeout: defaultMangaDexTimeout,
		},
		Scraper: Scraper{
			Enabled:        true,
			UserAgent:      defaultScraperUserAgent,
			AcceptLanguage: defaultScraperAcceptLang,
			RequestTimeout: defaultScraperTimeout,
		},
		Poll: Poll{
			IntervalSeconds:        defaultPollInterval,
			RecheckCooldownSeconds: defaultRecheckCooldown,
		},
		Tracking: Tracking{
			SessionTTLMinutes: defaultSessionTTLMinutes,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Priority:       defaultNotifyPriority,
			AttachCover:    true,
		},
		History: History{
			Enabled:       true,
			RetentionDays: defaultHistoryRetention,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
