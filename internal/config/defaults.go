package config

const (
	defaultConfigPath         = "~/.config/rommedia/config.toml"
	defaultCacheDir           = "~/.cache/rommedia"
	defaultMediaDir           = "~/.local/share/rommedia/media"
	defaultLogDir             = "~/.local/share/rommedia/logs"
	defaultScreenScraperURL   = "https://api.screenscraper.fr/api2"
	defaultSoftware           = "rommedia"
	defaultTimeoutSeconds     = 30
	defaultStallTimeoutSecs   = 60
	defaultMaxConcurrency     = 4
	defaultRetryLimit         = 3
	defaultRateLimitPerSecond = 1.0
	defaultDailyQuota         = 20000
	defaultRetryBaseDelayMS   = 500
	defaultRetryMaxDelayMS    = 30000
	defaultSystemWeight       = 10
	defaultConfidenceWeight   = 1
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir: defaultCacheDir,
			MediaDir: defaultMediaDir,
			LogDir:   defaultLogDir,
		},
		ScreenScraper: ScreenScraper{
			Software:       defaultSoftware,
			BaseURL:        defaultScreenScraperURL,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Scrape: Scrape{
			MaxConcurrency:     defaultMaxConcurrency,
			RetryLimit:         defaultRetryLimit,
			RateLimitPerSecond: defaultRateLimitPerSecond,
			DailyQuota:         defaultDailyQuota,
			RetryBaseDelayMS:   defaultRetryBaseDelayMS,
			RetryMaxDelayMS:    defaultRetryMaxDelayMS,
		},
		Match: Match{
			SystemWeight:     defaultSystemWeight,
			ConfidenceWeight: defaultConfidenceWeight,
		},
		Media: Media{
			Kinds:   []string{"boxart", "screenshot", "wheel"},
			Regions: []string{"us", "wor", "eu", "ss", "jp"},
			Resume:  true,

			StallTimeoutSeconds: defaultStallTimeoutSecs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
