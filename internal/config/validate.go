package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var knownMediaKinds = map[string]struct{}{
	"boxart":      {},
	"box3d":       {},
	"screenshot":  {},
	"titlescreen": {},
	"wheel":       {},
	"fanart":      {},
	"video":       {},
	"manual":      {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScreenScraper(); err != nil {
		return err
	}
	if err := c.validateScrape(); err != nil {
		return err
	}
	if err := c.validateMatch(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateSystems(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScreenScraper() error {
	parsed, err := url.Parse(c.ScreenScraper.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("screenscraper.base_url %q is not an absolute URL", c.ScreenScraper.BaseURL)
	}
	if c.ScreenScraper.TimeoutSeconds <= 0 {
		return errors.New("screenscraper.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateScrape() error {
	if err := ensurePositiveMap(map[string]int{
		"scrape.max_concurrency":     c.Scrape.MaxConcurrency,
		"scrape.retry_limit":         c.Scrape.RetryLimit,
		"scrape.daily_quota":         c.Scrape.DailyQuota,
		"scrape.retry_base_delay_ms": c.Scrape.RetryBaseDelayMS,
		"scrape.retry_max_delay_ms":  c.Scrape.RetryMaxDelayMS,
	}); err != nil {
		return err
	}
	if c.Scrape.RateLimitPerSecond <= 0 {
		return errors.New("scrape.rate_limit_per_second must be positive")
	}
	if c.Scrape.MinConfidence < 0 || c.Scrape.MinConfidence > 1 {
		return errors.New("scrape.min_confidence must be between 0 and 1")
	}
	if c.Scrape.RetryMaxDelayMS < c.Scrape.RetryBaseDelayMS {
		return errors.New("scrape.retry_max_delay_ms must be >= scrape.retry_base_delay_ms")
	}
	return nil
}

func (c *Config) validateMatch() error {
	if c.Match.SystemWeight < 0 || c.Match.ConfidenceWeight < 0 || c.Match.AssetWeight < 0 {
		return errors.New("match weights must be >= 0")
	}
	return nil
}

func (c *Config) validateMedia() error {
	for _, kind := range c.Media.Kinds {
		if _, ok := knownMediaKinds[kind]; !ok {
			return fmt.Errorf("media.kinds: unknown kind %q", kind)
		}
	}
	if c.Media.StallTimeoutSeconds <= 0 {
		return errors.New("media.stall_timeout_seconds must be positive")
	}
	if c.Media.BlobURL != "" && !strings.Contains(c.Media.BlobURL, "://") {
		return fmt.Errorf("media.blob_url %q must include a scheme such as file:// or s3://", c.Media.BlobURL)
	}
	return nil
}

func (c *Config) validateSystems() error {
	for name, id := range c.Systems {
		if id <= 0 {
			return fmt.Errorf("systems.%s must be a positive ScreenScraper system ID", name)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
