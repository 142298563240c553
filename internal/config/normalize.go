package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScreenScraper()
	c.normalizeMedia()
	c.normalizeSystems()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

// Environment values win over the file so credentials can stay out of it.
func (c *Config) normalizeScreenScraper() {
	ss := &c.ScreenScraper
	overrides := []struct {
		env    string
		target *string
	}{
		{"SCREENSCRAPER_USER", &ss.Username},
		{"SCREENSCRAPER_PASSWORD", &ss.Password},
		{"SCREENSCRAPER_DEVID", &ss.DevID},
		{"SCREENSCRAPER_DEVPASSWORD", &ss.DevPassword},
	}
	for _, o := range overrides {
		if value, ok := os.LookupEnv(o.env); ok && strings.TrimSpace(value) != "" {
			*o.target = value
		}
		*o.target = strings.TrimSpace(*o.target)
	}
	ss.Software = strings.TrimSpace(ss.Software)
	if ss.Software == "" {
		ss.Software = defaultSoftware
	}
	ss.BaseURL = strings.TrimRight(strings.TrimSpace(ss.BaseURL), "/")
	if ss.BaseURL == "" {
		ss.BaseURL = defaultScreenScraperURL
	}
}

func (c *Config) normalizeMedia() {
	c.Media.Kinds = lowerUnique(c.Media.Kinds)
	c.Media.Regions = lowerUnique(c.Media.Regions)
	c.Media.BlobURL = strings.TrimSpace(c.Media.BlobURL)
}

func (c *Config) normalizeSystems() {
	if len(c.Systems) == 0 {
		return
	}
	normalized := make(map[string]int, len(c.Systems))
	for name, id := range c.Systems {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		normalized[key] = id
	}
	c.Systems = normalized
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lowerUnique(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
