package testsupport

import (
	"path/filepath"
	"testing"

	"rommedia/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Credentials are filled with placeholders and pacing is fast enough that
// tests never wait on the rate limiter.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.MediaDir = filepath.Join(base, "media")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.ScreenScraper.DevID = "test-dev"
	cfgVal.ScreenScraper.DevPassword = "test-devpass"
	cfgVal.ScreenScraper.Username = "tester"
	cfgVal.ScreenScraper.Password = "secret"
	cfgVal.Scrape.RateLimitPerSecond = 1000
	cfgVal.Scrape.RetryBaseDelayMS = 1
	cfgVal.Scrape.RetryMaxDelayMS = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithBaseURL points the ScreenScraper client at a test server.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.ScreenScraper.BaseURL = url
	}
}

// WithConcurrency sets the worker pool size.
func WithConcurrency(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scrape.MaxConcurrency = n
	}
}

// WithKinds restricts the downloaded asset kinds.
func WithKinds(kinds ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Media.Kinds = kinds
	}
}

// WithBlobURL publishes media to a bucket instead of media_dir.
func WithBlobURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Media.BlobURL = url
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CacheDir)
}
