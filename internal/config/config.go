package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CacheDir string `toml:"cache_dir"`
	MediaDir string `toml:"media_dir"`
	LogDir   string `toml:"log_dir"`
}

// ScreenScraper contains API credentials and endpoint settings.
type ScreenScraper struct {
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	DevID          string `toml:"dev_id"`
	DevPassword    string `toml:"dev_password"`
	Software       string `toml:"software"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Scrape contains pipeline concurrency, retry, and quota settings.
type Scrape struct {
	MaxConcurrency     int     `toml:"max_concurrency"`
	MinConfidence      float64 `toml:"min_confidence"`
	RetryLimit         int     `toml:"retry_limit"`
	RateLimitPerSecond float64 `toml:"rate_limit_per_second"`
	DailyQuota         int     `toml:"daily_quota"`
	RetryBaseDelayMS   int     `toml:"retry_base_delay_ms"`
	RetryMaxDelayMS    int     `toml:"retry_max_delay_ms"`
}

// Match contains the disambiguation weights.
type Match struct {
	SystemWeight     float64 `toml:"system_weight"`
	ConfidenceWeight float64 `toml:"confidence_weight"`
	AssetWeight      float64 `toml:"asset_weight"`
}

// Media selects which assets are downloaded and where they are published.
type Media struct {
	Kinds   []string `toml:"kinds"`
	Regions []string `toml:"regions"`
	Resume  bool     `toml:"resume"`
	// StallTimeoutSeconds aborts a transfer that receives no bytes for this long.
	StallTimeoutSeconds int `toml:"stall_timeout_seconds"`
	// BlobURL switches the sink to gocloud.dev/blob (file://, s3://, gs://, mem://).
	BlobURL string `toml:"blob_url"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for rommedia.
//
// Configuration sections:
//   - Paths: cache database, media, and log directories
//   - ScreenScraper: API credentials and endpoint
//   - Scrape: worker pool, retries, rate and quota limits
//   - Match: candidate scoring weights
//   - Media: asset kinds, region preference, and sink selection
//   - Systems: ROM directory name to ScreenScraper system ID overrides
//   - Logging: log format and level
type Config struct {
	Paths         Paths          `toml:"paths"`
	ScreenScraper ScreenScraper  `toml:"screenscraper"`
	Scrape        Scrape         `toml:"scrape"`
	Match         Match          `toml:"match"`
	Media         Media          `toml:"media"`
	Systems       map[string]int `toml:"systems"`
	Logging       Logging        `toml:"logging"`
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

	projectPath, err := filepath.Abs("rommedia.toml")
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

// EnsureDirectories creates the cache and log directories. The media
// directory is only created when assets are published to the local filesystem.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.CacheDir, c.Paths.LogDir}
	if strings.TrimSpace(c.Media.BlobURL) == "" {
		dirs = append(dirs, c.Paths.MediaDir)
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

// CacheDBPath returns the SQLite database location inside the cache directory.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.Paths.CacheDir, "cache.db")
}

// RequireCredentials reports whether the ScreenScraper developer credentials are
// present. Commands that never touch the network skip this check.
func (c *Config) RequireCredentials() error {
	if strings.TrimSpace(c.ScreenScraper.DevID) == "" || strings.TrimSpace(c.ScreenScraper.DevPassword) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("screenscraper.dev_id and screenscraper.dev_password are required. Set SCREENSCRAPER_DEVID/SCREENSCRAPER_DEVPASSWORD or edit %s (create with 'rommedia config init')", defaultPath)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	expanded, err := homedir.Expand(pathValue)
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	cleaned := filepath.Clean(expanded)
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
