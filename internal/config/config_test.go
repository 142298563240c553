package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"rommedia/internal/config"
)

func useTempHome(t *testing.T) string {
	t.Helper()
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	homedir.Reset()
	t.Cleanup(homedir.Reset)
	return tempHome
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := useTempHome(t)
	chdirTemp(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "rommedia", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if want := filepath.Join(tempHome, ".cache", "rommedia"); cfg.Paths.CacheDir != want {
		t.Fatalf("unexpected cache dir: got %q want %q", cfg.Paths.CacheDir, want)
	}
	if want := filepath.Join(tempHome, ".cache", "rommedia", "cache.db"); cfg.CacheDBPath() != want {
		t.Fatalf("unexpected cache db path: %q", cfg.CacheDBPath())
	}
	if cfg.ScreenScraper.BaseURL != "https://api.screenscraper.fr/api2" {
		t.Fatalf("unexpected base url %q", cfg.ScreenScraper.BaseURL)
	}
	if cfg.Scrape.RetryLimit != 3 || cfg.Scrape.MaxConcurrency != 4 {
		t.Fatalf("unexpected scrape defaults: %+v", cfg.Scrape)
	}
	if cfg.Match.SystemWeight != 10 || cfg.Match.ConfidenceWeight != 1 || cfg.Match.AssetWeight != 0 {
		t.Fatalf("unexpected match weights: %+v", cfg.Match)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.CacheDir, cfg.Paths.MediaDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "rommedia.toml")

	type payload struct {
		ScreenScraper struct {
			DevID   string `toml:"dev_id"`
			BaseURL string `toml:"base_url"`
		} `toml:"screenscraper"`
		Scrape struct {
			MaxConcurrency int     `toml:"max_concurrency"`
			MinConfidence  float64 `toml:"min_confidence"`
		} `toml:"scrape"`
		Media struct {
			Kinds []string `toml:"kinds"`
		} `toml:"media"`
		Systems map[string]int `toml:"systems"`
	}
	custom := payload{}
	custom.ScreenScraper.DevID = "dev"
	custom.ScreenScraper.BaseURL = "https://example.com/api2/"
	custom.Scrape.MaxConcurrency = 2
	custom.Scrape.MinConfidence = 0.5
	custom.Media.Kinds = []string{"BoxArt", "video", "boxart"}
	custom.Systems = map[string]int{"MSX": 113}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.ScreenScraper.BaseURL != "https://example.com/api2" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.ScreenScraper.BaseURL)
	}
	if cfg.Scrape.MaxConcurrency != 2 || cfg.Scrape.MinConfidence != 0.5 {
		t.Fatalf("unexpected scrape section: %+v", cfg.Scrape)
	}
	if cfg.Scrape.RetryLimit != 3 {
		t.Fatalf("expected untouched defaults to survive decode, got %d", cfg.Scrape.RetryLimit)
	}
	if strings.Join(cfg.Media.Kinds, ",") != "boxart,video" {
		t.Fatalf("expected normalized kinds, got %v", cfg.Media.Kinds)
	}
	if cfg.Systems["msx"] != 113 {
		t.Fatalf("expected lowercased system override, got %v", cfg.Systems)
	}
}

func TestEnvVarOverridesCredentials(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "rommedia.toml")
	contents := `[screenscraper]
username = "file-user"
password = "file-pass"
dev_id = "file-dev"
dev_password = "file-devpass"
`
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SCREENSCRAPER_USER", "env-user")
	t.Setenv("SCREENSCRAPER_DEVPASSWORD", "env-devpass")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ScreenScraper.Username != "env-user" {
		t.Errorf("expected username from env, got %q", cfg.ScreenScraper.Username)
	}
	if cfg.ScreenScraper.Password != "file-pass" {
		t.Errorf("expected password from file, got %q", cfg.ScreenScraper.Password)
	}
	if cfg.ScreenScraper.DevPassword != "env-devpass" {
		t.Errorf("expected dev password from env, got %q", cfg.ScreenScraper.DevPassword)
	}
	if err := cfg.RequireCredentials(); err != nil {
		t.Errorf("RequireCredentials: %v", err)
	}
}

func TestRequireCredentialsMissing(t *testing.T) {
	cfg := config.Default()
	if err := cfg.RequireCredentials(); err == nil {
		t.Fatal("expected error without developer credentials")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[screenscraper]") {
		t.Fatalf("sample config missing screenscraper section: %s", contents)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
	if !strings.Contains(cfg.Paths.CacheDir, "rommedia") {
		t.Fatalf("expected cache dir to contain rommedia, got %q", cfg.Paths.CacheDir)
	}
	if len(cfg.Media.Regions) == 0 {
		t.Fatal("expected sample regions")
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero concurrency", func(c *config.Config) { c.Scrape.MaxConcurrency = 0 }},
		{"zero retry limit", func(c *config.Config) { c.Scrape.RetryLimit = 0 }},
		{"confidence above one", func(c *config.Config) { c.Scrape.MinConfidence = 1.5 }},
		{"zero rate", func(c *config.Config) { c.Scrape.RateLimitPerSecond = 0 }},
		{"max delay below base", func(c *config.Config) { c.Scrape.RetryMaxDelayMS = 1 }},
		{"negative weight", func(c *config.Config) { c.Match.AssetWeight = -1 }},
		{"unknown kind", func(c *config.Config) { c.Media.Kinds = []string{"poster"} }},
		{"stall timeout", func(c *config.Config) { c.Media.StallTimeoutSeconds = 0 }},
		{"relative base url", func(c *config.Config) { c.ScreenScraper.BaseURL = "api2" }},
		{"blob url without scheme", func(c *config.Config) { c.Media.BlobURL = "bucket" }},
		{"non-positive system id", func(c *config.Config) { c.Systems = map[string]int{"msx": 0} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func chdirTemp(t *testing.T) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
