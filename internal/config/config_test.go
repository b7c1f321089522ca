package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3*time.Second, cfg.Scraper.RateLimitMin)
	assert.Equal(t, 7*time.Second, cfg.Scraper.RateLimitMax)
	assert.Equal(t, 60*time.Second, cfg.Scraper.DetailRetryDelay)
	assert.Equal(t, "https://mobile-api.rewe.de", cfg.API.MobileBaseURL)
	assert.Equal(t, "de-DE", cfg.Browser.Locale)
	assert.False(t, cfg.Cache.Enabled())
	assert.False(t, cfg.Database.Enabled)
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
scraper:
  rate_limit_min: 1s
  rate_limit_max: 2s
api:
  requests_per_second: 10
cache:
  redis_addr: localhost:6379
logging:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("REWE_API_RPS", "25")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.Scraper.RateLimitMin)
	assert.Equal(t, 2*time.Second, cfg.Scraper.RateLimitMax)
	assert.Equal(t, 25.0, cfg.API.RequestsPerSecond)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.True(t, cfg.Cache.Enabled())
	// untouched sections keep their defaults
	assert.Equal(t, 1920, cfg.Browser.ViewportWidth)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"min greater than max", func(c *Config) { c.Scraper.RateLimitMin = 10 * time.Second }},
		{"no retries", func(c *Config) { c.Scraper.MaxRetries = 0 }},
		{"zero rps", func(c *Config) { c.API.RequestsPerSecond = 0 }},
		{"missing base url", func(c *Config) { c.API.ShopBaseURL = "" }},
		{"zero batch", func(c *Config) { c.Relay.BatchSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{User: "rewe", Password: "secret", Host: "db", Port: 5433, DBName: "offers", SSLMode: "disable"}
	assert.Equal(t, "postgres://rewe:secret@db:5433/offers?sslmode=disable", d.DSN())
}
