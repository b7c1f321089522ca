package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the optional YAML file read before environment overrides.
const ConfigFileEnv = "REWE_CONFIG"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Scraper  ScraperConfig  `yaml:"scraper"`
	Browser  BrowserConfig  `yaml:"browser"`
	API      APIConfig      `yaml:"api"`
	Cache    CacheConfig    `yaml:"cache"`
	Database DatabaseConfig `yaml:"database"`
	Relay    RelayConfig    `yaml:"relay"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Host            string        `yaml:"host"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type ScraperConfig struct {
	RateLimitMin     time.Duration `yaml:"rate_limit_min"`
	RateLimitMax     time.Duration `yaml:"rate_limit_max"`
	MaxRetries       int           `yaml:"max_retries"`
	DetailRetryDelay time.Duration `yaml:"detail_retry_delay"`
	UserAgent        string        `yaml:"user_agent"`
}

type BrowserConfig struct {
	Headless       bool          `yaml:"headless"`
	Timeout        time.Duration `yaml:"timeout"`
	ViewportWidth  int           `yaml:"viewport_width"`
	ViewportHeight int           `yaml:"viewport_height"`
	AcceptLanguage string        `yaml:"accept_language"`
	TimezoneID     string        `yaml:"timezone"`
	Locale         string        `yaml:"locale"`
}

type APIConfig struct {
	MobileBaseURL     string        `yaml:"mobile_base_url"`
	ShopBaseURL       string        `yaml:"shop_base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

// Enabled reports whether responses should be cached in redis.
func (c CacheConfig) Enabled() bool {
	return c.RedisAddr != ""
}

type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
}

type RelayConfig struct {
	Stream       string        `yaml:"stream"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Host:            "0.0.0.0",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Scraper: ScraperConfig{
			RateLimitMin:     3 * time.Second,
			RateLimitMax:     7 * time.Second,
			MaxRetries:       3,
			DetailRetryDelay: 60 * time.Second,
			UserAgent:        defaultUserAgent,
		},
		Browser: BrowserConfig{
			Headless:       true,
			Timeout:        30 * time.Second,
			ViewportWidth:  1920,
			ViewportHeight: 1080,
			AcceptLanguage: "de-DE,de;q=0.9,en;q=0.8",
			TimezoneID:     "Europe/Berlin",
			Locale:         "de-DE",
		},
		API: APIConfig{
			MobileBaseURL:     "https://mobile-api.rewe.de",
			ShopBaseURL:       "https://www.rewe.de",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 50,
		},
		Cache: CacheConfig{
			TTL: time.Hour,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			DBName:   "rewe_discounts",
			SSLMode:  "disable",
			MaxConns: 5,
		},
		Relay: RelayConfig{
			Stream:       "stream:offer_snapshots",
			PollInterval: 5 * time.Second,
			BatchSize:    100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the optional YAML file named by REWE_CONFIG and applies
// environment overrides on top.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(ConfigFileEnv))
}

// LoadFile is Load with an explicit YAML path; an empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvOrDefault("SERVER_PORT", c.Server.Port)
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.ReadTimeout = getDurationOrDefault("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getDurationOrDefault("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Scraper.RateLimitMin = getDurationOrDefault("SCRAPER_RATE_LIMIT_MIN", c.Scraper.RateLimitMin)
	c.Scraper.RateLimitMax = getDurationOrDefault("SCRAPER_RATE_LIMIT_MAX", c.Scraper.RateLimitMax)
	c.Scraper.MaxRetries = getIntOrDefault("SCRAPER_MAX_RETRIES", c.Scraper.MaxRetries)
	c.Scraper.DetailRetryDelay = getDurationOrDefault("SCRAPER_DETAIL_RETRY_DELAY", c.Scraper.DetailRetryDelay)
	c.Scraper.UserAgent = getEnvOrDefault("SCRAPER_USER_AGENT", c.Scraper.UserAgent)

	c.Browser.Headless = getBoolOrDefault("BROWSER_HEADLESS", c.Browser.Headless)
	c.Browser.Timeout = getDurationOrDefault("BROWSER_TIMEOUT", c.Browser.Timeout)
	c.Browser.ViewportWidth = getIntOrDefault("BROWSER_VIEWPORT_WIDTH", c.Browser.ViewportWidth)
	c.Browser.ViewportHeight = getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", c.Browser.ViewportHeight)
	c.Browser.AcceptLanguage = getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", c.Browser.AcceptLanguage)
	c.Browser.TimezoneID = getEnvOrDefault("BROWSER_TIMEZONE", c.Browser.TimezoneID)
	c.Browser.Locale = getEnvOrDefault("BROWSER_LOCALE", c.Browser.Locale)

	c.API.MobileBaseURL = getEnvOrDefault("REWE_MOBILE_API_URL", c.API.MobileBaseURL)
	c.API.ShopBaseURL = getEnvOrDefault("REWE_SHOP_API_URL", c.API.ShopBaseURL)
	c.API.Timeout = getDurationOrDefault("REWE_API_TIMEOUT", c.API.Timeout)
	c.API.RequestsPerSecond = getFloatOrDefault("REWE_API_RPS", c.API.RequestsPerSecond)

	c.Cache.RedisAddr = getEnvOrDefault("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", c.Cache.RedisPassword)
	c.Cache.RedisDB = getIntOrDefault("REDIS_DB", c.Cache.RedisDB)
	c.Cache.TTL = getDurationOrDefault("CACHE_TTL", c.Cache.TTL)

	c.Database.Enabled = getBoolOrDefault("DB_ENABLED", c.Database.Enabled)
	c.Database.Host = getEnvOrDefault("DB_HOST", c.Database.Host)
	c.Database.Port = getIntOrDefault("DB_PORT", c.Database.Port)
	c.Database.User = getEnvOrDefault("DB_USER", c.Database.User)
	c.Database.Password = getEnvOrDefault("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnvOrDefault("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnvOrDefault("DB_SSL_MODE", c.Database.SSLMode)
	c.Database.MaxConns = int32(getIntOrDefault("DB_MAX_CONNS", int(c.Database.MaxConns)))

	c.Relay.Stream = getEnvOrDefault("RELAY_STREAM", c.Relay.Stream)
	c.Relay.PollInterval = getDurationOrDefault("RELAY_POLL_INTERVAL", c.Relay.PollInterval)
	c.Relay.BatchSize = getIntOrDefault("RELAY_BATCH_SIZE", c.Relay.BatchSize)

	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnvOrDefault("LOG_FORMAT", c.Logging.Format)
}

func (c *Config) Validate() error {
	if c.Scraper.RateLimitMin > c.Scraper.RateLimitMax {
		return fmt.Errorf("SCRAPER_RATE_LIMIT_MIN cannot be greater than SCRAPER_RATE_LIMIT_MAX")
	}

	if c.Scraper.MaxRetries < 1 {
		return fmt.Errorf("SCRAPER_MAX_RETRIES must be at least 1")
	}

	if c.API.RequestsPerSecond <= 0 {
		return fmt.Errorf("REWE_API_RPS must be positive")
	}

	if c.API.MobileBaseURL == "" || c.API.ShopBaseURL == "" {
		return fmt.Errorf("REWE API base URLs are required")
	}

	if c.Relay.BatchSize < 1 {
		return fmt.Errorf("RELAY_BATCH_SIZE must be at least 1")
	}

	return nil
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
