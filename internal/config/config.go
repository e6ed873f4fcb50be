// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Jobs    JobsConfig    `mapstructure:"jobs"`
	Browser BrowserConfig `mapstructure:"browser"`
	Extract ExtractConfig `mapstructure:"extract"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Store   StoreConfig   `mapstructure:"store"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// JobsConfig governs the worker pool and job lifecycle.
type JobsConfig struct {
	MaxConcurrent  int `mapstructure:"max_concurrent"`
	QueueDepth     int `mapstructure:"queue_depth"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// BrowserConfig configures the headless browser runtime.
type BrowserConfig struct {
	Headless      bool    `mapstructure:"headless"`
	UserAgent     string  `mapstructure:"user_agent"`
	NavTimeoutSec int     `mapstructure:"nav_timeout_seconds"`
	DomainQPS     float64 `mapstructure:"domain_qps"`
}

// ExtractConfig bounds the leveled review extraction.
type ExtractConfig struct {
	MaxReviewPages int `mapstructure:"max_review_pages"`
	StallLimit     int `mapstructure:"stall_limit"`
	MaxRetries     int `mapstructure:"max_retries"`
}

// CrawlConfig governs the static site crawl task.
type CrawlConfig struct {
	MaxPagesDefault int    `mapstructure:"max_pages_default"`
	MaxDepthDefault int    `mapstructure:"max_depth_default"`
	UserAgent       string `mapstructure:"user_agent"`
}

// StoreConfig selects the job store backend.
type StoreConfig struct {
	Provider string `mapstructure:"provider"`
	RedisURL string `mapstructure:"redis_url"`
	TTLHours int    `mapstructure:"ttl_hours"`
}

// StorageConfig sets where scraped results are written.
type StorageConfig struct {
	DataRoot string `mapstructure:"data_root"`
	LogRoot  string `mapstructure:"log_root"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BROWSER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("jobs.max_concurrent", 2)
	v.SetDefault("jobs.queue_depth", 64)
	v.SetDefault("jobs.timeout_seconds", 300)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.nav_timeout_seconds", 30)
	v.SetDefault("browser.domain_qps", 1.0)
	v.SetDefault("extract.max_review_pages", 50)
	v.SetDefault("extract.stall_limit", 2)
	v.SetDefault("extract.max_retries", 3)
	v.SetDefault("crawl.max_pages_default", 25)
	v.SetDefault("crawl.max_depth_default", 2)
	v.SetDefault("crawl.user_agent", "browserjobs-bot/0.1")
	v.SetDefault("store.provider", "memory")
	v.SetDefault("store.redis_url", "redis://localhost:6379/0")
	v.SetDefault("store.ttl_hours", 24)
	v.SetDefault("storage.data_root", "/storage/scraped_data")
	v.SetDefault("storage.log_root", "/storage/logs")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Jobs.MaxConcurrent <= 0 {
		return fmt.Errorf("jobs.max_concurrent must be > 0")
	}
	if c.Jobs.QueueDepth <= 0 {
		return fmt.Errorf("jobs.queue_depth must be > 0")
	}
	if c.Jobs.TimeoutSeconds <= 0 {
		return fmt.Errorf("jobs.timeout_seconds must be > 0")
	}
	if c.Extract.MaxReviewPages <= 0 {
		return fmt.Errorf("extract.max_review_pages must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Store.Provider {
	case "memory", "redis":
	default:
		return fmt.Errorf("store.provider must be memory or redis, got %q", c.Store.Provider)
	}
	if c.Store.Provider == "redis" && c.Store.RedisURL == "" {
		return fmt.Errorf("store.redis_url must be set when store.provider is redis")
	}
	return nil
}

// JobTimeout returns the per-job execution budget.
func (c Config) JobTimeout() time.Duration {
	return time.Duration(c.Jobs.TimeoutSeconds) * time.Second
}

// NavTimeout returns the page navigation budget.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSec) * time.Second
}
