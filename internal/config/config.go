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
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Session   SessionConfig   `mapstructure:"session"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Records   RecordsConfig   `mapstructure:"records"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
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

// CacheConfig sizes the posting cache.
type CacheConfig struct {
	Capacity   int `mapstructure:"capacity"`
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// RateLimitConfig governs the sliding-window admission limiter.
type RateLimitConfig struct {
	MaxPermits              int `mapstructure:"max_permits"`
	WindowSeconds           int `mapstructure:"window_seconds"`
	AdmissionTimeoutSeconds int `mapstructure:"admission_timeout_seconds"`
}

// ExecutorConfig bounds batch execution.
type ExecutorConfig struct {
	Workers             int `mapstructure:"workers"`
	BatchMax            int `mapstructure:"batch_max"`
	BatchTimeoutSeconds int `mapstructure:"batch_timeout_seconds"`
}

// SessionConfig governs per-platform session retry and reinit behavior.
type SessionConfig struct {
	MaxAttempts        int     `mapstructure:"max_attempts"`
	BackoffInitialMs   int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs       int     `mapstructure:"backoff_max_ms"`
	BackoffFactor      float64 `mapstructure:"backoff_factor"`
	StalenessSeconds   int     `mapstructure:"staleness_seconds"`
	ReinitMaxAttempts  int     `mapstructure:"reinit_max_attempts"`
	ProxyURL           string  `mapstructure:"proxy_url"`
	ProxyAttemptBudget int     `mapstructure:"proxy_attempt_budget"`
}

// HTTPConfig configures the outbound fetcher.
type HTTPConfig struct {
	TimeoutSeconds  int     `mapstructure:"timeout_seconds"`
	UserAgent       string  `mapstructure:"user_agent"`
	PolitenessRPS   float64 `mapstructure:"politeness_rps"`
	PolitenessBurst int     `mapstructure:"politeness_burst"`
}

// RecordsConfig controls the scrape audit store. An empty DSN selects the
// in-memory store.
type RecordsConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// ArchiveConfig sets raw-page archival. Backend is "none", "memory" or "gcs".
type ArchiveConfig struct {
	Backend string `mapstructure:"backend"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for completion-event notifications. An empty
// project ID disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBFETCH")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("cache.capacity", 1000)
	v.SetDefault("cache.ttl_seconds", 3600)
	v.SetDefault("ratelimit.max_permits", 30)
	v.SetDefault("ratelimit.window_seconds", 60)
	v.SetDefault("ratelimit.admission_timeout_seconds", 30)
	v.SetDefault("executor.workers", 4)
	v.SetDefault("executor.batch_max", 50)
	v.SetDefault("executor.batch_timeout_seconds", 300)
	v.SetDefault("session.max_attempts", 3)
	v.SetDefault("session.backoff_initial_ms", 1000)
	v.SetDefault("session.backoff_max_ms", 30000)
	v.SetDefault("session.backoff_factor", 2.0)
	v.SetDefault("session.staleness_seconds", 1800)
	v.SetDefault("session.reinit_max_attempts", 3)
	v.SetDefault("session.proxy_attempt_budget", 2)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	v.SetDefault("http.politeness_rps", 1.0)
	v.SetDefault("http.politeness_burst", 1)
	v.SetDefault("records.table", "scrape_records")
	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("pubsub.topic", "scrape-completions")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be > 0")
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be > 0")
	}
	if c.RateLimit.MaxPermits <= 0 {
		return fmt.Errorf("ratelimit.max_permits must be > 0")
	}
	if c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("ratelimit.window_seconds must be > 0")
	}
	if c.Executor.Workers <= 0 {
		return fmt.Errorf("executor.workers must be > 0")
	}
	if c.Executor.BatchMax <= 0 {
		return fmt.Errorf("executor.batch_max must be > 0")
	}
	if c.Session.MaxAttempts <= 0 {
		return fmt.Errorf("session.max_attempts must be > 0")
	}
	if c.Session.BackoffFactor < 1 {
		return fmt.Errorf("session.backoff_factor must be >= 1")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	switch c.Archive.Backend {
	case "", "none", "memory":
	case "gcs":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set when archive.backend is gcs")
		}
	default:
		return fmt.Errorf("archive.backend must be one of none, memory, gcs")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.Topic == "" {
		return fmt.Errorf("pubsub.topic must be set when pubsub.project_id is set")
	}
	return nil
}

// CacheTTL returns the default cache TTL as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// Window returns the rate limiter window as a duration.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// AdmissionTimeout returns the limiter admission timeout as a duration.
func (c RateLimitConfig) AdmissionTimeout() time.Duration {
	return time.Duration(c.AdmissionTimeoutSeconds) * time.Second
}

// BatchTimeout returns the batch deadline as a duration.
func (c ExecutorConfig) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutSeconds) * time.Second
}

// Timeout returns the per-request fetch timeout as a duration.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
