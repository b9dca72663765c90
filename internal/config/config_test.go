package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Cache.Capacity != 1000 {
		t.Fatalf("expected default cache capacity 1000, got %d", cfg.Cache.Capacity)
	}
	if got := cfg.CacheTTL(); got != time.Hour {
		t.Fatalf("expected default cache ttl 1h, got %v", got)
	}
	if cfg.RateLimit.MaxPermits != 30 {
		t.Fatalf("expected default max permits 30, got %d", cfg.RateLimit.MaxPermits)
	}
	if got := cfg.RateLimit.Window(); got != time.Minute {
		t.Fatalf("expected default window 1m, got %v", got)
	}
	if cfg.Session.BackoffFactor != 2.0 {
		t.Fatalf("expected default backoff factor 2, got %v", cfg.Session.BackoffFactor)
	}
	if cfg.Archive.Backend != "none" {
		t.Fatalf("expected archival off by default, got %q", cfg.Archive.Backend)
	}
	if cfg.PubSub.Topic != "scrape-completions" {
		t.Fatalf("expected default topic, got %q", cfg.PubSub.Topic)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
cache:
  capacity: 200
  ttl_seconds: 120
ratelimit:
  max_permits: 10
  window_seconds: 30
  admission_timeout_seconds: 5
executor:
  workers: 8
  batch_max: 25
  batch_timeout_seconds: 60
session:
  max_attempts: 5
  backoff_initial_ms: 500
  backoff_max_ms: 10000
  backoff_factor: 1.5
  proxy_url: http://proxy.internal:3128
  proxy_attempt_budget: 1
http:
  timeout_seconds: 45
  user_agent: jobfetch-test
  politeness_rps: 0.5
records:
  dsn: postgres://localhost/jobs
  table: audit
archive:
  backend: gcs
  bucket: raw-pages
  prefix: html
pubsub:
  project_id: my-project
  topic: completions
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Cache.Capacity != 200 || cfg.CacheTTL() != 2*time.Minute {
		t.Fatalf("expected cache overrides to apply: %+v", cfg.Cache)
	}
	if got := cfg.RateLimit.AdmissionTimeout(); got != 5*time.Second {
		t.Fatalf("expected admission timeout 5s, got %v", got)
	}
	if got := cfg.Executor.BatchTimeout(); got != time.Minute {
		t.Fatalf("expected batch timeout 1m, got %v", got)
	}
	if cfg.Session.MaxAttempts != 5 || cfg.Session.BackoffFactor != 1.5 {
		t.Fatalf("expected session overrides to apply: %+v", cfg.Session)
	}
	if cfg.Session.ProxyURL != "http://proxy.internal:3128" {
		t.Fatalf("expected proxy url override, got %q", cfg.Session.ProxyURL)
	}
	if got := cfg.HTTP.Timeout(); got != 45*time.Second {
		t.Fatalf("expected http timeout 45s, got %v", got)
	}
	if cfg.Records.DSN == "" || cfg.Records.Table != "audit" {
		t.Fatalf("expected records overrides to apply: %+v", cfg.Records)
	}
	if cfg.Archive.Backend != "gcs" || cfg.Archive.Bucket != "raw-pages" {
		t.Fatalf("expected archive overrides to apply: %+v", cfg.Archive)
	}
	if cfg.PubSub.ProjectID != "my-project" || cfg.PubSub.Topic != "completions" {
		t.Fatalf("expected pubsub overrides to apply: %+v", cfg.PubSub)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected production logging")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:    ServerConfig{Port: 8080},
		Cache:     CacheConfig{Capacity: 100, TTLSeconds: 60},
		RateLimit: RateLimitConfig{MaxPermits: 10, WindowSeconds: 60},
		Executor:  ExecutorConfig{Workers: 2, BatchMax: 10},
		Session:   SessionConfig{MaxAttempts: 3, BackoffFactor: 2},
		HTTP:      HTTPConfig{TimeoutSeconds: 10},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "auth missing api key",
			cfg: func() Config {
				c := base
				c.Auth.Enabled = true
				return c
			}(),
			want: "auth.api_key",
		},
		{
			name: "invalid cache capacity",
			cfg: func() Config {
				c := base
				c.Cache.Capacity = 0
				return c
			}(),
			want: "cache.capacity",
		},
		{
			name: "invalid permits",
			cfg: func() Config {
				c := base
				c.RateLimit.MaxPermits = 0
				return c
			}(),
			want: "ratelimit.max_permits",
		},
		{
			name: "invalid workers",
			cfg: func() Config {
				c := base
				c.Executor.Workers = 0
				return c
			}(),
			want: "executor.workers",
		},
		{
			name: "invalid attempts",
			cfg: func() Config {
				c := base
				c.Session.MaxAttempts = 0
				return c
			}(),
			want: "session.max_attempts",
		},
		{
			name: "invalid backoff factor",
			cfg: func() Config {
				c := base
				c.Session.BackoffFactor = 0.5
				return c
			}(),
			want: "session.backoff_factor",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.HTTP.TimeoutSeconds = 0
				return c
			}(),
			want: "http.timeout_seconds",
		},
		{
			name: "gcs archive without bucket",
			cfg: func() Config {
				c := base
				c.Archive.Backend = "gcs"
				return c
			}(),
			want: "archive.bucket",
		},
		{
			name: "unknown archive backend",
			cfg: func() Config {
				c := base
				c.Archive.Backend = "s3"
				return c
			}(),
			want: "archive.backend",
		},
		{
			name: "pubsub project without topic",
			cfg: func() Config {
				c := base
				c.PubSub.ProjectID = "proj"
				return c
			}(),
			want: "pubsub.topic",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
