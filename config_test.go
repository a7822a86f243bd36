package goGate

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Session.Timeout != 30*time.Minute {
		t.Fatalf("unexpected session timeout %v", cfg.Session.Timeout)
	}
	if cfg.RateLimit.Auth.Requests != 5 || cfg.RateLimit.Auth.Window != 5*time.Minute {
		t.Fatalf("unexpected auth policy %+v", cfg.RateLimit.Auth)
	}
}

func TestDefaultConfigIsolated(t *testing.T) {
	a := DefaultConfig()
	a.Security.MFAPaths[0] = "/mutated"
	b := DefaultConfig()
	if b.Security.MFAPaths[0] == "/mutated" {
		t.Fatal("DefaultConfig shares slices between calls")
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero timeout", func(c *Config) { c.Session.Timeout = 0 }, "Timeout"},
		{"negative concurrency", func(c *Config) { c.Session.MaxConcurrentSessions = -1 }, "MaxConcurrentSessions"},
		{"negative retention", func(c *Config) { c.Session.Retention = -time.Hour }, "Retention"},
		{"empty cookie name", func(c *Config) { c.Session.CookieName = "" }, "CookieName"},
		{"negative mismatch threshold", func(c *Config) { c.Session.MismatchThreshold = -1 }, "MismatchThreshold"},
		{"short hs256 key", func(c *Config) { c.Token.SigningKey = "short" }, "32 bytes"},
		{"ed25519 without verify key", func(c *Config) { c.Token.SigningMethod = "ed25519" }, "VerifyKey"},
		{"unknown signing method", func(c *Config) { c.Token.SigningMethod = "rs256" }, "unsupported"},
		{"zero token ttl", func(c *Config) { c.Token.TTL = 0 }, "TTL"},
		{"production without key", func(c *Config) { c.Security.ProductionMode = true }, "ProductionMode"},
		{"zero rate window", func(c *Config) { c.RateLimit.Admin.Window = 0 }, "Admin"},
		{"zero rate requests", func(c *Config) { c.RateLimit.Webhook.Requests = 0 }, "Webhook"},
		{"zero audit buffer", func(c *Config) { c.Audit.BufferSize = 0 }, "BufferSize"},
		{"histograms without metrics", func(c *Config) {
			c.Metrics.Enabled = false
			c.Metrics.EnableLatencyHistograms = true
		}, "histograms"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestConfigValidateDisabledRateLimitSkipsPolicies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.Default = RatePolicy{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("GOGATE_SESSION_TIMEOUT", "45m")
	t.Setenv("GOGATE_SESSION_MAX_CONCURRENT", "2")
	t.Setenv("GOGATE_RATE_LIMIT_DEFAULT_REQUESTS", "250")
	t.Setenv("GOGATE_CSRF_EXEMPT_PATHS", "/hooks,/status")
	t.Setenv("GOGATE_INTERNAL_SERVICE_IDS", "billing,search")
	t.Setenv("INTERNAL_SERVICE_KEY", "svc-secret")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Session.Timeout != 45*time.Minute {
		t.Fatalf("timeout = %v", cfg.Session.Timeout)
	}
	if cfg.Session.MaxConcurrentSessions != 2 {
		t.Fatalf("max concurrent = %d", cfg.Session.MaxConcurrentSessions)
	}
	if cfg.RateLimit.Default.Requests != 250 {
		t.Fatalf("default requests = %d", cfg.RateLimit.Default.Requests)
	}
	if cfg.RateLimit.Default.Window != time.Minute {
		t.Fatalf("default window lost: %v", cfg.RateLimit.Default.Window)
	}
	if !slices.Equal(cfg.CSRF.ExemptPaths, []string{"/hooks", "/status"}) {
		t.Fatalf("exempt paths = %v", cfg.CSRF.ExemptPaths)
	}
	if !slices.Equal(cfg.Service.AllowedServices, []string{"billing", "search"}) {
		t.Fatalf("allowed services = %v", cfg.Service.AllowedServices)
	}
	if cfg.Service.InternalKey != "svc-secret" {
		t.Fatalf("internal key = %q", cfg.Service.InternalKey)
	}
}

func TestLoadConfigFromEnvInvalid(t *testing.T) {
	t.Setenv("GOGATE_SESSION_TIMEOUT", "0s")
	if _, err := LoadConfigFromEnv(); err == nil || !strings.Contains(err.Error(), "config validation") {
		t.Fatalf("expected validation error, got %v", err)
	}

	t.Setenv("GOGATE_SESSION_TIMEOUT", "soon")
	if _, err := LoadConfigFromEnv(); err == nil || !strings.Contains(err.Error(), "parse environment") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gogate.yaml")
	data := `
session:
  timeout: 2h
  sliding_expiration: true
  cookie_name: app_session
rate_limit:
  auth:
    requests: 3
    window: 10m
security:
  require_mfa: true
  mfa_paths:
    - /api/payments
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOGATE_SESSION_COOKIE_NAME", "env_session")

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Session.Timeout != 2*time.Hour || !cfg.Session.SlidingExpiration {
		t.Fatalf("session = %+v", cfg.Session)
	}
	if cfg.Session.CookieName != "env_session" {
		t.Fatalf("environment did not override file: %q", cfg.Session.CookieName)
	}
	if cfg.RateLimit.Auth != (RatePolicy{Requests: 3, Window: 10 * time.Minute}) {
		t.Fatalf("auth policy = %+v", cfg.RateLimit.Auth)
	}
	if cfg.RateLimit.Default.Requests != 100 {
		t.Fatalf("default policy lost its default: %+v", cfg.RateLimit.Default)
	}
	if !cfg.Security.RequireMFA || !slices.Equal(cfg.Security.MFAPaths, []string{"/api/payments"}) {
		t.Fatalf("security = %+v", cfg.Security)
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
