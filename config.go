package goGate

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGate/csrf"
)

// Config is the complete gateway configuration. Start from [DefaultConfig]
// and override fields, or load it with [LoadConfigFromEnv] or
// [LoadConfigFile].
type Config struct {
	Session   SessionConfig   `yaml:"session" envPrefix:"SESSION_"`
	Token     TokenConfig     `yaml:"token" envPrefix:"TOKEN_"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	CSRF      CSRFConfig      `yaml:"csrf" envPrefix:"CSRF_"`
	Tenant    TenantConfig    `yaml:"tenant" envPrefix:"TENANT_"`
	Service   ServiceConfig   `yaml:"service"`
	Security  SecurityConfig  `yaml:"security"`
	Audit     AuditConfig     `yaml:"audit" envPrefix:"AUDIT_"`
	Metrics   MetricsConfig   `yaml:"metrics" envPrefix:"METRICS_"`
	Redis     RedisConfig     `yaml:"redis" envPrefix:"REDIS_"`
	Postgres  PostgresConfig  `yaml:"postgres" envPrefix:"POSTGRES_"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetime, the concurrency limit and the
// session cookie.
type SessionConfig struct {
	Timeout               time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxConcurrentSessions int           `yaml:"max_concurrent_sessions" env:"MAX_CONCURRENT"`
	SlidingExpiration     bool          `yaml:"sliding_expiration" env:"SLIDING_EXPIRATION"`
	Retention             time.Duration `yaml:"retention" env:"RETENTION"`
	CleanupInterval       time.Duration `yaml:"cleanup_interval" env:"CLEANUP_INTERVAL"`
	RedisPrefix           string        `yaml:"redis_prefix" env:"REDIS_PREFIX"`
	CookieName            string        `yaml:"cookie_name" env:"COOKIE_NAME"`
	MismatchThreshold     int           `yaml:"mismatch_threshold" env:"MISMATCH_THRESHOLD"`
	MismatchWindow        time.Duration `yaml:"mismatch_window" env:"MISMATCH_WINDOW"`
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls the signed token that carries the session reference.
// SigningKey is the HS256 secret or an Ed25519 private key in PEM;
// VerifyKey is the Ed25519 public key in PEM.
type TokenConfig struct {
	SigningMethod string        `yaml:"signing_method" env:"SIGNING_METHOD"`
	SigningKey    string        `yaml:"signing_key" env:"SIGNING_KEY"`
	VerifyKey     string        `yaml:"verify_key" env:"VERIFY_KEY"`
	TTL           time.Duration `yaml:"ttl" env:"TTL"`
	Issuer        string        `yaml:"issuer" env:"ISSUER"`
	Audience      string        `yaml:"audience" env:"AUDIENCE"`
	Leeway        time.Duration `yaml:"leeway" env:"LEEWAY"`
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RatePolicy allows Requests per Window.
type RatePolicy struct {
	Requests int           `yaml:"requests" env:"REQUESTS"`
	Window   time.Duration `yaml:"window" env:"WINDOW"`
}

// RateLimitConfig sets the fixed-window policy of each route class.
type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled" env:"ENABLED"`
	RedisPrefix     string        `yaml:"redis_prefix" env:"REDIS_PREFIX"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"CLEANUP_INTERVAL"`
	Default         RatePolicy    `yaml:"default" envPrefix:"DEFAULT_"`
	Auth            RatePolicy    `yaml:"auth" envPrefix:"AUTH_"`
	Admin           RatePolicy    `yaml:"admin" envPrefix:"ADMIN_"`
	Webhook         RatePolicy    `yaml:"webhook" envPrefix:"WEBHOOK_"`
}

/*
====================================
CSRF CONFIG
====================================
*/

// CSRFConfig controls double-submit validation.
type CSRFConfig struct {
	Enabled     bool     `yaml:"enabled" env:"ENABLED"`
	ExemptPaths []string `yaml:"exempt_paths" env:"EXEMPT_PATHS" envSeparator:","`
}

/*
====================================
TENANT CONFIG
====================================
*/

// TenantConfig controls tenant resolution and isolation.
type TenantConfig struct {
	Isolation   bool          `yaml:"isolation" env:"ISOLATION"`
	CacheTTL    time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	RedisPrefix string        `yaml:"redis_prefix" env:"REDIS_PREFIX"`
}

/*
====================================
SERVICE CONFIG
====================================
*/

// ServiceConfig controls service-to-service authentication. An empty
// InternalKey rejects every service call. AllowedServices, when set,
// restricts the accepted X-Service-ID values.
type ServiceConfig struct {
	InternalKey     string   `yaml:"internal_key" env:"INTERNAL_SERVICE_KEY"`
	AllowedServices []string `yaml:"allowed_services" env:"INTERNAL_SERVICE_IDS" envSeparator:","`
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds the global policy switches.
type SecurityConfig struct {
	ProductionMode bool     `yaml:"production_mode" env:"PRODUCTION_MODE"`
	RequireMFA     bool     `yaml:"require_mfa" env:"REQUIRE_MFA"`
	MFAPaths       []string `yaml:"mfa_paths" env:"MFA_PATHS" envSeparator:","`
	AuditPaths     []string `yaml:"audit_paths" env:"AUDIT_PATHS" envSeparator:","`
	DefaultRole    string   `yaml:"default_role" env:"DEFAULT_ROLE"`
}

// AuditConfig controls asynchronous security event delivery.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled" env:"ENABLED"`
	BufferSize int  `yaml:"buffer_size" env:"BUFFER_SIZE"`
	DropIfFull bool `yaml:"drop_if_full" env:"DROP_IF_FULL"`
	// BlockTimeout bounds how long a caller waits for buffer space when
	// DropIfFull is off. Zero waits for the request context.
	BlockTimeout time.Duration `yaml:"block_timeout" env:"BLOCK_TIMEOUT"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled" env:"ENABLED"`
	EnableLatencyHistograms bool `yaml:"latency_histograms" env:"LATENCY_HISTOGRAMS"`
}

/*
====================================
BACKEND CONFIG
====================================
*/

// RedisConfig addresses the shared session and rate-limit store.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

// PostgresConfig addresses the optional tenant and role database.
type PostgresConfig struct {
	DSN            string `yaml:"dsn" env:"DSN"`
	MaxConns       int32  `yaml:"max_conns" env:"MAX_CONNS"`
	MigrateOnStart bool   `yaml:"migrate_on_start" env:"MIGRATE_ON_START"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			Timeout:               30 * time.Minute,
			MaxConcurrentSessions: 5,
			SlidingExpiration:     false,
			Retention:             24 * time.Hour,
			CleanupInterval:       time.Minute,
			RedisPrefix:           "gs",
			CookieName:            "enterprise_session",
			MismatchWindow:        15 * time.Minute,
		},
		Token: TokenConfig{
			SigningMethod: "hs256",
			TTL:           24 * time.Hour,
			Issuer:        "gogate",
			Leeway:        30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			RedisPrefix:     "gr",
			CleanupInterval: time.Minute,
			Default:         RatePolicy{Requests: 100, Window: time.Minute},
			Auth:            RatePolicy{Requests: 5, Window: 5 * time.Minute},
			Admin:           RatePolicy{Requests: 10, Window: time.Minute},
			Webhook:         RatePolicy{Requests: 1000, Window: time.Minute},
		},
		CSRF: CSRFConfig{
			Enabled:     true,
			ExemptPaths: csrf.DefaultExemptPaths(),
		},
		Tenant: TenantConfig{
			Isolation:   true,
			CacheTTL:    5 * time.Minute,
			RedisPrefix: "gt",
		},
		Security: SecurityConfig{
			MFAPaths:   []string{"/api/admin", "/api/billing", "/api/settings"},
			AuditPaths: []string{"/api/admin", "/api/billing", "/api/users"},
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Postgres: PostgresConfig{
			MaxConns: 10,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.CSRF.ExemptPaths = cloneStrings(cfg.CSRF.ExemptPaths)
	out.Service.AllowedServices = cloneStrings(cfg.Service.AllowedServices)
	out.Security.MFAPaths = cloneStrings(cfg.Security.MFAPaths)
	out.Security.AuditPaths = cloneStrings(cfg.Security.AuditPaths)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Session
	if c.Session.Timeout <= 0 {
		return errors.New("Session Timeout must be > 0")
	}
	if c.Session.MaxConcurrentSessions < 0 {
		return errors.New("Session MaxConcurrentSessions must be >= 0")
	}
	if c.Session.Retention < 0 {
		return errors.New("Session Retention must be >= 0")
	}
	if c.Session.CookieName == "" {
		return errors.New("Session CookieName must be set")
	}
	if c.Session.MismatchThreshold < 0 {
		return errors.New("Session MismatchThreshold must be >= 0")
	}

	// Token
	switch c.Token.SigningMethod {
	case "hs256":
		if c.Token.SigningKey != "" && len(c.Token.SigningKey) < 32 {
			return errors.New("hs256 SigningKey must be at least 32 bytes")
		}
	case "ed25519":
		if c.Token.VerifyKey == "" {
			return errors.New("ed25519 requires VerifyKey")
		}
	default:
		return errors.New("unsupported token signing method")
	}
	if c.Token.TTL <= 0 {
		return errors.New("Token TTL must be > 0")
	}
	if c.Security.ProductionMode && c.Token.SigningKey == "" {
		return errors.New("ProductionMode requires Token SigningKey")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		for name, p := range map[string]RatePolicy{
			"Default": c.RateLimit.Default,
			"Auth":    c.RateLimit.Auth,
			"Admin":   c.RateLimit.Admin,
			"Webhook": c.RateLimit.Webhook,
		} {
			if p.Requests <= 0 || p.Window <= 0 {
				return fmt.Errorf("RateLimit %s policy must have Requests > 0 and Window > 0", name)
			}
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Audit.BlockTimeout < 0 {
		return errors.New("Audit BlockTimeout must be >= 0")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics latency histograms require Metrics Enabled")
	}

	return nil
}
