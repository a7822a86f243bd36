package goGate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goGate/csrf"
	"github.com/MrEthical07/goGate/internal"
	"github.com/MrEthical07/goGate/internal/audit"
	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/jwt"
	"github.com/MrEthical07/goGate/permission"
	"github.com/MrEthical07/goGate/session"
	"github.com/MrEthical07/goGate/tenant"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a [Gateway]. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	permissions []string
	roles       map[string][]string

	sessionStore   session.Store
	rateBackend    rate.Backend
	tenantProvider tenant.Provider
	roleProvider   permission.RoleProvider
	auditSink      AuditSink
	logger         *slog.Logger
	now            func() time.Time

	built bool
}

// New starts a Builder from [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the shared client for sessions, rate limits, mismatch
// counters and the tenant cache.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionStore overrides the session store derived from WithRedis.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.sessionStore = store
	return b
}

// WithRateLimitBackend overrides the counter backend derived from WithRedis.
func (b *Builder) WithRateLimitBackend(backend rate.Backend) *Builder {
	b.rateBackend = backend
	return b
}

// WithPermissions registers permission names ahead of the roles set with
// WithRoles.
func (b *Builder) WithPermissions(perms []string) *Builder {
	b.permissions = perms
	return b
}

// WithRoles replaces the default booking roles.
func (b *Builder) WithRoles(r map[string][]string) *Builder {
	b.roles = r
	return b
}

// WithTenantProvider sets where tenant contexts are looked up.
func (b *Builder) WithTenantProvider(p tenant.Provider) *Builder {
	b.tenantProvider = p
	return b
}

// WithRoleProvider sets where user roles are looked up.
func (b *Builder) WithRoleProvider(p permission.RoleProvider) *Builder {
	b.roleProvider = p
	return b
}

// WithAuditSink sets the destination of security events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger shared by every component.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source of every component.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Authenticate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and starts the gateway's background
// workers. Call [Gateway.Close] to stop them.
func (b *Builder) Build() (*Gateway, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	if b.redis == nil {
		if cfg.Security.ProductionMode && (b.sessionStore == nil || b.rateBackend == nil) {
			return nil, errors.New("ProductionMode requires redis client")
		}
		logger.Warn("no redis client configured; sessions and rate limits are process-local")
	}

	// -------- ROLES --------
	roles, err := b.buildRoleTable()
	if err != nil {
		return nil, err
	}
	if cfg.Security.DefaultRole != "" {
		if _, ok := roles.Mask(cfg.Security.DefaultRole); !ok {
			return nil, errors.New("Security DefaultRole does not exist in role table")
		}
	}
	roleProvider := b.roleProvider
	if roleProvider == nil {
		roleProvider = permission.NewStaticRoleProvider(cfg.Security.DefaultRole)
	}
	authz, err := permission.NewAuthorizer(roles, roleProvider)
	if err != nil {
		return nil, err
	}

	// -------- TENANTS --------
	tenants := b.tenantProvider
	if tenants == nil {
		logger.Warn("no tenant provider configured; every tenant is unknown")
		tenants = tenant.NewStaticProvider()
	}
	if b.redis != nil && cfg.Tenant.CacheTTL > 0 {
		tenants = tenant.NewCachedProvider(tenants, b.redis, cfg.Tenant.RedisPrefix, cfg.Tenant.CacheTTL, logger)
	}

	// -------- TOKENS --------
	tokens, err := newTokenManager(cfg.Token, logger)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		config:  cfg,
		logger:  logger,
		clock:   internal.Clock(b.now),
		tiers:   rateTiers(cfg.RateLimit),
		csrf:    csrf.New(cfg.CSRF.ExemptPaths...),
		tenants: tenant.NewResolver(tenants),
		authz:   authz,
		metrics: NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:      cfg.Audit.Enabled,
			BufferSize:   cfg.Audit.BufferSize,
			DropIfFull:   cfg.Audit.DropIfFull,
			BlockTimeout: cfg.Audit.BlockTimeout,
		}, b.auditSink, logger),
	}
	if b.now != nil {
		tokens = tokens.WithClock(b.now)
	}
	g.tokens = tokens

	// -------- SESSIONS --------
	store := b.sessionStore
	if store == nil {
		if b.redis != nil {
			store = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix).WithLogger(logger)
		} else {
			store = session.NewMemoryStore()
		}
	}
	opts := []session.Option{
		session.WithAuditSink(g.audit),
		session.WithLogger(logger),
	}
	if b.now != nil {
		opts = append(opts, session.WithClock(b.now))
	}
	if b.redis != nil && cfg.Session.MismatchThreshold > 0 {
		mismatches := rate.New(rate.NewRedisBackend(b.redis), cfg.Session.RedisPrefix+":dm")
		if b.now != nil {
			mismatches.WithClock(b.now)
		}
		opts = append(opts, session.WithMismatchLimiter(mismatches))
	}
	g.sessions = session.NewManager(store, session.Config{
		Timeout:               cfg.Session.Timeout,
		MaxConcurrentSessions: cfg.Session.MaxConcurrentSessions,
		SlidingExpiration:     cfg.Session.SlidingExpiration,
		Retention:             cfg.Session.Retention,
		MismatchEscalation: session.MismatchEscalation{
			Threshold: cfg.Session.MismatchThreshold,
			Window:    cfg.Session.MismatchWindow,
		},
	}, opts...)

	// -------- RATE LIMITS --------
	backend := b.rateBackend
	var memBackend *rate.MemoryBackend
	if backend == nil {
		if b.redis != nil {
			backend = rate.NewRedisBackend(b.redis)
		} else {
			memBackend = rate.NewMemoryBackend(logger)
			backend = memBackend
		}
	}
	g.limiter = rate.New(backend, cfg.RateLimit.RedisPrefix)
	if b.now != nil {
		g.limiter.WithClock(b.now)
	}

	// -------- WORKERS --------
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	if cfg.Session.CleanupInterval > 0 {
		janitor := session.NewJanitor(g.sessions, cfg.Session.CleanupInterval, logger)
		g.goWorker(func() error { return janitor.Run(ctx) })
	}
	if memBackend != nil && cfg.RateLimit.CleanupInterval > 0 {
		g.goWorker(func() error { return memBackend.Run(ctx, cfg.RateLimit.CleanupInterval) })
	}

	b.built = true

	return g, nil
}

func (b *Builder) buildRoleTable() (*permission.RoleTable, error) {
	if len(b.roles) == 0 {
		if len(b.permissions) > 0 {
			return nil, errors.New("permissions require roles")
		}
		return permission.NewDefaultRoleTable()
	}

	registry := permission.NewRegistry()
	for _, p := range b.permissions {
		if _, err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	roles := permission.NewRoleTable(registry)
	for name, perms := range b.roles {
		if err := roles.RegisterRole(name, perms); err != nil {
			return nil, fmt.Errorf("role %q: %w", name, err)
		}
	}
	roles.Freeze()
	return roles, nil
}

func newTokenManager(cfg TokenConfig, logger *slog.Logger) (*jwt.Manager, error) {
	key := []byte(cfg.SigningKey)
	if jwt.SigningMethod(cfg.SigningMethod) == jwt.MethodHS256 && len(key) == 0 {
		ephemeral, err := internal.NewCSRFToken()
		if err != nil {
			return nil, err
		}
		logger.Warn("no token signing key configured; using an ephemeral key")
		key = []byte(ephemeral)
	}
	return jwt.NewManager(jwt.Config{
		TTL:           cfg.TTL,
		SigningMethod: jwt.SigningMethod(cfg.SigningMethod),
		PrivateKey:    key,
		PublicKey:     []byte(cfg.VerifyKey),
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		Leeway:        cfg.Leeway,
	})
}

func rateTiers(cfg RateLimitConfig) rate.Tiers {
	policy := func(p RatePolicy) rate.Policy {
		return rate.Policy{Requests: p.Requests, Window: p.Window}
	}
	return rate.Tiers{
		Default: policy(cfg.Default),
		Auth:    policy(cfg.Auth),
		Admin:   policy(cfg.Admin),
		Webhook: policy(cfg.Webhook),
	}
}
