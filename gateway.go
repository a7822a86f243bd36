package goGate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goGate/csrf"
	"github.com/MrEthical07/goGate/internal"
	"github.com/MrEthical07/goGate/internal/audit"
	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/jwt"
	"github.com/MrEthical07/goGate/permission"
	"github.com/MrEthical07/goGate/session"
	"github.com/MrEthical07/goGate/tenant"
)

// Gateway authenticates inbound requests. It is safe for concurrent use.
//
// Build one with [New] and release its workers with [Gateway.Close].
type Gateway struct {
	config  Config
	logger  *slog.Logger
	clock   internal.Clock
	tiers   rate.Tiers
	limiter *rate.Limiter
	csrf    *csrf.Validator
	tenants *tenant.Resolver
	tokens  *jwt.Manager
	authz   *permission.Authorizer
	audit   *audit.Dispatcher
	metrics *Metrics

	sessions *session.Manager

	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

type rejectInfo struct {
	userID     string
	tenantID   string
	sessionID  string
	retryAfter int
	meta       map[string]string
}

// Authenticate runs the request pipeline: rate limit, CSRF, tenant
// resolution, token extraction, session validation, MFA gate, permission
// check and tenant isolation. The first failing stage produces the
// rejection. A panic in any stage yields a 500 rejection.
func (g *Gateway) Authenticate(ctx context.Context, r *http.Request, opts RouteOptions) (dec Decision) {
	start := g.now()
	req := g.requestInfo(r, start)

	defer func() {
		if p := recover(); p != nil {
			g.logger.ErrorContext(ctx, "authentication panic",
				slog.Any("panic", p),
				slog.String("path", req.Path),
				slog.String("stack", string(debug.Stack())))
			dec = g.reject(ctx, req, fmt.Errorf("%w: panic: %v", ErrSystemError, p), rejectInfo{})
		}
		g.metrics.Observe(MetricAuthenticateLatency, g.now().Sub(start))
	}()

	if g.closed.Load() {
		return g.reject(ctx, req, fmt.Errorf("%w: %v", ErrSystemError, ErrGatewayClosed), rejectInfo{})
	}
	return g.authenticate(ctx, r, req, opts)
}

func (g *Gateway) authenticate(ctx context.Context, r *http.Request, req RequestInfo, opts RouteOptions) Decision {
	token := extractToken(r, g.config.Session.CookieName)
	var (
		claims   *jwt.SessionClaims
		tokenErr error
	)
	if token != "" {
		claims, tokenErr = g.tokens.Parse(token)
	}
	var identity string
	if claims != nil {
		identity = claims.UID
	}

	requested := tenant.ExtractID(r)
	tl := &tenantLookup{resolver: g.tenants, id: requested}

	// -------- RATE LIMIT --------
	if g.config.RateLimit.Enabled {
		policy := g.ratePolicy(ctx, req.Path, tl)
		key := rate.Key(requested, identity, req.IP, req.Path)
		res, err := g.limiter.CheckPolicy(ctx, key, policy)
		if err != nil {
			return g.reject(ctx, req, fmt.Errorf("%w: rate limiter: %v", ErrSystemError, err), rejectInfo{userID: identity})
		}
		if !res.Allowed {
			return g.reject(ctx, req, ErrRateLimitExceeded, rejectInfo{
				userID:     identity,
				retryAfter: res.RetryAfter(g.now()),
				meta: map[string]string{
					"limit": strconv.Itoa(res.Limit),
					"count": strconv.FormatInt(res.Count, 10),
				},
			})
		}
	}

	// -------- CSRF --------
	if g.config.CSRF.Enabled {
		in := csrf.FromRequest(r)
		in.SessionAuthenticated = token != ""
		in.ServiceAuthenticated = g.serviceCredentialValid(r)
		if err := g.csrf.Check(in); err != nil {
			return g.reject(ctx, req, fmt.Errorf("%w: %w", ErrCSRFViolation, err), rejectInfo{userID: identity})
		}
	}

	// -------- TENANT --------
	var (
		tc            *tenant.Context
		unknownTenant error
	)
	if !opts.SkipTenant {
		var err error
		tc, err = tl.get(ctx)
		if err != nil {
			info := rejectInfo{userID: identity, tenantID: requested}
			switch {
			case errors.Is(err, tenant.ErrUnknownTenant) && claims != nil:
				// Settled against the session tenant at the isolation stage.
				unknownTenant = err
			case errors.Is(err, tenant.ErrNoTenant) || errors.Is(err, tenant.ErrUnknownTenant):
				return g.reject(ctx, req, fmt.Errorf("%w: %v", ErrInvalidTenantContext, err), info)
			default:
				return g.reject(ctx, req, fmt.Errorf("%w: tenant lookup: %v", ErrSystemError, err), info)
			}
		}
	}
	tenantID := ""
	if tc != nil {
		tenantID = tc.ID
	}

	// -------- TOKEN --------
	if token == "" {
		return g.reject(ctx, req, ErrMissingCredential, rejectInfo{tenantID: tenantID})
	}
	if tokenErr != nil {
		info := rejectInfo{tenantID: tenantID}
		if errors.Is(tokenErr, jwt.ErrTokenExpired) {
			info = g.expireSession(ctx, token, info)
		}
		return g.reject(ctx, req, fmt.Errorf("%w: %v", ErrInvalidSession, tokenErr), info)
	}

	// -------- SESSION --------
	res, err := g.sessions.Validate(ctx, claims.SID, session.RequestInfo{
		IP:          req.IP,
		UserAgent:   req.UserAgent,
		Fingerprint: session.Fingerprint(r.Header),
		Method:      req.Method,
		Path:        req.Path,
	})
	info := rejectInfo{userID: claims.UID, tenantID: claims.TID, sessionID: claims.SID}
	if err != nil {
		return g.reject(ctx, req, fmt.Errorf("%w: session store: %v", ErrSystemError, err), info)
	}
	if !res.Valid {
		if res.Reason == session.ReasonDeviceMismatch {
			g.metrics.Inc(MetricDeviceMismatch)
		}
		return g.reject(ctx, req, fmt.Errorf("%w: %s", ErrInvalidSession, res.Reason), info)
	}
	sess := res.Session
	if sess.UserID != claims.UID || sess.TenantID != claims.TID {
		return g.reject(ctx, req, fmt.Errorf("%w: token does not match session", ErrInvalidSession), info)
	}

	// -------- MFA --------
	if g.mfaRequired(opts, req) && !sess.MFAVerified {
		return g.reject(ctx, req, ErrMFARequired, info)
	}

	// -------- PERMISSION --------
	authz, err := g.authz.Authorize(ctx, sess.UserID, sess.TenantID, opts.Permission)
	if err != nil {
		return g.reject(ctx, req, fmt.Errorf("%w: role lookup: %v", ErrSystemError, err), info)
	}
	role, perms := authz.Role, authz.Permissions
	if !authz.Allowed {
		info.meta = map[string]string{"permission": opts.Permission, "role": role}
		return g.reject(ctx, req, ErrPermissionDenied, info)
	}

	// -------- TENANT ISOLATION --------
	// An unknown tenant other than the session's own is reported as an
	// isolation violation, the same as a known one.
	if !opts.SkipTenant {
		reqTenant := requested
		if tc != nil {
			reqTenant = tc.ID
		}
		if g.config.Tenant.Isolation && reqTenant != sess.TenantID {
			info.meta = map[string]string{"requested_tenant": reqTenant}
			return g.reject(ctx, req, ErrTenantIsolationViolation, info)
		}
		if unknownTenant != nil {
			info.tenantID = requested
			return g.reject(ctx, req, fmt.Errorf("%w: %v", ErrInvalidTenantContext, unknownTenant), info)
		}
	}

	if perms == nil {
		perms = []string{}
	}
	ac := &AuthContext{
		UserID:      sess.UserID,
		TenantID:    sess.TenantID,
		SessionID:   sess.SessionID,
		UserRole:    role,
		Permissions: perms,
		MFAVerified: sess.MFAVerified,
		Tenant:      tc,
		Request:     req,
	}

	g.metrics.Inc(MetricRequestAuthenticated)
	if g.audited(req, tc) {
		g.emit(ctx, req, eventOutcome{
			eventType:   EventRequestAuthenticated,
			severity:    SeverityLow,
			description: "request authenticated",
			success:     true,
			userID:      ac.UserID,
			tenantID:    ac.TenantID,
			sessionID:   ac.SessionID,
			meta:        map[string]string{"role": role, "request_id": req.RequestID},
		})
	}

	return Decision{Proceed: true, Context: ac}
}

// tenantLookup resolves the requested tenant at most once per request.
type tenantLookup struct {
	resolver *tenant.Resolver
	id       string
	done     bool
	tc       *tenant.Context
	err      error
}

func (l *tenantLookup) get(ctx context.Context) (*tenant.Context, error) {
	if !l.done {
		l.done = true
		if l.id == "" {
			l.err = tenant.ErrNoTenant
		} else {
			l.tc, l.err = l.resolver.Lookup(ctx, l.id)
		}
	}
	return l.tc, l.err
}

// ratePolicy returns the limit for path. On the default tier a tenant plan
// with an API rate limit replaces the request count; the window is kept.
func (g *Gateway) ratePolicy(ctx context.Context, path string, tl *tenantLookup) rate.Policy {
	tier := rate.Classify(path)
	policy := g.tiers.For(tier)
	if tier != rate.TierDefault || tl.id == "" {
		return policy
	}
	tc, err := tl.get(ctx)
	if err != nil || tc.Limits.APIRateLimit <= 0 {
		return policy
	}
	policy.Requests = tc.Limits.APIRateLimit
	return policy
}

// expireSession records the expiry of the session behind a correctly
// signed but expired token. Live sessions are left untouched.
func (g *Gateway) expireSession(ctx context.Context, token string, info rejectInfo) rejectInfo {
	claims, err := g.tokens.ParseExpired(token)
	if err != nil {
		return info
	}
	info.userID, info.sessionID = claims.UID, claims.SID
	if _, err := g.sessions.ExpireIfDue(ctx, claims.SID); err != nil {
		g.logger.WarnContext(ctx, "could not record session expiry",
			slog.String("session_id", claims.SID),
			slog.Any("error", err))
	}
	return info
}

func (g *Gateway) mfaRequired(opts RouteOptions, req RequestInfo) bool {
	if opts.RequireMFA || g.config.Security.RequireMFA {
		return true
	}
	return !csrf.Safe(req.Method) && matchesPrefix(g.config.Security.MFAPaths, req.Path)
}

func (g *Gateway) audited(req RequestInfo, tc *tenant.Context) bool {
	if tc != nil && tc.Compliance.AuditLogging {
		return true
	}
	return matchesPrefix(g.config.Security.AuditPaths, req.Path)
}

func matchesPrefix(prefixes []string, path string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (g *Gateway) requestInfo(r *http.Request, now time.Time) RequestInfo {
	path := ""
	if r.URL != nil {
		path = r.URL.Path
	}
	return RequestInfo{
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
		Method:    r.Method,
		Path:      path,
		Timestamp: now,
		RequestID: requestID(r),
	}
}

// reject builds the rejection for err, counts it, logs it and emits its
// security event. The client body never carries err's detail.
func (g *Gateway) reject(ctx context.Context, req RequestInfo, err error, info rejectInfo) Decision {
	c := classify(err)
	g.metrics.Inc(c.metric)

	h := make(http.Header, 5)
	h.Set("Content-Type", "application/json")
	h.Set("WWW-Authenticate", "Bearer")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	body := ResponseBody{Error: publicMessage(err), Code: c.code}
	if info.retryAfter > 0 {
		h.Set("Retry-After", strconv.Itoa(info.retryAfter))
		body.RetryAfter = info.retryAfter
	}

	level := slog.LevelWarn
	if c.status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	g.logger.Log(ctx, level, "request rejected",
		slog.String("code", c.code),
		slog.Int("status", c.status),
		slog.String("reason", err.Error()),
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.String("ip", req.IP),
		slog.String("request_id", req.RequestID))

	meta := info.meta
	if meta == nil {
		meta = make(map[string]string, 1)
	}
	meta["request_id"] = req.RequestID
	g.emit(ctx, req, eventOutcome{
		eventType:   c.event,
		severity:    c.severity,
		description: err.Error(),
		code:        c.code,
		userID:      info.userID,
		tenantID:    info.tenantID,
		sessionID:   info.sessionID,
		meta:        meta,
	})

	return Decision{
		Response: &Response{Status: c.status, Headers: h, Body: body},
		Err:      err,
	}
}

func (g *Gateway) now() time.Time {
	return g.clock.Now()
}

func (g *Gateway) goWorker(fn func() error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
			g.logger.Error("gateway worker stopped", slog.Any("error", err))
		}
	}()
}

// Close stops the background workers and flushes pending audit events.
// It is safe to call more than once.
func (g *Gateway) Close() {
	if g == nil || !g.closed.CompareAndSwap(false, true) {
		return
	}
	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()
	g.audit.Close()
}

// Config returns a copy of the active configuration.
func (g *Gateway) Config() Config {
	return cloneConfig(g.config)
}

// Sessions exposes the session manager for administrative operations.
func (g *Gateway) Sessions() *session.Manager {
	return g.sessions
}

// Authorizer exposes the role table and role provider in use.
func (g *Gateway) Authorizer() *permission.Authorizer {
	return g.authz
}

// Metrics returns the gateway counters.
func (g *Gateway) Metrics() *Metrics {
	return g.metrics
}

// MetricsSnapshot copies the gateway counters.
func (g *Gateway) MetricsSnapshot() MetricsSnapshot {
	if g == nil || g.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return g.metrics.Snapshot()
}

// AuditDropped returns how many security events were dropped on a full
// buffer.
func (g *Gateway) AuditDropped() uint64 {
	if g == nil {
		return 0
	}
	return g.audit.Dropped()
}
