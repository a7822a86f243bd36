package goGate

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goGate/permission"
	"github.com/MrEthical07/goGate/tenant"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const (
	testSigningKey = "0123456789abcdef0123456789abcdef"
	testServiceKey = "internal-service-secret"
	testUserAgent  = "gogate-test/1.0"
	testClientIP   = "203.0.113.7"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureSink struct {
	mu     sync.Mutex
	events []SecurityEvent
}

func (s *captureSink) Emit(_ context.Context, e SecurityEvent) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *captureSink) find(eventType string) (SecurityEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.EventType == eventType {
			return e, true
		}
	}
	return SecurityEvent{}, false
}

type gatewayFixture struct {
	gw      *Gateway
	mr      *miniredis.Miniredis
	clock   *testClock
	sink    *captureSink
	tenants *tenant.StaticProvider
	roles   *permission.StaticRoleProvider
}

type failingRoleProvider struct {
	panic bool
}

func (p failingRoleProvider) RoleOf(context.Context, string, string) (string, error) {
	if p.panic {
		panic("role backend exploded")
	}
	return "", io.ErrUnexpectedEOF
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.SigningKey = testSigningKey
	cfg.Service.InternalKey = testServiceKey
	cfg.Session.CleanupInterval = 0
	cfg.Tenant.CacheTTL = 0
	cfg.Audit.DropIfFull = false
	return cfg
}

func newGatewayFixture(t *testing.T, mutate func(*Config), opts ...func(*Builder)) *gatewayFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	fx := &gatewayFixture{
		mr:    mr,
		clock: newTestClock(),
		sink:  &captureSink{},
		tenants: tenant.NewStaticProvider(
			tenant.Context{ID: "acme", Name: "Acme", Plan: tenant.PlanProfessional, Active: true},
			tenant.Context{ID: "other-tenant", Name: "Other", Plan: tenant.PlanFree, Active: true},
			tenant.Context{ID: "audited", Name: "Audited", Plan: tenant.PlanEnterprise, Active: true,
				Compliance: tenant.Compliance{AuditLogging: true}},
			tenant.Context{ID: "retired", Name: "Retired", Plan: tenant.PlanFree, Active: false},
			tenant.Context{ID: "starter", Name: "Starter", Plan: tenant.PlanFree, Active: true,
				Limits: tenant.Limits{APIRateLimit: 2}},
		),
		roles: permission.NewStaticRoleProvider(""),
	}
	fx.roles.Assign("acme", "alice", permission.RoleStaff)
	fx.roles.Assign("acme", "root", permission.RoleAdmin)
	fx.roles.Assign("acme", "carol", permission.RoleCustomer)
	fx.roles.Assign("audited", "alice", permission.RoleStaff)

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithTenantProvider(fx.tenants).
		WithRoleProvider(fx.roles).
		WithAuditSink(fx.sink).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithClock(fx.clock.Now)
	for _, o := range opts {
		o(b)
	}

	gw, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(gw.Close)
	fx.gw = gw
	return fx
}

// newRequest builds a browser-like request for the acme tenant.
func newRequest(method, path, token string) *http.Request {
	r := httptest.NewRequest(method, path, nil)
	r.Header.Set("User-Agent", testUserAgent)
	r.Header.Set("Accept-Language", "en-US")
	r.Header.Set(HeaderForwardedFor, testClientIP+", 10.0.0.1")
	r.Header.Set(tenant.HeaderName, "acme")
	if token != "" {
		r.AddCookie(&http.Cookie{Name: "enterprise_session", Value: token})
	}
	return r
}

func (fx *gatewayFixture) login(t *testing.T, userID, tenantID string, mfa bool) *LoginResult {
	t.Helper()
	res, err := fx.gw.Login(context.Background(), LoginParams{
		UserID:      userID,
		TenantID:    tenantID,
		MFAVerified: mfa,
		Request:     newRequest(http.MethodPost, "/api/auth/login", ""),
	})
	require.NoError(t, err)
	return res
}

func (fx *gatewayFixture) waitEvent(t *testing.T, eventType string) SecurityEvent {
	t.Helper()
	var ev SecurityEvent
	require.Eventually(t, func() bool {
		var ok bool
		ev, ok = fx.sink.find(eventType)
		return ok
	}, 2*time.Second, 5*time.Millisecond, "event %s not emitted", eventType)
	return ev
}

func withCSRF(r *http.Request, cookie, header string) *http.Request {
	if cookie != "" {
		r.AddCookie(&http.Cookie{Name: "csrf-token", Value: cookie})
	}
	if header != "" {
		r.Header.Set("X-CSRF-Token", header)
	}
	return r
}

func requireRejection(t *testing.T, d Decision, status int, code string) {
	t.Helper()
	require.False(t, d.Proceed)
	require.Nil(t, d.Context)
	require.NotNil(t, d.Response)
	require.Equal(t, status, d.Response.Status)
	require.Equal(t, code, d.Response.Body.Code)
	require.Equal(t, "Bearer", d.Response.Headers.Get("WWW-Authenticate"))
	require.Equal(t, "nosniff", d.Response.Headers.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", d.Response.Headers.Get("X-Frame-Options"))
	require.NotEmpty(t, d.Response.Body.Error)
	require.False(t, strings.Contains(d.Response.Body.Error, "redis"), "detail leaked: %s", d.Response.Body.Error)
}
