//go:build integration
// +build integration

package test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/permission"
	"github.com/MrEthical07/goGate/tenant"
)

const (
	signingKey = "0123456789abcdef0123456789abcdef"
	userAgent  = "gogate-integration/1.0"
)

func startRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr
}

func integrationConfig() goGate.Config {
	cfg := goGate.DefaultConfig()
	cfg.Token.SigningKey = signingKey
	cfg.Session.CleanupInterval = 0
	cfg.Tenant.CacheTTL = 0
	return cfg
}

func newIntegrationGateway(t *testing.T, rdb redis.UniversalClient, mutate func(*goGate.Config)) *goGate.Gateway {
	t.Helper()

	cfg := integrationConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	roles := permission.NewStaticRoleProvider(permission.RoleStaff)
	gw, err := goGate.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithTenantProvider(tenant.NewStaticProvider(tenant.Context{ID: "acme", Active: true, Plan: tenant.PlanProfessional})).
		WithRoleProvider(roles).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("build gateway: %v", err)
	}
	t.Cleanup(gw.Close)
	return gw
}

func newRequest(method, path, token string) *http.Request {
	r := httptest.NewRequest(method, path, nil)
	r.Header.Set("User-Agent", userAgent)
	r.Header.Set(tenant.HeaderName, "acme")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func login(t *testing.T, gw *goGate.Gateway, userID string) *goGate.LoginResult {
	t.Helper()
	res, err := gw.Login(context.Background(), goGate.LoginParams{
		UserID:   userID,
		TenantID: "acme",
		Request:  newRequest(http.MethodPost, "/api/auth/login", ""),
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return res
}
