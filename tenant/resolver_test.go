package tenant_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goGate/tenant"
)

func request(host, header string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
	r.Host = host
	if header != "" {
		r.Header.Set(tenant.HeaderName, header)
	}
	return r
}

func TestExtractID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		host, header, want string
	}{
		{"acme.booking.example", "", "acme"},
		{"acme.booking.example:8443", "", "acme"},
		{"ACME.Booking.Example", "", "acme"},
		{"acme.booking.example", "override", "override"},
		{"booking.example", "  spaced ", "spaced"},
		{"booking.example", "", ""},
		{"www.booking.example", "", ""},
		{"localhost.booking.example", "", ""},
		{"localhost:3000", "", ""},
		{"10.0.0.12", "", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tenant.ExtractID(request(tc.host, tc.header)), "host=%q header=%q", tc.host, tc.header)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	p := tenant.NewStaticProvider(
		tenant.Context{ID: "acme", Name: "Acme", Plan: tenant.PlanEnterprise, Active: true},
		tenant.Context{ID: "dormant", Name: "Dormant", Active: false},
	)
	res := tenant.NewResolver(p)
	ctx := context.Background()

	tc, err := res.Resolve(ctx, request("acme.booking.example", ""))
	require.NoError(t, err)
	assert.Equal(t, "Acme", tc.Name)
	assert.Equal(t, tenant.PlanEnterprise, tc.Plan)

	_, err = res.Resolve(ctx, request("www.booking.example", ""))
	assert.ErrorIs(t, err, tenant.ErrNoTenant)

	_, err = res.Resolve(ctx, request("booking.example", "ghost"))
	assert.ErrorIs(t, err, tenant.ErrUnknownTenant)

	_, err = res.Resolve(ctx, request("dormant.booking.example", ""))
	assert.ErrorIs(t, err, tenant.ErrUnknownTenant)
}

type brokenProvider struct{}

func (brokenProvider) Lookup(context.Context, string) (*tenant.Context, error) {
	return nil, errors.New("metadata service down")
}

func TestResolveProviderFailure(t *testing.T) {
	t.Parallel()

	_, err := tenant.NewResolver(brokenProvider{}).Resolve(context.Background(), request("x", "acme"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, tenant.ErrUnknownTenant)
}

func TestPlanLimits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 100, tenant.PlanLimits(tenant.PlanFree).APIRateLimit)
	assert.Equal(t, 300, tenant.PlanLimits(tenant.PlanProfessional).APIRateLimit)
	assert.Zero(t, tenant.PlanLimits(tenant.PlanEnterprise).MaxUsers)
}
