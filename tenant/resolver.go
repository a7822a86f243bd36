package tenant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// HeaderName carries an explicit tenant identifier.
const HeaderName = "X-Tenant-ID"

var (
	// ErrNoTenant means the request names no tenant.
	ErrNoTenant = errors.New("no tenant in request")
	// ErrUnknownTenant means the named tenant does not exist or is inactive.
	ErrUnknownTenant = errors.New("unknown tenant")
)

var reservedLabels = map[string]struct{}{
	"www":       {},
	"localhost": {},
}

// ExtractID returns the tenant identifier named by r, or "" when none.
// It performs no lookup.
func ExtractID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(HeaderName)); id != "" {
		return id
	}
	return subdomain(r.Host)
}

func subdomain(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	labels := strings.Split(host, ".")
	if len(labels) < 3 {
		return ""
	}
	if _, reserved := reservedLabels[labels[0]]; reserved {
		return ""
	}
	return labels[0]
}

// Resolver turns a request into a tenant [Context].
type Resolver struct {
	provider Provider
}

// NewResolver creates a [Resolver] loading metadata from provider.
func NewResolver(provider Provider) *Resolver {
	return &Resolver{provider: provider}
}

// Resolve returns the tenant addressed by r. It fails with [ErrNoTenant]
// when r names none and [ErrUnknownTenant] when the tenant is missing or
// inactive; other errors come from the provider.
func (res *Resolver) Resolve(ctx context.Context, r *http.Request) (*Context, error) {
	id := ExtractID(r)
	if id == "" {
		return nil, ErrNoTenant
	}
	return res.Lookup(ctx, id)
}

// Lookup loads the active tenant id.
func (res *Resolver) Lookup(ctx context.Context, id string) (*Context, error) {
	if res.provider == nil {
		return nil, fmt.Errorf("tenant: no provider configured")
	}
	tc, err := res.provider.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tc.Active {
		return nil, ErrUnknownTenant
	}
	return tc, nil
}
