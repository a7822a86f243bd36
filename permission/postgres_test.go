package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/goGate/internal/pgstore/pgtest"
)

func TestPostgresRoleProvider(t *testing.T) {
	pool := pgtest.Start(t)
	ctx := context.Background()

	if _, err := pool.Exec(ctx, "INSERT INTO gogate_tenants (id, name) VALUES ('acme', 'Acme')"); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}

	p := NewPostgresRoleProvider(pool)
	if _, err := p.RoleOf(ctx, "u-1", "acme"); !errors.Is(err, ErrNoRole) {
		t.Fatalf("expected ErrNoRole, got %v", err)
	}
	if err := p.Assign(ctx, "acme", "u-1", RoleStaff); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := p.Assign(ctx, "acme", "u-1", RoleAdmin); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	role, err := p.RoleOf(ctx, "u-1", "acme")
	if err != nil || role != RoleAdmin {
		t.Fatalf("expected admin, got %q %v", role, err)
	}

	a, _ := NewAuthorizer(nil, p)
	d, err := a.Authorize(ctx, "u-1", "acme", BillingManage)
	if err != nil || !d.Allowed {
		t.Fatalf("expected allowed, got %+v %v", d, err)
	}

	if err := p.Revoke(ctx, "acme", "u-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := p.RoleOf(ctx, "u-1", "acme"); !errors.Is(err, ErrNoRole) {
		t.Fatalf("expected ErrNoRole after revoke, got %v", err)
	}
}
