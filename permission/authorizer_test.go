package permission

import (
	"context"
	"errors"
	"testing"
)

type failingProvider struct{ err error }

func (f failingProvider) RoleOf(context.Context, string, string) (string, error) {
	return "", f.err
}

func TestAuthorize(t *testing.T) {
	provider := NewStaticRoleProvider("")
	provider.Assign("acme", "alice", RoleAdmin)
	provider.Assign("acme", "bob", RoleCustomer)

	a, err := NewAuthorizer(nil, provider)
	if err != nil {
		t.Fatalf("new authorizer: %v", err)
	}
	ctx := context.Background()

	d, err := a.Authorize(ctx, "alice", "acme", TenantManage)
	if err != nil || !d.Allowed || d.Role != RoleAdmin {
		t.Fatalf("admin decision %+v %v", d, err)
	}
	d, _ = a.Authorize(ctx, "bob", "acme", TenantManage)
	if d.Allowed || d.Role != RoleCustomer {
		t.Fatalf("customer must be denied: %+v", d)
	}
	d, err = a.Authorize(ctx, "carol", "acme", ServiceRead)
	if err != nil || d.Allowed {
		t.Fatalf("user without role must be denied without error: %+v %v", d, err)
	}
	d, _ = a.Authorize(ctx, "alice", "other", ServiceRead)
	if d.Allowed {
		t.Fatal("role in one tenant must not grant in another")
	}
}

func TestAuthorizeWithoutPermissionResolvesRole(t *testing.T) {
	provider := NewStaticRoleProvider("")
	provider.Assign("acme", "alice", RoleStaff)
	a, _ := NewAuthorizer(nil, provider)

	d, err := a.Authorize(context.Background(), "alice", "acme", "")
	if err != nil || !d.Allowed || d.Role != RoleStaff {
		t.Fatalf("unexpected decision %+v %v", d, err)
	}
	if len(d.Permissions) == 0 {
		t.Fatal("expected the staff grants")
	}

	d, err = a.Authorize(context.Background(), "nobody", "acme", "")
	if err != nil || !d.Allowed || d.Role != "" || len(d.Permissions) != 0 {
		t.Fatalf("user without role: %+v %v", d, err)
	}
}

func TestAuthorizeProviderFailure(t *testing.T) {
	boom := errors.New("db down")
	a, _ := NewAuthorizer(nil, failingProvider{err: boom})
	if _, err := a.Authorize(context.Background(), "u", "t", ServiceRead); !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if _, _, err := a.Role(context.Background(), "u", "t"); !errors.Is(err, boom) {
		t.Fatalf("expected provider error from Role, got %v", err)
	}
}

func TestAuthorizerRole(t *testing.T) {
	provider := NewStaticRoleProvider(RoleGuest)
	a, _ := NewAuthorizer(nil, provider)
	role, perms, err := a.Role(context.Background(), "u", "acme")
	if err != nil || role != RoleGuest || len(perms) != 3 {
		t.Fatalf("unexpected role %q perms %v err %v", role, perms, err)
	}
}

func TestNewAuthorizerRequiresProvider(t *testing.T) {
	if _, err := NewAuthorizer(nil, nil); err == nil {
		t.Fatal("expected error without provider")
	}
}
