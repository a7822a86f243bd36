package permission

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
)

func TestMaskSetClearHas(t *testing.T) {
	var m Mask
	for _, bit := range []int{0, 63, 64, 126} {
		m.Set(bit)
		if !m.Has(bit) {
			t.Fatalf("bit %d not set", bit)
		}
		m.Clear(bit)
		if m.Has(bit) {
			t.Fatalf("bit %d not cleared", bit)
		}
	}
	m.Set(-1)
	m.Set(MaxBits)
	if m != (Mask{}) {
		t.Fatal("out-of-range bits must be ignored")
	}
}

func TestMaskRootGrantsAll(t *testing.T) {
	var m Mask
	m.Set(rootBit)
	if !m.Root() || !m.Has(5) || !m.Has(100) {
		t.Fatal("root mask must grant every bit")
	}
}

func TestRegistryAssignsStableBits(t *testing.T) {
	r := NewRegistry()
	a, err := r.Register("a:read")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	again, _ := r.Register("a:read")
	if a != again {
		t.Fatal("re-registering must return the same bit")
	}
	if bit, _ := r.Register(Wildcard); bit != rootBit {
		t.Fatal("wildcard must map to the root bit")
	}
	r.Freeze()
	if _, err := r.Register("b:read"); !errors.Is(err, ErrRegistryFrozen) {
		t.Fatalf("expected ErrRegistryFrozen, got %v", err)
	}
	if r.Count() != 1 {
		t.Fatalf("expected 1 permission, got %d", r.Count())
	}
}

func TestRegistryLimit(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < rootBit; i++ {
		if _, err := r.Register("p" + string(rune('A'+i/26)) + string(rune('a'+i%26))); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}
	if _, err := r.Register("overflow"); !errors.Is(err, ErrPermissionLimit) {
		t.Fatalf("expected ErrPermissionLimit, got %v", err)
	}
}

func TestDefaultRoleTable(t *testing.T) {
	table, err := NewDefaultRoleTable()
	if err != nil {
		t.Fatalf("default table: %v", err)
	}
	if table.Count() != 4 {
		t.Fatalf("expected 4 roles, got %d", table.Count())
	}

	cases := []struct {
		role, perm string
		want       bool
	}{
		{RoleAdmin, BillingManage, true},
		{RoleAdmin, "anything:else", true},
		{RoleStaff, AppointmentManageAll, true},
		{RoleStaff, BillingManage, false},
		{RoleCustomer, AppointmentUpdate, true},
		{RoleCustomer, AppointmentDelete, false},
		{RoleGuest, ServiceRead, true},
		{RoleGuest, AppointmentRead, false},
		{"ghost", ServiceRead, false},
		{RoleStaff, "unregistered:perm", false},
	}
	for _, tc := range cases {
		if got := table.Has(tc.role, tc.perm); got != tc.want {
			t.Errorf("Has(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}

	if got := table.Permissions(RoleAdmin); !slices.Equal(got, []string{Wildcard}) {
		t.Fatalf("admin permissions = %v", got)
	}
	guest := table.Permissions(RoleGuest)
	if !slices.Equal(guest, []string{AppointmentCreate, ProductRead, ServiceRead}) {
		t.Fatalf("guest permissions = %v", guest)
	}
	if err := table.RegisterRole("late", nil); err == nil {
		t.Fatal("frozen table must reject new roles")
	}
}

func TestRegisterRoleRejectsDuplicates(t *testing.T) {
	table := NewRoleTable(nil)
	if err := table.RegisterRole("ops", []string{"deploy:run"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := table.RegisterRole("ops", nil); err == nil {
		t.Fatal("expected duplicate role error")
	}
	if err := table.RegisterRole("", nil); err == nil {
		t.Fatal("expected empty name error")
	}
	if !table.Has("ops", "deploy:run") {
		t.Fatal("registered grant missing")
	}
}

func TestDisplayName(t *testing.T) {
	if DisplayName(ProductInventory) != "Manage Inventory" {
		t.Fatal("unexpected display name")
	}
	if DisplayName("custom:perm") != "custom:perm" {
		t.Fatal("unknown permissions display as themselves")
	}
}

func TestStaticRoleProvider(t *testing.T) {
	p := NewStaticRoleProvider("")
	ctx := context.Background()
	if _, err := p.RoleOf(ctx, "u-1", "acme"); !errors.Is(err, ErrNoRole) {
		t.Fatalf("expected ErrNoRole, got %v", err)
	}
	p.Assign("acme", "u-1", RoleStaff)
	if role, _ := p.RoleOf(ctx, "u-1", "acme"); role != RoleStaff {
		t.Fatalf("expected staff, got %q", role)
	}
	if _, err := p.RoleOf(ctx, "u-1", "other"); !errors.Is(err, ErrNoRole) {
		t.Fatal("assignments must be tenant scoped")
	}
	p.Revoke("acme", "u-1")
	p.Fallback = RoleGuest
	if role, _ := p.RoleOf(ctx, "u-1", "acme"); role != RoleGuest {
		t.Fatalf("expected fallback guest, got %q", role)
	}
}

func TestStaticRoleProviderConcurrent(t *testing.T) {
	p := NewStaticRoleProvider(RoleGuest)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Assign("acme", "u", RoleCustomer)
			_, _ = p.RoleOf(context.Background(), "u", "acme")
		}()
	}
	wg.Wait()
}
