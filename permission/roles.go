package permission

import (
	"errors"
	"fmt"
	"sync"
)

// RoleTable holds the compiled permission mask of every role.
//
// Roles are registered during initialization; after Freeze the table is
// read-only and safe for concurrent use without contention.
type RoleTable struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]Mask
	frozen bool
}

// NewRoleTable creates a table whose roles draw bits from registry. A nil
// registry gets a fresh one.
func NewRoleTable(registry *Registry) *RoleTable {
	if registry == nil {
		registry = NewRegistry()
	}
	return &RoleTable{
		registry: registry,
		roles:    make(map[string]Mask),
	}
}

// Registry returns the permission registry backing the table.
func (t *RoleTable) Registry() *Registry {
	return t.registry
}

// RegisterRole compiles permissions into a mask for role. Unknown
// permission names are registered on the fly while the registry is open.
func (t *RoleTable) RegisterRole(role string, permissions []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return errors.New("role table frozen")
	}
	if role == "" {
		return errors.New("role name empty")
	}
	if _, exists := t.roles[role]; exists {
		return fmt.Errorf("role already registered: %s", role)
	}

	var mask Mask
	for _, perm := range permissions {
		bit, err := t.registry.Register(perm)
		if err != nil {
			return fmt.Errorf("role %s: %w: %s", role, err, perm)
		}
		mask.Set(bit)
	}
	t.roles[role] = mask
	return nil
}

// Mask returns the compiled mask for role.
func (t *RoleTable) Mask(role string) (Mask, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.roles[role]
	return m, ok
}

// Has reports whether role grants permission. Unknown roles and
// unregistered permissions grant nothing, except under a root mask.
func (t *RoleTable) Has(role, permission string) bool {
	m, ok := t.Mask(role)
	if !ok {
		return false
	}
	if m.Root() {
		return true
	}
	bit, ok := t.registry.Bit(permission)
	if !ok {
		return false
	}
	return m.Has(bit)
}

// Permissions lists the grants of role, sorted.
func (t *RoleTable) Permissions(role string) []string {
	m, ok := t.Mask(role)
	if !ok {
		return nil
	}
	return t.registry.Names(m)
}

// Freeze makes the table and its registry read-only.
func (t *RoleTable) Freeze() {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
	t.registry.Freeze()
}

// Count returns the number of registered roles.
func (t *RoleTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.roles)
}
