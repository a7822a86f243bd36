package permission

import (
	"context"
	"errors"
	"sync"
)

// ErrNoRole is returned by a [RoleProvider] when the user holds no role in
// the tenant.
var ErrNoRole = errors.New("no role assigned")

// RoleProvider looks up the role a user holds within a tenant.
type RoleProvider interface {
	RoleOf(ctx context.Context, userID, tenantID string) (string, error)
}

// StaticRoleProvider serves role assignments from memory. Users without an
// assignment get Fallback, or [ErrNoRole] when Fallback is empty.
type StaticRoleProvider struct {
	Fallback string

	mu    sync.RWMutex
	roles map[string]string
}

// NewStaticRoleProvider creates an empty provider with the given fallback role.
func NewStaticRoleProvider(fallback string) *StaticRoleProvider {
	return &StaticRoleProvider{Fallback: fallback, roles: make(map[string]string)}
}

// Assign sets the role of userID within tenantID.
func (p *StaticRoleProvider) Assign(tenantID, userID, role string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.roles == nil {
		p.roles = make(map[string]string)
	}
	p.roles[assignmentKey(tenantID, userID)] = role
}

// Revoke removes the assignment of userID within tenantID.
func (p *StaticRoleProvider) Revoke(tenantID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.roles, assignmentKey(tenantID, userID))
}

// RoleOf implements [RoleProvider].
func (p *StaticRoleProvider) RoleOf(_ context.Context, userID, tenantID string) (string, error) {
	p.mu.RLock()
	role, ok := p.roles[assignmentKey(tenantID, userID)]
	p.mu.RUnlock()
	if ok {
		return role, nil
	}
	if p.Fallback != "" {
		return p.Fallback, nil
	}
	return "", ErrNoRole
}

func assignmentKey(tenantID, userID string) string {
	return tenantID + "\x00" + userID
}
