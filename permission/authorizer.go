package permission

import (
	"context"
	"errors"
)

// Decision is the outcome of [Authorizer.Authorize].
type Decision struct {
	Allowed bool
	Role    string
	// Permissions lists every grant of Role.
	Permissions []string
}

// Authorizer checks a user's role grants within a tenant.
type Authorizer struct {
	roles    *RoleTable
	provider RoleProvider
}

// NewAuthorizer creates an [Authorizer]. A nil table uses the default
// booking roles.
func NewAuthorizer(roles *RoleTable, provider RoleProvider) (*Authorizer, error) {
	if provider == nil {
		return nil, errors.New("permission: role provider required")
	}
	if roles == nil {
		var err error
		if roles, err = NewDefaultRoleTable(); err != nil {
			return nil, err
		}
	}
	return &Authorizer{roles: roles, provider: provider}, nil
}

// Roles returns the role table.
func (a *Authorizer) Roles() *RoleTable {
	return a.roles
}

// Role resolves the user's role and its grants. A user without a role gets
// an empty role and no permissions.
func (a *Authorizer) Role(ctx context.Context, userID, tenantID string) (string, []string, error) {
	role, err := a.provider.RoleOf(ctx, userID, tenantID)
	if errors.Is(err, ErrNoRole) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	return role, a.roles.Permissions(role), nil
}

// Authorize reports whether the user holds permission within the tenant.
// An empty permission only resolves the role and is always allowed. Only
// provider failures are returned as errors.
func (a *Authorizer) Authorize(ctx context.Context, userID, tenantID, permission string) (Decision, error) {
	role, perms, err := a.Role(ctx, userID, tenantID)
	if err != nil {
		return Decision{}, err
	}
	d := Decision{Role: role, Permissions: perms}
	if permission == "" {
		d.Allowed = true
	} else if role != "" {
		d.Allowed = a.roles.Has(role, permission)
	}
	return d, nil
}
