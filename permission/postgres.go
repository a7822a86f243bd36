package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goGate/internal/pgstore"
	"github.com/jackc/pgx/v5"
)

// PostgresRoleProvider reads assignments from the gogate_user_roles table.
type PostgresRoleProvider struct {
	db pgstore.Querier
}

var _ RoleProvider = (*PostgresRoleProvider)(nil)

// NewPostgresRoleProvider creates a provider over db, typically a *pgxpool.Pool.
func NewPostgresRoleProvider(db pgstore.Querier) *PostgresRoleProvider {
	return &PostgresRoleProvider{db: db}
}

// RoleOf implements [RoleProvider].
func (p *PostgresRoleProvider) RoleOf(ctx context.Context, userID, tenantID string) (string, error) {
	var role string
	err := p.db.QueryRow(ctx,
		"SELECT role FROM gogate_user_roles WHERE tenant_id = $1 AND user_id = $2",
		tenantID, userID,
	).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoRole
	}
	if err != nil {
		return "", fmt.Errorf("querying role: %w", err)
	}
	return role, nil
}

// Assign upserts the role of userID within tenantID.
func (p *PostgresRoleProvider) Assign(ctx context.Context, tenantID, userID, role string) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO gogate_user_roles (tenant_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET role = EXCLUDED.role, granted_at = now()
	`, tenantID, userID, role)
	if err != nil {
		return fmt.Errorf("assigning role: %w", err)
	}
	return nil
}

// Revoke deletes the assignment of userID within tenantID.
func (p *PostgresRoleProvider) Revoke(ctx context.Context, tenantID, userID string) error {
	if _, err := p.db.Exec(ctx,
		"DELETE FROM gogate_user_roles WHERE tenant_id = $1 AND user_id = $2",
		tenantID, userID,
	); err != nil {
		return fmt.Errorf("revoking role: %w", err)
	}
	return nil
}
