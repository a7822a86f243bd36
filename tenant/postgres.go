package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goGate/internal/pgstore"
	"github.com/jackc/pgx/v5"
)

// PostgresProvider reads tenants from the gogate_tenants table.
type PostgresProvider struct {
	db pgstore.Querier
}

var _ Provider = (*PostgresProvider)(nil)

// NewPostgresProvider creates a provider over db, typically a *pgxpool.Pool.
func NewPostgresProvider(db pgstore.Querier) *PostgresProvider {
	return &PostgresProvider{db: db}
}

// Lookup implements [Provider].
func (p *PostgresProvider) Lookup(ctx context.Context, id string) (*Context, error) {
	var (
		t    Context
		plan string
	)
	err := p.db.QueryRow(ctx, `
		SELECT id, name, plan, active,
		       gdpr_enabled, pci_compliance, audit_logging, data_retention_days,
		       max_users, max_bookings, api_rate_limit, storage_limit_mb
		FROM gogate_tenants
		WHERE id = $1
	`, id).Scan(
		&t.ID, &t.Name, &plan, &t.Active,
		&t.Compliance.GDPREnabled, &t.Compliance.PCICompliance, &t.Compliance.AuditLogging, &t.Compliance.DataRetentionDays,
		&t.Limits.MaxUsers, &t.Limits.MaxBookings, &t.Limits.APIRateLimit, &t.Limits.StorageLimitMB,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUnknownTenant
	}
	if err != nil {
		return nil, fmt.Errorf("querying tenant: %w", err)
	}
	t.Plan = Plan(plan)
	return &t, nil
}

// Upsert inserts or replaces t.
func (p *PostgresProvider) Upsert(ctx context.Context, t Context) error {
	if t.Plan == "" {
		t.Plan = PlanFree
	}
	_, err := p.db.Exec(ctx, `
		INSERT INTO gogate_tenants (
			id, name, plan, active,
			gdpr_enabled, pci_compliance, audit_logging, data_retention_days,
			max_users, max_bookings, api_rate_limit, storage_limit_mb
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			plan = EXCLUDED.plan,
			active = EXCLUDED.active,
			gdpr_enabled = EXCLUDED.gdpr_enabled,
			pci_compliance = EXCLUDED.pci_compliance,
			audit_logging = EXCLUDED.audit_logging,
			data_retention_days = EXCLUDED.data_retention_days,
			max_users = EXCLUDED.max_users,
			max_bookings = EXCLUDED.max_bookings,
			api_rate_limit = EXCLUDED.api_rate_limit,
			storage_limit_mb = EXCLUDED.storage_limit_mb
	`,
		t.ID, t.Name, string(t.Plan), t.Active,
		t.Compliance.GDPREnabled, t.Compliance.PCICompliance, t.Compliance.AuditLogging, t.Compliance.DataRetentionDays,
		t.Limits.MaxUsers, t.Limits.MaxBookings, t.Limits.APIRateLimit, t.Limits.StorageLimitMB,
	)
	if err != nil {
		return fmt.Errorf("upserting tenant: %w", err)
	}
	return nil
}
