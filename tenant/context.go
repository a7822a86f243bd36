package tenant

// Plan is a tenant subscription tier.
type Plan string

const (
	PlanFree         Plan = "free"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

// Compliance holds the regulatory switches of a tenant.
type Compliance struct {
	GDPREnabled       bool `json:"gdpr_enabled"`
	PCICompliance     bool `json:"pci_compliance"`
	AuditLogging      bool `json:"audit_logging"`
	DataRetentionDays int  `json:"data_retention_days"`
}

// Limits are plan-derived quotas consulted by downstream policy. Zero means
// unlimited.
type Limits struct {
	MaxUsers       int `json:"max_users"`
	MaxBookings    int `json:"max_bookings"`
	APIRateLimit   int `json:"api_rate_limit"`
	StorageLimitMB int `json:"storage_limit_mb"`
}

// Context is the resolved tenant of a request.
type Context struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Plan       Plan       `json:"plan"`
	Compliance Compliance `json:"compliance"`
	Limits     Limits     `json:"limits"`
	Active     bool       `json:"active"`
}

// PlanLimits returns the default limits of plan.
func PlanLimits(plan Plan) Limits {
	switch plan {
	case PlanEnterprise:
		return Limits{APIRateLimit: 1000, StorageLimitMB: 100_000}
	case PlanProfessional:
		return Limits{MaxUsers: 50, MaxBookings: 10_000, APIRateLimit: 300, StorageLimitMB: 10_000}
	default:
		return Limits{MaxUsers: 5, MaxBookings: 500, APIRateLimit: 100, StorageLimitMB: 1_000}
	}
}
