package rate

import (
	"strings"
	"time"
)

// Tier is a route class with its own limit.
type Tier string

const (
	TierDefault Tier = "default"
	TierAuth    Tier = "auth"
	TierAdmin   Tier = "admin"
	TierWebhook Tier = "webhook"
)

// Policy is a limit of Requests per Window.
type Policy struct {
	Requests int
	Window   time.Duration
}

// Tiers maps each route class to its policy.
type Tiers struct {
	Default Policy
	Auth    Policy
	Admin   Policy
	Webhook Policy
}

// DefaultTiers returns the stock limits for each route class.
func DefaultTiers() Tiers {
	return Tiers{
		Default: Policy{Requests: 100, Window: time.Minute},
		Auth:    Policy{Requests: 5, Window: 5 * time.Minute},
		Admin:   Policy{Requests: 10, Window: time.Minute},
		Webhook: Policy{Requests: 1000, Window: time.Minute},
	}
}

// For returns the policy for tier, falling back to Default.
func (t Tiers) For(tier Tier) Policy {
	switch tier {
	case TierAuth:
		return t.Auth
	case TierAdmin:
		return t.Admin
	case TierWebhook:
		return t.Webhook
	default:
		return t.Default
	}
}

// Classify picks the route class for path.
func Classify(path string) Tier {
	switch {
	case strings.Contains(path, "/api/auth"):
		return TierAuth
	case strings.Contains(path, "/api/admin"):
		return TierAdmin
	case strings.Contains(path, "webhook"):
		return TierWebhook
	default:
		return TierDefault
	}
}

// Key composes a limiter key from tenant, caller identity and path. The
// identity is the user ID when known, else the client IP.
func Key(tenantID, userID, ip, path string) string {
	if tenantID == "" {
		tenantID = "anonymous"
	}
	identity := userID
	if identity == "" {
		identity = ip
	}
	if identity == "" {
		identity = "unknown"
	}
	return tenantID + ":" + identity + ":" + path
}
