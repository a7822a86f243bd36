package goGate

import "time"

// SecurityReport summarizes the security posture of a running gateway.
type SecurityReport struct {
	ProductionMode          bool
	SigningAlgorithm        string
	EphemeralSigningKey     bool
	SessionTimeout          time.Duration
	SlidingExpiration       bool
	MaxConcurrentSessions   int
	DeviceMismatchThreshold int
	RateLimitingActive      bool
	CSRFActive              bool
	TenantIsolationActive   bool
	GlobalMFA               bool
	MFAPaths                []string
	ServiceAuthConfigured   bool
	AuditActive             bool
}

// SecurityReport returns the posture derived from the active configuration.
func (g *Gateway) SecurityReport() SecurityReport {
	if g == nil {
		return SecurityReport{}
	}
	cfg := g.config

	return SecurityReport{
		ProductionMode:          cfg.Security.ProductionMode,
		SigningAlgorithm:        cfg.Token.SigningMethod,
		EphemeralSigningKey:     cfg.Token.SigningMethod == "hs256" && cfg.Token.SigningKey == "",
		SessionTimeout:          cfg.Session.Timeout,
		SlidingExpiration:       cfg.Session.SlidingExpiration,
		MaxConcurrentSessions:   cfg.Session.MaxConcurrentSessions,
		DeviceMismatchThreshold: cfg.Session.MismatchThreshold,
		RateLimitingActive:      cfg.RateLimit.Enabled,
		CSRFActive:              cfg.CSRF.Enabled,
		TenantIsolationActive:   cfg.Tenant.Isolation,
		GlobalMFA:               cfg.Security.RequireMFA,
		MFAPaths:                cloneStrings(cfg.Security.MFAPaths),
		ServiceAuthConfigured:   cfg.Service.InternalKey != "",
		AuditActive:             cfg.Audit.Enabled,
	}
}
