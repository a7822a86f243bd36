// Package goGate decides, for every inbound request to a multi-tenant
// platform, whether the request may proceed and under which identity,
// tenant and permission set.
//
// The package is designed for concurrent server workloads: [Gateway] methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Pipeline
//
// [Gateway.Authenticate] runs a fixed, fail-fast sequence. Each stage has its
// own status and code:
//
//	rate limit        429 RATE_LIMIT_EXCEEDED
//	csrf              403 CSRF_TOKEN_INVALID
//	tenant            400 INVALID_TENANT
//	token             401 UNAUTHORIZED
//	session           401 UNAUTHORIZED
//	mfa               401 MFA_REQUIRED
//	permission        403 FORBIDDEN
//	tenant isolation  401 TENANT_ISOLATION_VIOLATION
//
// Collaborator failures and panics become 500 AUTH_SYSTEM_ERROR. Every
// rejection emits a security event.
//
// # Architecture boundaries
//
// goGate is the public surface. It exposes [Gateway], [Builder], [Config]
// and value types. Session storage lives in the session package, rate
// limiting and audit dispatch under internal/.
package goGate
