// Package tenant resolves the tenant a request addresses and loads its
// metadata: plan, compliance flags and plan limits.
//
// The X-Tenant-ID header is authoritative; otherwise the first label of a
// Host with at least three labels names the tenant. Metadata comes from a
// [Provider]: in memory, PostgreSQL, or either behind a Redis cache.
package tenant
