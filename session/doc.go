// Package session owns the session lifecycle: creation under a per-user
// concurrency limit, validation with device-fingerprint checks, sliding
// refresh, idempotent invalidation, expiry sweeps and retention purges.
//
// # Storage
//
// [Store] abstracts persistence. [RedisStore] keeps JSON records in Redis and
// serializes writes with WATCH/MULTI transactions; [MemoryStore] guards a map
// with a mutex. Both make the concurrency-limit check-and-evict atomic with
// the insert.
//
// # Device fingerprint policy
//
// A fingerprint mismatch is reported and recorded but does not end the
// session, since proxies and NAT churn produce false positives. Repeated
// mismatches can be escalated to an invalidation with [MismatchEscalation].
//
// # What this package must NOT do
//
//   - Import goGate, jwt, or permission (no upward imports).
//   - Make HTTP or authorization decisions.
package session
