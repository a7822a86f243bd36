// Package rate provides the fixed-window rate limiter used by the gateway
// pipeline, with Redis-backed and in-memory backends.
//
// # Window semantics
//
// A window starts on the first hit for a key and lasts for the configured
// duration. Every hit increments the counter atomically with the check; the
// hit that pushes the counter past the limit is rejected. When the window
// elapses the next hit starts a fresh window at count 1.
//
// # Key layout
//
//	<prefix>:<tenant|anonymous>:<user|ip>:<path>
//
// # What this package must NOT do
//
//   - Emit HTTP responses or audit events (the Gateway does that).
//   - Be imported outside the goGate module.
package rate
