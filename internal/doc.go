// Package internal holds helpers private to goGate: random identifiers and
// tokens, device binding hashes, and the injectable clock.
//
// Sub-packages:
//
//   - audit: buffered delivery of security events to sinks
//   - rate: fixed-window counters on Redis or in memory
//   - pgstore: Postgres pool, migrations and test container helpers
package internal
