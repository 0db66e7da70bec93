// Package store provides SQLite-backed durable storage for handler
// exchanges.
//
// The store is an append-only log with:
//   - Runs: one row per test run against a resource type
//   - Exchanges: every request sent to a handler and the progress event
//     (or transport error) it produced, tagged with the scenario
//
// # Ordering
//
// All ordering uses seq INTEGER from a logical clock, never timestamps.
// Every query that returns more than one row ends in
// ORDER BY seq ASC, id ASC COLLATE BINARY, so a replayed run reads back
// identically.
//
// # Identity
//
// Run and exchange IDs are content-addressed (canonical JSON and SHA-256
// with domain separation, see internal/canonical). Writing the same
// exchange twice is a no-op.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
