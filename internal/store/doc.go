// Package store provides a SQLite-backed local cache of imported runs.
//
// The cache holds:
//   - Runs: the raw export payload, its content hash and summary columns
//   - Timeline items: the normalized sequence, one row per item
//   - Dropped records: malformed records skipped during normalization
//
// The cache is a convenience for the CLI (import once, inspect many
// times). Playback never writes to it.
//
// # Critical Patterns
//
// Content-Addressed Imports:
//   - runs.content_hash is ir.RunHash of the payload
//   - Re-importing identical content is a no-op; changed content replaces
//     the run and all of its rows in one transaction
//
// Logical Ordering:
//   - runs.seq is the import order; ListRuns orders by seq, never by time
//   - timeline_items are read ORDER BY ordinal, the normalized order
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity (cascading deletes)
package store
