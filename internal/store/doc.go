// Package store provides SQLite-backed storage for turingloom.
//
// The store holds:
//   - Preferences: key/value pairs (the interface language)
//   - Programs: named rule documents with their content hash
//   - Runs: recorded executions of a program
//   - Steps: every applied transition of a run, ordered by seq
//
// # Ordering
//
// Step records are ordered by the engine's logical step sequence (seq),
// never by wall time. Runs are listed newest first by started_at with the
// id as tie breaker, which is stable because run ids are UUIDv7.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Program hashes come from document.Hash (RFC 8785 canonical JSON and
// SHA-256 with domain separation).
package store
