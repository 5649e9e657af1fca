// Package store provides SQLite-backed durable storage for search sessions
// and their run records.
//
// A session is one invocation of the search. Its run records are written
// one by one as the engine appends them to its ledger, so a crashed search
// still leaves every completed evaluation behind.
//
// # Critical Patterns
//
// Run-Level Idempotency
//   - UNIQUE(session_id, run_id) constraint
//   - Writing the same record twice is a silent no-op
//
// Logical Ordering
//   - Sessions are ordered by seq, runs by run_id, NEVER by timestamps
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Session settings are stored as RFC 8785 canonical JSON produced by
// internal/ir.
package store
