// Package store provides SQLite-backed durable storage for settlement logs
// and committed session state.
//
// The store holds three tables:
//   - settlements: the append-only settlement log, one row per (session, seq)
//   - snapshots: the latest committed state of each session with its digest
//   - sessions: kind and creator of every session that ever settled
//
// # Critical Patterns
//
// Idempotent appends
//   - PRIMARY KEY(session_id, seq) with ON CONFLICT DO NOTHING
//   - A tick whose write failed is retried whole; rows already stored are
//     skipped
//
// Logical time only
//   - All ordering uses seq INTEGER, never timestamps
//   - Reads are ORDER BY seq ASC so replay sees the exact settlement order
//
// Canonical payloads
//   - Intents, outcomes and states are stored as canonical JSON (package
//     canon) so the same settlement always produces the same bytes
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
