// Package store provides SQLite-backed durable storage for the audit log of
// causal state machine evaluations.
//
// Each evaluation is one row: the state id and version, the input value
// (lossless tagged JSON) and its canonical content hash, whether the action
// fired, the error and its kind if any, and the explain trace that says why.
//
// The store never persists the registry itself. Registered states and
// their causaloids belong to the process that built them.
//
// # Critical Patterns
//
// Logical Time
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - GetLastSeq lets a restarted CSM resume its clock after the log
//
// Deterministic Query Results
//   - All queries MUST include: ORDER BY seq ASC, id ASC COLLATE BINARY
//
// Idempotent Writes
//   - Evaluation ids are unique; rewriting a record is a no-op
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
