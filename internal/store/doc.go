// Package store provides SQLite-backed durable storage for RUM documents.
//
// The store is the Event Writer sink of the scope tree and keeps:
//   - Batches: one row per write context handed out
//   - Documents: every document written, in write order
//   - Events: the external raw events the engine handled, for replay
//
// # Critical Patterns
//
// Write Order:
//   - documents.seq is assigned by SQLite in insert order
//   - All document reads use ORDER BY seq ASC
//   - A view appears once per update; its latest state is the row with the
//     highest document_version
//
// Logical Time:
//   - events.seq is the engine's logical clock, NEVER a timestamp
//   - ReadEvents returns events in seq order for deterministic replay
//
// Encoding:
//   - "json": canonical JSON (sorted keys, NFC strings), byte-stable
//   - "msgpack": compact binary keyed by the same json field names
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
