// Package store provides SQLite-backed persistence for deployed units,
// their state snapshots, and the invocation and event logs.
//
// # Ordering
//
// Every ordered read sorts by the logical clock first and the record id
// second:
//
//	ORDER BY seq ASC, id COLLATE BINARY ASC
//
// Wall-clock time is never stored or used for ordering, so a log replays
// in the same order on any machine.
//
// # Atomicity
//
// CommitInvocation writes the invocation record, its events and the new
// state snapshot in one transaction. A faulted invocation is recorded
// without touching the snapshot.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
