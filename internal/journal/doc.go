// Package journal keeps the append-only transaction log behind the world
// state.
//
// Every committed transaction is recorded with its arguments, response
// payload, response hash and write set. The world state is derived data:
// Replay re-executes the journal in commit order on an empty store and
// reports any transaction whose response or commit version differs.
//
// # Ordering
//
// All reads order by version ASC, tx_id ASC COLLATE BINARY. Versions are
// assigned by the world-state store, one per commit, so the journal order
// is the commit order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package journal
