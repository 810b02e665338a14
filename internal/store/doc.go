// Package store provides SQLite-backed storage for SCD Type 2 dimensions.
//
// Each dimension owns two relations:
//   - Source: current truth, one row per natural key (id), written upstream
//   - Target: append-only history, PRIMARY KEY (id, valid_from)
//
// The target also carries a partial UNIQUE index on id WHERE is_active = 1,
// so the storage layer itself rejects a second active version.
//
// An internal scd_runs ledger (schema.sql) records every committed run with
// its logical sequence number and stamp.
//
// # Transactions
//
// Connections are opened with _txlock=immediate: Begin takes the write lock
// up front, so a run's reads and writes see one stable snapshot and no other
// writer can interleave. The pool is limited to a single connection.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
