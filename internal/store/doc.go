// Package store persists projects, rosters, accounts, the ticket ledger and
// the operation journal.
//
// The package defines the Store and Tx contracts shared by every backend
// and ships the SQLite backend. The memory and postgres subpackages provide
// the other two.
//
// # Transactions
//
// Every allocation operation reads, validates, mutates and writes inside a
// single Update call. If the callback returns an error nothing it wrote is
// kept, which is what lets the allocation core promise that a rejected
// operation has no effects.
//
// # Deterministic Reads
//
// Every list query has a total order: projects by id, accounts by account
// name, tickets by ticket id, journal entries by seq. Replays and golden
// tests depend on it.
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
