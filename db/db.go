// Package db is the scanner's persistence layer: a key/value store with
// atomic multi-write transactions and snapshot reads, built around a real
// commit boundary rather than a fire-and-forget batch write.
//
// Each persisted key prefix has exactly one writer task. Readers (e.g. the
// Report task reading Scan's outputs) open their own transaction and get a
// consistent snapshot.
package db

import "errors"

// ErrNotFound is returned by Txn.Get when the key doesn't exist.
var ErrNotFound = errors.New("db: key not found")

// Txn is one atomic transaction: a consistent snapshot for reads, and a set
// of writes that Database.Update applies all together or not at all. A
// task tick may open more than one Txn: the tasks read their bounds in a
// View and write in a separate Update, so a tick's reads and writes are not
// one single snapshot.
type Txn interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Iterate calls fn for every key with the given prefix, in key order,
	// stopping early if fn returns false.
	Iterate(prefix []byte, fn func(key, value []byte) bool) error
	// Commit and Discard are no-ops in both backends: Database.View and
	// Database.Update own each transaction's lifetime, committing or
	// aborting it when fn returns.
	Commit() error
	Discard()
}

// Database opens read-only or read-write transactions against the
// underlying store.
type Database interface {
	// View opens a read-only transaction; a write inside fn is rejected
	// (badger returns an error, the leveldb backend panics).
	View(fn func(txn Txn) error) error
	// Update opens a read-write transaction, committing it iff fn returns
	// nil and panicking is not in progress.
	Update(fn func(txn Txn) error) error
	Close() error
}
