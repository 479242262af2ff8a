// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package db

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/klaytn/bridgescan/log"
)

var OpenFileLimit = 64

// levelDB is the small-deployment alternative backend offered alongside
// badger: same OpenFile/recover-on-corruption flow, but exposing our
// Database/Txn interface via goleveldb's own OpenTransaction rather than a
// fire-and-forget Batch.
type levelDB struct {
	fn string
	db *leveldb.DB

	logger log.Logger
}

func ldbOptions(cacheSizeMB, numHandles int) *opt.Options {
	if cacheSizeMB < 16 {
		cacheSizeMB = 16
	}
	if numHandles < 16 {
		numHandles = 16
	}
	return &opt.Options{
		OpenFilesCacheCapacity: numHandles,
		BlockCacheCapacity:     cacheSizeMB / 2 * opt.MiB,
		WriteBuffer:            cacheSizeMB / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	}
}

// OpenLevelDB opens (creating if necessary, recovering if corrupted) a
// LevelDB-backed Database at dbDir.
func OpenLevelDB(dbDir string, cacheSizeMB, numHandles int) (Database, error) {
	l := log.NewModuleLogger(log.ModuleDB).With("backend", "leveldb", "dbDir", dbDir)

	ldb, err := leveldb.OpenFile(dbDir, ldbOptions(cacheSizeMB, numHandles))
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		ldb, err = leveldb.RecoverFile(dbDir, nil)
	}
	if err != nil {
		return nil, err
	}

	return &levelDB{fn: dbDir, db: ldb, logger: l}, nil
}

func (d *levelDB) View(fn func(txn Txn) error) error {
	snap, err := d.db.GetSnapshot()
	if err != nil {
		return err
	}
	defer snap.Release()
	return fn(&levelDBSnapshotTxn{snap: snap})
}

func (d *levelDB) Update(fn func(txn Txn) error) error {
	tx, err := d.db.OpenTransaction()
	if err != nil {
		return err
	}
	t := &levelDBTxn{tx: tx}
	if err := fn(t); err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}

func (d *levelDB) Close() error {
	if err := d.db.Close(); err != nil {
		d.logger.Error("failed to close database", "err", err)
		return err
	}
	d.logger.Info("database closed")
	return nil
}

type levelDBTxn struct {
	tx *leveldb.Transaction
}

func (t *levelDBTxn) Get(key []byte) ([]byte, error) {
	v, err := t.tx.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return v, err
}

func (t *levelDBTxn) Put(key, value []byte) error { return t.tx.Put(key, value, nil) }
func (t *levelDBTxn) Delete(key []byte) error      { return t.tx.Delete(key, nil) }

func (t *levelDBTxn) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	it := t.tx.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	for it.Next() {
		if !fn(append([]byte(nil), it.Key()...), append([]byte(nil), it.Value()...)) {
			break
		}
	}
	return it.Error()
}

// Commit/Discard are intentionally no-ops: the transaction lifetime is
// scoped to Update's callback, matching badgerTxn's contract.
func (t *levelDBTxn) Commit() error { return nil }
func (t *levelDBTxn) Discard()      {}

// levelDBSnapshotTxn backs read-only View calls with a point-in-time
// snapshot; writes within a View are rejected rather than silently
// discarded, since a caller attempting to write inside a read-only
// transaction is a programming error.
type levelDBSnapshotTxn struct {
	snap *leveldb.Snapshot
}

func (t *levelDBSnapshotTxn) Get(key []byte) ([]byte, error) {
	v, err := t.snap.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return v, err
}

func (t *levelDBSnapshotTxn) Put(key, value []byte) error {
	panic("db: write inside a read-only View transaction")
}

func (t *levelDBSnapshotTxn) Delete(key []byte) error {
	panic("db: write inside a read-only View transaction")
}

func (t *levelDBSnapshotTxn) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	it := t.snap.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	for it.Next() {
		if !fn(append([]byte(nil), it.Key()...), append([]byte(nil), it.Value()...)) {
			break
		}
	}
	return it.Error()
}

func (t *levelDBSnapshotTxn) Commit() error { return nil }
func (t *levelDBSnapshotTxn) Discard()      {}
