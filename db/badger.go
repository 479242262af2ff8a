// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

package db

import (
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger"

	"github.com/klaytn/bridgescan/log"
)

const gcThreshold = int64(1 << 30) // 1GB
const sizeGCTickerTime = 1 * time.Minute

// badgerDB is adapted from storage/database/badger_database.go: same
// directory-creation and value-log-GC-ticker plumbing, but exposes our
// Database/Txn interface (real atomic transactions) instead of the
// teacher's Batch abstraction.
type badgerDB struct {
	fn string
	db *badger.DB

	gcTicker *time.Ticker
	quit     chan struct{}

	logger log.Logger
}

func getBadgerDBDefaultOptions(dbDir string) badger.Options {
	opts := badger.DefaultOptions
	opts.Dir = dbDir
	opts.ValueDir = dbDir
	return opts
}

// OpenBadger opens (creating if necessary) a Badger-backed Database at
// dbDir.
func OpenBadger(dbDir string) (Database, error) {
	l := log.NewModuleLogger(log.ModuleDB).With("backend", "badger", "dbDir", dbDir)

	if fi, err := os.Stat(dbDir); err == nil {
		if !fi.IsDir() {
			return nil, fmt.Errorf("badger: dbDir %q is not a directory", dbDir)
		}
	} else if os.IsNotExist(err) {
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return nil, fmt.Errorf("badger: making dbDir %q: %w", dbDir, err)
		}
	} else {
		return nil, fmt.Errorf("badger: stat dbDir %q: %w", dbDir, err)
	}

	bdb, err := badger.Open(getBadgerDBDefaultOptions(dbDir))
	if err != nil {
		return nil, fmt.Errorf("badger: opening %q: %w", dbDir, err)
	}

	d := &badgerDB{
		fn:       dbDir,
		db:       bdb,
		logger:   l,
		gcTicker: time.NewTicker(sizeGCTickerTime),
		quit:     make(chan struct{}),
	}
	go d.runValueLogGC()

	return d, nil
}

// runValueLogGC periodically reclaims space in badger's value log once it
// has grown by more than gcThreshold since the last run.
func (d *badgerDB) runValueLogGC() {
	_, lastSize := d.db.Size()
	for {
		select {
		case <-d.gcTicker.C:
			_, currSize := d.db.Size()
			if currSize-lastSize < gcThreshold {
				continue
			}
			if err := d.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
				d.logger.Error("value log GC failed", "err", err)
				continue
			}
			_, lastSize = d.db.Size()
		case <-d.quit:
			return
		}
	}
}

func (d *badgerDB) View(fn func(txn Txn) error) error {
	return d.db.View(func(t *badger.Txn) error {
		return fn(&badgerTxn{t: t})
	})
}

func (d *badgerDB) Update(fn func(txn Txn) error) error {
	return d.db.Update(func(t *badger.Txn) error {
		return fn(&badgerTxn{t: t})
	})
}

func (d *badgerDB) Close() error {
	close(d.quit)
	d.gcTicker.Stop()
	if err := d.db.Close(); err != nil {
		d.logger.Error("failed to close database", "err", err)
		return err
	}
	d.logger.Info("database closed")
	return nil
}

type badgerTxn struct {
	t *badger.Txn
}

func (b *badgerTxn) Get(key []byte) ([]byte, error) {
	item, err := b.t.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (b *badgerTxn) Put(key, value []byte) error {
	return b.t.Set(key, value)
}

func (b *badgerTxn) Delete(key []byte) error {
	return b.t.Delete(key)
}

func (b *badgerTxn) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := b.t.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if !fn(item.KeyCopy(nil), val) {
			break
		}
	}
	return nil
}

// Commit/Discard are no-ops on a per-transaction basis for badger: the
// transaction's lifetime is scoped to the Update/View callback, and badger
// itself commits or discards when that callback returns. Exposed anyway so
// callers can follow the uniform Txn contract when composing helpers that
// accept a bare Txn outside of an Update/View call (see db/schema.go).
func (b *badgerTxn) Commit() error { return nil }
func (b *badgerTxn) Discard()      {}
