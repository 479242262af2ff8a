package db

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/klaytn/bridgescan/primitives"
)

func withTempDB(t *testing.T, fn func(database Database)) {
	dir, err := ioutil.TempDir("", "bridgescan-db-test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	database, err := OpenBadger(dir)
	assert.NoError(t, err)
	defer database.Close()

	fn(database)
}

// TestSetNextBatchIDRequiresContiguousIncrement: batch ids are a strictly
// increasing contiguous sequence starting at 0.
func TestSetNextBatchIDRequiresContiguousIncrement(t *testing.T) {
	withTempDB(t, func(database Database) {
		assert.NoError(t, database.Update(func(txn Txn) error {
			assert.Equal(t, uint32(0), NextBatchID(txn, "testnet"))
			SetNextBatchID(txn, "testnet", 1)
			assert.Equal(t, uint32(1), NextBatchID(txn, "testnet"))
			return nil
		}))

		assert.Panics(t, func() {
			database.Update(func(txn Txn) error {
				SetNextBatchID(txn, "testnet", 3) // skips 2: not contiguous
				return nil
			})
		})
	})
}

// TestSetAckedRequiresStrictIncrease matches the "acknowledged block
// numbers strictly increase" invariant at the storage layer.
func TestSetAckedRequiresStrictIncrease(t *testing.T) {
	withTempDB(t, func(database Database) {
		assert.NoError(t, database.View(func(txn Txn) error {
			_, ok := Acked(txn)
			assert.False(t, ok)
			return nil
		}))

		assert.NoError(t, database.Update(func(txn Txn) error {
			SetAcked(txn, 5)
			return nil
		}))

		assert.Panics(t, func() {
			database.Update(func(txn Txn) error {
				SetAcked(txn, 5) // sideways move
				return nil
			})
		})
		assert.Panics(t, func() {
			database.Update(func(txn Txn) error {
				SetAcked(txn, 4) // backwards move
				return nil
			})
		})
	})
}

func TestNotableRoundTrip(t *testing.T) {
	withTempDB(t, func(database Database) {
		assert.NoError(t, database.View(func(txn Txn) error {
			assert.False(t, IsNotable(txn, primitives.BlockNumber(7)))
			return nil
		}))

		assert.NoError(t, database.Update(func(txn Txn) error {
			SetNotable(txn, 7)
			return nil
		}))

		assert.NoError(t, database.View(func(txn Txn) error {
			assert.True(t, IsNotable(txn, 7))
			assert.False(t, IsNotable(txn, 8), "marking block 7 notable must not affect block 8")
			return nil
		}))
	})
}
