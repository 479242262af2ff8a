package keys

import (
	"fmt"
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/klaytn/bridgescan/cache"
	"github.com/klaytn/bridgescan/db"
	"github.com/klaytn/bridgescan/lifetime"
	"github.com/klaytn/bridgescan/primitives"
)

// testKey is the smallest primitives.Key satisfying the comparable +
// fmt.Stringer + Encode() contract, grounded in feed/memory's Key.
type testKey [4]byte

func (k testKey) String() string { return fmt.Sprintf("key-%x", [4]byte(k)) }
func (k testKey) Encode() []byte { return append([]byte(nil), k[:]...) }

func decodeTestKey(b []byte) (testKey, error) {
	var k testKey
	copy(k[:], b)
	return k, nil
}

func withTempDB(t *testing.T, fn func(database db.Database)) {
	dir, err := ioutil.TempDir("", "bridgescan-keys-test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	database, err := db.OpenBadger(dir)
	assert.NoError(t, err)
	defer database.Close()

	fn(database)
}

func TestActivateAndList(t *testing.T) {
	withTempDB(t, func(database db.Database) {
		k0 := testKey{0, 0, 0, 1}
		k1 := testKey{0, 0, 0, 2}

		assert.NoError(t, database.Update(func(txn db.Txn) error {
			Activate(txn, decodeTestKey, k0, 0)
			Activate(txn, decodeTestKey, k1, 110)
			return nil
		}))

		assert.NoError(t, database.View(func(txn db.Txn) error {
			recs := List(txn, decodeTestKey)
			assert.Len(t, recs, 2)
			assert.Equal(t, k0, recs[0].Key)
			assert.Equal(t, primitives.BlockNumber(0), recs[0].Activation)
			assert.Equal(t, k1, recs[1].Key)
			assert.Equal(t, primitives.BlockNumber(110), recs[1].Activation)
			return nil
		}))
	})
}

func TestActivateIsIdempotent(t *testing.T) {
	withTempDB(t, func(database db.Database) {
		k0 := testKey{0, 0, 0, 1}
		assert.NoError(t, database.Update(func(txn db.Txn) error {
			Activate(txn, decodeTestKey, k0, 0)
			Activate(txn, decodeTestKey, k0, 0)
			return nil
		}))
		assert.NoError(t, database.View(func(txn db.Txn) error {
			assert.Len(t, List(txn, decodeTestKey), 1)
			return nil
		}))
	})
}

func TestRetirePanicsOnUnknownKey(t *testing.T) {
	withTempDB(t, func(database db.Database) {
		k0 := testKey{0, 0, 0, 9}
		assert.Panics(t, func() {
			database.Update(func(txn db.Txn) error {
				Retire(txn, decodeTestKey, k0)
				return nil
			})
		})
	})
}

func TestActiveAtReflectsSuccessorRotation(t *testing.T) {
	withTempDB(t, func(database db.Database) {
		k0 := testKey{0, 0, 0, 1}
		k1 := testKey{0, 0, 0, 2}
		assert.NoError(t, database.Update(func(txn db.Txn) error {
			Activate(txn, decodeTestKey, k0, 0)
			Activate(txn, decodeTestKey, k1, 110)
			return nil
		}))

		assert.NoError(t, database.View(func(txn db.Txn) error {
			stages := ActiveAt(txn, decodeTestKey, 50, 6)
			assert.Equal(t, lifetime.Active, stages[0].Stage)
			assert.Equal(t, lifetime.NotYetActive, stages[1].Stage)
			return nil
		}))

		assert.NoError(t, database.View(func(txn db.Txn) error {
			stages := ActiveAt(txn, decodeTestKey, 110, 6)
			assert.Equal(t, lifetime.UsedToForward, stages[0].Stage)
			assert.Equal(t, lifetime.Active, stages[1].Stage)
			return nil
		}))
	})
}

func TestActiveAtCachedMatchesUncached(t *testing.T) {
	withTempDB(t, func(database db.Database) {
		k0 := testKey{0, 0, 0, 1}
		assert.NoError(t, database.Update(func(txn db.Txn) error {
			Activate(txn, decodeTestKey, k0, 0)
			return nil
		}))

		assert.NoError(t, database.View(func(txn db.Txn) error {
			c := cache.NewLifetimeCache()
			cached := ActiveAtCached(txn, decodeTestKey, 42, 6, c)
			uncached := ActiveAt(txn, decodeTestKey, 42, 6)
			assert.Equal(t, uncached, cached)
			return nil
		}))
	})
}
