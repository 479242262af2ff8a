package scan

import (
	"context"
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/klaytn/bridgescan/db"
	"github.com/klaytn/bridgescan/feed/memory"
	"github.com/klaytn/bridgescan/index"
	"github.com/klaytn/bridgescan/keys"
	"github.com/klaytn/bridgescan/primitives"
)

func withTempDB(t *testing.T, fn func(database db.Database)) {
	dir, err := ioutil.TempDir("", "bridgescan-scan-test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	database, err := db.OpenBadger(dir)
	assert.NoError(t, err)
	defer database.Close()

	fn(database)
}

func TestScanCreditsActiveKeyAboveDust(t *testing.T) {
	withTempDB(t, func(database db.Database) {
		f := memory.New("testnet")
		f.ConfirmationsV, f.WindowLengthV = 1, 1
		f.DustV[primitives.Coin(0)] = 100

		key := memory.Key{0, 0, 0, 1}
		out := memory.Output{
			ID:       []byte("out-1"),
			KindV:    primitives.External,
			KeyV:     key,
			BalanceV: primitives.Balance{Coin: 0, Amount: 1000},
		}
		f.AddBlock([]byte("block-0"), nil, map[memory.Key][]memory.Output{key: {out}})

		assert.NoError(t, database.Update(func(txn db.Txn) error {
			keys.Activate(txn, memory.DecodeKey, key, 0)
			return nil
		}))

		indexTask := index.New[memory.Key, memory.Address, memory.Output, memory.Eventuality, memory.Block](database, f, 0)
		ctx := context.Background()
		didWork, err := indexTask.Tick(ctx)
		assert.NoError(t, err)
		assert.True(t, didWork)

		scanTask := New[memory.Key, memory.Address, memory.Output, memory.Eventuality, memory.Block](database, f, memory.DecodeKey, 0)
		didWork, err = scanTask.Tick(ctx)
		assert.NoError(t, err)
		assert.True(t, didWork)

		assert.NoError(t, database.View(func(txn db.Txn) error {
			outs := Outputs[memory.Key, memory.Address, memory.Output](txn, 0, key.Encode(), memory.ReadOutput)
			assert.Len(t, outs, 1)
			assert.Equal(t, Credit, outs[0].Disposition)
			assert.True(t, db.IsNotable(txn, 0))
			return nil
		}))
	})
}

func TestScanDropsDustSilently(t *testing.T) {
	withTempDB(t, func(database db.Database) {
		f := memory.New("testnet")
		f.ConfirmationsV, f.WindowLengthV = 1, 1
		f.DustV[primitives.Coin(0)] = 1000

		key := memory.Key{0, 0, 0, 1}
		out := memory.Output{
			ID:       []byte("out-dust"),
			KindV:    primitives.External,
			KeyV:     key,
			BalanceV: primitives.Balance{Coin: 0, Amount: 10},
		}
		f.AddBlock([]byte("block-0"), nil, map[memory.Key][]memory.Output{key: {out}})

		assert.NoError(t, database.Update(func(txn db.Txn) error {
			keys.Activate(txn, memory.DecodeKey, key, 0)
			return nil
		}))

		ctx := context.Background()
		indexTask := index.New[memory.Key, memory.Address, memory.Output, memory.Eventuality, memory.Block](database, f, 0)
		_, err := indexTask.Tick(ctx)
		assert.NoError(t, err)

		scanTask := New[memory.Key, memory.Address, memory.Output, memory.Eventuality, memory.Block](database, f, memory.DecodeKey, 0)
		_, err = scanTask.Tick(ctx)
		assert.NoError(t, err)

		assert.NoError(t, database.View(func(txn db.Txn) error {
			outs := Outputs[memory.Key, memory.Address, memory.Output](txn, 0, key.Encode(), memory.ReadOutput)
			assert.Len(t, outs, 0, "dust output must be dropped, not persisted with a disposition")
			assert.False(t, db.IsNotable(txn, 0), "a block with only dropped dust has nothing worth acknowledging")
			return nil
		}))
	})
}

func TestScanDoesNotRunAheadOfIndex(t *testing.T) {
	withTempDB(t, func(database db.Database) {
		f := memory.New("testnet")
		f.ConfirmationsV, f.WindowLengthV = 10, 1

		for i := 0; i < 5; i++ {
			f.AddBlock([]byte{byte(i)}, nil, nil)
		}

		ctx := context.Background()
		indexTask := index.New[memory.Key, memory.Address, memory.Output, memory.Eventuality, memory.Block](database, f, 0)
		// index everything it's allowed to: with Confirmations=10 and 5
		// blocks produced, nothing is finalized yet.
		didWork, err := indexTask.Tick(ctx)
		assert.NoError(t, err)
		assert.False(t, didWork)

		scanTask := New[memory.Key, memory.Address, memory.Output, memory.Eventuality, memory.Block](database, f, memory.DecodeKey, 0)
		didWork, err = scanTask.Tick(ctx)
		assert.NoError(t, err)
		assert.False(t, didWork, "scan must not run ahead of what index has finalized")
	})
}

// TestScanPreAckWindowBoundIsFixed matches window's documented pre-ack
// bound: start + WINDOW_LENGTH - 1, fixed at construction time, not a bound
// that slides with next_to_scan as it would if it were recomputed from
// next_to_scan on every tick. With WindowLength=3 and start=0, scan must
// stop cold after blocks 0, 1, 2 -- regardless of how much further index
// has already finalized.
func TestScanPreAckWindowBoundIsFixed(t *testing.T) {
	withTempDB(t, func(database db.Database) {
		f := memory.New("testnet")
		f.ConfirmationsV, f.WindowLengthV = 10, 3

		// 15 blocks (0..14) finalizes through block 5 (14 - 10 + 1), well
		// past the fixed bound of 2 this test exercises.
		for i := 0; i < 15; i++ {
			f.AddBlock([]byte{byte(i)}, nil, nil)
		}

		ctx := context.Background()
		indexTask := index.New[memory.Key, memory.Address, memory.Output, memory.Eventuality, memory.Block](database, f, 0)
		for i := 0; i < 6; i++ {
			_, err := indexTask.Tick(ctx)
			assert.NoError(t, err)
		}
		assert.NoError(t, database.View(func(txn db.Txn) error {
			latest, indexed := db.LatestIndexed(txn)
			assert.True(t, indexed)
			assert.Equal(t, primitives.BlockNumber(5), latest, "index must have finalized past the scan bound under test")
			return nil
		}))

		scanTask := New[memory.Key, memory.Address, memory.Output, memory.Eventuality, memory.Block](database, f, memory.DecodeKey, 0)
		for i := 0; i < 3; i++ {
			didWork, err := scanTask.Tick(ctx)
			assert.NoError(t, err)
			assert.True(t, didWork, "blocks 0..2 fall within the fixed pre-ack bound")
		}

		didWork, err := scanTask.Tick(ctx)
		assert.NoError(t, err)
		assert.False(t, didWork, "scan must not advance past start+WINDOW_LENGTH-1 before any acknowledgement, even though index has finalized far beyond it")

		assert.NoError(t, database.View(func(txn db.Txn) error {
			assert.Equal(t, primitives.BlockNumber(3), db.NextToScan(txn))
			return nil
		}))
	})
}
