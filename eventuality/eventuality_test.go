package eventuality

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
	"github.com/klaytn/bridgescan/scan"
	"github.com/klaytn/bridgescan/scheduler"
	"github.com/klaytn/bridgescan/scheduler/simple"
)

func withTempDB(t *testing.T, fn func(database db.Database)) {
	dir, err := ioutil.TempDir("", "bridgescan-eventuality-test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	database, err := db.OpenBadger(dir)
	assert.NoError(t, err)
	defer database.Close()

	fn(database)
}

// TestHaltsOnUnacknowledgedNotableBlock matches Eventuality's stop policy:
// a notable block not yet acknowledged must halt Eventuality rather than
// advance next_to_check past it.
func TestHaltsOnUnacknowledgedNotableBlock(t *testing.T) {
	withTempDB(t, func(database db.Database) {
		f := memory.New("testnet")
		f.ConfirmationsV, f.WindowLengthV, f.TenMinutesV = 1, 1, 5

		key := memory.Key{0, 0, 0, 1}
		out := memory.Output{
			ID:       []byte("out-1"),
			KindV:    primitives.External,
			KeyV:     key,
			BalanceV: primitives.Balance{Coin: 0, Amount: 5000},
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

		scanTask := scan.New[memory.Key, memory.Address, memory.Output, memory.Eventuality, memory.Block](database, f, memory.DecodeKey, 0)
		_, err = scanTask.Tick(ctx)
		assert.NoError(t, err)

		sched := simple.New[memory.Key, memory.Address, memory.Output]()
		evTask := New[memory.Key, memory.Address, memory.Output, simple.Eventuality, memory.Block](
			database, f, sched, memory.DecodeKey, memory.ReadOutput, simple.ReadEventuality, scheduler.ReadBurn,
		)

		progressed, err := evTask.Tick(ctx)
		assert.NoError(t, err)
		assert.False(t, progressed, "a notable, unacknowledged block must halt Eventuality")

		assert.NoError(t, database.View(func(txn db.Txn) error {
			assert.Equal(t, primitives.BlockNumber(0), db.NextToCheck(txn), "next_to_check must not advance past a halted block")
			assert.True(t, db.IsNotable(txn, 0))
			return nil
		}))
	})
}
