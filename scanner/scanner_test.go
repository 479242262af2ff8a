package scanner

import (
	"context"
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/klaytn/bridgescan/db"
	"github.com/klaytn/bridgescan/feed/memory"
	"github.com/klaytn/bridgescan/keys"
	"github.com/klaytn/bridgescan/primitives"
	"github.com/klaytn/bridgescan/scannertest"
	"github.com/klaytn/bridgescan/scheduler"
	"github.com/klaytn/bridgescan/scheduler/simple"
)

func withTempDB(t *testing.T, fn func(database db.Database)) {
	dir, err := ioutil.TempDir("", "bridgescan-scanner-test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	database, err := db.OpenBadger(dir)
	assert.NoError(t, err)
	defer database.Close()

	fn(database)
}

// TestEndToEndCreditAcknowledgeDrain drives a full credit-then-drain cycle
// by hand: a single active key receives one External deposit above dust,
// the block is scanned, reported, acknowledged, then drained by Eventuality.
func TestEndToEndCreditAcknowledgeDrain(t *testing.T) {
	withTempDB(t, func(database db.Database) {
		f := memory.New("testnet")
		f.ConfirmationsV, f.WindowLengthV, f.TenMinutesV = 1, 1, 5
		f.DustV[primitives.Coin(0)] = 100

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

		sched := simple.New[memory.Key, memory.Address, memory.Output]()
		publisher := memory.NewPublisher()

		s := New[memory.Key, memory.Address, memory.Output, simple.Eventuality, memory.Block](
			database, f, publisher, sched, 0,
			memory.DecodeKey, memory.ReadOutput, simple.ReadEventuality,
		)

		ctx := context.Background()

		didWork, err := s.indexTask.Tick(ctx)
		assert.NoError(t, err)
		assert.True(t, didWork)

		didWork, err = s.scanTask.Tick(ctx)
		assert.NoError(t, err)
		assert.True(t, didWork)

		didWork, err = s.reportTask.Tick(ctx)
		assert.NoError(t, err)
		assert.True(t, didWork)
		assert.Len(t, publisher.Batches, 1)
		assert.Len(t, publisher.Batches[0].Instructions, 1)
		assert.Equal(t, primitives.Amount(5000), publisher.Batches[0].Instructions[0].Amount)

		assert.NoError(t, s.AcknowledgeBlock(ctx, 0, nil))

		didWork, err = s.eventualityTask.Tick(ctx)
		assert.NoError(t, err)
		assert.True(t, didWork)

		assert.NoError(t, database.View(func(txn db.Txn) error {
			assert.Equal(t, primitives.BlockNumber(1), db.NextToCheck(txn))
			return nil
		}))
	})
}

// TestAcknowledgeBlockPanicsOnOutOfOrder matches the "acknowledged block
// numbers strictly increase" invariant: acknowledging the same or an
// earlier block a second time is an invariant violation, not an error.
func TestAcknowledgeBlockPanicsOnOutOfOrder(t *testing.T) {
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

		sched := simple.New[memory.Key, memory.Address, memory.Output]()
		s := New[memory.Key, memory.Address, memory.Output, simple.Eventuality, memory.Block](
			database, f, memory.NewPublisher(), sched, 0,
			memory.DecodeKey, memory.ReadOutput, simple.ReadEventuality,
		)

		ctx := context.Background()
		_, err := s.indexTask.Tick(ctx)
		assert.NoError(t, err)
		_, err = s.scanTask.Tick(ctx)
		assert.NoError(t, err)

		assert.NoError(t, s.AcknowledgeBlock(ctx, 0, nil))
		assert.Panics(t, func() {
			s.AcknowledgeBlock(ctx, 0, nil)
		})
	})
}

// TestQueueBurnsRequiresPriorAcknowledgement matches the "queue_burns
// requires at least one prior acknowledged block" invariant.
func TestQueueBurnsRequiresPriorAcknowledgement(t *testing.T) {
	withTempDB(t, func(database db.Database) {
		f := memory.New("testnet")
		sched := simple.New[memory.Key, memory.Address, memory.Output]()
		s := New[memory.Key, memory.Address, memory.Output, simple.Eventuality, memory.Block](
			database, f, memory.NewPublisher(), sched, 0,
			memory.DecodeKey, memory.ReadOutput, simple.ReadEventuality,
		)

		assert.Panics(t, func() {
			s.QueueBurns(context.Background(), nil)
		})
	})
}

// TestQueueBurnsAfterDrainStillReachesFulfill covers queue_burns arriving
// at an ack-epoch the Eventuality task has already finished draining: a
// burn queued at height 0 after Eventuality has already ticked past block
// 0 must still surface in a later Fulfill call, not be stranded forever
// because some earlier tick happened to pass that height first.
func TestQueueBurnsAfterDrainStillReachesFulfill(t *testing.T) {
	withTempDB(t, func(database db.Database) {
		f := memory.New("testnet")
		f.ConfirmationsV, f.WindowLengthV, f.TenMinutesV = 1, 1, 5
		f.DustV[primitives.Coin(0)] = 100

		key := memory.Key{0, 0, 0, 1}
		depositAt := func(height int, id string) {
			out := memory.Output{
				ID:       []byte(id),
				KindV:    primitives.External,
				KeyV:     key,
				BalanceV: primitives.Balance{Coin: 0, Amount: 5000},
			}
			f.AddBlock([]byte{byte(height)}, nil, map[memory.Key][]memory.Output{key: {out}})
		}
		depositAt(0, "out-0")

		assert.NoError(t, database.Update(func(txn db.Txn) error {
			keys.Activate(txn, memory.DecodeKey, key, 0)
			return nil
		}))

		sched := &scannertest.SchedulerStub[memory.Key, memory.Address, memory.Output, simple.Eventuality]{}
		s := New[memory.Key, memory.Address, memory.Output, simple.Eventuality, memory.Block](
			database, f, memory.NewPublisher(), sched, 0,
			memory.DecodeKey, memory.ReadOutput, simple.ReadEventuality,
		)

		ctx := context.Background()

		_, err := s.indexTask.Tick(ctx)
		assert.NoError(t, err)
		_, err = s.scanTask.Tick(ctx)
		assert.NoError(t, err)
		assert.NoError(t, s.AcknowledgeBlock(ctx, 0, nil))

		// Eventuality drains block 0 before any burn has been queued against
		// it -- this is the tick that, with a monotonic drain cursor, would
		// permanently strand a burn queued afterward at ack height 0.
		didWork, err := s.eventualityTask.Tick(ctx)
		assert.NoError(t, err)
		assert.True(t, didWork)

		burn := scheduler.Burn{Destination: []byte("addr"), Balance: primitives.Balance{Coin: 0, Amount: 4000}}
		assert.NoError(t, s.QueueBurns(ctx, []scheduler.Burn{burn}))

		// Advance and acknowledge a second block so Eventuality has another
		// block to process and another opportunity to drain.
		depositAt(1, "out-1")
		_, err = s.indexTask.Tick(ctx)
		assert.NoError(t, err)
		_, err = s.scanTask.Tick(ctx)
		assert.NoError(t, err)
		assert.NoError(t, s.AcknowledgeBlock(ctx, 1, nil))

		didWork, err = s.eventualityTask.Tick(ctx)
		assert.NoError(t, err)
		assert.True(t, didWork)

		assert.Contains(t, sched.Calls, "Fulfill")
		assert.NoError(t, database.View(func(txn db.Txn) error {
			assert.Empty(t, db.Burns(txn, 0, scheduler.ReadBurn), "drained burn must be removed from storage")
			return nil
		}))
	})
}
