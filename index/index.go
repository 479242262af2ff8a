// Package index implements the Index task: maintain a contiguous, immutable
// mapping BlockNumber -> BlockId for every finalized block, and panic the
// instant a later task observes a finalized reorg.
package index

import (
	"context"
	"fmt"

	"github.com/klaytn/bridgescan/db"
	"github.com/klaytn/bridgescan/feed"
	"github.com/klaytn/bridgescan/log"
	"github.com/klaytn/bridgescan/primitives"
	"github.com/klaytn/bridgescan/scanerr"
)

var logger = log.NewModuleLogger(log.ModuleIndex)

// Task is the Index task: fetch latest_finalized_block_number, persist
// (n, header.id) for every not-yet-indexed finalized n, and notify Scan.
type Task[K primitives.Key, A primitives.Address, O primitives.Output[K, A], E primitives.Eventuality, B primitives.Block[K, A, O, E]] struct {
	database db.Database
	feed     feed.ScannerFeed[K, A, O, E, B]
	start    primitives.BlockNumber
}

func New[K primitives.Key, A primitives.Address, O primitives.Output[K, A], E primitives.Eventuality, B primitives.Block[K, A, O, E]](
	database db.Database, f feed.ScannerFeed[K, A, O, E, B], start primitives.BlockNumber,
) *Task[K, A, O, E, B] {
	return &Task[K, A, O, E, B]{database: database, feed: f, start: start}
}

func (t *Task[K, A, O, E, B]) Name() string { return "index" }

// Tick fetches the latest finalized height and, if the next block to index
// is at or below it, indexes that one block in one atomic commit so a crash
// never leaves a partially indexed block visible. Later blocks are left to
// following ticks.
func (t *Task[K, A, O, E, B]) Tick(ctx context.Context) (bool, error) {
	latestFinalized, ok, err := t.latestFinalized(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	var next primitives.BlockNumber
	if err := t.database.View(func(txn db.Txn) error {
		if n, ok := db.LatestIndexed(txn); ok {
			next = n + 1
		} else {
			next = t.start
		}
		return nil
	}); err != nil {
		return false, err
	}

	if next > latestFinalized {
		return false, nil
	}

	header, err := t.feed.UncheckedBlockHeaderByNumber(ctx, next)
	if err != nil {
		return false, scanerr.WrapEphemeral("fetch block header", err)
	}

	if err := t.database.Update(func(txn db.Txn) error {
		db.SetBlockID(txn, next, header)
		db.SetLatestIndexed(txn, next)
		return nil
	}); err != nil {
		return false, err
	}

	logger.Info("indexed block", "number", next)
	return true, nil
}

// latestFinalized computes latest_finalized - CONFIRMATIONS + 1, the
// highest block number this task is allowed to consider finalized. If the
// chain hasn't produced CONFIRMATIONS blocks yet, there is nothing to index.
func (t *Task[K, A, O, E, B]) latestFinalized(ctx context.Context) (primitives.BlockNumber, bool, error) {
	latest, err := t.feed.LatestFinalizedBlockNumber(ctx)
	if err != nil {
		return 0, false, scanerr.WrapEphemeral("fetch latest finalized height", err)
	}
	confirmations := t.feed.Confirmations()
	if confirmations == 0 {
		scanerr.Invariant("feed: CONFIRMATIONS must be at least 1")
	}
	if latest+1 < confirmations {
		return 0, false, nil
	}
	return latest - confirmations + 1, true, nil
}

// BlockByNumber fetches block n, panicking if its id differs from what
// Index persisted for that height -- a finalized reorg violates the
// system's trust assumption and is unrecoverable.
func BlockByNumber[K primitives.Key, A primitives.Address, O primitives.Output[K, A], E primitives.Eventuality, B primitives.Block[K, A, O, E]](
	ctx context.Context, txn db.Txn, f feed.ScannerFeed[K, A, O, E, B], n primitives.BlockNumber,
) (B, error) {
	var zero B
	block, err := f.UncheckedBlockByNumber(ctx, n)
	if err != nil {
		return zero, scanerr.WrapEphemeral(fmt.Sprintf("fetch block %d", n), err)
	}

	expected := db.BlockID(txn, n)
	if string(block.Id()) != string(expected) {
		scanerr.Invariant("finalized chain reorganized from %x to %x at %d", expected, block.Id(), n)
	}
	return block, nil
}
