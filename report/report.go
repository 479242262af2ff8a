// Package report implements the Report task: assemble each scanned block's
// credited External outputs into Batch messages and hand them to
// BatchPublisher, assigning strictly increasing per-network batch ids in
// block, then sort_outputs, order.
package report

import (
	"context"
	"io"

	"github.com/klaytn/bridgescan/audit"
	"github.com/klaytn/bridgescan/db"
	"github.com/klaytn/bridgescan/feed"
	"github.com/klaytn/bridgescan/keys"
	"github.com/klaytn/bridgescan/log"
	"github.com/klaytn/bridgescan/primitives"
	"github.com/klaytn/bridgescan/scan"
)

var logger = log.NewModuleLogger(log.ModuleReport)

// DefaultMaxBatchSize bounds how many InInstructions a single Batch may
// carry. New always uses it; the bound is the same for every network and
// cannot be set per Task.
const DefaultMaxBatchSize = 1024

type Task[K primitives.Key, A primitives.Address, O primitives.Output[K, A], E primitives.Eventuality, B primitives.Block[K, A, O, E]] struct {
	database     db.Database
	feed         feed.ScannerFeed[K, A, O, E, B]
	publisher    feed.BatchPublisher
	decodeKey    func([]byte) (K, error)
	readOutput   func(io.Reader) (O, error)
	maxBatchSize int
	ledger       *audit.Ledger
}

// WithAuditLedger attaches a SQL audit ledger; nil (the default) disables
// it entirely.
func (t *Task[K, A, O, E, B]) WithAuditLedger(l *audit.Ledger) *Task[K, A, O, E, B] {
	t.ledger = l
	return t
}

func New[K primitives.Key, A primitives.Address, O primitives.Output[K, A], E primitives.Eventuality, B primitives.Block[K, A, O, E]](
	database db.Database,
	f feed.ScannerFeed[K, A, O, E, B],
	publisher feed.BatchPublisher,
	decodeKey func([]byte) (K, error),
	readOutput func(io.Reader) (O, error),
) *Task[K, A, O, E, B] {
	return &Task[K, A, O, E, B]{
		database:     database,
		feed:         f,
		publisher:    publisher,
		decodeKey:    decodeKey,
		readOutput:   readOutput,
		maxBatchSize: DefaultMaxBatchSize,
	}
}

func (t *Task[K, A, O, E, B]) Name() string { return "report" }

// Tick reports exactly one already-scanned block. Batches are published
// before the commit that advances next_to_report and each network's batch
// id counter: a crash between a successful publish and that commit simply
// causes the same batch to be republished on restart, which PublishBatch
// must tolerate.
func (t *Task[K, A, O, E, B]) Tick(ctx context.Context) (bool, error) {
	var (
		n            primitives.BlockNumber
		ready        bool
		instructions []primitives.InInstruction
	)
	if err := t.database.View(func(txn db.Txn) error {
		n = db.NextToReport(txn)
		if n >= db.NextToScan(txn) {
			return nil
		}
		ready = true
		instructions = t.collect(txn, n)
		return nil
	}); err != nil {
		return false, err
	}
	if !ready {
		return false, nil
	}

	network := t.feed.Network()
	var nextID uint32
	if err := t.database.View(func(txn db.Txn) error {
		nextID = db.NextBatchID(txn, network)
		return nil
	}); err != nil {
		return false, err
	}

	published := 0
	for start := 0; start < len(instructions); start += t.maxBatchSize {
		end := start + t.maxBatchSize
		if end > len(instructions) {
			end = len(instructions)
		}
		batch := primitives.Batch{Network: network, Id: nextID, Instructions: instructions[start:end]}
		if err := t.publisher.PublishBatch(ctx, batch); err != nil {
			return false, err
		}
		t.ledger.RecordBatch(batch)
		nextID++
		published++
	}

	if err := t.database.Update(func(txn db.Txn) error {
		for i := 0; i < published; i++ {
			db.SetNextBatchID(txn, network, db.NextBatchID(txn, network)+1)
		}
		db.SetNextToReport(txn, n+1)
		return nil
	}); err != nil {
		return false, err
	}

	logger.Info("reported block", "number", n, "instructions", len(instructions), "batches", published)
	return true, nil
}

// collect gathers block n's Credit-dispositioned outputs across every
// registered key, merged into one sort_outputs-ordered sequence.
func (t *Task[K, A, O, E, B]) collect(txn db.Txn, n primitives.BlockNumber) []primitives.InInstruction {
	var credited []O
	for _, rec := range keys.List(txn, t.decodeKey) {
		for _, so := range scan.Outputs[K, A, O](txn, n, rec.Key.Encode(), t.readOutput) {
			if so.Disposition == scan.Credit {
				credited = append(credited, so.Output)
			}
		}
	}
	primitives.SortOutputs[K, A](credited)

	instructions := make([]primitives.InInstruction, 0, len(credited))
	for _, out := range credited {
		var origin []byte
		if addr, ok := out.Addr(); ok {
			origin = []byte(addr.String())
		}
		instructions = append(instructions, primitives.InInstruction{
			Origin: origin,
			Coin:   out.Balance().Coin,
			Amount: out.Balance().Amount,
			Data:   out.Data(),
		})
	}
	return instructions
}
