// Package scan implements the Scan task: scan every indexed
// block inside the allowed window for outputs payable to any active key,
// classify them, apply the dust filter, and persist the result for Report
// and Eventuality to consume.
package scan

import (
	"context"

	"github.com/klaytn/bridgescan/cache"
	"github.com/klaytn/bridgescan/db"
	"github.com/klaytn/bridgescan/feed"
	"github.com/klaytn/bridgescan/index"
	"github.com/klaytn/bridgescan/keys"
	"github.com/klaytn/bridgescan/lifetime"
	"github.com/klaytn/bridgescan/log"
	"github.com/klaytn/bridgescan/metrics"
	"github.com/klaytn/bridgescan/primitives"
	"github.com/klaytn/bridgescan/scanerr"
)

var logger = log.NewModuleLogger(log.ModuleScan)

// Task is the Scan task.
type Task[K primitives.Key, A primitives.Address, O primitives.Output[K, A], E primitives.Eventuality, B primitives.Block[K, A, O, E]] struct {
	database  db.Database
	feed      feed.ScannerFeed[K, A, O, E, B]
	decodeKey func([]byte) (K, error)
	start     primitives.BlockNumber

	lifetimeCache *cache.LifetimeCache
	outputIDs     *cache.OutputIDSet
	metrics       *metrics.Recorder
}

// WithMetrics attaches a metrics.Recorder; nil (the default) disables
// metrics entirely.
func (t *Task[K, A, O, E, B]) WithMetrics(m *metrics.Recorder) *Task[K, A, O, E, B] {
	t.metrics = m
	return t
}

func New[K primitives.Key, A primitives.Address, O primitives.Output[K, A], E primitives.Eventuality, B primitives.Block[K, A, O, E]](
	database db.Database, f feed.ScannerFeed[K, A, O, E, B], decodeKey func([]byte) (K, error), start primitives.BlockNumber,
) *Task[K, A, O, E, B] {
	return &Task[K, A, O, E, B]{
		database:      database,
		feed:          f,
		decodeKey:     decodeKey,
		start:         start,
		lifetimeCache: cache.NewLifetimeCache(),
		outputIDs:     cache.NewOutputIDSet(),
	}
}

func (t *Task[K, A, O, E, B]) Name() string { return "scan" }

// Tick scans exactly one block, the next un-scanned one, provided it falls
// inside the allowed window. One block per tick keeps each commit small and
// lets ContinuallyRun re-signal immediately after.
func (t *Task[K, A, O, E, B]) Tick(ctx context.Context) (bool, error) {
	windowLength := t.feed.WindowLength()
	confirmations := t.feed.Confirmations()
	if windowLength == 0 || windowLength > confirmations {
		scanerr.Invariant("feed: WINDOW_LENGTH must satisfy 1 <= WINDOW_LENGTH <= CONFIRMATIONS")
	}

	next, bound, ok, err := t.window()
	if err != nil {
		return false, err
	}
	if !ok || next > bound {
		return false, nil
	}

	if err := t.database.Update(func(txn db.Txn) error {
		return t.scanBlock(ctx, txn, next)
	}); err != nil {
		return false, err
	}

	logger.Info("scanned block", "number", next)
	return true, nil
}

// window computes (next_to_scan, upper_bound) for the next tick. upper_bound
// is inclusive: min(latest_indexed, ack + WINDOW_LENGTH). Before any block
// has ever been acknowledged there is no ack to measure from; the window is
// then bounded by WINDOW_LENGTH blocks past the task's own fixed starting
// block, a bound that holds steady as next_to_scan advances, so scan still
// never runs unboundedly ahead of acknowledgement even in the
// not-yet-acknowledged case.
func (t *Task[K, A, O, E, B]) window() (next, bound primitives.BlockNumber, ok bool, err error) {
	err = t.database.View(func(txn db.Txn) error {
		next = db.NextToScan(txn)
		latestIndexed, indexed := db.LatestIndexed(txn)
		if !indexed {
			return nil
		}

		windowLength := t.feed.WindowLength()
		allowed := t.start + windowLength - 1
		if ack, acked := db.Acked(txn); acked {
			allowed = ack + windowLength
		}

		bound = latestIndexed
		if allowed < bound {
			bound = allowed
		}
		ok = true
		return nil
	})
	return
}

func (t *Task[K, A, O, E, B]) scanBlock(ctx context.Context, txn db.Txn, n primitives.BlockNumber) error {
	block, err := index.BlockByNumber[K, A, O, E, B](ctx, txn, t.feed, n)
	if err != nil {
		return err
	}

	activeKeys := keys.ActiveAtCached(txn, t.decodeKey, n, t.feed.TenMinutes(), t.lifetimeCache)
	notable := db.IsNotable(txn, n)

	for _, ks := range activeKeys {
		if ks.Stage == lifetime.NotYetActive {
			continue
		}

		outputs := block.ScanForOutputsUnordered(ks.Key)
		primitives.SortOutputs[K, A](outputs)

		encKey := ks.Key.Encode()
		kept := make([]ScanOutput[K, A, O], 0, len(outputs))
		for _, out := range outputs {
			t.outputIDs.Observe(encKey, n, out.Id())

			if out.Kind() != primitives.External {
				kept = append(kept, ScanOutput[K, A, O]{Output: out, Disposition: Passthrough})
				continue
			}

			switch ks.Stage {
			case lifetime.Active:
				if out.Balance().Amount < t.feed.Dust(out.Balance().Coin) {
					// dust filter: dropped silently, no Return generated.
					t.metrics.RejectedOutput(string(scanerr.ReasonDust))
					continue
				}
				kept = append(kept, ScanOutput[K, A, O]{Output: out, Disposition: Credit})
				notable = true

			case lifetime.UsedToForward:
				if out.Balance().Amount < t.feed.Dust(out.Balance().Coin) {
					t.metrics.RejectedOutput(string(scanerr.ReasonDust))
					continue // dust filter applies to every External output, forwarded or not
				}
				kept = append(kept, ScanOutput[K, A, O]{Output: out, Disposition: Forward})

			default: // Forwarding, Finishing: no new deposits accepted.
				if _, known := out.Addr(); !known {
					t.metrics.RejectedOutput(string(scanerr.ReasonUnrefundable))
					continue // unrefundable, dropped silently
				}
				cost, err := t.feed.CostToAggregate(ctx, out.Balance().Coin, block)
				if err != nil {
					return err
				}
				if out.Balance().Amount < t.feed.Dust(out.Balance().Coin)+cost {
					t.metrics.RejectedOutput(string(scanerr.ReasonUncoveredByFee))
					continue // not worth refunding, dropped silently
				}
				kept = append(kept, ScanOutput[K, A, O]{Output: out, Disposition: Returned})
			}
		}

		db.SetOutputs(txn, n, ks.Key.Encode(), kept)
	}

	if notable {
		db.SetNotable(txn, n)
	}
	db.SetNextToScan(txn, n+1)
	t.metrics.ScanHead(n)
	return nil
}
