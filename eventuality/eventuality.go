// Package eventuality implements the Eventuality task, the most intricate
// of the four: it matches pending Eventualities against
// block transactions, drives the Scheduler, advances the "allowed to scan"
// frontier, and is the sole task that ever halts waiting on acknowledgement.
package eventuality

import (
	"context"
	"io"

	"github.com/klaytn/bridgescan/cache"
	"github.com/klaytn/bridgescan/db"
	"github.com/klaytn/bridgescan/feed"
	"github.com/klaytn/bridgescan/index"
	"github.com/klaytn/bridgescan/keys"
	"github.com/klaytn/bridgescan/lifetime"
	"github.com/klaytn/bridgescan/log"
	"github.com/klaytn/bridgescan/metrics"
	"github.com/klaytn/bridgescan/primitives"
	"github.com/klaytn/bridgescan/scan"
	"github.com/klaytn/bridgescan/scheduler"
)

var logger = log.NewModuleLogger(log.ModuleEventuality)

type Task[K primitives.Key, A primitives.Address, O primitives.Output[K, A], E primitives.Eventuality, B primitives.Block[K, A, O, E]] struct {
	database        db.Database
	feed            feed.ScannerFeed[K, A, O, E, B]
	scheduler       scheduler.Scheduler[K, A, O, E]
	decodeKey       func([]byte) (K, error)
	readOutput      func(io.Reader) (O, error)
	readEventuality func(io.Reader) (E, error)
	decodeBurn      func(io.Reader) (scheduler.Burn, error)

	lifetimeCache *cache.LifetimeCache
	metrics       *metrics.Recorder
}

// WithMetrics attaches a metrics.Recorder; nil (the default) disables
// metrics entirely.
func (t *Task[K, A, O, E, B]) WithMetrics(m *metrics.Recorder) *Task[K, A, O, E, B] {
	t.metrics = m
	return t
}

func New[K primitives.Key, A primitives.Address, O primitives.Output[K, A], E primitives.Eventuality, B primitives.Block[K, A, O, E]](
	database db.Database,
	f feed.ScannerFeed[K, A, O, E, B],
	sched scheduler.Scheduler[K, A, O, E],
	decodeKey func([]byte) (K, error),
	readOutput func(io.Reader) (O, error),
	readEventuality func(io.Reader) (E, error),
	decodeBurn func(io.Reader) (scheduler.Burn, error),
) *Task[K, A, O, E, B] {
	return &Task[K, A, O, E, B]{
		database:        database,
		feed:            f,
		scheduler:       sched,
		decodeKey:       decodeKey,
		readOutput:      readOutput,
		readEventuality: readEventuality,
		decodeBurn:      decodeBurn,
		lifetimeCache:   cache.NewLifetimeCache(),
	}
}

func (t *Task[K, A, O, E, B]) Name() string { return "eventuality" }

// Tick processes exactly one block, n = next_to_check, provided it falls
// within [next_to_check, min(latest_scanned, ack+WINDOW_LENGTH)); before the
// first acknowledgement only latest_scanned bounds it. If n turns
// out notable and isn't yet acknowledged, the task halts there (the "stop
// policy") and reports no progress; ContinuallyRun idles
// until the next RunNow (an acknowledge_block call) wakes it.
func (t *Task[K, A, O, E, B]) Tick(ctx context.Context) (bool, error) {
	n, ok, err := t.nextBound()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	var progressed bool
	if err := t.database.Update(func(txn db.Txn) error {
		p, err := t.processBlock(ctx, txn, n)
		progressed = p
		return err
	}); err != nil {
		return false, err
	}
	return progressed, nil
}

func (t *Task[K, A, O, E, B]) nextBound() (primitives.BlockNumber, bool, error) {
	var n primitives.BlockNumber
	var ok bool
	err := t.database.View(func(txn db.Txn) error {
		n = db.NextToCheck(txn)
		latestScanned := db.NextToScan(txn)
		if n >= latestScanned {
			return nil
		}
		windowLength := t.feed.WindowLength()
		if ack, acked := db.Acked(txn); acked {
			if n >= ack+windowLength {
				return nil
			}
		}
		ok = true
		return nil
	})
	return n, ok, err
}

func (t *Task[K, A, O, E, B]) processBlock(ctx context.Context, txn db.Txn, n primitives.BlockNumber) (bool, error) {
	block, err := index.BlockByNumber[K, A, O, E, B](ctx, txn, t.feed, n)
	if err != nil {
		return false, err
	}

	tenMinutes := t.feed.TenMinutes()
	activeKeys := keys.ActiveAtCached(txn, t.decodeKey, n, tenMinutes, t.lifetimeCache)

	resolved := t.matchEventualities(txn, block, activeKeys)
	notable := resolved || db.IsNotable(txn, n)
	if notable {
		db.SetNotable(txn, n)
	}

	ack, acked := db.Acked(txn)
	if notable && !(acked && n <= ack) {
		// Halt: this block requires acknowledgement before we may advance
		// past it, and it hasn't come yet.
		return false, nil
	}

	if acked && n <= ack {
		t.runSchedulerDance(txn, n, activeKeys)
	}

	db.SetNextToCheck(txn, n+1)
	t.metrics.EventualityHead(n)
	for _, ks := range activeKeys {
		t.metrics.PendingEventualities(ks.Key.String(), len(db.PendingEventualities(txn, ks.Key.Encode(), t.readEventuality)))
	}
	logger.Info("checked block", "number", n, "notable", notable)
	return true, nil
}

// matchEventualities tests block's transactions against every active key's
// pending Eventualities, removing matches, and reports whether anything
// resolved.
func (t *Task[K, A, O, E, B]) matchEventualities(txn db.Txn, block B, activeKeys []scheduler.KeyStage[K]) bool {
	resolved := false
	for _, ks := range activeKeys {
		encKey := ks.Key.Encode()
		pending := db.PendingEventualities(txn, encKey, t.readEventuality)
		if len(pending) == 0 {
			continue
		}

		remaining := pending[:0]
		for _, ev := range pending {
			matched := false
			for _, txOut := range block.Transactions() {
				if txOut.Matches(ev) {
					matched = true
					break
				}
			}
			if matched {
				resolved = true
				continue
			}
			remaining = append(remaining, ev)
		}
		if len(remaining) != len(pending) {
			db.SetPendingEventualities(txn, encKey, remaining)
		}
	}
	return resolved
}

// runSchedulerDance drives the full scheduler handoff once block n is known
// to be covered by an acknowledgement: hand off n's scanned outputs, drain
// queued burns, activate/retire/flush keys.
func (t *Task[K, A, O, E, B]) runSchedulerDance(txn db.Txn, n primitives.BlockNumber, activeKeys []scheduler.KeyStage[K]) {
	update := t.collectSchedulerUpdate(txn, n, activeKeys)
	t.merge(txn, t.scheduler.Update(txn, activeKeys, update))

	burns := t.drainBurns(txn, n)
	if len(burns) != 0 {
		t.merge(txn, t.scheduler.Fulfill(txn, activeKeys, burns))
	}

	t.activateQueuedKeys(txn, n)
	t.flushRotatingKeys(txn, activeKeys)
	t.retireFinishedKeys(txn, activeKeys)
}

func (t *Task[K, A, O, E, B]) collectSchedulerUpdate(txn db.Txn, n primitives.BlockNumber, activeKeys []scheduler.KeyStage[K]) primitives.SchedulerUpdate[K, A, O] {
	var update primitives.SchedulerUpdate[K, A, O]
	for _, ks := range activeKeys {
		for _, so := range scan.Outputs[K, A, O](txn, n, ks.Key.Encode(), t.readOutput) {
			switch so.Disposition {
			case scan.Credit, scan.Passthrough:
				update.Outputs = append(update.Outputs, so.Output)
			case scan.Forward:
				update.Forwards = append(update.Forwards, so.Output)
			case scan.Returned:
				addr, _ := so.Output.Addr() // guaranteed known: scan only marks Returned when Addr() succeeded
				update.Returns = append(update.Returns, primitives.Return[K, A, O]{Address: addr, Output: so.Output})
			}
		}
	}
	return update
}

// drainBurns returns every Burn queued at any acknowledged height <= n,
// across every ack-epoch -- queue_burns stamps a burn with whatever
// highest_acknowledged_block held at enqueue time, which may already be
// behind where this task's cursor otherwise sits, so every pending entry
// up to n must be considered, not just the one at n.
func (t *Task[K, A, O, E, B]) drainBurns(txn db.Txn, n primitives.BlockNumber) []scheduler.Burn {
	return db.DrainBurns(txn, n, t.decodeBurn)
}

func (t *Task[K, A, O, E, B]) activateQueuedKeys(txn db.Txn, n primitives.BlockNumber) {
	start := db.NextQueuedKeyToCheck(txn)
	for m := start; m <= n; m++ {
		encKey, ok := db.QueuedKey(txn, m)
		if !ok {
			continue
		}
		key, err := t.decodeKey(encKey)
		if err != nil {
			panic(err)
		}
		t.scheduler.ActivateKey(txn, key)
		keys.Activate(txn, t.decodeKey, key, m)
		db.DeleteQueuedKey(txn, m)
		logger.Info("activated queued key", "key", key.String(), "height", m)
	}
	if n+1 > start {
		db.SetNextQueuedKeyToCheck(txn, n+1)
	}
}

// flushRotatingKeys calls scheduler.FlushKey exactly once, the tick a key
// first enters UsedToForward.
func (t *Task[K, A, O, E, B]) flushRotatingKeys(txn db.Txn, activeKeys []scheduler.KeyStage[K]) {
	for i, ks := range activeKeys {
		if ks.Stage != lifetime.UsedToForward {
			continue
		}
		encKey := ks.Key.Encode()
		if db.IsFlushed(txn, encKey) {
			continue
		}
		if i+1 >= len(activeKeys) {
			continue // no registered successor yet; nothing to flush to
		}
		successor := activeKeys[i+1].Key
		t.scheduler.FlushKey(txn, ks.Key, successor)
		db.SetFlushed(txn, encKey)
		logger.Info("flushed rotating key", "retiring", ks.Key.String(), "new", successor.String())
	}
}

func (t *Task[K, A, O, E, B]) retireFinishedKeys(txn db.Txn, activeKeys []scheduler.KeyStage[K]) {
	for _, ks := range activeKeys {
		if ks.Stage != lifetime.Finishing {
			continue
		}
		encKey := ks.Key.Encode()
		if len(db.PendingEventualities(txn, encKey, t.readEventuality)) != 0 {
			continue
		}
		t.scheduler.RetireKey(txn, ks.Key)
		keys.Retire(txn, t.decodeKey, ks.Key)
		db.DeletePendingEventualities(txn, encKey)
		logger.Info("retired key", "key", ks.Key.String())
	}
}

func (t *Task[K, A, O, E, B]) merge(txn db.Txn, newEventualities map[string][]E) {
	for encKey, evs := range newEventualities {
		if len(evs) == 0 {
			continue
		}
		existing := db.PendingEventualities(txn, []byte(encKey), t.readEventuality)
		db.SetPendingEventualities(txn, []byte(encKey), append(existing, evs...))
	}
}
