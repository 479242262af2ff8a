// Package scanner wires the four tasks (Index, Scan, Report, Eventuality)
// together and exposes the two synchronous entry points the external
// consensus layer drives: AcknowledgeBlock and QueueBurns.
package scanner

import (
	"context"
	"io"

	"github.com/klaytn/bridgescan/audit"
	"github.com/klaytn/bridgescan/cache"
	"github.com/klaytn/bridgescan/db"
	"github.com/klaytn/bridgescan/eventuality"
	"github.com/klaytn/bridgescan/feed"
	"github.com/klaytn/bridgescan/index"
	"github.com/klaytn/bridgescan/log"
	"github.com/klaytn/bridgescan/metrics"
	"github.com/klaytn/bridgescan/primitives"
	"github.com/klaytn/bridgescan/report"
	"github.com/klaytn/bridgescan/scan"
	"github.com/klaytn/bridgescan/scanerr"
	"github.com/klaytn/bridgescan/scheduler"
	"github.com/klaytn/bridgescan/task"
)

var logger = log.NewModuleLogger(log.ModuleScanner)

// Scanner owns the four tasks and the persistent store backing them. It is
// the only thing constructed by a chain-specific integration; everything
// else in this module is generic over {K, A, O, E, B}.
type Scanner[K primitives.Key, A primitives.Address, O primitives.Output[K, A], E primitives.Eventuality, B primitives.Block[K, A, O, E]] struct {
	database  db.Database
	feed      feed.ScannerFeed[K, A, O, E, B]
	decodeKey func([]byte) (K, error)

	indexTask       *index.Task[K, A, O, E, B]
	scanTask        *scan.Task[K, A, O, E, B]
	reportTask      *report.Task[K, A, O, E, B]
	eventualityTask *eventuality.Task[K, A, O, E, B]

	indexRecv         task.RunNowReceiver
	scanRecv          task.RunNowReceiver
	reportRecv        task.RunNowReceiver
	eventualityRecv   task.RunNowReceiver
	scanHandle        task.RunNowHandle
	reportHandle      task.RunNowHandle
	eventualityHandle task.RunNowHandle

	status  *cache.StatusMirror
	metrics *metrics.Recorder
	ledger  *audit.Ledger
}

// WithAuditLedger attaches a SQL audit ledger, propagated to the Report
// task, which is the only one that records anything into it.
func (s *Scanner[K, A, O, E, B]) WithAuditLedger(l *audit.Ledger) *Scanner[K, A, O, E, B] {
	s.ledger = l
	s.reportTask.WithAuditLedger(l)
	return s
}

// WithStatusMirror attaches a Redis-backed progress mirror (cache.NewStatusMirror)
// so external dashboards or a hot standby can read how far this instance
// got without touching its db directly. Optional; unattached by default.
func (s *Scanner[K, A, O, E, B]) WithStatusMirror(m *cache.StatusMirror) *Scanner[K, A, O, E, B] {
	s.status = m
	return s
}

// WithMetrics attaches a metrics.Recorder, propagating it to the Scan and
// Eventuality tasks as well since they're the ones that observe per-block
// progress and rejection events.
func (s *Scanner[K, A, O, E, B]) WithMetrics(m *metrics.Recorder) *Scanner[K, A, O, E, B] {
	s.metrics = m
	s.scanTask.WithMetrics(m)
	s.eventualityTask.WithMetrics(m)
	return s
}

// New constructs a Scanner. decodeKey, readOutput, and readEventuality are
// the caller-supplied inverse of each type's WriteTo/Encode, since Go
// generics can't express "construct T from bytes" directly; burns are
// decoded with scheduler.ReadBurn.
func New[K primitives.Key, A primitives.Address, O primitives.Output[K, A], E primitives.Eventuality, B primitives.Block[K, A, O, E]](
	database db.Database,
	f feed.ScannerFeed[K, A, O, E, B],
	publisher feed.BatchPublisher,
	sched scheduler.Scheduler[K, A, O, E],
	startBlock primitives.BlockNumber,
	decodeKey func([]byte) (K, error),
	readOutput func(io.Reader) (O, error),
	readEventuality func(io.Reader) (E, error),
) *Scanner[K, A, O, E, B] {
	// Index is never signalled by another task in this wiring; it free-runs
	// on its own idle poll, but ContinuallyRun still needs a receiver.
	_, indexRecv := task.NewRunNowHandle()
	scanHandle, scanRecv := task.NewRunNowHandle()
	reportHandle, reportRecv := task.NewRunNowHandle()
	eventualityHandle, eventualityRecv := task.NewRunNowHandle()

	return &Scanner[K, A, O, E, B]{
		database:  database,
		feed:      f,
		decodeKey: decodeKey,

		indexTask:       index.New[K, A, O, E, B](database, f, startBlock),
		scanTask:        scan.New[K, A, O, E, B](database, f, decodeKey, startBlock),
		reportTask:      report.New[K, A, O, E, B](database, f, publisher, decodeKey, readOutput),
		eventualityTask: eventuality.New[K, A, O, E, B](database, f, sched, decodeKey, readOutput, readEventuality, scheduler.ReadBurn),

		indexRecv:         indexRecv,
		scanRecv:          scanRecv,
		reportRecv:        reportRecv,
		eventualityRecv:   eventualityRecv,
		scanHandle:        scanHandle,
		reportHandle:      reportHandle,
		eventualityHandle: eventualityHandle,
	}
}

// Run starts all four tasks and blocks until ctx is cancelled. Intended to
// be called from its own goroutine by the caller, or directly from main.
func (s *Scanner[K, A, O, E, B]) Run(ctx context.Context) {
	done := make(chan struct{}, 4)
	run := func(t task.Task, recv task.RunNowReceiver, notify []task.RunNowHandle) {
		task.ContinuallyRun(ctx, t, recv, notify)
		done <- struct{}{}
	}

	go run(s.indexTask, s.indexRecv, []task.RunNowHandle{s.scanHandle})
	go run(s.scanTask, s.scanRecv, []task.RunNowHandle{s.reportHandle})
	go run(s.reportTask, s.reportRecv, nil)
	go run(s.eventualityTask, s.eventualityRecv, []task.RunNowHandle{s.scanHandle})

	for i := 0; i < 4; i++ {
		<-done
	}
}

// AcknowledgeBlock is the consensus layer's entry point telling the scanner
// block n is finalized in its own view: n must be notable and strictly
// greater than every prior acknowledgement. keyToActivate, if non-nil, is
// queued to activate at n + WINDOW_LENGTH.
// Every precondition violation panics -- acknowledge_block is infallible
// from the consensus layer's point of view.
func (s *Scanner[K, A, O, E, B]) AcknowledgeBlock(ctx context.Context, n primitives.BlockNumber, keyToActivate *K) error {
	err := s.database.Update(func(txn db.Txn) error {
		if !db.IsNotable(txn, n) {
			scanerr.Invariant("acknowledging a block which wasn't notable")
		}
		prev, acked := db.Acked(txn)
		if acked && n <= prev {
			scanerr.Invariant("acknowledging blocks out-of-order")
		}
		start := primitives.BlockNumber(0)
		if acked {
			start = prev + 1
		}
		for m := start; m < n; m++ {
			if db.IsNotable(txn, m) {
				scanerr.Invariant("skipped acknowledging a block which was notable: %d", m)
			}
		}

		if keyToActivate != nil {
			activation := n + s.feed.WindowLength()
			db.QueueKey(txn, activation, (*keyToActivate).Encode())
		}

		db.SetAcked(txn, n)
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("acknowledged block", "number", n)
	s.status.SetHeight("acknowledged", n)
	s.metrics.Acknowledged(n)
	s.ledger.RecordAcknowledgement(n)
	s.eventualityHandle.RunNow()
	return nil
}

// QueueBurns stamps burns with the current highest_acknowledged_block and
// persists them for the Eventuality task to drain. Panics if no block has
// ever been acknowledged: queueing a Burn requires at least one prior
// acknowledged block to stamp it with.
func (s *Scanner[K, A, O, E, B]) QueueBurns(ctx context.Context, burns []scheduler.Burn) error {
	err := s.database.Update(func(txn db.Txn) error {
		ack, acked := db.Acked(txn)
		if !acked {
			scanerr.Invariant("queueing Burns yet never acknowledged a block")
		}
		existing := db.Burns(txn, ack, scheduler.ReadBurn)
		db.SetBurns(txn, ack, append(existing, burns...))
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("queued burns", "count", len(burns))
	s.eventualityHandle.RunNow()
	return nil
}
