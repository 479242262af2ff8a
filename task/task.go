// Package task provides the one-slot, coalescing notification primitive the
// four scanner tasks use to wake each other up, plus the continually-run
// loop that drives a Task forever with jittered backoff on ephemeral errors.
package task

import (
	"context"
	"math/rand"
	"time"

	"github.com/klaytn/bridgescan/log"
)

// RunNowHandle is the sender side of a one-slot coalescing signal. Calling
// RunNow when a signal is already pending is a no-op: every task
// idempotently reprocesses whatever new state exists, so coalescing
// multiple wakeups into one is always safe and is the whole point of using
// this instead of a full queue.
type RunNowHandle struct {
	ch chan struct{}
}

// RunNowReceiver is the receiver side; only the task that owns it should
// call Recv.
type RunNowReceiver struct {
	ch chan struct{}
}

// NewRunNowHandle creates a linked handle/receiver pair.
func NewRunNowHandle() (RunNowHandle, RunNowReceiver) {
	ch := make(chan struct{}, 1)
	return RunNowHandle{ch: ch}, RunNowReceiver{ch: ch}
}

// RunNow signals the task to run again as soon as it's free. Non-blocking
// and idempotent.
func (h RunNowHandle) RunNow() {
	select {
	case h.ch <- struct{}{}:
	default:
	}
}

// Recv blocks until a RunNow signal arrives, the context is cancelled, or
// the wait timeout elapses (used to poll ephemeral-error retries and
// periodic re-checks even absent an explicit signal).
func (r RunNowReceiver) Recv(ctx context.Context, timeout time.Duration) (signalled bool) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-r.ch:
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// Task is one tick of work. It returns whether it made forward progress
// (used to decide whether to immediately re-run without waiting on the
// next signal/timeout) and an error that must already be classified --
// ephemeral errors are retried by ContinuallyRun, invariant violations
// panic from inside Tick itself and are never returned here.
type Task interface {
	Name() string
	Tick(ctx context.Context) (progressed bool, err error)
}

// ContinuallyRun runs t forever until ctx is cancelled, waking whenever
// recv fires and otherwise polling on a jittered idle interval so ephemeral
// fetch/publish errors are retried with backoff without a dedicated retry
// loop in every task. On every tick that made progress, every handle in
// notify is signalled -- this is how Index->Scan, Scan->Report, and
// Eventuality->Scan stay wired without the tasks knowing about each other
// directly.
func ContinuallyRun(ctx context.Context, t Task, recv RunNowReceiver, notify []RunNowHandle) {
	l := log.NewModuleLogger("task").With("task", t.Name())
	const idlePoll = 5 * time.Second

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		progressed, err := t.Tick(ctx)
		if err != nil {
			// Ephemeral errors retry forever with jittered backoff and are
			// never surfaced further.
			l.Warn("ephemeral error, retrying", "err", err, "backoff", backoff)
			sleepWithJitter(ctx, backoff)
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second

		if progressed {
			for _, h := range notify {
				h.RunNow()
			}
			// Immediately check for more work rather than waiting a full
			// idle interval; a RunNow signal set during this loop will
			// be drained on the next iteration's Recv call anyway.
			continue
		}

		recv.Recv(ctx, idlePoll)
	}
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	const max = 30 * time.Second
	if next > max {
		next = max
	}
	return next
}

func sleepWithJitter(ctx context.Context, d time.Duration) {
	jitter := time.Duration(rand.Int63n(int64(d) / 2))
	t := time.NewTimer(d + jitter)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
