package scannertest

import (
	"github.com/klaytn/bridgescan/db"
	"github.com/klaytn/bridgescan/feed/memory"
	"github.com/klaytn/bridgescan/primitives"
	"github.com/klaytn/bridgescan/scheduler"
)

// SchedulerStub is a function-field stub implementation of
// scheduler.Scheduler[K, A, O, E], for unit tests that want to assert
// exactly what the Eventuality task handed the scheduler without standing
// up scheduler/simple's full bookkeeping. Every field defaults to a no-op
// if left nil, except Update/Fulfill which return an empty map.
type SchedulerStub[K primitives.Key, A primitives.Address, O primitives.Output[K, A], E primitives.Eventuality] struct {
	ActivateKeyFn func(txn db.Txn, key K)
	FlushKeyFn    func(txn db.Txn, retiring, new K)
	RetireKeyFn   func(txn db.Txn, key K)
	UpdateFn      func(txn db.Txn, activeKeys []scheduler.KeyStage[K], update primitives.SchedulerUpdate[K, A, O]) map[string][]E
	FulfillFn     func(txn db.Txn, activeKeys []scheduler.KeyStage[K], burns []scheduler.Burn) map[string][]E

	// Calls records every invocation by method name, in order, for
	// assertions that only care about the call sequence.
	Calls []string
}

func (s *SchedulerStub[K, A, O, E]) ActivateKey(txn db.Txn, key K) {
	s.Calls = append(s.Calls, "ActivateKey")
	if s.ActivateKeyFn != nil {
		s.ActivateKeyFn(txn, key)
	}
}

func (s *SchedulerStub[K, A, O, E]) FlushKey(txn db.Txn, retiring, new K) {
	s.Calls = append(s.Calls, "FlushKey")
	if s.FlushKeyFn != nil {
		s.FlushKeyFn(txn, retiring, new)
	}
}

func (s *SchedulerStub[K, A, O, E]) RetireKey(txn db.Txn, key K) {
	s.Calls = append(s.Calls, "RetireKey")
	if s.RetireKeyFn != nil {
		s.RetireKeyFn(txn, key)
	}
}

func (s *SchedulerStub[K, A, O, E]) Update(txn db.Txn, activeKeys []scheduler.KeyStage[K], update primitives.SchedulerUpdate[K, A, O]) map[string][]E {
	s.Calls = append(s.Calls, "Update")
	if s.UpdateFn != nil {
		return s.UpdateFn(txn, activeKeys, update)
	}
	return map[string][]E{}
}

func (s *SchedulerStub[K, A, O, E]) Fulfill(txn db.Txn, activeKeys []scheduler.KeyStage[K], burns []scheduler.Burn) map[string][]E {
	s.Calls = append(s.Calls, "Fulfill")
	if s.FulfillFn != nil {
		return s.FulfillFn(txn, activeKeys, burns)
	}
	return map[string][]E{}
}

var _ scheduler.Scheduler[memory.Key, memory.Address, memory.Output, memory.Eventuality] = (*SchedulerStub[memory.Key, memory.Address, memory.Output, memory.Eventuality])(nil)
