// Package simple provides a reference Scheduler good enough to drive the
// scanner end-to-end in tests without a real transaction planner. It
// accumulates outputs and fabricates placeholder Eventualities; it never
// constructs, signs, or broadcasts a real transaction -- signing and coin
// selection are left to a production scheduler implementation.
package simple

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/klaytn/bridgescan/db"
	"github.com/klaytn/bridgescan/lifetime"
	"github.com/klaytn/bridgescan/log"
	"github.com/klaytn/bridgescan/primitives"
	"github.com/klaytn/bridgescan/scheduler"
)

var logger = log.NewModuleLogger(log.ModuleScheduler)

// Eventuality is the reference scheduler's own Eventuality implementation:
// a monotonic counter scoped to the key that owns it, standing in for
// whatever real lookup predicate (contract nonce, spent-output reference,
// ...) a concrete chain integration would use.
type Eventuality struct {
	Nonce uint64
}

func (e Eventuality) LookupKey() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, e.Nonce)
	return b
}

func (e Eventuality) WriteTo(w io.Writer) error {
	return binary.Write(w, binary.BigEndian, e.Nonce)
}

func ReadEventuality(r io.Reader) (Eventuality, error) {
	var e Eventuality
	err := binary.Read(r, binary.BigEndian, &e.Nonce)
	return e, err
}

// Scheduler is the in-memory reference implementation of
// scheduler.Scheduler. Unlike the rest of the scanner, its state lives in
// plain Go maps guarded by a mutex, not in the db.Txn it's handed -- it
// exists to drive the scanner end-to-end in tests within a single process,
// not to survive a restart. A production Scheduler persists its
// bookkeeping through the transaction the same way every other task does.
type Scheduler[K primitives.Key, A primitives.Address, O primitives.Output[K, A]] struct {
	mu        sync.Mutex
	nonceByKey map[string]uint64
	// accumulated mirrors what a real scheduler would track: every output
	// it has been handed, keyed by the owning key's encoding, until
	// flushed or retired.
	accumulated map[string][]O
}

func New[K primitives.Key, A primitives.Address, O primitives.Output[K, A]]() *Scheduler[K, A, O] {
	return &Scheduler[K, A, O]{
		nonceByKey:  make(map[string]uint64),
		accumulated: make(map[string][]O),
	}
}

func encKey[K primitives.Key](k K) string { return string(k.Encode()) }

func (s *Scheduler[K, A, O]) nextEventuality(key string) Eventuality {
	s.nonceByKey[key]++
	return Eventuality{Nonce: s.nonceByKey[key]}
}

func (s *Scheduler[K, A, O]) ActivateKey(txn db.Txn, key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := encKey(key)
	if _, ok := s.accumulated[k]; !ok {
		s.accumulated[k] = nil
		logger.Debug("activated key", "key", key.String())
	}
}

func (s *Scheduler[K, A, O]) FlushKey(txn db.Txn, retiring, new K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rk, nk := encKey(retiring), encKey(new)
	s.accumulated[nk] = append(s.accumulated[nk], s.accumulated[rk]...)
	delete(s.accumulated, rk)
	logger.Info("flushed key", "retiring", retiring.String(), "new", new.String())
}

func (s *Scheduler[K, A, O]) RetireKey(txn db.Txn, key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := encKey(key)
	if len(s.accumulated[k]) != 0 {
		panic(fmt.Sprintf("scheduler: retiring key %s with %d outputs still outstanding", key.String(), len(s.accumulated[k])))
	}
	delete(s.accumulated, k)
	delete(s.nonceByKey, k)
}

func (s *Scheduler[K, A, O]) Update(txn db.Txn, activeKeys []scheduler.KeyStage[K], update primitives.SchedulerUpdate[K, A, O]) map[string][]Eventuality {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string][]Eventuality)
	for _, out := range update.Outputs {
		k := encKey(out.Key())
		s.accumulated[k] = append(s.accumulated[k], out)
	}
	for _, out := range update.Forwards {
		// Forwarded outputs move to whichever active key isn't the one
		// they arrived at (the successor); the reference scheduler picks
		// the first other active key, good enough for tests driving a
		// single rotation at a time.
		for _, as := range activeKeys {
			if encKey(as.Key) != encKey(out.Key()) {
				k := encKey(as.Key)
				s.accumulated[k] = append(s.accumulated[k], out)
				ev := s.nextEventuality(k)
				result[k] = append(result[k], ev)
				break
			}
		}
	}
	for range update.Returns {
		// Returns need no Eventuality of their own in this reference
		// scheduler: the real implementation would plan a refund
		// transaction; we simply note it happened.
	}
	return result
}

func (s *Scheduler[K, A, O]) Fulfill(txn db.Txn, activeKeys []scheduler.KeyStage[K], burns []scheduler.Burn) map[string][]Eventuality {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string][]Eventuality)
	if len(burns) == 0 || len(activeKeys) == 0 {
		return result
	}

	// Pick the first key that isn't Finishing to fulfil from, matching the
	// real scheduler's obligation to route new spends away from a
	// finishing key.
	var primary *scheduler.KeyStage[K]
	for i := range activeKeys {
		if activeKeys[i].Stage != lifetime.Finishing {
			primary = &activeKeys[i]
			break
		}
	}
	if primary == nil {
		return result
	}

	k := encKey(primary.Key)
	// Every Eventuality returned by Fulfill must (transitively) produce a
	// change output at or above dust: the reference scheduler emits exactly
	// one Eventuality per Fulfill call representing that change output,
	// regardless of how many burns it's bundling.
	ev := s.nextEventuality(k)
	result[k] = append(result[k], ev)
	logger.Debug("fulfilling burns", "key", primary.Key.String(), "count", len(burns))
	return result
}
