// Package scheduler defines the Scheduler interface the Eventuality task
// drives: the object responsible for accumulating outputs and planning new
// transactions. Constructing real transactions, signing, and coin-selection
// are explicitly out of scope -- this package only pins the contract down.
package scheduler

import (
	"encoding/binary"
	"io"

	"github.com/klaytn/bridgescan/db"
	"github.com/klaytn/bridgescan/lifetime"
	"github.com/klaytn/bridgescan/primitives"
)

// KeyStage pairs an active key with its current LifetimeStage, exactly the
// shape Scheduler.Update/Fulfill receive as active_keys -- this set may
// include a key that RetireKey has already been called on.
type KeyStage[K primitives.Key] struct {
	Key   K
	Stage lifetime.Stage
}

// Burn is a user withdrawal request queued in, and fulfilled by, the
// scheduler (see GLOSSARY).
type Burn struct {
	Destination []byte
	Balance     primitives.Balance
}

// WriteTo serializes a Burn for persistence at scanner/burns/<n>, satisfying
// the writable constraint db.SetBurns requires.
func (b Burn) WriteTo(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(b.Destination))); err != nil {
		return err
	}
	if _, err := w.Write(b.Destination); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(b.Balance.Coin)); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, uint64(b.Balance.Amount))
}

// ReadBurn is the inverse of WriteTo.
func ReadBurn(r io.Reader) (Burn, error) {
	var b Burn
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return b, err
	}
	b.Destination = make([]byte, n)
	if _, err := io.ReadFull(r, b.Destination); err != nil {
		return b, err
	}
	var coin uint32
	if err := binary.Read(r, binary.BigEndian, &coin); err != nil {
		return b, err
	}
	var amount uint64
	if err := binary.Read(r, binary.BigEndian, &amount); err != nil {
		return b, err
	}
	b.Balance = primitives.Balance{Coin: primitives.Coin(coin), Amount: primitives.Amount(amount)}
	return b, nil
}

// Scheduler is the object responsible for accumulating outputs and
// planning new transactions. Every method receives the transaction it must
// perform its writes inside of, so its bookkeeping commits atomically with
// the caller's own.
type Scheduler[K primitives.Key, A primitives.Address, O primitives.Output[K, A], E primitives.Eventuality] interface {
	// ActivateKey is idempotent. It prepares internal structures for key
	// but must NOT cause it to be used as the primary key -- the Key
	// Lifetime state machine governs that.
	ActivateKey(txn db.Txn, key K)

	// FlushKey redirects all of retiring's existing outputs towards
	// fulfilling obligations or to new. Every resulting output MUST be
	// tied to an Eventuality so retiring can eventually be retired.
	FlushKey(txn db.Txn, retiring, new K)

	// RetireKey is a precondition-checked NOP other than assertions and
	// database cleanup: retiring MUST NOT still have outputs associated
	// with it. Not expected to be ordered with respect to other calls.
	RetireKey(txn db.Txn, key K)

	// Update accumulates outputs into the scheduler, returning newly
	// pending Eventualities keyed by the encoded key they're owned by.
	Update(txn db.Txn, activeKeys []KeyStage[K], update primitives.SchedulerUpdate[K, A, O]) map[string][]E

	// Fulfill plans transactions satisfying payments, returning newly
	// pending Eventualities keyed by the encoded key they're owned by.
	//
	// Every Eventuality returned must itself produce (directly, or
	// transitively through a parent it returns) a tracked change output of
	// value >= dust. This is how the scanner guarantees it notices
	// completion and therefore flushes the queue of Burns before the
	// block that completes them becomes unacknowledgeable.
	Fulfill(txn db.Txn, activeKeys []KeyStage[K], burns []Burn) map[string][]E
}
