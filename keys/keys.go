// Package keys maintains the persisted registry of every multisig key the
// scanner has ever been told about, ordered by activation height. Scan and
// Eventuality both need to enumerate "every key we should still be looking
// at" together with its LifetimeStage as of a given block; this is the one
// place that bookkeeping lives, so both tasks compute identical answers
// from the same committed state instead of keeping their own copies in
// memory.
package keys

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klaytn/bridgescan/cache"
	"github.com/klaytn/bridgescan/db"
	"github.com/klaytn/bridgescan/lifetime"
	"github.com/klaytn/bridgescan/primitives"
	"github.com/klaytn/bridgescan/scheduler"
)

var keyRegistry = []byte("scanner/active_keys")

// Record is one entry in the registry: a key and the height it activates
// (or activated) at.
type Record[K primitives.Key] struct {
	Key        K
	Activation primitives.BlockNumber
}

func (r Record[K]) writeTo(w io.Writer) error {
	enc := r.Key.Encode()
	if err := binary.Write(w, binary.BigEndian, uint32(len(enc))); err != nil {
		return err
	}
	if _, err := w.Write(enc); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, r.Activation)
}

func readRecord[K primitives.Key](r io.Reader, decode func([]byte) (K, error)) (Record[K], error) {
	var rec Record[K]
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return rec, err
	}
	enc := make([]byte, n)
	if _, err := io.ReadFull(r, enc); err != nil {
		return rec, err
	}
	key, err := decode(enc)
	if err != nil {
		return rec, err
	}
	var activation uint64
	if err := binary.Read(r, binary.BigEndian, &activation); err != nil {
		return rec, err
	}
	rec.Key = key
	rec.Activation = activation
	return rec, nil
}

func encodeRecords[K primitives.Key](recs []Record[K]) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(recs))); err != nil {
		return nil, err
	}
	for _, r := range recs {
		if err := r.writeTo(&buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeRecords[K primitives.Key](data []byte, decode func([]byte) (K, error)) ([]Record[K], error) {
	r := bytes.NewReader(data)
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	out := make([]Record[K], 0, count)
	for i := uint32(0); i < count; i++ {
		rec, err := readRecord(r, decode)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// List returns every key the registry knows about, ordered by ascending
// activation height.
func List[K primitives.Key](t db.Txn, decode func([]byte) (K, error)) []Record[K] {
	v, err := t.Get(keyRegistry)
	if err == db.ErrNotFound {
		return nil
	}
	if err != nil {
		panic(err)
	}
	recs, err := decodeRecords(v, decode)
	if err != nil {
		panic(err)
	}
	return recs
}

func setList[K primitives.Key](t db.Txn, recs []Record[K]) {
	data, err := encodeRecords(recs)
	if err != nil {
		panic(err)
	}
	if err := t.Put(keyRegistry, data); err != nil {
		panic(err)
	}
}

// Activate idempotently introduces key into the registry at the given
// activation height. The registry is kept ordered by activation, so the
// record immediately after key's is, by construction, its successor -- a
// key has at most one successor at a time.
func Activate[K primitives.Key](t db.Txn, decode func([]byte) (K, error), key K, activation primitives.BlockNumber) {
	recs := List(t, decode)
	enc := key.Encode()
	for _, r := range recs {
		if bytes.Equal(r.Key.Encode(), enc) {
			return
		}
	}
	recs = append(recs, Record[K]{Key: key, Activation: activation})
	setList(t, recs)
}

// Retire removes key from the registry. Panics if key was never registered
// -- RetireKey is only ever invoked on a key Activate introduced earlier.
func Retire[K primitives.Key](t db.Txn, decode func([]byte) (K, error), key K) {
	recs := List(t, decode)
	enc := key.Encode()
	out := recs[:0]
	found := false
	for _, r := range recs {
		if bytes.Equal(r.Key.Encode(), enc) {
			found = true
			continue
		}
		out = append(out, r)
	}
	if !found {
		panic("keys: retiring a key that was never active")
	}
	setList(t, out)
}

// ActiveAt returns every registered key paired with its LifetimeStage as of
// block current, in registry (activation) order. Callers that only want
// keys actually in use should filter out lifetime.NotYetActive themselves --
// Scheduler.Update/Fulfill are documented to tolerate a broader set, which
// may include a key RetireKey has already been called on.
func ActiveAt[K primitives.Key](t db.Txn, decode func([]byte) (K, error), current primitives.BlockNumber, tenMinutes uint64) []scheduler.KeyStage[K] {
	return ActiveAtCached(t, decode, current, tenMinutes, nil)
}

// ActiveAtCached is ActiveAt with an optional LifetimeCache memoizing the
// (key, height) -> Stage computation: Scan and Eventuality both call this
// once per tick, but a long-lived process re-derives the same stage for the
// same still-active key across many consecutive ticks as height advances
// one at a time, and the cache lets repeats of the identical (key, height)
// pair (e.g. a retry after an ephemeral error re-enters the same tick) skip
// straight to the memoized answer. Passing a nil cache always recomputes.
func ActiveAtCached[K primitives.Key](t db.Txn, decode func([]byte) (K, error), current primitives.BlockNumber, tenMinutes uint64, c *cache.LifetimeCache) []scheduler.KeyStage[K] {
	recs := List(t, decode)
	out := make([]scheduler.KeyStage[K], 0, len(recs))
	for i, r := range recs {
		var successor *primitives.BlockNumber
		if i+1 < len(recs) {
			s := recs[i+1].Activation
			successor = &s
		}
		encKey := r.Key.Encode()
		compute := func() lifetime.Stage {
			return lifetime.ComputeStage(r.Activation, successor, current, tenMinutes)
		}
		var stage lifetime.Stage
		if c != nil {
			stage = c.Stage(encKey, current, compute)
		} else {
			stage = compute()
		}
		out = append(out, scheduler.KeyStage[K]{Key: r.Key, Stage: stage})
	}
	return out
}
