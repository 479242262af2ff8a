package db

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klaytn/bridgescan/primitives"
)

type writable interface {
	WriteTo(w io.Writer) error
}

// encodeList length-prefixes each element's WriteTo encoding so the
// collection can be split back apart without each element's encoding being
// self-delimiting.
func encodeList[T writable](items []T) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(items))); err != nil {
		return nil, err
	}
	for _, item := range items {
		var elem bytes.Buffer
		if err := item.WriteTo(&elem); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.BigEndian, uint32(elem.Len())); err != nil {
			return nil, err
		}
		buf.Write(elem.Bytes())
	}
	return buf.Bytes(), nil
}

func decodeList[T any](data []byte, decode func(io.Reader) (T, error)) ([]T, error) {
	r := bytes.NewReader(data)
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	out := make([]T, 0, count)
	for i := uint32(0); i < count; i++ {
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		elem := make([]byte, n)
		if _, err := io.ReadFull(r, elem); err != nil {
			return nil, err
		}
		v, err := decode(bytes.NewReader(elem))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// SetOutputs persists the outputs scanned for key encKey in block n,
// already in sort_outputs order, at
// scanner/outputs/<n:u64>/<K> -> [Output], sorted by id.
func SetOutputs[O writable](t Txn, n primitives.BlockNumber, encKey []byte, outputs []O) {
	data, err := encodeList(outputs)
	if err != nil {
		panic(err)
	}
	if err := t.Put(OutputsKey(n, encKey), data); err != nil {
		panic(err)
	}
}

// Outputs returns the outputs persisted for key encKey in block n.
func Outputs[O any](t Txn, n primitives.BlockNumber, encKey []byte, decode func(io.Reader) (O, error)) []O {
	v, err := t.Get(OutputsKey(n, encKey))
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		panic(err)
	}
	out, err := decodeList(v, decode)
	if err != nil {
		panic(err)
	}
	return out
}

// SetBurns persists the Burns queued as of acknowledged block n.
func SetBurns[B writable](t Txn, n primitives.BlockNumber, burns []B) {
	data, err := encodeList(burns)
	if err != nil {
		panic(err)
	}
	if err := t.Put(BurnsKey(n), data); err != nil {
		panic(err)
	}
}

// Burns returns the Burns queued as of acknowledged block n.
func Burns[B any](t Txn, n primitives.BlockNumber, decode func(io.Reader) (B, error)) []B {
	v, err := t.Get(BurnsKey(n))
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		panic(err)
	}
	out, err := decodeList(v, decode)
	if err != nil {
		panic(err)
	}
	return out
}

// DrainBurns returns every Burn queued at any acknowledged height <= n,
// deleting each entry it returns. QueueBurns stamps a burn with
// highest_acknowledged_block at the time it was queued, which need not be
// the height the Eventuality task happens to be processing when it next
// looks -- Scan may already have advanced past it by up to WindowLength.
// This prefix-scans the full scanner/burns/ keyspace instead of tracking a
// cursor, since arrival order across ack-epochs isn't monotonic with
// respect to any single cursor height.
func DrainBurns[B any](t Txn, n primitives.BlockNumber, decode func(io.Reader) (B, error)) []B {
	var drained []B
	var drainedKeys [][]byte
	if err := t.Iterate(prefixBurns, func(key, value []byte) bool {
		height := primitives.GetUint64(key[len(prefixBurns):])
		if height > n {
			return false
		}
		burns, err := decodeList(value, decode)
		if err != nil {
			panic(err)
		}
		drained = append(drained, burns...)
		drainedKeys = append(drainedKeys, append([]byte(nil), key...))
		return true
	}); err != nil {
		panic(err)
	}
	for _, key := range drainedKeys {
		if err := t.Delete(key); err != nil {
			panic(err)
		}
	}
	return drained
}

// SetPendingEventualities overwrites the full pending-Eventualities set
// owned by the key encoded as encKey.
func SetPendingEventualities[E writable](t Txn, encKey []byte, evs []E) {
	data, err := encodeList(evs)
	if err != nil {
		panic(err)
	}
	if err := t.Put(PendingEventualitiesKey(encKey), data); err != nil {
		panic(err)
	}
}

// PendingEventualities returns the pending Eventualities owned by the key
// encoded as encKey.
func PendingEventualities[E any](t Txn, encKey []byte, decode func(io.Reader) (E, error)) []E {
	v, err := t.Get(PendingEventualitiesKey(encKey))
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		panic(err)
	}
	out, err := decodeList(v, decode)
	if err != nil {
		panic(err)
	}
	return out
}

// DeletePendingEventualities removes a key's pending-Eventualities entry
// entirely, used when a key is retired (its set is empty by precondition).
func DeletePendingEventualities(t Txn, encKey []byte) {
	if err := t.Delete(PendingEventualitiesKey(encKey)); err != nil {
		panic(err)
	}
}
