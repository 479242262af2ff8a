package db

import "github.com/klaytn/bridgescan/primitives"

// Key prefixes for the persisted schema. Exact value encoding is left to
// each schema helper; these prefixes are stable across restarts by
// contract -- renaming one is a breaking migration.
var (
	prefixBlockID             = []byte("index/block_id/")
	prefixNotable             = []byte("scanner/notable/")
	keyAcked                  = []byte("scanner/acked")
	prefixQueuedKey           = []byte("scanner/queued_key/")
	prefixBurns               = []byte("scanner/burns/")
	prefixOutputs             = []byte("scanner/outputs/")
	prefixPendingEventualities = []byte("scanner/pending_eventualities/")
	keyLatestIndexed          = []byte("index/latest_indexed")
	keyNextToScan             = []byte("scanner/next_to_scan")
	keyNextToCheck            = []byte("eventuality/next_to_check")
	keyNextToReport           = []byte("report/next_to_report")
	prefixBatchID             = []byte("report/next_batch_id/")
	keyNextQueuedKeyToCheck   = []byte("eventuality/next_queued_key_to_check")
	prefixFlushed             = []byte("eventuality/flushed/")
)

// NextQueuedKeyToCheck is the Eventuality task's own cursor into the
// queued_key(m, K) collection, advanced monotonically alongside
// next_to_check so restarts resume scanning exactly where they left off
// instead of rescanning every height from genesis. Queued burns, unlike
// queued keys, are not drained via a cursor -- see DrainBurns.
func NextQueuedKeyToCheck(t Txn) primitives.BlockNumber {
	v, err := t.Get(keyNextQueuedKeyToCheck)
	if err == ErrNotFound {
		return 0
	}
	if err != nil {
		panic(err)
	}
	return primitives.GetUint64(v)
}

func SetNextQueuedKeyToCheck(t Txn, n primitives.BlockNumber) {
	if err := t.Put(keyNextQueuedKeyToCheck, primitives.PutUint64(n)); err != nil {
		panic(err)
	}
}

// FlushedKey returns the key marking retiring's outputs as already handed
// to its successor via scheduler.FlushKey, so the Eventuality task calls
// FlushKey at most once per retiring key.
func FlushedKey(encKey []byte) []byte {
	return append(append([]byte(nil), prefixFlushed...), encKey...)
}

func SetFlushed(t Txn, encKey []byte) {
	if err := t.Put(FlushedKey(encKey), []byte{1}); err != nil {
		panic(err)
	}
}

func IsFlushed(t Txn, encKey []byte) bool {
	_, err := t.Get(FlushedKey(encKey))
	if err == ErrNotFound {
		return false
	}
	if err != nil {
		panic(err)
	}
	return true
}

// BatchIDKey returns the key under which the next strictly-increasing batch
// id for network is persisted.
func BatchIDKey(network string) []byte {
	return append(append([]byte(nil), prefixBatchID...), []byte(network)...)
}

// NextToReport returns the next block number Report hasn't yet read.
func NextToReport(t Txn) primitives.BlockNumber {
	v, err := t.Get(keyNextToReport)
	if err == ErrNotFound {
		return 0
	}
	if err != nil {
		panic(err)
	}
	return primitives.GetUint64(v)
}

func SetNextToReport(t Txn, n primitives.BlockNumber) {
	if err := t.Put(keyNextToReport, primitives.PutUint64(n)); err != nil {
		panic(err)
	}
}

// NextBatchID returns the next id to assign a Batch on network, 0 if none
// have been assigned yet.
func NextBatchID(t Txn, network string) uint32 {
	v, err := t.Get(BatchIDKey(network))
	if err == ErrNotFound {
		return 0
	}
	if err != nil {
		panic(err)
	}
	return uint32(primitives.GetUint64(v))
}

// SetNextBatchID persists the next id to assign a Batch on network. Panics
// if called with anything but prev+1 -- batch ids are a strictly increasing
// contiguous sequence starting at 0.
func SetNextBatchID(t Txn, network string, next uint32) {
	prev := NextBatchID(t, network)
	if next != prev+1 {
		panic("db: batch ids must be assigned in strictly increasing contiguous order")
	}
	if err := t.Put(BatchIDKey(network), primitives.PutUint64(uint64(next))); err != nil {
		panic(err)
	}
}

// BlockIDKey returns the key under which Index persists block n's BlockId.
func BlockIDKey(n primitives.BlockNumber) []byte {
	return append(append([]byte(nil), prefixBlockID...), primitives.PutUint64(n)...)
}

// NotableKey returns the key marking block n as requiring acknowledgement.
func NotableKey(n primitives.BlockNumber) []byte {
	return append(append([]byte(nil), prefixNotable...), primitives.PutUint64(n)...)
}

// QueuedKeyKey returns the key under which a key queued to activate at
// block n is stored.
func QueuedKeyKey(n primitives.BlockNumber) []byte {
	return append(append([]byte(nil), prefixQueuedKey...), primitives.PutUint64(n)...)
}

// BurnsKey returns the key under which Burns queued as of acknowledged
// block n are stored.
func BurnsKey(n primitives.BlockNumber) []byte {
	return append(append([]byte(nil), prefixBurns...), primitives.PutUint64(n)...)
}

// OutputsKeyPrefix returns the key prefix for all of block n's scanned
// outputs (one sub-key per key K is appended by callers).
func OutputsKeyPrefix(n primitives.BlockNumber) []byte {
	return append(append([]byte(nil), prefixOutputs...), primitives.PutUint64(n)...)
}

// OutputsKey returns the key under which block n's scanned outputs for key
// encKey (the key's Encode()) are stored.
func OutputsKey(n primitives.BlockNumber, encKey []byte) []byte {
	k := append(OutputsKeyPrefix(n), '/')
	return append(k, encKey...)
}

// PendingEventualitiesKey returns the key for the set of unresolved
// Eventualities owned by the key encoded as encKey.
func PendingEventualitiesKey(encKey []byte) []byte {
	return append(append([]byte(nil), prefixPendingEventualities...), encKey...)
}

// Acked returns (highest_acknowledged_block, ok).
func Acked(t Txn) (primitives.BlockNumber, bool) {
	v, err := t.Get(keyAcked)
	if err == ErrNotFound {
		return 0, false
	}
	if err != nil {
		panic(err)
	}
	return primitives.GetUint64(v), true
}

// SetAcked monotonically advances highest_acknowledged_block. Panics (an
// invariant violation) if the caller tries to move it backwards or sideways
// -- acknowledged block numbers strictly increase by contract.
func SetAcked(t Txn, n primitives.BlockNumber) {
	if prev, ok := Acked(t); ok && n <= prev {
		panic("db: highest_acknowledged_block must strictly increase")
	}
	if err := t.Put(keyAcked, primitives.PutUint64(n)); err != nil {
		panic(err)
	}
}

func LatestIndexed(t Txn) (primitives.BlockNumber, bool) {
	v, err := t.Get(keyLatestIndexed)
	if err == ErrNotFound {
		return 0, false
	}
	if err != nil {
		panic(err)
	}
	return primitives.GetUint64(v), true
}

func SetLatestIndexed(t Txn, n primitives.BlockNumber) {
	if err := t.Put(keyLatestIndexed, primitives.PutUint64(n)); err != nil {
		panic(err)
	}
}

func NextToScan(t Txn) primitives.BlockNumber {
	v, err := t.Get(keyNextToScan)
	if err == ErrNotFound {
		return 0
	}
	if err != nil {
		panic(err)
	}
	return primitives.GetUint64(v)
}

func SetNextToScan(t Txn, n primitives.BlockNumber) {
	if err := t.Put(keyNextToScan, primitives.PutUint64(n)); err != nil {
		panic(err)
	}
}

func NextToCheck(t Txn) primitives.BlockNumber {
	v, err := t.Get(keyNextToCheck)
	if err == ErrNotFound {
		return 0
	}
	if err != nil {
		panic(err)
	}
	return primitives.GetUint64(v)
}

func SetNextToCheck(t Txn, n primitives.BlockNumber) {
	if err := t.Put(keyNextToCheck, primitives.PutUint64(n)); err != nil {
		panic(err)
	}
}

// SetBlockID persists block n's id. Never mutated once written; Index is
// the sole writer.
func SetBlockID(t Txn, n primitives.BlockNumber, id primitives.BlockId) {
	if err := t.Put(BlockIDKey(n), id); err != nil {
		panic(err)
	}
}

// BlockID returns the persisted BlockId for block n, or nil if not yet
// indexed.
func BlockID(t Txn, n primitives.BlockNumber) primitives.BlockId {
	v, err := t.Get(BlockIDKey(n))
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		panic(err)
	}
	return v
}

// SetNotable marks block n as requiring acknowledgement before the
// Eventuality task may advance past it.
func SetNotable(t Txn, n primitives.BlockNumber) {
	if err := t.Put(NotableKey(n), []byte{1}); err != nil {
		panic(err)
	}
}

// IsNotable reports whether block n was marked notable.
func IsNotable(t Txn, n primitives.BlockNumber) bool {
	_, err := t.Get(NotableKey(n))
	if err == ErrNotFound {
		return false
	}
	if err != nil {
		panic(err)
	}
	return true
}

// QueueKey persists a key to activate once the chain reaches height n.
func QueueKey(t Txn, n primitives.BlockNumber, encodedKey []byte) {
	if err := t.Put(QueuedKeyKey(n), encodedKey); err != nil {
		panic(err)
	}
}

// QueuedKey returns the key queued to activate at height n, if any.
func QueuedKey(t Txn, n primitives.BlockNumber) ([]byte, bool) {
	v, err := t.Get(QueuedKeyKey(n))
	if err == ErrNotFound {
		return nil, false
	}
	if err != nil {
		panic(err)
	}
	return v, true
}

// DeleteQueuedKey removes the queued-key entry at height n once activated.
func DeleteQueuedKey(t Txn, n primitives.BlockNumber) {
	if err := t.Delete(QueuedKeyKey(n)); err != nil {
		panic(err)
	}
}
