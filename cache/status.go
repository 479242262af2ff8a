package cache

import (
	"strconv"

	"github.com/go-redis/redis/v7"

	"github.com/klaytn/bridgescan/primitives"
)

// StatusMirror writes the scanner's highest acknowledged block to Redis on
// every AcknowledgeBlock call; the scan and eventuality heads are not
// mirrored. It exists purely so an operator dashboard or a hot standby
// instance can read "how far did the active instance get" without opening
// the badger/leveldb store directly -- the db remains the sole source of
// truth the tasks themselves read and write. A nil *StatusMirror (the zero
// value returned by NewNoopStatusMirror) makes every call here a no-op, so
// wiring Redis in is entirely optional for a deployment.
type StatusMirror struct {
	client *redis.Client
	prefix string
}

// NewStatusMirror connects to addr under db index and keys every entry
// scanner:<prefix>:<field>.
func NewStatusMirror(addr string, db int, prefix string) *StatusMirror {
	return &StatusMirror{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		prefix: prefix,
	}
}

// NewNoopStatusMirror returns a mirror whose every method is a no-op,
// for deployments that don't run Redis.
func NewNoopStatusMirror() *StatusMirror { return nil }

func (m *StatusMirror) key(field string) string {
	return "scanner:" + m.prefix + ":" + field
}

// SetHeight publishes field (e.g. "scan_head", "eventuality_head",
// "acknowledged") as n, best-effort: a Redis outage must never block a
// task tick, so errors are swallowed after a single warning log.
func (m *StatusMirror) SetHeight(field string, n primitives.BlockNumber) {
	if m == nil {
		return
	}
	if err := m.client.Set(m.key(field), strconv.FormatUint(n, 10), 0).Err(); err != nil {
		logger.Warn("status mirror write failed", "field", field, "err", err)
	}
}

// Height reads back a previously published field, for a standby instance
// checking how far its active peer progressed.
func (m *StatusMirror) Height(field string) (primitives.BlockNumber, bool) {
	if m == nil {
		return 0, false
	}
	v, err := m.client.Get(m.key(field)).Result()
	if err == redis.Nil {
		return 0, false
	}
	if err != nil {
		logger.Warn("status mirror read failed", "field", field, "err", err)
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
