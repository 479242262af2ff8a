// Package cache provides two small non-authoritative speedups over the
// persisted store: an LRU memoizing LifetimeStage per (key, block) so Scan
// doesn't recompute it once per output in a block, and a fastcache-backed
// recently-scanned-output-ID set that logs a warning when Scan sees the same
// output ID twice; sort_outputs' own duplicate check does not use it. Neither cache
// is ever consulted as a source of truth; the db remains authoritative, and
// every lookup here falls back to recomputing/rechecking on a miss. Keys are
// plain strings rather than a custom sharding key type, since the scanner's
// cache keys are already byte slices.
package cache

import (
	"encoding/binary"
	"fmt"

	"github.com/VictoriaMetrics/fastcache"
	lru "github.com/hashicorp/golang-lru"

	"github.com/klaytn/bridgescan/lifetime"
	"github.com/klaytn/bridgescan/log"
)

var logger = log.NewModuleLogger(log.ModuleCache)

// DefaultLifetimeCacheSize bounds the LRU's entry count. A few thousand
// covers every key active within any realistic WINDOW_LENGTH span.
const DefaultLifetimeCacheSize = 4096

// DefaultOutputIDCacheBytes sizes the fastcache backing store.
const DefaultOutputIDCacheBytes = 8 * 1024 * 1024

// LifetimeCache memoizes lifetime.ComputeStage by (encoded key, block
// height); the successor's activation is not part of the cache key.
// It avoids the recomputation Scan would
// otherwise do once per output encountered for the same key within a tick.
type LifetimeCache struct {
	lru *lru.Cache
}

func NewLifetimeCache() *LifetimeCache {
	c, err := lru.New(DefaultLifetimeCacheSize)
	if err != nil {
		panic(err)
	}
	return &LifetimeCache{lru: c}
}

func lifetimeCacheKey(encKey []byte, current uint64) string {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, current)
	return string(encKey) + ":" + string(b)
}

// Stage returns the memoized LifetimeStage for (encKey, current), computing
// and caching it via compute on a miss.
func (c *LifetimeCache) Stage(encKey []byte, current uint64, compute func() lifetime.Stage) lifetime.Stage {
	k := lifetimeCacheKey(encKey, current)
	if v, ok := c.lru.Get(k); ok {
		return v.(lifetime.Stage)
	}
	s := compute()
	c.lru.Add(k, s)
	return s
}

// OutputIDSet is a fast, memory-bounded recently-seen set for output IDs
// scanned within the current process's lifetime. sort_outputs already
// panics on an in-collection duplicate; Scan calls Observe after that sort,
// so this set only adds a warning for an ID seen again later in the process.
type OutputIDSet struct {
	c *fastcache.Cache
}

func NewOutputIDSet() *OutputIDSet {
	return &OutputIDSet{c: fastcache.New(DefaultOutputIDCacheBytes)}
}

// Observe records id as seen for (encKey, blockNumber) and reports whether
// it was already present -- a true result is logged, never panicked on,
// since only sort_outputs within the authoritative block scan owns that
// invariant.
func (s *OutputIDSet) Observe(encKey []byte, n uint64, id []byte) (duplicate bool) {
	key := append(append(append([]byte(nil), encKey...), ':'), fmt.Sprintf("%d:", n)...)
	key = append(key, id...)
	if s.c.Has(key) {
		logger.Warn("output id seen twice within process lifetime", "key", string(encKey), "block", n)
		return true
	}
	s.c.Set(key, []byte{1})
	return false
}
