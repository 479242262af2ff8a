package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/klaytn/bridgescan/lifetime"
)

func TestLifetimeCacheMemoizes(t *testing.T) {
	c := NewLifetimeCache()
	calls := 0
	compute := func() lifetime.Stage {
		calls++
		return lifetime.Active
	}

	s1 := c.Stage([]byte("key-a"), 100, compute)
	s2 := c.Stage([]byte("key-a"), 100, compute)

	assert.Equal(t, lifetime.Active, s1)
	assert.Equal(t, lifetime.Active, s2)
	assert.Equal(t, 1, calls, "second lookup at the same (key, height) must hit the cache")
}

func TestLifetimeCacheDistinguishesHeight(t *testing.T) {
	c := NewLifetimeCache()
	calls := 0
	compute := func() lifetime.Stage {
		calls++
		return lifetime.Active
	}

	c.Stage([]byte("key-a"), 100, compute)
	c.Stage([]byte("key-a"), 101, compute)

	assert.Equal(t, 2, calls)
}

func TestOutputIDSetDetectsDuplicate(t *testing.T) {
	s := NewOutputIDSet()
	assert.False(t, s.Observe([]byte("key-a"), 10, []byte("out-1")))
	assert.True(t, s.Observe([]byte("key-a"), 10, []byte("out-1")))
}

func TestOutputIDSetDistinctPerBlock(t *testing.T) {
	s := NewOutputIDSet()
	assert.False(t, s.Observe([]byte("key-a"), 10, []byte("out-1")))
	assert.False(t, s.Observe([]byte("key-a"), 11, []byte("out-1")))
}
