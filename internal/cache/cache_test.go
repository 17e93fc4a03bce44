package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_New(t *testing.T) {
	tt := []struct {
		name     string
		shards   int
		maxBytes uint64
		err      error
	}{
		{"valid", 8, 1024, nil},
		{"single shard", 1, 1024, nil},
		{"zero budget", 8, 0, ErrIllegalCapacity},
		{"tiny budget", 8, 2, ErrIllegalCapacity},
		{"zero shards", 0, 1024, ErrInvalidSharding},
		{"negative shards", -1, 1024, ErrInvalidSharding},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New(tc.shards, tc.maxBytes, nil)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, c)
		})
	}
}

func TestCache_SetGetRemove(t *testing.T) {
	c, err := New(8, 1<<20, nil)
	require.NoError(t, err)

	c.Set("market:snapshot", []byte(`{"bitcoin":1}`), 0)

	v, ok := c.Get("market:snapshot")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"bitcoin":1}`), v)
	assert.Equal(t, 1, c.Count())

	c.Remove("market:snapshot")
	_, ok = c.Get("market:snapshot")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Count())
}

func TestCache_SetOverwritesValue(t *testing.T) {
	c, err := New(8, 1<<20, nil)
	require.NoError(t, err)

	c.Set("k", []byte("old"), 0)
	c.Set("k", []byte("new value"), 0)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("new value"), v)
	assert.Equal(t, 1, c.Count())
}

func TestCache_EvictsOldestWhenOverBudget(t *testing.T) {
	var evictions int
	onEvict := func(k uint64, v []byte) { evictions++ }

	// single shard so the LRU order is deterministic
	c, err := New(1, 30, onEvict)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		c.Set(fmt.Sprintf("key-%d", i), []byte("0123456789"), 0)
	}

	assert.Equal(t, 1, evictions)
	assert.Equal(t, 3, c.Count())

	_, ok := c.Get("key-0")
	assert.False(t, ok, "the oldest entry should be gone")

	_, ok = c.Get("key-3")
	assert.True(t, ok)
}

func TestCache_GetRefreshesRecency(t *testing.T) {
	c, err := New(1, 30, nil)
	require.NoError(t, err)

	c.Set("a", []byte("0123456789"), 0)
	c.Set("b", []byte("0123456789"), 0)
	c.Set("c", []byte("0123456789"), 0)

	// touch a so b becomes the eviction candidate
	_, ok := c.Get("a")
	require.True(t, ok)

	evicted := c.Set("d", []byte("0123456789"), 0)
	assert.True(t, evicted)

	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCache_Purge(t *testing.T) {
	c, err := New(8, 1<<20, nil)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("key-%d", i), []byte("v"), 0)
	}
	require.Equal(t, 10, c.Count())

	c.Purge()
	assert.Equal(t, 0, c.Count())
}

func TestShard_TTLExpiry(t *testing.T) {
	current := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	ls := newLruShard(1<<20, nil, clock)

	ls.add(1, []byte("fresh"), 5*time.Minute)
	ls.add(2, []byte("forever"), 0)

	v, ok := ls.get(1)
	require.True(t, ok)
	assert.Equal(t, []byte("fresh"), v)

	current = current.Add(5*time.Minute + time.Second)

	_, ok = ls.get(1)
	assert.False(t, ok, "entry past its ttl must be dropped on read")
	assert.Equal(t, int64(1), ls.count())

	_, ok = ls.get(2)
	assert.True(t, ok, "zero ttl never expires")
}

func TestDefaultByteBudget(t *testing.T) {
	budget := DefaultByteBudget()
	assert.Greater(t, budget, uint64(0))
	assert.LessOrEqual(t, budget, uint64(maxDefaultBudget))
}
