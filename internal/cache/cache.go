// Package cache holds hot market and news payloads in a sharded LRU
// with per-entry TTLs, so a burst of identical requests never hammers
// the upstream APIs.
package cache

import (
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pbnjay/memory"
	"github.com/pkg/errors"
)

var ErrIllegalCapacity = errors.New("illegal cache capacity")
var ErrInvalidSharding = errors.New("invalid sharding")

type OnEvict func(k uint64, v []byte)

const defaultShards = 8
const maxDefaultBudget = 64 << 20 // 64 MiB

// DefaultByteBudget sizes the cache off total system memory, capped so a
// small cache job never balloons on a large host.
func DefaultByteBudget() uint64 {
	budget := memory.TotalMemory() / 256
	if budget == 0 || budget > maxDefaultBudget {
		return maxDefaultBudget
	}
	return budget
}

type Cache struct {
	maxBytes uint64
	capacity uint64
	shards   []*lruShard
}

func New(shards int, maxTotalBytes uint64, onEvict OnEvict) (*Cache, error) {
	if maxTotalBytes <= 2 {
		return nil, ErrIllegalCapacity
	}

	if shards < 1 {
		return nil, ErrInvalidSharding
	}

	c := Cache{
		maxBytes: maxTotalBytes,
		capacity: uint64(shards),
		shards:   make([]*lruShard, shards),
	}

	shardMaxBytes := maxTotalBytes / c.capacity
	for i := range c.shards {
		c.shards[i] = newLruShard(shardMaxBytes, onEvict, time.Now)
	}

	return &c, nil
}

// NewDefault returns a cache with the default shard count and byte budget.
func NewDefault() *Cache {
	c, err := New(defaultShards, DefaultByteBudget(), nil)
	if err != nil {
		panic("default cache parameters are invalid: " + err.Error())
	}
	return c
}

// Set stores value under key for ttl. Zero ttl means no expiry. Returns
// true if an eviction happened.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) bool {
	h := xxhash.Sum64String(key)
	return c.getShard(h).add(h, value, ttl)
}

func (c *Cache) Get(key string) ([]byte, bool) {
	h := xxhash.Sum64String(key)
	return c.getShard(h).get(h)
}

func (c *Cache) Remove(key string) {
	h := xxhash.Sum64String(key)
	c.getShard(h).remove(h)
}

func (c *Cache) Purge() {
	for i := range c.shards {
		c.shards[i].purge()
	}
}

func (c *Cache) Count() int {
	var total int64
	for i := range c.shards {
		total += c.shards[i].count()
	}
	return int(total)
}

func (c *Cache) getShard(h uint64) *lruShard {
	return c.shards[h%c.capacity]
}
