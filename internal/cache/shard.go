package cache

import (
	"container/list"
	"sync"
	"time"
)

type lruShard struct {
	mu         sync.Mutex
	totalBytes uint64
	elemsCount int64
	maxBytes   uint64
	evictList  *list.List
	elems      map[uint64]*list.Element
	onEvict    OnEvict
	now        func() time.Time
}

func newLruShard(maxBytes uint64, onEvict OnEvict, now func() time.Time) *lruShard {
	return &lruShard{
		maxBytes:  maxBytes,
		evictList: list.New(),
		elems:     make(map[uint64]*list.Element),
		onEvict:   onEvict,
		now:       now,
	}
}

type item struct {
	key       uint64
	value     []byte
	expiresAt time.Time
}

func (it *item) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && now.After(it.expiresAt)
}

func (ls *lruShard) get(key uint64) ([]byte, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	elem, ok := ls.elems[key]
	if !ok {
		return nil, false
	}

	it := elem.Value.(*item)
	if it.expired(ls.now()) {
		ls.removeElementUnderLock(elem)
		return nil, false
	}

	ls.evictList.MoveToFront(elem)
	return it.value, true
}

// add puts value under key and reports whether an eviction happened.
func (ls *lruShard) add(key uint64, value []byte, ttl time.Duration) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = ls.now().Add(ttl)
	}

	// until the new value can safely fit, drop the oldest entries
	var evicted bool
	for ls.totalBytes+uint64(len(value)) > ls.maxBytes {
		evictedKey, evictedValue, ok := ls.removeOldestUnderLock()
		if !ok {
			break
		}
		evicted = true
		if ls.onEvict != nil {
			ls.onEvict(evictedKey, evictedValue)
		}
	}

	if elem, ok := ls.elems[key]; ok {
		ls.evictList.MoveToFront(elem)
		it := elem.Value.(*item)
		ls.totalBytes -= uint64(len(it.value))
		it.value = value
		it.expiresAt = expiresAt
		ls.totalBytes += uint64(len(value))
		return evicted
	}

	elem := ls.evictList.PushFront(&item{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
	})

	ls.totalBytes += uint64(len(value))
	ls.elemsCount++
	ls.elems[key] = elem
	return evicted
}

func (ls *lruShard) purge() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	for k := range ls.elems {
		delete(ls.elems, k)
	}

	ls.totalBytes = 0
	ls.elemsCount = 0
	ls.evictList.Init()
}

func (ls *lruShard) remove(key uint64) ([]byte, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	elem, ok := ls.elems[key]
	if !ok {
		return nil, false
	}

	_, value := ls.removeElementUnderLock(elem)
	return value, true
}

func (ls *lruShard) removeOldestUnderLock() (uint64, []byte, bool) {
	elem := ls.evictList.Back()
	if elem == nil {
		return 0, nil, false
	}

	k, v := ls.removeElementUnderLock(elem)
	return k, v, true
}

func (ls *lruShard) removeElementUnderLock(elem *list.Element) (uint64, []byte) {
	ls.evictList.Remove(elem)

	it := elem.Value.(*item)
	delete(ls.elems, it.key)
	ls.totalBytes -= uint64(len(it.value))
	ls.elemsCount--
	return it.key, it.value
}

func (ls *lruShard) count() int64 {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.elemsCount
}
