package search

import "sync"

// PositionCache is an optional, fixed-capacity content-addressed cache of
// prior NN outputs, keyed by Zobrist hash (spec.md §4.C "Cache" evaluator).
// Eviction uses a clock hand over a ring buffer of slots rather than a full
// LRU list — good enough for "optional lookup" without pulling in a cache
// library the retrieved pack never uses.
type PositionCache struct {
	mu    sync.Mutex
	index map[PositionHash]int
	slots []cacheSlot
	hand  int
}

type cacheSlot struct {
	hash    PositionHash
	result  EvalResult
	used    bool
	occupied bool
}

func NewPositionCache(capacity int) *PositionCache {
	if capacity <= 0 {
		return nil
	}
	return &PositionCache{
		index: make(map[PositionHash]int, capacity),
		slots: make([]cacheSlot, capacity),
	}
}

// Get looks up a cached evaluation. Nil-safe: a nil *PositionCache (i.e.
// caching disabled) always misses.
func (c *PositionCache) Get(hash PositionHash) (EvalResult, bool) {
	if c == nil {
		return EvalResult{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.index[hash]; ok {
		c.slots[i].used = true
		return c.slots[i].result, true
	}
	return EvalResult{}, false
}

// Put inserts or refreshes a cached evaluation, evicting via clock-hand
// scan if the cache is full.
func (c *PositionCache) Put(hash PositionHash, result EvalResult) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.index[hash]; ok {
		c.slots[i].result = result
		c.slots[i].used = true
		return
	}

	for tries := 0; tries < 2*len(c.slots); tries++ {
		s := &c.slots[c.hand]
		if !s.occupied {
			c.installAt(c.hand, hash, result)
			return
		}
		if s.used {
			s.used = false
			c.hand = (c.hand + 1) % len(c.slots)
			continue
		}
		delete(c.index, s.hash)
		c.installAt(c.hand, hash, result)
		return
	}
	// Degenerate case (every slot marked used repeatedly): overwrite hand.
	c.installAt(c.hand, hash, result)
}

func (c *PositionCache) installAt(slot int, hash PositionHash, result EvalResult) {
	c.slots[slot] = cacheSlot{hash: hash, result: result, used: true, occupied: true}
	c.index[hash] = slot
	c.hand = (c.hand + 1) % len(c.slots)
}
