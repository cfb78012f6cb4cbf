package shardex

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// tierEntry is one cached value. Entries keep their original key so they can
// be reinserted when demoted across tiers.
type tierEntry struct {
	key         string
	value       any
	insertedAt  time.Time
	expiry      time.Time // warm tier only
	accessCount int       // cold tier only
}

func hashKey(key string) uint64 {
	return xxhash.Sum64String(key)
}

// lruTier is the small hot set. Uses uint64 keys with a slice-ordered LRU,
// oldest at the front.
type lruTier struct {
	entries  map[uint64]*tierEntry
	order    []uint64
	capacity int
	hits     uint64
	misses   uint64
}

func newLRUTier(capacity int) *lruTier {
	return &lruTier{
		entries:  make(map[uint64]*tierEntry, capacity),
		order:    make([]uint64, 0, capacity),
		capacity: capacity,
	}
}

func (t *lruTier) get(h uint64) (*tierEntry, bool) {
	entry, ok := t.entries[h]
	if !ok {
		t.misses++
		return nil, false
	}
	t.hits++
	t.moveToBack(h)
	return entry, true
}

func (t *lruTier) moveToBack(h uint64) {
	for i, k := range t.order {
		if k == h {
			copy(t.order[i:], t.order[i+1:])
			t.order[len(t.order)-1] = h
			break
		}
	}
}

func (t *lruTier) full() bool {
	return len(t.entries) >= t.capacity
}

// put inserts the entry and returns the evicted LRU victim, if any.
func (t *lruTier) put(h uint64, entry *tierEntry) (uint64, *tierEntry) {
	var victimHash uint64
	var victim *tierEntry
	if _, ok := t.entries[h]; !ok && t.full() {
		victimHash = t.order[0]
		victim = t.entries[victimHash]
		delete(t.entries, victimHash)
		t.order = t.order[1:]
	}
	if _, ok := t.entries[h]; ok {
		t.entries[h] = entry
		t.moveToBack(h)
		return 0, nil
	}
	t.entries[h] = entry
	t.order = append(t.order, h)
	return victimHash, victim
}

func (t *lruTier) remove(h uint64) bool {
	if _, ok := t.entries[h]; !ok {
		return false
	}
	delete(t.entries, h)
	for i, k := range t.order {
		if k == h {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// ttlTier is the time-bounded warm set. Reads drop expired entries lazily;
// when full, the entry closest to expiry is the victim.
type ttlTier struct {
	entries  map[uint64]*tierEntry
	capacity int
	ttl      time.Duration
	hits     uint64
	misses   uint64
}

func newTTLTier(capacity int, ttl time.Duration) *ttlTier {
	return &ttlTier{
		entries:  make(map[uint64]*tierEntry, capacity),
		capacity: capacity,
		ttl:      ttl,
	}
}

func (t *ttlTier) get(h uint64) (*tierEntry, bool) {
	entry, ok := t.entries[h]
	if !ok {
		t.misses++
		return nil, false
	}
	if time.Now().After(entry.expiry) {
		delete(t.entries, h)
		t.misses++
		return nil, false
	}
	t.hits++
	return entry, true
}

func (t *ttlTier) full() bool {
	return len(t.entries) >= t.capacity
}

func (t *ttlTier) put(h uint64, entry *tierEntry) (uint64, *tierEntry) {
	entry.expiry = time.Now().Add(t.ttl)
	if _, ok := t.entries[h]; ok {
		t.entries[h] = entry
		return 0, nil
	}
	var victimHash uint64
	var victim *tierEntry
	if t.full() {
		first := true
		for k, e := range t.entries {
			if first || e.expiry.Before(victim.expiry) {
				victimHash, victim = k, e
				first = false
			}
		}
		delete(t.entries, victimHash)
	}
	t.entries[h] = entry
	return victimHash, victim
}

func (t *ttlTier) remove(h uint64) bool {
	if _, ok := t.entries[h]; !ok {
		return false
	}
	delete(t.entries, h)
	return true
}

// lfuTier is the large frequency-ranked cold set. The least-accessed entry
// is evicted, oldest first on ties.
type lfuTier struct {
	entries  map[uint64]*tierEntry
	capacity int
	hits     uint64
	misses   uint64
}

func newLFUTier(capacity int) *lfuTier {
	return &lfuTier{
		entries:  make(map[uint64]*tierEntry, capacity),
		capacity: capacity,
	}
}

func (t *lfuTier) get(h uint64) (*tierEntry, bool) {
	entry, ok := t.entries[h]
	if !ok {
		t.misses++
		return nil, false
	}
	t.hits++
	entry.accessCount++
	return entry, true
}

func (t *lfuTier) full() bool {
	return len(t.entries) >= t.capacity
}

func (t *lfuTier) put(h uint64, entry *tierEntry) {
	if _, ok := t.entries[h]; ok {
		t.entries[h] = entry
		return
	}
	if t.full() {
		var victimHash uint64
		var victim *tierEntry
		first := true
		for k, e := range t.entries {
			if first || e.accessCount < victim.accessCount ||
				(e.accessCount == victim.accessCount && e.insertedAt.Before(victim.insertedAt)) {
				victimHash, victim = k, e
				first = false
			}
		}
		delete(t.entries, victimHash)
	}
	t.entries[h] = entry
}

func (t *lfuTier) remove(h uint64) bool {
	if _, ok := t.entries[h]; !ok {
		return false
	}
	delete(t.entries, h)
	return true
}

// MultiTierCache composes an LRU hot set, a TTL warm set, and an LFU cold
// set into one promote/demote pipeline. A warm or cold hit promotes the
// entry one tier up, cascading the displaced victim down.
type MultiTierCache struct {
	mu         sync.Mutex
	l1         *lruTier
	l2         *ttlTier
	l3         *lfuTier
	hits       uint64
	misses     uint64
	promotions uint64
	demotions  uint64
}

func NewMultiTierCache(cfg CacheConfig) *MultiTierCache {
	return &MultiTierCache{
		l1: newLRUTier(cfg.L1Size),
		l2: newTTLTier(cfg.L2Size, cfg.L2TTL),
		l3: newLFUTier(cfg.L3Size),
	}
}

// Get checks L1, L2, then L3. Hits below L1 promote one tier up; a miss
// across all tiers counts as a global miss.
func (c *MultiTierCache) Get(key string) (any, bool) {
	h := hashKey(key)
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.l1.get(h); ok {
		c.hits++
		return entry.value, true
	}
	if entry, ok := c.l2.get(h); ok {
		c.hits++
		c.l2.remove(h)
		c.promoteToL1(h, entry)
		return entry.value, true
	}
	if entry, ok := c.l3.get(h); ok {
		c.hits++
		c.l3.remove(h)
		c.promoteToL2(h, entry)
		return entry.value, true
	}
	c.misses++
	return nil, false
}

func (c *MultiTierCache) promoteToL1(h uint64, entry *tierEntry) {
	c.promotions++
	victimHash, victim := c.l1.put(h, entry)
	if victim != nil {
		c.demotions++
		c.demoteToL2(victimHash, victim)
	}
}

func (c *MultiTierCache) promoteToL2(h uint64, entry *tierEntry) {
	c.promotions++
	c.insertL2(h, entry)
}

func (c *MultiTierCache) demoteToL2(h uint64, entry *tierEntry) {
	c.insertL2(h, entry)
}

func (c *MultiTierCache) insertL2(h uint64, entry *tierEntry) {
	victimHash, victim := c.l2.put(h, entry)
	if victim != nil {
		c.demotions++
		c.l3.put(victimHash, victim)
	}
}

// Put places the value in the first tier with spare capacity, L1 through L3.
// With every tier full it lands in the cold set, displacing the LFU victim.
func (c *MultiTierCache) Put(key string, value any) {
	h := hashKey(key)
	entry := &tierEntry{key: key, value: value, insertedAt: time.Now()}
	c.mu.Lock()
	defer c.mu.Unlock()

	// update in place when the key is already resident
	if existing, ok := c.l1.entries[h]; ok {
		existing.value = value
		return
	}
	if existing, ok := c.l2.entries[h]; ok {
		existing.value = value
		return
	}
	if existing, ok := c.l3.entries[h]; ok {
		existing.value = value
		return
	}

	switch {
	case !c.l1.full():
		c.l1.put(h, entry)
	case !c.l2.full():
		c.l2.put(h, entry)
	default:
		c.l3.put(h, entry)
	}
}

func (c *MultiTierCache) Delete(key string) bool {
	h := hashKey(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := c.l1.remove(h)
	if c.l2.remove(h) {
		removed = true
	}
	if c.l3.remove(h) {
		removed = true
	}
	return removed
}

// Clear drops every entry; counters survive so hit rates stay meaningful
// across resets.
func (c *MultiTierCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	l1Cap, l2Cap, l3Cap := c.l1.capacity, c.l2.capacity, c.l3.capacity
	ttl := c.l2.ttl
	h1, m1 := c.l1.hits, c.l1.misses
	h2, m2 := c.l2.hits, c.l2.misses
	h3, m3 := c.l3.hits, c.l3.misses
	c.l1 = newLRUTier(l1Cap)
	c.l2 = newTTLTier(l2Cap, ttl)
	c.l3 = newLFUTier(l3Cap)
	c.l1.hits, c.l1.misses = h1, m1
	c.l2.hits, c.l2.misses = h2, m2
	c.l3.hits, c.l3.misses = h3, m3
}

// Len reports resident entries across all tiers.
func (c *MultiTierCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.l1.entries) + len(c.l2.entries) + len(c.l3.entries)
}

// Stats exposes per-tier and global counters used for tuning tier sizes.
func (c *MultiTierCache) Stats() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total) * 100
	}
	return map[string]any{
		"size":         len(c.l1.entries) + len(c.l2.entries) + len(c.l3.entries),
		"hits":         c.hits,
		"misses":       c.misses,
		"hit_rate_pct": rate,
		"promotions":   c.promotions,
		"demotions":    c.demotions,
		"tiers": map[string]any{
			"l1": map[string]any{"size": len(c.l1.entries), "capacity": c.l1.capacity, "hits": c.l1.hits, "misses": c.l1.misses},
			"l2": map[string]any{"size": len(c.l2.entries), "capacity": c.l2.capacity, "hits": c.l2.hits, "misses": c.l2.misses},
			"l3": map[string]any{"size": len(c.l3.entries), "capacity": c.l3.capacity, "hits": c.l3.hits, "misses": c.l3.misses},
		},
	}
}
