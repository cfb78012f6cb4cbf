package shardex

import (
	"sort"
	"sync"
	"time"

	"github.com/oarkflow/shardex/trie"
	"github.com/oarkflow/shardex/utils"
)

// IndexEntry is the unit of the reverse index: one entry per distinct word
// across all shards. A word holds more than one shard association only
// transiently while a fission plan is executing.
type IndexEntry struct {
	Word         string
	ShardIDs     map[string]struct{}
	Frequency    uint64
	LastAccessed time.Time
}

func (e *IndexEntry) shardList() []string {
	ids := make([]string, 0, len(e.ShardIDs))
	for id := range e.ShardIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EntryStore abstracts how index entries are stored and retrieved.
type EntryStore interface {
	Get(word string) (*IndexEntry, bool)
	Put(entry *IndexEntry)
	Delete(word string)
	Range(fn func(entry *IndexEntry) bool)
	Len() int
}

func newEntryStore() EntryStore {
	return &mapEntryStore{data: make(map[string]*IndexEntry)}
}

// mapEntryStore is the default in-memory entry storage.
type mapEntryStore struct {
	mu   sync.RWMutex
	data map[string]*IndexEntry
}

func (m *mapEntryStore) Get(word string) (*IndexEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.data[word]
	return entry, ok
}

func (m *mapEntryStore) Put(entry *IndexEntry) {
	if entry == nil || entry.Word == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[entry.Word] = entry
}

func (m *mapEntryStore) Delete(word string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, word)
}

func (m *mapEntryStore) Range(fn func(entry *IndexEntry) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, entry := range m.data {
		if !fn(entry) {
			return
		}
	}
}

func (m *mapEntryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// ReverseIndex maps words to the shards that hold them. Membership checks
// are O(1); prefix queries walk a radix trie kept in sync with the entries.
type ReverseIndex struct {
	mu      sync.RWMutex
	entries EntryStore
	words   *trie.Trie
	hits    uint64
	misses  uint64
}

func NewReverseIndex() *ReverseIndex {
	return &ReverseIndex{
		entries: newEntryStore(),
		words:   trie.NewTrie(),
	}
}

// Add records word membership in shardID and bumps the word's frequency.
func (ri *ReverseIndex) Add(word, shardID string) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	entry, ok := ri.entries.Get(word)
	if !ok {
		entry = &IndexEntry{
			Word:     word,
			ShardIDs: make(map[string]struct{}, 1),
		}
		ri.entries.Put(entry)
		ri.words.Insert(word, nil)
	}
	entry.ShardIDs[shardID] = struct{}{}
	entry.Frequency++
	entry.LastAccessed = time.Now()
}

// Remove discards the shard association; the entry disappears once its last
// association is gone.
func (ri *ReverseIndex) Remove(word, shardID string) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	entry, ok := ri.entries.Get(word)
	if !ok {
		return
	}
	delete(entry.ShardIDs, shardID)
	if len(entry.ShardIDs) == 0 {
		ri.entries.Delete(word)
		ri.words.Delete(word)
	}
}

// Reassign moves a word between shards without touching its frequency.
// Fission uses it so a relocated word keeps its access history.
func (ri *ReverseIndex) Reassign(word, from, to string) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	entry, ok := ri.entries.Get(word)
	if !ok {
		return
	}
	delete(entry.ShardIDs, from)
	entry.ShardIDs[to] = struct{}{}
}

// Find returns the shard ids holding word, sorted for determinism. Every
// call counts toward the hit-rate statistics.
func (ri *ReverseIndex) Find(word string) []string {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	entry, ok := ri.entries.Get(word)
	if !ok {
		ri.misses++
		return nil
	}
	ri.hits++
	entry.LastAccessed = time.Now()
	return entry.shardList()
}

// Shards returns the shard ids holding word without disturbing access
// statistics, for callers that are not servicing a lookup.
func (ri *ReverseIndex) Shards(word string) []string {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	entry, ok := ri.entries.Get(word)
	if !ok {
		return nil
	}
	return entry.shardList()
}

// Contains reports membership without disturbing access statistics.
func (ri *ReverseIndex) Contains(word string) bool {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	_, ok := ri.entries.Get(word)
	return ok
}

// Frequency returns how many times the word has been added.
func (ri *ReverseIndex) Frequency(word string) uint64 {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	entry, ok := ri.entries.Get(word)
	if !ok {
		return 0
	}
	return entry.Frequency
}

// SearchPrefix returns up to limit words starting with prefix, in byte order.
func (ri *ReverseIndex) SearchPrefix(prefix string, limit int) []string {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	return ri.words.SearchPrefix(prefix, limit)
}

// FuzzySearch returns words within the given edit distance of term.
func (ri *ReverseIndex) FuzzySearch(term string, threshold int) []string {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	var results []string
	ri.entries.Range(func(entry *IndexEntry) bool {
		if utils.BoundedLevenshtein(term, entry.Word, threshold) <= threshold {
			results = append(results, entry.Word)
		}
		return true
	})
	sort.Strings(results)
	return results
}

// Len reports the number of distinct indexed words.
func (ri *ReverseIndex) Len() int {
	return ri.entries.Len()
}

// Stats exposes hit-rate counters for tuning.
func (ri *ReverseIndex) Stats() map[string]any {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	total := ri.hits + ri.misses
	rate := 0.0
	if total > 0 {
		rate = float64(ri.hits) / float64(total) * 100
	}
	return map[string]any{
		"total_words":  ri.entries.Len(),
		"hits":         ri.hits,
		"misses":       ri.misses,
		"hit_rate_pct": rate,
	}
}

// indexEntryRecord is the serialized form of an IndexEntry.
type indexEntryRecord struct {
	Word         string    `json:"word"`
	Shards       []string  `json:"shards"`
	Frequency    uint64    `json:"frequency"`
	LastAccessed time.Time `json:"last_accessed"`
}

func (ri *ReverseIndex) snapshot() []indexEntryRecord {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	records := make([]indexEntryRecord, 0, ri.entries.Len())
	ri.entries.Range(func(entry *IndexEntry) bool {
		records = append(records, indexEntryRecord{
			Word:         entry.Word,
			Shards:       entry.shardList(),
			Frequency:    entry.Frequency,
			LastAccessed: entry.LastAccessed,
		})
		return true
	})
	sort.Slice(records, func(i, j int) bool { return records[i].Word < records[j].Word })
	return records
}

func (ri *ReverseIndex) restore(records []indexEntryRecord) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	ri.entries = newEntryStore()
	ri.words = trie.NewTrie()
	for _, rec := range records {
		entry := &IndexEntry{
			Word:         rec.Word,
			ShardIDs:     make(map[string]struct{}, len(rec.Shards)),
			Frequency:    rec.Frequency,
			LastAccessed: rec.LastAccessed,
		}
		for _, id := range rec.Shards {
			entry.ShardIDs[id] = struct{}{}
		}
		ri.entries.Put(entry)
		ri.words.Insert(rec.Word, nil)
	}
}
