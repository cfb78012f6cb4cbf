package shardex

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oarkflow/filters"
	"github.com/oarkflow/json"

	"github.com/oarkflow/shardex/utils"
)

var DefaultPath = "shardex"

// Manager owns the reverse index, the shard table, shadow records, the
// lookup cache, and the fission machinery. It is the only entry point
// callers use; every structure behind it is guarded by the manager's or its
// component's own mutex.
type Manager struct {
	mu        sync.RWMutex
	id        string
	cfg       Config
	index     *ReverseIndex
	shards    map[string]*Shard
	order     []string // creation order: drives first-fit and oldest-shard reuse
	shadows   map[string]*ShadowRecord
	cache     *MultiTierCache
	analyzer  *MorphismAnalyzer
	monitor   *Monitor
	pool      *fissionPool
	extractor *WordExtractor
	events    []FissionEvent
	storage   string
	closed    chan struct{}
	closeOnce sync.Once
}

// New builds a manager with the given id and options. Invalid configuration
// fails here, never at runtime.
func New(id string, opts ...Options) (*Manager, error) {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	storage := filepath.Join(DefaultPath, id)
	if err := os.MkdirAll(storage, 0755); err != nil {
		log.Printf("shardex: storage dir %s not created: %v", storage, err)
	}
	m := &Manager{
		id:        id,
		cfg:       cfg,
		index:     NewReverseIndex(),
		shards:    make(map[string]*Shard),
		shadows:   make(map[string]*ShadowRecord),
		cache:     NewMultiTierCache(cfg.Cache),
		analyzer:  NewMorphismAnalyzer(cfg),
		monitor:   NewMonitor(),
		extractor: NewWordExtractor(),
		storage:   storage,
		closed:    make(chan struct{}),
	}
	if cfg.AsyncFission {
		m.pool = newFissionPool(cfg.FissionWorkers, cfg.FissionQueueSize, func(shardID string) {
			m.checkShard(shardID)
		})
		go m.occupancyScan()
	}
	return m, nil
}

func normalizeWord(word string) string {
	return utils.ToLower(strings.TrimSpace(word))
}

// AddWord registers a word and returns the shard holding it. Adding an
// existing word bumps its frequency and keeps the single shard association.
// Filling a shard to capacity trips a fission check, inline or via the
// worker pool depending on configuration.
func (m *Manager) AddWord(word string) string {
	word = normalizeWord(word)
	if word == "" {
		return ""
	}
	var full string
	m.mu.Lock()
	if ids := m.index.Shards(word); len(ids) > 0 {
		m.index.Add(word, ids[0])
		m.mu.Unlock()
		return ids[0]
	}
	shard := m.selectTargetShard()
	shard.addKey(word)
	m.index.Add(word, shard.ID)
	if shard.Size >= shard.Capacity {
		full = shard.ID
	}
	shardID := shard.ID
	m.mu.Unlock()

	m.cache.Put(word, shardID)
	if full != "" {
		if m.cfg.AsyncFission {
			if err := m.pool.Submit(full); err != nil {
				log.Printf("shardex: fission check for shard %s not queued: %v", full, err)
			}
		} else {
			m.checkShard(full)
		}
	}
	return shardID
}

// selectTargetShard picks the first shard in creation order with room, then
// a fresh shard while under the ceiling, then the oldest shard. Over-capacity
// reuse keeps the index accepting words instead of failing hard.
func (m *Manager) selectTargetShard() *Shard {
	for _, id := range m.order {
		if s := m.shards[id]; s.hasRoom() {
			return s
		}
	}
	if len(m.order) < m.cfg.MaxShardCount {
		s := newShard(m.cfg.ShardCapacity)
		m.shards[s.ID] = s
		m.order = append(m.order, s.ID)
		return s
	}
	return m.shards[m.order[0]]
}

// FindDictionary resolves a word to its shard: cache, then reverse index,
// then a single-hop shadow record. A miss returns ok=false, never an error.
func (m *Manager) FindDictionary(word string) (string, bool) {
	start := time.Now()
	defer func() {
		m.monitor.RecordLookupLatency(time.Since(start))
	}()
	word = normalizeWord(word)
	if word == "" {
		return "", false
	}
	if v, ok := m.cache.Get(word); ok {
		id := v.(string)
		if m.shardHolds(word, id) {
			return id, true
		}
		// A fission moved the word after this entry was written; drop it
		// and fall through to the index.
		m.cache.Delete(word)
	}
	ids := m.index.Find(word)
	target, ok := m.resolve(word, ids)
	if !ok {
		return "", false
	}
	m.cache.Put(word, target)
	return target, true
}

// shardHolds reports whether the shard still contains the word.
func (m *Manager) shardHolds(word, id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	shard, ok := m.shards[id]
	return ok && shard.contains(word)
}

// resolve verifies the index answer against live shard state and falls back
// to the word's shadow record when the association is stale or missing.
func (m *Manager) resolve(word string, ids []string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range ids {
		if shard, ok := m.shards[id]; ok && shard.contains(word) {
			return id, true
		}
	}
	if sr, ok := m.shadows[word]; ok {
		if shard, ok := m.shards[sr.TargetShard]; ok && shard.contains(word) {
			return sr.TargetShard, true
		}
	}
	return "", false
}

// ContainsWord reports membership without touching hit-rate statistics.
func (m *Manager) ContainsWord(word string) bool {
	word = normalizeWord(word)
	if m.index.Contains(word) {
		return true
	}
	m.mu.RLock()
	_, ok := m.shadows[word]
	m.mu.RUnlock()
	return ok
}

// SearchWords returns up to limit indexed words starting with prefix.
func (m *Manager) SearchWords(prefix string, limit int) []string {
	if limit <= 0 {
		limit = 10
	}
	return m.index.SearchPrefix(normalizeWord(prefix), limit)
}

// SearchWordsFuzzy returns indexed words within the given edit distance.
func (m *Manager) SearchWordsFuzzy(term string, threshold int) []string {
	if threshold <= 0 {
		threshold = 2
	}
	return m.index.FuzzySearch(normalizeWord(term), threshold)
}

// GetWordFrequency returns how many times the word has been added.
func (m *Manager) GetWordFrequency(word string) uint64 {
	return m.index.Frequency(normalizeWord(word))
}

// CheckAndPerformFission analyzes the given shard, or every shard when
// shardID is empty, and executes whatever plans come back. Returns true if
// at least one fission ran.
func (m *Manager) CheckAndPerformFission(shardID string) bool {
	var targets []string
	if shardID != "" {
		targets = []string{shardID}
	} else {
		m.mu.RLock()
		targets = append(targets, m.order...)
		m.mu.RUnlock()
	}
	performed := false
	for _, id := range targets {
		if m.checkShard(id) {
			performed = true
		}
	}
	return performed
}

// checkShard analyzes a snapshot of one shard so the pairwise pass runs
// without holding the manager lock.
func (m *Manager) checkShard(shardID string) bool {
	snapshot, ok := m.snapshotShard(shardID)
	if !ok {
		return false
	}
	analysis := m.analyzer.Analyze(snapshot, m.index.Frequency)
	rec := analysis.Recommendation
	if !rec.FissionNeeded || rec.Plan == nil {
		return false
	}
	if _, err := m.executeFission(rec.Plan); err != nil {
		log.Printf("shardex: fission on shard %s abandoned: %v", shardID, err)
		return false
	}
	return true
}

// Analyze exposes the analyzer verdict for one shard without acting on it.
func (m *Manager) Analyze(shardID string) (*Analysis, bool) {
	snapshot, ok := m.snapshotShard(shardID)
	if !ok {
		return nil, false
	}
	return m.analyzer.Analyze(snapshot, m.index.Frequency), true
}

func (m *Manager) snapshotShard(shardID string) (*Shard, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	shard, ok := m.shards[shardID]
	if !ok {
		return nil, false
	}
	keys := make(map[string]struct{}, len(shard.Keys))
	for k := range shard.Keys {
		keys[k] = struct{}{}
	}
	return &Shard{
		ID:        shard.ID,
		Capacity:  shard.Capacity,
		Keys:      keys,
		Size:      len(keys),
		CreatedAt: shard.CreatedAt,
	}, true
}

// occupancyScan periodically queues fission checks for full shards.
func (m *Manager) occupancyScan() {
	ticker := time.NewTicker(m.cfg.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.mu.RLock()
			var due []string
			for _, id := range m.order {
				if s := m.shards[id]; s.Size >= s.Capacity {
					due = append(due, id)
				}
			}
			m.mu.RUnlock()
			for _, id := range due {
				if err := m.pool.Submit(id); err != nil {
					break
				}
			}
		case <-m.closed:
			return
		}
	}
}

// ShardInfo is the externally visible view of one shard.
type ShardInfo struct {
	ID        string         `json:"id"`
	Size      int            `json:"size"`
	Capacity  int            `json:"capacity"`
	CreatedAt time.Time      `json:"created"`
	Dirty     bool           `json:"dirty"`
	Metadata  map[string]any `json:"metadata"`
}

// Shards lists every shard in creation order.
func (m *Manager) Shards() []ShardInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]ShardInfo, 0, len(m.order))
	for _, id := range m.order {
		s := m.shards[id]
		infos = append(infos, ShardInfo{
			ID:        s.ID,
			Size:      s.Size,
			Capacity:  s.Capacity,
			CreatedAt: s.CreatedAt,
			Dirty:     s.Dirty,
			Metadata:  s.Metadata,
		})
	}
	return infos
}

// ShardWords returns the sorted words of one shard.
func (m *Manager) ShardWords(shardID string) ([]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	shard, ok := m.shards[shardID]
	if !ok {
		return nil, false
	}
	return shard.Words(), true
}

// Events returns a copy of the fission event log.
func (m *Manager) Events() []FissionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FissionEvent, len(m.events))
	copy(out, m.events)
	return out
}

// QueryEvents filters the fission event log with filter conditions.
func (m *Manager) QueryEvents(match filters.Boolean, reverse bool, conditions ...filters.Condition) ([]FissionEvent, error) {
	events := m.Events()
	if len(conditions) == 0 {
		return events, nil
	}
	rule := filters.NewRule()
	rule.AddCondition(match, reverse, conditions...)
	var out []FissionEvent
	for _, ev := range events {
		rec, err := eventRecord(ev)
		if err != nil {
			return nil, err
		}
		if rule.Match(rec) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// QueryShards filters the shard listing with filter conditions.
func (m *Manager) QueryShards(match filters.Boolean, reverse bool, conditions ...filters.Condition) ([]ShardInfo, error) {
	infos := m.Shards()
	if len(conditions) == 0 {
		return infos, nil
	}
	rule := filters.NewRule()
	rule.AddCondition(match, reverse, conditions...)
	var out []ShardInfo
	for _, info := range infos {
		rec, err := shardRecord(info)
		if err != nil {
			return nil, err
		}
		if rule.Match(rec) {
			out = append(out, info)
		}
	}
	return out, nil
}

func eventRecord(ev FissionEvent) (map[string]any, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var rec map[string]any
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func shardRecord(info ShardInfo) (map[string]any, error) {
	b, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}
	var rec map[string]any
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Stats aggregates shard, index, cache, and fission counters.
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	totalDicts := len(m.order)
	totalSize := 0
	for _, id := range m.order {
		totalSize += m.shards[id].Size
	}
	shadowCount := len(m.shadows)
	eventCount := len(m.events)
	m.mu.RUnlock()

	avgSize := 0.0
	utilization := 0.0
	if totalDicts > 0 {
		avgSize = float64(totalSize) / float64(totalDicts)
		utilization = float64(totalSize) / float64(totalDicts*m.cfg.ShardCapacity) * 100
	}
	return map[string]any{
		"total_dicts":     totalDicts,
		"total_words":     m.index.Len(),
		"avg_size":        avgSize,
		"utilization_pct": utilization,
		"shadow_records":  shadowCount,
		"index_stats":     m.index.Stats(),
		"cache_stats":     m.cache.Stats(),
		"fission_stats": map[string]any{
			"events":   eventCount,
			"executed": m.monitor.Fissions(),
		},
		"performance": m.monitor.Metrics(),
	}
}

// Cache exposes the lookup cache.
func (m *Manager) Cache() *MultiTierCache {
	return m.cache
}

// sortedShadowWords gives persistence a stable snapshot order.
func (m *Manager) sortedShadowWords() []string {
	words := make([]string, 0, len(m.shadows))
	for w := range m.shadows {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// Close stops background work, joins the fission pool, and flushes state.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.closed)
		if m.pool != nil {
			m.pool.Close()
		}
		err = m.SaveAll()
	})
	return err
}
