package shardex

import (
	"testing"
	"time"

	"github.com/oarkflow/filters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, opts ...Options) *Manager {
	t.Helper()
	old := DefaultPath
	DefaultPath = t.TempDir()
	t.Cleanup(func() { DefaultPath = old })
	m, err := New("test", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	old := DefaultPath
	DefaultPath = t.TempDir()
	defer func() { DefaultPath = old }()

	_, err := New("bad", WithShardCapacity(-1))
	require.Error(t, err)

	_, err = New("bad", WithIsolationThreshold(2))
	require.Error(t, err)
}

func TestAddWordAndFind(t *testing.T) {
	m := newTestManager(t)

	shardID := m.AddWord("protocol")
	require.NotEmpty(t, shardID)

	found, ok := m.FindDictionary("protocol")
	require.True(t, ok)
	assert.Equal(t, shardID, found)

	assert.True(t, m.ContainsWord("protocol"))
	assert.False(t, m.ContainsWord("absent"))

	_, ok = m.FindDictionary("absent")
	assert.False(t, ok)
}

func TestAddWordNormalizes(t *testing.T) {
	m := newTestManager(t)

	first := m.AddWord("  Protocol  ")
	second := m.AddWord("protocol")
	assert.Equal(t, first, second)
	assert.Equal(t, uint64(2), m.GetWordFrequency("PROTOCOL"))
	assert.Empty(t, m.AddWord("   "))
}

func TestAddDuplicateWordBumpsFrequencyOnly(t *testing.T) {
	m := newTestManager(t)

	first := m.AddWord("渊协议")
	second := m.AddWord("渊协议")
	assert.Equal(t, first, second)
	assert.Equal(t, uint64(2), m.GetWordFrequency("渊协议"))
	assert.Equal(t, 1, m.index.Len())
	assert.Len(t, m.index.Shards("渊协议"), 1)
}

func TestSelectTargetShardIsDeterministic(t *testing.T) {
	m := newTestManager(t, WithShardCapacity(2), WithMaxShardCount(2))

	m.mu.Lock()
	defer m.mu.Unlock()

	first := m.selectTargetShard()
	first.addKey("w1")
	// first-fit: same shard while it has room
	assert.Same(t, first, m.selectTargetShard())
	first.addKey("w2")

	// full shard forces a new one under the ceiling
	second := m.selectTargetShard()
	assert.NotSame(t, first, second)
	second.addKey("w3")
	second.addKey("w4")

	// ceiling reached: the oldest shard absorbs overflow
	assert.Same(t, first, m.selectTargetShard())
}

func TestAsyncFissionSplitsFullShardInBackground(t *testing.T) {
	m := newTestManager(t,
		WithShardCapacity(4),
		WithEdgeNodeThreshold(0.4),
		WithAsyncFission(1, 8),
		WithScanInterval(10*time.Millisecond),
		WithSimilarity(func(a, b string) float64 {
			if a[0] == b[0] {
				return 1
			}
			return 0
		}),
	)
	words := []string{"a1", "a2", "b1", "z9"}
	for _, w := range words {
		m.AddWord(w)
	}

	// the split runs on the worker pool, fed by the capacity trip in AddWord
	// or by the occupancy scan
	require.Eventually(t, func() bool {
		return len(m.Events()) > 0
	}, 2*time.Second, 10*time.Millisecond, "background fission never ran")

	for _, w := range words {
		_, ok := m.FindDictionary(w)
		assert.True(t, ok, "word %s lost after async fission", w)
	}
	assert.GreaterOrEqual(t, len(m.Shards()), 2)

	require.NoError(t, m.Close())
}

func TestSearchWords(t *testing.T) {
	m := newTestManager(t)
	for _, w := range []string{"cache", "cachet", "caching", "shard", "shadow"} {
		m.AddWord(w)
	}

	assert.Equal(t, []string{"cache", "cachet", "caching"}, m.SearchWords("cach", 0))
	assert.Equal(t, []string{"cache", "cachet"}, m.SearchWords("cach", 2))
	assert.Empty(t, m.SearchWords("zzz", 10))

	fuzzy := m.SearchWordsFuzzy("shadov", 1)
	assert.Equal(t, []string{"shadow"}, fuzzy)
}

func TestFindDictionaryUsesCache(t *testing.T) {
	m := newTestManager(t)
	shardID := m.AddWord("cached")

	// the lookup cache is populated on add, so this is a pure cache hit
	found, ok := m.FindDictionary("cached")
	require.True(t, ok)
	assert.Equal(t, shardID, found)

	stats := m.cache.Stats()
	assert.Equal(t, uint64(1), stats["hits"])
}

func TestStats(t *testing.T) {
	m := newTestManager(t)
	m.AddWord("alpha")
	m.AddWord("beta")
	m.FindDictionary("alpha")
	m.FindDictionary("missing")

	stats := m.Stats()
	assert.Equal(t, 1, stats["total_dicts"])
	assert.Equal(t, 2, stats["total_words"])
	assert.Equal(t, 2.0, stats["avg_size"])
	assert.Contains(t, stats, "utilization_pct")
	assert.Contains(t, stats, "index_stats")
	assert.Contains(t, stats, "cache_stats")
	assert.Contains(t, stats, "fission_stats")
	assert.Contains(t, stats, "performance")
}

func TestShardsListing(t *testing.T) {
	m := newTestManager(t)
	m.AddWord("alpha")
	m.AddWord("beta")

	infos := m.Shards()
	require.Len(t, infos, 1)
	assert.Equal(t, 2, infos[0].Size)

	words, ok := m.ShardWords(infos[0].ID)
	require.True(t, ok)
	assert.Equal(t, []string{"alpha", "beta"}, words)

	_, ok = m.ShardWords("nope")
	assert.False(t, ok)
}

func TestSaveAndLoadRoundtrip(t *testing.T) {
	old := DefaultPath
	DefaultPath = t.TempDir()
	defer func() { DefaultPath = old }()

	m, err := New("roundtrip")
	require.NoError(t, err)
	for _, w := range []string{"alpha", "beta", "gamma"} {
		m.AddWord(w)
	}
	m.AddWord("alpha")
	require.NoError(t, m.Close())

	restored, err := New("roundtrip")
	require.NoError(t, err)
	defer restored.Close()
	require.NoError(t, restored.LoadAll())

	assert.Equal(t, 3, restored.index.Len())
	assert.Equal(t, uint64(2), restored.GetWordFrequency("alpha"))
	assert.Len(t, restored.Shards(), len(m.Shards()))
	for _, w := range []string{"alpha", "beta", "gamma"} {
		_, ok := restored.FindDictionary(w)
		assert.True(t, ok, "word %s lost across restart", w)
	}
}

func TestQueryShardsFilters(t *testing.T) {
	m := newTestManager(t)
	m.AddWord("alpha")

	infos, err := m.QueryShards(filters.Boolean("AND"), false, &filters.Filter{
		Field: "size", Operator: filters.Equal, Value: 1,
	})
	require.NoError(t, err)
	assert.Len(t, infos, 1)

	infos, err = m.QueryShards(filters.Boolean("AND"), false, &filters.Filter{
		Field: "size", Operator: filters.Equal, Value: 99,
	})
	require.NoError(t, err)
	assert.Empty(t, infos)
}
