package shardex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analysisShard(words ...string) *Shard {
	s := newShard(1000)
	for _, w := range words {
		s.addKey(w)
	}
	return s
}

func analyzerWith(t *testing.T, mutate func(cfg *Config)) *MorphismAnalyzer {
	t.Helper()
	var cfg Config
	cfg.applyDefaults()
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, cfg.Validate())
	return NewMorphismAnalyzer(cfg)
}

// firstByteSimilarity groups words by their first byte: same group scores 1,
// a core/outsider pair scores 0.2, two outsiders score 0.
func firstByteSimilarity(core byte) Similarity {
	return func(a, b string) float64 {
		if a[0] == b[0] {
			if a[0] == core {
				return 1
			}
			return 0
		}
		if a[0] == core || b[0] == core {
			return 0.2
		}
		return 0
	}
}

func TestAnalyzeIsolatedClustersTriggerFission(t *testing.T) {
	// six pairs of words, each pair strongly tied internally and unrelated
	// to every other pair
	shard := analysisShard(
		"a1", "a2", "b1", "b2", "c1", "c2",
		"d1", "d2", "e1", "e2", "f1", "f2",
	)
	groupFreq := map[byte]uint64{'a': 1, 'b': 10, 'c': 100, 'd': 1000, 'e': 10000, 'f': 100000}
	freq := func(word string) uint64 { return groupFreq[word[0]] }
	ma := analyzerWith(t, func(cfg *Config) {
		cfg.Similarity = func(a, b string) float64 {
			if a[0] == b[0] {
				return 1
			}
			return 0
		}
	})

	analysis := ma.Analyze(shard, freq)

	assert.Len(t, analysis.Clusters, 6)
	assert.Less(t, analysis.Density, 0.1)
	rec := analysis.Recommendation
	require.True(t, rec.FissionNeeded)
	assert.Equal(t, PriorityHigh, rec.Priority)
	require.NotNil(t, rec.Plan)
	assert.Equal(t, ClusterFission, rec.Plan.Type)
	assert.Equal(t, shard.ID, rec.Plan.SourceShard)
	// the first cluster stays resident, the rest move out
	assert.Equal(t, []string{"b1", "b2", "c1", "c2", "d1", "d2", "e1", "e2", "f1", "f2"}, rec.Plan.NodesToMove)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	shard := analysisShard("a1", "a2", "b1", "b2", "c1", "c2", "d1", "d2", "e1", "e2", "f1", "f2")
	groupFreq := map[byte]uint64{'a': 1, 'b': 10, 'c': 100, 'd': 1000, 'e': 10000, 'f': 100000}
	freq := func(word string) uint64 { return groupFreq[word[0]] }
	ma := analyzerWith(t, func(cfg *Config) {
		cfg.Similarity = func(a, b string) float64 {
			if a[0] == b[0] {
				return 1
			}
			return 0
		}
	})

	first := ma.Analyze(shard, freq)
	second := ma.Analyze(shard, freq)
	assert.Equal(t, first.Recommendation, second.Recommendation)
	assert.Equal(t, first.Clusters, second.Clusters)
	assert.Equal(t, first.Edges, second.Edges)
	assert.Equal(t, first.Density, second.Density)
}

func TestAnalyzeEdgeNodesTriggerFission(t *testing.T) {
	// four tightly coupled core words plus two loosely attached stragglers
	shard := analysisShard("ca", "cb", "cc", "cd", "s1", "s2")
	freq := func(word string) uint64 {
		if word[0] == 'c' {
			return 1000
		}
		return 1
	}
	ma := analyzerWith(t, func(cfg *Config) {
		cfg.Similarity = firstByteSimilarity('c')
	})

	analysis := ma.Analyze(shard, freq)

	assert.Equal(t, []string{"s1", "s2"}, analysis.EdgeNodes)
	rec := analysis.Recommendation
	require.True(t, rec.FissionNeeded)
	assert.Equal(t, PriorityMedium, rec.Priority)
	require.NotNil(t, rec.Plan)
	assert.Equal(t, EdgeNodeFission, rec.Plan.Type)
	assert.Equal(t, []string{"s1", "s2"}, rec.Plan.NodesToMove)
}

func TestAnalyzeCorePeripheryTriggerFission(t *testing.T) {
	// six-word spine of maximal-weight edges plus a weakly attached satellite
	shard := analysisShard("ca", "cb", "cc", "cd", "ce", "cf", "p1")
	freq := func(word string) uint64 {
		if word[0] == 'c' {
			return 1000
		}
		return 1
	}
	ma := analyzerWith(t, func(cfg *Config) {
		cfg.Similarity = firstByteSimilarity('c')
		cfg.MaxClusterSize = 5
	})

	analysis := ma.Analyze(shard, freq)

	assert.Len(t, analysis.CoreEdges, 15)
	rec := analysis.Recommendation
	require.True(t, rec.FissionNeeded)
	assert.Equal(t, PriorityMedium, rec.Priority)
	require.NotNil(t, rec.Plan)
	assert.Equal(t, CoreMorphismFission, rec.Plan.Type)
	assert.Equal(t, []string{"p1"}, rec.Plan.NodesToMove)
}

func TestAnalyzeCohesiveShardNeedsNoFission(t *testing.T) {
	shard := analysisShard("ca", "cb", "cc", "cd", "ce")
	freq := func(string) uint64 { return 10 }
	ma := analyzerWith(t, func(cfg *Config) {
		cfg.Similarity = func(a, b string) float64 { return 1 }
	})

	analysis := ma.Analyze(shard, freq)

	assert.Len(t, analysis.Clusters, 1)
	assert.Empty(t, analysis.EdgeNodes)
	assert.Equal(t, 1.0, analysis.Density)
	rec := analysis.Recommendation
	assert.False(t, rec.FissionNeeded)
	assert.Equal(t, PriorityNone, rec.Priority)
	assert.Nil(t, rec.Plan)
}

func TestAnalyzeTooFewKeys(t *testing.T) {
	ma := analyzerWith(t, nil)
	analysis := ma.Analyze(analysisShard("solo"), nil)
	assert.False(t, analysis.Recommendation.FissionNeeded)
	assert.Equal(t, PriorityNone, analysis.Recommendation.Priority)
}

func TestAnalyzeSampleCap(t *testing.T) {
	shard := newShard(1000)
	for i := 0; i < 30; i++ {
		shard.addKey(string(rune('a'+i%26)) + string(rune('0'+i/26)))
	}
	ma := analyzerWith(t, func(cfg *Config) {
		cfg.MaxAnalysisKeys = 10
	})
	analysis := ma.Analyze(shard, nil)
	assert.Equal(t, 10, analysis.TotalNodes)
}

func TestClusterIsolated(t *testing.T) {
	assert.True(t, Cluster{IsolationScore: 0.1}.Isolated(0.3))
	assert.False(t, Cluster{IsolationScore: 0.5}.Isolated(0.3))
}
