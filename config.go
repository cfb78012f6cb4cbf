package shardex

import (
	"fmt"
	"time"
)

// Config carries every tunable of the dictionary manager. Zero fields are
// replaced with defaults before validation, so callers only set what they
// care about.
type Config struct {
	ShardCapacity      int           // max words per shard before fission checks kick in
	MaxShardCount      int           // ceiling on shard creation; oldest shard is reused beyond it
	MaxAnalysisKeys    int           // sample bound for graph construction, keeps analysis O(N^2) bounded
	EdgeWeightFloor    float64       // edges below this weight are dropped from the graph
	IsolationThreshold float64       // component traversal and isolation cutoff
	EdgeNodeThreshold  float64       // avg incident weight below which a node counts as an edge node
	CoreStrength       float64       // weight at or above which an edge belongs to the shard's spine
	MaxClusterSize     int           // core/periphery rule only fires past this node count
	AsyncFission       bool          // run fission analysis on the worker pool instead of inline
	FissionWorkers     int           // worker pool size for async fission
	FissionQueueSize   int           // pending task buffer for async fission
	ScanInterval       time.Duration // occupancy scan period in async mode
	Similarity         Similarity    // pairwise word similarity, defaults to rune-set Jaccard
	Cache              CacheConfig
}

// CacheConfig sizes the three lookup cache tiers.
type CacheConfig struct {
	L1Size int           // hot LRU set
	L2Size int           // warm TTL set
	L2TTL  time.Duration // lifetime of warm entries
	L3Size int           // cold LFU set
}

func defaultConfig() Config {
	return Config{
		ShardCapacity:      1000,
		MaxShardCount:      64,
		MaxAnalysisKeys:    100,
		EdgeWeightFloor:    0.1,
		IsolationThreshold: 0.3,
		EdgeNodeThreshold:  0.2,
		CoreStrength:       0.8,
		MaxClusterSize:     50,
		FissionWorkers:     2,
		FissionQueueSize:   64,
		ScanInterval:       30 * time.Second,
		Similarity:         JaccardSimilarity,
		Cache: CacheConfig{
			L1Size: 100,
			L2Size: 500,
			L2TTL:  time.Minute,
			L3Size: 2000,
		},
	}
}

func (cfg *Config) applyDefaults() {
	def := defaultConfig()
	if cfg.ShardCapacity == 0 {
		cfg.ShardCapacity = def.ShardCapacity
	}
	if cfg.MaxShardCount == 0 {
		cfg.MaxShardCount = def.MaxShardCount
	}
	if cfg.MaxAnalysisKeys == 0 {
		cfg.MaxAnalysisKeys = def.MaxAnalysisKeys
	}
	if cfg.EdgeWeightFloor == 0 {
		cfg.EdgeWeightFloor = def.EdgeWeightFloor
	}
	if cfg.IsolationThreshold == 0 {
		cfg.IsolationThreshold = def.IsolationThreshold
	}
	if cfg.EdgeNodeThreshold == 0 {
		cfg.EdgeNodeThreshold = def.EdgeNodeThreshold
	}
	if cfg.CoreStrength == 0 {
		cfg.CoreStrength = def.CoreStrength
	}
	if cfg.MaxClusterSize == 0 {
		cfg.MaxClusterSize = def.MaxClusterSize
	}
	if cfg.FissionWorkers == 0 {
		cfg.FissionWorkers = def.FissionWorkers
	}
	if cfg.FissionQueueSize == 0 {
		cfg.FissionQueueSize = def.FissionQueueSize
	}
	if cfg.ScanInterval == 0 {
		cfg.ScanInterval = def.ScanInterval
	}
	if cfg.Similarity == nil {
		cfg.Similarity = def.Similarity
	}
	if cfg.Cache.L1Size == 0 {
		cfg.Cache.L1Size = def.Cache.L1Size
	}
	if cfg.Cache.L2Size == 0 {
		cfg.Cache.L2Size = def.Cache.L2Size
	}
	if cfg.Cache.L2TTL == 0 {
		cfg.Cache.L2TTL = def.Cache.L2TTL
	}
	if cfg.Cache.L3Size == 0 {
		cfg.Cache.L3Size = def.Cache.L3Size
	}
}

// Validate fails fast on configurations no runtime behavior can repair.
func (cfg Config) Validate() error {
	if cfg.ShardCapacity < 1 {
		return fmt.Errorf("shardex: shard capacity must be positive, got %d", cfg.ShardCapacity)
	}
	if cfg.MaxShardCount < 1 {
		return fmt.Errorf("shardex: max shard count must be positive, got %d", cfg.MaxShardCount)
	}
	if cfg.MaxAnalysisKeys < 2 {
		return fmt.Errorf("shardex: analysis key bound must be at least 2, got %d", cfg.MaxAnalysisKeys)
	}
	if cfg.EdgeWeightFloor < 0 || cfg.EdgeWeightFloor > 1 {
		return fmt.Errorf("shardex: edge weight floor must be in [0,1], got %v", cfg.EdgeWeightFloor)
	}
	if cfg.IsolationThreshold <= 0 || cfg.IsolationThreshold >= 1 {
		return fmt.Errorf("shardex: isolation threshold must be in (0,1), got %v", cfg.IsolationThreshold)
	}
	if cfg.EdgeNodeThreshold < 0 || cfg.EdgeNodeThreshold > 1 {
		return fmt.Errorf("shardex: edge node threshold must be in [0,1], got %v", cfg.EdgeNodeThreshold)
	}
	if cfg.CoreStrength <= 0 || cfg.CoreStrength > 1 {
		return fmt.Errorf("shardex: core strength must be in (0,1], got %v", cfg.CoreStrength)
	}
	if cfg.FissionWorkers < 1 {
		return fmt.Errorf("shardex: fission workers must be positive, got %d", cfg.FissionWorkers)
	}
	if cfg.Cache.L1Size < 1 || cfg.Cache.L2Size < 1 || cfg.Cache.L3Size < 1 {
		return fmt.Errorf("shardex: cache tier sizes must be positive")
	}
	if cfg.Cache.L2TTL <= 0 {
		return fmt.Errorf("shardex: L2 TTL must be positive, got %v", cfg.Cache.L2TTL)
	}
	return nil
}

type Options func(*Config)

func WithShardCapacity(capacity int) Options {
	return func(cfg *Config) {
		cfg.ShardCapacity = capacity
	}
}

func WithMaxShardCount(count int) Options {
	return func(cfg *Config) {
		cfg.MaxShardCount = count
	}
}

func WithMaxAnalysisKeys(n int) Options {
	return func(cfg *Config) {
		cfg.MaxAnalysisKeys = n
	}
}

func WithIsolationThreshold(threshold float64) Options {
	return func(cfg *Config) {
		cfg.IsolationThreshold = threshold
	}
}

func WithEdgeNodeThreshold(threshold float64) Options {
	return func(cfg *Config) {
		cfg.EdgeNodeThreshold = threshold
	}
}

func WithCoreStrength(strength float64) Options {
	return func(cfg *Config) {
		cfg.CoreStrength = strength
	}
}

func WithAsyncFission(workers, queueSize int) Options {
	return func(cfg *Config) {
		cfg.AsyncFission = true
		if workers > 0 {
			cfg.FissionWorkers = workers
		}
		if queueSize > 0 {
			cfg.FissionQueueSize = queueSize
		}
	}
}

func WithScanInterval(dur time.Duration) Options {
	return func(cfg *Config) {
		cfg.ScanInterval = dur
	}
}

// WithSimilarity installs a custom similarity function. Implementations must
// be symmetric, deterministic, and stay within [0,1].
func WithSimilarity(sim Similarity) Options {
	return func(cfg *Config) {
		if sim != nil {
			cfg.Similarity = sim
		}
	}
}

func WithCacheTiers(l1, l2, l3 int, l2TTL time.Duration) Options {
	return func(cfg *Config) {
		cfg.Cache = CacheConfig{L1Size: l1, L2Size: l2, L2TTL: l2TTL, L3Size: l3}
	}
}
