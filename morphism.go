package shardex

import (
	"fmt"
	"sort"
)

// MorphismEdge is the pairwise association strength between two words of a
// shard. Edges are symmetric and only retained above the configured floor,
// keeping the graph sparse.
type MorphismEdge struct {
	WordA  string  `json:"word_a"`
	WordB  string  `json:"word_b"`
	Weight float64 `json:"weight"`
}

// Cluster is a connected component of the similarity graph. Clusters are
// recomputed per analysis and never persisted.
type Cluster struct {
	Nodes             []string
	IsolationScore    float64
	AvgInternalWeight float64
}

// Isolated reports whether the cluster has few ties to the rest of the
// shard, i.e. it is a true logical island.
func (c Cluster) Isolated(threshold float64) bool {
	return c.IsolationScore < threshold
}

type Priority string

const (
	PriorityNone   Priority = "none"
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Recommendation is the analyzer's verdict for one shard.
type Recommendation struct {
	FissionNeeded bool
	Priority      Priority
	Plan          *FissionPlan
	Reason        string
}

// Analysis is the full classification of a shard's similarity graph.
type Analysis struct {
	ShardID        string
	TotalNodes     int
	Edges          []MorphismEdge
	Density        float64
	Clusters       []Cluster
	EdgeNodes      []string
	CoreEdges      []MorphismEdge
	Recommendation Recommendation
}

// MorphismAnalyzer builds a weighted similarity graph over a shard's keys
// and turns its shape into fission recommendations. Analyze is a pure
// function of the shard's sampled key set, the frequency source, and the
// configured thresholds: the same inputs always classify identically.
type MorphismAnalyzer struct {
	cfg Config
	sim Similarity
}

func NewMorphismAnalyzer(cfg Config) *MorphismAnalyzer {
	sim := cfg.Similarity
	if sim == nil {
		sim = JaccardSimilarity
	}
	return &MorphismAnalyzer{cfg: cfg, sim: sim}
}

// Analyze classifies the shard's similarity graph. The key set is sampled in
// sorted order and capped at MaxAnalysisKeys so the pairwise pass stays
// bounded.
func (ma *MorphismAnalyzer) Analyze(shard *Shard, freq func(word string) uint64) *Analysis {
	nodes := shard.Words()
	if len(nodes) > ma.cfg.MaxAnalysisKeys {
		nodes = nodes[:ma.cfg.MaxAnalysisKeys]
	}
	analysis := &Analysis{
		ShardID:    shard.ID,
		TotalNodes: len(nodes),
	}
	if len(nodes) < 2 {
		analysis.Recommendation = Recommendation{Priority: PriorityNone, Reason: "not enough keys to analyze"}
		return analysis
	}

	degree := make(map[string]int, len(nodes))
	weightSum := make(map[string]float64, len(nodes))
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			a, b := nodes[i], nodes[j]
			fa, fb := uint64(1), uint64(1)
			if freq != nil {
				fa, fb = freq(a), freq(b)
			}
			weight := ma.sim(a, b)*0.7 + frequencyBalance(fa, fb)*0.3
			if weight < ma.cfg.EdgeWeightFloor {
				continue
			}
			analysis.Edges = append(analysis.Edges, MorphismEdge{WordA: a, WordB: b, Weight: weight})
			degree[a]++
			degree[b]++
			weightSum[a] += weight
			weightSum[b] += weight
		}
	}

	maxEdges := len(nodes) * (len(nodes) - 1) / 2
	analysis.Density = float64(len(analysis.Edges)) / float64(maxEdges)
	analysis.Clusters = ma.findClusters(nodes, analysis.Edges)
	analysis.EdgeNodes = ma.findEdgeNodes(nodes, degree, weightSum)
	for _, edge := range analysis.Edges {
		if edge.Weight >= ma.cfg.CoreStrength {
			analysis.CoreEdges = append(analysis.CoreEdges, edge)
		}
	}
	analysis.Recommendation = ma.recommend(analysis)
	return analysis
}

// findClusters runs union-find over edges stronger than the isolation
// threshold. Singleton nodes form their own clusters.
func (ma *MorphismAnalyzer) findClusters(nodes []string, edges []MorphismEdge) []Cluster {
	parent := make(map[string]string, len(nodes))
	for _, n := range nodes {
		parent[n] = n
	}
	var find func(string) string
	find = func(n string) string {
		if parent[n] != n {
			parent[n] = find(parent[n])
		}
		return parent[n]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for _, edge := range edges {
		if edge.Weight > ma.cfg.IsolationThreshold {
			union(edge.WordA, edge.WordB)
		}
	}

	members := make(map[string][]string)
	for _, n := range nodes {
		root := find(n)
		members[root] = append(members[root], n)
	}

	inCluster := make(map[string]string, len(nodes))
	for root, ns := range members {
		for _, n := range ns {
			inCluster[n] = root
		}
	}

	internal := make(map[string]int)
	external := make(map[string]int)
	internalWeight := make(map[string]float64)
	for _, edge := range edges {
		ra, rb := inCluster[edge.WordA], inCluster[edge.WordB]
		if ra == rb {
			internal[ra]++
			internalWeight[ra] += edge.Weight
		} else {
			external[ra]++
			external[rb]++
		}
	}

	clusters := make([]Cluster, 0, len(members))
	for root, ns := range members {
		sort.Strings(ns)
		total := internal[root] + external[root]
		score := 0.0
		if total > 0 {
			score = float64(external[root]) / float64(total)
		}
		avg := 0.0
		if internal[root] > 0 {
			avg = internalWeight[root] / float64(internal[root])
		}
		clusters = append(clusters, Cluster{
			Nodes:             ns,
			IsolationScore:    score,
			AvgInternalWeight: avg,
		})
	}
	sort.Slice(clusters, func(i, j int) bool {
		if len(clusters[i].Nodes) != len(clusters[j].Nodes) {
			return len(clusters[i].Nodes) > len(clusters[j].Nodes)
		}
		return clusters[i].Nodes[0] < clusters[j].Nodes[0]
	})
	return clusters
}

// findEdgeNodes flags loosely attached keys: low degree or weak average
// incident weight.
func (ma *MorphismAnalyzer) findEdgeNodes(nodes []string, degree map[string]int, weightSum map[string]float64) []string {
	var edgeNodes []string
	for _, n := range nodes {
		d := degree[n]
		avg := 0.0
		if d > 0 {
			avg = weightSum[n] / float64(d)
		}
		if d < 3 || avg < ma.cfg.EdgeNodeThreshold {
			edgeNodes = append(edgeNodes, n)
		}
	}
	sort.Strings(edgeNodes)
	return edgeNodes
}

// recommend applies the rule ladder in severity order; the first matching
// rule wins. It only acts on already-separated structure, never on tightly
// coupled graphs.
func (ma *MorphismAnalyzer) recommend(analysis *Analysis) Recommendation {
	switch {
	case len(analysis.Clusters) > 3 && analysis.Density < 0.1:
		nodes := ma.peripheralClusterNodes(analysis.Clusters)
		if len(nodes) > 0 {
			return Recommendation{
				FissionNeeded: true,
				Priority:      PriorityHigh,
				Reason:        fmt.Sprintf("%d logical islands at density %.3f", len(analysis.Clusters), analysis.Density),
				Plan: &FissionPlan{
					Type:        ClusterFission,
					SourceShard: analysis.ShardID,
					NodesToMove: nodes,
					Reason:      "isolate clusters",
				},
			}
		}
	case len(analysis.EdgeNodes) > 0 && float64(len(analysis.EdgeNodes)) > 0.3*float64(analysis.TotalNodes):
		return Recommendation{
			FissionNeeded: true,
			Priority:      PriorityMedium,
			Reason:        fmt.Sprintf("%d of %d nodes are edge nodes", len(analysis.EdgeNodes), analysis.TotalNodes),
			Plan: &FissionPlan{
				Type:        EdgeNodeFission,
				SourceShard: analysis.ShardID,
				NodesToMove: analysis.EdgeNodes,
				Reason:      "strip edge nodes to auxiliary shard",
			},
		}
	case len(analysis.CoreEdges) > 10 && analysis.TotalNodes > ma.cfg.MaxClusterSize:
		nodes := ma.peripheryNodes(analysis)
		if len(nodes) > 0 {
			return Recommendation{
				FissionNeeded: true,
				Priority:      PriorityMedium,
				Reason:        fmt.Sprintf("%d core edges over %d nodes", len(analysis.CoreEdges), analysis.TotalNodes),
				Plan: &FissionPlan{
					Type:        CoreMorphismFission,
					SourceShard: analysis.ShardID,
					NodesToMove: nodes,
					Reason:      "keep core, peel periphery",
				},
			}
		}
	}
	if analysis.Density < 0.1 {
		return Recommendation{
			Priority: PriorityLow,
			Reason:   fmt.Sprintf("density %.3f is low; associations could be strengthened", analysis.Density),
		}
	}
	return Recommendation{Priority: PriorityNone, Reason: "shard is cohesive"}
}

// peripheralClusterNodes keeps the largest cluster resident and moves the
// rest out. Clusters arrive pre-sorted by size.
func (ma *MorphismAnalyzer) peripheralClusterNodes(clusters []Cluster) []string {
	var nodes []string
	for _, cluster := range clusters[1:] {
		nodes = append(nodes, cluster.Nodes...)
	}
	sort.Strings(nodes)
	return nodes
}

// peripheryNodes returns every node not incident to a core edge. Core edges
// are the shard's spine and must never be split apart.
func (ma *MorphismAnalyzer) peripheryNodes(analysis *Analysis) []string {
	core := make(map[string]struct{}, len(analysis.CoreEdges)*2)
	for _, edge := range analysis.CoreEdges {
		core[edge.WordA] = struct{}{}
		core[edge.WordB] = struct{}{}
	}
	var nodes []string
	for _, cluster := range analysis.Clusters {
		for _, n := range cluster.Nodes {
			if _, ok := core[n]; !ok {
				nodes = append(nodes, n)
			}
		}
	}
	sort.Strings(nodes)
	return nodes
}
