package shardex

import (
	"fmt"
	"log"
	"time"
)

// PlanType enumerates the fission plan variants. Execution switches over the
// tag exhaustively; an unknown tag is a programming error, not a fallthrough.
type PlanType int

const (
	ClusterFission PlanType = iota
	EdgeNodeFission
	CoreMorphismFission
)

func (pt PlanType) String() string {
	switch pt {
	case ClusterFission:
		return "cluster"
	case EdgeNodeFission:
		return "edge_node"
	case CoreMorphismFission:
		return "core_morphism"
	default:
		return fmt.Sprintf("unknown(%d)", int(pt))
	}
}

// FissionPlan is a concrete split: which words leave which shard, and why.
type FissionPlan struct {
	Type        PlanType
	SourceShard string
	NodesToMove []string
	Reason      string
}

// FissionEvent is the append-only observability record emitted per executed
// plan.
type FissionEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	SourceShard string    `json:"source_shard"`
	NewShard    string    `json:"new_shard"`
	PlanType    string    `json:"plan_type"`
	MovedCount  int       `json:"moved_count"`
	Reason      string    `json:"reason"`
}

// executeFission turns a plan into shard mutations. Each word moves in one
// step: origin removal, target insert, shadow record, index reassignment.
// Already-moved words are skipped, so replaying a partially applied plan is
// safe. Persistence happens after the lock is released; a failed write is
// logged and the in-memory state stays authoritative.
func (m *Manager) executeFission(plan *FissionPlan) (string, error) {
	if plan == nil {
		return "", fmt.Errorf("shardex: nil fission plan")
	}
	switch plan.Type {
	case ClusterFission, EdgeNodeFission, CoreMorphismFission:
	default:
		return "", fmt.Errorf("shardex: unknown fission plan type %d", int(plan.Type))
	}

	m.mu.Lock()
	origin, ok := m.shards[plan.SourceShard]
	if !ok {
		m.mu.Unlock()
		return "", fmt.Errorf("shardex: source shard %s not found", plan.SourceShard)
	}
	target := newShard(m.cfg.ShardCapacity)
	target.Metadata["origin"] = origin.ID
	target.Metadata["plan_type"] = plan.Type.String()
	m.shards[target.ID] = target
	m.order = append(m.order, target.ID)

	now := time.Now()
	moved := 0
	for _, word := range plan.NodesToMove {
		if !origin.removeKey(word) {
			continue
		}
		target.addKey(word)
		m.shadows[word] = &ShadowRecord{
			Word:        word,
			OriginShard: origin.ID,
			TargetShard: target.ID,
			CreatedAt:   now,
		}
		m.index.Reassign(word, origin.ID, target.ID)
		// tier entries that still point at the origin shard are stale
		m.cache.Delete(word)
		moved++
	}

	event := FissionEvent{
		Timestamp:   now,
		SourceShard: origin.ID,
		NewShard:    target.ID,
		PlanType:    plan.Type.String(),
		MovedCount:  moved,
		Reason:      plan.Reason,
	}
	m.events = append(m.events, event)
	m.mu.Unlock()

	m.monitor.RecordFission()
	if err := m.saveShards(); err != nil {
		log.Printf("shardex: persisting shards after fission: %v", err)
	}
	if err := m.appendEvent(event); err != nil {
		log.Printf("shardex: appending fission event: %v", err)
	}
	return target.ID, nil
}
