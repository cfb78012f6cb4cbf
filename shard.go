package shardex

import (
	"sort"
	"time"

	"github.com/oarkflow/xid"
)

// Shard is a bounded partition of the word space: the unit of capacity,
// persistence, and fission. Shards may empty out but are never deleted.
type Shard struct {
	ID        string
	Capacity  int
	Keys      map[string]struct{}
	Size      int
	CreatedAt time.Time
	Dirty     bool
	Metadata  map[string]any
}

func newShard(capacity int) *Shard {
	return &Shard{
		ID:        xid.New().String(),
		Capacity:  capacity,
		Keys:      make(map[string]struct{}),
		CreatedAt: time.Now(),
		Metadata:  make(map[string]any),
	}
}

// addKey inserts word and keeps Size equal to len(Keys).
func (s *Shard) addKey(word string) bool {
	if _, ok := s.Keys[word]; ok {
		return false
	}
	s.Keys[word] = struct{}{}
	s.Size = len(s.Keys)
	s.Dirty = true
	return true
}

func (s *Shard) removeKey(word string) bool {
	if _, ok := s.Keys[word]; !ok {
		return false
	}
	delete(s.Keys, word)
	s.Size = len(s.Keys)
	s.Dirty = true
	return true
}

func (s *Shard) contains(word string) bool {
	_, ok := s.Keys[word]
	return ok
}

func (s *Shard) hasRoom() bool {
	return s.Size < s.Capacity
}

// Words returns the shard's keys in sorted order.
func (s *Shard) Words() []string {
	words := make([]string, 0, len(s.Keys))
	for w := range s.Keys {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// ShadowRecord is the forwarding pointer fission leaves behind so lookups
// issued against the origin shard still resolve. Chains are never longer
// than one hop: a later fission overwrites the record with the new target.
type ShadowRecord struct {
	Word        string    `json:"word"`
	OriginShard string    `json:"origin_shard"`
	TargetShard string    `json:"target_shard"`
	CreatedAt   time.Time `json:"created_at"`
}
