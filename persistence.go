package shardex

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oarkflow/json"
)

const (
	shardsFile  = "shards.json"
	indexFile   = "index.json"
	shadowsFile = "shadows.json"
	eventsFile  = "events.log"
)

// shardSnapshot is the serialized form of one shard.
type shardSnapshot struct {
	ID        string         `json:"id"`
	Words     []string       `json:"words"`
	Capacity  int            `json:"capacity"`
	CreatedAt time.Time      `json:"created"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SaveAll flushes shards, index entries, and shadow records to disk. The
// event log is append-only and written as fissions happen.
func (m *Manager) SaveAll() error {
	if err := m.saveShards(); err != nil {
		return err
	}
	if err := m.saveIndex(); err != nil {
		return err
	}
	return m.saveShadows()
}

func (m *Manager) saveShards() error {
	m.mu.RLock()
	snapshots := make([]shardSnapshot, 0, len(m.order))
	saved := make([]string, 0, len(m.order))
	for _, id := range m.order {
		s := m.shards[id]
		snapshots = append(snapshots, shardSnapshot{
			ID:        s.ID,
			Words:     s.Words(),
			Capacity:  s.Capacity,
			CreatedAt: s.CreatedAt,
			Metadata:  s.Metadata,
		})
		saved = append(saved, id)
	}
	m.mu.RUnlock()
	if err := m.writeJSON(shardsFile, snapshots); err != nil {
		return err
	}
	m.mu.Lock()
	for _, id := range saved {
		if s, ok := m.shards[id]; ok {
			s.Dirty = false
		}
	}
	m.mu.Unlock()
	return nil
}

func (m *Manager) saveIndex() error {
	return m.writeJSON(indexFile, m.index.snapshot())
}

func (m *Manager) saveShadows() error {
	m.mu.RLock()
	records := make([]*ShadowRecord, 0, len(m.shadows))
	for _, word := range m.sortedShadowWords() {
		records = append(records, m.shadows[word])
	}
	m.mu.RUnlock()
	return m.writeJSON(shadowsFile, records)
}

func (m *Manager) writeJSON(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	path := filepath.Join(m.storage, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// appendEvent writes one fission event as a JSON line.
func (m *Manager) appendEvent(event FissionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	path := filepath.Join(m.storage, eventsFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// LoadAll restores shards, index entries, shadow records, and the event log
// from disk. Missing files are treated as empty state.
func (m *Manager) LoadAll() error {
	var snapshots []shardSnapshot
	if err := m.readJSON(shardsFile, &snapshots); err != nil {
		return err
	}
	var indexRecords []indexEntryRecord
	if err := m.readJSON(indexFile, &indexRecords); err != nil {
		return err
	}
	var shadowRecords []*ShadowRecord
	if err := m.readJSON(shadowsFile, &shadowRecords); err != nil {
		return err
	}
	events, err := m.readEvents()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.shards = make(map[string]*Shard, len(snapshots))
	m.order = m.order[:0]
	for _, snap := range snapshots {
		shard := &Shard{
			ID:        snap.ID,
			Capacity:  snap.Capacity,
			Keys:      make(map[string]struct{}, len(snap.Words)),
			CreatedAt: snap.CreatedAt,
			Metadata:  snap.Metadata,
		}
		if shard.Metadata == nil {
			shard.Metadata = make(map[string]any)
		}
		for _, word := range snap.Words {
			shard.Keys[word] = struct{}{}
		}
		shard.Size = len(shard.Keys)
		m.shards[shard.ID] = shard
		m.order = append(m.order, shard.ID)
	}
	sort.SliceStable(m.order, func(i, j int) bool {
		return m.shards[m.order[i]].CreatedAt.Before(m.shards[m.order[j]].CreatedAt)
	})
	m.shadows = make(map[string]*ShadowRecord, len(shadowRecords))
	for _, rec := range shadowRecords {
		if rec != nil && rec.Word != "" {
			m.shadows[rec.Word] = rec
		}
	}
	m.events = events
	m.mu.Unlock()

	m.index.restore(indexRecords)
	m.cache.Clear()
	return nil
}

func (m *Manager) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(m.storage, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return nil
}

func (m *Manager) readEvents() ([]FissionEvent, error) {
	f, err := os.Open(filepath.Join(m.storage, eventsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()
	var events []FissionEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev FissionEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("decode event log: %w", err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan event log: %w", err)
	}
	return events, nil
}
