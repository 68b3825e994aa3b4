// Package snapshot holds the shared last-known view of tracked assets.
//
// Two update sources feed it with different merge rules: a poll cycle
// replaces whole records, while a live tick patches only the price fields
// of an already-known asset. This keeps the poll/push race well defined.
package snapshot

import (
	"sync"
	"time"

	"github.com/rickgao/market-gateway/internal/model"
)

// Snapshot is the single owned last-known asset state. Safe for concurrent
// use.
type Snapshot struct {
	mu        sync.RWMutex
	assets    map[string]model.Asset
	order     []string // insertion order of asset ids
	updatedAt time.Time
}

// New creates an empty snapshot.
func New() *Snapshot {
	return &Snapshot{assets: make(map[string]model.Asset)}
}

// ReplaceAll overwrites the snapshot with the given records (poll rule:
// whole-record replace).
func (s *Snapshot) ReplaceAll(assets []model.Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assets = make(map[string]model.Asset, len(assets))
	s.order = s.order[:0]
	for _, a := range assets {
		if _, seen := s.assets[a.ID]; !seen {
			s.order = append(s.order, a.ID)
		}
		s.assets[a.ID] = a
	}
	s.updatedAt = time.Now()
}

// ApplyTick patches price, 24h change, and volume of a known asset (push
// rule: field-level patch). Ticks for unknown assets are dropped — the
// polling baseline decides which assets exist.
func (s *Snapshot) ApplyTick(t model.Tick) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[t.AssetID]
	if !ok {
		return false
	}

	a.PriceUSD = t.PriceUSD
	if t.Change24h != nil {
		a.Change24h = t.Change24h
	}
	if t.Volume24h != nil {
		a.Volume24h = t.Volume24h
	}
	a.UpdatedAt = t.ReceivedAt

	s.assets[t.AssetID] = a
	s.updatedAt = t.ReceivedAt
	return true
}

// Get returns one asset by id.
func (s *Snapshot) Get(id string) (model.Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	return a, ok
}

// All returns the assets in their original poll order.
func (s *Snapshot) All() []model.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Asset, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.assets[id])
	}
	return out
}

// Len returns the number of tracked assets.
func (s *Snapshot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.assets)
}

// UpdatedAt returns when the snapshot last changed.
func (s *Snapshot) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
