package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/pitwall/internal/domain/rolling"
	"github.com/okian/pitwall/pkg/metrics"
)

// entry is one entity's snapshot sequence plus a race index into it.
type entry struct {
	snaps  []rolling.Snapshot
	byRace map[string]int
}

// SnapshotStore is an in-memory Store safe for concurrent writers.
type SnapshotStore struct {
	mu               sync.RWMutex
	dims             map[string]map[string]*entry
	expectedEntities int
}

// NewSnapshotStore creates an empty store.
func NewSnapshotStore(opts ...Option) *SnapshotStore {
	s := &SnapshotStore{dims: make(map[string]map[string]*entry)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put implements Store.
func (s *SnapshotStore) Put(_ context.Context, dimension, entity string, snaps []rolling.Snapshot) error {
	e := &entry{snaps: snaps, byRace: make(map[string]int, len(snaps))}
	for i := range snaps {
		e.byRace[snaps[i].RaceID] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	byEntity, ok := s.dims[dimension]
	if !ok {
		byEntity = make(map[string]*entry, s.expectedEntities)
		s.dims[dimension] = byEntity
	}
	if _, dup := byEntity[entity]; dup {
		return fmt.Errorf("%w: %s/%s", ErrAlreadyExists, dimension, entity)
	}
	byEntity[entity] = e
	metrics.RecordSnapshots(dimension, len(snaps))
	return nil
}

// Count implements Store.
func (s *SnapshotStore) Count(_ context.Context, dimension string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dims[dimension])
}

// Lookup implements Store.
func (s *SnapshotStore) Lookup(dimension, entity, raceID string) (rolling.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.dims[dimension][entity]
	if !ok {
		return rolling.Snapshot{}, false
	}
	i, ok := e.byRace[raceID]
	if !ok {
		return rolling.Snapshot{}, false
	}
	return e.snaps[i], true
}
