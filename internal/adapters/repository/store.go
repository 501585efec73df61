// Package repository holds the per-entity snapshot sequences produced by the
// rolling aggregator until the joiner reads them.
package repository

import (
	"context"

	"github.com/okian/pitwall/internal/domain/rolling"
)

// Store provides read/write access to aggregated snapshots.
type Store interface {
	// Put stores the snapshots of one entity in one dimension. Storing the
	// same (dimension, entity) twice returns ErrAlreadyExists.
	Put(ctx context.Context, dimension, entity string, snaps []rolling.Snapshot) error

	// Count returns the number of entities stored for a dimension.
	Count(ctx context.Context, dimension string) int

	// Lookup returns the snapshot of entity at raceID.
	Lookup(dimension, entity, raceID string) (rolling.Snapshot, bool)
}

// View binds s to one dimension.
func View(s Store, dimension string) DimensionView {
	return DimensionView{store: s, dimension: dimension}
}

// DimensionView looks up snapshots of a single dimension.
type DimensionView struct {
	store     Store
	dimension string
}

// Lookup returns the snapshot of entity at raceID.
func (v DimensionView) Lookup(entity, raceID string) (rolling.Snapshot, bool) {
	return v.store.Lookup(v.dimension, entity, raceID)
}
