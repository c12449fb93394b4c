// Package world implements the session actor's in-memory view of a region:
// the avatar table, terrain patch cache, and object cache.
package world

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/osgrid/metaviewer/internal/inventory"
	"github.com/osgrid/metaviewer/internal/monitoring"
)

// MeshPath identifies one mesh asset contributed by an avatar's outfit,
// keyed by the wearable slot it fills.
type MeshPath struct {
	ItemID  uuid.UUID
	AssetID uuid.UUID
	Slot    inventory.WearableType
}

// AvatarRecord accumulates outfit items for one agent until the outfit is
// known to be complete.
type AvatarRecord struct {
	AgentID    uuid.UUID
	OutfitSize int
	sizeKnown  bool
	Items      []inventory.OutfitItem
	finalized  bool
}

// Finalizer performs the finalize-avatar task:
// gather mesh paths, merge skeletons, snapshot, package, and notify the UI.
// It is implemented by the asset/mesh-generation layers and injected here
// so World State does not import them directly.
type Finalizer interface {
	FinalizeAvatar(ctx context.Context, agentID uuid.UUID, meshPaths []MeshPath) error
}

// AvatarTable is the map from agent id to avatar record, guarding the
// finalize invariant: the finalize step runs exactly once per (agent id,
// outfit-size reach) edge.
type AvatarTable struct {
	mu        sync.Mutex
	records   map[uuid.UUID]*AvatarRecord
	store     *inventory.Store
	finalizer Finalizer
}

// NewAvatarTable constructs an AvatarTable backed by store for persistence
// and finalizer for the mesh-generation handoff.
func NewAvatarTable(store *inventory.Store, finalizer Finalizer) *AvatarTable {
	return &AvatarTable{
		records:   make(map[uuid.UUID]*AvatarRecord),
		store:     store,
		finalizer: finalizer,
	}
}

func (t *AvatarTable) recordFor(agentID uuid.UUID) *AvatarRecord {
	rec, ok := t.records[agentID]
	if !ok {
		rec = &AvatarRecord{AgentID: agentID}
		t.records[agentID] = rec
	}
	return rec
}

// SetOutfitSize records the current-outfit folder's expected descendant
// count, as reported by the inventory-descendants exchange.
func (t *AvatarTable) SetOutfitSize(ctx context.Context, agentID uuid.UUID, size int) error {
	t.mu.Lock()
	rec := t.recordFor(agentID)
	rec.OutfitSize = size
	rec.sizeKnown = true
	ready := t.checkReady(rec)
	t.mu.Unlock()

	if ready {
		return t.finalize(ctx, rec)
	}
	return nil
}

// RecordItem persists one streamed-in outfit item and checks whether the
// avatar's outfit is now complete.
func (t *AvatarTable) RecordItem(ctx context.Context, agentID uuid.UUID, item inventory.OutfitItem) error {
	if err := t.store.InsertOutfitItem(ctx, agentID, item); err != nil {
		return fmt.Errorf("world: record outfit item: %w", err)
	}

	t.mu.Lock()
	rec := t.recordFor(agentID)
	rec.Items = append(rec.Items, item)
	ready := t.checkReady(rec)
	t.mu.Unlock()

	if ready {
		return t.finalize(ctx, rec)
	}
	return nil
}

// checkReady reports (and latches) whether rec has just crossed the
// finalize threshold. Must be called with t.mu held.
func (t *AvatarTable) checkReady(rec *AvatarRecord) bool {
	if rec.finalized || !rec.sizeKnown {
		return false
	}
	if len(rec.Items) < rec.OutfitSize {
		return false
	}
	rec.finalized = true
	return true
}

func (t *AvatarTable) finalize(ctx context.Context, rec *AvatarRecord) error {
	items, err := t.store.CurrentOutfitItems(ctx, rec.AgentID)
	if err != nil {
		return fmt.Errorf("world: load outfit items for finalize: %w", err)
	}
	paths := make([]MeshPath, 0, len(items))
	for _, item := range items {
		paths = append(paths, MeshPath{ItemID: item.ItemID, AssetID: item.AssetID, Slot: item.WearableType})
	}

	monitoring.Logf("world: finalizing avatar %s with %d outfit items", rec.AgentID, len(paths))
	if err := t.finalizer.FinalizeAvatar(ctx, rec.AgentID, paths); err != nil {
		return fmt.Errorf("world: finalize avatar %s: %w", rec.AgentID, err)
	}
	return nil
}
