package inventory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndListOutfitItems(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	agentID := uuid.New()

	item1 := OutfitItem{ItemID: uuid.New(), AssetID: uuid.New(), WearableType: 4}
	item2 := OutfitItem{ItemID: uuid.New(), AssetID: uuid.New(), WearableType: 9}

	require.NoError(t, s.InsertOutfitItem(ctx, agentID, item1))
	require.NoError(t, s.InsertOutfitItem(ctx, agentID, item2))

	items, err := s.CurrentOutfitItems(ctx, agentID)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestInsertOutfitItemIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	agentID := uuid.New()
	item := OutfitItem{ItemID: uuid.New(), AssetID: uuid.New(), WearableType: 1}

	require.NoError(t, s.InsertOutfitItem(ctx, agentID, item))
	require.NoError(t, s.InsertOutfitItem(ctx, agentID, item))

	items, err := s.CurrentOutfitItems(ctx, agentID)
	require.NoError(t, err)
	require.Len(t, items, 1, "duplicate inventory-descendants replies must not double-insert")
}

func TestCurrentOutfitItemsEmptyForUnknownAgent(t *testing.T) {
	s := openTestStore(t)
	items, err := s.CurrentOutfitItems(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Empty(t, items)
}
