// Package inventory implements the query/insert contract the core consumes
// from the out-of-scope inventory persistence layer: the
// core only ever asks for a given agent's current-outfit folder contents and
// records items as they stream in. The full inventory schema (folders,
// permissions, sale info, ...) is out of scope and is not modeled here.
package inventory

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// WearableType mirrors the closed set of attachment/wearable categories an
// outfit item can carry; the numeric values follow the wire convention used
// by inventory-descendants messages.
type WearableType uint8

// OutfitItem is one descendant of an agent's current-outfit folder.
type OutfitItem struct {
	ItemID       uuid.UUID
	AssetID      uuid.UUID
	WearableType WearableType
}

// Store is the thin SQLite-backed handle World State (C5) treats as an
// opaque, thread-safe collaborator.
type Store struct {
	db *sql.DB
}

// applyPragmas sets concurrency-safe defaults for an embedded SQLite
// database shared between the session actor's dispatch loop and off-actor
// finalize tasks.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	return nil
}

// Open creates or opens the inventory store at path and migrates it to the
// latest schema version. Use ":memory:" for a throwaway store in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrateUp() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	dbDriver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// CurrentOutfitItems returns every item recorded for the agent's
// current-outfit folder. World State (C5) compares len(items) against the
// outfit_size reported by the inventory-descendants exchange to decide when
// to run the finalize-avatar task.
func (s *Store) CurrentOutfitItems(ctx context.Context, agentID uuid.UUID) ([]OutfitItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, asset_id, wearable_type FROM outfit_items WHERE agent_id = ?`,
		agentID.String())
	if err != nil {
		return nil, fmt.Errorf("query outfit items: %w", err)
	}
	defer rows.Close()

	var items []OutfitItem
	for rows.Next() {
		var itemID, assetID string
		var wearable int
		if err := rows.Scan(&itemID, &assetID, &wearable); err != nil {
			return nil, fmt.Errorf("scan outfit item: %w", err)
		}
		parsedItem, err := uuid.Parse(itemID)
		if err != nil {
			return nil, fmt.Errorf("malformed item_id %q: %w", itemID, err)
		}
		parsedAsset, err := uuid.Parse(assetID)
		if err != nil {
			return nil, fmt.Errorf("malformed asset_id %q: %w", assetID, err)
		}
		items = append(items, OutfitItem{
			ItemID:       parsedItem,
			AssetID:      parsedAsset,
			WearableType: WearableType(wearable),
		})
	}
	return items, rows.Err()
}

// InsertOutfitItem records one current-outfit-folder descendant as it
// streams in. Re-inserting the same (agentID, item.ItemID) pair keeps a
// single row and overwrites its asset id and wearable type, since duplicate
// inventory-descendants replies are expected under at-least-once UDP
// delivery.
func (s *Store) InsertOutfitItem(ctx context.Context, agentID uuid.UUID, item OutfitItem) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outfit_items (agent_id, item_id, asset_id, wearable_type) VALUES (?, ?, ?, ?)
		 ON CONFLICT(agent_id, item_id) DO UPDATE SET asset_id = excluded.asset_id, wearable_type = excluded.wearable_type`,
		agentID.String(), item.ItemID.String(), item.AssetID.String(), int(item.WearableType))
	if err != nil {
		return fmt.Errorf("insert outfit item: %w", err)
	}
	return nil
}
