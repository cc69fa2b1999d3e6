package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/scenesync/internal/models"
	"github.com/iudanet/scenesync/internal/storage"
)

const upsertEntryQuery = `
	INSERT INTO scene_entries (
		scene_id, entity_id, component_id,
		timestamp, network_id, content, deleted, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (scene_id, entity_id, component_id) DO UPDATE SET
		timestamp = excluded.timestamp,
		network_id = excluded.network_id,
		content = excluded.content,
		deleted = excluded.deleted,
		updated_at = excluded.updated_at
`

// SaveEntries stores or replaces entries of a scene in one transaction
func (s *Storage) SaveEntries(ctx context.Context, sceneID string, entries []*models.ComponentEntry) (err error) {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	if sceneID == "" {
		return storage.ErrEmptySceneID
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertEntryQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		updatedAt := entry.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now()
		}
		_, err = stmt.ExecContext(ctx,
			sceneID,
			entry.EntityID,
			int64(entry.ComponentID),
			entry.Timestamp,
			int64(entry.NetworkID),
			entry.Content,
			boolToInt(entry.Deleted),
			updatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to save entry: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// SaveDeletedEntity records the entity as deleted and drops its entries
func (s *Storage) SaveDeletedEntity(ctx context.Context, sceneID string, entityID int32) (err error) {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	if sceneID == "" {
		return storage.ErrEmptySceneID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM scene_entries WHERE scene_id = ? AND entity_id = ?`,
		sceneID, entityID,
	); err != nil {
		return fmt.Errorf("failed to delete entity entries: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO scene_deleted_entities (scene_id, entity_id, deleted_at) VALUES (?, ?, ?)`,
		sceneID, entityID, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("failed to save deleted entity: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// GetEntry retrieves one entry, tombstones included
// Returns ErrEntryNotFound if entry doesn't exist
func (s *Storage) GetEntry(ctx context.Context, sceneID string, key models.Key) (*models.ComponentEntry, error) {
	if s.closed.Load() {
		return nil, storage.ErrStorageClosed
	}

	query := `
		SELECT entity_id, component_id, timestamp, network_id,
		       content, deleted, updated_at
		FROM scene_entries
		WHERE scene_id = ? AND entity_id = ? AND component_id = ?
	`

	row := s.db.QueryRowContext(ctx, query, sceneID, key.EntityID, int64(key.ComponentID))
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	return entry, nil
}

// LoadScene returns entries ordered by (entity, component) and deleted entities
func (s *Storage) LoadScene(ctx context.Context, sceneID string) (*models.SceneState, error) {
	if s.closed.Load() {
		return nil, storage.ErrStorageClosed
	}

	state := &models.SceneState{SceneID: sceneID}

	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, component_id, timestamp, network_id,
		       content, deleted, updated_at
		FROM scene_entries
		WHERE scene_id = ?
		ORDER BY entity_id ASC, component_id ASC
	`, sceneID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		state.Entries = append(state.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	deleted, err := s.db.QueryContext(ctx, `
		SELECT entity_id FROM scene_deleted_entities
		WHERE scene_id = ?
		ORDER BY entity_id ASC
	`, sceneID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deleted entities: %w", err)
	}
	defer deleted.Close()

	for deleted.Next() {
		var entityID int32
		if err := deleted.Scan(&entityID); err != nil {
			return nil, fmt.Errorf("failed to scan deleted entity: %w", err)
		}
		state.DeletedEntities = append(state.DeletedEntities, entityID)
	}
	if err := deleted.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return state, nil
}

// ListScenes returns ids of scenes with persisted state in ascending order
func (s *Storage) ListScenes(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, storage.ErrStorageClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT scene_id FROM scene_entries
		UNION
		SELECT scene_id FROM scene_deleted_entities
		ORDER BY scene_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenes: %w", err)
	}
	defer rows.Close()

	var scenes []string
	for rows.Next() {
		var sceneID string
		if err := rows.Scan(&sceneID); err != nil {
			return nil, fmt.Errorf("failed to scan scene id: %w", err)
		}
		scenes = append(scenes, sceneID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return scenes, nil
}

// DeleteScene removes all state of a scene
func (s *Storage) DeleteScene(ctx context.Context, sceneID string) error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}

	for _, query := range []string{
		`DELETE FROM scene_entries WHERE scene_id = ?`,
		`DELETE FROM scene_deleted_entities WHERE scene_id = ?`,
	} {
		if _, err := s.db.ExecContext(ctx, query, sceneID); err != nil {
			return fmt.Errorf("failed to delete scene: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry читает одну запись из строки результата
func scanEntry(row rowScanner) (*models.ComponentEntry, error) {
	entry := &models.ComponentEntry{}
	var componentID, networkID int64
	var deleted int
	var updatedAt int64

	if err := row.Scan(
		&entry.EntityID,
		&componentID,
		&entry.Timestamp,
		&networkID,
		&entry.Content,
		&deleted,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	entry.ComponentID = uint32(componentID)
	entry.NetworkID = uint32(networkID)
	entry.Deleted = intToBool(deleted)
	entry.UpdatedAt = unixToTime(updatedAt)
	if len(entry.Content) == 0 {
		entry.Content = nil
	}

	return entry, nil
}

// Helper functions for bool/int conversion
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}

func unixToTime(timestamp int64) time.Time {
	return time.Unix(timestamp, 0)
}
