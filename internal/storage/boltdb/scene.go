package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/scenesync/internal/models"
	"github.com/iudanet/scenesync/internal/storage"
)

// entryKey кодирует ключ так, чтобы порядок байт совпадал с порядком (entity, component)
func entryKey(k models.Key) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], uint32(k.EntityID)^(1<<31))
	binary.BigEndian.PutUint32(buf[4:8], k.ComponentID)
	return buf
}

func entityKey(entityID int32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(entityID)^(1<<31))
	return buf
}

func decodeEntityKey(k []byte) int32 {
	return int32(binary.BigEndian.Uint32(k) ^ (1 << 31))
}

// SaveEntries stores or replaces entries of a scene in one transaction
func (s *Storage) SaveEntries(ctx context.Context, sceneID string, entries []*models.ComponentEntry) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if sceneID == "" {
		return storage.ErrEmptySceneID
	}
	if len(entries) == 0 {
		return nil
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		scene, err := sceneBucket(tx, sceneID)
		if err != nil {
			return err
		}
		bucket := scene.Bucket(bucketEntries)

		for _, entry := range entries {
			// Сериализуем entry в JSON
			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("failed to marshal scene entry: %w", err)
			}
			if err := bucket.Put(entryKey(entry.Key()), data); err != nil {
				return fmt.Errorf("failed to save entry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// SaveDeletedEntity records the entity as deleted and drops its entries
func (s *Storage) SaveDeletedEntity(ctx context.Context, sceneID string, entityID int32) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if sceneID == "" {
		return storage.ErrEmptySceneID
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		scene, err := sceneBucket(tx, sceneID)
		if err != nil {
			return err
		}

		// Удаляем все компоненты сущности: ключи сущности идут подряд
		prefix := entityKey(entityID)
		c := scene.Bucket(bucketEntries).Cursor()
		for k, _ := c.Seek(prefix); k != nil && string(k[:4]) == string(prefix); k, _ = c.Seek(prefix) {
			if err := c.Delete(); err != nil {
				return fmt.Errorf("failed to delete entry: %w", err)
			}
		}

		if err := scene.Bucket(bucketDeleted).Put(prefix, []byte{1}); err != nil {
			return fmt.Errorf("failed to save deleted entity: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete entity transaction failed: %w", err)
	}

	return nil
}

// GetEntry retrieves one entry, tombstones included
func (s *Storage) GetEntry(ctx context.Context, sceneID string, key models.Key) (*models.ComponentEntry, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var entry *models.ComponentEntry

	err := s.db.View(func(tx *bbolt.Tx) error {
		scene := existingSceneBucket(tx, sceneID)
		if scene == nil {
			return storage.ErrEntryNotFound
		}

		data := scene.Bucket(bucketEntries).Get(entryKey(key))
		if data == nil {
			return storage.ErrEntryNotFound
		}

		// Десериализуем
		entry = &models.ComponentEntry{}
		if err := json.Unmarshal(data, entry); err != nil {
			return fmt.Errorf("failed to unmarshal entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// LoadScene returns entries ordered by (entity, component) and deleted entities
func (s *Storage) LoadScene(ctx context.Context, sceneID string) (*models.SceneState, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	state := &models.SceneState{SceneID: sceneID}

	err := s.db.View(func(tx *bbolt.Tx) error {
		scene := existingSceneBucket(tx, sceneID)
		if scene == nil {
			// Нет bucket - возвращаем пустое состояние
			return nil
		}

		if err := scene.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			var entry models.ComponentEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal entry: %w", err)
			}
			state.Entries = append(state.Entries, &entry)
			return nil
		}); err != nil {
			return err
		}

		return scene.Bucket(bucketDeleted).ForEach(func(k, v []byte) error {
			if len(k) != 4 {
				return fmt.Errorf("invalid deleted entity key length %d", len(k))
			}
			state.DeletedEntities = append(state.DeletedEntities, decodeEntityKey(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load scene: %w", err)
	}

	return state, nil
}

// ListScenes returns scene ids in key order
func (s *Storage) ListScenes(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var scenes []string

	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketScenes)
		if root == nil {
			return nil
		}
		return root.ForEach(func(k, v []byte) error {
			// Вложенные bucket имеют nil value
			if v == nil {
				scenes = append(scenes, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}

	return scenes, nil
}

// DeleteScene removes the scene bucket
func (s *Storage) DeleteScene(ctx context.Context, sceneID string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketScenes)
		if root == nil {
			return nil
		}
		if err := root.DeleteBucket([]byte(sceneID)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("failed to delete bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete scene transaction failed: %w", err)
	}

	return nil
}
