package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/scenesync/internal/storage"
)

var (
	// BoltDB bucket names
	bucketScenes  = []byte("scenes")
	bucketEntries = []byte("entries")
	bucketDeleted = []byte("deleted_entities")
)

// Storage represents BoltDB scene storage. Every scene is a nested bucket
// under "scenes" holding "entries" and "deleted_entities".
type Storage struct {
	db *bbolt.DB
}

var _ storage.SceneStorage = (*Storage)(nil)

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}

	if err := s.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает корневой bucket если он не существует
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketScenes); err != nil {
			return fmt.Errorf("failed to create scenes bucket: %w", err)
		}
		return nil
	})
}

// sceneBucket возвращает bucket сцены, создавая его при необходимости
func sceneBucket(tx *bbolt.Tx, sceneID string) (*bbolt.Bucket, error) {
	root := tx.Bucket(bucketScenes)
	if root == nil {
		return nil, fmt.Errorf("scenes bucket missing")
	}
	scene, err := root.CreateBucketIfNotExists([]byte(sceneID))
	if err != nil {
		return nil, fmt.Errorf("failed to create scene bucket: %w", err)
	}
	for _, name := range [][]byte{bucketEntries, bucketDeleted} {
		if _, err := scene.CreateBucketIfNotExists(name); err != nil {
			return nil, fmt.Errorf("failed to create %s bucket: %w", name, err)
		}
	}
	return scene, nil
}

// existingSceneBucket возвращает bucket сцены или nil
func existingSceneBucket(tx *bbolt.Tx, sceneID string) *bbolt.Bucket {
	root := tx.Bucket(bucketScenes)
	if root == nil {
		return nil
	}
	return root.Bucket([]byte(sceneID))
}
