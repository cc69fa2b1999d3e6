// Package storage defines persistence of scene LWW state. Implementations
// store entries as given: ordering decisions belong to crdt.Store.
package storage

import (
	"context"

	"github.com/iudanet/scenesync/internal/models"
)

//go:generate moq -out scenestorage_mock.go . SceneStorage

// SceneStorage persists the entries and deleted entities of scenes.
type SceneStorage interface {
	// SaveEntries stores or replaces entries (tombstones included) of a scene
	SaveEntries(ctx context.Context, sceneID string, entries []*models.ComponentEntry) error

	// SaveDeletedEntity records an entity deletion and removes its entries
	SaveDeletedEntity(ctx context.Context, sceneID string, entityID int32) error

	// GetEntry retrieves one entry, tombstones included
	// Returns ErrEntryNotFound if entry doesn't exist
	GetEntry(ctx context.Context, sceneID string, key models.Key) (*models.ComponentEntry, error)

	// LoadScene returns the whole persisted state of a scene
	// An unknown scene yields an empty state
	LoadScene(ctx context.Context, sceneID string) (*models.SceneState, error)

	// ListScenes returns ids of scenes that have persisted state
	ListScenes(ctx context.Context) ([]string, error)

	// DeleteScene removes all state of a scene
	DeleteScene(ctx context.Context, sceneID string) error
}
