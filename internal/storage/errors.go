package storage

import "errors"

// Common scene storage errors
var (
	// ErrEntryNotFound indicates that the component entry was not found
	ErrEntryNotFound = errors.New("scene entry not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")

	// ErrEmptySceneID indicates that a scene id is required
	ErrEmptySceneID = errors.New("scene id is empty")
)
