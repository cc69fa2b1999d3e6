package models

// SceneState is the persisted form of one scene's LWW store.
type SceneState struct {
	SceneID         string            `json:"scene_id"`
	Entries         []*ComponentEntry `json:"entries"`          // Entries включая tombstone
	DeletedEntities []int32           `json:"deleted_entities"` // DeletedEntities удаленные сущности
}

// Empty reports whether the state holds nothing.
func (s *SceneState) Empty() bool {
	return len(s.Entries) == 0 && len(s.DeletedEntities) == 0
}
