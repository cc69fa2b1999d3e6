package models

import (
	"time"

	"github.com/iudanet/scenesync/internal/protocol"
)

// Key адресует один компонент одной сущности в состоянии сцены.
type Key struct {
	EntityID    int32  `json:"entity_id"`
	ComponentID uint32 `json:"component_id"`
}

// EntityNumber returns the low 16 bits of an entity id. Numbers are reused
// by the scene runtime once an entity is deleted.
func EntityNumber(entityID int32) uint16 {
	return uint16(uint32(entityID))
}

// EntityVersion returns the high 16 bits of an entity id, bumped every time
// its number is reused.
func EntityVersion(entityID int32) uint16 {
	return uint16(uint32(entityID) >> 16)
}

// NewEntityID собирает id сущности из номера и версии
func NewEntityID(number, version uint16) int32 {
	return int32(uint32(version)<<16 | uint32(number))
}

// Version is the last-write-wins ordering pair of an entry.
type Version struct {
	Timestamp int32  `json:"timestamp"`
	NetworkID uint32 `json:"network_id"`
}

// Compare orders versions by timestamp and then by network id, the higher
// value winning in both cases. It returns -1, 0 or +1.
func (v Version) Compare(other Version) int {
	switch {
	case v.Timestamp > other.Timestamp:
		return 1
	case v.Timestamp < other.Timestamp:
		return -1
	case v.NetworkID > other.NetworkID:
		return 1
	case v.NetworkID < other.NetworkID:
		return -1
	default:
		return 0
	}
}

// ComponentEntry представляет последнее принятое состояние компонента сцены.
// Удаленные записи хранятся как tombstone (Deleted = true), чтобы устаревшие
// PUT не воскрешали компонент при другом порядке доставки.
type ComponentEntry struct {
	UpdatedAt   time.Time `json:"updated_at"`   // UpdatedAt локальное время принятия (для информации)
	Content     []byte    `json:"content"`      // Content непрозрачные байты компонента
	EntityID    int32     `json:"entity_id"`    // EntityID сущность
	ComponentID uint32    `json:"component_id"` // ComponentID тип компонента
	Timestamp   int32     `json:"timestamp"`    // Timestamp логические часы для пары (entity, component)
	NetworkID   uint32    `json:"network_id"`   // NetworkID идентификатор источника, 0 для локальных сообщений
	Deleted     bool      `json:"deleted"`      // Deleted флаг tombstone
}

// NewComponentEntry builds an entry from an accepted message.
func NewComponentEntry(m protocol.Message, deleted bool) *ComponentEntry {
	entry := &ComponentEntry{
		EntityID:    m.EntityID,
		ComponentID: m.ComponentID,
		Timestamp:   m.Timestamp,
		NetworkID:   m.NetworkID,
		Deleted:     deleted,
		UpdatedAt:   time.Now(),
	}
	if !deleted && len(m.Content) > 0 {
		entry.Content = make([]byte, len(m.Content))
		copy(entry.Content, m.Content)
	}
	return entry
}

// Key returns the entry address.
func (e *ComponentEntry) Key() Key {
	return Key{EntityID: e.EntityID, ComponentID: e.ComponentID}
}

// Version returns the LWW version of the entry.
func (e *ComponentEntry) Version() Version {
	return Version{Timestamp: e.Timestamp, NetworkID: e.NetworkID}
}

// Message re-encodes a live entry as a PUT_COMPONENT_NETWORK message.
// The returned content is a copy.
func (e *ComponentEntry) Message() protocol.Message {
	m := protocol.Message{
		Type:        protocol.PutComponentNetwork,
		EntityID:    e.EntityID,
		ComponentID: e.ComponentID,
		Timestamp:   e.Timestamp,
		NetworkID:   e.NetworkID,
	}
	if len(e.Content) > 0 {
		m.Content = make([]byte, len(e.Content))
		copy(m.Content, e.Content)
	}
	return m
}

// Clone создает глубокую копию записи
func (e *ComponentEntry) Clone() *ComponentEntry {
	clone := *e
	if e.Content != nil {
		clone.Content = make([]byte, len(e.Content))
		copy(clone.Content, e.Content)
	}
	return &clone
}
