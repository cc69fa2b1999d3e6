package crdt

import (
	"bytes"
	"cmp"
	"slices"
	"sync"

	"github.com/iudanet/scenesync/internal/models"
	"github.com/iudanet/scenesync/internal/protocol"
)

// MaxAppendValues caps the APPEND_COMPONENT history of one (entity, component)
// pair. When the cap is reached the history is cleared and starts over.
const MaxAppendValues = 100

// Outcome is the result of applying a message to a Store.
type Outcome int

const (
	// Stale - сообщение проиграло LWW сравнение и отброшено. Это не ошибка.
	Stale Outcome = iota
	// Accepted - сообщение сохранено (для APPEND - добавлено в историю).
	Accepted
	// Deleted - сообщение удалило компонент или сущность.
	Deleted
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Deleted:
		return "deleted"
	default:
		return "stale"
	}
}

// Option configures a Store.
type Option func(*Store)

// WithComparator overrides the tie-break used for equal timestamps.
func WithComparator(c Comparator) Option {
	return func(s *Store) {
		if c != nil {
			s.cmp = c
		}
	}
}

type appendValue struct {
	content   []byte
	timestamp int32
}

func compareAppend(a, b appendValue) int {
	if c := cmp.Compare(a.timestamp, b.timestamp); c != 0 {
		return c
	}
	return bytes.Compare(a.content, b.content)
}

// Store is the last-write-wins state of one scene, keyed by
// (entity, component). It is owned by a single scene; all mutation goes
// through Apply, Restore and Merge.
type Store struct {
	entries map[models.Key]*models.ComponentEntry
	appends map[models.Key][]appendValue
	// deletedEntities номер сущности -> максимальная удаленная версия
	deletedEntities map[uint16]uint16
	cmp             Comparator
	mu              sync.RWMutex
}

// NewStore создает пустое состояние сцены.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries:         make(map[models.Key]*models.ComponentEntry),
		appends:         make(map[models.Key][]appendValue),
		deletedEntities: make(map[uint16]uint16),
		cmp:             DefaultComparator,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply merges m into the store.
//
//   - PUT: stored if it wins over the current version (or there is none).
//   - DELETE_COMPONENT: tombstones the entry if it wins.
//   - DELETE_ENTITY: drops every component of the entity number up to the
//     deleted version; later messages for those versions are stale.
//   - APPEND_COMPONENT: kept in a bounded history, exact duplicates are stale.
//
// Equal versions are ordered by content, a tombstone ordering below any live
// value, so every replica picks the same winner. Messages of unknown type are
// stale.
func (s *Store) Apply(m protocol.Message) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isDeleted(m.EntityID) {
		return Stale
	}

	switch {
	case m.Type.IsPut():
		return s.applyComponent(m, false)
	case m.Type.IsDeleteComponent():
		return s.applyComponent(m, true)
	case m.Type.IsDeleteEntity():
		s.deleteEntity(m.EntityID)
		return Deleted
	case m.Type == protocol.AppendComponent:
		return s.applyAppend(m)
	default:
		return Stale
	}
}

// isDeleted must be called with s.mu held.
func (s *Store) isDeleted(entityID int32) bool {
	version, ok := s.deletedEntities[models.EntityNumber(entityID)]
	return ok && version >= models.EntityVersion(entityID)
}

// IsEntityDeleted reports whether messages for entityID are rejected because
// its number was deleted at this or a later version.
func (s *Store) IsEntityDeleted(entityID int32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.isDeleted(entityID)
}

// wins compares a candidate against the stored entry.
func (s *Store) wins(v models.Version, content []byte, deleted bool, existing *models.ComponentEntry) int {
	if c := s.cmp(v, existing.Version()); c != 0 {
		return c
	}
	if deleted {
		content = nil
	}
	existingContent := existing.Content
	if existing.Deleted {
		existingContent = nil
	}
	if c := bytes.Compare(content, existingContent); c != 0 {
		return c
	}
	switch {
	case deleted == existing.Deleted:
		return 0
	case deleted:
		return -1
	default:
		return 1
	}
}

func (s *Store) applyComponent(m protocol.Message, deleted bool) Outcome {
	key := models.Key{EntityID: m.EntityID, ComponentID: m.ComponentID}
	incoming := models.Version{Timestamp: m.Timestamp, NetworkID: m.NetworkID}

	// Существующая версия новее или та же самая - не обновляем
	if existing, ok := s.entries[key]; ok && s.wins(incoming, m.Content, deleted, existing) <= 0 {
		return Stale
	}

	s.entries[key] = models.NewComponentEntry(m, deleted)
	if deleted {
		return Deleted
	}
	return Accepted
}

func (s *Store) applyAppend(m protocol.Message) Outcome {
	key := models.Key{EntityID: m.EntityID, ComponentID: m.ComponentID}
	value := appendValue{timestamp: m.Timestamp, content: m.Content}

	values := s.appends[key]
	i, found := slices.BinarySearchFunc(values, value, compareAppend)
	if found {
		return Stale
	}
	if len(values) >= MaxAppendValues {
		values, i = nil, 0
	}

	value.content = bytes.Clone(m.Content)
	s.appends[key] = slices.Insert(values, i, value)
	return Accepted
}

func (s *Store) deleteEntity(entityID int32) {
	number, version := models.EntityNumber(entityID), models.EntityVersion(entityID)
	if deleted, ok := s.deletedEntities[number]; ok && deleted >= version {
		return
	}
	s.deletedEntities[number] = version

	removed := func(id int32) bool {
		return models.EntityNumber(id) == number && models.EntityVersion(id) <= version
	}
	for key := range s.entries {
		if removed(key.EntityID) {
			delete(s.entries, key)
		}
	}
	for key := range s.appends {
		if removed(key.EntityID) {
			delete(s.appends, key)
		}
	}
}

// Restore inserts a persisted entry, tombstones included, if it wins over
// what the store already holds. It returns true if the entry was taken.
func (s *Store) Restore(entry *models.ComponentEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.restore(entry)
}

func (s *Store) restore(entry *models.ComponentEntry) bool {
	if s.isDeleted(entry.EntityID) {
		return false
	}
	if existing, ok := s.entries[entry.Key()]; ok && s.wins(entry.Version(), entry.Content, entry.Deleted, existing) <= 0 {
		return false
	}
	s.entries[entry.Key()] = entry.Clone()
	return true
}

// RestoreDeletedEntity marks an entity version as deleted.
func (s *Store) RestoreDeletedEntity(entityID int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteEntity(entityID)
}

// Merge объединяет текущее состояние с другим по правилу LWW.
// Операция коммутативна и идемпотентна.
func (s *Store) Merge(other *Store) {
	if s == other {
		return
	}

	entries := other.AllEntries()
	deleted := other.DeletedEntities()
	appends := other.Appends()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range deleted {
		s.deleteEntity(id)
	}
	for _, entry := range entries {
		s.restore(entry)
	}
	for _, m := range appends {
		if !s.isDeleted(m.EntityID) {
			s.applyAppend(m)
		}
	}
}

// Get returns a copy of the live entry for (entityID, componentID).
func (s *Store) Get(entityID int32, componentID uint32) (*models.ComponentEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[models.Key{EntityID: entityID, ComponentID: componentID}]
	if !ok || entry.Deleted {
		return nil, false
	}
	return entry.Clone(), true
}

// Entries returns copies of all live entries ordered by (entity, component).
func (s *Store) Entries() []*models.ComponentEntry {
	return s.collect(false)
}

// AllEntries returns copies of every entry, tombstones included, ordered by
// (entity, component). Used for persistence.
func (s *Store) AllEntries() []*models.ComponentEntry {
	return s.collect(true)
}

func compareKeys(a, b models.Key) int {
	if c := cmp.Compare(a.EntityID, b.EntityID); c != 0 {
		return c
	}
	return cmp.Compare(a.ComponentID, b.ComponentID)
}

func (s *Store) collect(withDeleted bool) []*models.ComponentEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.ComponentEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		if entry.Deleted && !withDeleted {
			continue
		}
		result = append(result, entry.Clone())
	}

	slices.SortFunc(result, func(a, b *models.ComponentEntry) int {
		return compareKeys(a.Key(), b.Key())
	})
	return result
}

// Appends returns the stored APPEND_COMPONENT messages ordered by
// (entity, component, timestamp, content).
func (s *Store) Appends() []protocol.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]models.Key, 0, len(s.appends))
	for key := range s.appends {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, compareKeys)

	var messages []protocol.Message
	for _, key := range keys {
		for _, v := range s.appends[key] {
			messages = append(messages, protocol.Message{
				Type:        protocol.AppendComponent,
				EntityID:    key.EntityID,
				ComponentID: key.ComponentID,
				Timestamp:   v.timestamp,
				Content:     bytes.Clone(v.content),
			})
		}
	}
	return messages
}

// DeletedEntities returns the deleted entity ids, one per entity number at its
// highest deleted version, in ascending order.
func (s *Store) DeletedEntities() []int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int32, 0, len(s.deletedEntities))
	for number, version := range s.deletedEntities {
		ids = append(ids, models.NewEntityID(number, version))
	}
	slices.Sort(ids)
	return ids
}

// Snapshot re-encodes the state as messages that rebuild it on a fresh store:
// a DELETE_ENTITY_NETWORK per deleted entity, a PUT_COMPONENT_NETWORK per live
// entry and the APPEND_COMPONENT history. Used to answer a full-state request
// from a newly joined peer.
func (s *Store) Snapshot() []protocol.Message {
	deleted := s.DeletedEntities()
	entries := s.Entries()
	appends := s.Appends()

	messages := make([]protocol.Message, 0, len(deleted)+len(entries)+len(appends))
	for _, id := range deleted {
		messages = append(messages, protocol.Message{Type: protocol.DeleteEntityNetwork, EntityID: id})
	}
	for _, entry := range entries {
		messages = append(messages, entry.Message())
	}
	return append(messages, appends...)
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, entry := range s.entries {
		if !entry.Deleted {
			count++
		}
	}
	return count
}

// TotalLen returns the number of entries including tombstones.
func (s *Store) TotalLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// MessagesCount returns the number of messages Snapshot would produce.
func (s *Store) MessagesCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := len(s.deletedEntities)
	for _, entry := range s.entries {
		if !entry.Deleted {
			count++
		}
	}
	for _, values := range s.appends {
		count += len(values)
	}
	return count
}

// Clear удаляет все записи, историю APPEND и удаленные сущности.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[models.Key]*models.ComponentEntry)
	s.appends = make(map[models.Key][]appendValue)
	s.deletedEntities = make(map[uint16]uint16)
}
