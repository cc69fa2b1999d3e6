// Package nosync holds the set of component ids that are local-only and must
// never cross the peer-to-peer boundary.
package nosync

import "sync"

// NoSyncComponentID is the well-known component that marks local networking
// artifacts. Frames carrying it are stripped from every multiplayer batch.
const NoSyncComponentID uint32 = 2092194694

// Registry answers whether a component id is forbidden over the wire.
type Registry interface {
	IsNoSync(componentID uint32) bool
}

// Set is an open, concurrency-safe set of no-sync component ids.
type Set struct {
	ids map[uint32]struct{}
	mu  sync.RWMutex
}

// NewSet creates a set containing ids.
func NewSet(ids ...uint32) *Set {
	s := &Set{ids: make(map[uint32]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Default returns a new set holding only NoSyncComponentID.
func Default() *Set {
	return NewSet(NoSyncComponentID)
}

// IsNoSync implements Registry.
func (s *Set) IsNoSync(componentID uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.ids[componentID]
	return ok
}

// Contains reports whether componentID is in the set. Same as IsNoSync.
func (s *Set) Contains(componentID uint32) bool {
	return s.IsNoSync(componentID)
}

// Add registers additional no-sync ids.
func (s *Set) Add(ids ...uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

// Len returns the number of registered ids.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.ids)
}

// Func adapts a predicate to Registry.
type Func func(componentID uint32) bool

// IsNoSync implements Registry.
func (f Func) IsNoSync(componentID uint32) bool {
	return f(componentID)
}
