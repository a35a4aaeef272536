package entity

import (
	"sort"
	"sync"
)

// Store is the in-memory entity collection. It is replaced wholesale after a
// full poll and patched per entity after a single-entity refresh.
type Store struct {
	mu       sync.RWMutex
	entities map[Key]Entity
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entities: make(map[Key]Entity)}
}

// ReplaceAll swaps the full collection.
func (s *Store) ReplaceAll(entities []Entity) {
	next := make(map[Key]Entity, len(entities))
	for _, e := range entities {
		next[e.Key] = e
	}

	s.mu.Lock()
	s.entities = next
	s.mu.Unlock()
}

// ReplaceOne replaces the entity with the same key. It never inserts;
// returns false if the entity is not present.
func (s *Store) ReplaceOne(e Entity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[e.Key]; !ok {
		return false
	}
	s.entities[e.Key] = e
	return true
}

// Find looks up an entity by key.
func (s *Store) Find(key Key) (Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[key]
	return e, ok
}

// All returns groups first, then lights, each ordered by ID.
func (s *Store) All() []Entity {
	s.mu.RLock()
	out := make([]Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Kind != out[j].Key.Kind {
			return out[i].Key.Kind == KindGroup
		}
		return lessID(out[i].Key.ID, out[j].Key.ID)
	})
	return out
}

// Lights returns only light entities.
func (s *Store) Lights() []Entity {
	var lights []Entity
	for _, e := range s.All() {
		if e.Key.Kind == KindLight {
			lights = append(lights, e)
		}
	}
	return lights
}

// Len returns the number of entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}
