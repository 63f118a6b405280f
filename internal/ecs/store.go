package ecs

// ComponentType identifies one component table within a store. Callers define
// their own contiguous constants starting at zero.
type ComponentType uint32

const maxComponentTypes = 64

type componentMask uint64

func (m componentMask) has(kind ComponentType) bool {
	return m&(1<<kind) != 0
}

type removable interface {
	removeEntity(id EntityID)
}

// Store owns the entity pool, the per-entity component masks, and the stable
// creation-order index that makes queries deterministic. Component data lives
// in typed Tables registered against the store.
//
// The store is not safe for concurrent use; each simulation instance owns one
// and mutates it only from its tick goroutine.
type Store struct {
	pool         *entityPool
	order        []EntityID
	masks        map[EntityID]componentMask
	tables       [maxComponentTypes]removable
	destroyHooks []func(EntityID)
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		pool:  newEntityPool(),
		order: make([]EntityID, 0, 256),
		masks: make(map[EntityID]componentMask, 256),
	}
}

// OnDestroy registers a hook invoked for every entity destroyed through the
// store, before its components are removed. The scheduler uses this to drop
// actions owned by the entity.
func (s *Store) OnDestroy(hook func(EntityID)) {
	if hook == nil {
		return
	}
	s.destroyHooks = append(s.destroyHooks, hook)
}

// CreateEntity allocates a fresh entity with no components.
func (s *Store) CreateEntity() EntityID {
	id := s.pool.create()
	s.order = append(s.order, id)
	s.masks[id] = 0
	return id
}

// Alive reports whether the id refers to a live entity.
func (s *Store) Alive(id EntityID) bool {
	return s.pool.alive(id)
}

// DestroyEntity removes the entity, cascading removal of every component and
// firing the registered destroy hooks. Destroying a dead or stale id is a
// no-op returning false.
func (s *Store) DestroyEntity(id EntityID) bool {
	if !s.pool.alive(id) {
		return false
	}
	for _, hook := range s.destroyHooks {
		hook(id)
	}
	for _, table := range s.tables {
		if table != nil {
			table.removeEntity(id)
		}
	}
	delete(s.masks, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.pool.destroy(id)
	return true
}

// EntityCount reports the number of live entities.
func (s *Store) EntityCount() int {
	return len(s.order)
}

// EntitiesWith returns every live entity holding all the listed component
// types, in creation order. The ordering is stable across identical stores,
// which keeps iteration deterministic between simulation instances.
func (s *Store) EntitiesWith(kinds ...ComponentType) []EntityID {
	result := make([]EntityID, 0, len(s.order))
	for _, id := range s.order {
		mask := s.masks[id]
		match := true
		for _, kind := range kinds {
			if !mask.has(kind) {
				match = false
				break
			}
		}
		if match {
			result = append(result, id)
		}
	}
	return result
}

// Has reports whether the entity currently holds the component type.
func (s *Store) Has(id EntityID, kind ComponentType) bool {
	mask, ok := s.masks[id]
	return ok && mask.has(kind)
}

func (s *Store) registerTable(kind ComponentType, table removable) {
	if kind >= maxComponentTypes {
		panic("ecs: component type exceeds mask width")
	}
	if s.tables[kind] != nil {
		panic("ecs: component type registered twice")
	}
	s.tables[kind] = table
}

func (s *Store) markComponent(id EntityID, kind ComponentType) {
	if mask, ok := s.masks[id]; ok {
		s.masks[id] = mask | (1 << kind)
	}
}

func (s *Store) clearComponent(id EntityID, kind ComponentType) {
	if mask, ok := s.masks[id]; ok {
		s.masks[id] = mask &^ (1 << kind)
	}
}
