package ecs

import "fmt"

// ErrComponentExists is returned by Add when the entity already holds an
// instance of the component type. Callers that intend to overwrite use
// Replace instead.
var ErrComponentExists = fmt.Errorf("ecs: component already present")

// ErrEntityDead is returned when attaching a component to a destroyed or
// stale entity id.
var ErrEntityDead = fmt.Errorf("ecs: entity not alive")

// Table is a typed component table backed by pointers. At most one instance
// of the component exists per entity. No reflection, no interface boxing.
type Table[T any] struct {
	store *Store
	kind  ComponentType
	data  map[EntityID]*T
}

// NewTable registers a typed table for the given component type with the
// store. Each component type may be registered once per store.
func NewTable[T any](store *Store, kind ComponentType) *Table[T] {
	table := &Table[T]{
		store: store,
		kind:  kind,
		data:  make(map[EntityID]*T, 256),
	}
	store.registerTable(kind, table)
	return table
}

// Add attaches the component to the entity. It fails with
// ErrComponentExists when an instance is already present and ErrEntityDead
// when the entity id is stale.
func (t *Table[T]) Add(id EntityID, component T) error {
	if !t.store.Alive(id) {
		return ErrEntityDead
	}
	if _, exists := t.data[id]; exists {
		return ErrComponentExists
	}
	t.data[id] = &component
	t.store.markComponent(id, t.kind)
	return nil
}

// Replace overwrites the component, attaching it if absent.
func (t *Table[T]) Replace(id EntityID, component T) error {
	if !t.store.Alive(id) {
		return ErrEntityDead
	}
	t.data[id] = &component
	t.store.markComponent(id, t.kind)
	return nil
}

// Get returns a copy of the component and whether it was present. Querying a
// dead entity or an absent component yields the zero value and false, never
// a panic.
func (t *Table[T]) Get(id EntityID) (T, bool) {
	if ptr, ok := t.data[id]; ok {
		return *ptr, true
	}
	var zero T
	return zero, false
}

// Ptr returns a pointer to the stored component for in-place mutation, or
// nil when absent. The pointer is invalidated by Remove.
func (t *Table[T]) Ptr(id EntityID) *T {
	return t.data[id]
}

// Remove detaches the component, reporting whether it was present.
func (t *Table[T]) Remove(id EntityID) bool {
	if _, ok := t.data[id]; !ok {
		return false
	}
	delete(t.data, id)
	t.store.clearComponent(id, t.kind)
	return true
}

// Has reports whether the entity holds the component.
func (t *Table[T]) Has(id EntityID) bool {
	_, ok := t.data[id]
	return ok
}

// Len reports the number of attached components.
func (t *Table[T]) Len() int {
	return len(t.data)
}

func (t *Table[T]) removeEntity(id EntityID) {
	delete(t.data, id)
}
