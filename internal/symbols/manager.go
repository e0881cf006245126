// Package symbols provides generic address keyed symbol tables with a
// deterministic iteration order.
package symbols

import (
	"slices"

	"github.com/retroenv/retrogolib/set"
)

// Manager maps addresses to symbols of type T, remembering the order in
// which addresses were first added.
type Manager[T any] struct {
	items map[uint16]T
	order []uint16
	used  set.Set[uint16]
}

// New creates a new symbol manager.
func New[T any]() *Manager[T] {
	return &Manager[T]{
		items: make(map[uint16]T),
		used:  set.New[uint16](),
	}
}

// Get returns the item at the given address.
func (m *Manager[T]) Get(address uint16) (T, bool) {
	item, ok := m.items[address]
	return item, ok
}

// Set sets the item at the given address.
func (m *Manager[T]) Set(address uint16, item T) {
	if _, ok := m.items[address]; !ok {
		m.order = append(m.order, address)
	}
	m.items[address] = item
}

// Has returns whether an item exists at the given address.
func (m *Manager[T]) Has(address uint16) bool {
	_, ok := m.items[address]
	return ok
}

// Len returns the number of items in the manager.
func (m *Manager[T]) Len() int {
	return len(m.items)
}

// InsertionOrder returns all items in the order their addresses were first set.
func (m *Manager[T]) InsertionOrder() []T {
	items := make([]T, 0, len(m.order))
	for _, address := range m.order {
		items = append(items, m.items[address])
	}
	return items
}

// Addresses returns all addresses in ascending order.
func (m *Manager[T]) Addresses() []uint16 {
	addresses := slices.Clone(m.order)
	slices.Sort(addresses)
	return addresses
}

// Sorted returns all items ordered by ascending address.
func (m *Manager[T]) Sorted() []T {
	addresses := m.Addresses()
	items := make([]T, 0, len(addresses))
	for _, address := range addresses {
		items = append(items, m.items[address])
	}
	return items
}

// MarkUsed marks an address as used.
func (m *Manager[T]) MarkUsed(address uint16) {
	m.used.Add(address)
}

// IsUsed returns whether an address is marked as used.
func (m *Manager[T]) IsUsed(address uint16) bool {
	return m.used.Contains(address)
}
