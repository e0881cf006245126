package symbols

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

type testItem struct {
	name  string
	value uint16
}

//nolint:funlen // test functions can be long
func TestManager(t *testing.T) {
	t.Run("new manager is initialized", func(t *testing.T) {
		mgr := New[testItem]()

		assert.NotNil(t, mgr)
		assert.Equal(t, 0, mgr.Len())
	})

	t.Run("set and get item", func(t *testing.T) {
		mgr := New[testItem]()
		mgr.Set(0x8000, testItem{name: "TEST", value: 0x1234})

		got, ok := mgr.Get(0x8000)
		assert.True(t, ok)
		assert.Equal(t, "TEST", got.name)
		assert.Equal(t, uint16(0x1234), got.value)
	})

	t.Run("get non-existent returns false", func(t *testing.T) {
		mgr := New[testItem]()

		_, ok := mgr.Get(0x8000)
		assert.False(t, ok)
		assert.False(t, mgr.Has(0x8000))
	})

	t.Run("overwriting keeps insertion position", func(t *testing.T) {
		mgr := New[testItem]()
		mgr.Set(0x8002, testItem{name: "C"})
		mgr.Set(0x8000, testItem{name: "A"})
		mgr.Set(0x8002, testItem{name: "C2"})

		items := mgr.InsertionOrder()
		assert.Equal(t, 2, len(items))
		assert.Equal(t, "C2", items[0].name)
		assert.Equal(t, "A", items[1].name)
	})

	t.Run("sorted by address", func(t *testing.T) {
		mgr := New[testItem]()
		mgr.Set(0x8002, testItem{name: "C"})
		mgr.Set(0x8000, testItem{name: "A"})
		mgr.Set(0x8001, testItem{name: "B"})

		sorted := mgr.Sorted()
		assert.Equal(t, 3, len(sorted))
		assert.Equal(t, "A", sorted[0].name)
		assert.Equal(t, "B", sorted[1].name)
		assert.Equal(t, "C", sorted[2].name)
		addresses := mgr.Addresses()
		assert.Equal(t, 3, len(addresses))
		assert.Equal(t, uint16(0x8000), addresses[0])
		assert.Equal(t, uint16(0x8002), addresses[2])
	})

	t.Run("used set independent of items", func(t *testing.T) {
		mgr := New[testItem]()

		mgr.MarkUsed(0x8000)
		assert.True(t, mgr.IsUsed(0x8000))
		assert.False(t, mgr.Has(0x8000))

		mgr.Set(0x8001, testItem{})
		assert.True(t, mgr.Has(0x8001))
		assert.False(t, mgr.IsUsed(0x8001))
	})
}

func TestGenericTypes(t *testing.T) {
	type ptrItem struct {
		value int
	}

	mgr := New[*ptrItem]()
	mgr.Set(0x8000, &ptrItem{value: 42})

	got, ok := mgr.Get(0x8000)
	assert.True(t, ok)
	assert.Equal(t, 42, got.value)
}
