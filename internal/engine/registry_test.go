package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_OrderAndRemoval(t *testing.T) {
	r := newRegistry()
	r.add(&subscription{id: "1", eventName: "b"})
	r.add(&subscription{id: "2", eventName: "a"})
	r.add(&subscription{id: "3", eventName: "b"})

	assert.Equal(t, []string{"b", "a"}, r.names())
	assert.Equal(t, 2, r.count("b"))

	assert.True(t, r.remove("b", "1"))
	assert.False(t, r.remove("b", "1"))
	assert.Equal(t, []string{"b", "a"}, r.names())

	assert.True(t, r.remove("b", "3"))
	assert.Equal(t, []string{"a"}, r.names())
	assert.Equal(t, 0, r.count("b"))

	// Re-registering appends the name at the end again.
	r.add(&subscription{id: "4", eventName: "b"})
	assert.Equal(t, []string{"a", "b"}, r.names())
}

func TestRegistry_SnapshotIsStable(t *testing.T) {
	r := newRegistry()
	r.add(&subscription{id: "1", eventName: "x"})
	r.add(&subscription{id: "2", eventName: "x"})

	snap := r.snapshot("x")
	r.remove("x", "1")
	r.add(&subscription{id: "3", eventName: "x"})

	ids := []string{}
	for _, s := range snap {
		ids = append(ids, s.id)
	}
	assert.Equal(t, []string{"1", "2"}, ids)

	snap[0] = nil
	assert.Len(t, r.snapshot("x"), 2)
	assert.NotNil(t, r.snapshot("x")[0])
}

func TestRegistry_NamesIsCopy(t *testing.T) {
	r := newRegistry()
	r.add(&subscription{id: "1", eventName: "x"})

	names := r.names()
	names[0] = "mutated"
	assert.Equal(t, []string{"x"}, r.names())
}

func TestSequentialGenerator(t *testing.T) {
	g := NewSequentialGenerator("")
	assert.Equal(t, "sub-1", g.Generate())
	assert.Equal(t, "sub-2", g.Generate())

	h := NewSequentialGenerator("h")
	assert.Equal(t, "h-1", h.Generate())
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestDrainBudget(t *testing.T) {
	unlimited := newDrainBudget(0)
	for i := 0; i < 100; i++ {
		unlimited.Take()
	}
	assert.False(t, unlimited.Exhausted())
	assert.Equal(t, 100, unlimited.Current())

	b := newDrainBudget(2)
	b.Take()
	assert.False(t, b.Exhausted())
	b.Take()
	assert.True(t, b.Exhausted())
	assert.Equal(t, 2, b.Limit())
}
