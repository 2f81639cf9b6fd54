package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSparseSetAddHasRemove(t *testing.T) {
	s := newSparseSet(8)
	assert.True(t, s.Add(3))
	assert.False(t, s.Add(3), "re-adding must be a no-op returning false")
	assert.True(t, s.Has(3))
	assert.False(t, s.Has(4))

	assert.True(t, s.Remove(3))
	assert.False(t, s.Has(3))
	assert.False(t, s.Remove(3), "removing absent id is a no-op")
}

func TestSparseSetSwapPop(t *testing.T) {
	s := newSparseSet(8)
	s.Add(1)
	s.Add(2)
	s.Add(3)
	s.Remove(1)
	assert.ElementsMatch(t, []Entity{2, 3}, s.Dense())
	assert.True(t, s.Has(2))
	assert.True(t, s.Has(3))
}

func TestSparseSetSort(t *testing.T) {
	s := newSparseSet(8)
	s.Add(3)
	s.Add(1)
	s.Add(2)
	s.Sort(func(a, b Entity) bool { return a < b })
	assert.Equal(t, []Entity{1, 2, 3}, s.Dense())
	for i, e := range s.Dense() {
		assert.Equal(t, int32(i), s.sparse[e])
	}
}

func TestSparseSetResetWithAltDense(t *testing.T) {
	s := newSparseSet(8)
	s.Add(1)
	s.Add(2)
	s.Reset([]Entity{5, 6})
	assert.ElementsMatch(t, []Entity{5, 6}, s.Dense())
	assert.False(t, s.Has(1))
	assert.True(t, s.Has(5))
}

func TestSparseSetGrowsCapacity(t *testing.T) {
	s := newSparseSet(2)
	assert.True(t, s.Add(100))
	assert.True(t, s.Has(100))
}

func TestSparseSetWireRoundTrip(t *testing.T) {
	s := newSparseSet(8)
	s.Add(1)
	s.Add(2)
	dense := s.wireDense()
	sparse := s.wireSparse()

	restored := newSparseSet(8)
	restored.restoreFromWire(dense, sparse)
	assert.ElementsMatch(t, s.Dense(), restored.Dense())
	assert.True(t, restored.Has(1))
	assert.True(t, restored.Has(2))
}
