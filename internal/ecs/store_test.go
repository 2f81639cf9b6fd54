package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexTypeForBoundaries(t *testing.T) {
	assert.Equal(t, ElemU8, indexTypeFor(255))
	assert.Equal(t, ElemU16, indexTypeFor(256))
	assert.Equal(t, ElemU16, indexTypeFor(65535))
	assert.Equal(t, ElemU32, indexTypeFor(65536))
}

func TestScalarColumnFloat32RoundTrip(t *testing.T) {
	schema := &Schema{
		Type: "Velocity",
		Properties: []PropertyDescriptor{
			{Name: "dx", Kind: KindScalar, Elem: ElemF32},
		},
	}
	st := CreateStore(schema, 4)
	col := st.Columns()[0].(*ScalarColumn)
	col.SetFloat64(1, 0.1)
	got := col.GetFloat64(1)
	assert.InDelta(t, float64(float32(0.1)), got, 1e-9)
}

func TestSubarrayColumnSharedBuffer(t *testing.T) {
	schema := &Schema{
		Type: "Transform",
		Properties: []PropertyDescriptor{
			{Name: "position", Kind: KindSubarray, Elem: ElemF32, Length: 3},
			{Name: "rotation", Kind: KindSubarray, Elem: ElemF32, Length: 4},
		},
	}
	st := CreateStore(schema, 4)
	require.Len(t, st.Columns(), 2)
	pos := st.Columns()[0].(*SubarrayColumn)
	rot := st.Columns()[1].(*SubarrayColumn)

	pos.SetElement(1, 0, 1.5)
	pos.SetElement(1, 1, 2.5)
	rot.SetElement(1, 0, 9.0)

	assert.InDelta(t, 1.5, pos.GetElement(1, 0), 1e-6)
	assert.InDelta(t, 2.5, pos.GetElement(1, 1), 1e-6)
	assert.InDelta(t, 9.0, rot.GetElement(1, 0), 1e-6)
	// siblings share one buffer per element type but must not alias slots.
	assert.NotEqual(t, pos.byteOffset, rot.byteOffset)
}

func TestStoreResetStoreFor(t *testing.T) {
	schema := &Schema{
		Type: "Health",
		Properties: []PropertyDescriptor{
			{Name: "hp", Kind: KindScalar, Elem: ElemF64},
		},
	}
	st := CreateStore(schema, 4)
	col := st.Columns()[0].(*ScalarColumn)
	col.SetFloat64(2, 42)
	st.ResetStoreFor(2)
	assert.Equal(t, float64(0), col.GetFloat64(2))
}

func TestStoreResizePreservesData(t *testing.T) {
	schema := &Schema{
		Type: "Position",
		Properties: []PropertyDescriptor{
			{Name: "x", Kind: KindScalar, Elem: ElemF32},
		},
	}
	st := CreateStore(schema, 4)
	col := st.Columns()[0].(*ScalarColumn)
	col.SetFloat64(3, 7)
	st.ResizeStore(8)
	assert.Equal(t, float64(7), col.GetFloat64(3))
}

func TestFauxColumnRoundTrip(t *testing.T) {
	schema := &Schema{
		Type: "Name",
		Properties: []PropertyDescriptor{
			{Name: "label", Kind: KindFaux},
		},
	}
	st := CreateStore(schema, 4)
	col := st.Columns()[0].(*FauxColumn)
	col.Set(1, "hero")
	v, ok := col.Get(1)
	require.True(t, ok)
	assert.Equal(t, "hero", v)
	st.ResetStoreFor(1)
	_, ok = col.Get(1)
	assert.False(t, ok)
}

func TestTagStoreHasNoColumns(t *testing.T) {
	schema := &Schema{Type: "Dead", IsTag: true}
	st := CreateStore(schema, 4)
	assert.True(t, st.IsTagStore())
	assert.Empty(t, st.Columns())
}
