package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgrove/ecsruntime/internal/codec"
	"github.com/ashgrove/ecsruntime/internal/ecserr"
	"github.com/ashgrove/ecsruntime/internal/serialize"
)

func TestFullSnapshotEmptyWorldIsThreeBytes(t *testing.T) {
	resetGlobalRegistryForTest()
	resetGlobalSystemsForTest()
	w := NewWorld(8, nil)
	buf := SerializeFull(w)
	assert.Equal(t, 2+1, len(buf), "version (u16) + mode (u8) on an empty world, before any table follows")
	assert.Equal(t, serialize.Version, uint16(buf[0])<<8|uint16(buf[1]))
	assert.Equal(t, uint8(serialize.ModeFull), buf[2])
}

func TestBinaryRoundTripWithSubarray(t *testing.T) {
	resetGlobalRegistryForTest()
	resetGlobalSystemsForTest()

	velSchema := buildSchema(t, NewComponentBuilder("Velocity").SubArray("xyz", ElemF32, 3))
	w := NewWorld(8, nil)
	eid, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(velSchema, eid, nil, true))

	col := w.Handle(velSchema).Columns()[0].(*SubarrayColumn)
	col.SetElement(eid, 0, 1.5)
	col.SetElement(eid, 1, -2.25)
	col.SetElement(eid, 2, 3.0)

	buf := SerializeFull(w)

	resetGlobalRegistryForTest()
	resetGlobalSystemsForTest()
	velSchema2 := buildSchema(t, NewComponentBuilder("Velocity").SubArray("xyz", ElemF32, 3))
	w2 := NewWorld(8, nil)
	require.NoError(t, DeserializeFull(w2, buf))

	col2 := w2.Handle(velSchema2).Columns()[0].(*SubarrayColumn)
	assert.InDelta(t, 1.5, col2.GetElement(eid, 0), 1e-6)
	assert.InDelta(t, -2.25, col2.GetElement(eid, 1), 1e-6)
	assert.InDelta(t, 3.0, col2.GetElement(eid, 2), 1e-6)
}

func TestBinaryRoundTripPreservesComplexFauxValues(t *testing.T) {
	resetGlobalRegistryForTest()
	resetGlobalSystemsForTest()

	blobSchema := buildSchema(t, NewComponentBuilder("Blob").
		Faux("shallow", nil).
		Faux("nested", nil).
		Faux("oddMap", nil).
		Faux("tags", nil))
	w := NewWorld(8, nil)
	eid, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(blobSchema, eid, nil, true))

	cols := w.Handle(blobSchema).Columns()
	shallowCol := cols[0].(*FauxColumn)
	nestedCol := cols[1].(*FauxColumn)
	oddMapCol := cols[2].(*FauxColumn)
	tagsCol := cols[3].(*FauxColumn)

	shallowCol.Set(eid, map[string]any{"a": 1.0, "b": "two", "c": true})
	nestedCol.Set(eid, map[string]any{"inner": map[string]any{"a": 1.0}})
	oddMapCol.Set(eid, map[float64]string{1.0: "one", 2.0: "two"})
	tagsCol.Set(eid, NewSet[string]("alpha", "beta"))

	buf := SerializeFull(w)

	resetGlobalRegistryForTest()
	resetGlobalSystemsForTest()
	blobSchema2 := buildSchema(t, NewComponentBuilder("Blob").
		Faux("shallow", nil).
		Faux("nested", nil).
		Faux("oddMap", nil).
		Faux("tags", nil))
	w2 := NewWorld(8, nil)
	require.NoError(t, DeserializeFull(w2, buf))

	cols2 := w2.Handle(blobSchema2).Columns()
	shallow2, ok := cols2[0].(*FauxColumn).Get(eid)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": 1.0, "b": "two", "c": true}, shallow2, "shallow-simple object recurses inline")

	nested2, ok := cols2[1].(*FauxColumn).Get(eid)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"inner": map[string]any{"a": 1.0}}, nested2, "a non-shallow object round-trips via the complex buffer")

	oddMap2, ok := cols2[2].(*FauxColumn).Get(eid)
	require.True(t, ok)
	revivedMap, ok := oddMap2.(map[any]any)
	require.True(t, ok, "a non-string-keyed map revives through the Map envelope")
	assert.Equal(t, "one", revivedMap[1.0])
	assert.Equal(t, "two", revivedMap[2.0])

	tags2, ok := cols2[3].(*FauxColumn).Get(eid)
	require.True(t, ok)
	revivedSet, ok := tags2.(Set[any])
	require.True(t, ok, "a Set revives through the Set envelope")
	_, hasAlpha := revivedSet["alpha"]
	_, hasBeta := revivedSet["beta"]
	assert.True(t, hasAlpha)
	assert.True(t, hasBeta)
}

func TestDeltaModeSmallerThanBaselineAndApplies(t *testing.T) {
	resetGlobalRegistryForTest()
	resetGlobalSystemsForTest()

	velSchema := buildSchema(t, NewComponentBuilder("Velocity").SubArray("xyz", ElemF32, 3))
	w := NewWorld(8, nil)
	eid, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(velSchema, eid, nil, true))

	col := w.Handle(velSchema).Columns()[0].(*SubarrayColumn)
	col.SetElement(eid, 0, 1)
	col.SetElement(eid, 1, 2)
	col.SetElement(eid, 2, 3)

	ds := NewDeltaSerializer(w)
	baseline, err := ds.Serialize(0)
	require.NoError(t, err)

	col.SetElement(eid, 1, 99)
	delta, err := ds.Serialize(0)
	require.NoError(t, err)

	assert.Less(t, len(delta), len(baseline), "a one-element change must serialize smaller than the baseline")

	resetGlobalRegistryForTest()
	resetGlobalSystemsForTest()
	velSchema2 := buildSchema(t, NewComponentBuilder("Velocity").SubArray("xyz", ElemF32, 3))
	w2 := NewWorld(8, nil)
	require.NoError(t, ApplyDelta(baseline, w2))
	require.NoError(t, ApplyDelta(delta, w2))

	col2 := w2.Handle(velSchema2).Columns()[0].(*SubarrayColumn)
	assert.InDelta(t, 1.0, col2.GetElement(eid, 0), 1e-6)
	assert.InDelta(t, 99.0, col2.GetElement(eid, 1), 1e-6)
	assert.InDelta(t, 3.0, col2.GetElement(eid, 2), 1e-6)
}

func TestApplyDeltaWithoutBaselineRejected(t *testing.T) {
	resetGlobalRegistryForTest()
	resetGlobalSystemsForTest()
	buildSchema(t, NewComponentBuilder("Velocity").SubArray("xyz", ElemF32, 3))
	w := NewWorld(8, nil)

	wr := serialize.NewWriter()
	wr.Uint16(serialize.Version)
	wr.Uint8(uint8(serialize.ModeDelta))
	err := ApplyDelta(wr.Bytes(), w)
	assert.ErrorIs(t, err, ecserr.ErrApplyDeltaWithoutBaseline)
}

func TestApplyDeltaAcceptsDeltaOnceBaselineEstablished(t *testing.T) {
	resetGlobalRegistryForTest()
	resetGlobalSystemsForTest()

	velSchema := buildSchema(t, NewComponentBuilder("Velocity").SubArray("xyz", ElemF32, 3))
	w := NewWorld(8, nil)
	eid, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(velSchema, eid, nil, true))

	ds := NewDeltaSerializer(w)
	baseline, err := ds.Serialize(0)
	require.NoError(t, err)
	delta, err := ds.Serialize(0)
	require.NoError(t, err)

	w2 := NewWorld(8, nil)
	require.NoError(t, ApplyDelta(baseline, w2))
	require.NoError(t, ApplyDelta(delta, w2), "a delta applied after a baseline must not be rejected")
}

func TestDeltaSerializeRejectsOverMaxBytes(t *testing.T) {
	resetGlobalRegistryForTest()
	resetGlobalSystemsForTest()

	velSchema := buildSchema(t, NewComponentBuilder("Velocity").SubArray("xyz", ElemF32, 3))
	w := NewWorld(8, nil)
	eid, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(velSchema, eid, nil, true))

	ds := NewDeltaSerializer(w)
	_, err = ds.Serialize(4)
	assert.ErrorIs(t, err, ecserr.ErrDeltaTooLarge)
}

func TestJSONModeRoundTripsPrimitives(t *testing.T) {
	resetGlobalRegistryForTest()
	resetGlobalSystemsForTest()
	posSchema := buildSchema(t, NewComponentBuilder("Position").Field("x", ElemF64, 0.0).Field("y", ElemF64, 0.0))
	w := NewWorld(8, nil)
	eid, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(posSchema, eid, map[string]any{"x": 4.0, "y": 5.0}, true))

	buf, err := SerializeJSON(w)
	require.NoError(t, err)
	assert.Contains(t, string(buf), `"entitySparseSet"`)
	assert.Contains(t, string(buf), `"Position"`)
}

func TestBase64RoundTripMatchesBinaryBytewise(t *testing.T) {
	resetGlobalRegistryForTest()
	resetGlobalSystemsForTest()
	w := NewWorld(8, nil)
	bin := SerializeFull(w)
	b64 := SerializeBase64(w)
	decoded, err := codec.Decode(b64)
	require.NoError(t, err)
	assert.Equal(t, bin, decoded)
}
