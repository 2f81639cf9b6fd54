package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSchema is a test helper around ComponentBuilder that fails the test
// on error instead of returning one.
func buildSchema(t *testing.T, b *ComponentBuilder) *Schema {
	t.Helper()
	s, err := b.Build()
	require.NoError(t, err)
	return s
}

type movementSystem struct{}

func (movementSystem) Depth() int { return 0 }
func (movementSystem) Run(w *World, eid Entity) {
	posSchema, _ := schemaByType("Position")
	velSchema, _ := schemaByType("Velocity")
	pos := w.View(posSchema, eid)
	vel := w.View(velSchema, eid)
	px, _ := pos.Get("x")
	py, _ := pos.Get("y")
	vx, _ := vel.Get("x")
	vy, _ := vel.Get("y")
	pos.Set("x", px.(float64)+vx.(float64))
	pos.Set("y", py.(float64)+vy.(float64))
}

func TestScenarioCreateAddStep(t *testing.T) {
	resetGlobalRegistryForTest()
	resetGlobalSystemsForTest()

	posSchema := buildSchema(t, NewComponentBuilder("Position").
		Field("x", ElemF64, 0.0).
		Field("y", ElemF64, 0.0))
	velSchema := buildSchema(t, NewComponentBuilder("Velocity").
		Field("x", ElemF64, 0.0).
		Field("y", ElemF64, 0.0))

	DefineSystem([]string{"Position", "Velocity"}, 0, func() System { return movementSystem{} })

	w := NewWorld(16, nil)
	eid, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(posSchema, eid, map[string]any{}, true))
	require.NoError(t, w.AddComponent(velSchema, eid, map[string]any{"x": 30.0, "y": 30.0}, true))

	before := w.View(posSchema, eid)
	bx, _ := before.Get("x")
	by, _ := before.Get("y")
	assert.Equal(t, 0.0, bx)
	assert.Equal(t, 0.0, by)

	w.StepWorld()

	after := w.View(posSchema, eid)
	ax, _ := after.Get("x")
	ay, _ := after.Get("y")
	assert.Equal(t, 30.0, ax)
	assert.Equal(t, 30.0, ay)
}

type orderSystem struct {
	depth int
	push  int
	order *[]int
}

func (s orderSystem) Depth() int { return s.depth }
func (s orderSystem) Run(w *World, eid Entity) { *s.order = append(*s.order, s.push) }

type orderInitSystem struct {
	order *[]int
}

func (orderInitSystem) Depth() int { return 0 }
func (s orderInitSystem) Init(w *World, eid Entity) { *s.order = append(*s.order, 0) }
func (orderInitSystem) Run(*World, Entity)          {}

func TestScenarioDepthOrdering(t *testing.T) {
	resetGlobalRegistryForTest()
	resetGlobalSystemsForTest()

	orderComp := buildSchema(t, NewComponentBuilder("Order").Tag())

	var order []int
	DefineSystem([]string{"Order"}, 0, func() System { return orderInitSystem{order: &order} })
	DefineSystem([]string{"Order"}, 0, func() System { return orderSystem{depth: 0, push: 1, order: &order} })
	DefineSystem([]string{"Order"}, 1, func() System { return orderSystem{depth: 1, push: 2, order: &order} })
	DefineSystem([]string{"Order"}, 2, func() System { return orderSystem{depth: 2, push: 3, order: &order} })

	w := NewWorld(16, nil)
	eid, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(orderComp, eid, nil, true))

	w.StepWorld()
	assert.Equal(t, []int{0, 1, 2, 3}, order)

	w.StepWorld()
	assert.Equal(t, []int{0, 1, 2, 3, 1, 2, 3}, order)
}

type toggleSystem struct{}

func (toggleSystem) Depth() int { return -1 }
func (toggleSystem) Run(w *World, eid Entity) {
	schema, _ := schemaByType("Flag")
	v := w.View(schema, eid)
	cur, _ := v.Get("on")
	v.Set("on", !cur.(bool))
}

func TestScenarioManualSystem(t *testing.T) {
	resetGlobalRegistryForTest()
	resetGlobalSystemsForTest()

	flagSchema := buildSchema(t, NewComponentBuilder("Flag").Field("on", ElemU8, false))
	DefineSystem([]string{"Flag"}, -1, func() System { return toggleSystem{} })

	w := NewWorld(16, nil)
	eid, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(flagSchema, eid, map[string]any{"on": false}, true))

	w.StepWorld() // manual systems excluded from StepWorld
	v := w.View(flagSchema, eid)
	on, _ := v.Get("on")
	assert.Equal(t, false, on)

	w.RunManual("Flag")
	on, _ = v.Get("on")
	assert.Equal(t, true, on)
}

func TestScenarioQueryDeferredRemoval(t *testing.T) {
	resetGlobalRegistryForTest()
	resetGlobalSystemsForTest()

	aSchema := buildSchema(t, NewComponentBuilder("A").Tag())
	bSchema := buildSchema(t, NewComponentBuilder("B").Tag())

	w := NewWorld(16, nil)
	q := DefineQuery("A", "B")
	qs := ensureQuery(w, q)

	eid, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(aSchema, eid, nil, true))
	require.NoError(t, w.AddComponent(bSchema, eid, nil, true))

	assert.True(t, qs.primary.Has(eid))

	w.RemoveComponent(bSchema, eid)
	assert.True(t, qs.toRemove.Has(eid), "removal must be deferred")
	assert.True(t, qs.dirty)

	entities := q.Entities(w)
	assert.NotContains(t, entities, eid)
	assert.False(t, qs.toRemove.Has(eid))
	assert.False(t, qs.dirty)
}

func TestAddComponentIdempotent(t *testing.T) {
	resetGlobalRegistryForTest()
	resetGlobalSystemsForTest()
	schema := buildSchema(t, NewComponentBuilder("Tag1").Tag())
	w := NewWorld(8, nil)
	eid, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(schema, eid, nil, true))
	require.NoError(t, w.AddComponent(schema, eid, nil, true))
	assert.True(t, w.HasComponent(schema, eid))
}

func TestRemoveEntityIdempotentAndClearsMasks(t *testing.T) {
	resetGlobalRegistryForTest()
	resetGlobalSystemsForTest()
	schema := buildSchema(t, NewComponentBuilder("Tag2").Tag())
	w := NewWorld(8, nil)
	eid, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(schema, eid, nil, true))

	w.RemoveEntity(eid)
	assert.False(t, w.entities.Has(eid))
	assert.False(t, w.HasComponent(schema, eid))

	w.RemoveEntity(eid) // idempotent
	assert.False(t, w.entities.Has(eid))
}

type projectingTag struct{ label string }

func (p projectingTag) ToJSON() any { return "tag:" + p.label }

func TestAddComponentProjectsJSONProjectorOverridesBeforeValidation(t *testing.T) {
	resetGlobalRegistryForTest()
	resetGlobalSystemsForTest()
	schema := buildSchema(t, NewComponentBuilder("Taggable").Faux("label", nil))
	w := NewWorld(8, nil)
	eid, err := w.AddEntity()
	require.NoError(t, err)

	require.NoError(t, w.AddComponent(schema, eid, map[string]any{"label": projectingTag{label: "npc"}}, true))

	col := w.Handle(schema).Columns()[0].(*FauxColumn)
	val, ok := col.Get(eid)
	require.True(t, ok)
	assert.Equal(t, "tag:npc", val, "JSONProjector.ToJSON() result must replace the raw override before storage")
}

func TestDefineQueryOrderIndependentMemoization(t *testing.T) {
	qAB := DefineQuery("A", "B")
	qBA := DefineQuery("B", "A")
	assert.Equal(t, qAB, qBA)
}
