package ecs

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ashgrove/ecsruntime/internal/ecserr"
)

// World is the top-level ECS container: entity pool, component stores,
// masks, queries and their bound systems, all sized to one fixed capacity
// at construction.
type World struct {
	ID     uuid.UUID
	log    *zap.Logger
	size   int
	frame  uint32

	entities *sparseSet
	pool     *entityPool

	storeByType map[string]*Store
	bitflags    map[string]bitflag
	genAlloc    *generationAllocator

	entityMasks []Mask // indexed by Entity

	queries             map[uint64]*queryState
	queriesByComponent  map[string][]*queryState
	dirtyQueries        []uint64

	systemInstances []*systemInstance
	runList         []*systemInstance
	drawList        []*systemInstance
	manualByType    map[string]*systemInstance

	deltaBaselineEstablished bool
}

// NewWorld constructs a world of the given entity capacity. On the first
// call across the process it freezes the component schema registry and the
// system registry: both become immutable once any world exists.
func NewWorld(size int, log *zap.Logger) *World {
	freezeRegistry()
	freezeSystems()

	if log == nil {
		log = zap.NewNop()
	}
	w := &World{
		ID:                 uuid.New(),
		log:                log,
		size:               size,
		entities:           newSparseSet(size),
		pool:               newEntityPool(size, 0.01),
		storeByType:        make(map[string]*Store),
		bitflags:           make(map[string]bitflag),
		genAlloc:           newGenerationAllocator(),
		entityMasks:        make([]Mask, size+1),
		queries:            make(map[uint64]*queryState),
		queriesByComponent: make(map[string][]*queryState),
		manualByType:       make(map[string]*systemInstance),
	}

	for _, schema := range registeredSchemasSnapshot() {
		w.registerComponentSchema(schema)
	}

	run, draw, manual := systemDefsSnapshot()
	for _, d := range run {
		w.runList = append(w.runList, w.instantiateSystem(d))
	}
	for _, d := range draw {
		w.drawList = append(w.drawList, w.instantiateSystem(d))
	}
	for _, d := range manual {
		si := w.instantiateSystem(d)
		w.manualByType[d.queryKey] = si
	}
	w.log.Debug("world created", zap.String("id", w.ID.String()), zap.Int("size", size))
	return w
}

func (w *World) instantiateSystem(d *systemDef) *systemInstance {
	sys := d.factory()
	q := DefineQuery(d.components...)
	qs := ensureQuery(w, q)
	si := &systemInstance{def: d, sys: sys, query: q, qstate: qs}
	w.systemInstances = append(w.systemInstances, si)
	for _, t := range d.components {
		w.queriesByComponent[t] = appendUnique(w.queriesByComponent[t], qs)
	}
	return si
}

func appendUnique(list []*queryState, qs *queryState) []*queryState {
	for _, existing := range list {
		if existing == qs {
			return list
		}
	}
	return append(list, qs)
}

// registerComponentSchema lazily allocates a bitflag and a Store for schema, the
// first time it is seen by this world.
func (w *World) registerComponentSchema(schema *Schema) *Store {
	if st, ok := w.storeByType[schema.Type]; ok {
		return st
	}
	f := w.genAlloc.next()
	w.bitflags[schema.Type] = f
	// Entity ids run 1..size (0 is reserved), so columns need size+1 slots.
	st := CreateStore(schema, w.size+1)
	w.storeByType[schema.Type] = st
	return st
}

// Size returns the world's fixed entity capacity.
func (w *World) Size() int { return w.size }

// Frame returns the number of StepWorld calls so far; StepWorldDraw does not
// advance it.
func (w *World) Frame() uint32 { return w.frame }

// AddEntity allocates a new or recycled entity id.
func (w *World) AddEntity() (Entity, error) {
	eid, err := w.pool.allocate()
	if err != nil {
		return 0, err
	}
	w.entities.Add(eid)
	if int(eid) >= len(w.entityMasks) {
		grown := make([]Mask, int(eid)+1)
		copy(grown, w.entityMasks)
		w.entityMasks = grown
	}
	return eid, nil
}

// RemoveEntity tears down eid: deferred-removes it from every query it
// belongs to (invoking bound Cleanup hooks in reverse-encounter order),
// frees every store's slot, recycles the id, and zeroes its mask row.
func (w *World) RemoveEntity(eid Entity) {
	if !w.entities.Has(eid) {
		return
	}
	var cleanups []*systemInstance
	for _, qs := range w.queries {
		if qs.primary.Has(eid) && !qs.toRemove.Has(eid) {
			queryRemoveEntity(qs, eid)
			w.dirtyQueries = appendUniqueID(w.dirtyQueries, qs.instance.id)
			cleanups = append(cleanups, w.systemsForQuery(qs.instance.key)...)
		}
	}
	for i := len(cleanups) - 1; i >= 0; i-- {
		if c, ok := cleanups[i].sys.(Cleaner); ok {
			c.Cleanup(w, eid)
		}
	}
	for _, st := range w.storeByType {
		st.ResetStoreFor(eid)
	}
	w.pool.free(eid)
	w.entities.Remove(eid)
	if int(eid) < len(w.entityMasks) {
		w.entityMasks[eid] = nil
	}
}

func (w *World) systemsForQuery(key string) []*systemInstance {
	var out []*systemInstance
	for _, si := range w.systemInstances {
		if si.query.key == key {
			out = append(out, si)
		}
	}
	return out
}

// HasComponent reports whether eid currently carries schema's bit.
func (w *World) HasComponent(schema *Schema, eid Entity) bool {
	f, ok := w.bitflags[schema.Type]
	if !ok {
		return false
	}
	return w.entityMasks[eid].has(f)
}

// AddComponent attaches schema to eid, applying overrides and re-evaluating
// every query that references it. reset controls whether the store's slot
// is zeroed before overrides are applied.
func (w *World) AddComponent(schema *Schema, eid Entity, overrides map[string]any, reset bool) error {
	if eid.IsZero() {
		return ecserr.ErrEntityUndefined
	}
	if !w.entities.Has(eid) {
		return ecserr.ErrEntityMissing
	}
	st := w.registerComponentSchema(schema)
	f := w.bitflags[schema.Type]
	if w.entityMasks[eid].has(f) {
		return nil
	}
	w.entityMasks[eid] = w.entityMasks[eid].set(f)

	if reset && !st.IsTagStore() {
		st.ResetStoreFor(eid)
	}

	if overrides != nil {
		overrides = projectOverrides(overrides)
		if ok, errs := schema.Validator.Validate(overrides); !ok {
			return &ecserr.ValidationError{SchemaType: schema.Type, Overrides: overrides, Errors: errs}
		}
		if err := writeOverrides(st, eid, overrides); err != nil {
			return err
		}
	}

	w.reevaluateQueriesFor(schema.Type, eid)
	return nil
}

func writeOverrides(st *Store, eid Entity, overrides map[string]any) error {
	for key, val := range overrides {
		if key == "type" {
			continue
		}
		if err := setColumnValue(st, key, eid, val); err != nil {
			return err
		}
	}
	return nil
}

func setColumnValue(st *Store, key string, eid Entity, val any) error {
	for _, c := range st.Columns() {
		if c.Name() != key {
			continue
		}
		switch col := c.(type) {
		case *ScalarColumn:
			col.SetFloat64(eid, toFloat64(val))
			return nil
		case *SubarrayColumn:
			vals, _ := val.([]float64)
			for i := 0; i < col.Length() && i < len(vals); i++ {
				col.SetElement(eid, i, vals[i])
			}
			return nil
		case *FauxColumn:
			col.Set(eid, val)
			return nil
		}
	}
	return ecserr.ErrUnknownProperty
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// RemoveComponent detaches schema from eid and re-evaluates affected
// queries.
func (w *World) RemoveComponent(schema *Schema, eid Entity) {
	f, ok := w.bitflags[schema.Type]
	if !ok {
		return
	}
	if !w.entityMasks[eid].has(f) {
		return
	}
	w.entityMasks[eid] = w.entityMasks[eid].clear(f)
	w.reevaluateQueriesFor(schema.Type, eid)
}

// DisableComponent clears schema's bit without touching store contents or
// query membership; a low-level primitive for higher-level state machines.
func (w *World) DisableComponent(schema *Schema, eid Entity) {
	f, ok := w.bitflags[schema.Type]
	if !ok {
		return
	}
	w.entityMasks[eid] = w.entityMasks[eid].clear(f)
}

// reevaluateQueriesFor re-checks every query referencing componentType
// against eid's current mask, firing Init on entry and queuing deferred
// removal plus Cleanup on exit.
func (w *World) reevaluateQueriesFor(componentType string, eid Entity) {
	var cleanups []*systemInstance
	for _, qs := range w.queriesByComponent[componentType] {
		matches := queryCheckEntity(w, qs, eid)
		if matches {
			if queryAddEntity(qs, eid) {
				for _, si := range w.systemsForQuery(qs.instance.key) {
					if in, ok := si.sys.(Initializer); ok {
						in.Init(w, eid)
					}
				}
			}
			continue
		}
		qs.entered.Remove(eid)
		if queryRemoveEntity(qs, eid) {
			w.dirtyQueries = appendUniqueID(w.dirtyQueries, qs.instance.id)
			cleanups = append(cleanups, w.systemsForQuery(qs.instance.key)...)
		}
	}
	for i := len(cleanups) - 1; i >= 0; i-- {
		if c, ok := cleanups[i].sys.(Cleaner); ok {
			c.Cleanup(w, eid)
		}
	}
}

// StepWorld advances the auto-run (non-draw) system list by one frame.
func (w *World) StepWorld() {
	w.frame++
	for _, si := range w.runList {
		runSystemInstance(w, si)
	}
}

// StepWorldDraw runs the draw-tagged system list once.
func (w *World) StepWorldDraw() {
	for _, si := range w.drawList {
		runSystemInstance(w, si)
	}
}

// GetSystem returns the manual (depth<0) system instance registered for the
// given sorted-and-joined component query key, if any.
func (w *World) GetSystem(queryKey string) (System, bool) {
	si, ok := w.manualByType[queryKey]
	if !ok {
		return nil, false
	}
	return si.sys, true
}

// RunManual invokes Run (or RunAll) on a manual system by query key.
func (w *World) RunManual(queryKey string) {
	si, ok := w.manualByType[queryKey]
	if !ok {
		return
	}
	runSystemInstance(w, si)
}

// FreeWorld invokes Destroy on every system instance that implements it.
func (w *World) FreeWorld() {
	for _, si := range w.systemInstances {
		if d, ok := si.sys.(Destroyer); ok {
			d.Destroy(w)
		}
	}
	w.log.Debug("world freed", zap.String("id", w.ID.String()))
}
