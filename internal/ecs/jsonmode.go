package ecs

import "encoding/json"

// jsonBitflag is the wire-neutral JSON projection of a component's
// (generationId, bitflag) pair.
type jsonBitflag struct {
	GenerationID int    `json:"generationId"`
	Bitflag      uint32 `json:"bitflag"`
}

type jsonEntity struct {
	EntityID   uint32                    `json:"entityId"`
	Components map[string]map[string]any `json:"components"`
}

type jsonSnapshot struct {
	EntitySparseSet []uint32                   `json:"entitySparseSet"`
	Removed         []uint32                   `json:"removed"`
	ComponentMap    []any                      `json:"componentMap"`
	QueryMap        map[string]any             `json:"queryMap"`
	DirtyQueries    []string                   `json:"dirtyQueries"`
	Entities        []jsonEntity               `json:"entities"`
}

// SerializeJSON renders w as the structured JSON object described in the
// spec: entitySparseSet, removed, componentMap, queryMap, dirtyQueries and
// a per-entity component breakdown with booleans coerced to native bool.
func SerializeJSON(w *World) ([]byte, error) {
	snap := jsonSnapshot{
		QueryMap: make(map[string]any),
	}
	for _, eid := range w.entities.Dense() {
		snap.EntitySparseSet = append(snap.EntitySparseSet, uint32(eid))
	}
	for _, eid := range w.pool.removed {
		snap.Removed = append(snap.Removed, uint32(eid))
	}

	for _, typ := range w.stableComponentOrder() {
		f := w.bitflags[typ]
		snap.ComponentMap = append(snap.ComponentMap, []any{typ, jsonBitflag{GenerationID: f.generation, Bitflag: f.mask}})
	}

	for _, qs := range w.queries {
		snap.QueryMap[qs.instance.key] = map[string]any{
			"primary":  qs.primary.Dense(),
			"toRemove": qs.toRemove.Dense(),
			"entered":  qs.entered.Dense(),
		}
	}
	for _, id := range w.dirtyQueries {
		if qs, ok := w.queries[id]; ok {
			snap.DirtyQueries = append(snap.DirtyQueries, qs.instance.key)
		}
	}

	for _, eid := range w.entities.Dense() {
		je := jsonEntity{EntityID: uint32(eid), Components: make(map[string]map[string]any)}
		for _, typ := range w.stableComponentOrder() {
			f := w.bitflags[typ]
			if !w.entityMasks[eid].has(f) {
				continue
			}
			schema, _ := schemaByType(typ)
			je.Components[typ] = serializeComponentObject(w, schema, eid)
		}
		snap.Entities = append(snap.Entities, je)
	}

	return json.Marshal(snap)
}

// serializeComponentObject projects one entity's component view to a plain
// object, coercing bool-typed columns to native booleans and skipping keys
// that start with "_" or equal "id"/"store"/"type".
func serializeComponentObject(w *World, schema *Schema, eid Entity) map[string]any {
	out := make(map[string]any)
	if schema == nil {
		return out
	}
	view := w.View(schema, eid)
	for _, key := range view.Keys() {
		if key == "id" || key == "store" || key == "type" || len(key) > 0 && key[0] == '_' {
			continue
		}
		val, err := view.Get(key)
		if err != nil {
			continue
		}
		out[key] = val
	}
	return out
}
