package ecs

import (
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// QueryInstance is a memoized query identity shared across worlds. Its key
// is the canonical sorted, pipe-joined list of required component type
// names; id is an xxhash digest of that key used for fast map lookups while
// the string remains canonical for wire serialization.
type QueryInstance struct {
	key string
	id  uint64
}

// Key returns the canonical query key.
func (q QueryInstance) Key() string { return q.key }

// ID returns the xxhash digest of the canonical key, used as the actual map
// key for a query's per-world state.
func (q QueryInstance) ID() uint64 { return q.id }

var (
	queryInstanceMu sync.Mutex
	queryInstances  = make(map[string]QueryInstance)
)

// DefineQuery returns a memoized QueryInstance for the given component type
// names. The same set of types, in any order, yields the same instance.
func DefineQuery(componentTypes ...string) QueryInstance {
	sorted := append([]string(nil), componentTypes...)
	sort.Strings(sorted)
	key := strings.Join(sorted, "|")

	queryInstanceMu.Lock()
	defer queryInstanceMu.Unlock()
	if q, ok := queryInstances[key]; ok {
		return q
	}
	q := QueryInstance{key: key, id: xxhash.Sum64String(key)}
	queryInstances[key] = q
	return q
}

// queryState is the per-world runtime state of one query.
type queryState struct {
	instance    QueryInstance
	types       []string
	generations []int
	masks       Mask
	primary     *sparseSet
	entered     *sparseSet
	toRemove    *sparseSet
	dirty       bool
}

func newQueryState(w *World, inst QueryInstance, types []string) *queryState {
	qs := &queryState{
		instance: inst,
		types:    types,
		primary:  newSparseSet(w.size),
		entered:  newSparseSet(w.size),
		toRemove: newSparseSet(w.size),
	}
	genSet := make(map[int]bool)
	for _, t := range types {
		s, ok := w.storeByType[t]
		if !ok {
			continue
		}
		f := w.bitflags[s.schema.Type]
		qs.masks = qs.masks.set(f)
		genSet[f.generation] = true
	}
	for g := range genSet {
		qs.generations = append(qs.generations, g)
	}
	sort.Ints(qs.generations)
	return qs
}

// queryCheckEntity reports whether eid currently satisfies every generation
// word of q's required mask.
func queryCheckEntity(w *World, q *queryState, eid Entity) bool {
	m := w.entityMasks[eid]
	for _, g := range q.generations {
		req := q.masks[g]
		if g >= len(m) || m[g]&req != req {
			return false
		}
	}
	return true
}

// queryAddEntity admits eid to q's primary set, clearing any pending
// removal and marking it entered. Returns true iff newly added.
func queryAddEntity(q *queryState, eid Entity) bool {
	q.toRemove.Remove(eid)
	q.entered.Add(eid)
	return q.primary.Add(eid)
}

// queryRemoveEntity queues eid for deferred removal from q. Returns true iff
// newly queued.
func queryRemoveEntity(q *queryState, eid Entity) bool {
	if !q.primary.Has(eid) {
		return false
	}
	if q.toRemove.Has(eid) {
		return false
	}
	q.toRemove.Add(eid)
	q.dirty = true
	return true
}

// commitQuery drains q's toRemove set from the primary set in reverse
// queue order.
func commitQuery(q *queryState) {
	if !q.dirty {
		return
	}
	dense := q.toRemove.Dense()
	for i := len(dense) - 1; i >= 0; i-- {
		eid := dense[i]
		q.primary.Remove(eid)
		q.toRemove.Remove(eid)
	}
	q.dirty = false
}

// CommitRemovals flushes every dirty query in w. Must precede any read of
// query results.
func CommitRemovals(w *World) {
	for _, id := range w.dirtyQueries {
		if q, ok := w.queries[id]; ok {
			commitQuery(q)
		}
	}
	w.dirtyQueries = w.dirtyQueries[:0]
}

// Entities returns the live, committed member list of q in world w.
func (q QueryInstance) Entities(w *World) []Entity {
	CommitRemovals(w)
	qs, ok := w.queries[q.id]
	if !ok {
		return nil
	}
	return qs.primary.Dense()
}

// Has reports whether eid currently matches q, without forcing a commit.
func (q QueryInstance) Has(w *World, eid Entity) bool {
	qs, ok := w.queries[q.id]
	if !ok {
		return false
	}
	return qs.primary.Has(eid) && !qs.toRemove.Has(eid)
}

// ensureQuery lazily instantiates q's per-world state on first use,
// registering it against each participating component and walking all live
// entities to seed initial membership.
func ensureQuery(w *World, q QueryInstance) *queryState {
	if qs, ok := w.queries[q.id]; ok {
		return qs
	}
	types := strings.Split(q.key, "|")
	qs := newQueryState(w, q, types)
	w.queries[q.id] = qs
	for _, t := range types {
		w.queriesByComponent[t] = append(w.queriesByComponent[t], qs)
	}
	for _, eid := range w.entities.Dense() {
		if queryCheckEntity(w, qs, eid) {
			queryAddEntity(qs, eid)
		}
	}
	return qs
}

// appendUniqueID appends id to list iff not already present.
func appendUniqueID(list []uint64, id uint64) []uint64 {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}
