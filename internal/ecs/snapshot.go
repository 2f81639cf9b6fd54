package ecs

import (
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/ashgrove/ecsruntime/internal/ecserr"
	"github.com/ashgrove/ecsruntime/internal/serialize"
)

// isBlank reports whether w has never been touched: no entities, no
// registered components, no queries. A blank world serializes to just the
// version/mode prefix.
func (w *World) isBlank() bool {
	return w.entities.Len() == 0 && len(w.storeByType) == 0 && len(w.queries) == 0
}

// SerializeFull writes a complete binary snapshot of w per the wire
// framing: header, entity sparse set, removed queue, cursors, component
// table, query table, dirty-query list, entities block. A blank world
// (no entities, no registered components, no queries) collapses to the
// 3-byte version/mode prefix alone.
func SerializeFull(w *World) []byte {
	wr := serialize.NewWriter()
	wr.Uint16(serialize.Version)
	wr.Uint8(uint8(serialize.ModeFull))
	if w.isBlank() {
		return wr.Bytes()
	}
	writeWorldHeader(wr, w)
	writeEntitiesBlock(wr, w, nil)
	return wr.Bytes()
}

func writeWorldHeader(wr *serialize.Writer, w *World) {
	wr.SparseSet(w.entities.wireDense(), w.entities.wireSparse())
	removed := make([]uint16, len(w.pool.removed))
	for i, e := range w.pool.removed {
		removed[i] = uint16(e)
	}
	wr.UintArray(removed)
	wr.Uint16(uint16(w.pool.cursor))
	wr.Uint16(uint16(w.size))
	wr.Uint32(uint32(w.genAlloc.generation)<<5 | uint32(w.genAlloc.bit))
	wr.Uint32(w.frame)

	types := make([]string, 0, len(w.storeByType))
	for t := range w.storeByType {
		types = append(types, t)
	}
	sort.Strings(types)
	wr.Uint16(uint16(len(types)))
	for _, t := range types {
		f := w.bitflags[t]
		wr.String(t)
		wr.Uint32(uint32(f.generation))
		wr.Uint32(f.mask)
	}

	qstates := make([]*queryState, 0, len(w.queries))
	for _, qs := range w.queries {
		qstates = append(qstates, qs)
	}
	sort.Slice(qstates, func(i, j int) bool {
		return qstates[i].instance.key < qstates[j].instance.key
	})
	wr.Uint16(uint16(len(qstates)))
	for _, qs := range qstates {
		writeQuery(wr, qs)
	}

	dirtyKeys := make([]string, 0, len(w.dirtyQueries))
	for _, id := range w.dirtyQueries {
		if qs, ok := w.queries[id]; ok {
			dirtyKeys = append(dirtyKeys, qs.instance.key)
		}
	}
	sort.Strings(dirtyKeys)
	wr.Uint16(uint16(len(dirtyKeys)))
	for _, k := range dirtyKeys {
		wr.String(k)
	}
}

func writeQuery(wr *serialize.Writer, q *queryState) {
	wr.SparseSet(q.primary.wireDense(), q.primary.wireSparse())
	wr.SparseSet(q.toRemove.wireDense(), q.toRemove.wireSparse())
	wr.SparseSet(q.entered.wireDense(), q.entered.wireSparse())
	wr.String(q.instance.key)
	keys := make([]uint32, len(q.masks))
	vals := make(map[uint32]float64, len(q.masks))
	for g, m := range q.masks {
		keys[g] = uint32(g)
		vals[uint32(g)] = float64(m)
	}
	wr.NumberObject(keys, vals)
	gens := make([]float64, len(q.generations))
	for i, g := range q.generations {
		gens[i] = float64(g)
	}
	wr.NumberArray(gens)
}

// stableComponentOrder returns component type names in world registration
// order: the order their bitflags were allocated.
func (w *World) stableComponentOrder() []string {
	type entry struct {
		t string
		f bitflag
	}
	entries := make([]entry, 0, len(w.bitflags))
	for t, f := range w.bitflags {
		entries = append(entries, entry{t, f})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].f.generation != entries[j].f.generation {
			return entries[i].f.generation < entries[j].f.generation
		}
		return entries[i].f.mask < entries[j].f.mask
	})
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.t
	}
	return out
}

// writeEntitiesBlock emits the entityRegionBytes-prefixed per-property
// region followed by the trailing complex-data buffer. shadow is nil for a
// full write, or the delta state to diff against.
func writeEntitiesBlock(wr *serialize.Writer, w *World, shadow *DeltaSerializer) {
	bodyWr := serialize.NewWriter()
	complexAcc := make(complexAccumulator)
	pid := 0
	for _, typ := range w.stableComponentOrder() {
		st := w.storeByType[typ]
		f := w.bitflags[typ]
		if st.IsTagStore() {
			writeTagColumn(bodyWr, w, f, pid, shadow, typ)
			pid++
			continue
		}
		for _, col := range st.Columns() {
			switch c := col.(type) {
			case *ScalarColumn:
				writeScalarColumn(bodyWr, w, f, pid, c, shadow, typ)
			case *SubarrayColumn:
				writeSubarrayColumn(bodyWr, w, f, pid, c, shadow, typ)
			case *FauxColumn:
				writeFauxColumn(bodyWr, w, f, pid, c, shadow, typ, complexAcc)
			}
			pid++
		}
	}

	body := bodyWr.Bytes()
	wr.Uint32(uint32(len(body)))
	wr.Raw(body)

	complexBuf := marshalComplexBuffer(complexAcc)
	wr.Uint32(uint32(len(complexBuf)))
	wr.Raw(complexBuf)
}

func membersOf(w *World, f bitflag) []Entity {
	var out []Entity
	for _, eid := range w.entities.Dense() {
		if w.entityMasks[eid].has(f) {
			out = append(out, eid)
		}
	}
	return out
}

func writeTagColumn(wr *serialize.Writer, w *World, f bitflag, pid int, shadow *DeltaSerializer, typ string) {
	members := membersOf(w, f)
	var writeEids []Entity
	if shadow == nil {
		writeEids = members
	} else {
		for _, eid := range members {
			if shadow.newlyAdded(typ, eid) {
				writeEids = append(writeEids, eid)
			}
		}
		shadow.syncTagMembership(typ, members)
	}
	wr.Uint16(uint16(pid))
	wr.Uint32(uint32(len(writeEids)))
	for _, eid := range writeEids {
		wr.Uint32(uint32(eid))
	}
}

func writeScalarColumn(wr *serialize.Writer, w *World, f bitflag, pid int, c *ScalarColumn, shadow *DeltaSerializer, typ string) {
	members := membersOf(w, f)
	type rec struct {
		eid Entity
		val float64
	}
	var writes []rec
	for _, eid := range members {
		val := c.GetFloat64(eid)
		if shadow == nil {
			writes = append(writes, rec{eid, val})
			continue
		}
		newly := shadow.newlyAdded(typ, eid)
		prev, had := shadow.scalarShadow(typ, c.Name(), eid)
		if newly || !had || prev != val {
			writes = append(writes, rec{eid, val})
		}
		shadow.setScalarShadow(typ, c.Name(), eid, val)
	}
	wr.Uint16(uint16(pid))
	wr.Uint32(uint32(len(writes)))
	for _, r := range writes {
		wr.Uint32(uint32(r.eid))
		wr.Float64(r.val)
	}
}

func writeSubarrayColumn(wr *serialize.Writer, w *World, f bitflag, pid int, c *SubarrayColumn, shadow *DeltaSerializer, typ string) {
	members := membersOf(w, f)
	type change struct {
		eid     Entity
		indices []int
		values  []float64
	}
	var writes []change
	for _, eid := range members {
		newly := shadow == nil || shadow.newlyAdded(typ, eid)
		var idxs []int
		var vals []float64
		for i := 0; i < c.Length(); i++ {
			v := c.GetElement(eid, i)
			if shadow == nil {
				idxs = append(idxs, i)
				vals = append(vals, v)
				continue
			}
			prev, had := shadow.subarrayShadow(typ, c.Name(), eid, i)
			if newly || !had || prev != v {
				idxs = append(idxs, i)
				vals = append(vals, v)
			}
			shadow.setSubarrayShadow(typ, c.Name(), eid, i, v)
		}
		if len(idxs) > 0 {
			writes = append(writes, change{eid, idxs, vals})
		}
	}
	wr.Uint16(uint16(pid))
	wr.Uint32(uint32(len(writes)))
	for _, ch := range writes {
		wr.Uint32(uint32(ch.eid))
		wr.Uint8(byte(c.IndexType()))
		wr.Uint32(uint32(len(ch.indices)))
		for i, idx := range ch.indices {
			writeIndex(wr, c.IndexType(), idx)
			wr.Float64(ch.values[i])
		}
	}
}

func writeIndex(wr *serialize.Writer, indexType ElementType, idx int) {
	switch indexType {
	case ElemU8:
		wr.Uint8(uint8(idx))
	case ElemU16:
		wr.Uint16(uint16(idx))
	default:
		wr.Uint32(uint32(idx))
	}
}

func readIndex(rd *serialize.Reader, indexType ElementType) (int, error) {
	switch indexType {
	case ElemU8:
		v, err := rd.Uint8()
		return int(v), err
	case ElemU16:
		v, err := rd.Uint16()
		return int(v), err
	default:
		v, err := rd.Uint32()
		return int(v), err
	}
}

func writeFauxColumn(wr *serialize.Writer, w *World, f bitflag, pid int, c *FauxColumn, shadow *DeltaSerializer, typ string, complexAcc complexAccumulator) {
	members := membersOf(w, f)
	type rec struct {
		eid Entity
		val any
	}
	var writes []rec
	for _, eid := range members {
		val, _ := c.Get(eid)
		if shadow == nil {
			writes = append(writes, rec{eid, val})
			continue
		}
		newly := shadow.newlyAdded(typ, eid)
		if newly || shadow.fauxChanged(typ, c.Name(), eid, val) {
			writes = append(writes, rec{eid, val})
		}
		shadow.setFauxShadow(typ, c.Name(), eid, val)
	}
	wr.Uint16(uint16(pid))
	wr.Uint32(uint32(len(writes)))
	for _, r := range writes {
		wr.Uint32(uint32(r.eid))
		writeFauxValue(wr, r.val, r.eid, typ, c.Name(), complexAcc)
	}
}

const (
	fauxNull       = 254
	fauxUndefined  = 255
	fauxNumber     = 1
	fauxBool       = 2
	fauxString     = 3
	fauxObject     = 4
	fauxArray      = 5
	fauxComplexRef = 6
)

// writeFauxValue encodes one faux value inline. Shallow-simple objects
// (every sub-property a wire primitive) and arrays of primitives recurse
// inline; anything else -- a nested object, a Map, a Set, an array holding
// non-primitives -- is routed out-of-band into complex instead, leaving
// only the fauxComplexRef tag byte inline.
func writeFauxValue(wr *serialize.Writer, v any, eid Entity, componentType, propKey string, complexAcc complexAccumulator) {
	switch val := v.(type) {
	case nil:
		wr.Uint8(fauxUndefined)
	case string:
		wr.Uint8(fauxString)
		b := []byte(val)
		if len(b) > 255 {
			b = b[:255]
		}
		wr.Uint8(uint8(len(b)))
		wr.Raw(b)
	case float64:
		wr.Uint8(fauxNumber)
		wr.Float64(val)
	case bool:
		wr.Uint8(fauxBool)
		if val {
			wr.Uint8(1)
		} else {
			wr.Uint8(0)
		}
	case map[string]any:
		if isShallowSimpleObject(val) {
			wr.Uint8(fauxObject)
			writeFauxObjectInline(wr, val, eid, componentType, propKey, complexAcc)
		} else {
			wr.Uint8(fauxComplexRef)
			complexAcc.record(eid, componentType, propKey, val)
		}
	case []any:
		if isPrimitiveArray(val) {
			wr.Uint8(fauxArray)
			wr.Uint16(uint16(len(val)))
			for _, item := range val {
				writeFauxValue(wr, item, eid, componentType, propKey, complexAcc)
			}
		} else {
			wr.Uint8(fauxComplexRef)
			complexAcc.record(eid, componentType, propKey, val)
		}
	default:
		wr.Uint8(fauxComplexRef)
		complexAcc.record(eid, componentType, propKey, val)
	}
}

func writeFauxObjectInline(wr *serialize.Writer, m map[string]any, eid Entity, componentType, propKey string, complexAcc complexAccumulator) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	wr.Uint16(uint16(len(keys)))
	for _, k := range keys {
		wr.String(k)
		writeFauxValue(wr, m[k], eid, componentType, propKey, complexAcc)
	}
}

func readFauxValue(rd *serialize.Reader) (any, error) {
	tag, err := rd.Uint8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case fauxUndefined, fauxNull:
		return nil, nil
	case fauxString:
		n, err := rd.Uint8()
		if err != nil {
			return nil, err
		}
		b, err := rd.Raw(int(n))
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case fauxNumber:
		return rd.Float64()
	case fauxBool:
		b, err := rd.Uint8()
		if err != nil {
			return nil, err
		}
		return b != 0, nil
	case fauxObject:
		n, err := rd.Uint16()
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, n)
		for i := uint16(0); i < n; i++ {
			k, err := rd.String()
			if err != nil {
				return nil, err
			}
			v, err := readFauxValue(rd)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case fauxArray:
		n, err := rd.Uint16()
		if err != nil {
			return nil, err
		}
		out := make([]any, n)
		for i := range out {
			v, err := readFauxValue(rd)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case fauxComplexRef:
		// The real value lives in the entities block's trailing complex
		// buffer; readEntitiesBlock patches it in once that buffer is read.
		return nil, nil
	default:
		return nil, ecserr.ErrUnsupportedTypeTag
	}
}

// DeserializeFull rebuilds world state (entities, masks, stores, queries)
// from a full snapshot buffer. The target World must already have every
// component schema registered with the same wire order (i.e. built in the
// same process).
func DeserializeFull(w *World, buf []byte) error {
	rd := serialize.NewReader(buf)
	version, err := rd.Uint16()
	if err != nil {
		return err
	}
	if version != serialize.Version {
		return ecserr.ErrVersionMismatch
	}
	mode, err := rd.Uint8()
	if err != nil {
		return err
	}
	if serialize.Mode(mode) != serialize.ModeFull {
		return ecserr.ErrVersionMismatch
	}
	if rd.Remaining() == 0 {
		return nil
	}
	return readWorldHeaderAndEntities(w, rd)
}

func readWorldHeaderAndEntities(w *World, rd *serialize.Reader) error {
	dense, sparse, err := rd.SparseSet()
	if err != nil {
		return err
	}
	w.entities.restoreFromWire(dense, sparse)

	removed, err := rd.UintArray()
	if err != nil {
		return err
	}
	w.pool.removed = make([]Entity, len(removed))
	for i, v := range removed {
		w.pool.removed[i] = Entity(v)
	}
	cursor, err := rd.Uint16()
	if err != nil {
		return err
	}
	w.pool.cursor = uint32(cursor)
	size, err := rd.Uint16()
	if err != nil {
		return err
	}
	w.size = int(size)
	bitflagWord, err := rd.Uint32()
	if err != nil {
		return err
	}
	w.genAlloc.generation = int(bitflagWord >> 5)
	w.genAlloc.bit = uint(bitflagWord & 0x1F)
	frame, err := rd.Uint32()
	if err != nil {
		return err
	}
	w.frame = frame

	compCount, err := rd.Uint16()
	if err != nil {
		return err
	}
	order := make([]string, 0, compCount)
	for i := uint16(0); i < compCount; i++ {
		typ, err := rd.String()
		if err != nil {
			return err
		}
		gen, err := rd.Uint32()
		if err != nil {
			return err
		}
		mask, err := rd.Uint32()
		if err != nil {
			return err
		}
		w.bitflags[typ] = bitflag{generation: int(gen), mask: mask}
		order = append(order, typ)
	}

	queryCount, err := rd.Uint16()
	if err != nil {
		return err
	}
	for i := uint16(0); i < queryCount; i++ {
		if err := readQuery(w, rd); err != nil {
			return err
		}
	}

	dirtyCount, err := rd.Uint16()
	if err != nil {
		return err
	}
	w.dirtyQueries = w.dirtyQueries[:0]
	for i := uint16(0); i < dirtyCount; i++ {
		k, err := rd.String()
		if err != nil {
			return err
		}
		w.dirtyQueries = append(w.dirtyQueries, xxhash.Sum64String(k))
	}

	return readEntitiesBlock(w, rd, order)
}

func readQuery(w *World, rd *serialize.Reader) error {
	pd, ps, err := rd.SparseSet()
	if err != nil {
		return err
	}
	td, ts, err := rd.SparseSet()
	if err != nil {
		return err
	}
	ed, es, err := rd.SparseSet()
	if err != nil {
		return err
	}
	key, err := rd.String()
	if err != nil {
		return err
	}
	masksObj, err := rd.NumberObject()
	if err != nil {
		return err
	}
	gens, err := rd.NumberArray()
	if err != nil {
		return err
	}
	id := xxhash.Sum64String(key)
	qs, ok := w.queries[id]
	if !ok {
		qs = &queryState{instance: QueryInstance{key: key, id: id}, primary: newSparseSet(w.size), entered: newSparseSet(w.size), toRemove: newSparseSet(w.size)}
		w.queries[id] = qs
	}
	qs.primary.restoreFromWire(pd, ps)
	qs.toRemove.restoreFromWire(td, ts)
	qs.entered.restoreFromWire(ed, es)
	var mask Mask
	for g, v := range masksObj {
		mask = mask.ensureGeneration(int(g))
		mask[g] = uint32(v)
	}
	qs.masks = mask
	qs.generations = make([]int, len(gens))
	for i, g := range gens {
		qs.generations[i] = int(g)
	}
	sort.Ints(qs.generations)
	return nil
}

// readEntitiesBlock is writeEntitiesBlock's mirror: it reads the
// entityRegionBytes-prefixed per-property region into its own reader, then
// reads the trailing complex-data buffer and patches every revived
// out-of-band faux value back onto its FauxColumn.
func readEntitiesBlock(w *World, rd *serialize.Reader, order []string) error {
	entityRegionBytes, err := rd.Uint32()
	if err != nil {
		return err
	}
	bodyBytes, err := rd.Raw(int(entityRegionBytes))
	if err != nil {
		return err
	}
	bodyRd := serialize.NewReader(bodyBytes)

	pid := 0
	for _, typ := range order {
		st := w.storeByType[typ]
		if st == nil {
			continue
		}
		if st.IsTagStore() {
			if err := readTagColumn(w, bodyRd); err != nil {
				return err
			}
			pid++
			continue
		}
		for _, col := range st.Columns() {
			var err error
			switch c := col.(type) {
			case *ScalarColumn:
				err = readScalarColumn(bodyRd, c)
			case *SubarrayColumn:
				err = readSubarrayColumn(bodyRd, c)
			case *FauxColumn:
				err = readFauxColumn(bodyRd, c)
			}
			if err != nil {
				return err
			}
			pid++
		}
	}

	complexBufferLen, err := rd.Uint32()
	if err != nil {
		return err
	}
	complexBuf, err := rd.Raw(int(complexBufferLen))
	if err != nil {
		return err
	}
	revived, err := unmarshalComplexBuffer(complexBuf)
	if err != nil {
		return err
	}
	applyComplexValues(w, revived)
	return nil
}

// applyComplexValues patches every out-of-band faux value revived from the
// complex buffer back onto the matching FauxColumn, overriding the nil
// placeholder readFauxValue left behind for a fauxComplexRef tag.
func applyComplexValues(w *World, revived map[Entity]map[string]map[string]any) {
	for eid, byComp := range revived {
		for typ, byProp := range byComp {
			st := w.storeByType[typ]
			if st == nil {
				continue
			}
			for prop, val := range byProp {
				for _, col := range st.Columns() {
					if fc, ok := col.(*FauxColumn); ok && fc.Name() == prop {
						fc.Set(eid, val)
					}
				}
			}
		}
	}
}

func readTagColumn(w *World, rd *serialize.Reader) error {
	if _, err := rd.Uint16(); err != nil { // pid, unused on read
		return err
	}
	count, err := rd.Uint32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if _, err := rd.Uint32(); err != nil {
			return err
		}
	}
	return nil
}

func readScalarColumn(rd *serialize.Reader, c *ScalarColumn) error {
	if _, err := rd.Uint16(); err != nil {
		return err
	}
	count, err := rd.Uint32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		eid, err := rd.Uint32()
		if err != nil {
			return err
		}
		val, err := rd.Float64()
		if err != nil {
			return err
		}
		c.SetFloat64(Entity(eid), val)
	}
	return nil
}

func readSubarrayColumn(rd *serialize.Reader, c *SubarrayColumn) error {
	if _, err := rd.Uint16(); err != nil {
		return err
	}
	count, err := rd.Uint32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		eid, err := rd.Uint32()
		if err != nil {
			return err
		}
		indexTypeByte, err := rd.Uint8()
		if err != nil {
			return err
		}
		n, err := rd.Uint32()
		if err != nil {
			return err
		}
		for j := uint32(0); j < n; j++ {
			idx, err := readIndex(rd, ElementType(indexTypeByte))
			if err != nil {
				return err
			}
			val, err := rd.Float64()
			if err != nil {
				return err
			}
			c.SetElement(Entity(eid), idx, val)
		}
	}
	return nil
}

func readFauxColumn(rd *serialize.Reader, c *FauxColumn) error {
	if _, err := rd.Uint16(); err != nil {
		return err
	}
	count, err := rd.Uint32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		eid, err := rd.Uint32()
		if err != nil {
			return err
		}
		val, err := readFauxValue(rd)
		if err != nil {
			return err
		}
		c.Set(Entity(eid), val)
	}
	return nil
}
