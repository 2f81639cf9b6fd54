package ecs

import (
	"fmt"
	"reflect"

	"github.com/ashgrove/ecsruntime/internal/ecserr"
	"github.com/ashgrove/ecsruntime/internal/serialize"
)

// DeltaSerializer is a stateful wire encoder: its first Serialize call
// produces a full snapshot while syncing shadow state; every subsequent
// call produces a delta against the shadows recorded by the previous call.
type DeltaSerializer struct {
	world       *World
	established bool

	membership map[string]map[Entity]bool
	scalars    map[string]map[Entity]float64
	subarrays  map[string]map[Entity][]float64
	faux       map[string]map[Entity]any
}

// NewDeltaSerializer creates a shadow-tracking serializer bound to world.
func NewDeltaSerializer(world *World) *DeltaSerializer {
	return &DeltaSerializer{
		world:      world,
		membership: make(map[string]map[Entity]bool),
		scalars:    make(map[string]map[Entity]float64),
		subarrays:  make(map[string]map[Entity][]float64),
		faux:       make(map[string]map[Entity]any),
	}
}

func scalarKey(componentType, prop string) string { return componentType + "\x00" + prop }

func (d *DeltaSerializer) newlyAdded(componentType string, eid Entity) bool {
	m, ok := d.membership[componentType]
	if !ok {
		return true
	}
	return !m[eid]
}

func (d *DeltaSerializer) syncTagMembership(componentType string, members []Entity) {
	m := make(map[Entity]bool, len(members))
	for _, e := range members {
		m[e] = true
	}
	d.membership[componentType] = m
}

func (d *DeltaSerializer) scalarShadow(componentType, prop string, eid Entity) (float64, bool) {
	key := scalarKey(componentType, prop)
	m, ok := d.scalars[key]
	if !ok {
		return 0, false
	}
	v, ok := m[eid]
	return v, ok
}

func (d *DeltaSerializer) setScalarShadow(componentType, prop string, eid Entity, v float64) {
	key := scalarKey(componentType, prop)
	m, ok := d.scalars[key]
	if !ok {
		m = make(map[Entity]float64)
		d.scalars[key] = m
	}
	m[eid] = v
	d.trackMembership(componentType, eid)
}

func (d *DeltaSerializer) subarrayShadow(componentType, prop string, eid Entity, i int) (float64, bool) {
	key := scalarKey(componentType, prop)
	m, ok := d.subarrays[key]
	if !ok {
		return 0, false
	}
	slice, ok := m[eid]
	if !ok || i >= len(slice) {
		return 0, false
	}
	return slice[i], true
}

func (d *DeltaSerializer) setSubarrayShadow(componentType, prop string, eid Entity, i int, v float64) {
	key := scalarKey(componentType, prop)
	m, ok := d.subarrays[key]
	if !ok {
		m = make(map[Entity][]float64)
		d.subarrays[key] = m
	}
	slice, ok := m[eid]
	if !ok {
		slice = make([]float64, i+1)
	} else if len(slice) <= i {
		grown := make([]float64, i+1)
		copy(grown, slice)
		slice = grown
	}
	slice[i] = v
	m[eid] = slice
	d.trackMembership(componentType, eid)
}

func (d *DeltaSerializer) fauxChanged(componentType, prop string, eid Entity, v any) bool {
	key := scalarKey(componentType, prop)
	m, ok := d.faux[key]
	if !ok {
		return true
	}
	prev, ok := m[eid]
	if !ok {
		return true
	}
	if isComparablePrimitive(v) {
		return prev != v
	}
	return !reflect.DeepEqual(prev, v)
}

func (d *DeltaSerializer) setFauxShadow(componentType, prop string, eid Entity, v any) {
	key := scalarKey(componentType, prop)
	m, ok := d.faux[key]
	if !ok {
		m = make(map[Entity]any)
		d.faux[key] = m
	}
	m[eid] = cloneFaux(v)
	d.trackMembership(componentType, eid)
}

func (d *DeltaSerializer) trackMembership(componentType string, eid Entity) {
	m, ok := d.membership[componentType]
	if !ok {
		m = make(map[Entity]bool)
		d.membership[componentType] = m
	}
	m[eid] = true
}

func isComparablePrimitive(v any) bool {
	switch v.(type) {
	case nil, string, float64, bool, int:
		return true
	default:
		return false
	}
}

func cloneFaux(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = cloneFaux(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = cloneFaux(vv)
		}
		return out
	default:
		return v
	}
}

// Serialize returns a full snapshot on first call, and a delta against the
// previously captured shadow state on every subsequent call. maxBytes, if
// greater than zero, bounds the produced buffer; exceeding it is an error
// rather than a silently truncated wire payload.
func (d *DeltaSerializer) Serialize(maxBytes int) ([]byte, error) {
	wr := serialize.NewWriter()
	wr.Uint16(serialize.Version)
	if !d.established {
		wr.Uint8(uint8(serialize.ModeFull))
		writeWorldHeader(wr, d.world)
		writeEntitiesBlock(wr, d.world, d)
		d.established = true
	} else {
		wr.Uint8(uint8(serialize.ModeDelta))
		writeWorldHeader(wr, d.world)
		writeEntitiesBlock(wr, d.world, d)
	}
	buf := wr.Bytes()
	if maxBytes > 0 && len(buf) > maxBytes {
		return nil, fmt.Errorf("delta serialize: %d bytes exceeds max %d: %w", len(buf), maxBytes, ecserr.ErrDeltaTooLarge)
	}
	return buf, nil
}

// Reset discards all shadow state; the next Serialize call produces a full
// snapshot again.
func (d *DeltaSerializer) Reset() {
	d.established = false
	d.membership = make(map[string]map[Entity]bool)
	d.scalars = make(map[string]map[Entity]float64)
	d.subarrays = make(map[string]map[Entity][]float64)
	d.faux = make(map[string]map[Entity]any)
}

// ApplyDelta patches world from a delta (or full) buffer produced by a
// DeltaSerializer for the same schema layout. Whether world has a baseline
// to delta against is tracked on world itself, not passed in by the caller:
// it returns ErrApplyDeltaWithoutBaseline if given a delta buffer before
// ApplyDelta has applied a full buffer to this world. A snapshot loaded
// through DeserializeFull does not count as a baseline.
func ApplyDelta(buf []byte, world *World) error {
	rd := serialize.NewReader(buf)
	version, err := rd.Uint16()
	if err != nil {
		return err
	}
	if version != serialize.Version {
		return ecserr.ErrVersionMismatch
	}
	modeByte, err := rd.Uint8()
	if err != nil {
		return err
	}
	if serialize.Mode(modeByte) == serialize.ModeDelta && !world.deltaBaselineEstablished {
		return ecserr.ErrApplyDeltaWithoutBaseline
	}
	if err := readWorldHeaderAndEntities(world, rd); err != nil {
		return err
	}
	world.deltaBaselineEstablished = true
	return nil
}
