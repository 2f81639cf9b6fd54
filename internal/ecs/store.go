package ecs

import (
	"encoding/binary"
	"math"
)

// Column is a single serialized slot of storage per entity for one property
// of a component.
type Column interface {
	Name() string
	Kind() PropertyKind
	Store() *Store
	resize(newSize int)
	resetFor(e Entity)
}

// Store is the owning container for one component's columns in one world.
type Store struct {
	schema  *Schema
	size    int
	columns []Column
	isTag   bool

	// subBufs holds one shared backing buffer per element type, sized to fit
	// every subarray column of that type for every entity, per spec 4.1.
	subBufs map[ElementType][]byte
	// subStride is the per-entity byte stride of the shared buffer for a
	// given element type (sum of all subarray columns of that type).
	subStride map[ElementType]int
}

// ScalarColumn is a dense column of a fixed numeric element type, one
// element per entity.
type ScalarColumn struct {
	name  string
	elem  ElementType
	buf   []byte
	isEid bool
	store *Store
}

func (c *ScalarColumn) Name() string        { return c.name }
func (c *ScalarColumn) Kind() PropertyKind  { return KindScalar }
func (c *ScalarColumn) Store() *Store       { return c.store }
func (c *ScalarColumn) IsEidType() bool     { return c.isEid }
func (c *ScalarColumn) Elem() ElementType   { return c.elem }

func (c *ScalarColumn) resize(newSize int) {
	stride := c.elem.ByteSize()
	grown := make([]byte, newSize*stride)
	copy(grown, c.buf)
	c.buf = grown
}

func (c *ScalarColumn) resetFor(e Entity) {
	stride := c.elem.ByteSize()
	off := int(e) * stride
	zeroBytes(c.buf[off : off+stride])
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// GetFloat64 returns the entity's scalar value widened to float64.
func (c *ScalarColumn) GetFloat64(e Entity) float64 {
	stride := c.elem.ByteSize()
	off := int(e) * stride
	return decodeFloat64(c.elem, c.buf[off:off+stride])
}

// SetFloat64 writes v, narrowed to the column's element type.
func (c *ScalarColumn) SetFloat64(e Entity, v float64) {
	stride := c.elem.ByteSize()
	off := int(e) * stride
	encodeFloat64(c.elem, c.buf[off:off+stride], v)
}

// SubarrayColumn is a fixed-length L-element slice per entity, backed by a
// buffer shared with sibling subarray columns of the same element type.
type SubarrayColumn struct {
	name       string
	elem       ElementType
	length     int
	indexType  ElementType
	indexBytes int
	byteOffset int // offset within the shared per-entity stride, in bytes
	store      *Store
}

func (c *SubarrayColumn) Name() string       { return c.name }
func (c *SubarrayColumn) Kind() PropertyKind { return KindSubarray }
func (c *SubarrayColumn) Store() *Store      { return c.store }
func (c *SubarrayColumn) Elem() ElementType  { return c.elem }
func (c *SubarrayColumn) Length() int        { return c.length }
func (c *SubarrayColumn) IndexType() ElementType { return c.indexType }
func (c *SubarrayColumn) IndexBytes() int    { return c.indexBytes }

func (c *SubarrayColumn) resize(int) {} // handled at the Store level, shared buffer

func (c *SubarrayColumn) resetFor(e Entity) {
	buf := c.store.subBufs[c.elem]
	stride := c.store.subStride[c.elem]
	elemBytes := c.elem.ByteSize()
	base := int(e)*stride + c.byteOffset
	zeroBytes(buf[base : base+c.length*elemBytes])
}

// GetElement returns element i (0-based) of entity e's slice, widened to
// float64.
func (c *SubarrayColumn) GetElement(e Entity, i int) float64 {
	buf := c.store.subBufs[c.elem]
	stride := c.store.subStride[c.elem]
	elemBytes := c.elem.ByteSize()
	base := int(e)*stride + c.byteOffset + i*elemBytes
	return decodeFloat64(c.elem, buf[base:base+elemBytes])
}

// SetElement writes element i of entity e's slice.
func (c *SubarrayColumn) SetElement(e Entity, i int, v float64) {
	buf := c.store.subBufs[c.elem]
	stride := c.store.subStride[c.elem]
	elemBytes := c.elem.ByteSize()
	base := int(e)*stride + c.byteOffset + i*elemBytes
	encodeFloat64(c.elem, buf[base:base+elemBytes], v)
}

// FauxColumn is a keyed eid -> arbitrary value mapping for properties the
// columnar layout cannot express.
type FauxColumn struct {
	name   string
	values map[Entity]any
	store  *Store
}

func (c *FauxColumn) Name() string       { return c.name }
func (c *FauxColumn) Kind() PropertyKind { return KindFaux }
func (c *FauxColumn) Store() *Store      { return c.store }

func (c *FauxColumn) resize(int) {}

func (c *FauxColumn) resetFor(e Entity) { delete(c.values, e) }

func (c *FauxColumn) Get(e Entity) (any, bool) { v, ok := c.values[e]; return v, ok }
func (c *FauxColumn) Set(e Entity, v any)       { c.values[e] = v }

// CreateStore builds the columnar layout for schema at the given world size.
func CreateStore(schema *Schema, size int) *Store {
	st := &Store{
		schema:    schema,
		size:      size,
		isTag:     schema.IsTag,
		subBufs:   make(map[ElementType][]byte),
		subStride: make(map[ElementType]int),
	}
	if st.isTag {
		return st
	}

	// First pass: compute per-element-type stride across all subarray
	// properties so every sibling column can be offset within one buffer.
	subCursor := make(map[ElementType]int)
	for _, p := range schema.Properties {
		if p.Kind == KindSubarray {
			subCursor[p.Elem] += p.Length * p.Elem.ByteSize()
		}
	}
	for elem, stride := range subCursor {
		st.subStride[elem] = stride
		st.subBufs[elem] = make([]byte, roundUp4(stride*size))
	}

	offsetCursor := make(map[ElementType]int)
	for _, p := range schema.Properties {
		switch p.Kind {
		case KindScalar:
			st.columns = append(st.columns, &ScalarColumn{
				name: p.Name, elem: p.Elem, isEid: p.Elem == ElemEid,
				buf: make([]byte, size*p.Elem.ByteSize()), store: st,
			})
		case KindSubarray:
			off := offsetCursor[p.Elem]
			offsetCursor[p.Elem] += p.Length * p.Elem.ByteSize()
			st.columns = append(st.columns, &SubarrayColumn{
				name: p.Name, elem: p.Elem, length: p.Length,
				indexType:  indexTypeFor(p.Length),
				indexBytes: indexTypeFor(p.Length).ByteSize(),
				byteOffset: off, store: st,
			})
		case KindFaux:
			st.columns = append(st.columns, &FauxColumn{
				name: p.Name, values: make(map[Entity]any), store: st,
			})
		}
	}
	return st
}

// Columns returns the store's flattened leaf columns in stable schema order.
func (s *Store) Columns() []Column { return s.columns }

// IsTagStore reports whether this store has no columns.
func (s *Store) IsTagStore() bool { return s.isTag }

// Schema returns the owning schema.
func (s *Store) Schema() *Schema { return s.schema }

// Size returns the store's entity capacity.
func (s *Store) Size() int { return s.size }

// ResetStore zero-fills all columns.
func (s *Store) ResetStore() {
	for _, c := range s.columns {
		switch col := c.(type) {
		case *ScalarColumn:
			zeroBytes(col.buf)
		case *FauxColumn:
			col.values = make(map[Entity]any)
		}
	}
	for elem, buf := range s.subBufs {
		zeroBytes(buf)
		_ = elem
	}
}

// ResetStoreFor clears only eid's slot in each column; a no-op on a tag
// store.
func (s *Store) ResetStoreFor(e Entity) {
	if s.isTag {
		return
	}
	for _, c := range s.columns {
		c.resetFor(e)
	}
}

// ResizeStore reallocates every column to newSize, preserving existing data.
func (s *Store) ResizeStore(newSize int) {
	if s.isTag {
		s.size = newSize
		return
	}
	for elem, oldBuf := range s.subBufs {
		stride := s.subStride[elem]
		grown := make([]byte, roundUp4(stride*newSize))
		copy(grown, oldBuf)
		s.subBufs[elem] = grown
	}
	for _, c := range s.columns {
		c.resize(newSize)
	}
	s.size = newSize
}

func decodeFloat64(elem ElementType, b []byte) float64 {
	switch elem {
	case ElemI8:
		return float64(int8(b[0]))
	case ElemU8, ElemU8Clamped:
		return float64(b[0])
	case ElemI16:
		return float64(int16(binary.BigEndian.Uint16(b)))
	case ElemU16:
		return float64(binary.BigEndian.Uint16(b))
	case ElemI32:
		return float64(int32(binary.BigEndian.Uint32(b)))
	case ElemU32, ElemEid:
		return float64(binary.BigEndian.Uint32(b))
	case ElemF32:
		bits := binary.BigEndian.Uint32(b)
		return float64(math.Float32frombits(bits))
	case ElemF64:
		bits := binary.BigEndian.Uint64(b)
		return math.Float64frombits(bits)
	default:
		return 0
	}
}

func encodeFloat64(elem ElementType, b []byte, v float64) {
	switch elem {
	case ElemI8:
		b[0] = byte(int8(v))
	case ElemU8:
		b[0] = byte(uint8(v))
	case ElemU8Clamped:
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		b[0] = byte(uint8(v))
	case ElemI16:
		binary.BigEndian.PutUint16(b, uint16(int16(v)))
	case ElemU16:
		binary.BigEndian.PutUint16(b, uint16(v))
	case ElemI32:
		binary.BigEndian.PutUint32(b, uint32(int32(v)))
	case ElemU32, ElemEid:
		binary.BigEndian.PutUint32(b, uint32(v))
	case ElemF32:
		binary.BigEndian.PutUint32(b, math.Float32bits(float32(v)))
	case ElemF64:
		binary.BigEndian.PutUint64(b, math.Float64bits(v))
	}
}
