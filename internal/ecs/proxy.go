package ecs

import "github.com/ashgrove/ecsruntime/internal/ecserr"

// ComponentView is a read/write accessor bound to one entity's slot in one
// component's store. Property enumeration exposes every declared column
// name plus the reserved "type" key.
type ComponentView struct {
	world  *World
	store  *Store
	schema *Schema
	eid    Entity
}

// View returns a ComponentView over schema's store for eid. It does not
// check membership; callers that need that guarantee should check
// HasComponent first.
func (w *World) View(schema *Schema, eid Entity) ComponentView {
	st := w.storeByType[schema.Type]
	return ComponentView{world: w, store: st, schema: schema, eid: eid}
}

// Handle returns a schema-scoped accessor with no bound entity, used to
// query the store layout independent of any one row.
func (w *World) Handle(schema *Schema) *Store {
	return w.storeByType[schema.Type]
}

// Keys returns the view's property names in stable schema order, plus the
// reserved "type" key.
func (v ComponentView) Keys() []string {
	if v.store == nil {
		return []string{"type"}
	}
	keys := make([]string, 0, len(v.store.Columns())+1)
	for _, c := range v.store.Columns() {
		keys = append(keys, c.Name())
	}
	keys = append(keys, "type")
	return keys
}

// Get reads property name for this view's entity. Boolean-typed columns
// (a u8 with a Default of bool false/true) are projected to native bool.
func (v ComponentView) Get(name string) (any, error) {
	if name == "type" {
		return v.schema.Type, nil
	}
	if v.store == nil {
		return nil, ecserr.ErrUnknownProperty
	}
	for _, c := range v.store.Columns() {
		if c.Name() != name {
			continue
		}
		switch col := c.(type) {
		case *ScalarColumn:
			f := v.propertyDescriptor(name)
			val := col.GetFloat64(v.eid)
			if _, isBool := f.Default.(bool); isBool {
				return val != 0, nil
			}
			return val, nil
		case *SubarrayColumn:
			out := make([]float64, col.Length())
			for i := range out {
				out[i] = col.GetElement(v.eid, i)
			}
			return out, nil
		case *FauxColumn:
			val, _ := col.Get(v.eid)
			return val, nil
		}
	}
	return nil, ecserr.ErrUnknownProperty
}

// Set writes property name for this view's entity.
func (v ComponentView) Set(name string, val any) error {
	if name == "type" || v.store == nil {
		return ecserr.ErrUnknownProperty
	}
	return setColumnValue(v.store, name, v.eid, val)
}

func (v ComponentView) propertyDescriptor(name string) PropertyDescriptor {
	for _, p := range v.schema.Properties {
		if p.Name == name {
			return p
		}
	}
	return PropertyDescriptor{}
}
