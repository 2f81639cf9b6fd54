package ecs

import (
	"encoding/json"
	"reflect"
	"strconv"
	"unicode/utf16"
)

// Set is the wire-level equivalent of a JS Set: an unordered collection of
// unique comparable values, lifted through the replacer/reviver pair the
// same way a Map is.
type Set[T comparable] map[T]struct{}

// NewSet builds a Set from the given items.
func NewSet[T comparable](items ...T) Set[T] {
	s := make(Set[T], len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

func (s Set[T]) setValues() []any {
	out := make([]any, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	return out
}

// wireSet is implemented by every Set[T] instantiation, letting the
// replacer recognize a Set without knowing its element type.
type wireSet interface {
	setValues() []any
}

// jsonReplace walks v the way the source language's JSON.stringify replacer
// does, lifting a non-string-keyed map to a {dataType:"Map", value:[[k,v]..]}
// envelope and a Set[T] to {dataType:"Set", value:[...]}. A string-keyed
// map passes through as a plain object.
func jsonReplace(v any) any {
	if v == nil {
		return nil
	}
	if ws, ok := v.(wireSet); ok {
		return map[string]any{"dataType": "Set", "value": ws.setValues()}
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			out := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				out[iter.Key().String()] = jsonReplace(iter.Value().Interface())
			}
			return out
		}
		pairs := make([][2]any, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			pairs = append(pairs, [2]any{jsonReplace(iter.Key().Interface()), jsonReplace(iter.Value().Interface())})
		}
		return map[string]any{"dataType": "Map", "value": pairs}
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = jsonReplace(rv.Index(i).Interface())
		}
		return out
	default:
		return v
	}
}

// jsonRevive is jsonReplace's mirror image on the decode side: it restores a
// {dataType:"Map"|"Set", value:...} envelope to a Go map/Set value.
func jsonRevive(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if dt, _ := val["dataType"].(string); dt == "Map" {
			pairs, _ := val["value"].([]any)
			out := make(map[any]any, len(pairs))
			for _, p := range pairs {
				if pair, ok := p.([]any); ok && len(pair) == 2 {
					out[jsonRevive(pair[0])] = jsonRevive(pair[1])
				}
			}
			return out
		}
		if dt, _ := val["dataType"].(string); dt == "Set" {
			items, _ := val["value"].([]any)
			out := make(Set[any], len(items))
			for _, it := range items {
				out[jsonRevive(it)] = struct{}{}
			}
			return out
		}
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = jsonRevive(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = jsonRevive(vv)
		}
		return out
	default:
		return v
	}
}

// isPrimitive reports whether v is a wire primitive, as opposed to an
// object/array/Map/Set that must recurse inline or route out-of-band.
func isPrimitive(v any) bool {
	switch v.(type) {
	case nil, string, float64, bool:
		return true
	default:
		return false
	}
}

// isShallowSimpleObject reports whether every value in m is a wire
// primitive, the condition under which an object faux value recurses
// inline instead of routing to the complex buffer.
func isShallowSimpleObject(m map[string]any) bool {
	for _, v := range m {
		if !isPrimitive(v) {
			return false
		}
	}
	return true
}

// isPrimitiveArray reports whether every element of a is a wire primitive.
func isPrimitiveArray(a []any) bool {
	for _, v := range a {
		if !isPrimitive(v) {
			return false
		}
	}
	return true
}

// complexAccumulator collects faux values that could not be expressed
// inline (non-shallow-simple objects, arrays of non-primitives, Maps,
// Sets, ...), keyed by entity, then component type, then property name.
// It is built fresh for every entities-block write and flushed to the
// trailing complex-data buffer.
type complexAccumulator map[Entity]map[string]map[string]any

func (c complexAccumulator) record(eid Entity, componentType, propKey string, v any) {
	byComp, ok := c[eid]
	if !ok {
		byComp = make(map[string]map[string]any)
		c[eid] = byComp
	}
	byProp, ok := byComp[componentType]
	if !ok {
		byProp = make(map[string]any)
		byComp[componentType] = byProp
	}
	byProp[propKey] = v
}

// marshalComplexBuffer projects the accumulator through jsonReplace,
// marshals it, and truncates each UTF-16 code unit of the result to a
// single byte -- the same lossy encoding the wire format's string payload
// uses, extended here to the whole complex-data document.
func marshalComplexBuffer(acc complexAccumulator) []byte {
	if len(acc) == 0 {
		return nil
	}
	transformed := make(map[string]map[string]map[string]any, len(acc))
	for eid, byComp := range acc {
		compMap := make(map[string]map[string]any, len(byComp))
		for comp, byProp := range byComp {
			propMap := make(map[string]any, len(byProp))
			for prop, v := range byProp {
				propMap[prop] = jsonReplace(v)
			}
			compMap[comp] = propMap
		}
		transformed[strconv.FormatUint(uint64(eid), 10)] = compMap
	}
	raw, err := json.Marshal(transformed)
	if err != nil {
		return nil
	}
	return truncateUTF16ToBytes(string(raw))
}

// unmarshalComplexBuffer is marshalComplexBuffer's mirror image: it treats
// buf as the truncated-UTF-16 JSON text produced on the write side (valid
// whenever the original document was restricted to the Latin-1 range, as
// every wire-produced complex document is) and revives Map/Set envelopes
// back to Go values.
func unmarshalComplexBuffer(buf []byte) (map[Entity]map[string]map[string]any, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	var raw map[string]map[string]map[string]any
	if err := json.Unmarshal(buf, &raw); err != nil {
		return nil, err
	}
	out := make(map[Entity]map[string]map[string]any, len(raw))
	for eidStr, byComp := range raw {
		eidU, err := strconv.ParseUint(eidStr, 10, 32)
		if err != nil {
			continue
		}
		compOut := make(map[string]map[string]any, len(byComp))
		for comp, byProp := range byComp {
			propOut := make(map[string]any, len(byProp))
			for prop, v := range byProp {
				propOut[prop] = jsonRevive(v)
			}
			compOut[comp] = propOut
		}
		out[Entity(eidU)] = compOut
	}
	return out, nil
}

func truncateUTF16ToBytes(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, len(units))
	for i, u := range units {
		out[i] = byte(u)
	}
	return out
}
