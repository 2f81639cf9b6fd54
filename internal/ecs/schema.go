package ecs

import (
	"sort"
	"sync"

	"github.com/ashgrove/ecsruntime/internal/ecserr"
)

// PropertyKind classifies how a component property is stored.
type PropertyKind uint8

const (
	KindScalar PropertyKind = iota
	KindSubarray
	KindFaux
)

// PropertyDescriptor describes one property of a component schema.
type PropertyDescriptor struct {
	Name    string
	Kind    PropertyKind
	Elem    ElementType // meaningful for KindScalar / KindSubarray
	Length  int         // subarray element count; unused otherwise
	Default any         // zero value override for scalar; default for faux
}

// Schema is a globally-unique, process-wide component description. Schemas
// are created via ComponentBuilder and are frozen -- assigned a stable Index
// -- the moment the first World is created.
type Schema struct {
	Type       string
	Index      int
	Properties []PropertyDescriptor
	Validator  Validator
	IsTag      bool
}

// Validator is a pluggable override-validation boundary: any JSON-schema
// library, code-generated validator, or (as this repo ships) a Lua predicate
// engine can satisfy it.
type Validator interface {
	Validate(overrides map[string]any) (ok bool, errs []string)
}

// JSONProjector is the toJSON() hook from the source language: an override
// value that knows how to present itself for validation and wire storage
// implements this instead of being passed through as an opaque struct.
type JSONProjector interface {
	ToJSON() any
}

// projectOverrides replaces any override value implementing JSONProjector
// with its projection, ahead of validation. Non-projecting values pass
// through unchanged; the input map is never mutated in place.
func projectOverrides(overrides map[string]any) map[string]any {
	projected := make(map[string]any, len(overrides))
	for k, v := range overrides {
		if p, ok := v.(JSONProjector); ok {
			projected[k] = p.ToJSON()
			continue
		}
		projected[k] = v
	}
	return projected
}

// noopValidator accepts everything; it is the default when a schema is
// built without an explicit validator.
type noopValidator struct{}

func (noopValidator) Validate(map[string]any) (bool, []string) { return true, nil }

type registry struct {
	mu     sync.Mutex
	byType map[string]*Schema
	order  []*Schema
	frozen bool
}

var globalRegistry = &registry{byType: make(map[string]*Schema)}

// ComponentBuilder is the language-neutral stand-in for the host language's
// decorator/metadata syntax: a fluent builder that produces and registers a
// Schema.
type ComponentBuilder struct {
	schema *Schema
	err    error
}

// NewComponentBuilder starts building a schema for the given unique type
// name.
func NewComponentBuilder(typeName string) *ComponentBuilder {
	return &ComponentBuilder{schema: &Schema{Type: typeName}}
}

// Field declares a typed scalar property.
func (b *ComponentBuilder) Field(name string, elem ElementType, def any) *ComponentBuilder {
	b.schema.Properties = append(b.schema.Properties, PropertyDescriptor{
		Name: name, Kind: KindScalar, Elem: elem, Default: def,
	})
	return b
}

// SubArray declares a fixed-length typed subarray property.
func (b *ComponentBuilder) SubArray(name string, elem ElementType, length int) *ComponentBuilder {
	b.schema.Properties = append(b.schema.Properties, PropertyDescriptor{
		Name: name, Kind: KindSubarray, Elem: elem, Length: length,
	})
	return b
}

// Faux declares an eid-keyed property for values the columnar layout cannot
// express (object/string/nullable).
func (b *ComponentBuilder) Faux(name string, def any) *ComponentBuilder {
	b.schema.Properties = append(b.schema.Properties, PropertyDescriptor{
		Name: name, Kind: KindFaux, Default: def,
	})
	return b
}

// Tag marks this schema as a tag component: no properties, membership
// encoded solely in the entity bitmask.
func (b *ComponentBuilder) Tag() *ComponentBuilder {
	b.schema.IsTag = true
	return b
}

// WithValidator attaches a pluggable validator.
func (b *ComponentBuilder) WithValidator(v Validator) *ComponentBuilder {
	b.schema.Validator = v
	return b
}

// Build finalizes and registers the schema in the process-level registry.
// It returns ErrDefineAfterFreeze if any world has already been created.
func (b *ComponentBuilder) Build() (*Schema, error) {
	if b.schema.Validator == nil {
		b.schema.Validator = noopValidator{}
	}
	if b.schema.IsTag && len(b.schema.Properties) > 0 {
		b.schema.IsTag = false
	}
	return registerSchema(b.schema)
}

func registerSchema(s *Schema) (*Schema, error) {
	if s == nil {
		return nil, ecserr.ErrComponentNull
	}
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	if globalRegistry.frozen {
		return nil, ecserr.ErrDefineAfterFreeze
	}
	if existing, ok := globalRegistry.byType[s.Type]; ok {
		return existing, nil
	}
	globalRegistry.byType[s.Type] = s
	globalRegistry.order = append(globalRegistry.order, s)
	return s, nil
}

// freezeRegistry assigns stable indices sorted by type name and prevents
// further registration. Safe to call repeatedly; only the first call has an
// effect.
func freezeRegistry() {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	if globalRegistry.frozen {
		return
	}
	sort.Slice(globalRegistry.order, func(i, j int) bool {
		return globalRegistry.order[i].Type < globalRegistry.order[j].Type
	})
	for i, s := range globalRegistry.order {
		s.Index = i
	}
	globalRegistry.frozen = true
}

// schemaByType looks up a registered schema by its type name.
func schemaByType(typeName string) (*Schema, bool) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	s, ok := globalRegistry.byType[typeName]
	return s, ok
}

// registeredSchemasSnapshot returns the frozen, index-ordered schema list.
// Each World snapshots this once at creation.
func registeredSchemasSnapshot() []*Schema {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	out := make([]*Schema, len(globalRegistry.order))
	copy(out, globalRegistry.order)
	return out
}

// resetGlobalRegistryForTest is a test-only escape hatch: production code
// never un-freezes the registry, but package tests construct multiple
// independent worlds across test cases and must not leak schemas between
// them.
func resetGlobalRegistryForTest() {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.byType = make(map[string]*Schema)
	globalRegistry.order = nil
	globalRegistry.frozen = false
}
