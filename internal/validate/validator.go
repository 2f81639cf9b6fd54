// Package validate provides concrete implementations of the ecs.Validator
// boundary: a pluggable predicate hook a component schema may attach so
// AddComponent can reject malformed overrides before they reach storage.
package validate

// Validator mirrors ecs.Validator so callers can build one without
// importing the ecs package directly; ecs.Schema.Validator accepts any
// type satisfying this shape.
type Validator interface {
	Validate(overrides map[string]any) (ok bool, errs []string)
}

// None is the default validator: it accepts every override set.
type None struct{}

func (None) Validate(map[string]any) (bool, []string) { return true, nil }
