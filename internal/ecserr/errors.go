// Package ecserr defines the sentinel error taxonomy shared across the ECS
// runtime, its serializer, and its validator boundary.
package ecserr

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityExceeded is returned when an entity allocation would exceed
	// the world's declared size.
	ErrCapacityExceeded = errors.New("ecs: entity capacity exceeded")

	// ErrEntityUndefined is returned when an operation receives the zero
	// entity reference.
	ErrEntityUndefined = errors.New("ecs: entity undefined")

	// ErrEntityMissing is returned when an operation targets an entity that
	// is not present in the world's entity sparse set.
	ErrEntityMissing = errors.New("ecs: entity missing")

	// ErrComponentNull is returned when a nil schema is registered or used.
	ErrComponentNull = errors.New("ecs: component schema is nil")

	// ErrUnsupportedTypeTag is returned when the decoder reads a faux value
	// type tag it does not know.
	ErrUnsupportedTypeTag = errors.New("ecs: unsupported type tag")

	// ErrVersionMismatch is returned when a decoder reads a serializer
	// version it does not support.
	ErrVersionMismatch = errors.New("ecs: serializer version mismatch")

	// ErrApplyDeltaWithoutBaseline is returned by ApplyDelta when the buffer's
	// mode byte is delta but the decoder never established a baseline.
	ErrApplyDeltaWithoutBaseline = errors.New("ecs: apply delta without baseline")

	// ErrDeltaTooLarge is returned by DeltaSerializer.Serialize when the
	// produced buffer exceeds the caller's requested maxBytes.
	ErrDeltaTooLarge = errors.New("ecs: delta serialize exceeds max bytes")

	// ErrDefineAfterFreeze is returned when a component or system is defined
	// after the process-level registry has been frozen by the first world.
	ErrDefineAfterFreeze = errors.New("ecs: define after registry freeze")

	// ErrQueryExecuted names a query that was mutated after being executed.
	// Queries in this module are immutable QueryInstance values and no
	// function returns this error.
	ErrQueryExecuted = errors.New("ecs: query already executed")

	// ErrUnknownComponent is returned when a query or system names a
	// component type that was never registered.
	ErrUnknownComponent = errors.New("ecs: unknown component type")

	// ErrUnknownProperty is returned when a proxy read or write names a
	// property that is not part of the component's schema.
	ErrUnknownProperty = errors.New("ecs: unknown property")
)

// ValidationError reports that a validator rejected a set of component
// overrides. It carries the schema type name, the rejected overrides, and
// the individual validation error messages so a caller can inspect exactly
// which property failed.
type ValidationError struct {
	SchemaType string
	Overrides  map[string]any
	Errors     []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ecs: validation failed for %s: %v", e.SchemaType, e.Errors)
}

// Unwrap allows errors.Is(err, ecserr.ErrValidation) style checks without
// exposing a singleton instance that would swallow the structured fields.
func (e *ValidationError) Unwrap() error { return errValidationSentinel }

var errValidationSentinel = errors.New("ecs: validation failed")

// ErrValidation is the sentinel target for errors.Is(err, ecserr.ErrValidation)
// against a *ValidationError.
var ErrValidation = errValidationSentinel
