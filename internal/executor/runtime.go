package executor

import (
	"context"
)

// Runtime is the host integration surface used by the Executor for field
// resolution, depth-wise batching, abstract type resolution and leaf
// serialization.
//
// The Executor runs breadth-first. At each depth it drains synchronous fields
// through ResolveSync, then calls BatchResolveAsync once with every async task
// collected at that depth. The next depth does not begin until the batch
// returns. ResolveSync is never invoked for fields marked async.
//
// Errors returned from any method become located GraphQL errors, and a null
// in a Non-Null position propagates to the nearest nullable ancestor.
// Implementations must be safe for concurrent use and must not mutate source
// or args.
type Runtime interface {
	// ResolveSync resolves a field with Async == false. Return (nil, nil) to
	// produce null for nullable fields.
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// BatchResolveAsync resolves one execution depth of async field tasks.
	// It must return exactly one result per task, in task order, and report
	// failures per element rather than failing the whole batch.
	BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult

	// ResolveType returns the concrete object type name for a value of an
	// interface or union type.
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// SerializeLeafValue converts a scalar or enum value to a JSON-safe Go
	// value. Enums serialize to their symbolic name.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

// SubscriptionRuntime is a Runtime that can open source event streams for
// fields of the subscription root type.
type SubscriptionRuntime interface {
	Runtime

	// Subscribe returns the source stream of a root subscription field. The
	// channel must be closed once ctx is done or the source is exhausted.
	Subscribe(ctx context.Context, objectType, field string, args map[string]any) (<-chan any, error)
}

type AsyncResolveTask struct {
	// ObjectType is the parent GraphQL object type name for the field.
	ObjectType string
	// Field is the GraphQL field name to resolve.
	Field string
	// Source is the parent object value (the root value for root fields).
	Source any
	// Args are the field arguments, coerced to Go values per the schema.
	Args map[string]any
}

type AsyncResolveResult struct {
	// Value is the resolved raw value prior to completion, or nil on error.
	Value any
	// Error contains a failure specific to this element; other elements in the
	// same batch are unaffected.
	Error error
}
