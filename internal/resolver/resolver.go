// Package resolver binds resolver functions to schema fields and exposes
// them as an executor runtime.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hanpama/gqlgate/internal/schema"
)

// ResolveFunc resolves one field. source is the parent value; for fields of
// the subscription root type it is the event published on the source stream.
type ResolveFunc func(ctx context.Context, source any, args map[string]any) (any, error)

// SubscribeFunc opens the source event stream of a subscription field. The
// returned channel must be closed once ctx is done. It runs on the
// connection's dispatch loop, so it must return promptly and produce events
// from its own goroutine.
type SubscribeFunc func(ctx context.Context, args map[string]any) (<-chan any, error)

var (
	// ErrUnknownType is returned when a Map names a type the schema lacks.
	ErrUnknownType = errors.New("type is not defined in the schema")
	// ErrUnknownField is returned when a Map registers a field its type lacks.
	ErrUnknownField = errors.New("field is not defined on type")
	// ErrNotSubscriptionType is returned when a subscriber is registered on
	// a type other than the subscription root.
	ErrNotSubscriptionType = errors.New("type is not the subscription root type")
)

// Map is the set of resolvers and subscribers for one object type.
type Map struct {
	name        string
	fields      map[string]ResolveFunc
	subscribers map[string]SubscribeFunc
}

// NewMap returns an empty Map for typeName.
func NewMap(typeName string) *Map {
	return &Map{
		name:        typeName,
		fields:      make(map[string]ResolveFunc),
		subscribers: make(map[string]SubscribeFunc),
	}
}

// Name returns the type the map targets.
func (m *Map) Name() string { return m.name }

// Field registers the resolver for field. A later registration replaces an
// earlier one.
func (m *Map) Field(field string, fn ResolveFunc) *Map {
	m.fields[field] = fn
	return m
}

// Subscription registers the source stream for field.
func (m *Map) Subscription(field string, fn SubscribeFunc) *Map {
	m.subscribers[field] = fn
	return m
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// check validates m against sch without touching either.
func (m *Map) check(sch *schema.Schema) error {
	t := sch.Types[m.name]
	if t == nil {
		return fmt.Errorf("resolver: %w: %s", ErrUnknownType, m.name)
	}
	if t.Kind != schema.TypeKindObject {
		return fmt.Errorf("resolver: %s is %s, not an object type", m.name, t.Kind)
	}
	for _, name := range sortedKeys(m.fields) {
		if t.Field(name) == nil {
			return fmt.Errorf("resolver: %w: %s.%s", ErrUnknownField, m.name, name)
		}
	}
	if len(m.subscribers) > 0 && m.name != sch.SubscriptionType {
		return fmt.Errorf("resolver: %w: %s", ErrNotSubscriptionType, m.name)
	}
	for _, name := range sortedKeys(m.subscribers) {
		if t.Field(name) == nil {
			return fmt.Errorf("resolver: %w: %s.%s", ErrUnknownField, m.name, name)
		}
	}
	return nil
}

// install puts the functions of a checked map into rt. Fields with a
// resolver are marked async so the executor batches them.
func (m *Map) install(sch *schema.Schema, rt *Runtime) {
	t := sch.Types[m.name]
	for name, fn := range m.fields {
		t.Field(name).Async = true
		rt.resolvers[key(m.name, name)] = fn
	}
	for name, fn := range m.subscribers {
		rt.subscribers[key(m.name, name)] = fn
	}
}

func key(typeName, field string) string { return typeName + "." + field }
