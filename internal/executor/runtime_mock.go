package executor

import (
	"context"
	"fmt"
	"sync"
)

// MockResolver resolves a single item; MockRuntime adapts it for batched calls in tests.
type MockResolver func(ctx context.Context, source any, args map[string]any) (any, error)

// MockSubscriber opens a source stream for a subscription root field.
type MockSubscriber func(ctx context.Context, args map[string]any) (<-chan any, error)

const (
	CallKindSync  = "sync"
	CallKindAsync = "async"
)

// NewMockValueResolver returns a MockResolver that always returns the provided value.
func NewMockValueResolver(val any) MockResolver {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return val, nil
	}
}

// NewMockErrorResolver returns a MockResolver that always returns the provided error.
func NewMockErrorResolver(err error) MockResolver {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return nil, err
	}
}

// NewMockSourceResolver returns a MockResolver that returns its source value.
func NewMockSourceResolver() MockResolver {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return source, nil
	}
}

// NewMockChannelSubscriber returns a MockSubscriber that emits values and
// then closes the stream.
func NewMockChannelSubscriber(values ...any) MockSubscriber {
	return func(ctx context.Context, args map[string]any) (<-chan any, error) {
		ch := make(chan any)
		go func() {
			defer close(ch)
			for _, v := range values {
				select {
				case ch <- v:
				case <-ctx.Done():
					return
				}
			}
		}()
		return ch, nil
	}
}

// Call represents a single task-level invocation record. Async calls share
// the same BatchID within a flush.
type Call struct {
	Kind       string
	ObjectType string
	Field      string
	Source     any
	Args       map[string]any
	BatchID    int // >0 for async items in the same batch, 0 for sync
}

// MockRuntime implements SubscriptionRuntime with in-memory resolvers and a
// call log.
type MockRuntime struct {
	mu          sync.Mutex
	resolvers   map[string]MockResolver
	subscribers map[string]MockSubscriber
	calls       []Call
	batchSeq    int

	typeResolver func(value any) (string, error)
}

// NewMockRuntime creates a MockRuntime with the provided resolvers.
// The resolvers map keys are of the form "ObjectType.Field".
func NewMockRuntime(resolvers map[string]MockResolver) *MockRuntime {
	m := &MockRuntime{
		resolvers:   make(map[string]MockResolver, len(resolvers)),
		subscribers: make(map[string]MockSubscriber),
		typeResolver: func(value any) (string, error) {
			if m, ok := value.(map[string]any); ok {
				if typename, ok := m["__typename"].(string); ok {
					return typename, nil
				}
			}
			return "", fmt.Errorf("cannot resolve type")
		},
	}
	for k, v := range resolvers {
		m.resolvers[k] = v
	}
	return m
}

// SetResolver registers or updates a resolver for the given object type and field.
func (m *MockRuntime) SetResolver(objectType, field string, resolver MockResolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolvers[objectType+"."+field] = resolver
}

// SetSubscriber registers the source stream of a subscription field.
func (m *MockRuntime) SetSubscriber(objectType, field string, sub MockSubscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers[objectType+"."+field] = sub
}

func (m *MockRuntime) SetTypeResolver(f func(value any) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typeResolver = f
}

func (m *MockRuntime) resolve(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	m.mu.Lock()
	r := m.resolvers[objectType+"."+field]
	m.mu.Unlock()
	if r == nil {
		return nil, nil
	}
	return r(ctx, source, args)
}

func (m *MockRuntime) record(c Call) {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()
}

// ResolveSync implements Runtime.
func (m *MockRuntime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	val, err := m.resolve(ctx, objectType, field, source, args)
	m.record(Call{Kind: CallKindSync, ObjectType: objectType, Field: field, Source: source, Args: args})
	return val, err
}

// BatchResolveAsync implements Runtime. Tasks are resolved in order.
func (m *MockRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	if len(tasks) == 0 {
		return nil
	}
	m.mu.Lock()
	m.batchSeq++
	batchID := m.batchSeq
	m.mu.Unlock()

	results := make([]AsyncResolveResult, len(tasks))
	for i, t := range tasks {
		val, err := m.resolve(ctx, t.ObjectType, t.Field, t.Source, t.Args)
		results[i] = AsyncResolveResult{Value: val, Error: err}
		m.record(Call{Kind: CallKindAsync, ObjectType: t.ObjectType, Field: t.Field, Source: t.Source, Args: t.Args, BatchID: batchID})
	}
	return results
}

// ResolveType implements Runtime.
func (m *MockRuntime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	m.mu.Lock()
	f := m.typeResolver
	m.mu.Unlock()
	return f(value)
}

// SerializeLeafValue implements Runtime. Values pass through unchanged.
func (m *MockRuntime) SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error) {
	return value, nil
}

// Subscribe implements SubscriptionRuntime.
func (m *MockRuntime) Subscribe(ctx context.Context, objectType, field string, args map[string]any) (<-chan any, error) {
	m.mu.Lock()
	sub := m.subscribers[objectType+"."+field]
	m.mu.Unlock()
	if sub == nil {
		return nil, fmt.Errorf("no subscriber registered for %s.%s", objectType, field)
	}
	return sub(ctx, args)
}

// GetCalls returns a copy of the recorded calls in order.
func (m *MockRuntime) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears recorded calls and counters (resolvers remain).
func (m *MockRuntime) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.batchSeq = 0
}
