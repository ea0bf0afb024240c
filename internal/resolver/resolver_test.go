package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hanpama/gqlgate/internal/executor"
	"github.com/hanpama/gqlgate/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSDL = `
type Query {
  hello: String!
  a: String
  b: String
  note: Note
  item: Item
}

type Mutation {
  first: Int
  second: Int
}

type Subscription {
  messages: String!
}

type Note {
  id: ID!
  title: String
  color: Color
}

enum Color { RED GREEN }

union Item = Note
`

func mustSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.BuildFromSDL(testSDL)
	require.NoError(t, err)
	return sch
}

func TestBindMarksResolvedFieldsAsync(t *testing.T) {
	sch := mustSchema(t)
	query := NewMap("Query").Field("hello", func(ctx context.Context, source any, args map[string]any) (any, error) {
		return "Hello!", nil
	})
	_, err := Bind(sch, query)
	require.NoError(t, err)

	assert.True(t, sch.GetQueryType().Field("hello").Async)
	assert.False(t, sch.GetQueryType().Field("a").Async)
}

func TestBindRejectsUnknownNames(t *testing.T) {
	noop := func(ctx context.Context, source any, args map[string]any) (any, error) { return nil, nil }
	sub := func(ctx context.Context, args map[string]any) (<-chan any, error) { return nil, nil }

	tests := []struct {
		name string
		m    *Map
		want error
	}{
		{name: "unknown type", m: NewMap("Nope").Field("x", noop), want: ErrUnknownType},
		{name: "unknown field", m: NewMap("Query").Field("goodbye", noop), want: ErrUnknownField},
		{name: "unknown subscription field", m: NewMap("Subscription").Subscription("nope", sub), want: ErrUnknownField},
		{name: "subscriber outside subscription root", m: NewMap("Query").Subscription("hello", sub), want: ErrNotSubscriptionType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Bind(mustSchema(t), tt.m)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBindErrorNamesField(t *testing.T) {
	_, err := Bind(mustSchema(t), NewMap("Query").Field("goodbye", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Query.goodbye")
}

func TestFailedBindLeavesSchemaUntouched(t *testing.T) {
	noop := func(ctx context.Context, source any, args map[string]any) (any, error) { return nil, nil }
	sch := mustSchema(t)
	rt := NewRuntime(sch)

	err := rt.Bind(
		NewMap("Query").Field("a", noop),
		NewMap("Note").Field("title", noop).Field("zzz", noop),
	)
	require.ErrorIs(t, err, ErrUnknownField)

	assert.False(t, sch.GetQueryType().Field("a").Async)
	assert.False(t, sch.Types["Note"].Field("title").Async)
	assert.Empty(t, rt.resolvers)
}

func TestBindRejectsNonObjectType(t *testing.T) {
	_, err := Bind(mustSchema(t), NewMap("Color"))
	require.Error(t, err)
}

func TestExecuteBoundQuery(t *testing.T) {
	sch := mustSchema(t)
	query := NewMap("Query").
		Field("hello", func(ctx context.Context, source any, args map[string]any) (any, error) {
			return "Hello!", nil
		}).
		Field("note", func(ctx context.Context, source any, args map[string]any) (any, error) {
			return &struct {
				ID    int64  `json:"id"`
				Title string `json:"title"`
				Color string
			}{ID: 7, Title: "t", Color: "RED"}, nil
		})
	rt, err := Bind(sch, query)
	require.NoError(t, err)
	exec := executor.NewExecutor(rt, sch)

	doc, errs := exec.Parse("{ hello note { id title color } }")
	require.Empty(t, errs)
	got := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

	want := &executor.ExecutionResult{Data: map[string]any{
		"hello": "Hello!",
		"note":  map[string]any{"id": "7", "title": "t", "color": "RED"},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestBatchResolveAsyncRunsConcurrently(t *testing.T) {
	sch := mustSchema(t)
	var started sync.WaitGroup
	started.Add(2)
	barrier := func(ctx context.Context, source any, args map[string]any) (any, error) {
		started.Done()
		done := make(chan struct{})
		go func() { started.Wait(); close(done) }()
		select {
		case <-done:
			return "ok", nil
		case <-time.After(5 * time.Second):
			return nil, errors.New("resolvers did not overlap")
		}
	}
	rt, err := Bind(sch, NewMap("Query").Field("a", barrier).Field("b", barrier))
	require.NoError(t, err)

	results := rt.BatchResolveAsync(context.Background(), []executor.AsyncResolveTask{
		{ObjectType: "Query", Field: "a"},
		{ObjectType: "Query", Field: "b"},
	})
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Error)
		assert.Equal(t, "ok", r.Value)
	}
}

func TestBatchResolveAsyncRunsMutationsSerially(t *testing.T) {
	sch := mustSchema(t)
	var mu sync.Mutex
	var order []string
	record := func(name string) ResolveFunc {
		return func(ctx context.Context, source any, args map[string]any) (any, error) {
			if name == "first" {
				time.Sleep(20 * time.Millisecond)
			}
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return len(order), nil
		}
	}
	rt, err := Bind(sch, NewMap("Mutation").Field("first", record("first")).Field("second", record("second")))
	require.NoError(t, err)

	rt.BatchResolveAsync(context.Background(), []executor.AsyncResolveTask{
		{ObjectType: "Mutation", Field: "first"},
		{ObjectType: "Mutation", Field: "second"},
	})
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestBatchResolveAsyncRecoversPanics(t *testing.T) {
	sch := mustSchema(t)
	rt, err := Bind(sch, NewMap("Query").Field("a", func(ctx context.Context, source any, args map[string]any) (any, error) {
		panic("kaboom")
	}))
	require.NoError(t, err)

	results := rt.BatchResolveAsync(context.Background(), []executor.AsyncResolveTask{{ObjectType: "Query", Field: "a"}})
	require.Error(t, results[0].Error)
	assert.Contains(t, results[0].Error.Error(), "kaboom")
}

func TestSubscriptionFieldDefaultsToEvent(t *testing.T) {
	rt := NewRuntime(mustSchema(t))
	v, err := rt.ResolveSync(context.Background(), "Subscription", "messages", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", v)
}

func TestSubscribe(t *testing.T) {
	sch := mustSchema(t)
	sub := NewMap("Subscription").Subscription("messages", func(ctx context.Context, args map[string]any) (<-chan any, error) {
		ch := make(chan any, 1)
		ch <- "hi"
		close(ch)
		return ch, nil
	})
	rt, err := Bind(sch, sub)
	require.NoError(t, err)

	ch, err := rt.Subscribe(context.Background(), "Subscription", "messages", nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", <-ch)

	_, err = rt.Subscribe(context.Background(), "Subscription", "other", nil)
	require.Error(t, err)
}

func TestProperty(t *testing.T) {
	type inner struct {
		Title  string `json:"title,omitempty"`
		Name   string
		hidden string
	}
	v := &inner{Title: "t", Name: "n", hidden: "h"}

	assert.Equal(t, "t", Property(v, "title"))
	assert.Equal(t, "n", Property(v, "name"))
	assert.Nil(t, Property(v, "hidden"))
	assert.Nil(t, Property((*inner)(nil), "title"))
	assert.Equal(t, 1, Property(map[string]any{"a": 1}, "a"))
	assert.Equal(t, "x", Property(map[string]string{"a": "x"}, "a"))
	assert.Nil(t, Property(42, "a"))
}

type typed struct{}

func (typed) GraphQLTypename() string { return "Note" }

func TestResolveType(t *testing.T) {
	rt := NewRuntime(mustSchema(t))

	name, err := rt.ResolveType(context.Background(), "Item", map[string]any{"__typename": "Note"})
	require.NoError(t, err)
	assert.Equal(t, "Note", name)

	name, err = rt.ResolveType(context.Background(), "Item", typed{})
	require.NoError(t, err)
	assert.Equal(t, "Note", name)

	_, err = rt.ResolveType(context.Background(), "Item", 3)
	require.Error(t, err)

	custom := NewRuntime(mustSchema(t), WithTypeResolver(func(ctx context.Context, abstractType string, value any) (string, error) {
		return "Note", nil
	}))
	name, err = custom.ResolveType(context.Background(), "Item", 3)
	require.NoError(t, err)
	assert.Equal(t, "Note", name)
}

func TestSerializeLeafValue(t *testing.T) {
	rt := NewRuntime(mustSchema(t))
	ctx := context.Background()

	tests := []struct {
		typeName string
		in       any
		want     any
		wantErr  bool
	}{
		{typeName: "String", in: "s", want: "s"},
		{typeName: "String", in: 3, want: "3"},
		{typeName: "ID", in: int64(12), want: "12"},
		{typeName: "ID", in: "abc", want: "abc"},
		{typeName: "Int", in: 5, want: int64(5)},
		{typeName: "Int", in: 5.0, want: int64(5)},
		{typeName: "Int", in: 5.5, wantErr: true},
		{typeName: "Int", in: int64(1) << 40, wantErr: true},
		{typeName: "Float", in: 2, want: 2.0},
		{typeName: "Boolean", in: true, want: true},
		{typeName: "Boolean", in: "yes", wantErr: true},
		{typeName: "Color", in: "RED", want: "RED"},
		{typeName: "Color", in: "BLUE", wantErr: true},
	}
	for _, tt := range tests {
		got, err := rt.SerializeLeafValue(ctx, tt.typeName, tt.in)
		if tt.wantErr {
			assert.Error(t, err, "%s %v", tt.typeName, tt.in)
			continue
		}
		require.NoError(t, err, "%s %v", tt.typeName, tt.in)
		assert.Equal(t, tt.want, got, "%s %v", tt.typeName, tt.in)
	}
}
