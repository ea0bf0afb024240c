package introspection

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hanpama/gqlgate/internal/executor"
	"github.com/hanpama/gqlgate/internal/resolver"
	"github.com/hanpama/gqlgate/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSDL = `
type Query {
  hello(name: String = "world"): String!
  note(id: ID!): Note
  legacy: String @deprecated(reason: "use hello")
}

type Subscription {
  ticks: Int!
}

"A stored note"
type Note {
  id: ID!
  title: String!
  color: Color
}

enum Color {
  RED
  GREEN @deprecated(reason: "faded")
}

scalar Date @specifiedBy(url: "https://example.com/date")
`

// noopRuntime implements executor.Runtime with no behaviour.
type noopRuntime struct{}

func (noopRuntime) ResolveSync(context.Context, string, string, any, map[string]any) (any, error) {
	return nil, nil
}

func (noopRuntime) BatchResolveAsync(context.Context, []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	return nil
}

func (noopRuntime) ResolveType(context.Context, string, any) (string, error) {
	return "", nil
}

func (noopRuntime) SerializeLeafValue(_ context.Context, _ string, value any) (any, error) {
	return value, nil
}

func buildSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.BuildFromSDL(testSDL)
	require.NoError(t, err)
	return sch
}

func newExecutor(t *testing.T) *executor.Executor {
	t.Helper()
	sch := buildSchema(t)
	query := resolver.NewMap("Query").
		Field("hello", func(_ context.Context, _ any, args map[string]any) (any, error) {
			return fmt.Sprintf("hello, %s", args["name"]), nil
		})
	subscription := resolver.NewMap("Subscription").
		Field("ticks", func(_ context.Context, source any, _ map[string]any) (any, error) {
			return source, nil
		}).
		Subscription("ticks", func(ctx context.Context, _ map[string]any) (<-chan any, error) {
			ch := make(chan any)
			go func() {
				defer close(ch)
				for _, v := range []int{1, 2} {
					select {
					case ch <- v:
					case <-ctx.Done():
						return
					}
				}
			}()
			return ch, nil
		})
	rt, err := resolver.Bind(sch, query, subscription)
	require.NoError(t, err)

	w, err := Wrap(rt, sch)
	require.NoError(t, err)
	return executor.NewExecutor(w.Runtime, w.Schema)
}

func execute(t *testing.T, exec *executor.Executor, query string) map[string]any {
	t.Helper()
	doc, errs := exec.Parse(query)
	require.Empty(t, errs)
	res := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)
	require.Empty(t, res.Errors)
	data, ok := res.Data.(map[string]any)
	require.True(t, ok, "data is an object")
	return data
}

func assertData(t *testing.T, want, got map[string]any) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestRootTypes(t *testing.T) {
	got := execute(t, newExecutor(t), `{
		__schema {
			queryType { name }
			mutationType { name }
			subscriptionType { name }
		}
	}`)
	assertData(t, map[string]any{
		"__schema": map[string]any{
			"queryType":        map[string]any{"name": "Query"},
			"mutationType":     nil,
			"subscriptionType": map[string]any{"name": "Subscription"},
		},
	}, got)
}

func TestTypeFieldsAndWrappers(t *testing.T) {
	got := execute(t, newExecutor(t), `{
		__type(name: "Note") {
			kind
			name
			description
			fields { name type { kind name ofType { kind name } } }
		}
	}`)
	nonNull := func(name string) map[string]any {
		return map[string]any{
			"kind":   "NON_NULL",
			"name":   nil,
			"ofType": map[string]any{"kind": "SCALAR", "name": name},
		}
	}
	assertData(t, map[string]any{
		"__type": map[string]any{
			"kind":        "OBJECT",
			"name":        "Note",
			"description": "A stored note",
			"fields": []any{
				map[string]any{"name": "id", "type": nonNull("ID")},
				map[string]any{"name": "title", "type": nonNull("String")},
				map[string]any{"name": "color", "type": map[string]any{"kind": "ENUM", "name": "Color", "ofType": nil}},
			},
		},
	}, got)
}

func TestQueryFieldsHideMetaAndDeprecated(t *testing.T) {
	got := execute(t, newExecutor(t), `{
		__type(name: "Query") {
			fields { name args { name defaultValue } }
			all: fields(includeDeprecated: true) { name isDeprecated deprecationReason }
		}
	}`)
	assertData(t, map[string]any{
		"__type": map[string]any{
			"fields": []any{
				map[string]any{"name": "hello", "args": []any{
					map[string]any{"name": "name", "defaultValue": `"world"`},
				}},
				map[string]any{"name": "note", "args": []any{
					map[string]any{"name": "id", "defaultValue": nil},
				}},
			},
			"all": []any{
				map[string]any{"name": "hello", "isDeprecated": false, "deprecationReason": nil},
				map[string]any{"name": "note", "isDeprecated": false, "deprecationReason": nil},
				map[string]any{"name": "legacy", "isDeprecated": true, "deprecationReason": "use hello"},
			},
		},
	}, got)
}

func TestEnumValues(t *testing.T) {
	got := execute(t, newExecutor(t), `{
		__type(name: "Color") {
			enumValues { name }
			all: enumValues(includeDeprecated: true) { name deprecationReason }
		}
	}`)
	assertData(t, map[string]any{
		"__type": map[string]any{
			"enumValues": []any{map[string]any{"name": "RED"}},
			"all": []any{
				map[string]any{"name": "RED", "deprecationReason": nil},
				map[string]any{"name": "GREEN", "deprecationReason": "faded"},
			},
		},
	}, got)
}

func TestSpecifiedByURL(t *testing.T) {
	got := execute(t, newExecutor(t), `{ __type(name: "Date") { kind specifiedByURL } }`)
	assertData(t, map[string]any{
		"__type": map[string]any{"kind": "SCALAR", "specifiedByURL": "https://example.com/date"},
	}, got)
}

func TestUnknownTypeIsNull(t *testing.T) {
	got := execute(t, newExecutor(t), `{ __type(name: "Missing") { name } }`)
	assertData(t, map[string]any{"__type": nil}, got)
}

func TestTypesIncludeMetaTypes(t *testing.T) {
	got := execute(t, newExecutor(t), `{ __schema { types { name } } }`)
	types := got["__schema"].(map[string]any)["types"].([]any)

	var names []string
	for _, v := range types {
		names = append(names, v.(map[string]any)["name"].(string))
	}
	assert.Contains(t, names, "Note")
	assert.Contains(t, names, "String")
	assert.Contains(t, names, "__Schema")
	assert.Contains(t, names, "__TypeKind")
	assert.IsNonDecreasing(t, names)
}

func TestDirectives(t *testing.T) {
	got := execute(t, newExecutor(t), `{
		__schema { directives { name locations args { name type { kind ofType { name } } } } }
	}`)
	dirs := got["__schema"].(map[string]any)["directives"].([]any)

	var skip map[string]any
	for _, d := range dirs {
		if d.(map[string]any)["name"] == "skip" {
			skip = d.(map[string]any)
		}
	}
	require.NotNil(t, skip, "skip directive is listed")
	assert.ElementsMatch(t, []any{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"}, skip["locations"])
	assertData(t, map[string]any{
		"name": "if",
		"type": map[string]any{"kind": "NON_NULL", "ofType": map[string]any{"name": "Boolean"}},
	}, skip["args"].([]any)[0].(map[string]any))
}

func TestTypename(t *testing.T) {
	got := execute(t, newExecutor(t), `{ __typename __schema { __typename queryType { __typename } } }`)
	assertData(t, map[string]any{
		"__typename": "Query",
		"__schema": map[string]any{
			"__typename": "__Schema",
			"queryType":  map[string]any{"__typename": "__Type"},
		},
	}, got)
}

func TestForwardsToBase(t *testing.T) {
	exec := newExecutor(t)
	got := execute(t, exec, `{ hello(name: "gopher") }`)
	assertData(t, map[string]any{"hello": "hello, gopher"}, got)

	doc, errs := exec.Parse(`subscription { ticks }`)
	require.Empty(t, errs)
	stream, failed := exec.Subscribe(context.Background(), doc, "", nil, nil)
	require.Nil(t, failed)
	defer stream.Close()

	var ticks []any
	timeout := time.After(5 * time.Second)
	for len(ticks) < 2 {
		select {
		case r, ok := <-stream.Results():
			require.True(t, ok, "stream ended early")
			ticks = append(ticks, r.Data.(map[string]any)["ticks"])
		case <-timeout:
			t.Fatal("no subscription results")
		}
	}
	assert.Equal(t, []any{int64(1), int64(2)}, ticks)
}

func TestSubscriptionSupportFollowsBase(t *testing.T) {
	w, err := Wrap(noopRuntime{}, buildSchema(t))
	require.NoError(t, err)
	_, ok := w.Runtime.(executor.SubscriptionRuntime)
	assert.False(t, ok)

	sch := buildSchema(t)
	w, err = Wrap(resolver.NewRuntime(sch), sch)
	require.NoError(t, err)
	_, ok = w.Runtime.(executor.SubscriptionRuntime)
	assert.True(t, ok)
}

func TestWrapLeavesSchemaUntouched(t *testing.T) {
	sch := buildSchema(t)
	w, err := Wrap(noopRuntime{}, sch)
	require.NoError(t, err)

	assert.Nil(t, sch.GetQueryType().Field("__schema"))
	assert.NotContains(t, sch.Types, "__Schema")
	assert.NotNil(t, w.Schema.GetQueryType().Field("__schema"))
	assert.Contains(t, w.Schema.Types, "__Schema")
}

func TestWrapRequiresSource(t *testing.T) {
	sch := &schema.Schema{
		QueryType: "Query",
		Types:     map[string]*schema.Type{"Query": {Name: "Query", Kind: schema.TypeKindObject}},
	}
	_, err := Wrap(noopRuntime{}, sch)
	assert.ErrorIs(t, err, errNoSource)
}
