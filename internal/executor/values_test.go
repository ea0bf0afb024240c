package executor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hanpama/gqlgate/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inputSDL = `
type Query {
  find(filter: Filter, colors: [Color!], limit: Int = 10): [String]
}

enum Color { RED GREEN }

input Filter {
  title: String!
  color: Color = RED
  tags: [String!]
}
`

func TestCoerceInput(t *testing.T) {
	sch := mustBuildSchema(t, inputSDL)
	named := schema.NamedType
	nonNull := schema.NonNullType
	list := schema.ListType

	tests := []struct {
		name    string
		value   any
		typ     *schema.TypeRef
		want    any
		wantErr string
	}{
		{name: "int from json float", value: float64(3), typ: named("Int"), want: int64(3)},
		{name: "int from json number", value: json.Number("7"), typ: named("Int"), want: int64(7)},
		{name: "int fraction", value: 1.5, typ: named("Int"), wantErr: "non-integer"},
		{name: "int overflow", value: float64(1 << 40), typ: named("Int"), wantErr: "32-bit"},
		{name: "float from int", value: int64(2), typ: named("Float"), want: float64(2)},
		{name: "string rejects number", value: float64(1), typ: named("String"), wantErr: "non string"},
		{name: "id from int", value: float64(42), typ: named("ID"), want: "42"},
		{name: "null for non-null", value: nil, typ: nonNull(named("String")), wantErr: "non-null"},
		{name: "null for nullable", value: nil, typ: named("String"), want: nil},
		{name: "single item list", value: "RED", typ: list(nonNull(named("Color"))), want: []any{"RED"}},
		{name: "list item error", value: []any{"RED", "BLUE"}, typ: list(named("Color")), wantErr: "at index 1"},
		{
			name:  "input object defaults",
			value: map[string]any{"title": "t", "tags": "x"},
			typ:   named("Filter"),
			want:  map[string]any{"title": "t", "color": "RED", "tags": []any{"x"}},
		},
		{name: "input object missing field", value: map[string]any{}, typ: named("Filter"), wantErr: "Filter.title"},
		{name: "input object unknown field", value: map[string]any{"title": "t", "size": 1}, typ: named("Filter"), wantErr: `"size"`},
		{name: "input object not a map", value: "t", typ: named("Filter"), wantErr: "expected an object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceInput(sch, tt.value, tt.typ)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("coerced mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExecute_ArgumentLiteralsWithVariables(t *testing.T) {
	sch := mustBuildSchema(t, inputSDL)
	var gotArgs map[string]any
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.find": func(ctx context.Context, source any, args map[string]any) (any, error) {
			gotArgs = args
			return []any{"ok"}, nil
		},
	})
	exec := NewExecutor(rt, sch)

	doc := mustParseQuery(t, `query Q($title: String!, $c: Color, $n: Int) {
		find(filter: {title: $title, tags: ["a"]}, colors: [GREEN, $c], limit: $n)
	}`)
	got := exec.ExecuteRequest(context.Background(), doc, "", map[string]any{"title": "hi", "c": "RED"}, nil)
	require.Empty(t, got.Errors)

	want := map[string]any{
		"filter": map[string]any{"title": "hi", "color": "RED", "tags": []any{"a"}},
		"colors": []any{"GREEN", "RED"},
		"limit":  int64(10),
	}
	if diff := cmp.Diff(want, gotArgs); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_InvalidVariable(t *testing.T) {
	sch := mustBuildSchema(t, inputSDL)
	exec := NewExecutor(NewMockRuntime(nil), sch)

	doc := mustParseQuery(t, `query Q($c: [Color!]) { find(colors: $c) }`)
	got := exec.ExecuteRequest(context.Background(), doc, "", map[string]any{"c": []any{"BLUE"}}, nil)

	require.Len(t, got.Errors, 1)
	assert.Contains(t, got.Errors[0].Message, "variable $c of type [Color!] cannot be coerced")
	assert.Nil(t, got.Data)
}

func TestExecute_SkipAndIncludeWithVariables(t *testing.T) {
	sch := mustBuildSchema(t, testSDL)
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.a": NewMockValueResolver("A"),
		"Query.b": NewMockValueResolver("B"),
		"Query.c": NewMockValueResolver("C"),
	})
	exec := NewExecutor(rt, sch)

	doc := mustParseQuery(t, `query Q($yes: Boolean!, $no: Boolean!) {
		a @skip(if: $yes)
		b @include(if: $no)
		... on Query @include(if: $yes) { c }
	}`)
	got := exec.ExecuteRequest(context.Background(), doc, "", map[string]any{"yes": true, "no": false}, nil)

	if diff := cmp.Diff(&ExecutionResult{Data: map[string]any{"c": "C"}}, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}
