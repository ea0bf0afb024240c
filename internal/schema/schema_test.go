package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hanpama/gqlgate/internal/language"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSDL = `
"Entry points"
type Query {
  hello(name: String = "world"): String!
  node(id: ID!): Node
  search: [SearchResult!]
  legacy: String @deprecated(reason: "use hello")
}

type Mutation {
  createNote(input: NoteInput!): Note!
}

type Subscription {
  messages: String!
}

interface Node { id: ID! }

type Note implements Node {
  id: ID!
  title: String!
  color: Color
}

union SearchResult = Note

enum Color { RED GREEN @deprecated }

input NoteInput {
  title: String!
  body: String = ""
}
`

func mustBuild(t *testing.T) *Schema {
	t.Helper()
	s, err := BuildFromSDL(testSDL)
	require.NoError(t, err)
	return s
}

func TestBuildFromSDLRootTypes(t *testing.T) {
	s := mustBuild(t)
	assert.Equal(t, "Query", s.QueryType)
	assert.Equal(t, "Mutation", s.MutationType)
	assert.Equal(t, "Subscription", s.SubscriptionType)
	assert.Same(t, s.GetSubscriptionType(), s.RootType(language.Subscription))
	assert.NotNil(t, s.Source)
}

func TestBuildFromSDLSkipsIntrospectionNames(t *testing.T) {
	s := mustBuild(t)
	for name := range s.Types {
		assert.NotContains(t, name, "__")
	}
	assert.Nil(t, s.GetQueryType().Field("__schema"))
	assert.Nil(t, s.GetQueryType().Field("__type"))
}

func TestBuildFromSDLFields(t *testing.T) {
	s := mustBuild(t)
	q := s.GetQueryType()

	want := &Field{
		Name: "hello",
		Type: NonNullType(NamedType("String")),
		Arguments: []*InputValue{
			{Name: "name", Type: NamedType("String"), DefaultValue: "world", DefaultLiteral: `"world"`},
		},
	}
	if diff := cmp.Diff(want, q.Field("hello")); diff != "" {
		t.Fatalf("hello mismatch (-want +got):\n%s", diff)
	}

	legacy := q.Field("legacy")
	require.NotNil(t, legacy)
	assert.True(t, legacy.IsDeprecated)
	assert.Equal(t, "use hello", legacy.DeprecationReason)

	assert.Equal(t, "[SearchResult!]", q.Field("search").Type.String())
}

func TestBuildFromSDLAbstractTypes(t *testing.T) {
	s := mustBuild(t)
	assert.Equal(t, []string{"Note"}, s.Types["Node"].PossibleTypes)
	assert.Equal(t, []string{"Note"}, s.Types["SearchResult"].PossibleTypes)
	assert.Equal(t, []string{"Node"}, s.Types["Note"].Interfaces)
}

func TestBuildFromSDLEnumsAndInputs(t *testing.T) {
	s := mustBuild(t)

	color := s.Types["Color"]
	require.Len(t, color.EnumValues, 2)
	assert.False(t, color.EnumValues[0].IsDeprecated)
	assert.True(t, color.EnumValues[1].IsDeprecated)

	input := s.Types["NoteInput"]
	assert.Equal(t, TypeKindInputObject, input.Kind)
	require.Len(t, input.InputFields, 2)
	assert.Equal(t, "", input.InputFields[1].DefaultValue)
	assert.Equal(t, `""`, input.InputFields[1].DefaultLiteral)
}

func TestBuildFromSDLBuiltinScalars(t *testing.T) {
	s := mustBuild(t)
	for _, name := range []string{"String", "Int", "Float", "Boolean", "ID"} {
		require.Contains(t, s.Types, name)
		assert.Equal(t, TypeKindScalar, s.Types[name].Kind)
	}
}

func TestBuildFromSDLInvalid(t *testing.T) {
	_, err := BuildFromSDL(`type Query { a: Unknown }`)
	require.Error(t, err)
}

func TestTypeRefFromAST(t *testing.T) {
	s := mustBuild(t)
	def := s.Source.Types["Query"].Fields.ForName("search")
	got := TypeRefFromAST(def.Type)
	if diff := cmp.Diff(ListType(NonNullType(NamedType("SearchResult"))), got); diff != "" {
		t.Fatalf("type ref mismatch (-want +got):\n%s", diff)
	}
}
