package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSDL = `
type Query { hello: String! }
type Subscription { messages: String! }
`

func TestLoadSchemaAssignsRootTypes(t *testing.T) {
	s, err := LoadSchema("test.graphql", testSDL)
	require.NoError(t, err)
	require.NotNil(t, s.Query)
	require.NotNil(t, s.Subscription)
	assert.Equal(t, "Query", s.Query.Name)
	assert.Equal(t, "Subscription", s.Subscription.Name)
	assert.Nil(t, s.Mutation)
}

func TestLoadSchemaRejectsInvalidSDL(t *testing.T) {
	_, err := LoadSchema("bad.graphql", `type Query { hello: Missing }`)
	require.Error(t, err)
}

func TestLoadQueryReportsLocatedErrors(t *testing.T) {
	s, err := LoadSchema("test.graphql", testSDL)
	require.NoError(t, err)

	_, errs := LoadQuery(s, "{\n  goodbye\n}")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "goodbye")
	require.NotEmpty(t, errs[0].Locations)
	assert.Equal(t, 2, errs[0].Locations[0].Line)
}

func TestParseQuerySyntaxError(t *testing.T) {
	_, err := ParseQuery("{ hello")
	require.Error(t, err)
}

func TestFormatSchema(t *testing.T) {
	s, err := LoadSchema("test.graphql", `type Query {   hello(name: String = "x"): String }`)
	require.NoError(t, err)
	out := FormatSchema(s)
	assert.Contains(t, out, "type Query")
	assert.Contains(t, out, `hello(name: String = "x"): String`)
	assert.NotContains(t, out, "__Schema")
	assert.NotContains(t, out, "scalar String")
}
