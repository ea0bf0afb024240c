package executor

import (
	"testing"

	"github.com/hanpama/gqlgate/internal/language"
	"github.com/hanpama/gqlgate/internal/schema"
)

// mustParseQuery parses a GraphQL query and fails the test on error.
func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}

// mustBuildSchema builds a schema from SDL and marks the listed
// "Type.field" coordinates as async.
func mustBuildSchema(t *testing.T, sdl string, async ...string) *schema.Schema {
	t.Helper()
	sch, err := schema.BuildFromSDL(sdl)
	if err != nil {
		t.Fatalf("schema error: %v", err)
	}
	for _, coord := range async {
		var typeName, fieldName string
		for i := range coord {
			if coord[i] == '.' {
				typeName, fieldName = coord[:i], coord[i+1:]
				break
			}
		}
		f := sch.Types[typeName].Field(fieldName)
		if f == nil {
			t.Fatalf("unknown field %s", coord)
		}
		f.Async = true
	}
	return sch
}
