package introspection

import (
	"errors"
	"slices"
	"sort"
	"strings"

	"github.com/hanpama/gqlgate/internal/language"
	"github.com/hanpama/gqlgate/internal/schema"
)

var errNoSource = errors.New("introspection: schema has no source definition")

func isMeta(name string) bool { return strings.HasPrefix(name, "__") }

// extend returns a copy of sch that also carries the __ types of the
// built-in prelude and the __schema and __type fields on the query root.
// sch itself is left untouched.
func extend(sch *schema.Schema) (*schema.Schema, error) {
	src := sch.Source
	if src == nil {
		return nil, errNoSource
	}
	query := sch.GetQueryType()
	if query == nil {
		return nil, errors.New("introspection: query root type is not defined")
	}

	ext := *sch
	ext.Types = make(map[string]*schema.Type, len(sch.Types)+8)
	for name, t := range sch.Types {
		ext.Types[name] = t
	}
	for name, def := range src.Types {
		if isMeta(name) {
			ext.Types[name] = schema.BuildType(src, def)
		}
	}
	if ext.Types["__Schema"] == nil || ext.Types["__Type"] == nil {
		return nil, errors.New("introspection: prelude types are missing")
	}

	root := *query
	root.Fields = append(slices.Clone(query.Fields),
		&schema.Field{
			Name:        "__schema",
			Description: "Access the current type schema of this server.",
			Type:        schema.NonNullType(schema.NamedType("__Schema")),
		},
		&schema.Field{
			Name:        "__type",
			Description: "Request the type information of a single type.",
			Type:        schema.NamedType("__Type"),
			Arguments: []*schema.InputValue{{
				Name: "name",
				Type: schema.NonNullType(schema.NamedType("String")),
			}},
		},
	)
	ext.Types[root.Name] = &root
	return &ext, nil
}

// directive is the value behind __Directive.
type directive struct {
	name         string
	description  string
	repeatable   bool
	locations    []string
	args         []*schema.InputValue
}

func directives(src *language.Schema) []*directive {
	out := make([]*directive, 0, len(src.Directives))
	for _, def := range src.Directives {
		d := &directive{
			name:        def.Name,
			description: def.Description,
			repeatable:  def.IsRepeatable,
		}
		for _, loc := range def.Locations {
			d.locations = append(d.locations, string(loc))
		}
		for _, arg := range def.Arguments {
			d.args = append(d.args, schema.BuildArgument(arg))
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
