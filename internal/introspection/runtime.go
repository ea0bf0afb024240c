package introspection

import (
	"context"
	"fmt"
	"sort"

	"github.com/hanpama/gqlgate/internal/executor"
	"github.com/hanpama/gqlgate/internal/schema"
)

// Wrapper pairs a runtime answering introspection with the schema it must be
// executed against.
type Wrapper struct {
	// Runtime also implements executor.SubscriptionRuntime when the wrapped
	// runtime does.
	Runtime executor.Runtime
	Schema  *schema.Schema
}

// Wrap returns a runtime that resolves __schema, __type and the fields of
// the introspection types, and forwards everything else to base. sch must
// have been built from SDL so that the prelude definitions are available.
func Wrap(base executor.Runtime, sch *schema.Schema) (*Wrapper, error) {
	ext, err := extend(sch)
	if err != nil {
		return nil, err
	}
	r := &runtime{
		base:       base,
		schema:     ext,
		directives: directives(sch.Source),
	}
	w := &Wrapper{Runtime: r, Schema: ext}
	if sub, ok := base.(executor.SubscriptionRuntime); ok {
		w.Runtime = &subscriptionRuntime{runtime: r, sub: sub}
	}
	return w, nil
}

type runtime struct {
	base       executor.Runtime
	schema     *schema.Schema
	directives []*directive
}

type subscriptionRuntime struct {
	*runtime
	sub executor.SubscriptionRuntime
}

func (r *subscriptionRuntime) Subscribe(ctx context.Context, objectType, field string, args map[string]any) (<-chan any, error) {
	return r.sub.Subscribe(ctx, objectType, field, args)
}

func (r *runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	if objectType == r.schema.QueryType {
		switch field {
		case "__schema":
			return r.schema, nil
		case "__type":
			name, _ := args["name"].(string)
			if t := r.schema.Types[name]; t != nil {
				return t, nil
			}
			return nil, nil
		}
	}
	if !isMeta(objectType) {
		return r.base.ResolveSync(ctx, objectType, field, source, args)
	}

	switch src := source.(type) {
	case *schema.Schema:
		return r.schemaField(src, field)
	case *schema.Type:
		return r.typeField(src, field, args)
	case *schema.TypeRef:
		return r.wrapperField(src, field), nil
	case *schema.Field:
		return r.fieldField(src, field, args), nil
	case *schema.InputValue:
		return r.inputValueField(src, field), nil
	case *schema.EnumValue:
		return enumValueField(src, field), nil
	case *directive:
		return r.directiveField(src, field, args), nil
	}
	return nil, fmt.Errorf("introspection: unexpected %T for %s.%s", source, objectType, field)
}

func (r *runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	return r.base.BatchResolveAsync(ctx, tasks)
}

func (r *runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return r.base.ResolveType(ctx, abstractType, value)
}

// SerializeLeafValue passes __TypeKind and __DirectiveLocation values
// through as names.
func (r *runtime) SerializeLeafValue(ctx context.Context, typ string, value any) (any, error) {
	if isMeta(typ) {
		return fmt.Sprint(value), nil
	}
	return r.base.SerializeLeafValue(ctx, typ, value)
}

func (r *runtime) schemaField(s *schema.Schema, field string) (any, error) {
	switch field {
	case "description":
		return optional(s.Description), nil
	case "types":
		out := make([]*schema.Type, 0, len(s.Types))
		for _, t := range s.Types {
			out = append(out, t)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, nil
	case "queryType":
		return r.named(s.QueryType), nil
	case "mutationType":
		return r.named(s.MutationType), nil
	case "subscriptionType":
		return r.named(s.SubscriptionType), nil
	case "directives":
		return r.directives, nil
	}
	return nil, fmt.Errorf("introspection: unknown field __Schema.%s", field)
}

func (r *runtime) typeField(t *schema.Type, field string, args map[string]any) (any, error) {
	switch field {
	case "kind":
		return string(t.Kind), nil
	case "name":
		return t.Name, nil
	case "description":
		return optional(t.Description), nil
	case "specifiedByURL":
		if def := r.schema.Source.Types[t.Name]; def != nil && t.Kind == schema.TypeKindScalar {
			if d := def.Directives.ForName("specifiedBy"); d != nil {
				if arg := d.Arguments.ForName("url"); arg != nil && arg.Value != nil {
					return arg.Value.Raw, nil
				}
			}
		}
		return nil, nil
	case "fields":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, nil
		}
		deprecated := boolArg(args, "includeDeprecated")
		out := []*schema.Field{}
		for _, f := range t.Fields {
			if isMeta(f.Name) || (f.IsDeprecated && !deprecated) {
				continue
			}
			out = append(out, f)
		}
		return out, nil
	case "interfaces":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil, nil
		}
		return r.namedList(t.Interfaces), nil
	case "possibleTypes":
		if t.Kind != schema.TypeKindInterface && t.Kind != schema.TypeKindUnion {
			return nil, nil
		}
		return r.namedList(t.PossibleTypes), nil
	case "enumValues":
		if t.Kind != schema.TypeKindEnum {
			return nil, nil
		}
		deprecated := boolArg(args, "includeDeprecated")
		out := []*schema.EnumValue{}
		for _, ev := range t.EnumValues {
			if ev.IsDeprecated && !deprecated {
				continue
			}
			out = append(out, ev)
		}
		return out, nil
	case "inputFields":
		if t.Kind != schema.TypeKindInputObject {
			return nil, nil
		}
		return filterInputValues(t.InputFields, args), nil
	case "ofType":
		return nil, nil
	case "isOneOf":
		if t.Kind != schema.TypeKindInputObject {
			return nil, nil
		}
		def := r.schema.Source.Types[t.Name]
		return def != nil && def.Directives.ForName("oneOf") != nil, nil
	}
	return nil, fmt.Errorf("introspection: unknown field __Type.%s", field)
}

// wrapperField answers __Type fields for List and Non-Null wrappers. Named
// references never reach it; typeOf swaps them for their definition.
func (r *runtime) wrapperField(tr *schema.TypeRef, field string) any {
	switch field {
	case "kind":
		if tr.Kind == schema.TypeRefKindNonNull {
			return "NON_NULL"
		}
		return "LIST"
	case "ofType":
		return r.typeOf(tr.OfType)
	}
	return nil
}

func (r *runtime) fieldField(f *schema.Field, field string, args map[string]any) any {
	switch field {
	case "name":
		return f.Name
	case "description":
		return optional(f.Description)
	case "args":
		return filterInputValues(f.Arguments, args)
	case "type":
		return r.typeOf(f.Type)
	case "isDeprecated":
		return f.IsDeprecated
	case "deprecationReason":
		return deprecationReason(f.IsDeprecated, f.DeprecationReason)
	}
	return nil
}

func (r *runtime) inputValueField(iv *schema.InputValue, field string) any {
	switch field {
	case "name":
		return iv.Name
	case "description":
		return optional(iv.Description)
	case "type":
		return r.typeOf(iv.Type)
	case "defaultValue":
		return optional(iv.DefaultLiteral)
	case "isDeprecated":
		return iv.IsDeprecated
	case "deprecationReason":
		return deprecationReason(iv.IsDeprecated, iv.DeprecationReason)
	}
	return nil
}

func enumValueField(ev *schema.EnumValue, field string) any {
	switch field {
	case "name":
		return ev.Name
	case "description":
		return optional(ev.Description)
	case "isDeprecated":
		return ev.IsDeprecated
	case "deprecationReason":
		return deprecationReason(ev.IsDeprecated, ev.DeprecationReason)
	}
	return nil
}

func (r *runtime) directiveField(d *directive, field string, args map[string]any) any {
	switch field {
	case "name":
		return d.name
	case "description":
		return optional(d.description)
	case "isRepeatable":
		return d.repeatable
	case "locations":
		return d.locations
	case "args":
		return filterInputValues(d.args, args)
	}
	return nil
}

// typeOf returns the value standing for tr: the definition itself for named
// references, tr for wrappers.
func (r *runtime) typeOf(tr *schema.TypeRef) any {
	if tr.Kind == schema.TypeRefKindNamed {
		return r.named(tr.Named)
	}
	return tr
}

func (r *runtime) named(name string) any {
	if t := r.schema.Types[name]; t != nil {
		return t
	}
	return nil
}

func (r *runtime) namedList(names []string) []*schema.Type {
	out := make([]*schema.Type, 0, len(names))
	for _, name := range names {
		if t := r.schema.Types[name]; t != nil {
			out = append(out, t)
		}
	}
	return out
}

func filterInputValues(in []*schema.InputValue, args map[string]any) []*schema.InputValue {
	deprecated := boolArg(args, "includeDeprecated")
	out := []*schema.InputValue{}
	for _, iv := range in {
		if iv.IsDeprecated && !deprecated {
			continue
		}
		out = append(out, iv)
	}
	return out
}

func deprecationReason(deprecated bool, reason string) any {
	if !deprecated {
		return nil
	}
	return reason
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolArg(args map[string]any, name string) bool {
	b, _ := args[name].(bool)
	return b
}
