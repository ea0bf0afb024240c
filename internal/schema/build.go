package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hanpama/gqlgate/internal/language"
)

// BuildFromSDL parses and validates sdl and returns the executable schema.
func BuildFromSDL(sdl string) (*Schema, error) {
	src, err := language.LoadSchema("schema.graphql", sdl)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return Build(src)
}

// Build converts a validated definition into the executable model. Names
// reserved for introspection are skipped.
func Build(src *language.Schema) (*Schema, error) {
	if src.Query == nil {
		return nil, fmt.Errorf("schema: query root type is not defined")
	}
	s := &Schema{
		QueryType:   src.Query.Name,
		Types:       make(map[string]*Type, len(src.Types)),
		Description: src.Description,
		Source:      src,
	}
	if src.Mutation != nil {
		s.MutationType = src.Mutation.Name
	}
	if src.Subscription != nil {
		s.SubscriptionType = src.Subscription.Name
	}
	for name, def := range src.Types {
		if isReserved(name) {
			continue
		}
		s.Types[name] = BuildType(src, def)
	}
	return s, nil
}

func isReserved(name string) bool { return strings.HasPrefix(name, "__") }

// BuildType converts one type definition of src. Fields with reserved names
// are left out.
func BuildType(src *language.Schema, def *language.Definition) *Type {
	t := &Type{Name: def.Name, Description: def.Description}
	switch def.Kind {
	case language.Object:
		t.Kind = TypeKindObject
	case language.Interface:
		t.Kind = TypeKindInterface
	case language.Union:
		t.Kind = TypeKindUnion
	case language.Enum:
		t.Kind = TypeKindEnum
	case language.InputObject:
		t.Kind = TypeKindInputObject
	default:
		t.Kind = TypeKindScalar
	}

	switch t.Kind {
	case TypeKindObject, TypeKindInterface:
		for _, fd := range def.Fields {
			if isReserved(fd.Name) {
				continue
			}
			t.Fields = append(t.Fields, buildField(fd))
		}
		t.Interfaces = append(t.Interfaces, def.Interfaces...)
	case TypeKindInputObject:
		for _, fd := range def.Fields {
			iv := &InputValue{
				Name:         fd.Name,
				Description:  fd.Description,
				Type:         TypeRefFromAST(fd.Type),
				DefaultValue: defaultValue(fd.DefaultValue),
			}
			iv.DeprecationReason, iv.IsDeprecated = deprecation(fd.Directives)
			if fd.DefaultValue != nil {
				iv.DefaultLiteral = fd.DefaultValue.String()
			}
			t.InputFields = append(t.InputFields, iv)
		}
	case TypeKindEnum:
		for _, ev := range def.EnumValues {
			reason, deprecated := deprecation(ev.Directives)
			t.EnumValues = append(t.EnumValues, &EnumValue{
				Name:              ev.Name,
				Description:       ev.Description,
				IsDeprecated:      deprecated,
				DeprecationReason: reason,
			})
		}
	}

	switch t.Kind {
	case TypeKindUnion:
		t.PossibleTypes = append(t.PossibleTypes, def.Types...)
	case TypeKindInterface:
		for _, impl := range src.PossibleTypes[def.Name] {
			t.PossibleTypes = append(t.PossibleTypes, impl.Name)
		}
		sort.Strings(t.PossibleTypes)
	}
	return t
}

func buildField(fd *language.FieldDefinition) *Field {
	f := &Field{
		Name:        fd.Name,
		Description: fd.Description,
		Type:        TypeRefFromAST(fd.Type),
	}
	f.DeprecationReason, f.IsDeprecated = deprecation(fd.Directives)
	for _, arg := range fd.Arguments {
		f.Arguments = append(f.Arguments, BuildArgument(arg))
	}
	return f
}

// BuildArgument converts a field or directive argument definition.
func BuildArgument(arg *language.ArgumentDefinition) *InputValue {
	iv := &InputValue{
		Name:         arg.Name,
		Description:  arg.Description,
		Type:         TypeRefFromAST(arg.Type),
		DefaultValue: defaultValue(arg.DefaultValue),
	}
	iv.DeprecationReason, iv.IsDeprecated = deprecation(arg.Directives)
	if arg.DefaultValue != nil {
		iv.DefaultLiteral = arg.DefaultValue.String()
	}
	return iv
}

func defaultValue(v *language.Value) any {
	if v == nil {
		return nil
	}
	val, err := v.Value(nil)
	if err != nil {
		return nil
	}
	return val
}

func deprecation(dirs language.DirectiveList) (string, bool) {
	d := dirs.ForName("deprecated")
	if d == nil {
		return "", false
	}
	reason := "No longer supported"
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		reason = arg.Value.Raw
	}
	return reason, true
}
