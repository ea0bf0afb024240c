package executor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/hanpama/gqlgate/internal/language"
	"github.com/hanpama/gqlgate/internal/schema"
)

// Coerced input values reaching a runtime are normalized: Int is int64,
// Float is float64, ID and enum values are strings, lists are []any and
// input objects are map[string]any with field defaults filled in.

var errNullForNonNull = errors.New("cannot provide null for non-null type")

// coerceVariableValues coerces the request variables of op. Variables that
// are neither provided nor defaulted are left out of the result.
func coerceVariableValues(sch *schema.Schema, op *language.OperationDefinition, inputs map[string]any) (map[string]any, error) {
	coerced := make(map[string]any, len(op.VariableDefinitions))
	for _, def := range op.VariableDefinitions {
		name := def.Variable
		typ := schema.TypeRefFromAST(def.Type)

		raw, provided := inputs[name]
		if !provided {
			switch {
			case def.DefaultValue != nil:
				raw = goValue(def.DefaultValue, nil)
			case typ.IsNonNull():
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", name, typ)
			default:
				continue
			}
		}
		if raw == nil && typ.IsNonNull() {
			return nil, fmt.Errorf("variable $%s of type %s cannot be null", name, typ)
		}
		v, err := coerceInput(sch, raw, typ)
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s cannot be coerced: %v", name, typ, err)
		}
		coerced[name] = v
	}
	return coerced, nil
}

// coerceArgumentValues builds the argument map of one field. Arguments bound
// to a variable that was not provided count as absent.
func coerceArgumentValues(
	state *executionState,
	fieldDef *schema.Field,
	arguments language.ArgumentList,
	path Path,
	fields []*language.Field,
) map[string]any {
	coerced := make(map[string]any, len(fieldDef.Arguments))
	for _, def := range fieldDef.Arguments {
		var lit *language.Value
		if arg := arguments.ForName(def.Name); arg != nil {
			lit = arg.Value
		}
		if lit != nil && lit.Kind == language.Variable {
			if _, ok := state.variableValues[lit.Raw]; !ok {
				lit = nil
			}
		}
		if lit == nil {
			switch {
			case def.DefaultValue != nil:
				coerced[def.Name] = def.DefaultValue
			case def.Type.IsNonNull():
				state.addError(fmt.Sprintf("Argument %q of required type %s was not provided.", def.Name, def.Type), path, fields...)
			}
			continue
		}
		v, err := coerceInput(state.schema, goValue(lit, state.variableValues), def.Type)
		if err != nil {
			state.addError(fmt.Sprintf("Argument %q has invalid value: %v", def.Name, err), path, fields...)
			continue
		}
		coerced[def.Name] = v
	}
	return coerced
}

// goValue converts a literal to its plain Go form, substituting variables
// wherever they appear. Unknown variables become nil.
func goValue(lit *language.Value, vars map[string]any) any {
	if lit == nil {
		return nil
	}
	switch lit.Kind {
	case language.Variable:
		return vars[lit.Raw]
	case language.IntValue:
		if i, err := strconv.ParseInt(lit.Raw, 10, 64); err == nil {
			return i
		}
		f, _ := strconv.ParseFloat(lit.Raw, 64)
		return f
	case language.FloatValue:
		f, _ := strconv.ParseFloat(lit.Raw, 64)
		return f
	case language.BooleanValue:
		return lit.Raw == "true"
	case language.NullValue:
		return nil
	case language.ListValue:
		out := make([]any, len(lit.Children))
		for i, c := range lit.Children {
			out[i] = goValue(c.Value, vars)
		}
		return out
	case language.ObjectValue:
		out := make(map[string]any, len(lit.Children))
		for _, c := range lit.Children {
			out[c.Name] = goValue(c.Value, vars)
		}
		return out
	}
	// String, block string and enum literals.
	return lit.Raw
}

// coerceInput coerces an input value to typ.
func coerceInput(sch *schema.Schema, value any, typ *schema.TypeRef) (any, error) {
	if typ.IsNonNull() {
		if value == nil {
			return nil, errNullForNonNull
		}
		return coerceInput(sch, value, typ.OfType)
	}
	if value == nil {
		return nil, nil
	}
	if typ.Kind == schema.TypeRefKindList {
		items, ok := value.([]any)
		if !ok {
			// A single item stands for a list of one.
			v, err := coerceInput(sch, value, typ.OfType)
			if err != nil {
				return nil, err
			}
			return []any{v}, nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			v, err := coerceInput(sch, item, typ.OfType)
			if err != nil {
				return nil, fmt.Errorf("at index %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}

	def := sch.Types[typ.Named]
	if def == nil {
		return value, nil
	}
	switch def.Kind {
	case schema.TypeKindEnum:
		return coerceEnum(def, value)
	case schema.TypeKindInputObject:
		return coerceInputObject(sch, def, value)
	}
	return coerceScalar(typ.Named, value)
}

func coerceEnum(def *schema.Type, value any) (any, error) {
	name, ok := value.(string)
	if ok {
		for _, ev := range def.EnumValues {
			if ev.Name == name {
				return name, nil
			}
		}
	}
	return nil, fmt.Errorf("value %v is not a member of enum %s", value, def.Name)
}

func coerceInputObject(sch *schema.Schema, def *schema.Type, value any) (any, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object for %s, got %T", def.Name, value)
	}
	known := make(map[string]bool, len(def.InputFields))
	out := make(map[string]any, len(def.InputFields))
	for _, f := range def.InputFields {
		known[f.Name] = true
		raw, present := obj[f.Name]
		if !present {
			switch {
			case f.DefaultValue != nil:
				out[f.Name] = f.DefaultValue
			case f.Type.IsNonNull():
				return nil, fmt.Errorf("field %s.%s of required type %s was not provided", def.Name, f.Name, f.Type)
			}
			continue
		}
		v, err := coerceInput(sch, raw, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", def.Name, f.Name, err)
		}
		out[f.Name] = v
	}
	var unknown []string
	for name := range obj {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("field %q is not defined by type %s", unknown[0], def.Name)
	}
	return out, nil
}

// coerceScalar handles the built-in scalars. Custom scalars pass through.
func coerceScalar(name string, value any) (any, error) {
	switch name {
	case "Int":
		i, ok := asInt64(value)
		if !ok {
			return nil, fmt.Errorf("Int cannot represent non-integer value: %v", value)
		}
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %d", i)
		}
		return i, nil
	case "Float":
		if f, ok := asFloat64(value); ok {
			return f, nil
		}
		return nil, fmt.Errorf("Float cannot represent non numeric value: %v", value)
	case "String":
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("String cannot represent a non string value: %v", value)
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent a non boolean value: %v", value)
	case "ID":
		if s, ok := value.(string); ok {
			return s, nil
		}
		if i, ok := asInt64(value); ok {
			return strconv.FormatInt(i, 10), nil
		}
		return nil, fmt.Errorf("ID cannot represent value: %v", value)
	}
	return value, nil
}

func asInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		i, err := v.Int64()
		return i, err == nil
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int64(v), true
		}
	}
	return 0, false
}

func asFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	if i, ok := asInt64(value); ok {
		return float64(i), true
	}
	return 0, false
}
