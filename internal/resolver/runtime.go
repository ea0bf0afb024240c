package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/hanpama/gqlgate/internal/executor"
	"github.com/hanpama/gqlgate/internal/schema"
	"golang.org/x/sync/errgroup"
)

// TypeResolver names the concrete object type of a value of an abstract type.
type TypeResolver func(ctx context.Context, abstractType string, value any) (string, error)

// Typenamer may be implemented by values returned for abstract types.
type Typenamer interface {
	GraphQLTypename() string
}

// Runtime implements executor.SubscriptionRuntime on top of bound Maps.
type Runtime struct {
	schema       *schema.Schema
	resolvers    map[string]ResolveFunc
	subscribers  map[string]SubscribeFunc
	typeResolver TypeResolver
	concurrency  int
}

var _ executor.SubscriptionRuntime = (*Runtime)(nil)

type Option func(*Runtime)

// WithTypeResolver overrides how abstract values are mapped to object types.
func WithTypeResolver(fn TypeResolver) Option {
	return func(r *Runtime) { r.typeResolver = fn }
}

// WithConcurrency limits how many resolvers of one batch run at once. Zero
// or less means no limit.
func WithConcurrency(n int) Option {
	return func(r *Runtime) { r.concurrency = n }
}

// NewRuntime returns a runtime for sch with no bound resolvers.
func NewRuntime(sch *schema.Schema, opts ...Option) *Runtime {
	r := &Runtime{
		schema:      sch,
		resolvers:   make(map[string]ResolveFunc),
		subscribers: make(map[string]SubscribeFunc),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Bind installs maps into the runtime. It fails on the first map that names
// a type or field the schema does not define, leaving the runtime and the
// schema as they were.
func (r *Runtime) Bind(maps ...*Map) error {
	for _, m := range maps {
		if err := m.check(r.schema); err != nil {
			return err
		}
	}
	for _, m := range maps {
		m.install(r.schema, r)
	}
	return nil
}

// Bind is a shorthand for NewRuntime followed by Runtime.Bind.
func Bind(sch *schema.Schema, maps ...*Map) (*Runtime, error) {
	r := NewRuntime(sch)
	if err := r.Bind(maps...); err != nil {
		return nil, err
	}
	return r, nil
}

// ResolveSync resolves fields without a bound resolver, and bound ones when
// they are reached outside a batch.
func (r *Runtime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	return r.resolve(ctx, objectType, field, source, args)
}

// BatchResolveAsync runs the resolvers of one depth. Mutation root fields run
// one after another in document order; everything else runs concurrently.
func (r *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	if r.serial(tasks) {
		for i, t := range tasks {
			results[i] = r.resolveTask(ctx, t)
		}
		return results
	}

	var g errgroup.Group
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for i, t := range tasks {
		g.Go(func() error {
			results[i] = r.resolveTask(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runtime) serial(tasks []executor.AsyncResolveTask) bool {
	if r.schema.MutationType == "" {
		return false
	}
	for _, t := range tasks {
		if t.ObjectType == r.schema.MutationType {
			return true
		}
	}
	return false
}

func (r *Runtime) resolveTask(ctx context.Context, t executor.AsyncResolveTask) (res executor.AsyncResolveResult) {
	defer func() {
		if p := recover(); p != nil {
			res = executor.AsyncResolveResult{Error: fmt.Errorf("resolver %s.%s panicked: %v", t.ObjectType, t.Field, p)}
		}
	}()
	v, err := r.resolve(ctx, t.ObjectType, t.Field, t.Source, t.Args)
	return executor.AsyncResolveResult{Value: v, Error: err}
}

func (r *Runtime) resolve(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	if fn := r.resolvers[key(objectType, field)]; fn != nil {
		return fn(ctx, source, args)
	}
	if objectType == r.schema.SubscriptionType {
		// the published event is the field value
		return source, nil
	}
	return Property(source, field), nil
}

// Property reads field from a map or struct value. Struct fields match by
// their json tag name, then case-insensitively by Go name. Missing fields
// resolve to nil.
func Property(source any, field string) any {
	switch s := source.(type) {
	case nil:
		return nil
	case map[string]any:
		return s[field]
	}

	rv := reflect.ValueOf(source)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		v := rv.MapIndex(reflect.ValueOf(field).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil
		}
		return v.Interface()
	case reflect.Struct:
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			sf := rt.Field(i)
			if !sf.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
			if name == field || (name == "" && strings.EqualFold(sf.Name, field)) {
				return rv.Field(i).Interface()
			}
		}
	}
	return nil
}

// ResolveType implements executor.Runtime.
func (r *Runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	if r.typeResolver != nil {
		return r.typeResolver(ctx, abstractType, value)
	}
	if tn, ok := value.(Typenamer); ok {
		return tn.GraphQLTypename(), nil
	}
	if name, ok := Property(value, "__typename").(string); ok && name != "" {
		return name, nil
	}
	return "", fmt.Errorf("cannot resolve the concrete type of %s from %T", abstractType, value)
}

// SerializeLeafValue implements executor.Runtime for the built-in scalars
// and enums. Custom scalars pass through unchanged.
func (r *Runtime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	switch typeName {
	case "String":
		return serializeString(value), nil
	case "ID":
		switch v := value.(type) {
		case string:
			return v, nil
		case json.Number:
			return v.String(), nil
		}
		if i, ok := toInt64(value); ok {
			return strconv.FormatInt(i, 10), nil
		}
		return serializeString(value), nil
	case "Int":
		if i, ok := toInt64(value); ok {
			if i < math.MinInt32 || i > math.MaxInt32 {
				return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %d", i)
			}
			return i, nil
		}
		if f, ok := toFloat64(value); ok && f == math.Trunc(f) {
			return int64(f), nil
		}
		return nil, fmt.Errorf("Int cannot represent non-integer value: %v", value)
	case "Float":
		if f, ok := toFloat64(value); ok {
			return f, nil
		}
		return nil, fmt.Errorf("Float cannot represent non numeric value: %v", value)
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent a non boolean value: %v", value)
	}
	if t := r.schema.Types[typeName]; t != nil && t.Kind == schema.TypeKindEnum {
		name := serializeString(value)
		for _, ev := range t.EnumValues {
			if ev.Name == name {
				return name, nil
			}
		}
		return nil, fmt.Errorf("Enum %q cannot represent value: %v", typeName, value)
	}
	return value, nil
}

// Subscribe implements executor.SubscriptionRuntime.
func (r *Runtime) Subscribe(ctx context.Context, objectType, field string, args map[string]any) (<-chan any, error) {
	fn := r.subscribers[key(objectType, field)]
	if fn == nil {
		return nil, fmt.Errorf("no subscriber registered for %s.%s", objectType, field)
	}
	return fn(ctx, args)
}

func serializeString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(value)
}

func toInt64(value any) (int64, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	if n, ok := value.(json.Number); ok {
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func toFloat64(value any) (float64, bool) {
	if i, ok := toInt64(value); ok {
		return float64(i), true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	if n, ok := value.(json.Number); ok {
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
