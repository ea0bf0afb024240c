package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/hanpama/gqlgate/internal/language"
	"github.com/hanpama/gqlgate/internal/schema"
)

type Path []PathElement

type PathElement any

type NodeID uint64

// executionState holds the state during query execution
type executionState struct {
	runtime        Runtime
	schema         *schema.Schema
	document       *language.QueryDocument
	variableValues map[string]any
	context        context.Context
	asyncTaskGroup []asyncTask
	errors         []GraphQLError
	asyncTaskInfo  map[NodeID]asyncTask
	nextID         uint64
	// prefixes of paths that have been nullified (tombstoned)
	nullifiedPrefix map[string]struct{}
}

func newExecutionState(ctx context.Context, rt Runtime, sch *schema.Schema, doc *language.QueryDocument, vars map[string]any) *executionState {
	return &executionState{
		runtime:         rt,
		schema:          sch,
		document:        doc,
		variableValues:  vars,
		context:         ctx,
		asyncTaskInfo:   make(map[NodeID]asyncTask),
		nextID:          1,
		nullifiedPrefix: make(map[string]struct{}),
	}
}

// asyncTask represents a pending async field resolution
type asyncTask struct {
	ID           NodeID
	Task         AsyncResolveTask
	ResponsePath Path
	FieldType    *schema.TypeRef
	Fields       []*language.Field
}

type asyncPending struct{}

// Executor runs operations of a single schema against a Runtime. It holds no
// per-request state and is safe for concurrent use.
type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func NewExecutor(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

// Schema returns the schema operations are executed against.
func (e *Executor) Schema() *schema.Schema { return e.schema }

// Parse parses source into a document. When the schema carries its validated
// definition, the document is validated against it as well.
func (e *Executor) Parse(source string) (*language.QueryDocument, []GraphQLError) {
	if e.schema != nil && e.schema.Source != nil {
		doc, errs := language.LoadQuery(e.schema.Source, source)
		if len(errs) > 0 {
			return nil, ErrorsFromList(errs)
		}
		return doc, nil
	}
	doc, err := language.ParseQuery(source)
	if err != nil {
		var gqlErr *language.Error
		if errors.As(err, &gqlErr) {
			return nil, ErrorsFromList(language.ErrorList{gqlErr})
		}
		return nil, []GraphQLError{{Message: err.Error()}}
	}
	return doc, nil
}

type preparedOperation struct {
	operation *language.OperationDefinition
	rootType  *schema.Type
	variables map[string]any
}

func (e *Executor) prepare(document *language.QueryDocument, operationName string, variableValues map[string]any) (*preparedOperation, *ExecutionResult) {
	operation := GetOperation(document, operationName)
	if operation == nil {
		if operationName != "" {
			return nil, failure(fmt.Sprintf("Unknown operation named %q.", operationName))
		}
		return nil, failure("operation not found")
	}

	coerced, err := coerceVariableValues(e.schema, operation, variableValues)
	if err != nil {
		return nil, failure(err.Error())
	}

	rootType := e.schema.RootType(operation.Operation)
	if rootType == nil {
		return nil, failure(fmt.Sprintf("root type not found for %s operation", operation.Operation))
	}
	return &preparedOperation{operation: operation, rootType: rootType, variables: coerced}, nil
}

// ExecuteRequest executes one operation of document and returns its result.
// initialValue is passed as the source of root fields.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	prep, failed := e.prepare(document, operationName, variableValues)
	if failed != nil {
		return failed
	}

	state := newExecutionState(ctx, e.runtime, e.schema, document, prep.variables)

	// Root selection set: sync immediate expansion, async queued
	responseRoot := executeSelectionSet(state, prep.rootType, prep.operation.SelectionSet, initialValue, Path{})

	// Depth-wise batch loop
	for len(state.asyncTaskGroup) > 0 {
		filtered, results := flushAsyncTasks(state)
		for i, r := range results {
			completeAsyncField(state, filtered[i], r, responseRoot)
		}
	}

	return state.result(responseRoot)
}

func (state *executionState) result(data map[string]any) *ExecutionResult {
	res := &ExecutionResult{}
	if data != nil {
		res.Data = data
	}
	if len(state.errors) > 0 {
		res.Errors = state.errors
	}
	return res
}

// executeSelectionSet executes a selection set without flushing
func executeSelectionSet(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet, objectValue any, path Path) map[string]any {
	resultMap := make(map[string]any)

	for _, group := range collectFields(state, objectType, selectionSet) {
		responseName := group.ResponseName
		fields := group.Fields
		fieldPath := appendPath(path, responseName)

		fieldResult := executeFieldGroup(state, objectType, objectValue, fields, fieldPath)

		if fields[0].Name == "__typename" {
			resultMap[responseName] = fieldResult
			continue
		}

		fieldDef := objectType.Field(fields[0].Name)
		if fieldDef == nil {
			// error was recorded in executeFieldGroup
			continue
		}

		if schema.IsNonNull(fieldDef.Type) && isNullish(fieldResult) {
			if len(path) > 0 {
				return nil
			}
			resultMap[responseName] = nil
			continue
		}

		if isNullish(fieldResult) {
			resultMap[responseName] = nil
		} else {
			resultMap[responseName] = fieldResult
		}
	}

	return resultMap
}

func executeFieldGroup(state *executionState, objectType *schema.Type, objectValue any, fields []*language.Field, path Path) any {
	field := fields[0]
	fieldName := field.Name

	if fieldName == "__typename" {
		return objectType.Name
	}

	fieldDef := objectType.Field(fieldName)
	if fieldDef == nil {
		state.addError(fmt.Sprintf("Cannot query field %q on type %q.", fieldName, objectType.Name), path, fields...)
		return nil
	}

	argumentValues := coerceArgumentValues(state, fieldDef, field.Arguments, path, fields)

	if !fieldDef.Async {
		resolvedValue := resolveSyncField(state, objectType.Name, fieldName, objectValue, argumentValues, path, fields)
		return completeValue(state, fieldDef.Type, fields, resolvedValue, path)
	}

	id := NodeID(state.nextID)
	state.nextID++
	at := asyncTask{
		ID: id,
		Task: AsyncResolveTask{
			ObjectType: objectType.Name,
			Field:      fieldName,
			Source:     objectValue,
			Args:       argumentValues,
		},
		ResponsePath: path,
		FieldType:    fieldDef.Type,
		Fields:       fields,
	}
	state.asyncTaskGroup = append(state.asyncTaskGroup, at)
	state.asyncTaskInfo[id] = at
	return asyncPending{}
}

// flushAsyncTasks flushes tasks and returns results (filtered by tombstones)
func flushAsyncTasks(state *executionState) ([]asyncTask, []AsyncResolveResult) {
	filtered := make([]asyncTask, 0, len(state.asyncTaskGroup))
	for _, at := range state.asyncTaskGroup {
		if state.hasNullifiedPrefix(at.ResponsePath) {
			delete(state.asyncTaskInfo, at.ID)
			continue
		}
		filtered = append(filtered, at)
	}

	tasks := make([]AsyncResolveTask, len(filtered))
	for i, at := range filtered {
		tasks[i] = at.Task
	}

	state.asyncTaskGroup = nil

	results := state.runtime.BatchResolveAsync(state.context, tasks)
	return filtered, results
}

// completeAsyncField completes a single async result, with non-null propagation and pruning
func completeAsyncField(state *executionState, at asyncTask, res AsyncResolveResult, responseRoot map[string]any) {
	delete(state.asyncTaskInfo, at.ID)

	path := at.ResponsePath
	if state.hasNullifiedPrefix(path) {
		return
	}

	if res.Error != nil {
		state.addError(res.Error.Error(), path, at.Fields...)
		if schema.IsNonNull(at.FieldType) {
			state.nullify(responseRoot, path)
			return
		}
		setValueAtPath(responseRoot, path, nil)
		return
	}

	completed := completeValue(state, at.FieldType, at.Fields, res.Value, path)

	if schema.IsNonNull(at.FieldType) && isNullish(completed) {
		state.nullify(responseRoot, path)
		return
	}

	if isNullish(completed) {
		setValueAtPath(responseRoot, path, nil)
	} else {
		setValueAtPath(responseRoot, path, completed)
	}
}

// nullify propagates a non-null violation at path to its top-level field.
func (state *executionState) nullify(responseRoot map[string]any, path Path) {
	top := topLevelFieldPath(path)
	setValueAtPath(responseRoot, top, nil)
	state.markNullifiedPrefix(top)
}

// completeValue completes a value
func completeValue(state *executionState, fieldType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	if schema.IsNonNull(fieldType) {
		if isNullish(result) {
			if !state.hasErrorAtPath(path) {
				state.addError(fmt.Sprintf("Cannot return null for non-nullable field %s.", pathToString(path)), path, fields...)
			}
			return nil
		}
		completed := completeValue(state, schema.Unwrap(fieldType), fields, result, path)
		if isNullish(completed) {
			return nil
		}
		return completed
	}

	if isNullish(result) {
		return nil
	}

	if schema.IsList(fieldType) {
		return completeListValue(state, fieldType, fields, result, path)
	}
	namedType := schema.GetNamedType(fieldType)
	typeObj := state.schema.Types[namedType]
	if typeObj == nil {
		state.addError(fmt.Sprintf("Unknown type: %s", namedType), path, fields...)
		return nil
	}

	switch typeObj.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		serialized, err := state.runtime.SerializeLeafValue(state.context, namedType, result)
		if err != nil {
			state.addError(err.Error(), path, fields...)
			return nil
		}
		return serialized
	case schema.TypeKindObject:
		return completeObjectValue(state, typeObj, fields, result, path)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		return completeAbstractValue(state, typeObj, fields, result, path)
	default:
		state.addError(fmt.Sprintf("Cannot complete value of unexpected type: %s", typeObj.Kind), path, fields...)
		return nil
	}
}

func completeListValue(state *executionState, listType *schema.TypeRef, fields []*language.Field, result any, path Path) any {
	var items []any
	if direct, ok := result.([]any); ok {
		items = direct
	} else {
		rv := reflect.ValueOf(result)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			state.addError(fmt.Sprintf("Expected list value, got %T", result), path, fields...)
			return nil
		}
		items = make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
	}

	inner := schema.Unwrap(listType)
	completed := make([]any, len(items))
	for i, item := range items {
		v := completeValue(state, inner, fields, item, appendPath(path, i))
		if schema.IsNonNull(inner) && isNullish(v) {
			return nil
		}
		completed[i] = v
	}
	return completed
}

func completeObjectValue(state *executionState, objectType *schema.Type, fields []*language.Field, result any, path Path) any {
	return executeSelectionSet(state, objectType, mergeSelectionSets(fields), result, path)
}

func completeAbstractValue(state *executionState, abstractType *schema.Type, fields []*language.Field, result any, path Path) any {
	typeName, err := state.runtime.ResolveType(state.context, abstractType.Name, result)
	if err != nil {
		state.addError(err.Error(), path, fields...)
		return nil
	}
	objectType := state.schema.Types[typeName]
	if objectType == nil || objectType.Kind != schema.TypeKindObject {
		state.addError(fmt.Sprintf("Abstract type %s must resolve to an Object type at runtime. Got: %s", abstractType.Name, typeName), path, fields...)
		return nil
	}
	if !isPossibleType(abstractType, typeName) {
		state.addError(fmt.Sprintf("Runtime Object type %q is not a possible type for %q.", typeName, abstractType.Name), path, fields...)
		return nil
	}
	return completeObjectValue(state, objectType, fields, result, path)
}

func isPossibleType(abstractType *schema.Type, typeName string) bool {
	// hand-built schemas may omit possible types
	if len(abstractType.PossibleTypes) == 0 {
		return true
	}
	for _, name := range abstractType.PossibleTypes {
		if name == typeName {
			return true
		}
	}
	return false
}

func pathToString(path Path) string {
	result := ""
	for i, elem := range path {
		switch v := elem.(type) {
		case string:
			if i > 0 {
				result += "."
			}
			result += v
		case int:
			result += fmt.Sprintf("[%d]", v)
		}
	}
	return result
}

func appendPath(path Path, elem PathElement) Path {
	newPath := make(Path, len(path)+1)
	copy(newPath, path)
	newPath[len(path)] = elem
	return newPath
}

func (s *executionState) markNullifiedPrefix(p Path) {
	key := pathToString(p)
	if key != "" {
		s.nullifiedPrefix[key] = struct{}{}
	}
}

func (s *executionState) hasNullifiedPrefix(p Path) bool {
	if len(s.nullifiedPrefix) == 0 {
		return false
	}
	cur := Path{}
	for _, elem := range p {
		cur = append(cur, elem)
		if _, ok := s.nullifiedPrefix[pathToString(cur)]; ok {
			return true
		}
	}
	return false
}

func topLevelFieldPath(p Path) Path {
	for _, elem := range p {
		if name, ok := elem.(string); ok {
			return Path{name}
		}
	}
	return Path{}
}

// GetOperation returns the operation called operationName, or the only
// operation of document when operationName is empty.
func GetOperation(document *language.QueryDocument, operationName string) *language.OperationDefinition {
	if operationName == "" {
		if len(document.Operations) == 1 {
			return document.Operations[0]
		}
		return nil
	}
	return document.Operations.ForName(operationName)
}

func (state *executionState) addError(message string, path Path, fields ...*language.Field) {
	state.errors = append(state.errors, GraphQLError{
		Message:   message,
		Locations: locationsOf(fields),
		Path:      path,
	})
}

// hasErrorAtPath reports whether an error with the given path already exists.
func (state *executionState) hasErrorAtPath(path Path) bool {
	for _, err := range state.errors {
		if reflect.DeepEqual(err.Path, path) {
			return true
		}
	}
	return false
}

func resolveSyncField(state *executionState, objectType string, fieldName string, source any, args map[string]any, path Path, fields []*language.Field) any {
	value, err := state.runtime.ResolveSync(state.context, objectType, fieldName, source, args)
	if err != nil {
		state.addError(err.Error(), path, fields...)
		return nil
	}
	return value
}

// setValueAtPath writes value into the response tree, creating intermediate
// objects as needed.
func setValueAtPath(responseRoot map[string]any, path Path, value any) {
	if len(path) == 0 {
		return
	}
	current := any(responseRoot)
	for _, elem := range path[:len(path)-1] {
		switch e := elem.(type) {
		case string:
			m, ok := current.(map[string]any)
			if !ok {
				return
			}
			next, exists := m[e]
			if !exists {
				next = make(map[string]any)
				m[e] = next
			}
			current = next
		case int:
			slice, ok := current.([]any)
			if !ok || e >= len(slice) {
				return
			}
			if slice[e] == nil {
				slice[e] = make(map[string]any)
			}
			current = slice[e]
		}
	}
	switch fe := path[len(path)-1].(type) {
	case string:
		if m, ok := current.(map[string]any); ok {
			m[fe] = value
		}
	case int:
		if slice, ok := current.([]any); ok && fe < len(slice) {
			slice[fe] = value
		}
	}
}

func mergeSelectionSets(fields []*language.Field) language.SelectionSet {
	var merged language.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

// isNullish returns true for nil interfaces and typed nils (map, slice, ptr, interface)
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

func failure(message string) *ExecutionResult {
	return &ExecutionResult{Errors: []GraphQLError{{Message: message}}}
}
