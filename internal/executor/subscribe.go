package executor

import (
	"context"
	"fmt"

	"github.com/hanpama/gqlgate/internal/language"
)

// ResultStream is a cancellable sequence of execution results. Results are
// delivered on an unbuffered channel that is closed when the stream ends,
// either because its source was exhausted or because it was closed.
type ResultStream struct {
	results chan *ExecutionResult
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewResultStream starts produce in its own goroutine. emit delivers one
// result and reports false once the stream has been closed, after which
// produce should return.
func NewResultStream(ctx context.Context, produce func(ctx context.Context, emit func(*ExecutionResult) bool)) *ResultStream {
	ctx, cancel := context.WithCancel(ctx)
	return newResultStream(ctx, cancel, produce)
}

func newResultStream(ctx context.Context, cancel context.CancelFunc, produce func(ctx context.Context, emit func(*ExecutionResult) bool)) *ResultStream {
	s := &ResultStream{
		results: make(chan *ExecutionResult),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		defer close(s.results)
		defer cancel()
		produce(ctx, func(r *ExecutionResult) bool {
			select {
			case s.results <- r:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()
	return s
}

// Results returns the channel results are delivered on.
func (s *ResultStream) Results() <-chan *ExecutionResult { return s.results }

// Close cancels the stream and waits for its producer to exit. It is safe to
// call more than once and after the stream has ended.
func (s *ResultStream) Close() {
	s.cancel()
	<-s.done
}

// Subscribe creates the source event stream of a subscription operation and
// maps every event through ExecuteRequest, with the event as root value.
// Failures that prevent the stream from being created are returned as an
// ExecutionResult instead of a stream.
//
// initialValue is passed to the runtime's Subscribe through the root field
// source; it is not used for the per-event executions.
func (e *Executor) Subscribe(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) (*ResultStream, *ExecutionResult) {
	prep, failed := e.prepare(document, operationName, variableValues)
	if failed != nil {
		return nil, failed
	}
	if prep.operation.Operation != language.Subscription {
		return nil, failure(fmt.Sprintf("operation of type %s cannot be subscribed to", prep.operation.Operation))
	}
	rt, ok := e.runtime.(SubscriptionRuntime)
	if !ok {
		return nil, failure("subscriptions are not supported by this runtime")
	}

	state := newExecutionState(ctx, e.runtime, e.schema, document, prep.variables)
	grouped := collectFields(state, prep.rootType, prep.operation.SelectionSet)
	if len(grouped) != 1 {
		return nil, failure("subscription operations must select exactly one top level field")
	}
	root := grouped[0]
	field := root.Fields[0]
	path := Path{root.ResponseName}

	fieldDef := prep.rootType.Field(field.Name)
	if fieldDef == nil {
		state.addError(fmt.Sprintf("Cannot query field %q on type %q.", field.Name, prep.rootType.Name), path, root.Fields...)
		return nil, state.result(nil)
	}
	args := coerceArgumentValues(state, fieldDef, field.Arguments, path, root.Fields)
	if len(state.errors) > 0 {
		return nil, state.result(nil)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	source, err := rt.Subscribe(withRootValue(streamCtx, initialValue), prep.rootType.Name, field.Name, args)
	if err != nil {
		cancel()
		state.addError(err.Error(), path, root.Fields...)
		return nil, state.result(nil)
	}

	return newResultStream(streamCtx, cancel, func(ctx context.Context, emit func(*ExecutionResult) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-source:
				if !ok {
					return
				}
				if !emit(e.ExecuteRequest(ctx, document, operationName, variableValues, event)) {
					return
				}
			}
		}
	}), nil
}

type rootValueKey struct{}

func withRootValue(ctx context.Context, v any) context.Context {
	if v == nil {
		return ctx
	}
	return context.WithValue(ctx, rootValueKey{}, v)
}

// RootValueFromContext returns the root value a subscription was started
// with, as seen by SubscriptionRuntime.Subscribe.
func RootValueFromContext(ctx context.Context) (any, bool) {
	v := ctx.Value(rootValueKey{})
	return v, v != nil
}
