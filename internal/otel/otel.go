// Package otel turns lifecycle events into OpenTelemetry spans.
package otel

import (
	"context"
	"sync"

	"github.com/hanpama/gqlgate/internal/eventbus"
	"github.com/hanpama/gqlgate/internal/events"
	"github.com/hanpama/gqlgate/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const tracerName = "gqlgate"

// Setup configures an OTLP/gRPC trace exporter and subscribes span
// producers to bus. With an empty endpoint nothing is configured and the
// returned shutdown is a no-op.
func Setup(ctx context.Context, bus *eventbus.Bus, endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := Register(bus, tp.Tracer(tracerName))
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Register subscribes span producers using tracer and returns a function
// that removes them.
func Register(bus *eventbus.Bus, tracer trace.Tracer) (unsubscribe func()) {
	s := &subscriber{tracer: tracer}
	return s.register(bus)
}

type subscriber struct {
	tracer    trace.Tracer
	httpSpans sync.Map // rid -> trace.Span
	gqlSpans  sync.Map // rid -> trace.Span
	connSpans sync.Map // connection id -> trace.Span
	opSpans   sync.Map // connection id + "/" + operation id -> trace.Span
}

func (s *subscriber) register(bus *eventbus.Bus) func() {
	unsubs := []func(){
		eventbus.Subscribe(bus, func(ctx context.Context, e events.HTTPStart) {
			_, span := s.tracer.Start(ctx, "http.request")
			span.SetAttributes(
				semconv.HTTPMethodKey.String(e.Request.Method),
				attribute.String("http.target", e.Request.URL.Path),
				attribute.String("graphql.request_id", e.RequestID),
			)
			s.httpSpans.Store(e.RequestID, span)
		}),

		eventbus.Subscribe(bus, func(ctx context.Context, e events.HTTPFinish) {
			v, ok := s.httpSpans.LoadAndDelete(e.RequestID)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
			if e.Status >= 500 {
				span.SetStatus(codes.Error, "")
			}
			span.End()
		}),

		eventbus.Subscribe(bus, func(ctx context.Context, e events.GraphQLStart) {
			rid, _ := reqid.FromContext(ctx)
			parent := ctx
			if v, ok := s.httpSpans.Load(rid); ok {
				parent = trace.ContextWithSpan(ctx, v.(trace.Span))
			}
			_, span := s.tracer.Start(parent, "graphql.operation")
			span.SetAttributes(
				attribute.String("graphql.transport", e.Transport),
				attribute.String("graphql.operation.name", e.OperationName),
				attribute.String("graphql.operation.type", e.OperationType),
			)
			s.gqlSpans.Store(rid, span)
		}),

		eventbus.Subscribe(bus, func(ctx context.Context, e events.GraphQLFinish) {
			rid, _ := reqid.FromContext(ctx)
			v, ok := s.gqlSpans.LoadAndDelete(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(attribute.Int("graphql.error_count", len(e.Errors)))
			for _, err := range e.Errors {
				span.RecordError(err)
			}
			span.End()
		}),

		eventbus.Subscribe(bus, func(ctx context.Context, e events.ConnectionOpen) {
			_, span := s.tracer.Start(ctx, "graphql.ws.connection")
			span.SetAttributes(attribute.String("graphql.ws.connection_id", e.ConnectionID))
			s.connSpans.Store(e.ConnectionID, span)
		}),

		eventbus.Subscribe(bus, func(ctx context.Context, e events.ConnectionClose) {
			v, ok := s.connSpans.LoadAndDelete(e.ConnectionID)
			if !ok {
				return
			}
			span := v.(trace.Span)
			if e.Err != nil {
				span.RecordError(e.Err)
			}
			span.End()
		}),

		eventbus.Subscribe(bus, func(ctx context.Context, e events.OperationStart) {
			parent := ctx
			if v, ok := s.connSpans.Load(e.ConnectionID); ok {
				parent = trace.ContextWithSpan(ctx, v.(trace.Span))
			}
			_, span := s.tracer.Start(parent, "graphql.ws.operation")
			span.SetAttributes(
				attribute.String("graphql.ws.operation_id", e.OperationID),
				attribute.String("graphql.operation.name", e.OperationName),
				attribute.String("graphql.operation.type", e.OperationType),
			)
			s.opSpans.Store(e.ConnectionID+"/"+e.OperationID, span)
		}),

		eventbus.Subscribe(bus, func(ctx context.Context, e events.OperationStop) {
			v, ok := s.opSpans.LoadAndDelete(e.ConnectionID + "/" + e.OperationID)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(attribute.String("graphql.ws.stop_reason", e.Reason))
			span.End()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
