// Package eventbus dispatches typed lifecycle events to in-process
// observers such as tracing and metrics.
package eventbus

import (
	"context"
	"reflect"
	"sync"
)

// Handler processes events of type T.
type Handler[T any] func(context.Context, T)

// Bus is a simple in-process event dispatcher keyed by event type. A nil
// *Bus is valid and drops every event.
type Bus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]*entry
}

type entry struct {
	fn func(context.Context, any)
}

// New creates a new Bus.
func New() *Bus { return &Bus{handlers: make(map[reflect.Type][]*entry)} }

func (b *Bus) subscribe(t reflect.Type, fn func(context.Context, any)) (unsubscribe func()) {
	e := &entry{fn: fn}
	b.mu.Lock()
	b.handlers[t] = append(b.handlers[t], e)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			hs := b.handlers[t]
			for i, h := range hs {
				if h == e {
					hs = append(hs[:i:i], hs[i+1:]...)
					break
				}
			}
			if len(hs) == 0 {
				delete(b.handlers, t)
			} else {
				b.handlers[t] = hs
			}
		})
	}
}

// emit dispatches e to all handlers of its dynamic type, synchronously and
// in subscription order.
func (b *Bus) emit(ctx context.Context, t reflect.Type, e any) {
	b.mu.RLock()
	hs := b.handlers[t]
	b.mu.RUnlock()
	for _, h := range hs {
		h.fn(ctx, e)
	}
}

// Subscribe registers h for events of type T on b.
func Subscribe[T any](b *Bus, h Handler[T]) (unsubscribe func()) {
	if b == nil {
		return func() {}
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	return b.subscribe(t, func(ctx context.Context, v any) { h(ctx, v.(T)) })
}

// Publish sends e to the handlers subscribed to T on b.
func Publish[T any](ctx context.Context, b *Bus, e T) {
	if b == nil {
		return
	}
	b.emit(ctx, reflect.TypeOf((*T)(nil)).Elem(), e)
}
