// Package reqid carries a per-request correlation ID through contexts.
package reqid

import (
	"context"

	"github.com/google/uuid"
)

type key struct{}

// NewContext returns a copy of parent carrying a new random request ID, and
// the ID itself.
func NewContext(parent context.Context) (context.Context, string) {
	id := uuid.NewString()
	return WithID(parent, id), id
}

// WithID returns a copy of parent carrying id.
func WithID(parent context.Context, id string) context.Context {
	return context.WithValue(parent, key{}, id)
}

// FromContext extracts the request ID from ctx.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(key{}).(string)
	return id, ok
}
