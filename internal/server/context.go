package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/hanpama/gqlgate/internal/language"
	"google.golang.org/grpc/metadata"
)

// ContextBuilder derives the context resolvers run with. raw is the
// *http.Request for HTTP operations and the decoded start message for
// WebSocket operations.
type ContextBuilder func(ctx context.Context, raw any) context.Context

// RootValueFunc returns the root value an operation is executed with.
type RootValueFunc func(ctx context.Context, doc *language.QueryDocument, variables map[string]any) any

type rawKey struct{}

// WithRaw returns a copy of ctx carrying the raw transport request.
func WithRaw(ctx context.Context, raw any) context.Context {
	return context.WithValue(ctx, rawKey{}, raw)
}

// RawFromContext returns the raw transport request stored by the default
// context builder.
func RawFromContext(ctx context.Context) (any, bool) {
	v := ctx.Value(rawKey{})
	return v, v != nil
}

// BuildContext applies b, or stores raw with WithRaw when b is nil.
func BuildContext(ctx context.Context, b ContextBuilder, raw any) context.Context {
	if b != nil {
		return b(ctx, raw)
	}
	return WithRaw(ctx, raw)
}

func (o *Options) buildContext(ctx context.Context, r *http.Request) context.Context {
	return BuildContext(ctx, o.ContextBuilder, r)
}

// ForwardHeaders stores the allowed request headers and the request id as
// outgoing gRPC metadata, for resolvers that call gRPC backends.
func ForwardHeaders(ctx context.Context, header http.Header, allowed []string, requestID string) context.Context {
	md := metadata.MD{}
	if len(allowed) > 0 {
		set := make(map[string]struct{}, len(allowed))
		for _, hdr := range allowed {
			set[strings.ToLower(hdr)] = struct{}{}
		}
		for k, v := range header {
			if _, ok := set[strings.ToLower(k)]; ok {
				md[strings.ToLower(k)] = v
			}
		}
	}
	md["graphql-request-id"] = []string{requestID}
	return metadata.NewOutgoingContext(ctx, md)
}
