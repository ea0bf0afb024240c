package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hanpama/gqlgate/internal/eventbus"
	"github.com/hanpama/gqlgate/internal/events"
	"github.com/hanpama/gqlgate/internal/executor"
	"github.com/hanpama/gqlgate/internal/language"
	"github.com/hanpama/gqlgate/internal/reqid"
	"github.com/hanpama/gqlgate/internal/schema"
)

// Handler is an http.Handler that serves a GraphQL endpoint.
// It parses requests, runs the executor, and writes the JSON response envelope.
type Handler struct {
	exec *executor.Executor
	opt  Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// MetadataHeaders lists HTTP headers forwarded into outgoing gRPC
	// metadata on the resolver context. Header names are case-insensitive.
	MetadataHeaders []string

	// Playground serves an in-browser IDE for GET requests without a query.
	Playground bool

	// Subscriptions receives WebSocket upgrade requests. When nil, upgrades
	// are rejected like any other GET without a query.
	Subscriptions http.Handler

	// ContextBuilder derives the resolver context from the raw request.
	ContextBuilder ContextBuilder

	// RootValue supplies the source value of root fields.
	RootValue RootValueFunc

	// Events receives lifecycle events. May be nil.
	Events *eventbus.Bus

	Logger *slog.Logger
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}
func WithPlayground(enable bool) Option { return func(o *Options) { o.Playground = enable } }

// WithSubscriptions delegates WebSocket upgrade requests to h.
func WithSubscriptions(h http.Handler) Option { return func(o *Options) { o.Subscriptions = h } }

func WithContextBuilder(b ContextBuilder) Option { return func(o *Options) { o.ContextBuilder = b } }
func WithRootValue(f RootValueFunc) Option       { return func(o *Options) { o.RootValue = f } }
func WithEvents(b *eventbus.Bus) Option          { return func(o *Options) { o.Events = b } }
func WithLogger(l *slog.Logger) Option           { return func(o *Options) { o.Logger = l } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a new GraphQL HTTP handler using the given runtime and schema.
func New(runtime executor.Runtime, schema *schema.Schema, opts ...Option) (*Handler, error) {
	op := Options{Timeout: 10 * time.Second, Playground: true}
	for _, f := range opts {
		f(&op)
	}
	if op.Logger == nil {
		op.Logger = slog.Default()
	}
	return &Handler{exec: executor.NewExecutor(runtime, schema), opt: op}, nil
}

// Executor returns the executor requests are run on.
func (h *Handler) Executor() *executor.Executor { return h.exec }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.opt.Subscriptions != nil && isWebSocketUpgrade(r) {
		h.opt.Subscriptions.ServeHTTP(w, r)
		return
	}

	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := reqid.NewContext(ctx)
	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, h.opt.Events, events.HTTPStart{Request: r, RequestID: rid})
	defer func() {
		eventbus.Publish(ctx, h.opt.Events, events.HTTPFinish{Request: r, RequestID: rid, Status: status, Duration: time.Since(start)})
	}()

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	switch r.Method {
	case http.MethodOptions:
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	case http.MethodGet:
		if r.URL.Query().Get("query") == "" && h.opt.Playground {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write(playgroundPage)
			return
		}
	case http.MethodPost:
	default:
		status = http.StatusMethodNotAllowed
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		writeText(w, status, "Method not allowed")
		return
	}

	req, herr := parseRequest(r, h.opt.MaxBodyBytes)
	if herr != nil {
		status = herr.status
		h.opt.Logger.DebugContext(ctx, "rejected graphql request", slog.String("request_id", rid), slog.String("reason", herr.message))
		writeText(w, status, herr.message)
		return
	}

	ctx = ForwardHeaders(ctx, r.Header, h.opt.MetadataHeaders, rid)
	ctx = h.opt.buildContext(ctx, r)

	var res *executor.ExecutionResult
	res, status = h.executeOne(ctx, req, r.Method == http.MethodGet)
	if status == http.StatusMethodNotAllowed {
		w.Header().Set("Allow", "POST")
	}
	writeJSON(w, status, res, h.opt.Pretty)
}

// executeOne runs req and returns its result with the HTTP status to send.
// Failures before execution yield a result without data.
func (h *Handler) executeOne(ctx context.Context, req Request, readOnly bool) (*executor.ExecutionResult, int) {
	if strings.TrimSpace(req.Query) == "" {
		return &executor.ExecutionResult{Errors: []executor.GraphQLError{{Message: "Must provide query string."}}}, http.StatusOK
	}

	doc, errs := h.exec.Parse(req.Query)
	if len(errs) > 0 {
		return &executor.ExecutionResult{Errors: errs}, http.StatusOK
	}

	opType := ""
	if opDef := executor.GetOperation(doc, req.OperationName); opDef != nil {
		opType = string(opDef.Operation)
		switch {
		case opDef.Operation == language.Subscription:
			return &executor.ExecutionResult{Errors: []executor.GraphQLError{{
				Message: "Subscriptions are only supported over WebSocket.",
			}}}, http.StatusOK
		case readOnly && opDef.Operation == language.Mutation:
			return &executor.ExecutionResult{Errors: []executor.GraphQLError{{
				Message: "Can only perform a mutation operation from a POST request.",
			}}}, http.StatusMethodNotAllowed
		}
	}

	var root any
	if h.opt.RootValue != nil {
		root = h.opt.RootValue(ctx, doc, req.Variables)
	}

	start := time.Now()
	eventbus.Publish(ctx, h.opt.Events, events.GraphQLStart{
		Transport:     events.TransportHTTP,
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
	})
	result := h.exec.ExecuteRequest(ctx, doc, req.OperationName, req.Variables, root)
	eventbus.Publish(ctx, h.opt.Events, events.GraphQLFinish{
		Transport:     events.TransportHTTP,
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
		Errors:        ErrorValues(result.Errors),
		Duration:      time.Since(start),
	})
	return result, http.StatusOK
}

// ErrorValues converts result errors for event payloads.
func ErrorValues(errs []executor.GraphQLError) []error {
	if len(errs) == 0 {
		return nil
	}
	out := make([]error, len(errs))
	for i := range errs {
		out[i] = errs[i]
	}
	return out
}

// ------------------ Response formatting ------------------

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	wildcard := false
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" {
			wildcard = true
		}
		if o == "*" || o == origin {
			allowed = true
		}
	}
	if !allowed {
		return
	}
	if wildcard {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func isWebSocketUpgrade(r *http.Request) bool {
	if r.Method != http.MethodGet || !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return false
	}
	for _, v := range strings.Split(r.Header.Get("Connection"), ",") {
		if strings.EqualFold(strings.TrimSpace(v), "upgrade") {
			return true
		}
	}
	return false
}
