package graphqlws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/hanpama/gqlgate/internal/eventbus"
	"github.com/hanpama/gqlgate/internal/executor"
	"github.com/hanpama/gqlgate/internal/schema"
	"github.com/hanpama/gqlgate/internal/server"
)

// closeHandshakeTimeout bounds how long a closing session waits for the
// peer's close frame.
const closeHandshakeTimeout = time.Second

// Handler upgrades HTTP requests to graphql-ws sessions.
type Handler struct {
	exec *executor.Executor
	opt  Options

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type Options struct {
	// KeepAlive is the interval of ka frames after connection_ack.
	// 0 disables keep-alive.
	KeepAlive time.Duration

	// WriteTimeout bounds every frame write. 0 means no timeout.
	WriteTimeout time.Duration

	// OriginPatterns lists additional hosts allowed to connect cross-origin.
	OriginPatterns []string

	// MetadataHeaders lists upgrade request headers forwarded into outgoing
	// gRPC metadata on the resolver context.
	MetadataHeaders []string

	// ContextBuilder derives the resolver context from the start message.
	ContextBuilder server.ContextBuilder

	// RootValue supplies the source value of root fields.
	RootValue server.RootValueFunc

	Events *eventbus.Bus
	Logger *slog.Logger
}

type Option func(*Options)

func WithKeepAlive(d time.Duration) Option    { return func(o *Options) { o.KeepAlive = d } }
func WithWriteTimeout(d time.Duration) Option { return func(o *Options) { o.WriteTimeout = d } }
func WithOriginPatterns(patterns ...string) Option {
	return func(o *Options) { o.OriginPatterns = patterns }
}
func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}
func WithContextBuilder(b server.ContextBuilder) Option {
	return func(o *Options) { o.ContextBuilder = b }
}
func WithRootValue(f server.RootValueFunc) Option { return func(o *Options) { o.RootValue = f } }
func WithEvents(b *eventbus.Bus) Option           { return func(o *Options) { o.Events = b } }
func WithLogger(l *slog.Logger) Option            { return func(o *Options) { o.Logger = l } }

// New returns a Handler executing operations against runtime and sch.
func New(runtime executor.Runtime, sch *schema.Schema, opts ...Option) *Handler {
	op := Options{WriteTimeout: 10 * time.Second}
	for _, f := range opts {
		f(&op)
	}
	if op.Logger == nil {
		op.Logger = slog.Default()
	}
	op.Logger = op.Logger.With(slog.String("component", "graphqlws"))
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		exec:   executor.NewExecutor(runtime, sch),
		opt:    op,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: h.opt.OriginPatterns,
	})
	if err != nil {
		h.opt.Logger.Warn("websocket accept failed", "error", err)
		return
	}
	if conn.Subprotocol() != Subprotocol {
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol must be "+Subprotocol)
		return
	}

	newSession(h, conn, r).run()
}

// Close ends every open session, releasing its operations, and waits for
// them to finish. Later upgrade requests are refused.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()
	h.wg.Wait()
}
