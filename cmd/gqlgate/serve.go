package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hanpama/gqlgate/internal/config"
	"github.com/hanpama/gqlgate/internal/eventbus"
	"github.com/hanpama/gqlgate/internal/executor"
	"github.com/hanpama/gqlgate/internal/graphqlws"
	"github.com/hanpama/gqlgate/internal/introspection"
	"github.com/hanpama/gqlgate/internal/metrics"
	"github.com/hanpama/gqlgate/internal/notes"
	"github.com/hanpama/gqlgate/internal/otel"
	"github.com/hanpama/gqlgate/internal/pubsub"
	"github.com/hanpama/gqlgate/internal/server"
	"github.com/hanpama/gqlgate/internal/site"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the GraphQL gateway",
		Long: `Serves the GraphQL endpoint: queries and mutations over HTTP POST/GET and
subscriptions over WebSocket (graphql-ws) on the same path. Also exposes
Prometheus metrics and a health check.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx, cfg, slog.Default())
		},
	}

	d := config.Default()
	f := cmd.Flags()
	f.String("addr", d.Server.Addr, "HTTP listen address")
	f.String("path", d.Server.Path, "GraphQL endpoint path")
	f.Duration("timeout", d.Server.Timeout, "per-request timeout")
	f.Bool("pretty", d.Server.Pretty, "pretty-print JSON responses")
	f.Bool("playground", d.Server.Playground, "serve the GraphQL playground on GET")
	f.Bool("introspection", d.Server.Introspection, "answer __schema and __type queries")
	f.StringSlice("cors-origin", d.Server.CORSOrigins, "allowed CORS origin (repeatable, * for any)")
	f.StringSlice("metadata-header", d.Server.MetadataHeaders, "forward HTTP header to gRPC metadata (repeatable)")
	f.Duration("ws-keepalive", d.WS.KeepAlive, "graphql-ws keep-alive interval (0 disables)")
	f.String("nats-url", d.PubSub.NATSURL, "NATS server relaying messages between instances")
	f.String("notes-dsn", d.Notes.DSN, "notes database (sqlite path or postgres:// URL)")
	f.Duration("hello-delay", d.Site.HelloDelay, "delay before the hello query resolves")
	f.String("otel-endpoint", d.OTel.Endpoint, "OTLP/gRPC collector endpoint")
	f.String("otel-service", d.OTel.Service, "OpenTelemetry service name")

	for key, name := range map[string]string{
		"server.addr":             "addr",
		"server.path":             "path",
		"server.timeout":          "timeout",
		"server.pretty":           "pretty",
		"server.playground":       "playground",
		"server.introspection":    "introspection",
		"server.cors_origins":     "cors-origin",
		"server.metadata_headers": "metadata-header",
		"ws.keepalive":            "ws-keepalive",
		"pubsub.nats_url":         "nats-url",
		"notes.dsn":               "notes-dsn",
		"site.hello_delay":        "hello-delay",
		"otel.endpoint":           "otel-endpoint",
		"otel.service":            "otel-service",
	} {
		mustBindPFlag(v, key, f.Lookup(name))
	}
	return cmd
}

func runServe(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	lifecycle := eventbus.New()
	defer metrics.Register(lifecycle)()

	shutdownTracing, err := otel.Setup(ctx, lifecycle, cfg.OTel.Endpoint, cfg.OTel.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	store, err := notes.Open(ctx, cfg.Notes.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	bus := pubsub.New(pubsub.WithLogger(logger))
	var publisher pubsub.Publisher = bus
	var bridge *pubsub.NATSBridge
	if cfg.PubSub.NATSURL != "" {
		nc, err := nats.Connect(cfg.PubSub.NATSURL, nats.Name("gqlgate"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		bridge = pubsub.NewNATSBridge(nc, bus, cfg.PubSub.NATSPrefix, logger)
		publisher = bridge
	}

	sch, rt, err := site.New(site.Options{
		Notes:      store,
		Publisher:  publisher,
		Bus:        bus,
		HelloDelay: cfg.Site.HelloDelay,
	})
	if err != nil {
		return fmt.Errorf("bind resolvers: %w", err)
	}
	var runtime executor.Runtime = rt
	if cfg.Server.Introspection {
		w, err := introspection.Wrap(rt, sch)
		if err != nil {
			return err
		}
		runtime, sch = w.Runtime, w.Schema
	}

	ws := graphqlws.New(runtime, sch,
		graphqlws.WithKeepAlive(cfg.WS.KeepAlive),
		graphqlws.WithWriteTimeout(cfg.WS.WriteTimeout),
		graphqlws.WithOriginPatterns(cfg.WS.OriginPatterns...),
		graphqlws.WithMetadataHeaders(cfg.Server.MetadataHeaders...),
		graphqlws.WithEvents(lifecycle),
		graphqlws.WithLogger(logger),
	)

	sopts := []server.Option{
		server.WithTimeout(cfg.Server.Timeout),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithPlayground(cfg.Server.Playground),
		server.WithMetadataHeaders(cfg.Server.MetadataHeaders...),
		server.WithSubscriptions(ws),
		server.WithEvents(lifecycle),
		server.WithLogger(logger),
	}
	if cfg.Server.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.Server.CORSOrigins...))
	}
	h, err := server.New(runtime, sch, sopts...)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle(cfg.Metrics.Path, promhttp.Handler())
	r.Handle(cfg.Server.Path, h)
	r.Handle(cfg.Server.Path+"/", h)

	httpServer := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("GraphQL server listening", "addr", ln.Addr().String(), "path", cfg.Server.Path)
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if bridge != nil {
		g.Go(func() error { return bridge.Start(gCtx) })
	}
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		// Hijacked WebSocket connections are not tracked by Shutdown.
		ws.Close()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
