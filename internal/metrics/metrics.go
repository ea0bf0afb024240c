// Package metrics exposes Prometheus collectors fed from lifecycle events.
package metrics

import (
	"context"
	"strconv"

	"github.com/hanpama/gqlgate/internal/eventbus"
	"github.com/hanpama/gqlgate/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gqlgate_http_requests_total",
		Help: "GraphQL HTTP requests by response status.",
	}, []string{"code"})

	HTTPDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gqlgate_http_request_duration_seconds",
		Help:    "Time spent serving GraphQL HTTP requests.",
		Buckets: prometheus.DefBuckets,
	})

	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gqlgate_operations_total",
		Help: "Executed GraphQL operations by transport, type and outcome.",
	}, []string{"transport", "type", "outcome"})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gqlgate_operation_duration_seconds",
		Help:    "Time from operation start to its final result.",
		Buckets: prometheus.DefBuckets,
	}, []string{"transport", "type"})

	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gqlgate_ws_connections_active",
		Help: "Open graphql-ws connections.",
	})

	OperationsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gqlgate_ws_operations_active",
		Help: "Operations currently registered on graphql-ws connections.",
	})

	OperationsStopped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gqlgate_ws_operations_stopped_total",
		Help: "Released graphql-ws operations by reason.",
	}, []string{"reason"})

	FramesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gqlgate_ws_frames_sent_total",
		Help: "graphql-ws frames written to clients by type.",
	}, []string{"type"})
)

// Register updates the collectors from events published on bus and returns
// a function that stops doing so.
func Register(bus *eventbus.Bus) (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(bus, func(ctx context.Context, e events.HTTPFinish) {
			HTTPRequests.WithLabelValues(strconv.Itoa(e.Status)).Inc()
			HTTPDuration.Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(bus, func(ctx context.Context, e events.GraphQLFinish) {
			outcome := "ok"
			if len(e.Errors) > 0 {
				outcome = "error"
			}
			Operations.WithLabelValues(e.Transport, e.OperationType, outcome).Inc()
			OperationDuration.WithLabelValues(e.Transport, e.OperationType).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(bus, func(ctx context.Context, e events.ConnectionOpen) {
			ConnectionsActive.Inc()
		}),
		eventbus.Subscribe(bus, func(ctx context.Context, e events.ConnectionClose) {
			ConnectionsActive.Dec()
		}),
		eventbus.Subscribe(bus, func(ctx context.Context, e events.OperationStart) {
			OperationsActive.Inc()
		}),
		eventbus.Subscribe(bus, func(ctx context.Context, e events.OperationStop) {
			OperationsActive.Dec()
			OperationsStopped.WithLabelValues(e.Reason).Inc()
		}),
		eventbus.Subscribe(bus, func(ctx context.Context, e events.FrameSent) {
			FramesSent.WithLabelValues(e.Type).Inc()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
