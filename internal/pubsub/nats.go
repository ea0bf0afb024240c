package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
)

// NATSBridge fans bus traffic out across gateway instances. Values published
// through the bridge are JSON-encoded to "<prefix>.<channel>"; values received
// on "<prefix>.>" are decoded and published to the local Bus.
type NATSBridge struct {
	nc     *nats.Conn
	bus    *Bus
	prefix string
	logger *slog.Logger
}

var _ Publisher = (*NATSBridge)(nil)

// NewNATSBridge returns a bridge between nc and bus. Start must be running
// for remote values to reach local listeners.
func NewNATSBridge(nc *nats.Conn, bus *Bus, prefix string, logger *slog.Logger) *NATSBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSBridge{nc: nc, bus: bus, prefix: strings.TrimSuffix(prefix, "."), logger: logger}
}

// Subject returns the NATS subject carrying channel.
func (br *NATSBridge) Subject(channel string) string {
	return br.prefix + "." + channel
}

// Channel returns the bus channel for subject, or false when subject is
// outside the bridge prefix.
func (br *NATSBridge) Channel(subject string) (string, bool) {
	channel, ok := strings.CutPrefix(subject, br.prefix+".")
	if !ok || channel == "" {
		return "", false
	}
	return channel, true
}

// Publish sends v to every gateway instance, this one included.
func (br *NATSBridge) Publish(channel string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		br.logger.Warn("pubsub: encode value", slog.String("channel", channel), slog.Any("error", err))
		return
	}
	if err := br.nc.Publish(br.Subject(channel), data); err != nil {
		br.logger.Warn("pubsub: nats publish", slog.String("channel", channel), slog.Any("error", err))
	}
}

// Start relays remote values into the local bus until ctx is done.
func (br *NATSBridge) Start(ctx context.Context) error {
	sub, err := br.nc.Subscribe(br.prefix+".>", func(msg *nats.Msg) {
		channel, ok := br.Channel(msg.Subject)
		if !ok {
			return
		}
		var v any
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			br.logger.Warn("pubsub: decode value", slog.String("subject", msg.Subject), slog.Any("error", err))
			return
		}
		br.bus.Publish(channel, v)
	})
	if err != nil {
		return fmt.Errorf("pubsub: subscribe %s.>: %w", br.prefix, err)
	}
	br.logger.Info("pubsub: nats bridge started", slog.String("prefix", br.prefix))

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil && !br.nc.IsClosed() {
		br.logger.Warn("pubsub: nats unsubscribe", slog.Any("error", err))
	}
	return nil
}
