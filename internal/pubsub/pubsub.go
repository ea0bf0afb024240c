// Package pubsub is an in-process channel-keyed event bus used as the source
// of subscription streams.
package pubsub

import (
	"context"
	"log/slog"
	"sync"
)

// Publisher delivers a value to every listener of a channel.
type Publisher interface {
	Publish(channel string, v any)
}

// Bus fans published values out to the listeners registered on a channel.
// Publish never blocks on a slow listener: every listener owns an unbounded
// queue drained by its own goroutine.
type Bus struct {
	mu       sync.RWMutex
	channels map[string]map[*listener]struct{}
	logger   *slog.Logger
}

var _ Publisher = (*Bus)(nil)

type Option func(*Bus)

// WithLogger sets the logger used for listener lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// New returns an empty Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		channels: make(map[string]map[*listener]struct{}),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Publish enqueues v for every listener currently registered on channel. With
// no listeners the value is dropped.
func (b *Bus) Publish(channel string, v any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for l := range b.channels[channel] {
		l.push(v)
	}
}

// Listen registers a listener on channel and returns the values published
// after this call, in publish order. The listener is removed and the channel
// closed once ctx is done; values still queued at that point are dropped.
func (b *Bus) Listen(ctx context.Context, channel string) <-chan any {
	l := newListener()

	b.mu.Lock()
	set := b.channels[channel]
	if set == nil {
		set = make(map[*listener]struct{})
		b.channels[channel] = set
	}
	set[l] = struct{}{}
	n := len(set)
	b.mu.Unlock()

	b.logger.Debug("pubsub listener added", slog.String("channel", channel), slog.Int("listeners", n))

	go func() {
		defer close(l.out)
		defer b.remove(channel, l)
		l.run(ctx)
	}()
	return l.out
}

// Listeners returns the number of listeners registered on channel.
func (b *Bus) Listeners(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[channel])
}

func (b *Bus) remove(channel string, l *listener) {
	b.mu.Lock()
	set := b.channels[channel]
	delete(set, l)
	n := len(set)
	if n == 0 {
		delete(b.channels, channel)
	}
	b.mu.Unlock()

	b.logger.Debug("pubsub listener removed", slog.String("channel", channel), slog.Int("listeners", n))
}

type listener struct {
	mu     sync.Mutex
	queue  []any
	notify chan struct{}
	out    chan any
}

func newListener() *listener {
	return &listener{
		notify: make(chan struct{}, 1),
		out:    make(chan any),
	}
}

func (l *listener) push(v any) {
	l.mu.Lock()
	l.queue = append(l.queue, v)
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *listener) pop() (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	v := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return v, true
}

func (l *listener) run(ctx context.Context) {
	for {
		v, ok := l.pop()
		if !ok {
			select {
			case <-l.notify:
				continue
			case <-ctx.Done():
				return
			}
		}
		select {
		case l.out <- v:
		case <-ctx.Done():
			return
		}
	}
}
