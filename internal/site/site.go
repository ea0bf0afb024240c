// Package site is the sample application served by gqlgate: notes backed by
// a Store, a slow greeting, and a message broadcast over subscriptions.
package site

import (
	"context"
	"errors"
	"time"

	"github.com/hanpama/gqlgate/internal/notes"
	"github.com/hanpama/gqlgate/internal/pubsub"
	"github.com/hanpama/gqlgate/internal/resolver"
	"github.com/hanpama/gqlgate/internal/schema"
)

// SDL is the schema of the sample application.
const SDL = `type Note {
  id: ID!
  title: String
  body: String
}

type Query {
  hello: String!
  notes: [Note!]!
}

type Mutation {
  createNote(title: String!, body: String!): Note!
  sendMessage(message: String!): Boolean!
}

type Subscription {
  messages: String!
}
`

// MessageChannel is the pubsub channel sendMessage publishes on.
const MessageChannel = "message"

type Options struct {
	Notes notes.Store
	// Publisher receives sendMessage values. Defaults to Bus.
	Publisher pubsub.Publisher
	// Bus is listened on by the messages subscription.
	Bus        *pubsub.Bus
	HelloDelay time.Duration
}

var errNoStore = errors.New("notes store is not configured")

// New builds the schema and binds the sample resolvers to it.
func New(opts Options) (*schema.Schema, *resolver.Runtime, error) {
	if opts.Bus == nil {
		opts.Bus = pubsub.New()
	}
	if opts.Publisher == nil {
		opts.Publisher = opts.Bus
	}
	sch, err := schema.BuildFromSDL(SDL)
	if err != nil {
		return nil, nil, err
	}
	rt, err := resolver.Bind(sch, Maps(opts)...)
	if err != nil {
		return nil, nil, err
	}
	return sch, rt, nil
}

// Maps returns the resolver maps of the sample application.
func Maps(opts Options) []*resolver.Map {
	query := resolver.NewMap("Query").
		Field("hello", func(ctx context.Context, _ any, _ map[string]any) (any, error) {
			t := time.NewTimer(opts.HelloDelay)
			defer t.Stop()
			select {
			case <-t.C:
				return "Hello!", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}).
		Field("notes", func(ctx context.Context, _ any, _ map[string]any) (any, error) {
			if opts.Notes == nil {
				return nil, errNoStore
			}
			return opts.Notes.List(ctx)
		})

	mutation := resolver.NewMap("Mutation").
		Field("createNote", func(ctx context.Context, _ any, args map[string]any) (any, error) {
			if opts.Notes == nil {
				return nil, errNoStore
			}
			title, _ := args["title"].(string)
			body, _ := args["body"].(string)
			return opts.Notes.Create(ctx, title, body)
		}).
		Field("sendMessage", func(ctx context.Context, _ any, args map[string]any) (any, error) {
			opts.Publisher.Publish(MessageChannel, args["message"])
			return true, nil
		})

	subscription := resolver.NewMap("Subscription").
		Subscription("messages", func(ctx context.Context, _ map[string]any) (<-chan any, error) {
			return opts.Bus.Listen(ctx, MessageChannel), nil
		}).
		Field("messages", func(ctx context.Context, message any, _ map[string]any) (any, error) {
			return message, nil
		})

	return []*resolver.Map{query, mutation, subscription}
}
