// Package graphqlws serves GraphQL operations over WebSocket using the
// graphql-ws sub-protocol (subscriptions-transport-ws).
package graphqlws

import (
	"encoding/json"

	"github.com/hanpama/gqlgate/internal/executor"
)

// Subprotocol is the WebSocket sub-protocol negotiated with clients.
const Subprotocol = "graphql-ws"

// Client to server.
const (
	MsgConnectionInit      = "connection_init"
	MsgConnectionTerminate = "connection_terminate"
	MsgStart               = "start"
	MsgStop                = "stop"
)

// Server to client.
const (
	MsgConnectionAck   = "connection_ack"
	MsgConnectionError = "connection_error"
	MsgKeepAlive       = "ka"
	MsgData            = "data"
	MsgError           = "error"
	MsgComplete        = "complete"
)

// Message is an inbound protocol frame.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// frame is an outbound protocol frame.
type frame struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// dataPayload is the payload of a data frame. Unlike the HTTP envelope it
// leaves out data when the result carries none.
type dataPayload struct {
	Data   any                     `json:"data,omitempty"`
	Errors []executor.GraphQLError `json:"errors,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}
