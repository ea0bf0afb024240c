package events

import "time"

// Transports an operation can arrive on.
const (
	TransportHTTP      = "http"
	TransportWebSocket = "ws"
)

// GraphQLStart is emitted before executing a GraphQL operation.
type GraphQLStart struct {
	Transport     string
	Query         string
	OperationName string
	OperationType string
}

// GraphQLFinish is emitted once an operation has produced its final result.
// For subscriptions this is when the stream ends.
type GraphQLFinish struct {
	Transport     string
	Query         string
	OperationName string
	OperationType string
	Errors        []error
	Duration      time.Duration
}
