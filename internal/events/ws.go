package events

import (
	"net/http"
	"time"
)

// Reasons a WebSocket operation stopped.
const (
	StopReasonClient   = "stop"
	StopReasonComplete = "complete"
	StopReasonTeardown = "teardown"
)

// ConnectionOpen is emitted after a WebSocket upgrade succeeds.
type ConnectionOpen struct {
	ConnectionID string
	Request      *http.Request
}

// ConnectionClose is emitted after a session has released every operation.
type ConnectionClose struct {
	ConnectionID string
	Duration     time.Duration
	Err          error
}

// OperationStart is emitted when a start message registers an operation.
type OperationStart struct {
	ConnectionID  string
	OperationID   string
	OperationName string
	OperationType string
}

// OperationStop is emitted when a registered operation is released.
type OperationStop struct {
	ConnectionID  string
	OperationID   string
	OperationType string
	Reason        string
	Duration      time.Duration
}

// FrameSent is emitted for every protocol frame written to a client.
type FrameSent struct {
	ConnectionID string
	Type         string
}
