package kephasrpc

import "errors"

// Reserved client-local error codes.
//
// JSON-RPC reserves -32000 to -32099 for server errors. The range -32032 to
// -32039 is never produced by a server here: these codes are synthesized by the
// client itself.
const (
	// CodeMaxConcurrent is delivered when the concurrency ceiling is reached
	CodeMaxConcurrent = -32032
	// CodeMaxRetry is delivered when a deferred request used up its retry budget
	CodeMaxRetry = -32033
	// CodeHeartbeatTimeout is delivered to requests outstanding when a heartbeat times out
	CodeHeartbeatTimeout = -32034
	// CodeConnectionClosed is delivered to requests outstanding when the connection goes away
	CodeConnectionClosed = -32035
)

// Standard JSON-RPC 2.0 error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// Standard error messages
const (
	ErrMsgMaxConcurrent    = "Max concurrent error"
	ErrMsgMaxRetry         = "Max retry error"
	ErrMsgHeartbeatTimeout = "Heartbeat timed out"
	ErrMsgConnectionClosed = "Connection closed"
	ErrMsgEncodeParams     = "failed to encode params"
	ErrMsgInvalidFrame     = "Invalid message format"
)

// JSON-RPC version
const (
	JSONRPCVersion = "2.0"
)

var (
	// ErrNotReady is returned when sending on a connection that has not opened yet
	ErrNotReady = errors.New("connection is not ready")
	// ErrSendQueueFull is returned when the outbound queue cannot take another frame
	ErrSendQueueFull = errors.New("send queue is full")
	// ErrConnectionClosed is returned when sending on a closed connection
	ErrConnectionClosed = errors.New("connection is closed")
	// ErrInvalidFrame marks an inbound frame that violates the JSON-RPC envelope
	ErrInvalidFrame = errors.New("invalid frame")
	// ErrUnknownNotification marks a notification for a method nobody registered
	ErrUnknownNotification = errors.New("notification with unknown method")
)
