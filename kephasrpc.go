package kephasrpc

import (
	"context"
	"encoding/json"
)

// Handler receives the outcome of a request.
//
// Exactly one of result and err is set. result is the raw "result" member of
// the response (it may be the JSON literal null); err is either the server's
// error object or one of the locally synthesized errors from codes.go.
type Handler func(result json.RawMessage, err *Error)

// Notifier receives the params of a server-pushed notification.
type Notifier func(params json.RawMessage)

// HeartbeatHandler receives the outcome of every heartbeat probe.
//
// When the monitor gives up, it is called once more with timedOut set and no
// result or error.
type HeartbeatHandler func(timedOut bool, result json.RawMessage, err *Error)

// EventKind is one of the four connection lifecycle events.
type EventKind int

const (
	EventOpen EventKind = iota
	EventError
	EventMessage
	EventClose
)

// NumEventKinds is the number of distinct EventKind values.
const NumEventKinds = 4

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventError:
		return "error"
	case EventMessage:
		return "message"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event describes something that happened on the connection.
//
// Data is set for EventMessage, Err for EventError, and Code/Reason for
// EventClose when the peer sent a close frame.
type Event struct {
	Kind   EventKind
	Data   []byte
	Err    error
	Code   int
	Reason string
}

// Listener observes connection events.
type Listener func(Event)

// RPCClient defines the interface of a JSON-RPC 2.0 client running over a
// single WebSocket connection.
//
// Requests are multiplexed over the connection and their responses are routed
// back by id. At most MaxConcurrent non-forced requests are outstanding at any
// time; requests made before the connection is ready are held back and sent as
// soon as it opens.
//
// Example usage:
//
//	import "github.com/luciancaetano/kephasrpc/ws"
//
//	client, err := ws.Dial("ws://localhost:6800/jsonrpc")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client.
//	    OnNotify("aria2.onDownloadStart", func(params json.RawMessage) {
//	        log.Printf("download started: %s", params)
//	    }).
//	    Request("aria2.tellActive", nil, func(result json.RawMessage, err *kephasrpc.Error) {
//	        if err != nil {
//	            log.Printf("error: %v", err)
//	            return
//	        }
//	        log.Printf("active: %s", result)
//	    })
type RPCClient interface {
	// ID returns a unique identifier for this client instance.
	//
	// The ID is generated at construction and survives reconnects.
	ID() string

	// URL returns the WebSocket URL the client connects to.
	URL() string

	// Open dials the connection.
	//
	// Dialing happens in the background: Open returns immediately and the
	// open or error listeners fire once the handshake finishes. Calling Open on
	// a client that already has a connection is a no-op.
	Open() error

	// IsReady returns true while the connection is open.
	IsReady() bool

	// Inflight returns the number of outstanding non-forced requests.
	Inflight() int

	// Request sends a JSON-RPC request and calls handler with the outcome.
	//
	// The call never blocks. When the concurrency ceiling is reached the handler
	// is called synchronously with CodeMaxConcurrent. When the connection is not
	// ready the request waits for it, up to the configured retry budget, after
	// which the handler receives CodeMaxRetry.
	//
	// params may be nil (omitted on the wire), a json.RawMessage, or any value
	// encoding/json can marshal.
	Request(method string, params interface{}, handler Handler) RPCClient

	// Force sends a request that bypasses the concurrency ceiling and the retry
	// budget. It is meant for diagnostic probes.
	Force(method string, params interface{}, handler Handler) RPCClient

	// Call is a blocking form of Request.
	//
	// It waits until the response arrives or ctx is done. A non-nil out receives
	// the decoded result. Errors from the server or the client are returned as
	// *Error.
	Call(ctx context.Context, method string, params interface{}, out interface{}) error

	// Notify sends a notification (a request without id). Nothing is expected
	// back and nothing is deferred: it fails with ErrNotReady when the
	// connection is not open.
	Notify(method string, params interface{}) error

	// Heartbeat starts sending a forced probe request every heartbeat interval.
	//
	// handler receives each probe's outcome. If a probe is still unanswered when
	// the next tick comes, the connection is considered dead: it is closed and
	// handler is called once with timedOut set. Calling Heartbeat again replaces
	// the running monitor.
	Heartbeat(method string, params interface{}, handler HeartbeatHandler) RPCClient

	// OnNotify registers the notifier for a notification method.
	//
	// Registering the same method again replaces the previous notifier.
	OnNotify(method string, notifier Notifier) RPCClient

	// OnOpen registers a listener for the open event.
	//
	// Listeners are kept across Reconnect and replayed onto the new connection
	// in registration order.
	OnOpen(listener Listener) RPCClient

	// OnError registers a listener for the error event.
	OnError(listener Listener) RPCClient

	// OnMessage registers a listener for every inbound text frame.
	OnMessage(listener Listener) RPCClient

	// OnClose registers a listener for the close event.
	OnClose(listener Listener) RPCClient

	// Close closes the connection gracefully.
	//
	// This is equivalent to calling CloseWithCode with websocket.CloseNormalClosure.
	Close() error

	// CloseWithCode closes the connection with a specific WebSocket close code
	// and reason.
	//
	// Outstanding and deferred requests are completed with CodeConnectionClosed
	// and a running heartbeat is stopped.
	CloseWithCode(code int, reason string) error

	// Reconnect replaces the connection with a fresh one to the same URL.
	//
	// Every registered listener is re-attached to the new connection. Requests
	// that were waiting for a response on the old connection are completed with
	// CodeConnectionClosed before the new one is dialed. Their handlers are
	// never left bound to the old socket, so a late reply from it is dropped
	// rather than delivered. Requests still waiting for readiness are sent on
	// the new connection once it opens. A running heartbeat keeps probing.
	Reconnect() error
}
