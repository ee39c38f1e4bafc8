// Package kephasrpc provides a client-side JSON-RPC 2.0 engine running over a
// single persistent WebSocket connection.
//
// The client multiplexes requests over the connection, routes responses back
// to their callers by id, dispatches server notifications by method name, and
// can watch the connection's health with periodic probe requests.
//
// # Quick Start
//
//	import (
//	    "github.com/luciancaetano/kephasrpc"
//	    "github.com/luciancaetano/kephasrpc/ws"
//	)
//
//	client := ws.New(ws.NewConfig("ws://localhost:6800/jsonrpc"))
//	client.OnNotify("aria2.onDownloadComplete", func(params json.RawMessage) {
//	    log.Printf("complete: %s", params)
//	})
//	if err := client.Open(); err != nil {
//	    log.Fatal(err)
//	}
//
//	var version struct{ Version string }
//	if err := client.Call(ctx, "aria2.getVersion", nil, &version); err != nil {
//	    log.Fatal(err)
//	}
//
// # Admission and Retry
//
// At most Config.MaxConcurrent non-forced requests are outstanding. A request
// over the ceiling is rejected at once: its handler runs before Request
// returns, with CodeMaxConcurrent.
//
// Requests made while the connection is not open are deferred. They are sent
// in id order as soon as the connection opens. Every Config.PollInterval a
// deferred request uses up one retry; after Config.MaxRetries of them it fails
// with CodeMaxRetry and its slot is released.
//
// Forced requests (Force, heartbeat probes) skip both the ceiling and the
// retry budget and are never counted.
//
// # Local Error Codes
//
//	-32032  CodeMaxConcurrent     "Max concurrent error"
//	-32033  CodeMaxRetry          "Max retry error"
//	-32034  CodeHeartbeatTimeout  "Heartbeat timed out"
//	-32035  CodeConnectionClosed  "Connection closed"
//
// Error.IsLocal tells them apart from errors sent by the server.
//
// # Heartbeat
//
// Heartbeat sends a forced probe every Config.HeartbeatInterval. If the
// previous probe is still unanswered when the next tick comes, every pending
// request fails with CodeHeartbeatTimeout, the connection is closed and the
// heartbeat handler is told once. Reconnecting is left to the caller.
//
// # Important
//
//   - Handlers, notifiers and listeners run on the connection's read goroutine;
//     block in them and nothing else is delivered
//   - A malformed inbound frame closes the connection with code 1002
//   - Responses for ids nobody waits for are dropped silently
package kephasrpc
