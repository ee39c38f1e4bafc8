// Package rpctest provides a scripted JSON-RPC 2.0 WebSocket peer for tests.
package rpctest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/luciancaetano/kephasrpc"
	"github.com/luciancaetano/kephasrpc/internal/protocol"
)

// Path is where the server accepts WebSocket upgrades
const Path = "/ws"

// Request is an inbound frame as the server saw it
type Request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the frame carried no id
func (r Request) IsNotification() bool {
	return len(r.ID) == 0
}

// HandlerFunc handles one request. It replies through conn, or not at all.
type HandlerFunc func(conn *Conn, req Request)

// ResultFunc computes the reply of a request
type ResultFunc func(params json.RawMessage) (interface{}, *kephasrpc.Error)

// Conn is one client connection accepted by the server
type Conn struct {
	id  string
	ws  *websocket.Conn
	wmu sync.Mutex
}

// ID returns a unique identifier for the connection
func (c *Conn) ID() string {
	return c.id
}

// SendRaw writes data as a text frame
func (c *Conn) SendRaw(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// SendJSON marshals v and writes it as a text frame
func (c *Conn) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.SendRaw(data)
}

// Reply sends a success response for id
func (c *Conn) Reply(id json.RawMessage, result interface{}) error {
	return c.SendJSON(map[string]interface{}{
		"jsonrpc": kephasrpc.JSONRPCVersion,
		"id":      id,
		"result":  result,
	})
}

// ReplyError sends an error response for id
func (c *Conn) ReplyError(id json.RawMessage, rpcErr *kephasrpc.Error) error {
	return c.SendJSON(map[string]interface{}{
		"jsonrpc": kephasrpc.JSONRPCVersion,
		"id":      id,
		"error":   rpcErr,
	})
}

// Notify pushes a notification. nil params are omitted.
func (c *Conn) Notify(method string, params interface{}) error {
	msg := map[string]interface{}{
		"jsonrpc": kephasrpc.JSONRPCVersion,
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}
	return c.SendJSON(msg)
}

// Drop closes the connection without a close handshake
func (c *Conn) Drop() error {
	return c.ws.Close()
}

// Server is a JSON-RPC 2.0 peer listening on an httptest server
type Server struct {
	httpServer *httptest.Server
	upgrader   websocket.Upgrader

	handlers sync.Map // map[string]HandlerFunc

	mu       sync.Mutex
	conns    map[string]*Conn
	requests []Request
	accepted int
	gate     chan struct{}
	changed  chan struct{}
}

// NewServer starts a server. Unknown methods are answered with
// "Method not found".
func NewServer() *Server {
	s := &Server{
		conns:   make(map[string]*Conn),
		changed: make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleWebSocket)
	s.httpServer = httptest.NewServer(mux)
	return s
}

// URL returns the ws:// address of the server
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.httpServer.URL, "http") + Path
}

// Close drops every connection and stops the server
func (s *Server) Close() {
	s.mu.Lock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Drop()
	}
	s.httpServer.Close()
}

// Handle registers a handler for method
func (s *Server) Handle(method string, handler HandlerFunc) {
	s.handlers.Store(method, handler)
}

// HandleResult registers a handler that always replies with fn's outcome
func (s *Server) HandleResult(method string, fn ResultFunc) {
	s.Handle(method, func(conn *Conn, req Request) {
		if req.IsNotification() {
			_, _ = fn(req.Params)
			return
		}
		result, rpcErr := fn(req.Params)
		if rpcErr != nil {
			_ = conn.ReplyError(req.ID, rpcErr)
			return
		}
		_ = conn.Reply(req.ID, result)
	})
}

// Echo registers method to reply with its own params
func (s *Server) Echo(method string) {
	s.HandleResult(method, func(params json.RawMessage) (interface{}, *kephasrpc.Error) {
		if params == nil {
			return nil, nil
		}
		return params, nil
	})
}

// Ignore registers method to never reply
func (s *Server) Ignore(method string) {
	s.Handle(method, func(*Conn, Request) {})
}

// Hold makes new upgrades wait until Release is called
func (s *Server) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate == nil {
		s.gate = make(chan struct{})
	}
}

// Release lets held upgrades proceed
func (s *Server) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
}

// Requests returns every frame received so far, in arrival order
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsFor returns the frames received for method
func (s *Server) RequestsFor(method string) []Request {
	var out []Request
	for _, req := range s.Requests() {
		if req.Method == method {
			out = append(out, req)
		}
	}
	return out
}

// Accepted returns the number of connections accepted so far
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Conns returns the live connections
func (s *Server) Conns() []*Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	return out
}

// Broadcast sends data to every live connection
func (s *Server) Broadcast(data []byte) {
	for _, c := range s.Conns() {
		if err := c.SendRaw(data); err != nil {
			log.Debug().Err(err).Str("conn_id", c.ID()).Msg("rpctest broadcast failed")
		}
	}
}

// Notify pushes a notification to every live connection
func (s *Server) Notify(method string, params interface{}) {
	for _, c := range s.Conns() {
		_ = c.Notify(method, params)
	}
}

// DropAll closes every live connection without a close handshake
func (s *Server) DropAll() {
	for _, c := range s.Conns() {
		_ = c.Drop()
	}
}

// WaitFor blocks until cond holds or timeout elapses. cond is evaluated
// whenever a frame arrives or a connection comes or goes.
func (s *Server) WaitFor(timeout time.Duration, cond func(s *Server) bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		s.mu.Lock()
		changed := s.changed
		s.mu.Unlock()

		if cond(s) {
			return true
		}
		select {
		case <-changed:
		case <-deadline.C:
			return cond(s)
		}
	}
}

func (s *Server) notifyChangedLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// handleWebSocket handles incoming WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "Failed to upgrade connection", http.StatusBadRequest)
		return
	}

	conn := &Conn{id: uuid.New().String(), ws: ws}
	s.mu.Lock()
	s.conns[conn.id] = conn
	s.accepted++
	s.notifyChangedLocked()
	s.mu.Unlock()

	go s.handleConn(conn)
}

// handleConn reads frames from one connection. Handlers run on the read
// loop, so replies go out in request order.
func (s *Server) handleConn(conn *Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn.id)
		s.notifyChangedLocked()
		s.mu.Unlock()
		_ = conn.ws.Close()
	}()

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("conn_id", conn.id).Msg("rpctest unexpected close")
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			_ = conn.ReplyError(json.RawMessage("null"), kephasrpc.NewError(kephasrpc.JSONRPCParseError, "Parse error"))
			continue
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.notifyChangedLocked()
		s.mu.Unlock()

		handler, ok := s.handlers.Load(req.Method)
		if !ok {
			if !req.IsNotification() {
				_ = conn.ReplyError(req.ID, kephasrpc.NewError(kephasrpc.JSONRPCMethodNotFound, "Method not found"))
			}
			continue
		}
		handler.(HandlerFunc)(conn, req)
	}
}

// DecodeID returns the canonical id of a recorded request
func DecodeID(req Request) protocol.ID {
	return protocol.ParseID(req.ID)
}
