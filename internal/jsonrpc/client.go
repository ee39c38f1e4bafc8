package jsonrpc

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/luciancaetano/kephasrpc"
	"github.com/luciancaetano/kephasrpc/internal/protocol"
	ws "github.com/luciancaetano/kephasrpc/internal/websocket"
)

// Client implements the kephasrpc.RPCClient interface
type Client struct {
	id       string
	url      string
	cfg      Config
	logger   zerolog.Logger
	tcfg     ws.TransportConfig
	registry *ws.Registry

	mu        sync.Mutex
	transport *ws.Transport
	ready     bool
	nextID    uint64
	inflight  int
	pending   map[protocol.ID]*call
	deferred  map[uint64]*call
	notifiers map[string]kephasrpc.Notifier
	monitor   *monitor
}

// New creates a client. Nothing is dialed until Open.
func New(cfg *Config) *Client {
	resolved := cfg.withDefaults()
	id := uuid.New().String()

	var logger zerolog.Logger
	if resolved.Logger != nil {
		logger = resolved.Logger.With().Str("client_id", id).Logger()
	} else {
		logger = log.Logger.With().Str("component", "kephasrpc").Str("client_id", id).Logger()
	}

	tcfg := *resolved.Transport
	if tcfg.Logger == nil {
		tcfg.Logger = &logger
	}

	return &Client{
		id:        id,
		url:       resolved.URL,
		cfg:       resolved,
		logger:    logger,
		tcfg:      tcfg,
		registry:  ws.NewRegistry(),
		pending:   make(map[protocol.ID]*call),
		deferred:  make(map[uint64]*call),
		notifiers: make(map[string]kephasrpc.Notifier),
	}
}

// ID returns a unique identifier for the client
func (c *Client) ID() string {
	return c.id
}

// URL returns the address the client connects to
func (c *Client) URL() string {
	return c.url
}

// IsReady returns true while the connection is open
func (c *Client) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Inflight returns the number of outstanding non-forced requests
func (c *Client) Inflight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight
}

// Open dials the first connection. It is a no-op once a connection exists;
// use Reconnect to replace it.
func (c *Client) Open() error {
	c.mu.Lock()
	if c.transport != nil {
		c.mu.Unlock()
		return nil
	}
	tr := c.newTransportLocked()
	c.transport = tr
	c.mu.Unlock()

	return errors.Wrap(tr.Open(), "open "+c.url)
}

// Reconnect replaces the connection with a new one to the same URL and
// re-attaches every registered listener.
func (c *Client) Reconnect() error {
	c.mu.Lock()
	old := c.transport
	tr := c.newTransportLocked()
	c.transport = tr
	c.ready = false
	comps := c.failPendingLocked(kephasrpc.CodeConnectionClosed, kephasrpc.ErrMsgConnectionClosed)
	c.mu.Unlock()

	if old != nil {
		old.Detach()
		_ = old.Close()
	}
	c.logger.Info().Str("url", c.url).Msg("reconnecting")
	fire(comps)

	return errors.Wrap(tr.Open(), "reconnect "+c.url)
}

// newTransportLocked builds a handle with the client's own listeners first,
// followed by every registered listener in registration order.
func (c *Client) newTransportLocked() *ws.Transport {
	tr := ws.NewTransport(c.url, &c.tcfg)
	tr.Subscribe(kephasrpc.EventOpen, func(kephasrpc.Event) {
		c.handleOpen(tr)
	})
	tr.Subscribe(kephasrpc.EventMessage, func(ev kephasrpc.Event) {
		c.handleMessage(tr, ev.Data)
	})
	tr.Subscribe(kephasrpc.EventClose, func(ev kephasrpc.Event) {
		c.handleClose(tr, ev)
	})
	c.registry.AttachTo(tr)
	return tr
}

func (c *Client) handleOpen(tr *ws.Transport) {
	c.mu.Lock()
	if c.transport != tr {
		c.mu.Unlock()
		return
	}
	c.ready = true
	comps := c.flushDeferredLocked()
	c.mu.Unlock()

	c.logger.Info().Str("url", c.url).Msg("connection ready")
	fire(comps)
}

func (c *Client) handleMessage(tr *ws.Transport, data []byte) {
	if err := c.route(data); err != nil {
		c.logger.Error().Err(err).Int("size", len(data)).Msg("malformed inbound frame")
		_ = tr.Fail(err)
	}
}

func (c *Client) handleClose(tr *ws.Transport, ev kephasrpc.Event) {
	c.mu.Lock()
	if c.transport != tr {
		c.mu.Unlock()
		return
	}
	c.ready = false
	comps := c.failPendingLocked(kephasrpc.CodeConnectionClosed, kephasrpc.ErrMsgConnectionClosed)
	c.mu.Unlock()

	c.logger.Info().Int("code", ev.Code).Str("reason", ev.Reason).Int("failed", len(comps)).Msg("connection closed")
	fire(comps)
}

func (c *Client) on(kind kephasrpc.EventKind, listener kephasrpc.Listener) kephasrpc.RPCClient {
	if listener == nil {
		return c
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry.Add(kind, listener)
	if c.transport != nil {
		c.transport.Subscribe(kind, listener)
	}
	return c
}

// OnOpen registers a listener for the open event
func (c *Client) OnOpen(listener kephasrpc.Listener) kephasrpc.RPCClient {
	return c.on(kephasrpc.EventOpen, listener)
}

// OnError registers a listener for the error event
func (c *Client) OnError(listener kephasrpc.Listener) kephasrpc.RPCClient {
	return c.on(kephasrpc.EventError, listener)
}

// OnMessage registers a listener for inbound frames
func (c *Client) OnMessage(listener kephasrpc.Listener) kephasrpc.RPCClient {
	return c.on(kephasrpc.EventMessage, listener)
}

// OnClose registers a listener for the close event
func (c *Client) OnClose(listener kephasrpc.Listener) kephasrpc.RPCClient {
	return c.on(kephasrpc.EventClose, listener)
}

// Request sends a request counted against the concurrency ceiling
func (c *Client) Request(method string, params interface{}, handler kephasrpc.Handler) kephasrpc.RPCClient {
	c.request(method, params, handler, false)
	return c
}

// Force sends a request exempt from the concurrency ceiling and retry budget
func (c *Client) Force(method string, params interface{}, handler kephasrpc.Handler) kephasrpc.RPCClient {
	c.request(method, params, handler, true)
	return c
}

// Call sends a request and waits for its outcome
func (c *Client) Call(ctx context.Context, method string, params interface{}, out interface{}) error {
	done := make(chan struct{})
	var (
		result json.RawMessage
		rpcErr *kephasrpc.Error
	)
	c.request(method, params, func(r json.RawMessage, e *kephasrpc.Error) {
		result, rpcErr = r, e
		close(done)
	}, false)

	select {
	case <-done:
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "call "+method)
	}

	if rpcErr != nil {
		return rpcErr
	}
	if out != nil && len(result) > 0 {
		if err := json.Unmarshal(result, out); err != nil {
			return errors.Wrap(err, "decode result of "+method)
		}
	}
	return nil
}

// Notify sends a notification
func (c *Client) Notify(method string, params interface{}) error {
	raw, err := protocol.EncodeParams(params)
	if err != nil {
		return err
	}
	data, err := protocol.NewNotification(method, raw).Encode()
	if err != nil {
		return err
	}

	c.mu.Lock()
	tr, ready := c.transport, c.ready
	c.mu.Unlock()
	if !ready || tr == nil {
		return kephasrpc.ErrNotReady
	}
	return tr.Send(data)
}

// Close closes the connection gracefully
func (c *Client) Close() error {
	return c.CloseWithCode(websocket.CloseNormalClosure, "")
}

// CloseWithCode closes the connection with a close code and reason. Every
// request still outstanding completes with CodeConnectionClosed.
func (c *Client) CloseWithCode(code int, reason string) error {
	c.mu.Lock()
	tr := c.transport
	m := c.monitor
	c.monitor = nil
	c.ready = false
	comps := c.failPendingLocked(kephasrpc.CodeConnectionClosed, kephasrpc.ErrMsgConnectionClosed)
	comps = append(comps, c.failDeferredLocked(kephasrpc.CodeConnectionClosed, kephasrpc.ErrMsgConnectionClosed)...)
	c.mu.Unlock()

	if m != nil {
		m.stop()
	}
	fire(comps)

	if tr == nil {
		return nil
	}
	return tr.CloseWithCode(code, reason)
}
