package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/kephasrpc"
	"github.com/luciancaetano/kephasrpc/internal/protocol"
)

type transportState int

const (
	stateIdle transportState = iota
	stateConnecting
	stateOpen
	stateClosed
)

// Transport owns one WebSocket connection handle.
//
// All events of a handle are emitted from a single goroutine: open first,
// then messages in wire order, then exactly one close. A handle is used once;
// reconnecting means building a new Transport and subscribing the same
// listeners again.
type Transport struct {
	id      string
	url     string
	cfg     TransportConfig
	logger  zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	sendCh  chan []byte
	limiter *rate.Limiter // Rate limiter for outbound frames

	mu             sync.RWMutex
	state          transportState
	conn           *websocket.Conn
	closeRequested bool
	closeCode      int
	closeReason    string
	failErr        error

	lmu       sync.RWMutex
	listeners [kephasrpc.NumEventKinds][]kephasrpc.Listener
	detached  bool
}

// NewTransport creates a handle for url. Nothing is dialed until Open.
func NewTransport(url string, cfg *TransportConfig) *Transport {
	resolved := cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	id := uuid.New().String()
	return &Transport{
		id:      id,
		url:     url,
		cfg:     resolved,
		logger:  resolved.Logger.With().Str("conn_id", id).Logger(),
		ctx:     ctx,
		cancel:  cancel,
		sendCh:  make(chan []byte, resolved.SendBufferSize),
		limiter: resolved.RateLimitConfig.limiter(),
		state:   stateIdle,
	}
}

// ID returns a unique identifier for this handle
func (t *Transport) ID() string {
	return t.id
}

// URL returns the address this handle dials
func (t *Transport) URL() string {
	return t.url
}

// Subscribe appends listener to the listeners of kind.
func (t *Transport) Subscribe(kind kephasrpc.EventKind, listener kephasrpc.Listener) {
	if listener == nil || kind < 0 || int(kind) >= kephasrpc.NumEventKinds {
		return
	}
	t.lmu.Lock()
	defer t.lmu.Unlock()
	if t.detached {
		return
	}
	t.listeners[kind] = append(t.listeners[kind], listener)
}

// Detach drops every listener. Events emitted afterwards reach nobody.
func (t *Transport) Detach() {
	t.lmu.Lock()
	defer t.lmu.Unlock()
	t.detached = true
	for i := range t.listeners {
		t.listeners[i] = nil
	}
}

// Open starts dialing in the background
func (t *Transport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateIdle {
		return errors.New("transport already opened")
	}
	t.state = stateConnecting
	go t.run()
	return nil
}

// IsOpen returns true while frames can be sent
func (t *Transport) IsOpen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state == stateOpen
}

// Send queues a text frame for the write pump.
//
// It never blocks: a full queue is reported as kephasrpc.ErrSendQueueFull.
func (t *Transport) Send(data []byte) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	switch t.state {
	case stateOpen:
	case stateClosed:
		return kephasrpc.ErrConnectionClosed
	default:
		return kephasrpc.ErrNotReady
	}

	select {
	case t.sendCh <- data:
		return nil
	default:
		return kephasrpc.ErrSendQueueFull
	}
}

// Close closes the connection
func (t *Transport) Close() error {
	return t.CloseWithCode(websocket.CloseNormalClosure, "")
}

// CloseWithCode closes the connection with a close code and optional reason
func (t *Transport) CloseWithCode(code int, reason string) error {
	t.mu.Lock()

	switch t.state {
	case stateClosed:
		t.mu.Unlock()
		return nil
	case stateIdle:
		t.state = stateClosed
		t.mu.Unlock()
		t.cancel()
		return nil
	}

	t.closeRequested = true
	t.closeCode = code
	t.closeReason = reason
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		// Still dialing; run() notices the cancellation and emits close.
		t.cancel()
		return nil
	}

	// Send close message
	message := websocket.FormatCloseMessage(code, reason)
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, message, deadline)

	return conn.Close()
}

// Fail reports err as an error event and closes the connection with a
// protocol error code.
func (t *Transport) Fail(err error) error {
	t.mu.Lock()
	if t.failErr == nil {
		t.failErr = err
	}
	t.mu.Unlock()

	t.logger.Error().Err(err).Str("url", t.url).Msg("closing connection on protocol failure")
	return t.CloseWithCode(websocket.CloseProtocolError, kephasrpc.ErrMsgInvalidFrame)
}

// run dials, then pumps messages until the connection ends
func (t *Transport) run() {
	dialCtx, cancel := context.WithTimeout(t.ctx, t.cfg.HandshakeTimeout)
	conn, _, err := t.cfg.dialer().DialContext(dialCtx, t.url, t.cfg.Header)
	cancel()

	if err != nil {
		t.mu.Lock()
		requested, code, reason := t.closeRequested, t.closeCode, t.closeReason
		t.state = stateClosed
		t.mu.Unlock()
		t.cancel()

		if requested {
			t.emit(kephasrpc.Event{Kind: kephasrpc.EventClose, Code: code, Reason: reason})
			return
		}
		t.logger.Warn().Err(err).Str("url", t.url).Msg("ws dial failed")
		t.emit(kephasrpc.Event{Kind: kephasrpc.EventError, Err: errors.Wrap(err, "dial "+t.url)})
		t.emit(kephasrpc.Event{Kind: kephasrpc.EventClose, Code: websocket.CloseAbnormalClosure})
		return
	}

	t.mu.Lock()
	if t.state == stateClosed || t.closeRequested {
		code, reason := t.closeCode, t.closeReason
		t.state = stateClosed
		t.mu.Unlock()
		t.cancel()
		_ = conn.Close()
		t.emit(kephasrpc.Event{Kind: kephasrpc.EventClose, Code: code, Reason: reason})
		return
	}
	t.conn = conn
	t.state = stateOpen
	t.mu.Unlock()

	conn.SetReadLimit(protocol.MaxFrameSize)
	// Set read deadline to prevent indefinite blocking
	_ = conn.SetReadDeadline(time.Now().Add(t.cfg.PongWait))
	// Set pong handler to reset read deadline on pong
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(t.cfg.PongWait))
	})

	t.logger.Debug().Str("url", t.url).Msg("ws connected")

	go t.writePump(conn)

	t.emit(kephasrpc.Event{Kind: kephasrpc.EventOpen})
	t.readPump(conn)
}

// readPump emits every inbound frame as a message event
func (t *Transport) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.finish(conn, err)
			return
		}

		// Reset read deadline after successful read
		_ = conn.SetReadDeadline(time.Now().Add(t.cfg.PongWait))

		t.emit(kephasrpc.Event{Kind: kephasrpc.EventMessage, Data: data})
	}
}

// finish tears the handle down after the read pump stopped
func (t *Transport) finish(conn *websocket.Conn, readErr error) {
	t.mu.Lock()
	requested, code, reason, failErr := t.closeRequested, t.closeCode, t.closeReason, t.failErr
	t.state = stateClosed
	t.conn = nil
	t.mu.Unlock()

	t.cancel()
	_ = conn.Close()

	if !requested {
		code, reason = websocket.CloseAbnormalClosure, ""
		var closeErr *websocket.CloseError
		if errors.As(readErr, &closeErr) {
			code, reason = closeErr.Code, closeErr.Text
		}
	}

	switch {
	case failErr != nil:
		t.emit(kephasrpc.Event{Kind: kephasrpc.EventError, Err: failErr})
	case !requested && !websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		t.logger.Warn().Err(readErr).Str("url", t.url).Msg("unexpected ws close")
		t.emit(kephasrpc.Event{Kind: kephasrpc.EventError, Err: readErr})
	}

	t.logger.Debug().Int("code", code).Str("reason", reason).Msg("ws closed")
	t.emit(kephasrpc.Event{Kind: kephasrpc.EventClose, Code: code, Reason: reason})
}

// writePump pumps frames from the send queue to the websocket connection
func (t *Transport) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(t.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-t.sendCh:
			if t.limiter != nil {
				if err := t.limiter.Wait(t.ctx); err != nil {
					return
				}
			}

			_ = conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				t.logger.Warn().Err(err).Str("url", t.url).Msg("ws write failed, dropping connection")
				_ = conn.Close()
				return
			}

		case <-ticker.C:
			// Send ping to keep connection alive
			_ = conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}

		case <-t.ctx.Done():
			return
		}
	}
}

func (t *Transport) emit(ev kephasrpc.Event) {
	t.lmu.RLock()
	listeners := append([]kephasrpc.Listener(nil), t.listeners[ev.Kind]...)
	t.lmu.RUnlock()

	for _, listener := range listeners {
		listener(ev)
	}
}
