package jsonrpc

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/luciancaetano/kephasrpc"
	"github.com/luciancaetano/kephasrpc/internal/protocol"
)

type heartbeatState int

const (
	heartbeatIdle heartbeatState = iota
	heartbeatAwaitingFirstProbe
	heartbeatAlive
	heartbeatDead
	heartbeatStopped
)

func (s heartbeatState) String() string {
	switch s {
	case heartbeatIdle:
		return "idle"
	case heartbeatAwaitingFirstProbe:
		return "awaiting-first-probe"
	case heartbeatAlive:
		return "alive"
	case heartbeatDead:
		return "dead"
	case heartbeatStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// monitor sends a forced probe on every tick. A tick that finds the previous
// probe unanswered declares the connection dead.
type monitor struct {
	client   *Client
	method   string
	params   json.RawMessage
	handler  kephasrpc.HeartbeatHandler
	interval time.Duration

	mu     sync.Mutex
	state  heartbeatState
	alive  bool
	ticker *time.Ticker
	quit   chan struct{}
}

func newMonitor(c *Client, method string, params json.RawMessage, handler kephasrpc.HeartbeatHandler, interval time.Duration) *monitor {
	return &monitor{
		client:   c,
		method:   method,
		params:   params,
		handler:  handler,
		interval: interval,
		state:    heartbeatIdle,
		alive:    true,
		quit:     make(chan struct{}),
	}
}

func (m *monitor) start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != heartbeatIdle {
		return
	}
	m.state = heartbeatAwaitingFirstProbe
	m.ticker = time.NewTicker(m.interval)
	go m.loop(m.ticker)
}

func (m *monitor) loop(ticker *time.Ticker) {
	for {
		select {
		case <-ticker.C:
			if !m.tick() {
				return
			}
		case <-m.quit:
			return
		}
	}
}

// tick runs one heartbeat cycle and reports whether the monitor keeps going.
func (m *monitor) tick() bool {
	m.mu.Lock()
	switch m.state {
	case heartbeatDead, heartbeatStopped:
		m.mu.Unlock()
		return false
	case heartbeatAlive:
		if !m.alive {
			m.state = heartbeatDead
			if m.ticker != nil {
				m.ticker.Stop()
			}
			m.mu.Unlock()
			m.client.heartbeatTimedOut(m)
			return false
		}
	}
	// The first tick has nothing to judge yet.
	m.state = heartbeatAlive
	m.alive = false
	m.mu.Unlock()

	m.client.submit(&call{method: m.method, params: m.params, handler: m.onProbe, force: true, owner: m})
	return true
}

func (m *monitor) onProbe(result json.RawMessage, err *kephasrpc.Error) {
	m.mu.Lock()
	if m.state != heartbeatAlive {
		m.mu.Unlock()
		return
	}
	// Errors made up by the client say nothing about the peer.
	if !err.IsLocal() {
		m.alive = true
	}
	m.mu.Unlock()

	if m.handler != nil {
		m.handler(false, result, err)
	}
}

// stop tears the monitor down without reporting anything.
func (m *monitor) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case heartbeatDead, heartbeatStopped:
		return
	}
	m.state = heartbeatStopped
	if m.ticker != nil {
		m.ticker.Stop()
	}
	close(m.quit)
}

func (m *monitor) current() heartbeatState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Heartbeat starts probing the connection with method every heartbeat
// interval, replacing any running monitor.
func (c *Client) Heartbeat(method string, params interface{}, handler kephasrpc.HeartbeatHandler) kephasrpc.RPCClient {
	raw, err := protocol.EncodeParams(params)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Msg("not starting heartbeat with unencodable params")
		if handler != nil {
			handler(false, nil, encodeFailure(err))
		}
		return c
	}

	m := newMonitor(c, method, raw, handler, c.cfg.HeartbeatInterval)
	c.mu.Lock()
	old := c.monitor
	c.monitor = m
	var comps []completion
	if old != nil {
		comps = c.dropHeartbeatCallsLocked(old)
	}
	c.mu.Unlock()

	if old != nil {
		old.stop()
	}
	fire(comps)
	m.start()
	return c
}

// heartbeatTimedOut fails every pending request, closes the connection and
// reports the timeout once.
func (c *Client) heartbeatTimedOut(m *monitor) {
	c.mu.Lock()
	if c.monitor == m {
		c.monitor = nil
	}
	tr := c.transport
	comps := c.dropHeartbeatCallsLocked(m)
	comps = append(comps, c.failPendingLocked(kephasrpc.CodeHeartbeatTimeout, kephasrpc.ErrMsgHeartbeatTimeout)...)
	c.ready = false
	c.mu.Unlock()

	c.logger.Error().Str("method", m.method).Dur("interval", m.interval).Msg("heartbeat timed out, closing connection")
	fire(comps)

	if tr != nil {
		_ = tr.Close()
	}
	if m.handler != nil {
		m.handler(true, nil, nil)
	}
}
