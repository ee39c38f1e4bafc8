package jsonrpc

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/luciancaetano/kephasrpc"
	"github.com/luciancaetano/kephasrpc/internal/protocol"
)

// call is one logical request, from Request until its handler runs.
//
// All fields are guarded by Client.mu.
type call struct {
	id       uint64
	assigned bool
	charged  bool
	method   string
	params   json.RawMessage
	handler  kephasrpc.Handler
	force    bool
	retries  int
	timer    *time.Timer
	gen      uint64
	owner    *monitor
	done     bool
}

// completion is a handler invocation waiting for the client lock to be
// released.
type completion struct {
	handler kephasrpc.Handler
	result  json.RawMessage
	err     *kephasrpc.Error
}

// settle marks cl as completed. It returns nothing when cl already completed,
// so a handler runs at most once.
func settle(cl *call, result json.RawMessage, err *kephasrpc.Error) []completion {
	if cl.done {
		return nil
	}
	cl.done = true
	if cl.timer != nil {
		cl.timer.Stop()
		cl.timer = nil
	}
	if cl.handler == nil {
		return nil
	}
	return []completion{{handler: cl.handler, result: result, err: err}}
}

func fire(comps []completion) {
	for _, comp := range comps {
		comp.handler(comp.result, comp.err)
	}
}

func encodeFailure(err error) *kephasrpc.Error {
	rpcErr := kephasrpc.NewError(kephasrpc.JSONRPCInternalError, kephasrpc.ErrMsgEncodeParams)
	if data, mErr := json.Marshal([]string{err.Error()}); mErr == nil {
		rpcErr.Data = data
	}
	return rpcErr
}

// request is the single entry point of every outbound request.
func (c *Client) request(method string, params interface{}, handler kephasrpc.Handler, force bool) {
	raw, err := protocol.EncodeParams(params)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Msg("rejecting request with unencodable params")
		if handler != nil {
			handler(nil, encodeFailure(err))
		}
		return
	}

	c.submit(&call{method: method, params: raw, handler: handler, force: force})
}

// submit runs the first attempt of a call whose params are already encoded.
func (c *Client) submit(cl *call) {
	c.mu.Lock()
	comps := c.admitLocked(cl)
	c.mu.Unlock()
	fire(comps)
}

// admitLocked runs one attempt of cl through admission, the retry budget,
// id assignment and the readiness gate.
func (c *Client) admitLocked(cl *call) []completion {
	if !cl.force && !cl.assigned && c.inflight >= c.cfg.MaxConcurrent {
		c.logger.Debug().Str("method", cl.method).Int("inflight", c.inflight).Msg("concurrency ceiling reached")
		return settle(cl, nil, kephasrpc.NewError(kephasrpc.CodeMaxConcurrent, kephasrpc.ErrMsgMaxConcurrent))
	}

	if !cl.force && c.cfg.MaxRetries >= 0 && cl.retries > c.cfg.MaxRetries {
		c.logger.Warn().Str("method", cl.method).Uint64("id", cl.id).Int("retries", cl.retries).Msg("retry budget exhausted")
		c.releaseLocked(cl)
		return settle(cl, nil, kephasrpc.NewError(kephasrpc.CodeMaxRetry, kephasrpc.ErrMsgMaxRetry))
	}

	if !cl.assigned {
		cl.id = c.nextID
		c.nextID++
		cl.assigned = true
		if !cl.force {
			cl.charged = true
			c.inflight++
		}
	}

	if !c.ready {
		c.deferLocked(cl)
		return nil
	}
	return c.transmitLocked(cl)
}

// releaseLocked gives back the concurrency slot held by cl. It is safe to
// call more than once.
func (c *Client) releaseLocked(cl *call) {
	if cl.charged {
		cl.charged = false
		c.inflight--
	}
}

// deferLocked parks cl until the connection opens or the poll timer fires.
// Each deferral arms a new timer generation; only its own timer may poll.
func (c *Client) deferLocked(cl *call) {
	if cl.timer != nil {
		cl.timer.Stop()
	}
	cl.gen++
	gen := cl.gen
	c.deferred[cl.id] = cl
	cl.timer = time.AfterFunc(c.cfg.PollInterval, func() {
		c.poll(cl, gen)
	})
}

// poll re-runs a deferred attempt with one more retry on its counter.
func (c *Client) poll(cl *call, gen uint64) {
	c.mu.Lock()
	if c.deferred[cl.id] != cl || cl.gen != gen {
		// Flushed, failed or deferred again since this timer was armed.
		c.mu.Unlock()
		return
	}
	delete(c.deferred, cl.id)
	cl.timer = nil
	cl.retries++
	comps := c.admitLocked(cl)
	c.mu.Unlock()
	fire(comps)
}

// flushDeferredLocked sends every parked request, oldest id first.
func (c *Client) flushDeferredLocked() []completion {
	calls := c.takeDeferredLocked()
	var comps []completion
	for _, cl := range calls {
		comps = append(comps, c.transmitLocked(cl)...)
	}
	return comps
}

// takeDeferredLocked empties the deferred set and disarms its timers.
func (c *Client) takeDeferredLocked() []*call {
	calls := make([]*call, 0, len(c.deferred))
	for id, cl := range c.deferred {
		if cl.timer != nil {
			cl.timer.Stop()
			cl.timer = nil
		}
		calls = append(calls, cl)
		delete(c.deferred, id)
	}
	sort.Slice(calls, func(i, j int) bool { return calls[i].id < calls[j].id })
	return calls
}

// transmitLocked writes cl to the connection and registers it as pending.
// A frame the transport refuses goes back to waiting for readiness.
func (c *Client) transmitLocked(cl *call) []completion {
	data, err := protocol.NewRequest(cl.id, cl.method, cl.params).Encode()
	if err != nil {
		c.logger.Warn().Err(err).Str("method", cl.method).Uint64("id", cl.id).Msg("failed to encode request")
		c.releaseLocked(cl)
		return settle(cl, nil, encodeFailure(err))
	}

	key := protocol.IDFromUint(cl.id)
	c.pending[key] = cl
	if err := c.transport.Send(data); err != nil {
		delete(c.pending, key)
		c.logger.Warn().Err(err).Str("method", cl.method).Uint64("id", cl.id).Msg("send failed, waiting for readiness")
		c.deferLocked(cl)
		return nil
	}

	c.logger.Debug().Str("method", cl.method).Uint64("id", cl.id).Bool("force", cl.force).Msg("request sent")
	return nil
}

// failPendingLocked completes every request waiting for a response with the
// given error.
func (c *Client) failPendingLocked(code int, message string) []completion {
	calls := make([]*call, 0, len(c.pending))
	for key, cl := range c.pending {
		calls = append(calls, cl)
		delete(c.pending, key)
	}
	sort.Slice(calls, func(i, j int) bool { return calls[i].id < calls[j].id })

	var comps []completion
	for _, cl := range calls {
		c.releaseLocked(cl)
		comps = append(comps, settle(cl, nil, kephasrpc.NewError(code, message))...)
	}
	return comps
}

// dropHeartbeatCallsLocked settles every call still owned by m, wherever it waits.
func (c *Client) dropHeartbeatCallsLocked(m *monitor) []completion {
	var comps []completion
	for id, cl := range c.deferred {
		if cl.owner != m {
			continue
		}
		delete(c.deferred, id)
		comps = append(comps, settle(cl, nil, kephasrpc.NewError(kephasrpc.CodeHeartbeatTimeout, kephasrpc.ErrMsgHeartbeatTimeout))...)
	}
	for key, cl := range c.pending {
		if cl.owner != m {
			continue
		}
		delete(c.pending, key)
		comps = append(comps, settle(cl, nil, kephasrpc.NewError(kephasrpc.CodeHeartbeatTimeout, kephasrpc.ErrMsgHeartbeatTimeout))...)
	}
	return comps
}

// failDeferredLocked completes every request waiting for readiness with the
// given error.
func (c *Client) failDeferredLocked(code int, message string) []completion {
	var comps []completion
	for _, cl := range c.takeDeferredLocked() {
		c.releaseLocked(cl)
		comps = append(comps, settle(cl, nil, kephasrpc.NewError(code, message))...)
	}
	return comps
}
