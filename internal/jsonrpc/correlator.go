package jsonrpc

import (
	"github.com/pkg/errors"

	"github.com/luciancaetano/kephasrpc"
	"github.com/luciancaetano/kephasrpc/internal/protocol"
)

// route handles one inbound frame. A non-nil error means the frame cannot be
// interpreted and the connection should not be trusted any more.
func (c *Client) route(data []byte) error {
	msg, err := protocol.Decode(data)
	if err != nil {
		return errors.Wrapf(kephasrpc.ErrInvalidFrame, "%v", err)
	}

	if c.cfg.Preprocess != nil {
		msg = c.cfg.Preprocess(msg)
		if msg == nil {
			return nil
		}
	}

	if msg.ID != nil {
		return c.resolve(msg)
	}
	if msg.Method != "" {
		return c.dispatchNotification(msg)
	}
	return errors.Wrap(kephasrpc.ErrInvalidFrame, "message with no id or method")
}

// resolve completes the pending request msg answers.
//
// Responses for ids nobody waits for are dropped: they belong to requests
// that were abandoned or failed locally.
func (c *Client) resolve(msg *protocol.Message) error {
	key := msg.RequestID()

	c.mu.Lock()
	cl, ok := c.pending[key]
	if !ok {
		c.mu.Unlock()
		c.logger.Debug().Str("id", string(key)).Msg("dropping response for unknown id")
		return nil
	}

	var comps []completion
	switch msg.Kind() {
	case protocol.KindResult:
		comps = settle(cl, msg.Result, nil)
	case protocol.KindError:
		comps = settle(cl, nil, msg.Error)
	default:
		c.mu.Unlock()
		return errors.Wrapf(kephasrpc.ErrInvalidFrame, "response %s with no result or error", key)
	}
	delete(c.pending, key)
	c.releaseLocked(cl)
	c.mu.Unlock()

	fire(comps)
	return nil
}
