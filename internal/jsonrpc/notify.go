package jsonrpc

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/luciancaetano/kephasrpc"
	"github.com/luciancaetano/kephasrpc/internal/protocol"
)

// dispatchNotification hands a server push to the notifier of its method.
// Notifications without params are not delivered.
func (c *Client) dispatchNotification(msg *protocol.Message) error {
	c.mu.Lock()
	notifier, ok := c.notifiers[msg.Method]
	c.mu.Unlock()

	if !ok {
		if c.cfg.UnknownNotifications == FailUnknown {
			return errors.Wrapf(kephasrpc.ErrUnknownNotification, "%q", msg.Method)
		}
		c.logger.Debug().Str("method", msg.Method).Msg("dropping notification with no notifier")
		return nil
	}

	if msg.Params == nil || bytes.Equal(msg.Params, []byte("null")) {
		return nil
	}
	notifier(msg.Params)
	return nil
}

// OnNotify registers the notifier for method; the last registration wins.
func (c *Client) OnNotify(method string, notifier kephasrpc.Notifier) kephasrpc.RPCClient {
	if notifier == nil {
		return c
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifiers[method] = notifier
	return c
}
